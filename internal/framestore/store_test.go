package framestore

import "testing"

func TestStoreAddLookup(t *testing.T) {
	s := New()
	digest := []byte("abc123")
	if err := s.Add(digest, Entry{Offset: 10, FramedLength: 20, UncompressedLength: 30}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e, ok := s.Lookup(digest)
	if !ok {
		t.Fatal("Lookup did not find added digest")
	}
	if e.Offset != 10 || e.FramedLength != 20 || e.UncompressedLength != 30 {
		t.Fatalf("Lookup returned %+v, want Offset=10 FramedLength=20 UncompressedLength=30", e)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreAddSameDigestSameOffsetIsNoop(t *testing.T) {
	s := New()
	digest := []byte("dup")
	if err := s.Add(digest, Entry{Offset: 5}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(digest, Entry{Offset: 5}); err != nil {
		t.Fatalf("second Add with identical offset should be a no-op, got: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreAddSameDigestDifferentOffsetFails(t *testing.T) {
	s := New()
	digest := []byte("dup")
	if err := s.Add(digest, Entry{Offset: 5}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(digest, Entry{Offset: 6}); err == nil {
		t.Fatal("expected error adding same digest at a different offset")
	}
}

func TestStoreOffsetCollisionFails(t *testing.T) {
	s := New()
	if err := s.Add([]byte("one"), Entry{Offset: 100}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add([]byte("two"), Entry{Offset: 100}); err == nil {
		t.Fatal("expected error reusing an offset under a different digest")
	}
}

func TestStoreLookupMiss(t *testing.T) {
	s := New()
	if _, ok := s.Lookup([]byte("nope")); ok {
		t.Fatal("Lookup unexpectedly found a digest never added")
	}
}
