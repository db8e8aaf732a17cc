// Package framestore implements the Content-Addressed Frame Store (spec
// §4.4): an in-memory index from content digest to the on-disk location and
// size of the frame carrying that content, built once from the directory's
// Frame entries and consulted during pack to dedup identical payloads.
package framestore

import "fmt"

// Entry describes one content frame, keyed by digest in the Store.
type Entry struct {
	Offset             uint64
	FramedLength       uint64
	UncompressedLength uint64
	EditionAdded       uint16
}

// Store maps a content digest to its Entry. It never contains dangling
// entries: every entry describes a frame its caller wrote or read. Store
// does not check digests against frame bytes itself.
type Store struct {
	byDigest map[string]Entry
	offsets  map[uint64]bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byDigest: make(map[string]Entry),
		offsets:  make(map[uint64]bool),
	}
}

// Add registers a frame. It fails if the offset is already in use by a
// different frame (spec §4.4: "offsets are unique") or if the digest is
// already mapped to a different offset (spec §3 Content Frame invariant).
func (s *Store) Add(digest []byte, e Entry) error {
	key := string(digest)
	if existing, ok := s.byDigest[key]; ok {
		if existing.Offset != e.Offset {
			return fmt.Errorf("framestore: digest already mapped to offset %d, cannot add offset %d", existing.Offset, e.Offset)
		}
		return nil
	}
	if s.offsets[e.Offset] {
		return fmt.Errorf("framestore: offset %d already in use by a different digest", e.Offset)
	}
	s.byDigest[key] = e
	s.offsets[e.Offset] = true
	return nil
}

// Lookup returns the Entry for digest, if any.
func (s *Store) Lookup(digest []byte) (Entry, bool) {
	e, ok := s.byDigest[string(digest)]
	return e, ok
}

// Len returns the number of distinct content frames in the store.
func (s *Store) Len() int { return len(s.byDigest) }
