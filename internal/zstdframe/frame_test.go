package zstdframe

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestStandardFrameRoundTrip(t *testing.T) {
	want := strings.Repeat("the quick brown fox jumps over the lazy dog ", 200)

	var buf bytes.Buffer
	hash := sha256.New()
	res, err := WriteStandardFrame(&buf, strings.NewReader(want), zstd.SpeedDefault, hash)
	if err != nil {
		t.Fatalf("WriteStandardFrame: %v", err)
	}
	if res.UncompressedLength != int64(len(want)) {
		t.Fatalf("UncompressedLength = %d, want %d", res.UncompressedLength, len(want))
	}
	if res.FramedLength <= 0 || res.FramedLength != int64(buf.Len()) {
		t.Fatalf("FramedLength = %d, want %d (buf.Len())", res.FramedLength, buf.Len())
	}

	got, err := DecodeStandardFrame(bytes.NewReader(buf.Bytes()), res.UncompressedLength)
	if err != nil {
		t.Fatalf("DecodeStandardFrame: %v", err)
	}
	if string(got) != want {
		t.Fatalf("round-tripped content mismatch: got %d bytes, want %d", len(got), len(want))
	}

	wantDigest := sha256.Sum256([]byte(want))
	if !bytes.Equal(hash.Sum(nil), wantDigest[:]) {
		t.Fatal("hash tee did not observe the same bytes written into the frame")
	}
}

func TestSkippableFrameRoundTrip(t *testing.T) {
	payload := []byte("directory header payload")

	var buf bytes.Buffer
	if err := WriteSkippableFrame(&buf, 5, payload); err != nil {
		t.Fatalf("WriteSkippableFrame: %v", err)
	}

	got, err := ReadSkippable(bytes.NewReader(buf.Bytes()), 5)
	if err != nil {
		t.Fatalf("ReadSkippable: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q, want %q", got, payload)
	}
}

func TestReadSkippableWrongNibble(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSkippableFrame(&buf, 3, []byte("x")); err != nil {
		t.Fatalf("WriteSkippableFrame: %v", err)
	}
	if _, err := ReadSkippable(bytes.NewReader(buf.Bytes()), 9); err == nil {
		t.Fatal("expected ErrWrongFrameKind, got nil")
	}
}

func TestReadSkippableTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSkippableFrame(&buf, 0, []byte("hello world")); err != nil {
		t.Fatalf("WriteSkippableFrame: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-4]
	if _, err := ReadSkippable(bytes.NewReader(truncated), 0); err == nil {
		t.Fatal("expected truncation error, got nil")
	}
}

func TestSkippableNibble(t *testing.T) {
	magic := skippableBase | 7
	if n := SkippableNibble(magic); n != 7 {
		t.Fatalf("SkippableNibble = %d, want 7", n)
	}
	if n := SkippableNibble(standardMagic); n != -1 {
		t.Fatalf("SkippableNibble(standardMagic) = %d, want -1", n)
	}
}

func TestUnintendedMagicFrameRoundTrip(t *testing.T) {
	payload := []byte{0x5A, 0x41, 0x52, 0x01} // 4-byte fixed Zarc Header payload shape

	var buf bytes.Buffer
	if err := WriteUnintendedMagicFrame(&buf, payload); err != nil {
		t.Fatalf("WriteUnintendedMagicFrame: %v", err)
	}

	// A tool sniffing for the standard Zstd magic at offset 0 must find it,
	// since this frame is structurally a normal standard frame.
	got := buf.Bytes()
	if len(got) < 4 {
		t.Fatalf("frame too short: %d bytes", len(got))
	}
	magic := uint32(got[0]) | uint32(got[1])<<8 | uint32(got[2])<<16 | uint32(got[3])<<24
	if magic != standardMagic {
		t.Fatalf("magic = %#x, want %#x", magic, standardMagic)
	}

	gotPayload, err := ReadUnintendedMagicFrame(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadUnintendedMagicFrame: %v", err)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: got %x, want %x", gotPayload, payload)
	}
}

func TestReadUnintendedMagicFrameRejectsBadMagic(t *testing.T) {
	bad := make([]byte, 16)
	if _, err := ReadUnintendedMagicFrame(bytes.NewReader(bad)); err == nil {
		t.Fatal("expected ErrNotZstd, got nil")
	}
}
