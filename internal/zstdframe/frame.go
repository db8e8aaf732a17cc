// Package zstdframe implements the envelope layer of the Zarc format: it
// reads and writes Zstandard's frame and block framing without re-implementing
// Zstandard's compression logic itself. Standard (compressed) frames are
// delegated to github.com/klauspost/compress/zstd; skippable frames and the
// raw/RLE blocks used by the unintended-magic frame are hand-rolled, since no
// public API exists to make a general Zstd implementation emit those forms
// deliberately.
package zstdframe

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/xerrors"
)

// Kind identifies the kind of frame a Scan step found.
type Kind int

const (
	KindStandard Kind = iota
	KindSkippable
)

func (k Kind) String() string {
	if k == KindStandard {
		return "standard"
	}
	return "skippable"
}

const (
	standardMagic  uint32 = 0xFD2FB528
	skippableBase  uint32 = 0x184D2A50
	skippableNibbl uint32 = 0x0000000F
)

// FormatError reports a malformed or truncated Zstd envelope.
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string { return fmt.Sprintf("zstdframe: %s: %v", e.Op, e.Err) }
func (e *FormatError) Unwrap() error { return e.Err }

var (
	// ErrNotZstd is returned when a frame's magic number is neither the
	// standard Zstd magic nor a skippable-frame magic.
	ErrNotZstd = xerrors.New("not a Zstd frame (bad magic)")
	// ErrTruncated is returned when a frame's declared length runs past the
	// available input.
	ErrTruncated = xerrors.New("truncated Zstd frame")
	// ErrWrongFrameKind is returned by ReadSkippable when the nibble at the
	// given offset does not match what the caller expected.
	ErrWrongFrameKind = xerrors.New("skippable frame has unexpected nibble")
)

// SkippableNibble returns the low nibble of a skippable frame's magic number,
// or -1 if magic is not a skippable-frame magic.
func SkippableNibble(magic uint32) int {
	if magic&^skippableNibbl != skippableBase {
		return -1
	}
	return int(magic & skippableNibbl)
}

// WriteSkippableFrame writes a Zstd skippable frame with the given nibble
// (0..15) and payload.
func WriteSkippableFrame(w io.Writer, nibble int, payload []byte) error {
	if nibble < 0 || nibble > 15 {
		return &FormatError{Op: "WriteSkippableFrame", Err: fmt.Errorf("nibble %d out of range", nibble)}
	}
	magic := skippableBase | uint32(nibble)
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return &FormatError{Op: "WriteSkippableFrame", Err: err}
	}
	if _, err := w.Write(payload); err != nil {
		return &FormatError{Op: "WriteSkippableFrame", Err: err}
	}
	return nil
}

// ReadSkippable reads the skippable frame starting at the reader's current
// offset and returns its payload. If expectedNibble is >= 0, the frame's
// nibble is checked against it and ErrWrongFrameKind is returned on mismatch.
func ReadSkippable(r io.Reader, expectedNibble int) ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &FormatError{Op: "ReadSkippable", Err: fmt.Errorf("%w: %v", ErrTruncated, err)}
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	nibble := SkippableNibble(magic)
	if nibble < 0 {
		return nil, &FormatError{Op: "ReadSkippable", Err: ErrNotZstd}
	}
	if expectedNibble >= 0 && nibble != expectedNibble {
		return nil, &FormatError{Op: "ReadSkippable", Err: ErrWrongFrameKind}
	}
	length := binary.LittleEndian.Uint32(hdr[4:8])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FormatError{Op: "ReadSkippable", Err: fmt.Errorf("%w: %v", ErrTruncated, err)}
	}
	return payload, nil
}
