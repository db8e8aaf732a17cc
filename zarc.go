// Package zarc implements the Archive Orchestrator of the Zarc format: the
// pack, read and append flows that drive the Zstd envelope layer
// (internal/zstdframe), the directory codec (internal/directory), the
// integrity/signing discipline (internal/integrity) and the content-addressed
// frame store (internal/framestore) to maintain the format's invariants.
//
// Zarc packages a set of files, with POSIX metadata, into a single seekable
// byte stream that a raw Zstd decoder skips over opaquely but a Zarc reader
// can open, verify, enumerate and partially extract without decompressing
// the bulk payload.
package zarc

import (
	"fmt"

	"github.com/distr1/zarc/internal/directory"
	"github.com/distr1/zarc/internal/integrity"
)

// Skippable-frame nibbles used by the Zarc envelope (spec GLOSSARY).
const (
	nibbleHeader    = 0x0
	nibbleDirectory = 0xF
	nibbleTrailer   = 0xE
)

// zarcMagic is the 3-byte magic that follows the Zstd skippable-frame
// header in both the Zarc Header and the directory header.
var zarcMagic = [3]byte{0x65, 0xAA, 0xDC}

const (
	fileVersion      = 0x01
	directoryVersion = 0x01
)

// Prelude is the fixed 12 bytes every Zarc archive begins with (spec §6).
var Prelude = [12]byte{
	0x50, 0x2A, 0x4D, 0x18, // Zstd skippable magic, nibble 0, little-endian
	0x04, 0x00, 0x00, 0x00, // payload length = 4
	0x65, 0xAA, 0xDC, 0x01, // Zarc magic + file version
}

// zarcHeaderPayload is the 4-byte payload of the Zarc Header skippable
// frame (spec §4.5 step 1, §6).
func zarcHeaderPayload() []byte {
	return []byte{zarcMagic[0], zarcMagic[1], zarcMagic[2], fileVersion}
}

// FormatError reports a malformed Zarc envelope that is not specific to the
// lower zstdframe/directory layers (e.g. bad prelude, bad directory-header
// magic/version).
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string { return fmt.Sprintf("zarc: %s: %v", e.Op, e.Err) }
func (e *FormatError) Unwrap() error { return e.Err }

// PolicyError reports a reader policy rejection: an external symlink or
// hardlink refused under PolicyError::ExternalLink (spec §7). No file-size
// or directory-size limits are enforced, so none produce it.
type PolicyError struct {
	Op  string
	Err error
}

func (e *PolicyError) Error() string { return fmt.Sprintf("zarc: policy: %s: %v", e.Op, e.Err) }
func (e *PolicyError) Unwrap() error { return e.Err }

// State is the lifecycle state of an Archive handle (spec §4.5).
type State int

const (
	StateUninitialised State = iota
	StateOpenedReading
	StateOpenedWriting
	StateAppending
	StateVerified
	StateClosed
	StateFinalised
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StateOpenedReading:
		return "opened(reading)"
	case StateOpenedWriting:
		return "opened(writing)"
	case StateAppending:
		return "appending"
	case StateVerified:
		return "verified"
	case StateClosed:
		return "closed"
	case StateFinalised:
		return "finalised"
	default:
		return "unknown"
	}
}

// DirectoryHeader is the decoded form of the fixed-layout directory header
// (spec §6), minus the variable-length crypto fields which are split out
// into PublicKey/Digest/Signature.
type DirectoryHeader struct {
	FileVersion        uint8
	DirectoryVersion   uint8
	DigestType         integrity.DigestType
	SignatureType      integrity.SignatureType
	UncompressedLength uint64
	PublicKey          []byte
	Digest             []byte
	Signature          []byte
}

// zeroed returns a copy of h with Digest and Signature replaced by
// all-zero slices of the same length — the field values the directory's
// Meta record (tag 1) must match exactly (spec §4.3).
func (h DirectoryHeader) zeroed() directory.Meta {
	return directory.Meta{
		FileVersion:      h.FileVersion,
		DirectoryVersion: h.DirectoryVersion,
		DigestType:       uint8(h.DigestType),
		SignatureType:    uint8(h.SignatureType),
		PublicKey:        h.PublicKey,
		Digest:           make([]byte, len(h.Digest)),
		Signature:        make([]byte, len(h.Signature)),
	}
}
