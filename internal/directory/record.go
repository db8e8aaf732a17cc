// Package directory implements the Zarc Directory Codec: the CBOR record
// stream that describes every file and content frame in an archive. It owns
// the entity/invariant contracts from spec.md §3-§4.2 (multiplicity, merge
// policy, pathname rules, timestamp/owner canonicalisation) but knows
// nothing about the Zstd envelope or the signing discipline around it.
package directory

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/xerrors"
)

// Tag identifies a directory record's type.
type Tag uint16

const (
	TagMeta          Tag = 1
	TagWrittenAt     Tag = 2
	TagUserMetadata  Tag = 10
	TagPriorVersion  Tag = 13
	TagFile          Tag = 20
	TagFrame         Tag = 21
	minPrivateTag    Tag = 32768
)

// DirectoryError reports a violation of the directory's entity or ordering
// contract: a missing Meta record, a bad pathname, a dangling reference, and
// so on.
type DirectoryError struct {
	Op  string
	Err error
}

func (e *DirectoryError) Error() string { return fmt.Sprintf("directory: %s: %v", e.Op, e.Err) }
func (e *DirectoryError) Unwrap() error { return e.Err }

// Record is one length-prefixed, type-tagged entry in the directory stream:
// u16 LE tag, u32 LE payload length, then that many bytes of CBOR.
type Record struct {
	Tag     Tag
	Payload []byte // raw CBOR
}

// EncMode is the single CBOR encoding mode used for every record payload in
// this package, configured so that time.Time values are written as tag 0
// RFC3339 text per spec §4.2 ("Output always written as tag 0 RFC3339").
var EncMode = func() cbor.EncMode {
	opts := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}
	m, err := opts.EncMode()
	if err != nil {
		panic(err) // static options, cannot fail
	}
	return m
}()

// DecMode accepts both tag 0 (RFC3339 text) and tag 1 (epoch seconds) for
// time.Time fields, per spec §4.2 ("Timestamp inputs accepted: CBOR tag 0 ...
// and tag 1 ..."); fxamacker/cbor's built-in time.Time support already
// decodes either representation once DecTagOptional allows a tag to be
// absent or present.
var DecMode = func() cbor.DecMode {
	opts := cbor.DecOptions{
		TimeTag:         cbor.DecTagOptional,
		DupMapKey:       cbor.DupMapKeyQuiet,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	m, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// WriteRecord appends one length-prefixed record to w.
func WriteRecord(w io.Writer, tag Tag, payload []byte) error {
	var hdr [6]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(tag))
	binary.LittleEndian.PutUint32(hdr[2:6], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadRecord reads one length-prefixed record from r. It returns io.EOF
// (unwrapped) when r is exhausted exactly at a record boundary.
func ReadRecord(r io.Reader) (Record, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, &DirectoryError{Op: "ReadRecord", Err: xerrors.Errorf("truncated record header: %w", err)}
		}
		return Record{}, err
	}
	tag := Tag(binary.LittleEndian.Uint16(hdr[0:2]))
	length := binary.LittleEndian.Uint32(hdr[2:6])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Record{}, &DirectoryError{Op: "ReadRecord", Err: xerrors.Errorf("truncated record payload (tag %d): %w", tag, err)}
	}
	return Record{Tag: tag, Payload: payload}, nil
}

// Walk calls fn once per record in the stream produced by r, in order, until
// fn returns false, an error occurs, or the stream is exhausted. This is the
// "lazy finite sequence" streaming path spec §9 requires directory readers
// to support: fn may choose to ignore (not retain) a record's payload.
func Walk(r io.Reader, fn func(Record) (bool, error)) error {
	for {
		rec, err := ReadRecord(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		cont, err := fn(rec)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}
