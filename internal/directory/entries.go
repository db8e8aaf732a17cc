package directory

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Meta is the directory's tag-1 record: the field values of the directory
// header (spec §6) with the digest and signature fields zeroed, encoded as a
// CBOR map. It is not a byte copy of the header payload; readers compare it
// with the header field by field. Storing it inside the digest's own
// coverage is what lets verification catch a downgrade attack against the
// algorithm-code bytes (spec §4.3).
type Meta struct {
	FileVersion      uint8  `cbor:"1,keyasint"`
	DirectoryVersion uint8  `cbor:"2,keyasint"`
	DigestType       uint8  `cbor:"3,keyasint"`
	SignatureType    uint8  `cbor:"4,keyasint"`
	PublicKey        []byte `cbor:"5,keyasint"`
	// Digest and Signature MUST be all-zero of the correct length when this
	// struct is serialised as the directory's Meta record.
	Digest    []byte `cbor:"6,keyasint"`
	Signature []byte `cbor:"7,keyasint"`
}

// WrittenAt is the directory's tag-2 record (last-wins on decode).
type WrittenAt struct {
	Time time.Time `cbor:"1,keyasint"`
}

// UserMetadataEntry is one archive-level tag-10 record (collected, 0..*).
type UserMetadataEntry struct {
	Key   string `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// PriorVersion is one tag-13 record: a snapshot of a previous edition's
// Meta payload plus its Written-At and any archive-level user metadata of
// that edition (spec §3 "Edition (Prior-Version)").
type PriorVersion struct {
	Index        uint16              `cbor:"1,keyasint"`
	MetaBytes    []byte              `cbor:"2,keyasint"` // CBOR encoding of the prior edition's Meta record
	WrittenAt    time.Time           `cbor:"3,keyasint"`
	UserMetadata []UserMetadataEntry `cbor:"4,keyasint,omitempty"`
}

// OwnerTuple represents a POSIX owner or group. On the wire it is the
// heterogeneous array spec §4.2 describes, mixing numeric ids and textual
// names; decoding canonicalises it to at most one of each, preferring the
// text-string form when both are present and keeping the last integer when
// several appear (spec §4.2: "Owner/group tuple decoding").
type OwnerTuple struct {
	ID      uint32
	HasID   bool
	Name    string
	HasName bool
}

func (o OwnerTuple) MarshalCBOR() ([]byte, error) {
	var items []interface{}
	if o.HasID {
		items = append(items, o.ID)
	}
	if o.HasName {
		items = append(items, o.Name)
	}
	return EncMode.Marshal(items)
}

func (o *OwnerTuple) UnmarshalCBOR(data []byte) error {
	var items []cbor.RawMessage
	if err := DecMode.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("directory: owner/group tuple: %w", err)
	}
	*o = OwnerTuple{}
	for _, item := range items {
		var s string
		if err := DecMode.Unmarshal(item, &s); err == nil {
			o.Name, o.HasName = s, true
			continue
		}
		var id uint32
		if err := DecMode.Unmarshal(item, &id); err == nil {
			o.ID, o.HasID = id, true
			continue
		}
		return fmt.Errorf("directory: owner/group tuple element is neither int nor text")
	}
	return nil
}

// Special-file type codes (spec §4.2).
const (
	SpecialDirEntry        = 1
	SpecialSymlinkUnspec   = 10
	SpecialSymlinkInternal = 11
	SpecialSymlinkExtAbs   = 12
	SpecialSymlinkExtRel   = 13
	SpecialHardlinkUnspec  = 20
	SpecialHardlinkInternal = 21
	SpecialHardlinkExtAbs   = 22
)

// SpecialType describes a non-regular file entry: its type code and, for
// symlinks/hardlinks, the target pathname.
type SpecialType struct {
	Code   uint16 `cbor:"1,keyasint"`
	Target string `cbor:"2,keyasint,omitempty"`
}

// IsExternalLink reports whether this special type is one of the
// "external" link kinds a reader MAY refuse under PolicyError::ExternalLink
// (spec §4.2: codes 12, 13, 22).
func (s SpecialType) IsExternalLink() bool {
	switch s.Code {
	case SpecialSymlinkExtAbs, SpecialSymlinkExtRel, SpecialHardlinkExtAbs:
		return true
	}
	return false
}

// FileEntry is one tag-20 record (collected, 0..*).
type FileEntry struct {
	Name Name `cbor:"1,keyasint"`

	// ContentDigest is absent for special files that carry no payload
	// (directories, symlinks, device nodes).
	ContentDigest []byte `cbor:"2,keyasint,omitempty"`

	Inserted time.Time `cbor:"3,keyasint"`
	Birth    time.Time `cbor:"4,keyasint,omitempty"`
	Mtime    time.Time `cbor:"5,keyasint,omitempty"`
	Atime    time.Time `cbor:"6,keyasint,omitempty"`

	Mode  uint32     `cbor:"7,keyasint"`
	Owner OwnerTuple `cbor:"8,keyasint"`
	Group OwnerTuple `cbor:"9,keyasint"`

	UserMetadata map[string][]byte `cbor:"10,keyasint,omitempty"`
	Attributes   map[string][]byte `cbor:"11,keyasint,omitempty"` // namespaced: win32./linux./bsd./_*.
	Xattrs       map[string][]byte `cbor:"12,keyasint,omitempty"`

	EditionAdded uint16       `cbor:"13,keyasint"`
	Special      *SpecialType `cbor:"14,keyasint,omitempty"`
}

// FrameEntry is one tag-21 record (collected, >=1 per content frame).
type FrameEntry struct {
	Offset             uint64 `cbor:"1,keyasint"`
	Digest             []byte `cbor:"2,keyasint"`
	Signature          []byte `cbor:"3,keyasint"`
	UncompressedLength uint64 `cbor:"4,keyasint"`
	EditionAdded       uint16 `cbor:"5,keyasint"`
}
