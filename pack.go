package zarc

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/distr1/zarc/internal/directory"
	"github.com/distr1/zarc/internal/framestore"
	"github.com/distr1/zarc/internal/integrity"
)

// DefaultCompressionLevel is zstd's default level, chosen over
// zstd.SpeedBestCompression to favour packing speed over ratio.
const DefaultCompressionLevel = zstd.SpeedDefault

// Owner is a simplified owner/group reference: at most one numeric id and
// one textual name, matching the canonical form internal/directory decodes
// a heterogeneous owner/group array down to.
type Owner struct {
	ID     uint32
	HasID  bool
	Name   string
}

func (o Owner) toTuple() directory.OwnerTuple {
	return directory.OwnerTuple{ID: o.ID, HasID: o.HasID, Name: o.Name, HasName: o.Name != ""}
}

// SpecialFile describes a non-regular file entry: its type code (spec
// §4.2 special-file type codes) and, for symlinks/hardlinks, its target.
type SpecialFile struct {
	Code   uint16
	Target string
}

// FileInput is one (path, metadata, content) tuple as fed to a Packer by
// the walker (spec §2 control-flow: "walker feeds (path, metadata,
// content-reader) tuples").
type FileInput struct {
	Name []string // text path components; see NameBytes for raw-byte components

	// NameBytes, if non-nil, must be the same length as Name; a non-nil
	// entry at index i means that path component is a raw byte string
	// rather than text (spec §3: "each a text or byte string").
	NameBytes [][]byte

	Content io.Reader // nil for entries with no payload (dirs, symlinks, ...)

	Inserted, Birth, Mtime, Atime time.Time

	Mode         uint32
	Owner, Group Owner

	UserMetadata map[string][]byte
	Attributes   map[string][]byte
	Xattrs       map[string][]byte

	Special *SpecialFile
}

func (in FileInput) name() (directory.Name, error) {
	n := make(directory.Name, len(in.Name))
	for i, part := range in.Name {
		if in.NameBytes != nil && in.NameBytes[i] != nil {
			n[i] = directory.BytesComponent(in.NameBytes[i])
		} else {
			n[i] = directory.TextComponent(part)
		}
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Packer drives the pack flow of spec §4.5: it owns the in-memory directory
// under construction until Finalize, streaming each input's content through
// the Zstd encoder and the digest hasher simultaneously and deduplicating
// identical payloads via the content-addressed frame store.
type Packer struct {
	w io.WriteSeeker

	digestType integrity.DigestType
	sigType    integrity.SignatureType
	level      zstd.EncoderLevel

	keypair *integrity.Keypair
	store   *framestore.Store
	dir     directory.Directory

	offset    int64
	finalized bool
}

// NewPacker starts a new pack operation: it writes the fixed prelude and the
// unintended-magic frame to w, generates a fresh keypair, and returns a
// Packer ready to accept files via AddFile.
func NewPacker(w io.WriteSeeker, writtenAt time.Time) (*Packer, error) {
	return newPackerWithAlgorithms(w, writtenAt, integrity.DigestBLAKE3, integrity.SignatureEd25519, nil)
}

func newPackerWithAlgorithms(w io.WriteSeeker, writtenAt time.Time, digestType integrity.DigestType, sigType integrity.SignatureType, priorVersions []directory.PriorVersion) (*Packer, error) {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return nil, &FormatError{Op: "NewPacker", Err: err}
	}
	if _, err := w.Write(Prelude[:]); err != nil {
		return nil, &FormatError{Op: "NewPacker", Err: err}
	}
	if err := writeUnintendedMagic(w); err != nil {
		return nil, err
	}

	offset, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, &FormatError{Op: "NewPacker", Err: err}
	}

	kp, err := integrity.GenerateKeypair(sigType)
	if err != nil {
		return nil, &FormatError{Op: "NewPacker", Err: err}
	}

	p := &Packer{
		w:          w,
		digestType: digestType,
		sigType:    sigType,
		level:      DefaultCompressionLevel,
		keypair:    kp,
		store:      framestore.New(),
		offset:     offset,
		dir: directory.Directory{
			WrittenAt:     directory.WrittenAt{Time: writtenAt},
			PriorVersions: priorVersions,
		},
	}
	return p, nil
}

// SetCompressionLevel overrides DefaultCompressionLevel for subsequent
// AddFile calls.
func (p *Packer) SetCompressionLevel(level zstd.EncoderLevel) { p.level = level }

// AddUserMetadata appends an archive-level user-metadata record (spec §3
// tag 10).
func (p *Packer) AddUserMetadata(key string, value []byte) {
	p.dir.UserMetadata = append(p.dir.UserMetadata, directory.UserMetadataEntry{Key: key, Value: value})
}

// AddFile packs one file (spec §4.5 step 3): if its content is novel, a new
// content frame is written and hashed in the same pass; if the digest is
// already known, the payload is discarded and only a new File entry is
// appended referencing the existing Frame entry (spec §4.4 write-time
// dedup).
func (p *Packer) AddFile(in FileInput) error {
	if p.finalized {
		return &FormatError{Op: "AddFile", Err: fmt.Errorf("packer already finalized")}
	}
	name, err := in.name()
	if err != nil {
		return err
	}

	fe := directory.FileEntry{
		Name:         name,
		Inserted:     in.Inserted,
		Birth:        in.Birth,
		Mtime:        in.Mtime,
		Atime:        in.Atime,
		Mode:         in.Mode,
		Owner:        in.Owner.toTuple(),
		Group:        in.Group.toTuple(),
		UserMetadata: in.UserMetadata,
		Attributes:   in.Attributes,
		Xattrs:       in.Xattrs,
		EditionAdded: 0,
	}
	if in.Special != nil {
		fe.Special = &directory.SpecialType{Code: in.Special.Code, Target: in.Special.Target}
	}

	if in.Content != nil {
		digest, err := p.writeContentFrame(in.Content)
		if err != nil {
			return err
		}
		fe.ContentDigest = digest
	}

	p.dir.Files = append(p.dir.Files, fe)
	return nil
}

// writeContentFrame compresses content into a new standard frame, hashing
// it in the same pass. If the resulting digest is already present in the
// frame store the newly written frame is abandoned (the writer seeks back
// to its start offset) and the existing digest is returned; Finalize
// truncates away any such abandoned bytes if the underlying writer supports
// it (spec §4.4: compress-then-hash is an explicit, on-disk-neutral
// alternative to hash-then-compress).
func (p *Packer) writeContentFrame(content io.Reader) ([]byte, error) {
	start := p.offset

	digester, err := integrity.NewDigester(p.digestType)
	if err != nil {
		return nil, err
	}
	result, err := writeStandardFrame(p.w, content, p.level, digester)
	if err != nil {
		return nil, err
	}
	digest := digester.Sum()

	if existing, ok := p.store.Lookup(digest); ok {
		if _, err := p.w.Seek(start, io.SeekStart); err != nil {
			return nil, &FormatError{Op: "AddFile", Err: err}
		}
		_ = existing // offset/length already recorded; nothing else to do
		return digest, nil
	}
	p.offset = start + result.FramedLength

	sig, err := p.keypair.Sign(p.sigType, digest)
	if err != nil {
		return nil, err
	}
	if err := p.store.Add(digest, framestore.Entry{
		Offset:             uint64(start),
		FramedLength:       uint64(result.FramedLength),
		UncompressedLength: uint64(result.UncompressedLength),
	}); err != nil {
		return nil, &FormatError{Op: "AddFile", Err: err}
	}
	p.dir.Frames = append(p.dir.Frames, directory.FrameEntry{
		Offset:             uint64(start),
		Digest:             digest,
		Signature:          sig,
		UncompressedLength: uint64(result.UncompressedLength),
		EditionAdded:       0,
	})
	return digest, nil
}
