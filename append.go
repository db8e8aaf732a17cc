package zarc

import (
	"fmt"
	"io"
	"time"

	"github.com/distr1/zarc/internal/directory"
	"github.com/distr1/zarc/internal/integrity"
)

// ReadWriteSeekerAt is the capability Append needs from its backing file:
// random-access reads to verify the existing archive plus seekable writes to
// extend it in place. *os.File satisfies it.
type ReadWriteSeekerAt interface {
	io.ReaderAt
	io.WriteSeeker
}

// Append opens, verifies and then extends an existing archive in place
// (spec §4.5 "Append flow"). The previous directory, directory header and
// EOF trailer are discarded: the returned Packer resumes writing at the old
// directory-header frame's offset, so new content frames land exactly where
// those discarded records used to be.
//
// A fresh keypair is generated for the new edition (spec §4.5: "a fresh
// keypair MUST be generated for each pack or append"), and every
// pre-existing Frame entry is re-signed under it — the old signatures
// verified against a key this archive no longer vouches for. Every
// pre-existing File and Frame entry is also attributed to the edition that
// was current a moment ago, and a Prior-Version record snapshots that
// edition's Meta payload and Written-At so it is still reachable by index
// (spec §3 "Edition (Prior-Version)").
//
// The caller must still call Finalize on the returned Packer, exactly as
// after NewPacker.
func Append(f ReadWriteSeekerAt, size int64, writtenAt time.Time, opts ...OpenOption) (*Packer, error) {
	arc, err := Open(f, size, opts...)
	if err != nil {
		return nil, &FormatError{Op: "Append", Err: fmt.Errorf("verifying existing archive: %w", err)}
	}

	oldDir := arc.dir
	newEdition := nextEditionIndex(oldDir)

	oldMetaBytes, err := directory.EncMode.Marshal(oldDir.Meta)
	if err != nil {
		return nil, &FormatError{Op: "Append", Err: err}
	}

	priorVersions := make([]directory.PriorVersion, len(oldDir.PriorVersions), len(oldDir.PriorVersions)+1)
	copy(priorVersions, oldDir.PriorVersions)
	priorVersions = append(priorVersions, directory.PriorVersion{
		Index:        newEdition,
		MetaBytes:    oldMetaBytes,
		WrittenAt:    oldDir.WrittenAt.Time,
		UserMetadata: oldDir.UserMetadata,
	})

	// Every entry that existed a moment ago is now attributed to the edition
	// that was current then, regardless of what edition-added it already
	// carried (spec §4.5 step 4: "so they are attributed to the prior
	// edition").
	files := make([]directory.FileEntry, len(oldDir.Files))
	copy(files, oldDir.Files)
	for i := range files {
		files[i].EditionAdded = newEdition
	}
	frames := make([]directory.FrameEntry, len(oldDir.Frames))
	copy(frames, oldDir.Frames)

	kp, err := integrity.GenerateKeypair(arc.header.SignatureType)
	if err != nil {
		return nil, &FormatError{Op: "Append", Err: err}
	}
	for i := range frames {
		sig, err := kp.Sign(arc.header.SignatureType, frames[i].Digest)
		if err != nil {
			return nil, &FormatError{Op: "Append", Err: err}
		}
		frames[i].Signature = sig
		frames[i].EditionAdded = newEdition
	}

	if _, err := f.Seek(arc.headerOffset, io.SeekStart); err != nil {
		return nil, &FormatError{Op: "Append", Err: err}
	}

	p := &Packer{
		w:          f,
		digestType: arc.header.DigestType,
		sigType:    arc.header.SignatureType,
		level:      DefaultCompressionLevel,
		keypair:    kp,
		store:      arc.store, // already validated by Open: every digest maps to its one on-disk offset
		offset:     arc.headerOffset,
		dir: directory.Directory{
			WrittenAt:     directory.WrittenAt{Time: writtenAt},
			PriorVersions: priorVersions,
			Files:         files,
			Frames:        frames,
		},
	}
	return p, nil
}

// nextEditionIndex returns one past the highest Prior-Version index already
// present, or 1 if dir has never been appended to. Index 0 always denotes
// "current" and is never itself assigned to a Prior-Version (spec §3).
func nextEditionIndex(dir *directory.Directory) uint16 {
	var max uint16
	for _, pv := range dir.PriorVersions {
		if pv.Index > max {
			max = pv.Index
		}
	}
	return max + 1
}
