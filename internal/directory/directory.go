package directory

import (
	"bytes"
	"fmt"
	"io"
)

// Directory is the fully decoded (or about-to-be-encoded) content of a Zarc
// directory: the merged result of walking every record per the multiplicity
// and merge-policy table in spec §3.
type Directory struct {
	Meta          Meta
	WrittenAt     WrittenAt // last-wins
	UserMetadata  []UserMetadataEntry
	PriorVersions []PriorVersion
	Files         []FileEntry
	Frames        []FrameEntry
}

// Encode serialises dir as a directory record stream: Meta first, then
// Written-At, then Prior-Versions, User-Metadata, Files and Frames, matching the
// "frame records SHOULD be emitted in ascending offset" guidance and
// general encode contract of spec §4.2.
func Encode(dir *Directory) ([]byte, error) {
	var buf bytes.Buffer

	metaPayload, err := EncMode.Marshal(dir.Meta)
	if err != nil {
		return nil, &DirectoryError{Op: "Encode", Err: err}
	}
	if err := WriteRecord(&buf, TagMeta, metaPayload); err != nil {
		return nil, &DirectoryError{Op: "Encode", Err: err}
	}

	writtenAtPayload, err := EncMode.Marshal(dir.WrittenAt)
	if err != nil {
		return nil, &DirectoryError{Op: "Encode", Err: err}
	}
	if err := WriteRecord(&buf, TagWrittenAt, writtenAtPayload); err != nil {
		return nil, &DirectoryError{Op: "Encode", Err: err}
	}

	for _, pv := range dir.PriorVersions {
		p, err := EncMode.Marshal(pv)
		if err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
		if err := WriteRecord(&buf, TagPriorVersion, p); err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
	}

	for _, um := range dir.UserMetadata {
		p, err := EncMode.Marshal(um)
		if err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
		if err := WriteRecord(&buf, TagUserMetadata, p); err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
	}

	for _, f := range dir.Files {
		p, err := EncMode.Marshal(f)
		if err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
		if err := WriteRecord(&buf, TagFile, p); err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
	}

	// Frame entries SHOULD appear in ascending offset order (spec §3); the
	// orchestrator is responsible for appending them to dir.Frames in that
	// order as it writes content frames, so we just emit them as given.
	for _, fr := range dir.Frames {
		p, err := EncMode.Marshal(fr)
		if err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
		if err := WriteRecord(&buf, TagFrame, p); err != nil {
			return nil, &DirectoryError{Op: "Encode", Err: err}
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a complete directory byte stream, applying the merge
// policies of spec §3 (first-wins for Meta, last-wins for Written-At,
// collect for everything else) and ignoring unknown tags by length prefix
// alone, without attempting to parse their CBOR payload.
func Decode(r io.Reader) (*Directory, error) {
	dir := &Directory{}
	sawMeta := false
	first := true

	err := Walk(r, func(rec Record) (bool, error) {
		if first && rec.Tag != TagMeta {
			return false, &DirectoryError{Op: "Decode", Err: fmt.Errorf("first record has tag %d, want Meta (1)", rec.Tag)}
		}
		first = false

		switch rec.Tag {
		case TagMeta:
			if sawMeta {
				return true, nil // first-wins: ignore later Meta records
			}
			if err := DecMode.Unmarshal(rec.Payload, &dir.Meta); err != nil {
				return false, &DirectoryError{Op: "Decode", Err: fmt.Errorf("meta: %w", err)}
			}
			sawMeta = true

		case TagWrittenAt:
			var wa WrittenAt
			if err := DecMode.Unmarshal(rec.Payload, &wa); err != nil {
				return false, &DirectoryError{Op: "Decode", Err: fmt.Errorf("written-at: %w", err)}
			}
			dir.WrittenAt = wa // last-wins

		case TagUserMetadata:
			var um UserMetadataEntry
			if err := DecMode.Unmarshal(rec.Payload, &um); err != nil {
				return false, &DirectoryError{Op: "Decode", Err: fmt.Errorf("user-metadata: %w", err)}
			}
			dir.UserMetadata = append(dir.UserMetadata, um)

		case TagPriorVersion:
			var pv PriorVersion
			if err := DecMode.Unmarshal(rec.Payload, &pv); err != nil {
				return false, &DirectoryError{Op: "Decode", Err: fmt.Errorf("prior-version: %w", err)}
			}
			dir.PriorVersions = append(dir.PriorVersions, pv)

		case TagFile:
			var fe FileEntry
			if err := DecMode.Unmarshal(rec.Payload, &fe); err != nil {
				return false, &DirectoryError{Op: "Decode", Err: fmt.Errorf("file entry: %w", err)}
			}
			if err := fe.Name.Validate(); err != nil {
				return false, err
			}
			dir.Files = append(dir.Files, fe)

		case TagFrame:
			var fr FrameEntry
			if err := DecMode.Unmarshal(rec.Payload, &fr); err != nil {
				return false, &DirectoryError{Op: "Decode", Err: fmt.Errorf("frame entry: %w", err)}
			}
			dir.Frames = append(dir.Frames, fr)

		default:
			// Unknown tag (reserved range or private 32768-65535): skip by
			// length prefix alone, per spec §4.2.
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !sawMeta {
		return nil, &DirectoryError{Op: "Decode", Err: fmt.Errorf("missing required Meta record")}
	}
	return dir, nil
}

// Validate checks the cross-entry invariants of spec §3/§7 that a single
// record can't enforce on its own: unique frame offsets, file entries
// referencing an existing frame digest, and edition-added indices that
// resolve to either the current edition (0) or an existing Prior-Version.
func (dir *Directory) Validate() error {
	offsets := make(map[uint64]bool, len(dir.Frames))
	digests := make(map[string]bool, len(dir.Frames))
	for _, fr := range dir.Frames {
		if offsets[fr.Offset] {
			return &DirectoryError{Op: "Validate", Err: fmt.Errorf("duplicate frame offset %d", fr.Offset)}
		}
		offsets[fr.Offset] = true
		digests[string(fr.Digest)] = true
	}

	editions := make(map[uint16]bool, len(dir.PriorVersions))
	for _, pv := range dir.PriorVersions {
		if pv.Index == 0 {
			return &DirectoryError{Op: "Validate", Err: fmt.Errorf("prior-version index 0 is reserved for the current edition")}
		}
		if editions[pv.Index] {
			return &DirectoryError{Op: "Validate", Err: fmt.Errorf("duplicate prior-version index %d", pv.Index)}
		}
		editions[pv.Index] = true
	}

	validEdition := func(e uint16) bool { return e == 0 || editions[e] }

	for _, fe := range dir.Files {
		if err := fe.Name.Validate(); err != nil {
			return err
		}
		if len(fe.ContentDigest) > 0 && !digests[string(fe.ContentDigest)] {
			return &DirectoryError{Op: "Validate", Err: fmt.Errorf("file %q references unknown content digest", fe.Name.Path())}
		}
		if !validEdition(fe.EditionAdded) {
			return &DirectoryError{Op: "Validate", Err: fmt.Errorf("file %q has unknown edition-added %d", fe.Name.Path(), fe.EditionAdded)}
		}
	}
	for _, fr := range dir.Frames {
		if !validEdition(fr.EditionAdded) {
			return &DirectoryError{Op: "Validate", Err: fmt.Errorf("frame at offset %d has unknown edition-added %d", fr.Offset, fr.EditionAdded)}
		}
	}
	return nil
}
