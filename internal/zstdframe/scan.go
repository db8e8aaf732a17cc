package zstdframe

import (
	"encoding/binary"
	"io"
)

// FrameRecord describes one frame found by Scan.
type FrameRecord struct {
	Kind   Kind
	Nibble int // valid only when Kind == KindSkippable
	Offset int64
	Length int64 // total on-disk length, header through last byte
}

// Scan walks r, a seekable reader positioned at the start of a Zarc archive
// (or any concatenation of Zstd frames), and invokes fn once per frame found
// until fn returns false or the input is exhausted. It measures standard
// frames by walking their block headers rather than decompressing them, so
// it never duplicates the decompressor.
func Scan(r io.ReadSeeker, fn func(FrameRecord) bool) error {
	offset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return &FormatError{Op: "Scan", Err: err}
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return &FormatError{Op: "Scan", Err: err}
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return &FormatError{Op: "Scan", Err: err}
	}

	for offset < end {
		var magicBuf [4]byte
		if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
			return &FormatError{Op: "Scan", Err: err}
		}
		magic := binary.LittleEndian.Uint32(magicBuf[:])

		if nibble := SkippableNibble(magic); nibble >= 0 {
			var lenBuf [4]byte
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				return &FormatError{Op: "Scan", Err: ErrTruncated}
			}
			payloadLen := int64(binary.LittleEndian.Uint32(lenBuf[:]))
			total := int64(8) + payloadLen
			rec := FrameRecord{Kind: KindSkippable, Nibble: nibble, Offset: offset, Length: total}
			if !fn(rec) {
				return nil
			}
			offset += total
			if _, err := r.Seek(offset, io.SeekStart); err != nil {
				return &FormatError{Op: "Scan", Err: err}
			}
			continue
		}

		if magic != standardMagic {
			return &FormatError{Op: "Scan", Err: ErrNotZstd}
		}
		length, err := standardFrameLength(r)
		if err != nil {
			return err
		}
		total := int64(4) + length
		rec := FrameRecord{Kind: KindStandard, Offset: offset, Length: total}
		if !fn(rec) {
			return nil
		}
		offset += total
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return &FormatError{Op: "Scan", Err: err}
		}
	}
	return nil
}

// standardFrameLength reads the frame header and every block header of a
// standard Zstd frame whose magic has just been consumed from r, and returns
// the number of bytes remaining in the frame after the magic (i.e. header
// through the end of the optional content checksum).
func standardFrameLength(r io.Reader) (int64, error) {
	var fhd [1]byte
	if _, err := io.ReadFull(r, fhd[:]); err != nil {
		return 0, &FormatError{Op: "Scan", Err: ErrTruncated}
	}
	var n int64 = 1

	descriptor := fhd[0]
	fcsFlag := descriptor >> 6
	singleSegment := descriptor&0x20 != 0
	checksumFlag := descriptor&0x04 != 0
	dictIDFlag := descriptor & 0x03

	if !singleSegment {
		var wd [1]byte
		if _, err := io.ReadFull(r, wd[:]); err != nil {
			return 0, &FormatError{Op: "Scan", Err: ErrTruncated}
		}
		n++
	}

	dictIDSize := map[byte]int{0: 0, 1: 1, 2: 2, 3: 4}[dictIDFlag]
	if dictIDSize > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(dictIDSize)); err != nil {
			return 0, &FormatError{Op: "Scan", Err: ErrTruncated}
		}
		n += int64(dictIDSize)
	}

	fcsSize := 0
	switch {
	case fcsFlag == 0 && singleSegment:
		fcsSize = 1
	case fcsFlag == 0:
		fcsSize = 0
	case fcsFlag == 1:
		fcsSize = 2
	case fcsFlag == 2:
		fcsSize = 4
	case fcsFlag == 3:
		fcsSize = 8
	}
	if fcsSize > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(fcsSize)); err != nil {
			return 0, &FormatError{Op: "Scan", Err: ErrTruncated}
		}
		n += int64(fcsSize)
	}

	for {
		var bh [3]byte
		if _, err := io.ReadFull(r, bh[:]); err != nil {
			return 0, &FormatError{Op: "Scan", Err: ErrTruncated}
		}
		n += 3
		size, btype, last := decodeBlockHeader(bh)
		skip := int64(size)
		if btype == blockTypeRLE {
			skip = 1
		}
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return 0, &FormatError{Op: "Scan", Err: ErrTruncated}
		}
		n += skip
		if last {
			break
		}
	}

	if checksumFlag {
		if _, err := io.CopyN(io.Discard, r, 4); err != nil {
			return 0, &FormatError{Op: "Scan", Err: ErrTruncated}
		}
		n += 4
	}

	return n, nil
}
