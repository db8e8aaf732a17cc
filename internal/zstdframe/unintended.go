package zstdframe

import "io"

// block types, per the Zstd block format (last 2 bits of the 3-byte block header)
const (
	blockTypeRaw        = 0
	blockTypeRLE         = 1
	blockTypeCompressed = 2
)

func blockHeader(size int, btype int, last bool) [3]byte {
	var l uint32
	if last {
		l = 1
	}
	v := (uint32(size) << 3) | (uint32(btype) << 1) | l
	return [3]byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// WriteUnintendedMagicFrame writes the standard Zstd frame described in
// spec §6/§4.1: a raw block whose body is exactly the Zarc Header payload
// (so that tools sniffing the start of the archive for the Zarc magic find
// it, "unintentionally", inside what is structurally a normal Zstd frame),
// followed by a zero-length RLE block that terminates the frame.
//
// The frame deliberately omits the optional trailing compressed block of
// advisory text: it carries no information a reader depends on, and every
// reader is required by spec to discard anything after the raw block
// regardless, so skipping it keeps the writer simple without changing
// on-disk semantics for conforming readers.
func WriteUnintendedMagicFrame(w io.Writer, headerPayload []byte) error {
	cw := &countingWriter{w: w}

	// Frame_Header_Descriptor: Single_Segment_flag set, FCS_Field_Size flag
	// 00 (meaning the content size that follows is 1 byte, taken literally
	// because Single_Segment_flag is set), no checksum, no dictionary.
	const frameHeaderDescriptor = 0x20

	contentSize := len(headerPayload) // the RLE block contributes 0 bytes
	if contentSize > 0xFF {
		// Not reachable with the fixed 4-byte Zarc Header payload, but guard
		// against accidental misuse with a larger payload.
		return &FormatError{Op: "WriteUnintendedMagicFrame", Err: ErrTruncated}
	}

	var hdr [6]byte
	hdr[0] = byte(standardMagic)
	hdr[1] = byte(standardMagic >> 8)
	hdr[2] = byte(standardMagic >> 16)
	hdr[3] = byte(standardMagic >> 24)
	hdr[4] = frameHeaderDescriptor
	hdr[5] = byte(contentSize)
	if _, err := cw.Write(hdr[:]); err != nil {
		return &FormatError{Op: "WriteUnintendedMagicFrame", Err: err}
	}

	rawHdr := blockHeader(len(headerPayload), blockTypeRaw, false)
	if _, err := cw.Write(rawHdr[:]); err != nil {
		return &FormatError{Op: "WriteUnintendedMagicFrame", Err: err}
	}
	if _, err := cw.Write(headerPayload); err != nil {
		return &FormatError{Op: "WriteUnintendedMagicFrame", Err: err}
	}

	rleHdr := blockHeader(0, blockTypeRLE, true)
	if _, err := cw.Write(rleHdr[:]); err != nil {
		return &FormatError{Op: "WriteUnintendedMagicFrame", Err: err}
	}
	if _, err := cw.Write([]byte{0x00}); err != nil {
		return &FormatError{Op: "WriteUnintendedMagicFrame", Err: err}
	}
	return nil
}

// ReadUnintendedMagicFrame reads the frame written by WriteUnintendedMagicFrame
// and returns the raw block's payload (the Zarc Header bytes), discarding
// everything from the RLE block onward as required by spec.
func ReadUnintendedMagicFrame(r io.Reader) ([]byte, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrTruncated}
	}
	magic := uint32(hdr[0]) | uint32(hdr[1])<<8 | uint32(hdr[2])<<16 | uint32(hdr[3])<<24
	if magic != standardMagic {
		return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrNotZstd}
	}
	contentSize := int(hdr[5])

	var rawHdr [3]byte
	if _, err := io.ReadFull(r, rawHdr[:]); err != nil {
		return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrTruncated}
	}
	size, btype, last := decodeBlockHeader(rawHdr)
	if btype != blockTypeRaw || last {
		return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrNotZstd}
	}
	if size != contentSize {
		return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrNotZstd}
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrTruncated}
	}

	// Discard every remaining block in the frame, whatever it contains.
	for {
		var bh [3]byte
		if _, err := io.ReadFull(r, bh[:]); err != nil {
			return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrTruncated}
		}
		sz, bt, last := decodeBlockHeader(bh)
		switch bt {
		case blockTypeRLE:
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrTruncated}
			}
		default:
			if _, err := io.CopyN(io.Discard, r, int64(sz)); err != nil {
				return nil, &FormatError{Op: "ReadUnintendedMagicFrame", Err: ErrTruncated}
			}
		}
		if last {
			break
		}
	}
	return payload, nil
}

func decodeBlockHeader(b [3]byte) (size int, btype int, last bool) {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	last = v&1 != 0
	btype = int((v >> 1) & 0x3)
	size = int(v >> 3)
	return
}
