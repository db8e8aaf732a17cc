package zstdframe

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
)

// countingWriter tracks the number of bytes written so far.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// StandardFrameResult describes a standard frame just written to disk.
type StandardFrameResult struct {
	FramedLength       int64 // on-disk byte count, including the Zstd frame header
	UncompressedLength int64
}

// WriteStandardFrame compresses the entirety of src into w as a single
// self-contained Zstd standard frame and reports its on-disk and
// uncompressed lengths. The hash argument, if non-nil, receives every byte
// read from src, so callers can compute a content digest in the same pass
// (see internal/integrity) instead of re-reading the payload.
func WriteStandardFrame(w io.Writer, src io.Reader, level zstd.EncoderLevel, hash io.Writer) (StandardFrameResult, error) {
	cw := &countingWriter{w: w}
	enc, err := zstd.NewWriter(cw, zstd.WithEncoderLevel(level))
	if err != nil {
		return StandardFrameResult{}, &FormatError{Op: "WriteStandardFrame", Err: err}
	}

	r := src
	if hash != nil {
		r = io.TeeReader(src, hash)
	}
	uncompressed, err := io.Copy(enc, r)
	if err != nil {
		enc.Close()
		return StandardFrameResult{}, &FormatError{Op: "WriteStandardFrame", Err: err}
	}
	if err := enc.Close(); err != nil {
		return StandardFrameResult{}, &FormatError{Op: "WriteStandardFrame", Err: err}
	}
	return StandardFrameResult{FramedLength: cw.n, UncompressedLength: uncompressed}, nil
}

// ReadStandardFrame decompresses exactly one standard Zstd frame starting at
// the reader's current position and writes its uncompressed bytes to dst.
func ReadStandardFrame(r io.Reader, dst io.Writer) error {
	// Copy exactly one frame's compressed bytes out of r first: the zstd
	// decoder would otherwise carry on into any frames that follow it.
	var frame bytes.Buffer
	tr := io.TeeReader(r, &frame)
	var magic [4]byte
	if _, err := io.ReadFull(tr, magic[:]); err != nil {
		return &FormatError{Op: "ReadStandardFrame", Err: ErrTruncated}
	}
	if binary.LittleEndian.Uint32(magic[:]) != standardMagic {
		return &FormatError{Op: "ReadStandardFrame", Err: ErrNotZstd}
	}
	if _, err := standardFrameLength(tr); err != nil {
		return err
	}
	dec, err := zstd.NewReader(&frame)
	if err != nil {
		return &FormatError{Op: "ReadStandardFrame", Err: err}
	}
	defer dec.Close()
	if _, err := io.Copy(dst, dec); err != nil {
		return &FormatError{Op: "ReadStandardFrame", Err: err}
	}
	return nil
}

// DecodeStandardFrame is a convenience wrapper around ReadStandardFrame that
// buffers the decompressed payload in memory. Callers that must support
// directories too large to buffer should use ReadStandardFrame directly with
// a streaming destination instead.
func DecodeStandardFrame(r io.Reader, sizeHint int64) ([]byte, error) {
	buf := make([]byte, 0, sizeHint)
	w := &sliceWriter{buf: buf}
	if err := ReadStandardFrame(r, w); err != nil {
		return nil, err
	}
	return w.buf, nil
}

type sliceWriter struct{ buf []byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}
