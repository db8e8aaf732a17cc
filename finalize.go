package zarc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/distr1/zarc/internal/directory"
	"github.com/distr1/zarc/internal/integrity"
)

type truncater interface {
	Truncate(size int64) error
}

var errAlreadyFinalized = fmt.Errorf("packer already finalized")

// Finalize completes the pack (or append) flow (spec §4.5 steps 5-7): it
// serialises the directory, hashes and signs the uncompressed CBOR stream,
// compresses the directory into one Zstd frame, emits the directory-header
// skippable frame and the EOF trailer, and destroys the packer's secret
// key. After Finalize returns (successfully or not) the Packer must not be
// used again.
func (p *Packer) Finalize() error {
	if p.finalized {
		return &FormatError{Op: "Finalize", Err: errAlreadyFinalized}
	}
	defer func() {
		p.finalized = true
		p.keypair.Zero()
	}()

	p.dir.Meta = directory.Meta{
		FileVersion:      fileVersion,
		DirectoryVersion: directoryVersion,
		DigestType:       uint8(p.digestType),
		SignatureType:    uint8(p.sigType),
		PublicKey:        p.keypair.Public,
		Digest:           make([]byte, mustDigestSize(p.digestType)),
		Signature:        make([]byte, mustSignatureSize(p.sigType)),
	}

	plain, err := directory.Encode(&p.dir)
	if err != nil {
		return &FormatError{Op: "Finalize", Err: err}
	}

	digester, err := integrity.NewDigester(p.digestType)
	if err != nil {
		return &FormatError{Op: "Finalize", Err: err}
	}
	if _, err := digester.Write(plain); err != nil {
		return &FormatError{Op: "Finalize", Err: err}
	}
	digest := digester.Sum()
	sig, err := p.keypair.Sign(p.sigType, digest)
	if err != nil {
		return &FormatError{Op: "Finalize", Err: err}
	}

	result, err := writeStandardFrame(p.w, byteReader(plain), p.level, nil)
	if err != nil {
		return err
	}
	headerFrameOffset := p.offset + result.FramedLength
	p.offset = headerFrameOffset

	hdr := DirectoryHeader{
		FileVersion:        fileVersion,
		DirectoryVersion:   directoryVersion,
		DigestType:         p.digestType,
		SignatureType:      p.sigType,
		UncompressedLength: uint64(len(plain)),
		PublicKey:          p.keypair.Public,
		Digest:             digest,
		Signature:          sig,
	}
	headerPayload := encodeDirectoryHeader(hdr)
	if err := writeSkippable(p.w, nibbleDirectory, headerPayload); err != nil {
		return err
	}
	p.offset += int64(8 + len(headerPayload))

	trailerOffset := p.offset
	distance := uint64(trailerOffset - headerFrameOffset)
	var distBuf [8]byte
	binary.LittleEndian.PutUint64(distBuf[:], distance)
	if err := writeSkippable(p.w, nibbleTrailer, distBuf[:]); err != nil {
		return err
	}
	p.offset += 16

	if t, ok := p.w.(truncater); ok {
		if err := t.Truncate(p.offset); err != nil {
			return &FormatError{Op: "Finalize", Err: err}
		}
	}
	return nil
}

func mustDigestSize(t integrity.DigestType) int {
	d, err := integrity.NewDigester(t)
	if err != nil {
		panic(err)
	}
	return d.Size()
}

func mustSignatureSize(t integrity.SignatureType) int {
	s, err := integrity.NewSigner(t)
	if err != nil {
		panic(err)
	}
	return s.SignatureSize()
}

// byteReader adapts a []byte to an io.Reader.
func byteReader(b []byte) io.Reader { return &sliceReader{b: b} }

type sliceReader struct {
	b   []byte
	pos int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.pos:])
	s.pos += n
	return n, nil
}
