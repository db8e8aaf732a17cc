package zarc

import (
	"encoding/binary"
	"fmt"

	"github.com/distr1/zarc/internal/integrity"
)

// encodeDirectoryHeader serialises h as the payload of the directory-header
// skippable frame (spec §6): fixed fields, then public key / digest /
// signature, each sized per the selected algorithm.
func encodeDirectoryHeader(h DirectoryHeader) []byte {
	buf := make([]byte, 0, 16+len(h.PublicKey)+len(h.Digest)+len(h.Signature))
	buf = append(buf, zarcMagic[0], zarcMagic[1], zarcMagic[2])
	buf = append(buf, 0x00) // reserved
	buf = append(buf, h.FileVersion, h.DirectoryVersion, uint8(h.DigestType), uint8(h.SignatureType))
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], h.UncompressedLength)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, h.PublicKey...)
	buf = append(buf, h.Digest...)
	buf = append(buf, h.Signature...)
	return buf
}

// decodeDirectoryHeader parses the payload written by encodeDirectoryHeader,
// using the digest/signature type codes to determine how many trailing
// bytes belong to each variable-length field.
func decodeDirectoryHeader(payload []byte) (DirectoryHeader, error) {
	const fixedLen = 3 + 1 + 1 + 1 + 1 + 1 + 8
	if len(payload) < fixedLen {
		return DirectoryHeader{}, &FormatError{Op: "decodeDirectoryHeader", Err: fmt.Errorf("payload too short (%d bytes)", len(payload))}
	}
	if payload[0] != zarcMagic[0] || payload[1] != zarcMagic[1] || payload[2] != zarcMagic[2] {
		return DirectoryHeader{}, &FormatError{Op: "decodeDirectoryHeader", Err: fmt.Errorf("bad magic %x", payload[:3])}
	}
	h := DirectoryHeader{
		FileVersion:        payload[4],
		DirectoryVersion:   payload[5],
		DigestType:         integrity.DigestType(payload[6]),
		SignatureType:      integrity.SignatureType(payload[7]),
		UncompressedLength: binary.LittleEndian.Uint64(payload[8:16]),
	}

	signer, err := integrity.NewSigner(h.SignatureType)
	if err != nil {
		return DirectoryHeader{}, &FormatError{Op: "decodeDirectoryHeader", Err: err}
	}
	digester, err := integrity.NewDigester(h.DigestType)
	if err != nil {
		return DirectoryHeader{}, &FormatError{Op: "decodeDirectoryHeader", Err: err}
	}

	pubLen := signer.PublicKeySize()
	digLen := digester.Size()
	sigLen := signer.SignatureSize()

	rest := payload[16:]
	if len(rest) != pubLen+digLen+sigLen {
		return DirectoryHeader{}, &FormatError{Op: "decodeDirectoryHeader", Err: fmt.Errorf("payload length %d does not match algorithm field sizes (%d+%d+%d)", len(rest), pubLen, digLen, sigLen)}
	}
	h.PublicKey = append([]byte(nil), rest[:pubLen]...)
	h.Digest = append([]byte(nil), rest[pubLen:pubLen+digLen]...)
	h.Signature = append([]byte(nil), rest[pubLen+digLen:]...)
	return h, nil
}
