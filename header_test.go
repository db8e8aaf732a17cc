package zarc

import (
	"bytes"
	"testing"

	"github.com/distr1/zarc/internal/integrity"
)

func TestDirectoryHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := DirectoryHeader{
		FileVersion:        1,
		DirectoryVersion:   1,
		DigestType:         integrity.DigestBLAKE3,
		SignatureType:      integrity.SignatureEd25519,
		UncompressedLength: 12345,
		PublicKey:          bytes.Repeat([]byte{0xAB}, 32),
		Digest:             bytes.Repeat([]byte{0xCD}, 32),
		Signature:          bytes.Repeat([]byte{0xEF}, 64),
	}
	payload := encodeDirectoryHeader(h)

	got, err := decodeDirectoryHeader(payload)
	if err != nil {
		t.Fatalf("decodeDirectoryHeader: %v", err)
	}
	if got.FileVersion != h.FileVersion || got.DirectoryVersion != h.DirectoryVersion {
		t.Fatalf("version mismatch: got %+v", got)
	}
	if got.DigestType != h.DigestType || got.SignatureType != h.SignatureType {
		t.Fatalf("algorithm code mismatch: got %+v", got)
	}
	if got.UncompressedLength != h.UncompressedLength {
		t.Fatalf("UncompressedLength = %d, want %d", got.UncompressedLength, h.UncompressedLength)
	}
	if !bytes.Equal(got.PublicKey, h.PublicKey) || !bytes.Equal(got.Digest, h.Digest) || !bytes.Equal(got.Signature, h.Signature) {
		t.Fatal("variable-length field mismatch after round trip")
	}
}

func TestDecodeDirectoryHeaderRejectsBadMagic(t *testing.T) {
	h := DirectoryHeader{
		DigestType:    integrity.DigestBLAKE3,
		SignatureType: integrity.SignatureEd25519,
		PublicKey:     make([]byte, 32),
		Digest:        make([]byte, 32),
		Signature:     make([]byte, 64),
	}
	payload := encodeDirectoryHeader(h)
	payload[0] ^= 0xFF
	if _, err := decodeDirectoryHeader(payload); err == nil {
		t.Fatal("expected error for corrupted magic")
	}
}

func TestDecodeDirectoryHeaderRejectsShortPayload(t *testing.T) {
	if _, err := decodeDirectoryHeader([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for too-short payload")
	}
}
