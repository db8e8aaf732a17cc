package integrity

import "testing"

func TestBlake3DigesterRoundTrip(t *testing.T) {
	d, err := NewDigester(DigestBLAKE3)
	if err != nil {
		t.Fatalf("NewDigester: %v", err)
	}
	if _, err := d.Write([]byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sum := d.Sum()
	if len(sum) != d.Size() {
		t.Fatalf("Sum() has %d bytes, Size() says %d", len(sum), d.Size())
	}

	d2, _ := NewDigester(DigestBLAKE3)
	d2.Write([]byte("hello world"))
	if string(d2.Sum()) != string(sum) {
		t.Fatal("digest is not deterministic across identical input")
	}

	d3, _ := NewDigester(DigestBLAKE3)
	d3.Write([]byte("hello WORLD"))
	if string(d3.Sum()) == string(sum) {
		t.Fatal("digest did not change for different input")
	}
}

func TestNewDigesterRejectsReservedAndUnknown(t *testing.T) {
	if _, err := NewDigester(DigestReserved); err == nil {
		t.Fatal("expected error for reserved digest code 0")
	}
	if _, err := NewDigester(DigestType(99)); err == nil {
		t.Fatal("expected error for unknown digest code")
	}
}

func TestNewSignerRejectsReservedAndUnknown(t *testing.T) {
	if _, err := NewSigner(SignatureReserved); err == nil {
		t.Fatal("expected error for reserved signature code 0")
	}
	if _, err := NewSigner(SignatureType(99)); err == nil {
		t.Fatal("expected error for unknown signature code")
	}
}

func TestEd25519SignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair(SignatureEd25519)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	digest := []byte("some digest bytes")
	sig, err := kp.Sign(SignatureEd25519, digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := VerifyAttestation(SignatureEd25519, kp.Public, digest, sig)
	if err != nil {
		t.Fatalf("VerifyAttestation: %v", err)
	}
	if !ok {
		t.Fatal("VerifyAttestation rejected a valid signature")
	}

	ok, err = VerifyAttestation(SignatureEd25519, kp.Public, []byte("different digest"), sig)
	if err != nil {
		t.Fatalf("VerifyAttestation: %v", err)
	}
	if ok {
		t.Fatal("VerifyAttestation accepted a signature over the wrong data")
	}
}

func TestKeypairZeroPreventsFurtherSigning(t *testing.T) {
	kp, err := GenerateKeypair(SignatureEd25519)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	kp.Zero()
	kp.Zero() // must be safe to call twice

	defer func() {
		if recover() == nil {
			t.Fatal("expected Sign to panic after Zero")
		}
	}()
	kp.Sign(SignatureEd25519, []byte("digest"))
}

func TestTwoKeypairsAreDistinct(t *testing.T) {
	a, err := GenerateKeypair(SignatureEd25519)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	b, err := GenerateKeypair(SignatureEd25519)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	if string(a.Public) == string(b.Public) {
		t.Fatal("two freshly generated keypairs share the same public key")
	}
}
