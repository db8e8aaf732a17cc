package integrity

// Keypair holds a freshly generated per-archive (or per-edition) signing
// key. Spec §4.3 requires a fresh keypair for every pack or append and
// requires the secret half to be destroyed on close; Zero must be called on
// every exit path once the secret is no longer needed.
type Keypair struct {
	Public []byte
	secret []byte
}

// GenerateKeypair creates a fresh keypair for the given signature
// algorithm.
func GenerateKeypair(t SignatureType) (*Keypair, error) {
	signer, err := NewSigner(t)
	if err != nil {
		return nil, err
	}
	pub, sec, err := signer.Generate()
	if err != nil {
		return nil, &IntegrityError{Op: "GenerateKeypair", Err: err}
	}
	return &Keypair{Public: pub, secret: sec}, nil
}

// Sign signs digest with the secret key. It panics if called after Zero, the
// same way using a closed file handle would be a programmer error rather
// than a recoverable one.
func (k *Keypair) Sign(t SignatureType, digest []byte) ([]byte, error) {
	if k.secret == nil {
		panic("integrity: Sign called on a zeroised Keypair")
	}
	signer, err := NewSigner(t)
	if err != nil {
		return nil, err
	}
	return signer.Sign(k.secret, digest)
}

// Zero destroys the secret key material. Safe to call more than once.
func (k *Keypair) Zero() {
	for i := range k.secret {
		k.secret[i] = 0
	}
	k.secret = nil
}
