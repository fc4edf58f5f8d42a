package httpsig

import (
	"crypto"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256" // registers SHA-256 for crypto.Hash
	_ "crypto/sha512" // registers SHA-384 and SHA-512 for crypto.Hash
	"fmt"
)

// Minimum RSA key size in bits.
const minRSAKeyBits = 2048

// Minimum HMAC secret size in bytes.
const minHMACKeyBytes = 32

// Default RSA-PSS salt length in bytes.
const defaultPSSSaltLength = 64

// Key signs and verifies signature bases with one algorithm.
//
// Implementations are immutable and safe for concurrent use. String and
// GoString never reveal key material.
type Key interface {
	// Algorithm returns the algorithm identifier of this key.
	Algorithm() Algorithm

	// KeyID returns the key identifier, used as the keyid parameter.
	KeyID() string

	// Sign produces a signature over data. Public keys return
	// ErrKeyUnusable.
	Sign(data []byte) ([]byte, error)

	// Verify checks that signature is valid for data. Returns nil on
	// success.
	Verify(data, signature []byte) error

	// IsPublic reports whether the key can verify with public material.
	IsPublic() bool

	// IsPrivate reports whether the key holds signing material.
	IsPrivate() bool
}

// KeyOptions configures key construction.
type KeyOptions struct {
	// ID is the key identifier reported by Key.KeyID.
	ID string

	// Digest is the hash used by RSA, RSA-PSS, HMAC and ECDSA keys.
	// Ed25519 keys ignore it.
	Digest crypto.Hash

	// SaltLength is the RSA-PSS salt length used for signing.
	// Default: 64. Verification always detects the salt length.
	SaltLength int
}

var digestNames = map[crypto.Hash]string{
	crypto.SHA256: "sha256",
	crypto.SHA384: "sha384",
	crypto.SHA512: "sha512",
}

func checkDigest(h crypto.Hash) error {
	if h == 0 {
		return fmt.Errorf("%w: %w", ErrConstruction, ErrMissingDigest)
	}

	if _, ok := digestNames[h]; !ok || !h.Available() {
		return fmt.Errorf("%w: digest %v", ErrUnsupportedAlgorithm, h)
	}

	return nil
}

func hashData(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)

	return hh.Sum(nil)
}

// keyString formats a key for logs without its material.
func keyString(alg Algorithm, id string, private bool) string {
	kind := "public"
	if private {
		kind = "private"
	}

	return fmt.Sprintf("httpsig.Key{alg: %s, keyid: %q, %s}", alg, id, kind)
}

func errPublicKey(alg Algorithm) error {
	return fmt.Errorf("%w: %w: %s key has no private material", ErrSigning, ErrKeyUnusable, alg)
}

// --- RSA PKCS#1 v1.5 ---

type rsaKey struct {
	priv   *rsa.PrivateKey
	pub    *rsa.PublicKey
	id     string
	digest crypto.Hash
}

// NewRSAKey creates an RSASSA-PKCS1-v1_5 key. material is an
// *rsa.PrivateKey or an *rsa.PublicKey.
func NewRSAKey(material any, opts KeyOptions) (Key, error) {
	priv, pub, err := rsaMaterial(material)
	if err != nil {
		return nil, err
	}

	if err := checkDigest(opts.Digest); err != nil {
		return nil, err
	}

	return &rsaKey{priv: priv, pub: pub, id: opts.ID, digest: opts.Digest}, nil
}

func (k *rsaKey) Algorithm() Algorithm {
	return Algorithm("rsa-v1_5-" + digestNames[k.digest])
}

func (k *rsaKey) KeyID() string   { return k.id }
func (k *rsaKey) IsPublic() bool  { return k.pub != nil }
func (k *rsaKey) IsPrivate() bool { return k.priv != nil }

func (k *rsaKey) Sign(data []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, errPublicKey(k.Algorithm())
	}

	return rsa.SignPKCS1v15(rand.Reader, k.priv, k.digest, hashData(k.digest, data))
}

func (k *rsaKey) Verify(data, signature []byte) error {
	if err := rsa.VerifyPKCS1v15(k.pub, k.digest, hashData(k.digest, data), signature); err != nil {
		return ErrSignatureInvalid
	}

	return nil
}

func (k *rsaKey) String() string   { return keyString(k.Algorithm(), k.id, k.IsPrivate()) }
func (k *rsaKey) GoString() string { return k.String() }

// --- RSA-PSS ---

type rsaPSSKey struct {
	priv       *rsa.PrivateKey
	pub        *rsa.PublicKey
	id         string
	digest     crypto.Hash
	saltLength int
}

// NewRSAPSSKey creates an RSASSA-PSS key. The digest is used both as the
// message hash and the MGF1 hash. material is an *rsa.PrivateKey or an
// *rsa.PublicKey.
func NewRSAPSSKey(material any, opts KeyOptions) (Key, error) {
	priv, pub, err := rsaMaterial(material)
	if err != nil {
		return nil, err
	}

	if err := checkDigest(opts.Digest); err != nil {
		return nil, err
	}

	salt := opts.SaltLength
	if salt <= 0 {
		salt = defaultPSSSaltLength
	}

	return &rsaPSSKey{priv: priv, pub: pub, id: opts.ID, digest: opts.Digest, saltLength: salt}, nil
}

func (k *rsaPSSKey) Algorithm() Algorithm {
	return Algorithm("rsa-pss-" + digestNames[k.digest])
}

func (k *rsaPSSKey) KeyID() string   { return k.id }
func (k *rsaPSSKey) IsPublic() bool  { return k.pub != nil }
func (k *rsaPSSKey) IsPrivate() bool { return k.priv != nil }

func (k *rsaPSSKey) Sign(data []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, errPublicKey(k.Algorithm())
	}

	return rsa.SignPSS(rand.Reader, k.priv, k.digest, hashData(k.digest, data), &rsa.PSSOptions{
		SaltLength: k.saltLength,
		Hash:       k.digest,
	})
}

func (k *rsaPSSKey) Verify(data, signature []byte) error {
	err := rsa.VerifyPSS(k.pub, k.digest, hashData(k.digest, data), signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       k.digest,
	})
	if err != nil {
		return ErrSignatureInvalid
	}

	return nil
}

func (k *rsaPSSKey) String() string   { return keyString(k.Algorithm(), k.id, k.IsPrivate()) }
func (k *rsaPSSKey) GoString() string { return k.String() }

func rsaMaterial(material any) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	var (
		priv *rsa.PrivateKey
		pub  *rsa.PublicKey
	)

	switch m := material.(type) {
	case *rsa.PrivateKey:
		if m == nil {
			return nil, nil, fmt.Errorf("%w: %w: rsa key must not be nil", ErrConstruction, ErrInvalidKey)
		}

		priv, pub = m, &m.PublicKey
	case *rsa.PublicKey:
		if m == nil {
			return nil, nil, fmt.Errorf("%w: %w: rsa key must not be nil", ErrConstruction, ErrInvalidKey)
		}

		pub = m
	default:
		return nil, nil, fmt.Errorf("%w: %w: unexpected rsa key type %T", ErrConstruction, ErrInvalidKey, material)
	}

	if pub.N == nil || pub.N.BitLen() < minRSAKeyBits {
		return nil, nil, fmt.Errorf("%w: %w: rsa key must be at least %d bits", ErrConstruction, ErrInvalidKey, minRSAKeyBits)
	}

	return priv, pub, nil
}

// --- HMAC ---

type hmacKey struct {
	secret []byte
	id     string
	digest crypto.Hash
}

// NewHMACKey creates an HMAC key from a shared secret of at least 32
// bytes. HMAC keys are private: they sign and verify with the same secret.
func NewHMACKey(secret []byte, opts KeyOptions) (Key, error) {
	if len(secret) < minHMACKeyBytes {
		return nil, fmt.Errorf("%w: %w: hmac key must be at least %d bytes", ErrConstruction, ErrInvalidKey, minHMACKeyBytes)
	}

	if err := checkDigest(opts.Digest); err != nil {
		return nil, err
	}

	return &hmacKey{secret: append([]byte(nil), secret...), id: opts.ID, digest: opts.Digest}, nil
}

func (k *hmacKey) Algorithm() Algorithm {
	return Algorithm("hmac-" + digestNames[k.digest])
}

func (k *hmacKey) KeyID() string   { return k.id }
func (k *hmacKey) IsPublic() bool  { return false }
func (k *hmacKey) IsPrivate() bool { return true }

func (k *hmacKey) Sign(data []byte) ([]byte, error) {
	return k.mac(data), nil
}

func (k *hmacKey) Verify(data, signature []byte) error {
	if !hmac.Equal(k.mac(data), signature) {
		return ErrSignatureInvalid
	}

	return nil
}

func (k *hmacKey) mac(data []byte) []byte {
	h := hmac.New(k.digest.New, k.secret)
	h.Write(data)

	return h.Sum(nil)
}

func (k *hmacKey) String() string   { return keyString(k.Algorithm(), k.id, true) }
func (k *hmacKey) GoString() string { return k.String() }

// --- Ed25519 ---

type ed25519Key struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	id   string
}

// NewEd25519Key creates an Ed25519 key. material is an ed25519.PrivateKey,
// an ed25519.PublicKey or a pointer to either. Digest options are ignored.
func NewEd25519Key(material any, opts KeyOptions) (Key, error) {
	k := &ed25519Key{id: opts.ID}

	switch m := material.(type) {
	case *ed25519.PrivateKey:
		if m == nil {
			return nil, fmt.Errorf("%w: %w: ed25519 key must not be nil", ErrConstruction, ErrInvalidKey)
		}

		return NewEd25519Key(*m, opts)
	case *ed25519.PublicKey:
		if m == nil {
			return nil, fmt.Errorf("%w: %w: ed25519 key must not be nil", ErrConstruction, ErrInvalidKey)
		}

		return NewEd25519Key(*m, opts)
	case ed25519.PrivateKey:
		if len(m) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: %w: ed25519 private key must be %d bytes", ErrConstruction, ErrInvalidKey, ed25519.PrivateKeySize)
		}

		k.priv = append(ed25519.PrivateKey(nil), m...)
		k.pub = k.priv.Public().(ed25519.PublicKey)
	case ed25519.PublicKey:
		if len(m) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: %w: ed25519 public key must be %d bytes", ErrConstruction, ErrInvalidKey, ed25519.PublicKeySize)
		}

		k.pub = append(ed25519.PublicKey(nil), m...)
	default:
		return nil, fmt.Errorf("%w: %w: unexpected ed25519 key type %T", ErrConstruction, ErrInvalidKey, material)
	}

	return k, nil
}

// NewEd25519KeyFromSeed creates an Ed25519 private key from a 32 byte seed.
func NewEd25519KeyFromSeed(seed []byte, opts KeyOptions) (Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: %w: ed25519 seed must be %d bytes", ErrConstruction, ErrInvalidKey, ed25519.SeedSize)
	}

	return NewEd25519Key(ed25519.NewKeyFromSeed(seed), opts)
}

func (k *ed25519Key) Algorithm() Algorithm { return AlgorithmEd25519 }
func (k *ed25519Key) KeyID() string        { return k.id }
func (k *ed25519Key) IsPublic() bool       { return k.pub != nil }
func (k *ed25519Key) IsPrivate() bool      { return k.priv != nil }

func (k *ed25519Key) Sign(data []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, errPublicKey(AlgorithmEd25519)
	}

	return ed25519.Sign(k.priv, data), nil
}

func (k *ed25519Key) Verify(data, signature []byte) error {
	if len(signature) != ed25519.SignatureSize {
		return ErrInvalidSignatureLength
	}

	if !ed25519.Verify(k.pub, data, signature) {
		return ErrSignatureInvalid
	}

	return nil
}

func (k *ed25519Key) String() string   { return keyString(AlgorithmEd25519, k.id, k.IsPrivate()) }
func (k *ed25519Key) GoString() string { return k.String() }
