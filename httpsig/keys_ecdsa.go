package httpsig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

type ecdsaKey struct {
	priv   *ecdsa.PrivateKey
	pub    *ecdsa.PublicKey
	id     string
	digest crypto.Hash
	alg    Algorithm
	size   int
}

// NewECDSAKey creates an ECDSA key on curve P-256 (with SHA-256) or P-384
// (with SHA-384). material is an *ecdsa.PrivateKey or an *ecdsa.PublicKey.
//
// Signatures use the fixed width r||s encoding of RFC 9421 Section 3.3.4,
// not ASN.1 DER.
func NewECDSAKey(material any, opts KeyOptions) (Key, error) {
	k := &ecdsaKey{id: opts.ID, digest: opts.Digest}

	switch m := material.(type) {
	case *ecdsa.PrivateKey:
		if m == nil {
			return nil, fmt.Errorf("%w: %w: ecdsa key must not be nil", ErrConstruction, ErrInvalidKey)
		}

		k.priv, k.pub = m, &m.PublicKey
	case *ecdsa.PublicKey:
		if m == nil {
			return nil, fmt.Errorf("%w: %w: ecdsa key must not be nil", ErrConstruction, ErrInvalidKey)
		}

		k.pub = m
	default:
		return nil, fmt.Errorf("%w: %w: unexpected ecdsa key type %T", ErrConstruction, ErrInvalidKey, material)
	}

	if err := checkDigest(opts.Digest); err != nil {
		return nil, err
	}

	var want crypto.Hash

	switch k.pub.Curve {
	case elliptic.P256():
		k.alg, k.size, want = AlgorithmECDSAP256SHA256, 32, crypto.SHA256
	case elliptic.P384():
		k.alg, k.size, want = AlgorithmECDSAP384SHA384, 48, crypto.SHA384
	default:
		return nil, fmt.Errorf("%w: %w: key curve must be P-256 or P-384", ErrConstruction, ErrInvalidKey)
	}

	if opts.Digest != want {
		return nil, fmt.Errorf("%w: %w: %s requires %v", ErrConstruction, ErrInvalidKey, k.alg, want)
	}

	return k, nil
}

func (k *ecdsaKey) Algorithm() Algorithm { return k.alg }
func (k *ecdsaKey) KeyID() string        { return k.id }
func (k *ecdsaKey) IsPublic() bool       { return k.pub != nil }
func (k *ecdsaKey) IsPrivate() bool      { return k.priv != nil }

func (k *ecdsaKey) Sign(data []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, errPublicKey(k.alg)
	}

	der, err := ecdsa.SignASN1(rand.Reader, k.priv, hashData(k.digest, data))
	if err != nil {
		return nil, err
	}

	return derToFixed(der, k.size)
}

func (k *ecdsaKey) Verify(data, signature []byte) error {
	der, err := fixedToDER(signature, k.size)
	if err != nil {
		return err
	}

	if !ecdsa.VerifyASN1(k.pub, hashData(k.digest, data), der) {
		return ErrSignatureInvalid
	}

	return nil
}

func (k *ecdsaKey) String() string   { return keyString(k.alg, k.id, k.IsPrivate()) }
func (k *ecdsaKey) GoString() string { return k.String() }

// derToFixed converts an ASN.1 DER ECDSA-Sig-Value into r||s, each integer
// left padded to size bytes.
func derToFixed(der []byte, size int) ([]byte, error) {
	var (
		inner cryptobyte.String
		r, s  = new(big.Int), new(big.Int)
	)

	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, fmt.Errorf("%w: malformed ecdsa signature", ErrSigning)
	}

	if r.Sign() < 0 || s.Sign() < 0 || r.BitLen() > size*8 || s.BitLen() > size*8 {
		return nil, fmt.Errorf("%w: ecdsa signature out of range", ErrSigning)
	}

	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])

	return out, nil
}

// fixedToDER converts an r||s signature into ASN.1 DER.
func fixedToDER(sig []byte, size int) ([]byte, error) {
	if len(sig) != 2*size {
		return nil, ErrInvalidSignatureLength
	}

	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})

	der, err := b.Bytes()
	if err != nil {
		return nil, ErrInvalidSignatureLength
	}

	return der, nil
}
