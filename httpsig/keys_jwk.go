package httpsig

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// JWKAlgorithmEdDSA is the only JWK algorithm supported by JWK keys.
const JWKAlgorithmEdDSA = "EdDSA"

type jwkKey struct {
	jwk jwk.Key
	ed  *ed25519Key
}

// NewJWKKey wraps a JSON Web Key holding an Ed25519 (OKP) key. When
// opts.ID is empty the kid member of the JWK is used.
func NewJWKKey(key jwk.Key, opts KeyOptions) (Key, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: %w: jwk must not be nil", ErrConstruction, ErrInvalidKey)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrConstruction, ErrInvalidKey, err)
	}

	switch raw.(type) {
	case ed25519.PrivateKey, ed25519.PublicKey, *ed25519.PrivateKey, *ed25519.PublicKey:
	default:
		return nil, fmt.Errorf("%w: jwk key type %s", ErrUnsupportedAlgorithm, key.KeyType())
	}

	if opts.ID == "" {
		opts.ID, _ = key.KeyID()
	}

	inner, err := NewEd25519Key(raw, opts)
	if err != nil {
		return nil, err
	}

	return &jwkKey{jwk: key, ed: inner.(*ed25519Key)}, nil
}

// ParseJWK parses a JSON encoded JWK and wraps it with NewJWKKey.
func ParseJWK(data []byte, opts KeyOptions) (Key, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrConstruction, ErrInvalidKey, err)
	}

	return NewJWKKey(key, opts)
}

// GenerateJWKKey generates a new private JWK. Only "EdDSA" is supported.
func GenerateJWKKey(alg string, opts KeyOptions) (Key, error) {
	if alg != JWKAlgorithmEdDSA {
		return nil, fmt.Errorf("%w: jwk %q", ErrUnsupportedAlgorithm, alg)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}

	key, err := jwk.Import(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrConstruction, ErrInvalidKey, err)
	}

	if opts.ID != "" {
		if err := key.Set(jwk.KeyIDKey, opts.ID); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrConstruction, ErrInvalidKey, err)
		}
	}

	return NewJWKKey(key, opts)
}

// ExportJWK returns the public JSON Web Key of an Ed25519 or JWK key.
func ExportJWK(k Key) (jwk.Key, error) {
	var pub ed25519.PublicKey

	switch key := k.(type) {
	case *jwkKey:
		pub = key.ed.pub
	case *ed25519Key:
		pub = key.pub
	default:
		return nil, fmt.Errorf("%w: cannot export %s key as jwk", ErrUnsupportedAlgorithm, k.Algorithm())
	}

	out, err := jwk.Import(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	if id := k.KeyID(); id != "" {
		if err := out.Set(jwk.KeyIDKey, id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
	}

	return out, nil
}

func (k *jwkKey) Algorithm() Algorithm { return AlgorithmEd25519 }
func (k *jwkKey) KeyID() string        { return k.ed.id }
func (k *jwkKey) IsPublic() bool       { return k.ed.IsPublic() }
func (k *jwkKey) IsPrivate() bool      { return k.ed.IsPrivate() }

func (k *jwkKey) Sign(data []byte) ([]byte, error) { return k.ed.Sign(data) }

func (k *jwkKey) Verify(data, signature []byte) error { return k.ed.Verify(data, signature) }

func (k *jwkKey) String() string   { return keyString(AlgorithmEd25519, k.ed.id, k.IsPrivate()) }
func (k *jwkKey) GoString() string { return k.String() }
