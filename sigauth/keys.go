package sigauth

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/vitalvas/httpmsgsig/httpsig"
)

// defaultKeyID names the default key when a signature carries no keyid.
const defaultKeyID = "default"

type keyCacheKey struct {
	id  string
	alg httpsig.Algorithm
}

// keyring builds verification keys from the key configuration. Keys are
// built on first use and cached per key id and algorithm.
type keyring struct {
	keys       map[string]KeyConfig
	defaultKey *KeyConfig

	mu    sync.Mutex
	cache map[keyCacheKey]httpsig.Key
}

func newKeyring(cfg Config) *keyring {
	return &keyring{
		keys:       cfg.Keys,
		defaultKey: cfg.DefaultKey,
		cache:      map[keyCacheKey]httpsig.Key{},
	}
}

// NewResolver returns an httpsig.KeyResolver backed by the keys of cfg, for
// use with httpsig.VerifyRequest or httpsig.Middleware.
func NewResolver(cfg Config) httpsig.KeyResolver {
	ring := newKeyring(cfg)

	return func(_ *http.Request, keyID string, alg httpsig.Algorithm) (httpsig.Key, error) {
		return ring.resolve(keyID, alg)
	}
}

// resolve returns the key for keyID, or the default key when keyID is
// empty. alg is the alg parameter of the signature. A key configured with
// an algorithm is always built for that algorithm and rejects any other
// alg. The signature alg is used only for keys configured without one.
func (k *keyring) resolve(keyID string, alg httpsig.Algorithm) (httpsig.Key, error) {
	kc, id, err := k.lookup(keyID)
	if err != nil {
		return nil, err
	}

	if kc.Alg != "" {
		configured := httpsig.Algorithm(kc.Alg)
		if alg != "" && alg != configured {
			return nil, fmt.Errorf("%w: %w: %s != %s", httpsig.ErrVerify, httpsig.ErrAlgorithmMismatch, alg, configured)
		}

		alg = configured
	}

	if alg == "" {
		return nil, fmt.Errorf("%w: key %q", ErrUnknownAlgorithm, id)
	}

	ck := keyCacheKey{id: id, alg: alg}

	k.mu.Lock()
	defer k.mu.Unlock()

	if key, ok := k.cache[ck]; ok {
		return key, nil
	}

	key, err := buildKey(kc, id, alg)
	if err != nil {
		return nil, err
	}

	k.cache[ck] = key

	return key, nil
}

func (k *keyring) lookup(keyID string) (KeyConfig, string, error) {
	if keyID == "" {
		if k.defaultKey == nil {
			return KeyConfig{}, "", fmt.Errorf("%w: no keyid and no default key", ErrKeyNotFound)
		}

		return *k.defaultKey, defaultKeyID, nil
	}

	kc, ok := k.keys[keyID]
	if !ok {
		return KeyConfig{}, "", fmt.Errorf("%w: %q", ErrKeyNotFound, keyID)
	}

	return kc, keyID, nil
}

func buildKey(kc KeyConfig, id string, alg httpsig.Algorithm) (httpsig.Key, error) {
	material := []byte(kc.Material)

	if len(material) == 0 && kc.Path != "" {
		data, err := os.ReadFile(kc.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrKeyNotFound, id, err)
		}

		material = data
	}

	if len(material) == 0 {
		return nil, fmt.Errorf("%w: %q has no material", ErrKeyNotFound, id)
	}

	trimmed := bytes.TrimSpace(material)
	asymmetric := bytes.HasPrefix(trimmed, []byte("{")) || bytes.HasPrefix(trimmed, []byte("-----BEGIN"))

	// Public key material is never usable as a shared secret.
	if alg == httpsig.AlgorithmHMACSHA256 {
		if asymmetric {
			return nil, fmt.Errorf("%w: %w: key %q holds asymmetric material", httpsig.ErrVerify, httpsig.ErrAlgorithmMismatch, id)
		}

		return httpsig.ParsePEMKey(alg, material, id)
	}

	if bytes.HasPrefix(trimmed, []byte("{")) {
		key, err := httpsig.ParseJWK(material, httpsig.KeyOptions{ID: id})
		if err != nil {
			return nil, err
		}

		if key.Algorithm() != alg {
			return nil, fmt.Errorf("%w: %w: %s != %s", httpsig.ErrVerify, httpsig.ErrAlgorithmMismatch, alg, key.Algorithm())
		}

		return key, nil
	}

	return httpsig.ParsePEMKey(alg, material, id)
}
