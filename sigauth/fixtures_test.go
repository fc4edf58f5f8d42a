package sigauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitalvas/httpmsgsig/httpsig"
)

// Public half of the Ed25519 test key of RFC 9421 Appendix B.1.4.
const testJWKPublic = `{
  "kty": "OKP",
  "crv": "Ed25519",
  "kid": "test-key-ed25519",
  "x": "JrQLj5P_89iXES9-vFgrIy29clF9CC_oPPsw3c5D0bs"
}`

// HMAC secrets must be at least 32 bytes.
const testHMACSecret = "a-shared-secret-of-at-least-32-bytes"

// newEd25519Pair returns a signing key with the given id and the PEM
// encoded public key that verifies it.
func newEd25519Pair(t *testing.T, keyID string) (httpsig.Key, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key, err := httpsig.NewEd25519Key(priv, httpsig.KeyOptions{ID: keyID})
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// newRequest returns a request carrying every component of
// DefaultCoveredComponents.
func newRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "http://example.com"+path, nil)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	return req
}

// signedRequest signs a new request for path with key. Unless set in cfg,
// the signature covers DefaultCoveredComponents.
func signedRequest(t *testing.T, path string, key httpsig.Key, cfg httpsig.SignConfig) *http.Request {
	t.Helper()

	cfg.Key = key
	if cfg.CoveredComponents == nil {
		cfg.CoveredComponents = DefaultCoveredComponents
	}

	req := newRequest(path)
	require.NoError(t, httpsig.SignRequest(req, cfg))

	return req
}
