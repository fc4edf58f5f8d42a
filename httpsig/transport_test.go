package httpsig

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signResponseWriter signs the response headers of w before they are
// written. The components are resolved against r for the req parameter.
func signResponseWriter(t *testing.T, w http.ResponseWriter, r *http.Request, status int, cfg SignConfig) {
	t.Helper()

	resp := &http.Response{StatusCode: status, Header: w.Header(), Request: r}
	require.NoError(t, SignResponse(resp, cfg))

	w.WriteHeader(status)
}

func TestNewTransport(t *testing.T) {
	clientKey, err := GenerateKey(AlgorithmEd25519, "transport-key")
	require.NoError(t, err)

	serverKey, err := GenerateKey(AlgorithmECDSAP256SHA256, "server-key")
	require.NoError(t, err)

	resolver := func(_ *http.Request, keyID string, alg Algorithm) (Key, error) {
		if keyID == "transport-key" && alg == AlgorithmEd25519 {
			return clientKey, nil
		}

		return nil, ErrInvalidKey
	}

	t.Run("nil base clones default transport", func(t *testing.T) {
		transport := NewTransport(nil, SignConfig{Key: clientKey})
		assert.NotNil(t, transport.base)
		assert.NotSame(t, http.DefaultTransport, transport.base)
	})

	t.Run("custom base is used", func(t *testing.T) {
		base := &http.Transport{IdleConnTimeout: 42 * time.Second}

		transport := NewTransport(base, SignConfig{Key: clientKey})
		assert.Same(t, base, transport.base)
	})

	t.Run("custom base with TLS config", func(t *testing.T) {
		base := &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13}}

		underlying, ok := NewTransport(base, SignConfig{Key: clientKey}).base.(*http.Transport)
		require.True(t, ok)
		assert.Equal(t, uint16(tls.VersionTLS13), underlying.TLSClientConfig.MinVersion)
	})

	t.Run("signs requests", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := VerifyRequest(r, VerifyConfig{Resolver: resolver}); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := &http.Client{Transport: NewTransport(nil, SignConfig{Key: clientKey})}

		resp, err := client.Get(server.URL + "/api/items?page=1")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("signing error is returned", func(t *testing.T) {
		client := &http.Client{Transport: NewTransport(nil, SignConfig{})}

		_, err := client.Get("http://localhost/test")
		assert.ErrorIs(t, err, ErrNoKey)
	})

	t.Run("does not mutate original request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := &http.Client{Transport: NewTransport(nil, SignConfig{Key: clientKey})}

		req, err := http.NewRequest(http.MethodGet, server.URL+"/test", nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Empty(t, req.Header.Get(HeaderSignature))
		assert.Empty(t, req.Header.Get(HeaderSignatureInput))
	})

	t.Run("digest keeps the caller body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := VerifyRequest(r, VerifyConfig{Resolver: resolver, RequireDigest: true})
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := &http.Client{Transport: NewTransport(nil, SignConfig{Key: clientKey, DigestAlgorithm: DigestSHA256})}

		req, err := http.NewRequest(http.MethodPost, server.URL+"/test", strings.NewReader("test body content"))
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := req.GetBody()
		require.NoError(t, err)

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "test body content", string(data))
	})

	t.Run("verifies responses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			signResponseWriter(t, w, r, http.StatusOK, SignConfig{
				Key:               serverKey,
				CoveredComponents: []string{"@status", "content-type", `"@method";req`, `"@path";req`},
			})
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		client := &http.Client{Transport: NewTransport(nil, SignConfig{Key: clientKey},
			WithResponseVerification(VerifyConfig{
				Resolver:           staticResolver(serverKey),
				RequiredComponents: []string{"@status"},
			}),
		)}

		resp, err := client.Get(server.URL + "/resource")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(body))
	})

	t.Run("rejects unsigned responses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := &http.Client{Transport: NewTransport(nil, SignConfig{Key: clientKey},
			WithResponseVerification(VerifyConfig{Resolver: staticResolver(serverKey)}),
		)}

		_, err := client.Get(server.URL + "/resource")
		assert.ErrorIs(t, err, ErrNoSignature)
	})

	t.Run("rejects responses signed by another key", func(t *testing.T) {
		otherKey, err := GenerateKey(AlgorithmECDSAP256SHA256, "server-key")
		require.NoError(t, err)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signResponseWriter(t, w, r, http.StatusOK, SignConfig{Key: otherKey})
		}))
		defer server.Close()

		client := &http.Client{Transport: NewTransport(nil, SignConfig{Key: clientKey},
			WithResponseVerification(VerifyConfig{Resolver: staticResolver(serverKey)}),
		)}

		_, err = client.Get(server.URL + "/resource")
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})
}
