package httpsig

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	key, err := GenerateKey(AlgorithmEd25519, "mw-key")
	require.NoError(t, err)

	resolver := func(_ *http.Request, keyID string, alg Algorithm) (Key, error) {
		if keyID == "mw-key" && alg == AlgorithmEd25519 {
			return key, nil
		}

		return nil, ErrInvalidKey
	}

	newRouter := func(t *testing.T, cfg MiddlewareConfig) http.Handler {
		t.Helper()

		mw, err := Middleware(cfg)
		require.NoError(t, err)

		mux := http.NewServeMux()
		mux.HandleFunc("GET /api/test", func(w http.ResponseWriter, r *http.Request) {
			sig := SignatureFromContext(r.Context())
			if sig == nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-Key-Id", sig.KeyID())
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("POST /api/data", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		return mw(mux)
	}

	t.Run("nil resolver", func(t *testing.T) {
		_, err := Middleware(MiddlewareConfig{})
		assert.ErrorIs(t, err, ErrNoResolver)
	})

	t.Run("valid signed request passes through", func(t *testing.T) {
		handler := newRouter(t, MiddlewareConfig{Verify: VerifyConfig{Resolver: resolver}})

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Host = "example.com"
		require.NoError(t, SignRequest(req, SignConfig{Key: key}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "mw-key", w.Header().Get("X-Key-Id"))
	})

	t.Run("unsigned request returns 401", func(t *testing.T) {
		handler := newRouter(t, MiddlewareConfig{Verify: VerifyConfig{Resolver: resolver}})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("tampered request returns 401", func(t *testing.T) {
		handler := newRouter(t, MiddlewareConfig{Verify: VerifyConfig{Resolver: resolver}})

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Host = "example.com"
		require.NoError(t, SignRequest(req, SignConfig{Key: key}))

		req.Host = "attacker.com"

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("custom error handler", func(t *testing.T) {
		var captured error

		handler := newRouter(t, MiddlewareConfig{
			Verify: VerifyConfig{Resolver: resolver},
			OnError: func(w http.ResponseWriter, _ *http.Request, err error) {
				captured = err
				w.WriteHeader(http.StatusForbidden)
			},
		})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.ErrorIs(t, captured, ErrNoSignature)
	})

	t.Run("end to end with transport", func(t *testing.T) {
		server := httptest.NewServer(newRouter(t, MiddlewareConfig{
			Verify: VerifyConfig{Resolver: resolver, RequireDigest: true},
		}))
		defer server.Close()

		client := &http.Client{Transport: NewTransport(nil, SignConfig{Key: key, DigestAlgorithm: DigestSHA256})}

		resp, err := client.Post(server.URL+"/api/data", "application/json", strings.NewReader(`{"key":"value"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestSignatureContext(t *testing.T) {
	assert.Nil(t, SignatureFromContext(context.Background()))

	sig, err := NewSignature("sig1", []string{"@method"}, mustParams(t), []byte("x"))
	require.NoError(t, err)

	ctx := ContextWithSignature(context.Background(), sig)
	assert.Same(t, sig, SignatureFromContext(ctx))
}
