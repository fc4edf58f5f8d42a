package httpsig

import (
	"context"
	"net/http"
)

// MiddlewareFunc wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// MiddlewareConfig configures the server-side signature verification
// middleware.
type MiddlewareConfig struct {
	// Verify configures how signatures are verified.
	Verify VerifyConfig

	// OnError is called when verification fails. When nil, a plain 401
	// Unauthorized response is sent.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

type contextKey struct{}

// Middleware returns a MiddlewareFunc that verifies HTTP message
// signatures on incoming requests per RFC 9421. The verified signature is
// available to the next handler through SignatureFromContext.
//
// It returns ErrNoResolver if VerifyConfig.Resolver is nil.
func Middleware(cfg MiddlewareConfig) (MiddlewareFunc, error) {
	if cfg.Verify.Resolver == nil {
		return nil, ErrNoResolver
	}

	onError := cfg.OnError
	if onError == nil {
		onError = defaultOnError
	}

	verifyCfg := cfg.Verify

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig, err := VerifyRequest(r, verifyCfg)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSignature(r.Context(), sig)))
		})
	}, nil
}

// ContextWithSignature returns a copy of ctx carrying sig.
func ContextWithSignature(ctx context.Context, sig *Signature) context.Context {
	return context.WithValue(ctx, contextKey{}, sig)
}

// SignatureFromContext returns the verified signature stored by
// Middleware, or nil.
func SignatureFromContext(ctx context.Context) *Signature {
	sig, _ := ctx.Value(contextKey{}).(*Signature)
	return sig
}

// defaultOnError writes a 401 Unauthorized response with no body.
func defaultOnError(w http.ResponseWriter, _ *http.Request, _ error) {
	w.WriteHeader(http.StatusUnauthorized)
}
