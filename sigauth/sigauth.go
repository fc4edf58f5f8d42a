// Package sigauth guards HTTP handlers with a signature policy: excluded
// paths, required signature parameters, required covered components, a
// maximum signature age and a set of known verification keys.
//
// Example:
//
//	cfg, err := sigauth.LoadConfig("")
//	if err != nil {
//		return err
//	}
//
//	mw, err := sigauth.Middleware(cfg, sigauth.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//
//	http.ListenAndServe(":8080", mw(handler))
package sigauth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/vitalvas/httpmsgsig/httpsig"
)

// DefaultRequestIDHeader carries the request ID used in log entries.
const DefaultRequestIDHeader = "X-Request-ID"

var timeNow = time.Now

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger for rejections and configuration warnings.
// The default logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Authenticator) {
		a.log = logger
	}
}

// WithRequestIDHeader overrides the header the request ID is read from.
func WithRequestIDHeader(name string) Option {
	return func(a *Authenticator) {
		if name != "" {
			a.requestIDHeader = name
		}
	}
}

// Authenticator verifies incoming requests against a Config.
type Authenticator struct {
	cfg             Config
	required        []httpsig.ComponentID
	keys            *keyring
	log             zerolog.Logger
	requestIDHeader string
}

// New validates cfg and returns an Authenticator enforcing it.
func New(cfg Config, opts ...Option) (*Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Authenticator{
		cfg:             cfg,
		keys:            newKeyring(cfg),
		log:             zerolog.Nop(),
		requestIDHeader: DefaultRequestIDHeader,
	}

	for _, opt := range opts {
		opt(a)
	}

	for _, raw := range cfg.CoveredComponents {
		id, err := httpsig.ParseComponentID(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		a.required = append(a.required, id)
	}

	if len(a.required) == 0 {
		a.log.Warn().Msg("Insufficient coverage by signature, no covered components are required (RFC 9421 section 7.2.1)")
	}

	if cfg.NoOlderThan == 0 {
		a.log.Warn().Msg("Risk of signature replay, signature age is not limited (RFC 9421 section 7.2.2)")
	}

	return a, nil
}

// Middleware returns an httpsig.MiddlewareFunc enforcing cfg.
func Middleware(cfg Config, opts ...Option) (httpsig.MiddlewareFunc, error) {
	a, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return a.Handler, nil
}

// Handler wraps next. Requests on excluded paths are passed through,
// verified requests reach next with their signature in the context, and
// every other request gets the configured error response.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := a.requestLogger(r)

		if a.Excluded(r) {
			log.Debug().Msg("Path excluded from signature verification")
			next.ServeHTTP(w, r)

			return
		}

		sig, err := a.Check(r)
		if err != nil {
			log.Warn().Err(err).Msg("Request signature rejected")
			a.reject(w)

			return
		}

		log.Debug().
			Str("label", sig.Label()).
			Str("keyid", sig.KeyID()).
			Msg("Request signature verified")

		next.ServeHTTP(w, r.WithContext(httpsig.ContextWithSignature(r.Context(), sig)))
	})
}

// Excluded reports whether the request path is listed in Config.Except.
func (a *Authenticator) Excluded(r *http.Request) bool {
	return slices.Contains(a.cfg.Except, r.URL.Path)
}

// Check verifies the signature of r against the policy and returns it.
func (a *Authenticator) Check(r *http.Request) (*httpsig.Signature, error) {
	sig, err := httpsig.ParseSignature(r.Header, a.cfg.Label)
	if err != nil {
		return nil, err
	}

	if err := a.checkPolicy(sig); err != nil {
		return nil, err
	}

	key, err := a.keys.resolve(sig.KeyID(), httpsig.Algorithm(sig.Algorithm()))
	if err != nil {
		return nil, err
	}

	msg, err := httpsig.NewMessage(r)
	if err != nil {
		return nil, err
	}

	if err := httpsig.Verify(key, msg, sig, httpsig.VerifyOptions{NoOlderThan: a.cfg.NoOlderThan}); err != nil {
		return nil, err
	}

	return sig, nil
}

// checkPolicy collects every parameter and coverage violation of sig.
func (a *Authenticator) checkPolicy(sig *httpsig.Signature) error {
	var result *multierror.Error

	if a.cfg.CreatedRequired {
		if _, ok, err := sig.Created(); err != nil {
			result = multierror.Append(result, err)
		} else if !ok {
			result = multierror.Append(result, fmt.Errorf("%w: created", ErrMissingParam))
		}
	}

	if a.cfg.ExpiresRequired {
		expires, ok, err := sig.Expires()

		switch {
		case err != nil:
			result = multierror.Append(result, err)
		case !ok:
			result = multierror.Append(result, fmt.Errorf("%w: expires", ErrMissingParam))
		case expires <= timeNow().Unix():
			result = multierror.Append(result, httpsig.ErrSignatureExpired)
		}
	}

	params := sig.Params()

	for _, req := range []struct {
		name     string
		required bool
	}{
		{"keyid", a.cfg.KeyIDRequired},
		{"nonce", a.cfg.NonceRequired},
		{"alg", a.cfg.AlgRequired},
		{"tag", a.cfg.TagRequired},
	} {
		if !req.required {
			continue
		}

		if _, ok := params.Get(req.name); !ok {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrMissingParam, req.name))
		}
	}

	covered := sig.ComponentIDs()

	for _, want := range a.required {
		if !slices.ContainsFunc(covered, want.Equal) {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrInsufficientCoverage, want))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrPolicy, err)
	}

	return nil
}

func (a *Authenticator) reject(w http.ResponseWriter) {
	resp := a.cfg.ErrorResponse

	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}

	w.WriteHeader(resp.Status)

	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

func (a *Authenticator) requestLogger(r *http.Request) zerolog.Logger {
	id := r.Header.Get(a.requestIDHeader)
	if id == "" {
		id = newRequestID()
	}

	return a.log.With().
		Str("request_id", id).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Logger()
}

// newRequestID returns a time-ordered UUID v7, falling back to a random
// UUID v4 when the clock sequence cannot be read.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// SignatureFromContext returns the signature verified for the request, or
// nil when the request did not pass through the middleware.
func SignatureFromContext(ctx context.Context) *httpsig.Signature {
	return httpsig.SignatureFromContext(ctx)
}
