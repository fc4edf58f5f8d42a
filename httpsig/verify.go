package httpsig

import (
	"fmt"
	"net/http"
	"time"
)

// KeyResolver returns the Key for the given key ID and algorithm.
// It is called during verification to look up the appropriate key.
// The request is provided for context (e.g., to select keys based on
// the request host or path). alg is empty when the signature has no alg
// parameter.
type KeyResolver func(r *http.Request, keyID string, alg Algorithm) (Key, error)

// VerifyOptions configures Verify.
type VerifyOptions struct {
	// NoOlderThan rejects signatures whose created parameter is older than
	// this duration. Zero disables the check.
	NoOlderThan time.Duration
}

// Verify checks sig against msg with key.
//
// The covered components are validated as for Sign, the signature age is
// checked when opts.NoOlderThan is set, then the signature base is rebuilt
// from the signature's own parameters and verified.
func Verify(key Key, msg *Message, sig *Signature, opts VerifyOptions) error {
	switch {
	case key == nil:
		return fmt.Errorf("%w: %w", ErrVerify, ErrNoKey)
	case msg == nil:
		return fmt.Errorf("%w: %w", ErrVerify, ErrNoMessage)
	case sig == nil:
		return fmt.Errorf("%w: %w", ErrVerify, ErrNoSignature)
	}

	if err := validateComponents(msg, sig.Components()); err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}

	if opts.NoOlderThan > 0 {
		older, err := sig.OlderThan(opts.NoOlderThan)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVerify, err)
		}

		if older {
			return fmt.Errorf("%w: %w: older than %s", ErrVerify, ErrSignatureExpired, opts.NoOlderThan)
		}
	}

	base, err := signatureBase(msg, sig.ids, sig.params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}

	if err := key.Verify([]byte(base), sig.value); err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}

	return nil
}

// VerifyConfig configures HTTP request and response signature verification
// per RFC 9421.
type VerifyConfig struct {
	// Resolver looks up a Key for a given key ID and algorithm.
	// Required.
	Resolver KeyResolver

	// Label identifies which signature to verify. When empty, the message
	// must carry exactly one signature.
	Label string

	// RequiredComponents lists component identifiers that must be present
	// in the signature's covered components. Verification fails if any
	// required component is missing.
	RequiredComponents []string

	// MaxAge is the maximum acceptable age of the signature. When non-zero,
	// signatures older than MaxAge, or created in the future, are rejected.
	// Requires the "created" parameter in the signature.
	MaxAge time.Duration

	// RequireDigest, when true, requires a Content-Digest header and
	// verifies it against the body before signature verification.
	RequireDigest bool
}

// VerifyRequest verifies an HTTP request signature per RFC 9421 and returns
// the verified signature.
func VerifyRequest(r *http.Request, cfg VerifyConfig) (*Signature, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, ErrNoResolver)
	}

	if r == nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, ErrNoMessage)
	}

	if cfg.RequireDigest {
		if err := VerifyContentDigest(r); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVerify, err)
		}
	}

	msg, err := NewMessage(r)
	if err != nil {
		return nil, err
	}

	return verifyMessage(msg, r.Header, r, cfg)
}

// VerifyResponse verifies an HTTP response signature per RFC 9421 and
// returns the verified signature. resp.Request is passed to the resolver
// and used for components with the req parameter.
func VerifyResponse(resp *http.Response, cfg VerifyConfig) (*Signature, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, ErrNoResolver)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, ErrNoMessage)
	}

	if cfg.RequireDigest {
		if err := VerifyResponseContentDigest(resp); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVerify, err)
		}
	}

	msg, err := NewMessage(resp)
	if err != nil {
		return nil, err
	}

	return verifyMessage(msg, resp.Header, resp.Request, cfg)
}

func verifyMessage(msg *Message, h http.Header, r *http.Request, cfg VerifyConfig) (*Signature, error) {
	sig, err := ParseSignature(h, cfg.Label)
	if err != nil {
		return nil, err
	}

	if err := checkRequired(sig, cfg.RequiredComponents); err != nil {
		return nil, err
	}

	if err := checkTimestamps(sig, cfg.MaxAge); err != nil {
		return nil, err
	}

	alg := Algorithm(sig.Algorithm())

	key, err := cfg.Resolver(r, sig.KeyID(), alg)
	if err != nil {
		if isKind(err) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrVerify, err)
	}

	if key == nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, ErrNoKey)
	}

	if alg != "" && alg != key.Algorithm() {
		return nil, fmt.Errorf("%w: %w: %s != %s", ErrVerify, ErrAlgorithmMismatch, alg, key.Algorithm())
	}

	if err := Verify(key, msg, sig, VerifyOptions{NoOlderThan: cfg.MaxAge}); err != nil {
		return nil, err
	}

	return sig, nil
}

func checkRequired(sig *Signature, required []string) error {
	for _, raw := range required {
		want, err := ParseComponentID(raw)
		if err != nil {
			return err
		}

		found := false
		for _, id := range sig.ids {
			if id.Equal(want) {
				found = true
				break
			}
		}

		if !found {
			return fmt.Errorf("%w: %w: %s", ErrVerify, ErrRequiredComponent, raw)
		}
	}

	return nil
}

func checkTimestamps(sig *Signature, maxAge time.Duration) error {
	now := timeNow().Unix()

	expires, ok, err := sig.Expires()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}

	if ok && now > expires {
		return fmt.Errorf("%w: %w", ErrVerify, ErrSignatureExpired)
	}

	if maxAge <= 0 {
		return nil
	}

	created, ok, err := sig.Created()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}

	if !ok {
		return fmt.Errorf("%w: %w", ErrVerify, ErrCreatedRequired)
	}

	if created > now {
		return fmt.Errorf("%w: %w: created in the future", ErrVerify, ErrSignatureExpired)
	}

	return nil
}
