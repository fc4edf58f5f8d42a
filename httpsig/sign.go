package httpsig

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// nonceSize is the number of random bytes used to generate a nonce.
const nonceSize = 16

// defaultCoveredComponents are the default components signed when
// SignConfig.CoveredComponents is empty.
var defaultCoveredComponents = []string{ComponentMethod, ComponentAuthority, ComponentPath}

// defaultResponseComponents are the defaults for SignResponse.
var defaultResponseComponents = []string{ComponentStatus}

// GenerateNonce returns a cryptographically random nonce string suitable
// for use in SignConfig.Nonce. The returned value is 16 random bytes
// encoded as unpadded base64url (22 characters).
func GenerateNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SignOptions configures Sign.
type SignOptions struct {
	// Label identifies the signature. Defaults to "sig1".
	Label string

	// Created sets the created parameter. When zero, the current time is
	// used.
	Created time.Time

	// KeyID sets the keyid parameter. When empty, the key's own identifier
	// is used, and the parameter is omitted if that is empty too.
	KeyID string

	// Params are additional signature parameters, serialized after
	// created and keyid in the given order. Entries named created or keyid
	// are ignored.
	Params []Param
}

// Sign signs the covered components of msg with key.
//
// The components are validated first: @signature-params is reserved,
// every component must resolve and none may be covered twice. The
// returned signature is not attached to the message; see Message.Attach.
func Sign(key Key, msg *Message, components []string, opts SignOptions) (*Signature, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, ErrNoKey)
	}

	if msg == nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, ErrNoMessage)
	}

	if err := validateComponents(msg, components); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	created := opts.Created
	if created.IsZero() {
		created = timeNow()
	}

	list := []Param{{Name: ParamCreated, Value: created.Unix()}}

	keyID := opts.KeyID
	if keyID == "" {
		keyID = key.KeyID()
	}

	if keyID != "" {
		list = append(list, Param{Name: ParamKeyID, Value: keyID})
	}

	for _, p := range opts.Params {
		if p.Name == ParamCreated || p.Name == ParamKeyID {
			continue
		}

		list = append(list, p)
	}

	params, err := NewParams(list...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	base, err := SignatureBase(msg, components, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	value, err := key.Sign([]byte(base))
	if err != nil {
		if isKind(err) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	sig, err := NewSignature(opts.Label, components, params, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	return sig, nil
}

// SignConfig configures HTTP request and response signing per RFC 9421.
type SignConfig struct {
	// Key produces signatures. Required.
	Key Key

	// Label identifies the signature in Signature/Signature-Input headers.
	// Defaults to "sig1".
	Label string

	// CoveredComponents lists the component identifiers to include in the
	// signature base. Defaults to [ComponentMethod, ComponentAuthority,
	// ComponentPath] for requests and [ComponentStatus] for responses.
	CoveredComponents []string

	// Nonce is an optional nonce value included in signature parameters.
	Nonce string

	// Tag is an optional application-specific tag for the signature.
	Tag string

	// Created sets the signature creation time. When zero, time.Now() is
	// used.
	Created time.Time

	// Expires sets the signature expiration time. When zero, no expiration
	// is set.
	Expires time.Time

	// DigestAlgorithm, when set, causes the body digest to be computed and
	// set as Content-Digest header (RFC 9530) before signing. The
	// "content-digest" component is automatically added to covered
	// components if not already present.
	DigestAlgorithm DigestAlgorithm
}

// SignRequest signs an HTTP request in-place by adding Signature and
// Signature-Input headers per RFC 9421. Signatures already present under
// other labels are kept.
func SignRequest(r *http.Request, cfg SignConfig) error {
	if r == nil {
		return fmt.Errorf("%w: %w", ErrSigning, ErrNoMessage)
	}

	if cfg.DigestAlgorithm != "" {
		if err := SetContentDigest(r, cfg.DigestAlgorithm); err != nil {
			return fmt.Errorf("%w: %w", ErrSigning, err)
		}
	}

	msg, err := NewMessage(r)
	if err != nil {
		return err
	}

	return signMessage(msg, cfg, defaultCoveredComponents)
}

// SignResponse signs an HTTP response in-place. Components with the req
// parameter are resolved against resp.Request.
func SignResponse(resp *http.Response, cfg SignConfig) error {
	if resp == nil {
		return fmt.Errorf("%w: %w", ErrSigning, ErrNoMessage)
	}

	if cfg.DigestAlgorithm != "" {
		if err := SetResponseContentDigest(resp, cfg.DigestAlgorithm); err != nil {
			return fmt.Errorf("%w: %w", ErrSigning, err)
		}
	}

	msg, err := NewMessage(resp)
	if err != nil {
		return err
	}

	return signMessage(msg, cfg, defaultResponseComponents)
}

func signMessage(msg *Message, cfg SignConfig, defaults []string) error {
	if cfg.Key == nil {
		return fmt.Errorf("%w: %w", ErrSigning, ErrNoKey)
	}

	components := slices.Clone(cfg.CoveredComponents)
	if len(components) == 0 {
		components = slices.Clone(defaults)
	}

	if cfg.DigestAlgorithm != "" && !slices.Contains(components, headerContentDigest) {
		components = append(components, headerContentDigest)
	}

	var extra []Param

	if !cfg.Expires.IsZero() {
		extra = append(extra, Param{Name: ParamExpires, Value: cfg.Expires.Unix()})
	}

	if cfg.Nonce != "" {
		extra = append(extra, Param{Name: ParamNonce, Value: cfg.Nonce})
	}

	extra = append(extra, Param{Name: ParamAlg, Value: cfg.Key.Algorithm()})

	if cfg.Tag != "" {
		extra = append(extra, Param{Name: ParamTag, Value: cfg.Tag})
	}

	sig, err := Sign(cfg.Key, msg, components, SignOptions{
		Label:   cfg.Label,
		Created: cfg.Created,
		Params:  extra,
	})
	if err != nil {
		return err
	}

	return msg.Attach(sig)
}
