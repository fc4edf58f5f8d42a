package httpsig

import "net/http"

// Transport is an http.RoundTripper that signs outgoing requests using
// HTTP Message Signatures (RFC 9421) and optionally verifies the
// signatures of the responses.
//
// Use NewTransport to create a Transport with a configured *http.Transport
// for proxy, TLS, and timeout settings.
type Transport struct {
	base   http.RoundTripper
	config SignConfig
	verify *VerifyConfig
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithResponseVerification makes the Transport verify every response
// signature with cfg. Responses that fail verification are closed and the
// verification error is returned from RoundTrip.
func WithResponseVerification(cfg VerifyConfig) TransportOption {
	return func(t *Transport) {
		t.verify = &cfg
	}
}

// NewTransport creates a signing Transport that delegates to base after
// signing each request. When base is nil, a clone of http.DefaultTransport
// is used, giving an independent connection pool with default proxy, TLS,
// and timeout settings.
//
// Configure base for custom proxy (HTTP/SOCKS), TLS, timeouts, and
// connection pool settings:
//
//	base := &http.Transport{
//	    Proxy:           http.ProxyFromEnvironment,
//	    TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13},
//	    IdleConnTimeout: 90 * time.Second,
//	}
//	transport := httpsig.NewTransport(base, httpsig.SignConfig{Key: key})
func NewTransport(base *http.Transport, cfg SignConfig, opts ...TransportOption) *Transport {
	var rt http.RoundTripper
	if base != nil {
		rt = base
	} else {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	t := &Transport{
		base:   rt,
		config: cfg,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// RoundTrip signs the request and then delegates to the base transport.
// The original request is cloned before signing to avoid mutation.
// When GetBody is available, the clone receives its own body copy so
// that digest computation does not consume the caller's body.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if clone.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		clone.Body = body
	}

	if err := SignRequest(clone, t.config); err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(clone)
	if err != nil || t.verify == nil {
		return resp, err
	}

	if resp.Request == nil {
		resp.Request = clone
	}

	if _, err := VerifyResponse(resp, *t.verify); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}
