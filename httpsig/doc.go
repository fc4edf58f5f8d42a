// Package httpsig implements HTTP Message Signatures per RFC 9421 with
// optional Content-Digest support per RFC 9530.
//
// The engine is built from small immutable values: ComponentID names one
// covered component, Message resolves components against a request or
// response through an Adapter, SignatureBase canonicalizes them, Signature
// holds one signature and its two header representations, and Key signs
// and verifies with one algorithm. Sign and Verify tie them together.
// SignRequest, VerifyRequest, Transport and Middleware cover the common
// net/http cases.
//
// # Supported Algorithms
//
// Six signature algorithms are supported:
//
//   - ed25519 (Edwards-Curve DSA, also as JWK)
//   - ecdsa-p256-sha256 (ECDSA P-256)
//   - ecdsa-p384-sha384 (ECDSA P-384)
//   - rsa-pss-sha512 (RSASSA-PSS)
//   - rsa-v1_5-sha256 (RSASSA-PKCS1-v1_5)
//   - hmac-sha256 (HMAC)
//
// # Signing
//
// Sign works on any message with a registered adapter:
//
//	key, err := httpsig.ParsePEMKey(httpsig.AlgorithmEd25519, pemBytes, "my-key-id")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	msg, err := httpsig.NewMessage(req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sig, err := httpsig.Sign(key, msg, []string{"@method", "@authority", "date"}, httpsig.SignOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = msg.Attach(sig)
//
// SignRequest does the same in one call and adds the alg parameter:
//
//	err = httpsig.SignRequest(req, httpsig.SignConfig{
//	    Key:               key,
//	    CoveredComponents: []string{httpsig.ComponentMethod, httpsig.ComponentAuthority, httpsig.ComponentPath},
//	})
//
// # Verifying
//
//	sig, err := httpsig.ParseSignature(req.Header, "sig1")
//	if err != nil {
//	    return err
//	}
//
//	err = httpsig.Verify(key, msg, sig, httpsig.VerifyOptions{NoOlderThan: 5 * time.Minute})
//
// VerifyRequest looks the key up through a KeyResolver:
//
//	resolver := func(r *http.Request, keyID string, alg httpsig.Algorithm) (httpsig.Key, error) {
//	    return keys[keyID], nil
//	}
//
//	sig, err := httpsig.VerifyRequest(req, httpsig.VerifyConfig{
//	    Resolver:           resolver,
//	    RequiredComponents: []string{httpsig.ComponentMethod, httpsig.ComponentAuthority},
//	    MaxAge:             5 * time.Minute,
//	})
//
// # Custom Transports
//
// Request and response types of other HTTP libraries are supported by
// registering an adapter at init time:
//
//	func init() {
//	    httpsig.RegisterAdapter(func(c *fasthttp.RequestCtx) (httpsig.Adapter, error) {
//	        return &fastAdapter{c: c}, nil
//	    })
//	}
//
// # Client Transport
//
// NewTransport creates an http.RoundTripper that automatically signs all
// outgoing requests, and optionally verifies response signatures:
//
//	client := &http.Client{
//	    Transport: httpsig.NewTransport(nil, httpsig.SignConfig{Key: key},
//	        httpsig.WithResponseVerification(httpsig.VerifyConfig{Resolver: resolver}),
//	    ),
//	}
//
// # Server Middleware
//
// Middleware verifies signatures on incoming requests and stores the
// verified signature in the request context:
//
//	mw, err := httpsig.Middleware(httpsig.MiddlewareConfig{
//	    Verify: httpsig.VerifyConfig{Resolver: resolver},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.Handle("/", mw(handler))
//
// # Content-Digest
//
//	// Standalone usage:
//	err := httpsig.SetContentDigest(req, httpsig.DigestSHA256)
//
//	// Integrated with signing (adds Content-Digest and includes it
//	// in covered components automatically):
//	err := httpsig.SignRequest(req, httpsig.SignConfig{
//	    Key:             key,
//	    DigestAlgorithm: httpsig.DigestSHA256,
//	})
package httpsig
