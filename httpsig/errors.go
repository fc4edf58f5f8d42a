package httpsig

import "errors"

// Error kinds. Errors from constructors, SignatureBase and the Sign and
// Verify families wrap exactly one of these, so callers can tell at which
// stage a failure happened. The Content-Digest helpers return
// digest sentinels only, and Middleware returns ErrNoResolver unwrapped.
var (
	// ErrConstruction is returned when a component identifier, message,
	// signature or key cannot be built from its inputs.
	ErrConstruction = errors.New("httpsig: construction failed")

	// ErrSigning is returned when a message cannot be signed.
	ErrSigning = errors.New("httpsig: cannot sign message")

	// ErrVerify is returned when a signature cannot be verified.
	ErrVerify = errors.New("httpsig: cannot verify signature")

	// ErrUnsupportedAlgorithm is returned for unknown algorithm names and
	// unavailable digests.
	ErrUnsupportedAlgorithm = errors.New("httpsig: unsupported algorithm")
)

// Configuration errors.
var (
	// ErrNoKey is returned when signing or verifying without a key.
	ErrNoKey = errors.New("key must not be nil")

	// ErrNoMessage is returned when signing or verifying without a message.
	ErrNoMessage = errors.New("message must not be nil")

	// ErrNoResolver is returned when VerifyConfig has no KeyResolver configured.
	ErrNoResolver = errors.New("httpsig: key resolver must not be nil")
)

// Component errors.
var (
	// ErrInvalidComponentID is returned when a component identifier cannot
	// be parsed.
	ErrInvalidComponentID = errors.New("invalid component identifier")

	// ErrInvalidComponent is returned when the reserved @signature-params
	// component is listed as a covered component.
	ErrInvalidComponent = errors.New("invalid component in signature input")

	// ErrMissingComponent is returned when a covered component has no value
	// in the message.
	ErrMissingComponent = errors.New("missing component")

	// ErrDuplicatedComponent is returned when the same component is covered
	// more than once.
	ErrDuplicatedComponent = errors.New("duplicated component in signature input")
)

// Message errors.
var (
	// ErrUnsupportedMessage is returned when no adapter is registered for a
	// transport type.
	ErrUnsupportedMessage = errors.New("unsupported message class")

	// ErrInvalidMessage is returned when an adapter is neither a request nor
	// a response, or when an attached request is not a request.
	ErrInvalidMessage = errors.New("message must be an HTTP request or response")
)

// Signature errors.
var (
	// ErrNoSignature is returned when the Signature or Signature-Input
	// header is absent or empty.
	ErrNoSignature = errors.New("no signature headers found")

	// ErrMalformedHeader is returned when Signature or Signature-Input
	// headers cannot be parsed.
	ErrMalformedHeader = errors.New("malformed signature header")

	// ErrMultipleSignatures is returned when several signatures are present
	// and no label was selected.
	ErrMultipleSignatures = errors.New("multiple signatures found but none was selected")

	// ErrSignatureNotFound is returned when the selected label is not
	// present in both signature headers.
	ErrSignatureNotFound = errors.New("signature label not found")

	// ErrInvalidCoveredComponents is returned when the Signature-Input
	// member is not an inner list.
	ErrInvalidCoveredComponents = errors.New("unexpected value for covered components")

	// ErrInvalidParams is returned when a signature parameter has a value
	// that cannot be serialized as a structured field.
	ErrInvalidParams = errors.New("invalid signature parameters")

	// ErrMalformedCreated is returned when the created parameter is not an
	// integer.
	ErrMalformedCreated = errors.New("created parameter is not an integer")

	// ErrCreatedRequired is returned when an age check is requested but the
	// signature does not contain a created parameter.
	ErrCreatedRequired = errors.New("created parameter required")

	// ErrSignatureExpired is returned when the signature has exceeded its
	// maximum allowed age or its expires time.
	ErrSignatureExpired = errors.New("signature expired")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrAlgorithmMismatch is returned when the alg parameter does not match
	// the algorithm of the verification key.
	ErrAlgorithmMismatch = errors.New("signature algorithm does not match key")

	// ErrRequiredComponent is returned when a component required by
	// VerifyConfig is not covered by the signature.
	ErrRequiredComponent = errors.New("required component not covered by signature")
)

// Key material errors.
var (
	// ErrInvalidKey is returned when key material is invalid (nil, wrong
	// curve, insufficient size, etc.).
	ErrInvalidKey = errors.New("invalid key material")

	// ErrMissingDigest is returned when a digest based key is built without
	// a digest algorithm.
	ErrMissingDigest = errors.New("no digest algorithm was selected")

	// ErrKeyUnusable is returned when a key cannot perform the requested
	// operation, e.g. signing with a public key.
	ErrKeyUnusable = errors.New("key cannot be used for this operation")

	// ErrInvalidSignatureLength is returned when a fixed width signature has
	// the wrong size.
	ErrInvalidSignatureLength = errors.New("cannot verify invalid signature")
)

// Digest errors.
var (
	// ErrDigestMismatch is returned when Content-Digest verification fails.
	ErrDigestMismatch = errors.New("httpsig: content digest mismatch")

	// ErrDigestNotFound is returned when Content-Digest header is required
	// but not present.
	ErrDigestNotFound = errors.New("httpsig: content digest not found")

	// ErrUnsupportedDigest is returned when the digest algorithm is not
	// supported.
	ErrUnsupportedDigest = errors.New("httpsig: unsupported digest algorithm")
)

// isKind reports whether err already carries one of the error kinds.
func isKind(err error) bool {
	return errors.Is(err, ErrConstruction) ||
		errors.Is(err, ErrSigning) ||
		errors.Is(err, ErrVerify) ||
		errors.Is(err, ErrUnsupportedAlgorithm)
}
