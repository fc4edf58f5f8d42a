package sigauth

import "errors"

var (
	// ErrInvalidConfig is returned when a configuration file cannot be read
	// or fails validation.
	ErrInvalidConfig = errors.New("sigauth: invalid configuration")

	// ErrKeyNotFound is returned when no key is configured for the keyid of
	// a signature and there is no default key.
	ErrKeyNotFound = errors.New("sigauth: key not found")

	// ErrUnknownAlgorithm is returned when neither the signature nor the key
	// configuration names an algorithm.
	ErrUnknownAlgorithm = errors.New("sigauth: unknown signature algorithm")

	// ErrPolicy is returned when a signature does not satisfy the
	// configured requirements. It wraps every violation found.
	ErrPolicy = errors.New("sigauth: signature rejected by policy")

	// ErrMissingParam is returned for each required signature parameter
	// that is absent.
	ErrMissingParam = errors.New("required signature parameter missing")

	// ErrInsufficientCoverage is returned for each required component the
	// signature does not cover.
	ErrInsufficientCoverage = errors.New("required component not covered")
)
