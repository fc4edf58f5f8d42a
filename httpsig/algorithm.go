package httpsig

import (
	"crypto"
	"fmt"
)

// Algorithm identifies the HTTP message signature algorithm per RFC 9421
// Section 3.3.
type Algorithm string

const (
	// AlgorithmRSAPSSSHA512 is RSASSA-PSS using SHA-512.
	AlgorithmRSAPSSSHA512 Algorithm = "rsa-pss-sha512"

	// AlgorithmRSAv15SHA256 is RSASSA-PKCS1-v1_5 using SHA-256.
	AlgorithmRSAv15SHA256 Algorithm = "rsa-v1_5-sha256"

	// AlgorithmHMACSHA256 is HMAC using SHA-256.
	AlgorithmHMACSHA256 Algorithm = "hmac-sha256"

	// AlgorithmECDSAP256SHA256 is ECDSA using curve P-256 and SHA-256.
	AlgorithmECDSAP256SHA256 Algorithm = "ecdsa-p256-sha256"

	// AlgorithmECDSAP384SHA384 is ECDSA using curve P-384 and SHA-384.
	AlgorithmECDSAP384SHA384 Algorithm = "ecdsa-p384-sha384"

	// AlgorithmEd25519 is Edwards-Curve Digital Signature Algorithm
	// using curve 25519.
	AlgorithmEd25519 Algorithm = "ed25519"
)

var algorithms = []Algorithm{
	AlgorithmRSAPSSSHA512,
	AlgorithmRSAv15SHA256,
	AlgorithmHMACSHA256,
	AlgorithmECDSAP256SHA256,
	AlgorithmECDSAP384SHA384,
	AlgorithmEd25519,
}

// ParseAlgorithm returns the algorithm registered under name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, alg := range algorithms {
		if string(alg) == name {
			return alg, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// String returns the string representation of the algorithm as registered
// in the HTTP Signature Algorithms Registry.
func (a Algorithm) String() string {
	return string(a)
}

// digest returns the hash the algorithm is defined with. Ed25519 has none.
func (a Algorithm) digest() crypto.Hash {
	switch a {
	case AlgorithmRSAPSSSHA512:
		return crypto.SHA512
	case AlgorithmRSAv15SHA256, AlgorithmHMACSHA256, AlgorithmECDSAP256SHA256:
		return crypto.SHA256
	case AlgorithmECDSAP384SHA384:
		return crypto.SHA384
	default:
		return 0
	}
}
