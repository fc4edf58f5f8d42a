package httpsig

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Size of generated HMAC secrets in bytes.
const generatedHMACKeyBytes = 64

// NewKey creates a key for the named algorithm from raw key material, using
// the digest the algorithm is registered with.
func NewKey(alg Algorithm, material any, keyID string) (Key, error) {
	opts := KeyOptions{ID: keyID, Digest: alg.digest()}

	switch alg {
	case AlgorithmRSAPSSSHA512:
		return NewRSAPSSKey(material, opts)
	case AlgorithmRSAv15SHA256:
		return NewRSAKey(material, opts)
	case AlgorithmHMACSHA256:
		secret, ok := material.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: %w: unexpected hmac key type %T", ErrConstruction, ErrInvalidKey, material)
		}

		return NewHMACKey(secret, opts)
	case AlgorithmECDSAP256SHA256, AlgorithmECDSAP384SHA384:
		k, err := NewECDSAKey(material, opts)
		if err != nil {
			return nil, err
		}

		if k.Algorithm() != alg {
			return nil, fmt.Errorf("%w: %w: key curve does not match %s", ErrConstruction, ErrInvalidKey, alg)
		}

		return k, nil
	case AlgorithmEd25519:
		return NewEd25519Key(material, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// ParsePEMKey creates a key for the named algorithm from PEM encoded
// material. PKCS#1, PKCS#8, SEC 1 and PKIX blocks are accepted, as well as
// certificates. For hmac-sha256 the material is the raw shared secret.
func ParsePEMKey(alg Algorithm, data []byte, keyID string) (Key, error) {
	if _, err := ParseAlgorithm(string(alg)); err != nil {
		return nil, err
	}

	if alg == AlgorithmHMACSHA256 {
		return NewKey(alg, data, keyID)
	}

	material, err := parsePEM(data)
	if err != nil {
		return nil, err
	}

	return NewKey(alg, material, keyID)
}

// GenerateKey creates a new private key for the named algorithm. RSA keys
// are 2048 bits and HMAC secrets 64 bytes.
func GenerateKey(alg Algorithm, keyID string) (Key, error) {
	var (
		material any
		err      error
	)

	switch alg {
	case AlgorithmRSAPSSSHA512, AlgorithmRSAv15SHA256:
		material, err = rsa.GenerateKey(rand.Reader, minRSAKeyBits)
	case AlgorithmHMACSHA256:
		secret := make([]byte, generatedHMACKeyBytes)
		_, err = rand.Read(secret)
		material = secret
	case AlgorithmECDSAP256SHA256:
		material, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case AlgorithmECDSAP384SHA384:
		material, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case AlgorithmEd25519:
		_, material, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}

	return NewKey(alg, material, keyID)
}

func parsePEM(data []byte) (any, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: %w: no PEM block found", ErrConstruction, ErrInvalidKey)
	}

	var (
		material any
		err      error
	)

	switch block.Type {
	case "RSA PRIVATE KEY":
		material, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "RSA PUBLIC KEY":
		material, err = x509.ParsePKCS1PublicKey(block.Bytes)
	case "EC PRIVATE KEY":
		material, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		material, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case "PUBLIC KEY":
		material, err = x509.ParsePKIXPublicKey(block.Bytes)
	case "CERTIFICATE":
		var cert *x509.Certificate
		if cert, err = x509.ParseCertificate(block.Bytes); err == nil {
			material = cert.PublicKey
		}
	default:
		return nil, fmt.Errorf("%w: %w: unsupported PEM block %q", ErrConstruction, ErrInvalidKey, block.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrConstruction, ErrInvalidKey, err)
	}

	return material, nil
}
