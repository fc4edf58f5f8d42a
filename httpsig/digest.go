package httpsig

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"
	"net/http"

	"github.com/dunglas/httpsfv"
)

// DigestAlgorithm identifies the hash algorithm for Content-Digest
// per RFC 9530.
type DigestAlgorithm string

const (
	// DigestSHA256 uses SHA-256 for content digest.
	DigestSHA256 DigestAlgorithm = "sha-256"

	// DigestSHA512 uses SHA-512 for content digest.
	DigestSHA512 DigestAlgorithm = "sha-512"
)

const headerContentDigest = "content-digest"

// SetContentDigest reads the request body, computes the digest using the
// specified algorithm, sets the Content-Digest header per RFC 9530, and
// replaces the body so it can be read again.
func SetContentDigest(r *http.Request, alg DigestAlgorithm) error {
	body, err := readAndRestore(&r.Body)
	if err != nil {
		return err
	}

	if r.Header == nil {
		r.Header = make(http.Header)
	}

	return setDigestHeader(r.Header, body, alg)
}

// SetResponseContentDigest is SetContentDigest for responses.
func SetResponseContentDigest(resp *http.Response, alg DigestAlgorithm) error {
	body, err := readAndRestore(&resp.Body)
	if err != nil {
		return err
	}

	if resp.Header == nil {
		resp.Header = make(http.Header)
	}

	return setDigestHeader(resp.Header, body, alg)
}

// VerifyContentDigest verifies the Content-Digest header against the request
// body per RFC 9530. It supports multiple digest values in the header
// and verifies the first recognized algorithm.
func VerifyContentDigest(r *http.Request) error {
	if len(r.Header.Values(headerContentDigest)) == 0 {
		return ErrDigestNotFound
	}

	body, err := readAndRestore(&r.Body)
	if err != nil {
		return err
	}

	return verifyDigestHeader(r.Header, body)
}

// VerifyResponseContentDigest is VerifyContentDigest for responses.
func VerifyResponseContentDigest(resp *http.Response) error {
	if len(resp.Header.Values(headerContentDigest)) == 0 {
		return ErrDigestNotFound
	}

	body, err := readAndRestore(&resp.Body)
	if err != nil {
		return err
	}

	return verifyDigestHeader(resp.Header, body)
}

func setDigestHeader(h http.Header, body []byte, alg DigestAlgorithm) error {
	digest, err := computeDigest(body, alg)
	if err != nil {
		return err
	}

	dict := httpsfv.NewDictionary()
	dict.Add(string(alg), httpsfv.NewItem(digest))

	value, err := httpsfv.Marshal(dict)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	h.Set(headerContentDigest, value)

	return nil
}

func verifyDigestHeader(h http.Header, body []byte) error {
	dict, err := httpsfv.UnmarshalDictionary(h.Values(headerContentDigest))
	if err != nil {
		return fmt.Errorf("%w: content-digest: %w", ErrMalformedHeader, err)
	}

	for _, name := range dict.Names() {
		alg := DigestAlgorithm(name)
		if alg != DigestSHA256 && alg != DigestSHA512 {
			continue
		}

		member, _ := dict.Get(name)

		item, ok := member.(httpsfv.Item)
		if !ok {
			return fmt.Errorf("%w: content-digest %s is not a byte sequence", ErrMalformedHeader, name)
		}

		actual, ok := item.Value.([]byte)
		if !ok {
			return fmt.Errorf("%w: content-digest %s is not a byte sequence", ErrMalformedHeader, name)
		}

		expected, err := computeDigest(body, alg)
		if err != nil {
			return err
		}

		if !bytes.Equal(expected, actual) {
			return ErrDigestMismatch
		}

		return nil
	}

	return ErrUnsupportedDigest
}

// computeDigest computes the hash of data using the specified algorithm.
func computeDigest(data []byte, alg DigestAlgorithm) ([]byte, error) {
	switch alg {
	case DigestSHA256:
		h := sha256.Sum256(data)
		return h[:], nil
	case DigestSHA512:
		h := sha512.Sum512(data)
		return h[:], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDigest, alg)
	}
}

// readAndRestore reads an entire message body and replaces it with a new
// reader so the body can be consumed again downstream.
func readAndRestore(body *io.ReadCloser) ([]byte, error) {
	if *body == nil || *body == http.NoBody {
		return nil, nil
	}

	data, err := io.ReadAll(*body)
	if err != nil {
		return nil, err
	}

	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(data))

	return data, nil
}
