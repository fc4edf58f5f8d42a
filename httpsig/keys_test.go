package httpsig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRSAKey = sync.OnceValue(func() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	return k
})

func rfcHMACSecret(t *testing.T) []byte {
	t.Helper()

	secret, err := base64.StdEncoding.DecodeString(rfcSharedSecret)
	require.NoError(t, err)

	return secret
}

func TestGenerateKey(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateKey(alg, "generated")
			require.NoError(t, err)

			assert.Equal(t, alg, key.Algorithm())
			assert.Equal(t, "generated", key.KeyID())
			assert.True(t, key.IsPrivate())

			data := []byte("signature base")
			sig, err := key.Sign(data)
			require.NoError(t, err)

			require.NoError(t, key.Verify(data, sig))
			assert.Error(t, key.Verify([]byte("tampered"), sig))
		})
	}

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := GenerateKey("rsa-sha1", "k")
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestEd25519Key(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	t.Run("private and public", func(t *testing.T) {
		signer, err := NewEd25519Key(priv, KeyOptions{ID: "k"})
		require.NoError(t, err)

		verifier, err := NewEd25519Key(pub, KeyOptions{ID: "k"})
		require.NoError(t, err)

		assert.True(t, signer.IsPrivate())
		assert.False(t, verifier.IsPrivate())
		assert.True(t, verifier.IsPublic())

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify([]byte("message"), sig))
		assert.ErrorIs(t, verifier.Verify([]byte("other"), sig), ErrSignatureInvalid)
	})

	t.Run("pointer material", func(t *testing.T) {
		k, err := NewEd25519Key(&priv, KeyOptions{})
		require.NoError(t, err)
		assert.True(t, k.IsPrivate())
	})

	t.Run("public key cannot sign", func(t *testing.T) {
		verifier, err := NewEd25519Key(pub, KeyOptions{})
		require.NoError(t, err)

		_, err = verifier.Sign([]byte("message"))
		assert.ErrorIs(t, err, ErrSigning)
		assert.ErrorIs(t, err, ErrKeyUnusable)
	})

	t.Run("wrong signature length", func(t *testing.T) {
		verifier, err := NewEd25519Key(pub, KeyOptions{})
		require.NoError(t, err)
		assert.ErrorIs(t, verifier.Verify([]byte("message"), []byte{1, 2, 3}), ErrInvalidSignatureLength)
	})

	t.Run("invalid sizes", func(t *testing.T) {
		_, err := NewEd25519Key(ed25519.PrivateKey(make([]byte, 10)), KeyOptions{})
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewEd25519Key(ed25519.PublicKey(make([]byte, 10)), KeyOptions{})
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = NewEd25519KeyFromSeed(make([]byte, 5), KeyOptions{})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("from seed is deterministic", func(t *testing.T) {
		seed := make([]byte, ed25519.SeedSize)

		a, err := NewEd25519KeyFromSeed(seed, KeyOptions{})
		require.NoError(t, err)

		b, err := NewEd25519KeyFromSeed(seed, KeyOptions{})
		require.NoError(t, err)

		sa, err := a.Sign([]byte("x"))
		require.NoError(t, err)

		sb, err := b.Sign([]byte("x"))
		require.NoError(t, err)

		assert.Equal(t, sa, sb)
	})

	t.Run("unexpected material", func(t *testing.T) {
		_, err := NewEd25519Key("secret", KeyOptions{})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestECDSAKey(t *testing.T) {
	tests := []struct {
		name   string
		curve  elliptic.Curve
		digest crypto.Hash
		alg    Algorithm
		size   int
	}{
		{name: "p256", curve: elliptic.P256(), digest: crypto.SHA256, alg: AlgorithmECDSAP256SHA256, size: 64},
		{name: "p384", curve: elliptic.P384(), digest: crypto.SHA384, alg: AlgorithmECDSAP384SHA384, size: 96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priv, err := ecdsa.GenerateKey(tt.curve, rand.Reader)
			require.NoError(t, err)

			signer, err := NewECDSAKey(priv, KeyOptions{ID: "k", Digest: tt.digest})
			require.NoError(t, err)
			assert.Equal(t, tt.alg, signer.Algorithm())

			verifier, err := NewECDSAKey(&priv.PublicKey, KeyOptions{ID: "k", Digest: tt.digest})
			require.NoError(t, err)

			sig, err := signer.Sign([]byte("message"))
			require.NoError(t, err)
			assert.Len(t, sig, tt.size, "r||s encoding")

			assert.NoError(t, verifier.Verify([]byte("message"), sig))
			assert.ErrorIs(t, verifier.Verify([]byte("other"), sig), ErrSignatureInvalid)
			assert.ErrorIs(t, verifier.Verify([]byte("message"), sig[1:]), ErrInvalidSignatureLength)

			_, err = verifier.Sign([]byte("message"))
			assert.ErrorIs(t, err, ErrKeyUnusable)
		})
	}

	t.Run("digest must match curve", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		_, err = NewECDSAKey(priv, KeyOptions{Digest: crypto.SHA384})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("unsupported curve", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
		require.NoError(t, err)

		_, err = NewECDSAKey(priv, KeyOptions{Digest: crypto.SHA512})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("missing digest", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		_, err = NewECDSAKey(priv, KeyOptions{})
		assert.ErrorIs(t, err, ErrMissingDigest)
	})

	t.Run("fixed and DER encodings convert", func(t *testing.T) {
		fixed := make([]byte, 64)
		fixed[31] = 1
		fixed[32] = 0x80

		der, err := fixedToDER(fixed, 32)
		require.NoError(t, err)

		back, err := derToFixed(der, 32)
		require.NoError(t, err)
		assert.Equal(t, fixed, back)
	})

	t.Run("malformed DER", func(t *testing.T) {
		_, err := derToFixed([]byte{0x30, 0x01}, 32)
		assert.ErrorIs(t, err, ErrSigning)
	})
}

func TestRSAKey(t *testing.T) {
	priv := testRSAKey()

	t.Run("pkcs1 v1.5", func(t *testing.T) {
		signer, err := NewRSAKey(priv, KeyOptions{ID: "k", Digest: crypto.SHA256})
		require.NoError(t, err)
		assert.Equal(t, AlgorithmRSAv15SHA256, signer.Algorithm())

		verifier, err := NewRSAKey(&priv.PublicKey, KeyOptions{ID: "k", Digest: crypto.SHA256})
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)

		assert.NoError(t, verifier.Verify([]byte("message"), sig))
		assert.ErrorIs(t, verifier.Verify([]byte("other"), sig), ErrSignatureInvalid)

		_, err = verifier.Sign([]byte("message"))
		assert.ErrorIs(t, err, ErrKeyUnusable)
	})

	t.Run("pss", func(t *testing.T) {
		signer, err := NewRSAPSSKey(priv, KeyOptions{Digest: crypto.SHA512})
		require.NoError(t, err)
		assert.Equal(t, AlgorithmRSAPSSSHA512, signer.Algorithm())

		verifier, err := NewRSAPSSKey(&priv.PublicKey, KeyOptions{Digest: crypto.SHA512})
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)

		assert.NoError(t, verifier.Verify([]byte("message"), sig))
		assert.ErrorIs(t, verifier.Verify([]byte("other"), sig), ErrSignatureInvalid)
	})

	t.Run("pss salt length is detected", func(t *testing.T) {
		signer, err := NewRSAPSSKey(priv, KeyOptions{Digest: crypto.SHA512, SaltLength: 32})
		require.NoError(t, err)

		verifier, err := NewRSAPSSKey(&priv.PublicKey, KeyOptions{Digest: crypto.SHA512})
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify([]byte("message"), sig))
	})

	t.Run("small key rejected", func(t *testing.T) {
		small, err := rsa.GenerateKey(rand.Reader, 1024)
		require.NoError(t, err)

		_, err = NewRSAKey(small, KeyOptions{Digest: crypto.SHA256})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("nil material", func(t *testing.T) {
		var nilKey *rsa.PrivateKey

		_, err := NewRSAKey(nilKey, KeyOptions{Digest: crypto.SHA256})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("unsupported digest", func(t *testing.T) {
		_, err := NewRSAKey(priv, KeyOptions{Digest: crypto.MD5})
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestHMACKey(t *testing.T) {
	secret := rfcHMACSecret(t)

	key, err := NewHMACKey(secret, KeyOptions{ID: "test-shared-secret", Digest: crypto.SHA256})
	require.NoError(t, err)

	assert.Equal(t, AlgorithmHMACSHA256, key.Algorithm())
	assert.True(t, key.IsPrivate())
	assert.False(t, key.IsPublic())

	sig, err := key.Sign([]byte("message"))
	require.NoError(t, err)
	assert.Len(t, sig, 32)

	assert.NoError(t, key.Verify([]byte("message"), sig))
	assert.ErrorIs(t, key.Verify([]byte("other"), sig), ErrSignatureInvalid)
	assert.ErrorIs(t, key.Verify([]byte("message"), sig[:16]), ErrSignatureInvalid)

	t.Run("secret is copied", func(t *testing.T) {
		buf := append([]byte(nil), secret...)

		k, err := NewHMACKey(buf, KeyOptions{Digest: crypto.SHA256})
		require.NoError(t, err)

		buf[0] ^= 0xff

		again, err := k.Sign([]byte("message"))
		require.NoError(t, err)
		assert.Equal(t, sig, again)
	})

	t.Run("short secret", func(t *testing.T) {
		_, err := NewHMACKey(make([]byte, 16), KeyOptions{Digest: crypto.SHA256})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("missing digest", func(t *testing.T) {
		_, err := NewHMACKey(secret, KeyOptions{})
		assert.ErrorIs(t, err, ErrConstruction)
		assert.ErrorIs(t, err, ErrMissingDigest)
	})
}

func TestKeyStringHidesMaterial(t *testing.T) {
	secret := rfcHMACSecret(t)

	key, err := NewHMACKey(secret, KeyOptions{ID: "shared", Digest: crypto.SHA256})
	require.NoError(t, err)

	for _, s := range []string{fmt.Sprint(key), fmt.Sprintf("%v", key), fmt.Sprintf("%+v", key), fmt.Sprintf("%#v", key)} {
		assert.Equal(t, `httpsig.Key{alg: hmac-sha256, keyid: "shared", private}`, s)
		assert.NotContains(t, s, rfcSharedSecret)
	}

	pub, err := ParsePEMKey(AlgorithmEd25519, []byte(rfcEd25519Public), "ed")
	require.NoError(t, err)
	assert.Equal(t, `httpsig.Key{alg: ed25519, keyid: "ed", public}`, fmt.Sprint(pub))
}

func TestNewKey(t *testing.T) {
	t.Run("hmac needs bytes", func(t *testing.T) {
		_, err := NewKey(AlgorithmHMACSHA256, "secret", "k")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("ecdsa curve must match algorithm", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		_, err = NewKey(AlgorithmECDSAP384SHA384, priv, "k")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("wrong material type", func(t *testing.T) {
		_, err := NewKey(AlgorithmRSAPSSSHA512, ed25519.PublicKey(make([]byte, 32)), "k")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := NewKey("none", nil, "k")
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestParsePEMKey(t *testing.T) {
	t.Run("ecdsa sec1 private and pkix public", func(t *testing.T) {
		signer, err := ParsePEMKey(AlgorithmECDSAP256SHA256, []byte(rfcECCP256Private), "test-key-ecc-p256")
		require.NoError(t, err)
		assert.True(t, signer.IsPrivate())

		verifier, err := ParsePEMKey(AlgorithmECDSAP256SHA256, []byte(rfcECCP256Public), "test-key-ecc-p256")
		require.NoError(t, err)
		assert.False(t, verifier.IsPrivate())

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify([]byte("message"), sig))
	})

	t.Run("ed25519 pkcs8", func(t *testing.T) {
		signer, err := ParsePEMKey(AlgorithmEd25519, []byte(rfcEd25519Private), "test-key-ed25519")
		require.NoError(t, err)

		verifier, err := ParsePEMKey(AlgorithmEd25519, []byte(rfcEd25519Public), "test-key-ed25519")
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify([]byte("message"), sig))
	})

	t.Run("rsa pkcs1", func(t *testing.T) {
		priv := testRSAKey()

		privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
		pubPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)})

		signer, err := ParsePEMKey(AlgorithmRSAPSSSHA512, privPEM, "rsa")
		require.NoError(t, err)

		verifier, err := ParsePEMKey(AlgorithmRSAPSSSHA512, pubPEM, "rsa")
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify([]byte("message"), sig))
	})

	t.Run("certificate", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(1),
			Subject:      pkix.Name{CommonName: "signer"},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(time.Hour),
		}

		der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
		require.NoError(t, err)

		certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

		verifier, err := ParsePEMKey(AlgorithmECDSAP256SHA256, certPEM, "cert")
		require.NoError(t, err)
		assert.False(t, verifier.IsPrivate())

		signer, err := NewKey(AlgorithmECDSAP256SHA256, priv, "cert")
		require.NoError(t, err)

		sig, err := signer.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify([]byte("message"), sig))
	})

	t.Run("hmac uses raw bytes", func(t *testing.T) {
		key, err := ParsePEMKey(AlgorithmHMACSHA256, rfcHMACSecret(t), "test-shared-secret")
		require.NoError(t, err)
		assert.Equal(t, AlgorithmHMACSHA256, key.Algorithm())
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParsePEMKey(AlgorithmEd25519, []byte("not pem"), "k")
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = ParsePEMKey(AlgorithmEd25519, pem.EncodeToMemory(&pem.Block{Type: "OPENSSH PRIVATE KEY", Bytes: []byte{1}}), "k")
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = ParsePEMKey(AlgorithmEd25519, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}}), "k")
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = ParsePEMKey(AlgorithmECDSAP384SHA384, []byte(rfcECCP256Private), "k")
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = ParsePEMKey("unknown", []byte(rfcEd25519Private), "k")
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestJWKKey(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		key, err := ParseJWK([]byte(rfcEd25519JWK), KeyOptions{})
		require.NoError(t, err)

		assert.Equal(t, AlgorithmEd25519, key.Algorithm())
		assert.Equal(t, "test-key-ed25519", key.KeyID())
		assert.True(t, key.IsPrivate())

		pemKey, err := ParsePEMKey(AlgorithmEd25519, []byte(rfcEd25519Private), "test-key-ed25519")
		require.NoError(t, err)

		a, err := key.Sign([]byte("message"))
		require.NoError(t, err)

		b, err := pemKey.Sign([]byte("message"))
		require.NoError(t, err)

		assert.Equal(t, b, a, "same key material as the PEM encoding")
	})

	t.Run("option id wins over kid", func(t *testing.T) {
		key, err := ParseJWK([]byte(rfcEd25519JWK), KeyOptions{ID: "override"})
		require.NoError(t, err)
		assert.Equal(t, "override", key.KeyID())
	})

	t.Run("generate", func(t *testing.T) {
		key, err := GenerateJWKKey(JWKAlgorithmEdDSA, KeyOptions{ID: "gen"})
		require.NoError(t, err)
		assert.Equal(t, "gen", key.KeyID())

		sig, err := key.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, key.Verify([]byte("message"), sig))

		_, err = GenerateJWKKey("RS256", KeyOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("export public", func(t *testing.T) {
		key, err := ParsePEMKey(AlgorithmEd25519, []byte(rfcEd25519Private), "test-key-ed25519")
		require.NoError(t, err)

		exported, err := ExportJWK(key)
		require.NoError(t, err)

		kid, ok := exported.KeyID()
		require.True(t, ok)
		assert.Equal(t, "test-key-ed25519", kid)

		var raw any
		require.NoError(t, jwk.Export(exported, &raw))

		pub, ok := raw.(ed25519.PublicKey)
		require.True(t, ok, "exported key is public, got %T", raw)
		assert.Equal(t, "JrQLj5P/89iXES9+vFgrIy29clF9CC/oPPsw3c5D0bs=", base64.StdEncoding.EncodeToString(pub))

		verifier, err := NewJWKKey(exported, KeyOptions{})
		require.NoError(t, err)
		assert.False(t, verifier.IsPrivate())

		sig, err := key.Sign([]byte("message"))
		require.NoError(t, err)
		assert.NoError(t, verifier.Verify([]byte("message"), sig))
	})

	t.Run("export unsupported key", func(t *testing.T) {
		key, err := NewHMACKey(rfcHMACSecret(t), KeyOptions{Digest: crypto.SHA256})
		require.NoError(t, err)

		_, err = ExportJWK(key)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("non okp key", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		ec, err := jwk.Import(priv)
		require.NoError(t, err)

		_, err = NewJWKKey(ec, KeyOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseJWK([]byte("{"), KeyOptions{})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}
