package certstore

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/docsign/keypair"
)

func testKeyPair(t *testing.T) *keypair.KeyPair {
	t.Helper()
	pair, err := keypair.Generate(keypair.AlgorithmECDSA, 256)
	require.NoError(t, err)
	return pair
}

func TestNewCertificate(t *testing.T) {
	pair := testKeyPair(t)
	now := time.Now().UTC().Truncate(time.Second)
	subject := SubjectAttributes{
		Name:         "Alice Example",
		Organization: "Example Org",
		Email:        "alice@example.com",
	}

	cert, err := NewCertificate(subject, Window(now, 365*24*time.Hour), pair)
	require.NoError(t, err)

	assert.Equal(t, subject, cert.Subject())
	assert.NotEmpty(t, cert.Serial())
	assert.NotEmpty(t, cert.Fingerprint())
	assert.NoError(t, cert.CheckSelfSignature())
	assert.True(t, keypair.PublicKeysMatch(pair.Private, cert.X509.PublicKey))
}

func TestSelfSignatureCheckAcceptsSigningLeaf(t *testing.T) {
	// Created certificates are signing leaves, not CAs. The
	// self-signature check must accept them anyway for every supported
	// key algorithm.
	for _, alg := range []keypair.Algorithm{keypair.AlgorithmRSA, keypair.AlgorithmECDSA, keypair.AlgorithmEd25519} {
		t.Run(string(alg), func(t *testing.T) {
			pair, err := keypair.Generate(alg, keypair.DefaultSizeBits(alg))
			require.NoError(t, err)

			cert, err := NewCertificate(SubjectAttributes{Name: "leaf"},
				Window(time.Now(), time.Hour), pair)
			require.NoError(t, err)

			assert.False(t, cert.X509.IsCA)
			assert.Zero(t, cert.X509.KeyUsage&x509.KeyUsageCertSign)
			assert.NoError(t, cert.CheckSelfSignature())
		})
	}
}

func TestNewCertificateEmptyName(t *testing.T) {
	pair := testKeyPair(t)
	_, err := NewCertificate(SubjectAttributes{}, Window(time.Now(), time.Hour), pair)
	assert.ErrorIs(t, err, ErrEmptyCommonName)
}

func TestNewCertificateInvalidWindow(t *testing.T) {
	pair := testKeyPair(t)
	now := time.Now()

	t.Run("reversed", func(t *testing.T) {
		window := ValidityWindow{NotBefore: now, NotAfter: now.Add(-time.Hour)}
		_, err := NewCertificate(SubjectAttributes{Name: "x"}, window, pair)
		assert.ErrorIs(t, err, ErrInvalidValidityWindow)
	})

	t.Run("empty", func(t *testing.T) {
		window := ValidityWindow{NotBefore: now, NotAfter: now}
		_, err := NewCertificate(SubjectAttributes{Name: "x"}, window, pair)
		assert.ErrorIs(t, err, ErrInvalidValidityWindow)
	})
}

func TestValidAt(t *testing.T) {
	pair := testKeyPair(t)
	notBefore := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	cert, err := NewCertificate(SubjectAttributes{Name: "x"},
		ValidityWindow{NotBefore: notBefore, NotAfter: notAfter}, pair)
	require.NoError(t, err)

	assert.True(t, cert.ValidAt(notBefore))
	assert.True(t, cert.ValidAt(notAfter))
	assert.True(t, cert.ValidAt(notBefore.Add(time.Hour)))
	assert.False(t, cert.ValidAt(notBefore.Add(-time.Second)))
	assert.False(t, cert.ValidAt(notAfter.Add(time.Second)))
}

func TestParseCertificateRoundTrip(t *testing.T) {
	pair := testKeyPair(t)
	cert, err := NewCertificate(SubjectAttributes{Name: "Alice"},
		Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	t.Run("PEM", func(t *testing.T) {
		parsed, err := ParseCertificate(cert.MarshalPEM())
		require.NoError(t, err)
		assert.Equal(t, cert.Serial(), parsed.Serial())
	})

	t.Run("DER", func(t *testing.T) {
		parsed, err := ParseCertificate(cert.X509.Raw)
		require.NoError(t, err)
		assert.Equal(t, cert.Fingerprint(), parsed.Fingerprint())
	})
}

func TestParseCertificateCorrupt(t *testing.T) {
	pair := testKeyPair(t)
	cert, err := NewCertificate(SubjectAttributes{Name: "Alice"},
		Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	// Flip a bit inside the signature so parsing succeeds but the
	// self-signature check fails.
	der := append([]byte(nil), cert.X509.Raw...)
	der[len(der)-10] ^= 0x01
	_, err = ParseCertificate(der)
	require.Error(t, err)
}

func TestParseCertificateGarbage(t *testing.T) {
	_, err := ParseCertificate([]byte("-----BEGIN GARBAGE-----\nzzzz\n-----END GARBAGE-----\n"))
	assert.ErrorIs(t, err, ErrNoCertFound)
}
