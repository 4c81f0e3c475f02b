// Package certstore creates, persists and enumerates self-signed
// signing certificates. Certificates are immutable once created:
// revocation and expiry are represented by removal from the active
// registry or by validity-window exclusion, never by field mutation.
package certstore

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/georgepadayatti/docsign/keypair"
)

// Common errors
var (
	ErrInvalidValidityWindow = errors.New("certificate not-before must precede not-after")
	ErrCertificateNotFound   = errors.New("certificate not found")
	ErrCertificateCorrupt    = errors.New("certificate self-signature check failed")
	ErrNotSelfSigned         = errors.New("certificate is not self-signed")
	ErrNoCertFound           = errors.New("no certificate found in data")
	ErrEmptyCommonName       = errors.New("subject common name is required")
)

// serialBytes is the length of generated serial numbers.
const serialBytes = 20

// SubjectAttributes are the free-form identity attributes bound to a
// certificate's public key.
type SubjectAttributes struct {
	// Name is the common name of the identity. Required.
	Name string

	// Organization the identity belongs to.
	Organization string

	// Email contact address.
	Email string
}

// ValidityWindow is the certificate's validity interval.
type ValidityWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// Window builds a validity window starting at from and lasting d.
func Window(from time.Time, d time.Duration) ValidityWindow {
	return ValidityWindow{NotBefore: from, NotAfter: from.Add(d)}
}

// Certificate wraps a self-signed X.509 certificate. The zero value is
// not usable; obtain certificates from Store.Create, ParseCertificate
// or Store.Load.
type Certificate struct {
	// X509 is the underlying parsed certificate.
	X509 *x509.Certificate
}

// Serial returns the certificate's serial identifier as lowercase hex.
func (c *Certificate) Serial() string {
	return hex.EncodeToString(c.X509.SerialNumber.Bytes())
}

// Subject returns the identity attributes recorded in the certificate.
func (c *Certificate) Subject() SubjectAttributes {
	attrs := SubjectAttributes{Name: c.X509.Subject.CommonName}
	if len(c.X509.Subject.Organization) > 0 {
		attrs.Organization = c.X509.Subject.Organization[0]
	}
	if len(c.X509.EmailAddresses) > 0 {
		attrs.Email = c.X509.EmailAddresses[0]
	}
	return attrs
}

// Validity returns the certificate's validity window.
func (c *Certificate) Validity() ValidityWindow {
	return ValidityWindow{NotBefore: c.X509.NotBefore, NotAfter: c.X509.NotAfter}
}

// ValidAt reports whether t falls within the validity window.
func (c *Certificate) ValidAt(t time.Time) bool {
	return !t.Before(c.X509.NotBefore) && !t.After(c.X509.NotAfter)
}

// Fingerprint returns the SHA-256 fingerprint of the certificate's
// Subject Public Key Info as lowercase hex. Pinned sets may pin either
// this or the serial identifier.
func (c *Certificate) Fingerprint() string {
	sum := sha256.Sum256(c.X509.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(sum[:])
}

// CheckSelfSignature verifies the certificate's signature against its
// own embedded public key. A certificate that fails this check is
// corrupt and must be rejected. The raw signature is checked directly:
// these are signing leaves, not CAs, so the chain-oriented
// CheckSignatureFrom and its CA constraints do not apply.
func (c *Certificate) CheckSelfSignature() error {
	if c.X509.Subject.String() != c.X509.Issuer.String() {
		return ErrNotSelfSigned
	}
	err := c.X509.CheckSignature(c.X509.SignatureAlgorithm, c.X509.RawTBSCertificate, c.X509.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCertificateCorrupt, err)
	}
	return nil
}

// MarshalPEM serializes the certificate (public fields only) to PEM.
func (c *Certificate) MarshalPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.X509.Raw})
}

// NewCertificate builds and self-signs a certificate binding the key
// pair's public key to the subject attributes, valid over the given
// window. The self-signature proves possession of the private key.
func NewCertificate(subject SubjectAttributes, window ValidityWindow, pair *keypair.KeyPair) (*Certificate, error) {
	if subject.Name == "" {
		return nil, ErrEmptyCommonName
	}
	if !window.NotBefore.Before(window.NotAfter) {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrInvalidValidityWindow,
			window.NotBefore.Format(time.RFC3339), window.NotAfter.Format(time.RFC3339))
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	name := pkix.Name{CommonName: subject.Name}
	if subject.Organization != "" {
		name.Organization = []string{subject.Organization}
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		Issuer:                name,
		NotBefore:             window.NotBefore,
		NotAfter:              window.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
	}
	if subject.Email != "" {
		template.EmailAddresses = []string{subject.Email}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pair.Public, pair.Private)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created certificate: %w", err)
	}

	cert := &Certificate{X509: parsed}
	if err := cert.CheckSelfSignature(); err != nil {
		return nil, err
	}
	return cert, nil
}

// ParseCertificate parses a certificate from PEM or DER data and checks
// its self-signature.
func ParseCertificate(data []byte) (*Certificate, error) {
	der := data
	if isPEM(data) {
		block, _ := pem.Decode(data)
		if block == nil || block.Type != "CERTIFICATE" {
			return nil, ErrNoCertFound
		}
		der = block.Bytes
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	cert := &Certificate{X509: parsed}
	if err := cert.CheckSelfSignature(); err != nil {
		return nil, err
	}
	return cert, nil
}

// LoadCertificate loads a certificate from a PEM or DER encoded file.
func LoadCertificate(filename string) (*Certificate, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ParseCertificate(data)
}

// randomSerial draws a fresh unique serial identifier.
func randomSerial() (*big.Int, error) {
	buf := make([]byte, serialBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}
	// Clear the top bit so the serial is always positive.
	buf[0] &= 0x7f
	return new(big.Int).SetBytes(buf), nil
}

// isPEM checks if the data appears to be PEM encoded.
func isPEM(data []byte) bool {
	return len(data) > 10 && string(data[:5]) == "-----"
}
