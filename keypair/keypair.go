// Package keypair generates and serializes asymmetric key pairs for
// signing identities. All key material is drawn from crypto/rand.
package keypair

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common errors
var (
	ErrUnsupportedAlgorithm = errors.New("unsupported key algorithm")
	ErrNoKeyFound           = errors.New("no private key found in data")
	ErrInvalidPEMBlock      = errors.New("invalid PEM block")
	ErrUnknownKeyType       = errors.New("unknown private key type")
)

// Algorithm identifies a key generation algorithm.
type Algorithm string

const (
	// AlgorithmRSA generates RSA keys. Valid sizes: 2048, 3072, 4096.
	AlgorithmRSA Algorithm = "RSA"
	// AlgorithmECDSA generates ECDSA keys. Valid sizes: 256 (P-256), 384 (P-384).
	AlgorithmECDSA Algorithm = "ECDSA"
	// AlgorithmEd25519 generates Ed25519 keys. The size argument is ignored.
	AlgorithmEd25519 Algorithm = "Ed25519"
)

// ParseAlgorithm parses an algorithm name, case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "rsa":
		return AlgorithmRSA, nil
	case "ecdsa":
		return AlgorithmECDSA, nil
	case "ed25519":
		return AlgorithmEd25519, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, s)
	}
}

// DefaultSizeBits returns the default key size for an algorithm.
func DefaultSizeBits(algorithm Algorithm) int {
	switch algorithm {
	case AlgorithmRSA:
		return 2048
	case AlgorithmECDSA:
		return 256
	default:
		return 0
	}
}

// PrivateKey is a private key usable for signing.
type PrivateKey interface {
	crypto.Signer
}

// KeyPair holds a freshly generated private key and its public counterpart.
// The private half must never leave the signer's local key store.
type KeyPair struct {
	Private PrivateKey
	Public  crypto.PublicKey
}

// Generate produces a new key pair for the given algorithm and size.
// It returns ErrUnsupportedAlgorithm for unknown algorithm/size combinations.
func Generate(algorithm Algorithm, sizeBits int) (*KeyPair, error) {
	switch algorithm {
	case AlgorithmRSA:
		switch sizeBits {
		case 2048, 3072, 4096:
		default:
			return nil, fmt.Errorf("%w: RSA-%d", ErrUnsupportedAlgorithm, sizeBits)
		}
		key, err := rsa.GenerateKey(rand.Reader, sizeBits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		return &KeyPair{Private: key, Public: key.Public()}, nil

	case AlgorithmECDSA:
		var curve elliptic.Curve
		switch sizeBits {
		case 256:
			curve = elliptic.P256()
		case 384:
			curve = elliptic.P384()
		default:
			return nil, fmt.Errorf("%w: ECDSA-%d", ErrUnsupportedAlgorithm, sizeBits)
		}
		key, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
		}
		return &KeyPair{Private: key, Public: key.Public()}, nil

	case AlgorithmEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
		}
		return &KeyPair{Private: priv, Public: pub}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

// MarshalPrivateKey serializes a private key to PKCS#8 PEM.
func MarshalPrivateKey(key PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKey parses a PKCS#8, PKCS#1 or SEC1 private key from PEM or DER data.
func ParsePrivateKey(data []byte) (PrivateKey, error) {
	if isPEM(data) {
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, ErrInvalidPEMBlock
		}
		data = block.Bytes
	}

	if key, err := x509.ParsePKCS8PrivateKey(data); err == nil {
		return toPrivateKey(key)
	}
	if key, err := x509.ParsePKCS1PrivateKey(data); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(data); err == nil {
		return key, nil
	}
	return nil, ErrNoKeyFound
}

// LoadPrivateKey loads a private key from a PEM or DER encoded file.
func LoadPrivateKey(filename string) (PrivateKey, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ParsePrivateKey(data)
}

// toPrivateKey converts a parsed key interface to our PrivateKey type.
func toPrivateKey(key any) (PrivateKey, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKeyType, key)
	}
}

// isPEM checks if the data appears to be PEM encoded.
func isPEM(data []byte) bool {
	return len(data) > 10 && string(data[:5]) == "-----"
}

// Info contains human-readable information about a private key.
type Info struct {
	// Algorithm is the key algorithm (RSA, ECDSA, Ed25519).
	Algorithm Algorithm

	// BitSize is the key size in bits (for RSA).
	BitSize int

	// Curve is the elliptic curve name (for ECDSA).
	Curve string
}

// KeyInfo returns information about a private key.
func KeyInfo(key PrivateKey) Info {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return Info{Algorithm: AlgorithmRSA, BitSize: k.N.BitLen()}
	case *ecdsa.PrivateKey:
		return Info{Algorithm: AlgorithmECDSA, Curve: k.Curve.Params().Name}
	case ed25519.PrivateKey:
		return Info{Algorithm: AlgorithmEd25519}
	default:
		return Info{Algorithm: "Unknown"}
	}
}

// PublicKeysMatch reports whether the private key's public counterpart
// equals the given public key.
func PublicKeysMatch(key PrivateKey, pub crypto.PublicKey) bool {
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}
	if e, ok := key.Public().(equaler); ok {
		return e.Equal(pub)
	}
	return false
}
