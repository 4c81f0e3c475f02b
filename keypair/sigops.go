package keypair

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
)

// ErrSignatureMismatch indicates a signature value that does not verify
// against the given public key and digest.
var ErrSignatureMismatch = errors.New("signature does not match digest")

// SignDigest signs a precomputed digest with the private key.
// RSA keys use PKCS#1 v1.5, ECDSA keys produce ASN.1 DER signatures,
// and Ed25519 keys sign the digest value directly.
func SignDigest(key PrivateKey, digestValue []byte, hash crypto.Hash) ([]byte, error) {
	switch key.(type) {
	case ed25519.PrivateKey:
		// Ed25519 has no prehash mode here; the digest is the message.
		return key.Sign(rand.Reader, digestValue, crypto.Hash(0))
	default:
		sig, err := key.Sign(rand.Reader, digestValue, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to sign digest: %w", err)
		}
		return sig, nil
	}
}

// VerifyDigest checks a signature produced by SignDigest against the
// public key and digest value.
func VerifyDigest(pub crypto.PublicKey, digestValue, signature []byte, hash crypto.Hash) error {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(k, hash, digestValue, signature); err != nil {
			return ErrSignatureMismatch
		}
		return nil
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(k, digestValue, signature) {
			return ErrSignatureMismatch
		}
		return nil
	case ed25519.PublicKey:
		if !ed25519.Verify(k, digestValue, signature) {
			return ErrSignatureMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedAlgorithm, pub)
	}
}
