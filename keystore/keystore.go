// Package keystore is the protected local store for private key
// material. It maps identity names to private keys encrypted at rest,
// and is deliberately a separate artifact from the certificate
// registry: the two must never be merged into one export.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/crypto/scrypt"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/keypair"
)

// Common errors
var (
	ErrKeyNotFound      = errors.New("private key not found")
	ErrInvalidIdentity  = errors.New("invalid identity name")
	ErrDecryptionFailed = errors.New("failed to decrypt private key")
	ErrKeyExists        = errors.New("private key already stored for identity")
)

// scrypt parameters for the passphrase KDF.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32 // AES-256
	saltLength   = 16
	nonceLength  = 12 // AES-GCM standard nonce
	entryVersion = 1
)

var identityRegexp = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,128}$`)

// entry is the on-disk format of one encrypted private key.
type entry struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Store holds encrypted private keys under a directory, one file per
// identity name.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// Open opens (creating if necessary) a key store rooted at dir. Key
// files are created with owner-only permissions.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Put encrypts and stores the private key for the given identity.
// Storing over an existing identity fails: keys are never silently
// replaced.
func (s *Store) Put(identity string, key keypair.PrivateKey, passphrase []byte) error {
	if !identityRegexp.MatchString(identity) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.keyPath(identity)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrKeyExists, identity)
	}

	keyPEM, err := keypair.MarshalPrivateKey(key)
	if err != nil {
		return err
	}

	e, err := seal(keyPEM, passphrase)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key entry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Get decrypts and returns the private key for the given identity.
func (s *Store) Get(identity string, passphrase []byte) (keypair.PrivateKey, error) {
	if !identityRegexp.MatchString(identity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.keyPath(identity))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse key entry: %w", err)
	}

	keyPEM, err := open(&e, passphrase)
	if err != nil {
		return nil, err
	}
	return keypair.ParsePrivateKey(keyPEM)
}

// Delete removes the private key stored for the identity.
func (s *Store) Delete(identity string) error {
	if !identityRegexp.MatchString(identity) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.keyPath(identity))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, identity)
	}
	if err != nil {
		return fmt.Errorf("failed to remove key file: %w", err)
	}
	return nil
}

// ExportPKCS12 bundles a certificate and its private key into a
// password-protected PKCS#12 credential for transfer to another
// machine. This is the only sanctioned way key material leaves the
// store, and it stays encrypted in transit.
func (s *Store) ExportPKCS12(identity string, passphrase []byte, cert *certstore.Certificate, exportPassword string) ([]byte, error) {
	key, err := s.Get(identity, passphrase)
	if err != nil {
		return nil, err
	}
	pfx, err := pkcs12.Modern.Encode(key, cert.X509, nil, exportPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#12 credential: %w", err)
	}
	return pfx, nil
}

// ImportPKCS12 unpacks a PKCS#12 credential, stores the private key
// under the identity and returns the bundled certificate for registry
// import.
func (s *Store) ImportPKCS12(identity string, pfx []byte, importPassword string, passphrase []byte) (*certstore.Certificate, error) {
	rawKey, x509Cert, err := pkcs12.Decode(pfx, importPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PKCS#12 credential: %w", err)
	}

	key, ok := rawKey.(keypair.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T in PKCS#12 credential", rawKey)
	}

	cert := &certstore.Certificate{X509: x509Cert}
	if err := cert.CheckSelfSignature(); err != nil {
		return nil, err
	}
	if !keypair.PublicKeysMatch(key, x509Cert.PublicKey) {
		return nil, fmt.Errorf("PKCS#12 private key does not match bundled certificate")
	}

	if err := s.Put(identity, key, passphrase); err != nil {
		return nil, err
	}
	return cert, nil
}

// seal encrypts plaintext with a key derived from the passphrase.
func seal(plaintext, passphrase []byte) (*entry, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ct := aead.Seal(nil, nonce, plaintext, nil)
	return &entry{
		Version:    entryVersion,
		KDF:        "scrypt",
		N:          scryptN,
		R:          scryptR,
		P:          scryptP,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// KDF parameter ceilings for stored entries. Entries demanding more
// work than this are rejected: the parameters come from an on-disk
// file, so a tampered entry must not be able to demand arbitrary
// memory from the opener.
const (
	maxScryptN = 1 << 22
	maxScryptR = 32
	maxScryptP = 16
)

// open decrypts an entry with the passphrase.
func open(e *entry, passphrase []byte) ([]byte, error) {
	if e.KDF != "scrypt" {
		return nil, fmt.Errorf("%w: unknown KDF %q", ErrDecryptionFailed, e.KDF)
	}
	if e.N < 2 || e.N > maxScryptN || e.R < 1 || e.R > maxScryptR || e.P < 1 || e.P > maxScryptP {
		return nil, fmt.Errorf("%w: KDF parameters out of range", ErrDecryptionFailed)
	}

	salt, err := base64.StdEncoding.DecodeString(e.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", ErrDecryptionFailed)
	}
	nonce, err := base64.StdEncoding.DecodeString(e.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: bad nonce encoding", ErrDecryptionFailed)
	}
	ct, err := base64.StdEncoding.DecodeString(e.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrDecryptionFailed)
	}

	key, err := scrypt.Key(passphrase, salt, e.N, e.R, e.P, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}

func (s *Store) keyPath(identity string) string {
	return filepath.Join(s.dir, identity+".key")
}
