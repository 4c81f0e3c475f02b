package certstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/georgepadayatti/docsign/keypair"
)

// indexFile records serial identifiers in creation order, one per line.
// It is the append-only log that makes List stable across restarts.
const indexFile = "index.log"

var serialRegexp = regexp.MustCompile(`^[0-9a-f]{2,64}$`)

// Store is the certificate registry. It persists one PEM file per
// certificate under a directory, keyed by serial identifier. Create and
// Delete serialize against concurrent List and Load; certificates
// themselves are immutable, so no per-certificate locking exists.
type Store struct {
	dir string
	log zerolog.Logger

	mu     sync.RWMutex
	serials []string // creation order
	byID    map[string]*Certificate
}

// Open opens (creating if necessary) a certificate registry rooted at dir.
// Every persisted certificate is loaded and its self-signature checked;
// a corrupt entry fails the open rather than being silently skipped.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	s := &Store{
		dir:  dir,
		log:  log,
		byID: make(map[string]*Certificate),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadIndex replays the creation-order log and loads the live entries.
func (s *Store) loadIndex() error {
	f, err := os.Open(filepath.Join(s.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open registry index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		serial := strings.TrimSpace(scanner.Text())
		if serial == "" {
			continue
		}
		if !serialRegexp.MatchString(serial) {
			return fmt.Errorf("malformed registry index entry %q", serial)
		}

		cert, err := LoadCertificate(s.certPath(serial))
		if errors.Is(err, os.ErrNotExist) {
			// Deleted entry; the index keeps its line.
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load certificate %s: %w", serial, err)
		}
		if _, dup := s.byID[serial]; dup {
			continue
		}
		s.serials = append(s.serials, serial)
		s.byID[serial] = cert
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read registry index: %w", err)
	}
	return nil
}

// Create builds a self-signed certificate from the subject attributes,
// validity window and key pair, assigns it a fresh serial identifier
// and persists it to the registry. The private key is only used to
// produce the self-signature; it is never written by the Store.
func (s *Store) Create(subject SubjectAttributes, window ValidityWindow, pair *keypair.KeyPair) (*Certificate, error) {
	cert, err := NewCertificate(subject, window, pair)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	serial := cert.Serial()
	if err := os.WriteFile(s.certPath(serial), cert.MarshalPEM(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to persist certificate: %w", err)
	}
	if err := s.appendIndex(serial); err != nil {
		return nil, err
	}

	s.serials = append(s.serials, serial)
	s.byID[serial] = cert

	s.log.Info().
		Str("serial", serial).
		Str("subject", subject.Name).
		Time("not_after", window.NotAfter).
		Msg("certificate created")
	return cert, nil
}

// Load returns the certificate with the given serial identifier. The
// persisted file is re-read and its self-signature re-checked on every
// call, so corruption that happened after Open surfaces as
// ErrCertificateCorrupt here rather than being served from cache.
func (s *Store) Load(serial string) (*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[serial]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, serial)
	}

	cert, err := LoadCertificate(s.certPath(serial))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, serial)
	}
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// List returns all active certificates in creation order.
func (s *Store) List() []*Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certs := make([]*Certificate, 0, len(s.serials))
	for _, serial := range s.serials {
		certs = append(certs, s.byID[serial])
	}
	return certs
}

// Delete removes a certificate from the active registry. Signatures
// already produced with it are unaffected: the verifier re-evaluates
// them from the certificate embedded in the signature itself.
func (s *Store) Delete(serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[serial]; !ok {
		return fmt.Errorf("%w: %s", ErrCertificateNotFound, serial)
	}

	if err := os.Remove(s.certPath(serial)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove certificate file: %w", err)
	}

	delete(s.byID, serial)
	for i, sn := range s.serials {
		if sn == serial {
			s.serials = append(s.serials[:i], s.serials[i+1:]...)
			break
		}
	}

	s.log.Info().Str("serial", serial).Msg("certificate deleted")
	return nil
}

// Import parses an external self-signed certificate and adds it to the
// registry under its own serial identifier.
func (s *Store) Import(pemData []byte) (*Certificate, error) {
	cert, err := ParseCertificate(pemData)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	serial := cert.Serial()
	if _, exists := s.byID[serial]; exists {
		return cert, nil
	}

	if err := os.WriteFile(s.certPath(serial), cert.MarshalPEM(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to persist certificate: %w", err)
	}
	if err := s.appendIndex(serial); err != nil {
		return nil, err
	}

	s.serials = append(s.serials, serial)
	s.byID[serial] = cert

	s.log.Info().Str("serial", serial).Msg("certificate imported")
	return cert, nil
}

// Export writes the certificate's public PEM encoding to a file.
// Private key material is never part of the export.
func (s *Store) Export(serial, filename string) error {
	cert, err := s.Load(serial)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, cert.MarshalPEM(), 0o644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	return nil
}

// appendIndex appends a serial to the creation-order log.
func (s *Store) appendIndex(serial string) error {
	f, err := os.OpenFile(filepath.Join(s.dir, indexFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open registry index: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, serial); err != nil {
		return fmt.Errorf("failed to append registry index: %w", err)
	}
	return nil
}

func (s *Store) certPath(serial string) string {
	return filepath.Join(s.dir, serial+".pem")
}
