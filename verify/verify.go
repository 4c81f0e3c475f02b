// Package verify reconstructs trust and integrity state from a signed
// document's bytes. Every embedded signature is evaluated
// independently: one malformed or tampered signature never hides the
// validity of the others, and verification never needs a private key
// and never mutates the document.
package verify

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/georgepadayatti/docsign/digest"
	"github.com/georgepadayatti/docsign/document"
	"github.com/georgepadayatti/docsign/keypair"
)

// ErrNoSignatures indicates a document with no embedded signatures.
var ErrNoSignatures = errors.New("no signatures found")

// IntegrityStatus reports whether the signed bytes are unchanged.
type IntegrityStatus int

const (
	// IntegrityUnreadable means the signature record could not be
	// parsed or its byte ranges no longer fit the document.
	IntegrityUnreadable IntegrityStatus = iota
	// IntegrityTampered means the recorded bytes no longer match the
	// signature value.
	IntegrityTampered
	// IntegrityIntact means the signature verifies over the recorded
	// byte ranges.
	IntegrityIntact
)

// String returns the status name.
func (s IntegrityStatus) String() string {
	switch s {
	case IntegrityIntact:
		return "INTACT"
	case IntegrityTampered:
		return "TAMPERED"
	default:
		return "UNREADABLE"
	}
}

// TrustStatus reports how far the signer certificate can be trusted.
// It is evaluated independently of integrity: a signature can be
// cryptographically intact yet outside its validity window.
type TrustStatus int

const (
	// TrustSelfSignedUnknown is a self-signed certificate not present
	// in the pinned set.
	TrustSelfSignedUnknown TrustStatus = iota
	// TrustSelfSignedPinned is a self-signed certificate the caller
	// has pinned.
	TrustSelfSignedPinned
	// TrustExpired means the reference time is after not-after.
	TrustExpired
	// TrustNotYetValid means the reference time is before not-before.
	TrustNotYetValid
	// TrustUnknown means no certificate was available to evaluate.
	TrustUnknown
)

// String returns the status name.
func (s TrustStatus) String() string {
	switch s {
	case TrustSelfSignedUnknown:
		return "SELF_SIGNED_UNKNOWN"
	case TrustSelfSignedPinned:
		return "SELF_SIGNED_PINNED"
	case TrustExpired:
		return "EXPIRED"
	case TrustNotYetValid:
		return "NOT_YET_VALID"
	default:
		return "UNKNOWN"
	}
}

// Result is the verification outcome for one embedded signature.
type Result struct {
	// Integrity is the byte-level verification outcome.
	Integrity IntegrityStatus

	// Trust is the certificate evaluation outcome.
	Trust TrustStatus

	// Record is the parsed signature record, when readable.
	Record *document.SignatureRecord

	// SignedAt is the claimed signing time from the record.
	SignedAt time.Time

	// Err explains an UNREADABLE or TAMPERED outcome.
	Err error
}

// PinnedSet is a caller-supplied set of trusted self-signed
// certificates, identified by serial or SPKI fingerprint
// (trust-on-first-use pinning).
type PinnedSet struct {
	entries map[string]struct{}
}

// NewPinnedSet creates an empty pinned set.
func NewPinnedSet() *PinnedSet {
	return &PinnedSet{entries: make(map[string]struct{})}
}

// Pin adds a serial identifier or public-key fingerprint to the set.
func (p *PinnedSet) Pin(id string) {
	p.entries[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
}

// Contains reports whether an identifier is pinned.
func (p *PinnedSet) Contains(id string) bool {
	if p == nil {
		return false
	}
	_, ok := p.entries[strings.ToLower(id)]
	return ok
}

// Len returns the number of pinned identifiers.
func (p *PinnedSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// LoadPinnedSet reads a pinned set from a file with one serial or
// fingerprint per line. Blank lines and '#' comments are ignored.
func LoadPinnedSet(filename string) (*PinnedSet, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open pinned set: %w", err)
	}
	defer f.Close()

	set := NewPinnedSet()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set.Pin(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pinned set: %w", err)
	}
	return set, nil
}

// Options configures a Verifier.
type Options struct {
	// Pinned is the caller's trusted certificate set. Nil means every
	// self-signed certificate reports SELF_SIGNED_UNKNOWN.
	Pinned *PinnedSet

	// ReferenceTime, when non-zero, overrides the clock for validity
	// evaluation. Used for reproducible verification.
	ReferenceTime time.Time

	// Clock supplies the current time when ReferenceTime is zero.
	Clock clockwork.Clock
}

// DefaultOptions returns default verifier options.
func DefaultOptions() *Options {
	return &Options{Clock: clockwork.NewRealClock()}
}

// Verifier checks embedded signatures against the document bytes.
type Verifier struct {
	opts Options
}

// New creates a Verifier. A nil opts uses DefaultOptions.
func New(opts *Options) *Verifier {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return &Verifier{opts: o}
}

// Verify locates every embedded signature and returns one Result per
// signature, in application order. It returns ErrNoSignatures when the
// document carries none; per-signature failures are reported in the
// results, never as a call-level error.
func (v *Verifier) Verify(doc []byte) ([]*Result, error) {
	scanned := document.ScanSignatures(doc)
	if len(scanned) == 0 {
		return nil, ErrNoSignatures
	}

	refTime := v.opts.ReferenceTime
	if refTime.IsZero() {
		refTime = v.opts.Clock.Now()
	}

	results := make([]*Result, 0, len(scanned))
	for _, s := range scanned {
		results = append(results, v.verifyOne(doc, s, refTime))
	}
	return results, nil
}

// verifyOne evaluates a single scanned signature block.
func (v *Verifier) verifyOne(doc []byte, s *document.ScannedSignature, refTime time.Time) *Result {
	if s.Err != nil {
		return &Result{Integrity: IntegrityUnreadable, Trust: TrustUnknown, Err: s.Err}
	}

	rec := s.Record
	result := &Result{
		Record:   rec,
		SignedAt: rec.CreatedAt,
		Trust:    v.evaluateTrust(rec, refTime),
	}

	// A byte range that does not bracket the record's own placeholder
	// does not actually cover the document; treat it as unreadable
	// structure rather than attesting to bytes it never hashed.
	if !rec.BracketsPlaceholder() {
		result.Integrity = IntegrityUnreadable
		result.Err = fmt.Errorf("%w: byte range does not bracket signature placeholder", document.ErrMalformedRecord)
		return result
	}

	digestValue, err := digest.Compute(doc, rec.ByteRange, rec.DigestAlgorithm)
	if err != nil {
		result.Integrity = IntegrityUnreadable
		result.Err = err
		return result
	}

	hash, err := rec.DigestAlgorithm.Hash()
	if err != nil {
		result.Integrity = IntegrityUnreadable
		result.Err = err
		return result
	}

	if err := keypair.VerifyDigest(rec.Certificate.X509.PublicKey, digestValue, rec.SignatureValue, hash); err != nil {
		result.Integrity = IntegrityTampered
		result.Err = err
		return result
	}

	result.Integrity = IntegrityIntact
	return result
}

// evaluateTrust evaluates the signer certificate independently of
// integrity. Validity-window exclusion takes precedence over pinning.
func (v *Verifier) evaluateTrust(rec *document.SignatureRecord, refTime time.Time) TrustStatus {
	cert := rec.Certificate
	if cert == nil {
		return TrustUnknown
	}

	if refTime.Before(cert.X509.NotBefore) {
		return TrustNotYetValid
	}
	if refTime.After(cert.X509.NotAfter) {
		return TrustExpired
	}

	if v.opts.Pinned.Contains(cert.Serial()) || v.opts.Pinned.Contains(cert.Fingerprint()) {
		return TrustSelfSignedPinned
	}
	return TrustSelfSignedUnknown
}
