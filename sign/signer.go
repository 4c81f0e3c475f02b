// Package sign produces signed document revisions. Each call appends
// one incremental update containing an embedded signature record; the
// bytes that existed before the call are never rewritten except for
// filling the update's own reserved placeholder.
package sign

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/digest"
	"github.com/georgepadayatti/docsign/document"
	"github.com/georgepadayatti/docsign/keypair"
)

// Common errors
var (
	ErrKeyMismatch         = errors.New("private key does not match certificate public key")
	ErrCertificateRequired = errors.New("certificate is required")
	ErrKeyRequired         = errors.New("private key is required")
)

// AppearanceProvider supplies a rendered stamp bitmap for a signature
// placement. Appearances are cosmetic only; the verifier never reads
// them for trust decisions.
type AppearanceProvider interface {
	// Appearance renders a bitmap for the certificate and placement.
	Appearance(cert *certstore.Certificate, placement *document.Placement, signedAt time.Time) ([]byte, error)
}

// Options configures a Signer.
type Options struct {
	// DigestAlgorithm for the byte-range digest. Defaults to SHA-256.
	DigestAlgorithm digest.Algorithm

	// BytesReserved sizes the signature value placeholder. Zero means
	// document.DefaultBytesReserved.
	BytesReserved int

	// Appearance optionally renders a visual stamp into the placement.
	Appearance AppearanceProvider

	// Clock supplies the signing timestamp. Defaults to the real clock;
	// tests inject a fake.
	Clock clockwork.Clock
}

// DefaultOptions returns the default signer options.
func DefaultOptions() *Options {
	return &Options{
		DigestAlgorithm: digest.SHA256,
		BytesReserved:   document.DefaultBytesReserved,
		Clock:           clockwork.NewRealClock(),
	}
}

// Signer produces signed document revisions. A Signer holds no mutable
// state and is safe for concurrent use on independent documents;
// successive signatures on the same document must be applied
// sequentially because each revision's byte ranges depend on the exact
// prior length.
type Signer struct {
	opts Options
}

// New creates a Signer. A nil opts uses DefaultOptions.
func New(opts *Options) *Signer {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.DigestAlgorithm == "" {
		o.DigestAlgorithm = digest.SHA256
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return &Signer{opts: o}
}

// Sign appends a signature over the document bytes and returns the new
// revision. The input slice is never mutated. The returned bytes are a
// strict append-only extension of the input, with only the new
// revision's reserved placeholder filled in place.
//
// The signature value is self-verified against the certificate's
// public key before the revision is returned: a key that cannot
// produce a verifiable signature aborts with ErrKeyMismatch and no
// bytes are emitted.
func (s *Signer) Sign(doc []byte, cert *certstore.Certificate, key keypair.PrivateKey, placement *document.Placement) ([]byte, error) {
	if cert == nil {
		return nil, ErrCertificateRequired
	}
	if key == nil {
		return nil, ErrKeyRequired
	}

	signedAt := s.opts.Clock.Now()

	if placement != nil && s.opts.Appearance != nil && len(placement.Appearance) == 0 {
		p := *placement
		img, err := s.opts.Appearance.Appearance(cert, &p, signedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to render signature appearance: %w", err)
		}
		p.Appearance = img
		placement = &p
	}

	block, err := document.AppendBlock(doc, &document.BlockSpec{
		ID:              uuid.NewString(),
		Certificate:     cert,
		DigestAlgorithm: s.opts.DigestAlgorithm,
		CreatedAt:       signedAt,
		Placement:       placement,
		BytesReserved:   s.opts.BytesReserved,
	})
	if err != nil {
		return nil, err
	}

	// The byte range lies inside the digested region, so it is filled
	// before hashing; the contents placeholder stays zeroed.
	if err := block.FillByteRange(); err != nil {
		return nil, err
	}

	digestValue, err := digest.Compute(block.Data, block.Ranges(), s.opts.DigestAlgorithm)
	if err != nil {
		return nil, err
	}

	hash, err := s.opts.DigestAlgorithm.Hash()
	if err != nil {
		return nil, err
	}

	signature, err := keypair.SignDigest(key, digestValue, hash)
	if err != nil {
		return nil, err
	}

	// Self-verify before committing any bytes. This catches a private
	// key whose public counterpart is not the one in the certificate.
	if err := keypair.VerifyDigest(cert.X509.PublicKey, digestValue, signature, hash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}

	if err := block.FillContents(signature); err != nil {
		return nil, err
	}
	return block.Data, nil
}
