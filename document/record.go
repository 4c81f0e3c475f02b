// Package document defines the append-only signature block structure
// embedded in a host document's byte stream. The host format only has
// to support three things: locating a reserved placeholder region by
// offset and length, appending trailing structure without relocating
// prior bytes, and enumerating embedded signature records in
// application order. This package supplies all three over an opaque
// byte buffer.
package document

import (
	"time"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/digest"
)

// Rectangle is an axis-aligned rectangle in page-space units.
type Rectangle struct {
	LLX float64
	LLY float64
	URX float64
	URY float64
}

// Width returns the rectangle width.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the rectangle height.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Placement describes where and how a signature is displayed. It is
// purely cosmetic: the verifier never consults it for trust decisions.
type Placement struct {
	// Page index the appearance is drawn on (zero-based).
	Page int

	// Rect is the appearance rectangle in page-space units.
	Rect Rectangle

	// Reason for signing, displayed in the appearance.
	Reason string

	// Location of signing, displayed in the appearance.
	Location string

	// Appearance is an optional rendered stamp bitmap (PNG bytes).
	Appearance []byte
}

// SignatureRecord is one embedded signature as recorded in the
// document. Produced by the signer, reconstructed by enumeration.
type SignatureRecord struct {
	// ID is the record's unique identifier.
	ID string

	// Certificate is the signer certificate embedded in the record.
	Certificate *certstore.Certificate

	// DigestAlgorithm used over the byte ranges.
	DigestAlgorithm digest.Algorithm

	// ByteRange holds the two spans covered by the digest. They
	// bracket the contents placeholder so the signature value can be
	// filled in place without disturbing any hashed byte.
	ByteRange []digest.Span

	// SignatureValue is the digest signed with the signer's private key.
	SignatureValue []byte

	// CreatedAt is the claimed signing time.
	CreatedAt time.Time

	// Placement is the cosmetic appearance descriptor, if any.
	Placement *Placement

	// ContentsStart and ContentsEnd are the absolute offsets of the
	// reserved placeholder region (inclusive of its delimiters).
	ContentsStart int64
	ContentsEnd   int64
}

// BracketsPlaceholder reports whether the recorded byte range covers
// exactly the document minus the record's own placeholder region. A
// record whose range excludes anything else is structurally suspect
// and must not be treated as covering the document.
func (r *SignatureRecord) BracketsPlaceholder() bool {
	if len(r.ByteRange) != 2 {
		return false
	}
	first, second := r.ByteRange[0], r.ByteRange[1]
	return first.Offset == 0 &&
		first.End() == r.ContentsStart &&
		second.Offset == r.ContentsEnd
}

// CoveredEnd returns the exclusive end offset of the bytes covered by
// the record, i.e. the document length at signing time.
func (r *SignatureRecord) CoveredEnd() int64 {
	if len(r.ByteRange) != 2 {
		return 0
	}
	return r.ByteRange[1].End()
}

// Covers reports whether the given absolute offset lies inside the
// record's digested byte ranges.
func (r *SignatureRecord) Covers(offset int64) bool {
	for _, span := range r.ByteRange {
		if span.Contains(offset) {
			return true
		}
	}
	return false
}

// OnPage filters records down to those placed on the given page index.
// Records without a placement are never returned.
func OnPage(records []*SignatureRecord, page int) []*SignatureRecord {
	var out []*SignatureRecord
	for _, rec := range records {
		if rec.Placement != nil && rec.Placement.Page == page {
			out = append(out, rec)
		}
	}
	return out
}
