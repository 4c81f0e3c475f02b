// Package digest computes cryptographic digests over selected byte
// ranges of a document. The engine is a pure function of its inputs,
// which is what makes byte-range verification reproducible.
package digest

import (
	"crypto"
	_ "crypto/sha256" // register SHA-256
	_ "crypto/sha512" // register SHA-384 and SHA-512
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUnsupportedDigestAlgorithm = errors.New("unsupported digest algorithm")
	ErrRangeOutOfBounds           = errors.New("byte range outside document bounds")
	ErrNegativeRange              = errors.New("byte range with negative offset or length")
)

// Algorithm identifies a digest algorithm. The set is enumerated and
// versionable: unknown identifiers fail rather than falling back.
type Algorithm string

const (
	SHA256 Algorithm = "SHA-256"
	SHA384 Algorithm = "SHA-384"
	SHA512 Algorithm = "SHA-512"
)

// Hash returns the crypto.Hash for the algorithm, or an error for
// unknown identifiers.
func (a Algorithm) Hash() (crypto.Hash, error) {
	switch a {
	case SHA256:
		return crypto.SHA256, nil
	case SHA384:
		return crypto.SHA384, nil
	case SHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDigestAlgorithm, string(a))
	}
}

// Valid reports whether the algorithm identifier is a member of the
// supported set.
func (a Algorithm) Valid() bool {
	_, err := a.Hash()
	return err == nil
}

// Span is one contiguous byte range over a document's byte stream.
type Span struct {
	Offset int64
	Length int64
}

// End returns the exclusive end offset of the span.
func (s Span) End() int64 {
	return s.Offset + s.Length
}

// Contains reports whether the absolute offset lies within the span.
func (s Span) Contains(offset int64) bool {
	return offset >= s.Offset && offset < s.End()
}

// Compute hashes the concatenation of the given spans of data with the
// given algorithm. Spans are processed in argument order; empty spans
// are allowed. A span reaching outside the document fails with
// ErrRangeOutOfBounds.
func Compute(data []byte, spans []Span, algorithm Algorithm) ([]byte, error) {
	h, err := algorithm.Hash()
	if err != nil {
		return nil, err
	}

	hasher := h.New()
	size := int64(len(data))
	for _, span := range spans {
		if span.Offset < 0 || span.Length < 0 {
			return nil, fmt.Errorf("%w: [%d %d]", ErrNegativeRange, span.Offset, span.Length)
		}
		// Subtraction form: Offset+Length can overflow int64 for
		// hostile spans read back from a document.
		if span.Offset > size || span.Length > size-span.Offset {
			return nil, fmt.Errorf("%w: [%d %d] in document of %d bytes",
				ErrRangeOutOfBounds, span.Offset, span.Length, size)
		}
		hasher.Write(data[span.Offset:span.End()])
	}
	return hasher.Sum(nil), nil
}
