package document

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/digest"
)

// Common errors
var (
	ErrByteRangeTooLong    = errors.New("byte range string exceeds placeholder")
	ErrSignatureTooLarge   = errors.New("signature larger than reserved region")
	ErrMalformedRecord     = errors.New("malformed signature record")
	ErrPlaceholderNotEmpty = errors.New("placeholder already filled")
)

// Signature block markers. A block is an incremental update appended
// after the previously existing bytes; nothing before it is rewritten
// except the block's own reserved regions.
const (
	beginMarker = "%%DSig.Begin 1"
	endMarker   = "%%DSig.End"
)

// byteRangeValueLength is the fixed interior width reserved for the
// byte range array, written as "[]" followed by padding spaces so the
// final values can be filled in place.
const byteRangeValueLength = 60

// DefaultBytesReserved is the default size of the signature value
// placeholder. Large enough for an RSA-4096 signature plus framing.
const DefaultBytesReserved = 1024

// createdFormat is the timestamp layout used in block headers.
const createdFormat = time.RFC3339

// PreparedBlock is a signature block appended to a document with its
// placeholder regions still unfilled. Offsets are absolute within the
// extended document.
type PreparedBlock struct {
	// Data is the extended document: original bytes plus the block.
	Data []byte

	// ByteRangeOffset is where the byte range array begins (at '[').
	ByteRangeOffset int64

	// ContentsStart is the offset of the placeholder's opening '<'.
	ContentsStart int64

	// ContentsEnd is the offset one past the placeholder's closing '>'.
	ContentsEnd int64

	// BytesReserved is the placeholder capacity in raw bytes.
	BytesReserved int

	filledRange    bool
	filledContents bool
}

// BlockSpec describes the signature block to append.
type BlockSpec struct {
	ID              string
	Certificate     *certstore.Certificate
	DigestAlgorithm digest.Algorithm
	CreatedAt       time.Time
	Placement       *Placement

	// BytesReserved sizes the signature placeholder. Zero means
	// DefaultBytesReserved.
	BytesReserved int
}

// AppendBlock appends a signature block to the document bytes and
// returns the prepared block. The input slice is never modified; the
// returned data is a fresh copy. The byte range and contents regions
// are placeholders to be filled via FillByteRange and FillContents.
func AppendBlock(doc []byte, spec *BlockSpec) (*PreparedBlock, error) {
	if spec.Certificate == nil {
		return nil, fmt.Errorf("%w: missing certificate", ErrMalformedRecord)
	}
	if !spec.DigestAlgorithm.Valid() {
		return nil, fmt.Errorf("%w: %q", digest.ErrUnsupportedDigestAlgorithm, string(spec.DigestAlgorithm))
	}

	reserved := spec.BytesReserved
	if reserved <= 0 {
		reserved = DefaultBytesReserved
	}

	var b bytes.Buffer
	b.Grow(len(doc) + 2*reserved + 512)
	b.Write(doc)

	b.WriteString("\n" + beginMarker + "\n")
	fmt.Fprintf(&b, "ID: %s\n", spec.ID)
	fmt.Fprintf(&b, "Cert: %s\n", base64.StdEncoding.EncodeToString(spec.Certificate.X509.Raw))
	fmt.Fprintf(&b, "DigestAlg: %s\n", spec.DigestAlgorithm)
	fmt.Fprintf(&b, "Created: %s\n", spec.CreatedAt.Format(createdFormat))

	if p := spec.Placement; p != nil {
		fmt.Fprintf(&b, "Page: %d\n", p.Page)
		fmt.Fprintf(&b, "Rect: %g %g %g %g\n", p.Rect.LLX, p.Rect.LLY, p.Rect.URX, p.Rect.URY)
		if p.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", sanitizeLine(p.Reason))
		}
		if p.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", sanitizeLine(p.Location))
		}
		if len(p.Appearance) > 0 {
			fmt.Fprintf(&b, "Appearance: %s\n", base64.StdEncoding.EncodeToString(p.Appearance))
		}
	}

	b.WriteString("ByteRange: ")
	byteRangeOffset := int64(b.Len())
	b.WriteString("[]" + strings.Repeat(" ", byteRangeValueLength))
	b.WriteString("\n")

	b.WriteString("Contents: ")
	contentsStart := int64(b.Len())
	b.WriteString("<" + strings.Repeat("0", 2*reserved) + ">")
	contentsEnd := int64(b.Len())
	b.WriteString("\n" + endMarker + "\n")

	return &PreparedBlock{
		Data:            b.Bytes(),
		ByteRangeOffset: byteRangeOffset,
		ContentsStart:   contentsStart,
		ContentsEnd:     contentsEnd,
		BytesReserved:   reserved,
	}, nil
}

// Ranges returns the two spans that bracket the placeholder region:
// everything before the opening delimiter and everything after the
// closing one. These are the exact bytes the digest covers.
func (p *PreparedBlock) Ranges() []digest.Span {
	eof := int64(len(p.Data))
	return []digest.Span{
		{Offset: 0, Length: p.ContentsStart},
		{Offset: p.ContentsEnd, Length: eof - p.ContentsEnd},
	}
}

// FillByteRange writes the final byte range values into the reserved
// array region. Must be called before the digest is computed, since
// the region lies inside the digested range.
func (p *PreparedBlock) FillByteRange() error {
	if p.filledRange {
		return ErrPlaceholderNotEmpty
	}

	spans := p.Ranges()
	repr := fmt.Sprintf("[%d %d %d %d]",
		spans[0].Offset, spans[0].Length, spans[1].Offset, spans[1].Length)
	if len(repr) > byteRangeValueLength+2 {
		return fmt.Errorf("%w: %d > %d", ErrByteRangeTooLong, len(repr), byteRangeValueLength+2)
	}

	region := p.Data[p.ByteRangeOffset : p.ByteRangeOffset+byteRangeValueLength+2]
	for i := range region {
		region[i] = ' '
	}
	copy(region, repr)
	p.filledRange = true
	return nil
}

// FillContents writes the signature value into the reserved placeholder
// region, hex encoded behind a 4-byte length prefix. Only bytes inside
// the placeholder are touched.
func (p *PreparedBlock) FillContents(signature []byte) error {
	if p.filledContents {
		return ErrPlaceholderNotEmpty
	}

	payload := make([]byte, 4+len(signature))
	binary.BigEndian.PutUint32(payload, uint32(len(signature)))
	copy(payload[4:], signature)

	if len(payload) > p.BytesReserved {
		return fmt.Errorf("%w: need %d bytes, reserved %d", ErrSignatureTooLarge, len(payload), p.BytesReserved)
	}

	contentHex := strings.ToUpper(hex.EncodeToString(payload))
	// Skip the '<' delimiter; trailing zeros remain as padding.
	copy(p.Data[p.ContentsStart+1:], contentHex)
	p.filledContents = true
	return nil
}

// sanitizeLine strips newlines so free-form metadata cannot break the
// block's line structure.
func sanitizeLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

// ScannedSignature is one signature block discovered in a document.
// Err is set when the block could not be parsed into a valid record;
// a broken block never hides the blocks after it.
type ScannedSignature struct {
	// Offset of the block's begin marker in the document.
	Offset int64

	// Record is the parsed signature record (nil when Err is set).
	Record *SignatureRecord

	// Err is the parse failure for this block, if any.
	Err error
}

// ScanSignatures enumerates embedded signature blocks in application
// order. Malformed blocks are reported in place with Err set rather
// than aborting the scan.
func ScanSignatures(doc []byte) []*ScannedSignature {
	var out []*ScannedSignature
	marker := []byte(beginMarker + "\n")

	pos := 0
	for {
		idx := bytes.Index(doc[pos:], marker)
		if idx < 0 {
			return out
		}
		blockStart := pos + idx
		bodyStart := blockStart + len(marker)

		scanned := &ScannedSignature{Offset: int64(blockStart)}

		endIdx := bytes.Index(doc[bodyStart:], []byte(endMarker))
		if endIdx < 0 {
			scanned.Err = fmt.Errorf("%w: missing end marker", ErrMalformedRecord)
			out = append(out, scanned)
			return out
		}
		bodyEnd := bodyStart + endIdx

		rec, err := parseBlock(doc, bodyStart, bodyEnd)
		if err != nil {
			scanned.Err = err
		} else {
			scanned.Record = rec
		}
		out = append(out, scanned)

		pos = bodyEnd + len(endMarker)
	}
}

// Records returns the successfully parsed records from a scan, in
// application order.
func Records(scanned []*ScannedSignature) []*SignatureRecord {
	var out []*SignatureRecord
	for _, s := range scanned {
		if s.Record != nil {
			out = append(out, s.Record)
		}
	}
	return out
}

// parseBlock parses one block body into a SignatureRecord.
func parseBlock(doc []byte, bodyStart, bodyEnd int) (*SignatureRecord, error) {
	rec := &SignatureRecord{}
	var placement *Placement
	ensurePlacement := func() *Placement {
		if placement == nil {
			placement = &Placement{}
		}
		return placement
	}

	body := doc[bodyStart:bodyEnd]
	lineStart := 0
	for lineStart < len(body) {
		nl := bytes.IndexByte(body[lineStart:], '\n')
		if nl < 0 {
			nl = len(body) - lineStart
		}
		line := string(body[lineStart : lineStart+nl])
		lineOffset := bodyStart + lineStart
		lineStart += nl + 1

		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedRecord, line)
		}

		switch key {
		case "ID":
			rec.ID = value
		case "Cert":
			der, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad certificate encoding", ErrMalformedRecord)
			}
			cert, err := certstore.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
			}
			rec.Certificate = cert
		case "DigestAlg":
			rec.DigestAlgorithm = digest.Algorithm(value)
		case "Created":
			t, err := time.Parse(createdFormat, value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformedRecord, value)
			}
			rec.CreatedAt = t
		case "Page":
			page, err := strconv.Atoi(value)
			if err != nil || page < 0 {
				return nil, fmt.Errorf("%w: bad page index %q", ErrMalformedRecord, value)
			}
			ensurePlacement().Page = page
		case "Rect":
			rect, err := parseRect(value)
			if err != nil {
				return nil, err
			}
			ensurePlacement().Rect = rect
		case "Reason":
			ensurePlacement().Reason = value
		case "Location":
			ensurePlacement().Location = value
		case "Appearance":
			img, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad appearance encoding", ErrMalformedRecord)
			}
			ensurePlacement().Appearance = img
		case "ByteRange":
			spans, err := parseByteRange(value)
			if err != nil {
				return nil, err
			}
			rec.ByteRange = spans
		case "Contents":
			// The value begins at '<' right after "Contents: ".
			start := int64(lineOffset + len("Contents: "))
			sig, end, err := parseContents(value)
			if err != nil {
				return nil, err
			}
			rec.SignatureValue = sig
			rec.ContentsStart = start
			rec.ContentsEnd = start + end
		default:
			return nil, fmt.Errorf("%w: unknown header %q", ErrMalformedRecord, key)
		}
	}

	if rec.ID == "" || rec.Certificate == nil || len(rec.ByteRange) != 2 ||
		rec.SignatureValue == nil || rec.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: incomplete record", ErrMalformedRecord)
	}
	rec.Placement = placement
	return rec, nil
}

// parseRect parses "llx lly urx ury".
func parseRect(value string) (Rectangle, error) {
	parts := strings.Fields(value)
	if len(parts) != 4 {
		return Rectangle{}, fmt.Errorf("%w: bad rectangle %q", ErrMalformedRecord, value)
	}
	coords := make([]float64, 4)
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return Rectangle{}, fmt.Errorf("%w: bad rectangle %q", ErrMalformedRecord, value)
		}
		coords[i] = f
	}
	return Rectangle{LLX: coords[0], LLY: coords[1], URX: coords[2], URY: coords[3]}, nil
}

// parseByteRange parses "[off1 len1 off2 len2]" with trailing padding.
func parseByteRange(value string) ([]digest.Span, error) {
	open := strings.IndexByte(value, '[')
	closing := strings.IndexByte(value, ']')
	if open < 0 || closing < open {
		return nil, fmt.Errorf("%w: bad byte range %q", ErrMalformedRecord, value)
	}
	parts := strings.Fields(value[open+1 : closing])
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: byte range needs 4 values, got %d", ErrMalformedRecord, len(parts))
	}
	nums := make([]int64, 4)
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad byte range value %q", ErrMalformedRecord, part)
		}
		nums[i] = n
	}
	return []digest.Span{
		{Offset: nums[0], Length: nums[1]},
		{Offset: nums[2], Length: nums[3]},
	}, nil
}

// parseContents parses "<HEX...>" and extracts the length-prefixed
// signature value. It returns the signature and the region's length in
// the document (delimiters included).
func parseContents(value string) ([]byte, int64, error) {
	if len(value) < 2 || value[0] != '<' {
		return nil, 0, fmt.Errorf("%w: bad contents region", ErrMalformedRecord)
	}
	closing := strings.IndexByte(value, '>')
	if closing < 0 {
		return nil, 0, fmt.Errorf("%w: unterminated contents region", ErrMalformedRecord)
	}

	raw, err := hex.DecodeString(value[1:closing])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: bad contents encoding", ErrMalformedRecord)
	}
	if len(raw) < 4 {
		return nil, 0, fmt.Errorf("%w: contents region too short", ErrMalformedRecord)
	}
	sigLen := binary.BigEndian.Uint32(raw)
	if int(sigLen) > len(raw)-4 {
		return nil, 0, fmt.Errorf("%w: signature length %d exceeds region", ErrMalformedRecord, sigLen)
	}
	sig := raw[4 : 4+sigLen]
	return sig, int64(closing + 1), nil
}
