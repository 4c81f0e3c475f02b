// Package stamp renders signature appearance bitmaps. Appearances are
// cosmetic only and never participate in digesting or verification.
package stamp

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/document"
)

// Style configures the appearance of a stamp.
type Style struct {
	// Background color (RGBA)
	BackgroundColor color.RGBA
	// Border color
	BorderColor color.RGBA
	// Border width in pixels
	BorderWidth int
	// Text color
	TextColor color.RGBA
	// Line height in pixels
	LineHeight int
	// Padding inside the stamp in pixels
	Padding int
}

// DefaultStyle returns the default stamp style.
func DefaultStyle() *Style {
	return &Style{
		BackgroundColor: color.RGBA{255, 255, 255, 255},
		BorderColor:     color.RGBA{0, 0, 0, 255},
		BorderWidth:     1,
		TextColor:       color.RGBA{0, 0, 0, 255},
		LineHeight:      16,
		Padding:         6,
	}
}

// TextStamp renders lines of text into a PNG bitmap.
type TextStamp struct {
	Style *Style
	Lines []string
}

// NewTextStamp creates a text stamp. A nil style uses DefaultStyle.
func NewTextStamp(lines []string, style *Style) *TextStamp {
	if style == nil {
		style = DefaultStyle()
	}
	return &TextStamp{Style: style, Lines: lines}
}

// face is the fixed bitmap font used for all text stamps.
var face = basicfont.Face7x13

// Render draws the stamp and returns it as PNG bytes.
func (s *TextStamp) Render() ([]byte, error) {
	maxWidth := 0
	for _, line := range s.Lines {
		if w := font.MeasureString(face, line).Ceil(); w > maxWidth {
			maxWidth = w
		}
	}
	width := maxWidth + s.Style.Padding*2
	height := len(s.Lines)*s.Style.LineHeight + s.Style.Padding*2
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("stamp has no content to render")
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(s.Style.BackgroundColor), image.Point{}, draw.Src)
	drawBorder(img, s.Style.BorderColor, s.Style.BorderWidth)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(s.Style.TextColor),
		Face: face,
	}
	y := s.Style.Padding + face.Metrics().Ascent.Ceil()
	for _, line := range s.Lines {
		drawer.Dot = fixed.P(s.Style.Padding, y)
		drawer.DrawString(line)
		y += s.Style.LineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode stamp: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBorder strokes a rectangular border just inside the image bounds.
func drawBorder(img *image.RGBA, c color.RGBA, width int) {
	if width <= 0 {
		return
	}
	b := img.Bounds()
	for i := 0; i < width; i++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, b.Min.Y+i, c)
			img.SetRGBA(x, b.Max.Y-1-i, c)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.SetRGBA(b.Min.X+i, y, c)
			img.SetRGBA(b.Max.X-1-i, y, c)
		}
	}
}

// Provider renders default signature stamps from the signer certificate
// and placement metadata. It implements the signer's appearance hook.
type Provider struct {
	Style *Style
}

// NewProvider creates a stamp provider. A nil style uses DefaultStyle.
func NewProvider(style *Style) *Provider {
	if style == nil {
		style = DefaultStyle()
	}
	return &Provider{Style: style}
}

// Appearance renders the standard stamp text for a signature: the
// signer name, the signing time, and the optional reason and location
// from the placement.
func (p *Provider) Appearance(cert *certstore.Certificate, placement *document.Placement, signedAt time.Time) ([]byte, error) {
	lines := []string{
		"Digitally signed by: " + cert.Subject().Name,
		"Date: " + signedAt.Format(time.RFC3339),
	}
	if placement != nil {
		if placement.Reason != "" {
			lines = append(lines, "Reason: "+placement.Reason)
		}
		if placement.Location != "" {
			lines = append(lines, "Location: "+placement.Location)
		}
	}
	return NewTextStamp(lines, p.Style).Render()
}
