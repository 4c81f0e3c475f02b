package stamp

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG format
	"image/png"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/document"
)

// ImageScaleMode specifies how an image is scaled within stamp bounds.
type ImageScaleMode int

const (
	// ImageScaleFit scales to fit the bounds, preserving aspect ratio.
	ImageScaleFit ImageScaleMode = iota
	// ImageScaleStretch stretches to exactly fill the bounds.
	ImageScaleStretch
	// ImageScaleNone uses the image's natural size.
	ImageScaleNone
)

// String returns the scale mode name.
func (m ImageScaleMode) String() string {
	switch m {
	case ImageScaleFit:
		return "fit"
	case ImageScaleStretch:
		return "stretch"
	case ImageScaleNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseImageScaleMode parses a scale mode name.
func ParseImageScaleMode(s string) (ImageScaleMode, error) {
	switch s {
	case "fit":
		return ImageScaleFit, nil
	case "stretch":
		return ImageScaleStretch, nil
	case "none":
		return ImageScaleNone, nil
	default:
		return ImageScaleFit, fmt.Errorf("invalid scale mode: %s (valid: fit, stretch, none)", s)
	}
}

// ImageStamp renders a caller-supplied image, such as a scanned
// handwritten signature, into a stamp bitmap. The image carries no
// cryptographic weight; trust comes only from the signature value.
type ImageStamp struct {
	// Source image data (PNG or JPEG).
	Source []byte

	// Width and Height of the rendered stamp in pixels. Zero means the
	// source image's natural size.
	Width  int
	Height int

	// ScaleMode determines how the source is fitted into the bounds.
	ScaleMode ImageScaleMode
}

// Render decodes the source image, scales it per the stamp bounds and
// mode, and returns the result as PNG bytes.
func (s *ImageStamp) Render() ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(s.Source))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stamp image: %w", err)
	}

	bounds := src.Bounds()
	width, height := s.Width, s.Height
	if width <= 0 {
		width = bounds.Dx()
	}
	if height <= 0 {
		height = bounds.Dy()
	}

	var target image.Rectangle
	switch s.ScaleMode {
	case ImageScaleStretch:
		target = image.Rect(0, 0, width, height)
	case ImageScaleNone:
		width, height = bounds.Dx(), bounds.Dy()
		target = image.Rect(0, 0, width, height)
	default:
		target = fitRect(bounds.Dx(), bounds.Dy(), width, height)
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(out, target, src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode stamp image: %w", err)
	}
	return buf.Bytes(), nil
}

// fitRect centers a srcW x srcH image inside dstW x dstH bounds at the
// largest scale that preserves aspect ratio.
func fitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	scaleW := float64(dstW) / float64(srcW)
	scaleH := float64(dstH) / float64(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// ImageProvider supplies a fixed image stamp, ignoring certificate
// details. Used for handwritten signature images.
type ImageProvider struct {
	Stamp *ImageStamp
}

// Appearance renders the configured image stamp. The placement's
// rectangle, when set, determines the stamp bounds.
func (p *ImageProvider) Appearance(_ *certstore.Certificate, placement *document.Placement, _ time.Time) ([]byte, error) {
	stamp := *p.Stamp
	if placement != nil && stamp.Width == 0 && stamp.Height == 0 {
		stamp.Width = int(placement.Rect.Width())
		stamp.Height = int(placement.Rect.Height())
	}
	return stamp.Render()
}
