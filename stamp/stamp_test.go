package stamp

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/document"
	"github.com/georgepadayatti/docsign/keypair"
)

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestTextStampRender(t *testing.T) {
	stamp := NewTextStamp([]string{"Digitally signed by: Alice", "Date: 2026-05-01"}, nil)
	data, err := stamp.Render()
	require.NoError(t, err)

	img := decodePNG(t, data)
	assert.Greater(t, img.Bounds().Dx(), 100)
	assert.Greater(t, img.Bounds().Dy(), 2*DefaultStyle().LineHeight)
}

func TestTextStampEmpty(t *testing.T) {
	_, err := NewTextStamp(nil, &Style{}).Render()
	assert.Error(t, err)
}

func TestProviderAppearance(t *testing.T) {
	pair, err := keypair.Generate(keypair.AlgorithmECDSA, 256)
	require.NoError(t, err)
	cert, err := certstore.NewCertificate(
		certstore.SubjectAttributes{Name: "Alice"},
		certstore.Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	placement := &document.Placement{Reason: "Approved", Location: "Berlin"}
	data, err := NewProvider(nil).Appearance(cert, placement, time.Now())
	require.NoError(t, err)
	decodePNG(t, data)
}

func testSourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageStampRender(t *testing.T) {
	source := testSourcePNG(t, 40, 20)

	t.Run("natural size", func(t *testing.T) {
		stamp := &ImageStamp{Source: source, ScaleMode: ImageScaleNone}
		data, err := stamp.Render()
		require.NoError(t, err)
		img := decodePNG(t, data)
		assert.Equal(t, 40, img.Bounds().Dx())
		assert.Equal(t, 20, img.Bounds().Dy())
	})

	t.Run("stretch", func(t *testing.T) {
		stamp := &ImageStamp{Source: source, Width: 100, Height: 100, ScaleMode: ImageScaleStretch}
		data, err := stamp.Render()
		require.NoError(t, err)
		img := decodePNG(t, data)
		assert.Equal(t, 100, img.Bounds().Dx())
		assert.Equal(t, 100, img.Bounds().Dy())
	})

	t.Run("fit keeps bounds", func(t *testing.T) {
		stamp := &ImageStamp{Source: source, Width: 100, Height: 100, ScaleMode: ImageScaleFit}
		data, err := stamp.Render()
		require.NoError(t, err)
		img := decodePNG(t, data)
		assert.Equal(t, 100, img.Bounds().Dx())
		assert.Equal(t, 100, img.Bounds().Dy())
	})

	t.Run("bad source", func(t *testing.T) {
		stamp := &ImageStamp{Source: []byte("not an image")}
		_, err := stamp.Render()
		assert.Error(t, err)
	})
}

func TestParseImageScaleMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want ImageScaleMode
	}{
		{"fit", ImageScaleFit},
		{"stretch", ImageScaleStretch},
		{"none", ImageScaleNone},
	} {
		got, err := ParseImageScaleMode(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.in, got.String())
	}

	_, err := ParseImageScaleMode("tile")
	assert.Error(t, err)
}

func TestImageProviderUsesPlacementBounds(t *testing.T) {
	source := testSourcePNG(t, 10, 10)
	provider := &ImageProvider{Stamp: &ImageStamp{Source: source, ScaleMode: ImageScaleStretch}}

	placement := &document.Placement{Rect: document.Rectangle{LLX: 0, LLY: 0, URX: 80, URY: 40}}
	data, err := provider.Appearance(nil, placement, time.Time{})
	require.NoError(t, err)

	img := decodePNG(t, data)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}
