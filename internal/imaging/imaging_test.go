package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestFitAspectRatio_CropWiderTarget(t *testing.T) {
	img := solid(1024, 768, color.NRGBA{R: 10, A: 255})

	out, err := FitAspectRatio(img, Ratio{W: 11, H: 8}, ModeCrop)
	require.NoError(t, err)
	w, h := size(out)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 744, h)
}

func TestFitAspectRatio_CropNarrowerTarget(t *testing.T) {
	img := solid(1000, 500, color.NRGBA{G: 10, A: 255})

	out, err := FitAspectRatio(img, Ratio{W: 1, H: 1}, ModeCrop)
	require.NoError(t, err)
	w, h := size(out)
	assert.Equal(t, 500, w)
	assert.Equal(t, 500, h)
}

func TestFitAspectRatio_CropIsCentered(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 6, 2))
	// Mark the two middle columns.
	for y := 0; y < 2; y++ {
		img.SetNRGBA(2, y, color.NRGBA{R: 255, A: 255})
		img.SetNRGBA(3, y, color.NRGBA{R: 255, A: 255})
	}

	out, err := FitAspectRatio(img, Ratio{W: 1, H: 1}, ModeCrop)
	require.NoError(t, err)
	n := out.(*image.NRGBA)
	assert.Equal(t, uint8(255), n.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), n.NRGBAAt(1, 1).R)
}

func TestFitAspectRatio_CropNeverExceedsSource(t *testing.T) {
	img := solid(300, 200, color.NRGBA{A: 255})
	for _, r := range []Ratio{{16, 9}, {4, 3}, {1, 5}, {5, 1}, {11, 8}} {
		out, err := FitAspectRatio(img, r, ModeCrop)
		require.NoError(t, err)
		w, h := size(out)
		assert.LessOrEqual(t, w, 300, r.String())
		assert.LessOrEqual(t, h, 200, r.String())
		assert.InDelta(t, float64(r.W)/float64(r.H), float64(w)/float64(h), 0.05, r.String())
	}
}

func TestFitAspectRatio_StretchRefusesUpscale(t *testing.T) {
	img := solid(100, 50, color.NRGBA{B: 9, A: 255})

	out, err := FitAspectRatio(img, Ratio{W: 200, H: 100}, ModeStretch)
	require.NoError(t, err)
	assert.Same(t, img, out)

	out, err = FitAspectRatio(img, Ratio{W: 60, H: 60}, ModeStretch)
	require.NoError(t, err)
	w, h := size(out)
	assert.Equal(t, 60, w)
	assert.Equal(t, 60, h)
}

func TestFitAspectRatio_RejectsNonPositiveRatio(t *testing.T) {
	_, err := FitAspectRatio(solid(4, 4, color.NRGBA{}), Ratio{W: 0, H: 8}, ModeCrop)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParseRatio(t *testing.T) {
	r, err := ParseRatio("11:8")
	require.NoError(t, err)
	assert.Equal(t, Ratio{W: 11, H: 8}, r)

	r, err = ParseRatio("256x512")
	require.NoError(t, err)
	assert.Equal(t, Ratio{W: 256, H: 512}, r)

	for _, bad := range []string{"", "11", "a:b", "0:3", "-1:2", "1:2:3"} {
		_, err := ParseRatio(bad)
		assert.True(t, apperr.Is(err, apperr.KindValidation), bad)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Stretch")
	require.NoError(t, err)
	assert.Equal(t, ModeStretch, m)

	_, err = ParseMode("zoom")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRemoveAlpha(t *testing.T) {
	img := solid(2, 2, color.NRGBA{R: 40, G: 50, B: 60, A: 10})

	out := RemoveAlpha(img, true).(*image.NRGBA)
	assert.Equal(t, color.NRGBA{R: 40, G: 50, B: 60, A: 255}, out.NRGBAAt(1, 1))

	assert.Same(t, img, RemoveAlpha(img, false))

	opaque := solid(2, 2, color.NRGBA{R: 1, A: 255})
	assert.Same(t, opaque, RemoveAlpha(opaque, true))
}

func TestFitToBounds(t *testing.T) {
	img := solid(400, 200, color.NRGBA{A: 255})

	w, h := size(FitToBounds(img, 100, 100))
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)

	assert.Same(t, img, FitToBounds(img, 800, 800))
}

func TestThumbnail_Upscales(t *testing.T) {
	img := solid(10, 20, color.NRGBA{A: 255})

	w, h := size(Thumbnail(img, 100, 100))
	assert.Equal(t, 50, w)
	assert.Equal(t, 100, h)
}

func TestDecode(t *testing.T) {
	src := solid(7, 3, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	data, err := PNGBytes(src)
	require.NoError(t, err)

	img, err := Decode(Raw(data))
	require.NoError(t, err)
	w, h := size(img)
	assert.Equal(t, 7, w)
	assert.Equal(t, 3, h)

	img, err = Decode(Decoded{Image: src})
	require.NoError(t, err)
	assert.Same(t, src, img)

	_, err = Decode(Raw("definitely not an image"))
	assert.True(t, apperr.Is(err, apperr.KindFormat))
}

func TestProcessedImageSurvivesPNGRoundTrip(t *testing.T) {
	img := solid(1024, 768, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	out, err := FitAspectRatio(RemoveAlpha(img, true), Ratio{W: 11, H: 8}, ModeCrop)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, out))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, out.Bounds().Size(), decoded.Bounds().Size())
}

func TestCropClipsToBounds(t *testing.T) {
	img := solid(10, 10, color.NRGBA{A: 255})
	out := Crop(img, image.Rect(5, 5, 20, 20))
	assert.Equal(t, image.Rect(0, 0, 5, 5), out.Bounds())
}
