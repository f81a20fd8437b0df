// Package imaging holds the pure image transforms used before a texture is
// written back into a bundle or rendered as a preview.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/nfnt/resize"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

// Source is either encoded image bytes or an already decoded image.
type Source interface {
	isSource()
}

// Raw is an encoded image (PNG, JPEG or GIF).
type Raw []byte

// Decoded wraps an in-memory image.
type Decoded struct {
	Image image.Image
}

func (Raw) isSource()     {}
func (Decoded) isSource() {}

// Decode normalizes a Source into an image. Undecodable bytes are reported
// as a Format error.
func Decode(src Source) (image.Image, error) {
	switch s := src.(type) {
	case Raw:
		img, _, err := image.Decode(bytes.NewReader(s))
		if err != nil {
			return nil, apperr.Format(err, "decode image")
		}
		return img, nil
	case Decoded:
		if s.Image == nil {
			return nil, apperr.Format(nil, "decode image: empty image")
		}
		return s.Image, nil
	default:
		return nil, apperr.Format(nil, "decode image: unsupported source %T", src)
	}
}

// Mode selects how FitAspectRatio reaches the requested ratio.
type Mode int

const (
	// ModeCrop takes the largest centered crop with the requested ratio.
	ModeCrop Mode = iota
	// ModeStretch resizes to exactly Ratio.W x Ratio.H pixels.
	ModeStretch
)

// ParseMode accepts "crop" or "stretch".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crop":
		return ModeCrop, nil
	case "stretch":
		return ModeStretch, nil
	default:
		return 0, apperr.Validation(nil, "unknown fit mode %q (want crop or stretch)", s)
	}
}

// Ratio is a width:height pair. In stretch mode it is the exact target size.
type Ratio struct {
	W, H int
}

func (r Ratio) String() string { return fmt.Sprintf("%d:%d", r.W, r.H) }

func (r Ratio) validate() error {
	if r.W <= 0 || r.H <= 0 {
		return apperr.Validation(nil, "aspect ratio %s must be positive", r)
	}
	return nil
}

// ParseRatio parses "11:8" or "11x8".
func ParseRatio(s string) (Ratio, error) {
	sep := ":"
	if !strings.Contains(s, sep) {
		sep = "x"
	}
	parts := strings.Split(strings.TrimSpace(s), sep)
	if len(parts) != 2 {
		return Ratio{}, apperr.Validation(nil, "aspect ratio %q must look like W:H", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Ratio{}, apperr.Validation(err, "aspect ratio width %q", parts[0])
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Ratio{}, apperr.Validation(err, "aspect ratio height %q", parts[1])
	}
	r := Ratio{W: w, H: h}
	if err := r.validate(); err != nil {
		return Ratio{}, err
	}
	return r, nil
}

// RemoveAlpha flattens an image with an alpha channel to an opaque one by
// dropping alpha. Colors are kept as stored, not composited. Opaque images,
// or enabled=false, are returned unchanged.
func RemoveAlpha(img image.Image, enabled bool) image.Image {
	if !enabled {
		return img
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	out := toNRGBA(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// FitAspectRatio brings img to the requested ratio. Crop mode never
// upscales. Stretch mode returns img unchanged when the requested size is
// larger than the source (W+H compared).
func FitAspectRatio(img image.Image, r Ratio, mode Mode) (image.Image, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch mode {
	case ModeCrop:
		target := float64(r.W) / float64(r.H)
		current := float64(w) / float64(h)
		cw, ch := w, h
		if current > target {
			// Too wide: keep the height.
			cw = int(float64(h) * target)
		} else {
			cw = w
			ch = int(float64(w) / target)
		}
		left := b.Min.X + (w-cw)/2
		top := b.Min.Y + (h-ch)/2
		return Crop(img, image.Rect(left, top, left+cw, top+ch)), nil
	case ModeStretch:
		if r.W+r.H > w+h {
			return img, nil
		}
		return Resize(img, r.W, r.H), nil
	default:
		return nil, apperr.Validation(nil, "unknown fit mode %d", mode)
	}
}

// FitToBounds scales img down uniformly so it fits inside maxW x maxH.
// Images that already fit are returned unchanged.
func FitToBounds(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	factor := min(float64(maxW)/float64(w), float64(maxH)/float64(h), 1)
	if factor >= 1 {
		return img
	}
	return Resize(img, scaled(w, factor), scaled(h, factor))
}

// Thumbnail scales img uniformly to fit the w x h box. Small sources are
// scaled up.
func Thumbnail(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	factor := min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	return Resize(img, scaled(b.Dx(), factor), scaled(b.Dy(), factor))
}

func scaled(n int, factor float64) int {
	return max(int(float64(n)*factor), 1)
}

// Resize resamples img to exactly w x h with a Lanczos3 filter.
func Resize(img image.Image, w, h int) image.Image {
	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}

// Crop copies the part of img inside rect (clipped to the image bounds)
// into a new image anchored at the origin.
func Crop(img image.Image, rect image.Rectangle) *image.NRGBA {
	rect = rect.Intersect(img.Bounds())
	out := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PNGBytes encodes img as PNG in memory.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:(y+1)*out.Stride], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
