package bundle

import (
	"fmt"
	"image"
	"image/draw"
)

// TextureFormat is the pixel layout of a texture payload.
type TextureFormat uint8

const (
	FormatRGBA32 TextureFormat = 4
	FormatRGB24  TextureFormat = 3
)

func (f TextureFormat) bytesPerPixel() int { return int(f) }

func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA32:
		return "RGBA32"
	case FormatRGB24:
		return "RGB24"
	default:
		return fmt.Sprintf("format(%d)", f)
	}
}

type texturePayload struct {
	Name   string        `cbor:"1,keyasint"`
	Width  int           `cbor:"2,keyasint"`
	Height int           `cbor:"3,keyasint"`
	Format TextureFormat `cbor:"4,keyasint"`
	// Data holds rows bottom-up, as the engine uploads them.
	Data []byte `cbor:"5,keyasint"`
}

// Texture is a decoded Texture2D object.
type Texture struct {
	Name   string
	Width  int
	Height int
	Format TextureFormat

	obj     *Object
	data    []byte
	pending image.Image
	colors  int
}

// Textures decodes every Texture2D object in directory order. Repeated
// calls return the same *Texture values.
func (e *Environment) Textures() ([]*Texture, error) {
	var out []*Texture
	for _, o := range e.ObjectsOfType(TypeTexture2D) {
		t, err := o.texture()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (o *Object) texture() (*Texture, error) {
	if t, ok := o.decoded.(*Texture); ok {
		return t, nil
	}
	var p texturePayload
	if err := decMode.Unmarshal(o.payload, &p); err != nil {
		return nil, fmt.Errorf("texture %d: %w", o.PathID, err)
	}
	if p.Format != FormatRGBA32 && p.Format != FormatRGB24 {
		return nil, fmt.Errorf("texture %q: unsupported %s", p.Name, p.Format)
	}
	if want := p.Width * p.Height * p.Format.bytesPerPixel(); len(p.Data) != want {
		return nil, fmt.Errorf("texture %q: %d pixel bytes, want %d", p.Name, len(p.Data), want)
	}
	t := &Texture{
		Name:   p.Name,
		Width:  p.Width,
		Height: p.Height,
		Format: p.Format,
		obj:    o,
		data:   p.Data,
		colors: -1,
	}
	o.decoded = t
	return t, nil
}

// AddTexture appends a new Texture2D object built from img.
func (e *Environment) AddTexture(name string, img image.Image, format TextureFormat) (*Texture, error) {
	o := &Object{PathID: e.nextID, Type: TypeTexture2D, Name: name, Compression: CompressionLZ4}
	t := &Texture{Name: name, Format: format, obj: o, colors: -1}
	o.decoded = t
	t.SetImage(img)
	if err := t.Save(); err != nil {
		return nil, err
	}
	e.nextID++
	e.objects = append(e.objects, o)
	return t, nil
}

// Image returns the texture as a top-down image.
func (t *Texture) Image() image.Image {
	bpp := t.Format.bytesPerPixel()
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		src := t.data[(t.Height-1-y)*t.Width*bpp:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < t.Width; x++ {
			s := src[x*bpp:]
			d := dst[x*4:]
			d[0], d[1], d[2] = s[0], s[1], s[2]
			if bpp == 4 {
				d[3] = s[3]
			} else {
				d[3] = 0xff
			}
		}
	}
	return img
}

// HasAlpha reports whether the pixel format carries an alpha channel.
func (t *Texture) HasAlpha() bool { return t.Format == FormatRGBA32 }

// ColorCount returns the number of distinct pixel values.
func (t *Texture) ColorCount() int {
	if t.colors >= 0 {
		return t.colors
	}
	bpp := t.Format.bytesPerPixel()
	seen := make(map[uint32]struct{})
	for i := 0; i+bpp <= len(t.data); i += bpp {
		v := uint32(t.data[i])<<16 | uint32(t.data[i+1])<<8 | uint32(t.data[i+2])
		if bpp == 4 {
			v = v<<8 | uint32(t.data[i+3])
		}
		seen[v] = struct{}{}
	}
	t.colors = len(seen)
	return t.colors
}

// SetImage assigns a replacement image. The payload is rebuilt by Save.
func (t *Texture) SetImage(img image.Image) {
	t.pending = img
}

// Save re-encodes the pending image into the texture's pixel format and
// writes the payload back into the owning object.
func (t *Texture) Save() error {
	if t.pending != nil {
		t.encode(t.pending)
		t.pending = nil
	}
	payload, err := encMode.Marshal(texturePayload{
		Name:   t.Name,
		Width:  t.Width,
		Height: t.Height,
		Format: t.Format,
		Data:   t.data,
	})
	if err != nil {
		return fmt.Errorf("encode texture %q: %w", t.Name, err)
	}
	t.obj.setPayload(payload)
	return nil
}

func (t *Texture) encode(img image.Image) {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	w, h := b.Dx(), b.Dy()
	bpp := t.Format.bytesPerPixel()
	data := make([]byte, w*h*bpp)
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := data[(h-1-y)*w*bpp:]
		for x := 0; x < w; x++ {
			s := src[x*4:]
			d := dst[x*bpp:]
			d[0], d[1], d[2] = s[0], s[1], s[2]
			if bpp == 4 {
				d[3] = s[3]
			}
		}
	}
	t.Width, t.Height, t.data, t.colors = w, h, data, -1
}
