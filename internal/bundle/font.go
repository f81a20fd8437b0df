package bundle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

type fontPayload struct {
	Name string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

// Font is a decoded Font object holding raw TrueType or OpenType data.
type Font struct {
	Name string
	Data []byte
}

// Extension returns ".otf" for CFF-flavoured OpenType data and ".ttf"
// otherwise.
func (f *Font) Extension() string {
	if bytes.HasPrefix(f.Data, []byte("OTTO")) {
		return ".otf"
	}
	return ".ttf"
}

// Fonts decodes every Font object in directory order.
func (e *Environment) Fonts() ([]*Font, error) {
	var out []*Font
	for _, o := range e.ObjectsOfType(TypeFont) {
		var p fontPayload
		if err := decMode.Unmarshal(o.payload, &p); err != nil {
			return nil, fmt.Errorf("font %d: %w", o.PathID, err)
		}
		out = append(out, &Font{Name: p.Name, Data: p.Data})
	}
	return out, nil
}

// AddFont appends a Font object.
func (e *Environment) AddFont(name string, data []byte) error {
	payload, err := encMode.Marshal(fontPayload{Name: name, Data: data})
	if err != nil {
		return fmt.Errorf("encode font %q: %w", name, err)
	}
	e.AddRaw(TypeFont, name, payload, CompressionZstd)
	return nil
}

// ExportFonts writes every font with data into dir and returns the written
// paths. Fonts without data are skipped.
func ExportFonts(env *Environment, dir string) ([]string, error) {
	fonts, err := env.Fonts()
	if err != nil {
		return nil, err
	}
	var written []string
	for _, f := range fonts {
		if len(f.Data) == 0 {
			continue
		}
		path := filepath.Join(dir, f.Name+f.Extension())
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			return written, fmt.Errorf("write font %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
