// Package texture finds the card art texture inside a bundle and writes
// replacement images back into it.
package texture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/bundle"
	"github.com/arcanaland/arenaswap/internal/card"
	"github.com/arcanaland/arenaswap/internal/imaging"
	"github.com/arcanaland/arenaswap/internal/install"
)

// Resolution is a bundle opened for editing together with its candidate
// textures, largest first.
type Resolution struct {
	Path     string
	Filename string
	Env      *bundle.Environment
	Textures []*bundle.Texture
}

// Primary is the texture a replacement targets.
func (r *Resolution) Primary() (*bundle.Texture, error) {
	if len(r.Textures) == 0 {
		return nil, apperr.NotFound("no replaceable texture in %s", r.Filename)
	}
	return r.Textures[0], nil
}

// Resolver opens the bundle for an art id.
type Resolver struct {
	layout install.Layout
	loader *bundle.Loader
	logger *zap.Logger
}

// NewResolver returns a resolver over the bundles in layout. A nil logger
// is replaced with a no-op logger.
func NewResolver(layout install.Layout, loader *bundle.Loader, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{layout: layout, loader: loader, logger: logger}
}

// Resolve opens the first bundle whose name starts with prefix and returns
// its art textures.
func (r *Resolver) Resolve(ctx context.Context, prefix string) (*Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := r.layout.FindBundles(prefix)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, apperr.NotFound("no bundle starting with %s in %s", prefix, r.layout.BundleDir)
	}
	path := filepath.Join(r.layout.BundleDir, names[0])

	env, err := r.loader.Open(path)
	if err != nil {
		return nil, err
	}
	all, err := env.Textures()
	if err != nil {
		return nil, apperr.Format(err, "read textures of %s", names[0])
	}

	textures := Candidates(all)
	r.logger.Debug("bundle resolved",
		zap.String("bundle", names[0]),
		zap.Int("textures", len(all)),
		zap.Int("candidates", len(textures)),
	)
	return &Resolution{Path: path, Filename: names[0], Env: env, Textures: textures}, nil
}

// ResolveCard resolves the bundle holding c's art.
func (r *Resolver) ResolveCard(ctx context.Context, c card.Card) (*Resolution, error) {
	return r.Resolve(ctx, install.ArtPrefix(c.ArtID))
}

// Candidates drops atlas and font textures and orders the rest by size and
// then colour count, both descending. Ties keep their bundle order.
func Candidates(all []*bundle.Texture) []*bundle.Texture {
	out := make([]*bundle.Texture, 0, len(all))
	for _, t := range all {
		if excluded(t.Name) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Width+out[i].Height, out[j].Width+out[j].Height
		if si != sj {
			return si > sj
		}
		return out[i].ColorCount() > out[j].ColorCount()
	})
	return out
}

func excluded(name string) bool {
	lower := strings.ToLower(name)
	if lower == "font texture" {
		return true
	}
	fields := strings.Fields(lower)
	return len(fields) > 0 && strings.Contains(fields[len(fields)-1], "atlas")
}

// Mutator writes replacement images into bundles.
type Mutator struct {
	logger *zap.Logger
}

// NewMutator returns a Mutator. A nil logger is replaced with a no-op
// logger.
func NewMutator(logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{logger: logger}
}

// Replace decodes src into entry, serializes env and overwrites bundlePath.
func (m *Mutator) Replace(entry *bundle.Texture, src imaging.Source, bundlePath string, env *bundle.Environment) error {
	img, err := imaging.Decode(src)
	if err != nil {
		return err
	}
	entry.SetImage(img)
	if err := entry.Save(); err != nil {
		return apperr.Format(err, "encode texture %q", entry.Name)
	}
	data, err := env.Serialize()
	if err != nil {
		return apperr.Format(err, "serialize %s", filepath.Base(bundlePath))
	}
	if err := writeFile(bundlePath, data); err != nil {
		return err
	}
	m.logger.Info("texture replaced",
		zap.String("bundle", filepath.Base(bundlePath)),
		zap.String("texture", entry.Name),
		zap.Int("width", entry.Width),
		zap.Int("height", entry.Height),
	)
	return nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".arenaswap-*")
	if err != nil {
		return apperr.IO(err, "write %s", path)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return apperr.IO(err, "write %s", path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.IO(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return apperr.IO(err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperr.IO(err, "replace %s", path)
	}
	return nil
}

// Export writes every candidate texture of res as PNG into dir and returns
// the written paths.
func Export(res *Resolution, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperr.IO(err, "create %s", dir)
	}
	base := strings.TrimSuffix(res.Filename, filepath.Ext(res.Filename))
	var paths []string
	for i, t := range res.Textures {
		name := base + ".png"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.png", base, i)
		}
		data, err := imaging.PNGBytes(t.Image())
		if err != nil {
			return paths, apperr.Format(err, "encode %q", t.Name)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, apperr.IO(err, "write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
