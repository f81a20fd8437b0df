package bundle

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 32), B: 7, A: 200})
		}
	}
	return img
}

func sampleEnv(t *testing.T) *Environment {
	t.Helper()
	env, err := New("2022.3.42f1")
	require.NoError(t, err)
	_, err = env.AddTexture("card art", gradient(8, 4), FormatRGBA32)
	require.NoError(t, err)
	require.NoError(t, env.AddFont("Beleren", []byte("OTTO-font-bytes")))
	require.NoError(t, env.AddMesh(&Mesh{
		Name:     "frame",
		Vertices: []float32{1, 2, 3, 4, 5, 6, 7, 8, 9},
		Indices:  []uint32{0, 1, 2},
	}))
	env.AddRaw(TypeTextAsset, "notes", []byte(strings.Repeat("flavor text ", 32)), CompressionZstd)
	return env
}

func TestSerializeLoad_RoundTrip(t *testing.T) {
	data, err := sampleEnv(t).Serialize()
	require.NoError(t, err)

	env, err := Load(data, Options{})
	require.NoError(t, err)
	assert.Equal(t, "2022.3.42f1", env.EngineVersion.String())
	require.Len(t, env.Objects(), 4)

	textures, err := env.Textures()
	require.NoError(t, err)
	require.Len(t, textures, 1)
	tex := textures[0]
	assert.Equal(t, "card art", tex.Name)
	assert.Equal(t, 8, tex.Width)
	assert.Equal(t, 4, tex.Height)

	want := gradient(8, 4)
	got := tex.Image().(*image.NRGBA)
	assert.Equal(t, want.Pix, got.Pix)

	fonts, err := env.Fonts()
	require.NoError(t, err)
	require.Len(t, fonts, 1)
	assert.Equal(t, ".otf", fonts[0].Extension())

	meshes, err := env.Meshes()
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, []uint32{0, 1, 2}, meshes[0].Indices)

	raw := env.ObjectsOfType(TypeTextAsset)
	require.Len(t, raw, 1)
	assert.Equal(t, strings.Repeat("flavor text ", 32), string(raw[0].Payload()))
}

func TestSerialize_UntouchedObjectsAreByteIdentical(t *testing.T) {
	first, err := sampleEnv(t).Serialize()
	require.NoError(t, err)

	env, err := Load(first, Options{})
	require.NoError(t, err)
	_, err = env.Textures()
	require.NoError(t, err)

	second, err := env.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTexture_ReplaceChangesDimensions(t *testing.T) {
	data, err := sampleEnv(t).Serialize()
	require.NoError(t, err)
	env, err := Load(data, Options{})
	require.NoError(t, err)

	textures, err := env.Textures()
	require.NoError(t, err)
	textures[0].SetImage(gradient(5, 3))
	require.NoError(t, textures[0].Save())

	out, err := env.Serialize()
	require.NoError(t, err)
	reloaded, err := Load(out, Options{})
	require.NoError(t, err)
	textures, err = reloaded.Textures()
	require.NoError(t, err)
	b := textures[0].Image().Bounds()
	assert.Equal(t, 5, b.Dx())
	assert.Equal(t, 3, b.Dy())
}

func TestTexture_ColorCountAndRGB24(t *testing.T) {
	env, err := New("2022.3.42f1")
	require.NoError(t, err)

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.SetNRGBA(i%4, i/4, color.NRGBA{R: uint8(i % 3), A: 255})
	}
	tex, err := env.AddTexture("mask", img, FormatRGB24)
	require.NoError(t, err)
	assert.Equal(t, 3, tex.ColorCount())
	assert.False(t, tex.HasAlpha())

	got := tex.Image().(*image.NRGBA)
	assert.Equal(t, uint8(255), got.NRGBAAt(1, 1).A)
}

func TestLoad_StrippedVersionNeedsFallback(t *testing.T) {
	env := sampleEnv(t)
	env.HeaderVersion = "0.0.0"
	data, err := env.Serialize()
	require.NoError(t, err)

	_, err = Load(data, Options{})
	require.ErrorIs(t, err, ErrVersionFallback)

	_, err = Load(data, Options{FallbackVersion: "not-a-version"})
	require.ErrorIs(t, err, ErrVersionFallback)

	loaded, err := Load(data, Options{FallbackVersion: "2021.3.14f1"})
	require.NoError(t, err)
	assert.Equal(t, 2021, loaded.EngineVersion.Major)
	assert.Equal(t, "0.0.0", loaded.HeaderVersion)
}

func TestLoad_DetectsCorruptBlock(t *testing.T) {
	data, err := sampleEnv(t).Serialize()
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff

	_, err = Load(data, Options{})
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = Load([]byte("not a bundle"), Options{})
	require.ErrorIs(t, err, ErrCorrupt)
}

func writeStripped(t *testing.T, dir string) string {
	t.Helper()
	env := sampleEnv(t)
	env.HeaderVersion = ""
	data, err := env.Serialize()
	require.NoError(t, err)
	path := filepath.Join(dir, "000123_CardArt.mtga")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLoader_RetriesWithDescriptorVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeStripped(t, dir)

	descriptor := filepath.Join(dir, "level0")
	content := strings.Repeat("U", 40) + "2021.3.14f1" + strings.Repeat("\x00", 9) + "trailing"
	require.NoError(t, os.WriteFile(descriptor, []byte(content), 0644))

	l := &Loader{FallbackVersion: "", DescriptorPath: descriptor}
	env, err := l.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "2021.3.14f1", env.EngineVersion.String())
}

func TestLoader_FallsBackToLiteralDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeStripped(t, dir)

	l := &Loader{FallbackVersion: "broken", DescriptorPath: filepath.Join(dir, "missing")}
	env, err := l.Open(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineVersion, env.EngineVersion.String())
}

func TestLoader_ConvertsErrors(t *testing.T) {
	l := &Loader{}
	_, err := l.Open(filepath.Join(t.TempDir(), "nope.mtga"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	bad := filepath.Join(t.TempDir(), "bad.mtga")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))
	_, err = l.Open(bad)
	assert.True(t, apperr.Is(err, apperr.KindFormat))
}

func TestReadVersionDescriptor_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level0")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0644))
	assert.Equal(t, "", ReadVersionDescriptor(path))
	assert.Equal(t, "", ReadVersionDescriptor(filepath.Join(t.TempDir(), "missing")))
}

func TestExportFontsAndMeshes(t *testing.T) {
	env := sampleEnv(t)
	require.NoError(t, env.AddFont("empty", nil))
	require.NoError(t, env.AddFont("Plain", []byte{0, 1, 0, 0}))
	dir := t.TempDir()

	written, err := ExportFonts(env, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "Beleren.otf"),
		filepath.Join(dir, "Plain.ttf"),
	}, written)

	n, err := ExportMeshes(env, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	obj, err := os.ReadFile(filepath.Join(dir, "frame.obj"))
	require.NoError(t, err)
	assert.Equal(t, "g frame\nv -1 2 3\nv -4 5 6\nv -7 8 9\nf 3 2 1\n", string(obj))
}
