package setswap

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/bundle"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/cardstore/cardstoretest"
	"github.com/arcanaland/arenaswap/internal/catalog"
	"github.com/arcanaland/arenaswap/internal/imaging"
	"github.com/arcanaland/arenaswap/internal/install"
	"github.com/arcanaland/arenaswap/internal/ledger"
	"github.com/arcanaland/arenaswap/internal/texture"
)

type fakeCatalog struct {
	sets      map[string][]catalog.Card
	cards     map[string]*catalog.Card
	downloads []string
}

func (f *fakeCatalog) SearchSet(_ context.Context, code string) ([]catalog.Card, error) {
	return f.sets[code], nil
}

func (f *fakeCatalog) Card(_ context.Context, ref string) (*catalog.Card, error) {
	c, ok := f.cards[ref]
	if !ok {
		return nil, apperr.Network(nil, "GET %s: 404 Not Found", ref)
	}
	return c, nil
}

func (f *fakeCatalog) Download(_ context.Context, url string) ([]byte, error) {
	f.downloads = append(f.downloads, url)
	return imaging.PNGBytes(picture(16, 12))
}

func picture(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), A: 255})
		}
	}
	return img
}

func writeBundle(t *testing.T, dir, name string) {
	t.Helper()
	env, err := bundle.New("2022.3.42f1")
	require.NoError(t, err)
	_, err = env.AddTexture("art", picture(4, 4), bundle.FormatRGB24)
	require.NoError(t, err)
	data, err := env.Serialize()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

type fixture struct {
	store   *cardstore.Store
	ledger  *ledger.Ledger
	layout  install.Layout
	catalog *fakeCatalog
	scratch string
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	layout := install.Layout{
		RawDir:    filepath.Join(root, "Raw"),
		BundleDir: filepath.Join(root, "AssetBundle"),
		Extension: ".mtga",
	}
	require.NoError(t, os.MkdirAll(layout.BundleDir, 0755))
	for _, name := range []string{"001155_CardArt.mtga", "004488_CardArt.mtga", "004489_CardArt.mtga", "002266_CardArt.mtga"} {
		writeBundle(t, layout.BundleDir, name)
	}

	f := &fixture{
		store:  cardstoretest.Open(t),
		ledger: ledger.New(filepath.Join(root, "changes.json"), filepath.Join(root, "backups"), layout),
		layout: layout,
		catalog: &fakeCatalog{cards: map[string]*catalog.Card{
			"https://cat/bolt": {Name: "Web Bolt", TypeLine: "Instant", ImageURIs: catalog.ImageURIs{"art_crop": "https://img/bolt"}},
			"https://cat/dfc": {Name: "Spider", TypeLine: "Creature", CardFaces: []catalog.Face{
				{Name: "Peter", ImageURIs: catalog.ImageURIs{"art_crop": "https://img/front"}},
				{Name: "Spider", ImageURIs: catalog.ImageURIs{"art_crop": "https://img/back"}},
			}},
		}},
		scratch: filepath.Join(root, "scratch"),
	}
	f.orch = New(f.store, f.ledger,
		texture.NewResolver(layout, layout.Loader("", nil), nil),
		texture.NewMutator(nil),
		f.catalog,
		WithScratchDir(f.scratch),
	)
	return f
}

func (f *fixture) textureSize(t *testing.T, name string) (int, int) {
	t.Helper()
	env, err := f.layout.Loader("", nil).Open(filepath.Join(f.layout.BundleDir, name))
	require.NoError(t, err)
	textures, err := env.Textures()
	require.NoError(t, err)
	return textures[0].Width, textures[0].Height
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.orch.Run(ctx, []Swap{
		{SourceCardName: "Web Bolt", TargetCardName: "Lightning Bolt", ExpansionCode: "STA", CollectorNumber: "42", TargetAPIURL: "https://cat/bolt"},
		{SourceCardName: "Spider", TargetCardName: "Delver of Secrets", ExpansionCode: "ISD", CollectorNumber: "51", TargetScryfallURL: "https://cat/dfc"},
		{SourceCardName: "Ghost", TargetCardName: "Nothing", ExpansionCode: "STA", CollectorNumber: "999", TargetAPIURL: "https://cat/bolt"},
		{SourceCardName: "Leak", TargetCardName: "Counterspell", ExpansionCode: "STA", CollectorNumber: "43", TargetAPIURL: "https://cat/missing"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, 2, report.Succeeded())
	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.True(t, apperr.Is(failed[0].Err, apperr.KindNotFound))
	assert.True(t, apperr.Is(failed[1].Err, apperr.KindNetwork))

	assert.Equal(t, []string{"004488_CardArt.mtga", "004489_CardArt.mtga"}, report.Outcomes[1].Bundles)
	for _, name := range []string{"001155_CardArt.mtga", "004488_CardArt.mtga", "004489_CardArt.mtga"} {
		w, h := f.textureSize(t, name)
		assert.Equal(t, 16, w, name)
		assert.Equal(t, 12, h, name)
		assert.FileExists(t, filepath.Join(f.ledger.BackupDir(), "MOD_"+name))
	}
	w, _ := f.textureSize(t, "002266_CardArt.mtga")
	assert.Equal(t, 4, w)
	assert.Equal(t, []string{"https://img/bolt", "https://img/front", "https://img/back"}, f.catalog.downloads)

	cardstoretest.Read(t, f.store, func(sess *cardstore.Session) {
		title, _, err := sess.Localization(ctx, 5000)
		require.NoError(t, err)
		assert.Equal(t, "Web Bolt", title)
		alt, _, err := sess.Localization(ctx, 6000)
		require.NoError(t, err)
		assert.Equal(t, "Lightning Bolt", alt)
		delver, _, err := sess.Localization(ctx, 5002)
		require.NoError(t, err)
		assert.Equal(t, "Spider", delver)
	})

	cs, err := ledger.ReadChangeset(f.ledger.ChangesPath())
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 400}, cs.IDs())
	assert.Equal(t, map[string]string{"5000": "Web Bolt", "6000": "Lightning Bolt"},
		cs.Entries[100].Localizations(f.ledger.LocalizationKey()))

	entries, err := os.ReadDir(f.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_NothingMatches(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Run(context.Background(), []Swap{{ExpansionCode: "XXX", CollectorNumber: "1"}})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = os.Stat(f.ledger.ChangesPath())
	assert.True(t, os.IsNotExist(err))
}

func TestCropSaga(t *testing.T) {
	out := CropSaga(picture(100, 200))
	assert.Equal(t, image.Rect(0, 0, 256, 512), out.Bounds())
}

func TestGenerate(t *testing.T) {
	cat := &fakeCatalog{sets: map[string][]catalog.Card{
		"om1": {
			{OracleID: "b", Name: "Spider Bite", Set: "om1", CollectorNumber: "2"},
			{OracleID: "a", Name: "Web Shot", PrintedName: "Web Shot", Set: "om1", CollectorNumber: "1"},
			{OracleID: "z", Name: "Lonely", Set: "om1", CollectorNumber: "9"},
			{OracleID: "c", Name: "No Uri", Set: "om1", CollectorNumber: "3"},
		},
		"spm": {
			{OracleID: "a", Name: "Shock", URI: "https://cat/a"},
			{OracleID: "b", Name: "Bite", PrintedName: "Bite!", URI: "https://cat/b"},
			{OracleID: "c", Name: "Nameless"},
		},
	}}

	swaps, err := Generate(context.Background(), cat, "om1", "spm")
	require.NoError(t, err)
	assert.Equal(t, []Swap{
		{SourceCardName: "Shock", TargetCardName: "Web Shot", ExpansionCode: "OM1", CollectorNumber: "1", TargetAPIURL: "https://cat/a"},
		{SourceCardName: "Bite!", TargetCardName: "Bite", ExpansionCode: "OM1", CollectorNumber: "2", TargetAPIURL: "https://cat/b"},
	}, swaps)

	_, err = Generate(context.Background(), cat, "om1", "none")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLoadAndWriteSwaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaps.json")
	in := []Swap{{SourceCardName: "a", TargetCardName: "b", ExpansionCode: "OM1", CollectorNumber: "1", TargetAPIURL: "u"}}
	require.NoError(t, WriteSwaps(path, in))

	out, err := LoadSwaps(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, os.WriteFile(path, []byte(`[{"target_scryfall_url": "legacy"}]`), 0644))
	out, err = LoadSwaps(path)
	require.NoError(t, err)
	assert.Equal(t, "legacy", out[0].TargetURL())

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err = LoadSwaps(path)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = LoadSwaps(filepath.Join(t.TempDir(), "none.json"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
