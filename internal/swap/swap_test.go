package swap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/card"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/cardstore/cardstoretest"
	"github.com/arcanaland/arenaswap/internal/install"
	"github.com/arcanaland/arenaswap/internal/ledger"
)

func newEngine(t *testing.T) (*Engine, *cardstore.Store, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	store := cardstoretest.Open(t)
	layout := install.Layout{BundleDir: filepath.Join(dir, "AssetBundle"), RawDir: dir}
	led := ledger.New(filepath.Join(dir, "changes.json"), filepath.Join(dir, "backups"), layout)
	return New(store, led, nil), store, led
}

func cardAt(t *testing.T, s *cardstore.Store, id int64) card.Card {
	t.Helper()
	var c card.Card
	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		var err error
		c, err = sess.Card(context.Background(), id)
		require.NoError(t, err)
	})
	return c
}

func TestFull_ExchangesIdentity(t *testing.T) {
	e, s, led := newEngine(t)
	ctx := context.Background()

	ok, err := e.Full(ctx, 100, 200)
	require.NoError(t, err)
	assert.True(t, ok)

	at100 := cardAt(t, s, 100)
	at200 := cardAt(t, s, 200)
	assert.Equal(t, "counterspell", at100.Name)
	assert.Equal(t, int64(2266), at100.ArtID)
	assert.Equal(t, "lightning bolt", at200.Name)
	assert.Equal(t, int64(1155), at200.ArtID)

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		inUse, err := sess.ReservedInUse(ctx)
		require.NoError(t, err)
		assert.Empty(t, inUse)
	})

	cs, err := ledger.ReadChangeset(led.ChangesPath())
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, cs.IDs())
	assert.Equal(t, "lightning bolt", cs.Entries[100]["Order_Title"])
}

func TestFull_IsAnInvolution(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	before100, before200 := cardAt(t, s, 100), cardAt(t, s, 200)

	for i := 0; i < 2; i++ {
		ok, err := e.Full(ctx, 100, 200)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, before100, cardAt(t, s, 100))
	assert.Equal(t, before200, cardAt(t, s, 200))
}

func TestFull_Rejects(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.Full(ctx, 100, 100)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = e.Full(ctx, 100, cardstore.TempGrpIDB)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	ok, err := e.Full(ctx, 100, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.False(t, ok)
	assert.Equal(t, "lightning bolt", cardAt(t, s, 100).Name)

	// A row left parked by an interrupted swap blocks further swaps.
	require.NoError(t, s.WithSession(ctx, func(sess *cardstore.Session) error {
		return sess.ParkGrpID(ctx, 500, cardstore.TempGrpIDA)
	}))
	_, err = e.Full(ctx, 100, 200)
	assert.True(t, apperr.Is(err, apperr.KindConstraint))
}

func TestStyle_ExchangesTagsAndArt(t *testing.T) {
	e, s, _ := newEngine(t)

	ok, err := e.Style(context.Background(), 100, 200)
	require.NoError(t, err)
	assert.True(t, ok)

	a, b := cardAt(t, s, 100), cardAt(t, s, 200)
	assert.Equal(t, "lightning bolt", a.Name)
	assert.Equal(t, int64(2266), a.ArtID)
	assert.Equal(t, "12", a.Tags)
	assert.Equal(t, int64(1155), b.ArtID)
	assert.Equal(t, "", b.Tags)
}

func TestAddTag_Idempotent(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()

	ok, err := e.UnlockParallax(ctx, []int64{100, 200})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, card.ParallaxTag, cardAt(t, s, 100).Tags)
	assert.Equal(t, "12,"+card.ParallaxTag, cardAt(t, s, 200).Tags)

	ok, err = e.UnlockParallax(ctx, []int64{100, 200})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "12,"+card.ParallaxTag, cardAt(t, s, 200).Tags)

	_, err = e.AddTag(ctx, []int64{100}, "a,b")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSetTagsAndRename(t *testing.T) {
	e, s, led := newEngine(t)
	ctx := context.Background()

	ok, err := e.SetTags(ctx, 300, "7,8")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7,8", cardAt(t, s, 300).Tags)

	_, err = e.SetTags(ctx, 999, "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	ok, err = e.Rename(ctx, 200, "Mana Leak")
	require.NoError(t, err)
	assert.True(t, ok)
	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		text, _, err := sess.Localization(ctx, 5001)
		require.NoError(t, err)
		assert.Equal(t, "Mana Leak", text)
	})

	cs, err := ledger.ReadChangeset(led.ChangesPath())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"5001": "Mana Leak"}, cs.Entries[200].Localizations(led.LocalizationKey()))
	assert.Equal(t, "", cs.Entries[300]["Tags"])
}
