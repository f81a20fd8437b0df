package cardstore_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/cardstore/cardstoretest"
)

func TestOpen_RejectsNonCardDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE Other (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = cardstore.Open(context.Background(), path)
	assert.True(t, apperr.Is(err, apperr.KindFormat))
}

func TestRow(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		row, err := sess.Row(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1155), row["ArtId"])
		assert.Equal(t, "lightning bolt", row["Order_Title"])
		assert.Nil(t, row["LinkedFaceGrpIds"])
		id, ok := row.GrpID()
		assert.True(t, ok)
		assert.Equal(t, int64(100), id)

		_, err = sess.Row(ctx, 999)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))

		_, err = sess.Row(ctx, cardstore.TempGrpIDB)
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		rows, err := sess.Rows(ctx, []int64{200, 999, 100})
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})
}

func TestUpdateRow(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()

	err := s.WithSession(ctx, func(sess *cardstore.Session) error {
		n, err := sess.UpdateRow(ctx, 100, map[string]any{
			"Tags":  "1696804317",
			"ArtId": json.Number("3377"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = sess.UpdateRow(ctx, 999, map[string]any{"Tags": "x"})
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		c, err := sess.Card(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(3377), c.ArtID)
		assert.Equal(t, "1696804317", c.Tags)

		_, err = sess.UpdateRow(ctx, 100, map[string]any{"Mana": 3})
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		_, err = sess.UpdateRow(ctx, 100, map[string]any{"GrpId": 5})
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		_, err = sess.UpdateRow(ctx, 100, map[string]any{"Tags": []string{"a"}})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestParkAndUnpark(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		require.NoError(t, sess.ParkGrpID(ctx, 100, cardstore.TempGrpIDA))

		inUse, err := sess.ReservedInUse(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{cardstore.TempGrpIDA}, inUse)

		err = sess.ParkGrpID(ctx, 200, cardstore.TempGrpIDA)
		assert.True(t, apperr.Is(err, apperr.KindConstraint), "got %v", err)

		err = sess.UnparkGrpID(ctx, cardstore.TempGrpIDA, 300)
		assert.True(t, apperr.Is(err, apperr.KindConstraint), "got %v", err)

		err = sess.ParkGrpID(ctx, 200, 7)
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		err = sess.UnparkGrpID(ctx, cardstore.TempGrpIDB, 100)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))

		require.NoError(t, sess.UnparkGrpID(ctx, cardstore.TempGrpIDA, 100))
		inUse, err = sess.ReservedInUse(ctx)
		require.NoError(t, err)
		assert.Empty(t, inUse)
	})
}

func TestLocalization(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		text, ok, err := sess.Localization(ctx, 5001)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Counterspell", text)

		n, err := sess.SetLocalization(ctx, 5001, "Mana Leak")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		text, _, err = sess.Localization(ctx, 5001)
		require.NoError(t, err)
		assert.Equal(t, "Mana Leak", text)

		_, ok, err = sess.Localization(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCardLookups(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		c, err := sess.ByCollectorNumber(ctx, "STA", "43")
		require.NoError(t, err)
		assert.Equal(t, int64(200), c.GrpID)
		assert.Equal(t, int64(2266), c.ArtID)

		_, err = sess.ByCollectorNumber(ctx, "STA", "999")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))

		back, ok, err := sess.LinkedFace(ctx, 400)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(401), back.GrpID)
		assert.Equal(t, int64(400), back.LinkedFaceGrpID)

		_, ok, err = sess.LinkedFace(ctx, 100)
		require.NoError(t, err)
		assert.False(t, ok)

		delver, err := sess.Card(ctx, 400)
		require.NoError(t, err)
		assert.Equal(t, int64(401), delver.LinkedFaceGrpID)
		assert.Equal(t, int64(5002), delver.TitleID)
	})
}

func TestCards_BackFacesBorrowTitle(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		cards, err := sess.Cards(ctx)
		require.NoError(t, err)
		require.Len(t, cards, 6)

		back := cards[4]
		assert.Equal(t, int64(401), back.GrpID)
		assert.True(t, back.FlipSide)
		assert.Equal(t, "delver of secrets-flip-side", back.String())
	})
}

func TestSearchAndAlternates(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		found, err := sess.Search(ctx, "bolt", 0)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "lightning bolt", found[0].Name)

		found, err = sess.Search(ctx, "lgtbolt", 1)
		require.NoError(t, err)
		require.Len(t, found, 1)

		bolt, err := sess.Card(ctx, 100)
		require.NoError(t, err)
		alts, err := sess.Alternates(ctx, bolt)
		require.NoError(t, err)
		require.Len(t, alts, 1)
		assert.Equal(t, int64(300), alts[0].GrpID)
		assert.Equal(t, "M10", alts[0].SetCode)

		tokens, err := sess.TokensByArtist(ctx, "Ejsing")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, int64(500), tokens[0].GrpID)
	})
}

func TestWithSession_RollsBackOnError(t *testing.T) {
	s := cardstoretest.Open(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithSession(ctx, func(sess *cardstore.Session) error {
		_, err := sess.UpdateRow(ctx, 200, map[string]any{"Tags": "changed"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	cardstoretest.Read(t, s, func(sess *cardstore.Session) {
		c, err := sess.Card(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, "12", c.Tags)
	})
}

func TestNew_RejectsBadLanguage(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = cardstore.New(db, cardstore.WithLanguage("en; DROP"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
