// Package cardstoretest builds small card databases for tests.
package cardstoretest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/arcanaland/arenaswap/internal/cardstore"
)

// Schema is the subset of the game's card database the tools touch.
const Schema = `
CREATE TABLE Cards (
	GrpId INTEGER PRIMARY KEY,
	ArtId INTEGER NOT NULL,
	Order_Title TEXT,
	ExpansionCode TEXT,
	ArtSize INTEGER,
	Tags TEXT,
	LinkedFaceGrpIds TEXT,
	TitleId INTEGER,
	InterchangeableTitleId INTEGER,
	FlavorTextId INTEGER,
	Rarity INTEGER,
	ArtistCredit TEXT,
	CollectorNumber TEXT
);
CREATE TABLE Localizations_enUS (
	LocId INTEGER NOT NULL,
	Formatted INTEGER NOT NULL DEFAULT 1,
	Loc TEXT
);
`

// Seed inserts a handful of cards:
//
//	100 lightning bolt (STA 42, art 1155)
//	200 counterspell (STA 43, art 2266)
//	300 lightning bolt alternate (M10 146, art 3377)
//	400/401 delver of secrets and its back face (ISD 51, art 4488/4489)
//	500 goblin token by Jesper Ejsing (art 5500)
const Seed = `
INSERT INTO Cards VALUES (100, 1155, 'lightning bolt', 'STA', 1, '', NULL, 5000, 6000, 7000, 2, 'Christopher Moeller', '42');
INSERT INTO Cards VALUES (200, 2266, 'counterspell', 'STA', 1, '12', NULL, 5001, 6001, 7001, 2, 'Zack Stella', '43');
INSERT INTO Cards VALUES (300, 3377, 'lightning bolt', 'M10', 1, '', NULL, 5000, NULL, 7002, 1, 'Christopher Moeller', '146');
INSERT INTO Cards VALUES (400, 4488, 'delver of secrets', 'ISD', 1, '', '401', 5002, NULL, NULL, 1, 'Matt Stewart', '51');
INSERT INTO Cards VALUES (401, 4489, '', 'ISD', 1, '', '400', 5003, NULL, NULL, 1, 'Matt Stewart', '51');
INSERT INTO Cards VALUES (500, 5500, 'goblin', 'T', 1, NULL, NULL, 5004, NULL, NULL, 0, 'Jesper Ejsing', '7');
INSERT INTO Localizations_enUS (LocId, Loc) VALUES
	(5000, 'Lightning Bolt'),
	(5001, 'Counterspell'),
	(5002, 'Delver of Secrets'),
	(5003, 'Insectile Aberration'),
	(5004, 'Goblin'),
	(6000, ''),
	(6001, ''),
	(7000, 'The sparkmage shrieked.'),
	(7001, 'Your attempt has been denied.'),
	(7002, 'Spark.');
`

// NewDatabase writes a seeded card database into a temp dir and returns its
// path.
func NewDatabase(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Raw_CardDatabase_test.mtga")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(Schema)
	require.NoError(t, err)
	_, err = db.Exec(Seed)
	require.NoError(t, err)
	return path
}

// Open returns a store over a fresh seeded database.
func Open(t testing.TB) *cardstore.Store {
	t.Helper()
	return OpenPath(t, NewDatabase(t))
}

// OpenPath opens the database at path and closes it when the test ends.
func OpenPath(t testing.TB, path string) *cardstore.Store {
	t.Helper()
	s, err := cardstore.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Read runs fn in a session that is rolled back afterwards.
func Read(t testing.TB, s *cardstore.Store, fn func(*cardstore.Session)) {
	t.Helper()
	sess, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer sess.Rollback()
	fn(sess)
}
