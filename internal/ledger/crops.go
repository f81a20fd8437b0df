package ledger

import (
	"context"
	"database/sql"
	"sort"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/install"
)

func (l *Ledger) openCropDB(ctx context.Context) (*sql.DB, string, error) {
	path, err := l.layout.CropDatabase()
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, path, apperr.IO(err, "open crop database %s", path)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, path, apperr.IO(err, "open crop database %s", path)
	}
	return db, path, nil
}

// ReplayCrops upserts crop rows into the installation's crop database and
// returns how many rows were written. A missing crop database is logged and
// skipped.
func (l *Ledger) ReplayCrops(ctx context.Context, crops map[string][]Crop) (int, error) {
	db, path, err := l.openCropDB(ctx)
	if apperr.Is(err, apperr.KindNotFound) {
		l.logger.Warn("no crop database found, skipping crop changes", zap.String("raw_dir", l.layout.RawDir))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.IO(err, "begin crop transaction")
	}
	defer tx.Rollback()

	artIDs := make([]string, 0, len(crops))
	for id := range crops {
		artIDs = append(artIDs, id)
	}
	sort.Strings(artIDs)

	written := 0
	for _, artID := range artIDs {
		for _, c := range crops[artID] {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM Crops WHERE Path = ? AND Format = ?`, c.Path, c.Format,
			).Scan(&exists); err != nil {
				return written, apperr.Format(err, "read crop %s (%s)", c.Path, c.Format)
			}
			if exists > 0 {
				_, err = tx.ExecContext(ctx,
					`UPDATE Crops SET X = ?, Y = ?, Z = ?, W = ?, Generated = ? WHERE Path = ? AND Format = ?`,
					c.X, c.Y, c.Z, c.W, c.Generated, c.Path, c.Format)
			} else {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO Crops (Path, Format, X, Y, Z, W, Generated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
					c.Path, c.Format, c.X, c.Y, c.Z, c.W, c.Generated)
			}
			if err != nil {
				return written, apperr.Format(err, "write crop %s (%s) for art %s", c.Path, c.Format, artID)
			}
			written++
		}
	}
	if err := tx.Commit(); err != nil {
		return written, apperr.IO(err, "commit crop database %s", path)
	}
	l.logger.Info("crop changes applied", zap.Int("art_ids", len(artIDs)), zap.Int("rows", written))
	return written, nil
}

// CropsForArt reads the crop rows whose asset path names artID.
func (l *Ledger) CropsForArt(ctx context.Context, artID int64) ([]Crop, error) {
	db, _, err := l.openCropDB(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT Path, Format, X, Y, Z, W, Generated FROM Crops
		WHERE instr(Path, '/' || ? || '_') > 0 ORDER BY Path, Format`,
		install.ArtPrefix(artID))
	if err != nil {
		return nil, apperr.Format(err, "read crops for art %d", artID)
	}
	defer rows.Close()

	var out []Crop
	for rows.Next() {
		var c Crop
		if err := rows.Scan(&c.Path, &c.Format, &c.X, &c.Y, &c.Z, &c.W, &c.Generated); err != nil {
			return nil, apperr.Format(err, "read crops for art %d", artID)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordCrops stores crops for artID in the changeset so Apply replays
// them.
func (l *Ledger) RecordCrops(artID int64, crops []Crop) error {
	cs, err := l.readOrEmpty()
	if err != nil {
		return err
	}
	if cs.Crops == nil {
		cs.Crops = map[string][]Crop{}
	}
	cs.Crops[install.ArtPrefix(artID)] = crops
	return WriteChangeset(l.changesPath, cs)
}
