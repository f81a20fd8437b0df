package cardstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/card"
)

// Row is a full Cards row keyed by column name.
type Row map[string]any

// GrpID returns the row's GrpId column.
func (r Row) GrpID() (int64, bool) { return asInt64(r["GrpId"]) }

// ArtID returns the row's ArtId column.
func (r Row) ArtID() (int64, bool) { return asInt64(r["ArtId"]) }

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// Row reads the full row for grpID.
func (s *Session) Row(ctx context.Context, grpID int64) (Row, error) {
	rows, err := s.Rows(ctx, []int64{grpID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("no card with GrpId %d", grpID)
	}
	return rows[0], nil
}

// Rows reads the full rows for ids. Unknown ids are left out.
func (s *Session) Rows(ctx context.Context, ids []int64) ([]Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		if err := checkRealID(id); err != nil {
			return nil, err
		}
		args[i] = id
	}
	query := `SELECT * FROM Cards WHERE GrpId IN (?` + strings.Repeat(",?", len(ids)-1) + `) ORDER BY GrpId`
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, convertError(err, "read cards")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, convertError(err, "read cards")
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, convertError(err, "read cards")
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, convertError(err, "read cards")
	}
	return out, nil
}

// UpdateRow writes values into the row for grpID and returns the number of
// rows changed. Columns are checked against the Cards schema. GrpId cannot
// be changed here; use ParkGrpID and UnparkGrpID.
func (s *Session) UpdateRow(ctx context.Context, grpID int64, values map[string]any) (int64, error) {
	if err := checkRealID(grpID); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	known, err := s.columnSet(ctx)
	if err != nil {
		return 0, err
	}

	var (
		sets []string
		args []any
	)
	for _, col := range sortedKeys(values) {
		if col == "GrpId" {
			return 0, apperr.Validation(nil, "GrpId of %d cannot be set by an update", grpID)
		}
		if !known[col] {
			return 0, apperr.Validation(nil, "unknown Cards column %q", col)
		}
		v, err := sqlValue(values[col])
		if err != nil {
			return 0, apperr.Validation(err, "column %s of %d", col, grpID)
		}
		sets = append(sets, quoteIdent(col)+" = ?")
		args = append(args, v)
	}
	args = append(args, grpID)

	res, err := s.tx.ExecContext(ctx, `UPDATE Cards SET `+strings.Join(sets, ", ")+` WHERE GrpId = ?`, args...)
	if err != nil {
		return 0, convertError(err, "update card %d", grpID)
	}
	return res.RowsAffected()
}

// sqlValue converts decoded JSON values into driver values.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, int64, float64, string, []byte, bool:
		return x, nil
	case int:
		return int64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	default:
		return nil, apperr.Validation(nil, "unsupported value of type %T", v)
	}
}

// ParkGrpID moves the card grpID to the reserved id temp.
func (s *Session) ParkGrpID(ctx context.Context, grpID, temp int64) error {
	if !IsReserved(temp) {
		return apperr.Validation(nil, "%d is not a reserved swap id", temp)
	}
	if err := checkRealID(grpID); err != nil {
		return err
	}
	return s.moveGrpID(ctx, grpID, temp)
}

// UnparkGrpID moves the card parked at temp to the real id grpID.
func (s *Session) UnparkGrpID(ctx context.Context, temp, grpID int64) error {
	if !IsReserved(temp) {
		return apperr.Validation(nil, "%d is not a reserved swap id", temp)
	}
	if err := checkRealID(grpID); err != nil {
		return err
	}
	return s.moveGrpID(ctx, temp, grpID)
}

func (s *Session) moveGrpID(ctx context.Context, from, to int64) error {
	res, err := s.tx.ExecContext(ctx, `UPDATE Cards SET GrpId = ? WHERE GrpId = ?`, to, from)
	if err != nil {
		return convertError(err, "move GrpId %d to %d", from, to)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return convertError(err, "move GrpId %d to %d", from, to)
	}
	if n == 0 {
		return apperr.NotFound("no card with GrpId %d", from)
	}
	return nil
}

// ReservedInUse returns the reserved ids currently held by a row. A
// non-empty result means an earlier swap stopped between its phases.
func (s *Session) ReservedInUse(ctx context.Context) ([]int64, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT GrpId FROM Cards WHERE GrpId IN (?, ?) ORDER BY GrpId`, TempGrpIDA, TempGrpIDB)
	if err != nil {
		return nil, convertError(err, "check reserved ids")
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, convertError(err, "check reserved ids")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Localization returns the text for locID. ok is false if there is none.
func (s *Session) Localization(ctx context.Context, locID int64) (text string, ok bool, err error) {
	err = s.tx.QueryRowContext(ctx,
		`SELECT Loc FROM `+quoteIdent(s.store.LocalizationTable())+` WHERE LocId = ?`, locID,
	).Scan(&text)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, convertError(err, "read localization %d", locID)
	}
	return text, true, nil
}

// SetLocalization replaces the text for locID and returns the number of rows
// changed.
func (s *Session) SetLocalization(ctx context.Context, locID int64, text string) (int64, error) {
	res, err := s.tx.ExecContext(ctx,
		`UPDATE `+quoteIdent(s.store.LocalizationTable())+` SET Loc = ? WHERE LocId = ?`, text, locID)
	if err != nil {
		return 0, convertError(err, "update localization %d", locID)
	}
	return res.RowsAffected()
}

const cardColumnsSQL = `c.GrpId, c.ArtId,
	COALESCE(c.Order_Title, ''),
	COALESCE(c.ExpansionCode, ''),
	COALESCE(CAST(c.ArtSize AS TEXT), ''),
	COALESCE(CAST(c.Tags AS TEXT), ''),
	COALESCE(CAST(c.LinkedFaceGrpIds AS TEXT), ''),
	COALESCE(c.TitleId, 0),
	COALESCE(c.InterchangeableTitleId, 0),
	COALESCE(CAST(c.CollectorNumber AS TEXT), '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(sc scanner, extra ...any) (card.Card, error) {
	var (
		c      card.Card
		linked string
	)
	dest := append([]any{
		&c.GrpID, &c.ArtID, &c.Name, &c.SetCode, &c.ArtType, &c.Tags,
		&linked, &c.TitleID, &c.InterchangeableTitleID, &c.CollectorNumber,
	}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return card.Card{}, err
	}
	c.LinkedFaceGrpID = firstID(linked)
	return c, nil
}

// firstID parses the first id of a comma separated id list.
func firstID(s string) int64 {
	first, _, _ := strings.Cut(s, ",")
	id, _ := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	return id
}

func (s *Session) queryCards(ctx context.Context, what, query string, args ...any) ([]card.Card, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, convertError(err, "%s", what)
	}
	defer rows.Close()
	var out []card.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, convertError(err, "%s", what)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, convertError(err, "%s", what)
	}
	return out, nil
}

// Card reads the card grpID.
func (s *Session) Card(ctx context.Context, grpID int64) (card.Card, error) {
	if err := checkRealID(grpID); err != nil {
		return card.Card{}, err
	}
	cards, err := s.queryCards(ctx, "read card",
		`SELECT `+cardColumnsSQL+` FROM Cards c WHERE c.GrpId = ?`, grpID)
	if err != nil {
		return card.Card{}, err
	}
	if len(cards) == 0 {
		return card.Card{}, apperr.NotFound("no card with GrpId %d", grpID)
	}
	return cards[0], nil
}

// ByCollectorNumber finds the card printed as number in set.
func (s *Session) ByCollectorNumber(ctx context.Context, set, number string) (card.Card, error) {
	cards, err := s.queryCards(ctx, "find card by collector number",
		`SELECT `+cardColumnsSQL+` FROM Cards c
		WHERE c.ExpansionCode = ? AND c.CollectorNumber = ? ORDER BY c.GrpId`,
		set, number)
	if err != nil {
		return card.Card{}, err
	}
	if len(cards) == 0 {
		return card.Card{}, apperr.NotFound("no card %s #%s", set, number)
	}
	return cards[0], nil
}

// LinkedFace returns the face whose LinkedFaceGrpIds points at grpID.
func (s *Session) LinkedFace(ctx context.Context, grpID int64) (card.Card, bool, error) {
	cards, err := s.queryCards(ctx, "find linked face",
		`SELECT `+cardColumnsSQL+` FROM Cards c WHERE c.LinkedFaceGrpIds = ? ORDER BY c.GrpId`, grpID)
	if err != nil || len(cards) == 0 {
		return card.Card{}, false, err
	}
	return cards[0], true, nil
}

// Cards lists every named card. Back faces without a title of their own
// borrow the front face title and are marked FlipSide.
func (s *Session) Cards(ctx context.Context) ([]card.Card, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT `+cardColumnsSQL+`,
		NULLIF(c.Order_Title, '') IS NULL AS FlipSide,
		COALESCE(f.Order_Title, '')
	FROM Cards c
	LEFT JOIN Cards f
		ON c.LinkedFaceGrpIds = f.GrpId
		AND NULLIF(f.Order_Title, '') IS NOT NULL
	WHERE NULLIF(c.Order_Title, '') IS NOT NULL
		OR NULLIF(f.Order_Title, '') IS NOT NULL
	ORDER BY c.GrpId`)
	if err != nil {
		return nil, convertError(err, "list cards")
	}
	defer rows.Close()

	var out []card.Card
	for rows.Next() {
		var (
			flip     bool
			faceName string
		)
		c, err := scanCard(rows, &flip, &faceName)
		if err != nil {
			return nil, convertError(err, "list cards")
		}
		if flip {
			c.Name, c.FlipSide = faceName, true
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, convertError(err, "list cards")
	}
	return out, nil
}

type cardNames []card.Card

func (c cardNames) String(i int) string { return c[i].String() }
func (c cardNames) Len() int            { return len(c) }

// Search fuzzy-matches query against card names, best match first. A
// non-positive limit returns every match.
func (s *Session) Search(ctx context.Context, query string, limit int) ([]card.Card, error) {
	cards, err := s.Cards(ctx)
	if err != nil {
		return nil, err
	}
	matches := fuzzy.FindFrom(query, cardNames(cards))
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]card.Card, len(matches))
	for i, m := range matches {
		out[i] = cards[m.Index]
	}
	return out, nil
}

// Alternates lists other printings sharing c's title with a different art.
func (s *Session) Alternates(ctx context.Context, c card.Card) ([]card.Card, error) {
	alts, err := s.queryCards(ctx, "find alternates",
		`SELECT `+cardColumnsSQL+` FROM Cards c
		WHERE c.TitleId = ? AND c.ArtId != ? ORDER BY c.GrpId`,
		c.TitleID, c.ArtID)
	if err != nil {
		return nil, err
	}
	for i := range alts {
		alts[i].Name = c.Name
	}
	return alts, nil
}

// TokensByArtist lists tokens (rarity 0) whose artist credit contains artist.
func (s *Session) TokensByArtist(ctx context.Context, artist string) ([]card.Card, error) {
	return s.queryCards(ctx, "find tokens",
		`SELECT `+cardColumnsSQL+` FROM Cards c
		WHERE c.Rarity = 0 AND c.ArtistCredit LIKE ? ORDER BY c.GrpId`,
		"%"+artist+"%")
}
