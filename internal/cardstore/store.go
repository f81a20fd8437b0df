// Package cardstore wraps the game's SQLite card database.
//
// All work happens inside a Session, a single transaction scoped to one
// logical operation. The store holds exactly one connection, so sessions
// never interleave.
package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

// Reserved group ids. They park rows during a two-phase id exchange and are
// never valid identifiers for a real card.
const (
	TempGrpIDA int64 = 0
	TempGrpIDB int64 = 1
)

// DefaultLanguage is the localization table suffix used for card names.
const DefaultLanguage = "enUS"

// IsReserved reports whether id is one of the temporary swap ids.
func IsReserved(id int64) bool {
	return id == TempGrpIDA || id == TempGrpIDB
}

func checkRealID(id int64) error {
	if IsReserved(id) {
		return apperr.Validation(nil, "group id %d is reserved for swaps", id)
	}
	return nil
}

var languagePattern = regexp.MustCompile(`^[A-Za-z]{2,4}$`)

// Store is an open card database.
type Store struct {
	db       *sql.DB
	logger   *zap.Logger
	language string
	columns  []string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLanguage selects the Localizations_<lang> table.
func WithLanguage(lang string) Option {
	return func(s *Store) { s.language = lang }
}

// Open opens the database file at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.IO(err, "open card database %s", path)
	}
	s, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperr.IO(err, "open card database %s", path)
	}
	if _, err := s.cardColumns(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("card database opened", zap.String("path", path), zap.Int("columns", len(s.columns)))
	return s, nil
}

// New wraps an existing handle. The pool is limited to one connection.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s := &Store{db: db, logger: zap.NewNop(), language: DefaultLanguage}
	for _, o := range opts {
		o(s)
	}
	if !languagePattern.MatchString(s.language) {
		return nil, apperr.Validation(nil, "invalid localization language %q", s.language)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// LocalizationTable is the table holding localized strings.
func (s *Store) LocalizationTable() string { return "Localizations_" + s.language }

// Begin starts a session.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.IO(err, "begin card database transaction")
	}
	return &Session{tx: tx, store: s}, nil
}

// WithSession runs fn in a session and commits when it returns nil. Any
// error rolls the session back.
func (s *Store) WithSession(ctx context.Context, fn func(*Session) error) error {
	sess, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return sess.Commit()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// cardColumns reads the Cards schema once.
func (s *Store) cardColumns(ctx context.Context, q queryer) ([]string, error) {
	if s.columns != nil {
		return s.columns, nil
	}
	rows, err := q.QueryContext(ctx, `PRAGMA table_info(Cards)`)
	if err != nil {
		return nil, apperr.Format(err, "read Cards schema")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, apperr.Format(err, "read Cards schema")
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Format(err, "read Cards schema")
	}
	if len(cols) == 0 {
		return nil, apperr.Format(nil, "database has no Cards table; is this a card database?")
	}
	s.columns = cols
	return cols, nil
}

// Session is one logical operation against the store.
type Session struct {
	tx    *sql.Tx
	store *Store
	done  bool
}

// Commit makes the session's changes durable.
func (s *Session) Commit() error {
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return convertError(err, "commit")
	}
	return nil
}

// Rollback discards the session. It is a no-op after Commit.
func (s *Session) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Language is the localization language of the owning store.
func (s *Session) Language() string { return s.store.language }

// Columns lists the Cards table columns in schema order.
func (s *Session) Columns(ctx context.Context) ([]string, error) {
	return s.store.cardColumns(ctx, s.tx)
}

func (s *Session) columnSet(ctx context.Context) (map[string]bool, error) {
	cols, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set, nil
}

// convertError maps driver errors to apperr kinds.
func convertError(err error, format string, args ...any) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return apperr.Constraint(err, format, args...)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_CANTOPEN:
			return apperr.IO(err, format, args...)
		}
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
