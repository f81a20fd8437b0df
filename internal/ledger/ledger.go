// Package ledger records the pre-change state of cards and their bundles so
// every edit can be undone or re-applied.
//
// Two artifacts are kept: changes.json, holding the last known good Cards
// row (and localizations) per GrpId, and a flat backup directory of
// MOD_<bundle filename> copies.
package ledger

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/install"
)

// Ledger owns the changeset file and the backup directory.
type Ledger struct {
	changesPath string
	backupDir   string
	layout      install.Layout
	language    string
	logger      *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger logger.
func WithLogger(l *zap.Logger) Option {
	return func(led *Ledger) { led.logger = l }
}

// WithLanguage selects which localization table the nested map refers to.
func WithLanguage(lang string) Option {
	return func(led *Ledger) { led.language = lang }
}

// New returns a ledger writing changesPath and backups under backupDir for
// the installation described by layout.
func New(changesPath, backupDir string, layout install.Layout, opts ...Option) *Ledger {
	l := &Ledger{
		changesPath: changesPath,
		backupDir:   backupDir,
		layout:      layout,
		language:    cardstore.DefaultLanguage,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// ChangesPath is the changeset file location.
func (l *Ledger) ChangesPath() string { return l.changesPath }

// BackupDir is the backup directory.
func (l *Ledger) BackupDir() string { return l.backupDir }

// LocalizationKey is the entry key of the nested localization map.
func (l *Ledger) LocalizationKey() string { return "Localizations_" + l.language }

// readOrEmpty loads the changeset, treating a missing file as empty.
func (l *Ledger) readOrEmpty() (*Changeset, error) {
	cs, err := ReadChangeset(l.changesPath)
	if apperr.Is(err, apperr.KindNotFound) {
		return NewChangeset(), nil
	}
	return cs, err
}

// Op tracks the bundles already backed up during one logical operation.
type Op struct {
	l      *Ledger
	copied map[string]bool
}

// Begin starts an operation.
func (l *Ledger) Begin() *Op {
	return &Op{l: l, copied: map[string]bool{}}
}

// Snapshot is Begin().Snapshot for single-step callers.
func (l *Ledger) Snapshot(ctx context.Context, sess *cardstore.Session, ids []int64) error {
	return l.Begin().Snapshot(ctx, sess, ids)
}

// Snapshot stores the current rows of ids in the changeset, replacing any
// earlier entry for the same id but keeping its localizations, and backs up
// each row's bundle once per operation.
func (op *Op) Snapshot(ctx context.Context, sess *cardstore.Session, ids []int64) error {
	rows, err := sess.Rows(ctx, ids)
	if err != nil {
		return err
	}
	cs, err := op.l.readOrEmpty()
	if err != nil {
		return err
	}

	locKey := op.l.LocalizationKey()
	for _, row := range rows {
		id, _ := row.GrpID()
		entry := make(Entry, len(row))
		for col, v := range row {
			if col != "GrpId" {
				entry[col] = v
			}
		}
		if prev, ok := cs.Entries[id]; ok {
			if locs, ok := prev[locKey]; ok {
				entry[locKey] = locs
			}
		}
		cs.Entries[id] = entry

		if artID, ok := row.ArtID(); ok {
			if _, err := op.BackupArt(artID); err != nil {
				return err
			}
		}
	}
	if err := WriteChangeset(op.l.changesPath, cs); err != nil {
		return err
	}
	op.l.logger.Debug("snapshot recorded", zap.Int64s("ids", ids), zap.Int("rows", len(rows)))
	return nil
}

// ApplyReport counts what Apply touched.
type ApplyReport struct {
	Crops         int
	Restored      int
	Rows          int
	Skipped       []int64
	Localizations int
}

// Apply replays the changeset: crop rows into the crop database, backups
// over the live bundles (oldest first) and every entry into the card store.
// Entries whose GrpId no longer exists are skipped.
func (l *Ledger) Apply(ctx context.Context, sess *cardstore.Session) (*ApplyReport, error) {
	cs, err := ReadChangeset(l.changesPath)
	if err != nil {
		return nil, err
	}
	report := &ApplyReport{}

	if len(cs.Crops) > 0 {
		n, err := l.ReplayCrops(ctx, cs.Crops)
		if err != nil {
			return report, err
		}
		report.Crops = n
	}

	restored, err := l.RestoreBackups()
	if err != nil {
		return report, err
	}
	report.Restored = restored

	for _, id := range cs.IDs() {
		changed, locs, err := l.applyEntry(ctx, sess, id, cs.Entries[id])
		if err != nil {
			return report, err
		}
		if !changed {
			l.logger.Debug("changeset entry has no card, skipped", zap.Int64("grp_id", id))
			report.Skipped = append(report.Skipped, id)
			continue
		}
		report.Rows++
		report.Localizations += locs
	}
	l.logger.Info("changeset applied",
		zap.Int("rows", report.Rows),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("restored", report.Restored),
		zap.Int("crops", report.Crops),
		zap.Int("localizations", report.Localizations),
	)
	return report, nil
}

// ApplyOverride merges one caller supplied entry straight into the store
// without reading the changeset file.
func (l *Ledger) ApplyOverride(ctx context.Context, sess *cardstore.Session, grpID int64, entry Entry) error {
	changed, _, err := l.applyEntry(ctx, sess, grpID, entry)
	if err != nil {
		return err
	}
	if !changed {
		return apperr.NotFound("no card with GrpId %d", grpID)
	}
	return nil
}

func (l *Ledger) applyEntry(ctx context.Context, sess *cardstore.Session, id int64, e Entry) (bool, int, error) {
	locKey := "Localizations_" + sess.Language()
	cols := e.Columns(locKey)
	n, err := sess.UpdateRow(ctx, id, cols)
	if err != nil {
		return false, 0, err
	}
	if len(cols) > 0 && n == 0 {
		return false, 0, nil
	}

	locs := e.Localizations(locKey)
	for _, key := range sortedLocIDs(locs) {
		locID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return false, 0, apperr.Validation(err, "localization id %q of %d", key, id)
		}
		if _, err := sess.SetLocalization(ctx, locID, locs[key]); err != nil {
			return false, 0, err
		}
	}
	return true, len(locs), nil
}

// RecordLocalization stores text for locID under the entry of grpID so the
// rename survives a changeset replay.
func (l *Ledger) RecordLocalization(grpID, locID int64, text string) error {
	cs, err := l.readOrEmpty()
	if err != nil {
		return err
	}
	entry, ok := cs.Entries[grpID]
	if !ok {
		entry = Entry{}
		cs.Entries[grpID] = entry
	}
	key := l.LocalizationKey()
	locs := entry.Localizations(key)
	if locs == nil {
		locs = map[string]string{}
	}
	locs[strconv.FormatInt(locID, 10)] = text
	nested := make(map[string]any, len(locs))
	for k, v := range locs {
		nested[k] = v
	}
	entry[key] = nested
	return WriteChangeset(l.changesPath, cs)
}

func sortedLocIDs(locs map[string]string) []string {
	ids := make([]string, 0, len(locs))
	for id := range locs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
