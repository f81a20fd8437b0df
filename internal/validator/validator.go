package validator

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/bundle"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/install"
	"github.com/arcanaland/arenaswap/internal/ledger"
)

type ValidationResults struct {
	Errors   []string
	Warnings []string
}

// Validator checks that an installation and the changeset recorded against
// it are in a state the tools can work with.
type Validator struct {
	Layout  install.Layout
	Store   *cardstore.Store
	Ledger  *ledger.Ledger
	Results ValidationResults

	columns map[string]bool
}

func NewValidator(layout install.Layout, store *cardstore.Store, led *ledger.Ledger) *Validator {
	return &Validator{
		Layout:  layout,
		Store:   store,
		Ledger:  led,
		Results: ValidationResults{},
	}
}

func (v *Validator) errorf(format string, args ...any) {
	v.Results.Errors = append(v.Results.Errors, fmt.Sprintf(format, args...))
}

func (v *Validator) warnf(format string, args ...any) {
	v.Results.Warnings = append(v.Results.Warnings, fmt.Sprintf(format, args...))
}

// Validate runs every check. The error is only set when the checks
// themselves could not run.
func (v *Validator) Validate(ctx context.Context) (ValidationResults, error) {
	v.validateDirectories()

	sess, err := v.Store.Begin(ctx)
	if err != nil {
		return v.Results, err
	}
	defer sess.Rollback()

	if err := v.validateDatabase(ctx, sess); err != nil {
		return v.Results, err
	}
	if err := v.validateChangeset(ctx, sess); err != nil {
		return v.Results, err
	}
	if err := v.validateBackups(); err != nil {
		return v.Results, err
	}
	return v.Results, nil
}

// validateDirectories checks the installation paths derived from the
// database location
func (v *Validator) validateDirectories() {
	if info, err := os.Stat(v.Layout.BundleDir); err != nil || !info.IsDir() {
		v.errorf("asset bundle directory not found: %s", v.Layout.BundleDir)
	}

	if _, err := v.Layout.CropDatabase(); err != nil {
		v.warnf("art crop database not found in %s; crop changes will be skipped", v.Layout.RawDir)
	}

	if bundle.ReadVersionDescriptor(v.Layout.VersionDescriptor) == "" {
		v.warnf("engine version descriptor unreadable (%s); stripped bundles will use %s",
			v.Layout.VersionDescriptor, bundle.DefaultEngineVersion)
	}
}

// validateDatabase checks the card table schema and leftovers of an
// interrupted swap
func (v *Validator) validateDatabase(ctx context.Context, sess *cardstore.Session) error {
	cols, err := sess.Columns(ctx)
	if err != nil {
		if apperr.Is(err, apperr.KindFormat) {
			v.errorf("%v", err)
			return nil
		}
		return err
	}
	v.columns = make(map[string]bool, len(cols))
	for _, c := range cols {
		v.columns[c] = true
	}
	for _, required := range []string{"GrpId", "ArtId", "Tags", "TitleId"} {
		if !v.columns[required] {
			v.errorf("Cards table has no %s column", required)
		}
	}

	parked, err := sess.ReservedInUse(ctx)
	if err != nil {
		return err
	}
	for _, id := range parked {
		v.errorf("a card is parked at reserved GrpId %d; an earlier swap was interrupted", id)
	}

	if _, _, err := sess.Localization(ctx, 0); err != nil {
		v.errorf("localization table %s is not readable: %v", v.Store.LocalizationTable(), err)
	}
	return nil
}

// validateChangeset checks every recorded entry against the live schema
func (v *Validator) validateChangeset(ctx context.Context, sess *cardstore.Session) error {
	cs, err := ledger.ReadChangeset(v.Ledger.ChangesPath())
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		v.warnf("no changeset at %s; nothing to re-apply after a game update", v.Ledger.ChangesPath())
		return nil
	case apperr.Is(err, apperr.KindValidation):
		v.errorf("%v", err)
		return nil
	case err != nil:
		return err
	}

	locKey := v.Ledger.LocalizationKey()
	var missing []string
	for _, id := range cs.IDs() {
		if cardstore.IsReserved(id) {
			v.errorf("changeset entry uses reserved GrpId %d", id)
			continue
		}
		if _, err := sess.Row(ctx, id); err != nil {
			if !apperr.Is(err, apperr.KindNotFound) {
				return err
			}
			missing = append(missing, fmt.Sprint(id))
			continue
		}
		if v.columns == nil {
			continue
		}
		var unknown []string
		for col := range cs.Entries[id].Columns(locKey) {
			if !v.columns[col] {
				unknown = append(unknown, col)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			v.errorf("changeset entry %d has unknown columns: %s", id, strings.Join(unknown, ", "))
		}
	}
	if len(missing) > 0 {
		v.warnf("changeset entries without a card will be skipped: %s", strings.Join(missing, ", "))
	}

	for artID, crops := range cs.Crops {
		if len(crops) == 0 {
			v.warnf("changeset crops for art %s are empty", artID)
		}
	}
	return nil
}

// validateBackups checks each backup still has a live bundle to restore over
func (v *Validator) validateBackups() error {
	backups, err := v.Ledger.Backups()
	if err != nil {
		return err
	}
	for _, b := range backups {
		prefix := b.ArtPrefix()
		if prefix == "" {
			v.warnf("backup %s does not name an art id", b.Name)
			continue
		}
		names, err := v.Layout.FindBundles(prefix)
		if err != nil || len(names) == 0 {
			v.warnf("backup %s has no live bundle to restore over", b.Name)
		}
	}
	return nil
}
