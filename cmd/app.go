package cmd

import (
	"context"
	"fmt"
	"strconv"

	colorize "github.com/fatih/color"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/bundle"
	"github.com/arcanaland/arenaswap/internal/catalog"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/install"
	"github.com/arcanaland/arenaswap/internal/ledger"
	"github.com/arcanaland/arenaswap/internal/texture"
)

// app bundles the components a command works with.
type app struct {
	layout install.Layout
	store  *cardstore.Store
	ledger *ledger.Ledger
	loader *bundle.Loader
}

// openApp resolves the installation and opens the card database.
func openApp(ctx context.Context) (*app, error) {
	dbPath, err := cfg.ResolveDatabase()
	if err != nil {
		return nil, err
	}
	layout := cfg.Layout(dbPath)
	store, err := cardstore.Open(ctx, dbPath,
		cardstore.WithLogger(logger.Named("cardstore")),
		cardstore.WithLanguage(cfg.Language),
	)
	if err != nil {
		return nil, err
	}
	return &app{
		layout: layout,
		store:  store,
		ledger: ledger.New(cfg.ChangesPath, cfg.BackupDir, layout,
			ledger.WithLogger(logger.Named("ledger")),
			ledger.WithLanguage(cfg.Language),
		),
		loader: layout.Loader(cfg.FallbackVersion, logger.Named("bundle")),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

func (a *app) resolver() *texture.Resolver {
	return texture.NewResolver(a.layout, a.loader, logger.Named("texture"))
}

func newCatalog() (*catalog.Client, error) {
	return catalog.New(cfg.CatalogURL,
		catalog.WithRate(cfg.CatalogRate),
		catalog.WithLogger(logger.Named("catalog")),
	)
}

// parseID parses a GrpId or ArtId argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, apperr.Validation(err, "invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func success(format string, args ...any) {
	fmt.Println(colorize.GreenString("✔ ") + fmt.Sprintf(format, args...))
}

func notice(format string, args ...any) {
	fmt.Println(colorize.YellowString("! ") + fmt.Sprintf(format, args...))
}

func label(name string) string {
	return colorize.CyanString("%-8s", name+":")
}
