package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	return root
}

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	root := isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "config", "arenaswap", "config.toml"))
	assert.Equal(t, ".mtga", cfg.BundleExtension)
	assert.Empty(t, cfg.FallbackVersion)
	assert.Equal(t, filepath.Join(root, "data", "arenaswap", "backups"), cfg.BackupDir)
	assert.Equal(t, filepath.Join(root, "data", "arenaswap", "changes.json"), cfg.ChangesPath)
	assert.Equal(t, "enUS", cfg.Language)
	assert.Equal(t, 10.0, cfg.CatalogRate)
	assert.Empty(t, cfg.DatabasePath)
	assert.Equal(t, filepath.Join(root, "cache", "arenaswap"), GetCacheDir())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_path = "/games/Raw_CardDatabase.mtga"
bundle_extension = ""
catalog_rate = 2.5
language = "frFR"
`), 0644))
	t.Setenv("ARENASWAP_LANGUAGE", "deDE")
	t.Setenv("ARENASWAP_FALLBACK_VERSION", "2021.3.14f1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/games/Raw_CardDatabase.mtga", cfg.DatabasePath)
	assert.Equal(t, ".mtga", cfg.BundleExtension)
	assert.Equal(t, 2.5, cfg.CatalogRate)
	assert.Equal(t, "deDE", cfg.Language)
	assert.Equal(t, "2021.3.14f1", cfg.FallbackVersion)
}

func TestLoad_BadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("catalog_rate = \"fast\""), 0644))
	_, err := Load(path)
	assert.Error(t, err)

	t.Setenv("ARENASWAP_CATALOG_RATE", "fast")
	_, err = Load(filepath.Join(t.TempDir(), "new.toml"))
	assert.Error(t, err)
}

func TestSetDatabasePath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SetDatabasePath(path, "/x/Raw_CardDatabase.mtga"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/x/Raw_CardDatabase.mtga", cfg.DatabasePath)

	_, err = cfg.ResolveDatabase()
	assert.Error(t, err)

	db := filepath.Join(t.TempDir(), "Raw", "Raw_CardDatabase.mtga")
	cfg.DatabasePath = db
	cfg.BundleExtension = ".bundle"
	l := cfg.Layout(db)
	assert.Equal(t, ".bundle", l.BundleExtension())
	assert.Equal(t, filepath.Join(filepath.Dir(filepath.Dir(db)), "AssetBundle"), l.BundleDir)
}
