package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/arcanaland/arenaswap/internal/catalog"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/install"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARENASWAP_"

// Config represents the application configuration
type Config struct {
	// DatabasePath is the card database. Empty means detect the installation.
	DatabasePath    string  `toml:"database_path" env:"DATABASE_PATH"`
	BundleExtension string  `toml:"bundle_extension" env:"BUNDLE_EXTENSION"`
	// FallbackVersion decodes stripped bundles. Empty means read it from the
	// game's version descriptor.
	FallbackVersion string  `toml:"fallback_version" env:"FALLBACK_VERSION"`
	BackupDir       string  `toml:"backup_dir" env:"BACKUP_DIR"`
	ChangesPath     string  `toml:"changes_path" env:"CHANGES_PATH"`
	CatalogURL      string  `toml:"catalog_url" env:"CATALOG_URL"`
	CatalogRate     float64 `toml:"catalog_rate" env:"CATALOG_RATE"`
	Language        string  `toml:"language" env:"LANGUAGE"`
}

// GetXDGDataHome returns XDG_DATA_HOME or default path
func GetXDGDataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return xdgData
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "share")
}

// GetXDGConfigHome returns XDG_CONFIG_HOME or default path
func GetXDGConfigHome() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return xdgConfig
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// GetXDGCacheHome returns XDG_CACHE_HOME or default path
func GetXDGCacheHome() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return xdgCache
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".cache")
}

// GetDataDir returns where backups and the changeset live by default
func GetDataDir() string {
	return filepath.Join(GetXDGDataHome(), "arenaswap")
}

// GetCacheDir returns the cache directory for rendered previews
func GetCacheDir() string {
	return filepath.Join(GetXDGCacheHome(), "arenaswap")
}

// GetConfigFilePath returns the path to the config file
func GetConfigFilePath() string {
	return filepath.Join(GetXDGConfigHome(), "arenaswap", "config.toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BundleExtension: install.DefaultBundleExtension,
		BackupDir:       filepath.Join(GetDataDir(), "backups"),
		ChangesPath:     filepath.Join(GetDataDir(), "changes.json"),
		CatalogURL:      catalog.DefaultBaseURL,
		CatalogRate:     catalog.DefaultRate,
		Language:        cardstore.DefaultLanguage,
	}
}

// LoadConfig loads the config file, creating it on first use, and applies
// ARENASWAP_* environment overrides
func LoadConfig() (*Config, error) {
	return Load(GetConfigFilePath())
}

// Load reads the config file at path. A missing file is created with the
// defaults.
func Load(configPath string) (*Config, error) {
	config := Default()

	// Create default config if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := write(configPath, config); err != nil {
			return nil, err
		}
	} else if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("error reading environment overrides: %w", err)
	}
	config.fillDefaults()
	return config, nil
}

// fillDefaults restores defaults for keys a config file left blank.
func (c *Config) fillDefaults() {
	d := Default()
	if c.BundleExtension == "" {
		c.BundleExtension = d.BundleExtension
	}
	if c.BackupDir == "" {
		c.BackupDir = d.BackupDir
	}
	if c.ChangesPath == "" {
		c.ChangesPath = d.ChangesPath
	}
	if c.CatalogURL == "" {
		c.CatalogURL = d.CatalogURL
	}
	if c.Language == "" {
		c.Language = d.Language
	}
}

// write encodes config to configPath
func write(configPath string, config *Config) error {
	// Ensure the config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return nil
}

// SetDatabasePath stores the card database location in the config file at
// configPath
func SetDatabasePath(configPath, dbPath string) error {
	config := Default()
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, config); err != nil {
			return fmt.Errorf("error decoding config file: %w", err)
		}
	}
	config.DatabasePath = dbPath
	return write(configPath, config)
}

// ResolveDatabase returns the configured card database or detects one.
func (c *Config) ResolveDatabase() (string, error) {
	if c.DatabasePath != "" {
		if _, err := os.Stat(c.DatabasePath); err != nil {
			return "", fmt.Errorf("database_path %s: %w", c.DatabasePath, err)
		}
		return c.DatabasePath, nil
	}
	return install.Detect()
}

// Layout returns the installation layout for dbPath with the configured
// bundle extension.
func (c *Config) Layout(dbPath string) install.Layout {
	l := install.FromDatabase(dbPath)
	l.Extension = c.BundleExtension
	return l
}
