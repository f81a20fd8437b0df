package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arcanaland/arenaswap/internal/config"
)

var (
	verbose    bool
	dbFlag     string
	configFlag string

	cfg    *config.Config
	logger = zap.NewNop()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "arenaswap",
	Short: "Swap card art, styles and identities in a game installation",
	Long: `Arenaswap edits the game's card database and asset bundles so card art and
identity can be swapped between cards. Every change is recorded in a changeset
and the touched bundles are backed up, so a game update that overwrites them
can be undone with 'arenaswap changes apply'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Load config
		path := configFlag
		if path == "" {
			path = config.GetConfigFilePath()
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if dbFlag != "" {
			cfg.DatabasePath = dbFlag
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Path to the card database (overrides database_path)")
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to the config file")

	RootCmd.AddCommand(validateCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}
