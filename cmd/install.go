package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/config"
	"github.com/arcanaland/arenaswap/internal/install"
)

// installCmd represents the install command group
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Locate the game installation",
}

// installDetectCmd represents the install detect command
var installDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Search the usual folders for the card database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")

		dbPath, err := install.Detect()
		if err != nil {
			return err
		}
		fmt.Println(dbPath)

		if save {
			path := configFlag
			if path == "" {
				path = config.GetConfigFilePath()
			}
			if err := config.SetDatabasePath(path, dbPath); err != nil {
				return apperr.IO(err, "save %s", path)
			}
			success("database_path saved to %s", path)
		}
		return nil
	},
}

// installInfoCmd represents the install info command
var installInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the paths the installation is read from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := cfg.ResolveDatabase()
		if err != nil {
			return err
		}
		layout := cfg.Layout(dbPath)
		loader := layout.Loader(cfg.FallbackVersion, logger.Named("bundle"))

		crops, err := layout.CropDatabase()
		if err != nil {
			crops = "(not found)"
		}
		fmt.Printf("%s %s\n", label("Database"), dbPath)
		fmt.Printf("%s %s\n", label("Bundles"), layout.BundleDir)
		fmt.Printf("%s %s\n", label("Crops"), crops)
		fmt.Printf("%s %s\n", label("Engine"), loader.DefaultVersion())
		fmt.Printf("%s %s\n", label("Changes"), cfg.ChangesPath)
		fmt.Printf("%s %s\n", label("Backups"), cfg.BackupDir)

		if _, err := os.Stat(layout.BundleDir); err != nil {
			notice("asset bundle directory is missing")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(installCmd)
	installCmd.AddCommand(installDetectCmd, installInfoCmd)

	installDetectCmd.Flags().Bool("save", false, "Write the detected path to the config file")
}
