package cmd

import (
	"fmt"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/ledger"
)

// changesCmd represents the changes command group
var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Record, inspect and re-apply the changeset and bundle backups",
}

var changesApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Re-apply every recorded change after a game update",
	Long: `Apply replays the changeset: crop rows go back into the crop database, backed up
bundles are copied over the live ones and every recorded card row and
localization is written back. Cards that no longer exist are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var report *ledger.ApplyReport
		err = a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			report, err = a.ledger.Apply(cmd.Context(), sess)
			return err
		})
		if err != nil {
			return err
		}

		success("changeset applied")
		fmt.Printf("  %s %d\n", label("Rows"), report.Rows)
		fmt.Printf("  %s %d\n", label("Strings"), report.Localizations)
		fmt.Printf("  %s %d\n", label("Bundles"), report.Restored)
		fmt.Printf("  %s %d\n", label("Crops"), report.Crops)
		if len(report.Skipped) > 0 {
			notice("skipped %d entries without a card: %v", len(report.Skipped), report.Skipped)
		}
		return nil
	},
}

var changesSnapshotCmd = &cobra.Command{
	Use:   "snapshot [grp_id...]",
	Short: "Record the current state of cards and back up their bundles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			return a.ledger.Snapshot(cmd.Context(), sess, ids)
		})
		if err != nil {
			return err
		}
		success("%d card(s) recorded in %s", len(ids), a.ledger.ChangesPath())
		return nil
	},
}

var changesBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List bundle backups, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.ledger.Backups()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Printf("No backups in %s\n", a.ledger.BackupDir())
			return nil
		}
		for _, b := range backups {
			fmt.Printf("%s  %s  %9d  %s\n",
				b.ModTime.Format("2006-01-02 15:04:05"),
				colorize.HiBlackString("%.12s", b.Digest),
				b.Size,
				b.Name,
			)
		}
		return nil
	},
}

var changesRestoreCmd = &cobra.Command{
	Use:   "restore [backup]",
	Short: "Copy one backup over its live bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ledger.Restore(args[0]); err != nil {
			return err
		}
		success("%s restored", args[0])
		return nil
	},
}

var changesCropsCmd = &cobra.Command{
	Use:   "crops [art_id]",
	Short: "Record the art crop rows of an art id in the changeset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		artID, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		crops, err := a.ledger.CropsForArt(cmd.Context(), artID)
		if err != nil {
			return err
		}
		if len(crops) == 0 {
			notice("no crop rows for art id %d", artID)
			return nil
		}
		for _, c := range crops {
			fmt.Printf("  %-50s %-8s %.4f %.4f %.4f %.4f\n", c.Path, c.Format, c.X, c.Y, c.Z, c.W)
		}
		if err := a.ledger.RecordCrops(artID, crops); err != nil {
			return err
		}
		success("%d crop row(s) recorded", len(crops))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(changesCmd)
	changesCmd.AddCommand(changesApplyCmd, changesSnapshotCmd, changesBackupsCmd, changesRestoreCmd, changesCropsCmd)
}
