package cmd

import (
	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/swap"
)

// swapCmd represents the swap command group
var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Exchange identities, styles or tags between cards",
	Long: `Swap edits Cards rows in a single transaction. The rows are recorded in the
changeset and their bundles backed up before anything is written.`,
}

var swapFullCmd = &cobra.Command{
	Use:   "full [grp_id_a] [grp_id_b]",
	Short: "Exchange the GrpIds of two cards",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return runSwap(cmd, func(e *swap.Engine) (bool, error) {
			return e.Full(cmd.Context(), ids[0], ids[1])
		}, "cards %d and %d swapped", ids[0], ids[1])
	},
}

var swapStyleCmd = &cobra.Command{
	Use:   "style [grp_id_a] [grp_id_b]",
	Short: "Exchange art and tags between two cards",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return runSwap(cmd, func(e *swap.Engine) (bool, error) {
			return e.Style(cmd.Context(), ids[0], ids[1])
		}, "styles of %d and %d swapped", ids[0], ids[1])
	},
}

var swapParallaxCmd = &cobra.Command{
	Use:   "parallax [grp_id...]",
	Short: "Unlock the parallax style on cards",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return runSwap(cmd, func(e *swap.Engine) (bool, error) {
			return e.UnlockParallax(cmd.Context(), ids)
		}, "parallax style unlocked on %d card(s)", len(ids))
	},
}

var swapTagsCmd = &cobra.Command{
	Use:   "tags [grp_id] [tags]",
	Short: "Overwrite the Tags column of a card",
	Long: `Tags sets the comma separated Tags value of one card. Pass an empty string to
clear it.

Examples:
  arenaswap swap tags 75537 1696804317
  arenaswap swap tags 75537 ""`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return runSwap(cmd, func(e *swap.Engine) (bool, error) {
			return e.SetTags(cmd.Context(), id, args[1])
		}, "tags of %d set", id)
	},
}

var swapTagCmd = &cobra.Command{
	Use:   "tag [tag] [grp_id...]",
	Short: "Add a tag to cards that do not carry it yet",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		return runSwap(cmd, func(e *swap.Engine) (bool, error) {
			return e.AddTag(cmd.Context(), ids, args[0])
		}, "tag %s added", args[0])
	},
}

// runSwap opens the installation, runs fn and reports whether anything was
// committed.
func runSwap(cmd *cobra.Command, fn func(*swap.Engine) (bool, error), format string, args ...any) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	committed, err := fn(swap.New(a.store, a.ledger, logger.Named("swap")))
	if err != nil {
		return err
	}
	if !committed {
		notice("nothing to change")
		return nil
	}
	success(format, args...)
	return nil
}

func init() {
	RootCmd.AddCommand(swapCmd)
	swapCmd.AddCommand(swapFullCmd, swapStyleCmd, swapParallaxCmd, swapTagsCmd, swapTagCmd)
}
