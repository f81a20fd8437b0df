package cmd

import (
	"fmt"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/setswap"
	"github.com/arcanaland/arenaswap/internal/texture"
)

// setswapCmd represents the setswap command group
var setswapCmd = &cobra.Command{
	Use:   "setswap",
	Short: "Replace the art and names of a set with those of another set",
}

var setswapGenerateCmd = &cobra.Command{
	Use:   "generate [source_set] [target_set]",
	Short: "Write a swap file pairing the cards of two catalog sets",
	Long: `Generate pairs the cards of two sets that share an oracle id and writes a swap
file. Cards of the source set take the art and name of their counterpart in
the target set.

Examples:
  arenaswap setswap generate spm spe -o spider.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		cat, err := newCatalog()
		if err != nil {
			return err
		}

		swaps, err := setswap.Generate(cmd.Context(), cat, args[0], args[1])
		if err != nil {
			return err
		}
		if len(swaps) == 0 {
			notice("the sets share no cards")
			return nil
		}
		if err := setswap.WriteSwaps(out, swaps); err != nil {
			return err
		}
		success("%d swap(s) written to %s", len(swaps), out)
		return nil
	},
}

var setswapApplyCmd = &cobra.Command{
	Use:   "apply [swap_file]",
	Short: "Run a swap file against the installation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		swaps, err := setswap.LoadSwaps(args[0])
		if err != nil {
			return err
		}
		cat, err := newCatalog()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		orch := setswap.New(a.store, a.ledger, a.resolver(), texture.NewMutator(logger.Named("texture")), cat,
			setswap.WithLogger(logger.Named("setswap")),
		)
		report, err := orch.Run(cmd.Context(), swaps)
		if report != nil {
			printReport(report)
		}
		return err
	},
}

func printReport(report *setswap.Report) {
	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Printf("%s %s %s: %v\n", colorize.RedString("✘"), o.Swap.ExpansionCode, o.Swap.CollectorNumber, o.Err)
			continue
		}
		fmt.Printf("%s %s %s -> %s %v\n", colorize.GreenString("✔"), o.Swap.ExpansionCode, o.Swap.CollectorNumber, o.Swap.SourceCardName, o.Bundles)
	}
	fmt.Printf("\n%d of %d swap(s) applied (run %s)\n", report.Succeeded(), len(report.Outcomes), report.RunID)
}

func init() {
	RootCmd.AddCommand(setswapCmd)
	setswapCmd.AddCommand(setswapGenerateCmd, setswapApplyCmd)

	setswapGenerateCmd.Flags().StringP("output", "o", "swaps.json", "Swap file to write")
}
