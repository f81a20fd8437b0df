package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/validator"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the installation and the changeset",
	Long: `Validate checks that the card database, asset bundles and crop database can be
found, that no swap was left half done, and that the changeset and backups
still match the installation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// Create validator and run validation
		v := validator.NewValidator(a.layout, a.store, a.ledger)
		results, err := v.Validate(cmd.Context())
		if err != nil {
			return fmt.Errorf("validation error: %w", err)
		}

		// Display validation results
		fmt.Println("Validation Results:")
		fmt.Println("-------------------")

		if len(results.Errors) == 0 {
			fmt.Printf("✅ Installation at '%s' is consistent.\n", a.layout.DatabasePath)
		} else {
			fmt.Printf("❌ Installation at '%s' has %d validation errors:\n", a.layout.DatabasePath, len(results.Errors))
			for i, err := range results.Errors {
				fmt.Printf("%d. %s\n", i+1, err)
			}
			return fmt.Errorf("validation failed")
		}

		if len(results.Warnings) > 0 {
			fmt.Println("\nWarnings:")
			for i, warn := range results.Warnings {
				fmt.Printf("%d. %s\n", i+1, warn)
			}
		}

		return nil
	},
}
