package cmd

import (
	"fmt"
	"strings"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/card"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/swap"
)

// cardsCmd represents the cards command group
var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Look up cards in the card database",
}

func printCards(cards []card.Card) {
	if len(cards) == 0 {
		fmt.Println("No cards found.")
		return
	}
	fmt.Println(colorize.CyanString("%-30s %-10s %-9s %-8s %-8s", "NAME", "SET", "ARTSIZE", "GRPID", "ARTID"))
	for _, c := range cards {
		fmt.Println(c.Format())
	}
}

var cardsListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every card",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sortKey, _ := cmd.Flags().GetString("sort")
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var cards []card.Card
		err = a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			cards, err = sess.Cards(cmd.Context())
			return err
		})
		if err != nil {
			return err
		}
		if err := card.Sort(cards, sortKey); err != nil {
			return err
		}
		printCards(cards)
		return nil
	},
}

var cardsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Fuzzy search cards by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var cards []card.Card
		err = a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			cards, err = sess.Search(cmd.Context(), strings.Join(args, " "), limit)
			return err
		})
		if err != nil {
			return err
		}
		printCards(cards)
		return nil
	},
}

var cardsAlternatesCmd = &cobra.Command{
	Use:   "alternates [grp_id]",
	Short: "List other printings that share a card's title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grpID, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var cards []card.Card
		err = a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			c, err := sess.Card(cmd.Context(), grpID)
			if err != nil {
				return err
			}
			cards, err = sess.Alternates(cmd.Context(), c)
			return err
		})
		if err != nil {
			return err
		}
		printCards(cards)
		return nil
	},
}

var cardsTokensCmd = &cobra.Command{
	Use:   "tokens [artist]",
	Short: "List tokens illustrated by an artist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var cards []card.Card
		err = a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			cards, err = sess.TokensByArtist(cmd.Context(), strings.Join(args, " "))
			return err
		})
		if err != nil {
			return err
		}
		printCards(cards)
		return nil
	},
}

var cardsLocCmd = &cobra.Command{
	Use:   "loc [loc_id]",
	Short: "Print a localized string",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locID, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			text, ok, err := sess.Localization(cmd.Context(), locID)
			if err != nil {
				return err
			}
			if !ok {
				notice("no localization %d in %s", locID, a.store.LocalizationTable())
				return nil
			}
			fmt.Println(text)
			return nil
		})
	},
}

var cardsRenameCmd = &cobra.Command{
	Use:   "rename [grp_id] [name]",
	Short: "Change the displayed name of a card",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		grpID, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		name := strings.Join(args[1:], " ")
		if _, err := swap.New(a.store, a.ledger, logger.Named("swap")).Rename(cmd.Context(), grpID, name); err != nil {
			return err
		}
		success("card %d is now called %q", grpID, name)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cardsCmd)
	cardsCmd.AddCommand(cardsListCmd, cardsSearchCmd, cardsAlternatesCmd, cardsTokensCmd, cardsLocCmd, cardsRenameCmd)

	cardsListCmd.Flags().StringP("sort", "s", "name", "Sort by one of: "+strings.Join(card.SortKeys, ", "))
	cardsSearchCmd.Flags().IntP("limit", "n", 20, "Maximum number of results (0 for all)")
}
