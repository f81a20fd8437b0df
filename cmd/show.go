package cmd

import (
	"fmt"
	"os"
	"strconv"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/arcanaland/arenaswap/internal/ansi"
	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/card"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/config"
	"github.com/arcanaland/arenaswap/internal/texture"
)

var showCmd = &cobra.Command{
	Use:   "show [grp_id]",
	Short: "Display a card with a terminal preview of its art",
	Long: `Show displays a card's database entry next to an ANSI rendering of the
largest texture in its art bundle.

Examples:
  arenaswap show 75537
  arenaswap show --no-art 75537`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grpID, err := parseID(args[0])
		if err != nil {
			return err
		}
		noArt, _ := cmd.Flags().GetBool("no-art")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// Get the card
		var (
			c     card.Card
			title string
		)
		err = a.store.WithSession(cmd.Context(), func(sess *cardstore.Session) error {
			var err error
			if c, err = sess.Card(cmd.Context(), grpID); err != nil {
				return err
			}
			title, _, err = sess.Localization(cmd.Context(), c.TitleID)
			return err
		})
		if err != nil {
			return err
		}

		art := ""
		if !noArt {
			res, err := a.resolver().ResolveCard(cmd.Context(), c)
			switch {
			case apperr.Is(err, apperr.KindNotFound):
				notice("no art bundle for art id %d", c.ArtID)
			case err != nil:
				return err
			default:
				art, err = renderPreview(res)
				if err != nil {
					return err
				}
			}
		}

		displayCard(c, title, art)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("no-art", false, "Skip the art preview")
}

// renderPreview renders the primary texture of res, reusing a cached
// rendering while the bundle file is unchanged.
func renderPreview(res *texture.Resolution) (string, error) {
	primary, err := res.Primary()
	if err != nil {
		return "", err
	}

	width := 40
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = max(min(w/2, 60), 10)
	}

	key := res.Path + "|" + primary.Name + "|" + strconv.Itoa(width)
	if info, err := os.Stat(res.Path); err == nil {
		key += "|" + info.ModTime().String()
	}
	cache := ansi.Cache{Dir: config.GetCacheDir()}
	if art, ok := cache.Get(key); ok {
		return art, nil
	}

	img := primary.Image()
	cw, ch := ansi.FitCells(img, width)
	art := ansi.Render(img, cw, ch, true)
	if err := cache.Put(key, art); err != nil {
		logger.Debug("preview not cached")
	}
	return art, nil
}

// displayCard displays the card information next to its art
func displayCard(c card.Card, title, art string) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}

	name := c.String()
	if title != "" {
		name = title
	}
	infoLines := []string{
		colorize.CyanString("Card:   ") + colorize.HiWhiteString("%s", name),
		colorize.CyanString("GrpId:  ") + colorize.HiWhiteString("%d", c.GrpID),
		colorize.CyanString("ArtId:  ") + colorize.HiWhiteString("%06d", c.ArtID),
		colorize.CyanString("Set:    ") + colorize.HiWhiteString("%s #%s", c.SetCode, c.CollectorNumber),
	}
	if c.LinkedFaceGrpID != 0 {
		infoLines = append(infoLines, colorize.CyanString("Linked: ")+colorize.HiWhiteString("%d", c.LinkedFaceGrpID))
	}
	if tags := c.TagList(); len(tags) > 0 {
		infoLines = append(infoLines, colorize.CyanString("Tags:"))
		for _, line := range ansi.Wrap(c.Tags, max(width/2-4, 20)) {
			infoLines = append(infoLines, "  "+line)
		}
	}
	if c.HasTag(card.ParallaxTag) {
		infoLines = append(infoLines, colorize.MagentaString("Parallax style unlocked"))
	}

	if art == "" {
		fmt.Println()
		for _, line := range infoLines {
			fmt.Println("  " + line)
		}
		fmt.Println()
		return
	}
	ansi.SideBySide(os.Stdout, art, infoLines)
}
