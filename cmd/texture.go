package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/imaging"
	"github.com/arcanaland/arenaswap/internal/install"
	"github.com/arcanaland/arenaswap/internal/texture"
)

// textureCmd represents the texture command group
var textureCmd = &cobra.Command{
	Use:   "texture",
	Short: "Inspect and replace the art textures of a bundle",
}

// resolveArt opens the bundle of the art id given on the command line.
func resolveArt(cmd *cobra.Command, arg string) (*app, *texture.Resolution, error) {
	artID, err := parseID(arg)
	if err != nil {
		return nil, nil, err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	res, err := a.resolver().Resolve(cmd.Context(), install.ArtPrefix(artID))
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, res, nil
}

var textureListCmd = &cobra.Command{
	Use:   "ls [art_id]",
	Short: "List the candidate textures of an art bundle, largest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, res, err := resolveArt(cmd, args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("%s %s\n", label("Bundle"), res.Filename)
		fmt.Printf("%s %s\n", label("Engine"), res.Env.EngineVersion)
		if len(res.Textures) == 0 {
			fmt.Println("No textures.")
			return nil
		}
		for i, t := range res.Textures {
			name := t.Name
			if i == 0 {
				name = colorize.GreenString("%s", name)
			}
			fmt.Printf("  %-40s %5dx%-5d %-7s %d colors\n", name, t.Width, t.Height, t.Format, t.ColorCount())
		}
		return nil
	},
}

var textureExportCmd = &cobra.Command{
	Use:   "export [art_id]",
	Short: "Write the textures of an art bundle as PNG files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("output")
		a, res, err := resolveArt(cmd, args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		paths, err := texture.Export(res, dir)
		for _, p := range paths {
			success("%s", p)
		}
		return err
	},
}

var textureReplaceCmd = &cobra.Command{
	Use:   "replace [art_id] [image]",
	Short: "Replace the largest texture of an art bundle with an image",
	Long: `Replace writes an image into the primary texture of an art bundle. The image is
fitted to the texture's aspect ratio (or --ratio) before it is encoded, and
the modified bundle is copied to the backup directory.

Examples:
  arenaswap texture replace 1155 bolt.png
  arenaswap texture replace 1155 bolt.png --ratio 11:8 --mode stretch`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ratioFlag, _ := cmd.Flags().GetString("ratio")
		modeFlag, _ := cmd.Flags().GetString("mode")
		keepAlpha, _ := cmd.Flags().GetBool("keep-alpha")

		mode, err := imaging.ParseMode(modeFlag)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			if os.IsNotExist(err) {
				return apperr.NotFound("image %s does not exist", args[1])
			}
			return apperr.IO(err, "read %s", args[1])
		}
		img, err := imaging.Decode(imaging.Raw(data))
		if err != nil {
			return err
		}

		a, res, err := resolveArt(cmd, args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		primary, err := res.Primary()
		if err != nil {
			return err
		}

		// Fit the image to the texture
		ratio := imaging.Ratio{W: primary.Width, H: primary.Height}
		if ratioFlag != "" {
			if ratio, err = imaging.ParseRatio(ratioFlag); err != nil {
				return err
			}
		}
		img = imaging.RemoveAlpha(img, !keepAlpha && !primary.HasAlpha())
		if img, err = imaging.FitAspectRatio(img, ratio, mode); err != nil {
			return err
		}

		// Write and back up the bundle
		if err := texture.NewMutator(logger.Named("texture")).Replace(primary, imaging.Decoded{Image: img}, res.Path, res.Env); err != nil {
			return err
		}
		backup, err := a.ledger.Begin().BackupFile(res.Filename)
		if err != nil {
			return err
		}
		success("%s replaced (%dx%d), backup at %s", primary.Name, primary.Width, primary.Height, backup)
		return nil
	},
}

var texturePreviewCmd = &cobra.Command{
	Use:   "preview [art_id]",
	Short: "Render the primary texture of an art bundle in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, res, err := resolveArt(cmd, args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		art, err := renderPreview(res)
		if err != nil {
			return err
		}
		fmt.Print(art)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(textureCmd)
	textureCmd.AddCommand(textureListCmd, textureExportCmd, textureReplaceCmd, texturePreviewCmd)

	textureExportCmd.Flags().StringP("output", "o", filepath.Join(".", "textures"), "Directory to write PNG files to")
	textureReplaceCmd.Flags().String("ratio", "", "Target aspect ratio as W:H (defaults to the texture's own size)")
	textureReplaceCmd.Flags().String("mode", "crop", "How to reach the ratio: crop or stretch")
	textureReplaceCmd.Flags().Bool("keep-alpha", false, "Keep the alpha channel even when the texture has none")
}
