package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/bundle"
	"github.com/arcanaland/arenaswap/internal/install"
)

// bundleCmd represents the bundle command group
var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Inspect asset bundles and export their fonts and meshes",
	Long: `Bundle commands take either a path to a bundle file or an art id, which is
looked up in the installation's asset bundle directory.`,
}

// openBundle opens the bundle named by arg, a file path or an art id.
func openBundle(cmd *cobra.Command, arg string) (*bundle.Environment, string, error) {
	if _, err := os.Stat(arg); err == nil {
		loader := &bundle.Loader{FallbackVersion: cfg.FallbackVersion, Logger: logger.Named("bundle")}
		env, err := loader.Open(arg)
		return env, arg, err
	}

	artID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, "", apperr.NotFound("%s is neither a bundle file nor an art id", arg)
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return nil, "", err
	}
	defer a.Close()

	names, err := a.layout.FindBundles(install.ArtPrefix(artID))
	if err != nil {
		return nil, "", err
	}
	if len(names) == 0 {
		return nil, "", apperr.NotFound("no bundle for art id %d", artID)
	}
	path := filepath.Join(a.layout.BundleDir, names[0])
	env, err := a.loader.Open(path)
	return env, path, err
}

var bundleListCmd = &cobra.Command{
	Use:   "ls [bundle|art_id]",
	Short: "List the objects of a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, path, err := openBundle(cmd, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", label("Bundle"), filepath.Base(path))
		header := env.HeaderVersion
		if header == "" {
			header = "stripped"
		}
		fmt.Printf("%s %s (header %s)\n", label("Engine"), env.EngineVersion, header)
		for _, o := range env.Objects() {
			fmt.Printf("  %6d  %-10s %-6s %8d  %s\n", o.PathID, o.Type, o.Compression, len(o.Payload()), o.Name)
		}
		return nil
	},
}

var bundleFontsCmd = &cobra.Command{
	Use:   "fonts [bundle|art_id]",
	Short: "Export the fonts of a bundle as .ttf or .otf files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("output")
		env, _, err := openBundle(cmd, args[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperr.IO(err, "create %s", dir)
		}

		written, err := bundle.ExportFonts(env, dir)
		for _, p := range written {
			success("%s", p)
		}
		if err != nil {
			return apperr.IO(err, "export fonts")
		}
		if len(written) == 0 {
			notice("no fonts with data")
		}
		return nil
	},
}

var bundleMeshesCmd = &cobra.Command{
	Use:   "meshes [bundle|art_id]",
	Short: "Export the meshes of a bundle as Wavefront OBJ files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("output")
		env, _, err := openBundle(cmd, args[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperr.IO(err, "create %s", dir)
		}

		n, err := bundle.ExportMeshes(env, dir)
		if err != nil {
			return apperr.IO(err, "export meshes")
		}
		success("%d mesh(es) written to %s", n, dir)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleListCmd, bundleFontsCmd, bundleMeshesCmd)

	bundleFontsCmd.Flags().StringP("output", "o", "fonts", "Directory to write fonts to")
	bundleMeshesCmd.Flags().StringP("output", "o", "meshes", "Directory to write meshes to")
}
