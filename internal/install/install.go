// Package install knows where a game installation keeps its card database,
// asset bundles, raw databases and engine version descriptor.
package install

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/bundle"
)

const (
	// DefaultBundleExtension is the suffix of every asset bundle file.
	DefaultBundleExtension = ".mtga"

	cardDatabasePrefix = "Raw_CardDatabase"
	cropDatabasePrefix = "Raw_ArtCropDatabase"
)

// Layout is the set of paths derived from the card database location:
//
//	<data>/Downloads/Raw/Raw_CardDatabase_*.mtga   DatabasePath
//	<data>/Downloads/Raw                           RawDir
//	<data>/Downloads/AssetBundle                   BundleDir
//	<data>/level0                                  VersionDescriptor
type Layout struct {
	DatabasePath      string
	RawDir            string
	BundleDir         string
	VersionDescriptor string
	// Extension is the bundle file suffix, DefaultBundleExtension when empty.
	Extension string
}

// FromDatabase derives the installation layout from the card database path.
func FromDatabase(dbPath string) Layout {
	raw := filepath.Dir(dbPath)
	downloads := filepath.Dir(raw)
	return Layout{
		DatabasePath:      dbPath,
		RawDir:            raw,
		BundleDir:         filepath.Join(downloads, "AssetBundle"),
		VersionDescriptor: filepath.Join(filepath.Dir(downloads), "level0"),
		Extension:         DefaultBundleExtension,
	}
}

// BundleExtension returns the configured extension or the default.
func (l Layout) BundleExtension() string {
	if l.Extension == "" {
		return DefaultBundleExtension
	}
	return l.Extension
}

// ArtPrefix formats an art id the way bundle filenames start.
func ArtPrefix(artID int64) string {
	return fmt.Sprintf("%06d", artID)
}

// FindBundles lists the bundle files in BundleDir whose name starts with
// prefix, sorted by name.
func (l Layout) FindBundles(prefix string) ([]string, error) {
	entries, err := os.ReadDir(l.BundleDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("bundle directory %s does not exist", l.BundleDir)
		}
		return nil, apperr.IO(err, "read bundle directory %s", l.BundleDir)
	}
	ext := l.BundleExtension()
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// BundleFor returns the first bundle filename for an art id.
func (l Layout) BundleFor(artID int64) (string, error) {
	names, err := l.FindBundles(ArtPrefix(artID))
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", apperr.NotFound("no bundle for art id %s in %s", ArtPrefix(artID), l.BundleDir)
	}
	return names[0], nil
}

// CropDatabase locates the art crop database next to the card database.
func (l Layout) CropDatabase() (string, error) {
	return findPrefixed(l.RawDir, cropDatabasePrefix, l.BundleExtension())
}

// Loader returns a bundle loader that falls back to this installation's
// engine version.
func (l Layout) Loader(fallbackVersion string, logger *zap.Logger) *bundle.Loader {
	return &bundle.Loader{
		FallbackVersion: fallbackVersion,
		DescriptorPath:  l.VersionDescriptor,
		Logger:          logger,
	}
}

func findPrefixed(dir, prefix, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", apperr.NotFound("directory %s is not readable", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", apperr.NotFound("no %s*%s in %s", prefix, ext, dir)
}

// CandidateRoots lists the usual installation folders for goos.
func CandidateRoots(goos, home string) []string {
	switch goos {
	case "windows":
		bases := []string{
			"Program Files/Wizards of the Coast/MTGA",
			"Program Files (x86)/Wizards of the Coast/MTGA",
			"Program Files (x86)/Steam/steamapps/common/MTGA",
			"Program Files/Epic Games/MagicTheGathering",
		}
		var roots []string
		for _, drive := range []string{"C:/", "D:/"} {
			for _, b := range bases {
				roots = append(roots, filepath.Join(drive, b))
			}
		}
		return append(roots, filepath.Join(home, "AppData/Local/Wizards of the Coast/MTGA"))
	case "darwin":
		return []string{
			"/Applications/MTGA.app",
			filepath.Join(home, "Library/Application Support/com.wizards.mtga"),
			"/Library/Application Support/com.wizards.mtga",
			filepath.Join(home, "Applications/MTGA.app"),
			"/Applications/Epic Games/MagicTheGathering/MTGA.app",
		}
	default:
		return []string{
			filepath.Join(home, ".steam/steam/steamapps/common/MTGA"),
			filepath.Join(home, ".local/share/Steam/steamapps/common/MTGA"),
		}
	}
}

// DataRoot returns the folder that holds Downloads for an installation root.
func DataRoot(root string) string {
	if strings.HasSuffix(root, ".app") {
		return filepath.Join(root, "Contents", "Resources", "Data")
	}
	nested := filepath.Join(root, "MTGA_Data")
	if info, err := os.Stat(nested); err == nil && info.IsDir() {
		return nested
	}
	return root
}

// DetectIn returns the card database of the first root that has one.
func DetectIn(roots []string) (string, error) {
	for _, root := range roots {
		raw := filepath.Join(DataRoot(root), "Downloads", "Raw")
		if db, err := findPrefixed(raw, cardDatabasePrefix, DefaultBundleExtension); err == nil {
			return db, nil
		}
	}
	return "", apperr.NotFound("no game installation found; set database_path in the config")
}

// Detect searches the usual installation folders of the running OS.
func Detect() (string, error) {
	home, _ := os.UserHomeDir()
	return DetectIn(CandidateRoots(runtime.GOOS, home))
}
