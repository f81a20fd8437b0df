package bundle

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

// DefaultEngineVersion is the last-resort fallback when neither the
// configured version nor the game's version descriptor can be used.
const DefaultEngineVersion = "2022.3.42f1"

// ErrVersionFallback is returned when a container's header version has been
// stripped and no usable fallback version was supplied.
var ErrVersionFallback = errors.New("bundle: engine version stripped and no usable fallback version")

var engineVersionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)([abfpx])(\d+)$`)

// EngineVersion is a parsed engine version such as 2022.3.42f1.
type EngineVersion struct {
	Major, Minor, Patch int
	Type                string
	Build               int
}

func (v EngineVersion) String() string {
	return fmt.Sprintf("%d.%d.%d%s%d", v.Major, v.Minor, v.Patch, v.Type, v.Build)
}

// ParseEngineVersion parses strings of the form 2022.3.42f1.
func ParseEngineVersion(s string) (EngineVersion, error) {
	m := engineVersionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return EngineVersion{}, fmt.Errorf("invalid engine version %q", s)
	}
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return EngineVersion{
		Major: atoi(m[1]),
		Minor: atoi(m[2]),
		Patch: atoi(m[3]),
		Type:  m[4],
		Build: atoi(m[5]),
	}, nil
}

func isStripped(header string) bool {
	h := strings.TrimSpace(header)
	return h == "" || h == "0.0.0"
}

func resolveVersion(header, fallback string) (EngineVersion, error) {
	if !isStripped(header) {
		return ParseEngineVersion(header)
	}
	if fallback == "" {
		return EngineVersion{}, ErrVersionFallback
	}
	v, err := ParseEngineVersion(fallback)
	if err != nil {
		return EngineVersion{}, fmt.Errorf("%w: %v", ErrVersionFallback, err)
	}
	return v, nil
}

// ReadVersionDescriptor extracts the engine version from the game's level0
// file. The version string sits at characters 40-60 of the latin-1 decoded,
// whitespace-trimmed file, padded with NUL bytes. An empty string is
// returned when the file is missing or does not hold a valid version.
func ReadVersionDescriptor(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	text := []rune(strings.TrimSpace(string(runes)))
	if len(text) <= 40 {
		return ""
	}
	end := 60
	if end > len(text) {
		end = len(text)
	}
	version := strings.ReplaceAll(string(text[40:end]), "\x00", "")
	if _, err := ParseEngineVersion(version); err != nil {
		return ""
	}
	return version
}

// Loader opens containers with the configured fallback version and retries
// once with the installation default when the container's version was
// stripped. Codec errors are converted to apperr kinds.
type Loader struct {
	// FallbackVersion is tried first for stripped containers.
	FallbackVersion string
	// DescriptorPath points at the game's level0 file. Optional.
	DescriptorPath string
	Logger         *zap.Logger
}

// DefaultVersion returns the version from the descriptor file, or
// DefaultEngineVersion when it cannot be read.
func (l *Loader) DefaultVersion() string {
	if l.DescriptorPath != "" {
		if v := ReadVersionDescriptor(l.DescriptorPath); v != "" {
			return v
		}
	}
	return DefaultEngineVersion
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// Open loads the container at path.
func (l *Loader) Open(path string) (*Environment, error) {
	env, err := Open(path, Options{FallbackVersion: l.FallbackVersion})
	if errors.Is(err, ErrVersionFallback) {
		fallback := l.DefaultVersion()
		l.logger().Warn("container version stripped, retrying with default version",
			zap.String("path", path),
			zap.String("configured", l.FallbackVersion),
			zap.String("fallback", fallback),
		)
		env, err = Open(path, Options{FallbackVersion: fallback})
		if errors.Is(err, ErrVersionFallback) {
			return nil, apperr.VersionMismatch(err, "open %s", path)
		}
	}
	if err != nil {
		return nil, convertOpenError(path, err)
	}
	return env, nil
}

func convertOpenError(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return apperr.NotFound("bundle %s does not exist", path)
	case errors.Is(err, os.ErrPermission):
		return apperr.IO(err, "read %s", path)
	default:
		return apperr.Format(err, "decode %s", path)
	}
}
