package discovery

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/andygrunwald/vdf"
	"go.uber.org/zap"
)

// Steam finds games in the Steam libraries of the local machine.
type Steam struct {
	installPaths func() ([]string, error)
	log          *zap.Logger
}

// SteamOption configures Steam.
type SteamOption func(*Steam)

// WithInstallPaths replaces the platform lookup of the Steam installation.
func WithInstallPaths(paths ...string) SteamOption {
	return func(s *Steam) {
		s.installPaths = func() ([]string, error) { return paths, nil }
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) SteamOption {
	return func(s *Steam) {
		s.log = log
	}
}

// NewSteam returns a Steam discoverer. The installation is read from the
// registry on Windows and searched for under the home directory elsewhere.
func NewSteam(opts ...SteamOption) *Steam {
	s := &Steam{
		installPaths: steamInstallPaths,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns <library>/steamapps/common/<folder> for the first library
// that has it.
func (s *Steam) Discover(folder string) (string, error) {
	installs, err := s.installPaths()
	if err != nil {
		return "", fmt.Errorf("steam installation: %w", err)
	}
	if len(installs) == 0 {
		return "", fmt.Errorf("%s: steam is not installed: %w", folder, ErrNotFound)
	}

	for _, lib := range s.Libraries(installs) {
		dir := filepath.Join(lib, "steamapps", "common", folder)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			s.log.Debug("game not in library", zap.String("library", lib), zap.String("folder", folder))
			continue
		}
		return dir, nil
	}
	return "", fmt.Errorf("%s: %w", folder, ErrNotFound)
}

// Libraries lists the library folders of the given Steam installations: each
// installation itself, then the BaseInstallFolder_N entries of
// config/config.vdf, then the paths of steamapps/libraryfolders.vdf.
func (s *Steam) Libraries(installs []string) []string {
	var libs []string
	add := func(path string) {
		path = normalize(path)
		if path != "" && !slices.Contains(libs, path) {
			libs = append(libs, path)
		}
	}

	for _, install := range installs {
		add(install)

		config := filepath.Join(install, "config", "config.vdf")
		for _, path := range s.values(config, func(parent, key string) bool {
			return strings.HasPrefix(strings.ToLower(key), "baseinstallfolder")
		}) {
			add(path)
		}

		folders := filepath.Join(install, "steamapps", "libraryfolders.vdf")
		for _, path := range s.values(folders, func(parent, key string) bool {
			return strings.EqualFold(key, "path") || isIndex(key) && strings.EqualFold(parent, "libraryfolders")
		}) {
			add(path)
		}
	}
	return libs
}

// values reads a VDF file and returns the string values whose keys match,
// ordered by key. A missing or broken file has no values.
func (s *Steam) values(path string, match func(parent, key string) bool) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		s.log.Warn("cannot parse steam config", zap.String("path", path), zap.Error(err))
		return nil
	}

	type entry struct{ key, value string }
	var found []entry
	var walk func(parent string, m map[string]any)
	walk = func(parent string, m map[string]any) {
		for k, v := range m {
			switch v := v.(type) {
			case string:
				if match(parent, k) {
					found = append(found, entry{parent + "/" + k, v})
				}
			case map[string]any:
				walk(k, v)
			}
		}
	}
	walk("", m)

	slices.SortFunc(found, func(a, b entry) int { return compareKeys(a.key, b.key) })
	out := make([]string, len(found))
	for i, e := range found {
		out[i] = e.value
	}
	return out
}

// compareKeys orders slash separated key paths segment by segment. Numeric
// segments compare by value so library 10 follows library 9.
func compareKeys(a, b string) int {
	as, bs := strings.Split(a, "/"), strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		x, y := as[i], bs[i]
		if isIndex(x) && isIndex(y) {
			x, y = strings.TrimLeft(x, "0"), strings.TrimLeft(y, "0")
			if c := cmp.Compare(len(x), len(y)); c != 0 {
				return c
			}
		}
		if c := strings.Compare(x, y); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(as), len(bs))
}

func isIndex(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalize undoes the doubled backslashes VDF files store. A path that
// starts with exactly two backslashes is an unescaped UNC path and keeps its
// prefix.
func normalize(path string) string {
	var prefix string
	if strings.HasPrefix(path, `\\`) && !strings.HasPrefix(path, `\\\\`) {
		prefix, path = `\\`, path[2:]
	}
	path = prefix + strings.ReplaceAll(path, `\\`, `\`)
	if filepath.Separator == '\\' {
		path = strings.ReplaceAll(path, "/", `\`)
	}
	return filepath.Clean(path)
}
