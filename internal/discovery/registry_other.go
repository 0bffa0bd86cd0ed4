//go:build !windows

package discovery

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
)

// steamInstallPaths returns the usual Steam directories under the home
// directory that exist.
func steamInstallPaths() ([]string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	candidates := []string{
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam"),
	}
	if runtime.GOOS == "darwin" {
		candidates = append([]string{filepath.Join(home, "Library", "Application Support", "Steam")}, candidates...)
	}

	var paths []string
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			paths = append(paths, c)
		}
	}
	return paths, nil
}
