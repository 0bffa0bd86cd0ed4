package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Default searches the places a .NET or Mono runtime installs its framework
// assemblies: the directories on MONO_PATH, the framework directories and
// the global assembly caches.
type Default struct {
	dirs []string
	gacs []string
}

// NewDefault returns the default resolver for the current platform.
func NewDefault() *Default {
	d := &Default{}
	if env := os.Getenv("MONO_PATH"); env != "" {
		d.dirs = append(d.dirs, filepath.SplitList(env)...)
	}

	if runtime.GOOS == "windows" {
		windir := os.Getenv("WINDIR")
		if windir == "" {
			windir = `C:\Windows`
		}
		d.dirs = append(d.dirs,
			filepath.Join(windir, "Microsoft.NET", "Framework64", "v4.0.30319"),
			filepath.Join(windir, "Microsoft.NET", "Framework", "v4.0.30319"),
		)
		d.gacs = append(d.gacs,
			filepath.Join(windir, "Microsoft.NET", "assembly", "GAC_MSIL"),
			filepath.Join(windir, "assembly", "GAC_MSIL"),
		)
		return d
	}

	for _, prefix := range []string{
		"/usr/lib/mono",
		"/usr/local/lib/mono",
		"/Library/Frameworks/Mono.framework/Versions/Current/lib/mono",
	} {
		d.dirs = append(d.dirs, filepath.Join(prefix, "4.5"))
		d.gacs = append(d.gacs, filepath.Join(prefix, "gac"))
	}
	return d
}

// Dirs returns the directories searched before the assembly caches.
func (d *Default) Dirs() []string { return d.dirs }

func (d *Default) Resolve(ref Reference) (*Assembly, error) {
	var last error
	for _, dir := range d.dirs {
		a, err := probe(dir, ref)
		if a != nil {
			return a, nil
		}
		if err != nil {
			last = err
		}
	}

	// GAC layout: <root>/<Name>/<version>_<culture>_<token>/<Name>.dll. The
	// version directory naming differs between runtimes, so every one is
	// probed.
	for _, gac := range d.gacs {
		versions, err := filepath.Glob(filepath.Join(gac, ref.Name, "*"))
		if err != nil {
			continue
		}
		for _, dir := range versions {
			a, err := probe(dir, ref)
			if a != nil {
				return a, nil
			}
			if err != nil {
				last = err
			}
		}
	}

	if last != nil {
		return nil, fmt.Errorf("%s not in system locations: %w: %w", ref.Name, ErrUnresolved, last)
	}
	return nil, fmt.Errorf("%s not in system locations: %w", ref.Name, ErrUnresolved)
}
