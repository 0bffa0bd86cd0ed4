// Package resolve finds the assemblies a managed module references. A
// resolver is tried for each AssemblyRef row while a container is opened;
// the module cannot be loaded unless every reference resolves.
package resolve

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pboyd/ilpatch/metadata"
)

var (
	ErrUnresolved  = errors.New("unresolved dependency")
	ErrNotAssembly = errors.New("not an assembly")
	ErrNoDirectory = errors.New("search directory does not exist")
)

// Reference names an assembly the way an AssemblyRef row does.
type Reference struct {
	Name           string
	Version        [4]uint16
	Culture        string
	PublicKeyToken []byte
}

// FromRow builds a Reference from an AssemblyRef row.
func FromRow(row metadata.AssemblyRefRow) Reference {
	return Reference{
		Name:           row.Name,
		Version:        row.Version,
		Culture:        row.Culture,
		PublicKeyToken: row.PublicKeyOrToken,
	}
}

func (r Reference) String() string {
	culture := r.Culture
	if culture == "" {
		culture = "neutral"
	}
	token := "null"
	if len(r.PublicKeyToken) > 0 {
		token = hex.EncodeToString(r.PublicKeyToken)
	}
	return fmt.Sprintf("%s, Version=%s, Culture=%s, PublicKeyToken=%s", r.Name, metadata.VersionString(r.Version), culture, token)
}

// Assembly is a resolved reference.
type Assembly struct {
	Name    string
	Version [4]uint16
	Path    string
}

// Resolver locates referenced assemblies.
type Resolver interface {
	Resolve(ref Reference) (*Assembly, error)
}

// Func adapts a function to the Resolver interface.
type Func func(ref Reference) (*Assembly, error)

func (f Func) Resolve(ref Reference) (*Assembly, error) { return f(ref) }

// Directory resolves references against the files of one directory.
type Directory struct {
	dir string
}

// NewDirectory returns a resolver for dir, which must exist.
func NewDirectory(dir string) (*Directory, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", dir, ErrNoDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoDirectory)
	}
	return &Directory{dir: dir}, nil
}

// Dir returns the searched directory.
func (d *Directory) Dir() string { return d.dir }

func (d *Directory) Resolve(ref Reference) (*Assembly, error) {
	a, err := probe(d.dir, ref)
	if a != nil {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s in %s: %w: %w", ref.Name, d.dir, ErrUnresolved, err)
	}
	return nil, fmt.Errorf("%s not in %s: %w", ref.Name, d.dir, ErrUnresolved)
}

var extensions = []string{".dll", ".exe"}

// probe looks for ref in dir. Both results are nil when no candidate file
// exists.
func probe(dir string, ref Reference) (*Assembly, error) {
	var mismatch error
	for _, ext := range extensions {
		path := filepath.Join(dir, ref.Name+ext)
		a, err := identify(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			mismatch = err
			continue
		}
		if strings.EqualFold(a.Name, ref.Name) {
			return a, nil
		}
		mismatch = fmt.Errorf("%s defines %s: %w", path, a.Name, ErrNotAssembly)
	}
	return nil, mismatch
}

// identify reads the assembly definition of the module at path.
func identify(path string) (*Assembly, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := metadata.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrNotAssembly, err)
	}
	row, ok, err := m.Tables.Assembly()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: no assembly row: %w", path, ErrNotAssembly)
	}
	return &Assembly{Name: row.Name, Version: row.Version, Path: path}, nil
}
