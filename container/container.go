// Package container loads a managed module for in-place editing. It exposes
// the module's types and method bodies and writes changed bodies back to the
// file the module was loaded from.
package container

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/pboyd/ilpatch/metadata"
	"github.com/pboyd/ilpatch/peimage"
	"github.com/pboyd/ilpatch/resolve"
)

var (
	ErrTypeNotFound   = errors.New("type not found")
	ErrMethodNotFound = errors.New("method not found")
	ErrNoBody         = errors.New("method has no IL body")
	ErrMixedMode      = errors.New("mixed-mode image cannot be rewritten")
	ErrCommitted      = errors.New("container already committed")
	ErrClosed         = errors.New("container is closed")

	ErrNotManaged = peimage.ErrNotManaged
	ErrUnresolved = resolve.ErrUnresolved
)

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Container) {
		c.log = log
	}
}

// Container is a managed module opened for reading and writing.
type Container struct {
	path string
	file *os.File
	data []byte
	mod  *metadata.File

	types      []*Type
	references []*resolve.Assembly

	committed bool
	log       *zap.Logger
}

// Open opens the module at path read/write and parses it. Every assembly the
// module references is passed to r; an unresolved reference fails the open.
// A nil resolver skips resolution.
//
// The file stays open until Close.
func Open(path string, r resolve.Resolver, opts ...Option) (*Container, error) {
	c := &Container{path: path, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open container: %w", err)
	}
	c.file = f

	if err := c.load(r); err != nil {
		f.Close()
		return nil, err
	}
	c.log.Debug("opened container",
		zap.String("path", path),
		zap.Int("size", len(c.data)),
		zap.Int("types", len(c.types)),
		zap.Int("references", len(c.references)),
	)
	return c, nil
}

func (c *Container) load(r resolve.Resolver) error {
	data, err := io.ReadAll(c.file)
	if err != nil {
		return fmt.Errorf("cannot read container %s: %w", c.path, err)
	}
	c.data = data

	c.mod, err = metadata.Open(data)
	if err != nil {
		return fmt.Errorf("cannot parse container %s: %w", c.path, err)
	}

	if r != nil {
		refs, err := c.mod.Tables.AssemblyRefs()
		if err != nil {
			return fmt.Errorf("cannot parse container %s: %w", c.path, err)
		}
		for _, row := range refs {
			a, err := r.Resolve(resolve.FromRow(row))
			if err != nil {
				return fmt.Errorf("%s: %w", c.path, err)
			}
			c.references = append(c.references, a)
		}
	}

	c.types, err = readTypes(c.mod.Tables)
	if err != nil {
		return fmt.Errorf("cannot parse container %s: %w", c.path, err)
	}
	return nil
}

// Close releases the file handle. Uncommitted edits are discarded.
func (c *Container) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// Path returns the path the container was opened from.
func (c *Container) Path() string { return c.path }

// Image returns the PE image as loaded.
func (c *Container) Image() *peimage.Image { return c.mod.Image }

// Tables returns the metadata tables as loaded.
func (c *Container) Tables() *metadata.Tables { return c.mod.Tables }

// References returns the resolved assembly references in table order.
func (c *Container) References() []*resolve.Assembly { return c.references }

// Assembly returns the module's assembly definition.
func (c *Container) Assembly() (metadata.AssemblyRow, bool) {
	a, ok, err := c.mod.Tables.Assembly()
	if err != nil {
		return a, false
	}
	return a, ok
}
