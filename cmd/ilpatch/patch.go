package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pboyd/ilpatch"
	"github.com/pboyd/ilpatch/container"
	"github.com/pboyd/ilpatch/resolve"
)

func (a *app) runPatch(cmd *cobra.Command, args []string) error {
	a.waitOnExit = true
	fmt.Fprintln(a.out, cyan(banner))

	path, err := a.locate()
	if err != nil {
		return err
	}
	c, err := a.open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	name := filepath.Base(path)
	p := ilpatch.New(a.target(),
		ilpatch.WithBackupSuffix(a.v.GetString("backup-suffix")),
		ilpatch.WithConfirm(a.confirm(name)),
		ilpatch.WithLogger(a.log),
	)
	result, err := p.Patch(c)
	if err != nil {
		return err
	}

	switch {
	case result.Patched:
		fmt.Fprintln(a.out, green(fmt.Sprintf("%s has been patched! A backup copy has been created in the same folder named %s",
			name, filepath.Base(result.Backup))))
	case result.Classification == ilpatch.AlreadyPatched:
		fmt.Fprintln(a.out, yellow(fmt.Sprintf("%s has already been patched!", name)))
	default:
		fmt.Fprintln(a.out, red(fmt.Sprintf("Can't apply patch to %s. Can't recognize the %s method", name, result.Target.Method)))
	}
	return nil
}

// open opens the module and resolves its references.
func (a *app) open(path string) (*container.Container, error) {
	rs, err := resolvers(path)
	if err != nil {
		return nil, err
	}
	r := resolve.NewChain(a.log, rs...)
	return container.Open(path, r, container.WithLogger(a.log))
}

// resolvers lists the strategies for the module at path in the order they
// are tried.
func resolvers(path string) ([]resolve.Resolver, error) {
	dir, err := resolve.NewDirectory(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	// System locations first; the module's own directory is the fallback.
	return []resolve.Resolver{resolve.NewDefault(), dir}, nil
}
