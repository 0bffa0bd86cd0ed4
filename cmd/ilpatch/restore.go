package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pboyd/ilpatch"
)

func (a *app) runRestore(cmd *cobra.Command, args []string) error {
	path, err := a.locate()
	if err != nil {
		return err
	}
	suffix := a.v.GetString("backup-suffix")
	if err := ilpatch.Restore(path, suffix); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Restored %s from %s\n", path, path+suffix)
	return nil
}
