package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pboyd/ilpatch"
)

func (a *app) runStatus(cmd *cobra.Command, args []string) error {
	path, err := a.locate()
	if err != nil {
		return err
	}
	c, err := a.open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := ilpatch.New(a.target(), ilpatch.WithLogger(a.log)).Inspect(c)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\n", report.Path)
	fmt.Fprintf(a.out, "  %s: %s (%d instructions)\n", report.Target, report.Classification, report.Instructions)
	if report.Classification == ilpatch.AlreadyPatched {
		celsius, err := ilpatch.ConversionProbe(report.Body)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "  %.1f°F reads as %.1f°C\n", ilpatch.ProbeFahrenheit, celsius)
	}

	backup := path + a.v.GetString("backup-suffix")
	if _, err := os.Stat(backup); err == nil {
		fmt.Fprintf(a.out, "  backup: %s\n", backup)
	}
	return nil
}
