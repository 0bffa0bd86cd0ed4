package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pboyd/ilpatch"
	"github.com/pboyd/ilpatch/cil"
)

func (a *app) disCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis",
		Short: "Disassemble the target method",
		Args:  cobra.NoArgs,
		RunE:  a.runDis,
	}
	cmd.Flags().Bool("stub", false, "also disassemble the native entry point")
	return cmd
}

func (a *app) runDis(cmd *cobra.Command, args []string) error {
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
	fmt.Fprintf(a.out, "// %s (%s)\n", report.Target, report.Classification)
	if err := cil.Fprint(a.out, report.Body); err != nil {
		return err
	}

	if stub, _ := cmd.Flags().GetBool("stub"); stub {
		listing, err := c.Image().EntryStub()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "\n// entry point\n%s", listing)
	}
	return nil
}
