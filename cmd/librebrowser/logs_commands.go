package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func createLogsTailCommand(g *GlobalFlags) *cobra.Command {
	f := &TailFlags{}
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the last lines of the daemon log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			lines, err := c.LogsTail(cmd.Context(), f.Lines)
			if err != nil {
				return err
			}
			for _, l := range lines {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), l); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&f.Lines, "lines", "n", 200, "number of lines")
	return cmd
}
