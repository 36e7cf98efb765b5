package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/librebrowser/pkg/client"
)

func createProfileOpenCommand(g *GlobalFlags) *cobra.Command {
	f := &OpenFlags{}
	cmd := &cobra.Command{
		Use:   "open <label>",
		Short: "Show a profile, launching its engine if needed",
		Long: `Show a profile, launching its engine if needed.

Prints the engine pid, or "-" when no pid is known (the profile went to the
embedded surface, or the engine was launched indirectly and its pid could
not be recovered).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			pid, ok, err := c.Open(cmd.Context(), client.OpenRequest{
				Label:       args[0],
				URL:         f.URL,
				Version:     f.Version,
				WindowTitle: f.WindowTitle,
				DisplayName: f.DisplayName,
			})
			if err != nil {
				return err
			}
			return printPID(cmd, pid, ok)
		},
	}
	cmd.Flags().StringVar(&f.URL, "url", "", "start URL")
	cmd.Flags().StringVar(&f.Version, "version", "", "engine version (newest installed when empty)")
	cmd.Flags().StringVar(&f.WindowTitle, "title", "", "window title")
	cmd.Flags().StringVar(&f.DisplayName, "display-name", "", "application name shown by the OS")
	return cmd
}

func createProfileCloseCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close <label>",
		Short: "Stop a profile's engine, escalating to kill after the grace period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			return c.Close(cmd.Context(), args[0])
		},
	}
}

func createProfileExistsCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <label>",
		Short: "Report whether a profile is shown by an engine or the embedded surface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			exists, err := c.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), exists)
			return err
		},
	}
}

func createProfileRunningCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "running <label>",
		Short: "Print the live engine pid recorded for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			pid, ok, err := c.Running(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printPID(cmd, pid, ok)
		},
	}
}

func createProfileListCommand(g *GlobalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profile directories and their engine state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			profiles, err := c.Profiles(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), profiles)
			}
			for _, p := range profiles {
				state := "stopped"
				if p.Running {
					state = fmt.Sprintf("running pid=%d", p.PID)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.Label, state, p.LastStatus); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printPID(cmd *cobra.Command, pid int, ok bool) error {
	if !ok {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "-")
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), pid)
	return err
}
