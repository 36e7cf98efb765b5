package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/librebrowser/pkg/client"
)

func createEngineInstallCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install <version> <url>",
		Short: "Download an engine build and unpack it into its version directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			dir, err := c.Install(cmd.Context(), client.InstallRequest{Version: args[0], URL: args[1]})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
			return err
		},
	}
}

func createEngineArchiveCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <version> <url>",
		Short: "Download an engine archive without unpacking it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			path, err := c.InstallArchived(cmd.Context(), client.InstallRequest{Version: args[0], URL: args[1]})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func createEngineExtractCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <version>",
		Short: "Unpack a previously downloaded engine archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			dir, err := c.ExtractArchived(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
			return err
		},
	}
}

func createEngineListCommand(g *GlobalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed engine versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			engines, err := c.Engines(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), engines)
			}
			for _, e := range engines {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Version, e.InstalledAt); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func createEngineWhichCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "which [version]",
		Short: "Print the engine executable for a version (newest when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			version := ""
			if len(args) == 1 {
				version = args[0]
			}
			path, found, err := c.Binary(cmd.Context(), version)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no engine binary found for version %q", version)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
