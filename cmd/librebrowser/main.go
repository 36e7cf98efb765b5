package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot assembles the command tree. Every command except serve talks
// to a running daemon through pkg/client.
func buildRoot() *cobra.Command {
	global := &GlobalFlags{}
	root := createRootCommand(global)

	engineCmd := &cobra.Command{Use: "engine", Short: "Manage installed browser engine versions"}
	engineCmd.AddCommand(
		createEngineInstallCommand(global),
		createEngineArchiveCommand(global),
		createEngineExtractCommand(global),
		createEngineListCommand(global),
		createEngineWhichCommand(global),
	)

	profileCmd := &cobra.Command{Use: "profile", Short: "Open, close and inspect browsing profiles"}
	profileCmd.AddCommand(
		createProfileOpenCommand(global),
		createProfileCloseCommand(global),
		createProfileExistsCommand(global),
		createProfileRunningCommand(global),
		createProfileListCommand(global),
	)

	logsCmd := &cobra.Command{Use: "logs", Short: "Read the daemon log"}
	logsCmd.AddCommand(createLogsTailCommand(global))

	root.AddCommand(
		createServeCommand(global),
		createConfigCommand(),
		engineCmd,
		profileCmd,
		logsCmd,
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "librebrowser",
		Short: "Browser engine and profile orchestration daemon",
		Long: `librebrowser installs browser engine builds side by side and runs one
isolated engine process per profile label.

Examples:
  librebrowser serve --config librebrowser.toml
  librebrowser engine install 120.0.6099.109 https://example.com/chrome-linux64.zip
  librebrowser profile open work --version 120.0.6099.109 --url https://example.org
  librebrowser profile close work`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon API base URL (default from config)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", defaultAPITimeout, "timeout for quick API calls")

	return root
}
