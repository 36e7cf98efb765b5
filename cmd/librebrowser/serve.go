package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/librebrowser"
	"github.com/loykin/librebrowser/internal/process"
)

func createServeCommand(g *GlobalFlags) *cobra.Command {
	f := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the librebrowser daemon",
		Long: `Run the daemon that owns engine installs and profile processes and
serves the HTTP API. Without a config file, defaults and LIBREBROWSER_*
environment variables apply.

Examples:
  librebrowser serve
  librebrowser serve librebrowser.toml
  librebrowser serve --daemonize --pidfile /tmp/librebrowser.pid`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := g.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			if f.Daemonize {
				pid, err := daemonize(os.Args[1:], f.LogFile)
				if err != nil {
					return err
				}
				if f.PidFile != "" {
					if err := process.WritePIDFile(f.PidFile, pid); err != nil {
						return fmt.Errorf("write daemon pid file: %w", err)
					}
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Daemon started with PID %d\n", pid)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&f.PidFile, "pidfile", "", "write the daemon pid to this file")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "redirect daemon stdout/stderr to file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := librebrowser.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	app, err := librebrowser.New(cfg)
	if err != nil {
		return err
	}
	serveErr := app.ListenAndServe(ctx)
	if err := app.Close(); err != nil {
		app.Logger().Warn("shutdown", "error", err)
	}
	return serveErr
}
