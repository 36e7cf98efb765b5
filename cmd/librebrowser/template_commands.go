package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loykin/librebrowser/pkg/template"
)

type ConfigInitFlags struct {
	Type   string
	Output string
	Root   string
	Force  bool
}

func createConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Work with librebrowser configuration files"}
	cmd.AddCommand(createConfigInitCommand())
	return cmd
}

func createConfigInitCommand() *cobra.Command {
	f := &ConfigInitFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter TOML config",
		Long: `Write a starter TOML config.

Types: local (default), postgres, metrics, minimal.
Without --out the config is printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return configInit(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", string(template.TypeLocal), "template type")
	cmd.Flags().StringVarP(&f.Output, "out", "o", "", "output file")
	cmd.Flags().StringVar(&f.Root, "root", "", "data root to write into [paths]")
	cmd.Flags().BoolVar(&f.Force, "force", false, "overwrite an existing file")
	return cmd
}

func configInit(cmd *cobra.Command, f *ConfigInitFlags) error {
	v := template.DefaultValues()
	v.Root = filepath.ToSlash(f.Root)
	content, err := template.NewGenerator().Generate(template.TemplateType(f.Type), v)
	if err != nil {
		return fmt.Errorf("failed to generate template: %w", err)
	}
	if f.Output == "" {
		_, err = cmd.OutOrStdout().Write(content)
		return err
	}
	if _, err := os.Stat(f.Output); err == nil && !f.Force {
		return fmt.Errorf("config file '%s' already exists (use --force to overwrite)", f.Output)
	}
	if dir := filepath.Dir(f.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(f.Output, content, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Config written: %s\nStart the daemon with: librebrowser serve %s\n", f.Output, f.Output)
	return err
}
