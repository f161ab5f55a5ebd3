package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hylla/sitebook/internal/config"
	"github.com/hylla/sitebook/internal/platform"
)

// newPathsCommand prints resolved runtime paths.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := opts.resolved
			out := struct {
				App       string `json:"app"`
				DevMode   bool   `json:"dev_mode"`
				Config    string `json:"config"`
				EnvFile   string `json:"env_file"`
				DataDir   string `json:"data_dir"`
				DB        string `json:"db"`
				LogDir    string `json:"log_dir"`
				Workspace string `json:"workspace,omitempty"`
			}{opts.AppName, opts.DevMode, s.configPath, s.paths.EnvPath, s.paths.DataDir, s.cfg.Database.Path, s.paths.LogDir, s.paths.Workspace}
			workspace := out.Workspace
			if workspace == "" {
				workspace = "(per-user)"
			}
			return newPrinter(cmd.OutOrStdout(), opts.JSON).Fields(out,
				[2]string{"app", out.App},
				[2]string{"dev_mode", fmt.Sprint(out.DevMode)},
				[2]string{"config", out.Config},
				[2]string{"env_file", out.EnvFile},
				[2]string{"data_dir", out.DataDir},
				[2]string{"db", out.DB},
				[2]string{"log_dir", out.LogDir},
				[2]string{"workspace", workspace},
			)
		},
	}
}

// newInitCommand writes a default config file when none exists. With
// --workspace it first turns the working directory into a site workspace.
func newInitCommand(opts *rootOptions) *cobra.Command {
	var workspace bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workspace {
				if opts.NoWorkspace {
					return fmt.Errorf("--workspace conflicts with --no-workspace")
				}
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working dir: %w", err)
				}
				if err := os.MkdirAll(filepath.Join(cwd, platform.WorkspaceDirName), 0o755); err != nil {
					return fmt.Errorf("create site workspace: %w", err)
				}
				opts.workspaceRoot = cwd
				if err := opts.resolve(cmd); err != nil {
					return err
				}
			}
			s := opts.resolved
			written, err := config.WriteDefault(s.configPath, config.Default(s.cfg.Database.Path))
			if err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			if written {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", s.configPath)
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "config already exists at %s\n", s.configPath)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&workspace, "workspace", false, "create a .sitebook site workspace in the current directory")
	return cmd
}
