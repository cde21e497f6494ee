// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/hourlog/hourlog/internal/config"
)

// configFile is the --config flag shared by all subcommands.
var configFile string

// NewRootCmd creates the root command for the hourlog CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hourlog",
		Short: "hourlog - task-hour logging backend",
		Long: `hourlog serves the authentication and session API of the task-hour
logging backend, and provides tooling for its database and users.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/hourlog/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// loadConfig loads configuration for cmd, applying its flags when they are
// configuration flags.
func loadConfig(cmd *cobra.Command, skipValidate bool) (*config.Config, error) {
	return config.Load(config.Options{ //nolint:wrapcheck // config returns coded errors
		Path:         configFile,
		Flags:        cmd.Flags(),
		SkipValidate: skipValidate,
	})
}
