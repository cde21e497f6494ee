// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hourlog/hourlog/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
			}
			cmd.Print(string(out))
			if verr := cfg.Validate(); verr != nil {
				cmd.PrintErrln("warning:", verr)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a config file (default: --config or the XDG default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.Load(config.Options{Path: path}); err != nil {
				return err //nolint:wrapcheck // coded by config
			}
			cmd.Println("configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err //nolint:wrapcheck // coded by config
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	return cmd
}
