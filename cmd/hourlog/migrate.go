// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hourlog/hourlog/internal/config"
	"github.com/hourlog/hourlog/internal/store"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $"+config.DatabaseURLEnv+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				pending, err := m.PendingMigrations()
				if err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				if len(pending) == 0 {
					cmd.Println("Database is up to date")
					return nil
				}
				cmd.Printf("Applying %d migration(s)...\n", len(pending))
				if err := m.Up(); err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all tables; rerun with --yes")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&yes, "yes", false, "confirm dropping all tables")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printMigrationStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (dirty-state recovery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code(config.CodeInvalid).Errorf("database URL is required (--database-url or %s)", config.DatabaseURLEnv)
	}

	m, err := deps.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrln("warning: closing migrator:", closeErr)
		}
	}()
	return fn(m)
}

func printMigrationStatus(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // coded by store
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err //nolint:wrapcheck // coded by store
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err //nolint:wrapcheck // coded by store
	}

	state := "clean"
	if dirty {
		state = "DIRTY (run migrate force)"
	}
	cmd.Printf("Current version: %d (%s)\n", version, state)

	list := func(label string, versions []uint) error {
		cmd.Printf("%s: %d\n", label, len(versions))
		for _, v := range versions {
			name, err := store.MigrationName(v)
			if err != nil {
				return err //nolint:wrapcheck // coded by store
			}
			cmd.Println("  " + name)
		}
		return nil
	}
	if err := list("Applied", applied); err != nil {
		return err
	}
	return list("Pending", pending)
}
