// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hourlog/hourlog/internal/config"
)

// userConfig holds flags for user add.
type userConfig struct {
	email         string
	passwordStdin bool
}

// NewUserCmd creates the user command group.
func NewUserCmd() *cobra.Command {
	return newUserCmd(nil)
}

func newUserCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts in the durable store",
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $"+config.DatabaseURLEnv+")")

	cfg := &userConfig{}
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create an account",
		Long: `Create an account without going through the HTTP API. The password is
read from the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, args[0], cfg, deps)
		},
	}
	add.Flags().StringVar(&cfg.email, "email", "", "optional email address")
	add.Flags().BoolVar(&cfg.passwordStdin, "password-stdin", true, "read the password from stdin")
	cmd.AddCommand(add)

	return cmd
}

func runUserAdd(cmd *cobra.Command, username string, ucfg *userConfig, deps *Deps) error {
	if !ucfg.passwordStdin {
		return oops.Code(config.CodeInvalid).Errorf("the password can only be supplied on stdin")
	}
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	// Accounts are only meaningful in the durable store.
	cfg.Credentials.Backend = config.CredentialsPostgres
	cfg.Sessions.Backend = config.SessionsMemory
	if err := cfg.Validate(); err != nil {
		return err //nolint:wrapcheck // coded by config
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	a, err := buildApp(cmd.Context(), cfg, deps, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var email *string
	if ucfg.email != "" {
		email = &ucfg.email
	}
	user, err := a.service.Signup(cmd.Context(), username, password, email)
	if err != nil {
		return err //nolint:wrapcheck // coded by auth
	}
	cmd.Printf("created user %s (%s)\n", user.Username, user.ID)
	return nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("INPUT_READ_FAILED").Wrap(err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", oops.Code(config.CodeInvalid).Errorf("password is required on stdin")
	}
	return password, nil
}
