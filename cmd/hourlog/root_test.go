// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps tests away from the developer's config file and environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	configFile = ""
	t.Cleanup(func() { configFile = "" })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, NewRootCmd(), "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "migrate", "config", "user", "status"} {
		assert.Contains(t, out, sub, "help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "with equals",
			args:     []string{"--config=/etc/hourlog.yaml", "--help"},
			wantFlag: "/etc/hourlog.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			_, err := execute(t, NewRootCmd(), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	isolate(t)
	cmd := NewRootCmd()
	cmd.Version = "test-version"

	out, err := execute(t, cmd, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "test-version")
}

func TestServeCommand_RegistersConfigFlags(t *testing.T) {
	cmd := NewServeCmd()
	for _, name := range []string{"addr", "metrics-addr", "credentials", "sessions", "redis-addr", "reset-ttl", "expose-reset", "allowed-origins"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "serve missing --%s", name)
	}
}
