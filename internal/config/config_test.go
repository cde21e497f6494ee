// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourlog/hourlog/internal/config"
	"github.com/hourlog/hourlog/pkg/errutil"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefault_IsValidWithStaticCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Credentials.Backend = config.CredentialsStatic
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Minute, cfg.Reset.TTL)
	assert.False(t, cfg.Reset.ExposeCode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"empty addr", func(c *config.Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"unknown credentials backend", func(c *config.Config) { c.Credentials.Backend = "ldap" }, "credentials.backend"},
		{"postgres without url", func(c *config.Config) {
			c.Credentials.Backend = config.CredentialsPostgres
			c.Database.URL = ""
		}, "database.url"},
		{"unknown sessions backend", func(c *config.Config) { c.Sessions.Backend = "etcd" }, "sessions.backend"},
		{"redis without addr", func(c *config.Config) {
			c.Sessions.Backend = config.SessionsRedis
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"zero reset ttl", func(c *config.Config) { c.Reset.TTL = 0 }, "reset.ttl"},
		{"bad origin glob", func(c *config.Config) { c.CORS.AllowedOrigins = []string{"https://[a"} }, "cors.allowed_origins"},
		{"zero body limit", func(c *config.Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Credentials.Backend = config.CredentialsStatic
			tt.mutate(cfg)

			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, config.CodeInvalid)
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestLoad_DefaultsAndEnvFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	getenv := func(key string) string {
		if key == config.DatabaseURLEnv {
			return "postgres://hourlog@localhost/hourlog"
		}
		return ""
	}

	cfg, err := config.Load(config.Options{Getenv: getenv})
	require.NoError(t, err)
	assert.Equal(t, "postgres://hourlog@localhost/hourlog", cfg.Database.URL)
	assert.Equal(t, config.CredentialsPostgres, cfg.Credentials.Backend)
	assert.Equal(t, "127.0.0.1:3000", cfg.Server.Addr)
}

func TestLoad_PostgresWithoutURLFails(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := config.Load(config.Options{Getenv: noEnv})
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
log:
  format: text
  level: debug
credentials:
  backend: static
  static_users:
    alice: wonderland
sessions:
  backend: redis
redis:
  addr: "redis:6379"
reset:
  ttl: 5m
  expose_code: true
cors:
  allowed_origins:
    - "https://*.example.com"
`)

	cfg, err := config.Load(config.Options{Path: path, Getenv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, map[string]string{"alice": "wonderland"}, cfg.Credentials.StaticUsers)
	assert.Equal(t, config.SessionsRedis, cfg.Sessions.Backend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "hourlog:", cfg.Redis.KeyPrefix, "unset keys keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.Reset.TTL)
	assert.True(t, cfg.Reset.ExposeCode)
	assert.Equal(t, []string{"https://*.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
credentials:
  backend: static
log:
  level: warn
`)
	flags := parseFlags(t, "--addr", ":9090", "--reset-ttl", "2m", "--allowed-origins", "http://localhost:*")

	cfg, err := config.Load(config.Options{Path: path, Flags: flags, Getenv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level, "unchanged flags do not override the file")
	assert.Equal(t, 2*time.Minute, cfg.Reset.TTL)
	assert.Equal(t, []string{"http://localhost:*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_ExplicitDatabaseURLBeatsEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	flags := parseFlags(t, "--database-url", "postgres://flag/db")
	getenv := func(string) string { return "postgres://env/db" }

	cfg, err := config.Load(config.Options{Flags: flags, Getenv: getenv})
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/db", cfg.Database.URL)
}

func TestLoad_UsesXDGDefaultFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "hourlog"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, "hourlog", "config.yaml"),
		[]byte("credentials:\n  backend: static\nserver:\n  addr: \":7000\"\n"), 0o600))

	cfg, err := config.Load(config.Options{Getenv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(config.Options{Path: filepath.Join(t.TempDir(), "nope.yaml"), Getenv: noEnv})
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestLoad_SchemaViolation(t *testing.T) {
	path := writeConfig(t, "server:\n  adress: \":8080\"\n")
	_, err := config.Load(config.Options{Path: path, Getenv: noEnv})
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}

func TestRedacted(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = "postgres://hourlog:s3cret@db:5432/hourlog"
	cfg.Redis.Password = "hunter2"
	cfg.Credentials.StaticUsers = map[string]string{"alice": "wonderland"}

	out := cfg.Redacted()
	assert.NotContains(t, out.Database.URL, "s3cret")
	assert.Contains(t, out.Database.URL, "db:5432")
	assert.Equal(t, "xxxxx", out.Redis.Password)
	assert.Equal(t, "xxxxx", out.Credentials.StaticUsers["alice"])

	assert.Equal(t, "wonderland", cfg.Credentials.StaticUsers["alice"], "original untouched")
	assert.Equal(t, "hunter2", cfg.Redis.Password)
}

func TestLoad_SkipValidate(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := config.Load(config.Options{Getenv: noEnv, SkipValidate: true})
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.URL)
	assert.Error(t, cfg.Validate())
}
