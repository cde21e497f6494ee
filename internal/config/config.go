// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package config loads hourlog settings from defaults, an optional YAML file,
// command-line flags and the DATABASE_URL environment variable, in that order
// of increasing precedence for everything but the database URL, which the
// environment only fills when nothing else set it.
package config

import (
	"net/url"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/logging"
)

// Backend names.
const (
	CredentialsStatic   = "static"
	CredentialsPostgres = "postgres"
	SessionsMemory      = "memory"
	SessionsRedis       = "redis"
)

// CodeInvalid marks a configuration that failed validation.
const CodeInvalid = "CONFIG_INVALID"

// Config is the complete hourlog configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server" yaml:"server"`
	Metrics     MetricsConfig     `koanf:"metrics" yaml:"metrics"`
	Log         LogConfig         `koanf:"log" yaml:"log"`
	Database    DatabaseConfig    `koanf:"database" yaml:"database"`
	Credentials CredentialsConfig `koanf:"credentials" yaml:"credentials"`
	Sessions    SessionsConfig    `koanf:"sessions" yaml:"sessions"`
	Redis       RedisConfig       `koanf:"redis" yaml:"redis"`
	Reset       ResetConfig       `koanf:"reset" yaml:"reset"`
	CORS        CORSConfig        `koanf:"cors" yaml:"cors"`
}

// ServerConfig configures the API listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr" jsonschema:"description=API listen address (host:port)"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" jsonschema:"type=string,description=Grace period for in-flight requests on shutdown"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" yaml:"max_body_bytes" jsonschema:"minimum=1"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL            string `koanf:"url" yaml:"url"`
	ConnectRetries uint64 `koanf:"connect_retries" yaml:"connect_retries"`
}

// CredentialsConfig selects the credential store. StaticUsers maps usernames
// to plaintext passwords and seeds the static backend at startup.
type CredentialsConfig struct {
	Backend     string            `koanf:"backend" yaml:"backend" jsonschema:"enum=static,enum=postgres"`
	StaticUsers map[string]string `koanf:"static_users" yaml:"static_users,omitempty"`
}

// SessionsConfig selects where sessions and reset codes live.
type SessionsConfig struct {
	Backend string `koanf:"backend" yaml:"backend" jsonschema:"enum=memory,enum=redis"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr      string `koanf:"addr" yaml:"addr"`
	Password  string `koanf:"password" yaml:"password,omitempty"`
	DB        int    `koanf:"db" yaml:"db" jsonschema:"minimum=0"`
	KeyPrefix string `koanf:"key_prefix" yaml:"key_prefix"`
}

// ResetConfig configures password reset codes.
type ResetConfig struct {
	TTL time.Duration `koanf:"ttl" yaml:"ttl" jsonschema:"type=string,description=Lifetime of a reset code"`
	// ExposeCode returns the code in the HTTP response. Development only.
	ExposeCode bool `koanf:"expose_code" yaml:"expose_code"`
}

// CORSConfig lists allowed browser origins as glob patterns.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:3000",
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: logging.FormatJSON, Level: "info"},
		Database: DatabaseConfig{
			ConnectRetries: 5,
		},
		Credentials: CredentialsConfig{Backend: CredentialsPostgres},
		Sessions:    SessionsConfig{Backend: SessionsMemory},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "hourlog:",
		},
		Reset: ResetConfig{TTL: auth.DefaultResetTTL},
	}
}

// Validate checks enums, ranges and cross-field requirements.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code(CodeInvalid).With("field", field).Errorf(format, args...)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr", "server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "server.shutdown_timeout must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return invalid("server.max_body_bytes", "server.max_body_bytes must be positive")
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	switch c.Credentials.Backend {
	case CredentialsStatic:
	case CredentialsPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "database.url (or DATABASE_URL) is required for the postgres credential backend")
		}
	default:
		return invalid("credentials.backend", "credentials.backend must be 'static' or 'postgres', got %q", c.Credentials.Backend)
	}

	switch c.Sessions.Backend {
	case SessionsMemory:
	case SessionsRedis:
		if c.Redis.Addr == "" {
			return invalid("redis.addr", "redis.addr is required for the redis session backend")
		}
	default:
		return invalid("sessions.backend", "sessions.backend must be 'memory' or 'redis', got %q", c.Sessions.Backend)
	}

	if c.Reset.TTL <= 0 {
		return invalid("reset.ttl", "reset.ttl must be positive")
	}
	for _, pattern := range c.CORS.AllowedOrigins {
		if _, err := glob.Compile(pattern); err != nil {
			return oops.Code(CodeInvalid).With("field", "cors.allowed_origins").With("pattern", pattern).Wrap(err)
		}
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.URL != "" {
		if u, err := url.Parse(out.Database.URL); err == nil {
			out.Database.URL = u.Redacted()
		} else {
			out.Database.URL = "xxxxx"
		}
	}
	if out.Redis.Password != "" {
		out.Redis.Password = "xxxxx"
	}
	if len(out.Credentials.StaticUsers) > 0 {
		users := make(map[string]string, len(out.Credentials.StaticUsers))
		for name := range out.Credentials.StaticUsers {
			users[name] = "xxxxx"
		}
		out.Credentials.StaticUsers = users
	}
	out.CORS.AllowedOrigins = append([]string(nil), c.CORS.AllowedOrigins...)
	return &out
}
