// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/hourlog/hourlog/internal/xdg"
)

// DatabaseURLEnv is read when no database URL is configured.
const DatabaseURLEnv = "DATABASE_URL"

// flagKeys maps command-line flag names to config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"metrics-addr":    "metrics.addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"database-url":    "database.url",
	"credentials":     "credentials.backend",
	"sessions":        "sessions.backend",
	"redis-addr":      "redis.addr",
	"reset-ttl":       "reset.ttl",
	"expose-reset":    "reset.expose_code",
	"allowed-origins": "cors.allowed_origins",
}

// RegisterFlags adds the configuration flags to fs. Defaults shown in help
// come from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("addr", d.Server.Addr, "API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	fs.String("credentials", d.Credentials.Backend, "credential store (static or postgres)")
	fs.String("sessions", d.Sessions.Backend, "session store (memory or redis)")
	fs.String("redis-addr", d.Redis.Addr, "redis address for the redis session store")
	fs.Duration("reset-ttl", d.Reset.TTL, "password reset code lifetime")
	fs.Bool("expose-reset", d.Reset.ExposeCode, "return reset codes in HTTP responses (development only)")
	fs.StringSlice("allowed-origins", nil, "CORS origin glob patterns")
}

// Options controls Load.
type Options struct {
	// Path is the YAML file to read. When empty the XDG default is used if
	// it exists.
	Path string
	// Flags holds parsed flags; only flags the user changed are applied.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// SkipValidate returns the merged config even if Validate would fail.
	SkipValidate bool
}

// Load builds and validates the effective configuration.
func Load(opts Options) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	path, err := resolvePath(opts.Path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code(CodeInvalid).With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeInvalid).With("path", path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeInvalid).With("operation", "load flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalid).With("operation", "decode config").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = getenv(DatabaseURLEnv)
	}

	if opts.SkipValidate {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath returns the explicit path, the XDG default when it exists, or
// "" for defaults only.
func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	def, err := xdg.ConfigFile()
	if err != nil {
		// No home directory: run on defaults.
		return "", nil //nolint:nilerr // absence of a default file is not an error
	}
	if _, err := os.Stat(def); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("CONFIG_READ_FAILED").With("path", def).Wrap(err)
	}
	return def, nil
}
