// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

// Package xdg resolves XDG Base Directory paths for hourlog.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "hourlog"

// ConfigDir returns $XDG_CONFIG_HOME/hourlog, falling back to
// ~/.config/hourlog.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_NO_HOME").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
