// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config reads the settings of the status command.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lirios/bootc-status/internal/render"
)

const (
	// DefaultPath is read when no configuration file is given
	DefaultPath = "/etc/bootc-status/config.yaml"

	envPrefix = "BOOTC_STATUS"
)

// Config represents the configuration file
type Config struct {
	// Sysroot is the root of the deployment store
	Sysroot string `mapstructure:"sysroot"`

	// Verbose enables debug messages and details
	Verbose bool `mapstructure:"verbose"`

	// Format is the output format, empty to pick one from the terminal
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sysroot", "/")
	v.SetDefault("verbose", false)
	v.SetDefault("format", "")
}

// Load reads the configuration at path from fs, environment variables
// with the BOOTC_STATUS_ prefix override it.
// An empty path reads DefaultPath, which may be missing.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	optional := path == ""
	if optional {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if !optional || !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "Cannot open configuration file %s", path)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "Cannot decode configuration")
	}

	if _, err := config.OutputFormat(); err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}

	return &config, nil
}

// OutputFormat returns the configured output format, empty when unset
func (c *Config) OutputFormat() (render.OutputFormat, error) {
	if c.Format == "" {
		return "", nil
	}
	return render.ParseOutputFormat(c.Format)
}
