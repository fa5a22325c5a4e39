// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lirios/bootc-status/internal/render"
)

func TestLoadDefaults(t *testing.T) {
	config, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, &Config{Sysroot: "/"}, config)

	format, err := config.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, render.OutputFormat(""), format)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultPath, []byte("sysroot: /mnt/sysroot\nformat: human\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/tmp/custom.conf", []byte("verbose: true\nformat: json\n"), 0644))

	config, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/sysroot", config.Sysroot)
	assert.False(t, config.Verbose)
	format, err := config.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, render.FormatHumanReadable, format)

	config, err = Load(fs, "/tmp/custom.conf")
	require.NoError(t, err)
	assert.Equal(t, "/", config.Sysroot)
	assert.True(t, config.Verbose)
	assert.Equal(t, "json", config.Format)
}

func TestLoadEnvironment(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultPath, []byte("sysroot: /mnt/sysroot\n"), 0644))
	t.Setenv("BOOTC_STATUS_SYSROOT", "/sysroot")
	t.Setenv("BOOTC_STATUS_FORMAT", "yaml")

	config, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "/sysroot", config.Sysroot)
	assert.Equal(t, "yaml", config.Format)
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	// A file that was asked for must exist
	_, err := Load(fs, "/nonexistent.yaml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("sysroot: [\n"), 0644))
	_, err = Load(fs, "/bad.yaml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/format.yaml", []byte("format: toml\n"), 0644))
	_, err = Load(fs, "/format.yaml")
	assert.Error(t, err)
}
