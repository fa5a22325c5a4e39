// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render writes the host document in the supported output formats.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/lirios/bootc-status/internal/spec"
)

// OutputFormat is the format the host document is written in
type OutputFormat string

const (
	// FormatJSON writes a JSON document
	FormatJSON OutputFormat = "json"

	// FormatYAML writes a YAML document
	FormatYAML OutputFormat = "yaml"

	// FormatHumanReadable writes a summary meant to be read in a terminal
	FormatHumanReadable OutputFormat = "humanreadable"
)

var _ pflag.Value = (*OutputFormat)(nil)

// ParseOutputFormat parses the name of a format
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml":
		return FormatYAML, nil
	case "human", "humanreadable", "human-readable":
		return FormatHumanReadable, nil
	}
	return "", fmt.Errorf("invalid output format %q, expected one of json, yaml or human", s)
}

func (f OutputFormat) String() string {
	return string(f)
}

// Set implements pflag.Value
func (f *OutputFormat) Set(s string) error {
	format, err := ParseOutputFormat(s)
	if err != nil {
		return err
	}
	*f = format
	return nil
}

// Type implements pflag.Value
func (f *OutputFormat) Type() string {
	return "format"
}

// Write renders host to w in the requested format
func Write(w io.Writer, host *spec.Host, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return JSON(w, host)
	case FormatYAML:
		return YAML(w, host)
	case FormatHumanReadable:
		return HumanReadable(w, host, verbose)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// JSON writes host as a single line JSON document
func JSON(w io.Writer, host *spec.Host) error {
	if err := json.NewEncoder(w).Encode(host); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// YAML writes host as a YAML document
func YAML(w io.Writer, host *spec.Host) error {
	data, err := yaml.Marshal(host)
	if err != nil {
		return errors.Wrap(err, "failed to encode YAML")
	}
	_, err = w.Write(data)
	return err
}
