// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package status computes the status of the host from its deployments.
package status

import (
	"context"
	"io"

	"github.com/chilts/sid"
	"github.com/pkg/errors"

	"github.com/lirios/bootc-status/internal/config"
	"github.com/lirios/bootc-status/internal/logger"
	"github.com/lirios/bootc-status/internal/render"
	"github.com/lirios/bootc-status/internal/spec"
	"github.com/lirios/bootc-status/internal/sysroot"
)

// Options are the options of a status query
type Options struct {
	// JSON forces the JSON output
	JSON bool

	// Format overrides the output format when set
	Format render.OutputFormat

	// FormatVersion is the requested schema version
	FormatVersion uint32

	// Booted restricts the output to the booted deployment
	Booted bool

	// Verbose adds details to the human readable output
	Verbose bool
}

// OutputFormat returns the format to render with: the explicit format,
// then JSON if requested, then human readable on a terminal and YAML otherwise
func (o Options) OutputFormat(isTerminal bool) render.OutputFormat {
	switch {
	case o.Format != "":
		return o.Format
	case o.JSON:
		return render.FormatJSON
	case isTerminal:
		return render.FormatHumanReadable
	}
	return render.FormatYAML
}

// ApplyConfig fills the options left unset on the command line from cfg,
// changed reports whether a flag was given.
// The configured format is only a default, --json or --format win over it.
func (o *Options) ApplyConfig(cfg *config.Config, changed func(name string) bool) error {
	if !changed("format") && !changed("json") {
		format, err := cfg.OutputFormat()
		if err != nil {
			return err
		}
		o.Format = format
	}
	if !changed("verbose") {
		o.Verbose = cfg.Verbose
	}
	return nil
}

// Source is where the host status is read from
type Source struct {
	// Open acquires the deployment store
	Open sysroot.OpenFunc

	// Probe inspects the running system
	Probe *sysroot.Probe

	// Offline reads the store without checking how the system was booted
	Offline bool
}

// GetHost returns the status of the host
func GetHost(ctx context.Context, src Source) (spec.Host, error) {
	ostreeBooted := src.Offline
	if !ostreeBooted {
		var err error
		if ostreeBooted, err = src.Probe.OstreeBooted(); err != nil {
			return spec.Host{}, err
		}
	}

	if ostreeBooted {
		// Opening may block on the store lock
		if err := ctx.Err(); err != nil {
			return spec.Host{}, err
		}
		handle, err := src.Open(ctx)
		if err != nil {
			return spec.Host{}, errors.Wrap(err, "Failed to open sysroot")
		}
		defer handle.Close()

		_, host, err := GetStatus(handle, src.Probe, handle.BootedDeployment())
		return host, err
	}

	verity, err := src.Probe.ComposefsBooted()
	if err != nil {
		return spec.Host{}, err
	}
	if verity != "" {
		return composefsHost(verity), nil
	}

	return spec.DefaultHost(), nil
}

// composefsHost is the status of a system booted from a composefs image,
// of which only the verity digest is known
func composefsHost(verity string) spec.Host {
	booted := &spec.BootEntry{
		Composefs: &spec.BootEntryComposefs{Verity: verity},
	}
	return AssembleHost(nil, booted, nil, nil, spec.BootOrderDefault, false)
}

// Run queries the status and writes it to out
func Run(ctx context.Context, src Source, opts Options, out io.Writer, isTerminal bool) error {
	queryID := sid.IdBase64()
	logger.Debugf("Status query %s", queryID)
	if err := run(ctx, src, opts, out, isTerminal, queryID); err != nil {
		logger.Debugf("Status query %s failed: %v", queryID, err)
		return errors.Wrap(err, "Status")
	}
	return nil
}

func run(ctx context.Context, src Source, opts Options, out io.Writer, isTerminal bool, queryID string) error {
	// Both 0 and 1 mean the current schema
	switch opts.FormatVersion {
	case 0, 1:
	default:
		return errors.Errorf("Unsupported format version: %d", opts.FormatVersion)
	}

	host, err := GetHost(ctx, src)
	if err != nil {
		return err
	}

	if opts.Booted {
		host.FilterToSlot(spec.SlotBooted)
	}

	format := opts.OutputFormat(isTerminal)
	logger.Debugf("Status query %s: rendering as %s", queryID, format)
	if err := render.Write(out, &host, format, opts.Verbose); err != nil {
		return errors.Wrap(err, "Writing to stdout")
	}

	return nil
}
