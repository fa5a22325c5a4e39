// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmd

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lirios/bootc-status/internal/config"
	"github.com/lirios/bootc-status/internal/logger"
	"github.com/lirios/bootc-status/internal/ostree"
	"github.com/lirios/bootc-status/internal/status"
	"github.com/lirios/bootc-status/internal/sysroot"
	"github.com/lirios/bootc-status/internal/sysroot/fixture"
)

// Status command
func statusCmd() *cobra.Command {
	var (
		configPath  string
		sysrootPath string
		fixturePath string
		opts        status.Options
	)

	var cmd = &cobra.Command{
		Use:   "status",
		Short: "Display the status of the host",
		Long: "Shows the container images the host is booted from, will boot next " +
			"and can roll back to.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Read the configuration file
			cfg, err := config.Load(afero.NewOsFs(), configPath)
			if err != nil {
				return err
			}

			// Command line flags win over the configuration
			flags := cmd.Flags()
			if !flags.Changed("sysroot") {
				sysrootPath = cfg.Sysroot
			}
			if err := opts.ApplyConfig(cfg, flags.Changed); err != nil {
				return err
			}

			// Toggle debug output
			logger.SetVerbose(opts.Verbose)

			src := status.Source{
				Open:  ostree.Opener(sysrootPath),
				Probe: sysroot.HostProbe(),
			}
			if fixturePath != "" {
				logger.Debugf("Reading deployments from %s", fixturePath)
				src.Open = fixture.Opener(fixturePath)
				src.Offline = true
			}

			out := cmd.OutOrStdout()
			isTerminal := false
			if f, ok := out.(*os.File); ok {
				isTerminal = term.IsTerminal(int(f.Fd()))
			}

			return status.Run(cmd.Context(), src, opts, out, isTerminal)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultPath+")")
	cmd.Flags().StringVarP(&sysrootPath, "sysroot", "", "/", "path to the sysroot")
	cmd.Flags().StringVarP(&fixturePath, "sysroot-fixture", "", "", "read deployments from a YAML description")
	cmd.Flags().BoolVarP(&opts.JSON, "json", "", false, "output in JSON format")
	cmd.Flags().VarP(&opts.Format, "format", "", "output format: json, yaml or human")
	cmd.Flags().Uint32VarP(&opts.FormatVersion, "format-version", "", 0, "version of the output format")
	cmd.Flags().BoolVarP(&opts.Booted, "booted", "", false, "only display the booted deployment")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "more details and messages")
	_ = cmd.Flags().MarkHidden("sysroot-fixture")

	return cmd
}

func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:           "bootc-status",
		Short:         "Report the deployments of a bootc host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		statusCmd(),
	)

	return cmd
}

// Execute executes the root command.
func Execute() error {
	return rootCmd().ExecuteContext(context.Background())
}
