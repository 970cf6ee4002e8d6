package main

import (
	"time"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	config   string
	baseURL  string
	ptb      bool
	apiKey   string
	output   string
	logLevel string
	logFile  string
	timeout  time.Duration
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "xpipe-client",
		Short:         "Command line client for the XPipe daemon API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.baseURL, "base-url", "", "Daemon API address")
	pf.BoolVar(&flags.ptb, "ptb", false, "Target the public test build daemon")
	pf.StringVar(&flags.apiKey, "api-key", "", "API key (\"-\" prompts for it)")
	pf.StringVarP(&flags.output, "output", "o", "", "Output format: auto, table, json, yaml")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFile, "log-file", "", "Also write logs to this file")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Per-request timeout (e.g. 30s)")

	rootCmd.AddCommand(newVersionCommand(ctx))
	rootCmd.AddCommand(newConnectionsCommand(ctx))
	rootCmd.AddCommand(newConnectionCommand(ctx))
	rootCmd.AddCommand(newShellCommand(ctx))
	rootCmd.AddCommand(newFsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
