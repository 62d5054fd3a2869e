package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxkit/voxkit/internal/logging"
)

// commandContext carries the flags and logger shared by subcommands.
type commandContext struct {
	logLevel  string
	logFormat string

	logger *slog.Logger
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		log, err := logging.New(os.Stderr, logging.Options{Level: c.logLevel, Format: c.logFormat})
		if err != nil {
			log = logging.NewNop()
		}
		c.logger = log
	}
	return c.logger
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "voxkit",
		Short:         "Dataset tooling for layered scientific-imaging data",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "console", "Log format (console, json)")

	rootCmd.AddCommand(newVerifyCommand(ctx))

	return rootCmd
}
