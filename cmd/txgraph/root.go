package main

import (
	"github.com/rpattn/txgraph/internal/config"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "txgraph",
		Short:         "Generate graph database bulk-load files from a transaction log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", ".", "config directory or file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newGenerateCommand(opts),
		newValidateCommand(opts),
		newRecordsCommand(opts),
	)
	return cmd
}

// loadConfig reads the configuration and applies the log level to the
// logger carried by the command context.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	o.applyLogLevel(cmd, level)
	return cfg, nil
}

func (o *rootOptions) applyLogLevel(cmd *cobra.Command, level string) {
	ctx := cmd.Context()
	log := logger.WithLevel(logger.FromContext(ctx), level)
	cmd.SetContext(logger.WithContext(ctx, log))
}
