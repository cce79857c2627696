package main

import (
	"errors"

	"github.com/rpattn/txgraph/internal/logger"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration against the source columns without writing files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			plan, err := cfg.Plan()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			source, closeSource, err := openSource(ctx, cfg, afero.NewOsFs())
			if err != nil {
				return err
			}
			defer closeSource()

			table, err := source.Load(ctx)
			if err != nil {
				return err
			}

			var errs []error
			for _, spec := range plan.Collections {
				errs = append(errs, spec.Validate(table.Headers))
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}

			log := logger.FromContext(ctx)
			log.Info().
				Int("collections", len(plan.Collections)).
				Int("targets", len(plan.Targets)).
				Int("source_rows", table.RowCount()).
				Msg("configuration is valid")
			return nil
		},
	}
}
