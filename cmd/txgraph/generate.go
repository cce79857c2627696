package main

import (
	"context"
	"fmt"

	"github.com/rpattn/txgraph/internal/config"
	"github.com/rpattn/txgraph/internal/db"
	"github.com/rpattn/txgraph/internal/export"
	"github.com/rpattn/txgraph/internal/ingestion"
	"github.com/rpattn/txgraph/internal/logger"
	"github.com/rpattn/txgraph/internal/pipeline"
	"github.com/rpattn/txgraph/internal/publish"
	"github.com/rpattn/txgraph/internal/transformations"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newGenerateCommand(root *rootOptions) *cobra.Command {
	var head int
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Transform the source table into chunked node and edge files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("head") {
				cfg.Head = head
			}
			return generate(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&head, "head", 0, "only use the first N source rows (0 reads everything)")
	return cmd
}

func generate(ctx context.Context, cfg *config.Config) error {
	plan, err := cfg.Plan()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	source, closeSource, err := openSource(ctx, cfg, fs)
	if err != nil {
		return err
	}
	defer closeSource()

	var opts []pipeline.Option
	if cfg.Publish.Enabled() {
		uploader, err := publish.NewGCSUploader(ctx)
		if err != nil {
			return err
		}
		defer uploader.Close()
		opts = append(opts, pipeline.WithPublisher(publish.NewPublisher(uploader, fs, cfg.Publish.Bucket, cfg.Publish.Prefix)))
	}

	runner := pipeline.NewRunner(fs,
		transformations.NewExecutor(),
		export.NewChunkWriter(fs),
		opts...,
	)
	summary, err := runner.Run(ctx, plan, source)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", summary.RunID).
		Int("source_rows", summary.SourceRows).
		Int("files", len(summary.Files)).
		Int("published", len(summary.Published)).
		Dur("elapsed", summary.Elapsed).
		Msg("generation finished")
	return nil
}

// openSource returns the configured source and a function releasing it.
func openSource(ctx context.Context, cfg *config.Config, fs afero.Fs) (pipeline.Source, func(), error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return pipeline.QuerySource{Querier: conn.Pool, Query: cfg.Source.Query}, conn.Close, nil
	case config.SourceFile, "":
		overrides, err := cfg.ColumnOverrides()
		if err != nil {
			return nil, nil, err
		}
		return pipeline.FileSource{
			Loader:    ingestion.NewService(fs),
			Path:      cfg.Source.Path,
			HeaderRow: cfg.Source.HeaderRow,
			Overrides: overrides,
		}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
