package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/export"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FileResult is one chunk written for a collection and target.
type FileResult struct {
	Collection string
	Target     domain.Target
	export.ChunkFile
}

// Summary reports what a run produced.
type Summary struct {
	RunID      string
	SourceRows int
	Files      []FileResult
	Published  []string
	Elapsed    time.Duration
}

// ChunkFiles returns the written files in write order.
func (s Summary) ChunkFiles() []export.ChunkFile {
	files := make([]export.ChunkFile, len(s.Files))
	for i, f := range s.Files {
		files[i] = f.ChunkFile
	}
	return files
}

// Runner executes a plan: it resets every target directory, then evaluates
// each collection once and writes it for every target.
type Runner struct {
	fs          afero.Fs
	transformer Transformer
	writer      ChunkWriter
	publisher   Publisher
	now         func() time.Time
	newRunID    func() string
}

type Option func(*Runner)

// WithPublisher uploads the generated files after a successful run.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

func NewRunner(fs afero.Fs, transformer Transformer, writer ChunkWriter, opts ...Option) *Runner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	r := &Runner{
		fs:          fs,
		transformer: transformer,
		writer:      writer,
		now:         time.Now,
		newRunID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loads the source and generates every collection of plan. The first
// error aborts the run; files written before it are left in place.
func (r *Runner) Run(ctx context.Context, plan domain.Plan, source Source) (Summary, error) {
	if err := plan.Validate(); err != nil {
		return Summary{}, err
	}

	summary := Summary{RunID: r.newRunID()}
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"run_id": summary.RunID})
	ctx = logger.WithContext(ctx, log)
	start := r.now()

	// 1. Load the source table, truncated to the configured head.
	table, err := source.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load source: %w", err)
	}
	table = table.Head(plan.Head)
	summary.SourceRows = table.RowCount()
	log.Info().Int("rows", summary.SourceRows).Int("collections", len(plan.Collections)).Msg("run started")

	// 2. Reset the output directory of every target.
	for _, target := range plan.Targets {
		if err := r.resetDir(plan.TargetDir(target)); err != nil {
			return summary, err
		}
	}

	// 3. Evaluate each collection once, then finalize and write it per target.
	for _, spec := range plan.Collections {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		files, err := r.runCollection(ctx, plan, table, spec)
		summary.Files = append(summary.Files, files...)
		if err != nil {
			return summary, err
		}
	}

	// 4. Publish the generated files.
	if r.publisher != nil && len(summary.Files) > 0 {
		uris, err := r.publisher.Publish(ctx, plan.OutputRoot, summary.ChunkFiles())
		summary.Published = uris
		if err != nil {
			return summary, fmt.Errorf("publish: %w", err)
		}
	}

	summary.Elapsed = r.now().Sub(start)
	log.Info().
		Int("files", len(summary.Files)).
		Dur("elapsed", summary.Elapsed).
		Msg("run completed")
	return summary, nil
}

func (r *Runner) runCollection(ctx context.Context, plan domain.Plan, table domain.Table, spec domain.CollectionSpec) ([]FileResult, error) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"collection": spec.Name})
	ctx = logger.WithContext(ctx, log)
	log.Info().Int("rows", table.RowCount()).Msg("generating collection")

	evaluated, err := r.transformer.Evaluate(ctx, table, spec)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", spec.Name, err)
	}

	var results []FileResult
	for _, target := range plan.Targets {
		finalized, err := r.transformer.Finalize(ctx, evaluated, spec, target)
		if err != nil {
			return results, fmt.Errorf("collection %s target %s: %w", spec.Name, target, err)
		}
		files, err := r.writer.Write(ctx, finalized, plan.TargetDir(target), spec.Element, target.Format, plan.ChunkSize)
		for _, f := range files {
			results = append(results, FileResult{Collection: spec.Name, Target: target, ChunkFile: f})
		}
		if err != nil {
			return results, fmt.Errorf("collection %s target %s: write: %w", spec.Name, target, err)
		}
	}
	return results, nil
}

func (r *Runner) resetDir(dir string) error {
	if err := r.fs.RemoveAll(dir); err != nil {
		return &domain.IOError{Op: "remove", Path: dir, Err: err}
	}
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return &domain.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}
