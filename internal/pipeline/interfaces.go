package pipeline

import (
	"context"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/export"
)

// Source provides the transaction table a run starts from.
type Source interface {
	Load(ctx context.Context) (domain.Table, error)
}

// Transformer evaluates a collection once and shapes it per target.
type Transformer interface {
	Evaluate(ctx context.Context, source domain.Table, spec domain.CollectionSpec) (domain.Table, error)
	Finalize(ctx context.Context, evaluated domain.Table, spec domain.CollectionSpec, target domain.Target) (domain.Table, error)
}

// ChunkWriter persists a finalized table as numbered files of at most
// chunkSize rows.
type ChunkWriter interface {
	Write(ctx context.Context, table domain.Table, dir, name string, format domain.FileFormat, chunkSize int) ([]export.ChunkFile, error)
}

// Publisher uploads the files of a successful run.
type Publisher interface {
	Publish(ctx context.Context, root string, files []export.ChunkFile) ([]string, error)
}
