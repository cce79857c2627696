package pipeline

import (
	"context"

	"github.com/rpattn/txgraph/internal/db"
	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/ingestion"
)

// FileSource reads a CSV or XLSX file.
type FileSource struct {
	Loader    *ingestion.Service
	Path      string
	HeaderRow *int
	Overrides map[string]domain.FieldType
}

func (s FileSource) Load(ctx context.Context) (domain.Table, error) {
	return s.Loader.LoadFile(ctx, s.Path, s.HeaderRow, s.Overrides)
}

// QuerySource reads the result of a Postgres query.
type QuerySource struct {
	Querier db.Querier
	Query   string
}

func (s QuerySource) Load(ctx context.Context) (domain.Table, error) {
	return db.LoadTable(ctx, s.Querier, s.Query)
}
