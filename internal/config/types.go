package config

import "github.com/rpattn/txgraph/internal/db"

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config is the decoded configuration document.
type Config struct {
	LogLevel    string             `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	OutputRoot  string             `mapstructure:"output_root" validate:"required"`
	ChunkSize   int                `mapstructure:"chunk_size" validate:"gt=0"`
	Head        int                `mapstructure:"head" validate:"gte=0"`
	Source      SourceConfig       `mapstructure:"source"`
	Targets     []TargetConfig     `mapstructure:"targets" validate:"min=1,dive"`
	Collections []CollectionConfig `mapstructure:"collections" validate:"min=1,dive"`
	Publish     PublishConfig      `mapstructure:"publish"`

	// Database is filled from the database section and DB_* variables.
	Database db.Config `mapstructure:"-"`
}

// SourceConfig selects where the transaction table is read from.
type SourceConfig struct {
	Kind        string            `mapstructure:"kind" validate:"oneof=file postgres"`
	Path        string            `mapstructure:"path" validate:"required_if=Kind file"`
	HeaderRow   *int              `mapstructure:"header_row" validate:"omitempty,gte=0"`
	ColumnTypes map[string]string `mapstructure:"column_types" validate:"dive,field_type"`
	Query       string            `mapstructure:"query" validate:"required_if=Kind postgres"`
}

type TargetConfig struct {
	System string `mapstructure:"system" validate:"required,target_system"`
	Format string `mapstructure:"format" validate:"required,file_format"`
}

// CollectionConfig declares one node or edge collection. Labels and UID
// apply to nodes, From and To to edges.
type CollectionConfig struct {
	Name           string            `mapstructure:"name" validate:"required"`
	Kind           string            `mapstructure:"kind" validate:"required,oneof=node edge"`
	Element        string            `mapstructure:"element"`
	Dedup          string            `mapstructure:"dedup"`
	OnZeroDivision string            `mapstructure:"on_zero_division" validate:"omitempty,oneof=fail null"`
	Operations     []OperationConfig `mapstructure:"operations" validate:"min=1,dive"`

	Labels []string `mapstructure:"labels" validate:"required_if=Kind node"`
	UID    []string `mapstructure:"uid" validate:"required_if=Kind node"`
	From   string   `mapstructure:"from" validate:"required_if=Kind edge"`
	To     string   `mapstructure:"to" validate:"required_if=Kind edge"`
}

// OperationConfig is one column operation. Op accepts a name or a symbol
// (+ - * / _) and defaults to a single column copy.
type OperationConfig struct {
	Op      string   `mapstructure:"op" validate:"operation"`
	Columns []string `mapstructure:"columns" validate:"min=1,dive,required"`
}

// PublishConfig enables uploading the generated files when Bucket is set.
type PublishConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// Enabled reports whether generated files should be uploaded.
func (p PublishConfig) Enabled() bool {
	return p.Bucket != ""
}
