package domain

import (
	"fmt"
	"strings"
)

// TargetSystem names the graph database convention the files are produced for.
type TargetSystem string

const (
	// TargetRedis is the key-value style system; nodes are keyed by "id" and
	// edge relations carry the collection element name.
	TargetRedis TargetSystem = "redis"
	// TargetArango is the document system; nodes are keyed by "_key" and edge
	// endpoints are prefixed with their collection name.
	TargetArango TargetSystem = "arango_db"
)

// FileFormat is the serialization used for chunk files.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatJSON FileFormat = "json"
)

// Edge column names shared by both systems.
const (
	EdgeFromColumn     = "_from"
	EdgeToColumn       = "_to"
	EdgeRelationColumn = "relation"
)

// Target pairs a destination system with an output format.
type Target struct {
	System TargetSystem `json:"system"`
	Format FileFormat   `json:"format"`
}

// NewTarget validates system and format names.
func NewTarget(system, format string) (Target, error) {
	t := Target{
		System: TargetSystem(strings.TrimSpace(system)),
		Format: FileFormat(strings.ToLower(strings.TrimSpace(format))),
	}
	switch t.System {
	case TargetRedis, TargetArango:
	default:
		return Target{}, NewConfigurationError("", "", ErrUnknownTarget, "system %q", system)
	}
	switch t.Format {
	case FormatCSV, FormatJSON:
	default:
		return Target{}, NewConfigurationError("", "", ErrUnknownTarget, "format %q", format)
	}
	return t, nil
}

// UIDColumn returns the node identifier column expected by the system.
func (t Target) UIDColumn() string {
	if t.System == TargetArango {
		return "_key"
	}
	return "id"
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.System, t.Format)
}
