package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

// DefaultChunkSize is the maximum number of rows per output file.
const DefaultChunkSize = 500000

// Plan is the static description of one generation run.
type Plan struct {
	OutputRoot  string
	ChunkSize   int
	Head        int
	Targets     []Target
	Collections []CollectionSpec
}

// Validate checks the plan independently of any input table.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.OutputRoot) == "" {
		return NewConfigurationError("", "", errors.New("output root is required"), "")
	}
	if p.ChunkSize <= 0 {
		return NewConfigurationError("", "", ErrInvalidArity, "chunk size must be positive, got %d", p.ChunkSize)
	}
	if len(p.Targets) == 0 {
		return NewConfigurationError("", "", ErrUnknownTarget, "no targets declared")
	}
	seenTargets := make(map[TargetSystem]struct{}, len(p.Targets))
	for _, target := range p.Targets {
		if _, dup := seenTargets[target.System]; dup {
			return NewConfigurationError("", "", ErrUnknownTarget, "target %s declared twice", target.System)
		}
		seenTargets[target.System] = struct{}{}
	}
	seen := make(map[string]struct{}, len(p.Collections))
	for _, collection := range p.Collections {
		if _, dup := seen[collection.Element]; dup {
			return NewConfigurationError(collection.Name, "", errors.New("duplicate element name"), "%q", collection.Element)
		}
		seen[collection.Element] = struct{}{}
	}
	return nil
}

// TargetDir is the directory all files of a target are written into.
func (p Plan) TargetDir(target Target) string {
	return filepath.Join(p.OutputRoot, string(target.System))
}
