package domain

import (
	"errors"
	"fmt"
	"strings"
)

type CollectionKind string

const (
	CollectionNode CollectionKind = "node"
	CollectionEdge CollectionKind = "edge"
)

// ZeroDivisionPolicy decides what a quotient does with a zero denominator.
type ZeroDivisionPolicy string

const (
	// ZeroDivisionFail aborts the run with a DataError.
	ZeroDivisionFail ZeroDivisionPolicy = "fail"
	// ZeroDivisionNull leaves the cell empty.
	ZeroDivisionNull ZeroDivisionPolicy = "null"
)

// CollectionSpec declares how one collection is derived from the source table.
// Exactly one of Node and Edge is set, matching Kind.
type CollectionSpec struct {
	Name       string             `json:"name"`
	Element    string             `json:"element"`
	Kind       CollectionKind     `json:"kind"`
	Dedup      string             `json:"dedup,omitempty"`
	Operations []Operation        `json:"operations"`
	OnZeroDiv  ZeroDivisionPolicy `json:"onZeroDivision,omitempty"`

	Node *NodeSpec `json:"node,omitempty"`
	Edge *EdgeSpec `json:"edge,omitempty"`
}

// NodeSpec names the output columns of a node collection and the labels the uid is built from.
type NodeSpec struct {
	Labels []string `json:"labels"`
	UID    []string `json:"uid"`
}

// EdgeSpec names the collections the edge endpoints live in.
type EdgeSpec struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CollectionOptions carries the settings shared by node and edge collections.
type CollectionOptions struct {
	// Element is the graph element name; defaults to the collection name.
	Element   string
	Dedup     string
	OnZeroDiv ZeroDivisionPolicy
}

// NewNodeSpec builds and validates a node collection.
func NewNodeSpec(name string, ops []Operation, node NodeSpec, opts CollectionOptions) (CollectionSpec, error) {
	spec, err := newCollection(name, CollectionNode, ops, opts)
	if err != nil {
		return CollectionSpec{}, err
	}
	if len(node.Labels) != len(ops) {
		return CollectionSpec{}, NewConfigurationError(name, "", ErrInvalidArity,
			"%d labels declared for %d operations", len(node.Labels), len(ops))
	}
	seen := make(map[string]struct{}, len(node.Labels))
	for _, label := range node.Labels {
		if strings.TrimSpace(label) == "" {
			return CollectionSpec{}, NewConfigurationError(name, "", ErrUnknownColumn, "blank label")
		}
		if _, dup := seen[label]; dup {
			return CollectionSpec{}, NewConfigurationError(name, "", ErrUnknownColumn, "duplicate label %q", label)
		}
		seen[label] = struct{}{}
	}
	if len(node.UID) == 0 {
		return CollectionSpec{}, NewConfigurationError(name, "", ErrEmptyUID, "no uid columns declared")
	}
	for _, uid := range node.UID {
		if _, ok := seen[uid]; !ok {
			return CollectionSpec{}, NewConfigurationError(name, "", ErrUnknownColumn, "uid column %q is not a label", uid)
		}
	}
	spec.Node = &NodeSpec{
		Labels: append([]string(nil), node.Labels...),
		UID:    append([]string(nil), node.UID...),
	}
	return spec, nil
}

// NewEdgeSpec builds and validates an edge collection. The first two
// operations evaluate the endpoints; an optional third evaluates the relation.
func NewEdgeSpec(name string, ops []Operation, edge EdgeSpec, opts CollectionOptions) (CollectionSpec, error) {
	spec, err := newCollection(name, CollectionEdge, ops, opts)
	if err != nil {
		return CollectionSpec{}, err
	}
	if len(ops) < 2 || len(ops) > 3 {
		return CollectionSpec{}, NewConfigurationError(name, "", ErrInvalidArity,
			"edge collections take 2 or 3 operations, got %d", len(ops))
	}
	if strings.TrimSpace(edge.From) == "" || strings.TrimSpace(edge.To) == "" {
		return CollectionSpec{}, NewConfigurationError(name, "", ErrUnknownColumn, "edge requires from and to collections")
	}
	spec.Edge = &EdgeSpec{From: strings.TrimSpace(edge.From), To: strings.TrimSpace(edge.To)}
	return spec, nil
}

func newCollection(name string, kind CollectionKind, ops []Operation, opts CollectionOptions) (CollectionSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CollectionSpec{}, NewConfigurationError("", "", errors.New("collection name is required"), "")
	}
	if len(ops) == 0 {
		return CollectionSpec{}, NewConfigurationError(name, "", ErrInvalidArity, "no operations declared")
	}
	element := strings.TrimSpace(opts.Element)
	if element == "" {
		element = name
	}
	policy := opts.OnZeroDiv
	switch policy {
	case "":
		policy = ZeroDivisionFail
	case ZeroDivisionFail, ZeroDivisionNull:
	default:
		return CollectionSpec{}, NewConfigurationError(name, "", ErrUnknownOperation, "zero division policy %q", policy)
	}
	return CollectionSpec{
		Name:       name,
		Element:    element,
		Kind:       kind,
		Dedup:      strings.TrimSpace(opts.Dedup),
		Operations: append([]Operation(nil), ops...),
		OnZeroDiv:  policy,
	}, nil
}

// Validate checks every referenced source column against the table headers.
func (c CollectionSpec) Validate(headers []string) error {
	known := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		known[header] = struct{}{}
	}
	if c.Dedup != "" {
		if _, ok := known[c.Dedup]; !ok {
			return NewConfigurationError(c.Name, "dedup", ErrUnknownColumn, "%q", c.Dedup)
		}
	}
	for _, op := range c.Operations {
		for _, column := range op.Columns {
			if _, ok := known[column]; !ok {
				return NewConfigurationError(c.Name, op.String(), ErrUnknownColumn, "%q", column)
			}
		}
	}
	switch c.Kind {
	case CollectionNode:
		if c.Node == nil {
			return NewConfigurationError(c.Name, "", ErrUnknownOperation, "node collection without node settings")
		}
	case CollectionEdge:
		if c.Edge == nil {
			return NewConfigurationError(c.Name, "", ErrUnknownOperation, "edge collection without edge settings")
		}
	default:
		return NewConfigurationError(c.Name, "", ErrUnknownOperation, "collection kind %q", c.Kind)
	}
	return nil
}

// OutputColumns returns the names of the evaluated columns before finalization.
func (c CollectionSpec) OutputColumns() []string {
	if c.Kind == CollectionNode && c.Node != nil {
		return append([]string(nil), c.Node.Labels...)
	}
	columns := []string{EdgeFromColumn, EdgeToColumn, EdgeRelationColumn}
	return columns[:len(c.Operations)]
}

func (c CollectionSpec) String() string {
	return fmt.Sprintf("%s %s (%s)", c.Kind, c.Name, c.Element)
}
