package config

import (
	"fmt"

	"github.com/rpattn/txgraph/internal/domain"
)

// Plan converts the document into typed collection and target specs.
// Every constructor check runs here, so a returned plan is ready to execute.
func (c *Config) Plan() (domain.Plan, error) {
	plan := domain.Plan{
		OutputRoot:  c.OutputRoot,
		ChunkSize:   c.ChunkSize,
		Head:        c.Head,
		Targets:     make([]domain.Target, 0, len(c.Targets)),
		Collections: make([]domain.CollectionSpec, 0, len(c.Collections)),
	}

	for _, t := range c.Targets {
		target, err := domain.NewTarget(t.System, t.Format)
		if err != nil {
			return domain.Plan{}, err
		}
		plan.Targets = append(plan.Targets, target)
	}

	for _, cc := range c.Collections {
		spec, err := cc.spec()
		if err != nil {
			return domain.Plan{}, err
		}
		plan.Collections = append(plan.Collections, spec)
	}

	if err := plan.Validate(); err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

// ColumnOverrides returns the declared source column types.
func (c *Config) ColumnOverrides() (map[string]domain.FieldType, error) {
	if len(c.Source.ColumnTypes) == 0 {
		return nil, nil
	}
	overrides := make(map[string]domain.FieldType, len(c.Source.ColumnTypes))
	for column, value := range c.Source.ColumnTypes {
		fieldType, err := parseFieldType(value)
		if err != nil {
			return nil, domain.NewConfigurationError("", "source", err, "column %q", column)
		}
		overrides[column] = fieldType
	}
	return overrides, nil
}

func (cc CollectionConfig) spec() (domain.CollectionSpec, error) {
	ops := make([]domain.Operation, 0, len(cc.Operations))
	for i, oc := range cc.Operations {
		kind, err := domain.ParseOperationKind(oc.Op)
		if err != nil {
			return domain.CollectionSpec{}, domain.NewConfigurationError(cc.Name, fmt.Sprintf("operations[%d]", i), err, "")
		}
		op, err := domain.NewOperation(kind, oc.Columns...)
		if err != nil {
			return domain.CollectionSpec{}, domain.NewConfigurationError(cc.Name, fmt.Sprintf("operations[%d]", i), err, "")
		}
		ops = append(ops, op)
	}

	opts := domain.CollectionOptions{
		Element:   cc.Element,
		Dedup:     cc.Dedup,
		OnZeroDiv: domain.ZeroDivisionPolicy(cc.OnZeroDivision),
	}
	switch domain.CollectionKind(cc.Kind) {
	case domain.CollectionNode:
		return domain.NewNodeSpec(cc.Name, ops, domain.NodeSpec{Labels: cc.Labels, UID: cc.UID}, opts)
	case domain.CollectionEdge:
		return domain.NewEdgeSpec(cc.Name, ops, domain.EdgeSpec{From: cc.From, To: cc.To}, opts)
	default:
		return domain.CollectionSpec{}, domain.NewConfigurationError(cc.Name, "", domain.ErrUnknownOperation, "collection kind %q", cc.Kind)
	}
}
