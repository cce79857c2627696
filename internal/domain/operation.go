package domain

import (
	"fmt"
	"strings"
)

type OperationKind string

const (
	OperationColumn     OperationKind = "column"
	OperationSum        OperationKind = "sum"
	OperationDifference OperationKind = "difference"
	OperationProduct    OperationKind = "product"
	OperationQuotient   OperationKind = "quotient"
	OperationConcat     OperationKind = "concat"
)

var operationAliases = map[string]OperationKind{
	"":           OperationColumn,
	"column":     OperationColumn,
	"sum":        OperationSum,
	"+":          OperationSum,
	"difference": OperationDifference,
	"-":          OperationDifference,
	"product":    OperationProduct,
	"*":          OperationProduct,
	"quotient":   OperationQuotient,
	"/":          OperationQuotient,
	"concat":     OperationConcat,
	"_":          OperationConcat,
}

// ParseOperationKind accepts an operation name or its symbol (+ - * / _).
// An empty tag means a single-column pass-through.
func ParseOperationKind(tag string) (OperationKind, error) {
	kind, ok := operationAliases[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, tag)
	}
	return kind, nil
}

// IsArithmetic reports whether the kind evaluates to a decimal.
func (k OperationKind) IsArithmetic() bool {
	switch k {
	case OperationSum, OperationDifference, OperationProduct, OperationQuotient:
		return true
	}
	return false
}

// Operation is one output column expressed over named source columns.
type Operation struct {
	Kind    OperationKind `json:"kind"`
	Columns []string      `json:"columns"`
}

// NewOperation validates the operand count for kind.
func NewOperation(kind OperationKind, columns ...string) (Operation, error) {
	op := Operation{Kind: kind, Columns: append([]string(nil), columns...)}
	for _, column := range op.Columns {
		if strings.TrimSpace(column) == "" {
			return Operation{}, fmt.Errorf("%w: %s has a blank column name", ErrInvalidArity, kind)
		}
	}
	n := len(op.Columns)
	switch kind {
	case OperationColumn:
		if n != 1 {
			return Operation{}, fmt.Errorf("%w: column takes exactly 1 column, got %d", ErrInvalidArity, n)
		}
	case OperationDifference, OperationProduct, OperationQuotient:
		if n != 2 {
			return Operation{}, fmt.Errorf("%w: %s takes exactly 2 columns, got %d", ErrInvalidArity, kind, n)
		}
	case OperationSum:
		if n < 2 {
			return Operation{}, fmt.Errorf("%w: sum takes at least 2 columns, got %d", ErrInvalidArity, n)
		}
	case OperationConcat:
		if n < 1 {
			return Operation{}, fmt.Errorf("%w: concat takes at least 1 column", ErrInvalidArity)
		}
	default:
		return Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}
	return op, nil
}

// MustOperation is NewOperation for statically known declarations.
func MustOperation(kind OperationKind, columns ...string) Operation {
	op, err := NewOperation(kind, columns...)
	if err != nil {
		panic(err)
	}
	return op
}

// String renders the operation the way it appears in logs and errors.
func (o Operation) String() string {
	return fmt.Sprintf("%s(%s)", o.Kind, strings.Join(o.Columns, ","))
}
