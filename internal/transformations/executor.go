package transformations

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// quotientPrecision is the number of fractional digits kept by a quotient.
const quotientPrecision = 16

const uidSeparator = "_"

// Executor turns a source table into collection tables.
type Executor struct {
	now func() time.Time
}

// NewExecutor constructs a record transformer.
func NewExecutor() *Executor {
	return &Executor{now: time.Now}
}

// Transform evaluates spec against source and finalizes the result for target.
func (e *Executor) Transform(ctx context.Context, source domain.Table, spec domain.CollectionSpec, target domain.Target) (domain.Table, error) {
	evaluated, err := e.Evaluate(ctx, source, spec)
	if err != nil {
		return domain.Table{}, err
	}
	return e.Finalize(ctx, evaluated, spec, target)
}

// Evaluate deduplicates source when the collection declares a dedup column and
// evaluates every operation in order. The result is independent of the target
// and can be finalized for several targets.
func (e *Executor) Evaluate(ctx context.Context, source domain.Table, spec domain.CollectionSpec) (domain.Table, error) {
	log := logger.FromContext(ctx).With().Str("collection", spec.Name).Logger()

	if err := spec.Validate(source.Headers); err != nil {
		return domain.Table{}, err
	}

	working := source
	if spec.Dedup != "" {
		start := e.now()
		deduped, err := source.DropDuplicates(spec.Dedup)
		if err != nil {
			return domain.Table{}, domain.NewConfigurationError(spec.Name, "dedup", err, "")
		}
		working = deduped
		logPhase(log, "drop duplicates", e.now().Sub(start), working.RowCount())
	}

	start := e.now()
	out := domain.Table{
		Headers: spec.OutputColumns(),
		Types:   make([]domain.FieldType, len(spec.Operations)),
		Rows:    make([][]any, working.RowCount()),
	}
	for i := range out.Rows {
		out.Rows[i] = make([]any, len(spec.Operations))
	}

	for opIdx, op := range spec.Operations {
		indices := make([]int, len(op.Columns))
		for i, column := range op.Columns {
			indices[i] = working.ColumnIndex(column)
		}
		out.Types[opIdx] = resultType(working, op, indices)

		for rowIdx, row := range working.Rows {
			value, err := evaluateOperation(op, row, indices, spec.OnZeroDiv)
			if err != nil {
				return domain.Table{}, &domain.DataError{
					Collection: spec.Name,
					Operation:  op.String(),
					Row:        rowIdx,
					Err:        err,
				}
			}
			out.Rows[rowIdx][opIdx] = value
		}
	}
	logPhase(log, "column operations", e.now().Sub(start), out.RowCount())

	return out, nil
}

// Finalize shapes an evaluated collection for target: node tables gain a
// leading uid column, edge tables get endpoint prefixes or a fixed relation.
// The evaluated table is left untouched.
func (e *Executor) Finalize(ctx context.Context, evaluated domain.Table, spec domain.CollectionSpec, target domain.Target) (domain.Table, error) {
	log := logger.FromContext(ctx).With().
		Str("collection", spec.Name).
		Str("target", string(target.System)).
		Logger()

	start := e.now()
	var (
		out domain.Table
		err error
	)
	switch spec.Kind {
	case domain.CollectionEdge:
		out, err = finalizeEdges(evaluated, spec, target)
	case domain.CollectionNode:
		out, err = finalizeNodes(evaluated, spec, target)
	default:
		err = domain.NewConfigurationError(spec.Name, "", domain.ErrUnknownOperation, "collection kind %q", spec.Kind)
	}
	if err != nil {
		return domain.Table{}, err
	}
	logPhase(log, "finalize", e.now().Sub(start), out.RowCount())
	return out, nil
}

func finalizeEdges(evaluated domain.Table, spec domain.CollectionSpec, target domain.Target) (domain.Table, error) {
	if spec.Edge == nil {
		return domain.Table{}, domain.NewConfigurationError(spec.Name, "", domain.ErrUnknownOperation, "edge collection without edge settings")
	}

	headers := append([]string(nil), evaluated.Headers...)
	types := append([]domain.FieldType(nil), evaluated.Types...)
	addRelation := target.System == domain.TargetRedis && len(headers) < 3
	if addRelation {
		headers = append(headers, domain.EdgeRelationColumn)
		types = append(types, domain.FieldTypeString)
	}

	rows := make([][]any, len(evaluated.Rows))
	for i, source := range evaluated.Rows {
		row := make([]any, len(headers))
		copy(row, source)
		switch target.System {
		case domain.TargetArango:
			row[0] = prefixed(spec.Edge.From, row[0])
			row[1] = prefixed(spec.Edge.To, row[1])
		case domain.TargetRedis:
			row[2] = spec.Element
		}
		rows[i] = row
	}

	switch target.System {
	case domain.TargetArango:
		types[0], types[1] = domain.FieldTypeString, domain.FieldTypeString
	case domain.TargetRedis:
		types[2] = domain.FieldTypeString
	}
	return domain.Table{Headers: headers, Types: types, Rows: rows}, nil
}

func prefixed(collection string, value any) any {
	if value == nil {
		return nil
	}
	return collection + "/" + domain.FormatValue(value)
}

func finalizeNodes(evaluated domain.Table, spec domain.CollectionSpec, target domain.Target) (domain.Table, error) {
	if spec.Node == nil {
		return domain.Table{}, domain.NewConfigurationError(spec.Name, "", domain.ErrUnknownOperation, "node collection without node settings")
	}

	uidColumn := target.UIDColumn()
	uidIndices := make([]int, len(spec.Node.UID))
	for i, label := range spec.Node.UID {
		uidIndices[i] = evaluated.ColumnIndex(label)
		if uidIndices[i] < 0 {
			return domain.Table{}, domain.NewConfigurationError(spec.Name, "uid", domain.ErrUnknownColumn, "%q", label)
		}
	}

	// A label named like the uid column is replaced by the generated uid.
	keep := make([]int, 0, len(evaluated.Headers))
	headers := []string{uidColumn}
	types := []domain.FieldType{domain.FieldTypeString}
	for idx, header := range evaluated.Headers {
		if header == uidColumn {
			continue
		}
		keep = append(keep, idx)
		headers = append(headers, header)
		types = append(types, evaluated.TypeOf(idx))
	}

	rows := make([][]any, len(evaluated.Rows))
	parts := make([]string, len(uidIndices))
	for rowIdx, source := range evaluated.Rows {
		for i, idx := range uidIndices {
			part := domain.FormatValue(source[idx])
			if part == "" {
				return domain.Table{}, &domain.DataError{
					Collection: spec.Name,
					Operation:  "uid",
					Row:        rowIdx,
					Err:        fmt.Errorf("%w: %s", domain.ErrEmptyUID, spec.Node.UID[i]),
				}
			}
			parts[i] = part
		}
		row := make([]any, 0, len(headers))
		row = append(row, strings.Join(parts, uidSeparator))
		for _, idx := range keep {
			row = append(row, source[idx])
		}
		rows[rowIdx] = row
	}

	return domain.Table{Headers: headers, Types: types, Rows: rows}, nil
}

func resultType(source domain.Table, op domain.Operation, indices []int) domain.FieldType {
	switch {
	case op.Kind == domain.OperationColumn:
		return source.TypeOf(indices[0])
	case op.Kind.IsArithmetic():
		return domain.FieldTypeDecimal
	default:
		return domain.FieldTypeString
	}
}

func evaluateOperation(op domain.Operation, row []any, indices []int, policy domain.ZeroDivisionPolicy) (any, error) {
	switch op.Kind {
	case domain.OperationColumn:
		return row[indices[0]], nil
	case domain.OperationConcat:
		parts := make([]string, len(indices))
		for i, idx := range indices {
			parts[i] = domain.FormatValue(row[idx])
		}
		return strings.Join(parts, uidSeparator), nil
	case domain.OperationSum, domain.OperationDifference, domain.OperationProduct, domain.OperationQuotient:
		operands := make([]decimal.Decimal, len(indices))
		for i, idx := range indices {
			d, ok, err := toDecimal(row[idx])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", op.Columns[i], err)
			}
			if !ok {
				return nil, nil
			}
			operands[i] = d
		}
		return arithmetic(op.Kind, operands, policy)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperation, op.Kind)
	}
}

func arithmetic(kind domain.OperationKind, operands []decimal.Decimal, policy domain.ZeroDivisionPolicy) (any, error) {
	switch kind {
	case domain.OperationSum:
		total := decimal.Zero
		for _, operand := range operands {
			total = total.Add(operand)
		}
		return total, nil
	case domain.OperationDifference:
		return operands[0].Sub(operands[1]), nil
	case domain.OperationProduct:
		return operands[0].Mul(operands[1]), nil
	case domain.OperationQuotient:
		if operands[1].IsZero() {
			if policy == domain.ZeroDivisionNull {
				return nil, nil
			}
			return nil, domain.ErrDivisionByZero
		}
		return operands[0].DivRound(operands[1], quotientPrecision), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperation, kind)
	}
}

// toDecimal reports ok=false for empty cells.
func toDecimal(value any) (decimal.Decimal, bool, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Decimal{}, false, nil
	case decimal.Decimal:
		return v, true, nil
	case int64:
		return decimal.NewFromInt(v), true, nil
	case float64:
		return finiteDecimal(v)
	case bool:
		if v {
			return decimal.NewFromInt(1), true, nil
		}
		return decimal.Zero, true, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return decimal.Decimal{}, false, nil
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Decimal{}, false, fmt.Errorf("%w: %q", domain.ErrNonNumeric, v)
		}
		return d, true, nil
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return decimal.Decimal{}, false, fmt.Errorf("%w: %v", domain.ErrNonNumeric, v)
		}
		return finiteDecimal(f)
	}
}

// finiteDecimal refuses NaN and Inf, which decimal.NewFromFloat panics on.
func finiteDecimal(f float64) (decimal.Decimal, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false, fmt.Errorf("%w: %v", domain.ErrNonNumeric, f)
	}
	return decimal.NewFromFloat(f), true, nil
}

func logPhase(log zerolog.Logger, phase string, elapsed time.Duration, rows int) {
	event := log.Info().Str("phase", phase).Dur("elapsed", elapsed).Int("rows", rows)
	if rows > 0 {
		event = event.Dur("per_row", elapsed/time.Duration(rows))
	}
	event.Msg("phase completed")
}
