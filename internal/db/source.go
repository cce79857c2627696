package db

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadTable runs query and collects the result set into a table. Column
// types are taken from the first non-null value of each column.
func LoadTable(ctx context.Context, q Querier, query string, args ...any) (domain.Table, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return domain.Table{}, &domain.IOError{Op: "query", Path: "postgres", Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	headers := make([]string, len(fields))
	for i, field := range fields {
		headers[i] = field.Name
	}
	table := domain.NewTable(headers...)
	typed := make([]bool, len(headers))

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return domain.Table{}, &domain.IOError{Op: "scan", Path: "postgres", Err: err}
		}
		row := make([]any, len(headers))
		for i := range headers {
			if i >= len(values) {
				break
			}
			value, err := normalizeValue(values[i])
			if err != nil {
				return domain.Table{}, &domain.DataError{Operation: "load", Row: table.RowCount(), Err: fmt.Errorf("column %s: %w", headers[i], err)}
			}
			row[i] = value
			if value != nil && !typed[i] {
				table.Types[i] = fieldTypeOf(value)
				typed[i] = true
			}
		}
		table.AppendRow(row...)
	}
	if err := rows.Err(); err != nil {
		return domain.Table{}, &domain.IOError{Op: "query", Path: "postgres", Err: err}
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("rows", table.RowCount()).
		Int("columns", len(headers)).
		Msg("source table loaded")
	return table, nil
}

// normalizeValue maps a pgx decoded value onto the cell types used by domain.Table.
func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case bool:
		return v, nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case pgtype.Numeric:
		return numericToDecimal(v)
	case decimal.Decimal:
		return v, nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func numericToDecimal(n pgtype.Numeric) (any, error) {
	if !n.Valid {
		return nil, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return nil, fmt.Errorf("%w: numeric is not finite", domain.ErrNonNumeric)
	}
	value := n.Int
	if value == nil {
		value = new(big.Int)
	}
	return decimal.NewFromBigInt(value, n.Exp), nil
}

func fieldTypeOf(value any) domain.FieldType {
	switch value.(type) {
	case int64:
		return domain.FieldTypeInteger
	case float64:
		return domain.FieldTypeFloat
	case bool:
		return domain.FieldTypeBoolean
	case decimal.Decimal:
		return domain.FieldTypeDecimal
	default:
		return domain.FieldTypeString
	}
}
