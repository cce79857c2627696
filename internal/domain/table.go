package domain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// FieldType represents the type of a table column
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeFloat   FieldType = "float"
	FieldTypeBoolean FieldType = "boolean"
	// FieldTypeDecimal holds results of arithmetic operations.
	FieldTypeDecimal FieldType = "decimal"
)

// Table is an in-memory, row-oriented dataset. Cells hold nil, string,
// int64, float64, bool or decimal.Decimal.
type Table struct {
	Headers []string
	Types   []FieldType
	Rows    [][]any
}

// NewTable creates an empty table with the given headers. Column types default to string.
func NewTable(headers ...string) Table {
	types := make([]FieldType, len(headers))
	for i := range types {
		types[i] = FieldTypeString
	}
	return Table{
		Headers: append([]string(nil), headers...),
		Types:   types,
		Rows:    [][]any{},
	}
}

// RowCount returns the number of data rows.
func (t Table) RowCount() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column or -1.
func (t Table) ColumnIndex(name string) int {
	for i, header := range t.Headers {
		if header == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column.
func (t Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// TypeOf returns the declared type of the column at idx.
func (t Table) TypeOf(idx int) FieldType {
	if idx < 0 || idx >= len(t.Types) {
		return FieldTypeString
	}
	return t.Types[idx]
}

// AppendRow adds a row. The row is padded or truncated to the header width.
func (t *Table) AppendRow(values ...any) {
	row := make([]any, len(t.Headers))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Slice returns rows [start, end) sharing the underlying row storage.
func (t Table) Slice(start, end int) Table {
	if start < 0 {
		start = 0
	}
	if end > len(t.Rows) {
		end = len(t.Rows)
	}
	if start > end {
		start = end
	}
	return Table{Headers: t.Headers, Types: t.Types, Rows: t.Rows[start:end]}
}

// Head returns at most the first n rows. A non-positive n returns the table unchanged.
func (t Table) Head(n int) Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return t.Slice(0, n)
}

// DropDuplicates keeps the first row for every distinct string form of the
// named column, preserving the original order.
func (t Table) DropDuplicates(column string) (Table, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	seen := make(map[string]struct{}, len(t.Rows))
	rows := make([][]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		key := dedupKey(row[idx])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, row)
	}
	return Table{Headers: t.Headers, Types: t.Types, Rows: rows}, nil
}

// nil cells group together and never collide with the empty string.
func dedupKey(value any) string {
	if value == nil {
		return "\x00nil"
	}
	return FormatValue(value)
}

// Clone returns a deep copy of the table rows and metadata.
func (t Table) Clone() Table {
	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]any(nil), row...)
	}
	return Table{
		Headers: append([]string(nil), t.Headers...),
		Types:   append([]FieldType(nil), t.Types...),
		Rows:    rows,
	}
}

// FormatValue renders a cell as the string used for concatenation, uids and CSV output.
// Floats use the shortest exact form, so 181.0 renders as "181"; NaN and Inf
// render like a missing cell.
func FormatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case decimal.Decimal:
		return v.String()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return s
	}
}
