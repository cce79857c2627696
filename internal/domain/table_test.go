package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDropDuplicatesKeepsFirstOccurrence(t *testing.T) {
	table := NewTable("type", "amount")
	table.AppendRow("CASH_IN", int64(1))
	table.AppendRow("CASH_IN", int64(2))
	table.AppendRow("PAYMENT", int64(3))
	table.AppendRow(nil, int64(4))
	table.AppendRow("", int64(5))

	deduped, err := table.DropDuplicates("type")
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if deduped.RowCount() != 4 {
		t.Fatalf("expected 4 rows, got %d", deduped.RowCount())
	}
	if deduped.Rows[0][1] != int64(1) || deduped.Rows[1][0] != "PAYMENT" {
		t.Fatalf("unexpected order: %v", deduped.Rows)
	}

	again, err := deduped.DropDuplicates("type")
	if err != nil {
		t.Fatalf("dedup again: %v", err)
	}
	if again.RowCount() != deduped.RowCount() {
		t.Fatalf("expected dedup to be idempotent")
	}

	if _, err := table.DropDuplicates("missing"); err == nil {
		t.Fatalf("expected unknown column error")
	}
}

func TestSliceAndHead(t *testing.T) {
	table := NewTable("n")
	for i := 0; i < 5; i++ {
		table.AppendRow(int64(i))
	}
	if got := table.Slice(4, 10).RowCount(); got != 1 {
		t.Fatalf("expected clamped slice of 1 row, got %d", got)
	}
	if got := table.Head(2).RowCount(); got != 2 {
		t.Fatalf("expected head of 2 rows, got %d", got)
	}
	if got := table.Head(0).RowCount(); got != 5 {
		t.Fatalf("expected head(0) to keep all rows, got %d", got)
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{"C123", "C123"},
		{int64(42), "42"},
		{181.5, "181.5"},
		{float64(181), "181"},
		{1e21, "1000000000000000000000"},
		{math.NaN(), ""},
		{math.Inf(-1), ""},
		{true, "true"},
		{decimal.RequireFromString("179975.640"), "179975.64"},
	}
	for _, tc := range cases {
		if got := FormatValue(tc.value); got != tc.want {
			t.Fatalf("FormatValue(%#v): expected %q, got %q", tc.value, tc.want, got)
		}
	}
}
