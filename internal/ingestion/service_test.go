package ingestion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

const paysimSample = "\xEF\xBB\xBFstep,type,amount,nameOrig,oldbalanceOrg,isFraud\n" +
	"1,PAYMENT,9839.64,C1231006815,170136.0,0\n" +
	"1,TRANSFER,181.0,C1305486145,181.0,1\n" +
	",,,,,\n" +
	"2,CASH_OUT,181.5,C840083671,,1\n"

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(&bytes.Buffer{}))
}

func TestServiceLoadCSVInfersTypes(t *testing.T) {
	service := NewService(afero.NewMemMapFs())

	table, err := service.Load(testContext(), Request{
		FileName: "paysim.csv",
		Data:     strings.NewReader(paysimSample),
	})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	if table.RowCount() != 3 {
		t.Fatalf("expected 3 rows after dropping the blank line, got %d", table.RowCount())
	}
	if table.Headers[0] != "step" {
		t.Fatalf("expected byte order mark to be stripped, got header %q", table.Headers[0])
	}

	want := map[string]domain.FieldType{
		"step":          domain.FieldTypeInteger,
		"type":          domain.FieldTypeString,
		"amount":        domain.FieldTypeFloat,
		"oldbalanceOrg": domain.FieldTypeFloat,
		"isFraud":       domain.FieldTypeInteger,
	}
	for column, fieldType := range want {
		idx := table.ColumnIndex(column)
		if got := table.TypeOf(idx); got != fieldType {
			t.Fatalf("expected %s to be %s, got %s", column, fieldType, got)
		}
	}

	if table.Rows[0][2] != 9839.64 {
		t.Fatalf("expected amount to be coerced to float, got %#v", table.Rows[0][2])
	}
	if table.Rows[2][4] != nil {
		t.Fatalf("expected empty cell to be nil, got %#v", table.Rows[2][4])
	}
}

func TestServiceLoadNonFiniteCells(t *testing.T) {
	data := "step,amount,oldbalanceOrg,note\n" +
		"1,9839.64,10,Inf\n" +
		"2,NaN,5,-Infinity\n" +
		"3,n/a,7,+inf\n"

	table, err := NewService(afero.NewMemMapFs()).Load(testContext(), Request{
		FileName: "paysim.csv",
		Data:     strings.NewReader(data),
	})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	amount := table.ColumnIndex("amount")
	if got := table.TypeOf(amount); got != domain.FieldTypeFloat {
		t.Fatalf("expected amount to stay float, got %s", got)
	}
	if table.Rows[1][amount] != nil {
		t.Fatalf("expected NaN cell to be nil, got %#v", table.Rows[1][amount])
	}
	if table.Rows[2][amount] != nil {
		t.Fatalf("expected n/a cell to be nil, got %#v", table.Rows[2][amount])
	}

	note := table.ColumnIndex("note")
	if got := table.TypeOf(note); got != domain.FieldTypeString {
		t.Fatalf("expected infinities to keep note a string column, got %s", got)
	}
	if table.Rows[0][note] != "Inf" {
		t.Fatalf("expected Inf to load verbatim, got %#v", table.Rows[0][note])
	}
}

func TestServiceLoadFloatOverrideRejectsInfinity(t *testing.T) {
	_, err := NewService(afero.NewMemMapFs()).Load(testContext(), Request{
		FileName:        "paysim.csv",
		Data:            strings.NewReader("step,amount\n1,Inf\n"),
		ColumnOverrides: map[string]domain.FieldType{"amount": domain.FieldTypeFloat},
	})
	var dataErr *domain.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected data error, got %v", err)
	}
}

func TestServiceLoadAppliesOverrides(t *testing.T) {
	service := NewService(afero.NewMemMapFs())

	table, err := service.Load(testContext(), Request{
		FileName:        "paysim.csv",
		Data:            strings.NewReader(paysimSample),
		ColumnOverrides: map[string]domain.FieldType{"step": domain.FieldTypeString, "amount": domain.FieldTypeDecimal},
	})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if table.Rows[0][0] != "1" {
		t.Fatalf("expected step override to string, got %#v", table.Rows[0][0])
	}
	if got := domain.FormatValue(table.Rows[1][2]); got != "181" {
		t.Fatalf("expected decimal amount 181, got %q", got)
	}
}

func TestServiceLoadFileFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/paysim.csv", []byte(paysimSample), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := NewService(fs).LoadFile(testContext(), "/data/paysim.csv", nil, nil)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if table.RowCount() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.RowCount())
	}

	_, err = NewService(fs).LoadFile(testContext(), "/data/missing.csv", nil, nil)
	var ioErr *domain.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected io error for missing file, got %v", err)
	}
}

func TestServiceLoadHeaderRowIndex(t *testing.T) {
	data := "exported by bank\nname,amount\nAlice,10\n"
	headerRow := 1

	table, err := NewService(nil).Load(testContext(), Request{
		FileName:       "export.csv",
		HeaderRowIndex: &headerRow,
		Data:           strings.NewReader(data),
	})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if len(table.Headers) != 2 || table.Headers[1] != "amount" {
		t.Fatalf("unexpected headers: %v", table.Headers)
	}
	if table.Rows[0][1] != int64(10) {
		t.Fatalf("expected integer amount, got %#v", table.Rows[0][1])
	}
}

func TestServiceLoadExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"type", "amount"},
		{"CASH_IN", 10},
		{"PAYMENT", 2.5},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	table, err := NewService(nil).Load(testContext(), Request{FileName: "paysim.xlsx", Data: buf})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if table.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.RowCount())
	}
	if table.TypeOf(1) != domain.FieldTypeFloat {
		t.Fatalf("expected amount to be float, got %s", table.TypeOf(1))
	}
}

func TestServiceLoadRejectsUnsupportedFormat(t *testing.T) {
	_, err := NewService(nil).Load(testContext(), Request{FileName: "paysim.parquet", Data: strings.NewReader("x")})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %T", err)
	}
}
