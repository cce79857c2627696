package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Service reads tabular source files into typed in-memory tables.
type Service struct {
	fs afero.Fs
}

// NewService creates a new ingestion service reading from fs.
func NewService(fs afero.Fs) *Service {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Service{fs: fs}
}

// Request describes the ingestion input.
type Request struct {
	FileName        string
	HeaderRowIndex  *int
	ColumnOverrides map[string]domain.FieldType
	Data            io.Reader
}

type tableData struct {
	headers        []string
	rows           [][]string
	headerRowIndex int
}

// LoadFile opens path and loads it as a table.
func (s *Service) LoadFile(ctx context.Context, path string, headerRowIndex *int, overrides map[string]domain.FieldType) (domain.Table, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return domain.Table{}, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return s.Load(ctx, Request{
		FileName:        path,
		HeaderRowIndex:  headerRowIndex,
		ColumnOverrides: overrides,
		Data:            f,
	})
}

// Load parses the request payload, infers column types and coerces every cell.
func (s *Service) Load(ctx context.Context, req Request) (domain.Table, error) {
	log := logger.FromContext(ctx)

	if req.Data == nil {
		return domain.Table{}, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return domain.Table{}, &domain.IOError{Op: "read", Path: req.FileName, Err: err}
	}
	if len(payload) == 0 {
		return domain.Table{}, &domain.IOError{Op: "read", Path: req.FileName, Err: errors.New("file is empty")}
	}

	raw, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return domain.Table{}, err
	}
	if len(raw.headers) == 0 {
		return domain.Table{}, errors.New("no header row detected")
	}

	types := inferFieldTypes(raw)
	for idx, header := range raw.headers {
		if override, ok := req.ColumnOverrides[header]; ok {
			types[idx] = override
		}
	}

	table := domain.Table{
		Headers: raw.headers,
		Types:   types,
		Rows:    make([][]any, 0, len(raw.rows)),
	}
	for rowIdx, row := range raw.rows {
		values := make([]any, len(raw.headers))
		for colIdx := range raw.headers {
			cell := strings.TrimSpace(row[colIdx])
			if isMissing(cell) {
				continue
			}
			coerced, err := coerceValue(types[colIdx], cell)
			if err != nil {
				rowNumber := raw.headerRowIndex + rowIdx + 2 // include header row (1-based)
				return domain.Table{}, &domain.DataError{
					Operation: "load",
					Row:       rowIdx,
					Err:       fmt.Errorf("line %d field %s: %w", rowNumber, raw.headers[colIdx], err),
				}
			}
			values[colIdx] = coerced
		}
		table.Rows = append(table.Rows, values)
	}

	log.Info().
		Str("file", req.FileName).
		Int("rows", table.RowCount()).
		Int("columns", len(table.Headers)).
		Msg("source table loaded")

	return table, nil
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(fileName, payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(fileName, payload, headerRowIndex)
	default:
		return tableData{}, domain.NewConfigurationError("", "", domain.ErrUnsupportedFormat, "%q", ext)
	}
}

func parseCSV(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, &domain.IOError{Op: "read csv", Path: fileName, Err: err}
	}

	return normalizeTable(records, headerRowIndex)
}

func parseExcel(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, &domain.IOError{Op: "open xlsx", Path: fileName, Err: err}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, &domain.IOError{Op: "read xlsx", Path: fileName, Err: errors.New("excel file has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, &domain.IOError{Op: "read xlsx", Path: fileName, Err: err}
	}

	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		if len(cleanRow(records[*headerRowIndex])) == 0 {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		headerIndex = *headerRowIndex
		for idx := *headerRowIndex + 1; idx < len(records); idx++ {
			dataRows = append(dataRows, records[idx])
		}
	} else {
		for idx, row := range records {
			if headerRow == nil {
				if len(cleanRow(row)) == 0 {
					continue
				}
				headerRow = row
				headerIndex = idx
				continue
			}
			dataRows = append(dataRows, row)
		}
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	return tableData{
		headers:        headers,
		rows:           filterEmptyRows(dataRows),
		headerRowIndex: headerIndex,
	}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func filterEmptyRows(rows [][]string) [][]string {
	filtered := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(cleanRow(row)) > 0 {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func inferFieldTypes(table tableData) []domain.FieldType {
	types := make([]domain.FieldType, len(table.headers))
	for idx := range table.headers {
		types[idx] = profileColumn(idx, table.rows)
	}
	return types
}

func profileColumn(col int, rows [][]string) domain.FieldType {
	isBool := true
	isInt := true
	isFloat := true
	hasValue := false

	for _, row := range rows {
		value := strings.TrimSpace(row[col])
		if isMissing(value) {
			continue
		}
		hasValue = true

		if !looksLikeBool(value) {
			isBool = false
		}
		if !looksLikeInt(value) {
			isInt = false
		}
		if !looksLikeFloat(value) {
			isFloat = false
		}
		if !isBool && !isInt && !isFloat {
			break
		}
	}

	switch {
	case !hasValue:
		return domain.FieldTypeString
	case isBool:
		return domain.FieldTypeBoolean
	case isInt:
		return domain.FieldTypeInteger
	case isFloat:
		return domain.FieldTypeFloat
	default:
		return domain.FieldTypeString
	}
}

// 0/1 flag columns stay integers; only literal true/false is boolean.
func looksLikeBool(value string) bool {
	value = strings.ToLower(value)
	return value == "true" || value == "false"
}

func looksLikeInt(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

func looksLikeFloat(value string) bool {
	_, err := parseFiniteFloat(value)
	return err == nil
}

// missingMarkers are the spellings of an absent value read as empty cells.
var missingMarkers = map[string]struct{}{
	"":     {},
	"nan":  {},
	"-nan": {},
	"na":   {},
	"n/a":  {},
	"#n/a": {},
	"#na":  {},
	"<na>": {},
	"null": {},
	"none": {},
}

func isMissing(value string) bool {
	_, ok := missingMarkers[strings.ToLower(value)]
	return ok
}

// parseFiniteFloat rejects Inf and NaN, which strconv otherwise accepts.
func parseFiniteFloat(value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", domain.ErrNonNumeric, value)
	}
	return f, nil
}

func coerceValue(fieldType domain.FieldType, raw string) (any, error) {
	switch fieldType {
	case domain.FieldTypeString:
		return raw, nil
	case domain.FieldTypeInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		return nil, fmt.Errorf("unable to coerce %q to integer", raw)
	case domain.FieldTypeFloat:
		if f, err := parseFiniteFloat(raw); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("unable to coerce %q to float", raw)
	case domain.FieldTypeBoolean:
		boolVal, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to boolean", raw)
		}
		return boolVal, nil
	case domain.FieldTypeDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to decimal", raw)
		}
		return d, nil
	default:
		return raw, nil
	}
}
