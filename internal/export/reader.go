package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rpattn/txgraph/internal/domain"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

var numberConfig = jsoniter.Config{UseNumber: true}.Froze()

// ReadRecords loads a chunk file written by ChunkWriter back into a table.
// The format is chosen by extension. CSV cells are read back as strings and
// empty cells as nil; JSON keeps numbers, booleans and nulls.
func ReadRecords(fs afero.Fs, path string) (domain.Table, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	file, err := fs.Open(path)
	if err != nil {
		return domain.Table{}, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	var table domain.Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		table, err = readCSV(file)
	case ".json":
		table, err = readJSON(file)
	default:
		return domain.Table{}, domain.NewConfigurationError("", "read", domain.ErrUnsupportedFormat, "%q", filepath.Ext(path))
	}
	if err != nil {
		return domain.Table{}, &domain.IOError{Op: "read", Path: path, Err: err}
	}
	return table, nil
}

func readCSV(r io.Reader) (domain.Table, error) {
	reader := csv.NewReader(r)
	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, nil
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("read header: %w", err)
	}
	table := domain.NewTable(headers...)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("read row: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			if cell != "" {
				row[i] = cell
			}
		}
		table.AppendRow(row...)
	}
	return table, nil
}

func readJSON(r io.Reader) (domain.Table, error) {
	iter := jsoniter.Parse(numberConfig, r, 4096)
	table := domain.Table{}
	positions := map[string]int{}

	iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
		row := make([]any, len(table.Headers))
		iter.ReadMapCB(func(iter *jsoniter.Iterator, field string) bool {
			idx, ok := positions[field]
			if !ok {
				idx = len(table.Headers)
				positions[field] = idx
				table.Headers = append(table.Headers, field)
				table.Types = append(table.Types, domain.FieldTypeString)
				for i := range table.Rows {
					table.Rows[i] = append(table.Rows[i], nil)
				}
				row = append(row, nil)
			}
			row[idx] = jsonCell(iter.Read())
			return true
		})
		table.Rows = append(table.Rows, row)
		return true
	})
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return domain.Table{}, iter.Error
	}
	return table, nil
}

func jsonCell(value any) any {
	number, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := number.Int64(); err == nil {
		return i
	}
	if f, err := number.Float64(); err == nil {
		return f
	}
	return number.String()
}

// EncodeRecords writes table to w as a JSON array of records, the same
// layout ChunkWriter uses for json chunks.
func EncodeRecords(w io.Writer, table domain.Table) error {
	return writeJSON(w, table)
}
