package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(&bytes.Buffer{}))
}

func typesTable(rows int) domain.Table {
	table := domain.NewTable("id", "type")
	for i := 0; i < rows; i++ {
		table.AppendRow(fmt.Sprintf("T%d", i), "CASH_IN")
	}
	return table
}

func TestChunkWriter_SplitsRowsIntoFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out/redis", 0o755))

	writer := NewChunkWriter(fs, WithChunkSize(2))
	files, err := writer.Write(testContext(), typesTable(5), "/out/redis", "type", domain.FormatCSV, 0)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "/out/redis/type0.csv", files[0].Path)
	assert.Equal(t, "/out/redis/type1.csv", files[1].Path)
	assert.Equal(t, "/out/redis/type2.csv", files[2].Path)
	assert.Equal(t, []int{2, 2, 1}, []int{files[0].Rows, files[1].Rows, files[2].Rows})

	content, err := afero.ReadFile(fs, "/out/redis/type2.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,type\nT4,CASH_IN\n", string(content))
	assert.Equal(t, int64(len(content)), files[2].Bytes)

	var ids []any
	for _, file := range files {
		table, err := ReadRecords(fs, file.Path)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "type"}, table.Headers)
		for _, row := range table.Rows {
			ids = append(ids, row[0])
		}
	}
	assert.Equal(t, []any{"T0", "T1", "T2", "T3", "T4"}, ids)
}

func TestChunkWriter_ZeroRowsWritesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	files, err := NewChunkWriter(fs).Write(testContext(), domain.NewTable("id"), "/out", "type", domain.FormatJSON, 0)
	require.NoError(t, err)
	assert.Empty(t, files)

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChunkWriter_MissingDirectory(t *testing.T) {
	_, err := NewChunkWriter(afero.NewMemMapFs()).Write(testContext(), typesTable(1), "/absent", "type", domain.FormatCSV, 0)

	var ioErr *domain.IOError
	require.True(t, errors.As(err, &ioErr), "expected io error, got %v", err)
	assert.Equal(t, "/absent", ioErr.Path)
}

func TestChunkWriter_RejectsUnknownFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	_, err := NewChunkWriter(fs).Write(testContext(), typesTable(1), "/out", "type", domain.FileFormat("parquet"), 0)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestChunkWriter_JSONKeepsColumnOrderAndTypes(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out/arango_db", 0o755))

	table := domain.NewTable("_key", "step", "amount", "ratio", "fraud", "note")
	table.AppendRow("1_C1", int64(1), 9839.64, decimal.RequireFromString("2.5"), false, nil)

	files, err := NewChunkWriter(fs).Write(testContext(), table, "/out/arango_db", "transaction", domain.FormatJSON, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := afero.ReadFile(fs, files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, `[{"_key":"1_C1","step":1,"amount":9839.64,"ratio":2.5,"fraud":false,"note":null}]`, string(content))

	read, err := ReadRecords(fs, files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, table.Headers, read.Headers)
	assert.Equal(t, []any{"1_C1", int64(1), 9839.64, 2.5, false, nil}, read.Rows[0])
}

func TestChunkWriter_CSVFormatsValues(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	table := domain.NewTable("_from", "_to", "amount")
	table.AppendRow("payer/C1", "transaction/1_C1_M2", decimal.RequireFromString("179975.64"))
	table.AppendRow("payer/C2", "transaction/1_C2, M3", nil)

	files, err := NewChunkWriter(fs).Write(testContext(), table, "/out", "has_sent", domain.FormatCSV, 0)
	require.NoError(t, err)

	content, err := afero.ReadFile(fs, files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "_from,_to,amount\npayer/C1,transaction/1_C1_M2,179975.64\npayer/C2,\"transaction/1_C2, M3\",\n", string(content))
}

func TestChunkWriter_CallChunkSizeOverridesDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	files, err := NewChunkWriter(fs).Write(testContext(), typesTable(5), "/out", "type", domain.FormatCSV, 2)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = NewChunkWriter(fs).Write(testContext(), typesTable(5), "/out", "type", domain.FormatCSV, -1)
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "expected configuration error, got %v", err)
}

func TestChunkWriter_NonFiniteFloatsWriteAsNull(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	table := domain.NewTable("_key", "amount", "oldbalanceOrg", "newbalanceOrig")
	table.AppendRow("1_C1", math.NaN(), math.Inf(1), math.Inf(-1))

	files, err := NewChunkWriter(fs).Write(testContext(), table, "/out", "transaction", domain.FormatJSON, 0)
	require.NoError(t, err)
	content, err := afero.ReadFile(fs, files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, `[{"_key":"1_C1","amount":null,"oldbalanceOrg":null,"newbalanceOrig":null}]`, string(content))

	files, err = NewChunkWriter(fs).Write(testContext(), table, "/out", "transaction", domain.FormatCSV, 0)
	require.NoError(t, err)
	content, err = afero.ReadFile(fs, files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "_key,amount,oldbalanceOrg,newbalanceOrig\n1_C1,,,\n", string(content))
}

func TestChunkWriter_StopsOnCancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	files, err := NewChunkWriter(fs, WithChunkSize(1)).Write(ctx, typesTable(3), "/out", "type", domain.FormatCSV, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, files)
}

func TestReadRecords_UnsupportedExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/type0.txt", []byte("x"), 0o644))

	_, err := ReadRecords(fs, "/out/type0.txt")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
