package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/logger"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

const writeBufferSize = 1 << 20 // 1 MiB buffer for streaming writes

var (
	errInvalidFileName  = errors.New("invalid file name")
	errMissingDir       = errors.New("output directory does not exist")
	errInvalidChunkSize = errors.New("chunk size must be positive")
)

// ChunkFile describes one file produced by ChunkWriter.
type ChunkFile struct {
	Path  string
	Rows  int
	Bytes int64
}

// ChunkWriter splits a table into files of at most chunkSize rows.
type ChunkWriter struct {
	fs        afero.Fs
	chunkSize int
	now       func() time.Time
}

type Option func(*ChunkWriter)

func WithChunkSize(size int) Option {
	return func(w *ChunkWriter) {
		if size > 0 {
			w.chunkSize = size
		}
	}
}

// NewChunkWriter returns a writer on fs. A nil fs writes to the OS filesystem.
func NewChunkWriter(fs afero.Fs, opts ...Option) *ChunkWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	w := &ChunkWriter{
		fs:        fs,
		chunkSize: domain.DefaultChunkSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ChunkSize reports the maximum number of rows per file.
func (w *ChunkWriter) ChunkSize() int {
	return w.chunkSize
}

// Write stores table as <dir>/<name>0.<ext>, <name>1.<ext>, ... in row order,
// at most chunkSize rows per file. A chunkSize of zero uses the writer's own.
// dir must already exist. A table without rows produces no files.
func (w *ChunkWriter) Write(ctx context.Context, table domain.Table, dir, name string, format domain.FileFormat, chunkSize int) ([]ChunkFile, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
		return nil, domain.NewConfigurationError(name, "write", errInvalidFileName, "%q", name)
	}
	switch format {
	case domain.FormatCSV, domain.FormatJSON:
	default:
		return nil, domain.NewConfigurationError(name, "write", domain.ErrUnsupportedFormat, "%q", format)
	}

	if chunkSize < 0 {
		return nil, domain.NewConfigurationError(name, "write", errInvalidChunkSize, "%d", chunkSize)
	}
	if chunkSize == 0 {
		chunkSize = w.chunkSize
	}

	exists, err := afero.DirExists(w.fs, dir)
	if err != nil {
		return nil, &domain.IOError{Op: "stat", Path: dir, Err: err}
	}
	if !exists {
		return nil, &domain.IOError{Op: "stat", Path: dir, Err: errMissingDir}
	}

	log := logger.FromContext(ctx)
	start := w.now()
	total := table.RowCount()
	files := make([]ChunkFile, 0, (total+chunkSize-1)/chunkSize)
	for index, offset := 0, 0; offset < total; index, offset = index+1, offset+chunkSize {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		chunk := table.Slice(offset, offset+chunkSize)
		path := filepath.Join(dir, fmt.Sprintf("%s%d.%s", name, index, format))
		written, err := w.writeFile(chunk, path, format)
		if err != nil {
			return files, err
		}
		files = append(files, ChunkFile{Path: path, Rows: chunk.RowCount(), Bytes: written})
		log.Debug().Str("path", path).Int("rows", chunk.RowCount()).Int64("bytes", written).Msg("chunk written")
	}

	elapsed := w.now().Sub(start)
	event := log.Info().Str("name", name).Str("format", string(format)).Int("files", len(files)).Int("rows", total).Dur("elapsed", elapsed)
	if total > 0 {
		event = event.Dur("per_row", elapsed/time.Duration(total))
	}
	event.Msg("chunks written")
	return files, nil
}

func (w *ChunkWriter) writeFile(chunk domain.Table, path string, format domain.FileFormat) (int64, error) {
	file, err := w.fs.Create(path)
	if err != nil {
		return 0, &domain.IOError{Op: "create", Path: path, Err: err}
	}
	buffered := bufio.NewWriterSize(file, writeBufferSize)
	counter := &countingWriter{writer: buffered}

	switch format {
	case domain.FormatJSON:
		err = writeJSON(counter, chunk)
	default:
		err = writeCSV(counter, chunk)
	}
	if err == nil {
		err = buffered.Flush()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return counter.count, &domain.IOError{Op: "write", Path: path, Err: err}
	}
	return counter.count, nil
}

func writeCSV(w io.Writer, chunk domain.Table) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(chunk.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(chunk.Headers))
	for _, row := range chunk.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = domain.FormatValue(row[i])
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, chunk domain.Table) error {
	stream := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, w, 4096)
	stream.WriteArrayStart()
	for rowIdx, row := range chunk.Rows {
		if rowIdx > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		for i, header := range chunk.Headers {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(header)
			var value any
			if i < len(row) {
				value = row[i]
			}
			writeJSONValue(stream, value)
		}
		stream.WriteObjectEnd()
		if stream.Buffered() > writeBufferSize {
			if err := stream.Flush(); err != nil {
				return err
			}
		}
	}
	stream.WriteArrayEnd()
	if stream.Error != nil {
		return stream.Error
	}
	return stream.Flush()
}

func writeJSONValue(stream *jsoniter.Stream, value any) {
	switch v := value.(type) {
	case nil:
		stream.WriteNil()
	case string:
		stream.WriteString(v)
	case int64:
		stream.WriteInt64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			stream.WriteNil()
			return
		}
		stream.WriteFloat64(v)
	case bool:
		stream.WriteBool(v)
	case decimal.Decimal:
		stream.WriteRaw(v.String())
	default:
		stream.WriteVal(v)
	}
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
