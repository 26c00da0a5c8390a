package exporter

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"sczmerge/internal/files"
	"sczmerge/pkg/contracts/domain"
)

const parquetWriterParallelism = 4

// ParquetWriter writes the columnar artifact
type ParquetWriter struct {
	manager *files.Manager
}

// NewParquetWriter creates a new Parquet writer instance
func NewParquetWriter(manager *files.Manager) *ParquetWriter {
	return &ParquetWriter{manager: manager}
}

// ParquetSchema returns the schema definition for t, one entry per column:
// text as UTF8 byte arrays, numbers as doubles, dates as INT32 DATE. Column
// names are sanitized for the schema parser and kept unique.
func ParquetSchema(t *domain.Table) []string {
	names := parquetColumnNames(t.Columns)
	meta := make([]string, len(names))
	for i, name := range names {
		switch t.Kinds[i] {
		case domain.KindNumber:
			meta[i] = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name)
		case domain.KindDate:
			meta[i] = fmt.Sprintf("name=%s, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL", name)
		default:
			meta[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
		}
	}
	return meta
}

// parquetColumnNames replaces characters the tag parser cannot carry and
// disambiguates names that collide afterwards
func parquetColumnNames(columns []string) []string {
	replacer := strings.NewReplacer(" ", "_", ".", "_", ";", "_", ",", "_", "=", "_", ":", "_")
	names := make([]string, len(columns))
	used := make(map[string]struct{}, len(columns))

	for i, col := range columns {
		base := replacer.Replace(col)
		if base == "" {
			base = fmt.Sprintf("column_%d", i)
		}

		name := base
		for n := 1; ; n++ {
			key := strings.ToUpper(name[:1]) + name[1:]
			if _, taken := used[key]; !taken {
				used[key] = struct{}{}
				break
			}
			name = fmt.Sprintf("%s_%d", base, n)
		}
		names[i] = name
	}
	return names
}

// WriteTable replaces filePath with the table in Parquet form, SNAPPY
// compressed. The writer library panics on some malformed input; panics are
// returned as errors.
func (w *ParquetWriter) WriteTable(filePath string, t *domain.Table) (size int64, err error) {
	tmpPath, err := w.manager.TempPath(filePath)
	if err != nil {
		return 0, err
	}

	committed := false
	defer func() {
		if !committed {
			w.manager.Discard(tmpPath)
		}
	}()

	if err := writeParquetFile(tmpPath, t); err != nil {
		return 0, err
	}

	size, err = w.manager.Commit(tmpPath, filePath)
	if err != nil {
		return 0, err
	}
	committed = true

	slog.Debug("Wrote parquet file",
		slog.String("file_path", filePath),
		slog.Int("record_count", t.Len()))

	return size, nil
}

func writeParquetFile(path string, t *domain.Table) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file %s: %w", path, err)
	}
	defer recoverWriter(fw, &err)

	pw, err := writer.NewCSVWriter(ParquetSchema(t), fw, parquetWriterParallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to initialize parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	record := make([]*string, t.Width())
	for r, row := range t.Rows {
		for i, v := range row {
			record[i] = parquetCell(v)
		}
		if err := pw.WriteString(record); err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("failed to write parquet row %d: %w", r, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}

// recoverWriter turns a writer panic into an error and closes fw, which the
// panicking path never reached
func recoverWriter(fw source.ParquetFile, err *error) {
	if r := recover(); r != nil {
		fw.Close()
		*err = fmt.Errorf("parquet writer panicked: %v", r)
	}
}

// parquetCell renders a value in the string form the CSV writer converts from.
// Dates become days since the Unix epoch.
func parquetCell(v domain.Value) *string {
	var s string
	switch v.Kind {
	case domain.KindMissing:
		return nil
	case domain.KindNumber:
		s = strconv.FormatFloat(v.Number, 'g', -1, 64)
	case domain.KindDate:
		s = strconv.FormatInt(v.Date.Unix()/86400, 10)
	default:
		s = v.Text
	}
	return &s
}
