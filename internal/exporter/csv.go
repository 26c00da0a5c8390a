package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"sczmerge/internal/files"
	"sczmerge/pkg/contracts/domain"
)

// CSVWriter writes the authoritative CSV artifact
type CSVWriter struct {
	manager *files.Manager
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(manager *files.Manager) *CSVWriter {
	return &CSVWriter{manager: manager}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteTable replaces filePath with the table as UTF-8 CSV: one header row,
// no index column. It returns the number of bytes written.
func (w *CSVWriter) WriteTable(filePath string, t *domain.Table, options WriteOptions) (int64, error) {
	slog.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", t.Len()),
		slog.Int("column_count", t.Width()))

	return w.manager.WriteAtomic(filePath, func(out io.Writer) error {
		return EncodeCSV(out, t, options)
	})
}

// EncodeCSV streams the table to out in CSV form
func EncodeCSV(out io.Writer, t *domain.Table, options WriteOptions) error {
	// Write BOM if requested (helps Excel recognize UTF-8)
	if options.BOMPrefix {
		if _, err := out.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)

	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	formatters := columnFormatters(t)
	record := make([]string, t.Width())
	for r, row := range t.Rows {
		for i, v := range row {
			record[i] = formatters[i](v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
