package exporter

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"sczmerge/internal/files"
	"sczmerge/pkg/contracts/domain"
)

const (
	xlsxSheetName = "dados"
	// excelize built-in number format 14 is a short date
	xlsxDateFormat = 14
)

// XLSXWriter writes the spreadsheet artifact
type XLSXWriter struct {
	manager *files.Manager
}

// NewXLSXWriter creates a new XLSX writer instance
func NewXLSXWriter(manager *files.Manager) *XLSXWriter {
	return &XLSXWriter{manager: manager}
}

// WriteTable replaces filePath with a single-sheet workbook holding the table.
// Tables beyond the sheet row limit fail with an error from excelize.
func (w *XLSXWriter) WriteTable(filePath string, t *domain.Table) (int64, error) {
	return w.manager.WriteAtomic(filePath, func(out io.Writer) error {
		return EncodeXLSX(out, t)
	})
}

// EncodeXLSX streams the table into a workbook written to out
func EncodeXLSX(out io.Writer, t *domain.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(xlsxSheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: xlsxDateFormat})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	header := make([]interface{}, t.Width())
	for i, col := range t.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	cells := make([]interface{}, t.Width())
	for r, row := range t.Rows {
		for i, v := range row {
			cells[i] = xlsxCell(v, dateStyle)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func xlsxCell(v domain.Value, dateStyle int) interface{} {
	switch v.Kind {
	case domain.KindMissing:
		return nil
	case domain.KindNumber:
		if math.IsInf(v.Number, 0) {
			return v.String()
		}
		return v.Number
	case domain.KindDate:
		return excelize.Cell{StyleID: dateStyle, Value: v.Date}
	default:
		return v.Text
	}
}
