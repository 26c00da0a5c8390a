package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXWriter_WriteTable(t *testing.T) {
	manager, paths := setupTestEnv(t)
	table := sampleTable(t)

	size, err := NewXLSXWriter(manager).WriteTable(paths.XLSXFile, table)
	require.NoError(t, err)
	assert.Positive(t, size)

	f, err := excelize.OpenFile(paths.XLSXFile)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{xlsxSheetName}, f.GetSheetList())

	rows, err := f.GetRows(xlsxSheetName)
	require.NoError(t, err)
	require.Len(t, rows, table.Len()+1)
	assert.Equal(t, table.Columns, rows[0])

	assert.Equal(t, "2020", rows[1][0])
	assert.Equal(t, "000123", rows[1][1], "identifiers stay text")
	assert.Equal(t, "12.5", rows[2][4])
	assert.Equal(t, "b.csv", rows[3][5])
}

func TestEncodeXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeXLSX(&buf, sampleTable(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue(xlsxSheetName, "D2")
	require.NoError(t, err)
	assert.Equal(t, "José, \"Zé\"", value)
}
