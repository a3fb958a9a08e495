package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codes.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "cod,denumire\nC100,Steel Pipe 10mm\nC200,Copper Wire 2mm\n")
	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "C100", entries[0].Code)
	require.Equal(t, "Steel Pipe 10mm", entries[0].Description)
	require.Equal(t, "C200", entries[1].Code)
}

func TestLoadCSVNumericCodesStayNumeric(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "cod,denumire\n1001,Steel Pipe 10mm\n20.5,Odd Code\n")
	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, json.Number("1001"), entries[0].Code)
	require.Equal(t, json.Number("20.5"), entries[1].Code)
	require.Equal(t, "1001", CodeString(entries[0].Code))
}

func TestLoadCSVTooFewColumns(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "onlycolumn\nC100\n")
	_, err := LoadFile(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadCSVEmpty(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "")
	_, err := LoadFile(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadCSVSkipsBlankRows(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "cod,denumire\nC100,Steel Pipe 10mm\n,\n")
	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "codes.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "cod"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "denumire"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "C100"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "Steel Pipe 10mm"))
	require.NoError(t, f.SetCellValue(sheet, "A3", 1001))
	require.NoError(t, f.SetCellValue(sheet, "B3", "Copper Wire 2mm"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "C100", entries[0].Code)
	require.Equal(t, json.Number("1001"), entries[1].Code)
	require.Equal(t, "Copper Wire 2mm", entries[1].Description)
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
}
