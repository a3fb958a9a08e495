// Package catalog loads the reference code catalog from spreadsheet data.
package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Code is the standardized code of a catalog row. The original scalar type of
// the cell is preserved: numeric cells stay json.Number, everything else is a
// string. Codes round-trip through JSON artifacts unchanged.
type Code any

// Entry is one catalog row: first column = code, second column = description.
type Entry struct {
	Code        Code
	Description string
}

// ConfigError reports an unusable catalog shape.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("catalog %s: %s", e.Source, e.Reason)
}

// LoadFile reads the catalog at path. Extension selects the format: .xlsx/.xlsm
// are read via excelize, anything else as CSV. The first row is a header and
// is skipped; the sheet must have at least two columns.
func LoadFile(path string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadXLSX(path)
	default:
		return loadCSV(path)
	}
}

func loadXLSX(path string) ([]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ConfigError{Source: path, Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return fromRows(path, rows)
}

func loadCSV(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return fromRows(path, rows)
}

func fromRows(source string, rows [][]string) ([]Entry, error) {
	if len(rows) == 0 || len(rows[0]) < 2 {
		return nil, &ConfigError{Source: source, Reason: "needs at least two columns (code and description)"}
	}
	entries := make([]Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		code := ""
		if len(row) > 0 {
			code = strings.TrimSpace(row[0])
		}
		desc := ""
		if len(row) > 1 {
			desc = strings.TrimSpace(row[1])
		}
		if code == "" && desc == "" {
			continue
		}
		entries = append(entries, Entry{Code: codeValue(code), Description: desc})
	}
	return entries, nil
}

// codeValue keeps numeric-looking cells numeric, mirroring how the reference
// spreadsheets present plain number codes.
func codeValue(cell string) Code {
	if cell == "" {
		return ""
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return json.Number(cell)
	}
	return cell
}

// CodeString renders a code for display and comparison.
func CodeString(c Code) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
