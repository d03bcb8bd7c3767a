// Package ingest reads tariffing and recharge exports — CSV or XLSX —
// into raw row maps for correlation.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/macroplay/insights/normalize"
)

// ============================================================================
// SPREADSHEET INGESTION
// ============================================================================
// Cell values that parse as numbers are kept as float64 rather than
// text. That is what lets Excel serial dates survive the trip into the
// date parser, and the numeric formatter renders MSISDNs back without
// exponent notation.
// ============================================================================

var (
	ErrEmptyFile         = errors.New("file contains no data rows")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ReadFile loads a spreadsheet from disk, dispatching on extension.
func ReadFile(path string) ([]normalize.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read parses spreadsheet content. The filename only supplies the
// extension: .csv, .xlsx and .xls are accepted.
func Read(r io.Reader, filename string) ([]normalize.RawRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx", ".xls":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// ReadCSV parses CSV content into raw rows keyed by header name.
func ReadCSV(r io.Reader) ([]normalize.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []normalize.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		if row, ok := buildRow(headers, record); ok {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// ReadXLSX parses the first sheet of a workbook into raw rows.
func ReadXLSX(r io.Reader) ([]normalize.RawRow, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	cells, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(cells) < 2 {
		return nil, ErrEmptyFile
	}

	headers := cells[0]
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []normalize.RawRow
	for _, record := range cells[1:] {
		if row, ok := buildRow(headers, record); ok {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// buildRow maps one record onto the headers, coercing numeric-looking
// cells. Rows with no non-empty cell are dropped.
func buildRow(headers, record []string) (normalize.RawRow, bool) {
	row := make(normalize.RawRow, len(headers))
	hasValue := false

	for i, header := range headers {
		if header == "" {
			continue
		}
		var val string
		if i < len(record) {
			val = strings.TrimSpace(record[i])
		}
		if val == "" {
			row[header] = ""
			continue
		}
		hasValue = true
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			row[header] = f
		} else {
			row[header] = val
		}
	}
	return row, hasValue
}
