// Package spreadsheet checks roster workbooks before they are uploaded.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RosterHeaders are the columns the backend importer reads.
var RosterHeaders = []string{"Name", "Email", "Phone", "Course", "Batch"}

var (
	ErrUnreadable = errors.New("spreadsheet: file is not a readable workbook")
	ErrNoSheet    = errors.New("spreadsheet: no worksheet found")
	ErrEmpty      = errors.New("spreadsheet: worksheet is empty")
)

// MissingColumnsError lists required headers absent from the first row.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "spreadsheet: missing columns: " + strings.Join(e.Columns, ", ")
}

// Summary describes a roster workbook that passed the checks.
type Summary struct {
	Sheet   string   `json:"sheet"`
	Headers []string `json:"headers"`
	Rows    int      `json:"rows"`
}

// InspectRoster opens data as an xlsx workbook and verifies that its first
// sheet starts with the roster headers. Rows counts the non-blank data rows.
func InspectRoster(data []byte) (*Summary, error) {
	rows, sheet, err := readFirstSheet(data)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(rows[0]))
	headers := make([]string, 0, len(rows[0]))
	for _, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		headers = append(headers, h)
		present[normalizeHeader(h)] = true
	}
	var missing []string
	for _, want := range RosterHeaders {
		if !present[normalizeHeader(want)] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	n := 0
	for _, row := range rows[1:] {
		if !blank(row) {
			n++
		}
	}
	return &Summary{Sheet: sheet, Headers: headers, Rows: n}, nil
}

func readFirstSheet(data []byte) ([][]string, string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, "", ErrNoSheet
	}
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("spreadsheet: read %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, "", ErrEmpty
	}
	return rows, sheet, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
