package csvimport

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXReader tokenizes a workbook into one Table per sheet
type XLSXReader struct {
	// MaxRows caps rows read per sheet; 0 reads everything
	MaxRows int
}

// NewXLSXReader creates a new XLSXReader
func NewXLSXReader() *XLSXReader {
	return &XLSXReader{}
}

// ReadWorkbook opens the workbook and returns its sheets in workbook order.
// Sheets without any non-empty cell are skipped.
func (x *XLSXReader) ReadWorkbook(r io.Reader) ([]*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var tables []*Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		if x.MaxRows > 0 && len(rows) > x.MaxRows {
			rows = rows[:x.MaxRows]
		}
		if !hasContent(rows) {
			continue
		}
		for _, row := range rows {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		tables = append(tables, &Table{Name: sheet, Rows: rows})
	}
	if len(tables) == 0 {
		return nil, ErrEmptyFile
	}
	return tables, nil
}

func hasContent(rows [][]string) bool {
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				return true
			}
		}
	}
	return false
}
