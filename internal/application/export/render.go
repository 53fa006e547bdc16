package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is the file format of an export
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat defaults to CSV
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Sheet is a header plus rows of cells
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Rendered is an export ready to be sent or archived
type Rendered struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Render encodes the sheet in the requested format
func Render(sheet Sheet, format Format, basename string) (*Rendered, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data = renderCSV(sheet)
	case FormatXLSX:
		data, err = renderXLSX(sheet)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return &Rendered{
		Filename:    basename + "." + string(format),
		ContentType: format.ContentType(),
		Data:        data,
		Rows:        len(sheet.Rows),
	}, nil
}

// renderCSV writes UTF-8 with a BOM, comma separated, every field quoted
func renderCSV(sheet Sheet) []byte {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	writeCSVLine(&buf, sheet.Header)
	for _, row := range sheet.Rows {
		writeCSVLine(&buf, row)
	}
	return buf.Bytes()
}

func writeCSVLine(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

func renderXLSX(sheet Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := sheet.Name
	if name == "" {
		name = "Sheet1"
	}
	if name != "Sheet1" {
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return nil, fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	header := make([]any, len(sheet.Header))
	for i, h := range sheet.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for r, row := range sheet.Rows {
		cells := make([]any, len(row))
		for i, c := range row {
			// Numbers stay numeric so the sheet can be summed
			if n, err := strconv.Atoi(c); err == nil {
				cells[i] = n
			} else {
				cells[i] = c
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
