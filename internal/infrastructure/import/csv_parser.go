package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Table is one grid of raw cells: a CSV file or one workbook sheet
type Table struct {
	Name string
	Rows [][]string
}

// Cell returns the trimmed cell at row/col, or "" when out of range
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// CSVParser tokenizes CSV input into a Table
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	trimSpace  bool
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter fixes the field delimiter. Without it the delimiter is
// detected from the first lines.
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithTrimSpace enables trimming of leading/trailing spaces from fields
func WithTrimSpace(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimSpace = trim
	}
}

// NewCSVParser creates a new CSV parser
func NewCSVParser(opts ...ParserOption) *CSVParser {
	p := &CSVParser{
		lazyQuotes: true,
		trimSpace:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const sniffSize = 8192

// ParseTable reads the whole input. A UTF-8 BOM is stripped and the
// content must be valid UTF-8.
func (p *CSVParser) ParseTable(r io.Reader) (*Table, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, ErrEmptyFile
	}
	if !validUTF8Prefix(head) {
		return nil, ErrInvalidEncoding
	}

	delimiter := p.delimiter
	if delimiter == 0 {
		delimiter = DetectDelimiter(head)
	}

	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.LazyQuotes = p.lazyQuotes
	reader.TrimLeadingSpace = p.trimSpace
	reader.FieldsPerRecord = -1

	table := &Table{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", len(table.Rows)+1, err)
		}
		if !utf8.ValidString(strings.Join(record, "")) {
			return nil, ErrInvalidEncoding
		}
		if p.trimSpace {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// ParseTable parses CSV input with default options
func ParseTable(r io.Reader) (*Table, error) {
	return NewCSVParser().ParseTable(r)
}

// DetectDelimiter picks the most frequent of comma, semicolon and tab
// outside quotes over the first few lines. Comma wins ties.
func DetectDelimiter(sample []byte) rune {
	candidates := []rune{',', ';', '\t'}
	counts := make(map[rune]int, len(candidates))

	lines := 0
	inQuotes := false
	for _, r := range string(sample) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '\n' && !inQuotes:
			lines++
		case !inQuotes:
			counts[r]++
		}
		if lines >= 5 {
			break
		}
	}

	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// validUTF8Prefix allows a multi-byte rune cut off at the end of the sample
func validUTF8Prefix(b []byte) bool {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return true
		}
		b = b[:len(b)-1]
	}
	return utf8.Valid(b)
}
