package csvimport

// HeaderDetectOptions tunes DetectHeader
type HeaderDetectOptions struct {
	// ScanRows is how many leading rows of each table are considered
	ScanRows int
	// MinScore is the minimum number of recognized columns
	MinScore int
}

// DefaultHeaderDetectOptions scans 50 rows and needs 2 recognized columns
func DefaultHeaderDetectOptions() HeaderDetectOptions {
	return HeaderDetectOptions{ScanRows: 50, MinScore: 2}
}

// Header is the detected header row of one table
type Header struct {
	Table      *Table
	TableIndex int
	// Row is the zero-based index of the header row in Table.Rows
	Row    int
	Score  int
	Fields []Field
}

// Has reports whether a column of the given kind was found
func (h *Header) Has(kind FieldKind) bool {
	for _, f := range h.Fields {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// DetectHeader finds the row that best looks like a header across all
// tables. The score of a row is the number of distinct known fields it
// names. The earliest table and row win ties.
func DetectHeader(tables []*Table, opts HeaderDetectOptions) (*Header, error) {
	if opts.ScanRows <= 0 {
		opts.ScanRows = 50
	}
	if opts.MinScore <= 0 {
		opts.MinScore = 2
	}

	var best *Header
	for ti, table := range tables {
		if table == nil {
			continue
		}
		limit := min(opts.ScanRows, len(table.Rows))
		for ri := range limit {
			fields, score := classifyRow(table.Rows[ri])
			if best == nil || score > best.Score {
				best = &Header{Table: table, TableIndex: ti, Row: ri, Score: score, Fields: fields}
			}
		}
	}
	if best == nil || best.Score < opts.MinScore {
		return nil, ErrHeaderNotFound
	}
	return best, nil
}

func classifyRow(cells []string) ([]Field, int) {
	fields := make([]Field, len(cells))
	seen := make(map[FieldKind]bool)
	for i, c := range cells {
		f := ClassifyHeader(c)
		fields[i] = f
		if f.IsKnown() {
			seen[f.Kind] = true
		}
	}
	return fields, len(seen)
}

// Record is one data row keyed by field kind
type Record struct {
	Sheet string
	// Line is the 1-based row number in the source table
	Line   int
	Values map[FieldKind]string
	// Extra holds unrecognized columns by normalized header
	Extra map[string]string
}

// Get returns the value of a field, or ""
func (r Record) Get(kind FieldKind) string {
	return r.Values[kind]
}

// Records returns the non-empty rows below the header. When a kind
// appears in several columns the first non-empty cell wins.
func (h *Header) Records() []Record {
	var out []Record
	for ri := h.Row + 1; ri < len(h.Table.Rows); ri++ {
		rec := Record{
			Sheet:  h.Table.Name,
			Line:   ri + 1,
			Values: make(map[FieldKind]string),
		}
		empty := true
		for ci, f := range h.Fields {
			v := h.Table.Cell(ri, ci)
			if v == "" {
				continue
			}
			empty = false
			if !f.IsKnown() {
				if f.Name == "" {
					continue
				}
				if rec.Extra == nil {
					rec.Extra = make(map[string]string)
				}
				rec.Extra[f.Name] = v
				continue
			}
			if _, ok := rec.Values[f.Kind]; !ok {
				rec.Values[f.Kind] = v
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}
