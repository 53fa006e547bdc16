package importapp

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
	csvimport "github.com/stockledger/backend/internal/infrastructure/import"
)

// ErrUnknownWarehouse is returned when the requested warehouse is not in the file
var ErrUnknownWarehouse = errors.New("import: warehouse not present in file")

// NormalizeOptions controls Normalize
type NormalizeOptions struct {
	// Warehouse keeps only rows of this warehouse. Empty means auto-select.
	Warehouse string
}

// NormalizedRecord is one item ready for the ledger. Rows repeating an id
// are merged into one record with a quantity per voxel.
type NormalizedRecord struct {
	Sheet       string
	Line        int
	ID          string
	Quantity    int
	Warehouse   string
	VoxelID     string
	// Locations holds the quantity per voxel in file order. An empty voxel
	// id stands for the item's primary location.
	Locations   []ledger.LocationAllocation
	Make        string
	Model       string
	Description string
	Attributes  ledger.Attributes
	Channels    ledger.ChannelMappings
}

// NormalizeResult is the output of Normalize
type NormalizeResult struct {
	Records []NormalizedRecord
	// Warehouses lists the distinct warehouse values found, sorted
	Warehouses []string
	// SelectedWarehouse is the warehouse the records belong to, if any
	SelectedWarehouse string
	// RequiresWarehouseSelection is set when the file mixes warehouses and
	// no filter was given. Records is empty in that case.
	RequiresWarehouseSelection bool
	// Excluded counts rows dropped because they belong to another warehouse
	Excluded int
	// Skipped counts rows dropped for a missing id or a bad quantity
	Skipped int
	Errors  *csvimport.ErrorCollection
}

// Normalizer turns detected spreadsheet records into ledger records
type Normalizer struct {
	maxErrors int
	logger    *zap.Logger
}

// NewNormalizer creates a Normalizer keeping at most maxErrors row errors
func NewNormalizer(maxErrors int, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{maxErrors: maxErrors, logger: logger}
}

// Normalize selects the warehouse, validates each row and merges rows that
// repeat an id. Row problems are collected, never returned as an error.
func (n *Normalizer) Normalize(rows []csvimport.Record, opts NormalizeOptions) (*NormalizeResult, error) {
	result := &NormalizeResult{Errors: csvimport.NewErrorCollection(n.maxErrors)}
	result.Warehouses = distinctWarehouses(rows)

	selected := strings.TrimSpace(opts.Warehouse)
	switch {
	case selected != "":
		idx := slices.IndexFunc(result.Warehouses, func(w string) bool { return strings.EqualFold(w, selected) })
		if idx < 0 {
			return nil, ErrUnknownWarehouse
		}
		selected = result.Warehouses[idx]
	case len(result.Warehouses) > 1:
		result.RequiresWarehouseSelection = true
		return result, nil
	case len(result.Warehouses) == 1:
		selected = result.Warehouses[0]
	}
	result.SelectedWarehouse = selected

	index := make(map[string]int)
	for _, row := range rows {
		wh := strings.TrimSpace(row.Get(csvimport.FieldWarehouse))
		if !belongsTo(wh, selected, len(result.Warehouses)) {
			result.Excluded++
			continue
		}

		rec, ok := n.buildRecord(row, result.Errors)
		if !ok {
			result.Skipped++
			continue
		}
		rec.Warehouse = selected

		if i, dup := index[rec.ID]; dup {
			result.Records[i].merge(rec)
			continue
		}
		index[rec.ID] = len(result.Records)
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// merge adds a repeated row, summing quantities of the same voxel only
func (r *NormalizedRecord) merge(other NormalizedRecord) {
	r.Quantity += other.Quantity
	for _, loc := range other.Locations {
		idx := slices.IndexFunc(r.Locations, func(l ledger.LocationAllocation) bool { return l.VoxelID == loc.VoxelID })
		if idx < 0 {
			r.Locations = append(r.Locations, loc)
			continue
		}
		r.Locations[idx].Quantity += loc.Quantity
	}
}

// belongsTo keeps rows of the selected warehouse. Rows without a warehouse
// are kept only when the file names at most one warehouse.
func belongsTo(warehouse, selected string, distinct int) bool {
	if warehouse == "" {
		return distinct <= 1
	}
	return strings.EqualFold(warehouse, selected)
}

func (n *Normalizer) buildRecord(row csvimport.Record, errs *csvimport.ErrorCollection) (NormalizedRecord, bool) {
	id := ledger.NormalizeItemID(row.Get(csvimport.FieldID))
	if id == "" {
		n.logger.Warn("import row without item id dropped",
			zap.String("sheet", row.Sheet),
			zap.Int("line", row.Line),
		)
		addError(errs, row, csvimport.NewRowError(row.Line, string(csvimport.FieldID), csvimport.ErrCodeRequired, "item id is required"))
		return NormalizedRecord{}, false
	}

	qtyRaw := row.Get(csvimport.FieldQuantity)
	if strings.TrimSpace(qtyRaw) == "" {
		addError(errs, row, csvimport.NewRowError(row.Line, string(csvimport.FieldQuantity), csvimport.ErrCodeRequired, "quantity is required"))
		return NormalizedRecord{}, false
	}
	qty, ok := ParseQuantity(qtyRaw)
	if !ok {
		addError(errs, row, csvimport.NewRowErrorWithValue(row.Line, string(csvimport.FieldQuantity),
			csvimport.ErrCodeInvalidNumber, "expected a non-negative whole number", qtyRaw))
		return NormalizedRecord{}, false
	}

	derived := ledger.DeriveDisplayFields(id)
	voxel := ledger.NormalizeVoxelID(row.Get(csvimport.FieldVoxel))
	rec := NormalizedRecord{
		Sheet:       row.Sheet,
		Line:        row.Line,
		ID:          id,
		Quantity:    qty,
		VoxelID:     voxel,
		Locations:   []ledger.LocationAllocation{{VoxelID: voxel, Quantity: qty}},
		Make:        firstNonEmpty(row.Get(csvimport.FieldMake), derived.Make),
		Model:       firstNonEmpty(row.Get(csvimport.FieldModel), row.Get(csvimport.FieldName), derived.Model),
		Description: firstNonEmpty(row.Get(csvimport.FieldDescription), derived.Description),
		Attributes: ledger.Attributes{
			Size:    firstNonEmpty(row.Get(csvimport.FieldSize), derived.Attributes.Size),
			Season:  firstNonEmpty(row.Get(csvimport.FieldSeason), derived.Attributes.Season),
			Color:   firstNonEmpty(row.Get(csvimport.FieldColor), derived.Attributes.Color),
			Pattern: firstNonEmpty(row.Get(csvimport.FieldPattern), derived.Attributes.Pattern),
		},
	}

	if raw := row.Get(csvimport.FieldMinQuantity); raw != "" {
		if minQty, ok := ParseQuantity(raw); ok {
			rec.Attributes.MinQuantity = minQty
		} else {
			addError(errs, row, csvimport.NewRowErrorWithValue(row.Line, string(csvimport.FieldMinQuantity),
				csvimport.ErrCodeInvalidNumber, "expected a non-negative whole number", raw))
		}
	}

	for kind, channel := range channelSKUFields {
		if sku := row.Get(kind); sku != "" {
			if rec.Channels == nil {
				rec.Channels = ledger.ChannelMappings{}
			}
			rec.Channels[channel] = ledger.ChannelMapping{SKU: sku}
		}
	}
	return rec, true
}

var channelSKUFields = map[csvimport.FieldKind]integration.ChannelCode{
	csvimport.FieldWBSKU:   integration.ChannelWildberries,
	csvimport.FieldOzonSKU: integration.ChannelOzon,
	csvimport.FieldYMSKU:   integration.ChannelYandexMarket,
}

func addError(errs *csvimport.ErrorCollection, row csvimport.Record, e csvimport.RowError) {
	e.Sheet = row.Sheet
	errs.Add(e)
}

func distinctWarehouses(rows []csvimport.Record) []string {
	seen := make(map[string]string)
	for _, r := range rows {
		wh := strings.TrimSpace(r.Get(csvimport.FieldWarehouse))
		if wh == "" {
			continue
		}
		key := strings.ToLower(wh)
		if _, ok := seen[key]; !ok {
			seen[key] = wh
		}
	}
	out := make([]string, 0, len(seen))
	for _, wh := range seen {
		out = append(out, wh)
	}
	slices.Sort(out)
	return out
}

// ParseQuantity accepts whole numbers written with spaces or commas as
// thousand separators ("1 200", "1,000"), a decimal comma, or a trailing
// ".0". Blank input is not a quantity.
func ParseQuantity(raw string) (int, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return 0, false
	}
	if thousandsGrouped(s) {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// thousandsGrouped reports digits grouped by commas in threes, e.g. "12,345,678"
func thousandsGrouped(s string) bool {
	groups := strings.Split(s, ",")
	if len(groups) < 2 || len(groups[0]) == 0 || len(groups[0]) > 3 || !allDigits(groups[0]) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
