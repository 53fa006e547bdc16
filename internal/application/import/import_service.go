package importapp

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ledgerapp "github.com/stockledger/backend/internal/application/ledger"
	"github.com/stockledger/backend/internal/domain/bulk"
	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/shared"
	csvimport "github.com/stockledger/backend/internal/infrastructure/import"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
)

// ConflictMode defines how rows for existing items are handled
type ConflictMode string

const (
	// ConflictModeUpdate sets the quantity of existing items
	ConflictModeUpdate ConflictMode = "update"
	// ConflictModeSkip only creates new items
	ConflictModeSkip ConflictMode = "skip"
)

// IsValid checks if the conflict mode is valid
func (c ConflictMode) IsValid() bool {
	switch c {
	case ConflictModeUpdate, ConflictModeSkip:
		return true
	}
	return false
}

// StockUpserter is the ledger entry point used by imports
type StockUpserter interface {
	UpsertImported(ctx context.Context, input ledgerapp.UpsertItemInput) (*ledgerapp.UpsertResult, error)
}

// ImportRecorder receives per-import counters
type ImportRecorder interface {
	RecordImport(ctx context.Context, created, updated, denied, skipped int)
}

// Config tunes StockImportService
type Config struct {
	BatchSize      int
	HeaderScanRows int
	MinHeaderScore int
	MaxErrors      int
	// ChannelWarehouses are the default channel warehouse ids for new items
	ChannelWarehouses map[integration.ChannelCode]string
}

// DefaultConfig returns batches of 20, a 50-row header scan and a score of 2
func DefaultConfig() Config {
	return Config{BatchSize: 20, HeaderScanRows: 50, MinHeaderScore: 2, MaxErrors: 100}
}

// ImportInput is one uploaded stock file
type ImportInput struct {
	Operator     shared.Operator
	Filename     string
	Size         int64
	Reader       io.Reader
	Warehouse    string
	ConflictMode ConflictMode
}

// BatchResult holds the counters of one batch
type BatchResult struct {
	Index   int `json:"index"`
	Size    int `json:"size"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Denied  int `json:"denied"`
	Skipped int `json:"skipped"`
}

// ImportResult reports a finished import
type ImportResult struct {
	Sheet                      string               `json:"sheet,omitempty"`
	HeaderRow                  int                  `json:"header_row"`
	TotalRows                  int                  `json:"total_rows"`
	Created                    int                  `json:"created"`
	Updated                    int                  `json:"updated"`
	Denied                     int                  `json:"denied"`
	Skipped                    int                  `json:"skipped"`
	Excluded                   int                  `json:"excluded"`
	Batches                    []BatchResult        `json:"batches"`
	Errors                     []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated                bool                 `json:"is_truncated,omitempty"`
	TotalErrors                int                  `json:"total_errors,omitempty"`
	Warehouses                 []string             `json:"warehouses,omitempty"`
	SelectedWarehouse          string               `json:"selected_warehouse,omitempty"`
	RequiresWarehouseSelection bool                 `json:"requires_warehouse_selection"`
	HistoryID                  *uuid.UUID           `json:"history_id,omitempty"`
	ChangedItemIDs             []string             `json:"-"`
}

// StockImportService loads stock spreadsheets into the ledger
type StockImportService struct {
	upserter    StockUpserter
	normalizer  *Normalizer
	config      Config
	logger      *zap.Logger
	syncTrigger ledgerapp.StockSyncTrigger
	recorder    ImportRecorder
	history     bulk.ImportHistoryRepository
}

// NewStockImportService creates a new StockImportService
func NewStockImportService(upserter StockUpserter, cfg Config, logger *zap.Logger) *StockImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.HeaderScanRows <= 0 {
		cfg.HeaderScanRows = def.HeaderScanRows
	}
	if cfg.MinHeaderScore <= 0 {
		cfg.MinHeaderScore = def.MinHeaderScore
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	return &StockImportService{
		upserter:   upserter,
		normalizer: NewNormalizer(cfg.MaxErrors, logger),
		config:     cfg,
		logger:     logger,
	}
}

// SetSyncTrigger pushes changed items to the marketplaces after an import
func (s *StockImportService) SetSyncTrigger(trigger ledgerapp.StockSyncTrigger) {
	s.syncTrigger = trigger
}

// SetRecorder sets the metrics recorder
func (s *StockImportService) SetRecorder(recorder ImportRecorder) {
	s.recorder = recorder
}

// Import parses, normalizes and upserts a stock file. Only admins may import.
// Every accepted upload leaves an import history record when a history
// repository is set.
func (s *StockImportService) Import(ctx context.Context, input ImportInput) (*ImportResult, error) {
	if !input.Operator.Admin {
		s.logger.Warn("stock import denied",
			zap.String("operator_id", input.Operator.ID),
			zap.String("filename", input.Filename),
		)
		return nil, shared.NewDomainError(shared.CodeForbidden, "only admins can import stock")
	}
	mode := input.ConflictMode
	if mode == "" {
		mode = ConflictModeUpdate
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "invalid conflict mode")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "import", "stock",
		telemetry.WithAttribute(telemetry.SpanAttrOperator, input.Operator.DisplayName()),
		telemetry.WithAttribute(telemetry.SpanAttrFormat, strings.TrimPrefix(strings.ToLower(filepath.Ext(input.Filename)), ".")),
	)
	defer span.End()

	history := s.openHistory(ctx, input, mode)
	result, err := s.run(ctx, input, mode)
	s.closeHistory(ctx, history, result, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrRows, result.TotalRows, "denied", result.Denied)
	if history != nil {
		id := history.ID
		result.HistoryID = &id
	}
	if result.RequiresWarehouseSelection {
		return result, nil
	}

	s.logger.Info("stock import finished",
		zap.String("operator_id", input.Operator.ID),
		zap.String("filename", input.Filename),
		zap.String("warehouse", result.SelectedWarehouse),
		zap.Int("rows", result.TotalRows),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("denied", result.Denied),
		zap.Int("skipped", result.Skipped),
	)
	if s.recorder != nil {
		s.recorder.RecordImport(ctx, result.Created, result.Updated, result.Denied, result.Skipped)
	}
	if s.syncTrigger != nil && len(result.ChangedItemIDs) > 0 {
		s.syncTrigger.TriggerSync(ctx, result.ChangedItemIDs)
	}
	return result, nil
}

func (s *StockImportService) run(ctx context.Context, input ImportInput, mode ConflictMode) (*ImportResult, error) {
	tables, err := s.tokenize(input.Filename, input.Reader)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "cannot read import file", err)
	}

	header, err := csvimport.DetectHeader(tables, csvimport.HeaderDetectOptions{
		ScanRows: s.config.HeaderScanRows,
		MinScore: s.config.MinHeaderScore,
	})
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "cannot find a header row", err)
	}
	if !header.Has(csvimport.FieldID) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "the header has no item id column")
	}
	if !header.Has(csvimport.FieldQuantity) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "the header has no quantity column")
	}

	records := header.Records()
	normalized, err := s.normalizer.Normalize(records, NormalizeOptions{Warehouse: input.Warehouse})
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "invalid warehouse selection", err)
	}

	result := &ImportResult{
		Sheet:                      header.Table.Name,
		HeaderRow:                  header.Row + 1,
		TotalRows:                  len(records),
		Warehouses:                 normalized.Warehouses,
		SelectedWarehouse:          normalized.SelectedWarehouse,
		RequiresWarehouseSelection: normalized.RequiresWarehouseSelection,
		Excluded:                   normalized.Excluded,
		Skipped:                    normalized.Skipped,
		Batches:                    []BatchResult{},
	}
	if normalized.RequiresWarehouseSelection {
		return result, nil
	}

	errs := normalized.Errors
	for start := 0; start < len(normalized.Records); start += s.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.config.BatchSize, len(normalized.Records))
		batch := s.runBatch(ctx, len(result.Batches), normalized.Records[start:end], mode, errs, result)
		result.Batches = append(result.Batches, batch)
		result.Created += batch.Created
		result.Updated += batch.Updated
		result.Denied += batch.Denied
		result.Skipped += batch.Skipped
	}

	result.Errors = errs.Errors()
	result.IsTruncated = errs.IsTruncated()
	result.TotalErrors = errs.TotalCount()
	return result, nil
}

func (s *StockImportService) runBatch(
	ctx context.Context,
	index int,
	records []NormalizedRecord,
	mode ConflictMode,
	errs *csvimport.ErrorCollection,
	result *ImportResult,
) BatchResult {
	batch := BatchResult{Index: index, Size: len(records)}
	for _, rec := range records {
		res, err := s.upserter.UpsertImported(ctx, ledgerapp.UpsertItemInput{
			ID:                rec.ID,
			Quantity:          rec.Quantity,
			VoxelID:           rec.VoxelID,
			Locations:         rec.Locations,
			Make:              rec.Make,
			Model:             rec.Model,
			Description:       rec.Description,
			Attributes:        rec.Attributes,
			Channels:          rec.Channels,
			ChannelWarehouses: s.config.ChannelWarehouses,
			CreateOnly:        mode == ConflictModeSkip,
		})
		if err != nil {
			batch.Denied++
			e := csvimport.NewRowErrorWithValue(rec.Line, "", csvimport.ErrCodeUpsertFailed, upsertMessage(err), rec.ID)
			e.Sheet = rec.Sheet
			errs.Add(e)
			continue
		}
		switch {
		case res.Created:
			batch.Created++
		case res.Changed:
			batch.Updated++
		default:
			batch.Skipped++
			continue
		}
		result.ChangedItemIDs = append(result.ChangedItemIDs, res.ItemID)
	}
	return batch
}

func upsertMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// tokenize picks the reader by file extension
func (s *StockImportService) tokenize(filename string, r io.Reader) ([]*csvimport.Table, error) {
	if r == nil {
		return nil, csvimport.ErrEmptyFile
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		table, err := csvimport.ParseTable(r)
		if err != nil {
			return nil, err
		}
		table.Name = filename
		return []*csvimport.Table{table}, nil
	case ".xlsx", ".xlsm":
		return csvimport.NewXLSXReader().ReadWorkbook(r)
	default:
		return nil, csvimport.ErrUnsupportedFormat
	}
}
