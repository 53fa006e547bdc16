package importapp

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/bulk"
	"github.com/stockledger/backend/internal/domain/shared"
	csvimport "github.com/stockledger/backend/internal/infrastructure/import"
)

// InterruptedReason is recorded on imports that were running when the
// process stopped
const InterruptedReason = "interrupted by a server restart"

// HistoryQuery filters the import history listing
type HistoryQuery struct {
	Status   string
	Operator string
	Page     int
	PageSize int
}

// SetHistory enables the import audit trail
func (s *StockImportService) SetHistory(repo bulk.ImportHistoryRepository) {
	s.history = repo
}

// RecoverInterrupted fails the imports left processing by a previous run
func (s *StockImportService) RecoverInterrupted(ctx context.Context) (int64, error) {
	if s.history == nil {
		return 0, nil
	}
	n, err := s.history.FailInterrupted(ctx, InterruptedReason)
	if err != nil {
		return 0, shared.WrapDomainError(shared.CodePersistence, "failed to recover interrupted imports", err)
	}
	if n > 0 {
		s.logger.Warn("marked interrupted imports as failed", zap.Int64("count", n))
	}
	return n, nil
}

// ListHistory returns a page of import histories, most recent first
func (s *StockImportService) ListHistory(ctx context.Context, q HistoryQuery) (*bulk.ImportHistoryListResult, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if s.history == nil {
		return &bulk.ImportHistoryListResult{Items: []*bulk.ImportHistory{}, Page: q.Page, PageSize: q.PageSize}, nil
	}

	filter := bulk.ImportHistoryFilter{Operator: q.Operator}
	if q.Status != "" {
		status := bulk.ImportStatus(q.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "invalid import status")
		}
		filter.Status = &status
	}
	list, err := s.history.FindAll(ctx, filter, q.Page, q.PageSize)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "failed to list import history", err)
	}
	return list, nil
}

// GetHistory returns one import history
func (s *StockImportService) GetHistory(ctx context.Context, id uuid.UUID) (*bulk.ImportHistory, error) {
	if s.history == nil {
		return nil, shared.ErrNotFound
	}
	h, err := s.history.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "import not found")
		}
		return nil, shared.WrapDomainError(shared.CodePersistence, "failed to load import history", err)
	}
	return h, nil
}

// openHistory records the start of an import. A history that cannot be
// written is logged and never blocks the import.
func (s *StockImportService) openHistory(ctx context.Context, input ImportInput, mode ConflictMode) *bulk.ImportHistory {
	if s.history == nil {
		return nil
	}
	h, err := bulk.NewImportHistory(input.Filename, input.Size, input.Operator.DisplayName(), string(mode))
	if err == nil {
		err = s.history.Save(ctx, h)
	}
	if err != nil {
		s.logger.Warn("import history not recorded", zap.String("filename", input.Filename), zap.Error(err))
		return nil
	}
	return h
}

func (s *StockImportService) closeHistory(ctx context.Context, h *bulk.ImportHistory, result *ImportResult, runErr error) {
	if h == nil {
		return
	}
	var err error
	switch {
	case runErr != nil:
		err = h.Fail(upsertMessage(runErr))
	case result.RequiresWarehouseSelection:
		err = h.Cancel("warehouse selection required")
	default:
		err = h.Complete(result.SelectedWarehouse, bulk.ImportCounts{
			Total:   result.TotalRows,
			Created: result.Created,
			Updated: result.Updated,
			Denied:  result.Denied,
			Skipped: result.Skipped,
			Errors:  result.TotalErrors,
		}, historyErrors(result.Errors))
	}
	if err == nil {
		// the upload request may already be cancelled
		err = s.history.Save(context.WithoutCancel(ctx), h)
	}
	if err != nil {
		s.logger.Warn("import history not updated", zap.String("import_id", h.ID.String()), zap.Error(err))
	}
}

func historyErrors(errs []csvimport.RowError) []bulk.ImportErrorDetail {
	out := make([]bulk.ImportErrorDetail, 0, len(errs))
	for _, e := range errs {
		out = append(out, bulk.ImportErrorDetail{
			Row:     e.Row,
			Sheet:   e.Sheet,
			Column:  e.Column,
			Code:    e.Code,
			Message: e.Message,
			Value:   e.Value,
		})
	}
	return out
}
