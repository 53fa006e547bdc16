package bulk

import (
	"context"

	"github.com/google/uuid"
)

// ImportHistoryFilter narrows a history listing
type ImportHistoryFilter struct {
	Status   *ImportStatus
	Operator string
}

// ImportHistoryListResult is one page of histories, most recent first
type ImportHistoryListResult struct {
	Items      []*ImportHistory `json:"items"`
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// ImportHistoryRepository persists import histories
type ImportHistoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ImportHistory, error)
	FindAll(ctx context.Context, filter ImportHistoryFilter, page, pageSize int) (*ImportHistoryListResult, error)
	Save(ctx context.Context, history *ImportHistory) error

	// FailInterrupted marks every import still processing as failed. It is
	// called at startup, when no import can be running.
	FailInterrupted(ctx context.Context, reason string) (int64, error)
}
