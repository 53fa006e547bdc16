// Package bulk records the audit trail of stock file imports.
package bulk

import (
	"fmt"
	"time"

	"github.com/stockledger/backend/internal/domain/shared"
)

// ImportStatus represents the status of an import run
type ImportStatus string

const (
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
	// ImportStatusCancelled marks a multi-warehouse file uploaded without a
	// warehouse selection. Nothing was imported.
	ImportStatusCancelled ImportStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusProcessing, ImportStatusCompleted, ImportStatusFailed, ImportStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed || s == ImportStatusCancelled
}

// ImportErrorDetail is a rejected row kept in the history
type ImportErrorDetail struct {
	Row     int    `json:"row"`
	Sheet   string `json:"sheet,omitempty"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ImportCounts are the row counters of a finished import
type ImportCounts struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Denied  int `json:"denied"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// ImportHistory is the audit record of one uploaded stock file
type ImportHistory struct {
	shared.BaseAggregateRoot
	FileName      string              `json:"file_name"`
	FileSize      int64               `json:"file_size"`
	Operator      string              `json:"operator"`
	Warehouse     string              `json:"warehouse,omitempty"`
	ConflictMode  string              `json:"conflict_mode"`
	Status        ImportStatus        `json:"status"`
	Counts        ImportCounts        `json:"counts"`
	ErrorDetails  []ImportErrorDetail `json:"error_details,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

// NewImportHistory opens a history record in the processing state
func NewImportHistory(fileName string, fileSize int64, operator, conflictMode string) (*ImportHistory, error) {
	if fileName == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "file name cannot be empty")
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "file size cannot be negative")
	}
	h := &ImportHistory{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FileName:          fileName,
		FileSize:          fileSize,
		Operator:          operator,
		ConflictMode:      conflictMode,
		Status:            ImportStatusProcessing,
		ErrorDetails:      make([]ImportErrorDetail, 0),
	}
	h.StartedAt = h.CreatedAt
	return h, nil
}

// Complete records the counters of a finished import. An import in which
// every row was rejected is recorded as failed.
func (h *ImportHistory) Complete(warehouse string, counts ImportCounts, errors []ImportErrorDetail) error {
	if err := h.finish(ImportStatusCompleted); err != nil {
		return err
	}
	if counts.Total > 0 && counts.Errors > 0 && counts.Created == 0 && counts.Updated == 0 && counts.Skipped == 0 {
		h.Status = ImportStatusFailed
		h.FailureReason = "every row was rejected"
	}
	h.Warehouse = warehouse
	h.Counts = counts
	if errors != nil {
		h.ErrorDetails = errors
	}
	return nil
}

// Fail records an import that stopped before any row was applied or partway
func (h *ImportHistory) Fail(reason string) error {
	if err := h.finish(ImportStatusFailed); err != nil {
		return err
	}
	h.FailureReason = reason
	return nil
}

// Cancel records a file that needs a warehouse selection
func (h *ImportHistory) Cancel(reason string) error {
	if err := h.finish(ImportStatusCancelled); err != nil {
		return err
	}
	h.FailureReason = reason
	return nil
}

func (h *ImportHistory) finish(status ImportStatus) error {
	if h.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("import already %s", h.Status))
	}
	now := time.Now()
	h.Status = status
	h.CompletedAt = &now
	h.UpdatedAt = now
	h.IncrementVersion()
	return nil
}

// HasErrors returns true if any row was rejected
func (h *ImportHistory) HasErrors() bool {
	return h.Counts.Errors > 0 || len(h.ErrorDetails) > 0
}

// SuccessRate returns the share of rows that created or updated an item (0-100)
func (h *ImportHistory) SuccessRate() float64 {
	if h.Counts.Total == 0 {
		return 0
	}
	return float64(h.Counts.Created+h.Counts.Updated) / float64(h.Counts.Total) * 100
}

// Duration returns how long the import ran, or has been running
func (h *ImportHistory) Duration() time.Duration {
	if h.CompletedAt == nil {
		return time.Since(h.StartedAt)
	}
	return h.CompletedAt.Sub(h.StartedAt)
}
