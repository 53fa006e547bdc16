package models

import (
	"time"

	"github.com/stockledger/backend/internal/domain/bulk"
)

// ImportHistoryModel is the persistence model for the ImportHistory entity
type ImportHistoryModel struct {
	AggregateModel
	FileName      string                   `gorm:"type:varchar(255);not null"`
	FileSize      int64                    `gorm:"not null;default:0"`
	Operator      string                   `gorm:"type:varchar(255);index"`
	Warehouse     string                   `gorm:"type:varchar(255)"`
	ConflictMode  string                   `gorm:"type:varchar(20);not null;default:'update'"`
	Status        bulk.ImportStatus        `gorm:"type:varchar(20);not null;index"`
	TotalRows     int                      `gorm:"not null;default:0"`
	CreatedRows   int                      `gorm:"not null;default:0"`
	UpdatedRows   int                      `gorm:"not null;default:0"`
	DeniedRows    int                      `gorm:"not null;default:0"`
	SkippedRows   int                      `gorm:"not null;default:0"`
	ErrorRows     int                      `gorm:"not null;default:0"`
	ErrorDetails  []bulk.ImportErrorDetail `gorm:"type:text;serializer:json"`
	FailureReason string                   `gorm:"type:text"`
	StartedAt     time.Time                `gorm:"not null;index"`
	CompletedAt   *time.Time
}

// TableName returns the table name for GORM
func (ImportHistoryModel) TableName() string {
	return "import_histories"
}

// ToDomain converts the persistence model to a domain ImportHistory
func (m *ImportHistoryModel) ToDomain() *bulk.ImportHistory {
	details := m.ErrorDetails
	if details == nil {
		details = make([]bulk.ImportErrorDetail, 0)
	}
	return &bulk.ImportHistory{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		FileName:          m.FileName,
		FileSize:          m.FileSize,
		Operator:          m.Operator,
		Warehouse:         m.Warehouse,
		ConflictMode:      m.ConflictMode,
		Status:            m.Status,
		Counts: bulk.ImportCounts{
			Total:   m.TotalRows,
			Created: m.CreatedRows,
			Updated: m.UpdatedRows,
			Denied:  m.DeniedRows,
			Skipped: m.SkippedRows,
			Errors:  m.ErrorRows,
		},
		ErrorDetails:  details,
		FailureReason: m.FailureReason,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain ImportHistory
func (m *ImportHistoryModel) FromDomain(h *bulk.ImportHistory) {
	m.FromDomainAggregateRoot(h.BaseAggregateRoot)
	m.FileName = h.FileName
	m.FileSize = h.FileSize
	m.Operator = h.Operator
	m.Warehouse = h.Warehouse
	m.ConflictMode = h.ConflictMode
	m.Status = h.Status
	m.TotalRows = h.Counts.Total
	m.CreatedRows = h.Counts.Created
	m.UpdatedRows = h.Counts.Updated
	m.DeniedRows = h.Counts.Denied
	m.SkippedRows = h.Counts.Skipped
	m.ErrorRows = h.Counts.Errors
	m.ErrorDetails = h.ErrorDetails
	m.FailureReason = h.FailureReason
	m.StartedAt = h.StartedAt
	m.CompletedAt = h.CompletedAt
}

// ImportHistoryModelFromDomain creates a persistence model from a domain ImportHistory
func ImportHistoryModelFromDomain(h *bulk.ImportHistory) *ImportHistoryModel {
	m := &ImportHistoryModel{}
	m.FromDomain(h)
	return m
}
