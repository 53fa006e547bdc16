package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/bulk"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
)

// GormImportHistoryRepository implements bulk.ImportHistoryRepository using GORM
type GormImportHistoryRepository struct {
	db *gorm.DB
}

// NewGormImportHistoryRepository creates a new GormImportHistoryRepository
func NewGormImportHistoryRepository(db *gorm.DB) *GormImportHistoryRepository {
	return &GormImportHistoryRepository{db: db}
}

// FindByID finds an import history by ID
func (r *GormImportHistoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*bulk.ImportHistory, error) {
	var model models.ImportHistoryModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of histories, most recent first
func (r *GormImportHistoryRepository) FindAll(
	ctx context.Context,
	filter bulk.ImportHistoryFilter,
	page, pageSize int,
) (*bulk.ImportHistoryListResult, error) {
	query := r.db.WithContext(ctx).Model(&models.ImportHistoryModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Operator != "" {
		query = query.Where("operator = ?", filter.Operator)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var rows []models.ImportHistoryModel
	if err := query.Order("started_at DESC").Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	histories := make([]*bulk.ImportHistory, len(rows))
	for i := range rows {
		histories[i] = rows[i].ToDomain()
	}
	return &bulk.ImportHistoryListResult{
		Items:      histories,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Save saves an import history (create or update)
func (r *GormImportHistoryRepository) Save(ctx context.Context, history *bulk.ImportHistory) error {
	return r.db.WithContext(ctx).Save(models.ImportHistoryModelFromDomain(history)).Error
}

// FailInterrupted marks every import still processing as failed
func (r *GormImportHistoryRepository) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ImportHistoryModel{}).
		Where("status = ?", bulk.ImportStatusProcessing).
		Updates(map[string]any{
			"status":         bulk.ImportStatusFailed,
			"failure_reason": reason,
			"completed_at":   now,
			"updated_at":     now,
			"version":        gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

var _ bulk.ImportHistoryRepository = (*GormImportHistoryRepository)(nil)
