package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
)

// GormWebhookConfigRepository implements integration.WebhookConfigRepository
type GormWebhookConfigRepository struct {
	db *gorm.DB
}

// NewGormWebhookConfigRepository creates a new GormWebhookConfigRepository
func NewGormWebhookConfigRepository(db *gorm.DB) *GormWebhookConfigRepository {
	return &GormWebhookConfigRepository{db: db}
}

// FindByChannel returns the channel's config or shared.ErrNotFound
func (r *GormWebhookConfigRepository) FindByChannel(ctx context.Context, channel integration.ChannelCode) (*integration.WebhookConfig, error) {
	var model models.WebhookConfigModel
	if err := r.db.WithContext(ctx).Where("channel = ?", channel).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every stored config ordered by channel
func (r *GormWebhookConfigRepository) FindAll(ctx context.Context) ([]integration.WebhookConfig, error) {
	var rows []models.WebhookConfigModel
	if err := r.db.WithContext(ctx).Order("channel ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.WebhookConfig, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// Save creates or replaces the channel's config
func (r *GormWebhookConfigRepository) Save(ctx context.Context, cfg *integration.WebhookConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(models.WebhookConfigModelFromDomain(cfg)).Error
}

var _ integration.WebhookConfigRepository = (*GormWebhookConfigRepository)(nil)
