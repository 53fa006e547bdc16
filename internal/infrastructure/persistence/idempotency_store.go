package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
)

// GormIdempotencyStore implements shared.IdempotencyStore on the
// processed_keys table. It is shared across instances like the Redis store
// but survives a Redis flush.
type GormIdempotencyStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormIdempotencyStore creates a new GormIdempotencyStore
func NewGormIdempotencyStore(db *gorm.DB) *GormIdempotencyStore {
	return &GormIdempotencyStore{db: db, now: time.Now}
}

// MarkProcessed marks key as processed. It returns false if the key was
// already marked and has not expired.
func (s *GormIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("idempotency_key = ? AND expires_at <= ?", key, now).Delete(&models.ProcessedKeyModel{}).Error; err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ProcessedKeyModel{
			Key:       key,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		})
		if result.Error != nil {
			return result.Error
		}
		inserted = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// IsProcessed reports whether key is marked and not expired
func (s *GormIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ProcessedKeyModel{}).
		Where("idempotency_key = ? AND expires_at > ?", key, s.now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Forget removes key
func (s *GormIdempotencyStore) Forget(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("idempotency_key = ?", key).Delete(&models.ProcessedKeyModel{}).Error
}

// PurgeExpired deletes expired keys and returns how many were removed
func (s *GormIdempotencyStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.ProcessedKeyModel{})
	return result.RowsAffected, result.Error
}

// Close is a no-op; the connection belongs to the Database
func (s *GormIdempotencyStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*GormIdempotencyStore)(nil)
