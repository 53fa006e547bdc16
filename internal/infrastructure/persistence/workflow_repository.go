package persistence

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockledger/backend/internal/domain/workflow"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
)

// GormSessionStore implements workflow.SessionStore with one row per operator
type GormSessionStore struct {
	db *gorm.DB
}

// NewGormSessionStore creates a new GormSessionStore
func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

// Load returns the operator's session or workflow.ErrNoSession
func (s *GormSessionStore) Load(ctx context.Context, operatorID string) (*workflow.Session, error) {
	var model models.WorkflowSessionModel
	err := s.db.WithContext(ctx).Where("operator_id = ?", operatorID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrNoSession
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save replaces the operator's stored session
func (s *GormSessionStore) Save(ctx context.Context, session *workflow.Session) error {
	if session.OperatorID == "" {
		return workflow.ErrNoOperator
	}
	var model models.WorkflowSessionModel
	model.FromDomain(session)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

// Delete removes the operator's session; deleting nothing is not an error
func (s *GormSessionStore) Delete(ctx context.Context, operatorID string) error {
	return s.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		Delete(&models.WorkflowSessionModel{}).Error
}

// List returns every stored session ordered by operator id
func (s *GormSessionStore) List(ctx context.Context) ([]*workflow.Session, error) {
	var rows []models.WorkflowSessionModel
	if err := s.db.WithContext(ctx).Order("operator_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*workflow.Session, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// GormLeaderboardRepository implements workflow.LeaderboardRepository
type GormLeaderboardRepository struct {
	db *gorm.DB
}

// NewGormLeaderboardRepository creates a new GormLeaderboardRepository
func NewGormLeaderboardRepository(db *gorm.DB) *GormLeaderboardRepository {
	return &GormLeaderboardRepository{db: db}
}

// Save stores a completed session's score. Saving the same session twice
// keeps the first result.
func (r *GormLeaderboardRepository) Save(ctx context.Context, entry workflow.LeaderboardEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.LeaderboardEntryModelFromDomain(entry)).Error
}

// Top returns the best entries, highest score first; ties go to the
// earlier completion
func (r *GormLeaderboardRepository) Top(ctx context.Context, limit int) ([]workflow.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = workflow.DefaultLeaderboardSize
	}
	var rows []models.LeaderboardEntryModel
	if err := r.db.WithContext(ctx).
		Order("final_score DESC").
		Order("completed_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]workflow.LeaderboardEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// BestLevel returns the highest level the operator reached, or 0
func (r *GormLeaderboardRepository) BestLevel(ctx context.Context, operator string) (int, error) {
	var best sql.NullInt64
	if err := r.db.WithContext(ctx).
		Model(&models.LeaderboardEntryModel{}).
		Where("operator = ?", operator).
		Select("MAX(level)").
		Row().Scan(&best); err != nil {
		return 0, err
	}
	return int(best.Int64), nil
}

var (
	_ workflow.SessionStore          = (*GormSessionStore)(nil)
	_ workflow.LeaderboardRepository = (*GormLeaderboardRepository)(nil)
)
