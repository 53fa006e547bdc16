package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
)

// ItemSortFields contains allowed sort fields for items
var ItemSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"total_quantity": true,
	"status":         true,
}

// GormItemRepository implements ledger.ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

func (r *GormItemRepository) items(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ItemModel{}).Preload("Channels")
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id string) (*ledger.Item, error) {
	return r.first(r.items(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds an item and locks its row until the surrounding
// transaction ends. sqlite has no row locks and serializes writers instead.
func (r *GormItemRepository) FindByIDForUpdate(ctx context.Context, id string) (*ledger.Item, error) {
	query := r.items(ctx).Where("id = ?", id)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.first(query)
}

func (r *GormItemRepository) first(query *gorm.DB) (*ledger.Item, error) {
	var model models.ItemModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds the existing items among ids, ordered by id
func (r *GormItemRepository) FindByIDs(ctx context.Context, ids []string) ([]*ledger.Item, error) {
	if len(ids) == 0 {
		return []*ledger.Item{}, nil
	}
	var rows []models.ItemModel
	if err := r.items(ctx).Where("id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainItems(rows), nil
}

// FindAll finds items matching the filter's search, one page at a time
func (r *GormItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*ledger.Item, error) {
	query := r.applySearch(r.items(ctx), filter)

	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, ItemSortFields, "id", "ASC"))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.ItemModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainItems(rows), nil
}

// ListAll returns every item ordered by id
func (r *GormItemRepository) ListAll(ctx context.Context) ([]*ledger.Item, error) {
	var rows []models.ItemModel
	if err := r.items(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainItems(rows), nil
}

// Count counts items matching the filter's search
func (r *GormItemRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applySearch(r.db.WithContext(ctx).Model(&models.ItemModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByChannelSKU resolves a channel SKU. An explicit mapping wins; an
// item without a mapping for the channel is matched by its id.
func (r *GormItemRepository) FindByChannelSKU(ctx context.Context, channel integration.ChannelCode, sku string) (*ledger.Item, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.ErrNotFound
	}

	var mapping models.ItemChannelModel
	err := r.db.WithContext(ctx).
		Where("channel = ? AND LOWER(sku) = ?", channel, strings.ToLower(sku)).
		Order("item_id ASC").
		First(&mapping).Error
	switch {
	case err == nil:
		return r.FindByID(ctx, mapping.ItemID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	item, err := r.FindByID(ctx, ledger.NormalizeItemID(sku))
	if err != nil {
		return nil, err
	}
	if !item.MatchesSKU(channel, sku) {
		return nil, shared.ErrNotFound
	}
	return item, nil
}

// ExistsByID checks if an item exists
func (r *GormItemRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ItemModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates an item together with its channel mappings
func (r *GormItemRepository) Save(ctx context.Context, item *ledger.Item) error {
	model := models.ItemModelFromDomain(item)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", model.ID).Delete(&models.ItemChannelModel{}).Error; err != nil {
			return err
		}
		if len(model.Channels) == 0 {
			return nil
		}
		return tx.Create(&model.Channels).Error
	})
}

func (r *GormItemRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("id LIKE ? OR LOWER(make) LIKE ? OR LOWER(model) LIKE ?", like, like, like)
	}
	return query
}

func toDomainItems(rows []models.ItemModel) []*ledger.Item {
	out := make([]*ledger.Item, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

var _ ledger.ItemRepository = (*GormItemRepository)(nil)
