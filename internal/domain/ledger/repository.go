package ledger

import (
	"context"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ItemRepository persists items. FindByID* return shared.ErrNotFound for
// unknown ids.
type ItemRepository interface {
	FindByID(ctx context.Context, id string) (*Item, error)
	// FindByIDForUpdate loads the item holding a row lock for the rest of
	// the surrounding transaction
	FindByIDForUpdate(ctx context.Context, id string) (*Item, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Item, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Item, error)
	// ListAll returns every item ordered by id
	ListAll(ctx context.Context) ([]*Item, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	// FindByChannelSKU resolves a channel SKU, falling back to the item id
	FindByChannelSKU(ctx context.Context, channel integration.ChannelCode, sku string) (*Item, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	Save(ctx context.Context, item *Item) error
}
