package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
)

// MemoryItemRepository is an in-memory ledger.ItemRepository. Items are
// copied on the way in and out so callers never share state with it.
type MemoryItemRepository struct {
	mu    sync.Mutex
	items map[string]*ledger.Item
	saves int

	// SaveErr, when set, is returned by Save without storing anything
	SaveErr error
}

// NewMemoryItemRepository creates a repository seeded with items
func NewMemoryItemRepository(items ...*ledger.Item) *MemoryItemRepository {
	r := &MemoryItemRepository{items: make(map[string]*ledger.Item)}
	for _, it := range items {
		r.items[it.ID] = it.Clone()
	}
	return r
}

// NewTestItem builds an item with the given allocations
func NewTestItem(id string, locations ...ledger.LocationAllocation) *ledger.Item {
	item, err := ledger.NewItem(id)
	if err != nil {
		panic(err)
	}
	item.Status = ledger.StatusActive
	item.Locations = ledger.NewLocationAllocations(locations)
	return item
}

func (r *MemoryItemRepository) FindByID(_ context.Context, id string) (*ledger.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return it.Clone(), nil
}

func (r *MemoryItemRepository) FindByIDForUpdate(ctx context.Context, id string) (*ledger.Item, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryItemRepository) FindByIDs(_ context.Context, ids []string) ([]*ledger.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ledger.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out = append(out, it.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *ledger.Item) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *MemoryItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*ledger.Item, error) {
	all, _ := r.ListAll(ctx)
	matched := all[:0]
	for _, it := range all {
		if filter.Search == "" || strings.Contains(it.ID, filter.Search) {
			matched = append(matched, it)
		}
	}
	start := min(filter.Offset(), len(matched))
	end := len(matched)
	if filter.PageSize > 0 {
		end = min(start+filter.PageSize, len(matched))
	}
	return matched[start:end], nil
}

func (r *MemoryItemRepository) ListAll(_ context.Context) ([]*ledger.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ledger.Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.Clone())
	}
	slices.SortFunc(out, func(a, b *ledger.Item) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *MemoryItemRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	filter.Page, filter.PageSize = 1, 0
	items, _ := r.FindAll(ctx, filter)
	return int64(len(items)), nil
}

func (r *MemoryItemRepository) FindByChannelSKU(ctx context.Context, channel integration.ChannelCode, sku string) (*ledger.Item, error) {
	all, _ := r.ListAll(ctx)
	for _, it := range all {
		if it.MatchesSKU(channel, sku) {
			return it, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *MemoryItemRepository) ExistsByID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	return ok, nil
}

func (r *MemoryItemRepository) Save(_ context.Context, item *ledger.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.items[item.ID] = item.Clone()
	r.saves++
	return nil
}

// Saves returns how many successful saves happened
func (r *MemoryItemRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

var _ ledger.ItemRepository = (*MemoryItemRepository)(nil)
