package ledger

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
)

// LedgerService owns every mutation of item location quantities. All writes
// funnel through UpdateItemLocationQty or UpsertImported, which serialize
// per item id in-process and lock the row inside a transaction.
type LedgerService struct {
	itemRepo ledger.ItemRepository
	txScope  TransactionScope
	locker   *KeyedLocker
	policy   ledger.MinimumPolicy
	logger   *zap.Logger

	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	syncTrigger StockSyncTrigger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(itemRepo ledger.ItemRepository, txScope TransactionScope, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if txScope == nil {
		txScope = NewNoOpTransactionScope(itemRepo)
	}
	return &LedgerService{
		itemRepo:   itemRepo,
		txScope:    txScope,
		locker:     NewKeyedLocker(),
		policy:     ledger.DefaultMinimumPolicy(),
		logger:     logger,
		idemConfig: shared.DefaultIdempotencyConfig(),
	}
}

// SetMinimumPolicy replaces the per-location minimum policy
func (s *LedgerService) SetMinimumPolicy(policy ledger.MinimumPolicy) {
	s.policy = policy
}

// SetIdempotencyStore enables order de-duplication
func (s *LedgerService) SetIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) {
	s.idempotency = store
	s.idemConfig = cfg
}

// SetSyncTrigger sets the port used to push stock after orders
func (s *LedgerService) SetSyncTrigger(trigger StockSyncTrigger) {
	s.syncTrigger = trigger
}

// MinimumPolicy returns the active per-location minimum policy
func (s *LedgerService) MinimumPolicy() ledger.MinimumPolicy {
	return s.policy
}

// UpdateItemLocationQty applies a delta at one voxel of one item.
// The stored location list never holds duplicates or non-positive entries.
func (s *LedgerService) UpdateItemLocationQty(ctx context.Context, input UpdateLocationQtyInput) (*LocationUpdateResult, error) {
	itemID := ledger.NormalizeItemID(input.ItemID)
	voxelID := ledger.NormalizeVoxelID(input.VoxelID)
	if itemID == "" {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "item id is required", ledger.ErrInvalidItemID)
	}
	if voxelID == "" {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "voxel id is required", ledger.ErrInvalidVoxel)
	}

	release := s.locker.Lock(itemID)
	defer release()

	var updated *ledger.Item
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if want := input.ExpectQuantity; want != nil && item.Locations.QuantityAt(voxelID) != *want {
			return shared.WrapDomainError(shared.CodeInvalidState, "voxel quantity changed", ledger.ErrStaleQuantity)
		}
		if input.Delta == 0 {
			updated = item
			return nil
		}
		if _, err := item.ApplyDelta(voxelID, input.Delta); err != nil {
			return shared.WrapDomainError(shared.CodeInvalidInput, "invalid location delta", err)
		}
		if err := repos.ItemRepo().Save(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, s.mapError("update item location quantity", err)
	}

	s.logger.Debug("location quantity updated",
		zap.String("item_id", itemID),
		zap.String("voxel_id", voxelID),
		zap.Int("delta", input.Delta),
		zap.Int("new_total", updated.TotalQuantity()),
	)

	return &LocationUpdateResult{
		Success:   true,
		ItemID:    itemID,
		VoxelID:   voxelID,
		NewTotal:  updated.TotalQuantity(),
		Locations: updated.Locations.Clone(),
	}, nil
}

// UpsertImported creates the item if needed and sets its quantity at each
// listed voxel, or at the record's voxel (the first location when none is
// given) when Locations is empty. With CreateOnly
// an existing item is left untouched.
func (s *LedgerService) UpsertImported(ctx context.Context, input UpsertItemInput) (*UpsertResult, error) {
	itemID := ledger.NormalizeItemID(input.ID)
	if itemID == "" {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "item id is required", ledger.ErrInvalidItemID)
	}

	release := s.locker.Lock(itemID)
	defer release()

	result := &UpsertResult{ItemID: itemID}
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		repo := repos.ItemRepo()
		item, err := repo.FindByIDForUpdate(ctx, itemID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			item, err = ledger.NewItem(itemID)
			if err != nil {
				return shared.WrapDomainError(shared.CodeInvalidInput, "invalid item", err)
			}
			result.Created = true
		case err != nil:
			return err
		case input.CreateOnly:
			result.NewTotal = item.TotalQuantity()
			return nil
		}

		applyImportedFields(item, input, result.Created)

		entries := input.Locations
		if len(entries) == 0 {
			entries = []ledger.LocationAllocation{{VoxelID: input.VoxelID, Quantity: input.Quantity}}
		}
		next, err := item.Locations.SetQuantities(entries)
		if err != nil {
			return shared.WrapDomainError(shared.CodeInvalidInput, "invalid location", err)
		}
		result.Changed = result.Created || !next.Equal(item.Locations)
		item.Locations = next
		result.NewTotal = item.TotalQuantity()
		return repo.Save(ctx, item)
	})
	if err != nil {
		return nil, s.mapError("upsert imported item", err)
	}
	return result, nil
}

// applyImportedFields copies non-empty descriptive fields. Derived values
// from NewItem stay when the record leaves a field blank.
func applyImportedFields(item *ledger.Item, input UpsertItemInput, created bool) {
	if v := strings.TrimSpace(input.Make); v != "" {
		item.Make = v
	}
	if v := strings.TrimSpace(input.Model); v != "" {
		item.Model = v
	}
	if v := strings.TrimSpace(input.Description); v != "" {
		item.Description = v
	}
	attrs := input.Attributes
	if attrs.Size != "" {
		item.Attributes.Size = attrs.Size
	}
	if attrs.Season != "" {
		item.Attributes.Season = attrs.Season
	}
	if attrs.Color != "" {
		item.Attributes.Color = attrs.Color
	}
	if attrs.Pattern != "" {
		item.Attributes.Pattern = attrs.Pattern
	}
	if attrs.MinQuantity > 0 {
		item.Attributes.MinQuantity = attrs.MinQuantity
	}
	if item.Channels == nil {
		item.Channels = ledger.ChannelMappings{}
	}
	for ch, m := range input.Channels {
		cur := item.Channels[ch]
		if m.SKU != "" {
			cur.SKU = m.SKU
		}
		if m.WarehouseID != "" {
			cur.WarehouseID = m.WarehouseID
		}
		item.Channels[ch] = cur
	}
	if !created {
		return
	}
	for ch, wh := range input.ChannelWarehouses {
		item.SetChannelWarehouseDefault(ch, wh)
	}
}

// SetMinQuantity updates an item's low-stock threshold
func (s *LedgerService) SetMinQuantity(ctx context.Context, itemID string, minQty int) (*ItemResponse, error) {
	itemID = ledger.NormalizeItemID(itemID)
	release := s.locker.Lock(itemID)
	defer release()

	var updated *ledger.Item
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.SetMinQuantity(minQty); err != nil {
			return shared.WrapDomainError(shared.CodeInvalidInput, "invalid minimum quantity", err)
		}
		updated = item
		return repos.ItemRepo().Save(ctx, item)
	})
	if err != nil {
		return nil, s.mapError("set minimum quantity", err)
	}
	resp := ToItemResponse(updated, s.policy)
	return &resp, nil
}

// GetItem returns one item with its derived reads
func (s *LedgerService) GetItem(ctx context.Context, itemID string) (*ItemResponse, error) {
	item, err := s.itemRepo.FindByID(ctx, ledger.NormalizeItemID(itemID))
	if err != nil {
		return nil, s.mapError("get item", err)
	}
	resp := ToItemResponse(item, s.policy)
	return &resp, nil
}

// ListItems returns a page of items and the total count
func (s *LedgerService) ListItems(ctx context.Context, filter ItemListFilter) ([]ItemResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	domainFilter.Search = strings.ToLower(strings.TrimSpace(filter.Search))

	items, err := s.itemRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, s.mapError("list items", err)
	}
	total, err := s.itemRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, s.mapError("count items", err)
	}

	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, ToItemResponse(it, s.policy))
	}
	return out, total, nil
}

// ListAllItems returns every item, used for checkpoints and exports
func (s *LedgerService) ListAllItems(ctx context.Context) ([]*ledger.Item, error) {
	items, err := s.itemRepo.ListAll(ctx)
	if err != nil {
		return nil, s.mapError("list all items", err)
	}
	return items, nil
}

// TakeCheckpoint snapshots the whole ledger
func (s *LedgerService) TakeCheckpoint(ctx context.Context) (*ledger.Checkpoint, error) {
	items, err := s.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.TakeCheckpoint(items), nil
}

// CountLowStock counts items whose total is below their minimum quantity
func (s *LedgerService) CountLowStock(ctx context.Context) (int64, error) {
	items, err := s.ListAllItems(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, it := range items {
		if it.IsLowStock() {
			n++
		}
	}
	return n, nil
}

// SnapshotForSync reads the given items (all when ids is empty) while
// holding their per-item locks, so no half-applied delta is published.
// The locks are released before returning.
func (s *LedgerService) SnapshotForSync(ctx context.Context, itemIDs []string) ([]*ledger.Item, error) {
	if len(itemIDs) == 0 {
		all, err := s.ListAllItems(ctx)
		if err != nil {
			return nil, err
		}
		itemIDs = make([]string, 0, len(all))
		for _, it := range all {
			itemIDs = append(itemIDs, it.ID)
		}
	}
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if n := ledger.NormalizeItemID(id); n != "" {
			ids = append(ids, n)
		}
	}

	release := s.locker.LockAll(ids)
	defer release()

	items, err := s.itemRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, s.mapError("snapshot items for sync", err)
	}
	out := make([]*ledger.Item, 0, len(items))
	for _, it := range items {
		out = append(out, it.Clone())
	}
	return out, nil
}

// mapError keeps domain errors and turns anything else into a persistence error
func (s *LedgerService) mapError(op string, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("ledger persistence failure", zap.String("op", op), zap.Error(err))
	return shared.WrapDomainError(shared.CodePersistence, "failed to "+op, err)
}
