package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerapp "github.com/stockledger/backend/internal/application/ledger"
	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
)

func newItem(t *testing.T, id string, locs ...ledger.LocationAllocation) *ledger.Item {
	t.Helper()
	item, err := ledger.NewItem(id)
	require.NoError(t, err)
	item.Locations = ledger.NewLocationAllocations(locs)
	return item
}

func TestGormItemRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormItemRepository(newTestDB(t))

	item := newItem(t, "евро лето кружева",
		ledger.LocationAllocation{VoxelID: "A1", Quantity: 5},
		ledger.LocationAllocation{VoxelID: "B2", Quantity: 2},
	)
	item.Channels[integration.ChannelWildberries] = ledger.ChannelMapping{SKU: "WB-777", WarehouseID: "wh-9"}
	require.NoError(t, item.SetMinQuantity(4))
	require.NoError(t, repo.Save(ctx, item))

	got, err := repo.FindByID(ctx, "евро лето кружева")
	require.NoError(t, err)
	assert.Equal(t, item.Locations, got.Locations)
	assert.Equal(t, 7, got.TotalQuantity())
	assert.Equal(t, 4, got.Attributes.MinQuantity)
	assert.Equal(t, "Лето Кружева", got.Make)
	assert.Equal(t, ledger.ChannelMapping{SKU: "WB-777", WarehouseID: "wh-9"}, got.Channels[integration.ChannelWildberries])

	locked, err := repo.FindByIDForUpdate(ctx, "евро лето кружева")
	require.NoError(t, err)
	assert.Equal(t, got.ID, locked.ID)

	exists, err := repo.ExistsByID(ctx, got.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormItemRepository_SaveReplacesState(t *testing.T) {
	ctx := context.Background()
	repo := NewGormItemRepository(newTestDB(t))

	item := newItem(t, "2 зима ромашка", ledger.LocationAllocation{VoxelID: "A1", Quantity: 3})
	item.Channels[integration.ChannelOzon] = ledger.ChannelMapping{SKU: "OZ-1"}
	require.NoError(t, repo.Save(ctx, item))

	_, err := item.ApplyDelta("A1", -3)
	require.NoError(t, err)
	delete(item.Channels, integration.ChannelOzon)
	require.NoError(t, repo.Save(ctx, item))

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Locations)
	assert.NotNil(t, got.Locations)
	assert.Empty(t, got.Channels)

	_, err = repo.FindByChannelSKU(ctx, integration.ChannelOzon, "OZ-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormItemRepository_Listing(t *testing.T) {
	ctx := context.Background()
	repo := NewGormItemRepository(newTestDB(t))
	for _, id := range []string{"c item", "a item", "b other"} {
		require.NoError(t, repo.Save(ctx, newItem(t, id, ledger.LocationAllocation{VoxelID: "A1", Quantity: 1})))
	}

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a item", "b other", "c item"}, []string{all[0].ID, all[1].ID, all[2].ID})

	page, err := repo.FindAll(ctx, shared.Filter{Search: "item", Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c item", page[0].ID)

	count, err := repo.Count(ctx, shared.Filter{Search: "item"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	byIDs, err := repo.FindByIDs(ctx, []string{"c item", "nope", "a item"})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	assert.Equal(t, "a item", byIDs[0].ID)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormItemRepository_FindByChannelSKU(t *testing.T) {
	ctx := context.Background()
	repo := NewGormItemRepository(newTestDB(t))

	mapped := newItem(t, "евро макси лето кружева")
	mapped.Channels[integration.ChannelWildberries] = ledger.ChannelMapping{SKU: "WB-42"}
	require.NoError(t, repo.Save(ctx, mapped))
	require.NoError(t, repo.Save(ctx, newItem(t, "1.5 зима клетка")))

	got, err := repo.FindByChannelSKU(ctx, integration.ChannelWildberries, "wb-42")
	require.NoError(t, err)
	assert.Equal(t, mapped.ID, got.ID)

	got, err = repo.FindByChannelSKU(ctx, integration.ChannelWildberries, "1.5 Зима Клетка")
	require.NoError(t, err, "unmapped items are found by id")
	assert.Equal(t, "1.5 зима клетка", got.ID)

	_, err = repo.FindByChannelSKU(ctx, integration.ChannelWildberries, mapped.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "a mapped item is not reachable by id on that channel")

	got, err = repo.FindByChannelSKU(ctx, integration.ChannelOzon, mapped.ID)
	require.NoError(t, err)
	assert.Equal(t, mapped.ID, got.ID)
}

func TestGormTransactionScope_RollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	scope := NewGormTransactionScope(db)
	boom := errors.New("boom")

	err := scope.Execute(ctx, func(repos ledgerapp.TransactionalRepositories) error {
		if err := repos.ItemRepo().Save(ctx, newItem(t, "temp", ledger.LocationAllocation{VoxelID: "A1", Quantity: 1})); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormItemRepository(db).FindByID(ctx, "temp")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormTransactionScope_PersistenceFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "items"`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := NewGormTransactionScope(db.DB).Execute(context.Background(), func(repos ledgerapp.TransactionalRepositories) error {
		_, err := repos.ItemRepo().FindByIDForUpdate(context.Background(), "a")
		return err
	})
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
