package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/backend/internal/domain/bulk"
	"github.com/stockledger/backend/internal/domain/shared"
)

func newHistory(t *testing.T, file, operator string, startedAt time.Time) *bulk.ImportHistory {
	t.Helper()
	h, err := bulk.NewImportHistory(file, 128, operator, "update")
	require.NoError(t, err)
	h.StartedAt = startedAt
	return h
}

func TestGormImportHistoryRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormImportHistoryRepository(newTestDB(t))

	h := newHistory(t, "stock.xlsx", "anna", time.Now())
	require.NoError(t, repo.Save(ctx, h))

	details := []bulk.ImportErrorDetail{{Row: 3, Sheet: "Лист1", Code: "INVALID_QUANTITY", Message: "bad", Value: "x"}}
	require.NoError(t, h.Complete("Склад 1", bulk.ImportCounts{Total: 3, Created: 1, Updated: 1, Errors: 1}, details))
	require.NoError(t, repo.Save(ctx, h))

	got, err := repo.FindByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "Склад 1", got.Warehouse)
	assert.Equal(t, bulk.ImportCounts{Total: 3, Created: 1, Updated: 1, Errors: 1}, got.Counts)
	assert.Equal(t, details, got.ErrorDetails)
	require.NotNil(t, got.CompletedAt)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormImportHistoryRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewGormImportHistoryRepository(newTestDB(t))
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := newHistory(t, "a.csv", "anna", base)
	second := newHistory(t, "b.csv", "boris", base.Add(time.Hour))
	third := newHistory(t, "c.csv", "anna", base.Add(2*time.Hour))
	require.NoError(t, third.Fail("cannot find a header row"))
	for _, h := range []*bulk.ImportHistory{first, second, third} {
		require.NoError(t, repo.Save(ctx, h))
	}

	all, err := repo.FindAll(ctx, bulk.ImportHistoryFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalCount)
	require.Len(t, all.Items, 2)
	assert.Equal(t, "c.csv", all.Items[0].FileName)
	assert.Equal(t, "b.csv", all.Items[1].FileName)

	failed := bulk.ImportStatusFailed
	byStatus, err := repo.FindAll(ctx, bulk.ImportHistoryFilter{Status: &failed}, 1, 10)
	require.NoError(t, err)
	require.Len(t, byStatus.Items, 1)
	assert.Equal(t, "cannot find a header row", byStatus.Items[0].FailureReason)

	byOperator, err := repo.FindAll(ctx, bulk.ImportHistoryFilter{Operator: "anna"}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byOperator.Items, 2)
}

func TestGormImportHistoryRepository_FailInterrupted(t *testing.T) {
	ctx := context.Background()
	repo := NewGormImportHistoryRepository(newTestDB(t))

	running := newHistory(t, "a.csv", "anna", time.Now())
	done := newHistory(t, "b.csv", "anna", time.Now())
	require.NoError(t, done.Complete("", bulk.ImportCounts{Total: 1, Created: 1}, nil))
	require.NoError(t, repo.Save(ctx, running))
	require.NoError(t, repo.Save(ctx, done))

	n, err := repo.FailInterrupted(ctx, "server restarted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.FindByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusFailed, got.Status)
	assert.Equal(t, "server restarted", got.FailureReason)
	assert.Equal(t, 2, got.Version)
	assert.NotNil(t, got.CompletedAt)

	got, err = repo.FindByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusCompleted, got.Status)
}
