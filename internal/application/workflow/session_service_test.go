package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/application/export"
	ledgerapp "github.com/stockledger/backend/internal/application/ledger"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/workflow"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/storage"
	"github.com/stockledger/backend/tests/testutil"
)

// countingStore records how often a session was persisted. saveErr fails
// every save, or only attempt number failOn when that is set.
type countingStore struct {
	*cache.InMemorySessionStore
	saves     int
	attempts  int
	saveErr   error
	failOn    int
	deleteErr error
}

func (s *countingStore) Save(ctx context.Context, sess *workflow.Session) error {
	s.attempts++
	if s.saveErr != nil && (s.failOn == 0 || s.failOn == s.attempts) {
		return s.saveErr
	}
	s.saves++
	return s.InMemorySessionStore.Save(ctx, sess)
}

func (s *countingStore) Delete(ctx context.Context, operatorID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.InMemorySessionStore.Delete(ctx, operatorID)
}

// misfiledStore hands every operator the same stored session
type misfiledStore struct {
	*cache.InMemorySessionStore
	sess *workflow.Session
}

func (s misfiledStore) Load(context.Context, string) (*workflow.Session, error) {
	return s.sess.Clone(), nil
}

type fixture struct {
	svc         *SessionService
	ledger      *ledgerapp.LedgerService
	items       *testutil.MemoryItemRepository
	store       *countingStore
	leaderboard *testutil.MemoryLeaderboard
	objects     *storage.StubObjectStorage
}

func newFixture(t *testing.T, items ...*ledger.Item) *fixture {
	t.Helper()
	f := &fixture{
		items:       testutil.NewMemoryItemRepository(items...),
		store:       &countingStore{InMemorySessionStore: cache.NewInMemorySessionStore()},
		leaderboard: testutil.NewMemoryLeaderboard(),
		objects:     storage.NewStubObjectStorage(),
	}
	f.ledger = ledgerapp.NewLedgerService(f.items, nil, zap.NewNop())
	exports := export.NewExportService(f.ledger, zap.NewNop(), export.WithStorage(f.objects, "sessions"))
	f.svc = NewSessionService(f.ledger, f.store, f.leaderboard, exports, 10, zap.NewNop())
	return f
}

// restart builds a fresh service over the same store, as after a crash
func (f *fixture) restart() *SessionService {
	return NewSessionService(f.ledger, f.store, f.leaderboard, nil, 10, zap.NewNop())
}

func loc(voxel string, qty int) ledger.LocationAllocation {
	return ledger.LocationAllocation{VoxelID: voxel, Quantity: qty}
}

func total(t *testing.T, f *fixture, id string) int {
	t.Helper()
	item, err := f.items.FindByID(context.Background(), id)
	require.NoError(t, err)
	return item.TotalQuantity()
}

func TestSessionService_StartValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 1)))

	_, err := f.svc.Start(ctx, StartInput{Mode: "restock", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a"}}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	sess, err := f.svc.Start(ctx, StartInput{Mode: "OnLoad", OperatorID: "op", Operator: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	require.NoError(t, err)
	assert.Equal(t, workflow.ModeOnload, sess.Mode)
	assert.Equal(t, 1, sess.Level)
	require.NotNil(t, sess.Checkpoint)
	assert.Equal(t, 1, f.store.saves)

	_, err = f.svc.Start(ctx, StartInput{Mode: "offload", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: -1}}})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSessionService_OnloadRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("евро лето кружева", loc("A1", 5)))

	_, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Operator: "op", Queue: []workflow.WorkItem{
		{ItemID: "евро лето кружева", Change: 3},
		{ItemID: "missing", Change: 2, VoxelID: "B1"},
	}})
	require.NoError(t, err)

	res, err := f.svc.Advance(ctx, "op")
	require.NoError(t, err)
	assert.True(t, res.Blocked, "no target voxel yet")
	assert.False(t, res.Applied)
	assert.Equal(t, 5, total(t, f, "евро лето кружева"))

	_, err = f.svc.SelectVoxel(ctx, "op", "b2")
	require.NoError(t, err)
	res, err = f.svc.Advance(ctx, "op")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 8, res.NewTotal)
	assert.Equal(t, 1, res.Session.Cursor)
	assert.Equal(t, 1, res.Session.OnloadCount)
	assert.InDelta(t, 5.0, res.Session.Score, 1e-9)

	stored, err := f.store.Load(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Cursor, "persisted after every step")

	_, err = f.svc.Advance(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	cur, err := f.svc.Current(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Cursor, "a ledger failure does not move the cursor")

	res, err = f.svc.Skip(ctx, "op")
	require.NoError(t, err)
	require.True(t, res.Done, "queue exhausted ends the session")
	end := res.End
	require.NotNil(t, end)
	assert.Equal(t, 3, end.Diff.DiffFor("евро лето кружева"))
	assert.Equal(t, 1, end.ChangedPositions)
	assert.Equal(t, 1, end.LeaderboardEntry.Errors)
	assert.Zero(t, end.LeaderboardEntry.FinalScore, "5 points minus one 50 point penalty floors at 0")
	assert.Equal(t, 1, end.LeaderboardEntry.Level)

	assert.NotEmpty(t, end.ArchiveKey)
	obj, ok := f.objects.Get(end.ArchiveKey)
	require.True(t, ok)
	assert.Contains(t, string(obj.Data), `"евро лето кружева","3","B2"`)

	_, err = f.store.Load(ctx, "op")
	assert.ErrorIs(t, err, workflow.ErrNoSession)
	_, err = f.svc.Current(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	board, err := f.svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "op", board[0].Operator)
}

func TestSessionService_OffloadUsesOperatorLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 10)))
	require.NoError(t, f.leaderboard.Save(ctx, workflow.LeaderboardEntry{Operator: "op", Level: 3}))

	sess, err := f.svc.Start(ctx, StartInput{Mode: "offload", OperatorID: "op", Operator: "op", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: -4, VoxelID: "A1"},
		{ItemID: "a", Change: -1, VoxelID: "A1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, sess.Level)

	res, err := f.svc.Advance(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 6, res.NewTotal)
	assert.Equal(t, 1, res.Session.OffloadCount)
	assert.InDelta(t, 7.5, res.Session.Score, 1e-9)

	end, err := f.svc.End(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, -4, end.Diff.NetChange())
	assert.InDelta(t, 7.5, end.LeaderboardEntry.FinalScore, 1e-9)
	assert.Equal(t, 6, total(t, f, "a"), "the unhandled entry is not applied")
}

func TestSessionService_PendingResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 1)))
	_, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Operator: "op", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: 1, VoxelID: "A1"},
		{ItemID: "a", Change: 1, VoxelID: "A1"},
	}})
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, "op")
	require.NoError(t, err)

	svc := f.restart()
	pending, err := svc.PendingResume(ctx, "op")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, 1, pending.Cursor)

	_, err = svc.Advance(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState, "never resumed silently")
	_, err = svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	resumed, err := svc.Resume(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, resumed.ID)

	res, err := svc.Advance(ctx, "op")
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 2, res.End.Diff.DiffFor("a"), "diff against the original checkpoint")

	_, err = svc.Resume(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSessionService_DiscardPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 1)))
	_, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	require.NoError(t, err)

	svc := f.restart()
	require.NoError(t, svc.Discard(ctx, "op"))

	pending, err := svc.PendingResume(ctx, "op")
	require.NoError(t, err)
	assert.Nil(t, pending)
	_, err = f.store.Load(ctx, "op")
	assert.ErrorIs(t, err, workflow.ErrNoSession)

	assert.ErrorIs(t, svc.Discard(ctx, "op"), shared.ErrInvalidState)

	board, err := svc.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, board, "discarded sessions are not scored")
}

func TestSessionService_RecordEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 1)))

	res, err := f.svc.RecordEdit(ctx, "op", ledgerapp.UpdateLocationQtyInput{ItemID: "a", VoxelID: "C3", Delta: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewTotal)

	_, err = f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	require.NoError(t, err)
	_, err = f.svc.RecordEdit(ctx, "op", ledgerapp.UpdateLocationQtyInput{ItemID: "a", VoxelID: "C3", Delta: -1})
	require.NoError(t, err)

	cur, err := f.svc.Current(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 1, cur.EditCount)
	assert.Equal(t, 0, cur.Cursor)

	end, err := f.svc.End(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, -1, end.Diff.DiffFor("a"), "edits during the session show in its diff")
}

func TestSessionService_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 1)))
	f.store.saveErr = errors.New("disk full")

	_, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	assert.ErrorIs(t, err, shared.ErrPersistence)
	_, err = f.svc.Current(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState, "nothing half-started")
}

func TestSessionService_NoActiveSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Advance(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.Skip(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.SelectVoxel(ctx, "op", "A1")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.End(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSessionService_SaveFailureAfterLedgerWriteDoesNotReapply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 10)))
	_, err := f.svc.Start(ctx, StartInput{Mode: "offload", OperatorID: "op", Operator: "op", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: -3, VoxelID: "A1"},
		{ItemID: "a", Change: -1, VoxelID: "A1"},
	}})
	require.NoError(t, err)

	// attempt 2 marks the step, attempt 3 records it as done
	f.store.saveErr = errors.New("disk full")
	f.store.failOn = f.store.attempts + 2
	_, err = f.svc.Advance(ctx, "op")
	require.ErrorIs(t, err, shared.ErrPersistence)
	assert.Equal(t, 7, total(t, f, "a"), "the ledger write went through")

	stored, err := f.store.Load(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Cursor)
	require.NotNil(t, stored.InFlight)
	assert.Equal(t, 10, stored.InFlight.Before)

	f.store.saveErr = nil
	svc := f.restart()
	_, err = svc.Resume(ctx, "op")
	require.NoError(t, err)

	res, err := svc.Advance(ctx, "op")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 7, res.NewTotal)
	assert.Equal(t, 1, res.Session.Cursor)
	assert.Nil(t, res.Session.InFlight)
	assert.Equal(t, 7, total(t, f, "a"), "the marked step is not applied twice")

	res, err = svc.Advance(ctx, "op")
	require.NoError(t, err)
	require.True(t, res.Done)
	assert.Equal(t, 6, total(t, f, "a"))
	assert.Equal(t, -4, res.End.Diff.DiffFor("a"))
	assert.Equal(t, 2, res.End.LeaderboardEntry.Offload)
}

func TestSessionService_RetryAfterSaveFailureInProcess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 2)))
	_, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: 5, VoxelID: "A1"},
		{ItemID: "a", Change: 1, VoxelID: "A1"},
	}})
	require.NoError(t, err)

	f.store.saveErr = errors.New("timeout")
	f.store.failOn = f.store.attempts + 2
	_, err = f.svc.Advance(ctx, "op")
	require.ErrorIs(t, err, shared.ErrPersistence)
	f.store.saveErr = nil

	cur, err := f.svc.Current(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 0, cur.Cursor)
	require.NotNil(t, cur.InFlight)

	res, err := f.svc.Advance(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.Cursor)
	assert.Equal(t, 7, total(t, f, "a"))
}

func TestSessionService_MarkedStepAfterForeignChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 10)))
	_, err := f.svc.Start(ctx, StartInput{Mode: "offload", OperatorID: "op", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: -3, VoxelID: "A1"},
	}})
	require.NoError(t, err)

	// the marker was saved but the process died before the ledger write,
	// then someone else changed the voxel
	stored, err := f.store.Load(ctx, "op")
	require.NoError(t, err)
	_, err = stored.BeginStep(10)
	require.NoError(t, err)
	require.NoError(t, f.store.InMemorySessionStore.Save(ctx, stored))
	_, err = f.ledger.UpdateItemLocationQty(ctx, ledgerapp.UpdateLocationQtyInput{ItemID: "a", VoxelID: "A1", Delta: 3})
	require.NoError(t, err)

	svc := f.restart()
	_, err = svc.Resume(ctx, "op")
	require.NoError(t, err)
	_, err = svc.Advance(ctx, "op")
	require.ErrorIs(t, err, shared.ErrInvalidState)
	assert.ErrorIs(t, err, ledger.ErrStaleQuantity)

	cur, err := svc.Current(ctx, "op")
	require.NoError(t, err)
	assert.Nil(t, cur.InFlight, "the refused step is cleared")
	assert.Equal(t, 0, cur.Cursor)

	res, err := svc.Advance(ctx, "op")
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 10, total(t, f, "a"))
}

func TestSessionService_EndRetriesAfterDeleteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 1)))
	_, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Operator: "op", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: 1, VoxelID: "A1"},
		{ItemID: "a", Change: 1, VoxelID: "A1"},
	}})
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, "op")
	require.NoError(t, err)

	f.store.deleteErr = errors.New("connection reset")
	_, err = f.svc.End(ctx, "op")
	require.ErrorIs(t, err, shared.ErrPersistence)

	cur, err := f.svc.Current(ctx, "op")
	require.NoError(t, err, "the session stays active")
	assert.Equal(t, workflow.StatusActive, cur.Status)
	board, err := f.svc.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, board)

	f.store.deleteErr = nil
	end, err := f.svc.End(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, 1, end.Diff.DiffFor("a"))

	board, err = f.svc.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Len(t, board, 1)
	_, err = f.svc.Current(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSessionService_DiscardRetriesAfterDeleteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 1)))
	_, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	require.NoError(t, err)

	f.store.deleteErr = errors.New("connection reset")
	require.ErrorIs(t, f.svc.Discard(ctx, "op"), shared.ErrPersistence)
	cur, err := f.svc.Current(ctx, "op")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusActive, cur.Status)

	f.store.deleteErr = nil
	require.NoError(t, f.svc.Discard(ctx, "op"))
	_, err = f.svc.Current(ctx, "op")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSessionService_SessionsPerOperator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewTestItem("a", loc("A1", 5)))

	anna, err := f.svc.Start(ctx, StartInput{Mode: "onload", OperatorID: "op-anna", Operator: "Anna", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: 2, VoxelID: "A1"},
		{ItemID: "a", Change: 2, VoxelID: "A1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "op-anna", anna.OperatorID)

	_, err = f.svc.Advance(ctx, "op-boris")
	assert.ErrorIs(t, err, shared.ErrInvalidState, "no session of his own")
	_, err = f.svc.SelectVoxel(ctx, "op-boris", "B1")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = f.svc.End(ctx, "op-boris")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.ErrorIs(t, f.svc.Discard(ctx, "op-boris"), shared.ErrInvalidState)

	boris, err := f.svc.Start(ctx, StartInput{Mode: "offload", OperatorID: "op-boris", Operator: "Boris", Queue: []workflow.WorkItem{
		{ItemID: "a", Change: -1, VoxelID: "A1"},
	}})
	require.NoError(t, err, "operators run sessions side by side")
	assert.NotEqual(t, anna.ID, boris.ID)

	res, err := f.svc.Advance(ctx, "op-anna")
	require.NoError(t, err)
	assert.Equal(t, 7, res.NewTotal)

	res, err = f.svc.Advance(ctx, "op-boris")
	require.NoError(t, err)
	require.True(t, res.Done)
	assert.Equal(t, "Boris", res.End.LeaderboardEntry.Operator)

	cur, err := f.svc.Current(ctx, "op-anna")
	require.NoError(t, err)
	assert.Equal(t, anna.ID, cur.ID)
	assert.Equal(t, 1, cur.Cursor)

	interrupted, err := f.restart().Interrupted(ctx)
	require.NoError(t, err)
	require.Len(t, interrupted, 1)
	assert.Equal(t, "op-anna", interrupted[0].OperatorID)

	_, err = f.svc.Advance(ctx, "")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = f.svc.Start(ctx, StartInput{Mode: "onload", Queue: []workflow.WorkItem{{ItemID: "a", Change: 1}}})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestSessionService_ForeignStoredSessionIsForbidden(t *testing.T) {
	ctx := context.Background()
	l := ledgerapp.NewLedgerService(testutil.NewMemoryItemRepository(testutil.NewTestItem("a", loc("A1", 1))), nil, zap.NewNop())
	sess, err := workflow.NewSession(workflow.ModeOnload, "op-anna", "Anna",
		[]workflow.WorkItem{{ItemID: "a", Change: 1, VoxelID: "A1"}}, ledger.TakeCheckpoint(nil), 1)
	require.NoError(t, err)
	store := misfiledStore{InMemorySessionStore: cache.NewInMemorySessionStore(), sess: sess}
	svc := NewSessionService(l, store, nil, nil, 10, zap.NewNop())

	for name, call := range map[string]func() error{
		"resume":  func() error { _, err := svc.Resume(ctx, "op-boris"); return err },
		"advance": func() error { _, err := svc.Advance(ctx, "op-boris"); return err },
		"skip":    func() error { _, err := svc.Skip(ctx, "op-boris"); return err },
		"select":  func() error { _, err := svc.SelectVoxel(ctx, "op-boris", "B1"); return err },
		"end":     func() error { _, err := svc.End(ctx, "op-boris"); return err },
		"discard": func() error { return svc.Discard(ctx, "op-boris") },
	} {
		err := call()
		assert.ErrorIs(t, err, shared.ErrForbidden, name)
		assert.ErrorIs(t, err, workflow.ErrNotOwner, name)
	}

	_, err = svc.Resume(ctx, "op-anna")
	require.NoError(t, err)
}
