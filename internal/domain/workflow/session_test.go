package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/backend/internal/domain/ledger"
)

func newTestSession(t *testing.T, mode Mode, queue ...WorkItem) *Session {
	t.Helper()
	s, err := NewSession(mode, "op-1", "Operator One", queue, ledger.TakeCheckpoint(nil), 1)
	require.NoError(t, err)
	return s
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Onload ")
	require.NoError(t, err)
	assert.Equal(t, ModeOnload, m)

	_, err = ParseMode("none")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(ModeOnload, "", "op", []WorkItem{{ItemID: "a", Change: 1}}, nil, 1)
	assert.ErrorIs(t, err, ErrNoOperator)

	_, err = NewSession("", "op-1", "op", []WorkItem{{ItemID: "a", Change: 1}}, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = NewSession(ModeOnload, "op-1", "op", nil, nil, 1)
	assert.ErrorIs(t, err, ErrEmptyQueue)

	_, err = NewSession(ModeOnload, "op-1", "op", []WorkItem{{ItemID: "a", Change: 0}}, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidQueueEntry)
}

func TestNewSession_NormalizesQueue(t *testing.T) {
	s := newTestSession(t, ModeOnload, WorkItem{ItemID: " Evro-Leto ", Change: 3, VoxelID: "b2"})

	w, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "evro-leto", w.ItemID)
	assert.Equal(t, "B2", w.VoxelID)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 1, s.Level)
}

func TestSession_PendingStepBlocksWithoutVoxel(t *testing.T) {
	s := newTestSession(t, ModeOnload, WorkItem{ItemID: "a", Change: 2})

	_, err := s.PendingStep()
	assert.ErrorIs(t, err, ErrVoxelNotSelected)
	assert.ErrorIs(t, s.CompleteStep(), ErrVoxelNotSelected)
	assert.Equal(t, 0, s.Cursor)

	require.NoError(t, s.SelectVoxel("a3"))
	w, err := s.PendingStep()
	require.NoError(t, err)
	assert.Equal(t, "A3", w.VoxelID)
}

func TestSession_CompleteStepCounters(t *testing.T) {
	s := newTestSession(t, ModeOnload,
		WorkItem{ItemID: "a", Change: 2, VoxelID: "A1"},
		WorkItem{ItemID: "b", Change: -1, VoxelID: "A1"},
	)

	require.NoError(t, s.CompleteStep())
	require.NoError(t, s.CompleteStep())

	assert.Equal(t, 1, s.OnloadCount)
	assert.Equal(t, 0, s.OffloadCount)
	assert.Equal(t, 2, s.Streak)
	assert.InDelta(t, 10.0, s.Score, 0.001)
	assert.True(t, s.IsExhausted())
	assert.ErrorIs(t, s.CompleteStep(), ErrQueueExhausted)
}

func TestSession_SkipCountsError(t *testing.T) {
	s := newTestSession(t, ModeOffload,
		WorkItem{ItemID: "a", Change: -1, VoxelID: "A1"},
		WorkItem{ItemID: "b", Change: -1},
	)
	require.NoError(t, s.CompleteStep())
	require.NoError(t, s.Skip())

	assert.Equal(t, 1, s.OffloadCount)
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, 0, s.Remaining())
}

func TestSession_StepMarker(t *testing.T) {
	s := newTestSession(t, ModeOffload,
		WorkItem{ItemID: "a", Change: -3, VoxelID: "A1"},
		WorkItem{ItemID: "a", Change: -1, VoxelID: "A1"},
	)

	m, err := s.BeginStep(10)
	require.NoError(t, err)
	assert.Equal(t, StepMarker{Cursor: 0, ItemID: "a", VoxelID: "A1", Change: -3, Before: 10}, m)
	assert.Equal(t, 7, m.After())
	assert.Equal(t, 0, StepMarker{Change: -5, Before: 2}.After())

	assert.ErrorIs(t, s.Skip(), ErrStepInFlight)
	assert.ErrorIs(t, s.SelectVoxel("B1"), ErrStepInFlight)

	c := s.Clone()
	c.InFlight.Before = 99
	assert.Equal(t, 10, s.InFlight.Before)

	require.NoError(t, s.CompleteStep())
	assert.Nil(t, s.InFlight)
	assert.Equal(t, 1, s.Cursor)

	_, err = s.BeginStep(7)
	require.NoError(t, err)
	s.AbortStep()
	assert.Nil(t, s.InFlight)
	assert.Equal(t, 1, s.Cursor)
	require.NoError(t, s.Skip())
}

func TestSession_Complete(t *testing.T) {
	s := newTestSession(t, ModeOnload, WorkItem{ItemID: "a", Change: 1, VoxelID: "A1"})
	s.Score = 1200
	s.ErrorCount = 2

	entry, err := s.Complete()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.InDelta(t, 1100.0, entry.FinalScore, 0.001)
	assert.Equal(t, 3, entry.Level)
	assert.Equal(t, s.ID, entry.SessionID)

	_, err = s.Complete()
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.ErrorIs(t, s.Discard(), ErrSessionNotActive)
}

func TestSession_DiscardStopsSteps(t *testing.T) {
	s := newTestSession(t, ModeOnload, WorkItem{ItemID: "a", Change: 1, VoxelID: "A1"})
	require.NoError(t, s.Discard())

	assert.ErrorIs(t, s.SelectVoxel("A2"), ErrSessionNotActive)
	assert.ErrorIs(t, s.Skip(), ErrSessionNotActive)
}

func TestScoring(t *testing.T) {
	assert.InDelta(t, 5.0, StepPoints(ModeOnload, 1), 0.001)
	assert.InDelta(t, 2.5, StepPoints(ModeOffload, 1), 0.001)
	assert.InDelta(t, 20.0, StepPoints(ModeOnload, 4), 0.001)
	assert.InDelta(t, 5.0, StepPoints(ModeOnload, 0), 0.001)

	assert.InDelta(t, 0.0, FinalScore(30, 1), 0.001)
	assert.Equal(t, 1, LevelFor(0))
	assert.Equal(t, 1, LevelFor(499))
	assert.Equal(t, 2, LevelFor(500))
}
