package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(t *testing.T, id string, locs ...LocationAllocation) *Item {
	t.Helper()
	item, err := NewItem(id)
	require.NoError(t, err)
	item.Locations = NewLocationAllocations(locs)
	return item
}

func TestTakeCheckpoint_IsDeepCopy(t *testing.T) {
	item := newTestItem(t, "a", LocationAllocation{VoxelID: "A1", Quantity: 5})
	cp := TakeCheckpoint([]*Item{item, nil})

	_, err := item.ApplyDelta("A1", 10)
	require.NoError(t, err)

	require.Len(t, cp.Items, 1)
	assert.Equal(t, 5, cp.TotalFor("a"))
	assert.Equal(t, 0, cp.TotalFor("missing"))
	assert.NotEqual(t, uuid.Nil, cp.ID)
}

func TestComputeDiff_EqualsSumOfDeltas(t *testing.T) {
	a := newTestItem(t, "a", LocationAllocation{VoxelID: "A1", Quantity: 5})
	b := newTestItem(t, "b", LocationAllocation{VoxelID: "B1", Quantity: 2})
	c := newTestItem(t, "c", LocationAllocation{VoxelID: "C1", Quantity: 9})
	items := []*Item{a, b, c}
	cp := TakeCheckpoint(items)

	deltas := []struct {
		item  *Item
		voxel string
		delta int
	}{
		{a, "A1", -3},
		{a, "A2", 4},
		{b, "B1", 6},
		{a, "A1", -10},
		{b, "B1", -1},
	}
	want := map[string]int{}
	for _, d := range deltas {
		before := d.item.TotalQuantity()
		after, err := d.item.ApplyDelta(d.voxel, d.delta)
		require.NoError(t, err)
		want[d.item.ID] += after - before
	}

	report := ComputeDiff(cp, items)

	assert.Equal(t, want["a"], report.DiffFor("a"))
	assert.Equal(t, want["b"], report.DiffFor("b"))
	assert.Equal(t, 0, report.DiffFor("c"), "untouched item")
	assert.Equal(t, 2, report.ChangedPositions())
}

func TestComputeDiff_TransferCountsAsChangedPosition(t *testing.T) {
	item := newTestItem(t, "a", LocationAllocation{VoxelID: "A1", Quantity: 5})
	cp := TakeCheckpoint([]*Item{item})

	_, _ = item.ApplyDelta("A1", -2)
	_, _ = item.ApplyDelta("B1", 2)

	report := ComputeDiff(cp, []*Item{item})

	assert.Equal(t, 1, report.ChangedPositions())
	assert.Empty(t, report.Exportable())
	require.Len(t, report.Items, 1)
	assert.Equal(t, []VoxelDiff{{VoxelID: "A1", Change: -2}, {VoxelID: "B1", Change: 2}}, report.Items[0].VoxelDiffs)
}

func TestComputeDiff_NewAndVanishedItems(t *testing.T) {
	old := newTestItem(t, "old", LocationAllocation{VoxelID: "A1", Quantity: 3})
	cp := TakeCheckpoint([]*Item{old})
	fresh := newTestItem(t, "fresh", LocationAllocation{VoxelID: "A1", Quantity: 4})

	report := ComputeDiff(cp, []*Item{fresh})

	assert.Equal(t, 4, report.DiffFor("fresh"))
	assert.Equal(t, -3, report.DiffFor("old"))
	assert.Equal(t, 1, report.NetChange())
	assert.Equal(t, "fresh", report.Items[0].ID, "sorted by id")
}

func TestComputeDiff_NilCheckpoint(t *testing.T) {
	item := newTestItem(t, "a", LocationAllocation{VoxelID: "A1", Quantity: 2})
	report := ComputeDiff(nil, []*Item{item})
	assert.Equal(t, 2, report.DiffFor("a"))
}

// Offload empties the bin, an import restocks it, and the diff against the
// session checkpoint reports the net change.
func TestSampleScenario_OffloadThenImport(t *testing.T) {
	item := newTestItem(t, "evro-leto-kruzheva", LocationAllocation{VoxelID: "A1", Quantity: 5})
	cp := TakeCheckpoint([]*Item{item})

	total, err := item.ApplyDelta("A1", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, item.Locations)

	next, voxel, _, err := item.Locations.SetPrimary(12)
	require.NoError(t, err)
	item.Locations = next
	assert.Equal(t, "A1", voxel)
	assert.Equal(t, LocationAllocations{{VoxelID: "A1", Quantity: 12}}, item.Locations)
	assert.Equal(t, 12, item.TotalQuantity())

	report := ComputeDiff(cp, []*Item{item})
	assert.Equal(t, 7, report.DiffFor("evro-leto-kruzheva"))
}
