package ledger

import "sort"

// VoxelDiff is the change of one voxel between checkpoint and now
type VoxelDiff struct {
	VoxelID string `json:"voxel_id"`
	Change  int    `json:"change"`
}

// ItemDiff is the change of one item between checkpoint and now
type ItemDiff struct {
	ID         string      `json:"id"`
	DiffQty    int         `json:"diff_qty"`
	VoxelDiffs []VoxelDiff `json:"voxel_diffs,omitempty"`
}

// DiffReport lists every item with any voxel-level change, sorted by id
type DiffReport struct {
	Items []ItemDiff `json:"items"`
}

// ComputeDiff compares the checkpoint with the current items. Items absent
// from the checkpoint count from zero and items absent now count to zero.
func ComputeDiff(cp *Checkpoint, current []*Item) DiffReport {
	before := make(map[string]LocationAllocations)
	if cp != nil {
		for _, s := range cp.Items {
			before[s.ID] = s.Locations
		}
	}
	after := make(map[string]LocationAllocations, len(current))
	for _, it := range current {
		if it != nil {
			after[it.ID] = it.Locations
		}
	}

	ids := make(map[string]struct{}, len(before)+len(after))
	for id := range before {
		ids[id] = struct{}{}
	}
	for id := range after {
		ids[id] = struct{}{}
	}

	var report DiffReport
	for id := range ids {
		voxels := voxelDiffs(before[id], after[id])
		if len(voxels) == 0 {
			continue
		}
		report.Items = append(report.Items, ItemDiff{
			ID:         id,
			DiffQty:    after[id].Total() - before[id].Total(),
			VoxelDiffs: voxels,
		})
	}
	sort.Slice(report.Items, func(i, j int) bool { return report.Items[i].ID < report.Items[j].ID })
	return report
}

func voxelDiffs(before, after LocationAllocations) []VoxelDiff {
	changes := make(map[string]int)
	for _, a := range after {
		changes[a.VoxelID] += a.Quantity
	}
	for _, b := range before {
		changes[b.VoxelID] -= b.Quantity
	}
	var out []VoxelDiff
	for voxel, change := range changes {
		if change != 0 {
			out = append(out, VoxelDiff{VoxelID: voxel, Change: change})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoxelID < out[j].VoxelID })
	return out
}

// Exportable returns the items with a non-zero net change
func (r DiffReport) Exportable() []ItemDiff {
	var out []ItemDiff
	for _, d := range r.Items {
		if d.DiffQty != 0 {
			out = append(out, d)
		}
	}
	return out
}

// ChangedPositions counts items with any voxel change, including transfers
// between voxels that leave the total unchanged
func (r DiffReport) ChangedPositions() int {
	return len(r.Items)
}

// DiffFor returns the net change of an item, 0 if untouched
func (r DiffReport) DiffFor(itemID string) int {
	for _, d := range r.Items {
		if d.ID == itemID {
			return d.DiffQty
		}
	}
	return 0
}

// NetChange sums the net change over all items
func (r DiffReport) NetChange() int {
	total := 0
	for _, d := range r.Items {
		total += d.DiffQty
	}
	return total
}
