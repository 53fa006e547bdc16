package ledger

import (
	"strings"
)

// DefaultVoxel is the bin that receives stock for an item with no locations
const DefaultVoxel = "A1"

// LocationAllocation is the quantity of an item held in one voxel
type LocationAllocation struct {
	VoxelID  string `json:"voxel_id"`
	Quantity int    `json:"quantity"`
}

// LocationAllocations is the ordered list of an item's voxel allocations.
// No two entries share a VoxelID and every entry has Quantity > 0.
type LocationAllocations []LocationAllocation

// NormalizeVoxelID trims and upper-cases a voxel identifier
func NormalizeVoxelID(voxelID string) string {
	return strings.ToUpper(strings.TrimSpace(voxelID))
}

// NewLocationAllocations builds a valid allocation list from raw entries:
// voxel ids are normalized, duplicates are merged in first-seen order and
// non-positive entries are dropped.
func NewLocationAllocations(entries []LocationAllocation) LocationAllocations {
	out := make(LocationAllocations, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		id := NormalizeVoxelID(e.VoxelID)
		if id == "" {
			continue
		}
		if i, ok := index[id]; ok {
			out[i].Quantity += e.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, LocationAllocation{VoxelID: id, Quantity: e.Quantity})
	}
	return out.pruned()
}

// Total returns the sum of quantities over all voxels
func (l LocationAllocations) Total() int {
	total := 0
	for _, a := range l {
		total += a.Quantity
	}
	return total
}

// QuantityAt returns the quantity held in the voxel, or 0
func (l LocationAllocations) QuantityAt(voxelID string) int {
	id := NormalizeVoxelID(voxelID)
	for _, a := range l {
		if a.VoxelID == id {
			return a.Quantity
		}
	}
	return 0
}

// Voxels returns the voxel ids in list order
func (l LocationAllocations) Voxels() []string {
	out := make([]string, len(l))
	for i, a := range l {
		out[i] = a.VoxelID
	}
	return out
}

// Clone returns a deep copy
func (l LocationAllocations) Clone() LocationAllocations {
	if l == nil {
		return LocationAllocations{}
	}
	out := make(LocationAllocations, len(l))
	copy(out, l)
	return out
}

// Apply returns the allocations after adding delta to the voxel: the entry
// is found or created, the quantity is clamped at 0, and zero entries are
// pruned. The receiver is not modified.
func (l LocationAllocations) Apply(voxelID string, delta int) (LocationAllocations, error) {
	id := NormalizeVoxelID(voxelID)
	if id == "" {
		return nil, ErrInvalidVoxel
	}

	out := l.Clone()
	found := false
	for i := range out {
		if out[i].VoxelID == id {
			out[i].Quantity = max(0, out[i].Quantity+delta)
			found = true
			break
		}
	}
	if !found {
		out = append(out, LocationAllocation{VoxelID: id, Quantity: max(0, delta)})
	}
	return out.pruned(), nil
}

// SetPrimary returns the allocations with the first voxel (or DefaultVoxel
// when empty) holding exactly quantity. It is expressed as a delta so the
// usual clamping and pruning apply.
func (l LocationAllocations) SetPrimary(quantity int) (LocationAllocations, string, int, error) {
	voxel := DefaultVoxel
	if len(l) > 0 {
		voxel = l[0].VoxelID
	}
	delta := quantity - l.QuantityAt(voxel)
	next, err := l.Apply(voxel, delta)
	return next, voxel, delta, err
}

// SetQuantities returns the allocations with each listed voxel holding
// exactly its quantity. An entry without a voxel id sets the primary
// location and is applied before the named voxels.
func (l LocationAllocations) SetQuantities(entries []LocationAllocation) (LocationAllocations, error) {
	out := l.Clone()
	var err error
	for _, e := range entries {
		if NormalizeVoxelID(e.VoxelID) != "" {
			continue
		}
		if out, _, _, err = out.SetPrimary(e.Quantity); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		voxel := NormalizeVoxelID(e.VoxelID)
		if voxel == "" {
			continue
		}
		if out, err = out.Apply(voxel, e.Quantity-out.QuantityAt(voxel)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Equal reports whether both lists hold the same voxels in the same order
func (l LocationAllocations) Equal(other LocationAllocations) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

func (l LocationAllocations) pruned() LocationAllocations {
	out := l[:0]
	for _, a := range l {
		if a.Quantity > 0 {
			out = append(out, a)
		}
	}
	return out
}
