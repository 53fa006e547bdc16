package ledger

import "strings"

// LocationShortfall is a voxel holding less than its minimum
type LocationShortfall struct {
	VoxelID  string `json:"voxel_id"`
	Quantity int    `json:"quantity"`
	Minimum  int    `json:"minimum"`
}

// MinimumPolicy returns the minimum quantity a voxel should hold
type MinimumPolicy interface {
	MinimumFor(voxelID string) int
}

// PrefixMinimumPolicy assigns minimums by voxel id prefix. The longest
// matching prefix wins.
type PrefixMinimumPolicy map[string]int

// DefaultMinimumPolicy flags row-B bins holding fewer than 3 units
func DefaultMinimumPolicy() PrefixMinimumPolicy {
	return PrefixMinimumPolicy{"B": 3}
}

// MinimumFor implements MinimumPolicy
func (p PrefixMinimumPolicy) MinimumFor(voxelID string) int {
	id := NormalizeVoxelID(voxelID)
	best, bestLen := 0, -1
	for prefix, minQty := range p {
		prefix = NormalizeVoxelID(prefix)
		if strings.HasPrefix(id, prefix) && len(prefix) > bestLen {
			best, bestLen = minQty, len(prefix)
		}
	}
	return best
}
