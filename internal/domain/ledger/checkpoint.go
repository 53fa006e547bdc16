package ledger

import (
	"time"

	"github.com/google/uuid"
)

// ItemSnapshot is the frozen state of one item inside a checkpoint
type ItemSnapshot struct {
	ID        string              `json:"id"`
	Locations LocationAllocations `json:"locations"`
}

// Total returns the snapshot's total quantity
func (s ItemSnapshot) Total() int {
	return s.Locations.Total()
}

// Checkpoint is an immutable deep copy of the ledger taken when an editing
// session starts. It is only used for diffing.
type Checkpoint struct {
	ID      uuid.UUID      `json:"id"`
	TakenAt time.Time      `json:"taken_at"`
	Items   []ItemSnapshot `json:"items"`
}

// TakeCheckpoint deep-copies the given items
func TakeCheckpoint(items []*Item) *Checkpoint {
	cp := &Checkpoint{
		ID:      uuid.New(),
		TakenAt: time.Now(),
		Items:   make([]ItemSnapshot, 0, len(items)),
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		cp.Items = append(cp.Items, ItemSnapshot{ID: it.ID, Locations: it.Locations.Clone()})
	}
	return cp
}

// Snapshot returns the frozen state of an item, if it was present
func (c *Checkpoint) Snapshot(itemID string) (ItemSnapshot, bool) {
	for _, s := range c.Items {
		if s.ID == itemID {
			return ItemSnapshot{ID: s.ID, Locations: s.Locations.Clone()}, true
		}
	}
	return ItemSnapshot{}, false
}

// TotalFor returns the item's total at checkpoint time, or 0 if absent
func (c *Checkpoint) TotalFor(itemID string) int {
	s, _ := c.Snapshot(itemID)
	return s.Total()
}
