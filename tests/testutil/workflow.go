package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/stockledger/backend/internal/domain/workflow"
)

// MemoryLeaderboard is an in-memory workflow.LeaderboardRepository
type MemoryLeaderboard struct {
	mu      sync.Mutex
	entries []workflow.LeaderboardEntry
}

// NewMemoryLeaderboard creates a leaderboard seeded with entries
func NewMemoryLeaderboard(entries ...workflow.LeaderboardEntry) *MemoryLeaderboard {
	return &MemoryLeaderboard{entries: append([]workflow.LeaderboardEntry(nil), entries...)}
}

func (l *MemoryLeaderboard) Save(_ context.Context, entry workflow.LeaderboardEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *MemoryLeaderboard) Top(_ context.Context, limit int) ([]workflow.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]workflow.LeaderboardEntry(nil), l.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLeaderboard) BestLevel(_ context.Context, operator string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	best := 0
	for _, e := range l.entries {
		if e.Operator == operator && e.Level > best {
			best = e.Level
		}
	}
	return best, nil
}

var _ workflow.LeaderboardRepository = (*MemoryLeaderboard)(nil)
