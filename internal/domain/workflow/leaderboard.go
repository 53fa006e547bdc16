package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultLeaderboardSize is how many entries the leaderboard reports
const DefaultLeaderboardSize = 10

// LeaderboardEntry is the scored outcome of a completed session
type LeaderboardEntry struct {
	SessionID   uuid.UUID `json:"session_id"`
	Operator    string    `json:"operator"`
	Mode        Mode      `json:"mode"`
	FinalScore  float64   `json:"final_score"`
	Level       int       `json:"level"`
	Onload      int       `json:"onload"`
	Offload     int       `json:"offload"`
	Errors      int       `json:"errors"`
	CompletedAt time.Time `json:"completed_at"`
}

// LeaderboardRepository stores completed session results
type LeaderboardRepository interface {
	Save(ctx context.Context, entry LeaderboardEntry) error
	// Top returns the best entries ordered by final score, highest first
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// BestLevel returns the highest level the operator reached, or 0
	BestLevel(ctx context.Context, operator string) (int, error)
}
