package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/backend/internal/domain/ledger"
)

// Mode is the kind of guided workflow
type Mode string

const (
	ModeOnload  Mode = "onload"
	ModeOffload Mode = "offload"
)

// IsValid reports whether the mode can start a session
func (m Mode) IsValid() bool {
	return m == ModeOnload || m == ModeOffload
}

// ParseMode parses a mode, case-insensitively
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", ErrInvalidMode
	}
	return m, nil
}

// Status is the lifecycle state of a session
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDiscarded Status = "discarded"
)

// WorkItem is one queued change. VoxelID may be empty until the operator
// picks a target location.
type WorkItem struct {
	ItemID  string `json:"item_id"`
	Change  int    `json:"change"`
	VoxelID string `json:"voxel_id,omitempty"`
}

// StepMarker records a queue entry whose ledger delta may have landed
// before the session was saved past it. Before is the voxel quantity read
// just ahead of the update.
type StepMarker struct {
	Cursor  int    `json:"cursor"`
	ItemID  string `json:"item_id"`
	VoxelID string `json:"voxel_id"`
	Change  int    `json:"change"`
	Before  int    `json:"before"`
}

// After is the voxel quantity once the step has been applied
func (m StepMarker) After() int {
	return max(0, m.Before+m.Change)
}

// Session is a guided onload/offload run over a queue of changes.
// The checkpoint is taken once at start and never modified.
type Session struct {
	ID           uuid.UUID          `json:"id"`
	OperatorID   string             `json:"operator_id"`
	Operator     string             `json:"operator"`
	Mode         Mode               `json:"mode"`
	Status       Status             `json:"status"`
	Checkpoint   *ledger.Checkpoint `json:"checkpoint"`
	Queue        []WorkItem         `json:"queue"`
	Cursor       int                `json:"cursor"`
	OnloadCount  int                `json:"onload_count"`
	OffloadCount int                `json:"offload_count"`
	EditCount    int                `json:"edit_count"`
	ErrorCount   int                `json:"error_count"`
	Score        float64            `json:"score"`
	Streak       int                `json:"streak"`
	Level        int                `json:"level"`
	InFlight     *StepMarker        `json:"in_flight,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewSession starts a session for operatorID over the given queue.
// operator is the display name used on the leaderboard.
func NewSession(mode Mode, operatorID, operator string, queue []WorkItem, cp *ledger.Checkpoint, level int) (*Session, error) {
	if operatorID == "" {
		return nil, ErrNoOperator
	}
	if !mode.IsValid() {
		return nil, ErrInvalidMode
	}
	if len(queue) == 0 {
		return nil, ErrEmptyQueue
	}
	q := make([]WorkItem, 0, len(queue))
	for _, w := range queue {
		id := ledger.NormalizeItemID(w.ItemID)
		if id == "" || w.Change == 0 {
			return nil, ErrInvalidQueueEntry
		}
		q = append(q, WorkItem{ItemID: id, Change: w.Change, VoxelID: ledger.NormalizeVoxelID(w.VoxelID)})
	}
	if level < 1 {
		level = 1
	}
	now := time.Now()
	return &Session{
		ID:         uuid.New(),
		OperatorID: operatorID,
		Operator:   operator,
		Mode:       mode,
		Status:     StatusActive,
		Checkpoint: cp,
		Queue:      q,
		Level:      level,
		StartedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Clone copies the session. The checkpoint is shared since it never changes.
func (s *Session) Clone() *Session {
	c := *s
	c.Queue = append([]WorkItem(nil), s.Queue...)
	if s.InFlight != nil {
		m := *s.InFlight
		c.InFlight = &m
	}
	return &c
}

// IsActive reports whether the session still accepts steps
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// IsExhausted reports whether every queue entry was advanced or skipped
func (s *Session) IsExhausted() bool {
	return s.Cursor >= len(s.Queue)
}

// Remaining returns the number of queue entries not yet handled
func (s *Session) Remaining() int {
	return max(0, len(s.Queue)-s.Cursor)
}

// Current returns the queue entry under the cursor
func (s *Session) Current() (WorkItem, bool) {
	if s.IsExhausted() {
		return WorkItem{}, false
	}
	return s.Queue[s.Cursor], true
}

// SelectVoxel sets the target location of the current entry
func (s *Session) SelectVoxel(voxelID string) error {
	if err := s.checkStep(); err != nil {
		return err
	}
	if s.InFlight != nil {
		return ErrStepInFlight
	}
	v := ledger.NormalizeVoxelID(voxelID)
	if v == "" {
		return ledger.ErrInvalidVoxel
	}
	s.Queue[s.Cursor].VoxelID = v
	s.touch()
	return nil
}

// PendingStep returns the entry Advance would apply. It fails with
// ErrVoxelNotSelected while the target location is unresolved.
func (s *Session) PendingStep() (WorkItem, error) {
	if err := s.checkStep(); err != nil {
		return WorkItem{}, err
	}
	w := s.Queue[s.Cursor]
	if w.VoxelID == "" {
		return WorkItem{}, ErrVoxelNotSelected
	}
	return w, nil
}

// BeginStep marks the pending entry as in flight. before is the current
// quantity of its target voxel.
func (s *Session) BeginStep(before int) (StepMarker, error) {
	w, err := s.PendingStep()
	if err != nil {
		return StepMarker{}, err
	}
	m := StepMarker{Cursor: s.Cursor, ItemID: w.ItemID, VoxelID: w.VoxelID, Change: w.Change, Before: before}
	s.InFlight = &m
	s.touch()
	return m, nil
}

// AbortStep clears the in-flight marker after the ledger refused the step
func (s *Session) AbortStep() {
	s.InFlight = nil
	s.touch()
}

// CompleteStep records that the pending entry was applied to the ledger
func (s *Session) CompleteStep() error {
	w, err := s.PendingStep()
	if err != nil {
		return err
	}
	s.InFlight = nil
	switch {
	case s.Mode == ModeOnload && w.Change > 0:
		s.OnloadCount++
	case s.Mode == ModeOffload && w.Change < 0:
		s.OffloadCount++
	}
	s.Score += StepPoints(s.Mode, s.Level)
	s.Streak++
	s.Cursor++
	s.touch()
	return nil
}

// Skip moves past the current entry without touching the ledger. It counts
// as an error and breaks the streak.
func (s *Session) Skip() error {
	if err := s.checkStep(); err != nil {
		return err
	}
	if s.InFlight != nil {
		return ErrStepInFlight
	}
	s.ErrorCount++
	s.Streak = 0
	s.Cursor++
	s.touch()
	return nil
}

// RecordEdit counts an ad-hoc edit made while the session is open
func (s *Session) RecordEdit() {
	s.EditCount++
	s.touch()
}

// Complete closes the session and folds it into a leaderboard entry
func (s *Session) Complete() (LeaderboardEntry, error) {
	if !s.IsActive() {
		return LeaderboardEntry{}, ErrSessionNotActive
	}
	s.Status = StatusCompleted
	s.touch()
	final := FinalScore(s.Score, s.ErrorCount)
	return LeaderboardEntry{
		SessionID:   s.ID,
		Operator:    s.Operator,
		Mode:        s.Mode,
		FinalScore:  final,
		Level:       LevelFor(final),
		Onload:      s.OnloadCount,
		Offload:     s.OffloadCount,
		Errors:      s.ErrorCount,
		CompletedAt: s.UpdatedAt,
	}, nil
}

// Discard closes the session without scoring it
func (s *Session) Discard() error {
	if !s.IsActive() {
		return ErrSessionNotActive
	}
	s.Status = StatusDiscarded
	s.touch()
	return nil
}

func (s *Session) checkStep() error {
	if !s.IsActive() {
		return ErrSessionNotActive
	}
	if s.IsExhausted() {
		return ErrQueueExhausted
	}
	return nil
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}
