package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/application/export"
	ledgerapp "github.com/stockledger/backend/internal/application/ledger"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/workflow"
)

// Ledger is the part of the ledger service a session drives
type Ledger interface {
	TakeCheckpoint(ctx context.Context) (*ledger.Checkpoint, error)
	ListAllItems(ctx context.Context) ([]*ledger.Item, error)
	GetItem(ctx context.Context, itemID string) (*ledgerapp.ItemResponse, error)
	UpdateItemLocationQty(ctx context.Context, input ledgerapp.UpdateLocationQtyInput) (*ledgerapp.LocationUpdateResult, error)
}

// DiffArchiver renders and stores the diff of a finished session
type DiffArchiver interface {
	RenderDiff(report ledger.DiffReport, mode export.Mode, format export.Format) (*export.Rendered, error)
	ArchiveExport(ctx context.Context, rendered *export.Rendered) (*export.ArchiveResult, error)
}

// StartInput starts a guided session. OperatorID and Operator come from the
// caller's token.
type StartInput struct {
	Mode       string              `json:"mode" binding:"required"`
	Queue      []workflow.WorkItem `json:"queue" binding:"required,min=1,dive"`
	OperatorID string              `json:"-"`
	Operator   string              `json:"-"`
}

// AdvanceResult is the outcome of one Advance or Skip. Blocked means the
// current entry has no target voxel yet and nothing happened.
type AdvanceResult struct {
	Applied  bool              `json:"applied"`
	Blocked  bool              `json:"blocked"`
	NewTotal int               `json:"new_total"`
	Done     bool              `json:"done"`
	Session  *workflow.Session `json:"session,omitempty"`
	End      *EndResult        `json:"end,omitempty"`
}

// EndResult summarizes a completed session
type EndResult struct {
	SessionID        uuid.UUID                 `json:"session_id"`
	Diff             ledger.DiffReport         `json:"diff"`
	ChangedPositions int                       `json:"changed_positions"`
	LeaderboardEntry workflow.LeaderboardEntry `json:"leaderboard_entry"`
	ArchiveKey       string                    `json:"archive_key,omitempty"`
	DownloadURL      string                    `json:"download_url,omitempty"`
}

// operatorSlot is one operator's view of the store
type operatorSlot struct {
	mu      sync.Mutex
	loaded  bool
	current *workflow.Session
	pending *workflow.Session
}

// SessionService runs guided onload/offload sessions, at most one per
// operator. Every mutation is persisted before it returns. A ledger step is
// marked in flight and saved before it is applied, so a crash between the
// ledger write and the session save is detected instead of replayed.
// A session found in the store stays pending until its operator resumes or
// discards it.
type SessionService struct {
	ledger      Ledger
	store       workflow.SessionStore
	leaderboard workflow.LeaderboardRepository
	archiver    DiffArchiver
	logger      *zap.Logger
	topN        int

	mu    sync.Mutex
	slots map[string]*operatorSlot
}

// NewSessionService creates a SessionService. archiver may be nil.
func NewSessionService(
	l Ledger,
	store workflow.SessionStore,
	leaderboard workflow.LeaderboardRepository,
	archiver DiffArchiver,
	leaderboardSize int,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if leaderboardSize <= 0 {
		leaderboardSize = workflow.DefaultLeaderboardSize
	}
	return &SessionService{
		ledger:      l,
		store:       store,
		leaderboard: leaderboard,
		archiver:    archiver,
		logger:      logger,
		topN:        leaderboardSize,
		slots:       make(map[string]*operatorSlot),
	}
}

// lock returns the operator's slot with its mutex held
func (s *SessionService) lock(operatorID string) (*operatorSlot, error) {
	if operatorID == "" {
		return nil, shared.WrapDomainError(shared.CodeUnauthorized, "operator id is required", workflow.ErrNoOperator)
	}
	s.mu.Lock()
	slot, ok := s.slots[operatorID]
	if !ok {
		slot = &operatorSlot{}
		s.slots[operatorID] = slot
	}
	s.mu.Unlock()
	slot.mu.Lock()
	return slot, nil
}

// Interrupted lists the stored sessions that are still active, for every
// operator. Used to report unfinished work at startup.
func (s *SessionService) Interrupted(ctx context.Context) ([]*workflow.Session, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, persistenceError("list sessions", err)
	}
	out := make([]*workflow.Session, 0, len(all))
	for _, sess := range all {
		if sess.IsActive() {
			out = append(out, sess)
		}
	}
	return out, nil
}

// PendingResume loads the operator's persisted session on first use and
// returns it when it is still active and awaiting a resume or discard
// decision.
func (s *SessionService) PendingResume(ctx context.Context, operatorID string) (*workflow.Session, error) {
	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	if err := s.load(ctx, slot, operatorID); err != nil {
		return nil, err
	}
	if slot.pending == nil {
		return nil, nil
	}
	return slot.pending.Clone(), nil
}

// Resume makes the operator's pending session current again
func (s *SessionService) Resume(ctx context.Context, operatorID string) (*workflow.Session, error) {
	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	if err := s.load(ctx, slot, operatorID); err != nil {
		return nil, err
	}
	if slot.pending == nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidState, "no session to resume", workflow.ErrNoSession)
	}
	if err := checkOwner(slot.pending, operatorID); err != nil {
		return nil, err
	}
	slot.current, slot.pending = slot.pending, nil
	s.logger.Info("workflow session resumed",
		zap.String("session_id", slot.current.ID.String()),
		zap.String("operator_id", operatorID),
		zap.Int("cursor", slot.current.Cursor),
		zap.Bool("step_in_flight", slot.current.InFlight != nil),
	)
	return slot.current.Clone(), nil
}

// Discard drops the operator's pending session, or the current one, without
// scoring it. Ledger changes already applied stay. The session stays put
// when the store cannot delete it.
func (s *SessionService) Discard(ctx context.Context, operatorID string) error {
	slot, err := s.lock(operatorID)
	if err != nil {
		return err
	}
	defer slot.mu.Unlock()
	if err := s.load(ctx, slot, operatorID); err != nil {
		return err
	}
	sess := slot.pending
	if sess == nil {
		sess = slot.current
	}
	if sess == nil {
		return shared.WrapDomainError(shared.CodeInvalidState, "no session to discard", workflow.ErrNoSession)
	}
	if err := checkOwner(sess, operatorID); err != nil {
		return err
	}
	if err := sess.Clone().Discard(); err != nil {
		return mapError(err)
	}
	if err := s.store.Delete(ctx, operatorID); err != nil {
		return persistenceError("delete session", err)
	}
	s.logger.Info("workflow session discarded",
		zap.String("session_id", sess.ID.String()),
		zap.String("operator_id", operatorID),
	)
	slot.current, slot.pending = nil, nil
	return nil
}

// Current returns the operator's active session
func (s *SessionService) Current(ctx context.Context, operatorID string) (*workflow.Session, error) {
	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	sess, err := s.active(ctx, slot, operatorID)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Start checkpoints the ledger and opens a session over the queue
func (s *SessionService) Start(ctx context.Context, input StartInput) (*workflow.Session, error) {
	mode, err := workflow.ParseMode(input.Mode)
	if err != nil {
		return nil, mapError(err)
	}

	slot, err := s.lock(input.OperatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	if err := s.load(ctx, slot, input.OperatorID); err != nil {
		return nil, err
	}
	if slot.pending != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "a previous session awaits resume or discard")
	}
	if slot.current != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "a session is already active")
	}

	name := input.Operator
	if name == "" {
		name = input.OperatorID
	}
	level := 1
	if s.leaderboard != nil {
		best, err := s.leaderboard.BestLevel(ctx, name)
		if err != nil {
			return nil, persistenceError("load operator level", err)
		}
		level = max(best, 1)
	}

	cp, err := s.ledger.TakeCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := workflow.NewSession(mode, input.OperatorID, name, input.Queue, cp, level)
	if err != nil {
		return nil, mapError(err)
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, persistenceError("save session", err)
	}
	slot.current = sess

	s.logger.Info("workflow session started",
		zap.String("session_id", sess.ID.String()),
		zap.String("operator_id", sess.OperatorID),
		zap.String("operator", sess.Operator),
		zap.String("mode", string(sess.Mode)),
		zap.Int("queue", len(sess.Queue)),
		zap.Int("level", sess.Level),
	)
	return sess.Clone(), nil
}

// SelectVoxel sets the target voxel of the current queue entry
func (s *SessionService) SelectVoxel(ctx context.Context, operatorID, voxelID string) (*workflow.Session, error) {
	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	sess, err := s.active(ctx, slot, operatorID)
	if err != nil {
		return nil, err
	}
	next := sess.Clone()
	if err := next.SelectVoxel(voxelID); err != nil {
		return nil, mapError(err)
	}
	if err := s.store.Save(ctx, next); err != nil {
		return nil, persistenceError("save session", err)
	}
	slot.current = next
	return next.Clone(), nil
}

// Advance applies the current entry to the ledger and moves the cursor.
// The step is saved as in flight first and the ledger update only goes
// through while the voxel still holds the quantity read at that point. When
// a marked step finds its result already on the ledger it is completed
// without being applied again. A ledger failure leaves the cursor where it
// was. The session ends on its own once the queue is exhausted.
func (s *SessionService) Advance(ctx context.Context, operatorID string) (*AdvanceResult, error) {
	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	sess, err := s.active(ctx, slot, operatorID)
	if err != nil {
		return nil, err
	}

	step, err := sess.PendingStep()
	if errors.Is(err, workflow.ErrVoxelNotSelected) {
		return &AdvanceResult{Blocked: true, Session: sess.Clone()}, nil
	}
	if err != nil {
		return nil, mapError(err)
	}

	marker := sess.InFlight
	if marker == nil || marker.Cursor != sess.Cursor {
		item, err := s.ledger.GetItem(ctx, step.ItemID)
		if err != nil {
			return nil, err
		}
		begun := sess.Clone()
		m, err := begun.BeginStep(item.Locations.QuantityAt(step.VoxelID))
		if err != nil {
			return nil, mapError(err)
		}
		if err := s.store.Save(ctx, begun); err != nil {
			return nil, persistenceError("save session", err)
		}
		slot.current, sess, marker = begun, begun, &m
	}

	expect := marker.Before
	res, err := s.ledger.UpdateItemLocationQty(ctx, ledgerapp.UpdateLocationQtyInput{
		ItemID:         step.ItemID,
		VoxelID:        step.VoxelID,
		Delta:          step.Change,
		ExpectQuantity: &expect,
	})
	var newTotal int
	switch {
	case err == nil:
		newTotal = res.NewTotal
	case errors.Is(err, ledger.ErrStaleQuantity):
		total, landed, lerr := s.stepLanded(ctx, *marker)
		if lerr != nil {
			return nil, lerr
		}
		if !landed {
			s.abortStep(ctx, slot, sess)
			return nil, shared.WrapDomainError(shared.CodeInvalidState,
				"the voxel changed while the step was in flight; check the item and advance again", err)
		}
		s.logger.Info("workflow step already applied",
			zap.String("session_id", sess.ID.String()),
			zap.Int("cursor", marker.Cursor),
			zap.String("item_id", marker.ItemID),
		)
		newTotal = total
	default:
		s.abortStep(ctx, slot, sess)
		return nil, err
	}

	next := sess.Clone()
	if err := next.CompleteStep(); err != nil {
		return nil, mapError(err)
	}
	if err := s.store.Save(ctx, next); err != nil {
		// sess keeps the marker, so the next Advance finds the step applied
		return nil, persistenceError("save session", err)
	}
	slot.current = next

	return s.finishStep(ctx, slot, next, &AdvanceResult{Applied: true, NewTotal: newTotal})
}

// stepLanded reports whether the marked voxel holds the step's result
func (s *SessionService) stepLanded(ctx context.Context, m workflow.StepMarker) (int, bool, error) {
	item, err := s.ledger.GetItem(ctx, m.ItemID)
	if err != nil {
		return 0, false, err
	}
	return item.TotalQuantity, item.Locations.QuantityAt(m.VoxelID) == m.After(), nil
}

// abortStep clears the marker of a step the ledger refused. A failed save
// leaves the marker stored, which is safe since the ledger never changed.
func (s *SessionService) abortStep(ctx context.Context, slot *operatorSlot, sess *workflow.Session) {
	next := sess.Clone()
	next.AbortStep()
	slot.current = next
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Warn("failed to clear in-flight step",
			zap.String("session_id", sess.ID.String()),
			zap.Error(err),
		)
	}
}

// Skip moves past the current entry without touching the ledger
func (s *SessionService) Skip(ctx context.Context, operatorID string) (*AdvanceResult, error) {
	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	sess, err := s.active(ctx, slot, operatorID)
	if err != nil {
		return nil, err
	}
	next := sess.Clone()
	if err := next.Skip(); err != nil {
		return nil, mapError(err)
	}
	if err := s.store.Save(ctx, next); err != nil {
		return nil, persistenceError("save session", err)
	}
	slot.current = next
	return s.finishStep(ctx, slot, next, &AdvanceResult{})
}

func (s *SessionService) finishStep(ctx context.Context, slot *operatorSlot, sess *workflow.Session, out *AdvanceResult) (*AdvanceResult, error) {
	if !sess.IsExhausted() {
		out.Session = sess.Clone()
		return out, nil
	}
	end, err := s.end(ctx, slot, sess)
	if err != nil {
		return nil, err
	}
	out.Done = true
	out.End = end
	return out, nil
}

// RecordEdit applies an ad-hoc delta outside the guided queue. It is
// counted on the operator's active session when there is one.
func (s *SessionService) RecordEdit(ctx context.Context, operatorID string, input ledgerapp.UpdateLocationQtyInput) (*ledgerapp.LocationUpdateResult, error) {
	if operatorID == "" {
		return nil, shared.WrapDomainError(shared.CodeUnauthorized, "operator id is required", workflow.ErrNoOperator)
	}
	input.ExpectQuantity = nil
	res, err := s.ledger.UpdateItemLocationQty(ctx, input)
	if err != nil {
		return nil, err
	}

	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	if err := s.load(ctx, slot, operatorID); err != nil {
		return nil, err
	}
	if slot.current != nil && input.Delta != 0 {
		next := slot.current.Clone()
		next.RecordEdit()
		if err := s.store.Save(ctx, next); err != nil {
			return nil, persistenceError("save session", err)
		}
		slot.current = next
	}
	return res, nil
}

// End closes the operator's active session, scores it and archives its diff
func (s *SessionService) End(ctx context.Context, operatorID string) (*EndResult, error) {
	slot, err := s.lock(operatorID)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()
	sess, err := s.active(ctx, slot, operatorID)
	if err != nil {
		return nil, err
	}
	return s.end(ctx, slot, sess)
}

// Leaderboard returns the best completed sessions
func (s *SessionService) Leaderboard(ctx context.Context) ([]workflow.LeaderboardEntry, error) {
	if s.leaderboard == nil {
		return []workflow.LeaderboardEntry{}, nil
	}
	entries, err := s.leaderboard.Top(ctx, s.topN)
	if err != nil {
		return nil, persistenceError("load leaderboard", err)
	}
	return entries, nil
}

// end completes a copy of sess. The live session is only dropped once the
// store has forgotten it, so a failed delete can be retried with End.
// Scoring and archiving happen after that and only log their failures.
func (s *SessionService) end(ctx context.Context, slot *operatorSlot, sess *workflow.Session) (*EndResult, error) {
	items, err := s.ledger.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}
	diff := ledger.ComputeDiff(sess.Checkpoint, items)

	done := sess.Clone()
	entry, err := done.Complete()
	if err != nil {
		return nil, mapError(err)
	}
	if err := s.store.Delete(ctx, done.OperatorID); err != nil {
		return nil, persistenceError("delete session", err)
	}
	slot.current = nil

	if s.leaderboard != nil {
		if err := s.leaderboard.Save(ctx, entry); err != nil {
			s.logger.Error("failed to save leaderboard entry",
				zap.String("session_id", done.ID.String()),
				zap.Error(err),
			)
		}
	}

	out := &EndResult{
		SessionID:        done.ID,
		Diff:             diff,
		ChangedPositions: diff.ChangedPositions(),
		LeaderboardEntry: entry,
	}
	s.archive(ctx, diff, out)

	s.logger.Info("workflow session ended",
		zap.String("session_id", done.ID.String()),
		zap.String("operator_id", done.OperatorID),
		zap.String("operator", done.Operator),
		zap.Float64("final_score", entry.FinalScore),
		zap.Int("level", entry.Level),
		zap.Int("changed_positions", out.ChangedPositions),
	)
	return out, nil
}

// archive stores the detailed diff. A failure is logged and the session
// still ends.
func (s *SessionService) archive(ctx context.Context, diff ledger.DiffReport, out *EndResult) {
	if s.archiver == nil {
		return
	}
	rendered, err := s.archiver.RenderDiff(diff, export.ModeDetailed, export.FormatCSV)
	if err != nil {
		s.logger.Warn("failed to render session diff", zap.Error(err))
		return
	}
	res, err := s.archiver.ArchiveExport(ctx, rendered)
	if err != nil {
		s.logger.Warn("failed to archive session diff", zap.Error(err))
		return
	}
	if res != nil {
		out.ArchiveKey = res.Key
		out.DownloadURL = res.DownloadURL
	}
}

// load reads the operator's stored session once. An active stored session
// becomes pending.
func (s *SessionService) load(ctx context.Context, slot *operatorSlot, operatorID string) error {
	if slot.loaded {
		return nil
	}
	sess, err := s.store.Load(ctx, operatorID)
	switch {
	case errors.Is(err, workflow.ErrNoSession):
	case err != nil:
		return persistenceError("load session", err)
	case sess.OperatorID != operatorID:
		return checkOwner(sess, operatorID)
	case sess.IsActive():
		slot.pending = sess
		s.logger.Warn("found unfinished workflow session",
			zap.String("session_id", sess.ID.String()),
			zap.String("operator_id", operatorID),
			zap.Int("remaining", sess.Remaining()),
		)
	}
	slot.loaded = true
	return nil
}

func (s *SessionService) active(ctx context.Context, slot *operatorSlot, operatorID string) (*workflow.Session, error) {
	if err := s.load(ctx, slot, operatorID); err != nil {
		return nil, err
	}
	if slot.pending != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "a previous session awaits resume or discard")
	}
	if slot.current == nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidState, "no active session", workflow.ErrNoSession)
	}
	if err := checkOwner(slot.current, operatorID); err != nil {
		return nil, err
	}
	return slot.current, nil
}

func checkOwner(sess *workflow.Session, operatorID string) error {
	if sess.OperatorID != operatorID {
		return shared.WrapDomainError(shared.CodeForbidden, "session belongs to another operator", workflow.ErrNotOwner)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrNoOperator):
		return shared.WrapDomainError(shared.CodeUnauthorized, err.Error(), err)
	case errors.Is(err, workflow.ErrInvalidMode),
		errors.Is(err, workflow.ErrEmptyQueue),
		errors.Is(err, workflow.ErrInvalidQueueEntry),
		errors.Is(err, ledger.ErrInvalidVoxel):
		return shared.WrapDomainError(shared.CodeInvalidInput, err.Error(), err)
	case errors.Is(err, workflow.ErrSessionNotActive),
		errors.Is(err, workflow.ErrQueueExhausted),
		errors.Is(err, workflow.ErrStepInFlight),
		errors.Is(err, workflow.ErrNoSession):
		return shared.WrapDomainError(shared.CodeInvalidState, err.Error(), err)
	}
	return err
}

func persistenceError(op string, err error) error {
	return shared.WrapDomainError(shared.CodePersistence, "failed to "+op, err)
}
