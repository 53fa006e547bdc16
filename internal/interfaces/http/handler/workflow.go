package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	ledgerapp "github.com/stockledger/backend/internal/application/ledger"
	workflowapp "github.com/stockledger/backend/internal/application/workflow"
	"github.com/stockledger/backend/internal/domain/workflow"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// SessionService drives the onload/offload workflow. Sessions are scoped
// to the operator id of the caller's token.
type SessionService interface {
	PendingResume(ctx context.Context, operatorID string) (*workflow.Session, error)
	Current(ctx context.Context, operatorID string) (*workflow.Session, error)
	Start(ctx context.Context, input workflowapp.StartInput) (*workflow.Session, error)
	SelectVoxel(ctx context.Context, operatorID, voxelID string) (*workflow.Session, error)
	Advance(ctx context.Context, operatorID string) (*workflowapp.AdvanceResult, error)
	Skip(ctx context.Context, operatorID string) (*workflowapp.AdvanceResult, error)
	End(ctx context.Context, operatorID string) (*workflowapp.EndResult, error)
	Resume(ctx context.Context, operatorID string) (*workflow.Session, error)
	Discard(ctx context.Context, operatorID string) error
	RecordEdit(ctx context.Context, operatorID string, input ledgerapp.UpdateLocationQtyInput) (*ledgerapp.LocationUpdateResult, error)
	Leaderboard(ctx context.Context) ([]workflow.LeaderboardEntry, error)
}

// SessionState is the response of GET /workflow/session. At most one of the
// two is set.
type SessionState struct {
	Active  *workflow.Session `json:"active"`
	Pending *workflow.Session `json:"pending"`
}

// WorkflowHandler serves the workflow session endpoints
type WorkflowHandler struct {
	BaseHandler
	sessions SessionService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(sessions SessionService) *WorkflowHandler {
	return &WorkflowHandler{sessions: sessions}
}

// Session reports the caller's active session, or the stale one awaiting a
// decision
func (h *WorkflowHandler) Session(c *gin.Context) {
	ctx := c.Request.Context()
	opID := operator(c).ID
	pending, err := h.sessions.PendingResume(ctx, opID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if pending != nil {
		h.Success(c, SessionState{Pending: pending})
		return
	}

	active, err := h.sessions.Current(ctx, opID)
	if err != nil && !errors.Is(err, workflow.ErrNoSession) {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SessionState{Active: active})
}

// Start checkpoints the ledger and opens a session for the caller
func (h *WorkflowHandler) Start(c *gin.Context) {
	var input workflowapp.StartInput
	if !bindJSON(c, &input) {
		return
	}
	op := operator(c)
	input.OperatorID = op.ID
	input.Operator = op.Name
	if input.Operator == "" {
		input.Operator = op.ID
	}

	sess, err := h.sessions.Start(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sess)
}

// SelectVoxel resolves the target voxel of the current step
func (h *WorkflowHandler) SelectVoxel(c *gin.Context) {
	var req dto.SelectVoxelRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.sessions.SelectVoxel(c.Request.Context(), operator(c).ID, req.VoxelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sess)
}

// Advance applies the current step to the ledger
func (h *WorkflowHandler) Advance(c *gin.Context) {
	h.step(c, h.sessions.Advance)
}

// Skip moves past the current step without touching the ledger
func (h *WorkflowHandler) Skip(c *gin.Context) {
	h.step(c, h.sessions.Skip)
}

func (h *WorkflowHandler) step(c *gin.Context, fn func(context.Context, string) (*workflowapp.AdvanceResult, error)) {
	result, err := fn(c.Request.Context(), operator(c).ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// End closes the session and returns its diff and score
func (h *WorkflowHandler) End(c *gin.Context) {
	result, err := h.sessions.End(c.Request.Context(), operator(c).ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Resume continues the pending session
func (h *WorkflowHandler) Resume(c *gin.Context) {
	sess, err := h.sessions.Resume(c.Request.Context(), operator(c).ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sess)
}

// Discard drops the pending or active session without scoring it
func (h *WorkflowHandler) Discard(c *gin.Context) {
	if err := h.sessions.Discard(c.Request.Context(), operator(c).ID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Edit applies an ad-hoc delta, counted against the session when one runs
func (h *WorkflowHandler) Edit(c *gin.Context) {
	var req dto.WorkflowEditRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.sessions.RecordEdit(c.Request.Context(), operator(c).ID, ledgerapp.UpdateLocationQtyInput{
		ItemID:  req.ItemID,
		VoxelID: req.VoxelID,
		Delta:   req.Delta,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Leaderboard returns the top scored sessions
func (h *WorkflowHandler) Leaderboard(c *gin.Context) {
	entries, err := h.sessions.Leaderboard(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}
