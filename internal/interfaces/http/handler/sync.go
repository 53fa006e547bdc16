package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stockledger/backend/internal/application/stocksync"
	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/infrastructure/scheduler"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
)

// StockSyncer pushes ledger totals to the marketplaces
type StockSyncer interface {
	SyncItems(ctx context.Context, itemIDs []string, channels []integration.ChannelCode) (*stocksync.Report, error)
}

// SyncScheduler queues background sync jobs
type SyncScheduler interface {
	ScheduleSync(itemIDs []string, channels []integration.ChannelCode) (*scheduler.StockSyncJob, error)
	History(limit int) []*scheduler.StockSyncJob
}

// SyncHandler serves manual marketplace syncs
type SyncHandler struct {
	BaseHandler
	syncer    StockSyncer
	scheduler SyncScheduler
}

// NewSyncHandler creates a new SyncHandler. scheduler may be nil when
// background sync is disabled.
func NewSyncHandler(syncer StockSyncer, scheduler SyncScheduler) *SyncHandler {
	return &SyncHandler{syncer: syncer, scheduler: scheduler}
}

// Sync pushes stock synchronously. When any channel fails the response is a
// 502 that still carries the per-channel results, so callers see which
// channels succeeded.
func (h *SyncHandler) Sync(c *gin.Context) {
	itemIDs, channels, ok := h.bind(c)
	if !ok {
		return
	}

	report, err := h.syncer.SyncItems(c.Request.Context(), itemIDs, channels)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if report.HasErrors() {
		resp := dto.NewErrorResponse(dto.ErrCodeChannelSync, report.Err().Error(), middleware.GetRequestID(c))
		resp.Data = report
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	h.Success(c, report)
}

// ScheduleJob queues a background sync and returns the job at once
func (h *SyncHandler) ScheduleJob(c *gin.Context) {
	if h.scheduler == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "background sync is disabled")
		return
	}
	itemIDs, channels, ok := h.bind(c)
	if !ok {
		return
	}

	job, err := h.scheduler.ScheduleSync(itemIDs, channels)
	switch {
	case errors.Is(err, scheduler.ErrFullSyncPending):
		h.Error(c, http.StatusConflict, dto.ErrCodeAlreadyExists, "a full sync is already pending")
	case errors.Is(err, scheduler.ErrJobQueueFull):
		h.Error(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "sync queue is full")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "sync scheduler is not running")
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Accepted(c, job)
	}
}

// Jobs lists recent background jobs, newest first
func (h *SyncHandler) Jobs(c *gin.Context) {
	if h.scheduler == nil {
		h.Success(c, []*scheduler.StockSyncJob{})
		return
	}
	var query dto.LimitQuery
	if !bindQuery(c, &query) {
		return
	}
	if query.Limit == 0 {
		query.Limit = 20
	}
	h.Success(c, h.scheduler.History(query.Limit))
}

// bind reads an optional body; an empty body syncs everything
func (h *SyncHandler) bind(c *gin.Context) ([]string, []integration.ChannelCode, bool) {
	var req dto.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			middleware.HandleValidationError(c, err)
			return nil, nil, false
		}
	}
	channels := make([]integration.ChannelCode, 0, len(req.Channels))
	for _, raw := range req.Channels {
		code, err := integration.ParseChannelCode(raw)
		if err != nil {
			h.BadRequest(c, err.Error())
			return nil, nil, false
		}
		channels = append(channels, code)
	}
	return req.ItemIDs, channels, true
}
