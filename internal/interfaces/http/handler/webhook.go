package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	webhookapp "github.com/stockledger/backend/internal/application/integration"
	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// WebhookService manages the per-channel webhook configuration
type WebhookService interface {
	ListConfigs(ctx context.Context) ([]webhookapp.WebhookConfigResponse, error)
	GetConfig(ctx context.Context, channel integration.ChannelCode) (*webhookapp.WebhookConfigResponse, error)
	UpdateConfig(ctx context.Context, channel integration.ChannelCode, req webhookapp.UpdateWebhookConfigRequest) (*webhookapp.WebhookConfigResponse, error)
	SendTestEvent(ctx context.Context, channel integration.ChannelCode) (*integration.WebhookEvent, error)
	RecentEvents(ctx context.Context, channel integration.ChannelCode, limit int) ([]integration.WebhookEvent, error)
}

// WebhookHandler serves the webhook configuration endpoints
type WebhookHandler struct {
	BaseHandler
	webhooks WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// List returns the configuration of every channel
func (h *WebhookHandler) List(c *gin.Context) {
	configs, err := h.webhooks.ListConfigs(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, configs)
}

// Get returns one channel's configuration
func (h *WebhookHandler) Get(c *gin.Context) {
	channel, ok := h.channel(c)
	if !ok {
		return
	}
	cfg, err := h.webhooks.GetConfig(c.Request.Context(), channel)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Update replaces a channel's configuration. An omitted secret keeps the
// stored one.
func (h *WebhookHandler) Update(c *gin.Context) {
	channel, ok := h.channel(c)
	if !ok {
		return
	}
	var req webhookapp.UpdateWebhookConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	cfg, err := h.webhooks.UpdateConfig(c.Request.Context(), channel, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Test delivers a test event. A failed delivery is still a 200: the event
// carries the status code and error.
func (h *WebhookHandler) Test(c *gin.Context) {
	channel, ok := h.channel(c)
	if !ok {
		return
	}
	event, err := h.webhooks.SendTestEvent(c.Request.Context(), channel)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, event)
}

// Events lists the latest delivered events of a channel
func (h *WebhookHandler) Events(c *gin.Context) {
	channel, ok := h.channel(c)
	if !ok {
		return
	}
	var query dto.LimitQuery
	if !bindQuery(c, &query) {
		return
	}
	if query.Limit == 0 {
		query.Limit = 20
	}
	events, err := h.webhooks.RecentEvents(c.Request.Context(), channel, query.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

func (h *WebhookHandler) channel(c *gin.Context) (integration.ChannelCode, bool) {
	code, err := integration.ParseChannelCode(c.Param("channel"))
	if err != nil {
		h.BadRequest(c, err.Error())
		return "", false
	}
	return code, true
}
