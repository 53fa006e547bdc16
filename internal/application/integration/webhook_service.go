package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/shared"
)

// TestEventType is the type of the synthetic event sent by SendTestEvent
const TestEventType = "webhook.test"

var validate = validator.New()

// WebhookService manages per-channel webhook configs and test deliveries
type WebhookService struct {
	configs  integration.WebhookConfigRepository
	registry integration.MarketplaceRegistry
	sender   integration.WebhookSender
	events   integration.EventLog
	logger   *zap.Logger
	now      func() time.Time
}

// NewWebhookService creates a WebhookService
func NewWebhookService(
	configs integration.WebhookConfigRepository,
	registry integration.MarketplaceRegistry,
	sender integration.WebhookSender,
	events integration.EventLog,
	logger *zap.Logger,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		configs:  configs,
		registry: registry,
		sender:   sender,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// GetConfig returns the channel's config, a disabled empty one if none is stored
func (s *WebhookService) GetConfig(ctx context.Context, channel integration.ChannelCode) (*WebhookConfigResponse, error) {
	cfg, err := s.load(ctx, channel)
	if err != nil {
		return nil, err
	}
	resp := ToWebhookConfigResponse(cfg)
	return &resp, nil
}

// ListConfigs returns the config of every registered channel, ordered by code
func (s *WebhookService) ListConfigs(ctx context.Context) ([]WebhookConfigResponse, error) {
	stored, err := s.configs.FindAll(ctx)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "failed to list webhook configs", err)
	}
	byChannel := make(map[integration.ChannelCode]integration.WebhookConfig, len(stored))
	for _, c := range stored {
		byChannel[c.Channel] = c
	}

	adapters := s.registry.List()
	out := make([]WebhookConfigResponse, 0, len(adapters))
	for _, a := range adapters {
		cfg, ok := byChannel[a.Code()]
		if !ok {
			cfg = *integration.NewWebhookConfig(a.Code())
		}
		out = append(out, ToWebhookConfigResponse(&cfg))
	}
	return out, nil
}

// UpdateConfig replaces the channel's webhook config
func (s *WebhookService) UpdateConfig(ctx context.Context, channel integration.ChannelCode, req UpdateWebhookConfigRequest) (*WebhookConfigResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "invalid webhook config", err)
	}
	cfg, err := s.load(ctx, channel)
	if err != nil {
		return nil, err
	}

	cfg.URL = req.URL
	cfg.Enabled = req.Enabled
	if req.Secret != nil {
		cfg.Secret = *req.Secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, err.Error(), err)
	}
	cfg.UpdatedAt = s.now()
	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "failed to save webhook config", err)
	}

	s.logger.Info("webhook config updated",
		zap.String("channel", string(channel)),
		zap.Bool("enabled", cfg.Enabled),
		zap.Bool("signed", cfg.HasSecret()),
	)
	resp := ToWebhookConfigResponse(cfg)
	return &resp, nil
}

// SendTestEvent posts a synthetic event to the channel's webhook and
// records the attempt. A delivery failure is reported in the returned
// event rather than as an error.
func (s *WebhookService) SendTestEvent(ctx context.Context, channel integration.ChannelCode) (*integration.WebhookEvent, error) {
	cfg, err := s.load(ctx, channel)
	if err != nil {
		return nil, err
	}
	if err := cfg.CanDeliver(); err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidState, err.Error(), err)
	}

	event := integration.WebhookEvent{
		ID:      uuid.New(),
		Channel: channel,
		Type:    TestEventType,
	}
	payload, err := json.Marshal(map[string]any{
		"id":      event.ID,
		"type":    TestEventType,
		"channel": channel,
		"sent_at": s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	event.Payload = string(payload)

	delivery, sendErr := s.sender.Send(ctx, cfg, TestEventType, payload)
	event.DeliveredAt = s.now()
	if delivery != nil {
		event.StatusCode = delivery.StatusCode
	}
	switch {
	case sendErr != nil:
		event.Error = sendErr.Error()
	case !event.Succeeded():
		event.Error = fmt.Sprintf("receiver returned %d %s", event.StatusCode, http.StatusText(event.StatusCode))
	}

	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Warn("failed to record webhook event", zap.String("channel", string(channel)), zap.Error(err))
	}
	s.logger.Info("webhook test event sent",
		zap.String("channel", string(channel)),
		zap.Int("status_code", event.StatusCode),
		zap.Bool("succeeded", event.Succeeded()),
	)
	return &event, nil
}

// RecentEvents returns the newest events of the channel, at most the log capacity
func (s *WebhookService) RecentEvents(ctx context.Context, channel integration.ChannelCode, limit int) ([]integration.WebhookEvent, error) {
	if _, err := s.registry.Get(channel); err != nil {
		return nil, shared.WrapDomainError(shared.CodeNotFound, "channel is not registered", err)
	}
	if limit <= 0 || limit > integration.DefaultEventLogCapacity {
		limit = integration.DefaultEventLogCapacity
	}
	events, err := s.events.Recent(ctx, channel, limit)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "failed to read webhook events", err)
	}
	if events == nil {
		events = []integration.WebhookEvent{}
	}
	return events, nil
}

func (s *WebhookService) load(ctx context.Context, channel integration.ChannelCode) (*integration.WebhookConfig, error) {
	if _, err := s.registry.Get(channel); err != nil {
		return nil, shared.WrapDomainError(shared.CodeNotFound, "channel is not registered", err)
	}
	cfg, err := s.configs.FindByChannel(ctx, channel)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return integration.NewWebhookConfig(channel), nil
	case err != nil:
		return nil, shared.WrapDomainError(shared.CodePersistence, "failed to load webhook config", err)
	}
	return cfg, nil
}
