package integration

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultEventLogCapacity is how many recent webhook events are kept per channel
const DefaultEventLogCapacity = 20

var (
	ErrWebhookDisabled   = errors.New("integration: webhook is disabled")
	ErrWebhookNoURL      = errors.New("integration: webhook URL is not configured")
	ErrWebhookInvalidURL = errors.New("integration: webhook URL must be an absolute http(s) URL")
)

// WebhookConfig is the outbound webhook configuration of one channel
type WebhookConfig struct {
	Channel   ChannelCode
	URL       string
	Enabled   bool
	Secret    string
	UpdatedAt time.Time
}

// NewWebhookConfig returns a disabled, empty config for the channel
func NewWebhookConfig(channel ChannelCode) *WebhookConfig {
	return &WebhookConfig{Channel: channel}
}

// Validate checks the config can be stored. An empty URL is allowed only
// while the webhook is disabled.
func (c *WebhookConfig) Validate() error {
	if !c.Channel.IsValid() {
		return ErrUnknownChannel
	}
	if c.URL == "" {
		if c.Enabled {
			return ErrWebhookNoURL
		}
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrWebhookInvalidURL
	}
	return nil
}

// CanDeliver returns nil if an event can be sent to this webhook
func (c *WebhookConfig) CanDeliver() error {
	if !c.Enabled {
		return ErrWebhookDisabled
	}
	if c.URL == "" {
		return ErrWebhookNoURL
	}
	return nil
}

// HasSecret reports whether payloads should be signed
func (c *WebhookConfig) HasSecret() bool {
	return c.Secret != ""
}

// WebhookEvent is one delivered (or attempted) webhook event
type WebhookEvent struct {
	ID          uuid.UUID   `json:"id"`
	Channel     ChannelCode `json:"channel"`
	Type        string      `json:"type"`
	Payload     string      `json:"payload"`
	StatusCode  int         `json:"status_code"`
	Error       string      `json:"error,omitempty"`
	DeliveredAt time.Time   `json:"delivered_at"`
}

// Succeeded reports whether the receiver acknowledged the event
func (e *WebhookEvent) Succeeded() bool {
	return e.Error == "" && e.StatusCode >= 200 && e.StatusCode < 300
}

// WebhookConfigRepository persists webhook configs
type WebhookConfigRepository interface {
	// FindByChannel returns the config or shared.ErrNotFound
	FindByChannel(ctx context.Context, channel ChannelCode) (*WebhookConfig, error)
	FindAll(ctx context.Context) ([]WebhookConfig, error)
	Save(ctx context.Context, cfg *WebhookConfig) error
}

// EventLog is a bounded, most-recent-first log of webhook events per channel
type EventLog interface {
	Append(ctx context.Context, event WebhookEvent) error
	// Recent returns at most limit events, newest first
	Recent(ctx context.Context, channel ChannelCode, limit int) ([]WebhookEvent, error)
}

// WebhookDelivery is the outcome of a single POST
type WebhookDelivery struct {
	StatusCode int
	Body       string
}

// WebhookSender posts a payload to a webhook endpoint
type WebhookSender interface {
	Send(ctx context.Context, cfg *WebhookConfig, eventType string, payload []byte) (*WebhookDelivery, error)
}
