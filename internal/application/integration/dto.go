package integration

import (
	"time"

	"github.com/stockledger/backend/internal/domain/integration"
)

// WebhookConfigResponse is the read model of a webhook config. The secret
// itself is never returned.
type WebhookConfigResponse struct {
	Channel     integration.ChannelCode `json:"channel"`
	DisplayName string                  `json:"display_name"`
	URL         string                  `json:"url"`
	Enabled     bool                    `json:"enabled"`
	HasSecret   bool                    `json:"has_secret"`
	UpdatedAt   *time.Time              `json:"updated_at,omitempty"`
}

// UpdateWebhookConfigRequest replaces a channel's webhook config. A nil
// Secret keeps the stored one, an empty string clears it.
type UpdateWebhookConfigRequest struct {
	URL     string  `json:"url" binding:"omitempty,url" validate:"omitempty,url"`
	Enabled bool    `json:"enabled"`
	Secret  *string `json:"secret,omitempty" binding:"omitempty,max=256" validate:"omitempty,max=256"`
}

// ToWebhookConfigResponse converts a domain config to its read model
func ToWebhookConfigResponse(cfg *integration.WebhookConfig) WebhookConfigResponse {
	resp := WebhookConfigResponse{
		Channel:     cfg.Channel,
		DisplayName: cfg.Channel.DisplayName(),
		URL:         cfg.URL,
		Enabled:     cfg.Enabled,
		HasSecret:   cfg.HasSecret(),
	}
	if !cfg.UpdatedAt.IsZero() {
		t := cfg.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}
