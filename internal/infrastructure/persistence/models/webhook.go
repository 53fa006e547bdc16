package models

import (
	"time"

	"github.com/stockledger/backend/internal/domain/integration"
)

// WebhookConfigModel is the persistence model for integration.WebhookConfig
type WebhookConfigModel struct {
	Channel   integration.ChannelCode `gorm:"type:varchar(10);primary_key"`
	URL       string                  `gorm:"type:varchar(2048)"`
	Enabled   bool                    `gorm:"not null;default:false"`
	Secret    string                  `gorm:"type:varchar(256)"`
	UpdatedAt time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookConfigModel) TableName() string {
	return "webhook_configs"
}

// ToDomain converts the model to a domain WebhookConfig
func (m *WebhookConfigModel) ToDomain() *integration.WebhookConfig {
	return &integration.WebhookConfig{
		Channel:   m.Channel,
		URL:       m.URL,
		Enabled:   m.Enabled,
		Secret:    m.Secret,
		UpdatedAt: m.UpdatedAt,
	}
}

// WebhookConfigModelFromDomain creates a model from a domain WebhookConfig
func WebhookConfigModelFromDomain(c *integration.WebhookConfig) *WebhookConfigModel {
	return &WebhookConfigModel{
		Channel:   c.Channel,
		URL:       c.URL,
		Enabled:   c.Enabled,
		Secret:    c.Secret,
		UpdatedAt: c.UpdatedAt,
	}
}
