package models

import "time"

// ProcessedKeyModel remembers an applied idempotency key, such as a
// marketplace order id, until it expires
type ProcessedKeyModel struct {
	Key       string    `gorm:"column:idempotency_key;type:varchar(255);primary_key"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProcessedKeyModel) TableName() string {
	return "processed_keys"
}
