package models

import (
	"time"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
)

// ItemModel is the persistence model for ledger.Item. Allocations and
// attributes are JSON columns; channel overrides live in their own table
// so SKU lookups can use an index.
type ItemModel struct {
	ID            string                     `gorm:"type:varchar(255);primary_key"`
	Make          string                     `gorm:"type:varchar(255)"`
	Model         string                     `gorm:"type:varchar(255)"`
	Description   string                     `gorm:"type:text"`
	Status        string                     `gorm:"type:varchar(20);not null;default:'new item'"`
	Attributes    ledger.Attributes          `gorm:"type:text;serializer:json"`
	Locations     ledger.LocationAllocations `gorm:"type:text;serializer:json"`
	TotalQuantity int                        `gorm:"not null;default:0;index"`
	MinQuantity   int                        `gorm:"not null;default:0"`
	Channels      []ItemChannelModel         `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time                  `gorm:"not null"`
	UpdatedAt     time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ItemChannelModel is one per-channel SKU/warehouse override of an item
type ItemChannelModel struct {
	ItemID      string                  `gorm:"type:varchar(255);primary_key"`
	Channel     integration.ChannelCode `gorm:"type:varchar(10);primary_key;index:idx_item_channel_sku,priority:1"`
	SKU         string                  `gorm:"type:varchar(255);index:idx_item_channel_sku,priority:2"`
	WarehouseID string                  `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (ItemChannelModel) TableName() string {
	return "item_channels"
}

// ToDomain converts the persistence model to a domain Item
func (m *ItemModel) ToDomain() *ledger.Item {
	item := &ledger.Item{
		ID:          m.ID,
		Make:        m.Make,
		Model:       m.Model,
		Description: m.Description,
		Attributes:  m.Attributes,
		Locations:   m.Locations.Clone(),
		Channels:    make(ledger.ChannelMappings, len(m.Channels)),
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if item.Locations == nil {
		item.Locations = ledger.LocationAllocations{}
	}
	for _, c := range m.Channels {
		item.Channels[c.Channel] = ledger.ChannelMapping{SKU: c.SKU, WarehouseID: c.WarehouseID}
	}
	return item
}

// FromDomain populates the persistence model from a domain Item
func (m *ItemModel) FromDomain(item *ledger.Item) {
	m.ID = item.ID
	m.Make = item.Make
	m.Model = item.Model
	m.Description = item.Description
	m.Status = item.Status
	m.Attributes = item.Attributes
	m.Locations = item.Locations.Clone()
	m.TotalQuantity = item.TotalQuantity()
	m.MinQuantity = item.Attributes.MinQuantity
	m.CreatedAt = item.CreatedAt
	m.UpdatedAt = item.UpdatedAt

	m.Channels = make([]ItemChannelModel, 0, len(item.Channels))
	for code, c := range item.Channels {
		if c.SKU == "" && c.WarehouseID == "" {
			continue
		}
		m.Channels = append(m.Channels, ItemChannelModel{
			ItemID:      item.ID,
			Channel:     code,
			SKU:         c.SKU,
			WarehouseID: c.WarehouseID,
		})
	}
}

// ItemModelFromDomain creates a new persistence model from a domain Item
func ItemModelFromDomain(item *ledger.Item) *ItemModel {
	m := &ItemModel{}
	m.FromDomain(item)
	return m
}
