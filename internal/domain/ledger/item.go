package ledger

import (
	"strings"
	"time"

	"github.com/stockledger/backend/internal/domain/integration"
)

// Item statuses
const (
	StatusNewItem = "new item"
	StatusActive  = "active"
)

// Attributes are the descriptive properties of an item
type Attributes struct {
	Size    string `json:"size,omitempty"`
	Season  string `json:"season,omitempty"`
	Color   string `json:"color,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	// MinQuantity is the item-level low-stock threshold; 0 disables the alarm
	MinQuantity int `json:"min_quantity,omitempty"`
}

// ChannelMapping overrides how an item is identified on one marketplace
type ChannelMapping struct {
	SKU         string `json:"sku,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

// ChannelMappings holds an item's per-channel overrides
type ChannelMappings map[integration.ChannelCode]ChannelMapping

// Clone returns a copy of the mappings
func (m ChannelMappings) Clone() ChannelMappings {
	out := make(ChannelMappings, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Item is a SKU-identified product together with its voxel allocations
type Item struct {
	ID          string
	Make        string
	Model       string
	Description string
	Attributes  Attributes
	Locations   LocationAllocations
	Channels    ChannelMappings
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeItemID lower-cases and trims an item identifier
func NormalizeItemID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NewItem creates an item with an empty location list.
// Display fields are derived from the id when not set later.
func NewItem(id string) (*Item, error) {
	id = NormalizeItemID(id)
	if id == "" {
		return nil, ErrInvalidItemID
	}
	now := time.Now()
	derived := DeriveDisplayFields(id)
	return &Item{
		ID:          id,
		Make:        derived.Make,
		Model:       derived.Model,
		Description: derived.Description,
		Attributes:  derived.Attributes,
		Locations:   LocationAllocations{},
		Channels:    ChannelMappings{},
		Status:      StatusNewItem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TotalQuantity is the single source of truth for how much stock exists
func (i *Item) TotalQuantity() int {
	return i.Locations.Total()
}

// ApplyDelta applies one location delta operation and returns the new total
func (i *Item) ApplyDelta(voxelID string, delta int) (int, error) {
	next, err := i.Locations.Apply(voxelID, delta)
	if err != nil {
		return i.TotalQuantity(), err
	}
	i.Locations = next
	i.UpdatedAt = time.Now()
	return next.Total(), nil
}

// SetMinQuantity updates the low-stock threshold
func (i *Item) SetMinQuantity(n int) error {
	if n < 0 {
		return ErrNegativeMin
	}
	i.Attributes.MinQuantity = n
	i.UpdatedAt = time.Now()
	return nil
}

// IsLowStock reports whether the total dropped below the item's threshold
func (i *Item) IsLowStock() bool {
	return i.Attributes.MinQuantity > 0 && i.TotalQuantity() < i.Attributes.MinQuantity
}

// LocationsBelowMinimum returns the allocations under the policy's per-voxel minimum
func (i *Item) LocationsBelowMinimum(policy MinimumPolicy) []LocationShortfall {
	if policy == nil {
		return nil
	}
	var out []LocationShortfall
	for _, a := range i.Locations {
		if minQty := policy.MinimumFor(a.VoxelID); minQty > 0 && a.Quantity < minQty {
			out = append(out, LocationShortfall{VoxelID: a.VoxelID, Quantity: a.Quantity, Minimum: minQty})
		}
	}
	return out
}

// StockLine computes what is published to the channel. The SKU falls back
// to the item id and the warehouse to defaultWarehouseID.
func (i *Item) StockLine(channel integration.ChannelCode, defaultWarehouseID string) integration.StockLine {
	line := integration.StockLine{
		ItemID:      i.ID,
		SKU:         i.ID,
		WarehouseID: defaultWarehouseID,
		Quantity:    i.TotalQuantity(),
	}
	if m, ok := i.Channels[channel]; ok {
		if sku := strings.TrimSpace(m.SKU); sku != "" {
			line.SKU = sku
		}
		if wh := strings.TrimSpace(m.WarehouseID); wh != "" {
			line.WarehouseID = wh
		}
	}
	return line
}

// MatchesSKU reports whether sku identifies this item on the channel
func (i *Item) MatchesSKU(channel integration.ChannelCode, sku string) bool {
	sku = strings.TrimSpace(sku)
	if m, ok := i.Channels[channel]; ok && m.SKU != "" {
		return strings.EqualFold(m.SKU, sku)
	}
	return i.ID == NormalizeItemID(sku)
}

// SetChannelWarehouseDefault fills the channel warehouse when none is set
func (i *Item) SetChannelWarehouseDefault(channel integration.ChannelCode, warehouseID string) {
	if warehouseID == "" {
		return
	}
	if i.Channels == nil {
		i.Channels = ChannelMappings{}
	}
	m := i.Channels[channel]
	if m.WarehouseID == "" {
		m.WarehouseID = warehouseID
		i.Channels[channel] = m
	}
}

// DisplayName is "make model", used in exports
func (i *Item) DisplayName() string {
	return strings.TrimSpace(i.Make + " " + i.Model)
}

// Clone returns a deep copy
func (i *Item) Clone() *Item {
	c := *i
	c.Locations = i.Locations.Clone()
	c.Channels = i.Channels.Clone()
	return &c
}
