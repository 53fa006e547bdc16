package ledger

import (
	"time"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
)

// UpdateLocationQtyInput is one location delta operation
type UpdateLocationQtyInput struct {
	ItemID  string `json:"item_id"`
	VoxelID string `json:"voxel_id" binding:"required"`
	Delta   int    `json:"delta"`
	// ExpectQuantity, when set, makes the update fail with
	// ledger.ErrStaleQuantity unless the voxel holds exactly this amount
	ExpectQuantity *int `json:"-"`
}

// LocationUpdateResult reports the outcome of a location delta
type LocationUpdateResult struct {
	Success   bool                       `json:"success"`
	ItemID    string                     `json:"item_id"`
	VoxelID   string                     `json:"voxel_id"`
	NewTotal  int                        `json:"new_total"`
	Locations ledger.LocationAllocations `json:"locations"`
}

// ItemResponse is the read model of an item
type ItemResponse struct {
	ID                    string                     `json:"id"`
	Make                  string                     `json:"make"`
	Model                 string                     `json:"model"`
	Description           string                     `json:"description"`
	Size                  string                     `json:"size,omitempty"`
	Season                string                     `json:"season,omitempty"`
	Color                 string                     `json:"color,omitempty"`
	Pattern               string                     `json:"pattern,omitempty"`
	MinQuantity           int                        `json:"min_quantity"`
	Status                string                     `json:"status"`
	Locations             ledger.LocationAllocations `json:"locations"`
	TotalQuantity         int                        `json:"total_quantity"`
	LowStock              bool                       `json:"low_stock"`
	LocationsBelowMinimum []ledger.LocationShortfall `json:"locations_below_minimum,omitempty"`
	Channels              ledger.ChannelMappings     `json:"channels,omitempty"`
	CreatedAt             time.Time                  `json:"created_at"`
	UpdatedAt             time.Time                  `json:"updated_at"`
}

// ToItemResponse converts a domain item to its read model
func ToItemResponse(item *ledger.Item, policy ledger.MinimumPolicy) ItemResponse {
	return ItemResponse{
		ID:                    item.ID,
		Make:                  item.Make,
		Model:                 item.Model,
		Description:           item.Description,
		Size:                  item.Attributes.Size,
		Season:                item.Attributes.Season,
		Color:                 item.Attributes.Color,
		Pattern:               item.Attributes.Pattern,
		MinQuantity:           item.Attributes.MinQuantity,
		Status:                item.Status,
		Locations:             item.Locations.Clone(),
		TotalQuantity:         item.TotalQuantity(),
		LowStock:              item.IsLowStock(),
		LocationsBelowMinimum: item.LocationsBelowMinimum(policy),
		Channels:              item.Channels.Clone(),
		CreatedAt:             item.CreatedAt,
		UpdatedAt:             item.UpdatedAt,
	}
}

// ItemListFilter narrows ListItems
type ItemListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=id updated_at created_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// UpsertItemInput carries one normalized import record
type UpsertItemInput struct {
	ID          string
	Quantity    int
	VoxelID     string
	// Locations sets several voxels at once and overrides Quantity/VoxelID
	Locations   []ledger.LocationAllocation
	Make        string
	Model       string
	Description string
	Attributes  ledger.Attributes
	Channels    ledger.ChannelMappings
	// ChannelWarehouses are applied to new items that have no mapping
	ChannelWarehouses map[integration.ChannelCode]string
	// CreateOnly skips items that already exist
	CreateOnly bool
}

// UpsertResult reports what an upsert did
type UpsertResult struct {
	ItemID   string `json:"item_id"`
	Created  bool   `json:"created"`
	Changed  bool   `json:"changed"`
	NewTotal int    `json:"new_total"`
}

// ProcessOrderInput is a marketplace order to apply against stock
type ProcessOrderInput struct {
	OrderID string                  `json:"order_id" binding:"required"`
	Channel string                  `json:"channel" binding:"required"`
	Lines   []ProcessOrderLineInput `json:"items" binding:"required,min=1,dive"`
}

// ProcessOrderLineInput is one order line
type ProcessOrderLineInput struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"qty" binding:"required,min=1"`
}

// LowStockAlarm is raised when an order pushes an item below its threshold
type LowStockAlarm struct {
	ItemID      string `json:"item_id"`
	Total       int    `json:"total"`
	MinQuantity int    `json:"min_quantity"`
}

// OrderLineResult is the outcome of one order line
type OrderLineResult struct {
	SKU      string `json:"sku"`
	ItemID   string `json:"item_id,omitempty"`
	Applied  bool   `json:"applied"`
	NewTotal int    `json:"new_total"`
	Error    string `json:"error,omitempty"`
}

// ProcessOrderResult reports the outcome of ProcessOrder
type ProcessOrderResult struct {
	OrderID   string            `json:"order_id"`
	Channel   string            `json:"channel"`
	Duplicate bool              `json:"duplicate"`
	Lines     []OrderLineResult `json:"lines"`
	Alarms    []LowStockAlarm   `json:"alarms,omitempty"`
}
