package dto

// UpdateLocationRequest applies a delta at one voxel of an item
type UpdateLocationRequest struct {
	VoxelID string `json:"voxel_id" binding:"required,max=64"`
	Delta   int    `json:"delta"`
}

// SetMinQuantityRequest sets the item-level low stock threshold
type SetMinQuantityRequest struct {
	MinQuantity *int `json:"min_quantity" binding:"required,min=0"`
}

// ExportQuery selects the column set and file format of an export
type ExportQuery struct {
	Mode   string `form:"mode" binding:"omitempty,oneof=summary summarized detailed"`
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
	// Archive also uploads the export to object storage
	Archive bool `form:"archive"`
}

// ImportQuery holds the options of a stock upload
type ImportQuery struct {
	Warehouse    string `form:"warehouse" binding:"max=128"`
	ConflictMode string `form:"conflict_mode" binding:"omitempty,oneof=update skip"`
}

// ImportHistoryQuery pages and filters the import history
type ImportHistoryQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=processing completed failed cancelled"`
	Operator string `form:"operator" binding:"max=255"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// SyncRequest selects what to push. Empty lists mean all items and every
// enabled channel.
type SyncRequest struct {
	ItemIDs  []string `json:"item_ids" binding:"omitempty,max=1000,dive,required"`
	Channels []string `json:"channels" binding:"omitempty,dive,required"`
}

// SelectVoxelRequest resolves the target voxel of the current workflow step
type SelectVoxelRequest struct {
	VoxelID string `json:"voxel_id" binding:"required,max=64"`
}

// WorkflowEditRequest is an ad-hoc delta made during or outside a session
type WorkflowEditRequest struct {
	ItemID  string `json:"item_id" binding:"required"`
	VoxelID string `json:"voxel_id" binding:"required,max=64"`
	Delta   int    `json:"delta"`
}

// LimitQuery bounds list endpoints
type LimitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
