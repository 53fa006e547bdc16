package ledger

import "errors"

var (
	ErrInvalidItemID = errors.New("ledger: item id is required")
	ErrInvalidVoxel  = errors.New("ledger: voxel id is required")
	ErrItemNotFound  = errors.New("ledger: item not found")
	ErrNegativeMin   = errors.New("ledger: minimum quantity cannot be negative")
	ErrStaleQuantity = errors.New("ledger: voxel quantity changed")
)
