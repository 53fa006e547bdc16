package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	ledgerapp "github.com/stockledger/backend/internal/application/ledger"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// ItemService is the ledger surface used by ItemHandler and OrderHandler
type ItemService interface {
	ListItems(ctx context.Context, filter ledgerapp.ItemListFilter) ([]ledgerapp.ItemResponse, int64, error)
	GetItem(ctx context.Context, itemID string) (*ledgerapp.ItemResponse, error)
	UpdateItemLocationQty(ctx context.Context, input ledgerapp.UpdateLocationQtyInput) (*ledgerapp.LocationUpdateResult, error)
	SetMinQuantity(ctx context.Context, itemID string, minQty int) (*ledgerapp.ItemResponse, error)
	ProcessOrder(ctx context.Context, input ledgerapp.ProcessOrderInput) (*ledgerapp.ProcessOrderResult, error)
}

// ItemHandler serves the item endpoints
type ItemHandler struct {
	BaseHandler
	items ItemService
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(items ItemService) *ItemHandler {
	return &ItemHandler{items: items}
}

// List returns a page of items filtered by search
func (h *ItemHandler) List(c *gin.Context) {
	var filter ledgerapp.ItemListFilter
	if !bindQuery(c, &filter) {
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 50
	}

	items, total, err := h.items.ListItems(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get returns one item with its per-location shortfalls
func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.items.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// UpdateLocation applies a signed delta to one voxel of an item
func (h *ItemHandler) UpdateLocation(c *gin.Context) {
	var req dto.UpdateLocationRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.items.UpdateItemLocationQty(c.Request.Context(), ledgerapp.UpdateLocationQtyInput{
		ItemID:  c.Param("id"),
		VoxelID: req.VoxelID,
		Delta:   req.Delta,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SetMinQuantity changes the item's low-stock threshold
func (h *ItemHandler) SetMinQuantity(c *gin.Context) {
	var req dto.SetMinQuantityRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.items.SetMinQuantity(c.Request.Context(), c.Param("id"), *req.MinQuantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// OrderHandler accepts marketplace orders
type OrderHandler struct {
	BaseHandler
	ledger ItemService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(ledger ItemService) *OrderHandler {
	return &OrderHandler{ledger: ledger}
}

// Process deducts the order lines from the ledger. A replayed order id
// returns the stored result with duplicate=true.
func (h *OrderHandler) Process(c *gin.Context) {
	var input ledgerapp.ProcessOrderInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.ledger.ProcessOrder(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
