package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	importapp "github.com/stockledger/backend/internal/application/import"
	"github.com/stockledger/backend/internal/domain/bulk"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// StockImporter ingests uploaded stock files and keeps their history
type StockImporter interface {
	Import(ctx context.Context, input importapp.ImportInput) (*importapp.ImportResult, error)
	ListHistory(ctx context.Context, q importapp.HistoryQuery) (*bulk.ImportHistoryListResult, error)
	GetHistory(ctx context.Context, id uuid.UUID) (*bulk.ImportHistory, error)
}

// ImportHandler serves stock file uploads
type ImportHandler struct {
	BaseHandler
	importer StockImporter
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(importer StockImporter) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// ImportStock reads the multipart "file" field (CSV or XLSX). A multi-warehouse
// file without a warehouse query returns the list of warehouses and imports
// nothing.
func (h *ImportHandler) ImportStock(c *gin.Context) {
	var query dto.ImportQuery
	if !bindQuery(c, &query) {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "multipart field \"file\" is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "uploaded file cannot be read")
		return
	}
	defer file.Close()

	mode := importapp.ConflictMode(query.ConflictMode)
	if mode == "" {
		mode = importapp.ConflictModeUpdate
	}

	result, err := h.importer.Import(c.Request.Context(), importapp.ImportInput{
		Operator:     operator(c),
		Filename:     header.Filename,
		Size:         header.Size,
		Reader:       file,
		Warehouse:    query.Warehouse,
		ConflictMode: mode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// History lists past imports, most recent first
func (h *ImportHandler) History(c *gin.Context) {
	var query dto.ImportHistoryQuery
	if !bindQuery(c, &query) {
		return
	}
	list, err := h.importer.ListHistory(c.Request.Context(), importapp.HistoryQuery{
		Status:   query.Status,
		Operator: query.Operator,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list.Items, list.TotalCount, list.Page, list.PageSize)
}

// HistoryEntry returns one import with its rejected rows
func (h *ImportHandler) HistoryEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid import id")
		return
	}
	entry, err := h.importer.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}
