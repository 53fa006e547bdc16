package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stockledger/backend/internal/application/export"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/workflow"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// ExportRowsHeader carries the number of data rows of a streamed export
const ExportRowsHeader = "X-Export-Rows"

// Exporter renders and archives exports
type Exporter interface {
	StockExport(ctx context.Context, mode export.Mode, format export.Format) (*export.Rendered, error)
	DiffExport(ctx context.Context, cp *ledger.Checkpoint, mode export.Mode, format export.Format) (*export.Rendered, ledger.DiffReport, error)
	ArchiveExport(ctx context.Context, rendered *export.Rendered) (*export.ArchiveResult, error)
}

// ActiveSession exposes the checkpoint of an operator's running session
type ActiveSession interface {
	Current(ctx context.Context, operatorID string) (*workflow.Session, error)
}

// ExportHandler serves stock and diff exports
type ExportHandler struct {
	BaseHandler
	exporter Exporter
	sessions ActiveSession
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exporter Exporter, sessions ActiveSession) *ExportHandler {
	return &ExportHandler{exporter: exporter, sessions: sessions}
}

// ArchivedExport is the response of an export written to object storage
type ArchivedExport struct {
	Filename         string                `json:"filename"`
	Rows             int                   `json:"rows"`
	Archive          *export.ArchiveResult `json:"archive,omitempty"`
	ChangedPositions *int                  `json:"changed_positions,omitempty"`
	NetChange        *int                  `json:"net_change,omitempty"`
}

// StockExport renders the live ledger
func (h *ExportHandler) StockExport(c *gin.Context) {
	mode, format, archive, ok := h.parse(c)
	if !ok {
		return
	}

	rendered, err := h.exporter.StockExport(c.Request.Context(), mode, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if archive {
		h.archive(c, rendered, nil)
		return
	}
	h.attach(c, rendered)
}

// DiffExport renders the changes since the caller's active session checkpoint.
// Without an active session there is nothing to diff against.
func (h *ExportHandler) DiffExport(c *gin.Context) {
	mode, format, archive, ok := h.parse(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Current(c.Request.Context(), operator(c).ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if sess.Checkpoint == nil {
		h.HandleError(c, shared.NewDomainError(shared.CodeInvalidState, "session has no checkpoint"))
		return
	}

	rendered, report, err := h.exporter.DiffExport(c.Request.Context(), sess.Checkpoint, mode, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if archive {
		h.archive(c, rendered, &report)
		return
	}
	c.Header("X-Changed-Positions", strconv.Itoa(report.ChangedPositions()))
	h.attach(c, rendered)
}

func (h *ExportHandler) parse(c *gin.Context) (export.Mode, export.Format, bool, bool) {
	var query dto.ExportQuery
	if !bindQuery(c, &query) {
		return "", "", false, false
	}
	mode, err := export.ParseMode(query.Mode)
	if err != nil {
		h.BadRequest(c, err.Error())
		return "", "", false, false
	}
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		h.BadRequest(c, err.Error())
		return "", "", false, false
	}
	return mode, format, query.Archive, true
}

func (h *ExportHandler) attach(c *gin.Context, rendered *export.Rendered) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.Filename))
	c.Header(ExportRowsHeader, strconv.Itoa(rendered.Rows))
	c.Data(http.StatusOK, rendered.ContentType, rendered.Data)
}

func (h *ExportHandler) archive(c *gin.Context, rendered *export.Rendered, report *ledger.DiffReport) {
	result, err := h.exporter.ArchiveExport(c.Request.Context(), rendered)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "object storage is not configured")
		return
	}
	out := ArchivedExport{Filename: rendered.Filename, Rows: rendered.Rows, Archive: result}
	if report != nil {
		changed, net := report.ChangedPositions(), report.NetChange()
		out.ChangedPositions, out.NetChange = &changed, &net
	}
	h.Success(c, out)
}
