package export

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Mode selects the column set of an export
type Mode string

const (
	ModeSummary  Mode = "summary"
	ModeDetailed Mode = "detailed"
)

// ParseMode defaults to summary
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "summary", "summarized":
		return ModeSummary, nil
	case "detailed":
		return ModeDetailed, nil
	default:
		return "", fmt.Errorf("unknown export mode %q", s)
	}
}

// ItemSource lists the live ledger
type ItemSource interface {
	ListAllItems(ctx context.Context) ([]*ledger.Item, error)
}

// ObjectStorage archives exports in an S3-compatible bucket
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// ArchiveResult describes an archived export
type ArchiveResult struct {
	Key         string    `json:"key"`
	DownloadURL string    `json:"download_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// ExportService renders stock and diff exports
type ExportService struct {
	items   ItemSource
	storage ObjectStorage
	prefix  string
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures an ExportService
type Option func(*ExportService)

// WithStorage enables archiving
func WithStorage(storage ObjectStorage, prefix string) Option {
	return func(s *ExportService) {
		s.storage = storage
		s.prefix = strings.Trim(prefix, "/")
	}
}

// WithClock overrides the clock used for file names
func WithClock(now func() time.Time) Option {
	return func(s *ExportService) {
		s.now = now
	}
}

// NewExportService creates a new ExportService
func NewExportService(items ItemSource, logger *zap.Logger, opts ...Option) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		items:  items,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StockExport renders the current ledger
func (s *ExportService) StockExport(ctx context.Context, mode Mode, format Format) (*Rendered, error) {
	items, err := s.items.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}

	var sheet Sheet
	switch mode {
	case ModeSummary:
		sheet = StockSummarySheet(items)
	case ModeDetailed:
		sheet = StockDetailedSheet(items)
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown export mode %q", mode))
	}

	out, err := Render(sheet, format, s.basename("stock", mode))
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "Failed to render stock export", err)
	}
	s.logger.Info("Stock export rendered",
		zap.String("mode", string(mode)),
		zap.String("format", string(format)),
		zap.Int("rows", out.Rows),
	)
	return out, nil
}

// DiffExport compares the checkpoint with the live ledger and renders the result
func (s *ExportService) DiffExport(ctx context.Context, cp *ledger.Checkpoint, mode Mode, format Format) (*Rendered, ledger.DiffReport, error) {
	if cp == nil {
		return nil, ledger.DiffReport{}, shared.NewDomainError(shared.CodeInvalidState, "No checkpoint to diff against")
	}
	items, err := s.items.ListAllItems(ctx)
	if err != nil {
		return nil, ledger.DiffReport{}, err
	}
	report := ledger.ComputeDiff(cp, items)
	out, err := s.RenderDiff(report, mode, format)
	if err != nil {
		return nil, report, err
	}
	return out, report, nil
}

// RenderDiff renders an already computed diff
func (s *ExportService) RenderDiff(report ledger.DiffReport, mode Mode, format Format) (*Rendered, error) {
	var sheet Sheet
	switch mode {
	case ModeSummary:
		sheet = SummarizedDiffSheet(report)
	case ModeDetailed:
		sheet = DetailedDiffSheet(report)
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown export mode %q", mode))
	}
	out, err := Render(sheet, format, s.basename("diff", mode))
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "Failed to render diff export", err)
	}
	return out, nil
}

// ArchiveExport uploads a rendered export. Without storage it is a no-op
// and returns nil.
func (s *ExportService) ArchiveExport(ctx context.Context, rendered *Rendered) (*ArchiveResult, error) {
	if s.storage == nil || rendered == nil {
		return nil, nil
	}
	key := rendered.Filename
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	if err := s.storage.Upload(ctx, key, rendered.Data, rendered.ContentType); err != nil {
		s.logger.Error("Failed to archive export", zap.String("key", key), zap.Error(err))
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to archive export", err)
	}

	result := &ArchiveResult{Key: key}
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, key)
	if err != nil {
		// The object is stored; a missing link only affects the response
		s.logger.Warn("Failed to presign archived export", zap.String("key", key), zap.Error(err))
	} else {
		result.DownloadURL = url
		result.ExpiresAt = expiresAt
	}
	s.logger.Info("Export archived", zap.String("key", key), zap.Int("bytes", len(rendered.Data)))
	return result, nil
}

func (s *ExportService) basename(kind string, mode Mode) string {
	return fmt.Sprintf("%s_%s_%s", kind, mode, s.now().UTC().Format("20060102_150405"))
}
