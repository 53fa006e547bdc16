// Package stocksync pushes aggregate ledger quantities to the marketplaces.
package stocksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
)

// ItemSnapshotter reads consistent copies of items for publishing
type ItemSnapshotter interface {
	SnapshotForSync(ctx context.Context, itemIDs []string) ([]*ledger.Item, error)
}

// Recorder observes finished channel pushes
type Recorder interface {
	RecordSync(ctx context.Context, result *integration.SyncResult, elapsed time.Duration)
}

// Config holds push settings
type Config struct {
	// BatchSize is the maximum number of lines per channel request
	BatchSize int
	// TriggerTimeout bounds a background push started by TriggerSync
	TriggerTimeout time.Duration
}

// DefaultConfig returns the default push settings
func DefaultConfig() Config {
	return Config{BatchSize: 100, TriggerTimeout: 2 * time.Minute}
}

// Report is the outcome of one sync run
type Report struct {
	Results map[integration.ChannelCode]*integration.SyncResult `json:"results"`
	// ChannelErrors holds the error of every channel that did not fully succeed
	ChannelErrors map[integration.ChannelCode]error `json:"-"`
	Items         int                               `json:"items"`
}

// HasErrors reports whether any channel failed
func (r *Report) HasErrors() bool {
	return len(r.ChannelErrors) > 0
}

// Err joins the channel errors, nil when every channel succeeded
func (r *Report) Err() error {
	if len(r.ChannelErrors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.ChannelErrors))
	for _, code := range integration.AllChannels() {
		if err, ok := r.ChannelErrors[code]; ok {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StockSyncService publishes totals to every enabled channel
type StockSyncService struct {
	items    ItemSnapshotter
	registry integration.MarketplaceRegistry
	cfg      Config
	recorder Recorder
	logger   *zap.Logger

	background sync.WaitGroup
}

// NewStockSyncService creates a new StockSyncService
func NewStockSyncService(items ItemSnapshotter, registry integration.MarketplaceRegistry, cfg Config, logger *zap.Logger) *StockSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = def.TriggerTimeout
	}
	return &StockSyncService{
		items:    items,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetRecorder sets the metrics recorder
func (s *StockSyncService) SetRecorder(r Recorder) {
	s.recorder = r
}

// SyncAll pushes every item
func (s *StockSyncService) SyncAll(ctx context.Context, channels []integration.ChannelCode) (*Report, error) {
	return s.SyncItems(ctx, nil, channels)
}

// SyncItems pushes the given items (all when empty) to the given channels
// (all enabled when empty). Quantities are read under the per-item locks,
// which are released before any remote call. Channels are pushed
// concurrently and a failing channel does not stop the others.
func (s *StockSyncService) SyncItems(ctx context.Context, itemIDs []string, channels []integration.ChannelCode) (*Report, error) {
	adapters, skipped, err := s.resolve(ctx, channels)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Results:       make(map[integration.ChannelCode]*integration.SyncResult),
		ChannelErrors: make(map[integration.ChannelCode]error),
	}
	for _, code := range skipped {
		report.Results[code] = &integration.SyncResult{Channel: code, Status: integration.SyncStatusSkipped, SyncedAt: time.Now()}
	}
	if len(adapters) == 0 {
		return report, nil
	}

	items, err := s.items.SnapshotForSync(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	report.Items = len(items)
	if len(items) == 0 {
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, adapter := range adapters {
		g.Go(func() error {
			result, err := s.pushChannel(ctx, adapter, items)
			mu.Lock()
			defer mu.Unlock()
			report.Results[adapter.Code()] = result
			if err != nil {
				report.ChannelErrors[adapter.Code()] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Stock sync finished",
		zap.Int("items", len(items)),
		zap.Int("channels", len(adapters)),
		zap.Int("failed_channels", len(report.ChannelErrors)),
	)
	return report, nil
}

// TriggerSync pushes the items in the background. It never blocks the
// caller and outlives the caller's context up to TriggerTimeout.
func (s *StockSyncService) TriggerSync(ctx context.Context, itemIDs []string) {
	if len(itemIDs) == 0 {
		return
	}
	ids := append([]string(nil), itemIDs...)
	bg := context.WithoutCancel(ctx)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		runCtx, cancel := context.WithTimeout(bg, s.cfg.TriggerTimeout)
		defer cancel()

		report, err := s.SyncItems(runCtx, ids, nil)
		if err != nil {
			s.logger.Error("Triggered stock sync failed", zap.Strings("item_ids", ids), zap.Error(err))
			return
		}
		if report.HasErrors() {
			s.logger.Warn("Triggered stock sync had channel errors", zap.Strings("item_ids", ids), zap.Error(report.Err()))
		}
	}()
}

// Wait blocks until background pushes started by TriggerSync are done
func (s *StockSyncService) Wait() {
	s.background.Wait()
}

func (s *StockSyncService) resolve(ctx context.Context, channels []integration.ChannelCode) ([]integration.MarketplaceAdapter, []integration.ChannelCode, error) {
	if len(channels) == 0 {
		return s.registry.ListEnabled(ctx), nil, nil
	}
	var (
		adapters []integration.MarketplaceAdapter
		skipped  []integration.ChannelCode
		seen     = make(map[integration.ChannelCode]bool, len(channels))
	)
	for _, code := range channels {
		if seen[code] {
			continue
		}
		seen[code] = true
		a, err := s.registry.Get(code)
		if err != nil {
			return nil, nil, shared.WrapDomainError(shared.CodeInvalidInput, fmt.Sprintf("channel %s is not configured", code), err)
		}
		if !a.IsEnabled(ctx) {
			skipped = append(skipped, code)
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters, skipped, nil
}

// pushChannel sends the items in batches and merges the batch results
func (s *StockSyncService) pushChannel(ctx context.Context, adapter integration.MarketplaceAdapter, items []*ledger.Item) (*integration.SyncResult, error) {
	code := adapter.Code()
	lines := make([]integration.StockLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.StockLine(code, adapter.DefaultWarehouseID()))
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "stocksync", "push_channel",
		telemetry.WithAttribute(telemetry.SpanAttrChannel, string(code)),
		telemetry.WithAttribute(telemetry.SpanAttrRows, len(lines)),
	)
	defer span.End()

	start := time.Now()
	var (
		merged *integration.SyncResult
		errs   []error
	)
	for from := 0; from < len(lines); from += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			merged = mergeResults(merged, integration.NewBatchFailure(code, len(lines)-from, err.Error()))
			break
		}
		to := min(from+s.cfg.BatchSize, len(lines))
		result, err := adapter.PushStock(ctx, lines[from:to])
		if result == nil {
			result = integration.NewBatchFailure(code, to-from, errorText(err))
		}
		merged = mergeResults(merged, result)
		if err != nil {
			errs = append(errs, err)
			telemetry.AddEvent(span, "batch_failed", "from", from, "size", to-from)
			s.logger.Warn("Channel batch failed",
				zap.String("channel", string(code)),
				zap.Int("from", from),
				zap.Int("size", to-from),
				zap.Error(err),
			)
		}
	}

	if s.recorder != nil {
		s.recorder.RecordSync(ctx, merged, time.Since(start))
	}
	telemetry.SetAttributes(span, "succeeded", merged.SuccessCount, "failed", merged.FailedCount)
	if len(errs) > 0 {
		err := errors.Join(errs...)
		telemetry.RecordError(span, err)
		return merged, err
	}
	if merged.Status == integration.SyncStatusPartial {
		err := &integration.ChannelSyncError{Channel: code, Raw: partialSummary(merged)}
		telemetry.RecordError(span, err)
		return merged, err
	}
	telemetry.SetOK(span)
	return merged, nil
}

// mergeResults folds a batch result into the running channel result
func mergeResults(acc, next *integration.SyncResult) *integration.SyncResult {
	if acc == nil {
		c := *next
		return &c
	}
	acc.TotalCount += next.TotalCount
	acc.SuccessCount += next.SuccessCount
	acc.FailedCount += next.FailedCount
	acc.FailedItems = append(acc.FailedItems, next.FailedItems...)
	if acc.RawError == "" {
		acc.RawError = next.RawError
	}
	acc.SyncedAt = next.SyncedAt
	switch {
	case acc.FailedCount == 0:
		acc.Status = integration.SyncStatusSuccess
	case acc.SuccessCount == 0:
		acc.Status = integration.SyncStatusFailed
	default:
		acc.Status = integration.SyncStatusPartial
	}
	return acc
}

func partialSummary(r *integration.SyncResult) string {
	msg := fmt.Sprintf("%d of %d lines rejected", r.FailedCount, r.TotalCount)
	if len(r.FailedItems) > 0 {
		f := r.FailedItems[0]
		msg += fmt.Sprintf(" (first: %s: %s)", f.SKU, f.ErrorMessage)
	}
	return msg
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
