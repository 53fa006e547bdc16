package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
)

// LowStockCounter reports how many items are below their threshold
type LowStockCounter interface {
	CountLowStock(ctx context.Context) (int64, error)
}

// StockMetrics records marketplace sync, import and stock health metrics
type StockMetrics struct {
	logger *zap.Logger

	syncPushTotal  *Counter
	syncLinesTotal *Counter
	syncDuration   *Histogram
	importRows     *Counter
	lowStockItems  *Gauge

	lowStock LowStockCounter

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// StockMetricsConfig holds configuration for stock metrics
type StockMetricsConfig struct {
	Meter    metric.Meter
	Logger   *zap.Logger
	LowStock LowStockCounter
}

// Attribute keys used by stock metrics
var (
	AttrChannel    = attribute.Key("channel")
	AttrSyncStatus = attribute.Key("sync_status")
	AttrLineResult = attribute.Key("line_result")
	AttrOutcome    = attribute.Key("outcome")
)

// NewStockMetrics creates the instruments
func NewStockMetrics(cfg StockMetricsConfig) (*StockMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &StockMetrics{
		logger:   logger,
		lowStock: cfg.LowStock,
		stopChan: make(chan struct{}),
	}

	var err error
	if sm.syncPushTotal, err = NewCounter(cfg.Meter,
		"stock_sync_push_total", "Channel pushes by outcome", "{pushes}"); err != nil {
		return nil, err
	}
	if sm.syncLinesTotal, err = NewCounter(cfg.Meter,
		"stock_sync_lines_total", "Stock lines sent to channels", "{lines}"); err != nil {
		return nil, err
	}
	if sm.syncDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "stock_sync_duration_seconds",
		Description: "Time to push all batches of one channel",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if sm.importRows, err = NewCounter(cfg.Meter,
		"stock_import_rows_total", "Imported rows by outcome", "{rows}"); err != nil {
		return nil, err
	}
	if sm.lowStockItems, err = NewGauge(cfg.Meter,
		"stock_low_stock_items", "Items below their minimum quantity", "{items}"); err != nil {
		return nil, err
	}
	return sm, nil
}

// RecordSync records one channel push
func (sm *StockMetrics) RecordSync(ctx context.Context, result *integration.SyncResult, elapsed time.Duration) {
	if result == nil {
		return
	}
	channel := AttrChannel.String(string(result.Channel))
	sm.syncPushTotal.Inc(ctx, channel, AttrSyncStatus.String(string(result.Status)))
	if result.SuccessCount > 0 {
		sm.syncLinesTotal.Add(ctx, int64(result.SuccessCount), channel, AttrLineResult.String("accepted"))
	}
	if result.FailedCount > 0 {
		sm.syncLinesTotal.Add(ctx, int64(result.FailedCount), channel, AttrLineResult.String("rejected"))
	}
	sm.syncDuration.RecordDuration(ctx, elapsed, channel)
}

// RecordImport records the row counters of one import
func (sm *StockMetrics) RecordImport(ctx context.Context, created, updated, denied, skipped int) {
	for outcome, n := range map[string]int{
		"created": created,
		"updated": updated,
		"denied":  denied,
		"skipped": skipped,
	} {
		if n > 0 {
			sm.importRows.Add(ctx, int64(n), AttrOutcome.String(outcome))
		}
	}
}

// RecordLowStock records the current number of low-stock items
func (sm *StockMetrics) RecordLowStock(ctx context.Context, count int64) {
	sm.lowStockItems.Record(ctx, count)
}

// StartPeriodicCollection samples the low-stock gauge every interval
// (default 5 minutes). It is non-blocking; Stop ends it.
func (sm *StockMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if sm.lowStock == nil {
		return
	}
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *StockMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collect(ctx)
	for {
		select {
		case <-sm.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.collect(ctx)
		}
	}
}

func (sm *StockMetrics) collect(ctx context.Context) {
	n, err := sm.lowStock.CountLowStock(ctx)
	if err != nil {
		sm.logger.Warn("Failed to count low-stock items", zap.Error(err))
		return
	}
	sm.RecordLowStock(ctx, n)
}

// Stop ends periodic collection
func (sm *StockMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil
var ErrMeterNil = &MetricsError{Op: "NewStockMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
