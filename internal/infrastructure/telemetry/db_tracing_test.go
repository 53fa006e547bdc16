package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID       uint   `gorm:"primaryKey"`
	SKU      string `gorm:"size:100"`
	Quantity int
}

func setupTracedDB(t *testing.T, cfg DBTracingConfig) (*gorm.DB, *tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	cfg.TracerProvider = tp

	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))
	return db, sr, tp
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestNewDBTracingPlugin_DefaultsThreshold(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
}

func TestDBTracingPlugin_DisabledRegistersNothing(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, NewDBTracingPlugin(DefaultDBTracingConfig(), nil).Register(db))
	assert.Nil(t, db.Callback().Query().Get("stock_timing:after_query"))
}

func TestDBTracingPlugin_AnnotatesSpans(t *testing.T) {
	cfg := DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour, DBSystem: "sqlite"}
	db, sr, tp := setupTracedDB(t, cfg)

	ctx, parent := tp.Tracer("test").Start(context.Background(), "import")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{SKU: "евро лето", Quantity: 3}).Error)
	parent.End()

	var create sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if attrs := spanAttrs(s); attrs["db.sql.table"].AsString() == "traced_rows" {
			create = s
		}
	}
	require.NotNil(t, create, "expected an otelgorm span for the insert")
	attrs := spanAttrs(create)
	assert.Equal(t, int64(1), attrs["db.rows_affected"].AsInt64())
	_, slow := attrs["db.slow_query"]
	assert.False(t, slow)
}

func TestDBTracingPlugin_SlowQueryAndErrors(t *testing.T) {
	cfg := DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond, DBSystem: "sqlite"}
	db, sr, tp := setupTracedDB(t, cfg)

	ctx, parent := tp.Tracer("test").Start(context.Background(), "broken")
	err := db.WithContext(ctx).Exec("SELECT * FROM missing_table").Error
	require.Error(t, err)
	var row tracedRow
	require.ErrorIs(t, db.WithContext(ctx).First(&row, 999).Error, gorm.ErrRecordNotFound)
	parent.End()

	var sawError, sawNotFoundOK, sawSlow bool
	for _, s := range sr.Ended() {
		if s.Name() == "broken" {
			continue
		}
		if s.Status().Code == codes.Error {
			sawError = true
		}
		if spanAttrs(s)["db.sql.table"].AsString() == "traced_rows" && s.Status().Code != codes.Error {
			sawNotFoundOK = true
		}
		for _, e := range s.Events() {
			if e.Name == "slow_query_warning" {
				sawSlow = true
			}
		}
	}
	assert.True(t, sawError)
	assert.True(t, sawNotFoundOK)
	assert.True(t, sawSlow)
}

func TestDBTracingPlugin_DoubleRegistrationFails(t *testing.T) {
	cfg := DBTracingConfig{Enabled: true, DBSystem: "sqlite"}
	db, _, _ := setupTracedDB(t, cfg)
	assert.Error(t, NewDBTracingPlugin(cfg, nil).Register(db))
}
