package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/application/export"
	importapp "github.com/stockledger/backend/internal/application/import"
	integrationapp "github.com/stockledger/backend/internal/application/integration"
	ledgerapp "github.com/stockledger/backend/internal/application/ledger"
	"github.com/stockledger/backend/internal/application/stocksync"
	workflowapp "github.com/stockledger/backend/internal/application/workflow"
	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/workflow"
	"github.com/stockledger/backend/internal/infrastructure/auth"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/ecommerce"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/scheduler"
	"github.com/stockledger/backend/internal/infrastructure/storage"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"github.com/stockledger/backend/internal/infrastructure/webhook"
	"github.com/stockledger/backend/internal/interfaces/http/handler"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
	"github.com/stockledger/backend/internal/interfaces/http/router"
)

// lowStockInterval is how often the low-stock gauge is refreshed
const lowStockInterval = time.Minute

// app holds the wired services of one server process
type app struct {
	db          *persistence.Database
	stores      *cache.StoreFactory
	idempotency shared.IdempotencyStore
	tracer      *telemetry.TracerProvider
	meters      *telemetry.MeterProvider
	meter       metric.Meter
	metrics     *telemetry.StockMetrics

	ledger    *ledgerapp.LedgerService
	importer  *importapp.StockImportService
	exporter  *export.ExportService
	syncer    *stocksync.StockSyncService
	scheduler *scheduler.StockSyncScheduler
	sessions  *workflowapp.SessionService
	webhooks  *integrationapp.WebhookService
	jwt       *auth.JWTService
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	var err error

	a.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	a.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	a.meter = a.meters.Meter("stockledger")

	if err := a.openDatabase(cfg, log); err != nil {
		return nil, err
	}

	a.stores, err = cache.NewStoreFactory(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		return nil, err
	}

	// Ledger
	itemRepo := persistence.NewGormItemRepository(a.db.DB)
	a.ledger = ledgerapp.NewLedgerService(itemRepo, persistence.NewGormTransactionScope(a.db.DB), log)
	if cfg.Idempotency.Enabled {
		// without Redis the database keeps processed orders across restarts
		if a.stores.HasRedis() {
			a.idempotency = a.stores.IdempotencyStore()
		} else {
			a.idempotency = persistence.NewGormIdempotencyStore(a.db.DB)
		}
		a.ledger.SetIdempotencyStore(a.idempotency, shared.IdempotencyConfig{Enabled: true, TTL: cfg.Idempotency.TTL})
	}

	// Marketplace sync
	registry, err := ecommerce.NewRegistry(cfg.Marketplace, log)
	if err != nil {
		return nil, err
	}
	a.syncer = stocksync.NewStockSyncService(a.ledger, registry, stocksync.DefaultConfig(), log)
	a.metrics, err = telemetry.NewStockMetrics(telemetry.StockMetricsConfig{Meter: a.meter, Logger: log, LowStock: a.ledger})
	if err != nil {
		return nil, err
	}
	a.syncer.SetRecorder(a.metrics)
	if cfg.Sync.Enabled {
		schedCfg := scheduler.DefaultStockSyncSchedulerConfig()
		schedCfg.Interval = cfg.Sync.Interval
		schedCfg.JobTimeout = cfg.Sync.JobTimeout
		schedCfg.RetryAttempts = cfg.Sync.RetryAttempts
		schedCfg.RetryDelay = cfg.Sync.RetryDelay
		a.scheduler, err = scheduler.NewStockSyncScheduler(schedCfg, a.syncer, log)
		if err != nil {
			return nil, err
		}
	}

	// Import
	a.importer = importapp.NewStockImportService(a.ledger, importapp.Config{
		BatchSize:         cfg.Import.BatchSize,
		HeaderScanRows:    cfg.Import.HeaderScanRows,
		MinHeaderScore:    cfg.Import.MinHeaderScore,
		MaxErrors:         cfg.Import.MaxErrors,
		ChannelWarehouses: channelWarehouses(cfg.Marketplace),
	}, log)
	a.importer.SetRecorder(a.metrics)
	a.importer.SetHistory(persistence.NewGormImportHistoryRepository(a.db.DB))
	if _, err := a.importer.RecoverInterrupted(ctx); err != nil {
		return nil, err
	}
	if cfg.Sync.OnOrder {
		a.ledger.SetSyncTrigger(a.syncer)
		a.importer.SetSyncTrigger(a.syncer)
	}

	// Export
	var exportOpts []export.Option
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3ObjectStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Warn("Export archive bucket is not ready", zap.String("bucket", s3.Bucket()), zap.Error(err))
		}
		exportOpts = append(exportOpts, export.WithStorage(s3, cfg.Storage.Prefix))
	}
	a.exporter = export.NewExportService(a.ledger, log, exportOpts...)

	// Workflow
	store, err := a.sessionStore(cfg.Workflow.SessionStore)
	if err != nil {
		return nil, err
	}
	a.sessions = workflowapp.NewSessionService(
		a.ledger,
		store,
		persistence.NewGormLeaderboardRepository(a.db.DB),
		a.exporter,
		cfg.Workflow.LeaderboardSize,
		log,
	)
	interrupted, err := a.sessions.Interrupted(ctx)
	if err != nil {
		return nil, err
	}
	for _, pending := range interrupted {
		log.Warn("A workflow session was interrupted and awaits resume or discard",
			zap.String("session_id", pending.ID.String()),
			zap.String("operator_id", pending.OperatorID),
			zap.String("operator", pending.Operator),
			zap.String("mode", string(pending.Mode)),
			zap.Int("cursor", pending.Cursor),
			zap.Int("queue", len(pending.Queue)),
			zap.Bool("step_in_flight", pending.InFlight != nil),
		)
	}

	// Webhooks
	sender := webhook.NewHTTPSender(cfg.Webhook.Timeout,
		webhook.WithLogger(log),
		webhook.WithSignatureHeader(cfg.Webhook.SignatureHeader),
	)
	a.webhooks = integrationapp.NewWebhookService(
		persistence.NewGormWebhookConfigRepository(a.db.DB),
		registry,
		sender,
		a.stores.EventLog(cfg.Webhook.EventLogSize),
		log,
	)

	a.jwt = auth.NewJWTService(cfg.JWT)
	return a, nil
}

func (a *app) openDatabase(cfg *config.Config, log *zap.Logger) error {
	slow := cfg.Telemetry.DBSlowQueryThresh
	if slow == 0 {
		slow = 200 * time.Millisecond
	}
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel), slow),
	)
	if err != nil {
		return err
	}
	a.db = db
	log.Info("Database connected", zap.String("driver", db.Driver))

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("Database schema migrated with GORM")
	}

	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: slow,
		DBSystem:        dbSystem,
	}, log)
	return plugin.Register(db.DB)
}

func (a *app) sessionStore(kind string) (workflow.SessionStore, error) {
	switch kind {
	case config.SessionStoreRedis:
		return a.stores.RedisSessionStore()
	case config.SessionStoreMemory:
		return cache.NewInMemorySessionStore(), nil
	case config.SessionStoreDatabase, "":
		return persistence.NewGormSessionStore(a.db.DB), nil
	}
	return nil, fmt.Errorf("unknown session store %q", kind)
}

func channelWarehouses(cfg config.MarketplaceConfig) map[integration.ChannelCode]string {
	out := make(map[integration.ChannelCode]string)
	for code, ch := range map[integration.ChannelCode]config.ChannelConfig{
		integration.ChannelWildberries:  cfg.Wildberries,
		integration.ChannelOzon:         cfg.Ozon,
		integration.ChannelYandexMarket: cfg.YandexMarket,
	} {
		if ch.WarehouseID != "" {
			out[code] = ch.WarehouseID
		}
	}
	return out
}

func (a *app) start(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
	}
	a.metrics.StartPeriodicCollection(ctx, lowStockInterval)
	return nil
}

func (a *app) handlers(cfg *config.Config) router.Handlers {
	h := router.Handlers{
		Items:    handler.NewItemHandler(a.ledger),
		Orders:   handler.NewOrderHandler(a.ledger),
		Imports:  handler.NewImportHandler(a.importer),
		Exports:  handler.NewExportHandler(a.exporter, a.sessions),
		Workflow: handler.NewWorkflowHandler(a.sessions),
		Webhooks: handler.NewWebhookHandler(a.webhooks),
		System:   handler.NewSystemHandler(cfg.App.Name, version, a.db),
	}
	// a nil *StockSyncScheduler must not become a non-nil interface
	if a.scheduler != nil {
		h.Sync = handler.NewSyncHandler(a.syncer, a.scheduler)
	} else {
		h.Sync = handler.NewSyncHandler(a.syncer, nil)
	}
	return h
}

func (a *app) guards(cfg *config.Config, log *zap.Logger) router.Guards {
	return router.Guards{
		Auth:        middleware.JWTAuth(a.jwt, log),
		Admin:       middleware.RequireAdmin(),
		BodyLimit:   middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		UploadLimit: middleware.BodyLimit(cfg.HTTP.MaxUploadSize),
		RemoteLimit: middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RemoteRateLimit, cfg.HTTP.RemoteRateWindow)),
	}
}

// shutdown stops background work in dependency order
func (a *app) shutdown(ctx context.Context, log *zap.Logger) {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			log.Warn("Sync scheduler did not stop cleanly", zap.Error(err))
		}
	}
	a.syncer.Wait()
	a.metrics.Stop()
	if err := a.meters.Shutdown(ctx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
}

func (a *app) close(log *zap.Logger) {
	if a.idempotency != nil {
		_ = a.idempotency.Close()
	}
	if err := a.stores.Close(); err != nil {
		log.Warn("Error closing Redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
}

