package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "stock-ledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "stock", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, 20, cfg.Import.BatchSize)
		assert.Equal(t, 50, cfg.Import.HeaderScanRows)
		assert.Equal(t, 2, cfg.Import.MinHeaderScore)
		assert.Equal(t, 10, cfg.Workflow.LeaderboardSize)
		assert.Equal(t, SessionStoreDatabase, cfg.Workflow.SessionStore)
		assert.True(t, cfg.Idempotency.Enabled)
		assert.Equal(t, 7*24*time.Hour, cfg.Idempotency.TTL)
		assert.Equal(t, "https://api-seller.ozon.ru", cfg.Marketplace.Ozon.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Marketplace.Wildberries.Timeout)
		assert.Equal(t, 10, cfg.HTTP.RemoteRateLimit)
		assert.Equal(t, time.Minute, cfg.HTTP.RemoteRateWindow)
	})

	t.Run("loads values from environment variables with STOCK prefix", func(t *testing.T) {
		t.Setenv("STOCK_APP_NAME", "test-app")
		t.Setenv("STOCK_APP_PORT", "9000")
		t.Setenv("STOCK_DATABASE_DRIVER", "sqlite")
		t.Setenv("STOCK_DATABASE_SQLITE_PATH", "/tmp/test.db")
		t.Setenv("STOCK_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("STOCK_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("STOCK_MARKETPLACE_WILDBERRIES_ENABLED", "true")
		t.Setenv("STOCK_MARKETPLACE_WILDBERRIES_WAREHOUSE_ID", "507")
		t.Setenv("STOCK_IMPORT_BATCH_SIZE", "5")
		t.Setenv("STOCK_SYNC_INTERVAL", "1m")
		t.Setenv("STOCK_HTTP_REMOTE_RATE_LIMIT", "3")
		t.Setenv("STOCK_HTTP_REMOTE_RATE_WINDOW", "30s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, "/tmp/test.db", cfg.Database.SQLitePath)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.True(t, cfg.Marketplace.Wildberries.Enabled)
		assert.Equal(t, "507", cfg.Marketplace.Wildberries.WarehouseID)
		assert.Equal(t, 5, cfg.Import.BatchSize)
		assert.Equal(t, time.Minute, cfg.Sync.Interval)
		assert.Equal(t, 3, cfg.HTTP.RemoteRateLimit)
		assert.Equal(t, 30*time.Second, cfg.HTTP.RemoteRateWindow)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		t.Setenv("STOCK_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("STOCK_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("STOCK_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("redis session store requires redis", func(t *testing.T) {
		t.Setenv("STOCK_WORKFLOW_SESSION_STORE", "redis")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires redis.enabled")
	})

	t.Run("idempotency can be disabled", func(t *testing.T) {
		t.Setenv("STOCK_IDEMPOTENCY_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Idempotency.Enabled)
	})

	t.Run("storage requires a bucket", func(t *testing.T) {
		t.Setenv("STOCK_STORAGE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("STOCK_APP_ENV", "production")
		t.Setenv("STOCK_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("STOCK_DATABASE_PASSWORD", "secure-password")
		t.Setenv("STOCK_DATABASE_SSLMODE", "require")
	}

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOCK_JWT_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOCK_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOCK_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("sqlite skips postgres checks in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOCK_DATABASE_DRIVER", "sqlite")
		t.Setenv("STOCK_DATABASE_PASSWORD", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
