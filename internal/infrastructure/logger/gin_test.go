package logger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(log *zap.Logger, opts ...GinOption) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Request-ID"); id != "" {
			c.Set(GinRequestIDKey, id)
		}
		c.Next()
	})
	r.Use(Recovery(log))
	r.Use(GinMiddleware(log, opts...))
	return r
}

func accessLogs(logs *observer.ObservedLogs) []observer.LoggedEntry {
	return logs.FilterMessage("http request").All()
}

func TestGinMiddleware_LogsRequest(t *testing.T) {
	log, logs := observed()
	r := newTestEngine(log)
	r.GET("/api/v1/items/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/abc?verbose=1", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	entries := accessLogs(logs)
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/items/:id", fields["route"])
	assert.Equal(t, "verbose=1", fields["query"])
	assert.EqualValues(t, 200, fields["status"])
}

func TestGinMiddleware_LoggerReachesHandlers(t *testing.T) {
	log, logs := observed()
	r := newTestEngine(log)
	r.POST("/sync", func(c *gin.Context) {
		ctx, _ := WithOperatorID(c.Request.Context(), FromContext(c.Request.Context()), "op-7")
		c.Request = c.Request.WithContext(ctx)
		L(c.Request.Context()).Info("sync requested")
		GetGinLogger(c).Info("from gin")
		c.Status(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("X-Request-ID", "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	handlerEntry := logs.FilterMessage("sync requested").All()
	require.Len(t, handlerEntry, 1)
	assert.Equal(t, "req-7", handlerEntry[0].ContextMap()["request_id"])
	assert.Equal(t, "op-7", handlerEntry[0].ContextMap()["operator_id"])
	assert.Equal(t, 1, logs.FilterMessage("from gin").Len())

	access := accessLogs(logs)
	require.Len(t, access, 1)
	assert.Equal(t, "op-7", access[0].ContextMap()["operator_id"])
}

func TestGinMiddleware_StatusLevels(t *testing.T) {
	log, logs := observed()
	r := newTestEngine(log)
	r.GET("/bad", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusBadRequest)
	})
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	entries := accessLogs(logs)
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap(), "errors")
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGinMiddleware_SkipPaths(t *testing.T) {
	log, logs := observed()
	healthy := true
	r := newTestEngine(log, WithSkipPaths("/health"))
	r.GET("/health", func(c *gin.Context) {
		if healthy {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusServiceUnavailable)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, accessLogs(logs))

	healthy = false
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, accessLogs(logs), 1)
}

func TestRecovery(t *testing.T) {
	log, logs := observed()
	r := newTestEngine(log)
	r.GET("/panic", func(c *gin.Context) { panic("voxel index out of range") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("X-Request-ID", "req-p")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "ERR_INTERNAL", body.Error.Code)

	panics := logs.FilterMessage("panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "req-p", panics[0].ContextMap()["request_id"])
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))

	c.Set(GinLoggerKey, "wrong type")
	assert.NotNil(t, GetGinLogger(c))
}
