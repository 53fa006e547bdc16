package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// newEngine returns an engine whose requests carry the given operator
func newEngine(op *shared.Operator) *gin.Engine {
	engine := gin.New()
	if op != nil {
		engine.Use(func(c *gin.Context) {
			c.Set(middleware.OperatorKey, *op)
			c.Next()
		})
	}
	return engine
}

func do(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	env := decode(t, w)
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestBaseHandler_HandleError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", shared.NewDomainError(shared.CodeNotFound, "item not found"), http.StatusNotFound, dto.ErrCodeNotFound},
		{"invalid input", shared.NewDomainError(shared.CodeInvalidInput, "bad voxel"), http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"invalid state", shared.NewDomainError(shared.CodeInvalidState, "no active session"), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"forbidden", shared.NewDomainError(shared.CodeForbidden, "admin only"), http.StatusForbidden, dto.ErrCodeForbidden},
		{"persistence", shared.WrapDomainError(shared.CodePersistence, "failed to save", errors.New("disk")), http.StatusInternalServerError, dto.ErrCodePersistence},
		{"channel sync", &integration.ChannelSyncError{Channel: integration.ChannelOzon, Raw: "quota exceeded"}, http.StatusBadGateway, dto.ErrCodeChannelSync},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &BaseHandler{}
			engine := gin.New()
			engine.GET("/", func(c *gin.Context) { h.HandleError(c, tc.err) })

			w := do(engine, http.MethodGet, "/", nil)
			assert.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestBaseHandler_HandleErrorKeepsRemoteText(t *testing.T) {
	h := &BaseHandler{}
	engine := gin.New()
	engine.GET("/", func(c *gin.Context) {
		h.HandleError(c, &integration.ChannelSyncError{Channel: integration.ChannelWildberries, Raw: `{"error":"bad sku"}`})
	})

	env := decode(t, do(engine, http.MethodGet, "/", nil))
	assert.Contains(t, env.Error.Message, `{"error":"bad sku"}`)
}

func TestBaseHandler_HidesInternalMessages(t *testing.T) {
	h := &BaseHandler{}
	engine := gin.New()
	engine.GET("/", func(c *gin.Context) { h.HandleError(c, errors.New("pq: password authentication failed")) })

	env := decode(t, do(engine, http.MethodGet, "/", nil))
	assert.NotContains(t, env.Error.Message, "password")
}

func TestBaseHandler_ErrorCarriesTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := &BaseHandler{}
	engine := gin.New()
	var traceID string
	engine.GET("/", func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "request")
		defer span.End()
		traceID = span.SpanContext().TraceID().String()
		c.Request = c.Request.WithContext(ctx)
		h.HandleError(c, shared.NewDomainError(shared.CodeNotFound, "item not found"))
	})

	env := decode(t, do(engine, http.MethodGet, "/", nil))
	assert.Equal(t, traceID, env.Error.TraceID)

	untraced := gin.New()
	untraced.GET("/", func(c *gin.Context) { h.BadRequest(c, "nope") })
	assert.Empty(t, decode(t, do(untraced, http.MethodGet, "/", nil)).Error.TraceID)
}
