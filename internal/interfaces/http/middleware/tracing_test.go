package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/stockledger/backend/internal/domain/shared"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestTracing_EnrichesSpan(t *testing.T) {
	sr := useRecorder(t)

	r := gin.New()
	r.Use(RequestID(), Tracing("stock-ledger", true))
	r.Use(func(c *gin.Context) {
		c.Set(OperatorKey, shared.Operator{ID: "op-1", Admin: true})
		c.Next()
	})
	r.Use(SpanEnricher())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/items/a", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	serve(r, req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/items/:id")
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "req-7", attrs["request_id"].AsString())
	assert.Equal(t, "op-1", attrs["operator.id"].AsString())
	assert.True(t, attrs["operator.admin"].AsBool())
}

func TestTracing_Disabled(t *testing.T) {
	sr := useRecorder(t)

	r := gin.New()
	r.Use(Tracing("stock-ledger", false), SpanEnricher())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Empty(t, sr.Ended())
}
