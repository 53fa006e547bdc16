// Package ecommerce implements the marketplace stock push adapters.
package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/infrastructure/config"
)

// maxResponseSize caps how much of a channel response is read (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxRawErrorLen caps the raw remote text kept in results
const maxRawErrorLen = 2048

var tracer = otel.Tracer("github.com/stockledger/backend/internal/infrastructure/ecommerce")

var validate = validator.New()

// AdapterOption configures an adapter
type AdapterOption func(*apiClient)

// WithHTTPClient replaces the instrumented default client
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(a *apiClient) {
		a.http = c
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *apiClient) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// apiClient is the JSON-over-HTTP transport shared by the adapters
type apiClient struct {
	channel     integration.ChannelCode
	enabled     bool
	baseURL     string
	warehouseID string
	http        *http.Client
	logger      *zap.Logger
}

func newAPIClient(channel integration.ChannelCode, cfg config.ChannelConfig, opts []AdapterOption) *apiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &apiClient{
		channel:     channel,
		enabled:     cfg.Enabled,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		warehouseID: strings.TrimSpace(cfg.WarehouseID),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("channel", string(channel)))
	return c
}

// response is a channel reply that was received, whatever its status
type response struct {
	Status int
	Body   []byte
}

func (r response) ok() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r response) raw() string {
	text := strings.TrimSpace(string(r.Body))
	if text == "" {
		text = http.StatusText(r.Status)
	}
	if len(text) > maxRawErrorLen {
		text = text[:maxRawErrorLen]
	}
	return text
}

// doJSON sends payload as JSON. Transport failures are returned as errors;
// any HTTP status is returned as a response.
func (c *apiClient) doJSON(ctx context.Context, method, path string, headers map[string]string, payload any) (response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf("%s: failed to encode payload: %w", c.channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return response{}, fmt.Errorf("%s: failed to create request: %w", c.channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: %v", integration.ErrChannelUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return response{}, fmt.Errorf("%s: failed to read response: %w", c.channel, err)
	}
	return response{Status: resp.StatusCode, Body: data}, nil
}

// startPush opens the span that covers one batch push
func (c *apiClient) startPush(ctx context.Context, lines int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "marketplace.push_stock", trace.WithAttributes(
		attribute.String("channel", string(c.channel)),
		attribute.Int("lines", lines),
	))
}

// failBatch records a batch-level rejection
func (c *apiClient) failBatch(span trace.Span, total int, raw string, cause error) (*integration.SyncResult, error) {
	err := &integration.ChannelSyncError{Channel: c.channel, Raw: raw, Err: cause}
	span.RecordError(err)
	span.SetStatus(codes.Error, "batch rejected")
	c.logger.Warn("Stock push rejected", zap.Int("lines", total), zap.String("raw", raw), zap.Error(cause))
	return integration.NewBatchFailure(c.channel, total, raw), err
}

// finish records the outcome of a push that got a per-line answer
func (c *apiClient) finish(span trace.Span, result *integration.SyncResult) (*integration.SyncResult, error) {
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Int("failed", result.FailedCount),
	)
	if result.Status == integration.SyncStatusFailed {
		span.SetStatus(codes.Error, "all lines rejected")
		raw := ""
		if len(result.FailedItems) > 0 {
			raw = result.FailedItems[0].ErrorMessage
		}
		result.RawError = raw
		return result, &integration.ChannelSyncError{Channel: c.channel, Raw: raw}
	}
	c.logger.Info("Stock pushed",
		zap.Int("total", result.TotalCount),
		zap.Int("failed", result.FailedCount),
	)
	return result, nil
}
