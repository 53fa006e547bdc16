// Package webhook delivers signed webhook events over HTTP.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
)

const (
	// DefaultSignatureHeader carries "sha256=<hex hmac>" of the body
	DefaultSignatureHeader = "X-Webhook-Signature"
	// EventTypeHeader carries the event type
	EventTypeHeader = "X-Webhook-Event"

	maxResponseBody = 2048
)

// Option configures an HTTPSender
type Option func(*HTTPSender)

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPSender) {
		s.client = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *HTTPSender) {
		s.logger = logger
	}
}

// WithSignatureHeader changes the header the signature is sent in
func WithSignatureHeader(name string) Option {
	return func(s *HTTPSender) {
		if name != "" {
			s.signatureHeader = name
		}
	}
}

// HTTPSender POSTs JSON payloads, signed with the config's secret when set
type HTTPSender struct {
	client          *http.Client
	signatureHeader string
	logger          *zap.Logger
}

// NewHTTPSender creates a sender with the given request timeout
func NewHTTPSender(timeout time.Duration, opts ...Option) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &HTTPSender{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		signatureHeader: DefaultSignatureHeader,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements integration.WebhookSender. Any HTTP response is a
// delivery; only transport failures return an error.
func (s *HTTPSender) Send(ctx context.Context, cfg *integration.WebhookConfig, eventType string, payload []byte) (*integration.WebhookDelivery, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventTypeHeader, eventType)
	if cfg.HasSecret() {
		req.Header.Set(s.signatureHeader, Sign(cfg.Secret, payload))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			zap.String("channel", string(cfg.Channel)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return &integration.WebhookDelivery{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// Sign returns the "sha256=<hex>" HMAC of payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time
func Verify(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}

var _ integration.WebhookSender = (*HTTPSender)(nil)
