package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/infrastructure/config"
)

var _ integration.MarketplaceAdapter = (*WildberriesAdapter)(nil)

type wbCredentials struct {
	BaseURL string `validate:"required,url"`
	Token   string `validate:"required"`
}

// WildberriesStock is one line of the Wildberries stock request
type WildberriesStock struct {
	SKU         string `json:"sku"`
	Amount      int    `json:"amount"`
	WarehouseID int64  `json:"warehouseId"`
}

// WildberriesStockRequest is the body of POST /api/v5/stocks
type WildberriesStockRequest struct {
	Stocks []WildberriesStock `json:"stocks"`
}

// WildberriesAdapter pushes stock to the Wildberries marketplace API
type WildberriesAdapter struct {
	client *apiClient
	token  string
}

// NewWildberriesAdapter creates the adapter. Credentials are only required
// when the channel is enabled.
func NewWildberriesAdapter(cfg config.ChannelConfig, opts ...AdapterOption) (*WildberriesAdapter, error) {
	if cfg.Enabled {
		if err := validate.Struct(wbCredentials{BaseURL: cfg.BaseURL, Token: cfg.Token}); err != nil {
			return nil, fmt.Errorf("%w: wildberries: %v", integration.ErrChannelNotConfigured, err)
		}
	}
	return &WildberriesAdapter{
		client: newAPIClient(integration.ChannelWildberries, cfg, opts),
		token:  cfg.Token,
	}, nil
}

// Code returns WB
func (a *WildberriesAdapter) Code() integration.ChannelCode {
	return integration.ChannelWildberries
}

// IsEnabled reports whether the channel is switched on
func (a *WildberriesAdapter) IsEnabled(_ context.Context) bool {
	return a.client.enabled
}

// DefaultWarehouseID returns the configured warehouse
func (a *WildberriesAdapter) DefaultWarehouseID() string {
	return a.client.warehouseID
}

// BuildPayload maps lines to the Wildberries request. Warehouse ids are
// sent as numbers.
func (a *WildberriesAdapter) BuildPayload(lines []integration.StockLine) (any, error) {
	req := WildberriesStockRequest{Stocks: make([]WildberriesStock, 0, len(lines))}
	for _, l := range lines {
		wh, err := strconv.ParseInt(strings.TrimSpace(l.WarehouseID), 10, 64)
		if err != nil || wh <= 0 {
			return nil, fmt.Errorf("wildberries: invalid warehouse %q for sku %q", l.WarehouseID, l.SKU)
		}
		req.Stocks = append(req.Stocks, WildberriesStock{SKU: l.SKU, Amount: l.Quantity, WarehouseID: wh})
	}
	return req, nil
}

// PushStock sends one batch
func (a *WildberriesAdapter) PushStock(ctx context.Context, lines []integration.StockLine) (*integration.SyncResult, error) {
	if len(lines) == 0 {
		return nil, integration.ErrEmptyStockBatch
	}
	payload, err := a.BuildPayload(lines)
	if err != nil {
		return integration.NewBatchFailure(a.Code(), len(lines), err.Error()), &integration.ChannelSyncError{Channel: a.Code(), Raw: err.Error(), Err: err}
	}

	ctx, span := a.client.startPush(ctx, len(lines))
	defer span.End()

	resp, err := a.client.doJSON(ctx, http.MethodPost, "/api/v5/stocks", map[string]string{"Authorization": a.token}, payload)
	if err != nil {
		return a.client.failBatch(span, len(lines), err.Error(), err)
	}
	if !resp.ok() {
		return a.client.failBatch(span, len(lines), resp.raw(), statusError(resp.Status))
	}
	if msg := wildberriesError(resp.Body); msg != "" {
		return a.client.failBatch(span, len(lines), msg, nil)
	}
	return a.client.finish(span, integration.NewLineResult(a.Code(), len(lines), nil))
}

// wildberriesError extracts the error text from a 2xx body. Wildberries
// signals failure either with a string "error" or with "error": true and
// an "errorText".
func wildberriesError(body []byte) string {
	if len(strings.TrimSpace(string(body))) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var text string
	if raw, ok := payload["errorText"]; ok {
		_ = json.Unmarshal(raw, &text)
	}
	raw, ok := payload["error"]
	if !ok {
		return strings.TrimSpace(text)
	}
	var flag bool
	if json.Unmarshal(raw, &flag) == nil {
		if !flag {
			return ""
		}
		if text == "" {
			text = "error"
		}
		return strings.TrimSpace(text)
	}
	var msg string
	if json.Unmarshal(raw, &msg) == nil && strings.TrimSpace(msg) != "" {
		if text != "" {
			return strings.TrimSpace(msg + ": " + text)
		}
		return strings.TrimSpace(msg)
	}
	return strings.TrimSpace(text)
}

func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", integration.ErrChannelAuthFailed, status)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", integration.ErrChannelRateLimited, status)
	}
	if status >= 500 {
		return fmt.Errorf("%w: HTTP %d", integration.ErrChannelUnavailable, status)
	}
	return fmt.Errorf("%w: HTTP %d", integration.ErrChannelRequestFailed, status)
}
