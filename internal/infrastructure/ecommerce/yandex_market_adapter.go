package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/infrastructure/config"
)

var _ integration.MarketplaceAdapter = (*YandexMarketAdapter)(nil)

type ymCredentials struct {
	BaseURL    string `validate:"required,url"`
	Token      string `validate:"required"`
	CampaignID string `validate:"required,numeric"`
}

// YandexStockItem is the quantity entry of one SKU
type YandexStockItem struct {
	Count     int    `json:"count"`
	Type      string `json:"type"`
	UpdatedAt string `json:"updatedAt"`
}

// YandexSKUStock is one SKU of the Yandex Market request
type YandexSKUStock struct {
	SKU         string            `json:"sku"`
	WarehouseID string            `json:"warehouseId,omitempty"`
	Items       []YandexStockItem `json:"items"`
}

// YandexStockRequest is the body of PUT /campaigns/{id}/offers/stocks
type YandexStockRequest struct {
	SKUs []YandexSKUStock `json:"skus"`
}

// YandexMarketAdapter pushes stock to the Yandex Market partner API
type YandexMarketAdapter struct {
	client     *apiClient
	token      string
	campaignID string
	now        func() time.Time
}

// NewYandexMarketAdapter creates the adapter. Credentials are only required
// when the channel is enabled.
func NewYandexMarketAdapter(cfg config.ChannelConfig, opts ...AdapterOption) (*YandexMarketAdapter, error) {
	if cfg.Enabled {
		creds := ymCredentials{BaseURL: cfg.BaseURL, Token: cfg.Token, CampaignID: cfg.CampaignID}
		if err := validate.Struct(creds); err != nil {
			return nil, fmt.Errorf("%w: yandex market: %v", integration.ErrChannelNotConfigured, err)
		}
	}
	return &YandexMarketAdapter{
		client:     newAPIClient(integration.ChannelYandexMarket, cfg, opts),
		token:      cfg.Token,
		campaignID: cfg.CampaignID,
		now:        time.Now,
	}, nil
}

// Code returns YM
func (a *YandexMarketAdapter) Code() integration.ChannelCode {
	return integration.ChannelYandexMarket
}

// IsEnabled reports whether the channel is switched on
func (a *YandexMarketAdapter) IsEnabled(_ context.Context) bool {
	return a.client.enabled
}

// DefaultWarehouseID returns the configured warehouse. Yandex accepts
// requests without one.
func (a *YandexMarketAdapter) DefaultWarehouseID() string {
	return a.client.warehouseID
}

// BuildPayload maps lines to the Yandex request
func (a *YandexMarketAdapter) BuildPayload(lines []integration.StockLine) (any, error) {
	updatedAt := a.now().UTC().Format(time.RFC3339)
	req := YandexStockRequest{SKUs: make([]YandexSKUStock, 0, len(lines))}
	for _, l := range lines {
		if strings.TrimSpace(l.SKU) == "" {
			return nil, fmt.Errorf("yandex market: empty sku for item %q", l.ItemID)
		}
		req.SKUs = append(req.SKUs, YandexSKUStock{
			SKU:         l.SKU,
			WarehouseID: l.WarehouseID,
			Items:       []YandexStockItem{{Count: l.Quantity, Type: "FIT", UpdatedAt: updatedAt}},
		})
	}
	return req, nil
}

// PushStock sends one batch
func (a *YandexMarketAdapter) PushStock(ctx context.Context, lines []integration.StockLine) (*integration.SyncResult, error) {
	if len(lines) == 0 {
		return nil, integration.ErrEmptyStockBatch
	}
	payload, err := a.BuildPayload(lines)
	if err != nil {
		return integration.NewBatchFailure(a.Code(), len(lines), err.Error()), &integration.ChannelSyncError{Channel: a.Code(), Raw: err.Error(), Err: err}
	}

	ctx, span := a.client.startPush(ctx, len(lines))
	defer span.End()

	path := "/campaigns/" + url.PathEscape(a.campaignID) + "/offers/stocks"
	headers := map[string]string{"Authorization": "Bearer " + a.token}
	resp, err := a.client.doJSON(ctx, http.MethodPut, path, headers, payload)
	if err != nil {
		return a.client.failBatch(span, len(lines), err.Error(), err)
	}
	if !resp.ok() {
		return a.client.failBatch(span, len(lines), resp.raw(), statusError(resp.Status))
	}
	if msg := yandexError(resp.Body); msg != "" {
		return a.client.failBatch(span, len(lines), msg, nil)
	}
	return a.client.finish(span, integration.NewLineResult(a.Code(), len(lines), nil))
}

// yandexError returns the first error message of a non-OK answer
func yandexError(body []byte) string {
	if strings.TrimSpace(string(body)) == "" {
		return ""
	}
	var payload struct {
		Status string `json:"status"`
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Errors) > 0 {
		e := payload.Errors[0]
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	if payload.Status != "" && !strings.EqualFold(payload.Status, "OK") {
		return "status " + payload.Status
	}
	return ""
}
