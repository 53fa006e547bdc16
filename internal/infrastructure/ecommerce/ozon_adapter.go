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

var _ integration.MarketplaceAdapter = (*OzonAdapter)(nil)

type ozonCredentials struct {
	BaseURL  string `validate:"required,url"`
	ClientID string `validate:"required"`
	APIKey   string `validate:"required"`
}

// OzonStock is one line of the Ozon stock request
type OzonStock struct {
	OfferID     string `json:"offer_id"`
	Stock       int    `json:"stock"`
	WarehouseID int64  `json:"warehouse_id"`
}

// OzonStockRequest is the body of POST /v3/products/stocks
type OzonStockRequest struct {
	Stocks []OzonStock `json:"stocks"`
}

// OzonError is an error entry of the Ozon response
type OzonError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OzonStockResult is the per-offer answer of the v3 API
type OzonStockResult struct {
	OfferID     string      `json:"offer_id"`
	WarehouseID int64       `json:"warehouse_id"`
	Updated     bool        `json:"updated"`
	Errors      []OzonError `json:"errors"`
}

// OzonAdapter pushes stock to the Ozon seller API
type OzonAdapter struct {
	client   *apiClient
	clientID string
	apiKey   string
}

// NewOzonAdapter creates the adapter. Credentials are only required when
// the channel is enabled.
func NewOzonAdapter(cfg config.ChannelConfig, opts ...AdapterOption) (*OzonAdapter, error) {
	if cfg.Enabled {
		creds := ozonCredentials{BaseURL: cfg.BaseURL, ClientID: cfg.ClientID, APIKey: cfg.APIKey}
		if err := validate.Struct(creds); err != nil {
			return nil, fmt.Errorf("%w: ozon: %v", integration.ErrChannelNotConfigured, err)
		}
	}
	return &OzonAdapter{
		client:   newAPIClient(integration.ChannelOzon, cfg, opts),
		clientID: cfg.ClientID,
		apiKey:   cfg.APIKey,
	}, nil
}

// Code returns OZON
func (a *OzonAdapter) Code() integration.ChannelCode {
	return integration.ChannelOzon
}

// IsEnabled reports whether the channel is switched on
func (a *OzonAdapter) IsEnabled(_ context.Context) bool {
	return a.client.enabled
}

// DefaultWarehouseID returns the configured warehouse
func (a *OzonAdapter) DefaultWarehouseID() string {
	return a.client.warehouseID
}

// BuildPayload maps lines to the Ozon request. Ozon warehouse ids are numeric.
func (a *OzonAdapter) BuildPayload(lines []integration.StockLine) (any, error) {
	req := OzonStockRequest{Stocks: make([]OzonStock, 0, len(lines))}
	for _, l := range lines {
		wh, err := strconv.ParseInt(strings.TrimSpace(l.WarehouseID), 10, 64)
		if err != nil || wh <= 0 {
			return nil, fmt.Errorf("ozon: invalid warehouse %q for offer %q", l.WarehouseID, l.SKU)
		}
		req.Stocks = append(req.Stocks, OzonStock{OfferID: l.SKU, Stock: l.Quantity, WarehouseID: wh})
	}
	return req, nil
}

// PushStock sends one batch. A top-level error fails the whole batch; per
// offer errors are reported line by line.
func (a *OzonAdapter) PushStock(ctx context.Context, lines []integration.StockLine) (*integration.SyncResult, error) {
	if len(lines) == 0 {
		return nil, integration.ErrEmptyStockBatch
	}
	payload, err := a.BuildPayload(lines)
	if err != nil {
		return integration.NewBatchFailure(a.Code(), len(lines), err.Error()), &integration.ChannelSyncError{Channel: a.Code(), Raw: err.Error(), Err: err}
	}

	ctx, span := a.client.startPush(ctx, len(lines))
	defer span.End()

	headers := map[string]string{"Client-Id": a.clientID, "Api-Key": a.apiKey}
	resp, err := a.client.doJSON(ctx, http.MethodPost, "/v3/products/stocks", headers, payload)
	if err != nil {
		return a.client.failBatch(span, len(lines), err.Error(), err)
	}
	if !resp.ok() {
		return a.client.failBatch(span, len(lines), resp.raw(), statusError(resp.Status))
	}

	failures, batchErr, err := parseOzonResponse(resp.Body)
	if err != nil {
		return a.client.failBatch(span, len(lines), resp.raw(), fmt.Errorf("%w: %v", integration.ErrChannelInvalidResponse, err))
	}
	if batchErr != "" {
		return a.client.failBatch(span, len(lines), batchErr, nil)
	}
	return a.client.finish(span, integration.NewLineResult(a.Code(), len(lines), failures))
}

// parseOzonResponse accepts both {"result": [...]} (per offer) and
// {"result": {"errors": [...]}} (whole batch)
func parseOzonResponse(body []byte) ([]integration.SyncFailure, string, error) {
	if strings.TrimSpace(string(body)) == "" {
		return nil, "", nil
	}
	var envelope struct {
		Result  json.RawMessage `json:"result"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", err
	}
	result := strings.TrimSpace(string(envelope.Result))
	switch {
	case result == "" || result == "null":
		return nil, envelope.Message, nil
	case strings.HasPrefix(result, "["):
		var items []OzonStockResult
		if err := json.Unmarshal(envelope.Result, &items); err != nil {
			return nil, "", err
		}
		var failures []integration.SyncFailure
		for _, it := range items {
			if len(it.Errors) == 0 && it.Updated {
				continue
			}
			f := integration.SyncFailure{SKU: it.OfferID, ErrorMessage: "not updated"}
			if len(it.Errors) > 0 {
				f.ErrorCode = it.Errors[0].Code
				f.ErrorMessage = it.Errors[0].Message
			}
			failures = append(failures, f)
		}
		return failures, "", nil
	default:
		var obj struct {
			Errors []OzonError `json:"errors"`
		}
		if err := json.Unmarshal(envelope.Result, &obj); err != nil {
			return nil, "", err
		}
		if len(obj.Errors) > 0 {
			return nil, obj.Errors[0].Message, nil
		}
		return nil, "", nil
	}
}
