package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Marketplace Errors
// ---------------------------------------------------------------------------

var (
	ErrChannelNotConfigured   = errors.New("integration: channel not configured")
	ErrChannelNotEnabled      = errors.New("integration: channel not enabled")
	ErrChannelUnavailable     = errors.New("integration: channel temporarily unavailable")
	ErrChannelRequestFailed   = errors.New("integration: channel request failed")
	ErrChannelInvalidResponse = errors.New("integration: invalid channel response")
	ErrChannelAuthFailed      = errors.New("integration: channel authentication failed")
	ErrChannelRateLimited     = errors.New("integration: channel rate limited")
	ErrChannelSyncFailed      = errors.New("integration: channel stock sync failed")
	ErrUnknownChannel         = errors.New("integration: unknown channel")
	ErrEmptyStockBatch        = errors.New("integration: no stock lines to push")
)

// ---------------------------------------------------------------------------
// ChannelCode
// ---------------------------------------------------------------------------

// ChannelCode identifies an external marketplace
type ChannelCode string

const (
	// ChannelWildberries is the Wildberries marketplace
	ChannelWildberries ChannelCode = "WB"
	// ChannelOzon is the Ozon marketplace
	ChannelOzon ChannelCode = "OZON"
	// ChannelYandexMarket is the Yandex Market marketplace
	ChannelYandexMarket ChannelCode = "YM"
)

// AllChannels lists every supported channel in a stable order
func AllChannels() []ChannelCode {
	return []ChannelCode{ChannelWildberries, ChannelOzon, ChannelYandexMarket}
}

// IsValid returns true if the channel code is supported
func (c ChannelCode) IsValid() bool {
	switch c {
	case ChannelWildberries, ChannelOzon, ChannelYandexMarket:
		return true
	default:
		return false
	}
}

// String returns the string representation of ChannelCode
func (c ChannelCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the channel
func (c ChannelCode) DisplayName() string {
	switch c {
	case ChannelWildberries:
		return "Wildberries"
	case ChannelOzon:
		return "Ozon"
	case ChannelYandexMarket:
		return "Yandex Market"
	default:
		return string(c)
	}
}

// ParseChannelCode accepts the canonical code or a common alias, case-insensitively
func ParseChannelCode(s string) (ChannelCode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wb", "wildberries":
		return ChannelWildberries, nil
	case "ozon":
		return ChannelOzon, nil
	case "ym", "yandex", "yandex_market", "yandexmarket":
		return ChannelYandexMarket, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
}

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus represents the synchronization status
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
	SyncStatusSkipped SyncStatus = "SKIPPED"
)

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// StockLine is the aggregate quantity of one item as published to one channel.
// Adapters never see per-location detail.
type StockLine struct {
	// ItemID is the internal item identifier
	ItemID string
	// SKU is the channel-side identifier (falls back to ItemID)
	SKU string
	// WarehouseID is the channel-side warehouse identifier
	WarehouseID string
	// Quantity is the total quantity across all locations
	Quantity int
}

// SyncResult represents the result of pushing a stock batch to one channel
type SyncResult struct {
	// Channel is the channel the batch was pushed to
	Channel ChannelCode
	// Status is the overall sync status
	Status SyncStatus
	// TotalCount is the number of lines in the batch
	TotalCount int
	// SuccessCount is the number of lines accepted by the channel
	SuccessCount int
	// FailedCount is the number of lines rejected by the channel
	FailedCount int
	// FailedItems contains per-SKU failure details
	FailedItems []SyncFailure
	// RawError is the channel's raw error text for a batch-level failure
	RawError string
	// SyncedAt is when the push completed
	SyncedAt time.Time
}

// SyncFailure represents a rejected stock line
type SyncFailure struct {
	SKU          string
	ErrorCode    string
	ErrorMessage string
}

// NewBatchFailure builds a FAILED result for a batch rejected as a whole
func NewBatchFailure(channel ChannelCode, total int, rawError string) *SyncResult {
	return &SyncResult{
		Channel:     channel,
		Status:      SyncStatusFailed,
		TotalCount:  total,
		FailedCount: total,
		RawError:    rawError,
		SyncedAt:    time.Now(),
	}
}

// NewLineResult builds a result from per-SKU failures. Status is SUCCESS when
// nothing failed, FAILED when everything failed and PARTIAL otherwise.
func NewLineResult(channel ChannelCode, total int, failures []SyncFailure) *SyncResult {
	failed := len(failures)
	if failed > total {
		failed = total
	}
	r := &SyncResult{
		Channel:      channel,
		TotalCount:   total,
		SuccessCount: total - failed,
		FailedCount:  failed,
		FailedItems:  failures,
		SyncedAt:     time.Now(),
	}
	switch {
	case failed == 0:
		r.Status = SyncStatusSuccess
	case failed == total:
		r.Status = SyncStatusFailed
	default:
		r.Status = SyncStatusPartial
	}
	return r
}

// ChannelSyncError carries a channel's raw error text for a failed push
type ChannelSyncError struct {
	Channel ChannelCode
	Raw     string
	Err     error
}

// Error implements the error interface
func (e *ChannelSyncError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("%s sync failed: %s", e.Channel, e.Raw)
	}
	return fmt.Sprintf("%s sync failed: %v", e.Channel, e.Err)
}

// Unwrap returns the underlying error
func (e *ChannelSyncError) Unwrap() error {
	if e.Err == nil {
		return ErrChannelSyncFailed
	}
	return e.Err
}

// Is makes every ChannelSyncError match ErrChannelSyncFailed
func (e *ChannelSyncError) Is(target error) bool {
	return target == ErrChannelSyncFailed
}

// ---------------------------------------------------------------------------
// MarketplaceAdapter Port Interface
// ---------------------------------------------------------------------------

// MarketplaceAdapter pushes aggregate stock to one external channel.
// Implementations perform a single batch call per push and never retry;
// retry policy belongs to the caller.
type MarketplaceAdapter interface {
	// Code returns the channel this adapter handles
	Code() ChannelCode

	// IsEnabled reports whether the channel is configured and switched on
	IsEnabled(ctx context.Context) bool

	// DefaultWarehouseID is used for items without a channel warehouse override
	DefaultWarehouseID() string

	// BuildPayload translates stock lines into the channel's request body
	BuildPayload(lines []StockLine) (any, error)

	// PushStock sends one batch. A batch-level rejection returns a FAILED
	// result together with a *ChannelSyncError.
	PushStock(ctx context.Context, lines []StockLine) (*SyncResult, error)
}

// MarketplaceRegistry gives access to the configured channel adapters
type MarketplaceRegistry interface {
	// Get returns the adapter for the channel
	Get(code ChannelCode) (MarketplaceAdapter, error)

	// List returns all registered adapters ordered by channel code
	List() []MarketplaceAdapter

	// ListEnabled returns the enabled adapters ordered by channel code
	ListEnabled(ctx context.Context) []MarketplaceAdapter
}

// StaticRegistry is a MarketplaceRegistry backed by a fixed table of adapters
type StaticRegistry struct {
	adapters map[ChannelCode]MarketplaceAdapter
}

// NewStaticRegistry creates a registry from the given adapters. A later
// adapter for the same channel replaces an earlier one.
func NewStaticRegistry(adapters ...MarketplaceAdapter) *StaticRegistry {
	r := &StaticRegistry{adapters: make(map[ChannelCode]MarketplaceAdapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Code()] = a
		}
	}
	return r
}

// Get returns the adapter for the channel
func (r *StaticRegistry) Get(code ChannelCode) (MarketplaceAdapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotConfigured, code)
	}
	return a, nil
}

// List returns all registered adapters ordered by channel code
func (r *StaticRegistry) List() []MarketplaceAdapter {
	out := make([]MarketplaceAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// ListEnabled returns the enabled adapters ordered by channel code
func (r *StaticRegistry) ListEnabled(ctx context.Context) []MarketplaceAdapter {
	var out []MarketplaceAdapter
	for _, a := range r.List() {
		if a.IsEnabled(ctx) {
			out = append(out, a)
		}
	}
	return out
}

var _ MarketplaceRegistry = (*StaticRegistry)(nil)
