// Package integration contains the marketplace integration bounded context.
//
// Key concepts:
//   - ChannelCode: identifies an external marketplace (Wildberries, Ozon, Yandex Market)
//   - StockLine: the aggregate quantity of one item as published to one channel
//   - MarketplaceAdapter: port for pushing stock to a channel
//   - WebhookConfig / WebhookEvent: per-channel outbound webhook settings and delivery log
//
// Ports are defined here; adapters live in internal/infrastructure/ecommerce.
package integration
