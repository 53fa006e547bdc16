package ecommerce

import (
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/infrastructure/config"
)

// NewRegistry builds the adapters of every channel. Disabled channels are
// registered too so that their webhook configs stay addressable.
func NewRegistry(cfg config.MarketplaceConfig, logger *zap.Logger, opts ...AdapterOption) (*integration.StaticRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]AdapterOption{WithLogger(logger)}, opts...)

	wb, err := NewWildberriesAdapter(cfg.Wildberries, opts...)
	if err != nil {
		return nil, err
	}
	ozon, err := NewOzonAdapter(cfg.Ozon, opts...)
	if err != nil {
		return nil, err
	}
	ym, err := NewYandexMarketAdapter(cfg.YandexMarket, opts...)
	if err != nil {
		return nil, err
	}
	return integration.NewStaticRegistry(wb, ozon, ym), nil
}
