package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/integration"
	"github.com/stockledger/backend/internal/domain/ledger"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
)

// StockSyncTrigger asks for the given items to be pushed to the marketplaces.
// Implementations must not block the caller on remote I/O.
type StockSyncTrigger interface {
	TriggerSync(ctx context.Context, itemIDs []string)
}

// ProcessOrder decrements stock at the default voxel for every line of a
// marketplace order. A repeated order id is a no-op.
func (s *LedgerService) ProcessOrder(ctx context.Context, input ProcessOrderInput) (*ProcessOrderResult, error) {
	channel, err := integration.ParseChannelCode(input.Channel)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "unknown channel", err)
	}
	order := integration.ChannelOrder{OrderID: input.OrderID, Channel: channel}
	for _, l := range input.Lines {
		order.Lines = append(order.Lines, integration.ChannelOrderLine{SKU: l.SKU, Quantity: l.Quantity})
	}
	if err := order.Validate(); err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "invalid order", err)
	}

	result := &ProcessOrderResult{OrderID: order.OrderID, Channel: string(channel)}
	key := order.DedupKey()

	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "process_order",
		telemetry.WithAttribute(telemetry.SpanAttrChannel, string(channel)),
		telemetry.WithAttribute("order_id", order.OrderID),
	)
	defer span.End()

	if s.idempotency != nil && s.idemConfig.Enabled {
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idemConfig.TTL)
		if err != nil {
			return nil, s.mapError("check order idempotency", err)
		}
		if !fresh {
			telemetry.AddEvent(span, "duplicate")
			s.logger.Info("duplicate order ignored", zap.String("order", key))
			result.Duplicate = true
			return result, nil
		}
	}

	touched := make([]string, 0, len(order.Lines))
	applied := 0
	var firstErr error
	for _, line := range order.Lines {
		lr := OrderLineResult{SKU: line.SKU}

		item, err := s.itemRepo.FindByChannelSKU(ctx, channel, line.SKU)
		if err != nil {
			err = s.mapError("resolve order sku", err)
			if firstErr == nil {
				firstErr = err
			}
			lr.Error = err.Error()
			result.Lines = append(result.Lines, lr)
			s.logger.Warn("order line not matched",
				zap.String("order", key),
				zap.String("sku", line.SKU),
				zap.Error(err),
			)
			continue
		}
		lr.ItemID = item.ID

		upd, err := s.UpdateItemLocationQty(ctx, UpdateLocationQtyInput{
			ItemID:  item.ID,
			VoxelID: ledger.DefaultVoxel,
			Delta:   -line.Quantity,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			lr.Error = err.Error()
			result.Lines = append(result.Lines, lr)
			continue
		}
		lr.Applied = true
		lr.NewTotal = upd.NewTotal
		result.Lines = append(result.Lines, lr)
		touched = append(touched, item.ID)
		applied++

		if minQty := item.Attributes.MinQuantity; minQty > 0 && upd.NewTotal < minQty {
			alarm := LowStockAlarm{ItemID: item.ID, Total: upd.NewTotal, MinQuantity: minQty}
			result.Alarms = append(result.Alarms, alarm)
			s.logger.Warn("low stock",
				zap.String("item_id", alarm.ItemID),
				zap.Int("total", alarm.Total),
				zap.Int("min_quantity", alarm.MinQuantity),
			)
		}
	}

	// Nothing applied: let a later delivery of the same order try again.
	if applied == 0 && s.idempotency != nil && s.idemConfig.Enabled {
		if err := s.idempotency.Forget(ctx, key); err != nil {
			s.logger.Warn("failed to release order key", zap.String("order", key), zap.Error(err))
		}
	}

	if len(touched) > 0 && s.syncTrigger != nil {
		s.syncTrigger.TriggerSync(ctx, touched)
	}

	telemetry.SetAttributes(span, "applied", applied, "alarms", len(result.Alarms))
	if applied == 0 {
		telemetry.RecordError(span, firstErr)
		return result, firstErr
	}
	return result, nil
}
