package integration

import (
	"errors"
	"strings"
)

var (
	ErrOrderMissingID    = errors.New("integration: order id is required")
	ErrOrderNoLines      = errors.New("integration: order has no lines")
	ErrOrderInvalidLine  = errors.New("integration: order line needs a SKU and a positive quantity")
	ErrOrderAlreadyTaken = errors.New("integration: order already processed")
)

// ChannelOrder is a marketplace order that decrements local stock
type ChannelOrder struct {
	OrderID string
	Channel ChannelCode
	Lines   []ChannelOrderLine
}

// ChannelOrderLine is one SKU of a marketplace order
type ChannelOrderLine struct {
	SKU      string
	Quantity int
}

// Validate checks the order before any stock is touched
func (o *ChannelOrder) Validate() error {
	if strings.TrimSpace(o.OrderID) == "" {
		return ErrOrderMissingID
	}
	if !o.Channel.IsValid() {
		return ErrUnknownChannel
	}
	if len(o.Lines) == 0 {
		return ErrOrderNoLines
	}
	for _, l := range o.Lines {
		if strings.TrimSpace(l.SKU) == "" || l.Quantity <= 0 {
			return ErrOrderInvalidLine
		}
	}
	return nil
}

// DedupKey identifies the order across deliveries
func (o *ChannelOrder) DedupKey() string {
	return string(o.Channel) + ":" + strings.TrimSpace(o.OrderID)
}
