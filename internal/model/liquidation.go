package model

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// LiquidationEvent is a forced order observed on a public market stream.
type LiquidationEvent struct {
	Symbol      string          `json:"symbol"`
	Side        enum.OrderSide  `json:"-"`
	SideLabel   string          `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	Notional    decimal.Decimal `json:"notional_usdt"`
	EventTimeMs int64           `json:"event_time_ms"`
}
