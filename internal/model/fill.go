package model

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// FillEvent is a fully executed order observed on a source account's
// user-data stream. Immutable, passed by value.
type FillEvent struct {
	Source      string
	Symbol      string
	Side        enum.OrderSide
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	OrderID     int64
	EventTimeMs int64
}

// ReplicaOrder is a lot-size-normalized market order bound for the main
// account. SourceOrderID keeps the idempotency key for audit.
type ReplicaOrder struct {
	Symbol        string
	Side          enum.OrderSide
	Quantity      decimal.Decimal
	Source        string
	SourceOrderID int64
}

// SymbolConstraint is the exchange-imposed quantity granularity per symbol.
type SymbolConstraint struct {
	Symbol      string
	MinQuantity decimal.Decimal
	StepSize    decimal.Decimal
}

// OrderResult is the exchange acknowledgment of a submitted order.
type OrderResult struct {
	OrderID int64
	Symbol  string
	Status  enum.OrderStatus
}
