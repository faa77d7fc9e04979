package binance

import (
	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

// UserDataKind classifies a user-data stream payload by its event type.
type UserDataKind uint8

const (
	UserDataUnknown UserDataKind = iota
	UserDataOrderUpdate
	UserDataAccountUpdate
	UserDataTradeLite
	UserDataListenKeyExpired
)

type eventEnvelope struct {
	EventType string `json:"e"`
}

// ClassifyUserData peeks at the event type field without a full decode.
func ClassifyUserData(raw []byte) UserDataKind {
	var env eventEnvelope
	if err := sonic.ConfigFastest.Unmarshal(raw, &env); err != nil {
		return UserDataUnknown
	}
	switch env.EventType {
	case "ORDER_TRADE_UPDATE":
		return UserDataOrderUpdate
	case "ACCOUNT_UPDATE":
		return UserDataAccountUpdate
	case "TRADE_LITE":
		return UserDataTradeLite
	case "listenKeyExpired":
		return UserDataListenKeyExpired
	default:
		return UserDataUnknown
	}
}

// OrderTradeUpdate is the execution report pushed on every order state
// change of the account's user-data stream.
type OrderTradeUpdate struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol        string          `json:"s"`
		Side          string          `json:"S"`
		Type          string          `json:"o"`
		Quantity      decimal.Decimal `json:"q"`
		Price         decimal.Decimal `json:"p"`
		AveragePrice  decimal.Decimal `json:"ap"`
		Status        string          `json:"X"`
		OrderID       int64           `json:"i"`
		FilledTotal   decimal.Decimal `json:"z"`
		LastFilledQty decimal.Decimal `json:"l"`
	} `json:"o"`
}

// ParseOrderTradeUpdate decodes a full execution report.
func ParseOrderTradeUpdate(raw []byte) (OrderTradeUpdate, error) {
	var update OrderTradeUpdate
	if err := sonic.ConfigFastest.Unmarshal(raw, &update); err != nil {
		return OrderTradeUpdate{}, errors.Wrap(err, "decode order trade update")
	}
	return update, nil
}

// FillEvent converts a FILLED execution report into a fill tagged with its
// source account. Every other status is dropped at this boundary.
func (u OrderTradeUpdate) FillEvent(source string) (model.FillEvent, bool) {
	status, ok := enum.ParseOrderStatus(u.Order.Status)
	if !ok || status != enum.OrderStatusFilled {
		return model.FillEvent{}, false
	}
	side, ok := enum.ParseOrderSide(u.Order.Side)
	if !ok {
		return model.FillEvent{}, false
	}
	if u.Order.FilledTotal.Sign() <= 0 {
		return model.FillEvent{}, false
	}
	return model.FillEvent{
		Source:      source,
		Symbol:      u.Order.Symbol,
		Side:        side,
		Quantity:    u.Order.FilledTotal,
		Price:       u.Order.AveragePrice,
		OrderID:     u.Order.OrderID,
		EventTimeMs: u.EventTime,
	}, true
}

// ForceOrder is a liquidation order pushed on <symbol>@forceOrder streams.
type ForceOrder struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol       string          `json:"s"`
		Side         string          `json:"S"`
		Quantity     decimal.Decimal `json:"q"`
		Price        decimal.Decimal `json:"p"`
		AveragePrice decimal.Decimal `json:"ap"`
		Status       string          `json:"X"`
	} `json:"o"`
}

// LiquidationEvent converts a force order into the monitor's record shape.
func (f ForceOrder) LiquidationEvent() (model.LiquidationEvent, bool) {
	if f.EventType != "forceOrder" {
		return model.LiquidationEvent{}, false
	}
	side, ok := enum.ParseOrderSide(f.Order.Side)
	if !ok {
		return model.LiquidationEvent{}, false
	}
	return model.LiquidationEvent{
		Symbol:      f.Order.Symbol,
		Side:        side,
		SideLabel:   side.String(),
		Quantity:    f.Order.Quantity,
		Price:       f.Order.Price,
		AvgPrice:    f.Order.AveragePrice,
		Notional:    f.Order.Quantity.Mul(f.Order.AveragePrice),
		EventTimeMs: f.EventTime,
	}, true
}
