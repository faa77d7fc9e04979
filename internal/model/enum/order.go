package enum

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

// Opposite flips buy to sell and sell to buy.
func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBuy:
		return OrderSideSell
	case OrderSideSell:
		return OrderSideBuy
	default:
		return s
	}
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderSide maps the exchange side string to an OrderSide.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch s {
	case "BUY":
		return OrderSideBuy, true
	case "SELL":
		return OrderSideSell, true
	default:
		return _order_side_beg, false
	}
}

// OrderStatus new, partially filled, filled, canceled, expired
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusNew
	OrderStatusPartialFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusExpired
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// ParseOrderStatus maps the exchange execution status string to an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch s {
	case "NEW":
		return OrderStatusNew, true
	case "PARTIALLY_FILLED":
		return OrderStatusPartialFilled, true
	case "FILLED":
		return OrderStatusFilled, true
	case "CANCELED":
		return OrderStatusCanceled, true
	case "EXPIRED":
		return OrderStatusExpired, true
	default:
		return _order_status_beg, false
	}
}
