package exception

import "errors"

var (
	ErrOrderQueueFull     = errors.New("order: queue full")
	ErrOrderBelowMinimum  = errors.New("order: quantity below exchange minimum")
	ErrOrderUnknownSymbol = errors.New("order: unknown symbol")
)
