package exception

import "errors"

// Stream errors
var (
	ErrStreamConnectionClose = errors.New("stream: connection closed")
	ErrStreamListenKeyEmpty  = errors.New("stream: empty listen key")
)
