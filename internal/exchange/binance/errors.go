package binance

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
)

// APIError is a non-2xx response from the exchange, carrying the Binance
// error code when the body was parseable.
type APIError struct {
	HTTPStatus int
	Code       int
	Msg        string
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{HTTPStatus: status}
	var parsed struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := sonic.ConfigFastest.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Msg = parsed.Msg
	}
	return apiErr
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: http %d code %d: %s", e.HTTPStatus, e.Code, e.Msg)
}

// Transient reports whether the failure is worth a bounded retry. Rate
// limits, bans and server-side errors recover with time; everything else
// (invalid symbol, insufficient balance, bad credentials) is permanent.
func (e *APIError) Transient() bool {
	switch e.HTTPStatus {
	case http.StatusTooManyRequests, http.StatusTeapot:
		return true
	}
	if e.HTTPStatus >= 500 {
		return true
	}
	switch e.Code {
	case -1000, -1001, -1003, -1007, -1008:
		// UNKNOWN, DISCONNECTED, TOO_MANY_REQUESTS, TIMEOUT, SERVER_BUSY
		return true
	}
	return false
}
