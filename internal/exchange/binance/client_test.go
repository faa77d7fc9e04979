package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
	"main/pkg/exception"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), "test-key", "test-secret", false)
	client.baseURL = server.URL
	return client
}

func TestSign(t *testing.T) {
	// hand-computed HMAC-SHA256 check
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte("symbol=ETHUSDT"))
	want := hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, sign("test-secret", "symbol=ETHUSDT"))
}

func TestSubmitMarketOrder(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/fapi/v1/order", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"orderId":283194212,"symbol":"ETHUSDT","status":"FILLED"}`))
	})

	result, err := client.SubmitMarketOrder(context.Background(), "ETHUSDT", enum.OrderSideBuy, decimal.RequireFromString("0.15"))
	require.NoError(t, err)
	assert.Equal(t, int64(283194212), result.OrderID)
	assert.Equal(t, "ETHUSDT", result.Symbol)
	assert.Equal(t, enum.OrderStatusFilled, result.Status)

	query, err := url.ParseQuery(gotQuery)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", query.Get("symbol"))
	assert.Equal(t, "BUY", query.Get("side"))
	assert.Equal(t, "MARKET", query.Get("type"))
	assert.Equal(t, "0.15", query.Get("quantity"))
	assert.NotEmpty(t, query.Get("timestamp"))
	assert.NotEmpty(t, query.Get("signature"))
}

func TestSubmitMarketOrderAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	})

	_, err := client.SubmitMarketOrder(context.Background(), "ETHUSDT", enum.OrderSideSell, decimal.NewFromInt(1))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	assert.Equal(t, -2019, apiErr.Code)
	assert.False(t, apiErr.Transient())
}

func TestSymbolConstraint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		require.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbols":[{
			"symbol":"ETHUSDT","status":"TRADING","contractType":"PERPETUAL",
			"filters":[
				{"filterType":"PRICE_FILTER","minQty":"","stepSize":""},
				{"filterType":"LOT_SIZE","minQty":"0.001","stepSize":"0.001"}
			]
		}]}`))
	})

	constraint, err := client.SymbolConstraint(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", constraint.Symbol)
	assert.True(t, decimal.RequireFromString("0.001").Equal(constraint.MinQuantity))
	assert.True(t, decimal.RequireFromString("0.001").Equal(constraint.StepSize))
}

func TestSymbolConstraintUnknownSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"symbols":[]}`))
	})

	_, err := client.SymbolConstraint(context.Background(), "NOPEUSDT")
	assert.ErrorIs(t, err, exception.ErrOrderUnknownSymbol)
}

func TestActiveSymbols(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","contractType":"PERPETUAL"},
			{"symbol":"ETHUSDT","status":"TRADING","contractType":"PERPETUAL"},
			{"symbol":"BTCUSDT_250926","status":"TRADING","contractType":"CURRENT_QUARTER"},
			{"symbol":"OLDUSDT","status":"SETTLING","contractType":"PERPETUAL"}
		]}`))
	})

	symbols, err := client.ActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestCreateListenKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/fapi/v1/listenKey", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		w.Write([]byte(`{"listenKey":"pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1"}`))
	})

	key, err := client.CreateListenKey(context.Background())
	require.NoError(t, err)
	assert.Len(t, key, 64)
}

func TestCreateListenKeyEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.CreateListenKey(context.Background())
	assert.ErrorIs(t, err, exception.ErrStreamListenKeyEmpty)
}

func TestAccountBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v2/balance", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("signature"))
		w.Write([]byte(`[
			{"asset":"USDT","balance":"1024.50","availableBalance":"900.25"},
			{"asset":"BNB","balance":"0","availableBalance":"0"}
		]`))
	})

	balance, err := client.AccountBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, "USDT", balance.Asset)
	assert.True(t, decimal.RequireFromString("1024.50").Equal(balance.Total))
	assert.True(t, decimal.RequireFromString("900.25").Equal(balance.Available))
}

func TestAPIErrorTransient(t *testing.T) {
	testcases := []struct {
		desc      string
		err       APIError
		transient bool
	}{
		{"rate limited", APIError{HTTPStatus: 429}, true},
		{"ip banned", APIError{HTTPStatus: 418}, true},
		{"server error", APIError{HTTPStatus: 503}, true},
		{"server busy code", APIError{HTTPStatus: 400, Code: -1008}, true},
		{"timeout code", APIError{HTTPStatus: 400, Code: -1007}, true},
		{"insufficient margin", APIError{HTTPStatus: 400, Code: -2019}, false},
		{"bad symbol", APIError{HTTPStatus: 400, Code: -1121}, false},
		{"bad api key", APIError{HTTPStatus: 401, Code: -2014}, false},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.transient, tc.err.Transient())
		})
	}
}
