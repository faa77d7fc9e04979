package binance

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	_futuresBaseUrl    = "https://fapi.binance.com"
	_futuresBaseUrlDev = "https://testnet.binancefuture.com"

	_futuresBaseWsUrl    = "wss://fstream.binance.com"
	_futuresBaseWsUrlDev = "wss://stream.binancefuture.com"

	_requestTimeout = 15 * time.Second
)

// Client talks to the Binance USDⓈ-M futures REST API for one account.
type Client struct {
	http      *http.Client
	baseURL   string
	wsBaseURL string
	apiKey    string
	apiSecret string
}

func NewClient(httpClient *http.Client, apiKey, apiSecret string, testnet bool) *Client {
	baseURL := _futuresBaseUrl
	wsBaseURL := _futuresBaseWsUrl
	if testnet {
		baseURL = _futuresBaseUrlDev
		wsBaseURL = _futuresBaseWsUrlDev
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		wsBaseURL: wsBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// StreamURL builds the user-data websocket endpoint for a listen key.
func (c *Client) StreamURL(listenKey string) string {
	return c.wsBaseURL + "/ws/" + listenKey
}

// MarketStreamURL builds the combined public market stream endpoint.
func (c *Client) MarketStreamURL() string {
	return c.wsBaseURL + "/ws"
}

type placeOrderResponse struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
}

// SubmitMarketOrder places an immediate-execution market order.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side enum.OrderSide, quantity decimal.Decimal) (model.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side.String())
	params.Set("type", "MARKET")
	params.Set("quantity", quantity.String())

	body, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return model.OrderResult{}, err
	}

	var resp placeOrderResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return model.OrderResult{}, errors.Wrap(err, "decode order response")
	}
	status, _ := enum.ParseOrderStatus(resp.Status)
	return model.OrderResult{
		OrderID: resp.OrderID,
		Symbol:  resp.Symbol,
		Status:  status,
	}, nil
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`
		ContractType string `json:"contractType"`
		Filters      []struct {
			FilterType string `json:"filterType"`
			MinQty     string `json:"minQty"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// SymbolConstraint fetches the LOT_SIZE filter for one symbol.
func (c *Client) SymbolConstraint(ctx context.Context, symbol string) (model.SymbolConstraint, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.publicRequest(ctx, "/fapi/v1/exchangeInfo", params)
	if err != nil {
		return model.SymbolConstraint{}, err
	}

	var resp exchangeInfoResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return model.SymbolConstraint{}, errors.Wrap(err, "decode exchange info")
	}
	for _, s := range resp.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			minQty, err := decimal.NewFromString(f.MinQty)
			if err != nil {
				return model.SymbolConstraint{}, errors.Wrap(err, "parse minQty").With("symbol", symbol)
			}
			stepSize, err := decimal.NewFromString(f.StepSize)
			if err != nil {
				return model.SymbolConstraint{}, errors.Wrap(err, "parse stepSize").With("symbol", symbol)
			}
			return model.SymbolConstraint{
				Symbol:      symbol,
				MinQuantity: minQty,
				StepSize:    stepSize,
			}, nil
		}
	}
	return model.SymbolConstraint{}, exception.ErrOrderUnknownSymbol
}

// ActiveSymbols lists every symbol currently trading as a perpetual contract.
func (c *Client) ActiveSymbols(ctx context.Context) ([]string, error) {
	body, err := c.publicRequest(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}

	var resp exchangeInfoResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode exchange info")
	}
	symbols := make([]string, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.Status == "TRADING" && s.ContractType == "PERPETUAL" {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// CreateListenKey opens a user-data stream session token.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	body, err := c.keyedRequest(ctx, http.MethodPost, "/fapi/v1/listenKey", nil)
	if err != nil {
		return "", err
	}
	var resp listenKeyResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "decode listen key response")
	}
	if resp.ListenKey == "" {
		return "", exception.ErrStreamListenKeyEmpty
	}
	return resp.ListenKey, nil
}

// KeepAliveListenKey extends the current listen key validity window.
func (c *Client) KeepAliveListenKey(ctx context.Context) error {
	_, err := c.keyedRequest(ctx, http.MethodPut, "/fapi/v1/listenKey", nil)
	return err
}

type balanceEntry struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

// Balance is one asset's futures wallet balance.
type Balance struct {
	Asset     string
	Total     decimal.Decimal
	Available decimal.Decimal
}

// AccountBalance returns the balance for one asset.
func (c *Client) AccountBalance(ctx context.Context, asset string) (Balance, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/balance", url.Values{})
	if err != nil {
		return Balance{}, err
	}

	var entries []balanceEntry
	if err := sonic.ConfigFastest.Unmarshal(body, &entries); err != nil {
		return Balance{}, errors.Wrap(err, "decode balance response")
	}
	for _, e := range entries {
		if e.Asset != asset {
			continue
		}
		total, err := decimal.NewFromString(e.Balance)
		if err != nil {
			return Balance{}, errors.Wrap(err, "parse balance")
		}
		available, err := decimal.NewFromString(e.AvailableBalance)
		if err != nil {
			return Balance{}, errors.Wrap(err, "parse available balance")
		}
		return Balance{Asset: e.Asset, Total: total, Available: available}, nil
	}
	return Balance{}, errors.Errorf("asset %q not found in balance response", asset)
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// TickerPrice returns the latest traded price for a symbol.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.publicRequest(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return decimal.Zero, err
	}
	var resp tickerPriceResponse
	if err := sonic.ConfigFastest.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode ticker response")
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse ticker price")
	}
	return price, nil
}

func (c *Client) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) keyedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.do(req)
}

func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")
	query := params.Encode()
	query += "&signature=" + sign(c.apiSecret, query)

	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}
