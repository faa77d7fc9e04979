package liquidation

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/exchange/binance"
	"main/internal/model"
)

const _subscribeBatchSize = 100

// Monitor observes forced-liquidation order streams for a set of symbols
// over the public futures market websocket.
type Monitor struct {
	wss *ws.WebSocket
}

func NewMonitor(ctx context.Context, wsURL string) *Monitor {
	return &Monitor{
		wss: ws.New(ctx, wsURL),
	}
}

func (m *Monitor) Close() {
	m.wss.Close()
}

func (m *Monitor) StartWebsocket(ctx context.Context) error {
	if err := m.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscribeResponseParser(m ws.Message) (subscribeResponse, bool) {
	var resp subscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// SubscribeForceOrders subscribes '<symbol>@forceOrder' for every symbol,
// batched to stay under the per-request stream limit.
func (m *Monitor) SubscribeForceOrders(ctx context.Context, symbols []string) error {
	streams := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		streams = append(streams, fmt.Sprintf("%s@forceOrder", strings.ToLower(symbol)))
	}

	for batchID := int64(1); len(streams) > 0; batchID++ {
		n := min(_subscribeBatchSize, len(streams))
		batch := streams[:n]
		streams = streams[n:]

		appendIntoRegister := true
		if err := m.wss.SendAndWait(ctx, ws.Sidecar{
			Sender: func(ctx context.Context, client *ws.WebSocket) error {
				payload := subscribeRequest{
					Method: "SUBSCRIBE",
					Params: batch,
					ID:     batchID,
				}
				if err := client.WriteJSON(payload); err != nil {
					return errors.Wrap(err, "write subscribe payload").With("payload", payload)
				}
				return nil
			},
			Waiter: func(ctx context.Context, msg ws.Message) (bool, error) {
				resp, ok := subscribeResponseParser(msg)
				if !ok || resp.ID != batchID {
					return false, nil
				}
				if resp.Result != nil {
					return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
				}
				return true, nil
			},
		}, appendIntoRegister); err != nil {
			return errors.Wrap(err, "send and wait")
		}
	}

	return nil
}

// ObserveForceOrders delivers decoded liquidation events to the handler
// until the context or process shuts down.
func (m *Monitor) ObserveForceOrders(ctx context.Context, handler func(model.LiquidationEvent)) (unsubscribe func()) {
	ch, cancel := m.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				forceOrder, ok := ws.ReadMessage[binance.ForceOrder](msg)
				if !ok {
					continue
				}
				event, ok := forceOrder.LiquidationEvent()
				if !ok {
					continue
				}
				handler(event)
			}
		}
	}()

	return cancel
}

// LogEvent writes one informational line per liquidation.
func LogEvent(event model.LiquidationEvent) {
	logs.Infof("liquidation, symbol=%s side=%s qty=%s avg_price=%s notional=%s",
		event.Symbol, event.SideLabel, event.Quantity.String(), event.AvgPrice.String(), event.Notional.String())
}
