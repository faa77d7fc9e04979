package stream

import (
	"context"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/exchange/binance"
)

// FillHandler decodes source-account execution reports and publishes the
// resulting fills into the supervisor's queue. Malformed payloads are
// logged and skipped, never surfaced as stream errors.
func FillHandler(source string, queue *bus.Queue) Handler {
	return func(ctx context.Context, raw []byte) {
		if binance.ClassifyUserData(raw) != binance.UserDataOrderUpdate {
			return
		}
		update, err := binance.ParseOrderTradeUpdate(raw)
		if err != nil {
			logs.Warnf("skip malformed payload, source=%s, err: %+v", source, err)
			return
		}
		fill, ok := update.FillEvent(source)
		if !ok {
			return
		}
		if err := queue.TryPublish(fill); err != nil {
			logs.Errorf("publish fill, source=%s order_id=%d, err: %+v", source, fill.OrderID, err)
		}
	}
}

// ConfirmationHandler passively logs execution reports on the main account.
// Read-only: replicated orders are confirmed here, nothing feeds back into
// the engine.
func ConfirmationHandler(account string) Handler {
	return func(ctx context.Context, raw []byte) {
		if binance.ClassifyUserData(raw) != binance.UserDataOrderUpdate {
			return
		}
		update, err := binance.ParseOrderTradeUpdate(raw)
		if err != nil {
			logs.Warnf("skip malformed payload, account=%s, err: %+v", account, err)
			return
		}
		logs.Infof("main account order update, account=%s symbol=%s side=%s status=%s order_id=%d filled=%s",
			account, update.Order.Symbol, update.Order.Side, update.Order.Status,
			update.Order.OrderID, update.Order.FilledTotal.String())
	}
}

// SessionExpired reports a listenKeyExpired push.
func SessionExpired(raw []byte) bool {
	return binance.ClassifyUserData(raw) == binance.UserDataListenKeyExpired
}
