package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"

	"main/internal/exchange/binance"
	"main/internal/liquidation"
	"main/internal/model"
	"main/internal/recorder"
)

func main() {
	mode := flag.String("mode", "production", "Trade mode: production or testnet")
	dataDir := flag.String("data-dir", "data/liquidations", "Directory for JSONL output")
	save := flag.Bool("save", true, "Persist liquidation records to disk")
	symbolList := flag.String("symbols", "", "Comma-separated symbols (empty=all active perpetuals)")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *mode, *dataDir, *save, *symbolList); err != nil {
		logs.Errorf("liquidation monitor stopped, err: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, mode, dataDir string, save bool, symbolList string) error {
	httpClient := &http.Client{Timeout: 20 * time.Second}
	client := binance.NewClient(httpClient,
		os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"), mode == "testnet")

	symbols := splitSymbols(symbolList)
	if len(symbols) == 0 {
		active, err := client.ActiveSymbols(ctx)
		if err != nil {
			return err
		}
		symbols = active
	}
	logs.Infof("monitoring %d symbols for liquidations, mode=%s", len(symbols), mode)

	var writer *recorder.Writer
	if save {
		w, err := recorder.NewWriter(recorder.DefaultConfig(dataDir))
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		writer = w
		logs.Infof("saving liquidation data, dir=%s", dataDir)
	}

	monitor := liquidation.NewMonitor(ctx, client.MarketStreamURL())
	if err := monitor.StartWebsocket(ctx); err != nil {
		return err
	}
	if err := monitor.SubscribeForceOrders(ctx, symbols); err != nil {
		return err
	}

	var total atomic.Int64
	cancel := monitor.ObserveForceOrders(ctx, func(event model.LiquidationEvent) {
		total.Add(1)
		liquidation.LogEvent(event)
		if writer == nil {
			return
		}
		if err := writer.TryAppend(event); err != nil {
			logs.Warnf("append liquidation record, err: %+v", err)
		}
	})
	defer cancel()

	<-ctx.Done()
	monitor.Close()
	if writer != nil {
		if err := writer.Close(); err != nil {
			return err
		}
	}
	logs.Infof("liquidation monitor done, total=%d", total.Load())
	return nil
}

func splitSymbols(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}
