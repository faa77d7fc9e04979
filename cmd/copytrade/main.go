package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/config"
	"main/internal/dispatch"
	"main/internal/exchange/binance"
	"main/internal/journal"
	"main/internal/lot"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/replicate"
	"main/internal/stream"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	configReload := flag.Duration("config-reload-interval", 5*time.Second, "Config reload interval (0=disable)")
	constraintRefresh := flag.Duration("constraint-refresh-interval", 0, "Symbol constraint refresh interval (0=disable)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logs.Errorf("config load failed, err: %+v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.ApplicationName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("pyroscope start failed, err: %+v", err)
			os.Exit(1)
		}
		defer func() { _ = profiler.Stop() }()
	}

	if err := run(ctx, cfg, *configPath, *configReload, *constraintRefresh); err != nil {
		logs.Errorf("copytrade stopped, err: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, configPath string, configReload, constraintRefresh time.Duration) error {
	httpClient := &http.Client{Timeout: 20 * time.Second}
	metrics := obs.NewMetrics()

	mainKey, mainSecret := cfg.MainAccount.Credentials()
	mainClient := binance.NewClient(httpClient, mainKey, mainSecret, cfg.MainAccount.Testnet())

	normalizer := lot.NewNormalizer(mainClient)
	ledger := replicate.NewLedger()

	var recorder dispatch.Recorder
	if cfg.Journal.Enabled {
		pg, err := conn.New(conn.Option{
			Host:     cfg.Journal.Host,
			Port:     cfg.Journal.Port,
			User:     cfg.Journal.User,
			Password: cfg.Journal.Password,
			Database: cfg.Journal.Database,
		})
		if err != nil {
			return err
		}
		defer func() { _ = pg.Close() }()
		store, err := journal.NewStore(pg.DB())
		if err != nil {
			return err
		}
		recorder = store
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Workers:      cfg.Dispatcher.Workers,
		QueueSize:    cfg.Dispatcher.QueueSize,
		MaxAttempts:  cfg.Dispatcher.MaxAttempts,
		RetryBackoff: cfg.Dispatcher.RetryBackoff,
	}, mainClient, recorder, metrics)
	if err != nil {
		return err
	}

	engine := replicate.NewEngine(replicate.BuildRules(cfg.SourceAccounts, 1), ledger, normalizer, dispatcher, metrics)

	if configReload > 0 {
		go watchConfig(ctx, configPath, configReload, engine)
	}
	if constraintRefresh > 0 {
		go refreshConstraints(ctx, normalizer, constraintRefresh)
	}

	dispatcher.Run(ctx)

	var wg sync.WaitGroup
	for _, src := range cfg.SourceAccounts {
		if !src.IsEnabled() {
			logs.Infof("skip disabled source account, source=%s", src.Name)
			continue
		}
		key, secret := src.Credentials()
		client := binance.NewClient(httpClient, key, secret, src.Testnet())
		queue := bus.NewQueue(1024)

		supervisor, err := stream.NewSupervisor(stream.Config{
			Account:        src.Name,
			Source:         client,
			Handler:        stream.FillHandler(src.Name, queue),
			SessionExpired: stream.SessionExpired,
			Metrics:        metrics,
		})
		if err != nil {
			return err
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = supervisor.Run(ctx)
			queue.Close()
		}()
		go func() {
			defer wg.Done()
			queue.Run(ctx, func(fill model.FillEvent) {
				engine.Handle(ctx, fill)
			})
		}()
	}

	mainSupervisor, err := stream.NewSupervisor(stream.Config{
		Account:        cfg.MainAccount.Name,
		Source:         mainClient,
		Handler:        stream.ConfirmationHandler(cfg.MainAccount.Name),
		SessionExpired: stream.SessionExpired,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = mainSupervisor.Run(ctx)
	}()

	logs.Infof("copy trading engine started, sources=%d main=%s", len(cfg.SourceAccounts), cfg.MainAccount.Name)

	<-ctx.Done()
	wg.Wait()
	dispatcher.Wait()

	snapshot := metrics.Snapshot()
	logs.Infof("metrics: outcomes=%v queue_drops=%d reconnects=%d dispatch_latency=%+v",
		snapshot.OutcomeCounts, snapshot.QueueDrops, snapshot.Reconnects, snapshot.DispatchLatency)
	return nil
}

func watchConfig(ctx context.Context, path string, interval time.Duration, engine *replicate.Engine) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	version := int64(1)
	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Warnf("config stat failed, err: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) && !lastMod.IsZero() {
				continue
			}
			if lastMod.IsZero() {
				lastMod = info.ModTime()
				continue
			}
			cfg, err := config.Load(path)
			if err != nil {
				logs.Warnf("config reload failed, err: %+v", err)
				continue
			}
			version++
			engine.UpdateRules(replicate.BuildRules(cfg.SourceAccounts, version))
			lastMod = info.ModTime()
			logs.Infof("config reloaded, path=%s", path)
		}
	}
}

func refreshConstraints(ctx context.Context, normalizer *lot.Normalizer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := normalizer.Refresh(ctx); err != nil {
				logs.Warnf("constraint refresh failed, err: %+v", err)
			}
		}
	}
}
