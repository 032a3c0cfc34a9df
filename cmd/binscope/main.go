package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"binscope/internal/config"
	"binscope/internal/monitor"
	"binscope/internal/notify"
	"binscope/internal/poolcache"
	"binscope/internal/provider/execd"
	"binscope/internal/provider/jupiter"
	"binscope/internal/provider/meteora"
	"binscope/internal/rotation"
	"binscope/internal/store"
	"binscope/internal/store/memory"
	"binscope/internal/store/postgres"
	"binscope/internal/web"
)

func main() {
	root := &cobra.Command{
		Use:          "binscope",
		Short:        "Bin-liquidity aggregation and position automation",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor, rotation scanner, and HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("pool-api", "https://dlmm-api.meteora.ag", "pool API base URL")
	serveCmd.Flags().String("price-api", "https://api.jup.ag/price/v2", "price API base URL")
	serveCmd.Flags().String("exec-api", "", "execution service base URL")
	serveCmd.Flags().Float64("rate-limit", 10, "pool API requests per second")
	serveCmd.Flags().Int("rate-burst", 20, "pool API request burst")
	serveCmd.Flags().Duration("tick-interval", time.Minute, "monitor tick interval")
	serveCmd.Flags().Duration("call-timeout", 30*time.Second, "provider call timeout")
	serveCmd.Flags().Int("concurrency", 8, "provider concurrency cap")
	serveCmd.Flags().Int("failure-budget", 5, "consecutive failures before degraded")
	serveCmd.Flags().Duration("rotation-tick", time.Minute, "rotation scheduler wake interval")
	serveCmd.Flags().Float64("min-liquidity-usd", 100, "minimum pool liquidity for listings")
	serveCmd.Flags().String("snapshots-out", "", "optional JSONL path for rotation snapshots")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN, in-memory store when empty")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)
	root.AddCommand(newAggregateCmd())
	root.AddCommand(newPlanCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ExecAPIURL == "" {
		return fmt.Errorf("exec-api is required: the monitor cannot act without an executor")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools := meteora.NewClient(meteora.Config{
		BaseURL:           cfg.PoolAPIURL,
		RequestTimeout:    cfg.CallTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
	}, logger)

	prices := jupiter.NewClient(jupiter.Config{
		BaseURL:        cfg.PriceAPIURL,
		RequestTimeout: cfg.CallTimeout,
	}, logger)

	executor, err := execd.NewClient(execd.Config{
		BaseURL:        cfg.ExecAPIURL,
		RequestTimeout: cfg.CallTimeout,
	}, logger)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg.PgDSN)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := poolcache.New(pools, poolcache.Options{
		MinLiquidityUsd: cfg.MinLiquidityUsd,
		Logger:          logger,
	})

	notifier := notify.NewLogNotifier(logger)

	mon := monitor.New(monitor.Config{
		TickInterval:  cfg.TickInterval,
		CallTimeout:   cfg.CallTimeout,
		Concurrency:   cfg.Concurrency,
		FailureBudget: cfg.FailureBudget,
	}, pools, prices, executor, st, st, notifier, logger)

	if err := mon.Start(ctx); err != nil {
		return err
	}
	defer mon.Stop()

	var exporter rotation.Exporter
	if cfg.SnapshotsOut != "" {
		exporter = store.NewJsonlExporter(cfg.SnapshotsOut)
	}
	scanner := rotation.NewScanner(cache, st, notifier, exporter, logger)
	go func() {
		if err := scanner.Run(ctx, cfg.RotationTick); err != nil && ctx.Err() == nil {
			logger.Error("rotation scanner stopped", zap.Error(err))
		}
	}()

	server := web.NewServer(mon, st, st, st, executor, web.NewAggregationService(cache, pools, prices), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ListenAddr)
	}()

	logger.Info("binscope serving",
		zap.String("listen", cfg.ListenAddr),
		zap.String("pool_api", cfg.PoolAPIURL),
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.Bool("postgres", cfg.PgDSN != ""),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// fullStore is the union of the three store interfaces plus close, satisfied
// by both backends.
type fullStore interface {
	store.RuleStore
	store.StateStore
	store.RotationStore
}

func openStore(ctx context.Context, dsn string) (fullStore, func(), error) {
	if dsn == "" {
		return memory.NewStore(), func() {}, nil
	}
	pg, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	return pg, pg.Close, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
