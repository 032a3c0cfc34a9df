package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"binscope/internal/config"
	"binscope/internal/poolcache"
	"binscope/internal/provider/jupiter"
	"binscope/internal/provider/meteora"
	"binscope/internal/web"
)

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Merge a pair's pool bins into one bucket series",
		RunE:  runAggregate,
	}

	cmd.Flags().String("pool-api", "https://dlmm-api.meteora.ag", "pool API base URL")
	cmd.Flags().String("price-api", "https://api.jup.ag/price/v2", "price API base URL")
	cmd.Flags().String("mint-x", "", "token X mint")
	cmd.Flags().String("mint-y", "", "token Y mint")
	cmd.Flags().Float64("min-liquidity-usd", 100, "minimum pool liquidity for listings")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.MintX == "" || cfg.MintY == "" {
		return fmt.Errorf("mint-x and mint-y are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools := meteora.NewClient(meteora.Config{BaseURL: cfg.PoolAPIURL}, logger)
	prices := jupiter.NewClient(jupiter.Config{BaseURL: cfg.PriceAPIURL}, logger)
	cache := poolcache.New(pools, poolcache.Options{
		MinLiquidityUsd: cfg.MinLiquidityUsd,
		Logger:          logger,
	})

	buckets, err := web.NewAggregationService(cache, pools, prices).AggregatePair(ctx, cfg.MintX, cfg.MintY)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(buckets)
}
