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
	"binscope/internal/model"
	"binscope/internal/planner"
	"binscope/internal/provider/meteora"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute bin allocations for a price range on one pool",
		RunE:  runPlan,
	}

	cmd.Flags().String("pool-api", "https://dlmm-api.meteora.ag", "pool API base URL")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().Float64("lower", 0, "lower price bound")
	cmd.Flags().Float64("upper", 0, "upper price bound")
	cmd.Flags().String("shape", "flat", "distribution shape (flat, curve, edge)")
	cmd.Flags().Float64("x-weight", 1, "token X weight")
	cmd.Flags().Float64("y-weight", 1, "token Y weight")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPlan(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PoolID == "" {
		return fmt.Errorf("pool address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools := meteora.NewClient(meteora.Config{BaseURL: cfg.PoolAPIURL}, logger)
	set, err := pools.GetPoolBins(ctx, cfg.PoolID)
	if err != nil {
		return fmt.Errorf("fetch pool: %w", err)
	}

	req := model.RangeRequest{
		LowerPrice:   cfg.LowerPrice,
		UpperPrice:   cfg.UpperPrice,
		Shape:        model.DistributionShape(cfg.Shape),
		TokenXWeight: cfg.TokenXWeight,
		TokenYWeight: cfg.TokenYWeight,
	}

	bins, err := planner.BinsForRange(req.LowerPrice, req.UpperPrice, set.BinStep)
	if err != nil {
		return err
	}
	allocations, err := planner.Plan(req, bins, set.ActiveBinID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(allocations)
}
