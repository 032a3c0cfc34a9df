package config

import (
	"testing"
)

func TestServeDefaults(t *testing.T) {
	cfg, err := LoadServe("", nil)
	if err != nil {
		t.Fatalf("LoadServe: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.PoolAPIURL != "https://dlmm-api.meteora.ag" {
		t.Fatalf("PoolAPIURL = %q", cfg.PoolAPIURL)
	}
	// Must stay the v2 endpoint: the price client parses the v2 response
	// shape, where prices arrive as strings.
	if cfg.PriceAPIURL != "https://api.jup.ag/price/v2" {
		t.Fatalf("PriceAPIURL = %q, want the v2 endpoint", cfg.PriceAPIURL)
	}
	if cfg.Concurrency != 8 || cfg.FailureBudget != 5 {
		t.Fatalf("monitor defaults: concurrency %d, failure budget %d", cfg.Concurrency, cfg.FailureBudget)
	}
}

func TestAggregateDefaults(t *testing.T) {
	cfg, err := LoadAggregate("", nil)
	if err != nil {
		t.Fatalf("LoadAggregate: %v", err)
	}
	if cfg.PriceAPIURL != "https://api.jup.ag/price/v2" {
		t.Fatalf("PriceAPIURL = %q, want the v2 endpoint", cfg.PriceAPIURL)
	}
	if cfg.MinLiquidityUsd != 100 {
		t.Fatalf("MinLiquidityUsd = %g, want 100", cfg.MinLiquidityUsd)
	}
}
