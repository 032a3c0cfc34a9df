// Package config merges config file, environment variables, and flags for
// the binscope commands.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig configures the long-running engine: monitor, rotation
// scanner, and HTTP API.
type ServeConfig struct {
	ListenAddr string

	PoolAPIURL  string
	PriceAPIURL string
	ExecAPIURL  string

	RequestsPerSecond float64
	RequestBurst      int

	TickInterval  time.Duration
	CallTimeout   time.Duration
	Concurrency   int
	FailureBudget int

	RotationTick    time.Duration
	MinLiquidityUsd float64
	SnapshotsOut    string

	PgDSN    string
	LogLevel string
}

// LoadServe merges config file, environment variables, and flags.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}

	v.SetDefault("listen", ":8080")
	v.SetDefault("pool-api", "https://dlmm-api.meteora.ag")
	v.SetDefault("price-api", "https://api.jup.ag/price/v2")
	v.SetDefault("rate-limit", 10.0)
	v.SetDefault("rate-burst", 20)
	v.SetDefault("tick-interval", time.Minute)
	v.SetDefault("call-timeout", 30*time.Second)
	v.SetDefault("concurrency", 8)
	v.SetDefault("failure-budget", 5)
	v.SetDefault("rotation-tick", time.Minute)
	v.SetDefault("min-liquidity-usd", 100.0)
	v.SetDefault("log-level", "info")

	cfg := ServeConfig{
		ListenAddr:        v.GetString("listen"),
		PoolAPIURL:        v.GetString("pool-api"),
		PriceAPIURL:       v.GetString("price-api"),
		ExecAPIURL:        v.GetString("exec-api"),
		RequestsPerSecond: v.GetFloat64("rate-limit"),
		RequestBurst:      v.GetInt("rate-burst"),
		TickInterval:      v.GetDuration("tick-interval"),
		CallTimeout:       v.GetDuration("call-timeout"),
		Concurrency:       v.GetInt("concurrency"),
		FailureBudget:     v.GetInt("failure-budget"),
		RotationTick:      v.GetDuration("rotation-tick"),
		MinLiquidityUsd:   v.GetFloat64("min-liquidity-usd"),
		SnapshotsOut:      v.GetString("snapshots-out"),
		PgDSN:             v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, nil
}

// AggregateConfig configures a one-shot pair aggregation.
type AggregateConfig struct {
	PoolAPIURL      string
	PriceAPIURL     string
	MintX           string
	MintY           string
	MinLiquidityUsd float64
	LogLevel        string
}

func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return AggregateConfig{}, err
	}

	v.SetDefault("pool-api", "https://dlmm-api.meteora.ag")
	v.SetDefault("price-api", "https://api.jup.ag/price/v2")
	v.SetDefault("min-liquidity-usd", 100.0)
	v.SetDefault("log-level", "info")

	return AggregateConfig{
		PoolAPIURL:      v.GetString("pool-api"),
		PriceAPIURL:     v.GetString("price-api"),
		MintX:           v.GetString("mint-x"),
		MintY:           v.GetString("mint-y"),
		MinLiquidityUsd: v.GetFloat64("min-liquidity-usd"),
		LogLevel:        v.GetString("log-level"),
	}, nil
}

// PlanConfig configures a one-shot allocation plan for a pool.
type PlanConfig struct {
	PoolAPIURL   string
	PoolID       string
	LowerPrice   float64
	UpperPrice   float64
	Shape        string
	TokenXWeight float64
	TokenYWeight float64
	LogLevel     string
}

func LoadPlan(cfgFile string, flags *pflag.FlagSet) (PlanConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return PlanConfig{}, err
	}

	v.SetDefault("pool-api", "https://dlmm-api.meteora.ag")
	v.SetDefault("shape", "flat")
	v.SetDefault("x-weight", 1.0)
	v.SetDefault("y-weight", 1.0)
	v.SetDefault("log-level", "info")

	return PlanConfig{
		PoolAPIURL:   v.GetString("pool-api"),
		PoolID:       v.GetString("pool"),
		LowerPrice:   v.GetFloat64("lower"),
		UpperPrice:   v.GetFloat64("upper"),
		Shape:        v.GetString("shape"),
		TokenXWeight: v.GetFloat64("x-weight"),
		TokenYWeight: v.GetFloat64("y-weight"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("BINSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}
