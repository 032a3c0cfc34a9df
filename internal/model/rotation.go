package model

import "time"

// RotationConfig is a wallet's capital-rotation monitoring preferences.
// A candidate pool must out-earn the wallet's best current pool by
// ThresholdMultiplier before an opportunity is reported.
type RotationConfig struct {
	WalletAddress       string    `json:"wallet_address"`
	Enabled             bool      `json:"enabled"`
	IntervalMinutes     int       `json:"interval_minutes"`
	ThresholdMultiplier float64   `json:"threshold_multiplier"`
	Whitelist           []string  `json:"whitelist"`
	QuoteMints          []string  `json:"quote_mints"`
	MinFeesUsd          float64   `json:"min_fees_usd"`
	LastCheck           time.Time `json:"last_check"`
}

// PoolOpportunity describes one candidate pool that beats the wallet's
// current deployment.
type PoolOpportunity struct {
	PoolID       string  `json:"pool_id"`
	PairName     string  `json:"pair_name"`
	MintX        string  `json:"mint_x"`
	MintY        string  `json:"mint_y"`
	BinStep      uint16  `json:"bin_step"`
	LiquidityUsd float64 `json:"liquidity_usd"`
	FeesUsd      float64 `json:"fees_usd"`
	EarnRate     float64 `json:"earn_rate"`
}

// OpportunitySnapshot records the opportunities found in one rotation scan.
type OpportunitySnapshot struct {
	WalletAddress string            `json:"wallet_address"`
	Opportunities []PoolOpportunity `json:"opportunities"`
	CreatedAt     time.Time         `json:"created_at"`
}
