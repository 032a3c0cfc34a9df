package model

// PositionData is the raw on-chain state of one position as reported by the
// pool/position provider, before USD valuation.
type PositionData struct {
	PositionID  string  `json:"position_id"`
	PoolID      string  `json:"pool_id"`
	MintX       string  `json:"mint_x"`
	MintY       string  `json:"mint_y"`
	BinStep     uint16  `json:"bin_step"`
	LowerBinID  int32   `json:"lower_bin_id"`
	UpperBinID  int32   `json:"upper_bin_id"`
	ActiveBinID int32   `json:"active_bin_id"`
	AmountX     float64 `json:"amount_x"`
	AmountY     float64 `json:"amount_y"`
	FeeX        float64 `json:"fee_x"`
	FeeY        float64 `json:"fee_y"`
}

// PositionSnapshot is a read-only projection of one on-chain position at the
// moment of a monitor tick. Created fresh each tick, never mutated.
type PositionSnapshot struct {
	PositionID       string  `json:"position_id"`
	PoolID           string  `json:"pool_id"`
	LowerBinID       int32   `json:"lower_bin_id"`
	UpperBinID       int32   `json:"upper_bin_id"`
	ActiveBinID      int32   `json:"active_bin_id"`
	AmountX          float64 `json:"amount_x"`
	AmountY          float64 `json:"amount_y"`
	FeeX             float64 `json:"fee_x"`
	FeeY             float64 `json:"fee_y"`
	ValueUsd         float64 `json:"value_usd"`
	ValueXUsd        float64 `json:"value_x_usd"`
	ValueYUsd        float64 `json:"value_y_usd"`
	FeesUsd          float64 `json:"fees_usd"`
	CurrentPrice     float64 `json:"current_price"`
	UnrealizedPnlPct float64 `json:"unrealized_pnl_pct"`
	InRange          bool    `json:"in_range"`

	// PartialPricing is set when a USD price feed was unavailable and the
	// USD valuations treat that side as zero. Callers decide whether the
	// valuation is trustworthy; it never aborts a tick.
	PartialPricing bool `json:"partial_pricing,omitempty"`
}
