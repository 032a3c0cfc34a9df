package model

// Bin is an immutable snapshot of one discretized price slot.
type Bin struct {
	ID           int32   `json:"bin_id"`
	Price        float64 `json:"price"`
	LiquidityX   float64 `json:"liquidity_x"`
	LiquidityY   float64 `json:"liquidity_y"`
	LiquidityUsd float64 `json:"liquidity_usd"`
}

// PoolBinSet is one pool's bin table at a moment in time. Bins are ordered
// by ascending bin id.
type PoolBinSet struct {
	PoolID      string `json:"pool_id"`
	MintX       string `json:"mint_x"`
	MintY       string `json:"mint_y"`
	BinStep     uint16 `json:"bin_step"`
	ActiveBinID int32  `json:"active_bin_id"`
	Bins        []Bin  `json:"bins"`
}

// AggregatedBucket is one price bucket of the merged per-pair liquidity view.
// ContributingPools lists pool ids that deposited non-zero liquidity, sorted
// ascending for display attribution.
type AggregatedBucket struct {
	Price             float64  `json:"price"`
	LiquidityUsd      float64  `json:"liquidity_usd"`
	ContributingPools []string `json:"contributing_pools"`
}
