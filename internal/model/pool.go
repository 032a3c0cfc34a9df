package model

// PoolInfo is pool-level metadata and headline stats as listed by the pool
// provider, used for pair lookup and rotation scanning.
type PoolInfo struct {
	PoolID       string  `json:"pool_id"`
	Name         string  `json:"name"`
	MintX        string  `json:"mint_x"`
	MintY        string  `json:"mint_y"`
	BinStep      uint16  `json:"bin_step"`
	LiquidityUsd float64 `json:"liquidity_usd"`
	FeesUsd      float64 `json:"fees_usd"`
	Hidden       bool    `json:"hidden"`
	Blacklisted  bool    `json:"blacklisted"`
}

// PairGroup is one token pair's group of pools as listed by the pool
// provider. GroupID orders the two mints lexically so every pool of a pair
// lands in the same group.
type PairGroup struct {
	GroupID  string  `json:"group_id"`
	Name     string  `json:"name"`
	TotalTvl float64 `json:"total_tvl"`
}

// EarnRate is the pool's recent fee earnings relative to its liquidity, the
// comparison metric for rotation scanning. Zero-liquidity pools earn nothing.
func (p PoolInfo) EarnRate() float64 {
	if p.LiquidityUsd <= 0 {
		return 0
	}
	return p.FeesUsd / p.LiquidityUsd
}
