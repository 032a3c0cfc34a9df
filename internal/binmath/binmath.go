package binmath

import (
	"fmt"
	"math"

	"binscope/internal/model"
)

// basisPoints is the denominator for bin step: a step of 25 means each bin is
// 0.25% wider than the previous one.
const basisPoints = 10000

// boundaryEps absorbs floating noise when a price lands on an exact bin
// boundary, so round-tripping a bin price returns the same bin.
const boundaryEps = 1e-9

// StepRatio returns the per-bin price multiplier for a bin step.
func StepRatio(binStep uint16) float64 {
	return 1 + float64(binStep)/basisPoints
}

// BinToPrice returns the lower-boundary price of a bin.
func BinToPrice(binID int32, binStep uint16) float64 {
	return math.Pow(StepRatio(binStep), float64(binID))
}

// PriceToBin returns the bin index containing price. roundUp controls
// tie-breaking at exact grid boundaries: the lower bound of a range rounds
// down and the upper bound rounds up, so a requested interval is never
// narrower than asked.
func PriceToBin(price float64, binStep uint16, roundUp bool) (int32, error) {
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive, got %g", price)
	}
	if binStep == 0 {
		return 0, fmt.Errorf("bin step must be positive")
	}

	exact := math.Log(price) / math.Log(StepRatio(binStep))
	if roundUp {
		return int32(math.Ceil(exact - boundaryEps)), nil
	}
	return int32(math.Floor(exact + boundaryEps)), nil
}

// BinValue returns the USD value of a bin's liquidity given per-token USD
// prices. A non-positive price is treated as unavailable and contributes zero;
// the partial flag surfaces that condition so callers can decide whether to
// trust the valuation. Partial pricing never aborts aggregation.
func BinValue(bin model.Bin, priceXUsd, priceYUsd float64) (value float64, partial bool) {
	if priceXUsd <= 0 {
		partial = true
		priceXUsd = 0
	}
	if priceYUsd <= 0 {
		partial = true
		priceYUsd = 0
	}
	return bin.LiquidityX*priceXUsd + bin.LiquidityY*priceYUsd, partial
}

// RangeCenter returns the price midway between the boundaries of
// [lowerBinID, upperBinID].
func RangeCenter(lowerBinID, upperBinID int32, binStep uint16) float64 {
	lower := BinToPrice(lowerBinID, binStep)
	upper := BinToPrice(upperBinID+1, binStep)
	return (lower + upper) / 2
}
