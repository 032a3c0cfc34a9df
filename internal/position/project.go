package position

import (
	"binscope/internal/binmath"
	"binscope/internal/model"
)

// Project builds the point-in-time snapshot a monitoring tick evaluates:
// USD valuations, unrealized PnL against the value at enrollment, and range
// membership at the current active bin. A missing USD price values that side
// at zero and sets PartialPricing; rule evaluation refuses to act on USD
// figures from a partial snapshot.
func Project(data model.PositionData, priceXUsd, priceYUsd, initialValueUsd float64) model.PositionSnapshot {
	partial := false
	if priceXUsd <= 0 {
		priceXUsd = 0
		partial = true
	}
	if priceYUsd <= 0 {
		priceYUsd = 0
		partial = true
	}

	valueX := data.AmountX * priceXUsd
	valueY := data.AmountY * priceYUsd
	valueUsd := valueX + valueY
	feesUsd := data.FeeX*priceXUsd + data.FeeY*priceYUsd

	var pnlPct float64
	if initialValueUsd > 0 {
		pnlPct = (valueUsd + feesUsd - initialValueUsd) / initialValueUsd * 100
	}

	var currentPrice float64
	if data.BinStep > 0 {
		currentPrice = binmath.BinToPrice(data.ActiveBinID, data.BinStep)
	}

	return model.PositionSnapshot{
		PositionID:       data.PositionID,
		PoolID:           data.PoolID,
		LowerBinID:       data.LowerBinID,
		UpperBinID:       data.UpperBinID,
		ActiveBinID:      data.ActiveBinID,
		AmountX:          data.AmountX,
		AmountY:          data.AmountY,
		FeeX:             data.FeeX,
		FeeY:             data.FeeY,
		ValueUsd:         valueUsd,
		ValueXUsd:        valueX,
		ValueYUsd:        valueY,
		FeesUsd:          feesUsd,
		CurrentPrice:     currentPrice,
		UnrealizedPnlPct: pnlPct,
		InRange:          data.LowerBinID <= data.ActiveBinID && data.ActiveBinID <= data.UpperBinID,
		PartialPricing:   partial,
	}
}
