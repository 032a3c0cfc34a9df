package position

import (
	"math"
	"testing"

	"binscope/internal/model"
)

func sampleData() model.PositionData {
	return model.PositionData{
		PositionID:  "pos-1",
		PoolID:      "pool-1",
		LowerBinID:  -10,
		UpperBinID:  10,
		ActiveBinID: 0,
		AmountX:     2,
		AmountY:     100,
		FeeX:        0.1,
		FeeY:        5,
	}
}

func TestProjectValuation(t *testing.T) {
	snap := Project(sampleData(), 50, 1, 150)

	if snap.PartialPricing {
		t.Fatalf("both prices present, partial flag should be clear")
	}
	if math.Abs(snap.ValueUsd-200) > 1e-9 {
		t.Fatalf("value = %g, want 200", snap.ValueUsd)
	}
	if math.Abs(snap.FeesUsd-10) > 1e-9 {
		t.Fatalf("fees = %g, want 10", snap.FeesUsd)
	}
	// (200 + 10 - 150) / 150 * 100 = 40%
	if math.Abs(snap.UnrealizedPnlPct-40) > 1e-9 {
		t.Fatalf("pnl = %g, want 40", snap.UnrealizedPnlPct)
	}
	if !snap.InRange {
		t.Fatalf("active bin 0 inside [-10, 10] should be in range")
	}
}

func TestProjectPartialPricing(t *testing.T) {
	snap := Project(sampleData(), 0, 1, 100)

	if !snap.PartialPricing {
		t.Fatalf("missing X price should set the partial flag")
	}
	if math.Abs(snap.ValueUsd-100) > 1e-9 {
		t.Fatalf("value = %g, want 100 (Y side only)", snap.ValueUsd)
	}
}

func TestProjectOutOfRange(t *testing.T) {
	data := sampleData()
	data.ActiveBinID = 11
	if Project(data, 1, 1, 100).InRange {
		t.Fatalf("active bin above the range should be out of range")
	}

	data.ActiveBinID = -11
	if Project(data, 1, 1, 100).InRange {
		t.Fatalf("active bin below the range should be out of range")
	}
}

func TestProjectZeroInitialValue(t *testing.T) {
	if pnl := Project(sampleData(), 1, 1, 0).UnrealizedPnlPct; pnl != 0 {
		t.Fatalf("pnl with zero initial value = %g, want 0", pnl)
	}
}
