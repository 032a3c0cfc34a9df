package planner

import (
	"errors"
	"math"
	"testing"

	"binscope/internal/model"
)

func request(shape model.DistributionShape) model.RangeRequest {
	return model.RangeRequest{
		LowerPrice:   90,
		UpperPrice:   110,
		Shape:        shape,
		TokenXWeight: 1,
		TokenYWeight: 1,
	}
}

func checkNormalized(t *testing.T, allocations []model.BinAllocation) {
	t.Helper()
	var sum float64
	for _, a := range allocations {
		if a.Weight <= 0 {
			t.Fatalf("bin %d has non-positive weight %g", a.BinID, a.Weight)
		}
		sum += a.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights sum to %g, want 1", sum)
	}
}

func TestPlanNormalization(t *testing.T) {
	bins := []int32{10, 11, 12, 13, 14, 15, 16}
	for _, shape := range []model.DistributionShape{model.ShapeFlat, model.ShapeCurve, model.ShapeEdge} {
		allocations, err := Plan(request(shape), bins, 13)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", shape, err)
		}
		if len(allocations) != len(bins) {
			t.Fatalf("%s: got %d allocations, want %d", shape, len(allocations), len(bins))
		}
		checkNormalized(t, allocations)
	}
}

func TestPlanFlat(t *testing.T) {
	bins := []int32{5, 6, 7, 8}
	allocations, err := Plan(request(model.ShapeFlat), bins, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range allocations {
		if math.Abs(a.Weight-0.25) > 1e-9 {
			t.Fatalf("flat weight for bin %d = %g, want 0.25", a.BinID, a.Weight)
		}
	}
}

func TestPlanCurveCenterHeavy(t *testing.T) {
	bins := []int32{0, 1, 2, 3, 4, 5, 6}
	allocations, err := Plan(request(model.ShapeCurve), bins, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkNormalized(t, allocations)

	center := allocations[3].Weight
	for i, a := range allocations {
		if a.Weight > center+1e-12 {
			t.Fatalf("curve weight at position %d (%g) exceeds center (%g)", i, a.Weight, center)
		}
	}
	// Weight is non-increasing with distance from center.
	for i := 3; i < len(allocations)-1; i++ {
		if allocations[i+1].Weight > allocations[i].Weight+1e-12 {
			t.Fatalf("curve weights increase away from center at position %d", i)
		}
	}
}

func TestPlanEdgeBoundaryHeavy(t *testing.T) {
	// Range 90..110 over bins spaced five apart: the boundary bins must
	// strictly out-weigh the middle bin.
	bins := []int32{90, 95, 100, 105, 110}
	allocations, err := Plan(request(model.ShapeEdge), bins, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkNormalized(t, allocations)

	middle := allocations[2].Weight
	if allocations[0].Weight <= middle {
		t.Fatalf("edge weight at 90 (%g) should exceed middle (%g)", allocations[0].Weight, middle)
	}
	if allocations[4].Weight <= middle {
		t.Fatalf("edge weight at 110 (%g) should exceed middle (%g)", allocations[4].Weight, middle)
	}
}

func TestPlanSingleBinDegenerate(t *testing.T) {
	for _, shape := range []model.DistributionShape{model.ShapeFlat, model.ShapeCurve, model.ShapeEdge} {
		allocations, err := Plan(request(shape), []int32{42}, 40)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", shape, err)
		}
		if len(allocations) != 1 || allocations[0].Weight != 1 {
			t.Fatalf("%s: single bin should take full weight, got %+v", shape, allocations)
		}
	}

	allocations, err := Plan(request(model.ShapeFlat), nil, 0)
	if err != nil {
		t.Fatalf("zero bins should not error, got %v", err)
	}
	if len(allocations) != 0 {
		t.Fatalf("zero bins should produce empty allocation")
	}
}

func TestPlanSingleSided(t *testing.T) {
	bins := []int32{10, 11, 12, 13, 14}

	req := request(model.ShapeFlat)
	req.TokenYWeight = 0 // token X only: strictly above the active bin
	allocations, err := Plan(req, bins, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("expected 2 bins above active, got %d", len(allocations))
	}
	for _, a := range allocations {
		if a.BinID <= 12 {
			t.Fatalf("bin %d is not strictly above the active bin", a.BinID)
		}
	}
	checkNormalized(t, allocations)

	req = request(model.ShapeFlat)
	req.TokenXWeight = 0 // token Y only: strictly below the active bin
	allocations, err = Plan(req, bins, 10)
	if !errors.Is(err, ErrNoBinsOnSide) {
		t.Fatalf("expected ErrNoBinsOnSide, got %v (allocations %v)", err, allocations)
	}
}

func TestPlanSideBias(t *testing.T) {
	bins := []int32{10, 11, 12, 13, 14}
	req := request(model.ShapeFlat)
	req.TokenXWeight = 3
	req.TokenYWeight = 1

	allocations, err := Plan(req, bins, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkNormalized(t, allocations)

	if allocations[4].Weight <= allocations[0].Weight {
		t.Fatalf("token X bias should weight the upper side: %g <= %g", allocations[4].Weight, allocations[0].Weight)
	}
}

func TestPlanInvalidRequest(t *testing.T) {
	bad := request(model.ShapeFlat)
	bad.LowerPrice, bad.UpperPrice = 110, 90
	if _, err := Plan(bad, []int32{1, 2}, 1); err == nil {
		t.Fatalf("expected error for inverted range")
	}

	bad = request("zigzag")
	if _, err := Plan(bad, []int32{1, 2}, 1); err == nil {
		t.Fatalf("expected error for unknown shape")
	}

	bad = request(model.ShapeFlat)
	bad.TokenXWeight, bad.TokenYWeight = 0, 0
	if _, err := Plan(bad, []int32{1, 2}, 1); err == nil {
		t.Fatalf("expected error for zero token weights")
	}
}

func TestBinsForRange(t *testing.T) {
	bins, err := BinsForRange(1.0, 1.01, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bins) == 0 {
		t.Fatalf("expected bins spanning the range")
	}
	for i := 1; i < len(bins); i++ {
		if bins[i] != bins[i-1]+1 {
			t.Fatalf("bins are not contiguous: %v", bins)
		}
	}

	if _, err := BinsForRange(2, 1, 10); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}
