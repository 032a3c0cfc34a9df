package planner

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"binscope/internal/model"
)

// ErrNoBinsOnSide is returned for a single-sided request whose range does not
// intersect the valid side of the active bin. The caller gets an empty
// allocation and this signal rather than a guessed placement.
var ErrNoBinsOnSide = errors.New("no valid bins on the requested side of the active bin")

// ErrInvalidRequest marks a malformed range request. Callers reject it
// synchronously; it is never worth retrying.
var ErrInvalidRequest = errors.New("invalid range request")

// Plan converts a range request into concrete per-bin weights over
// availableBins, the bins spanned by the requested price range. Weights are
// strictly positive and sum to 1. A single-sided request (one token weight
// zero) restricts allocation to bins strictly on that token's side of the
// active bin: token X deposits above the active bin, token Y below.
func Plan(req model.RangeRequest, availableBins []int32, activeBinID int32) ([]model.BinAllocation, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if len(availableBins) == 0 {
		return nil, nil
	}

	bins := make([]int32, len(availableBins))
	copy(bins, availableBins)
	sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })

	singleSided := req.TokenXWeight == 0 || req.TokenYWeight == 0
	if singleSided {
		bins = filterSide(bins, activeBinID, req.TokenXWeight > 0)
		if len(bins) == 0 {
			return nil, ErrNoBinsOnSide
		}
	}

	if len(bins) == 1 {
		return []model.BinAllocation{{BinID: bins[0], Weight: 1}}, nil
	}

	weights := shapeWeights(req.Shape, len(bins))
	if !singleSided {
		applySideBias(weights, bins, activeBinID, req.TokenXWeight, req.TokenYWeight)
	}
	normalize(weights)

	out := make([]model.BinAllocation, len(bins))
	for i, id := range bins {
		out[i] = model.BinAllocation{BinID: id, Weight: weights[i]}
	}
	return out, nil
}

func validate(req model.RangeRequest) error {
	if req.LowerPrice >= req.UpperPrice {
		return fmt.Errorf("%w: lower price %g must be below upper price %g", ErrInvalidRequest, req.LowerPrice, req.UpperPrice)
	}
	if !req.Shape.Valid() {
		return fmt.Errorf("%w: unknown distribution shape %q", ErrInvalidRequest, req.Shape)
	}
	if req.TokenXWeight < 0 || req.TokenYWeight < 0 {
		return fmt.Errorf("%w: token weights must be non-negative", ErrInvalidRequest)
	}
	if req.TokenXWeight == 0 && req.TokenYWeight == 0 {
		return fmt.Errorf("%w: at least one token weight must be positive", ErrInvalidRequest)
	}
	return nil
}

// shapeWeights computes raw kernel weights by position within the range.
// Distance is measured in bin positions from the range midpoint so gaps in
// the available bin ids do not skew the shape.
func shapeWeights(shape model.DistributionShape, n int) []float64 {
	weights := make([]float64, n)
	center := float64(n-1) / 2
	sigma := math.Max(1, float64(n)/4)
	maxDist := center

	for i := range weights {
		d := math.Abs(float64(i) - center)
		switch shape {
		case model.ShapeCurve:
			weights[i] = math.Exp(-d * d / (2 * sigma * sigma))
		case model.ShapeEdge:
			r := maxDist - d
			weights[i] = math.Exp(-r * r / (2 * sigma * sigma))
		default:
			weights[i] = 1
		}
	}
	return weights
}

// applySideBias scales weights by the requested token split: bins above the
// active bin hold token X, bins below hold token Y, and the active bin holds
// both. When the active bin lies outside the range the bias is a uniform
// scale and normalization cancels it.
func applySideBias(weights []float64, bins []int32, activeBinID int32, xWeight, yWeight float64) {
	both := (xWeight + yWeight) / 2
	for i, id := range bins {
		switch {
		case id > activeBinID:
			weights[i] *= xWeight
		case id < activeBinID:
			weights[i] *= yWeight
		default:
			weights[i] *= both
		}
	}
}

func filterSide(bins []int32, activeBinID int32, above bool) []int32 {
	out := bins[:0]
	for _, id := range bins {
		if above && id > activeBinID {
			out = append(out, id)
		}
		if !above && id < activeBinID {
			out = append(out, id)
		}
	}
	return out
}

func normalize(weights []float64) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}
}
