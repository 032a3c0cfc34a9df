package model

// DistributionShape selects how liquidity is weighted across a range.
type DistributionShape string

const (
	ShapeFlat  DistributionShape = "flat"
	ShapeCurve DistributionShape = "curve"
	ShapeEdge  DistributionShape = "edge"
)

// Valid reports whether the shape is one of the known strategies.
func (s DistributionShape) Valid() bool {
	switch s {
	case ShapeFlat, ShapeCurve, ShapeEdge:
		return true
	}
	return false
}

// RangeRequest is user intent for a new or added position.
// TokenXWeight/TokenYWeight bias which side of the active bin receives
// allocation; a zero weight on one side makes the request single-sided.
type RangeRequest struct {
	LowerPrice   float64           `json:"lower_price"`
	UpperPrice   float64           `json:"upper_price"`
	Shape        DistributionShape `json:"shape"`
	TokenXWeight float64           `json:"token_x_weight"`
	TokenYWeight float64           `json:"token_y_weight"`
}

// BinAllocation assigns a relative liquidity weight to one bin. Weights over
// a planned range sum to 1.
type BinAllocation struct {
	BinID  int32   `json:"bin_id"`
	Weight float64 `json:"weight"`
}
