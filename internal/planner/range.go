package planner

import (
	"fmt"

	"binscope/internal/binmath"
)

// maxRangeBins bounds how many bins a single request may span.
const maxRangeBins = 4096

// BinsForRange resolves a price interval to the contiguous bin ids it spans
// for a pool's bin step. The lower bound rounds down and the upper bound
// rounds up, so the returned span is never narrower than the request.
func BinsForRange(lowerPrice, upperPrice float64, binStep uint16) ([]int32, error) {
	if lowerPrice >= upperPrice {
		return nil, fmt.Errorf("%w: lower price %g must be below upper price %g", ErrInvalidRequest, lowerPrice, upperPrice)
	}

	lower, err := binmath.PriceToBin(lowerPrice, binStep, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	upper, err := binmath.PriceToBin(upperPrice, binStep, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	span := int(upper) - int(lower) + 1
	if span > maxRangeBins {
		return nil, fmt.Errorf("%w: range spans %d bins, limit is %d", ErrInvalidRequest, span, maxRangeBins)
	}

	bins := make([]int32, 0, span)
	for id := lower; id <= upper; id++ {
		bins = append(bins, id)
	}
	return bins, nil
}
