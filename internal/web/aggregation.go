package web

import (
	"context"
	"fmt"

	"binscope/internal/aggregate"
	"binscope/internal/binmath"
	"binscope/internal/model"
	"binscope/internal/planner"
	"binscope/internal/provider"
)

// AggregationService backs the aggregation API: pair-wide bucket merges and
// allocation plans for a single pool.
type AggregationService struct {
	lister provider.PoolLister
	pools  provider.PoolProvider
	prices provider.PriceProvider
}

func NewAggregationService(lister provider.PoolLister, pools provider.PoolProvider, prices provider.PriceProvider) *AggregationService {
	return &AggregationService{lister: lister, pools: pools, prices: prices}
}

// AggregatePair merges the bin tables of every pool for the pair into one
// price-ordered bucket series. Any pool fetch failure fails the whole call;
// a partial chart is worse than no chart.
func (s *AggregationService) AggregatePair(ctx context.Context, mintX, mintY string) ([]model.AggregatedBucket, error) {
	pools, err := s.lister.ListPairPools(ctx, mintX, mintY)
	if err != nil {
		return nil, fmt.Errorf("list pair pools: %w", err)
	}
	if len(pools) == 0 {
		return nil, nil
	}

	sets := make([]model.PoolBinSet, 0, len(pools))
	for _, pool := range pools {
		set, err := s.pools.GetPoolBins(ctx, pool.PoolID)
		if err != nil {
			return nil, fmt.Errorf("fetch bins for %s: %w", pool.PoolID, err)
		}
		sets = append(sets, set)
	}
	s.fillBinValues(ctx, mintX, mintY, sets)

	return aggregate.Merge(sets)
}

// fillBinValues prices bins the upstream reported without a USD figure,
// rebuilding the value from per-side amounts. Valuation gaps never abort the
// merge; a bin that stays unpriced just contributes zero.
func (s *AggregationService) fillBinValues(ctx context.Context, mintX, mintY string, sets []model.PoolBinSet) {
	if s.prices == nil {
		return
	}
	missing := false
	for _, set := range sets {
		for _, bin := range set.Bins {
			if bin.LiquidityUsd <= 0 && (bin.LiquidityX > 0 || bin.LiquidityY > 0) {
				missing = true
			}
		}
	}
	if !missing {
		return
	}

	prices, err := s.prices.UsdPrices(ctx, mintX, mintY)
	if err != nil {
		return
	}
	for i := range sets {
		for j := range sets[i].Bins {
			bin := &sets[i].Bins[j]
			if bin.LiquidityUsd <= 0 {
				bin.LiquidityUsd, _ = binmath.BinValue(*bin, prices[mintX], prices[mintY])
			}
		}
	}
}

// PlanRange turns a price range and shape into bin allocations on the pool's
// own grid, relative to its current active bin.
func (s *AggregationService) PlanRange(ctx context.Context, poolID string, req model.RangeRequest) ([]model.BinAllocation, error) {
	set, err := s.pools.GetPoolBins(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", poolID, err)
	}

	bins, err := planner.BinsForRange(req.LowerPrice, req.UpperPrice, set.BinStep)
	if err != nil {
		return nil, err
	}
	return planner.Plan(req, bins, set.ActiveBinID)
}
