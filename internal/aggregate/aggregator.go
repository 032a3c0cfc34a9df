package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"binscope/internal/binmath"
	"binscope/internal/model"
)

// ErrMismatchedPair is returned when input bin sets do not share a token pair.
var ErrMismatchedPair = errors.New("pool bin sets do not share a token pair")

// zeroLiquidityEps drops buckets whose aggregate USD liquidity is floating
// noise rather than a real deposit.
const zeroLiquidityEps = 1e-12

// Merge combines per-pool bin tables sharing a token pair into a single
// price-ordered bucket series aligned to the finest bin step among the
// inputs. Liquidity from coarser-step pools is apportioned across the grid
// buckets each bin geometrically overlaps, in proportion to overlap width
// (uniform-within-bin approximation). The calculation order is fixed
// (ascending pool id, then ascending bin id) so identical inputs always
// produce identical output.
func Merge(sets []model.PoolBinSet) ([]model.AggregatedBucket, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	if err := checkSamePair(sets); err != nil {
		return nil, err
	}

	gridStep := sets[0].BinStep
	for _, set := range sets[1:] {
		if set.BinStep < gridStep {
			gridStep = set.BinStep
		}
	}
	if gridStep == 0 {
		return nil, fmt.Errorf("bin step must be positive")
	}

	ordered := make([]model.PoolBinSet, len(sets))
	copy(ordered, sets)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PoolID < ordered[j].PoolID })

	buckets := make(map[int32]*bucketAcc)
	for _, set := range ordered {
		bins := make([]model.Bin, len(set.Bins))
		copy(bins, set.Bins)
		sort.Slice(bins, func(i, j int) bool { return bins[i].ID < bins[j].ID })

		for _, bin := range bins {
			if bin.LiquidityUsd <= 0 {
				continue
			}
			if err := apportion(buckets, set.PoolID, bin, set.BinStep, gridStep); err != nil {
				return nil, err
			}
		}
	}

	ids := make([]int32, 0, len(buckets))
	for id, acc := range buckets {
		if acc.liquidityUsd > zeroLiquidityEps {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]model.AggregatedBucket, 0, len(ids))
	for _, id := range ids {
		acc := buckets[id]
		pools := make([]string, 0, len(acc.pools))
		for pool := range acc.pools {
			pools = append(pools, pool)
		}
		sort.Strings(pools)
		out = append(out, model.AggregatedBucket{
			Price:             binmath.BinToPrice(id, gridStep),
			LiquidityUsd:      acc.liquidityUsd,
			ContributingPools: pools,
		})
	}
	return out, nil
}

type bucketAcc struct {
	liquidityUsd float64
	pools        map[string]struct{}
}

// apportion splits one bin's USD liquidity across the grid buckets its price
// interval overlaps.
func apportion(buckets map[int32]*bucketAcc, poolID string, bin model.Bin, binStep, gridStep uint16) error {
	lower := binmath.BinToPrice(bin.ID, binStep)
	upper := binmath.BinToPrice(bin.ID+1, binStep)
	width := upper - lower
	if width <= 0 {
		return fmt.Errorf("bin %d has non-positive width", bin.ID)
	}

	firstGrid, err := binmath.PriceToBin(lower, gridStep, false)
	if err != nil {
		return err
	}
	lastGrid, err := binmath.PriceToBin(upper, gridStep, true)
	if err != nil {
		return err
	}

	for gid := firstGrid; gid < lastGrid; gid++ {
		gLower := binmath.BinToPrice(gid, gridStep)
		gUpper := binmath.BinToPrice(gid+1, gridStep)
		overlap := math.Min(upper, gUpper) - math.Max(lower, gLower)
		if overlap <= 0 {
			continue
		}

		share := bin.LiquidityUsd * overlap / width
		acc := buckets[gid]
		if acc == nil {
			acc = &bucketAcc{pools: make(map[string]struct{})}
			buckets[gid] = acc
		}
		acc.liquidityUsd += share
		acc.pools[poolID] = struct{}{}
	}
	return nil
}

func checkSamePair(sets []model.PoolBinSet) error {
	mintX := sets[0].MintX
	mintY := sets[0].MintY
	for _, set := range sets[1:] {
		if set.MintX != mintX || set.MintY != mintY {
			return fmt.Errorf("%w: %s/%s vs %s/%s", ErrMismatchedPair, mintX, mintY, set.MintX, set.MintY)
		}
	}
	return nil
}
