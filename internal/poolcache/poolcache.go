// Package poolcache serves pool listings from a two-level TTL cache so that
// aggregation and rotation scans do not hammer the provider's listing API.
// Pair groups change rarely and are cached for an hour; per-group pool stats
// move with the market and are cached for a few minutes.
package poolcache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"binscope/internal/model"
)

const (
	defaultGroupTTL = time.Hour
	defaultPoolTTL  = 5 * time.Minute
)

// Source is the upstream listing API the cache fills from.
type Source interface {
	ListGroups(ctx context.Context) ([]model.PairGroup, error)
	ListGroupPools(ctx context.Context, groupID string) ([]model.PoolInfo, error)
}

// Options tune cache behavior. Zero values take defaults.
type Options struct {
	GroupTTL time.Duration
	PoolTTL  time.Duration
	// MinLiquidityUsd drops dust pools from listings.
	MinLiquidityUsd float64
	Logger          *zap.Logger
}

type groupEntry struct {
	groups    []model.PairGroup
	fetchedAt time.Time
}

type poolEntry struct {
	pools     []model.PoolInfo
	fetchedAt time.Time
}

// Cache implements provider.PoolLister over a Source.
type Cache struct {
	source Source
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	groups *groupEntry
	pools  map[string]*poolEntry
}

func New(source Source, opts Options) *Cache {
	if opts.GroupTTL <= 0 {
		opts.GroupTTL = defaultGroupTTL
	}
	if opts.PoolTTL <= 0 {
		opts.PoolTTL = defaultPoolTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source: source,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		pools:  make(map[string]*poolEntry),
	}
}

// GroupID derives the pair group key from two mints. The mints are ordered
// lexically so both orderings of a pair map to the same group.
func GroupID(mintA, mintB string) string {
	if strings.Compare(mintA, mintB) > 0 {
		mintA, mintB = mintB, mintA
	}
	return mintA + "-" + mintB
}

// ListPairPools returns all visible pools for the given token pair.
func (c *Cache) ListPairPools(ctx context.Context, mintX, mintY string) ([]model.PoolInfo, error) {
	groupID := GroupID(mintX, mintY)

	groups, err := c.listGroups(ctx)
	if err != nil {
		return nil, err
	}

	found := false
	for _, g := range groups {
		if g.GroupID == groupID {
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}

	pools, err := c.listGroupPools(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return c.filter(pools), nil
}

// ListTopPools returns up to limit visible pools ordered by liquidity,
// walking pair groups from largest TVL down.
func (c *Cache) ListTopPools(ctx context.Context, limit int) ([]model.PoolInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	groups, err := c.listGroups(ctx)
	if err != nil {
		return nil, err
	}
	sorted := make([]model.PairGroup, len(groups))
	copy(sorted, groups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TotalTvl > sorted[j].TotalTvl })

	var out []model.PoolInfo
	for _, g := range sorted {
		if len(out) >= limit {
			break
		}
		pools, err := c.listGroupPools(ctx, g.GroupID)
		if err != nil {
			return nil, fmt.Errorf("list pools for group %s: %w", g.GroupID, err)
		}
		out = append(out, c.filter(pools)...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LiquidityUsd > out[j].LiquidityUsd })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Invalidate drops all cached data. The next call refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = nil
	c.pools = make(map[string]*poolEntry)
}

func (c *Cache) listGroups(ctx context.Context) ([]model.PairGroup, error) {
	c.mu.Lock()
	cached := c.groups
	c.mu.Unlock()

	if cached != nil && c.now().Sub(cached.fetchedAt) < c.opts.GroupTTL {
		return cached.groups, nil
	}

	groups, err := c.source.ListGroups(ctx)
	if err != nil {
		// Serve stale groups rather than failing when the upstream is down.
		if cached != nil {
			c.logger.Warn("group listing refresh failed, serving stale", zap.Error(err))
			return cached.groups, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.groups = &groupEntry{groups: groups, fetchedAt: c.now()}
	c.mu.Unlock()
	c.logger.Debug("refreshed pair groups", zap.Int("count", len(groups)))
	return groups, nil
}

func (c *Cache) listGroupPools(ctx context.Context, groupID string) ([]model.PoolInfo, error) {
	c.mu.Lock()
	cached := c.pools[groupID]
	c.mu.Unlock()

	if cached != nil && c.now().Sub(cached.fetchedAt) < c.opts.PoolTTL {
		return cached.pools, nil
	}

	pools, err := c.source.ListGroupPools(ctx, groupID)
	if err != nil {
		if cached != nil {
			c.logger.Warn("pool listing refresh failed, serving stale",
				zap.String("group", groupID), zap.Error(err))
			return cached.pools, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.pools[groupID] = &poolEntry{pools: pools, fetchedAt: c.now()}
	c.mu.Unlock()
	return pools, nil
}

func (c *Cache) filter(pools []model.PoolInfo) []model.PoolInfo {
	out := make([]model.PoolInfo, 0, len(pools))
	for _, p := range pools {
		if p.Hidden || p.Blacklisted {
			continue
		}
		if p.LiquidityUsd < c.opts.MinLiquidityUsd {
			continue
		}
		out = append(out, p)
	}
	return out
}
