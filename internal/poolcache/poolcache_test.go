package poolcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"binscope/internal/model"
)

type fakeSource struct {
	groups     []model.PairGroup
	pools      map[string][]model.PoolInfo
	groupCalls int
	poolCalls  int
	fail       bool
}

func (f *fakeSource) ListGroups(context.Context) ([]model.PairGroup, error) {
	f.groupCalls++
	if f.fail {
		return nil, errors.New("upstream down")
	}
	return f.groups, nil
}

func (f *fakeSource) ListGroupPools(_ context.Context, groupID string) ([]model.PoolInfo, error) {
	f.poolCalls++
	if f.fail {
		return nil, errors.New("upstream down")
	}
	return f.pools[groupID], nil
}

func newFixture() (*fakeSource, *Cache, *time.Time) {
	source := &fakeSource{
		groups: []model.PairGroup{
			{GroupID: "mintA-mintB", Name: "A-B", TotalTvl: 5000},
			{GroupID: "mintC-mintD", Name: "C-D", TotalTvl: 100},
		},
		pools: map[string][]model.PoolInfo{
			"mintA-mintB": {
				{PoolID: "pool1", MintX: "mintA", MintY: "mintB", LiquidityUsd: 4000},
				{PoolID: "pool2", MintX: "mintA", MintY: "mintB", LiquidityUsd: 1000},
				{PoolID: "hidden", MintX: "mintA", MintY: "mintB", LiquidityUsd: 900, Hidden: true},
			},
			"mintC-mintD": {
				{PoolID: "pool3", MintX: "mintC", MintY: "mintD", LiquidityUsd: 100},
				{PoolID: "dust", MintX: "mintC", MintY: "mintD", LiquidityUsd: 1},
			},
		},
	}
	cache := New(source, Options{MinLiquidityUsd: 50})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	cache.now = func() time.Time { return *clock }
	return source, cache, clock
}

func TestGroupID(t *testing.T) {
	if got := GroupID("mintB", "mintA"); got != "mintA-mintB" {
		t.Fatalf("GroupID not order independent: %s", got)
	}
	if GroupID("mintA", "mintB") != GroupID("mintB", "mintA") {
		t.Fatalf("GroupID differs by argument order")
	}
}

func TestListPairPoolsFiltersAndCaches(t *testing.T) {
	source, cache, _ := newFixture()
	ctx := context.Background()

	pools, err := cache.ListPairPools(ctx, "mintB", "mintA")
	if err != nil {
		t.Fatalf("ListPairPools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 visible pools, got %d", len(pools))
	}
	for _, p := range pools {
		if p.PoolID == "hidden" {
			t.Fatalf("hidden pool not filtered")
		}
	}

	// Second call inside the TTL hits the cache.
	if _, err := cache.ListPairPools(ctx, "mintA", "mintB"); err != nil {
		t.Fatalf("ListPairPools cached: %v", err)
	}
	if source.groupCalls != 1 || source.poolCalls != 1 {
		t.Fatalf("expected 1 upstream call each, got groups=%d pools=%d",
			source.groupCalls, source.poolCalls)
	}
}

func TestListPairPoolsUnknownPair(t *testing.T) {
	_, cache, _ := newFixture()
	pools, err := cache.ListPairPools(context.Background(), "mintX", "mintY")
	if err != nil {
		t.Fatalf("ListPairPools: %v", err)
	}
	if len(pools) != 0 {
		t.Fatalf("expected no pools for unknown pair, got %d", len(pools))
	}
}

func TestPoolTTLExpiry(t *testing.T) {
	source, cache, clock := newFixture()
	ctx := context.Background()

	if _, err := cache.ListPairPools(ctx, "mintA", "mintB"); err != nil {
		t.Fatalf("ListPairPools: %v", err)
	}

	// Pool TTL expires before the group TTL.
	*clock = clock.Add(6 * time.Minute)
	if _, err := cache.ListPairPools(ctx, "mintA", "mintB"); err != nil {
		t.Fatalf("ListPairPools after pool TTL: %v", err)
	}
	if source.poolCalls != 2 {
		t.Fatalf("expected pool refetch after TTL, got %d calls", source.poolCalls)
	}
	if source.groupCalls != 1 {
		t.Fatalf("group cache should still be warm, got %d calls", source.groupCalls)
	}
}

func TestServeStaleOnUpstreamFailure(t *testing.T) {
	source, cache, clock := newFixture()
	ctx := context.Background()

	if _, err := cache.ListPairPools(ctx, "mintA", "mintB"); err != nil {
		t.Fatalf("ListPairPools warm-up: %v", err)
	}

	*clock = clock.Add(2 * time.Hour)
	source.fail = true

	pools, err := cache.ListPairPools(ctx, "mintA", "mintB")
	if err != nil {
		t.Fatalf("expected stale data on upstream failure, got %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 stale pools, got %d", len(pools))
	}
}

func TestListTopPools(t *testing.T) {
	_, cache, _ := newFixture()

	pools, err := cache.ListTopPools(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListTopPools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0].PoolID != "pool1" || pools[1].PoolID != "pool2" {
		t.Fatalf("expected liquidity ordering pool1,pool2, got %s,%s",
			pools[0].PoolID, pools[1].PoolID)
	}
}
