// Package provider defines the boundary contracts the engine consumes.
// Concrete adapters (REST clients, SDK wrappers) live in subpackages; the
// core never depends on a specific chain or data vendor.
package provider

import (
	"context"
	"errors"

	"binscope/internal/model"
)

var (
	// ErrUnavailable marks a transient provider failure. The monitor never
	// retries it within a tick; the next scheduled tick re-evaluates from
	// fresh state.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrNotFound marks a pool or position the provider does not know.
	ErrNotFound = errors.New("not found")
)

// PoolProvider serves pool bin tables and raw position state.
type PoolProvider interface {
	GetPoolBins(ctx context.Context, poolID string) (model.PoolBinSet, error)
	GetPosition(ctx context.Context, positionID string) (model.PositionData, error)
}

// PoolLister enumerates pools for pair aggregation and rotation scanning.
type PoolLister interface {
	ListPairPools(ctx context.Context, mintX, mintY string) ([]model.PoolInfo, error)
	ListTopPools(ctx context.Context, limit int) ([]model.PoolInfo, error)
}

// PriceProvider resolves token mints to USD prices. A mint absent from the
// result is unavailable, which is partial data for the caller, not an error.
type PriceProvider interface {
	UsdPrices(ctx context.Context, mints ...string) (map[string]float64, error)
}

// Receipt reports a successfully submitted action.
type Receipt struct {
	TxRef string `json:"tx_ref"`
}

// Executor submits a corrective action for a position. The engine treats a
// call as at-most-once-attempted per tick and never retries within the tick.
type Executor interface {
	Execute(ctx context.Context, action model.Action, positionID string) (Receipt, error)
}
