// Package notify delivers operator-facing alerts for automation events.
package notify

import (
	"context"

	"binscope/internal/model"
)

// Notifier receives automation and rotation events as they happen.
type Notifier interface {
	// ActionTaken reports that an automation action executed for a position.
	ActionTaken(ctx context.Context, positionID string, action model.Action, txRef string) error
	// PositionDegraded reports that monitoring for a position entered the
	// degraded state after repeated provider failures.
	PositionDegraded(ctx context.Context, positionID string, failures int) error
	// RotationOpportunities reports better-earning pools found by a
	// rotation scan for a wallet.
	RotationOpportunities(ctx context.Context, walletAddress string, opportunities []model.PoolOpportunity) error
}
