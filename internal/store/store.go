// Package store defines persistence contracts for the engine's long-lived
// state: automation rules, per-position monitor state, and capital-rotation
// configs with their opportunity snapshots.
package store

import (
	"context"
	"errors"

	"binscope/internal/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// RuleStore persists per-position automation rule sets.
type RuleStore interface {
	PutRules(ctx context.Context, rules model.AutomationRules) error
	GetRules(ctx context.Context, positionID string) (model.AutomationRules, error)
	DeleteRules(ctx context.Context, positionID string) error
}

// StateStore persists monitor state keyed by position id. ListStates feeds
// monitor startup so enrollments survive a restart.
type StateStore interface {
	PutState(ctx context.Context, state model.MonitorState) error
	GetState(ctx context.Context, positionID string) (model.MonitorState, error)
	DeleteState(ctx context.Context, positionID string) error
	ListStates(ctx context.Context) ([]model.MonitorState, error)
}

// RotationStore persists wallet rotation configs and scan snapshots.
type RotationStore interface {
	PutConfig(ctx context.Context, cfg model.RotationConfig) error
	GetConfig(ctx context.Context, walletAddress string) (model.RotationConfig, error)
	ListEnabledConfigs(ctx context.Context) ([]model.RotationConfig, error)
	DeleteConfig(ctx context.Context, walletAddress string) error
	PutSnapshot(ctx context.Context, snapshot model.OpportunitySnapshot) error
	ListSnapshots(ctx context.Context, walletAddress string, limit int) ([]model.OpportunitySnapshot, error)
}
