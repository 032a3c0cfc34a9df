package model

import "time"

// Action is the single corrective step the rule engine can request for a
// position in one monitoring cycle.
type Action string

const (
	ActionNone      Action = "none"
	ActionClaimFees Action = "claim_fees"
	ActionCompound  Action = "compound"
	ActionClose     Action = "close"
	ActionRebalance Action = "rebalance"
)

// Valid reports whether the action is part of the execution vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionNone, ActionClaimFees, ActionCompound, ActionClose, ActionRebalance:
		return true
	}
	return false
}

// TakeProfitRule closes a position once unrealized PnL reaches ThresholdPct.
type TakeProfitRule struct {
	Enabled      bool    `json:"enabled"`
	ThresholdPct float64 `json:"threshold_pct"`
}

// StopLossRule closes a position once unrealized PnL falls to ThresholdPct.
// ThresholdPct is negative.
type StopLossRule struct {
	Enabled      bool    `json:"enabled"`
	ThresholdPct float64 `json:"threshold_pct"`
}

// CompoundRule claims and reinvests fees. MinIntervalHours is a hard floor
// between compounds regardless of how quickly fees re-accumulate.
type CompoundRule struct {
	Enabled          bool    `json:"enabled"`
	MinIntervalHours float64 `json:"min_interval_hours"`
	MinUsdThreshold  float64 `json:"min_usd_threshold"`
}

// RebalanceTriggers are the independently configured conditions that can fire
// a rebalance. A zero value disables that trigger.
type RebalanceTriggers struct {
	PriceDriftPct   float64 `json:"price_drift_pct"`
	ImbalanceRatio  float64 `json:"imbalance_ratio"`
	FeeThresholdUsd float64 `json:"fee_threshold_usd"`
}

// RebalanceRule re-centers a position when any configured trigger holds.
type RebalanceRule struct {
	Enabled  bool              `json:"enabled"`
	Triggers RebalanceTriggers `json:"triggers"`
}

// AutomationRules is the per-position rule set. It is mutated only by the
// position owner through the configuration API and read-only to the engine.
type AutomationRules struct {
	PositionID   string         `json:"position_id"`
	TakeProfit   TakeProfitRule `json:"take_profit"`
	StopLoss     StopLossRule   `json:"stop_loss"`
	AutoCompound CompoundRule   `json:"auto_compound"`
	Rebalance    RebalanceRule  `json:"rebalance"`
}

// MonitorState is the only mutable long-lived state the engine owns, keyed by
// position id. Created on enrollment, deleted on un-enrollment.
type MonitorState struct {
	PositionID              string    `json:"position_id"`
	EnrolledAt              time.Time `json:"enrolled_at"`
	LastActionAt            time.Time `json:"last_action_at"`
	LastAction              Action    `json:"last_action"`
	LastCompoundAt          time.Time `json:"last_compound_at"`
	ConsecutiveFailureCount int       `json:"consecutive_failure_count"`
	Degraded                bool      `json:"degraded"`
	InitialValueUsd         float64   `json:"initial_value_usd"`
	RangeCenterPrice        float64   `json:"range_center_price"`
}
