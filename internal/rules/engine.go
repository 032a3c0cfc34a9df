package rules

import (
	"math"
	"time"

	"binscope/internal/model"
)

// Evaluate decides the single next action for a position given its fresh
// snapshot and configured rules. At most one action is returned per call,
// chosen by fixed precedence: close (stop-loss or take-profit) beats
// rebalance beats compound. Exiting pre-empts maintenance actions that would
// be wasted on a position about to close. ActionNone is the normal result
// when nothing fires. A partially priced snapshot suppresses every trigger
// that reads a USD figure; only bin-derived price drift can still fire.
func Evaluate(snapshot model.PositionSnapshot, rules model.AutomationRules, state model.MonitorState, now time.Time) model.Action {
	if shouldClose(snapshot, rules) {
		return model.ActionClose
	}
	if shouldRebalance(snapshot, rules, state) {
		return model.ActionRebalance
	}
	if shouldCompound(snapshot, rules, state, now) {
		return model.ActionCompound
	}
	return model.ActionNone
}

func shouldClose(snapshot model.PositionSnapshot, rules model.AutomationRules) bool {
	// PnL computed from incomplete prices is noise, not a signal. Never
	// close a position on it.
	if snapshot.PartialPricing {
		return false
	}
	if rules.TakeProfit.Enabled && snapshot.UnrealizedPnlPct >= rules.TakeProfit.ThresholdPct {
		return true
	}
	if rules.StopLoss.Enabled && snapshot.UnrealizedPnlPct <= rules.StopLoss.ThresholdPct {
		return true
	}
	return false
}

// shouldRebalance fires when any configured trigger holds. A zero trigger
// value means that trigger is not configured.
func shouldRebalance(snapshot model.PositionSnapshot, rules model.AutomationRules, state model.MonitorState) bool {
	if !rules.Rebalance.Enabled {
		return false
	}
	triggers := rules.Rebalance.Triggers

	if triggers.PriceDriftPct > 0 && state.RangeCenterPrice > 0 && snapshot.CurrentPrice > 0 {
		drift := math.Abs(snapshot.CurrentPrice-state.RangeCenterPrice) / state.RangeCenterPrice * 100
		if drift >= triggers.PriceDriftPct {
			return true
		}
	}

	if triggers.ImbalanceRatio > 0 && !snapshot.PartialPricing {
		if ratio, ok := imbalanceRatio(snapshot.ValueXUsd, snapshot.ValueYUsd); ok && ratio >= triggers.ImbalanceRatio {
			return true
		}
	}

	if triggers.FeeThresholdUsd > 0 && !snapshot.PartialPricing && snapshot.FeesUsd >= triggers.FeeThresholdUsd {
		return true
	}
	return false
}

// imbalanceRatio reports how lopsided the position's token values are, as
// larger side over smaller side. A position entirely on one side has no
// finite ratio and is treated as maximally imbalanced.
func imbalanceRatio(valueX, valueY float64) (float64, bool) {
	if valueX <= 0 && valueY <= 0 {
		return 0, false
	}
	lo, hi := valueX, valueY
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return math.Inf(1), true
	}
	return hi / lo, true
}

// shouldCompound enforces the interval floor: never compound more often than
// configured, even if fees re-cross the threshold sooner.
func shouldCompound(snapshot model.PositionSnapshot, rules model.AutomationRules, state model.MonitorState, now time.Time) bool {
	if !rules.AutoCompound.Enabled {
		return false
	}
	if snapshot.PartialPricing {
		return false
	}
	if snapshot.FeesUsd < rules.AutoCompound.MinUsdThreshold {
		return false
	}
	if !state.LastCompoundAt.IsZero() {
		floor := time.Duration(rules.AutoCompound.MinIntervalHours * float64(time.Hour))
		if now.Sub(state.LastCompoundAt) < floor {
			return false
		}
	}
	return true
}
