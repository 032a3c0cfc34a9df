package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"binscope/internal/model"
	"binscope/internal/position"
	"binscope/internal/provider"
	"binscope/internal/rules"
	"binscope/internal/store"
)

// tick runs one Fetch -> Evaluate -> Act cycle for a position. loopCtx is
// canceled on un-enrollment; once it is done the tick's result is discarded
// and no action executes.
func (m *Monitor) tick(loopCtx context.Context, positionID string) {
	logger := m.logger.With(
		zap.String("position", positionID),
		zap.String("tick", uuid.NewString()),
	)

	state, err := m.states.GetState(loopCtx, positionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("load monitor state failed", zap.Error(err))
		}
		return
	}

	data, priceX, priceY, err := m.fetch(loopCtx, positionID)
	if err != nil {
		if loopCtx.Err() != nil {
			return
		}
		m.recordFailure(loopCtx, logger, state, err)
		return
	}

	// Un-enrollment mid-fetch discards the tick so a late write cannot
	// resurrect deleted state.
	if loopCtx.Err() != nil {
		return
	}

	snapshot := position.Project(data, priceX, priceY, state.InitialValueUsd)

	ruleSet, err := m.ruleStore.GetRules(loopCtx, positionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("load rules failed", zap.Error(err))
		return
	}

	// A successful read is a success regardless of the chosen action.
	state.ConsecutiveFailureCount = 0
	state.Degraded = false

	action := rules.Evaluate(snapshot, ruleSet, state, m.now())
	if action == model.ActionNone {
		if loopCtx.Err() != nil {
			return
		}
		if err := m.states.PutState(loopCtx, state); err != nil {
			logger.Error("persist monitor state failed", zap.Error(err))
		}
		return
	}

	// Un-enrollment mid-tick discards the result before anything executes.
	if loopCtx.Err() != nil {
		logger.Info("tick discarded, position un-enrolled",
			zap.String("action", string(action)))
		return
	}

	logger.Info("rule triggered",
		zap.String("action", string(action)),
		zap.Float64("value_usd", snapshot.ValueUsd),
		zap.Float64("pnl_pct", snapshot.UnrealizedPnlPct),
	)

	receipt, err := m.execute(loopCtx, action, positionID)
	if err != nil {
		// No retry within the tick. The condition still holds next tick.
		logger.Warn("action execution failed", zap.Error(err))
		if loopCtx.Err() != nil {
			return
		}
		if err := m.states.PutState(loopCtx, state); err != nil {
			logger.Error("persist monitor state failed", zap.Error(err))
		}
		return
	}

	state.LastAction = action
	state.LastActionAt = m.now()
	if action == model.ActionCompound {
		state.LastCompoundAt = state.LastActionAt
	}
	// Un-enrollment during execution deletes the state; a late write here
	// would bring it back.
	if loopCtx.Err() != nil {
		return
	}
	if err := m.states.PutState(loopCtx, state); err != nil {
		logger.Error("persist monitor state failed", zap.Error(err))
	}

	if m.notifier != nil {
		if err := m.notifier.ActionTaken(loopCtx, positionID, action, receipt.TxRef); err != nil {
			logger.Warn("action notification failed", zap.Error(err))
		}
	}
}

// fetch retrieves the raw position plus USD prices for both sides under the
// provider concurrency cap and call timeout.
func (m *Monitor) fetch(ctx context.Context, positionID string) (model.PositionData, float64, float64, error) {
	var data model.PositionData
	err := m.withSlot(ctx, func(callCtx context.Context) error {
		var err error
		data, err = m.positions.GetPosition(callCtx, positionID)
		return err
	})
	if err != nil {
		return model.PositionData{}, 0, 0, fmt.Errorf("fetch position: %w", err)
	}

	var prices map[string]float64
	err = m.withSlot(ctx, func(callCtx context.Context) error {
		var err error
		prices, err = m.prices.UsdPrices(callCtx, data.MintX, data.MintY)
		return err
	})
	if err != nil {
		// Zero prices would read as a total loss and trip stop-losses,
		// so a failed price call fails the whole tick.
		return model.PositionData{}, 0, 0, fmt.Errorf("fetch prices: %w", err)
	}
	return data, prices[data.MintX], prices[data.MintY], nil
}

func (m *Monitor) execute(ctx context.Context, action model.Action, positionID string) (provider.Receipt, error) {
	var receipt provider.Receipt
	err := m.withSlot(ctx, func(callCtx context.Context) error {
		var err error
		receipt, err = m.executor.Execute(callCtx, action, positionID)
		return err
	})
	return receipt, err
}

// withSlot runs fn under the shared provider concurrency cap with the
// configured call timeout.
func (m *Monitor) withSlot(ctx context.Context, fn func(context.Context) error) error {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.sem }()

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	return fn(callCtx)
}

// recordFailure advances the consecutive-failure count and flags the
// position degraded once the budget is exhausted. Monitoring continues
// either way; counting pauses while degraded so the count cannot grow
// without bound, and the next successful tick clears everything.
func (m *Monitor) recordFailure(ctx context.Context, logger *zap.Logger, state model.MonitorState, cause error) {
	if state.Degraded {
		logger.Warn("tick failed while degraded", zap.Error(cause))
		return
	}

	state.ConsecutiveFailureCount++
	logger.Warn("tick failed",
		zap.Int("consecutive_failures", state.ConsecutiveFailureCount),
		zap.Error(cause),
	)

	if state.ConsecutiveFailureCount > m.cfg.FailureBudget {
		state.Degraded = true
		logger.Error("monitoring degraded",
			zap.Int("consecutive_failures", state.ConsecutiveFailureCount))
		if m.notifier != nil {
			if err := m.notifier.PositionDegraded(ctx, state.PositionID, state.ConsecutiveFailureCount); err != nil {
				logger.Warn("degraded notification failed", zap.Error(err))
			}
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := m.states.PutState(ctx, state); err != nil {
		logger.Error("persist monitor state failed", zap.Error(err))
	}
}
