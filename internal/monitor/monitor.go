// Package monitor runs the periodic evaluation loop for enrolled positions.
// Each position gets its own tick loop; within a loop ticks are strictly
// sequential, and all provider calls share a bounded concurrency cap.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"binscope/internal/binmath"
	"binscope/internal/model"
	"binscope/internal/notify"
	"binscope/internal/provider"
	"binscope/internal/store"
)

const (
	defaultTickInterval  = time.Minute
	defaultCallTimeout   = 30 * time.Second
	defaultConcurrency   = 8
	defaultFailureBudget = 5
)

// Config tunes the monitor's scheduling and provider usage.
type Config struct {
	// TickInterval is how often each position is evaluated.
	TickInterval time.Duration
	// CallTimeout bounds every provider call within a tick.
	CallTimeout time.Duration
	// Concurrency caps simultaneous provider calls across all positions.
	Concurrency int
	// FailureBudget is how many consecutive failed ticks a position
	// tolerates before its monitoring is flagged degraded.
	FailureBudget int
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.FailureBudget <= 0 {
		c.FailureBudget = defaultFailureBudget
	}
}

type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Monitor owns MonitorState for enrolled positions and drives their tick
// loops. Enrollment and un-enrollment come from the configuration API; the
// monitor never changes its own enrollment set.
type Monitor struct {
	cfg       Config
	positions provider.PoolProvider
	prices    provider.PriceProvider
	executor  provider.Executor
	ruleStore store.RuleStore
	states    store.StateStore
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time

	sem chan struct{}

	mu    sync.Mutex
	loops map[string]*loop
}

func New(cfg Config, positions provider.PoolProvider, prices provider.PriceProvider, executor provider.Executor, ruleStore store.RuleStore, states store.StateStore, notifier notify.Notifier, logger *zap.Logger) *Monitor {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:       cfg,
		positions: positions,
		prices:    prices,
		executor:  executor,
		ruleStore: ruleStore,
		states:    states,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		sem:       make(chan struct{}, cfg.Concurrency),
		loops:     make(map[string]*loop),
	}
}

// Start resumes loops for every position persisted in the state store, so a
// restart picks up where the previous process left off.
func (m *Monitor) Start(ctx context.Context) error {
	states, err := m.states.ListStates(ctx)
	if err != nil {
		return fmt.Errorf("load monitor states: %w", err)
	}
	for _, state := range states {
		m.startLoop(state.PositionID)
	}
	m.logger.Info("monitor started", zap.Int("positions", len(states)))
	return nil
}

// Stop cancels every loop and waits for in-flight ticks to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	loops := make([]*loop, 0, len(m.loops))
	for id, l := range m.loops {
		l.cancel()
		loops = append(loops, l)
		delete(m.loops, id)
	}
	m.mu.Unlock()

	for _, l := range loops {
		<-l.done
	}
}

// Enroll starts monitoring a position. The position is fetched once to seed
// the baseline value and original range center the rule triggers compare
// against.
func (m *Monitor) Enroll(ctx context.Context, positionID string) (model.MonitorState, error) {
	if positionID == "" {
		return model.MonitorState{}, store.ErrInvalidInput
	}
	if _, err := m.states.GetState(ctx, positionID); err == nil {
		return model.MonitorState{}, fmt.Errorf("position %s: already enrolled", positionID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.MonitorState{}, err
	}

	data, priceX, priceY, err := m.fetch(ctx, positionID)
	if err != nil {
		return model.MonitorState{}, fmt.Errorf("enroll %s: %w", positionID, err)
	}
	// A baseline seeded from incomplete prices pins PnL at zero and makes
	// take-profit and stop-loss dead letters, so enrollment needs both.
	if priceX <= 0 || priceY <= 0 {
		return model.MonitorState{}, fmt.Errorf("enroll %s: %w: no usd price for pair", positionID, provider.ErrUnavailable)
	}

	initialValue := data.AmountX*priceX + data.AmountY*priceY
	state := model.MonitorState{
		PositionID:       positionID,
		EnrolledAt:       m.now(),
		InitialValueUsd:  initialValue,
		RangeCenterPrice: binmath.RangeCenter(data.LowerBinID, data.UpperBinID, data.BinStep),
	}
	if err := m.states.PutState(ctx, state); err != nil {
		return model.MonitorState{}, err
	}

	m.startLoop(positionID)
	m.logger.Info("position enrolled",
		zap.String("position", positionID),
		zap.Float64("initial_value_usd", initialValue),
	)
	return state, nil
}

// Unenroll stops monitoring a position. Scheduling stops immediately; an
// in-flight tick finishes but its result is discarded before any action is
// executed.
func (m *Monitor) Unenroll(ctx context.Context, positionID string) error {
	m.mu.Lock()
	l, ok := m.loops[positionID]
	if ok {
		l.cancel()
		delete(m.loops, positionID)
	}
	m.mu.Unlock()

	if err := m.states.DeleteState(ctx, positionID); err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	m.logger.Info("position un-enrolled", zap.String("position", positionID))
	return nil
}

// Enrolled reports whether the position currently has a running loop.
func (m *Monitor) Enrolled(positionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loops[positionID]
	return ok
}

func (m *Monitor) startLoop(positionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loops[positionID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{cancel: cancel, done: make(chan struct{})}
	m.loops[positionID] = l
	go m.run(ctx, positionID, l.done)
}

func (m *Monitor) run(ctx context.Context, positionID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Ticks run inline, so a slow tick delays the next one
			// instead of overlapping it.
			m.tick(ctx, positionID)
		}
	}
}
