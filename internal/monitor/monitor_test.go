package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"binscope/internal/model"
	"binscope/internal/provider"
	"binscope/internal/store"
	"binscope/internal/store/memory"
)

type fakePositions struct {
	mu      sync.Mutex
	data    model.PositionData
	err     error
	started chan struct{}
	proceed chan struct{}
	calls   int
}

func (f *fakePositions) GetPoolBins(context.Context, string) (model.PoolBinSet, error) {
	return model.PoolBinSet{}, provider.ErrNotFound
}

func (f *fakePositions) GetPosition(context.Context, string) (model.PositionData, error) {
	f.mu.Lock()
	f.calls++
	started := f.started
	proceed := f.proceed
	data, err := f.data, f.err
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
	}
	if proceed != nil {
		<-proceed
	}
	return data, err
}

func (f *fakePositions) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (f *fakePrices) UsdPrices(_ context.Context, mints ...string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, mint := range mints {
		if p, ok := f.prices[mint]; ok {
			out[mint] = p
		}
	}
	return out, nil
}

func (f *fakePrices) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeExecutor struct {
	mu      sync.Mutex
	actions []model.Action
	err     error
	started chan struct{}
	proceed chan struct{}
}

func (f *fakeExecutor) Execute(_ context.Context, action model.Action, _ string) (provider.Receipt, error) {
	f.mu.Lock()
	started := f.started
	proceed := f.proceed
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
	}
	if proceed != nil {
		<-proceed
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return provider.Receipt{}, f.err
	}
	f.actions = append(f.actions, action)
	return provider.Receipt{TxRef: "tx-1"}, nil
}

func (f *fakeExecutor) calls() []model.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Action, len(f.actions))
	copy(out, f.actions)
	return out
}

type degradedRecorder struct {
	mu    sync.Mutex
	calls int
}

func (d *degradedRecorder) ActionTaken(context.Context, string, model.Action, string) error {
	return nil
}

func (d *degradedRecorder) PositionDegraded(context.Context, string, int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil
}

func (d *degradedRecorder) RotationOpportunities(context.Context, string, []model.PoolOpportunity) error {
	return nil
}

func testPosition() model.PositionData {
	return model.PositionData{
		PositionID:  "pos1",
		PoolID:      "pool1",
		MintX:       "sol",
		MintY:       "usdc",
		BinStep:     10,
		LowerBinID:  -10,
		UpperBinID:  10,
		ActiveBinID: 0,
		AmountX:     1,
		AmountY:     100,
	}
}

func newMonitor(positions *fakePositions, executor *fakeExecutor, notifier *degradedRecorder) (*Monitor, *memory.Store, *fakePrices) {
	st := memory.NewStore()
	prices := &fakePrices{prices: map[string]float64{"sol": 100, "usdc": 1}}
	m := New(Config{FailureBudget: 2, TickInterval: time.Hour}, positions, prices, executor, st, st, notifier, nil)
	return m, st, prices
}

func TestEnrollSeedsStateAndUnenrollRemovesIt(t *testing.T) {
	positions := &fakePositions{data: testPosition()}
	m, st, _ := newMonitor(positions, &fakeExecutor{}, &degradedRecorder{})
	defer m.Stop()
	ctx := context.Background()

	state, err := m.Enroll(ctx, "pos1")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if state.InitialValueUsd != 200 {
		t.Fatalf("InitialValueUsd = %v, want 200", state.InitialValueUsd)
	}
	if state.RangeCenterPrice <= 0 {
		t.Fatalf("RangeCenterPrice not seeded: %v", state.RangeCenterPrice)
	}
	if !m.Enrolled("pos1") {
		t.Fatalf("loop not running after enroll")
	}

	if _, err := m.Enroll(ctx, "pos1"); err == nil {
		t.Fatalf("double enroll should fail")
	}

	if err := m.Unenroll(ctx, "pos1"); err != nil {
		t.Fatalf("Unenroll: %v", err)
	}
	if m.Enrolled("pos1") {
		t.Fatalf("loop still running after un-enroll")
	}
	if _, err := st.GetState(ctx, "pos1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("state not deleted: %v", err)
	}
}

func TestTickExecutesTriggeredAction(t *testing.T) {
	data := testPosition()
	data.AmountY = 200 // value 300 vs initial 200, +50%
	positions := &fakePositions{data: data}
	executor := &fakeExecutor{}
	m, st, _ := newMonitor(positions, executor, &degradedRecorder{})
	ctx := context.Background()

	if err := st.PutState(ctx, model.MonitorState{
		PositionID:      "pos1",
		InitialValueUsd: 200,
	}); err != nil {
		t.Fatalf("PutState: %v", err)
	}
	if err := st.PutRules(ctx, model.AutomationRules{
		PositionID: "pos1",
		TakeProfit: model.TakeProfitRule{Enabled: true, ThresholdPct: 10},
	}); err != nil {
		t.Fatalf("PutRules: %v", err)
	}

	m.tick(ctx, "pos1")

	if got := executor.calls(); len(got) != 1 || got[0] != model.ActionClose {
		t.Fatalf("expected one close action, got %v", got)
	}
	state, err := st.GetState(ctx, "pos1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.LastAction != model.ActionClose || state.LastActionAt.IsZero() {
		t.Fatalf("action not recorded: %+v", state)
	}
}

func TestTickRecordsCompoundTime(t *testing.T) {
	data := testPosition()
	data.FeeX = 0.1 // fees 10 usd
	positions := &fakePositions{data: data}
	executor := &fakeExecutor{}
	m, st, _ := newMonitor(positions, executor, &degradedRecorder{})
	ctx := context.Background()

	st.PutState(ctx, model.MonitorState{PositionID: "pos1", InitialValueUsd: 200})
	st.PutRules(ctx, model.AutomationRules{
		PositionID:   "pos1",
		AutoCompound: model.CompoundRule{Enabled: true, MinIntervalHours: 1, MinUsdThreshold: 5},
	})

	m.tick(ctx, "pos1")

	if got := executor.calls(); len(got) != 1 || got[0] != model.ActionCompound {
		t.Fatalf("expected one compound action, got %v", got)
	}
	state, _ := st.GetState(ctx, "pos1")
	if state.LastCompoundAt.IsZero() {
		t.Fatalf("LastCompoundAt not recorded")
	}
}

func TestUnenrollMidTickDiscardsAction(t *testing.T) {
	data := testPosition()
	data.AmountY = 200
	positions := &fakePositions{
		data:    data,
		started: make(chan struct{}),
		proceed: make(chan struct{}),
	}
	executor := &fakeExecutor{}
	m, st, _ := newMonitor(positions, executor, &degradedRecorder{})
	ctx := context.Background()

	st.PutState(ctx, model.MonitorState{PositionID: "pos1", InitialValueUsd: 200})
	// Take-profit holds at these values; only the cancellation guards keep
	// the action from executing.
	st.PutRules(ctx, model.AutomationRules{
		PositionID: "pos1",
		TakeProfit: model.TakeProfitRule{Enabled: true, ThresholdPct: 10},
	})

	loopCtx, cancelLoop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.tick(loopCtx, "pos1")
	}()

	// The tick is mid-fetch when the position is un-enrolled.
	<-positions.started
	cancelLoop()
	close(positions.proceed)
	<-done

	if got := executor.calls(); len(got) != 0 {
		t.Fatalf("un-enrolled tick executed %v", got)
	}
}

func TestUnenrollMidExecuteDoesNotResurrectState(t *testing.T) {
	data := testPosition()
	data.AmountY = 200
	positions := &fakePositions{data: data}
	executor := &fakeExecutor{
		started: make(chan struct{}),
		proceed: make(chan struct{}),
	}
	m, st, _ := newMonitor(positions, executor, &degradedRecorder{})
	ctx := context.Background()

	st.PutState(ctx, model.MonitorState{PositionID: "pos1", InitialValueUsd: 200})
	st.PutRules(ctx, model.AutomationRules{
		PositionID: "pos1",
		TakeProfit: model.TakeProfitRule{Enabled: true, ThresholdPct: 10},
	})

	loopCtx, cancelLoop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.tick(loopCtx, "pos1")
	}()

	// Un-enrollment lands while the action is executing: the loop is
	// canceled and the state deleted before the executor returns. The
	// finishing tick must not write the deleted state back.
	<-executor.started
	cancelLoop()
	if err := st.DeleteState(ctx, "pos1"); err != nil {
		t.Fatalf("DeleteState: %v", err)
	}
	close(executor.proceed)
	<-done

	if _, err := st.GetState(ctx, "pos1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted state resurrected by in-flight tick: %v", err)
	}
}

func TestPriceOutageFailsTickWithoutActing(t *testing.T) {
	positions := &fakePositions{data: testPosition()}
	executor := &fakeExecutor{}
	m, st, prices := newMonitor(positions, executor, &degradedRecorder{})
	prices.setErr(provider.ErrUnavailable)
	ctx := context.Background()

	st.PutState(ctx, model.MonitorState{PositionID: "pos1", InitialValueUsd: 200})
	st.PutRules(ctx, model.AutomationRules{
		PositionID: "pos1",
		StopLoss:   model.StopLossRule{Enabled: true, ThresholdPct: -25},
	})

	// Without prices the position would appear worthless; the tick must
	// count as a failure instead of tripping the stop-loss.
	m.tick(ctx, "pos1")

	if got := executor.calls(); len(got) != 0 {
		t.Fatalf("unpriced tick executed %v", got)
	}
	state, err := st.GetState(ctx, "pos1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.ConsecutiveFailureCount != 1 {
		t.Fatalf("ConsecutiveFailureCount = %d, want 1", state.ConsecutiveFailureCount)
	}
}

func TestEnrollFailsWithoutPrices(t *testing.T) {
	positions := &fakePositions{data: testPosition()}
	m, st, prices := newMonitor(positions, &fakeExecutor{}, &degradedRecorder{})
	defer m.Stop()
	ctx := context.Background()

	prices.setErr(provider.ErrUnavailable)
	if _, err := m.Enroll(ctx, "pos1"); err == nil {
		t.Fatalf("enroll during price outage should fail")
	}

	// A response missing one mint is just as unusable as a baseline.
	prices.setErr(nil)
	prices.mu.Lock()
	prices.prices = map[string]float64{"sol": 100}
	prices.mu.Unlock()
	if _, err := m.Enroll(ctx, "pos1"); !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("enroll with one unpriced mint: got %v, want ErrUnavailable", err)
	}

	if m.Enrolled("pos1") {
		t.Fatalf("failed enrollment started a loop")
	}
	if _, err := st.GetState(ctx, "pos1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("failed enrollment persisted state: %v", err)
	}
}

func TestFailureBudgetDegradesAndRecovers(t *testing.T) {
	positions := &fakePositions{data: testPosition()}
	positions.setErr(provider.ErrUnavailable)
	executor := &fakeExecutor{}
	notifier := &degradedRecorder{}
	m, st, _ := newMonitor(positions, executor, notifier)
	ctx := context.Background()

	st.PutState(ctx, model.MonitorState{PositionID: "pos1", InitialValueUsd: 200})

	// Budget is 2: third consecutive failure crosses it.
	for i := 0; i < 3; i++ {
		m.tick(ctx, "pos1")
	}
	state, _ := st.GetState(ctx, "pos1")
	if !state.Degraded {
		t.Fatalf("expected degraded after budget exhausted: %+v", state)
	}
	if state.ConsecutiveFailureCount != 3 {
		t.Fatalf("ConsecutiveFailureCount = %d, want 3", state.ConsecutiveFailureCount)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one degraded notification, got %d", notifier.calls)
	}

	// Counting pauses while degraded.
	m.tick(ctx, "pos1")
	state, _ = st.GetState(ctx, "pos1")
	if state.ConsecutiveFailureCount != 3 {
		t.Fatalf("count advanced while degraded: %d", state.ConsecutiveFailureCount)
	}
	if notifier.calls != 1 {
		t.Fatalf("degraded notification repeated: %d", notifier.calls)
	}

	// A successful tick clears everything.
	positions.setErr(nil)
	m.tick(ctx, "pos1")
	state, _ = st.GetState(ctx, "pos1")
	if state.Degraded || state.ConsecutiveFailureCount != 0 {
		t.Fatalf("state not reset after success: %+v", state)
	}
}

func TestExecutionFailureDoesNotRecordAction(t *testing.T) {
	data := testPosition()
	data.AmountY = 200
	positions := &fakePositions{data: data}
	executor := &fakeExecutor{err: errors.New("submit failed")}
	m, st, _ := newMonitor(positions, executor, &degradedRecorder{})
	ctx := context.Background()

	st.PutState(ctx, model.MonitorState{PositionID: "pos1", InitialValueUsd: 200})
	st.PutRules(ctx, model.AutomationRules{
		PositionID: "pos1",
		TakeProfit: model.TakeProfitRule{Enabled: true, ThresholdPct: 10},
	})

	m.tick(ctx, "pos1")

	state, _ := st.GetState(ctx, "pos1")
	if state.LastAction != "" || !state.LastActionAt.IsZero() {
		t.Fatalf("failed execution recorded an action: %+v", state)
	}
}
