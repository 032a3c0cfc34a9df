// Package rotation scans pool listings for wallets that opted into
// capital-rotation alerts. Each scan snapshots the earning rates of
// candidate pools and reports pools that are new or that out-earn their
// previous snapshot by the wallet's threshold multiplier.
package rotation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"binscope/internal/model"
	"binscope/internal/notify"
	"binscope/internal/provider"
	"binscope/internal/store"
)

const candidateLimit = 100

// Exporter receives every stored snapshot, for offline analysis.
type Exporter interface {
	Append(snapshot model.OpportunitySnapshot) error
}

type Scanner struct {
	lister   provider.PoolLister
	store    store.RotationStore
	notifier notify.Notifier
	exporter Exporter
	logger   *zap.Logger
	now      func() time.Time
}

func NewScanner(lister provider.PoolLister, st store.RotationStore, notifier notify.Notifier, exporter Exporter, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		lister:   lister,
		store:    st,
		notifier: notifier,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// Run drives periodic scans until the context is canceled. Each wallet's
// own interval decides when it is due; the ticker just wakes the loop.
func (s *Scanner) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.ScanDue(ctx); err != nil {
				s.logger.Error("rotation scan pass failed", zap.Error(err))
			}
		}
	}
}

// ScanDue scans every enabled wallet whose interval has elapsed.
func (s *Scanner) ScanDue(ctx context.Context) error {
	configs, err := s.store.ListEnabledConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list rotation configs: %w", err)
	}

	now := s.now()
	for _, cfg := range configs {
		interval := time.Duration(cfg.IntervalMinutes) * time.Minute
		if interval <= 0 {
			interval = time.Hour
		}
		if !cfg.LastCheck.IsZero() && now.Sub(cfg.LastCheck) < interval {
			continue
		}
		if err := s.ScanWallet(ctx, cfg); err != nil {
			s.logger.Error("rotation scan failed",
				zap.String("wallet", cfg.WalletAddress), zap.Error(err))
		}
	}
	return nil
}

// ScanWallet runs one scan for a wallet: list candidates, diff against the
// previous snapshot, notify on new or improved pools, store the snapshot.
func (s *Scanner) ScanWallet(ctx context.Context, cfg model.RotationConfig) error {
	pools, err := s.lister.ListTopPools(ctx, candidateLimit)
	if err != nil {
		return fmt.Errorf("list candidate pools: %w", err)
	}

	current := s.candidates(cfg, pools)

	previous, err := s.previousOpportunities(ctx, cfg.WalletAddress)
	if err != nil {
		return err
	}

	improved := diff(previous, current, cfg.ThresholdMultiplier)
	s.logger.Info("rotation scan complete",
		zap.String("wallet", cfg.WalletAddress),
		zap.Int("candidates", len(current)),
		zap.Int("previous", len(previous)),
		zap.Int("new_or_improved", len(improved)),
	)

	if len(improved) > 0 && s.notifier != nil {
		if err := s.notifier.RotationOpportunities(ctx, cfg.WalletAddress, improved); err != nil {
			s.logger.Warn("rotation notification failed", zap.Error(err))
		}
	}

	snapshot := model.OpportunitySnapshot{
		WalletAddress: cfg.WalletAddress,
		Opportunities: current,
		CreatedAt:     s.now(),
	}
	if err := s.store.PutSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if s.exporter != nil {
		if err := s.exporter.Append(snapshot); err != nil {
			s.logger.Warn("snapshot export failed", zap.Error(err))
		}
	}

	cfg.LastCheck = s.now()
	if err := s.store.PutConfig(ctx, cfg); err != nil {
		return fmt.Errorf("update last check: %w", err)
	}
	return nil
}

// candidates filters and ranks the listed pools by the wallet's preferences.
func (s *Scanner) candidates(cfg model.RotationConfig, pools []model.PoolInfo) []model.PoolOpportunity {
	whitelist := make(map[string]bool, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = true
	}
	quotes := make(map[string]bool, len(cfg.QuoteMints))
	for _, mint := range cfg.QuoteMints {
		quotes[mint] = true
	}

	var out []model.PoolOpportunity
	for _, p := range pools {
		if len(whitelist) > 0 && !whitelist[p.PoolID] {
			continue
		}
		if len(quotes) > 0 && !quotes[p.MintX] && !quotes[p.MintY] {
			continue
		}
		if p.FeesUsd < cfg.MinFeesUsd {
			continue
		}
		rate := p.EarnRate()
		if rate <= 0 {
			continue
		}
		out = append(out, model.PoolOpportunity{
			PoolID:       p.PoolID,
			PairName:     p.Name,
			MintX:        p.MintX,
			MintY:        p.MintY,
			BinStep:      p.BinStep,
			LiquidityUsd: p.LiquidityUsd,
			FeesUsd:      p.FeesUsd,
			EarnRate:     rate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarnRate > out[j].EarnRate })
	return out
}

func (s *Scanner) previousOpportunities(ctx context.Context, walletAddress string) ([]model.PoolOpportunity, error) {
	snaps, err := s.store.ListSnapshots(ctx, walletAddress, 1)
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0].Opportunities, nil
}

// diff returns pools absent from the previous snapshot plus pools whose earn
// rate beat their previous reading by the threshold multiplier.
func diff(previous, current []model.PoolOpportunity, threshold float64) []model.PoolOpportunity {
	if threshold <= 0 {
		threshold = 1
	}
	prevByPool := make(map[string]model.PoolOpportunity, len(previous))
	for _, opp := range previous {
		prevByPool[opp.PoolID] = opp
	}

	var out []model.PoolOpportunity
	for _, opp := range current {
		prev, seen := prevByPool[opp.PoolID]
		if !seen {
			out = append(out, opp)
			continue
		}
		if prev.EarnRate > 0 && opp.EarnRate > prev.EarnRate*threshold {
			out = append(out, opp)
		}
	}
	return out
}
