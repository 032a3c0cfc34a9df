// Package memory provides in-memory store implementations, the default for
// single-node deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"binscope/internal/model"
	"binscope/internal/store"
)

// Store holds all engine state in process memory.
type Store struct {
	mu        sync.RWMutex
	rules     map[string]model.AutomationRules
	states    map[string]model.MonitorState
	rotations map[string]model.RotationConfig
	snapshots map[string][]model.OpportunitySnapshot
}

func NewStore() *Store {
	return &Store{
		rules:     make(map[string]model.AutomationRules),
		states:    make(map[string]model.MonitorState),
		rotations: make(map[string]model.RotationConfig),
		snapshots: make(map[string][]model.OpportunitySnapshot),
	}
}

func (s *Store) PutRules(_ context.Context, rules model.AutomationRules) error {
	if rules.PositionID == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rules.PositionID] = rules
	return nil
}

func (s *Store) GetRules(_ context.Context, positionID string) (model.AutomationRules, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules, ok := s.rules[positionID]
	if !ok {
		return model.AutomationRules{}, store.ErrNotFound
	}
	return rules, nil
}

func (s *Store) DeleteRules(_ context.Context, positionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, positionID)
	return nil
}

func (s *Store) PutState(_ context.Context, state model.MonitorState) error {
	if state.PositionID == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.PositionID] = state
	return nil
}

func (s *Store) GetState(_ context.Context, positionID string) (model.MonitorState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[positionID]
	if !ok {
		return model.MonitorState{}, store.ErrNotFound
	}
	return state, nil
}

func (s *Store) DeleteState(_ context.Context, positionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, positionID)
	return nil
}

func (s *Store) ListStates(_ context.Context) ([]model.MonitorState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MonitorState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out, nil
}

func (s *Store) PutConfig(_ context.Context, cfg model.RotationConfig) error {
	if cfg.WalletAddress == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotations[cfg.WalletAddress] = cfg
	return nil
}

func (s *Store) GetConfig(_ context.Context, walletAddress string) (model.RotationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.rotations[walletAddress]
	if !ok {
		return model.RotationConfig{}, store.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) ListEnabledConfigs(_ context.Context) ([]model.RotationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RotationConfig, 0, len(s.rotations))
	for _, cfg := range s.rotations {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WalletAddress < out[j].WalletAddress })
	return out, nil
}

func (s *Store) DeleteConfig(_ context.Context, walletAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rotations, walletAddress)
	return nil
}

func (s *Store) PutSnapshot(_ context.Context, snapshot model.OpportunitySnapshot) error {
	if snapshot.WalletAddress == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.WalletAddress] = append(s.snapshots[snapshot.WalletAddress], snapshot)
	return nil
}

func (s *Store) ListSnapshots(_ context.Context, walletAddress string, limit int) ([]model.OpportunitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.snapshots[walletAddress]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	// newest first
	out := make([]model.OpportunitySnapshot, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
