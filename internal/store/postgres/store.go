// Package postgres backs the engine stores with Postgres via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"binscope/internal/model"
	"binscope/internal/store"
)

// Store implements store.RuleStore, store.StateStore, and
// store.RotationStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutRules upserts a position's rule set. Rules are stored as JSONB so rule
// schema additions do not need migrations.
func (s *Store) PutRules(ctx context.Context, rules model.AutomationRules) error {
	if rules.PositionID == "" {
		return store.ErrInvalidInput
	}
	body, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO automation_rules (position_id, rules, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (position_id) DO UPDATE
		SET rules = EXCLUDED.rules, updated_at = now()
	`, rules.PositionID, body)
	return err
}

func (s *Store) GetRules(ctx context.Context, positionID string) (model.AutomationRules, error) {
	var body []byte
	row := s.pool.QueryRow(ctx, `SELECT rules FROM automation_rules WHERE position_id=$1`, positionID)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AutomationRules{}, store.ErrNotFound
		}
		return model.AutomationRules{}, err
	}
	var rules model.AutomationRules
	if err := json.Unmarshal(body, &rules); err != nil {
		return model.AutomationRules{}, fmt.Errorf("unmarshal rules: %w", err)
	}
	return rules, nil
}

func (s *Store) DeleteRules(ctx context.Context, positionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM automation_rules WHERE position_id=$1`, positionID)
	return err
}

func (s *Store) PutState(ctx context.Context, state model.MonitorState) error {
	if state.PositionID == "" {
		return store.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO monitor_state (
			position_id, enrolled_at, last_action_at, last_action, last_compound_at,
			consecutive_failures, degraded, initial_value_usd, range_center_price, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		ON CONFLICT (position_id) DO UPDATE SET
			last_action_at = EXCLUDED.last_action_at,
			last_action = EXCLUDED.last_action,
			last_compound_at = EXCLUDED.last_compound_at,
			consecutive_failures = EXCLUDED.consecutive_failures,
			degraded = EXCLUDED.degraded,
			initial_value_usd = EXCLUDED.initial_value_usd,
			range_center_price = EXCLUDED.range_center_price,
			updated_at = now()
	`,
		state.PositionID,
		state.EnrolledAt,
		state.LastActionAt,
		string(state.LastAction),
		state.LastCompoundAt,
		state.ConsecutiveFailureCount,
		state.Degraded,
		state.InitialValueUsd,
		state.RangeCenterPrice,
	)
	return err
}

func (s *Store) GetState(ctx context.Context, positionID string) (model.MonitorState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT position_id, enrolled_at, last_action_at, last_action, last_compound_at,
		       consecutive_failures, degraded, initial_value_usd, range_center_price
		FROM monitor_state WHERE position_id=$1
	`, positionID)
	state, err := scanState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.MonitorState{}, store.ErrNotFound
		}
		return model.MonitorState{}, err
	}
	return state, nil
}

func (s *Store) DeleteState(ctx context.Context, positionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM monitor_state WHERE position_id=$1`, positionID)
	return err
}

func (s *Store) ListStates(ctx context.Context) ([]model.MonitorState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT position_id, enrolled_at, last_action_at, last_action, last_compound_at,
		       consecutive_failures, degraded, initial_value_usd, range_center_price
		FROM monitor_state ORDER BY position_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MonitorState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

func scanState(row pgx.Row) (model.MonitorState, error) {
	var state model.MonitorState
	var lastAction string
	err := row.Scan(
		&state.PositionID,
		&state.EnrolledAt,
		&state.LastActionAt,
		&lastAction,
		&state.LastCompoundAt,
		&state.ConsecutiveFailureCount,
		&state.Degraded,
		&state.InitialValueUsd,
		&state.RangeCenterPrice,
	)
	if err != nil {
		return model.MonitorState{}, err
	}
	state.LastAction = model.Action(lastAction)
	return state, nil
}

func (s *Store) PutConfig(ctx context.Context, cfg model.RotationConfig) error {
	if cfg.WalletAddress == "" {
		return store.ErrInvalidInput
	}
	whitelist, err := json.Marshal(cfg.Whitelist)
	if err != nil {
		return err
	}
	quotes, err := json.Marshal(cfg.QuoteMints)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rotation_configs (
			wallet_address, enabled, interval_minutes, threshold_multiplier,
			whitelist, quote_mints, min_fees_usd, last_check, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (wallet_address) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			interval_minutes = EXCLUDED.interval_minutes,
			threshold_multiplier = EXCLUDED.threshold_multiplier,
			whitelist = EXCLUDED.whitelist,
			quote_mints = EXCLUDED.quote_mints,
			min_fees_usd = EXCLUDED.min_fees_usd,
			last_check = EXCLUDED.last_check,
			updated_at = now()
	`,
		cfg.WalletAddress,
		cfg.Enabled,
		cfg.IntervalMinutes,
		cfg.ThresholdMultiplier,
		whitelist,
		quotes,
		cfg.MinFeesUsd,
		cfg.LastCheck,
	)
	return err
}

func (s *Store) GetConfig(ctx context.Context, walletAddress string) (model.RotationConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT wallet_address, enabled, interval_minutes, threshold_multiplier,
		       whitelist, quote_mints, min_fees_usd, last_check
		FROM rotation_configs WHERE wallet_address=$1
	`, walletAddress)
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RotationConfig{}, store.ErrNotFound
		}
		return model.RotationConfig{}, err
	}
	return cfg, nil
}

func (s *Store) ListEnabledConfigs(ctx context.Context) ([]model.RotationConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet_address, enabled, interval_minutes, threshold_multiplier,
		       whitelist, quote_mints, min_fees_usd, last_check
		FROM rotation_configs WHERE enabled ORDER BY wallet_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RotationConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func scanConfig(row pgx.Row) (model.RotationConfig, error) {
	var cfg model.RotationConfig
	var whitelist, quotes []byte
	err := row.Scan(
		&cfg.WalletAddress,
		&cfg.Enabled,
		&cfg.IntervalMinutes,
		&cfg.ThresholdMultiplier,
		&whitelist,
		&quotes,
		&cfg.MinFeesUsd,
		&cfg.LastCheck,
	)
	if err != nil {
		return model.RotationConfig{}, err
	}
	if err := json.Unmarshal(whitelist, &cfg.Whitelist); err != nil {
		return model.RotationConfig{}, fmt.Errorf("unmarshal whitelist: %w", err)
	}
	if err := json.Unmarshal(quotes, &cfg.QuoteMints); err != nil {
		return model.RotationConfig{}, fmt.Errorf("unmarshal quote mints: %w", err)
	}
	return cfg, nil
}

func (s *Store) DeleteConfig(ctx context.Context, walletAddress string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rotation_configs WHERE wallet_address=$1`, walletAddress)
	return err
}

func (s *Store) PutSnapshot(ctx context.Context, snapshot model.OpportunitySnapshot) error {
	if snapshot.WalletAddress == "" {
		return store.ErrInvalidInput
	}
	body, err := json.Marshal(snapshot.Opportunities)
	if err != nil {
		return fmt.Errorf("marshal opportunities: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO opportunity_snapshots (wallet_address, opportunities, created_at)
		VALUES ($1, $2, $3)
	`, snapshot.WalletAddress, body, snapshot.CreatedAt)
	return err
}

func (s *Store) ListSnapshots(ctx context.Context, walletAddress string, limit int) ([]model.OpportunitySnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT wallet_address, opportunities, created_at
		FROM opportunity_snapshots
		WHERE wallet_address=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, walletAddress, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OpportunitySnapshot
	for rows.Next() {
		var snap model.OpportunitySnapshot
		var body []byte
		if err := rows.Scan(&snap.WalletAddress, &body, &snap.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &snap.Opportunities); err != nil {
			return nil, fmt.Errorf("unmarshal opportunities: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
