// Package execd submits corrective actions to the transaction builder
// sidecar, the only component that holds signing keys. The engine itself
// never constructs or signs transactions.
package execd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"binscope/internal/model"
	"binscope/internal/provider"
)

// Config controls the execution client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client posts one action per call. Retrying is the monitor's concern: a
// failed submission is simply reported and the next tick re-evaluates.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("executor base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger,
	}, nil
}

type executeRequest struct {
	Action     string `json:"action"`
	PositionID string `json:"position_id"`
}

type executeResponse struct {
	Success bool   `json:"success"`
	TxRef   string `json:"tx_ref"`
	Reason  string `json:"reason"`
}

// Execute submits the action and waits for the sidecar's confirmation.
func (c *Client) Execute(ctx context.Context, action model.Action, positionID string) (provider.Receipt, error) {
	if !action.Valid() || action == model.ActionNone {
		return provider.Receipt{}, fmt.Errorf("action %q is not executable", action)
	}

	body, err := json.Marshal(executeRequest{Action: string(action), PositionID: positionID})
	if err != nil {
		return provider.Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return provider.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.Receipt{}, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.Receipt{}, fmt.Errorf("%w: status %d", provider.ErrUnavailable, resp.StatusCode)
	}

	var parsed executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return provider.Receipt{}, fmt.Errorf("%w: decode response: %v", provider.ErrUnavailable, err)
	}
	if !parsed.Success {
		return provider.Receipt{}, fmt.Errorf("execution rejected: %s", parsed.Reason)
	}

	c.logger.Info("action executed",
		zap.String("action", string(action)),
		zap.String("position", positionID),
		zap.String("tx_ref", parsed.TxRef),
	)
	return provider.Receipt{TxRef: parsed.TxRef}, nil
}
