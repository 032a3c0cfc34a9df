// Package jupiter resolves token USD prices through the Jupiter price API.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"binscope/internal/provider"
)

const defaultBaseURL = "https://api.jup.ag/price/v2"

// Config controls the price client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client fetches USD prices. Mints the API does not price are simply absent
// from the result; callers treat that as partial data.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger,
	}
}

type priceResponse struct {
	Data map[string]struct {
		Price string `json:"price"`
	} `json:"data"`
}

// UsdPrices returns USD prices for the given mints. Missing or unparseable
// prices are omitted from the map rather than reported as errors.
func (c *Client) UsdPrices(ctx context.Context, mints ...string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}

	query := url.Values{"ids": {strings.Join(mints, ",")}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", provider.ErrUnavailable, resp.StatusCode)
	}

	var parsed priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode prices: %v", provider.ErrUnavailable, err)
	}

	prices := make(map[string]float64, len(parsed.Data))
	for mint, entry := range parsed.Data {
		value, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil || value <= 0 {
			c.logger.Debug("unpriced mint", zap.String("mint", mint))
			continue
		}
		prices[mint] = value
	}
	return prices, nil
}
