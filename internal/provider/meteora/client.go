// Package meteora adapts the Meteora DLMM REST API to the provider
// contracts. All bin and position math stays outside this package; it only
// translates wire shapes.
package meteora

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"binscope/internal/model"
	"binscope/internal/provider"
)

const defaultBaseURL = "https://dlmm-api.meteora.ag"

// Config controls the DLMM API client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// RequestsPerSecond caps outbound calls across all concurrent ticks.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the DLMM REST API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
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
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
}

// GetPoolBins fetches one pool's bin table ordered by ascending bin id.
func (c *Client) GetPoolBins(ctx context.Context, poolID string) (model.PoolBinSet, error) {
	if err := checkAddress(poolID); err != nil {
		return model.PoolBinSet{}, err
	}

	var pair pairResponse
	if err := c.getJSON(ctx, "/pair/"+poolID, nil, &pair); err != nil {
		return model.PoolBinSet{}, fmt.Errorf("fetch pair %s: %w", poolID, err)
	}

	var wire []binResponse
	if err := c.getJSON(ctx, "/pair/"+poolID+"/bins", nil, &wire); err != nil {
		return model.PoolBinSet{}, fmt.Errorf("fetch bins %s: %w", poolID, err)
	}

	bins := make([]model.Bin, 0, len(wire))
	for _, b := range wire {
		bins = append(bins, model.Bin{
			ID:           b.BinID,
			Price:        float64(b.Price),
			LiquidityX:   float64(b.AmountX),
			LiquidityY:   float64(b.AmountY),
			LiquidityUsd: float64(b.LiquidityUsd),
		})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].ID < bins[j].ID })

	return model.PoolBinSet{
		PoolID:      poolID,
		MintX:       pair.MintX,
		MintY:       pair.MintY,
		BinStep:     pair.BinStep,
		ActiveBinID: pair.ActiveBinID,
		Bins:        bins,
	}, nil
}

// GetPosition fetches raw position state plus the owning pool's step and
// active bin.
func (c *Client) GetPosition(ctx context.Context, positionID string) (model.PositionData, error) {
	if err := checkAddress(positionID); err != nil {
		return model.PositionData{}, err
	}

	var pos positionResponse
	if err := c.getJSON(ctx, "/position/"+positionID, nil, &pos); err != nil {
		return model.PositionData{}, fmt.Errorf("fetch position %s: %w", positionID, err)
	}

	var pair pairResponse
	if err := c.getJSON(ctx, "/pair/"+pos.PairAddress, nil, &pair); err != nil {
		return model.PositionData{}, fmt.Errorf("fetch pair %s: %w", pos.PairAddress, err)
	}

	return model.PositionData{
		PositionID:  positionID,
		PoolID:      pos.PairAddress,
		MintX:       pair.MintX,
		MintY:       pair.MintY,
		BinStep:     pair.BinStep,
		LowerBinID:  pos.LowerBinID,
		UpperBinID:  pos.UpperBinID,
		ActiveBinID: pair.ActiveBinID,
		AmountX:     float64(pos.TotalXAmount),
		AmountY:     float64(pos.TotalYAmount),
		FeeX:        float64(pos.FeeX),
		FeeY:        float64(pos.FeeY),
	}, nil
}

// ListGroups pages through all token pair groups.
func (c *Client) ListGroups(ctx context.Context) ([]model.PairGroup, error) {
	var groups []model.PairGroup
	for page := 1; ; page++ {
		var resp groupsResponse
		query := url.Values{"page": {fmt.Sprint(page)}, "page_size": {"100"}}
		if err := c.getJSON(ctx, "/pair/groups", query, &resp); err != nil {
			return nil, fmt.Errorf("fetch groups page %d: %w", page, err)
		}
		if len(resp.Data) == 0 {
			break
		}
		for _, g := range resp.Data {
			groups = append(groups, model.PairGroup{
				GroupID:  g.LexicalOrderMints,
				Name:     g.Name,
				TotalTvl: float64(g.TotalTvl),
			})
		}
		if page >= resp.Pages {
			break
		}
	}
	return groups, nil
}

// ListGroupPools pages through the pools of one pair group.
func (c *Client) ListGroupPools(ctx context.Context, groupID string) ([]model.PoolInfo, error) {
	var pools []model.PoolInfo
	for page := 1; ; page++ {
		var resp groupPoolsResponse
		query := url.Values{"page": {fmt.Sprint(page)}, "page_size": {"100"}}
		if err := c.getJSON(ctx, "/pair/groups/"+url.PathEscape(groupID), query, &resp); err != nil {
			return nil, fmt.Errorf("fetch group %s page %d: %w", groupID, page, err)
		}
		if len(resp.Data) == 0 {
			break
		}
		for _, p := range resp.Data {
			pools = append(pools, model.PoolInfo{
				PoolID:       p.Address,
				Name:         p.Name,
				MintX:        p.MintX,
				MintY:        p.MintY,
				BinStep:      p.BinStep,
				LiquidityUsd: float64(p.Liquidity),
				FeesUsd:      float64(p.Fees24h),
				Hidden:       p.Hide,
				Blacklisted:  p.IsBlacklisted,
			})
		}
		if page >= resp.Pages {
			break
		}
	}
	return pools, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return provider.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("dlmm api error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", provider.ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", provider.ErrUnavailable, path, err)
	}
	return nil
}

// checkAddress rejects strings that are not 32-byte base58 account keys
// before they reach the wire.
func checkAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("invalid address %q: %d bytes, want 32", address, len(raw))
	}
	return nil
}
