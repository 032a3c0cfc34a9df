package meteora

import (
	"bytes"
	"strconv"
)

// looseFloat tolerates the API's habit of returning numerics as either JSON
// numbers or quoted strings.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	val, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = looseFloat(val)
	return nil
}

type pairResponse struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	MintX       string `json:"mint_x"`
	MintY       string `json:"mint_y"`
	BinStep     uint16 `json:"bin_step"`
	ActiveBinID int32  `json:"active_bin_id"`
}

type binResponse struct {
	BinID        int32      `json:"bin_id"`
	Price        looseFloat `json:"price"`
	AmountX      looseFloat `json:"amount_x"`
	AmountY      looseFloat `json:"amount_y"`
	LiquidityUsd looseFloat `json:"liquidity_usd"`
}

type positionResponse struct {
	Address      string     `json:"address"`
	PairAddress  string     `json:"pair_address"`
	LowerBinID   int32      `json:"lower_bin_id"`
	UpperBinID   int32      `json:"upper_bin_id"`
	TotalXAmount looseFloat `json:"total_x_amount"`
	TotalYAmount looseFloat `json:"total_y_amount"`
	FeeX         looseFloat `json:"fee_x"`
	FeeY         looseFloat `json:"fee_y"`
}

type groupsResponse struct {
	Data  []groupEntry `json:"data"`
	Pages int          `json:"pages"`
}

type groupEntry struct {
	LexicalOrderMints string     `json:"lexical_order_mints"`
	Name              string     `json:"name"`
	TotalTvl          looseFloat `json:"total_tvl"`
}

type groupPoolsResponse struct {
	Data  []poolEntry `json:"data"`
	Pages int         `json:"pages"`
}

type poolEntry struct {
	Address       string     `json:"address"`
	Name          string     `json:"name"`
	MintX         string     `json:"mint_x"`
	MintY         string     `json:"mint_y"`
	BinStep       uint16     `json:"bin_step"`
	Liquidity     looseFloat `json:"liquidity"`
	Fees24h       looseFloat `json:"fees_24h"`
	Hide          bool       `json:"hide"`
	IsBlacklisted bool       `json:"is_blacklisted"`
}
