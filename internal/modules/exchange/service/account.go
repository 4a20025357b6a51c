package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

type balanceRow struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

// AvailableBalance: свободная маржа в MarginAsset (обычно USDT).
func (c *Client) AvailableBalance(ctx context.Context) (float64, error) {
	body, err := c.Call(ctx, http.MethodGet, "/fapi/v2/balance", nil, true)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	var rows []balanceRow
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("balance decode: %w", err)
	}
	for _, r := range rows {
		if r.Asset != c.cfg.MarginAsset {
			continue
		}
		v, err := strconv.ParseFloat(r.AvailableBalance, 64)
		if err != nil {
			return 0, fmt.Errorf("balance %s: bad value %q", r.Asset, r.AvailableBalance)
		}
		return v, nil
	}
	return 0, nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	if _, err := c.Call(ctx, http.MethodPost, "/fapi/v1/leverage", params, true); err != nil {
		return fmt.Errorf("set leverage %s x%d: %w", symbol, leverage, err)
	}
	c.log.Debug("leverage set", zap.String("symbol", symbol), zap.Int("leverage", leverage))
	return nil
}
