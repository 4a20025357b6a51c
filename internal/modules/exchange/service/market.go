package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
)

// MarkPrice: сначала кэш вебсокета, потом REST premiumIndex.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	if c.marks != nil {
		if p, ok := c.marks.Price(symbol); ok {
			return p, nil
		}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.Call(ctx, http.MethodGet, "/fapi/v1/premiumIndex", params, false)
	if err != nil {
		return 0, fmt.Errorf("premiumIndex %s: %w", symbol, err)
	}
	var resp struct {
		Symbol    string `json:"symbol"`
		MarkPrice string `json:"markPrice"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("premiumIndex decode: %w", err)
	}
	p, err := strconv.ParseFloat(resp.MarkPrice, 64)
	if err != nil || p <= 0 {
		return 0, fmt.Errorf("premiumIndex %s: bad mark price %q", symbol, resp.MarkPrice)
	}
	return p, nil
}
