package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"signal_trader/internal/models"
)

type symbolFilters = models.SymbolFilters

type exchangeInfo struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Status  string `json:"status"`
		Filters []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
			MinQty     string `json:"minQty"`
		} `json:"filters"`
	} `json:"symbols"`
}

// Filters: tick/step/minQty символа. Кэш на FilterTTL; при ошибке загрузки
// вызывающий сам решает, падать ли на models.FallbackFilters.
func (c *Client) Filters(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	c.mu.RLock()
	f, ok := c.filters[symbol]
	fresh := !c.filtersAt.IsZero() && c.now().Sub(c.filtersAt) < c.cfg.FilterTTL
	c.mu.RUnlock()
	if ok && fresh {
		return f, nil
	}
	if !fresh {
		if err := c.refreshFilters(ctx); err != nil {
			return models.SymbolFilters{}, err
		}
	}

	c.mu.RLock()
	f, ok = c.filters[symbol]
	c.mu.RUnlock()
	if !ok {
		return models.SymbolFilters{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return f, nil
}

func (c *Client) refreshFilters(ctx context.Context) error {
	body, err := c.Call(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, false)
	if err != nil {
		return fmt.Errorf("exchangeInfo: %w", err)
	}
	var info exchangeInfo
	if err := sonic.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("exchangeInfo decode: %w", err)
	}

	out := make(map[string]symbolFilters, len(info.Symbols))
	for _, s := range info.Symbols {
		f := models.SymbolFilters{Symbol: s.Symbol}
		for _, fl := range s.Filters {
			switch fl.FilterType {
			case "PRICE_FILTER":
				f.TickSize = dec(fl.TickSize)
			case "LOT_SIZE", "MARKET_LOT_SIZE":
				// берём более грубый шаг и больший минимум из двух фильтров
				if step := dec(fl.StepSize); step.GreaterThan(f.StepSize) {
					f.StepSize = step
				}
				if minQty := dec(fl.MinQty); minQty.GreaterThan(f.MinQty) {
					f.MinQty = minQty
				}
			}
		}
		out[s.Symbol] = f
	}

	c.mu.Lock()
	c.filters = out
	c.filtersAt = c.now()
	c.mu.Unlock()

	c.log.Info("exchange filters loaded", zap.Int("symbols", len(out)))
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
