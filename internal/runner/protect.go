package runner

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
)

// допустимый диапазон callbackRate у Binance, в процентах
const (
	MinCallbackRate = 0.1
	MaxCallbackRate = 5.0
)

// символ в client order id режем, чтобы влезть в 36 символов
const maxSymbolInID = 16

// Protection: цены защитных ордеров, уже выровненные по тику.
type Protection struct {
	StopPrice       string
	ActivationPrice string
	CallbackRate    decimal.Decimal
}

// Protect считает стоп и активацию трейлинга как entry * (1 ∓ max(pct, gap)/100).
// Для long цена ниже входа и округляется вниз, для short выше и вверх.
func Protect(side models.PositionSide, entry float64, p models.EffectiveParams, minStopGap, minTrailGap float64, tick decimal.Decimal) Protection {
	return Protection{
		StopPrice:       offsetPrice(side, entry, p.StopLossPct, minStopGap, tick),
		ActivationPrice: offsetPrice(side, entry, p.Trailing.ActivationPct, minTrailGap, tick),
		CallbackRate:    ClampCallback(p.Trailing.CallbackPct),
	}
}

func offsetPrice(side models.PositionSide, entry, pct, gap float64, tick decimal.Decimal) string {
	pct = math.Max(pct, gap)
	e := decimal.NewFromFloat(entry)
	k := decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100))

	if side == models.PositionShort {
		return helper.QuantizePriceUp(e.Mul(decimal.NewFromInt(1).Add(k)), tick)
	}
	return helper.QuantizePrice(e.Mul(decimal.NewFromInt(1).Sub(k)), tick)
}

// ClampCallback: шаг биржи 0.1, диапазон [0.1, 5].
func ClampCallback(pct float64) decimal.Decimal {
	cb := decimal.NewFromFloat(pct).Round(1)
	lo, hi := decimal.NewFromFloat(MinCallbackRate), decimal.NewFromFloat(MaxCallbackRate)
	if cb.LessThan(lo) {
		return lo
	}
	if cb.GreaterThan(hi) {
		return hi
	}
	return cb
}

// ClientOrderID вида SYMBOL-OL-1700000000000, защитные ордера получают суффикс -sl/-ts.
func ClientOrderID(symbol string, a models.Action, at time.Time, suffix string) string {
	if len(symbol) > maxSymbolInID {
		symbol = symbol[:maxSymbolInID]
	}
	id := fmt.Sprintf("%s-%s-%d", symbol, a.Short(), at.UnixMilli())
	if suffix != "" {
		id += "-" + suffix
	}
	return id
}
