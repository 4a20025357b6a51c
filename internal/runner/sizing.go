package runner

import (
	"errors"

	"github.com/shopspring/decimal"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
)

var (
	ErrLegsExhausted      = errors.New("all entry legs are used")
	ErrNoAvailableBalance = errors.New("no available balance")
	ErrBadMarkPrice       = errors.New("mark price <= 0")
	ErrZeroQuantity       = errors.New("quantity rounds to zero")
)

// Phase доля баланса на следующую ногу. Без split entry берём весь баланс.
func Phase(p models.EffectiveParams) (float64, error) {
	if !p.SplitEntry {
		return 1.0, nil
	}
	if p.Legs < 0 || p.Legs >= len(p.Phases) {
		return 0, ErrLegsExhausted
	}
	return p.Phases[p.Legs], nil
}

// CalcOrderSize: margin = balance * phase, qty = margin * leverage / mark,
// вниз до шага лота и не меньше minQty.
func CalcOrderSize(p models.EffectiveParams, balance, mark float64, f models.SymbolFilters) (decimal.Decimal, float64, error) {
	phase, err := Phase(p)
	if err != nil {
		return decimal.Zero, 0, err
	}
	if mark <= 0 {
		return decimal.Zero, phase, ErrBadMarkPrice
	}

	margin := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(phase))
	if !margin.IsPositive() {
		return decimal.Zero, phase, ErrNoAvailableBalance
	}

	lev := p.Leverage
	if lev < models.MinLeverage {
		lev = models.MinLeverage
	}
	raw := margin.Mul(decimal.NewFromInt(int64(lev))).Div(decimal.NewFromFloat(mark))

	qty := helper.QuantizeQty(raw, f.StepSize, f.MinQty)
	if !qty.IsPositive() {
		return decimal.Zero, phase, ErrZeroQuantity
	}
	return qty, phase, nil
}

// CloseSize минимальный объём для reduce-only закрытия.
func CloseSize(f models.SymbolFilters) (decimal.Decimal, error) {
	qty := helper.QuantizeQty(decimal.Zero, f.StepSize, f.MinQty)
	if !qty.IsPositive() {
		return decimal.Zero, ErrZeroQuantity
	}
	return qty, nil
}
