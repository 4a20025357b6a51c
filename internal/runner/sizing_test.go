package runner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"signal_trader/internal/models"
)

func btcFilters() models.SymbolFilters {
	return models.SymbolFilters{
		Symbol:   "BTCUSDT",
		TickSize: decimal.RequireFromString("0.1"),
		StepSize: decimal.RequireFromString("0.001"),
		MinQty:   decimal.RequireFromString("0.001"),
	}
}

func normalParams() models.EffectiveParams {
	p := models.Presets[models.PresetNormal]
	return models.EffectiveParams{
		Symbol:      "BTCUSDT",
		StopLossPct: p.StopLossPct,
		Trailing:    p.Trailing,
		Phases:      p.Phases,
		Leverage:    10,
		Direction:   models.DirectionBoth,
		RiskPreset:  models.PresetNormal,
		SplitEntry:  true,
	}
}

func TestCalcOrderSizeFirstLeg(t *testing.T) {
	qty, phase, err := CalcOrderSize(normalParams(), 1000, 50000, btcFilters())
	require.NoError(t, err)
	require.Equal(t, 0.25, phase)
	require.Equal(t, "0.05", qty.String())
}

func TestCalcOrderSizeLegs(t *testing.T) {
	p := normalParams()

	p.Legs = 1
	qty, phase, err := CalcOrderSize(p, 1000, 50000, btcFilters())
	require.NoError(t, err)
	require.Equal(t, 0.5, phase)
	require.Equal(t, "0.1", qty.String())

	p.Legs = 3
	_, _, err = CalcOrderSize(p, 1000, 50000, btcFilters())
	require.ErrorIs(t, err, ErrLegsExhausted)

	p.SplitEntry = false
	qty, phase, err = CalcOrderSize(p, 1000, 50000, btcFilters())
	require.NoError(t, err)
	require.Equal(t, 1.0, phase)
	require.Equal(t, "0.2", qty.String())
}

func TestCalcOrderSizeErrors(t *testing.T) {
	_, _, err := CalcOrderSize(normalParams(), 0, 50000, btcFilters())
	require.ErrorIs(t, err, ErrNoAvailableBalance)

	_, _, err = CalcOrderSize(normalParams(), -5, 50000, btcFilters())
	require.ErrorIs(t, err, ErrNoAvailableBalance)

	_, _, err = CalcOrderSize(normalParams(), 1000, 0, btcFilters())
	require.ErrorIs(t, err, ErrBadMarkPrice)

	_, _, err = CalcOrderSize(normalParams(), 1000, 50000, models.SymbolFilters{})
	require.ErrorIs(t, err, ErrZeroQuantity)
}

func TestCalcOrderSizeRespectsStepAndMin(t *testing.T) {
	f := btcFilters()
	f.MinQty = decimal.RequireFromString("0.01")

	// 10 * 0.25 * 10 / 50000 = 0.0005 -> поднимается до minQty
	qty, _, err := CalcOrderSize(normalParams(), 10, 50000, f)
	require.NoError(t, err)
	require.Equal(t, "0.01", qty.String())

	// 1234 * 0.25 * 10 / 50000 = 0.0617 -> вниз до шага
	qty, _, err = CalcOrderSize(normalParams(), 1234, 50000, f)
	require.NoError(t, err)
	require.Equal(t, "0.061", qty.String())
	require.True(t, qty.Mod(f.StepSize).IsZero())
}

func TestCloseSize(t *testing.T) {
	qty, err := CloseSize(btcFilters())
	require.NoError(t, err)
	require.Equal(t, "0.001", qty.String())

	_, err = CloseSize(models.SymbolFilters{})
	require.ErrorIs(t, err, ErrZeroQuantity)
}

func TestProtectLong(t *testing.T) {
	p := normalParams()
	p.StopLossPct = 1.0
	p.Trailing = models.TrailingParams{ActivationPct: 1.0, CallbackPct: 0.8}

	pr := Protect(models.PositionLong, 50000, p, 1.0, 1.0, decimal.RequireFromString("0.1"))
	require.Equal(t, "49500.0", pr.StopPrice)
	require.Equal(t, "49500.0", pr.ActivationPrice)
	require.Equal(t, "0.8", pr.CallbackRate.String())
}

func TestProtectMinGap(t *testing.T) {
	p := normalParams()
	p.StopLossPct = 0.2
	p.Trailing.ActivationPct = 0.3

	pr := Protect(models.PositionLong, 50000, p, 1.0, 2.0, decimal.RequireFromString("0.1"))
	require.Equal(t, "49500.0", pr.StopPrice)
	require.Equal(t, "49000.0", pr.ActivationPrice)
}

func TestProtectShortRoundsAway(t *testing.T) {
	p := normalParams()
	p.StopLossPct = 1.0
	p.Trailing.ActivationPct = 1.0

	pr := Protect(models.PositionShort, 123.456, p, 0, 0, decimal.RequireFromString("0.01"))
	// 123.456 * 1.01 = 124.69056
	require.Equal(t, "124.70", pr.StopPrice)
	require.Equal(t, "124.70", pr.ActivationPrice)

	pr = Protect(models.PositionLong, 123.456, p, 0, 0, decimal.RequireFromString("0.01"))
	// 123.456 * 0.99 = 122.22144
	require.Equal(t, "122.22", pr.StopPrice)
}

func TestClampCallback(t *testing.T) {
	require.Equal(t, "0.1", ClampCallback(0.01).String())
	require.Equal(t, "5", ClampCallback(12).String())
	require.Equal(t, "1.2", ClampCallback(1.2).String())
	require.Equal(t, "0.5", ClampCallback(0.46).String())
}

func TestClientOrderID(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	require.Equal(t, "BTCUSDT-OL-1700000000000", ClientOrderID("BTCUSDT", models.ActionOpenLong, at, ""))
	require.Equal(t, "BTCUSDT-OS-1700000000000-sl", ClientOrderID("BTCUSDT", models.ActionOpenShort, at, "sl"))

	id := ClientOrderID("1000000SHIBAINUUSDT", models.ActionCloseLong, at, "ts")
	require.Equal(t, "1000000SHIBAINUU-CL-1700000000000-ts", id)
	require.LessOrEqual(t, len(id), 36)
}
