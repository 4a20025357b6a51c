package helper

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT.P":         "BTCUSDT",
		"btcusdt":           "BTCUSDT",
		"BINANCE:ETHUSDT.P": "ETHUSDT",
		" sol-usdt ":        "SOLUSDT",
		"XRPUSDT_PERP":      "XRPUSDT",
		"1000PEPEUSDT.PERP": "1000PEPEUSDT",
		"BTCUSDT.P.P":       "BTCUSDTP",
	}
	for in, want := range cases {
		got := NormalizeSymbol(in)
		require.Equal(t, want, got, in)
		require.Equal(t, got, NormalizeSymbol(got), "idempotent for %q", in)
	}
}

func TestNormTF(t *testing.T) {
	require.Equal(t, "1h", NormTF("60m"))
	require.Equal(t, "15m", NormTF("15min"))
	require.Equal(t, "4h", NormTF("4H"))
	require.Equal(t, "5m", NormTF("candle5m"))
}

func TestQuantizeQty(t *testing.T) {
	step, minQty := d("0.001"), d("0.002")

	require.Equal(t, "0.05", QuantizeQty(d("0.05"), step, minQty).String())
	require.Equal(t, "0.123", QuantizeQty(d("0.1239"), step, minQty).String())
	require.Equal(t, "0.002", QuantizeQty(d("0.0011"), step, minQty).String())

	// свойство: кратно шагу и не меньше минимума
	for _, raw := range []string{"0.0000001", "0.0019", "1.23456789", "999.9999", "3"} {
		q := QuantizeQty(d(raw), step, minQty)
		require.True(t, q.Mod(step).IsZero(), raw)
		require.False(t, q.LessThan(minQty), raw)
	}

	require.True(t, QuantizeQty(d("1"), decimal.Zero, decimal.Zero).IsZero())
	require.Equal(t, "5", QuantizeQty(d("2"), decimal.Zero, d("5")).String())
	require.Equal(t, "2", QuantizeQty(d("2.7"), d("1"), decimal.Zero).String())
}

func TestQuantizeQtyMinNotMultipleOfStep(t *testing.T) {
	q := QuantizeQty(d("0.001"), d("0.01"), d("0.015"))
	require.Equal(t, "0.02", q.String())
}

func TestQuantizePrice(t *testing.T) {
	require.Equal(t, "49500.00", QuantizePrice(d("49500"), d("0.10").Div(d("10"))))
	require.Equal(t, "49500.1", QuantizePrice(d("49500.19"), d("0.1")))
	require.Equal(t, "0.00001234", QuantizePrice(d("0.0000123456"), d("0.00000001")))
	require.Equal(t, "120", QuantizePrice(d("129.9"), d("10")))
	require.Equal(t, "1.2340", QuantizePrice(d("1.23409"), d("0.0001000")))
}

func TestQuantizePriceUp(t *testing.T) {
	require.Equal(t, "50500.00", QuantizePriceUp(d("50500"), d("0.01")))
	require.Equal(t, "49500.2", QuantizePriceUp(d("49500.11"), d("0.1")))
	require.Equal(t, "130", QuantizePriceUp(d("120.1"), d("10")))
}

func TestDecimals(t *testing.T) {
	require.Equal(t, int32(2), Decimals(d("0.0100")))
	require.Equal(t, int32(0), Decimals(d("1")))
	require.Equal(t, int32(8), Decimals(d("0.00000001")))
}
