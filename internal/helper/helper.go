package helper

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// суффиксы бессрочных контрактов, снимаем ровно один
var perpSuffixes = []string{".PERP", "-PERP", "_PERP", ".P"}

// NormalizeSymbol приводит тикер из TradingView к виду биржи: BINANCE:BTCUSDT.P -> BTCUSDT.
// Идемпотентна: после первого прохода в строке не остаётся разделителей.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	for _, suf := range perpSuffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}

// NormTF сводит токен таймфрейма к короткому виду.
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, "in") // 15min -> 15m
	switch s {
	case "60m", "1h", "60":
		return "1h"
	case "240m", "4h", "240":
		return "4h"
	case "1440m", "24h", "1d", "d":
		return "1d"
	case "1w", "w", "7d":
		return "1w"
	default:
		return s
	}
}

// FloorToStep округляет вниз до кратного step. step <= 0 возвращает значение как есть.
func FloorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// QuantizeQty: вниз до lot step, потом не меньше minQty.
// Ноль только если и step, и min непригодны.
func QuantizeQty(raw, step, minQty decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() && !minQty.IsPositive() {
		return decimal.Zero
	}
	if !raw.IsPositive() {
		if minQty.IsPositive() {
			return minQty
		}
		return step
	}
	q := FloorToStep(raw, step)
	if minQty.IsPositive() && q.LessThan(minQty) {
		// minQty может быть не кратен шагу у кривых фильтров, поднимаем вверх до шага
		q = minQty
		if step.IsPositive() && !q.Mod(step).IsZero() {
			q = q.Div(step).Ceil().Mul(step)
		}
	}
	if !q.IsPositive() && step.IsPositive() {
		q = step
	}
	return q
}

// Decimals количество знаков после запятой, которое задаёт шаг (0.0100 -> 2).
func Decimals(step decimal.Decimal) int32 {
	s := step.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return int32(len(s) - i - 1)
}

// QuantizePrice вниз до тика, строка ровно с количеством знаков тика.
func QuantizePrice(raw, tick decimal.Decimal) string {
	if !tick.IsPositive() {
		return raw.String()
	}
	return FloorToStep(raw, tick).StringFixed(Decimals(tick))
}

// FormatQty печатает количество с точностью шага лота.
func FormatQty(q, step decimal.Decimal) string {
	if !step.IsPositive() {
		return q.String()
	}
	return q.StringFixed(Decimals(step))
}

// QuantizePriceUp вверх до тика. Для стопов шорта, чтобы не уехать к цене входа.
func QuantizePriceUp(raw, tick decimal.Decimal) string {
	if !tick.IsPositive() {
		return raw.String()
	}
	return raw.Div(tick).Ceil().Mul(tick).StringFixed(Decimals(tick))
}
