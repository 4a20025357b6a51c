package models

import "sort"

// TrailingParams параметры трейлинг-стопа в процентах.
type TrailingParams struct {
	ActivationPct float64 `json:"activation_pct"`
	CallbackPct   float64 `json:"callback_pct"`
}

// RiskPreset: набор дефолтов риска для символа.
// Phases: доли доступного баланса на каждую ногу, строго по возрастанию, последняя = 1.0.
type RiskPreset struct {
	Name        string
	Description string
	StopLossPct float64
	Trailing    TrailingParams
	Phases      []float64
}

const (
	PresetSafe       = "safe"
	PresetNormal     = "normal"
	PresetAggressive = "aggressive"
)

var Presets = map[string]RiskPreset{
	PresetSafe: {
		Name:        "🟢 Консервативный",
		Description: "Маленькие ноги, ранний трейлинг",
		StopLossPct: 1.0,
		Trailing:    TrailingParams{ActivationPct: 1.0, CallbackPct: 0.5},
		Phases:      []float64{0.10, 0.25, 0.50, 1.0},
	},
	PresetNormal: {
		Name:        "🟡 Средний",
		Description: "Баланс риска и доходности",
		StopLossPct: 1.5,
		Trailing:    TrailingParams{ActivationPct: 1.5, CallbackPct: 0.8},
		Phases:      []float64{0.25, 0.50, 1.0},
	},
	PresetAggressive: {
		Name:        "🔴 Агрессивный",
		Description: "Крупный вход, широкий стоп",
		StopLossPct: 2.5,
		Trailing:    TrailingParams{ActivationPct: 2.0, CallbackPct: 1.2},
		Phases:      []float64{0.50, 1.0},
	},
}

func LookupPreset(name string) (RiskPreset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for k := range Presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
