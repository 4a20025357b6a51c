package service

import (
	"fmt"
	"strings"

	"signal_trader/internal/models"
)

func formatSymbol(cfg models.SymbolConfig, global models.GlobalMode) string {
	p, _ := models.LookupPreset(cfg.RiskPreset)
	var b strings.Builder
	fmt.Fprintf(&b, "⚙️ %s\n\n", cfg.Symbol)
	fmt.Fprintf(&b, "Пресет: %s %s\n", cfg.RiskPreset, p.Name)
	fmt.Fprintf(&b, "Направление: %s (глобально %s)\n", cfg.Direction, global)
	fmt.Fprintf(&b, "Плечо: %dx\n", cfg.Leverage)
	fmt.Fprintf(&b, "Stop: %s%%%s\n", f2(cfg.StopLossPct), mark(cfg.StopLossOverride))
	fmt.Fprintf(&b, "Trailing: act %s%%%s / cb %s%%%s\n",
		f2(cfg.Trailing.ActivationPct), mark(cfg.ActivationOverride),
		f2(cfg.Trailing.CallbackPct), mark(cfg.CallbackOverride))
	fmt.Fprintf(&b, "Split entry: %s, ноги %d/%d %s", onOff(cfg.SplitEntry), cfg.Legs, len(p.Phases), formatPhases(p.Phases))
	return b.String()
}

func formatPhases(phases []float64) string {
	parts := make([]string, 0, len(phases))
	for _, ph := range phases {
		parts = append(parts, fmt.Sprintf("%g%%", ph*100))
	}
	return "[" + strings.Join(parts, " → ") + "]"
}

// звёздочка у явного оверрайда поверх пресета
func mark(override bool) string {
	if override {
		return " *"
	}
	return ""
}

func onOff(v bool) string {
	if v {
		return "вкл"
	}
	return "выкл"
}

func f2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
