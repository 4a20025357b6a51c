package models

import (
	"fmt"
	"time"
)

const (
	MinLeverage = 1
	MaxLeverage = 125
)

// SymbolConfig: итоговый (смерженный с пресетом) вид настроек символа.
type SymbolConfig struct {
	Symbol      string         `json:"symbol"`
	Direction   Direction      `json:"direction"`
	Leverage    int            `json:"leverage"`
	StopLossPct float64        `json:"stop_loss_pct"`
	Trailing    TrailingParams `json:"trailing"`
	RiskPreset  string         `json:"risk_preset"`
	SplitEntry  bool           `json:"split_entry"`
	Legs        int            `json:"legs"`

	// признаки явных оверрайдов поверх пресета
	StopLossOverride   bool `json:"stop_loss_override"`
	ActivationOverride bool `json:"activation_override"`
	CallbackOverride   bool `json:"callback_override"`
}

// SymbolOverrides: то, что реально хранится по символу. nil = брать из пресета.
type SymbolOverrides struct {
	Direction     Direction `json:"direction"`
	Leverage      int       `json:"leverage"`
	RiskPreset    string    `json:"risk_preset"`
	SplitEntry    bool      `json:"split_entry"`
	StopLossPct   *float64  `json:"stop_loss_pct,omitempty"`
	ActivationPct *float64  `json:"activation_pct,omitempty"`
	CallbackPct   *float64  `json:"callback_pct,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SymbolUpdate: частичное обновление. Перечислены все поля, которые можно менять.
type SymbolUpdate struct {
	Direction     *Direction
	Leverage      *int
	StopLossPct   *float64
	ActivationPct *float64
	CallbackPct   *float64
	RiskPreset    *string
	SplitEntry    *bool

	// ClearOverrides сбрасывает SL/трейлинг обратно на значения пресета
	ClearOverrides bool
}

// Validate проверяет обновление целиком, до какой-либо мутации.
func (u SymbolUpdate) Validate() error {
	if u.Direction != nil {
		if _, err := ParseDirection(string(*u.Direction)); err != nil {
			return err
		}
	}
	if u.Leverage != nil && (*u.Leverage < MinLeverage || *u.Leverage > MaxLeverage) {
		return fmt.Errorf("leverage %d out of range [%d, %d]", *u.Leverage, MinLeverage, MaxLeverage)
	}
	if u.StopLossPct != nil && !(*u.StopLossPct > 0 && *u.StopLossPct < 100) {
		return fmt.Errorf("stop-loss pct must be in (0, 100), got %v", *u.StopLossPct)
	}
	if u.ActivationPct != nil && !(*u.ActivationPct > 0 && *u.ActivationPct < 100) {
		return fmt.Errorf("activation pct must be in (0, 100), got %v", *u.ActivationPct)
	}
	if u.CallbackPct != nil && !(*u.CallbackPct > 0 && *u.CallbackPct < 100) {
		return fmt.Errorf("callback pct must be in (0, 100), got %v", *u.CallbackPct)
	}
	if u.RiskPreset != nil {
		if _, ok := LookupPreset(*u.RiskPreset); !ok {
			return fmt.Errorf("unknown risk preset %q", *u.RiskPreset)
		}
	}
	return nil
}

// Apply мержит обновление в оверрайды. Вызывать только после Validate.
func (o *SymbolOverrides) Apply(u SymbolUpdate) {
	if u.ClearOverrides {
		o.StopLossPct, o.ActivationPct, o.CallbackPct = nil, nil, nil
	}
	if u.Direction != nil {
		o.Direction = *u.Direction
	}
	if u.Leverage != nil {
		o.Leverage = *u.Leverage
	}
	if u.RiskPreset != nil {
		o.RiskPreset = *u.RiskPreset
	}
	if u.SplitEntry != nil {
		o.SplitEntry = *u.SplitEntry
	}
	if u.StopLossPct != nil {
		v := *u.StopLossPct
		o.StopLossPct = &v
	}
	if u.ActivationPct != nil {
		v := *u.ActivationPct
		o.ActivationPct = &v
	}
	if u.CallbackPct != nil {
		v := *u.CallbackPct
		o.CallbackPct = &v
	}
}

// EffectiveParams: единственный read-path для сайзинга и ордеров.
type EffectiveParams struct {
	Symbol      string
	StopLossPct float64
	Trailing    TrailingParams
	Phases      []float64
	Leverage    int
	Direction   Direction
	Legs        int
	RiskPreset  string
	SplitEntry  bool
}
