package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
)

var ErrEmptySymbol = errors.New("empty symbol")

// Repository хранит оверрайды символов. Ноги (legs) сюда не попадают.
type Repository interface {
	LoadAll(ctx context.Context) (map[string]models.SymbolOverrides, error)
	Upsert(ctx context.Context, symbol string, o models.SymbolOverrides) error
}

// Defaults: с чем создаётся символ при первом обращении.
type Defaults struct {
	Preset     string
	Leverage   int
	Direction  models.Direction
	SplitEntry bool
	GlobalMode models.GlobalMode
}

type entry struct {
	overrides models.SymbolOverrides
	legs      int
}

// Store хранит настройки риска по символам под одним мьютексом.
type Store struct {
	defaults Defaults
	repo     Repository
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	symbols map[string]*entry
	global  models.GlobalMode
}

func NewStore(d Defaults, repo Repository, log *zap.Logger) *Store {
	if _, ok := models.LookupPreset(d.Preset); !ok {
		d.Preset = models.PresetNormal
	}
	if d.Leverage < models.MinLeverage || d.Leverage > models.MaxLeverage {
		d.Leverage = 10
	}
	if d.Direction == "" {
		d.Direction = models.DirectionBoth
	}
	if d.GlobalMode == "" {
		d.GlobalMode = models.GlobalBoth
	}
	return &Store{
		defaults: d,
		repo:     repo,
		log:      log.Named("settings"),
		now:      time.Now,
		symbols:  make(map[string]*entry),
		global:   d.GlobalMode,
	}
}

// Load поднимает сохранённые оверрайды. Без репозитория ничего не делает.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	saved, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load symbol settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, o := range saved {
		key := helper.NormalizeSymbol(sym)
		if key == "" {
			continue
		}
		if _, ok := models.LookupPreset(o.RiskPreset); !ok {
			s.log.Warn("stored preset unknown, using default", zap.String("symbol", key), zap.String("preset", o.RiskPreset))
			o.RiskPreset = s.defaults.Preset
		}
		if o.Direction == "" {
			o.Direction = s.defaults.Direction
		}
		if o.Leverage < models.MinLeverage || o.Leverage > models.MaxLeverage {
			o.Leverage = s.defaults.Leverage
		}
		s.symbols[key] = &entry{overrides: o}
	}
	s.log.Info("symbol settings loaded", zap.Int("symbols", len(saved)))
	return nil
}

func (s *Store) defaultOverrides() models.SymbolOverrides {
	return models.SymbolOverrides{
		Direction:  s.defaults.Direction,
		Leverage:   s.defaults.Leverage,
		RiskPreset: s.defaults.Preset,
		SplitEntry: s.defaults.SplitEntry,
	}
}

// viewLocked: запись символа или дефолты без вставки в карту.
// Чтение не должно заводить символ: его заводят только Save и AdvanceLeg.
func (s *Store) viewLocked(key string) *entry {
	if e, ok := s.symbols[key]; ok {
		return e
	}
	return &entry{overrides: s.defaultOverrides()}
}

// entryLocked создаёт запись с дефолтами, если её ещё нет.
func (s *Store) entryLocked(key string) *entry {
	e, ok := s.symbols[key]
	if !ok {
		e = &entry{overrides: s.defaultOverrides()}
		s.symbols[key] = e
	}
	return e
}

func key(symbol string) (string, error) {
	k := helper.NormalizeSymbol(symbol)
	if k == "" {
		return "", ErrEmptySymbol
	}
	return k, nil
}

func preset(name string) models.RiskPreset {
	if p, ok := models.LookupPreset(name); ok {
		return p
	}
	return models.Presets[models.PresetNormal]
}

func merged(sym string, e *entry) models.SymbolConfig {
	o := e.overrides
	p := preset(o.RiskPreset)
	cfg := models.SymbolConfig{
		Symbol:      sym,
		Direction:   o.Direction,
		Leverage:    o.Leverage,
		StopLossPct: p.StopLossPct,
		Trailing:    p.Trailing,
		RiskPreset:  o.RiskPreset,
		SplitEntry:  o.SplitEntry,
		Legs:        e.legs,
	}
	if o.StopLossPct != nil {
		cfg.StopLossPct = *o.StopLossPct
		cfg.StopLossOverride = true
	}
	if o.ActivationPct != nil {
		cfg.Trailing.ActivationPct = *o.ActivationPct
		cfg.ActivationOverride = true
	}
	if o.CallbackPct != nil {
		cfg.Trailing.CallbackPct = *o.CallbackPct
		cfg.CallbackOverride = true
	}
	return cfg
}

// Get: смерженный вид настроек символа.
func (s *Store) Get(symbol string) (models.SymbolConfig, error) {
	k, err := key(symbol)
	if err != nil {
		return models.SymbolConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return merged(k, s.viewLocked(k)), nil
}

// Save: частичное обновление. Сначала валидация всего апдейта, потом запись;
// при ошибке репозитория в памяти ничего не меняется.
func (s *Store) Save(ctx context.Context, symbol string, u models.SymbolUpdate) (models.SymbolConfig, error) {
	k, err := key(symbol)
	if err != nil {
		return models.SymbolConfig{}, err
	}
	if err := u.Validate(); err != nil {
		return models.SymbolConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.viewLocked(k)
	next := e.overrides
	next.Apply(u)
	next.UpdatedAt = s.now().UTC()

	if s.repo != nil {
		if err := s.repo.Upsert(ctx, k, next); err != nil {
			return models.SymbolConfig{}, fmt.Errorf("persist %s: %w", k, err)
		}
	}
	e = s.entryLocked(k)
	e.overrides = next

	// смена пресета могла укоротить фазы
	if n := len(preset(next.RiskPreset).Phases); e.legs > n {
		e.legs = n
	}

	s.log.Info("symbol settings saved", zap.String("symbol", k), zap.String("preset", next.RiskPreset),
		zap.Int("leverage", next.Leverage), zap.String("direction", string(next.Direction)))
	return merged(k, e), nil
}

// EffectiveParams: единственный read-path для сайзинга и ордеров.
func (s *Store) EffectiveParams(symbol string) (models.EffectiveParams, error) {
	cfg, err := s.Get(symbol)
	if err != nil {
		return models.EffectiveParams{}, err
	}
	phases := preset(cfg.RiskPreset).Phases
	return models.EffectiveParams{
		Symbol:      cfg.Symbol,
		StopLossPct: cfg.StopLossPct,
		Trailing:    cfg.Trailing,
		Phases:      append([]float64(nil), phases...),
		Leverage:    cfg.Leverage,
		Direction:   cfg.Direction,
		Legs:        cfg.Legs,
		RiskPreset:  cfg.RiskPreset,
		SplitEntry:  cfg.SplitEntry,
	}, nil
}

// AllowedDirection: явный LONG/SHORT символа сильнее глобального режима, BOTH на любом уровне пропускает.
func (s *Store) AllowedDirection(symbol string, side models.PositionSide) bool {
	k, err := key(symbol)
	if err != nil {
		return false
	}
	s.mu.Lock()
	local := s.viewLocked(k).overrides.Direction
	global := s.global.Direction()
	s.mu.Unlock()

	mode := local
	if mode != models.DirectionLong && mode != models.DirectionShort {
		mode = global
	}
	switch mode {
	case models.DirectionLong:
		return side == models.PositionLong
	case models.DirectionShort:
		return side == models.PositionShort
	}
	return true
}

// AdvanceLeg увеличивает счётчик ног, не выше len(phases). Возвращает новое значение.
func (s *Store) AdvanceLeg(symbol string) int {
	k, err := key(symbol)
	if err != nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(k)
	if n := len(preset(e.overrides.RiskPreset).Phases); e.legs < n {
		e.legs++
	}
	return e.legs
}

func (s *Store) ResetLegs(symbol string) {
	k, err := key(symbol)
	if err != nil {
		return
	}
	s.mu.Lock()
	if e, ok := s.symbols[k]; ok {
		e.legs = 0
	}
	s.mu.Unlock()
}

func (s *Store) SetGlobalMode(m models.GlobalMode) error {
	if _, err := models.ParseGlobalMode(string(m)); err != nil {
		return err
	}
	s.mu.Lock()
	s.global = m
	s.mu.Unlock()
	s.log.Info("global mode changed", zap.String("mode", string(m)))
	return nil
}

func (s *Store) GlobalMode() models.GlobalMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

// Symbols: все известные символы по алфавиту.
func (s *Store) Symbols() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.symbols))
	for k := range s.symbols {
		out = append(out, k)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
