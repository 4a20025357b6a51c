package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signal_trader/internal/models"
)

type fakeRepo struct {
	saved   map[string]models.SymbolOverrides
	failErr error
}

func (f *fakeRepo) LoadAll(context.Context) (map[string]models.SymbolOverrides, error) {
	return f.saved, nil
}

func (f *fakeRepo) Upsert(_ context.Context, symbol string, o models.SymbolOverrides) error {
	if f.failErr != nil {
		return f.failErr
	}
	if f.saved == nil {
		f.saved = map[string]models.SymbolOverrides{}
	}
	f.saved[symbol] = o
	return nil
}

func newStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	return NewStore(Defaults{
		Preset:     models.PresetNormal,
		Leverage:   10,
		SplitEntry: true,
	}, repo, zaptest.NewLogger(t))
}

func ptr[T any](v T) *T { return &v }

func TestStore_UnknownSymbolGetsDefaults(t *testing.T) {
	s := newStore(t, nil)

	cfg, err := s.Get("BINANCE:SOLUSDT.P")
	require.NoError(t, err)
	require.Equal(t, "SOLUSDT", cfg.Symbol)
	require.Equal(t, models.PresetNormal, cfg.RiskPreset)
	require.Equal(t, models.DirectionBoth, cfg.Direction)
	require.Equal(t, 10, cfg.Leverage)
	require.Equal(t, 1.5, cfg.StopLossPct)
	require.Equal(t, models.TrailingParams{ActivationPct: 1.5, CallbackPct: 0.8}, cfg.Trailing)
	require.Zero(t, cfg.Legs)

	_, err = s.Get("  ")
	require.ErrorIs(t, err, ErrEmptySymbol)
}

func TestStore_ReadsDoNotCreateSymbols(t *testing.T) {
	s := newStore(t, nil)

	_, err := s.Get("SOLUSDT")
	require.NoError(t, err)
	_, err = s.EffectiveParams("JUNKUSDT")
	require.NoError(t, err)
	require.True(t, s.AllowedDirection("XRPUSDT", models.PositionLong))
	s.ResetLegs("DOGEUSDT")
	require.Empty(t, s.Symbols())

	// запись появляется только после открытой ноги или сохранения
	require.Equal(t, 1, s.AdvanceLeg("SOLUSDT"))
	_, err = s.Save(context.Background(), "ETHUSDT", models.SymbolUpdate{Leverage: ptr(5)})
	require.NoError(t, err)
	require.Equal(t, []string{"ETHUSDT", "SOLUSDT"}, s.Symbols())
}

func TestStore_SaveIsShallowMerge(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	_, err := s.Save(ctx, "BTCUSDT", models.SymbolUpdate{Leverage: ptr(25)})
	require.NoError(t, err)
	cfg, err := s.Save(ctx, "btcusdt", models.SymbolUpdate{StopLossPct: ptr(0.7)})
	require.NoError(t, err)

	require.Equal(t, 25, cfg.Leverage)
	require.Equal(t, 0.7, cfg.StopLossPct)
	require.True(t, cfg.StopLossOverride)
	// трейлинг остался пресетный
	require.Equal(t, 1.5, cfg.Trailing.ActivationPct)
	require.False(t, cfg.ActivationOverride)

	// смена пресета не трогает явный стоп
	cfg, err = s.Save(ctx, "BTCUSDT", models.SymbolUpdate{RiskPreset: ptr(models.PresetAggressive)})
	require.NoError(t, err)
	require.Equal(t, 0.7, cfg.StopLossPct)
	require.Equal(t, 2.0, cfg.Trailing.ActivationPct)

	cfg, err = s.Save(ctx, "BTCUSDT", models.SymbolUpdate{ClearOverrides: true})
	require.NoError(t, err)
	require.Equal(t, 2.5, cfg.StopLossPct)
	require.False(t, cfg.StopLossOverride)
}

func TestStore_SaveValidatesBeforeMutation(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	_, err := s.Save(ctx, "ETHUSDT", models.SymbolUpdate{Leverage: ptr(20), StopLossPct: ptr(-1.0)})
	require.Error(t, err)

	cfg, err := s.Get("ETHUSDT")
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Leverage)

	_, err = s.Save(ctx, "ETHUSDT", models.SymbolUpdate{Leverage: ptr(126)})
	require.Error(t, err)
	_, err = s.Save(ctx, "ETHUSDT", models.SymbolUpdate{RiskPreset: ptr("yolo")})
	require.Error(t, err)
}

func TestStore_RepositoryFailureKeepsState(t *testing.T) {
	repo := &fakeRepo{}
	s := newStore(t, repo)
	ctx := context.Background()

	_, err := s.Save(ctx, "BTCUSDT", models.SymbolUpdate{Leverage: ptr(5)})
	require.NoError(t, err)
	require.Equal(t, 5, repo.saved["BTCUSDT"].Leverage)

	repo.failErr = errors.New("db down")
	_, err = s.Save(ctx, "BTCUSDT", models.SymbolUpdate{Leverage: ptr(50)})
	require.Error(t, err)

	cfg, _ := s.Get("BTCUSDT")
	require.Equal(t, 5, cfg.Leverage)

	// первая запись не удалась: символ не заводится
	_, err = s.Save(ctx, "ETHUSDT", models.SymbolUpdate{Leverage: ptr(7)})
	require.Error(t, err)
	require.Equal(t, []string{"BTCUSDT"}, s.Symbols())
}

func TestStore_LoadRestoresOverridesNotLegs(t *testing.T) {
	repo := &fakeRepo{saved: map[string]models.SymbolOverrides{
		"ETHUSDT": {Direction: models.DirectionShort, Leverage: 3, RiskPreset: models.PresetSafe, SplitEntry: true, CallbackPct: ptr(0.3)},
		"XRPUSDT": {RiskPreset: "unknown", Leverage: 500},
	}}
	s := newStore(t, repo)
	require.NoError(t, s.Load(context.Background()))

	p, err := s.EffectiveParams("ETHUSDT")
	require.NoError(t, err)
	require.Equal(t, models.DirectionShort, p.Direction)
	require.Equal(t, 3, p.Leverage)
	require.Equal(t, []float64{0.10, 0.25, 0.50, 1.0}, p.Phases)
	require.Equal(t, 0.3, p.Trailing.CallbackPct)
	require.Equal(t, 1.0, p.Trailing.ActivationPct)
	require.Zero(t, p.Legs)

	x, err := s.EffectiveParams("XRPUSDT")
	require.NoError(t, err)
	require.Equal(t, models.PresetNormal, x.RiskPreset)
	require.Equal(t, 10, x.Leverage)
	require.Equal(t, models.DirectionBoth, x.Direction)
}

func TestStore_LegsStayInBounds(t *testing.T) {
	s := newStore(t, nil)

	for i := 1; i <= 3; i++ {
		require.Equal(t, i, s.AdvanceLeg("BTCUSDT"))
	}
	// normal: три фазы, дальше не растёт
	require.Equal(t, 3, s.AdvanceLeg("BTCUSDT"))
	p, _ := s.EffectiveParams("BTCUSDT")
	require.Equal(t, 3, p.Legs)
	require.Len(t, p.Phases, 3)

	// aggressive короче: ноги поджимаются
	cfg, err := s.Save(context.Background(), "BTCUSDT", models.SymbolUpdate{RiskPreset: ptr(models.PresetAggressive)})
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Legs)
}

func TestStore_CloseResetsLegs(t *testing.T) {
	s := newStore(t, nil)
	for i := 0; i < 3; i++ {
		s.AdvanceLeg("BTCUSDT")
	}
	cfg, _ := s.Get("BTCUSDT")
	require.Equal(t, 3, cfg.Legs)

	s.ResetLegs("BTCUSDT")
	cfg, _ = s.Get("BTCUSDT")
	require.Zero(t, cfg.Legs)
}

func TestStore_EffectiveParamsPhasesAreCopies(t *testing.T) {
	s := newStore(t, nil)
	p, _ := s.EffectiveParams("BTCUSDT")
	p.Phases[0] = 42

	require.Equal(t, 0.25, models.Presets[models.PresetNormal].Phases[0])
}

func TestStore_AllowedDirection(t *testing.T) {
	tests := []struct {
		name   string
		local  models.Direction
		global models.GlobalMode
		side   models.PositionSide
		want   bool
	}{
		{"both/both long", models.DirectionBoth, models.GlobalBoth, models.PositionLong, true},
		{"both/both short", models.DirectionBoth, models.GlobalBoth, models.PositionShort, true},
		{"both/long_only short", models.DirectionBoth, models.GlobalLongOnly, models.PositionShort, false},
		{"both/long_only long", models.DirectionBoth, models.GlobalLongOnly, models.PositionLong, true},
		{"both/short_only long", models.DirectionBoth, models.GlobalShortOnly, models.PositionLong, false},
		{"local long beats short_only", models.DirectionLong, models.GlobalShortOnly, models.PositionLong, true},
		{"local long blocks short", models.DirectionLong, models.GlobalBoth, models.PositionShort, false},
		{"local short beats long_only", models.DirectionShort, models.GlobalLongOnly, models.PositionShort, true},
		{"local short blocks long", models.DirectionShort, models.GlobalBoth, models.PositionLong, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, nil)
			require.NoError(t, s.SetGlobalMode(tt.global))
			_, err := s.Save(context.Background(), "BTCUSDT", models.SymbolUpdate{Direction: ptr(tt.local)})
			require.NoError(t, err)
			require.Equal(t, tt.want, s.AllowedDirection("BTCUSDT", tt.side))
		})
	}
}

func TestStore_SetGlobalModeRejectsUnknown(t *testing.T) {
	s := newStore(t, nil)
	require.Error(t, s.SetGlobalMode("SIDEWAYS"))
	require.Equal(t, models.GlobalBoth, s.GlobalMode())
}
