package settings

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_trader/internal/models"
	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/settings/pg"
	"signal_trader/internal/modules/settings/service"
	"signal_trader/pkg/db"
)

func newStore(lc fx.Lifecycle, cfg *config.Config, tx *db.PgTxManager, log *zap.Logger) *service.Store {
	var (
		repo   service.Repository
		schema *pg.SymbolSettings
	)
	if tx != nil {
		schema = pg.NewSymbolSettings(tx)
		repo = schema
	}

	store := service.NewStore(service.Defaults{
		Preset:     cfg.Trading.DefaultPreset,
		Leverage:   cfg.Trading.DefaultLeverage,
		Direction:  models.DirectionBoth,
		SplitEntry: cfg.Trading.SplitEntry,
		GlobalMode: models.GlobalMode(cfg.Trading.GlobalMode),
	}, repo, log)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if schema != nil {
				if err := schema.EnsureSchema(ctx); err != nil {
					return err
				}
			}
			return store.Load(ctx)
		},
	})
	return store
}

func Module() fx.Option {
	return fx.Module("settings",
		fx.Provide(
			newStore,
		),
	)
}
