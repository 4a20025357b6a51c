package antispam

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_trader/internal/modules/antispam/service"
	"signal_trader/internal/modules/config"
)

func newGate(cfg *config.Config, log *zap.Logger) *service.Gate {
	return service.NewGate(service.Config{
		Cooldown:      cfg.AntiSpam.Cooldown,
		DedupWindow:   cfg.AntiSpam.DedupWindow,
		GCEvery:       cfg.AntiSpam.GCEvery,
		SweepInterval: cfg.AntiSpam.SweepInterval,
	}, log)
}

func runSweeper(lc fx.Lifecycle, g *service.Gate) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go g.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("antispam",
		fx.Provide(newGate),
		fx.Invoke(runSweeper),
	)
}
