package runner

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	antispam "signal_trader/internal/modules/antispam/service"
	"signal_trader/internal/modules/config"
	exchange "signal_trader/internal/modules/exchange/service"
	settings "signal_trader/internal/modules/settings/service"
	tgservice "signal_trader/internal/modules/telegram_bot/service"
)

func newConfig(cfg *config.Config) (Config, error) {
	disabled, err := cfg.DisabledActions()
	if err != nil {
		return Config{}, err
	}
	return Config{
		TradeDestination:  cfg.Telegram.TradeDest,
		Whitelist:         cfg.Trading.Whitelist,
		DisabledActions:   disabled,
		MinStopGapPct:     cfg.Trading.MinStopGapPct,
		MinTrailingGapPct: cfg.Trading.MinTrailingGapPct,
	}, nil
}

func newRunner(
	cfg Config,
	ex *exchange.Client,
	tg *tgservice.Telegram,
	gate *antispam.Gate,
	store *settings.Store,
	log *zap.Logger,
) *Runner {
	return NewRunner(cfg, ex, tg, gate, store, log)
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newConfig,
			newRunner, // *Runner
		),
	)
}
