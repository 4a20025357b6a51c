package telegram

import (
	"context"

	"go.uber.org/fx"

	"signal_trader/internal/modules/settings/service"
	tgservice "signal_trader/internal/modules/telegram_bot/service"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Хранилище настроек -> интерфейс команд
		fx.Provide(
			func(s *service.Store) tgservice.SettingsStore { return s },
		),

		// 2. Сервис Telegram (или stdout-заглушка без токена)
		fx.Provide(
			tgservice.NewTelegram,
		),

		// Запуск приёма команд через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *tgservice.Telegram) {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						go t.Start(ctx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
