package exchange

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/exchange/service"
)

func newClientConfig(cfg *config.Config) service.Config {
	e := cfg.Exchange
	return service.Config{
		BaseURL:        e.BaseURL,
		StreamURL:      e.StreamURL,
		APIKey:         e.APIKey,
		APISecret:      e.APISecret,
		RecvWindow:     e.RecvWindow,
		RequestTimeout: e.RequestTimeout,
		MaxAttempts:    e.MaxAttempts,
		BackoffMin:     e.BackoffMin,
		BackoffMax:     e.BackoffMax,
		MarginAsset:    e.MarginAsset,
		HedgeMode:      e.HedgeMode,
		FilterTTL:      e.FilterTTL,
		RatePerSec:     e.RatePerSec,
		RateBurst:      e.RateBurst,
	}
}

// стрим mark price нужен только для whitelist: подписаться на весь рынок нельзя одним запросом
func newMarkStream(cfg *config.Config, log *zap.Logger) *service.MarkStream {
	if !cfg.Exchange.StreamEnabled || cfg.Exchange.StreamURL == "" || len(cfg.Trading.Whitelist) == 0 {
		return nil
	}
	return service.NewMarkStream(cfg.Exchange.StreamURL, cfg.Trading.Whitelist, 0, log)
}

func runMarkStream(lc fx.Lifecycle, ms *service.MarkStream) {
	if ms == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ms.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			newClientConfig,
			newMarkStream,
			service.NewClient,
		),
		fx.Invoke(runMarkStream),
	)
}
