package main

import (
	"context"
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"signal_trader/internal/modules/antispam"
	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/exchange"
	"signal_trader/internal/modules/health"
	"signal_trader/internal/modules/postgres"
	"signal_trader/internal/modules/settings"
	telegram "signal_trader/internal/modules/telegram_bot"
	"signal_trader/internal/modules/webhook"
	"signal_trader/internal/runner"
	"signal_trader/pkg/logger"
	"signal_trader/pkg/tracing"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	l, err := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", cfg.Service.Name), zap.String("version", cfg.Service.Version)), nil
}

// initTracing: Jaeger только если задан JAEGER_HOST.
func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	if cfg.Tracing.Host == "" {
		return nil
	}
	tracing.SetServiceName(cfg.Service.Name)
	_, closer, err := tracing.InitTracer(tracing.Config{
		Host:       cfg.Tracing.Host,
		Port:       cfg.Tracing.Port,
		SampleRate: cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	log.Info("jaeger tracer enabled", zap.String("host", cfg.Tracing.Host), zap.Int("port", cfg.Tracing.Port))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return closer.Close()
		},
	})
	return nil
}

func main() {
	app := fx.New(
		config.Module(),
		fx.Provide(newLogger),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(initTracing),

		postgres.Module(),
		exchange.Module(),
		settings.Module(),
		antispam.Module(),
		telegram.Module(),
		runner.Module(),
		webhook.Module(),
		// health последним: readiness выставляется после остальных OnStart
		health.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
