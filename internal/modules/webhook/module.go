package webhook

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_trader/internal/modules/config"
	health "signal_trader/internal/modules/health/service"
	"signal_trader/internal/modules/webhook/service"
	"signal_trader/internal/runner"
)

func newHandler(cfg *config.Config, r *runner.Runner, state *health.State, log *zap.Logger) *service.Handler {
	return service.NewHandler(service.Config{
		Secret:       cfg.Webhook.Secret,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	}, r, state, log)
}

// регистрируем ручки на общем mux из health, сервер один
func register(mux *http.ServeMux, h *service.Handler) {
	mux.HandleFunc("POST /webhook", h.Signal)
	mux.HandleFunc("POST /alert", h.Alert)
}

func Module() fx.Option {
	return fx.Module("webhook",
		fx.Provide(newHandler),
		fx.Invoke(register),
	)
}
