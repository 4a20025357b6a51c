package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_trader/internal/modules/config"
	exchange "signal_trader/internal/modules/exchange/service"
	"signal_trader/internal/modules/health/service"
)

type Config struct {
	Addr    string // например ":8080"
	Name    string
	Version string
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		Addr:    cfg.Service.HTTPAddr,
		Name:    cfg.Service.Name,
		Version: cfg.Service.Version,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// NewMux собирает общий mux. Служебные ручки здесь, webhook регистрирует свои.
func NewMux(cfg Config, state *service.State) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: все модули стартовали
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		last, status := state.LastSignal()
		resp := map[string]any{
			"ready":          state.Ready(),
			"uptimeSec":      int64(state.Uptime().Seconds()),
			"signals":        state.Signals(),
			"lastStatus":     status,
			"lastSignalUnix": func() int64 {
				if last.IsZero() {
					return 0
				}
				return last.Unix()
			}(),
		}
		if state.StreamEnabled() {
			resp["wsConnected"] = state.WSConnected()
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"name": cfg.Name, "version": cfg.Version})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// watchStream связывает состояние websocket mark price с /healthz.
func watchStream(state *service.State, ms *exchange.MarkStream) {
	if ms == nil {
		return
	}
	state.SetStreamEnabled(true)
	ms.OnState(state.SetWSConnected)
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux, state *service.State, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(watchStream),
		fx.Invoke(RunHTTP),
	)
}
