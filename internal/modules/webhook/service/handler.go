package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"signal_trader/internal/models"
	"signal_trader/internal/runner"
)

const (
	SecretHeader    = "X-Webhook-Secret"
	RequestIDHeader = "X-Request-ID"
)

// Pipeline: то, что делает runner с входящими запросами.
type Pipeline interface {
	HandleSignal(ctx context.Context, sig models.Signal) models.Result
	RouteAlert(ctx context.Context, a runner.Alert) models.Result
}

// Tracker получает итог каждого сигнала (health).
type Tracker interface {
	TouchSignal(t time.Time, status string)
}

type Config struct {
	Secret       string
	MaxBodyBytes int64
	// сигнал доводится до конца даже если TradingView отвалился, но не дольше
	SignalTimeout time.Duration
}

type signalPayload struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
	Note   string `json:"note"`
	Secret string `json:"secret"`
	Route  string `json:"route"`
}

type alertPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Symbol  string `json:"symbol"`
}

type Handler struct {
	cfg      Config
	pipeline Pipeline
	tracker  Tracker
	log      *zap.Logger
	now      func() time.Time
}

func NewHandler(cfg Config, p Pipeline, tr Tracker, log *zap.Logger) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.SignalTimeout <= 0 {
		cfg.SignalTimeout = 2 * time.Minute
	}
	return &Handler{cfg: cfg, pipeline: p, tracker: tr, log: log.Named("webhook"), now: time.Now}
}

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
}

// authorized: пустой секрет в конфиге выключает проверку.
func (h *Handler) authorized(r *http.Request, fromBody string) bool {
	if h.cfg.Secret == "" {
		return true
	}
	got := fromBody
	if got == "" {
		got = r.Header.Get(SecretHeader)
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.Secret)) == 1
}

func (h *Handler) write(w http.ResponseWriter, reqID string, code int, res models.Result) {
	if res.RequestID == "" {
		res.RequestID = reqID
	}
	body, err := sonic.Marshal(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, reqID)
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func rejected(reason string) models.Result {
	return models.Result{Status: models.StatusRejected, Reason: reason}
}

// Signal: POST /webhook. 401 только на неверный секрет, всё остальное 200 с Result.
func (h *Handler) Signal(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	log := h.log.With(zap.String("request_id", reqID))

	raw, err := h.readBody(w, r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.write(w, reqID, http.StatusOK, rejected("body too large"))
			return
		}
		h.write(w, reqID, http.StatusOK, rejected("read body: "+err.Error()))
		return
	}

	var p signalPayload
	decodeErr := sonic.Unmarshal(raw, &p)

	if !h.authorized(r, p.Secret) {
		log.Warn("webhook secret mismatch", zap.String("remote", r.RemoteAddr))
		h.write(w, reqID, http.StatusUnauthorized, rejected("unauthorized"))
		return
	}
	if decodeErr != nil {
		log.Warn("bad webhook json", zap.Error(decodeErr), zap.ByteString("raw", raw))
		h.write(w, reqID, http.StatusOK, rejected("bad json"))
		return
	}

	action, err := models.ParseAction(p.Action)
	if err != nil {
		h.write(w, reqID, http.StatusOK, models.Result{Status: models.StatusRejected, Reason: err.Error(), Symbol: p.Symbol})
		return
	}

	log.Info("signal received", zap.String("symbol", p.Symbol), zap.String("action", string(action)), zap.String("note", p.Note))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.cfg.SignalTimeout)
	defer cancel()

	res := h.pipeline.HandleSignal(ctx, models.Signal{
		Symbol:    p.Symbol,
		Action:    action,
		Note:      p.Note,
		Route:     p.Route,
		RequestID: reqID,
	})
	if h.tracker != nil {
		h.tracker.TouchSignal(h.now(), string(res.Status))
	}
	h.write(w, reqID, http.StatusOK, res)
}

// Alert: POST /alert, пересылка алерта в чат по type.
func (h *Handler) Alert(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)

	raw, err := h.readBody(w, r)
	if err != nil {
		h.write(w, reqID, http.StatusOK, rejected("read body: "+err.Error()))
		return
	}
	h.log.Debug("alert received", zap.String("request_id", reqID), zap.ByteString("raw", raw))

	var p alertPayload
	if err := sonic.Unmarshal(raw, &p); err != nil {
		h.log.Warn("bad alert json", zap.String("request_id", reqID), zap.Error(err))
		h.write(w, reqID, http.StatusOK, rejected("bad json"))
		return
	}

	res := h.pipeline.RouteAlert(r.Context(), runner.Alert{
		Type:      p.Type,
		Message:   p.Message,
		Symbol:    p.Symbol,
		RequestID: reqID,
	})
	h.write(w, reqID, http.StatusOK, res)
}
