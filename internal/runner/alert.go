package runner

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
	antispam "signal_trader/internal/modules/antispam/service"
)

// Alert: обычный алерт TradingView без торговли.
type Alert struct {
	Type      string
	Message   string
	Symbol    string
	RequestID string
}

// тикер в тексте алерта: BTCUSDT, BINANCE:ETHUSDT.P, 1000PEPEUSDT
var reAlertSymbol = regexp.MustCompile(`(?i)\b(?:[a-z]+:)?([a-z0-9]{2,}(?:usdt|usdc|busd))(?:\.p)?\b`)

func alertSymbol(a Alert) string {
	if s := helper.NormalizeSymbol(a.Symbol); s != "" {
		return s
	}
	if m := reAlertSymbol.FindStringSubmatch(a.Message); m != nil {
		return helper.NormalizeSymbol(m[1])
	}
	return ""
}

// RouteAlert отправляет алерт в канал по его type через антиспам-гейт.
func (r *Runner) RouteAlert(ctx context.Context, a Alert) models.Result {
	dest := strings.ToLower(strings.TrimSpace(a.Type))
	sym := alertSymbol(a)
	log := r.log.With(zap.String("destination", dest), zap.String("symbol", sym), zap.String("request_id", a.RequestID))

	res := models.Result{Symbol: sym, RequestID: a.RequestID}
	if dest == "" || !r.notify.HasDestination(dest) {
		res.Status, res.Reason = models.StatusRejected, "unknown alert type"
		return res
	}
	if strings.TrimSpace(a.Message) == "" {
		res.Status, res.Reason = models.StatusRejected, "empty message"
		return res
	}

	msg := antispam.Message{Destination: dest, Symbol: sym, Route: "alert", Content: a.Message}
	decision, err := r.gate.Guard(ctx, msg, func(ctx context.Context) error {
		return r.notify.Send(ctx, dest, a.Message)
	})
	switch {
	case decision != antispam.Admitted:
		res.Status, res.Reason = models.StatusSkipped, decision.String()
	case err != nil:
		log.Error("alert delivery failed", zap.Error(err))
		res.Status, res.Reason = models.StatusFailed, err.Error()
	default:
		res.Status = models.StatusOK
	}
	log.Info("alert routed", zap.String("status", string(res.Status)))
	return res
}
