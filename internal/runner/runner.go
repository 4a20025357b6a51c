package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
	antispam "signal_trader/internal/modules/antispam/service"
	exchange "signal_trader/internal/modules/exchange/service"
	"signal_trader/internal/monitor"
)

type Exchange interface {
	Filters(ctx context.Context, symbol string) (models.SymbolFilters, error)
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	AvailableBalance(ctx context.Context) (float64, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceOrder(ctx context.Context, in models.OrderIntent) (models.OrderAck, error)
	QueryOrder(ctx context.Context, symbol, clientOrderID string) (models.OrderAck, error)
}

// сколько ждём ответа на проверку входа с неизвестным исходом
const entryQueryTimeout = 15 * time.Second

type Notifier interface {
	Send(ctx context.Context, destination, text string) error
	SendAdmin(ctx context.Context, text string) error
	HasDestination(name string) bool
}

type Gate interface {
	Guard(ctx context.Context, m antispam.Message, send func(ctx context.Context) error) (antispam.Decision, error)
}

type Store interface {
	EffectiveParams(symbol string) (models.EffectiveParams, error)
	AllowedDirection(symbol string, side models.PositionSide) bool
	AdvanceLeg(symbol string) int
	ResetLegs(symbol string)
}

type Config struct {
	TradeDestination  string
	Whitelist         []string
	DisabledActions   map[models.Action]bool
	MinStopGapPct     float64
	MinTrailingGapPct float64
}

// Runner ведёт сигнал от проверки до защитных ордеров и уведомления.
type Runner struct {
	cfg       Config
	whitelist map[string]struct{}

	ex     Exchange
	notify Notifier
	gate   Gate
	store  Store
	log    *zap.Logger
	now    func() time.Time
}

func NewRunner(cfg Config, ex Exchange, notify Notifier, gate Gate, store Store, log *zap.Logger) *Runner {
	wl := make(map[string]struct{}, len(cfg.Whitelist))
	for _, s := range cfg.Whitelist {
		if s = helper.NormalizeSymbol(s); s != "" {
			wl[s] = struct{}{}
		}
	}
	return &Runner{
		cfg:       cfg,
		whitelist: wl,
		ex:        ex,
		notify:    notify,
		gate:      gate,
		store:     store,
		log:       log.Named("runner"),
		now:       time.Now,
	}
}

// HandleSignal: весь путь сигнала. Ошибки не возвращаются, итог в Result.Status.
func (r *Runner) HandleSignal(ctx context.Context, sig models.Signal) (res models.Result) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "runner.HandleSignal")
	defer span.Finish()

	start := r.now()
	sym := helper.NormalizeSymbol(sig.Symbol)
	log := r.log.With(
		zap.String("symbol", sym),
		zap.String("action", string(sig.Action)),
		zap.String("request_id", sig.RequestID),
	)
	span.SetTag("symbol", sym)
	span.SetTag("action", string(sig.Action))

	defer func() {
		res.Symbol, res.Action, res.RequestID = sym, sig.Action, sig.RequestID
		monitor.Signals.WithLabelValues(string(sig.Action), string(res.Status)).Inc()
		monitor.SignalDuration.WithLabelValues(string(sig.Action)).Observe(time.Since(start).Seconds())
		if res.Status == models.StatusFailed || res.Status == models.StatusPartial {
			ext.Error.Set(span, true)
		}
		span.SetTag("status", string(res.Status))
		log.Info("signal handled", zap.String("status", string(res.Status)), zap.String("reason", res.Reason))
	}()

	if reason := r.validate(sym, sig.Action); reason != "" {
		return rejected(reason)
	}

	msg := antispam.Message{
		Destination: r.cfg.TradeDestination,
		Symbol:      sym,
		Route:       gateRoute(sig),
		Content:     strings.TrimSpace(string(sig.Action) + " " + sig.Note),
	}
	decision, _ := r.gate.Guard(ctx, msg, func(ctx context.Context) error {
		if sig.Action.IsOpen() {
			res = r.open(ctx, log, sym, sig.Action)
		} else {
			res = r.close(ctx, log, sym, sig.Action)
		}
		if res.Status == models.StatusFailed {
			return errors.New(res.Reason)
		}
		return nil
	})
	if decision != antispam.Admitted {
		return models.Result{Status: models.StatusSkipped, Reason: decision.String()}
	}
	return res
}

// gateRoute: route из payload делит бакеты антиспама внутри одного action.
func gateRoute(sig models.Signal) string {
	if r := strings.TrimSpace(sig.Route); r != "" {
		return string(sig.Action) + "/" + r
	}
	return string(sig.Action)
}

// validate: входные ошибки, до гейта и без изменения состояния.
func (r *Runner) validate(sym string, a models.Action) string {
	if sym == "" {
		return "empty symbol"
	}
	if _, err := models.ParseAction(string(a)); err != nil {
		return err.Error()
	}
	if len(r.whitelist) > 0 {
		if _, ok := r.whitelist[sym]; !ok {
			return "symbol not whitelisted"
		}
	}
	if r.cfg.DisabledActions[a] {
		return "action disabled"
	}
	if a.IsOpen() && !r.store.AllowedDirection(sym, a.PositionSide()) {
		return "direction not allowed"
	}
	return ""
}

func rejected(reason string) models.Result {
	return models.Result{Status: models.StatusRejected, Reason: reason}
}

// filters с откатом на консервативные значения, если биржа недоступна.
// Неизвестный символ: ошибка входа.
func (r *Runner) filters(ctx context.Context, log *zap.Logger, sym string) (models.SymbolFilters, error) {
	f, err := r.ex.Filters(ctx, sym)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, exchange.ErrUnknownSymbol) {
		return models.SymbolFilters{}, err
	}
	log.Warn("exchange filters unavailable, precision degraded", zap.Error(err))
	return models.FallbackFilters(sym), nil
}

func (r *Runner) open(ctx context.Context, log *zap.Logger, sym string, a models.Action) models.Result {
	p, err := r.store.EffectiveParams(sym)
	if err != nil {
		return rejected(err.Error())
	}
	f, err := r.filters(ctx, log, sym)
	if err != nil {
		return rejected(err.Error())
	}

	mark, err := r.ex.MarkPrice(ctx, sym)
	if err != nil {
		return r.fail(ctx, log, sym, a, "mark price", err)
	}
	balance, err := r.ex.AvailableBalance(ctx)
	if err != nil {
		return r.fail(ctx, log, sym, a, "balance", err)
	}

	qty, phase, err := CalcOrderSize(p, balance, mark, f)
	if err != nil {
		log.Warn("sizing failed", zap.Error(err), zap.Int("legs", p.Legs), zap.Float64("balance", balance))
		r.send(ctx, log, fmt.Sprintf("⚠️ [%s] %s пропущен: %v", sym, a, err))
		return rejected(err.Error())
	}

	// 1. плечо
	if err := r.ex.SetLeverage(ctx, sym, p.Leverage); err != nil {
		return r.fail(ctx, log, sym, a, "set leverage", err)
	}

	// 2. рыночный вход
	at := r.now()
	entryID := ClientOrderID(sym, a, at, "")
	ack, err := r.ex.PlaceOrder(ctx, models.OrderIntent{
		Symbol:        sym,
		Side:          a.OrderSide(),
		Type:          models.OrderTypeMarket,
		Quantity:      qty,
		PositionSide:  a.PositionSide(),
		ClientOrderID: entryID,
	})
	if err != nil {
		if !exchange.OutcomeUnknown(err) {
			return r.fail(ctx, log, sym, a, "market entry", err)
		}
		got, res, resolved := r.resolveEntry(ctx, log, sym, a, entryID, qty, f, err)
		if !resolved {
			return res
		}
		ack = got
	}

	entry := mark
	if ack.AvgPrice > 0 {
		entry = ack.AvgPrice
	}
	protectQty := qty
	if ack.ExecutedQty > 0 {
		if q := helper.FloorToStep(decimal.NewFromFloat(ack.ExecutedQty), f.StepSize); q.IsPositive() {
			protectQty = q
		}
	}

	// нога считается сделанной сразу после входа, даже если защита не встанет
	legs := r.store.AdvanceLeg(sym)

	// 3. цены защиты
	side := a.PositionSide()
	pr := Protect(side, entry, p, r.cfg.MinStopGapPct, r.cfg.MinTrailingGapPct, f.TickSize)

	res := models.Result{
		Status:    models.StatusOK,
		Quantity:  helper.FormatQty(qty, f.StepSize),
		OrderID:   ack.OrderID,
		Entry:     entry,
		StopPrice: pr.StopPrice,
		TrailAct:  pr.ActivationPrice,
		Leg:       legs,
		Legs:      len(p.Phases),
	}

	// 4. стоп-лосс
	var failed []string
	_, stopErr := r.ex.PlaceOrder(ctx, models.OrderIntent{
		Symbol:        sym,
		Side:          a.OrderSide().Opposite(),
		Type:          models.OrderTypeStopMarket,
		Quantity:      protectQty,
		ReduceOnly:    true,
		PositionSide:  side,
		ClientOrderID: ClientOrderID(sym, a, at, "sl"),
		StopPrice:     pr.StopPrice,
	})
	if stopErr != nil {
		failed = append(failed, fmt.Sprintf("SL %s: %v", pr.StopPrice, stopErr))
	}

	// 5. трейлинг
	_, trailErr := r.ex.PlaceOrder(ctx, models.OrderIntent{
		Symbol:          sym,
		Side:            a.OrderSide().Opposite(),
		Type:            models.OrderTypeTrailingStop,
		Quantity:        protectQty,
		ReduceOnly:      true,
		PositionSide:    side,
		ClientOrderID:   ClientOrderID(sym, a, at, "ts"),
		ActivationPrice: pr.ActivationPrice,
		CallbackRate:    pr.CallbackRate,
	})
	if trailErr != nil {
		failed = append(failed, fmt.Sprintf("TS %s/%s%%: %v", pr.ActivationPrice, pr.CallbackRate, trailErr))
	}

	if len(failed) > 0 {
		log.Error("position left unprotected",
			zap.Bool("unprotected", true),
			zap.String("client_order_id", entryID),
			zap.NamedError("stop_error", stopErr),
			zap.NamedError("trailing_error", trailErr),
		)
		r.alertUnprotected(ctx, log, fmt.Sprintf(
			"🚨 UNPROTECTED POSITION [%s] %s qty=%s entry=%s\n%s",
			sym, a, res.Quantity, fmtPrice(entry), strings.Join(failed, "\n"),
		))
		res.Status = models.StatusPartial
		res.Reason = "protective orders failed"
		return res
	}

	log.Info("entry protected",
		zap.String("client_order_id", entryID),
		zap.String("qty", res.Quantity),
		zap.Float64("entry", entry),
		zap.Float64("phase", phase),
		zap.Int("leg", legs),
	)
	r.send(ctx, log, fmt.Sprintf(
		"✅ [%s] %s подтверждён\nqty=%s entry=%s lev=x%d\nSL=%s TS=%s/%s%%\nнога %d/%d (%.0f%%)",
		sym, a, res.Quantity, fmtPrice(entry), p.Leverage,
		pr.StopPrice, pr.ActivationPrice, pr.CallbackRate, legs, len(p.Phases), phase*100,
	))
	return res
}

// resolveEntry: вход вернул ошибку, но мог исполниться. Спрашиваем биржу по clientOrderId.
// resolved=true: ордер исполнен, продолжаем с защитой. Иначе res уже готовый итог.
func (r *Runner) resolveEntry(ctx context.Context, log *zap.Logger, sym string, a models.Action, cid string, qty decimal.Decimal, f models.SymbolFilters, placeErr error) (models.OrderAck, models.Result, bool) {
	log.Warn("market entry outcome unknown, querying order", zap.String("client_order_id", cid), zap.Error(placeErr))

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), entryQueryTimeout)
	defer cancel()
	ack, err := r.ex.QueryOrder(qctx, sym, cid)

	switch {
	case errors.Is(err, exchange.ErrOrderNotFound):
		return ack, r.fail(ctx, log, sym, a, "market entry", placeErr), false
	case err != nil:
		// позиция может стоять без стопов, ноги не трогаем
		log.Error("market entry status unknown",
			zap.Bool("unprotected", true),
			zap.String("client_order_id", cid),
			zap.NamedError("place_error", placeErr),
			zap.NamedError("query_error", err),
		)
		r.alertUnprotected(qctx, log, fmt.Sprintf(
			"🚨 UNPROTECTED POSITION? [%s] %s qty=%s: статус входа неизвестен, SL/TS не выставлены\nclientOrderId=%s\n%v\n%v",
			sym, a, helper.FormatQty(qty, f.StepSize), cid, placeErr, err,
		))
		return ack, models.Result{
			Status:   models.StatusPartial,
			Reason:   "entry status unknown",
			Quantity: helper.FormatQty(qty, f.StepSize),
		}, false
	case !ack.Filled():
		return ack, r.fail(ctx, log, sym, a, "market entry", fmt.Errorf("%w (order %s)", placeErr, ack.Status)), false
	}

	log.Warn("market entry resolved by query",
		zap.String("client_order_id", cid),
		zap.String("order_id", ack.OrderID),
		zap.String("status", ack.Status),
	)
	return ack, models.Result{}, true
}

// alertUnprotected: позиция без защиты, пишем и в торговый канал, и админу.
func (r *Runner) alertUnprotected(ctx context.Context, log *zap.Logger, text string) {
	monitor.UnprotectedPositions.Inc()
	r.send(ctx, log, text)
	if err := r.notify.SendAdmin(ctx, text); err != nil {
		log.Warn("admin alert failed", zap.Error(err))
	}
}

// close: reduce-only рынок на минимальный объём, ноги обнуляются в любом случае.
func (r *Runner) close(ctx context.Context, log *zap.Logger, sym string, a models.Action) models.Result {
	r.store.ResetLegs(sym)

	f, err := r.filters(ctx, log, sym)
	if err != nil {
		return rejected(err.Error())
	}
	qty, err := CloseSize(f)
	if err != nil {
		return rejected(err.Error())
	}

	cid := ClientOrderID(sym, a, r.now(), "")
	ack, err := r.ex.PlaceOrder(ctx, models.OrderIntent{
		Symbol:        sym,
		Side:          a.OrderSide(),
		Type:          models.OrderTypeMarket,
		Quantity:      qty,
		ReduceOnly:    true,
		PositionSide:  a.PositionSide(),
		ClientOrderID: cid,
	})
	if err != nil {
		return r.fail(ctx, log, sym, a, "close", err)
	}

	log.Info("close sent", zap.String("client_order_id", cid), zap.String("qty", qty.String()))
	r.send(ctx, log, fmt.Sprintf("🔻 [%s] %s qty=%s", sym, a, helper.FormatQty(qty, f.StepSize)))
	return models.Result{
		Status:   models.StatusOK,
		Quantity: helper.FormatQty(qty, f.StepSize),
		OrderID:  ack.OrderID,
		Entry:    ack.AvgPrice,
	}
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, sym string, a models.Action, step string, err error) models.Result {
	log.Error("signal failed", zap.String("step", step), zap.Error(err))
	r.send(ctx, log, fmt.Sprintf("❌ [%s] %s: %s: %v", sym, a, step, err))
	return models.Result{Status: models.StatusFailed, Reason: fmt.Sprintf("%s: %v", step, err)}
}

// send: уведомление в торговый канал, ошибка только логируется.
func (r *Runner) send(ctx context.Context, log *zap.Logger, text string) {
	if err := r.notify.Send(ctx, r.cfg.TradeDestination, text); err != nil {
		log.Warn("trade notification failed", zap.Error(err))
	}
}

func fmtPrice(v float64) string {
	return decimal.NewFromFloat(v).String()
}
