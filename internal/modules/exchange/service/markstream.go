package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

type markTick struct {
	price float64
	at    time.Time
}

// MarkStream держит кэш mark price из combined stream `<sym>@markPrice@1s`.
// Цена старше maxAge считается протухшей, тогда MarkPrice идёт в REST.
type MarkStream struct {
	url     string
	symbols []string
	maxAge  time.Duration
	dialer  *websocket.Dialer
	log     *zap.Logger
	now     func() time.Time
	onState func(connected bool)

	mu     sync.RWMutex
	prices map[string]markTick
}

func NewMarkStream(streamURL string, symbols []string, maxAge time.Duration, log *zap.Logger) *MarkStream {
	if maxAge <= 0 {
		maxAge = 5 * time.Second
	}
	return &MarkStream{
		url:     strings.TrimRight(streamURL, "/"),
		symbols: symbols,
		maxAge:  maxAge,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log.Named("markstream"),
		now:     time.Now,
		prices:  make(map[string]markTick),
	}
}

// OnState: колбэк смены состояния соединения (для health).
func (m *MarkStream) OnState(f func(connected bool)) { m.onState = f }

func (m *MarkStream) setState(v bool) {
	if m.onState != nil {
		m.onState(v)
	}
}

func (m *MarkStream) Price(symbol string) (float64, bool) {
	m.mu.RLock()
	t, ok := m.prices[symbol]
	m.mu.RUnlock()
	if !ok || m.now().Sub(t.at) > m.maxAge {
		return 0, false
	}
	return t.price, true
}

func (m *MarkStream) streamURL() string {
	streams := make([]string, 0, len(m.symbols))
	for _, s := range m.symbols {
		streams = append(streams, strings.ToLower(s)+"@markPrice@1s")
	}
	return m.url + "/stream?streams=" + strings.Join(streams, "/")
}

// Run: цикл подключения с переподключением, до отмены ctx.
func (m *MarkStream) Run(ctx context.Context) {
	if len(m.symbols) == 0 {
		return
	}
	bo := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}
	for {
		if ctx.Err() != nil {
			return
		}
		m.log.Info("mark stream connect", zap.Int("symbols", len(m.symbols)))
		conn, _, err := m.dialer.DialContext(ctx, m.streamURL(), nil)
		if err != nil {
			wait := bo.Duration()
			m.log.Warn("mark stream dial error", zap.Error(err), zap.Duration("retry_in", wait))
			if sleepCtx(ctx, wait) != nil {
				return
			}
			continue
		}
		bo.Reset()
		m.setState(true)

		// ReadMessage не смотрит на ctx, поэтому закрываем соединение сами
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		m.readLoop(conn)
		close(done)
		_ = conn.Close()
		m.setState(false)
	}
}

func (m *MarkStream) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			m.log.Warn("mark stream read error", zap.Error(err))
			return
		}
		var frame struct {
			Stream string `json:"stream"`
			Data   struct {
				Event  string `json:"e"`
				Symbol string `json:"s"`
				Price  string `json:"p"`
			} `json:"data"`
		}
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Data.Event != "markPriceUpdate" || frame.Data.Symbol == "" {
			continue
		}
		p, err := strconv.ParseFloat(frame.Data.Price, 64)
		if err != nil || p <= 0 {
			continue
		}
		m.mu.Lock()
		m.prices[frame.Data.Symbol] = markTick{price: p, at: m.now()}
		m.mu.Unlock()
	}
}
