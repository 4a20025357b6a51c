package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal_trader/internal/monitor"
)

type Decision int

const (
	Admitted Decision = iota
	SkippedCooldown
	SkippedDuplicate
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case SkippedCooldown:
		return "cooldown"
	case SkippedDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Message: то, что проходит через гейт.
type Message struct {
	Destination string
	Symbol      string
	Route       string
	Content     string
}

type Config struct {
	Cooldown      time.Duration
	DedupWindow   time.Duration
	GCEvery       int
	SweepInterval time.Duration
}

type bucket struct {
	lastSent time.Time
	hashes   map[string]time.Time
	inFlight bool
}

// Gate гасит шторм одинаковых алертов: cooldown по бакету и дедуп точного текста.
type Gate struct {
	cfg Config
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	ops     int
}

func NewGate(cfg Config, log *zap.Logger) *Gate {
	if cfg.GCEvery <= 0 {
		cfg.GCEvery = 200
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &Gate{
		cfg:     cfg,
		log:     log.Named("antispam"),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Check: только решение, состояние не меняется.
func (g *Gate) Check(m Message) Decision {
	key, hash := BucketKey(m), contentHash(m.Content)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decideLocked(g.buckets[key], hash, g.now())
}

// cooldown проверяется первым, потом дубль контента
func (g *Gate) decideLocked(b *bucket, hash string, now time.Time) Decision {
	if b == nil {
		return Admitted
	}
	if b.inFlight {
		return SkippedCooldown
	}
	if !b.lastSent.IsZero() && now.Sub(b.lastSent) < g.cfg.Cooldown {
		return SkippedCooldown
	}
	if at, ok := b.hashes[hash]; ok && now.Sub(at) < g.cfg.DedupWindow {
		return SkippedDuplicate
	}
	return Admitted
}

// Guard пропускает send через гейт. Бакет резервируется на время отправки,
// отметка ставится ровно один раз после попытки, даже если send вернул ошибку.
func (g *Gate) Guard(ctx context.Context, m Message, send func(ctx context.Context) error) (Decision, error) {
	key, hash := BucketKey(m), contentHash(m.Content)

	g.mu.Lock()
	d := g.decideLocked(g.buckets[key], hash, g.now())
	if d != Admitted {
		g.mu.Unlock()
		monitor.AntiSpam.WithLabelValues(d.String()).Inc()
		g.log.Debug("message suppressed",
			zap.String("decision", d.String()),
			zap.String("destination", m.Destination),
			zap.String("symbol", m.Symbol),
			zap.String("route", m.Route),
		)
		return d, nil
	}
	b, ok := g.buckets[key]
	if !ok {
		b = &bucket{hashes: make(map[string]time.Time)}
		g.buckets[key] = b
	}
	b.inFlight = true
	g.mu.Unlock()
	monitor.AntiSpam.WithLabelValues(d.String()).Inc()

	defer func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		now := g.now()
		b.inFlight = false
		b.lastSent = now
		b.hashes[hash] = now
		g.ops++
		if g.ops%g.cfg.GCEvery == 0 {
			g.sweepLocked(now)
		}
	}()

	return Admitted, send(ctx)
}

func (g *Gate) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked(g.now())
}

// sweepLocked чистит протухшие хэши и пустые бакеты. Возвращает число удалённых бакетов.
func (g *Gate) sweepLocked(now time.Time) int {
	keep := g.cfg.Cooldown
	if g.cfg.DedupWindow > keep {
		keep = g.cfg.DedupWindow
	}
	removed := 0
	for k, b := range g.buckets {
		if b.inFlight {
			continue
		}
		for h, at := range b.hashes {
			if now.Sub(at) >= g.cfg.DedupWindow {
				delete(b.hashes, h)
			}
		}
		if len(b.hashes) == 0 && now.Sub(b.lastSent) >= keep {
			delete(g.buckets, k)
			removed++
		}
	}
	return removed
}

func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}

// Run: фоновая чистка по таймеру, до отмены ctx.
func (g *Gate) Run(ctx context.Context) {
	t := time.NewTicker(g.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := g.Sweep(); n > 0 {
				g.log.Debug("antispam sweep", zap.Int("removed", n))
			}
		}
	}
}
