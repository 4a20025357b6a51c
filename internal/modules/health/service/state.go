package service

import (
	"sync"
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	streamEnabled atomic.Bool
	wsConnected   atomic.Bool

	signals        atomic.Int64
	lastSignalUnix atomic.Int64 // unix seconds

	mu         sync.Mutex
	lastStatus string
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// SetStreamEnabled: есть ли вообще стрим mark price. Без него wsConnected не показываем.
func (s *State) SetStreamEnabled(v bool) { s.streamEnabled.Store(v) }
func (s *State) StreamEnabled() bool     { return s.streamEnabled.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

// TouchSignal отмечает обработанный сигнал и его итоговый статус.
func (s *State) TouchSignal(t time.Time, status string) {
	s.signals.Add(1)
	s.lastSignalUnix.Store(t.Unix())
	s.mu.Lock()
	s.lastStatus = status
	s.mu.Unlock()
}

func (s *State) Signals() int64 { return s.signals.Load() }

func (s *State) LastSignal() (time.Time, string) {
	s.mu.Lock()
	status := s.lastStatus
	s.mu.Unlock()
	u := s.lastSignalUnix.Load()
	if u == 0 {
		return time.Time{}, status
	}
	return time.Unix(u, 0), status
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
