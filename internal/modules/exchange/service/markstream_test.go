package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMarkStream_FeedsClientCache(t *testing.T) {
	streams := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case streams <- r.URL.Query().Get("streams"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"stream":"btcusdt@markPrice@1s","data":{"e":"markPriceUpdate","E":1,"s":"BTCUSDT","p":"50123.50"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ms := NewMarkStream("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"BTCUSDT"}, time.Minute, zaptest.NewLogger(t))
	var connected bool
	ms.OnState(func(v bool) { connected = v })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ms.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		p, ok := ms.Price("BTCUSDT")
		return ok && p == 50123.5
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, "btcusdt@markPrice@1s", <-streams)

	// REST не нужен, пока цена в кэше свежая
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", MaxAttempts: 1}, zaptest.NewLogger(t), ms)
	p, err := c.MarkPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 50123.5, p)

	cancel()
	<-done
	require.False(t, connected)
}

func TestMarkStream_StalePrice(t *testing.T) {
	ms := NewMarkStream("ws://unused", []string{"ETHUSDT"}, time.Second, zaptest.NewLogger(t))
	now := time.Now()
	ms.now = func() time.Time { return now }
	ms.prices["ETHUSDT"] = markTick{price: 3000, at: now.Add(-2 * time.Second)}

	_, ok := ms.Price("ETHUSDT")
	require.False(t, ok)

	ms.prices["ETHUSDT"] = markTick{price: 3000, at: now}
	p, ok := ms.Price("ETHUSDT")
	require.True(t, ok)
	require.Equal(t, 3000.0, p)
}
