package health

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"signal_trader/internal/modules/health/service"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMux(t *testing.T) {
	state := service.NewState()
	srv := httptest.NewServer(NewMux(Config{Name: "signal_trader", Version: "1.2.3"}, state))
	defer srv.Close()

	code, _ := get(t, srv, "/livez")
	require.Equal(t, http.StatusOK, code)

	code, _ = get(t, srv, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)

	state.SetReady(true)
	code, body := get(t, srv, "/readyz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", body)

	code, body = get(t, srv, "/version")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"name":"signal_trader","version":"1.2.3"}`, body)

	code, body = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")
}

func TestHealthz(t *testing.T) {
	state := service.NewState()
	srv := httptest.NewServer(NewMux(Config{}, state))
	defer srv.Close()

	_, body := get(t, srv, "/healthz")
	var resp map[string]any
	require.NoError(t, sonic.UnmarshalString(body, &resp))
	require.Equal(t, float64(0), resp["lastSignalUnix"])
	require.NotContains(t, resp, "wsConnected")

	state.SetStreamEnabled(true)
	state.SetWSConnected(true)
	state.TouchSignal(time.Unix(1700000000, 0), "ok")

	_, body = get(t, srv, "/healthz")
	resp = nil
	require.NoError(t, sonic.UnmarshalString(body, &resp))
	require.Equal(t, float64(1700000000), resp["lastSignalUnix"])
	require.Equal(t, "ok", resp["lastStatus"])
	require.Equal(t, true, resp["wsConnected"])
	require.Equal(t, float64(1), resp["signals"])
}
