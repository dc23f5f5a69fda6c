package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/slb-bond-backend/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/api/v1/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
}

func newTestServer(t *testing.T, pprof bool) *Server {
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gatherer:                 prometheus.NewRegistry(),
		EnablePprof:              pprof,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, pingHandler{})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code, w.Body.String()
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(&api.HTTPServerConfig{})
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	code, body := get(t, h, "/api/v1/ping")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", body)

	code, _ = get(t, h, "/api/v1/panic")
	assert.Equal(t, http.StatusInternalServerError, code)

	code, body = get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"alive"}`, body)

	code, _ = get(t, h, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPprof(t *testing.T) {
	code, _ := get(t, newTestServer(t, true).Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
}

func TestDrainUndrain(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	code, _ := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	_, body := get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"draining"}`, body)
	assert.False(t, srv.IsReady())

	code, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, body = get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, body)

	_, body = get(t, h, "/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, body)
	_, body = get(t, h, "/undrain")
	assert.JSONEq(t, `{"status":"already ready"}`, body)
	assert.True(t, srv.IsReady())
}
