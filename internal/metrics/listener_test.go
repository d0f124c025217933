package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)
	rec.RecordQuote("ok")
	rec.RecordSnipe("planned")

	l := NewListener(":0", reg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	l.httpServer.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `sniperd_quotes_total{outcome="ok"} 1`)
	assert.Contains(t, body, `sniperd_snipes_total{status="planned"} 1`)
}

func TestListenerHealthz(t *testing.T) {
	l := NewListener(":0", prometheus.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	l.httpServer.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
