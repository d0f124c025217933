package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listener serves the Prometheus scrape endpoint and a liveness probe.
type Listener struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewListener builds the metrics endpoint for the given gatherer, normally
// the same registry the Recorder was registered with.
func NewListener(addr string, g prometheus.Gatherer, logger *slog.Logger) *Listener {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Listener{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "metrics")),
	}
}

// Start begins listening for scrapes. It blocks until the listener encounters
// an error or is shut down.
func (l *Listener) Start() error {
	l.logger.Info("metrics listener starting", slog.String("addr", l.httpServer.Addr))
	if err := l.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the listener, waiting for in-flight scrapes to
// complete within the given context deadline.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.logger.Info("metrics listener shutting down")
	if err := l.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
