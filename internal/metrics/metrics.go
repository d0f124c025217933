// Package metrics exposes the engine's Prometheus instrumentation behind a
// plain method set so callers never touch collector types directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder registers and drives all sniperd collectors.
type Recorder struct {
	rpcCalls        *prometheus.CounterVec
	rpcErrors       *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
	quotes          *prometheus.CounterVec
	assessments     *prometheus.CounterVec
	pairsDiscovered *prometheus.CounterVec
	snipes          *prometheus.CounterVec
	wsReconnects    prometheus.Counter
	opLatency       *prometheus.HistogramVec
}

// New registers the sniperd collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		rpcCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniperd_rpc_calls_total",
				Help: "Chain RPC calls by method",
			},
			[]string{"method"},
		),
		rpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniperd_rpc_errors_total",
				Help: "Failed chain RPC calls by method",
			},
			[]string{"method"},
		),
		cacheOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniperd_cache_ops_total",
				Help: "Cache lookups by namespace and outcome",
			},
			[]string{"namespace", "outcome"},
		),
		quotes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniperd_quotes_total",
				Help: "Routing requests by outcome",
			},
			[]string{"outcome"},
		),
		assessments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniperd_assessments_total",
				Help: "Risk assessments by resulting level",
			},
			[]string{"level"},
		),
		pairsDiscovered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniperd_pairs_discovered_total",
				Help: "New pairs seen by the watcher, by venue",
			},
			[]string{"exchange"},
		),
		snipes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniperd_snipes_total",
				Help: "Snipe pipeline outcomes",
			},
			[]string{"status"},
		),
		wsReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sniperd_ws_reconnects_total",
				Help: "Websocket watcher reconnects",
			},
		),
		opLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sniperd_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRPC counts one chain RPC call and its failure, if any.
func (r *Recorder) RecordRPC(method string, err error) {
	if r == nil {
		return
	}
	r.rpcCalls.WithLabelValues(method).Inc()
	if err != nil {
		r.rpcErrors.WithLabelValues(method).Inc()
	}
}

// RecordCache counts one cache lookup.
func (r *Recorder) RecordCache(namespace string, hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheOps.WithLabelValues(namespace, outcome).Inc()
}

// RecordQuote counts one routing request by outcome (ok, no_route, error).
func (r *Recorder) RecordQuote(outcome string) {
	if r == nil {
		return
	}
	r.quotes.WithLabelValues(outcome).Inc()
}

// RecordAssessment counts one finished risk assessment.
func (r *Recorder) RecordAssessment(level string) {
	if r == nil {
		return
	}
	r.assessments.WithLabelValues(level).Inc()
}

// RecordPairDiscovered counts one pair-created event.
func (r *Recorder) RecordPairDiscovered(exchange string) {
	if r == nil {
		return
	}
	r.pairsDiscovered.WithLabelValues(exchange).Inc()
}

// RecordSnipe counts one snipe pipeline outcome.
func (r *Recorder) RecordSnipe(status string) {
	if r == nil {
		return
	}
	r.snipes.WithLabelValues(status).Inc()
}

// RecordWSReconnect counts one watcher reconnect.
func (r *Recorder) RecordWSReconnect() {
	if r == nil {
		return
	}
	r.wsReconnects.Inc()
}

// RecordLatency records one operation duration in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	if r == nil {
		return
	}
	r.opLatency.WithLabelValues(op).Observe(seconds)
}
