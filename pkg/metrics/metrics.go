// Package metrics instruments the transport and session layers with
// Prometheus collectors. All exported *Metrics methods are nil-receiver
// safe, so a nil *Metrics costs nothing on the hot path. A nil Recorder
// interface value is not safe to call; UseMetrics replaces nil with Noop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the instrumentation surface consumed by pkg/transport and
// pkg/session. Both packages hold a Recorder field defaulting to Noop, so
// callers that never call UseMetrics pay no Prometheus overhead at all.
type Recorder interface {
	ObserveFrame(channel, direction string)
	ObserveFragment(channel, direction string)
	RecordFragmentError(reason string)
	ObserveDispatchLatency(d time.Duration)
	SetResolverHitRate(rate float64)
	SetDeclarationTableSize(table, direction string, n int)
}

type noop struct{}

func (noop) ObserveFrame(string, string)          {}
func (noop) ObserveFragment(string, string)       {}
func (noop) RecordFragmentError(string)           {}
func (noop) ObserveDispatchLatency(time.Duration) {}
func (noop) SetResolverHitRate(float64)           {}
func (noop) SetDeclarationTableSize(string, string, int) {}

// Noop is the zero-overhead Recorder used until UseMetrics is called.
var Noop Recorder = noop{}

// Metrics is the Prometheus-backed Recorder. A nil *Metrics behaves like
// Noop, so it can be embedded directly in a struct literal before New is
// called.
type Metrics struct {
	frames            *prometheus.CounterVec
	fragments         *prometheus.CounterVec
	fragmentErrors    *prometheus.CounterVec
	dispatchLatency   prometheus.Histogram
	resolverHitRate   prometheus.Gauge
	declarationTables *prometheus.GaugeVec
}

// New registers the zenopico collectors against reg and returns the
// Recorder implementation. Pass prometheus.DefaultRegisterer, or a
// prometheus.NewRegistry() in tests that want an isolated collector set.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		frames: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenopico_transport_frames_total",
				Help: "Total number of transport frames processed, by logical channel and direction",
			},
			[]string{"channel", "direction"}, // direction: "recv", "send"
		),
		fragments: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenopico_transport_fragments_total",
				Help: "Total number of transport fragments processed, by logical channel and direction",
			},
			[]string{"channel", "direction"},
		),
		fragmentErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenopico_transport_fragment_errors_total",
				Help: "Total number of fragment reassembly failures, by reason",
			},
			[]string{"reason"}, // "malformed" or "too_large"; a message that never gets its final fragment is not counted
		),
		dispatchLatency: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "zenopico_session_dispatch_latency_seconds",
				Help: "Time spent resolving and delivering an incoming sample to matching subscriber handlers",
				Buckets: []float64{
					0.00005, // 50us
					0.0001,  // 100us
					0.0005,  // 500us
					0.001,   // 1ms
					0.005,   // 5ms
					0.01,    // 10ms
					0.05,    // 50ms
					0.1,     // 100ms
				},
			},
		),
		resolverHitRate: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "zenopico_keyexpr_resolver_hit_rate",
				Help: "Ratio of key-expression resolver lookups served from the LRU cache",
			},
		),
		declarationTables: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zenopico_session_declaration_table_size",
				Help: "Current number of entries in a session declaration table, by table and direction",
			},
			[]string{"table", "direction"}, // table: resources/subscribers/queryables/publishers/tokens, direction: local/remote
		),
	}
}

func (m *Metrics) ObserveFrame(channel, direction string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(channel, direction).Inc()
}

func (m *Metrics) ObserveFragment(channel, direction string) {
	if m == nil {
		return
	}
	m.fragments.WithLabelValues(channel, direction).Inc()
}

func (m *Metrics) RecordFragmentError(reason string) {
	if m == nil {
		return
	}
	m.fragmentErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveDispatchLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d.Seconds())
}

func (m *Metrics) SetResolverHitRate(rate float64) {
	if m == nil {
		return
	}
	m.resolverHitRate.Set(rate)
}

func (m *Metrics) SetDeclarationTableSize(table, direction string, n int) {
	if m == nil {
		return
	}
	m.declarationTables.WithLabelValues(table, direction).Set(float64(n))
}
