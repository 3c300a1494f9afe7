// Package metrics holds the Prometheus collectors for the pipeline
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modwatch"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ingest metrics
	Ingested     prometheus.Counter
	IngestErrors *prometheus.CounterVec
	Resubscribes prometheus.Counter

	// Sink metrics
	SegmentsSealed prometheus.Counter

	// Recheck metrics
	RecheckBatches   *prometheus.CounterVec
	Removed          *prometheus.CounterVec
	LookupErrors     *prometheus.CounterVec
	SegmentsArchived prometheus.Counter
	QueueDepth       prometheus.Gauge
	InFlight         prometheus.Gauge

	// Verdict sink metrics
	VerdictRows   prometheus.Counter
	VerdictErrors prometheus.Counter

	reg *prometheus.Registry
}

// New creates metrics on a private registry so tests and multiple
// instances never collide on the default one
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Ingested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_total",
			Help:      "Total number of items appended to the active log",
		}),
		IngestErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_errors_total",
				Help:      "Ingest failures by error class",
			},
			[]string{"kind"},
		),
		Resubscribes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resubscribes_total",
			Help:      "Times the stream subscription was restarted after a failure",
		}),
		SegmentsSealed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_sealed_total",
			Help:      "Log segments sealed by rotation",
		}),
		RecheckBatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recheck_batches_total",
				Help:      "Recheck batches by outcome",
			},
			[]string{"outcome"},
		),
		Removed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "removed_total",
				Help:      "Items flagged as removed by first matching signal",
			},
			[]string{"signal"},
		),
		LookupErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookup_errors_total",
				Help:      "Batch lookup failures by error class",
			},
			[]string{"kind"},
		),
		SegmentsArchived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_archived_total",
			Help:      "Segments compressed and removed after recheck",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recheck_queue_depth",
			Help:      "Sealed segments waiting for a recheck worker",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recheck_in_flight",
			Help:      "Segments currently being rechecked",
		}),
		VerdictRows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_rows_total",
			Help:      "Verdict rows written to the analytics sink",
		}),
		VerdictErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_errors_total",
			Help:      "Failed verdict sink writes",
		}),
		reg: reg,
	}
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// OrNew returns m or a fresh private set when m is nil
func OrNew(m *Metrics) *Metrics {
	if m != nil {
		return m
	}
	return New()
}
