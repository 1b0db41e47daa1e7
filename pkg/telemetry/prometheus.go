package telemetry

import (
	"context"
	"net/http"

	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors describing pipeline runs. It
// implements runtime.Observer and is safe for concurrent use.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	nodeInvocations  *prometheus.CounterVec
	nodeDuration     *prometheus.HistogramVec
	outputsCollected *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flow_runs_total",
				Help: "Total number of pipeline runs by status",
			},
			[]string{"pipeline", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flow_run_duration_seconds",
				Help:    "Pipeline run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),
		nodeInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flow_node_invocations_total",
				Help: "Total number of node invocations by kind and outcome",
			},
			[]string{"pipeline", "kind", "outcome"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flow_node_duration_seconds",
				Help:    "Node processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline", "kind"},
		),
		outputsCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flow_outputs_collected_total",
				Help: "Total number of values collected from output nodes",
			},
			[]string{"pipeline", "node"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.nodeInvocations,
		m.nodeDuration,
		m.outputsCollected,
	)

	return m
}

// NodeProcessed records one node invocation.
func (m *Metrics) NodeProcessed(_ context.Context, event runtime.NodeEvent) {
	m.nodeInvocations.WithLabelValues(event.Pipeline, event.NodeKind, string(event.Outcome)).Inc()
	m.nodeDuration.WithLabelValues(event.Pipeline, event.NodeKind).Observe(event.Duration.Seconds())
	if event.Collected {
		m.outputsCollected.WithLabelValues(event.Pipeline, string(event.NodeID)).Inc()
	}
}

// RunCompleted records a finished run.
func (m *Metrics) RunCompleted(_ context.Context, event runtime.RunEvent) {
	status := "success"
	if event.Err != nil {
		status = "failure"
	}
	m.runsTotal.WithLabelValues(event.Pipeline, status).Inc()
	m.runDuration.WithLabelValues(event.Pipeline).Observe(event.Duration.Seconds())
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
