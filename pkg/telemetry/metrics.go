package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce          sync.Once
	metricsInitErr       error
	nodeExecutionCounter metric.Int64Counter
	nodeFailureCounter   metric.Int64Counter
	nodeLatencyHistogram metric.Float64Histogram
)

// NodeMetrics captures the fields needed to record node telemetry metrics.
type NodeMetrics struct {
	PipelineID string
	NodeID     string
	NodeKind   string
	Outcome    runtime.NodeOutcome
	Duration   time.Duration
}

// RecordNodeMetrics emits counters and histograms that describe node execution behaviour.
func RecordNodeMetrics(ctx context.Context, metrics NodeMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("pipeline.id", metrics.PipelineID),
		attribute.String("node.id", metrics.NodeID),
		attribute.String("node.kind", metrics.NodeKind),
		attribute.String("node.outcome", string(metrics.Outcome)),
	}

	nodeExecutionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if metrics.Duration > 0 {
		nodeLatencyHistogram.Record(ctx, float64(metrics.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if metrics.Outcome != runtime.OutcomeSuccess {
		nodeFailureCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("flow.pipeline")

		nodeExecutionCounter, metricsInitErr = meter.Int64Counter(
			"flow.node.executions_total",
			metric.WithDescription("Pipeline node invocations partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		nodeFailureCounter, metricsInitErr = meter.Int64Counter(
			"flow.node.failures_total",
			metric.WithDescription("Pipeline node invocations that failed or were canceled"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		nodeLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"flow.node.duration_ms",
			metric.WithDescription("Observed node processing latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
