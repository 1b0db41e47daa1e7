package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNodeProcessed(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.NodeProcessed(ctx, runtime.NodeEvent{
		Pipeline:  "demo",
		NodeID:    "sink",
		NodeKind:  "print",
		Outcome:   runtime.OutcomeSuccess,
		Duration:  5 * time.Millisecond,
		Collected: true,
	})
	m.NodeProcessed(ctx, runtime.NodeEvent{
		Pipeline: "demo",
		NodeID:   "sink",
		NodeKind: "print",
		Outcome:  runtime.OutcomeFailure,
		Duration: time.Millisecond,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeInvocations.WithLabelValues("demo", "print", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeInvocations.WithLabelValues("demo", "print", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outputsCollected.WithLabelValues("demo", "sink")))
}

func TestMetricsRunCompleted(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.RunCompleted(ctx, runtime.RunEvent{Pipeline: "demo", Duration: time.Second})
	m.RunCompleted(ctx, runtime.RunEvent{Pipeline: "demo", Duration: time.Second})
	m.RunCompleted(ctx, runtime.RunEvent{Pipeline: "demo", Err: errors.New("boom")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("demo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("demo", "failure")))
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.RunCompleted(context.Background(), runtime.RunEvent{Pipeline: "demo"})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `flow_runs_total{pipeline="demo",status="success"} 1`)
}
