package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getStatus(t *testing.T, status *runStatus) (int, statusReport) {
	t.Helper()
	rec := httptest.NewRecorder()
	status.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var report statusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return rec.Code, report
}

func TestRunStatusBeforeFirstRun(t *testing.T) {
	code, report := getStatus(t, &runStatus{})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, report.OK)
}

func TestRunStatusTracksLastRun(t *testing.T) {
	status := &runStatus{}
	var observer runtime.Observer = runtime.Observers{status}
	ctx := context.Background()

	observer.NodeProcessed(ctx, runtime.NodeEvent{RunID: "r1", NodeID: "fetch", Outcome: runtime.OutcomeFailure, Err: errors.New("quote service down")})
	observer.RunCompleted(ctx, runtime.RunEvent{RunID: "r1", Pipeline: "portfolio", Invocations: 2, Duration: 1500 * time.Millisecond, Err: errors.New("node fetch: quote service down")})

	code, report := getStatus(t, status)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, statusReport{
		RunID:       "r1",
		Pipeline:    "portfolio",
		Error:       "node fetch: quote service down",
		Invocations: 2,
		DurationMS:  1500,
		FailedNodes: map[string]string{"fetch": "quote service down"},
	}, report)

	observer.NodeProcessed(ctx, runtime.NodeEvent{RunID: "r2", NodeID: "fetch", Outcome: runtime.OutcomeSuccess})
	observer.RunCompleted(ctx, runtime.RunEvent{RunID: "r2", Pipeline: "portfolio", Invocations: 4})

	code, report = getStatus(t, status)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, report.OK)
	assert.Equal(t, "r2", report.RunID)
	assert.Empty(t, report.FailedNodes)
}
