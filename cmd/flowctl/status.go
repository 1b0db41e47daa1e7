package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// runStatus remembers the most recent run seen by the watch loop and serves it
// as JSON. It implements runtime.Observer.
type runStatus struct {
	mu       sync.Mutex
	last     *runtime.RunEvent
	failures map[string]string // node id -> last error within the current run
	pending  map[string]string
}

type statusReport struct {
	RunID       string            `json:"run_id,omitempty"`
	Pipeline    string            `json:"pipeline,omitempty"`
	OK          bool              `json:"ok"`
	Error       string            `json:"error,omitempty"`
	Invocations int               `json:"invocations"`
	DurationMS  int64             `json:"duration_ms"`
	FailedNodes map[string]string `json:"failed_nodes,omitempty"`
}

func (s *runStatus) NodeProcessed(_ context.Context, event runtime.NodeEvent) {
	if event.Err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[string]string)
	}
	s.pending[string(event.NodeID)] = event.Err.Error()
}

func (s *runStatus) RunCompleted(_ context.Context, event runtime.RunEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &event
	s.failures, s.pending = s.pending, nil
}

func (s *runStatus) report() (statusReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return statusReport{}, false
	}
	r := statusReport{
		RunID:       s.last.RunID,
		Pipeline:    s.last.Pipeline,
		OK:          s.last.Err == nil,
		Invocations: s.last.Invocations,
		DurationMS:  s.last.Duration.Milliseconds(),
	}
	if s.last.Err != nil {
		r.Error = s.last.Err.Error()
	}
	if len(s.failures) > 0 {
		r.FailedNodes = make(map[string]string, len(s.failures))
		for k, v := range s.failures {
			r.FailedNodes[k] = v
		}
	}
	return r, true
}

// ServeHTTP answers 503 until a run completes, 200 after a successful run and
// 500 after a failed one.
func (s *runStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.report()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case !ok:
		w.WriteHeader(http.StatusServiceUnavailable)
	case !report.OK:
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(report)
}

var _ runtime.Observer = (*runStatus)(nil)
