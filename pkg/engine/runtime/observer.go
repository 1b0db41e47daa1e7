package runtime

import (
	"context"
	"time"

	"github.com/polisai/polis-flow/pkg/domain"
)

// NodeOutcome captures the classification of a node invocation.
type NodeOutcome string

const (
	// OutcomeSuccess indicates the node returned a value.
	OutcomeSuccess NodeOutcome = "success"
	// OutcomeFailure indicates the node returned an error.
	OutcomeFailure NodeOutcome = "failure"
	// OutcomeCanceled indicates the run context ended before or during the call.
	OutcomeCanceled NodeOutcome = "canceled"
)

// NodeEvent describes one node invocation within a run.
type NodeEvent struct {
	RunID     string
	Pipeline  string
	NodeID    domain.NodeID
	NodeKind  string
	Outcome   NodeOutcome
	Duration  time.Duration
	Collected bool // the result was appended to the run outputs
	Err       error
}

// RunEvent summarises a completed run.
type RunEvent struct {
	RunID       string
	Pipeline    string
	Heads       int
	Invocations int
	Duration    time.Duration
	Err         error
}

// Observer receives execution events from the runner. Implementations must be
// safe for concurrent use when the runner executes heads in parallel.
type Observer interface {
	NodeProcessed(ctx context.Context, event NodeEvent)
	RunCompleted(ctx context.Context, event RunEvent)
}

// Observers fans events out to multiple observers.
type Observers []Observer

// NodeProcessed forwards event to every observer.
func (o Observers) NodeProcessed(ctx context.Context, event NodeEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.NodeProcessed(ctx, event)
		}
	}
}

// RunCompleted forwards event to every observer.
func (o Observers) RunCompleted(ctx context.Context, event RunEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.RunCompleted(ctx, event)
		}
	}
}
