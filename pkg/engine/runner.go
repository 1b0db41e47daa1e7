package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/polisai/polis-flow/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "flow.pipeline"

// Outputs maps an output node's identity to the values it produced during a run,
// in production order.
type Outputs map[domain.NodeID][]any

// RunnerConfig holds dependencies and options for creating a PipelineRunner.
type RunnerConfig struct {
	PipelineID  string
	AllowCycles bool
	// Parallel > 1 runs head subtrees concurrently with at most Parallel
	// subtrees in flight. Invocations of a single node are serialized.
	Parallel int
	Logger   *slog.Logger
	Observer runtime.Observer
}

// PipelineRunner owns a graph and the registry of its nodes, and executes the
// graph by propagating values depth-first from every head.
//
// Registration and connection must complete before Run; Run itself may be
// invoked repeatedly and each call returns a fresh Outputs.
type PipelineRunner struct {
	pipelineID string
	parallel   int
	graph      *Graph
	nodes      map[domain.NodeID]runtime.Node
	logger     *slog.Logger
	observer   runtime.Observer
}

// NewPipelineRunner creates a runner with an empty graph.
func NewPipelineRunner(cfg RunnerConfig) *PipelineRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pipelineID := cfg.PipelineID
	if pipelineID == "" {
		pipelineID = "default"
	}

	return &PipelineRunner{
		pipelineID: pipelineID,
		parallel:   cfg.Parallel,
		graph:      NewGraph(cfg.AllowCycles),
		nodes:      make(map[domain.NodeID]runtime.Node),
		logger:     logger,
		observer:   cfg.Observer,
	}
}

// PipelineID returns the identifier used in logs, spans and metrics.
func (r *PipelineRunner) PipelineID() string {
	return r.pipelineID
}

// Graph exposes the topology for read-only consumers such as renderers. Use
// RegisterNode and ConnectSource to change it.
func (r *PipelineRunner) Graph() Topology {
	return graphView{g: r.graph}
}

// Node returns the registered node with the given identity.
func (r *PipelineRunner) Node(id domain.NodeID) (runtime.Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// RegisterNode adds node to the registry and the graph.
func (r *PipelineRunner) RegisterNode(node runtime.Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", domain.ErrUnknownNode)
	}
	if err := r.graph.AddNode(node); err != nil {
		return err
	}
	r.nodes[node.ID()] = node
	return nil
}

// RegisterNodes registers nodes in order, stopping at the first failure.
func (r *PipelineRunner) RegisterNodes(nodes ...runtime.Node) error {
	for _, node := range nodes {
		if err := r.RegisterNode(node); err != nil {
			return err
		}
	}
	return nil
}

// ConnectSource connects src to dst. The type match is checked here before the
// graph applies its own checks; endpoints that were never registered are added
// to both the registry and the graph.
func (r *PipelineRunner) ConnectSource(src, dst runtime.Node) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil endpoint", domain.ErrUnknownNode)
	}
	if src.OutputType() != dst.InputType() {
		return &domain.TypeMismatchError{
			Source:      src.ID(),
			Destination: dst.ID(),
			Output:      src.OutputType(),
			Input:       dst.InputType(),
		}
	}

	if err := r.graph.Connect(src, dst); err != nil {
		return err
	}

	for _, endpoint := range []runtime.Node{src, dst} {
		if _, ok := r.nodes[endpoint.ID()]; !ok {
			r.nodes[endpoint.ID()] = endpoint
		}
	}
	return nil
}

// ConnectSources connects every source to dst in order, stopping at the first
// failure.
func (r *PipelineRunner) ConnectSources(srcs []runtime.Node, dst runtime.Node) error {
	for _, src := range srcs {
		if err := r.ConnectSource(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// runState is the per-run mutable state.
type runState struct {
	id          string
	tracer      trace.Tracer
	outputs     Outputs
	outputsMu   sync.Mutex
	nodeLocks   map[domain.NodeID]*sync.Mutex // nil when running sequentially
	invocations atomic.Int64
}

func (s *runState) collect(id domain.NodeID, value any) {
	s.outputsMu.Lock()
	s.outputs[id] = append(s.outputs[id], value)
	s.outputsMu.Unlock()
}

// Run executes the pipeline from every head. Heads receive a nil input. Each node
// is invoked once per inbound path; its result is collected when the node is an
// output and then passed to every child in edge-creation order.
//
// The first failure aborts the run and no outputs are returned.
func (r *PipelineRunner) Run(ctx context.Context) (Outputs, error) {
	state := &runState{
		id:      uuid.New().String(),
		tracer:  otel.Tracer(tracerName),
		outputs: make(Outputs),
	}
	heads := r.graph.Heads()
	parallel := r.parallel > 1 && len(heads) > 1
	if parallel {
		state.nodeLocks = make(map[domain.NodeID]*sync.Mutex, len(r.nodes))
		for id := range r.nodes {
			state.nodeLocks[id] = &sync.Mutex{}
		}
	}

	ctx, span := state.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.id", r.pipelineID),
		attribute.String("run.id", state.id),
		attribute.Int("pipeline.nodes", r.graph.Len()),
		attribute.Int("pipeline.heads", len(heads)),
		attribute.Bool("run.parallel", parallel),
	))
	defer span.End()

	r.logger.Info("running pipeline",
		"pipeline_id", r.pipelineID,
		"run_id", state.id,
		"nodes", r.graph.Len(),
		"heads", len(heads),
		"parallel", parallel,
	)

	start := time.Now()
	var err error
	if parallel {
		err = r.runParallel(ctx, state, heads)
	} else {
		for _, head := range heads {
			if err = r.propagate(ctx, state, head, nil, 0); err != nil {
				break
			}
		}
	}
	duration := time.Since(start)

	if r.observer != nil {
		r.observer.RunCompleted(ctx, runtime.RunEvent{
			RunID:       state.id,
			Pipeline:    r.pipelineID,
			Heads:       len(heads),
			Invocations: int(state.invocations.Load()),
			Duration:    duration,
			Err:         err,
		})
	}

	span.SetAttributes(attribute.Int64("run.invocations", state.invocations.Load()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("pipeline run failed",
			"pipeline_id", r.pipelineID,
			"run_id", state.id,
			"error", err,
		)
		return nil, err
	}

	r.logger.Info("pipeline run complete",
		"pipeline_id", r.pipelineID,
		"run_id", state.id,
		"invocations", state.invocations.Load(),
		"outputs", len(state.outputs),
		"duration", duration,
	)
	return state.outputs, nil
}

func (r *PipelineRunner) runParallel(ctx context.Context, state *runState, heads []domain.NodeID) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for _, head := range heads {
		head := head
		g.Go(func() error {
			return r.propagate(gCtx, state, head, nil, 0)
		})
	}
	return g.Wait()
}

// propagate runs id with input and recurses into its children. depth counts the
// nodes above id on the current path; a path longer than the node count can only
// come from a cycle.
func (r *PipelineRunner) propagate(ctx context.Context, state *runState, id domain.NodeID, input any, depth int) error {
	if depth >= r.graph.Len() {
		return fmt.Errorf("%w: path from a head exceeds %d nodes at %s", domain.ErrCycle, r.graph.Len(), id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	node, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownNode, id)
	}

	result, err := r.invoke(ctx, state, node, input)
	if err != nil {
		return err
	}

	for _, child := range r.graph.Children(id) {
		if err := r.propagate(ctx, state, child, result, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// invoke calls Process under a node span and records the result.
func (r *PipelineRunner) invoke(ctx context.Context, state *runState, node runtime.Node, input any) (result any, err error) {
	id := node.ID()
	nodeCtx, span := state.tracer.Start(ctx, "pipeline.node", trace.WithAttributes(
		attribute.String("node.id", string(id)),
		attribute.String("node.kind", node.Kind()),
		attribute.String("node.input_type", node.InputType().String()),
		attribute.String("node.output_type", node.OutputType().String()),
	))
	defer span.End()

	if lock := state.nodeLocks[id]; lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}

	start := time.Now()
	result, err = safeProcess(nodeCtx, node, input)
	duration := time.Since(start)
	state.invocations.Add(1)

	outcome := runtime.OutcomeSuccess
	if err != nil {
		outcome = classifyError(err)
		var procErr *domain.ProcessingError
		if !errors.As(err, &procErr) || procErr.Node != id {
			err = &domain.ProcessingError{Node: id, Kind: node.Kind(), Err: err}
		}
	}

	collected := err == nil && node.IsOutput()
	if collected {
		state.collect(id, result)
	}

	span.SetAttributes(
		attribute.String("node.outcome", string(outcome)),
		attribute.Bool("node.collected", collected),
	)
	telemetry.RecordNodeMetrics(ctx, telemetry.NodeMetrics{
		PipelineID: r.pipelineID,
		NodeID:     string(id),
		NodeKind:   node.Kind(),
		Outcome:    outcome,
		Duration:   duration,
	})
	if r.observer != nil {
		r.observer.NodeProcessed(ctx, runtime.NodeEvent{
			RunID:     state.id,
			Pipeline:  r.pipelineID,
			NodeID:    id,
			NodeKind:  node.Kind(),
			Outcome:   outcome,
			Duration:  duration,
			Collected: collected,
			Err:       err,
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("node processing failed",
			"pipeline_id", r.pipelineID,
			"node_id", id,
			"node_kind", node.Kind(),
			"error", err,
		)
		return nil, err
	}

	r.logger.Debug("node processed",
		"pipeline_id", r.pipelineID,
		"node_id", id,
		"node_kind", node.Kind(),
		"collected", collected,
		"duration", duration,
	)
	return result, nil
}

// safeProcess converts a panicking node into an error.
func safeProcess(ctx context.Context, node runtime.Node, input any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return node.Process(ctx, input)
}

func classifyError(err error) runtime.NodeOutcome {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return runtime.OutcomeCanceled
	default:
		return runtime.OutcomeFailure
	}
}
