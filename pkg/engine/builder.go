package engine

import (
	"fmt"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// Build turns a declarative pipeline into a runner. Nodes are registered in
// declaration order and edges are connected in file order, so head order and
// fan-out order follow the document.
func Build(spec domain.PipelineSpec, kinds *KindRegistry, cfg RunnerConfig) (*PipelineRunner, error) {
	if kinds == nil {
		return nil, fmt.Errorf("%w: no kind registry", domain.ErrConfigInvalid)
	}
	if cfg.PipelineID == "" {
		cfg.PipelineID = spec.ID
	}
	cfg.AllowCycles = cfg.AllowCycles || spec.AllowCycles

	runner := NewPipelineRunner(cfg)

	for i, nodeSpec := range spec.Nodes {
		if nodeSpec.ID == "" {
			return nil, fmt.Errorf("%w: node #%d has no id", domain.ErrConfigInvalid, i)
		}
		node, err := kinds.New(nodeSpec)
		if err != nil {
			return nil, fmt.Errorf("build node %s: %w", nodeSpec.ID, err)
		}
		if err := runner.RegisterNode(node); err != nil {
			return nil, err
		}
	}

	for _, edge := range spec.Edges {
		dst, ok := runner.Node(edge.To)
		if !ok {
			return nil, fmt.Errorf("%w: edge targets undeclared node %q", domain.ErrUnknownNode, edge.To)
		}
		srcs := make([]runtime.Node, 0, len(edge.From))
		for _, from := range edge.From {
			src, ok := runner.Node(from)
			if !ok {
				return nil, fmt.Errorf("%w: edge from undeclared node %q", domain.ErrUnknownNode, from)
			}
			srcs = append(srcs, src)
		}
		if err := runner.ConnectSources(srcs, dst); err != nil {
			return nil, err
		}
	}

	return runner, nil
}
