package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKinds() *KindRegistry {
	reg := NewKindRegistry()
	reg.Register("const", func(spec domain.NodeSpec) (runtime.Node, error) {
		value, _ := spec.Params["value"].(int)
		return runtime.NewFunc(runtime.Spec{ID: spec.ID, Kind: spec.Kind, Output: domain.TypeScalar, IsOutput: spec.Output},
			func(context.Context, any) (any, error) { return value, nil }), nil
	})
	reg.Register("double", func(spec domain.NodeSpec) (runtime.Node, error) {
		return runtime.NewFunc(runtime.Spec{ID: spec.ID, Kind: spec.Kind, Input: domain.TypeScalar, Output: domain.TypeScalar, IsOutput: spec.Output},
			func(_ context.Context, input any) (any, error) { return input.(int) * 2, nil }), nil
	})
	reg.Register("label", func(spec domain.NodeSpec) (runtime.Node, error) {
		return runtime.NewFunc(runtime.Spec{ID: spec.ID, Kind: spec.Kind, Input: domain.TypeText, IsOutput: spec.Output}, nil), nil
	})
	return reg
}

func TestBuildRunsDeclaredPipeline(t *testing.T) {
	spec := domain.PipelineSpec{
		ID: "doubling",
		Nodes: []domain.NodeSpec{
			{ID: "a", Kind: "const", Params: map[string]any{"value": 2}},
			{ID: "b", Kind: "const", Params: map[string]any{"value": 5}},
			{ID: "sum", Kind: "double", Output: true},
		},
		Edges: []domain.EdgeSpec{{From: []domain.NodeID{"a", "b"}, To: "sum"}},
	}

	runner, err := Build(spec, testKinds(), RunnerConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	assert.Equal(t, "doubling", runner.PipelineID())
	assert.Equal(t, []domain.NodeID{"a", "b"}, runner.Graph().Heads())

	outputs, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Outputs{"sum": {4, 10}}, outputs)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		spec    domain.PipelineSpec
		wantErr error
	}{
		{
			name:    "missing id",
			spec:    domain.PipelineSpec{Nodes: []domain.NodeSpec{{Kind: "const"}}},
			wantErr: domain.ErrConfigInvalid,
		},
		{
			name:    "unknown kind",
			spec:    domain.PipelineSpec{Nodes: []domain.NodeSpec{{ID: "x", Kind: "nope"}}},
			wantErr: domain.ErrUnknownKind,
		},
		{
			name:    "duplicate node",
			spec:    domain.PipelineSpec{Nodes: []domain.NodeSpec{{ID: "x", Kind: "const"}, {ID: "x", Kind: "const"}}},
			wantErr: domain.ErrDuplicateNode,
		},
		{
			name: "undeclared target",
			spec: domain.PipelineSpec{
				Nodes: []domain.NodeSpec{{ID: "x", Kind: "const"}},
				Edges: []domain.EdgeSpec{{From: []domain.NodeID{"x"}, To: "y"}},
			},
			wantErr: domain.ErrUnknownNode,
		},
		{
			name: "undeclared source",
			spec: domain.PipelineSpec{
				Nodes: []domain.NodeSpec{{ID: "y", Kind: "double"}},
				Edges: []domain.EdgeSpec{{From: []domain.NodeID{"x"}, To: "y"}},
			},
			wantErr: domain.ErrUnknownNode,
		},
		{
			name: "type mismatch",
			spec: domain.PipelineSpec{
				Nodes: []domain.NodeSpec{{ID: "x", Kind: "const"}, {ID: "y", Kind: "label"}},
				Edges: []domain.EdgeSpec{{From: []domain.NodeID{"x"}, To: "y"}},
			},
			wantErr: domain.ErrTypeMismatch,
		},
		{
			name: "cycle",
			spec: domain.PipelineSpec{
				Nodes: []domain.NodeSpec{{ID: "x", Kind: "double"}, {ID: "y", Kind: "double"}},
				Edges: []domain.EdgeSpec{
					{From: []domain.NodeID{"x"}, To: "y"},
					{From: []domain.NodeID{"y"}, To: "x"},
				},
			},
			wantErr: domain.ErrCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.spec, testKinds(), RunnerConfig{})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuildHonorsAllowCycles(t *testing.T) {
	spec := domain.PipelineSpec{
		AllowCycles: true,
		Nodes:       []domain.NodeSpec{{ID: "x", Kind: "double"}, {ID: "y", Kind: "double"}},
		Edges: []domain.EdgeSpec{
			{From: []domain.NodeID{"x"}, To: "y"},
			{From: []domain.NodeID{"y"}, To: "x"},
		},
	}
	runner, err := Build(spec, testKinds(), RunnerConfig{})
	require.NoError(t, err)
	assert.True(t, runner.Graph().AllowCycles())
	assert.Equal(t, 2, runner.Graph().EdgeCount())
}

func TestBuildRequiresRegistry(t *testing.T) {
	_, err := Build(domain.PipelineSpec{}, nil, RunnerConfig{})
	require.ErrorIs(t, err, domain.ErrConfigInvalid)
}
