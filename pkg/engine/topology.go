package engine

import (
	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// Topology is the read-only surface of a Graph. Mutation goes through the
// owning runner so the node registry and the graph stay in step.
type Topology interface {
	AllowCycles() bool
	Heads() []domain.NodeID
	IsHead(id domain.NodeID) bool
	HasEdge(src, dst domain.NodeID) bool
	Has(id domain.NodeID) bool
	Node(id domain.NodeID) (runtime.Node, bool)
	Nodes() []domain.NodeID
	Children(id domain.NodeID) []domain.NodeID
	Edges() []Edge
	Len() int
	EdgeCount() int
}

var _ Topology = (*Graph)(nil)

// graphView hides the mutating methods of the wrapped graph.
type graphView struct {
	g *Graph
}

func (v graphView) AllowCycles() bool                          { return v.g.AllowCycles() }
func (v graphView) Heads() []domain.NodeID                     { return v.g.Heads() }
func (v graphView) IsHead(id domain.NodeID) bool               { return v.g.IsHead(id) }
func (v graphView) HasEdge(src, dst domain.NodeID) bool        { return v.g.HasEdge(src, dst) }
func (v graphView) Has(id domain.NodeID) bool                  { return v.g.Has(id) }
func (v graphView) Node(id domain.NodeID) (runtime.Node, bool) { return v.g.Node(id) }
func (v graphView) Nodes() []domain.NodeID                     { return v.g.Nodes() }
func (v graphView) Children(id domain.NodeID) []domain.NodeID  { return v.g.Children(id) }
func (v graphView) Edges() []Edge                              { return v.g.Edges() }
func (v graphView) Len() int                                   { return v.g.Len() }
func (v graphView) EdgeCount() int                             { return v.g.EdgeCount() }
