package engine

import (
	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// Edge is a directed connection between two registered nodes.
type Edge struct {
	From domain.NodeID
	To   domain.NodeID
}

// Graph is the adjacency structure of a pipeline. It references nodes by
// identity and does not own their lifetime.
//
// Graph is not safe for concurrent mutation; topology changes must complete
// before a run starts. Read accessors are safe once mutation has stopped.
type Graph struct {
	allowCycles bool
	order       []domain.NodeID                   // registration order
	nodes       map[domain.NodeID]runtime.Node    // identity → node
	adjacency   map[domain.NodeID][]domain.NodeID // identity → children, edge-creation order
	heads       []domain.NodeID
}

// NewGraph creates an empty graph. When allowCycles is false every Connect keeps
// the graph acyclic.
func NewGraph(allowCycles bool) *Graph {
	return &Graph{
		allowCycles: allowCycles,
		nodes:       make(map[domain.NodeID]runtime.Node),
		adjacency:   make(map[domain.NodeID][]domain.NodeID),
	}
}

// AllowCycles reports whether cycle checks are disabled.
func (g *Graph) AllowCycles() bool {
	return g.allowCycles
}

// AddNode registers node with no outgoing edges.
func (g *Graph) AddNode(node runtime.Node) error {
	id := node.ID()
	if _, exists := g.nodes[id]; exists {
		return &domain.DuplicateNodeError{Node: id}
	}
	g.insert(node)
	g.heads = g.FindHeads()
	return nil
}

func (g *Graph) insert(node runtime.Node) {
	id := node.ID()
	g.nodes[id] = node
	g.adjacency[id] = nil
	g.order = append(g.order, id)
}

// Connect adds the edge src -> dst. Checks run in order: type match, duplicate
// edge, cycle. Endpoints not yet registered are added once every check passes,
// so a rejected connection leaves the graph untouched.
func (g *Graph) Connect(src, dst runtime.Node) error {
	srcID, dstID := src.ID(), dst.ID()

	if src.OutputType() != dst.InputType() {
		return &domain.TypeMismatchError{
			Source:      srcID,
			Destination: dstID,
			Output:      src.OutputType(),
			Input:       dst.InputType(),
		}
	}

	if g.HasEdge(srcID, dstID) {
		return &domain.DuplicateEdgeError{Source: srcID, Destination: dstID}
	}

	if !g.allowCycles && g.wouldCycle(srcID, dstID) {
		return &domain.CycleError{Source: srcID, Destination: dstID}
	}

	if _, ok := g.nodes[srcID]; !ok {
		g.insert(src)
	}
	if _, ok := g.nodes[dstID]; !ok {
		g.insert(dst)
	}

	g.adjacency[srcID] = append(g.adjacency[srcID], dstID)
	g.heads = g.FindHeads()
	return nil
}

// wouldCycle reports whether adding src -> dst closes a directed cycle, i.e.
// src == dst or src is already reachable from dst.
func (g *Graph) wouldCycle(src, dst domain.NodeID) bool {
	if src == dst {
		return true
	}
	visited := make(map[domain.NodeID]bool, len(g.nodes))
	stack := []domain.NodeID{dst}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == src {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, child := range g.adjacency[current] {
			if !visited[child] {
				stack = append(stack, child)
			}
		}
	}
	return false
}

// FindHeads returns the registered nodes that appear in no child list, in
// registration order.
func (g *Graph) FindHeads() []domain.NodeID {
	inbound := make(map[domain.NodeID]bool, len(g.nodes))
	for _, children := range g.adjacency {
		for _, child := range children {
			inbound[child] = true
		}
	}

	heads := make([]domain.NodeID, 0, len(g.order))
	for _, id := range g.order {
		if !inbound[id] {
			heads = append(heads, id)
		}
	}
	return heads
}

// Heads returns a copy of the cached head set, recomputed after every mutation.
func (g *Graph) Heads() []domain.NodeID {
	out := make([]domain.NodeID, len(g.heads))
	copy(out, g.heads)
	return out
}

// IsHead reports whether id is currently a head.
func (g *Graph) IsHead(id domain.NodeID) bool {
	for _, h := range g.heads {
		if h == id {
			return true
		}
	}
	return false
}

// HasEdge reports whether src -> dst exists.
func (g *Graph) HasEdge(src, dst domain.NodeID) bool {
	for _, child := range g.adjacency[src] {
		if child == dst {
			return true
		}
	}
	return false
}

// Has reports whether id is registered.
func (g *Graph) Has(id domain.NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node registered under id.
func (g *Graph) Node(id domain.NodeID) (runtime.Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Nodes returns node identities in registration order.
func (g *Graph) Nodes() []domain.NodeID {
	out := make([]domain.NodeID, len(g.order))
	copy(out, g.order)
	return out
}

// Children returns a copy of the child list of id in edge-creation order.
func (g *Graph) Children(id domain.NodeID) []domain.NodeID {
	children := g.adjacency[id]
	out := make([]domain.NodeID, len(children))
	copy(out, children)
	return out
}

// Edges lists every edge grouped by source in registration order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.order {
		for _, to := range g.adjacency[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.adjacency {
		count += len(children)
	}
	return count
}
