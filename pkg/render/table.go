package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/polisai/polis-flow/internal/format"
	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine"
)

// Table renders the adjacency of g, one row per node in registration order.
func Table(g engine.Topology, mode format.Mode) string {
	tbl := format.NewTable(mode)
	tbl.Header("Node", "Kind", "In", "Out", "Role", "Children")
	for _, id := range g.Nodes() {
		node, _ := g.Node(id)
		children := g.Children(id)
		names := make([]string, len(children))
		for i, c := range children {
			names[i] = string(c)
		}
		tbl.Row(string(id), node.Kind(), node.InputType(), node.OutputType(), role(g, id), strings.Join(names, ", "))
	}
	tbl.Footer("", "", "", "", "", fmt.Sprintf("%d nodes, %d edges", g.Len(), g.EdgeCount()))
	return tbl.String()
}

func role(g engine.Topology, id domain.NodeID) string {
	node, _ := g.Node(id)
	var roles []string
	if g.IsHead(id) {
		roles = append(roles, "head")
	}
	if node.IsOutput() {
		roles = append(roles, "output")
	}
	return strings.Join(roles, ",")
}

// Outputs renders run results sorted by node identity. Multi-line values such
// as rendered reports are printed under a heading rather than in a cell.
func Outputs(outs engine.Outputs, mode format.Mode) string {
	ids := sortedIDs(outs)

	var blocks []string
	tbl := format.NewTable(mode)
	tbl.Header("Node", "#", "Value")
	for _, id := range ids {
		for i, v := range outs[id] {
			s := fmt.Sprint(v)
			if strings.Contains(s, "\n") {
				blocks = append(blocks, fmt.Sprintf("== %s [%d] ==\n%s", id, i, strings.TrimRight(s, "\n")))
				continue
			}
			tbl.Row(string(id), i, s)
		}
	}

	var parts []string
	if tbl.Len() > 0 {
		parts = append(parts, tbl.String())
	}
	parts = append(parts, blocks...)
	return strings.Join(parts, "\n\n")
}

// JSON renders run results as an object keyed by node identity.
func JSON(outs engine.Outputs) ([]byte, error) {
	doc := make(map[string][]any, len(outs))
	for _, id := range sortedIDs(outs) {
		doc[string(id)] = outs[id]
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode outputs: %w", err)
	}
	return data, nil
}

func sortedIDs(outs engine.Outputs) []domain.NodeID {
	ids := make([]domain.NodeID, 0, len(outs))
	for id := range outs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
