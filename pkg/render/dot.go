package render

import (
	"fmt"
	"strings"

	"github.com/polisai/polis-flow/pkg/engine"
)

// Node fill colours in DOT output.
const (
	headColor   = "palegreen"
	outputColor = "lightcoral"
)

// DOT renders g as a Graphviz digraph. Heads are filled green and output nodes
// red; a head that is also an output is drawn as an output. Node labels carry the
// kind and type signature.
func DOT(g engine.Topology, name string) string {
	if name == "" {
		name = "pipeline"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", quoteID(name))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")

	for _, id := range g.Nodes() {
		node, _ := g.Node(id)
		attrs := []string{
			fmt.Sprintf("label=%s", quoteID(fmt.Sprintf("%s\n%s: %s -> %s", id, node.Kind(), node.InputType(), node.OutputType()))),
		}
		switch {
		case node.IsOutput():
			attrs = append(attrs, `style="rounded,filled"`, "fillcolor="+outputColor)
		case g.IsHead(id):
			attrs = append(attrs, `style="rounded,filled"`, "fillcolor="+headColor)
		}
		fmt.Fprintf(&b, "  %s [%s];\n", quoteID(string(id)), strings.Join(attrs, ", "))
	}

	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "  %s -> %s;\n", quoteID(string(e.From)), quoteID(string(e.To)))
	}

	b.WriteString("}\n")
	return b.String()
}

// quoteID returns a DOT double-quoted string.
func quoteID(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
