package graph

import (
	"fmt"
	"strings"
)

func quoteDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// DOT serializes the graph in Graphviz DOT form. Nodes are drawn as filled
// boxes labeled by name, edges labeled with their relationship description.
//
// Only declared nodes get attributes; an edge endpoint with no matching node
// id still renders, as a bare Graphviz node. Node ids that appear multiple
// times (same id, different name or type) collapse onto one drawn node,
// which keeps the picture readable without touching the underlying data.
func (g KnowledgeGraph) DOT() string {
	var b strings.Builder

	b.WriteString("digraph {\n")
	b.WriteString("\tlabel=\"Knowledge Graph\"\n")
	b.WriteString("\tnode [color=lightblue2 style=filled shape=box]\n")

	for _, node := range g.Nodes {
		fmt.Fprintf(&b, "\t%d [label=%s]\n", node.ID, quoteDOT(node.Name))
	}
	for _, edge := range g.Edges {
		fmt.Fprintf(&b, "\t%d -> %d [label=%s]\n", edge.Source, edge.Target, quoteDOT(edge.Description))
	}

	b.WriteString("}\n")
	return b.String()
}
