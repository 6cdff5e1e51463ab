package graph

import (
	"fmt"
	"strings"
)

// DOT renders the planned graph in Graphviz dot format: one node per
// service, one edge per relation labeled with the shared interface.
func (g *Graph) DOT() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %q {\n", g.name)
	for _, svc := range g.nodes {
		fmt.Fprintf(&b, "  %q;\n", svc.Name())
	}
	for _, rel := range g.edges {
		eps := rel.Endpoints()
		if len(eps) < 2 {
			continue
		}
		fmt.Fprintf(&b, "  %q -- %q [label=%q];\n",
			eps[0].Service().Name(), eps[1].Service().Name(), rel.Interface().Name())
	}
	b.WriteString("}\n")
	return b.String()
}
