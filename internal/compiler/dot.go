package compiler

import (
	"fmt"
	"strings"

	"github.com/dialflow/dialflow/pkg/flow"
)

// RenderDOT produces a Graphviz rendering of a compiled graph for ops
// tooling: conversations as boxes, logic splits as diamonds, terminal nodes
// as double circles, edges labeled with their conditions.
func RenderDOT(g *flow.Graph) string {
	r := &dotRenderer{sb: &strings.Builder{}}
	r.write("digraph %s {", idString(g.Name()))
	r.write("rankdir=TB")

	for _, id := range g.NodeIDs() {
		node, _ := g.Node(id)
		r.drawNode(node, id == g.StartID())
	}
	for _, id := range g.NodeIDs() {
		node, _ := g.Node(id)
		r.drawEdges(node)
	}

	r.write("label=%s", quoteString(g.Name()))
	r.write("}")
	return r.sb.String()
}

type dotRenderer struct {
	sb *strings.Builder
}

func (r *dotRenderer) drawNode(n *flow.Node, isStart bool) {
	shape := "record"
	switch {
	case n.Type == flow.NodeLogicSplit:
		shape = "diamond"
	case n.Type.Terminal():
		shape = "doublecircle"
	}

	label := n.ID
	if n.Label != "" {
		label = n.Label
	}

	attrs := fmt.Sprintf("label=%s shape=\"%s\"", quoteString(label), shape)
	if isStart {
		attrs += " style=\"bold\""
	}
	r.write("%s [%s]", idString(n.ID), attrs)
}

func (r *dotRenderer) drawEdges(n *flow.Node) {
	for _, t := range n.Transitions {
		r.write("%s -> %s [label=%s]", idString(n.ID), idString(t.Target), quoteString(t.Condition))
	}
	if n.PressDigit != nil {
		for digit, target := range n.PressDigit.Rules {
			r.write("%s -> %s [label=%s style=\"dashed\"]", idString(n.ID), idString(target), quoteString(digit))
		}
	}
	if n.Fallback != "" {
		r.write("%s -> %s [label=\"fallback\" style=\"dotted\"]", idString(n.ID), idString(n.Fallback))
	}
}

func (r *dotRenderer) write(format string, args ...any) {
	r.sb.WriteString(fmt.Sprintf(format+"\n", args...))
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

var idleChars = []string{" ", "'", "\"", "(", ")", "*", "&", "^", "%", "$", "#", "@", "!", "?", "<", ">", "[", "]", "{", "}", ".", "-"}

func idString(s string) string {
	for _, ch := range idleChars {
		s = strings.ReplaceAll(s, ch, "_")
	}
	return s
}
