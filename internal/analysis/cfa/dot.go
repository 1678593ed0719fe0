package cfa

import (
	"fmt"
	"io"
	"strings"
)

// PrintDot writes the automaton of function fn in Graphviz DOT syntax.
func (p *Program) PrintDot(w io.Writer, fn string) error {
	f, ok := p.Functions[fn]
	if !ok {
		return fmt.Errorf("function %q not found", fn)
	}
	fmt.Fprintf(w, "digraph %q {\n", fn)
	fmt.Fprintln(w, "\tnode [shape=circle];")
	for _, n := range f.Nodes {
		attrs := []string{fmt.Sprintf("label=%q", n.String())}
		switch {
		case n == f.Entry:
			attrs = append(attrs, "shape=doublecircle")
		case n == f.Exit:
			attrs = append(attrs, "shape=doublecircle", "style=bold")
		case n == f.Error:
			attrs = append(attrs, "color=red")
		case p.Loops.IsLoopHead(n):
			attrs = append(attrs, "shape=box")
		}
		fmt.Fprintf(w, "\t%s [%s];\n", n, strings.Join(attrs, ", "))
	}
	for _, n := range f.Nodes {
		for _, e := range n.Leaving {
			style := ""
			if p.Loops.IsLoopEntry(e) {
				style = ", style=dashed"
			}
			fmt.Fprintf(w, "\t%s -> %s [label=%q%s];\n", e.Predecessor(), e.Successor(), edgeLabel(e), style)
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func edgeLabel(e Edge) string {
	if m, ok := e.(*MultiEdge); ok {
		parts := make([]string, len(m.Edges))
		for i, sub := range m.Edges {
			parts[i] = sub.String()
		}
		return strings.Join(parts, "\n")
	}
	return e.String()
}
