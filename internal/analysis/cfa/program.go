package cfa

import (
	"go/token"
	"sort"
	"strconv"
)

// Node is a program location.
type Node struct {
	ID       int
	Function string
	Leaving  []Edge
	Entering []Edge
}

func (n *Node) String() string { return "N" + strconv.Itoa(n.ID) }

// Param is a formal parameter.
type Param struct {
	// Name is the qualified name.
	Name string
	Type Type
}

// Function is the control-flow automaton of one function.
type Function struct {
	Name     string
	Params   []Param
	Result   Type
	Variadic bool
	Pos      token.Position

	Entry *Node
	Exit  *Node
	// Error is reached when an assertion fails.
	Error *Node
	Nodes []*Node
}

// Program is a set of functions with a designated entry.
type Program struct {
	Functions map[string]*Function
	Entry     *Function
	Loops     *LoopStructure

	order    []string
	nodes    []*Node
	edges    []Edge
	nextNode int
	nextEdge int
}

// NewProgram returns an empty program with an empty loop structure.
func NewProgram() *Program {
	return &Program{
		Functions: make(map[string]*Function),
		Loops:     NewLoopStructure(),
	}
}

// NewFunction registers a function and creates its entry, exit and error
// nodes.
func (p *Program) NewFunction(name string, params []Param, result Type, variadic bool) *Function {
	fn := &Function{
		Name:     name,
		Params:   params,
		Result:   result,
		Variadic: variadic,
	}
	fn.Entry = p.NewNode(fn)
	fn.Exit = p.NewNode(fn)
	fn.Error = p.NewNode(fn)
	p.Functions[name] = fn
	p.order = append(p.order, name)
	return fn
}

// NewNode adds a node to fn.
func (p *Program) NewNode(fn *Function) *Node {
	n := &Node{ID: p.nextNode, Function: fn.Name}
	p.nextNode++
	p.nodes = append(p.nodes, n)
	fn.Nodes = append(fn.Nodes, n)
	return n
}

// Between returns the common edge fields for an edge from -> to.
func Between(from, to *Node, pos token.Position) EdgeBase {
	return EdgeBase{From: from, To: to, Pos: pos}
}

// Link assigns e an ID and connects it to its nodes.
func (p *Program) Link(e Edge) Edge {
	b := e.base()
	b.id = p.nextEdge
	p.nextEdge++
	b.From.Leaving = append(b.From.Leaving, e)
	b.To.Entering = append(b.To.Entering, e)
	p.edges = append(p.edges, e)
	return e
}

func (p *Program) unlink(e Edge) {
	b := e.base()
	b.From.Leaving = without(b.From.Leaving, e)
	b.To.Entering = without(b.To.Entering, e)
	p.edges = without(p.edges, e)
}

func without(edges []Edge, e Edge) []Edge {
	out := edges[:0:0]
	for _, x := range edges {
		if x != e {
			out = append(out, x)
		}
	}
	return out
}

// FunctionNames returns the function names in declaration order.
func (p *Program) FunctionNames() []string {
	return append([]string(nil), p.order...)
}

// Nodes returns every node of the program ordered by ID.
func (p *Program) Nodes() []*Node {
	return append([]*Node(nil), p.nodes...)
}

// Edges returns every edge of the program ordered by ID.
func (p *Program) Edges() []Edge {
	out := append([]Edge(nil), p.edges...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Callers returns the call sites of fn.
func (p *Program) Callers(fn string) []*CallSite {
	var sites []*CallSite
	for _, e := range p.edges {
		if c, ok := e.(*FunctionCallEdge); ok && c.Site.Callee.Name == fn {
			sites = append(sites, c.Site)
		}
	}
	return sites
}

func compressible(e Edge) bool {
	switch e.(type) {
	case *BlankEdge, *DeclarationEdge, *StatementEdge:
		return true
	default:
		return false
	}
}

func (p *Program) isChainMiddle(n *Node) bool {
	fn := p.Functions[n.Function]
	if n == fn.Entry || n == fn.Exit || n == fn.Error || p.Loops.IsLoopHead(n) {
		return false
	}
	return len(n.Entering) == 1 && len(n.Leaving) == 1 &&
		compressible(n.Entering[0]) && compressible(n.Leaving[0])
}

// CompressMultiEdges replaces every maximal chain of straight-line edges
// through nodes with a single predecessor and successor by one MultiEdge.
// Loop heads are never swallowed and loop-entry edges stay recognizable.
func (p *Program) CompressMultiEdges() {
	removed := make(map[*Node]bool)
	for _, first := range p.Edges() {
		if !compressible(first) || removed[first.Predecessor()] || p.isChainMiddle(first.Predecessor()) {
			continue
		}
		chain := []Edge{first}
		last := first
		for p.isChainMiddle(last.Successor()) && !removed[last.Successor()] {
			removed[last.Successor()] = true
			last = last.Successor().Leaving[0]
			chain = append(chain, last)
		}
		if len(chain) < 2 {
			continue
		}
		for _, e := range chain {
			p.unlink(e)
		}
		multi := &MultiEdge{
			EdgeBase: Between(first.Predecessor(), last.Successor(), first.Position()),
			Edges:    chain,
		}
		p.Link(multi)
		if p.Loops.IsLoopEntry(last) {
			p.Loops.replaceEntry(last, multi)
		}
	}
	for _, fn := range p.Functions {
		kept := fn.Nodes[:0]
		for _, n := range fn.Nodes {
			if !removed[n] {
				kept = append(kept, n)
			}
		}
		fn.Nodes = kept
	}
	kept := p.nodes[:0]
	for _, n := range p.nodes {
		if !removed[n] {
			kept = append(kept, n)
		}
	}
	p.nodes = kept
}
