package cfa

import (
	"fmt"
	"go/token"
	"strings"
)

// Edge is a control-flow transition between two nodes.
type Edge interface {
	ID() int
	Predecessor() *Node
	Successor() *Node
	Position() token.Position
	String() string

	base() *EdgeBase
}

// EdgeBase holds the fields common to every edge kind.
type EdgeBase struct {
	id   int
	From *Node
	To   *Node
	Pos  token.Position
}

func (b *EdgeBase) ID() int                  { return b.id }
func (b *EdgeBase) Predecessor() *Node       { return b.From }
func (b *EdgeBase) Successor() *Node         { return b.To }
func (b *EdgeBase) Position() token.Position { return b.Pos }
func (b *EdgeBase) base() *EdgeBase          { return b }

// BlankEdge has no effect.
type BlankEdge struct {
	EdgeBase
	Label string
}

func (e *BlankEdge) String() string { return e.Label }

// AssumeEdge is taken when Cond evaluates to Truth.
type AssumeEdge struct {
	EdgeBase
	Cond  Expr
	Truth bool
}

func (e *AssumeEdge) String() string {
	if e.Truth {
		return "[" + e.Cond.String() + "]"
	}
	return "[!" + e.Cond.String() + "]"
}

// DeclarationEdge declares a variable.
type DeclarationEdge struct {
	EdgeBase
	Decl *Declaration
}

func (e *DeclarationEdge) String() string { return e.Decl.String() }

// StatementEdge executes a statement.
type StatementEdge struct {
	EdgeBase
	Stmt Stmt
}

func (e *StatementEdge) String() string { return e.Stmt.String() }

// CallSite describes one call of a function defined in the program.
type CallSite struct {
	Caller string
	Callee *Function
	Call   *CallExpr
	// Lhs receives the result, nil when the result is discarded.
	Lhs *IdExpr
	// Return is the caller node control returns to.
	Return *Node
}

// FunctionCallEdge passes control from the call site to the callee entry.
type FunctionCallEdge struct {
	EdgeBase
	Site *CallSite
}

func (e *FunctionCallEdge) String() string {
	if e.Site.Lhs != nil {
		return e.Site.Lhs.String() + " = " + e.Site.Call.String()
	}
	return e.Site.Call.String()
}

// FunctionReturnEdge passes control from the callee exit back to the site.
type FunctionReturnEdge struct {
	EdgeBase
	Site *CallSite
}

func (e *FunctionReturnEdge) String() string { return "return from " + e.Site.Callee.Name }

// ReturnStatementEdge leads to the function exit; Expr is nil for a bare
// return.
type ReturnStatementEdge struct {
	EdgeBase
	Expr Expr
}

func (e *ReturnStatementEdge) String() string {
	if e.Expr == nil {
		return "return"
	}
	return "return " + e.Expr.String()
}

// MultiEdge executes a sequence of edges as one step.
type MultiEdge struct {
	EdgeBase
	Edges []Edge
}

func (e *MultiEdge) String() string {
	parts := make([]string, len(e.Edges))
	for i, sub := range e.Edges {
		parts[i] = sub.String()
	}
	return strings.Join(parts, "; ")
}

// FunctionOf returns the name of the function the edge is located in, that
// is the function of its predecessor.
func FunctionOf(e Edge) string { return e.Predecessor().Function }

// Functions returns the functions an edge touches: its predecessor's and,
// when different, its successor's.
func Functions(e Edge) []string {
	from, to := e.Predecessor().Function, e.Successor().Function
	if from == to {
		return []string{from}
	}
	return []string{from, to}
}

// Describe names an edge for diagnostics: its position and text.
func Describe(e Edge) string {
	if pos := e.Position(); pos.IsValid() {
		return fmt.Sprintf("%s: %s", pos, e)
	}
	return fmt.Sprintf("edge %d: %s", e.ID(), e)
}
