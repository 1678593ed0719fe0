package cfa

import (
	"bytes"
	"fmt"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter builds: x := 0; for x < 10 { x = x + 1 }; return x
func counter(t *testing.T) (*Program, *Function) {
	t.Helper()
	p := NewProgram()
	fn := p.NewFunction("main", nil, IntType, false)
	x := &IdExpr{Name: QualifiedName("main", "x"), T: IntType}

	decl := p.NewNode(fn)
	head := p.NewNode(fn)
	body := p.NewNode(fn)
	after := p.NewNode(fn)

	p.Link(&DeclarationEdge{
		EdgeBase: Between(fn.Entry, decl, token.Position{}),
		Decl:     &Declaration{Name: x.Name, Type: IntType, Init: &IntLit{Value: 0, T: IntType}},
	})
	p.Link(&BlankEdge{EdgeBase: Between(decl, head, token.Position{}), Label: "for"})
	cond := &BinaryExpr{Op: OpLt, X: x, Y: &IntLit{Value: 10, T: IntType}, T: BoolType}
	p.Link(&AssumeEdge{EdgeBase: Between(head, body, token.Position{}), Cond: cond, Truth: true})
	p.Link(&AssumeEdge{EdgeBase: Between(head, after, token.Position{}), Cond: cond, Truth: false})
	p.Link(&StatementEdge{
		EdgeBase: Between(body, head, token.Position{}),
		Stmt:     &AssignStmt{Lhs: x, Rhs: &BinaryExpr{Op: OpAdd, X: x, Y: &IntLit{Value: 1, T: IntType}, T: IntType}},
	})
	p.Link(&ReturnStatementEdge{EdgeBase: Between(after, fn.Exit, token.Position{}), Expr: x})
	p.Loops.AddLoop(head, []*Node{body})
	p.Entry = fn
	return p, fn
}

func TestQualifiedNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "f::x", QualifiedName("f", "x"))
	assert.Equal(t, "::g", QualifiedName("", "g"))
	fn, name := SplitName("f::x")
	assert.Equal(t, "f", fn)
	assert.Equal(t, "x", name)
	assert.True(t, IsGlobal("::g"))
	assert.False(t, IsGlobal("f::g"))
	assert.Equal(t, "f::__retval", ReturnVariable("f"))
	assert.True(t, IsTemporary(TempVariable("f", 3)))
	assert.False(t, IsTemporary("f::x"))
}

func TestTypeRange(t *testing.T) {
	t.Parallel()
	lo, hi := Type{Kind: Int, Bits: 8, Unsigned: true}.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 255.0, hi)
	lo, hi = Type{Kind: Int, Bits: 8}.Range()
	assert.Equal(t, -128.0, lo)
	assert.Equal(t, 127.0, hi)
	lo, hi = BoolType.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
	assert.True(t, Float64Type.IsNumeric())
	assert.False(t, Type{Kind: Pointer}.IsNumeric())
}

func TestOperatorClasses(t *testing.T) {
	t.Parallel()
	for _, op := range []BinaryOp{OpLt, OpLe, OpGt, OpGe, OpEq, OpNe} {
		assert.True(t, op.IsRelational(), op.String())
		assert.False(t, op.IsBitwise(), op.String())
	}
	for _, op := range []BinaryOp{OpRem, OpAnd, OpOr, OpXor, OpShl, OpShr} {
		assert.True(t, op.IsBitwise(), op.String())
		assert.False(t, op.IsLinear(), op.String())
	}
	assert.True(t, OpDiv.IsLinear())
	assert.Equal(t, "<<", OpShl.String())
}

func TestExprString(t *testing.T) {
	t.Parallel()
	x := &IdExpr{Name: "main::x", T: IntType}
	call := &CallExpr{Func: "f", Args: []Expr{x, &IntLit{Value: 2, T: IntType}}, T: IntType}
	e := &BinaryExpr{Op: OpMul, X: &UnaryExpr{Op: OpNeg, X: x, T: IntType}, Y: call, T: IntType}
	assert.Equal(t, "(-x * f(x, 2))", e.String())
	assert.Equal(t, []*CallExpr{call}, Calls(e))
}

func TestLoopStructure(t *testing.T) {
	t.Parallel()
	p, fn := counter(t)
	loops := p.Loops.Loops()
	require.Len(t, loops, 1)
	head := loops[0].Head
	assert.True(t, p.Loops.IsLoopHead(head))
	assert.False(t, p.Loops.IsLoopHead(fn.Entry))
	require.Len(t, loops[0].Entries, 1)

	entry := loops[0].Entries[0]
	assert.IsType(t, &BlankEdge{}, entry)
	assert.True(t, p.Loops.IsLoopEntry(entry))
	for _, e := range head.Entering {
		if e != entry {
			assert.False(t, p.Loops.IsLoopEntry(e), "back edge %s", e)
		}
	}
	assert.Equal(t, []int{head.ID}, p.Loops.Heads())
}

func TestCompressMultiEdges(t *testing.T) {
	t.Parallel()
	p, fn := counter(t)
	before := len(p.Edges())
	p.CompressMultiEdges()

	require.Len(t, fn.Entry.Leaving, 1)
	multi, ok := fn.Entry.Leaving[0].(*MultiEdge)
	require.True(t, ok)
	assert.Len(t, multi.Edges, 2)
	assert.True(t, p.Loops.IsLoopHead(multi.Successor()))
	assert.True(t, p.Loops.IsLoopEntry(multi))
	assert.Equal(t, before-1, len(p.Edges()))
	assert.Equal(t, "var x int = 0; for", multi.String())
}

func TestEdgeFunctions(t *testing.T) {
	t.Parallel()
	p := NewProgram()
	main := p.NewFunction("main", nil, VoidType, false)
	f := p.NewFunction("f", nil, IntType, false)
	site := &CallSite{Caller: "main", Callee: f, Call: &CallExpr{Func: "f", T: IntType}}
	call := p.Link(&FunctionCallEdge{EdgeBase: Between(main.Entry, f.Entry, token.Position{}), Site: site})
	assert.Equal(t, "main", FunctionOf(call))
	assert.Equal(t, []string{"main", "f"}, Functions(call))
	assert.Equal(t, []*CallSite{site}, p.Callers("f"))
	assert.Empty(t, p.Callers("main"))
	assert.Equal(t, []string{"main", "f"}, p.FunctionNames())
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	p := NewProgram()
	fn := p.NewFunction("main", nil, VoidType, false)
	mid := p.NewNode(fn)
	at := token.Position{Filename: "main.go", Line: 4, Column: 2}
	placed := p.Link(&BlankEdge{EdgeBase: Between(fn.Entry, mid, at), Label: "for"})
	synthetic := p.Link(&BlankEdge{EdgeBase: Between(mid, fn.Exit, token.Position{}), Label: "return"})

	assert.Equal(t, "main.go:4:2: for", Describe(placed))
	assert.Equal(t, fmt.Sprintf("edge %d: return", synthetic.ID()), Describe(synthetic))
}

func TestPrintDot(t *testing.T) {
	t.Parallel()
	p, _ := counter(t)
	var buf bytes.Buffer
	require.NoError(t, p.PrintDot(&buf, "main"))
	out := buf.String()
	assert.Contains(t, out, `digraph "main"`)
	assert.Contains(t, out, "style=dashed")
	assert.Contains(t, out, `label="[(x < 10)]"`)
	assert.Error(t, p.PrintDot(&buf, "missing"))
}
