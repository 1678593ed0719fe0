package frontend

import (
	"go/ast"
	"go/token"
	"strconv"

	"github.com/gnolang/octagon/internal/analysis/cfa"
)

// funcBuilder lowers the body of one function.
type funcBuilder struct {
	*builder
	decl *ast.FuncDecl
	fn   *cfa.Function

	// cur is the node control reaches next, nil after a jump
	cur     *cfa.Node
	scopes  []map[string]*cfa.IdExpr
	used    map[string]int
	loops   *targets
	temps   int
	iota    int64
	results []*cfa.IdExpr
}

// targets are the jump targets of the innermost loop.
type targets struct {
	brk, cont *cfa.Node
	outer     *targets
}

// newFuncBuilder declares the signature of d and registers its function.
func (b *builder) newFuncBuilder(d *ast.FuncDecl) (*funcBuilder, error) {
	fb := &funcBuilder{
		builder: b,
		decl:    d,
		used:    make(map[string]int),
		iota:    -1,
	}
	name := d.Name.Name
	fb.fn = &cfa.Function{Name: name}
	fb.pushScope()

	var params []cfa.Param
	variadic := false
	for _, field := range d.Type.Params.List {
		t := b.typeOf(field.Type)
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			variadic = true
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{{Name: "_", NamePos: field.Pos()}}
		}
		for _, n := range names {
			id := fb.declare(n.Name, t, false)
			params = append(params, cfa.Param{Name: id.Name, Type: t})
		}
	}

	result := cfa.VoidType
	if res := d.Type.Results; res != nil {
		if res.NumFields() > 1 {
			return nil, b.unsupported(res, "multiple results")
		}
		field := res.List[0]
		result = b.typeOf(field.Type)
		for _, n := range field.Names {
			fb.results = append(fb.results, fb.declare(n.Name, result, false))
		}
	}

	fb.fn = b.prog.NewFunction(name, params, result, variadic)
	fb.fn.Pos = b.position(d.Pos())
	return fb, nil
}

// build lowers the body. The entry function first declares the globals and
// its parameters.
func (fb *funcBuilder) build(entry bool) error {
	fb.cur = fb.fn.Entry
	if entry {
		if err := fb.prologue(); err != nil {
			return err
		}
	}
	for _, r := range fb.results {
		fb.step(fb.decl.Pos(), func(base cfa.EdgeBase) cfa.Edge {
			return &cfa.DeclarationEdge{
				EdgeBase: base,
				Decl:     &cfa.Declaration{Name: r.Name, Type: r.T, Init: zeroValue(r.T)},
			}
		})
	}
	if err := fb.stmts(fb.decl.Body.List); err != nil {
		return err
	}
	if fb.cur != nil {
		var value cfa.Expr
		if len(fb.results) == 1 {
			value = fb.results[0]
		}
		fb.jump(fb.fn.Exit, fb.decl.Body.Rbrace, func(base cfa.EdgeBase) cfa.Edge {
			return &cfa.ReturnStatementEdge{EdgeBase: base, Expr: value}
		})
	}
	return nil
}

func (fb *funcBuilder) prologue() error {
	for _, d := range fb.specs {
		if err := fb.genDecl(d, true); err != nil {
			return err
		}
	}
	for _, p := range fb.fn.Params {
		fb.step(fb.decl.Pos(), func(base cfa.EdgeBase) cfa.Edge {
			return &cfa.DeclarationEdge{
				EdgeBase: base,
				Decl:     &cfa.Declaration{Name: p.Name, Type: p.Type},
			}
		})
	}
	return nil
}

func (fb *funcBuilder) pushScope() {
	fb.scopes = append(fb.scopes, make(map[string]*cfa.IdExpr))
}

func (fb *funcBuilder) popScope() {
	fb.scopes = fb.scopes[:len(fb.scopes)-1]
}

// declare introduces name in the innermost scope. Locals shadowing an
// earlier local of the same function are renamed name#k.
func (fb *funcBuilder) declare(name string, t cfa.Type, global bool) *cfa.IdExpr {
	if global {
		id := &cfa.IdExpr{Name: cfa.QualifiedName("", name), T: t}
		fb.globals[name] = id
		return id
	}
	k := fb.used[name]
	fb.used[name]++
	local := name
	if k > 0 {
		local = name + "#" + strconv.Itoa(k)
	}
	id := &cfa.IdExpr{Name: cfa.QualifiedName(fb.fn.Name, local), T: t}
	fb.scopes[len(fb.scopes)-1][name] = id
	return id
}

// fresh returns a new local that is not visible in the source.
func (fb *funcBuilder) fresh(prefix string, t cfa.Type, pos token.Pos) *cfa.IdExpr {
	id := &cfa.IdExpr{Name: cfa.QualifiedName(fb.fn.Name, prefix+strconv.Itoa(fb.temps)), T: t}
	fb.temps++
	fb.step(pos, func(base cfa.EdgeBase) cfa.Edge {
		return &cfa.DeclarationEdge{EdgeBase: base, Decl: &cfa.Declaration{Name: id.Name, Type: t}}
	})
	return id
}

func (fb *funcBuilder) lookup(name string) (*cfa.IdExpr, bool) {
	for i := len(fb.scopes) - 1; i >= 0; i-- {
		if id, ok := fb.scopes[i][name]; ok {
			return id, true
		}
	}
	id, ok := fb.globals[name]
	return id, ok
}

// callee returns the defined function called by e, if any.
func (fb *funcBuilder) callee(e ast.Expr) (*ast.CallExpr, *cfa.Function) {
	call, ok := ast.Unparen(e).(*ast.CallExpr)
	if !ok {
		return nil, nil
	}
	id, ok := call.Fun.(*ast.Ident)
	if !ok {
		return nil, nil
	}
	if _, shadowed := fb.lookup(id.Name); shadowed {
		return nil, nil
	}
	target, ok := fb.funcs[id.Name]
	if !ok {
		return nil, nil
	}
	return call, target.fn
}

func (fb *funcBuilder) node() *cfa.Node { return fb.prog.NewNode(fb.fn) }

// jump links an edge from the current node to to and leaves the current
// node unset. Code following a jump is unreachable and gets a fresh node.
func (fb *funcBuilder) jump(to *cfa.Node, pos token.Pos, mk func(cfa.EdgeBase) cfa.Edge) {
	if fb.cur == nil {
		fb.cur = fb.node()
	}
	fb.prog.Link(mk(cfa.Between(fb.cur, to, fb.position(pos))))
	fb.cur = nil
}

// goTo links an edge from the current node to to and continues there.
func (fb *funcBuilder) goTo(to *cfa.Node, pos token.Pos, mk func(cfa.EdgeBase) cfa.Edge) {
	fb.jump(to, pos, mk)
	fb.cur = to
}

// step links an edge to a fresh node and continues there.
func (fb *funcBuilder) step(pos token.Pos, mk func(cfa.EdgeBase) cfa.Edge) {
	fb.goTo(fb.node(), pos, mk)
}

func blank(label string) func(cfa.EdgeBase) cfa.Edge {
	return func(base cfa.EdgeBase) cfa.Edge { return &cfa.BlankEdge{EdgeBase: base, Label: label} }
}

// resume continues at n, or nowhere when no edge reaches n.
func (fb *funcBuilder) resume(n *cfa.Node) {
	fb.cur = nil
	if len(n.Entering) > 0 {
		fb.cur = n
	}
}

func zeroValue(t cfa.Type) cfa.Expr {
	switch t.Kind {
	case cfa.Int:
		return &cfa.IntLit{Value: 0, T: t}
	case cfa.Float:
		return &cfa.FloatLit{Value: 0, T: t}
	default:
		return nil
	}
}
