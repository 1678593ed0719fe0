package frontend

import (
	"go/ast"
	"go/token"

	"github.com/gnolang/octagon/internal/analysis/cfa"
)

func (fb *funcBuilder) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := fb.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fb *funcBuilder) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.EmptyStmt:
		return nil
	case *ast.BlockStmt:
		fb.pushScope()
		defer fb.popScope()
		return fb.stmts(s.List)
	case *ast.DeclStmt:
		gen, ok := s.Decl.(*ast.GenDecl)
		if !ok {
			return fb.unsupported(s, "declaration")
		}
		return fb.genDecl(gen, false)
	case *ast.AssignStmt:
		return fb.assign(s)
	case *ast.IncDecStmt:
		op := token.ADD
		if s.Tok == token.DEC {
			op = token.SUB
		}
		one := &ast.BasicLit{ValuePos: s.TokPos, Kind: token.INT, Value: "1"}
		return fb.store(s.X, &ast.BinaryExpr{X: s.X, OpPos: s.TokPos, Op: op, Y: one}, s.Pos())
	case *ast.ExprStmt:
		return fb.exprStmt(s)
	case *ast.IfStmt:
		return fb.ifStmt(s)
	case *ast.ForStmt:
		return fb.forStmt(s)
	case *ast.BranchStmt:
		return fb.branchStmt(s)
	case *ast.ReturnStmt:
		return fb.returnStmt(s)
	case *ast.GoStmt:
		return fb.goStmt(s)
	case *ast.SwitchStmt:
		return fb.unsupported(s, "switch")
	case *ast.TypeSwitchStmt:
		return fb.unsupported(s, "type switch")
	case *ast.SelectStmt:
		return fb.unsupported(s, "select")
	case *ast.RangeStmt:
		return fb.unsupported(s, "range")
	case *ast.LabeledStmt:
		return fb.unsupported(s, "label")
	case *ast.DeferStmt:
		return fb.unsupported(s, "defer")
	case *ast.SendStmt:
		return fb.unsupported(s, "channel send")
	default:
		return fb.unsupported(s, "statement")
	}
}

// genDecl lowers var and const declarations. Constant specs without values
// repeat the previous spec with the next iota.
func (fb *funcBuilder) genDecl(d *ast.GenDecl, global bool) error {
	if d.Tok == token.TYPE || d.Tok == token.IMPORT {
		return nil
	}
	var last *ast.ValueSpec
	for i, spec := range d.Specs {
		vs := spec.(*ast.ValueSpec)
		if d.Tok == token.CONST {
			fb.iota = int64(i)
			if vs.Type == nil && len(vs.Values) == 0 && last != nil {
				vs = &ast.ValueSpec{Names: vs.Names, Type: last.Type, Values: last.Values}
			}
			last = vs
		}
		if err := fb.valueSpec(vs, global); err != nil {
			return err
		}
	}
	fb.iota = -1
	return nil
}

func (fb *funcBuilder) valueSpec(vs *ast.ValueSpec, global bool) error {
	if len(vs.Values) != 0 && len(vs.Values) != len(vs.Names) {
		return fb.unsupported(vs, "multi-value declaration")
	}
	var t cfa.Type
	if vs.Type != nil {
		t = fb.typeOf(vs.Type)
	}
	for i, name := range vs.Names {
		var value ast.Expr
		if len(vs.Values) > 0 {
			value = vs.Values[i]
		}
		if err := fb.define(name, t, value, global); err != nil {
			return err
		}
	}
	return nil
}

// define declares name with type t, inferred from value when t is void,
// and initializes it with value or the zero value.
func (fb *funcBuilder) define(name *ast.Ident, t cfa.Type, value ast.Expr, global bool) error {
	if name.Name == "_" {
		if value == nil {
			return nil
		}
		return fb.discard(value)
	}
	declare := func(t cfa.Type, init cfa.Expr) *cfa.IdExpr {
		id := fb.declare(name.Name, t, global)
		fb.step(name.Pos(), func(base cfa.EdgeBase) cfa.Edge {
			return &cfa.DeclarationEdge{
				EdgeBase: base,
				Decl:     &cfa.Declaration{Name: id.Name, Type: t, Global: global, Init: init},
			}
		})
		return id
	}

	if call, callee := fb.callee(value); callee != nil {
		if callee.Result.IsVoid() {
			return fb.unsupported(call, "void function used as value")
		}
		if t.IsVoid() {
			t = callee.Result
		}
		// the arguments are evaluated before the new name is in scope
		args, err := fb.args(call)
		if err != nil {
			return err
		}
		fb.call(call, callee, args, declare(t, nil))
		return nil
	}
	if value != nil && isLogical(value) {
		if t.IsVoid() {
			t = cfa.BoolType
		}
		// the condition is lowered before the new name is in scope
		tmp := fb.fresh(condPrefix, t, value.Pos())
		if err := fb.logicalAssign(tmp, value); err != nil {
			return err
		}
		declare(t, tmp)
		return nil
	}

	var init cfa.Expr
	if value != nil {
		var err error
		if init, err = fb.expr(value); err != nil {
			return err
		}
		if t.IsVoid() {
			t = init.Type()
		}
	} else {
		init = zeroValue(t)
	}
	declare(t, init)
	return nil
}

// discard evaluates value for its effects.
func (fb *funcBuilder) discard(value ast.Expr) error {
	if call, callee := fb.callee(value); callee != nil {
		args, err := fb.args(call)
		if err != nil {
			return err
		}
		fb.call(call, callee, args, nil)
		return nil
	}
	x, err := fb.expr(value)
	if err != nil {
		return err
	}
	fb.step(value.Pos(), func(base cfa.EdgeBase) cfa.Edge {
		return &cfa.StatementEdge{EdgeBase: base, Stmt: &cfa.ExprStmt{X: x}}
	})
	return nil
}

var assignOps = map[token.Token]token.Token{
	token.ADD_ASSIGN:     token.ADD,
	token.SUB_ASSIGN:     token.SUB,
	token.MUL_ASSIGN:     token.MUL,
	token.QUO_ASSIGN:     token.QUO,
	token.REM_ASSIGN:     token.REM,
	token.AND_ASSIGN:     token.AND,
	token.OR_ASSIGN:      token.OR,
	token.XOR_ASSIGN:     token.XOR,
	token.SHL_ASSIGN:     token.SHL,
	token.SHR_ASSIGN:     token.SHR,
	token.AND_NOT_ASSIGN: token.AND_NOT,
}

func (fb *funcBuilder) assign(s *ast.AssignStmt) error {
	if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
		return fb.unsupported(s, "multi-value assignment")
	}
	lhs, rhs := s.Lhs[0], s.Rhs[0]
	switch s.Tok {
	case token.DEFINE:
		id, ok := lhs.(*ast.Ident)
		if !ok {
			return fb.unsupported(lhs, "definition")
		}
		return fb.define(id, cfa.Type{}, rhs, false)
	case token.ASSIGN:
		return fb.store(lhs, rhs, s.Pos())
	default:
		op, ok := assignOps[s.Tok]
		if !ok {
			return fb.unsupported(s, s.Tok.String())
		}
		return fb.store(lhs, &ast.BinaryExpr{X: lhs, OpPos: s.TokPos, Op: op, Y: rhs}, s.Pos())
	}
}

// store assigns rhs to lhs.
func (fb *funcBuilder) store(lhs, rhs ast.Expr, pos token.Pos) error {
	if id, ok := lhs.(*ast.Ident); ok && id.Name == "_" {
		return fb.discard(rhs)
	}
	if call, callee := fb.callee(rhs); callee != nil {
		args, err := fb.args(call)
		if err != nil {
			return err
		}
		target, err := fb.expr(lhs)
		if err != nil {
			return err
		}
		id, _ := target.(*cfa.IdExpr)
		fb.call(call, callee, args, id)
		return nil
	}
	if isLogical(rhs) {
		target, err := fb.expr(lhs)
		if err != nil {
			return err
		}
		if id, ok := target.(*cfa.IdExpr); ok {
			return fb.logicalAssign(id, rhs)
		}
	}
	value, err := fb.expr(rhs)
	if err != nil {
		return err
	}
	target, err := fb.expr(lhs)
	if err != nil {
		return err
	}
	fb.step(pos, func(base cfa.EdgeBase) cfa.Edge {
		return &cfa.StatementEdge{EdgeBase: base, Stmt: &cfa.AssignStmt{Lhs: target, Rhs: value}}
	})
	return nil
}

// logicalAssign stores 1 in id where cond holds and 0 elsewhere.
func (fb *funcBuilder) logicalAssign(id *cfa.IdExpr, cond ast.Expr) error {
	yes, no, join := fb.node(), fb.node(), fb.node()
	if err := fb.branch(cond, yes, no); err != nil {
		return err
	}
	for _, arm := range []struct {
		from  *cfa.Node
		value int64
	}{{yes, 1}, {no, 0}} {
		if len(arm.from.Entering) == 0 {
			continue
		}
		fb.cur = arm.from
		value := &cfa.IntLit{Value: arm.value, T: id.T}
		fb.jump(join, cond.Pos(), func(base cfa.EdgeBase) cfa.Edge {
			return &cfa.StatementEdge{EdgeBase: base, Stmt: &cfa.AssignStmt{Lhs: id, Rhs: value}}
		})
	}
	fb.resume(join)
	return nil
}

func (fb *funcBuilder) exprStmt(s *ast.ExprStmt) error {
	call, ok := ast.Unparen(s.X).(*ast.CallExpr)
	if !ok {
		return fb.discard(s.X)
	}
	name := calleeName(call.Fun)
	switch {
	case assertFuncs.Contains(name) && len(call.Args) == 1:
		next := fb.node()
		if err := fb.branch(call.Args[0], next, fb.fn.Error); err != nil {
			return err
		}
		fb.resume(next)
		return nil
	case assumeFuncs.Contains(name) && len(call.Args) == 1:
		next := fb.node()
		if err := fb.branch(call.Args[0], next, nil); err != nil {
			return err
		}
		fb.resume(next)
		return nil
	case errorFuncs.Contains(name):
		fb.jump(fb.fn.Error, s.Pos(), blank(name))
		return nil
	}
	if _, callee := fb.callee(call); callee != nil {
		return fb.discard(call)
	}
	c, err := fb.external(call)
	if err != nil {
		return err
	}
	fb.step(s.Pos(), func(base cfa.EdgeBase) cfa.Edge {
		return &cfa.StatementEdge{EdgeBase: base, Stmt: &cfa.CallStmt{Call: c}}
	})
	if d, ok := deviates(call); ok {
		// the path ends in a sink without successors
		fb.jump(fb.node(), s.End(), blank(d.String()))
	}
	return nil
}

func (fb *funcBuilder) ifStmt(s *ast.IfStmt) error {
	fb.pushScope()
	defer fb.popScope()
	if s.Init != nil {
		if err := fb.stmt(s.Init); err != nil {
			return err
		}
	}
	then, after := fb.node(), fb.node()
	els := after
	if s.Else != nil {
		els = fb.node()
	}
	if err := fb.branch(s.Cond, then, els); err != nil {
		return err
	}

	fb.resume(then)
	if err := fb.stmt(s.Body); err != nil {
		return err
	}
	if fb.cur != nil {
		fb.jump(after, s.Body.Rbrace, blank(""))
	}
	if s.Else != nil {
		fb.resume(els)
		if err := fb.stmt(s.Else); err != nil {
			return err
		}
		if fb.cur != nil {
			fb.jump(after, s.Else.End(), blank(""))
		}
	}
	fb.resume(after)
	return nil
}

func (fb *funcBuilder) forStmt(s *ast.ForStmt) error {
	fb.pushScope()
	defer fb.popScope()
	if s.Init != nil {
		if err := fb.stmt(s.Init); err != nil {
			return err
		}
	}
	head := fb.node()
	first := len(fb.fn.Nodes)
	fb.goTo(head, s.For, blank("for"))

	exit, body, post := fb.node(), fb.node(), fb.node()
	if s.Cond != nil {
		if err := fb.branch(s.Cond, body, exit); err != nil {
			return err
		}
	} else {
		fb.jump(body, s.For, blank(""))
	}

	fb.loops = &targets{brk: exit, cont: post, outer: fb.loops}
	fb.resume(body)
	err := fb.stmt(s.Body)
	fb.loops = fb.loops.outer
	if err != nil {
		return err
	}
	if fb.cur != nil {
		fb.jump(post, s.Body.Rbrace, blank(""))
	}

	fb.resume(post)
	if s.Post != nil && fb.cur != nil {
		if err := fb.stmt(s.Post); err != nil {
			return err
		}
	}
	if fb.cur != nil {
		fb.jump(head, s.Body.Rbrace, blank(""))
	}

	var nodes []*cfa.Node
	for _, n := range fb.fn.Nodes[first:] {
		if n != exit {
			nodes = append(nodes, n)
		}
	}
	fb.prog.Loops.AddLoop(head, nodes)
	fb.resume(exit)
	return nil
}

func (fb *funcBuilder) branchStmt(s *ast.BranchStmt) error {
	if s.Label != nil {
		return fb.unsupported(s, "label")
	}
	switch s.Tok {
	case token.BREAK, token.CONTINUE:
		if fb.loops == nil {
			return fb.unsupported(s, s.Tok.String()+" outside loop")
		}
		to := fb.loops.brk
		if s.Tok == token.CONTINUE {
			to = fb.loops.cont
		}
		fb.jump(to, s.Pos(), blank(s.Tok.String()))
		return nil
	default:
		return fb.unsupported(s, s.Tok.String())
	}
}

func (fb *funcBuilder) returnStmt(s *ast.ReturnStmt) error {
	var value cfa.Expr
	switch len(s.Results) {
	case 0:
		if len(fb.results) == 1 {
			value = fb.results[0]
		}
	case 1:
		var err error
		if value, err = fb.expr(s.Results[0]); err != nil {
			return err
		}
	default:
		return fb.unsupported(s, "multiple results")
	}
	fb.jump(fb.fn.Exit, s.Pos(), func(base cfa.EdgeBase) cfa.Edge {
		return &cfa.ReturnStatementEdge{EdgeBase: base, Expr: value}
	})
	return nil
}

// goStmt lowers a goroutine start to a thread creation, which the analysis
// rejects.
func (fb *funcBuilder) goStmt(s *ast.GoStmt) error {
	args := make([]cfa.Expr, 0, len(s.Call.Args)+1)
	args = append(args, &cfa.OpaqueExpr{Text: calleeName(s.Call.Fun), T: opaqueType})
	for _, a := range s.Call.Args {
		x, err := fb.expr(a)
		if err != nil {
			return err
		}
		args = append(args, x)
	}
	call := &cfa.CallExpr{Func: "pthread_create", Args: args, T: cfa.IntType}
	fb.step(s.Pos(), func(base cfa.EdgeBase) cfa.Edge {
		return &cfa.StatementEdge{EdgeBase: base, Stmt: &cfa.CallStmt{Call: call}}
	})
	return nil
}

// branch lowers cond into assume edges from the current node to yes where
// it holds and to no where it fails. A nil target drops that outcome.
func (fb *funcBuilder) branch(cond ast.Expr, yes, no *cfa.Node) error {
	switch x := ast.Unparen(cond).(type) {
	case *ast.BinaryExpr:
		switch x.Op {
		case token.LAND:
			mid := fb.node()
			if err := fb.branch(x.X, mid, no); err != nil {
				return err
			}
			fb.resume(mid)
			return fb.branch(x.Y, yes, no)
		case token.LOR:
			mid := fb.node()
			if err := fb.branch(x.X, yes, mid); err != nil {
				return err
			}
			fb.resume(mid)
			return fb.branch(x.Y, yes, no)
		}
	case *ast.UnaryExpr:
		if x.Op == token.NOT {
			return fb.branch(x.X, no, yes)
		}
	}
	if fb.cur == nil {
		// unreachable condition
		return nil
	}
	c, err := fb.expr(cond)
	if err != nil {
		return err
	}
	from := fb.cur
	for _, arm := range []struct {
		to    *cfa.Node
		truth bool
	}{{yes, true}, {no, false}} {
		if arm.to == nil {
			continue
		}
		fb.cur = from
		fb.jump(arm.to, cond.Pos(), func(base cfa.EdgeBase) cfa.Edge {
			return &cfa.AssumeEdge{EdgeBase: base, Cond: c, Truth: arm.truth}
		})
	}
	return nil
}
