package frontend

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/gnolang/octagon/internal/analysis/cfa"
)

var binaryOps = map[token.Token]cfa.BinaryOp{
	token.ADD: cfa.OpAdd,
	token.SUB: cfa.OpSub,
	token.MUL: cfa.OpMul,
	token.QUO: cfa.OpDiv,
	token.REM: cfa.OpRem,
	token.AND: cfa.OpAnd,
	token.OR:  cfa.OpOr,
	token.XOR: cfa.OpXor,
	token.SHL: cfa.OpShl,
	token.SHR: cfa.OpShr,
	token.LSS: cfa.OpLt,
	token.LEQ: cfa.OpLe,
	token.GTR: cfa.OpGt,
	token.GEQ: cfa.OpGe,
	token.EQL: cfa.OpEq,
	token.NEQ: cfa.OpNe,
}

// isLogical reports whether e is a truth value built with && || or !.
func isLogical(e ast.Expr) bool {
	switch x := ast.Unparen(e).(type) {
	case *ast.BinaryExpr:
		return x.Op == token.LAND || x.Op == token.LOR
	case *ast.UnaryExpr:
		return x.Op == token.NOT
	default:
		return false
	}
}

// calleeName renders the function expression of a call.
func calleeName(fun ast.Expr) string {
	if id, ok := fun.(*ast.Ident); ok {
		return id.Name
	}
	return types.ExprString(fun)
}

// expr lowers e. Calls of defined functions and logical values are
// computed into fresh locals first, so the result is free of both.
func (fb *funcBuilder) expr(e ast.Expr) (cfa.Expr, error) {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return fb.expr(x.X)
	case *ast.BasicLit:
		return fb.basicLit(x)
	case *ast.Ident:
		return fb.ident(x)
	case *ast.BinaryExpr:
		return fb.binary(x)
	case *ast.UnaryExpr:
		return fb.unary(x)
	case *ast.CallExpr:
		return fb.callValue(x)
	case *ast.FuncLit:
		return nil, fb.unsupported(x, "closure")
	case *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr, *ast.StarExpr,
		*ast.SliceExpr, *ast.CompositeLit, *ast.TypeAssertExpr:
		return fb.opaque(x)
	default:
		return nil, fb.unsupported(e, "expression "+types.ExprString(e))
	}
}

// opaque lowers a value the model does not represent. Calls of defined
// functions inside it would be skipped and are rejected.
func (fb *funcBuilder) opaque(e ast.Expr) (cfa.Expr, error) {
	var err error
	ast.Inspect(e, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *ast.FuncLit:
			err = fb.unsupported(x, "closure")
		case *ast.CallExpr:
			if _, callee := fb.callee(x); callee != nil {
				err = fb.unsupported(x, "call of "+callee.Name+" inside "+types.ExprString(e))
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return &cfa.OpaqueExpr{Text: types.ExprString(e), T: opaqueType}, nil
}

func (fb *funcBuilder) basicLit(x *ast.BasicLit) (cfa.Expr, error) {
	switch x.Kind {
	case token.INT:
		v, err := strconv.ParseInt(strings.ReplaceAll(x.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, fb.unsupported(x, "integer literal "+x.Value)
		}
		return &cfa.IntLit{Value: v, T: cfa.IntType}, nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(strings.ReplaceAll(x.Value, "_", ""), 64)
		if err != nil {
			return nil, fb.unsupported(x, "float literal "+x.Value)
		}
		return &cfa.FloatLit{Value: v, T: cfa.Float64Type}, nil
	case token.CHAR:
		s, err := strconv.Unquote(x.Value)
		if err != nil || len([]rune(s)) != 1 {
			return nil, fb.unsupported(x, "character literal "+x.Value)
		}
		return &cfa.CharLit{Value: []rune(s)[0]}, nil
	case token.STRING:
		return &cfa.OpaqueExpr{Text: x.Value, T: cfa.Type{Kind: cfa.Struct, Name: "string"}}, nil
	default:
		return nil, fb.unsupported(x, "literal "+x.Value)
	}
}

func (fb *funcBuilder) ident(x *ast.Ident) (cfa.Expr, error) {
	if id, ok := fb.lookup(x.Name); ok {
		return id, nil
	}
	switch x.Name {
	case "true":
		return &cfa.IntLit{Value: 1, T: cfa.BoolType}, nil
	case "false":
		return &cfa.IntLit{Value: 0, T: cfa.BoolType}, nil
	case "nil":
		return &cfa.IntLit{Value: 0, T: cfa.Type{Kind: cfa.Pointer, Name: "nil"}}, nil
	case "iota":
		if fb.iota >= 0 {
			return &cfa.IntLit{Value: fb.iota, T: cfa.IntType}, nil
		}
	}
	if _, ok := fb.funcs[x.Name]; ok {
		return nil, fb.unsupported(x, "function value "+x.Name)
	}
	return nil, fb.unsupported(x, "undefined identifier "+x.Name)
}

func isLiteral(e cfa.Expr) bool {
	switch e.(type) {
	case *cfa.IntLit, *cfa.CharLit, *cfa.FloatLit:
		return true
	default:
		return false
	}
}

// resultType approximates the type of an arithmetic expression: untyped
// literals take the type of the other operand.
func resultType(l, r cfa.Expr) cfa.Type {
	switch {
	case isLiteral(l) && !isLiteral(r):
		return r.Type()
	case l.Type().Kind == cfa.Int && r.Type().Kind == cfa.Float:
		return r.Type()
	default:
		return l.Type()
	}
}

func (fb *funcBuilder) binary(x *ast.BinaryExpr) (cfa.Expr, error) {
	if x.Op == token.LAND || x.Op == token.LOR {
		return fb.logicalValue(x)
	}
	l, err := fb.expr(x.X)
	if err != nil {
		return nil, err
	}
	r, err := fb.expr(x.Y)
	if err != nil {
		return nil, err
	}
	if x.Op == token.AND_NOT {
		t := resultType(l, r)
		return &cfa.BinaryExpr{Op: cfa.OpAnd, X: l, Y: &cfa.UnaryExpr{Op: cfa.OpComplement, X: r, T: t}, T: t}, nil
	}
	op, ok := binaryOps[x.Op]
	if !ok {
		return nil, fb.unsupported(x, "operator "+x.Op.String())
	}
	if op.IsRelational() {
		return &cfa.BinaryExpr{Op: op, X: l, Y: r, T: cfa.BoolType}, nil
	}
	return &cfa.BinaryExpr{Op: op, X: l, Y: r, T: resultType(l, r)}, nil
}

func (fb *funcBuilder) unary(x *ast.UnaryExpr) (cfa.Expr, error) {
	if x.Op == token.NOT {
		return fb.logicalValue(x)
	}
	if x.Op == token.ARROW {
		return nil, fb.unsupported(x, "channel receive")
	}
	v, err := fb.expr(x.X)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case token.ADD:
		return v, nil
	case token.SUB:
		return &cfa.UnaryExpr{Op: cfa.OpNeg, X: v, T: v.Type()}, nil
	case token.XOR:
		return &cfa.UnaryExpr{Op: cfa.OpComplement, X: v, T: v.Type()}, nil
	case token.AND:
		return &cfa.UnaryExpr{Op: cfa.OpAddr, X: v, T: cfa.Type{Kind: cfa.Pointer, Name: "*" + v.Type().String()}}, nil
	default:
		return nil, fb.unsupported(x, "operator "+x.Op.String())
	}
}

// logicalValue computes the truth value of e into a fresh local.
func (fb *funcBuilder) logicalValue(e ast.Expr) (cfa.Expr, error) {
	id := fb.fresh(condPrefix, cfa.BoolType, e.Pos())
	if err := fb.logicalAssign(id, e); err != nil {
		return nil, err
	}
	return id, nil
}

// callValue lowers a call used as a value: a conversion, a call of a
// defined function computed into a fresh local, or an external call.
func (fb *funcBuilder) callValue(x *ast.CallExpr) (cfa.Expr, error) {
	if fb.isType(x.Fun) {
		if len(x.Args) != 1 {
			return nil, fb.unsupported(x, "conversion")
		}
		v, err := fb.expr(x.Args[0])
		if err != nil {
			return nil, err
		}
		return &cfa.CastExpr{X: v, T: fb.typeOf(x.Fun)}, nil
	}
	if _, callee := fb.callee(x); callee != nil {
		if callee.Result.IsVoid() {
			return nil, fb.unsupported(x, "void function used as value")
		}
		args, err := fb.args(x)
		if err != nil {
			return nil, err
		}
		id := fb.fresh(callPrefix, callee.Result, x.Pos())
		fb.call(x, callee, args, id)
		return id, nil
	}
	return fb.external(x)
}

func (fb *funcBuilder) args(x *ast.CallExpr) ([]cfa.Expr, error) {
	args := make([]cfa.Expr, 0, len(x.Args))
	for _, a := range x.Args {
		v, err := fb.expr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// call links the call and return edges of a call of callee. The result is
// stored in lhs unless it is nil.
func (fb *funcBuilder) call(x *ast.CallExpr, callee *cfa.Function, args []cfa.Expr, lhs *cfa.IdExpr) {
	ret := fb.node()
	site := &cfa.CallSite{
		Caller: fb.fn.Name,
		Callee: callee,
		Call:   &cfa.CallExpr{Func: callee.Name, Args: args, T: callee.Result},
		Lhs:    lhs,
		Return: ret,
	}
	fb.jump(callee.Entry, x.Pos(), func(base cfa.EdgeBase) cfa.Edge {
		return &cfa.FunctionCallEdge{EdgeBase: base, Site: site}
	})
	fb.prog.Link(&cfa.FunctionReturnEdge{
		EdgeBase: cfa.Between(callee.Exit, ret, fb.position(x.Rparen)),
		Site:     site,
	})
	fb.cur = ret
}

// external lowers a call of a function without a body in the file.
func (fb *funcBuilder) external(x *ast.CallExpr) (*cfa.CallExpr, error) {
	if lit, ok := x.Fun.(*ast.FuncLit); ok {
		return nil, fb.unsupported(lit, "closure")
	}
	args, err := fb.args(x)
	if err != nil {
		return nil, err
	}
	name := calleeName(x.Fun)
	t := cfa.IntType
	if suffix, ok := strings.CutPrefix(name, "__VERIFIER_nondet_"); ok {
		if nt, ok := nondetTypes[suffix]; ok {
			t = nt
		}
	}
	return &cfa.CallExpr{Func: name, Args: args, T: t}, nil
}
