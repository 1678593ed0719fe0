package cfa

import (
	"strconv"
	"strings"
)

// Expr is a typed expression carried by an edge.
type Expr interface {
	isExpr()
	Type() Type
	String() string
}

// IdExpr references a variable by its qualified name.
type IdExpr struct {
	Name string
	T    Type
}

func (*IdExpr) isExpr()      {}
func (e *IdExpr) Type() Type { return e.T }
func (e *IdExpr) String() string {
	_, name := SplitName(e.Name)
	return name
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	T     Type
}

func (*IntLit) isExpr()          {}
func (e *IntLit) Type() Type     { return e.T }
func (e *IntLit) String() string { return strconv.FormatInt(e.Value, 10) }

// CharLit is a character literal.
type CharLit struct {
	Value rune
}

func (*CharLit) isExpr()          {}
func (*CharLit) Type() Type       { return Type{Kind: Int, Bits: 32, Name: "rune"} }
func (e *CharLit) String() string { return strconv.QuoteRune(e.Value) }

// FloatLit is a floating point literal.
type FloatLit struct {
	Value float64
	T     Type
}

func (*FloatLit) isExpr()          {}
func (e *FloatLit) Type() Type     { return e.T }
func (e *FloatLit) String() string { return strconv.FormatFloat(e.Value, 'g', -1, 64) }

// OpaqueExpr stands for a value the model does not represent, such as a
// string, a field or an element of an array.
type OpaqueExpr struct {
	Text string
	T    Type
}

func (*OpaqueExpr) isExpr()          {}
func (e *OpaqueExpr) Type() Type     { return e.T }
func (e *OpaqueExpr) String() string { return e.Text }

// BinaryOp is the closed set of binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
)

var binaryOpNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpRem: "%",
	OpAnd: "&", OpOr: "|", OpXor: "^", OpShl: "<<", OpShr: ">>",
	OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=", OpEq: "==", OpNe: "!=",
}

func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryOpNames) {
		return "?"
	}
	return binaryOpNames[op]
}

// IsRelational reports whether op yields a truth value.
func (op BinaryOp) IsRelational() bool { return op >= OpLt && op <= OpNe }

// IsLinear reports whether op is one of + - * /.
func (op BinaryOp) IsLinear() bool { return op <= OpDiv }

// IsBitwise reports whether op is a bitwise, shift or remainder operator.
func (op BinaryOp) IsBitwise() bool { return op >= OpRem && op <= OpShr }

// BinaryExpr applies Op to X and Y.
type BinaryExpr struct {
	Op   BinaryOp
	X, Y Expr
	T    Type
}

func (*BinaryExpr) isExpr()      {}
func (e *BinaryExpr) Type() Type { return e.T }
func (e *BinaryExpr) String() string {
	return "(" + e.X.String() + " " + e.Op.String() + " " + e.Y.String() + ")"
}

// UnaryOp is the closed set of unary operators.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpAddr
	OpSizeof
	OpComplement
)

func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpAddr:
		return "&"
	case OpSizeof:
		return "sizeof "
	case OpComplement:
		return "~"
	default:
		return "?"
	}
}

// UnaryExpr applies Op to X.
type UnaryExpr struct {
	Op UnaryOp
	X  Expr
	T  Type
}

func (*UnaryExpr) isExpr()          {}
func (e *UnaryExpr) Type() Type     { return e.T }
func (e *UnaryExpr) String() string { return e.Op.String() + e.X.String() }

// CastExpr converts X to T.
type CastExpr struct {
	X Expr
	T Type
}

func (*CastExpr) isExpr()          {}
func (e *CastExpr) Type() Type     { return e.T }
func (e *CastExpr) String() string { return e.T.String() + "(" + e.X.String() + ")" }

// CallExpr calls the named function.
type CallExpr struct {
	Func string
	Args []Expr
	T    Type
}

func (*CallExpr) isExpr()      {}
func (e *CallExpr) Type() Type { return e.T }
func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Func + "(" + strings.Join(args, ", ") + ")"
}

// Calls returns every call expression nested in e, outermost first.
func Calls(e Expr) []*CallExpr {
	var out []*CallExpr
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *CallExpr:
			out = append(out, x)
			for _, a := range x.Args {
				walk(a)
			}
		case *BinaryExpr:
			walk(x.X)
			walk(x.Y)
		case *UnaryExpr:
			walk(x.X)
		case *CastExpr:
			walk(x.X)
		}
	}
	walk(e)
	return out
}
