// Package eval translates CFA expressions into coefficient forms over an
// abstract state.
//
// Evaluation may split the state: a comparison whose outcome is not fixed
// yields one result per feasible outcome, each with its own state. Results
// are returned as explicit lists of pairs and threaded through the
// recursion, never collected in shared state.
package eval

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/gnolang/octagon/internal/analysis/cfa"
	"github.com/gnolang/octagon/internal/analysis/coeff"
	"github.com/gnolang/octagon/internal/analysis/precision"
	"github.com/gnolang/octagon/internal/analysis/state"
)

// Pair is one outcome of an evaluation: the value of the expression and the
// state it holds in. Coeff always ranges over the variables of State.
type Pair struct {
	Coeff coeff.Coefficients
	State *state.State
}

// Evaluator evaluates expressions of one function.
type Evaluator struct {
	// Function owns the temporaries created during evaluation.
	Function  string
	Precision precision.Precision
	// Floats enables evaluation of floating point literals.
	Floats bool
}

const (
	nondetPrefix = "__VERIFIER_nondet_"
	nondetUint   = "__VERIFIER_nondet_uint"
	nondetBool   = "__VERIFIER_nondet_bool"
)

// Evaluate returns every outcome of e in s. Infeasible outcomes are
// omitted, so the result may be empty.
func (ev *Evaluator) Evaluate(e cfa.Expr, s *state.State) ([]Pair, error) {
	switch x := e.(type) {
	case *cfa.IdExpr:
		return []Pair{{ev.identifier(x, s), s}}, nil
	case *cfa.IntLit:
		return []Pair{{coeff.Constant(float64(x.Value), s.Size()), s}}, nil
	case *cfa.CharLit:
		return []Pair{{coeff.Constant(float64(x.Value), s.Size()), s}}, nil
	case *cfa.FloatLit:
		if !ev.Floats {
			return []Pair{{coeff.NewUnknown(s.Size()), s}}, nil
		}
		return []Pair{{coeff.Constant(x.Value, s.Size()), s}}, nil
	case *cfa.CastExpr:
		return ev.Evaluate(x.X, s)
	case *cfa.UnaryExpr:
		return ev.unary(x, s)
	case *cfa.BinaryExpr:
		return ev.binary(x, s)
	case *cfa.CallExpr:
		return []Pair{{ev.call(x, s), s}}, nil
	case *cfa.OpaqueExpr:
		return []Pair{{coeff.NewUnknown(s.Size()), s}}, nil
	default:
		return nil, errors.Errorf("unexpected expression %T", e)
	}
}

// Resolve returns the name under which the variable referenced by name is
// tracked in s. Besides the name itself the alternate scope qualifier is
// tried: a global shadowing miss as "fn::x" is found as "::x" and a local
// referenced as "::x" is found as "fn::x".
func (ev *Evaluator) Resolve(name string, s *state.State) (string, bool) {
	if s.Contains(name) {
		return name, true
	}
	fn, plain := cfa.SplitName(name)
	alt := cfa.QualifiedName("", plain)
	if fn == "" {
		alt = cfa.QualifiedName(ev.Function, plain)
	}
	if s.Contains(alt) {
		return alt, true
	}
	return "", false
}

func (ev *Evaluator) identifier(x *cfa.IdExpr, s *state.State) coeff.Coefficients {
	if ev.Precision != nil && !ev.Precision.IsTracked(x.Name, x.T) {
		return coeff.NewUnknown(s.Size())
	}
	name, ok := ev.Resolve(x.Name, s)
	if !ok {
		return coeff.NewUnknown(s.Size())
	}
	i, _ := s.Index(name)
	return coeff.Variable(i, s.Size())
}

func (ev *Evaluator) unary(x *cfa.UnaryExpr, s *state.State) ([]Pair, error) {
	if x.Op != cfa.OpNeg {
		return []Pair{{coeff.NewUnknown(s.Size()), s}}, nil
	}
	pairs, err := ev.Evaluate(x.X, s)
	if err != nil {
		return nil, err
	}
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = Pair{p.Coeff.Negate(), p.State}
	}
	return out, nil
}

func (ev *Evaluator) call(x *cfa.CallExpr, s *state.State) coeff.Coefficients {
	switch {
	case x.Func == nondetBool:
		return coeff.IntervalConstant(0, 1, s.Size())
	case x.Func == nondetUint:
		t := x.T
		if t.Kind != cfa.Int || !t.Unsigned {
			t = cfa.Type{Kind: cfa.Int, Bits: 32, Unsigned: true}
		}
		lo, hi := t.Range()
		return coeff.IntervalConstant(lo, hi, s.Size())
	case strings.HasPrefix(x.Func, nondetPrefix) && x.T.Kind == cfa.Int:
		lo, hi := x.T.Range()
		return coeff.IntervalConstant(lo, hi, s.Size())
	default:
		return coeff.NewUnknown(s.Size())
	}
}

type operandPair struct {
	left, right coeff.Coefficients
	state       *state.State
}

// operands evaluates both operands of x, left first, and returns every
// combination with both values sized to the final state.
func (ev *Evaluator) operands(x *cfa.BinaryExpr, s *state.State) ([]operandPair, error) {
	left, err := ev.Evaluate(x.X, s)
	if err != nil {
		return nil, err
	}
	var out []operandPair
	for _, l := range left {
		right, err := ev.Evaluate(x.Y, l.State)
		if err != nil {
			return nil, err
		}
		for _, r := range right {
			out = append(out, operandPair{l.Coeff.ExpandToSize(r.State.Size()), r.Coeff, r.State})
		}
	}
	return out, nil
}

func (ev *Evaluator) binary(x *cfa.BinaryExpr, s *state.State) ([]Pair, error) {
	combos, err := ev.operands(x, s)
	if err != nil {
		return nil, err
	}
	var out []Pair
	for _, c := range combos {
		pairs, err := ev.combine(x, c.left, c.right, c.state)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return out, nil
}

func (ev *Evaluator) combine(x *cfa.BinaryExpr, l, r coeff.Coefficients, s *state.State) ([]Pair, error) {
	integral := x.T.Kind != cfa.Float
	switch {
	case x.Op == cfa.OpAdd:
		return []Pair{{l.Add(r), s}}, nil
	case x.Op == cfa.OpSub:
		return []Pair{{l.Sub(r), s}}, nil
	case x.Op == cfa.OpMul || x.Op == cfa.OpDiv:
		if x.Op == cfa.OpDiv && integral {
			if q, ok := exactQuotient(l, r, s); ok {
				return []Pair{{q, s}}, nil
			}
		}
		if !l.HasOnlyConstantValue() && !r.HasOnlyConstantValue() {
			var err error
			l, r, s, err = ev.boundRight(x.Y.Type(), l, r, s)
			if err != nil {
				return nil, err
			}
		}
		if x.Op == cfa.OpMul {
			return []Pair{{l.Mul(r), s}}, nil
		}
		return []Pair{{l.Div(r, integral), s}}, nil
	case x.Op.IsBitwise():
		return []Pair{{l.Bitwise(bitOp(x.Op), r), s}}, nil
	case x.Op.IsRelational():
		return ev.relation(x, CmpOp(x.Op), l, r, s)
	default:
		return nil, errors.Errorf("unexpected operator %s", x.Op)
	}
}

// exactQuotient folds an integer division whose operands s pins to single
// values into the truncated quotient.
func exactQuotient(l, r coeff.Coefficients, s *state.State) (coeff.Coefficients, bool) {
	nlo, nhi := s.BoundsOf(l)
	dlo, dhi := s.BoundsOf(r)
	if nlo != nhi || dlo != dhi || dlo == 0 || math.IsInf(nlo, 0) || math.IsInf(dlo, 0) {
		return nil, false
	}
	return coeff.Constant(math.Trunc(nlo/dlo), s.Size()), true
}

// boundRight stores the right operand in a temporary and replaces it by the
// interval of that temporary, which is a constant the algebra can multiply
// and divide by.
func (ev *Evaluator) boundRight(t cfa.Type, l, r coeff.Coefficients, s *state.State) (coeff.Coefficients, coeff.Coefficients, *state.State, error) {
	if _, unknown := r.(coeff.Unknown); unknown {
		return l, r, s, nil
	}
	tmp, next, err := ev.Materialize(t, r, s)
	if err != nil {
		return nil, nil, nil, err
	}
	lo, hi, _ := next.VariableBounds(tmp)
	n := next.Size()
	return l.ExpandToSize(n), coeff.IntervalConstant(lo, hi, n), next, nil
}

// Materialize declares a fresh temporary of type t and strongly assigns c
// to it. It returns the temporary's name and the extended state.
func (ev *Evaluator) Materialize(t cfa.Type, c coeff.Coefficients, s *state.State) (string, *state.State, error) {
	name := ev.freshTemp(s)
	next, err := s.DeclareVariable(name, state.TypeOf(t))
	if err != nil {
		return "", nil, errors.Wrapf(err, "declaring temporary for %s", ev.Function)
	}
	return name, next.MakeAssignment(name, c.ExpandToSize(next.Size())), nil
}

func (ev *Evaluator) freshTemp(s *state.State) string {
	for k := 0; ; k++ {
		if name := cfa.TempVariable(ev.Function, k); !s.Contains(name) {
			return name
		}
	}
}

// relation evaluates l op r. Constant operands fold; otherwise the left
// operand is bound to a variable and the state is split into the outcome
// where the comparison holds (value 1) and where it fails (value 0).
func (ev *Evaluator) relation(x *cfa.BinaryExpr, op coeff.CmpOp, l, r coeff.Coefficients, s *state.State) ([]Pair, error) {
	if folded, ok := l.Compare(op, r).(coeff.Simple); ok {
		return []Pair{{folded, s}}, nil
	}
	_, lu := l.(coeff.Unknown)
	_, ru := r.(coeff.Unknown)
	if lu || ru {
		return []Pair{
			{coeff.Constant(1, s.Size()), s},
			{coeff.Constant(0, s.Size()), s},
		}, nil
	}
	name, bound, err := ev.Bind(x.X, l, s)
	if err != nil {
		return nil, err
	}
	rhs := state.CoeffOperand(r.ExpandToSize(bound.Size()))
	var out []Pair
	for _, t := range bound.Constrain(name, op, rhs) {
		if !t.IsEmpty() {
			out = append(out, Pair{coeff.Constant(1, t.Size()), t})
		}
	}
	for _, f := range bound.Constrain(name, op.Negate(), rhs) {
		if !f.IsEmpty() {
			out = append(out, Pair{coeff.Constant(0, f.Size()), f})
		}
	}
	return out, nil
}

// Bind names the value c of expression e: a tracked variable is used
// directly, any other value is stored in a temporary.
func (ev *Evaluator) Bind(e cfa.Expr, l coeff.Coefficients, s *state.State) (string, *state.State, error) {
	if id, ok := e.(*cfa.IdExpr); ok {
		if name, ok := ev.Resolve(id.Name, s); ok {
			if v, ok := l.(coeff.Simple); ok {
				if idx, f, single := v.SingleVariable(); single && f == 1 && v.ConstantValue() == 0 {
					if i, _ := s.Index(name); i == idx {
						return name, s, nil
					}
				}
			}
		}
	}
	return ev.Materialize(e.Type(), l, s)
}

// CmpOp maps a relational operator onto the algebra's comparison.
func CmpOp(op cfa.BinaryOp) coeff.CmpOp {
	switch op {
	case cfa.OpLt:
		return coeff.Lt
	case cfa.OpLe:
		return coeff.Le
	case cfa.OpGt:
		return coeff.Gt
	case cfa.OpGe:
		return coeff.Ge
	case cfa.OpEq:
		return coeff.Eq
	case cfa.OpNe:
		return coeff.Ne
	default:
		panic("eval: not a relational operator: " + op.String())
	}
}

func bitOp(op cfa.BinaryOp) coeff.BitOp {
	switch op {
	case cfa.OpRem:
		return coeff.Rem
	case cfa.OpAnd:
		return coeff.And
	case cfa.OpOr:
		return coeff.Or
	case cfa.OpXor:
		return coeff.Xor
	case cfa.OpShl:
		return coeff.Shl
	default:
		return coeff.Shr
	}
}
