package state

import (
	"math"

	"github.com/gnolang/octagon/internal/analysis/coeff"
	"github.com/gnolang/octagon/internal/analysis/octagon"
)

// Operand is the right-hand side of a constraint: a literal, a variable or
// an arbitrary coefficient form.
type Operand struct {
	literal float64
	name    string
	c       coeff.Coefficients
}

// Literal is the constant k.
func Literal(k float64) Operand { return Operand{literal: k} }

// VariableOperand is the value of the named variable.
func VariableOperand(name string) Operand { return Operand{name: name} }

// CoeffOperand is the value of c, which must range over the state's
// variables.
func CoeffOperand(c coeff.Coefficients) Operand { return Operand{c: c} }

func (o Operand) coefficients(s *State) coeff.Coefficients {
	switch {
	case o.c != nil:
		s.mustFit(o.c)
		return o.c
	case o.name != "":
		i, ok := s.index[o.name]
		if !ok {
			return coeff.NewUnknown(s.Size())
		}
		return coeff.Variable(i, s.Size())
	default:
		return coeff.Constant(o.literal, s.Size())
	}
}

type relation int

const (
	lessEq relation = iota
	less
	greaterEq
	greater
)

// AddSmallerConstraint restricts name < rhs.
func (s *State) AddSmallerConstraint(name string, rhs Operand) *State {
	return s.constrain(name, less, rhs)
}

// AddSmallerEqConstraint restricts name <= rhs.
func (s *State) AddSmallerEqConstraint(name string, rhs Operand) *State {
	return s.constrain(name, lessEq, rhs)
}

// AddGreaterConstraint restricts name > rhs.
func (s *State) AddGreaterConstraint(name string, rhs Operand) *State {
	return s.constrain(name, greater, rhs)
}

// AddGreaterEqConstraint restricts name >= rhs.
func (s *State) AddGreaterEqConstraint(name string, rhs Operand) *State {
	return s.constrain(name, greaterEq, rhs)
}

// AddEqConstraint restricts name == rhs.
func (s *State) AddEqConstraint(name string, rhs Operand) *State {
	return s.constrain(name, lessEq, rhs).constrain(name, greaterEq, rhs)
}

// AddIneqConstraint restricts name != rhs. Octagons cannot express the
// disjunction, so the result is the pair {name < rhs, name > rhs}.
func (s *State) AddIneqConstraint(name string, rhs Operand) []*State {
	return []*State{
		s.constrain(name, less, rhs),
		s.constrain(name, greater, rhs),
	}
}

// constrain adds name rel rhs. Constraints on untracked variables or with an
// Unknown right-hand side cannot be expressed and leave s unchanged.
func (s *State) constrain(name string, rel relation, rhs Operand) *State {
	i, ok := s.index[name]
	if !ok {
		return s
	}
	c := rhs.coefficients(s)
	return coeff.Match(c,
		func(coeff.Unknown) *State { return s },
		func(v coeff.Simple) *State { return s.constrainSimple(i, rel, v) },
		func(v coeff.Interval) *State { return s.constrainScratch(i, rel, v, false) },
	)
}

// strictOffset turns v < e into v <= e - 1 when both sides are integers.
// Otherwise the strict form degrades to the non-strict one.
func (s *State) strictOffset(i int, rel relation, v coeff.Simple) float64 {
	if rel != less && rel != greater {
		return 0
	}
	if s.types[s.names[i]] != IntVar || !s.isIntegralForm(v) {
		return 0
	}
	return 1
}

func (s *State) constrainSimple(i int, rel relation, v coeff.Simple) *State {
	k := v.ConstantValue()
	off := s.strictOffset(i, rel, v)
	upper := rel == lessEq || rel == less

	if v.HasOnlyConstantValue() {
		if upper {
			return s.with(s.oct.AddConstraint(octagon.PX, i, 0, k-off))
		}
		return s.with(s.oct.AddConstraint(octagon.MX, i, 0, -(k + off)))
	}

	j, f, single := v.SingleVariable()
	if !single || (f != 1 && f != -1) {
		return s.constrainScratch(i, rel, v, s.isIntegralForm(v))
	}
	if j == i {
		return s.constrainSelf(i, upper, f, k, off)
	}
	switch {
	case upper && f == 1: // v_i - v_j <= k
		return s.with(s.oct.AddConstraint(octagon.PXMY, i, j, k-off))
	case upper: // v_i + v_j <= k
		return s.with(s.oct.AddConstraint(octagon.PXPY, i, j, k-off))
	case f == 1: // v_j - v_i <= -k
		return s.with(s.oct.AddConstraint(octagon.MXPY, i, j, -(k + off)))
	default: // -v_i - v_j <= -k
		return s.with(s.oct.AddConstraint(octagon.MXMY, i, j, -(k + off)))
	}
}

// constrainSelf handles right-hand sides of the form ±v_i + k.
func (s *State) constrainSelf(i int, upper bool, f, k, off float64) *State {
	switch {
	case f == 1:
		// v <= v + k holds iff 0 <= k
		bound := k - off
		if !upper {
			bound = -(k + off)
		}
		if bound < 0 {
			return s.with(octagon.Bottom(s.Size()))
		}
		return s
	case upper: // 2*v_i <= k
		return s.with(s.oct.AddConstraint(octagon.PXPY, i, i, k-off))
	default: // -2*v_i <= -k
		return s.with(s.oct.AddConstraint(octagon.MXMY, i, i, -(k + off)))
	}
}

// constrainScratch compares v_i with a non-octagonal form through a scratch
// dimension holding the value of the form.
func (s *State) constrainScratch(i int, rel relation, c coeff.Coefficients, integral bool) *State {
	n := s.Size()
	oct := s.oct.AddDimensions(1, integral)
	ext := c.ExpandToSize(n + 1)
	switch v := ext.(type) {
	case coeff.Simple:
		oct = oct.Assign(n, v.Coefficients(), v.ConstantValue())
	case coeff.Interval:
		oct = oct.AssignInterval(n, v.Lower(), v.Upper())
	default:
		return s
	}
	off := 0.0
	if integral && s.types[s.names[i]] == IntVar && (rel == less || rel == greater) {
		off = 1
	}
	if rel == lessEq || rel == less {
		oct = oct.AddConstraint(octagon.PXMY, i, n, -off)
	} else {
		oct = oct.AddConstraint(octagon.MXPY, i, n, -off)
	}
	return s.with(oct.RemoveDimensions(n))
}

// BoundsOf returns the interval of the linear form c in s.
func (s *State) BoundsOf(c coeff.Coefficients) (lo, hi float64) {
	s.mustFit(c)
	switch v := c.(type) {
	case coeff.Simple:
		if idx, f, ok := v.SingleVariable(); ok && f == 1 {
			lo, hi = s.oct.Bounds(idx)
			return lo + v.ConstantValue(), hi + v.ConstantValue()
		}
		if v.HasOnlyConstantValue() {
			return v.ConstantValue(), v.ConstantValue()
		}
	case coeff.Unknown:
		return math.Inf(-1), math.Inf(1)
	}
	n := s.Size()
	oct := s.oct.AddDimensions(1, false)
	switch v := c.ExpandToSize(n + 1).(type) {
	case coeff.Simple:
		oct = oct.Assign(n, v.Coefficients(), v.ConstantValue())
	case coeff.Interval:
		oct = oct.AssignInterval(n, v.Lower(), v.Upper())
	}
	return oct.Bounds(n)
}

// Constrain restricts name op rhs and returns one state per disjunct: a
// single state for every operator except !=, which yields two.
func (s *State) Constrain(name string, op coeff.CmpOp, rhs Operand) []*State {
	switch op {
	case coeff.Lt:
		return []*State{s.AddSmallerConstraint(name, rhs)}
	case coeff.Le:
		return []*State{s.AddSmallerEqConstraint(name, rhs)}
	case coeff.Gt:
		return []*State{s.AddGreaterConstraint(name, rhs)}
	case coeff.Ge:
		return []*State{s.AddGreaterEqConstraint(name, rhs)}
	case coeff.Eq:
		return []*State{s.AddEqConstraint(name, rhs)}
	default:
		return s.AddIneqConstraint(name, rhs)
	}
}
