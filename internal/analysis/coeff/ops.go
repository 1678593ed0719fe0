package coeff

import (
	"math"

	"github.com/gnolang/octagon/internal/analysis/octagon"
)

// BitOp enumerates the operators that are only evaluated on constants.
type BitOp int

const (
	Rem BitOp = iota
	And
	Or
	Xor
	Shl
	Shr
)

func (op BitOp) String() string {
	switch op {
	case Rem:
		return "%"
	case And:
		return "&"
	case Or:
		return "|"
	case Xor:
		return "^"
	case Shl:
		return "<<"
	case Shr:
		return ">>"
	default:
		return "?"
	}
}

// CmpOp enumerates the relational operators.
type CmpOp int

const (
	Lt CmpOp = iota
	Le
	Gt
	Ge
	Eq
	Ne
)

func (op CmpOp) String() string {
	switch op {
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Eq:
		return "=="
	case Ne:
		return "!="
	default:
		return "?"
	}
}

// Negate returns the operator of the complementary comparison.
func (op CmpOp) Negate() CmpOp {
	switch op {
	case Lt:
		return Ge
	case Le:
		return Gt
	case Gt:
		return Le
	case Ge:
		return Lt
	case Eq:
		return Ne
	default:
		return Eq
	}
}

// Flip returns the operator with swapped operands: a op b <=> b op.Flip() a.
func (op CmpOp) Flip() CmpOp {
	switch op {
	case Lt:
		return Gt
	case Le:
		return Ge
	case Gt:
		return Lt
	case Ge:
		return Le
	default:
		return op
	}
}

// Holds evaluates the comparison on two numbers.
func (op CmpOp) Holds(a, b float64) bool {
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	case Eq:
		return a == b
	default:
		return a != b
	}
}

func add(a, b Coefficients, sub bool) Coefficients {
	mustSameSize(a, b)
	if b, ok := b.(Unknown); ok {
		return b
	}
	if x, ok := a.(Simple); ok {
		if y, ok := b.(Simple); ok {
			v := make([]float64, len(x.v))
			for i := range v {
				if sub {
					v[i] = x.v[i] - y.v[i]
				} else {
					v[i] = x.v[i] + y.v[i]
				}
			}
			return Simple{v: v}
		}
	}
	x, y := asInterval(a), asInterval(b)
	lo := make([]float64, len(x.lo))
	hi := make([]float64, len(x.hi))
	for i := range lo {
		if sub {
			lo[i] = octagon.AddBound(x.lo[i], -y.hi[i], -1)
			hi[i] = octagon.AddBound(x.hi[i], -y.lo[i], 1)
		} else {
			lo[i] = octagon.AddBound(x.lo[i], y.lo[i], -1)
			hi[i] = octagon.AddBound(x.hi[i], y.hi[i], 1)
		}
	}
	return Interval{lo: lo, hi: hi}
}

func asInterval(c Coefficients) Interval {
	return Match(c,
		func(Unknown) Interval { panic("coeff: Unknown has no interval form") },
		func(s Simple) Interval { return s.toInterval() },
		func(iv Interval) Interval { return iv },
	)
}

// constantRange returns the value range of a constant operand.
func constantRange(c Coefficients) (lo, hi float64, ok bool) {
	if !c.HasOnlyConstantValue() {
		return 0, 0, false
	}
	switch v := c.(type) {
	case Simple:
		k := v.ConstantValue()
		return k, k, true
	case Interval:
		lo, hi := v.ConstantBounds()
		return lo, hi, true
	default:
		return 0, 0, false
	}
}

func mul(a, b Coefficients) Coefficients {
	mustSameSize(a, b)
	if _, ok := b.(Unknown); ok {
		return b
	}
	if lo, hi, ok := constantRange(a); ok {
		return scale(b, lo, hi)
	}
	if lo, hi, ok := constantRange(b); ok {
		return scale(a, lo, hi)
	}
	return NewUnknown(a.Size())
}

// scale multiplies every slot of c by the factor range [lo, hi].
func scale(c Coefficients, lo, hi float64) Coefficients {
	if s, ok := c.(Simple); ok && lo == hi {
		v := make([]float64, len(s.v))
		for i, x := range s.v {
			if x != 0 {
				v[i] = x * lo
			}
		}
		return Simple{v: v}
	}
	if _, ok := c.(Unknown); ok {
		return c
	}
	iv := asInterval(c)
	l := make([]float64, len(iv.lo))
	h := make([]float64, len(iv.hi))
	for i := range l {
		l[i], h[i] = octagon.MulInterval(iv.lo[i], iv.hi[i], lo, hi)
	}
	return Interval{lo: l, hi: h}
}

func div(a, b Coefficients, integral bool) Coefficients {
	mustSameSize(a, b)
	if _, ok := a.(Unknown); ok {
		return a
	}
	lo, hi, ok := constantRange(b)
	if !ok || (lo <= 0 && hi >= 0) {
		return NewUnknown(a.Size())
	}
	if x, ok := a.(Simple); ok && lo == hi {
		if integral && x.HasOnlyConstantValue() {
			return Constant(math.Trunc(x.ConstantValue()/lo), x.Size())
		}
		q := scale(x, 1/lo, 1/lo).(Simple)
		if !integral || q.IsIntegral() {
			return q
		}
		return truncationSlack(q.toInterval())
	}
	q := scale(a, 1/hi, 1/lo)
	if !integral {
		return q
	}
	return truncationSlack(asInterval(q))
}

// truncationSlack widens the constant by the error of integer truncation,
// which is strictly below one in magnitude.
func truncationSlack(iv Interval) Interval {
	n := iv.Size()
	lo := append([]float64(nil), iv.lo...)
	hi := append([]float64(nil), iv.hi...)
	lo[n]--
	hi[n]++
	return Interval{lo: lo, hi: hi}
}

func bitwise(op BitOp, a, b Coefficients) Coefficients {
	mustSameSize(a, b)
	x, ok1 := a.(Simple)
	y, ok2 := b.(Simple)
	if !ok1 || !ok2 || !x.HasOnlyConstantValue() || !y.HasOnlyConstantValue() || !x.IsIntegral() || !y.IsIntegral() {
		return NewUnknown(a.Size())
	}
	l, r := int64(x.ConstantValue()), int64(y.ConstantValue())
	var v int64
	switch op {
	case Rem:
		if r == 0 {
			return NewUnknown(a.Size())
		}
		v = l % r
	case And:
		v = l & r
	case Or:
		v = l | r
	case Xor:
		v = l ^ r
	case Shl, Shr:
		if r < 0 || r >= 63 {
			return NewUnknown(a.Size())
		}
		if op == Shl {
			v = l << uint(r)
		} else {
			v = l >> uint(r)
		}
	default:
		return NewUnknown(a.Size())
	}
	return Constant(float64(v), a.Size())
}

func compare(op CmpOp, a, b Coefficients) Coefficients {
	mustSameSize(a, b)
	x, ok1 := a.(Simple)
	y, ok2 := b.(Simple)
	if !ok1 || !ok2 || !x.HasOnlyConstantValue() || !y.HasOnlyConstantValue() {
		return NewUnknown(a.Size())
	}
	if op.Holds(x.ConstantValue(), y.ConstantValue()) {
		return Constant(1, a.Size())
	}
	return Constant(0, a.Size())
}
