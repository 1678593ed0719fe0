// Package coeff implements the coefficient algebra used to evaluate program
// expressions before they are committed into an octagon.
//
// A value is one of three kinds:
//
//   - Unknown: the expression cannot be captured by the domain.
//   - Simple: exact coefficients (c_0..c_{n-1}, k) meaning sum(c_i*v_i) + k.
//   - Interval: like Simple, but every coefficient and the constant is a
//     closed interval, meaning a sound enclosure.
//
// The size of a value is the number of variables it ranges over. Operands
// of a binary operation must have the same size; values computed before new
// variables were declared have to be resized with ExpandToSize first.
package coeff

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coefficients is the closed union Unknown | Simple | Interval.
type Coefficients interface {
	// Size returns the number of variable slots.
	Size() int
	// ExpandToSize pads with zero coefficients or truncates to n slots.
	ExpandToSize(n int) Coefficients
	// HasOnlyConstantValue reports whether every variable slot is zero.
	HasOnlyConstantValue() bool
	Add(other Coefficients) Coefficients
	Sub(other Coefficients) Coefficients
	Mul(other Coefficients) Coefficients
	// Div divides by a constant divisor. With integral set the result
	// accounts for truncating integer division.
	Div(other Coefficients, integral bool) Coefficients
	Bitwise(op BitOp, other Coefficients) Coefficients
	Compare(op CmpOp, other Coefficients) Coefficients
	Negate() Coefficients
	String() string

	sealed()
}

// Match dispatches on the kind of c. Every kind must be handled, so adding a
// kind breaks every caller at compile time.
func Match[R any](c Coefficients, unknown func(Unknown) R, simple func(Simple) R, interval func(Interval) R) R {
	switch v := c.(type) {
	case Unknown:
		return unknown(v)
	case Simple:
		return simple(v)
	case Interval:
		return interval(v)
	default:
		panic(fmt.Sprintf("coeff: foreign Coefficients implementation %T", c))
	}
}

func mustSameSize(a, b Coefficients) {
	if a.Size() != b.Size() {
		panic(fmt.Sprintf("coeff: size mismatch %d != %d", a.Size(), b.Size()))
	}
}

// Unknown is the absorbing top value.
type Unknown struct {
	size int
}

// NewUnknown returns the Unknown value over size variables.
func NewUnknown(size int) Unknown { return Unknown{size: size} }

func (Unknown) sealed() {}

func (u Unknown) Size() int { return u.size }

func (u Unknown) ExpandToSize(n int) Coefficients { return Unknown{size: n} }

func (Unknown) HasOnlyConstantValue() bool { return false }

func (u Unknown) Add(o Coefficients) Coefficients { mustSameSize(u, o); return u }

func (u Unknown) Sub(o Coefficients) Coefficients { mustSameSize(u, o); return u }

func (u Unknown) Mul(o Coefficients) Coefficients { mustSameSize(u, o); return u }

func (u Unknown) Div(o Coefficients, _ bool) Coefficients { mustSameSize(u, o); return u }

func (u Unknown) Bitwise(_ BitOp, o Coefficients) Coefficients { mustSameSize(u, o); return u }

func (u Unknown) Compare(_ CmpOp, o Coefficients) Coefficients { mustSameSize(u, o); return u }

func (u Unknown) Negate() Coefficients { return u }

func (Unknown) String() string { return "unknown" }

// Simple holds exact coefficients followed by the constant.
type Simple struct {
	v []float64
}

// NewSimple builds sum(coeffs[i]*v_i) + k.
func NewSimple(coeffs []float64, k float64) Simple {
	v := make([]float64, len(coeffs)+1)
	copy(v, coeffs)
	v[len(coeffs)] = k
	return Simple{v: v}
}

// Constant returns the literal k over size variables.
func Constant(k float64, size int) Simple {
	v := make([]float64, size+1)
	v[size] = k
	return Simple{v: v}
}

// Variable returns 1*v_idx over size variables.
func Variable(idx, size int) Simple {
	if idx < 0 || idx >= size {
		panic(fmt.Sprintf("coeff: variable %d out of range [0,%d)", idx, size))
	}
	v := make([]float64, size+1)
	v[idx] = 1
	return Simple{v: v}
}

func (Simple) sealed() {}

func (s Simple) Size() int { return len(s.v) - 1 }

// Coefficient returns the factor of variable i.
func (s Simple) Coefficient(i int) float64 { return s.v[i] }

// Coefficients returns a copy of the variable factors.
func (s Simple) Coefficients() []float64 {
	out := make([]float64, s.Size())
	copy(out, s.v)
	return out
}

// ConstantValue returns k.
func (s Simple) ConstantValue() float64 { return s.v[len(s.v)-1] }

// SingleVariable reports the only non-zero variable slot and its factor.
func (s Simple) SingleVariable() (idx int, factor float64, ok bool) {
	idx = -1
	for i := 0; i < s.Size(); i++ {
		if s.v[i] == 0 {
			continue
		}
		if idx >= 0 {
			return -1, 0, false
		}
		idx, factor = i, s.v[i]
	}
	return idx, factor, idx >= 0
}

// IsIntegral reports whether every entry is a whole number.
func (s Simple) IsIntegral() bool {
	for _, x := range s.v {
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (s Simple) ExpandToSize(n int) Coefficients {
	v := make([]float64, n+1)
	copy(v, s.v[:min(n, s.Size())])
	v[n] = s.ConstantValue()
	return Simple{v: v}
}

func (s Simple) HasOnlyConstantValue() bool {
	for i := 0; i < s.Size(); i++ {
		if s.v[i] != 0 {
			return false
		}
	}
	return true
}

func (s Simple) Add(o Coefficients) Coefficients { return add(s, o, false) }

func (s Simple) Sub(o Coefficients) Coefficients { return add(s, o, true) }

func (s Simple) Mul(o Coefficients) Coefficients { return mul(s, o) }

func (s Simple) Div(o Coefficients, integral bool) Coefficients { return div(s, o, integral) }

func (s Simple) Bitwise(op BitOp, o Coefficients) Coefficients { return bitwise(op, s, o) }

func (s Simple) Compare(op CmpOp, o Coefficients) Coefficients { return compare(op, s, o) }

func (s Simple) Negate() Coefficients {
	v := make([]float64, len(s.v))
	for i, x := range s.v {
		v[i] = -x
	}
	return Simple{v: v}
}

func (s Simple) String() string {
	var terms []string
	for i := 0; i < s.Size(); i++ {
		if s.v[i] != 0 {
			terms = append(terms, formatFactor(s.v[i])+"v"+strconv.Itoa(i))
		}
	}
	terms = append(terms, formatNumber(s.ConstantValue()))
	return strings.Join(terms, " + ")
}

func (s Simple) toInterval() Interval {
	lo := make([]float64, len(s.v))
	hi := make([]float64, len(s.v))
	copy(lo, s.v)
	copy(hi, s.v)
	return Interval{lo: lo, hi: hi}
}

func formatFactor(f float64) string {
	if f == 1 {
		return ""
	}
	return formatNumber(f) + "*"
}

func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+oo"
	case math.IsInf(v, -1):
		return "-oo"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}
