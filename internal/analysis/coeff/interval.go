package coeff

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval holds an interval for every coefficient and for the constant.
// Bounds may be infinite.
type Interval struct {
	lo, hi []float64
}

// NewInterval builds an interval form from n+1 lower and upper bounds, the
// last entry being the constant.
func NewInterval(lo, hi []float64) Interval {
	if len(lo) != len(hi) || len(lo) == 0 {
		panic(fmt.Sprintf("coeff: malformed interval form %d/%d", len(lo), len(hi)))
	}
	l := make([]float64, len(lo))
	h := make([]float64, len(hi))
	copy(l, lo)
	copy(h, hi)
	return Interval{lo: l, hi: h}
}

// IntervalConstant returns the constant [lo, hi] over size variables.
func IntervalConstant(lo, hi float64, size int) Interval {
	l := make([]float64, size+1)
	h := make([]float64, size+1)
	l[size], h[size] = lo, hi
	return Interval{lo: l, hi: h}
}

func (Interval) sealed() {}

func (iv Interval) Size() int { return len(iv.lo) - 1 }

// Bounds returns the interval of slot i; slot Size() is the constant.
func (iv Interval) Bounds(i int) (lo, hi float64) { return iv.lo[i], iv.hi[i] }

// ConstantBounds returns the interval of the constant.
func (iv Interval) ConstantBounds() (lo, hi float64) { return iv.Bounds(iv.Size()) }

// Lower returns a copy of all lower bounds, constant last.
func (iv Interval) Lower() []float64 { return append([]float64(nil), iv.lo...) }

// Upper returns a copy of all upper bounds, constant last.
func (iv Interval) Upper() []float64 { return append([]float64(nil), iv.hi...) }

func (iv Interval) ExpandToSize(n int) Coefficients {
	lo := make([]float64, n+1)
	hi := make([]float64, n+1)
	k := min(n, iv.Size())
	copy(lo, iv.lo[:k])
	copy(hi, iv.hi[:k])
	lo[n], hi[n] = iv.ConstantBounds()
	return Interval{lo: lo, hi: hi}
}

func (iv Interval) HasOnlyConstantValue() bool {
	for i := 0; i < iv.Size(); i++ {
		if iv.lo[i] != 0 || iv.hi[i] != 0 {
			return false
		}
	}
	return true
}

func (iv Interval) Add(o Coefficients) Coefficients { return add(iv, o, false) }

func (iv Interval) Sub(o Coefficients) Coefficients { return add(iv, o, true) }

func (iv Interval) Mul(o Coefficients) Coefficients { return mul(iv, o) }

func (iv Interval) Div(o Coefficients, integral bool) Coefficients { return div(iv, o, integral) }

func (iv Interval) Bitwise(op BitOp, o Coefficients) Coefficients { return bitwise(op, iv, o) }

func (iv Interval) Compare(op CmpOp, o Coefficients) Coefficients { return compare(op, iv, o) }

func (iv Interval) Negate() Coefficients {
	lo := make([]float64, len(iv.lo))
	hi := make([]float64, len(iv.hi))
	for i := range iv.lo {
		lo[i], hi[i] = -iv.hi[i], -iv.lo[i]
	}
	return Interval{lo: lo, hi: hi}
}

func (iv Interval) String() string {
	var terms []string
	for i := 0; i < iv.Size(); i++ {
		if iv.lo[i] != 0 || iv.hi[i] != 0 {
			terms = append(terms, formatRange(iv.lo[i], iv.hi[i])+"*v"+strconv.Itoa(i))
		}
	}
	terms = append(terms, formatRange(iv.ConstantBounds()))
	return strings.Join(terms, " + ")
}

func formatRange(lo, hi float64) string {
	return "[" + formatNumber(lo) + ", " + formatNumber(hi) + "]"
}
