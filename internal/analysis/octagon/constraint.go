package octagon

import (
	"fmt"
	"math"
)

// ConstraintKind selects one of the canonical octagonal constraint forms.
type ConstraintKind int

const (
	PX   ConstraintKind = iota // +v_i <= c
	MX                         // -v_i <= c
	PXPY                       // +v_i + v_j <= c
	PXMY                       // +v_i - v_j <= c
	MXPY                       // -v_i + v_j <= c
	MXMY                       // -v_i - v_j <= c
)

func (k ConstraintKind) String() string {
	switch k {
	case PX:
		return "+x"
	case MX:
		return "-x"
	case PXPY:
		return "+x+y"
	case PXMY:
		return "+x-y"
	case MXPY:
		return "-x+y"
	case MXMY:
		return "-x-y"
	default:
		return "?"
	}
}

// AddConstraint intersects o with a single canonical constraint. The index j
// is ignored for unary kinds.
func (o *Octagon) AddConstraint(kind ConstraintKind, i, j int, c float64) *Octagon {
	if math.IsNaN(c) {
		panic("octagon: NaN constraint constant")
	}
	if math.IsInf(c, 1) {
		return o
	}
	r := o.clone()
	r.addConstraint(kind, i, j, c)
	r.close()
	return r
}

func (r *Octagon) addConstraint(kind ConstraintKind, i, j int, c float64) {
	if math.IsInf(c, 1) {
		return
	}
	if math.IsInf(c, -1) {
		r.empty = true
		return
	}
	switch kind {
	case PX:
		r.bound(2*i+1, 2*i, 2*c)
	case MX:
		r.bound(2*i, 2*i+1, 2*c)
	case PXPY:
		r.bound(2*j+1, 2*i, c)
	case PXMY:
		r.bound(2*j, 2*i, c)
	case MXPY:
		r.bound(2*i, 2*j, c)
	case MXMY:
		r.bound(2*j, 2*i+1, c)
	default:
		panic(fmt.Sprintf("octagon: unknown constraint kind %d", kind))
	}
	r.closed = false
}

// Assign performs the strong update v_idx := sum(coeffs[i]*v_i) + k.
// Octagonal right-hand sides (a constant, or ±v_j + k) are exact; other
// linear forms are approximated through interval reasoning.
func (o *Octagon) Assign(idx int, coeffs []float64, k float64) *Octagon {
	if len(coeffs) != o.n {
		panic(fmt.Sprintf("octagon: %d coefficients for dimension %d", len(coeffs), o.n))
	}
	src := o.closure()
	if src.empty {
		return src
	}
	other, sign, nonzero := -1, 0.0, 0
	for i, c := range coeffs {
		if c == 0 {
			continue
		}
		nonzero++
		other, sign = i, c
	}
	switch {
	case nonzero == 0:
		r := src.clone()
		r.forget(idx)
		r.addConstraint(PX, idx, 0, k)
		r.addConstraint(MX, idx, 0, -k)
		r.close()
		return r
	case nonzero == 1 && other == idx && sign == 1:
		return src.shift(idx, k)
	case nonzero == 1 && other == idx && sign == -1:
		return src.negate(idx).shift(idx, k)
	case nonzero == 1 && (sign == 1 || sign == -1):
		r := src.clone()
		r.forget(idx)
		if sign == 1 {
			r.addConstraint(PXMY, idx, other, k)
			r.addConstraint(MXPY, idx, other, -k)
		} else {
			r.addConstraint(PXPY, idx, other, k)
			r.addConstraint(MXMY, idx, other, -k)
		}
		r.close()
		return r
	}
	lo := make([]float64, o.n+1)
	hi := make([]float64, o.n+1)
	copy(lo, coeffs)
	copy(hi, coeffs)
	lo[o.n], hi[o.n] = k, k
	return src.AssignInterval(idx, lo, hi)
}

// shift implements v_idx := v_idx + k on a closed octagon.
func (o *Octagon) shift(idx int, k float64) *Octagon {
	r := o.clone()
	off := func(a int) float64 {
		switch a {
		case 2 * idx:
			return k
		case 2*idx + 1:
			return -k
		default:
			return 0
		}
	}
	size := 2 * r.n
	for a := 0; a < size; a++ {
		for b := 0; b < size; b++ {
			if v := r.get(a, b); !math.IsInf(v, 1) {
				r.set(a, b, v+off(b)-off(a))
			}
		}
	}
	return r
}

// negate implements v_idx := -v_idx on a closed octagon by swapping the
// positive and negative forms of the variable.
func (o *Octagon) negate(idx int) *Octagon {
	r := o.clone()
	swap := func(a int) int {
		if a>>1 == idx {
			return a ^ 1
		}
		return a
	}
	size := 2 * r.n
	for a := 0; a < size; a++ {
		for b := 0; b < size; b++ {
			r.set(swap(a), swap(b), o.get(a, b))
		}
	}
	return r
}

// AssignInterval performs v_idx := sum([lo_i,hi_i]*v_i) + [lo_n,hi_n], where
// lo and hi hold n+1 entries. The result encloses every value the interval
// linear form can take.
func (o *Octagon) AssignInterval(idx int, lo, hi []float64) *Octagon {
	if len(lo) != o.n+1 || len(hi) != o.n+1 {
		panic(fmt.Sprintf("octagon: interval form of length %d/%d for dimension %d", len(lo), len(hi), o.n))
	}
	src := o.closure()
	if src.empty {
		return src
	}
	vlo := make([]float64, o.n)
	vhi := make([]float64, o.n)
	for i := 0; i < o.n; i++ {
		vlo[i], vhi[i] = src.Bounds(i)
	}
	eval := func(shiftIdx int, delta float64) (float64, float64) {
		sumLo, sumHi := lo[o.n], hi[o.n]
		for i := 0; i < o.n; i++ {
			clo, chi := lo[i], hi[i]
			if i == shiftIdx {
				clo, chi = clo+delta, chi+delta
			}
			if clo == 0 && chi == 0 {
				continue
			}
			plo, phi := MulInterval(clo, chi, vlo[i], vhi[i])
			sumLo, sumHi = AddBound(sumLo, plo, -1), AddBound(sumHi, phi, 1)
		}
		return sumLo, sumHi
	}

	r := src.clone()
	r.forget(idx)
	elo, ehi := eval(-1, 0)
	r.addConstraint(PX, idx, 0, ehi)
	r.addConstraint(MX, idx, 0, -elo)
	for j := 0; j < o.n; j++ {
		if j == idx {
			continue
		}
		// bounds of e - v_j and e + v_j
		dlo, dhi := eval(j, -1)
		r.addConstraint(PXMY, idx, j, dhi)
		r.addConstraint(MXPY, idx, j, -dlo)
		slo, shi := eval(j, 1)
		r.addConstraint(PXPY, idx, j, shi)
		r.addConstraint(MXMY, idx, j, -slo)
	}
	r.close()
	return r
}

// MulInterval multiplies [alo,ahi] by [blo,bhi], treating 0*Inf as 0.
func MulInterval(alo, ahi, blo, bhi float64) (float64, float64) {
	p := [4]float64{mulBound(alo, blo), mulBound(alo, bhi), mulBound(ahi, blo), mulBound(ahi, bhi)}
	lo, hi := p[0], p[0]
	for _, v := range p[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func mulBound(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a * b
}

// AddBound adds two bounds. Opposite infinities resolve towards dir, so a
// lower bound (dir < 0) never overshoots and an upper bound never undershoots.
func AddBound(a, b float64, dir int) float64 {
	s := a + b
	if math.IsNaN(s) {
		if dir < 0 {
			return math.Inf(-1)
		}
		return inf
	}
	return s
}
