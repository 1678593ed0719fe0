package octagon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var inf = math.Inf(1)

// Octagon is an immutable octagon over n variables, stored as a difference
// bound matrix of size 2n x 2n.
//
// Index 2i stands for +v_i and 2i+1 for -v_i. The entry m[a][b] bounds
// V_b - V_a from above, +Inf meaning "no bound". Every operation returns a
// new value and never modifies its receiver.
type Octagon struct {
	n        int
	m        []float64
	integral []bool
	closed   bool
	empty    bool
}

// Universe returns the unconstrained octagon over n integral variables.
func Universe(n int) *Octagon {
	o := &Octagon{
		n:        n,
		m:        make([]float64, 4*n*n),
		integral: make([]bool, n),
		closed:   true,
	}
	for i := range o.m {
		o.m[i] = inf
	}
	for i := 0; i < 2*n; i++ {
		o.set(i, i, 0)
	}
	for i := range o.integral {
		o.integral[i] = true
	}
	return o
}

// Bottom returns the empty octagon over n variables.
func Bottom(n int) *Octagon {
	o := Universe(n)
	o.empty = true
	return o
}

// Dimension returns the number of variables.
func (o *Octagon) Dimension() int { return o.n }

// IsIntegral reports whether variable i only takes integer values.
func (o *Octagon) IsIntegral(i int) bool { return o.integral[i] }

func (o *Octagon) get(a, b int) float64 { return o.m[a*2*o.n+b] }

func (o *Octagon) set(a, b int, v float64) { o.m[a*2*o.n+b] = v }

// bound records V_b - V_a <= c together with its coherent twin.
func (o *Octagon) bound(a, b int, c float64) {
	if c < o.get(a, b) {
		o.set(a, b, c)
	}
	if c < o.get(b^1, a^1) {
		o.set(b^1, a^1, c)
	}
}

func (o *Octagon) clone() *Octagon {
	c := &Octagon{
		n:        o.n,
		m:        make([]float64, len(o.m)),
		integral: make([]bool, len(o.integral)),
		closed:   o.closed,
		empty:    o.empty,
	}
	copy(c.m, o.m)
	copy(c.integral, o.integral)
	return c
}

// closure returns the strongly closed form of o. Closed receivers are
// returned as is.
func (o *Octagon) closure() *Octagon {
	if o.closed || o.empty {
		return o
	}
	c := o.clone()
	c.close()
	return c
}

// close computes shortest-path closure, tightens integral unary bounds and
// runs one strengthening pass, in place.
func (o *Octagon) close() {
	o.closed = true
	if o.empty {
		return
	}
	size := 2 * o.n
	for k := 0; k < size; k++ {
		for i := 0; i < size; i++ {
			ik := o.get(i, k)
			if math.IsInf(ik, 1) {
				continue
			}
			for j := 0; j < size; j++ {
				if v := ik + o.get(k, j); v < o.get(i, j) {
					o.set(i, j, v)
				}
			}
		}
	}
	for i := 0; i < size; i++ {
		if o.get(i, i) < 0 {
			o.empty = true
			return
		}
	}
	for v := 0; v < o.n; v++ {
		if !o.integral[v] {
			continue
		}
		for _, i := range [2]int{2 * v, 2*v + 1} {
			if b := o.get(i, i^1); !math.IsInf(b, 1) {
				o.set(i, i^1, 2*math.Floor(b/2))
			}
		}
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			s := (o.get(i, i^1) + o.get(j^1, j)) / 2
			if s < o.get(i, j) {
				o.set(i, j, s)
			}
		}
	}
	for i := 0; i < size; i++ {
		if o.get(i, i) < 0 || o.get(i, i^1)+o.get(i^1, i) < 0 {
			o.empty = true
			return
		}
		o.set(i, i, 0)
	}
}

// IsEmpty reports whether the octagon has no concrete point.
func (o *Octagon) IsEmpty() bool {
	return o.closure().empty
}

// AddDimensions appends k unconstrained variables.
func (o *Octagon) AddDimensions(k int, integral bool) *Octagon {
	if k <= 0 {
		return o
	}
	n := o.n + k
	r := Universe(n)
	r.empty = o.empty
	r.closed = o.closed
	for a := 0; a < 2*o.n; a++ {
		for b := 0; b < 2*o.n; b++ {
			r.set(a, b, o.get(a, b))
		}
	}
	copy(r.integral, o.integral)
	for i := o.n; i < n; i++ {
		r.integral[i] = integral
	}
	return r
}

// RemoveDimensions projects away the given variables. The remaining
// variables keep their relative order.
func (o *Octagon) RemoveDimensions(idx ...int) *Octagon {
	if len(idx) == 0 {
		return o
	}
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= o.n {
			panic(fmt.Sprintf("octagon: dimension %d out of range [0,%d)", i, o.n))
		}
		drop[i] = true
	}
	src := o.closure()
	keep := make([]int, 0, o.n-len(drop))
	for i := 0; i < o.n; i++ {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	r := Universe(len(keep))
	r.empty = src.empty
	for ni, oi := range keep {
		r.integral[ni] = src.integral[oi]
		for nj, oj := range keep {
			for s := 0; s < 2; s++ {
				for t := 0; t < 2; t++ {
					r.set(2*ni+s, 2*nj+t, src.get(2*oi+s, 2*oj+t))
				}
			}
		}
	}
	return r
}

// Truncate keeps the first n variables.
func (o *Octagon) Truncate(n int) *Octagon {
	if n >= o.n {
		return o
	}
	idx := make([]int, 0, o.n-n)
	for i := n; i < o.n; i++ {
		idx = append(idx, i)
	}
	return o.RemoveDimensions(idx...)
}

// Forget removes every constraint on variable i.
func (o *Octagon) Forget(i int) *Octagon {
	r := o.closure().clone()
	r.forget(i)
	return r
}

func (r *Octagon) forget(i int) {
	for _, a := range [2]int{2 * i, 2*i + 1} {
		for b := 0; b < 2*r.n; b++ {
			if a == b {
				continue
			}
			r.set(a, b, inf)
			r.set(b, a, inf)
		}
	}
}

// Bounds returns the interval of variable i. An empty octagon yields
// (+Inf, -Inf).
func (o *Octagon) Bounds(i int) (lo, hi float64) {
	c := o.closure()
	if c.empty {
		return inf, math.Inf(-1)
	}
	return unsigned(-c.get(2*i, 2*i+1) / 2), unsigned(c.get(2*i+1, 2*i) / 2)
}

// unsigned maps -0 to 0.
func unsigned(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

// Intersect returns the meet of two octagons of equal dimension.
func (o *Octagon) Intersect(other *Octagon) *Octagon {
	o.mustMatch(other)
	r := o.clone()
	r.empty = o.empty || other.empty
	for i, v := range other.m {
		if v < r.m[i] {
			r.m[i] = v
		}
	}
	for i := range r.integral {
		r.integral[i] = o.integral[i] && other.integral[i]
	}
	r.close()
	return r
}

// Union returns the smallest octagon containing both arguments.
func (o *Octagon) Union(other *Octagon) *Octagon {
	o.mustMatch(other)
	a, b := o.closure(), other.closure()
	if a.empty {
		return b
	}
	if b.empty {
		return a
	}
	r := a.clone()
	for i, v := range b.m {
		if v > r.m[i] {
			r.m[i] = v
		}
	}
	for i := range r.integral {
		r.integral[i] = a.integral[i] && b.integral[i]
	}
	r.closed = true
	return r
}

// Widen extrapolates o with next: every bound of o that next does not
// respect is dropped. The result is left unclosed so that a sequence of
// widenings stabilizes.
func (o *Octagon) Widen(next *Octagon) *Octagon {
	o.mustMatch(next)
	nc := next.closure()
	if o.empty {
		return nc
	}
	if nc.empty {
		return o
	}
	r := o.clone()
	for i, v := range nc.m {
		if v > r.m[i] {
			r.m[i] = inf
		}
	}
	for i := 0; i < 2*r.n; i++ {
		r.set(i, i, 0)
	}
	r.closed = false
	return r
}

// IsIncludedIn reports whether every point of o lies in other.
func (o *Octagon) IsIncludedIn(other *Octagon) bool {
	o.mustMatch(other)
	a := o.closure()
	if a.empty {
		return true
	}
	if other.closure().empty {
		return false
	}
	for i, v := range a.m {
		if v > other.m[i] {
			return false
		}
	}
	return true
}

// Equal reports semantic equality.
func (o *Octagon) Equal(other *Octagon) bool {
	if o == other {
		return true
	}
	if o.n != other.n {
		return false
	}
	a, b := o.closure(), other.closure()
	if a.empty || b.empty {
		return a.empty == b.empty
	}
	for i, v := range a.m {
		if v != b.m[i] {
			return false
		}
	}
	return true
}

// Key returns a canonical string for the closed form, suitable as a hash
// key: semantically equal octagons have equal keys.
func (o *Octagon) Key() string {
	c := o.closure()
	if c.empty {
		return "⊥/" + strconv.Itoa(c.n)
	}
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(c.n))
	for _, v := range c.m {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(unsigned(v), 'g', -1, 64))
	}
	return sb.String()
}

func (o *Octagon) mustMatch(other *Octagon) {
	if o.n != other.n {
		panic(fmt.Sprintf("octagon: dimension mismatch %d != %d", o.n, other.n))
	}
}
