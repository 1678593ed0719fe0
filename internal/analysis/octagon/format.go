package octagon

import (
	"math"
	"strconv"
	"strings"
)

// Format renders the non-trivial constraints of the closed octagon, one per
// line, using names to label the variables.
func (o *Octagon) Format(names func(int) string) string {
	c := o.closure()
	if c.empty {
		return "⊥"
	}
	var lines []string
	for i := 0; i < c.n; i++ {
		lo, hi := c.Bounds(i)
		if !math.IsInf(lo, -1) || !math.IsInf(hi, 1) {
			lines = append(lines, formatInterval(names(i), lo, hi))
		}
	}
	for i := 0; i < c.n; i++ {
		for j := i + 1; j < c.n; j++ {
			x, y := names(i), names(j)
			// x - y
			if v := c.get(2*j, 2*i); !math.IsInf(v, 1) {
				lines = append(lines, x+" - "+y+" <= "+formatNumber(v))
			}
			// y - x
			if v := c.get(2*i, 2*j); !math.IsInf(v, 1) {
				lines = append(lines, y+" - "+x+" <= "+formatNumber(v))
			}
			// x + y
			if v := c.get(2*j+1, 2*i); !math.IsInf(v, 1) {
				lines = append(lines, x+" + "+y+" <= "+formatNumber(v))
			}
			// -x - y
			if v := c.get(2*j, 2*i+1); !math.IsInf(v, 1) {
				lines = append(lines, "-"+x+" - "+y+" <= "+formatNumber(v))
			}
		}
	}
	if len(lines) == 0 {
		return "⊤"
	}
	return strings.Join(lines, "\n")
}

// String renders the octagon with positional variable names.
func (o *Octagon) String() string {
	return o.Format(func(i int) string { return "v" + strconv.Itoa(i) })
}

func formatInterval(name string, lo, hi float64) string {
	return name + " ∈ [" + formatNumber(lo) + ", " + formatNumber(hi) + "]"
}

// FormatBound renders a bound, using ±oo for infinities.
func FormatBound(v float64) string { return formatNumber(v) }

func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+oo"
	case math.IsInf(v, -1):
		return "-oo"
	default:
		return strconv.FormatFloat(unsigned(v), 'g', -1, 64)
	}
}
