// Package state implements the abstract state of the octagon analysis: an
// octagon together with the mapping between variable names and octagon
// dimensions.
//
// States are immutable. Every operation returns a new state and leaves the
// receiver untouched, so states can be shared freely between the reached
// sets of a fixpoint computation.
package state

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/gnolang/octagon/internal/analysis/cfa"
	"github.com/gnolang/octagon/internal/analysis/coeff"
	"github.com/gnolang/octagon/internal/analysis/octagon"
)

// VarType is the numeric kind of a tracked variable.
type VarType int

const (
	IntVar VarType = iota
	FloatVar
)

func (t VarType) String() string {
	if t == FloatVar {
		return "float"
	}
	return "int"
}

// TypeOf maps a program type to the variable kind used by the state.
func TypeOf(t cfa.Type) VarType {
	if t.Kind == cfa.Float {
		return FloatVar
	}
	return IntVar
}

// State is an immutable abstract state.
type State struct {
	oct         *octagon.Octagon
	names       []string
	index       map[string]int
	types       map[string]VarType
	// generations maps a loop head to the tag of the loop activation the
	// state belongs to
	generations map[int]uint64
}

// Top returns the state without variables.
func Top() *State {
	return &State{
		oct:   octagon.Universe(0),
		index: map[string]int{},
		types: map[string]VarType{},
	}
}

// with returns a copy of s using oct, checking the dimension invariant.
func (s *State) with(oct *octagon.Octagon) *State {
	if oct.Dimension() != len(s.names) {
		panic(fmt.Sprintf("state: octagon dimension %d does not match %d variables", oct.Dimension(), len(s.names)))
	}
	return &State{
		oct:         oct,
		names:       s.names,
		index:       s.index,
		types:       s.types,
		generations: s.generations,
	}
}

// Size returns the number of tracked variables.
func (s *State) Size() int { return len(s.names) }

// Contains reports whether name is tracked.
func (s *State) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Index returns the dimension of name.
func (s *State) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Type returns the kind of the tracked variable name.
func (s *State) Type(name string) (VarType, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Variables returns the tracked names ordered by dimension.
func (s *State) Variables() []string { return slices.Clone(s.names) }

// Generation returns the loop-entry tag of s at the loop head with node id
// head, zero when unset.
func (s *State) Generation(head int) uint64 { return s.generations[head] }

// WithGeneration returns s tagged with g at the loop head with node id head.
// The tags of other loop heads are kept.
func (s *State) WithGeneration(head int, g uint64) *State {
	r := s.with(s.oct)
	r.generations = maps.Clone(s.generations)
	if r.generations == nil {
		r.generations = make(map[int]uint64, 1)
	}
	r.generations[head] = g
	return r
}

// latestGenerations keeps the larger tag of a and b per loop head.
func latestGenerations(a, b map[int]uint64) map[int]uint64 {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	out := maps.Clone(a)
	for head, g := range b {
		out[head] = max(out[head], g)
	}
	return out
}

// Octagon exposes the underlying octagon.
func (s *State) Octagon() *octagon.Octagon { return s.oct }

// DeclareVariable appends name as a new, unconstrained dimension.
func (s *State) DeclareVariable(name string, t VarType) (*State, error) {
	if s.Contains(name) {
		return nil, errors.Errorf("variable %s is already tracked", name)
	}
	names := append(slices.Clip(s.names), name)
	index := maps.Clone(s.index)
	index[name] = len(s.names)
	types := maps.Clone(s.types)
	types[name] = t
	r := &State{names: names, index: index, types: types, generations: s.generations}
	return r.with(s.oct.AddDimensions(1, t == IntVar)), nil
}

// Forget drops every constraint on name. Untracked names are ignored.
func (s *State) Forget(name string) *State {
	i, ok := s.index[name]
	if !ok {
		return s
	}
	return s.with(s.oct.Forget(i))
}

// MakeAssignment assigns the value of c to name: a strong update for exact
// linear forms, a sound enclosure for interval forms, and forgetting for
// Unknown. Untracked names are ignored.
func (s *State) MakeAssignment(name string, c coeff.Coefficients) *State {
	i, ok := s.index[name]
	if !ok {
		return s
	}
	s.mustFit(c)
	integral := s.types[name] == IntVar
	return coeff.Match(c,
		func(coeff.Unknown) *State { return s.with(s.oct.Forget(i)) },
		func(v coeff.Simple) *State {
			if integral && !s.isIntegralForm(v) {
				// the stored value is a truncation of v, within one of it
				lo, hi := lowerUpper(v)
				lo[len(lo)-1]--
				hi[len(hi)-1]++
				return s.with(s.oct.AssignInterval(i, lo, hi))
			}
			return s.with(s.oct.Assign(i, v.Coefficients(), v.ConstantValue()))
		},
		func(v coeff.Interval) *State {
			return s.with(s.oct.AssignInterval(i, v.Lower(), v.Upper()))
		},
	)
}

func lowerUpper(v coeff.Simple) ([]float64, []float64) {
	vals := append(v.Coefficients(), v.ConstantValue())
	return vals, slices.Clone(vals)
}

// isIntegralForm reports whether v only takes integer values: integer
// coefficients over integer variables.
func (s *State) isIntegralForm(v coeff.Simple) bool {
	if !v.IsIntegral() {
		return false
	}
	for i, f := range v.Coefficients() {
		if f != 0 && s.types[s.names[i]] != IntVar {
			return false
		}
	}
	return true
}

func (s *State) mustFit(c coeff.Coefficients) {
	if c.Size() != len(s.names) {
		panic(fmt.Sprintf("state: coefficients of size %d for %d variables", c.Size(), len(s.names)))
	}
}

// IsEmpty reports whether s has no concrete state.
func (s *State) IsEmpty() bool { return s.oct.IsEmpty() }

// Intersect returns the meet of two states over the same variables.
func (s *State) Intersect(other *State) (*State, error) {
	if !slices.Equal(s.names, other.names) {
		return nil, errors.Errorf("cannot intersect states over different variables: %v and %v", s.names, other.names)
	}
	return s.with(s.oct.Intersect(other.oct)), nil
}

// Union returns the join of two states over the same variables. The result
// carries the larger generation of the two at every loop head.
func (s *State) Union(other *State) (*State, error) {
	if !slices.Equal(s.names, other.names) {
		return nil, errors.Errorf("cannot join states over different variables: %v and %v", s.names, other.names)
	}
	r := s.with(s.oct.Union(other.oct))
	r.generations = latestGenerations(s.generations, other.generations)
	return r, nil
}

// Widen extrapolates s by next. Both states must track the same variables.
func (s *State) Widen(next *State) (*State, error) {
	if !slices.Equal(s.names, next.names) {
		return nil, errors.Errorf("cannot widen states over different variables: %v and %v", s.names, next.names)
	}
	r := s.with(s.oct.Widen(next.oct))
	r.generations = latestGenerations(s.generations, next.generations)
	return r, nil
}

// RemoveVariables drops every variable whose name satisfies match.
func (s *State) RemoveVariables(match func(name string) bool) *State {
	var drop []int
	for i, name := range s.names {
		if match(name) {
			drop = append(drop, i)
		}
	}
	if len(drop) == 0 {
		return s
	}
	names := make([]string, 0, len(s.names)-len(drop))
	index := make(map[string]int, len(s.names)-len(drop))
	types := make(map[string]VarType, len(s.names)-len(drop))
	for _, name := range s.names {
		if match(name) {
			continue
		}
		index[name] = len(names)
		types[name] = s.types[name]
		names = append(names, name)
	}
	r := &State{names: names, index: index, types: types, generations: s.generations}
	return r.with(s.oct.RemoveDimensions(drop...))
}

// RemoveLocals drops every variable local to function fn.
func (s *State) RemoveLocals(fn string) *State {
	prefix := cfa.QualifiedName(fn, "")
	return s.RemoveVariables(func(name string) bool { return strings.HasPrefix(name, prefix) })
}

// RemoveTemporaries drops the evaluator temporaries of function fn.
func (s *State) RemoveTemporaries(fn string) *State {
	prefix := cfa.QualifiedName(fn, cfa.TempPrefix)
	return s.RemoveVariables(func(name string) bool { return strings.HasPrefix(name, prefix) })
}

// Shrink keeps the first n variables.
func (s *State) Shrink(n int) *State {
	if n >= len(s.names) {
		return s
	}
	names := slices.Clone(s.names[:n])
	index := make(map[string]int, n)
	types := make(map[string]VarType, n)
	for i, name := range names {
		index[name] = i
		types[name] = s.types[name]
	}
	r := &State{names: names, index: index, types: types, generations: s.generations}
	return r.with(s.oct.Truncate(n))
}

// CommonPrefix returns the number of leading variables a and b share by
// name and position.
func CommonPrefix(a, b *State) int {
	n := min(len(a.names), len(b.names))
	for i := 0; i < n; i++ {
		if a.names[i] != b.names[i] {
			return i
		}
	}
	return n
}

// IsLessOrEqual reports whether s is included in other. States over the
// same variables are compared directly; when the variables of one state are
// a prefix of the other's, the larger state is shrunk first. States over
// unrelated variables are incomparable and reported as not included.
func (s *State) IsLessOrEqual(other *State) bool {
	if s == other {
		return true
	}
	k := CommonPrefix(s, other)
	switch {
	case k == len(s.names) && k == len(other.names):
		return s.oct.IsIncludedIn(other.oct)
	case k == len(s.names) || k == len(other.names):
		return s.Shrink(k).oct.IsIncludedIn(other.Shrink(k).oct)
	default:
		return false
	}
}

// Equal reports whether both states track the same variables and describe
// the same set of concrete states.
func (s *State) Equal(other *State) bool {
	if s == other {
		return true
	}
	return slices.Equal(s.names, other.names) && maps.Equal(s.types, other.types) && s.oct.Equal(other.oct)
}

// Hash returns a key that is equal for Equal states.
func (s *State) Hash() string {
	var sb strings.Builder
	for _, name := range s.names {
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(s.types[name].String())
		sb.WriteByte(';')
	}
	sb.WriteString(s.oct.Key())
	return sb.String()
}

// VariableBounds returns the interval of name. ok is false for untracked
// names; an empty state yields lo > hi.
func (s *State) VariableBounds(name string) (lo, hi float64, ok bool) {
	i, tracked := s.index[name]
	if !tracked {
		return math.Inf(-1), math.Inf(1), false
	}
	lo, hi = s.oct.Bounds(i)
	return lo, hi, true
}

func (s *State) String() string {
	return s.oct.Format(func(i int) string { return s.names[i] })
}
