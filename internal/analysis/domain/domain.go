// Package domain provides the lattice operations of the octagon analysis:
// the partial order, join and widening of abstract states, and the merge
// and stop operators used by the fixpoint computation.
package domain

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/gnolang/octagon/internal/analysis/state"
)

// ErrInconsistent is returned when joining or widening non-empty states
// yields an empty state.
var ErrInconsistent = errors.New("domain: operation produced an empty state")

// IsLessOrEqual reports whether a is included in b.
func IsLessOrEqual(a, b *state.State) bool { return a.IsLessOrEqual(b) }

// Join returns the least upper bound of a and b over their common variable
// prefix. When the result equals an argument, that argument is returned
// itself, b being checked first.
func Join(a, b *state.State) (*state.State, error) {
	sa, sb := shrink(a, b)
	joined, err := sa.Union(sb)
	if err != nil {
		return nil, err
	}
	if joined.IsEmpty() {
		return nil, errors.Wrapf(ErrInconsistent, "joining %s and %s", a, b)
	}
	switch {
	case joined.Equal(b):
		return b, nil
	case joined.Equal(a):
		return a, nil
	}
	return joined, nil
}

// Widen extrapolates previous by next over their common variable prefix.
// An empty widening falls back to the join.
func Widen(previous, next *state.State) (*state.State, error) {
	sp, sn := shrink(previous, next)
	widened, err := sp.Widen(sn)
	if err != nil {
		return nil, err
	}
	if widened.IsEmpty() {
		widened, err = sp.Union(sn)
		if err != nil {
			return nil, err
		}
		if widened.IsEmpty() {
			return nil, errors.Wrapf(ErrInconsistent, "widening %s by %s", previous, next)
		}
	}
	if widened.Equal(previous) {
		return previous, nil
	}
	return widened, nil
}

func shrink(a, b *state.State) (*state.State, *state.State) {
	k := state.CommonPrefix(a, b)
	return a.Shrink(k), b.Shrink(k)
}

// MergeOperator selects how a new state is combined with reached ones.
type MergeOperator int

const (
	// MergeSep keeps states separate.
	MergeSep MergeOperator = iota
	// MergeJoin joins new states into reached ones.
	MergeJoin
	// MergeWidening widens within a loop activation and joins otherwise.
	MergeWidening
)

func (m MergeOperator) String() string {
	switch m {
	case MergeSep:
		return "sep"
	case MergeJoin:
		return "join"
	case MergeWidening:
		return "widening"
	default:
		return "unknown"
	}
}

// ParseMergeOperator parses the case-insensitive operator name.
func ParseMergeOperator(s string) (MergeOperator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sep":
		return MergeSep, nil
	case "join":
		return MergeJoin, nil
	case "widening", "widen":
		return MergeWidening, nil
	default:
		return 0, errors.Errorf("unknown merge operator %q", s)
	}
}

// Merger combines states reaching the same location.
type Merger struct {
	Operator MergeOperator
	// LoopHeadsOnly restricts merging to loop heads; elsewhere states stay
	// separate.
	LoopHeadsOnly bool
}

// Merge combines next with reached, a state already recorded at the node
// with id node, and returns the state replacing reached. Returning reached
// itself means next was not merged.
func (m Merger) Merge(next, reached *state.State, node int, loopHead bool) (*state.State, error) {
	if m.LoopHeadsOnly && !loopHead {
		return reached, nil
	}
	switch m.Operator {
	case MergeJoin:
		return Join(next, reached)
	case MergeWidening:
		// states of the same activation of this loop carry the same generation
		if g := next.Generation(node); g != 0 && g == reached.Generation(node) {
			return Widen(reached, next)
		}
		return Join(next, reached)
	default:
		return reached, nil
	}
}

// Stop reports whether s is covered by one of the reached states.
func Stop(s *state.State, reached ...*state.State) bool {
	for _, r := range reached {
		if IsLessOrEqual(s, r) {
			return true
		}
	}
	return false
}
