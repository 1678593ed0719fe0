package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/octagon/internal/analysis/coeff"
	"github.com/gnolang/octagon/internal/analysis/state"
)

func interval(t *testing.T, lo, hi float64, names ...string) *state.State {
	t.Helper()
	s := state.Top()
	for _, name := range names {
		var err error
		s, err = s.DeclareVariable(name, state.IntVar)
		require.NoError(t, err)
		s = s.AddGreaterEqConstraint(name, state.Literal(lo)).AddSmallerEqConstraint(name, state.Literal(hi))
	}
	return s
}

func bounds(t *testing.T, s *state.State, name string) (float64, float64) {
	t.Helper()
	lo, hi, ok := s.VariableBounds(name)
	require.True(t, ok)
	return lo, hi
}

func TestJoinIsUpperBound(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b *state.State
		lo   float64
		hi   float64
	}{
		{"disjoint", interval(t, 0, 1, "x"), interval(t, 5, 6, "x"), 0, 6},
		{"nested", interval(t, 2, 3, "x"), interval(t, 0, 9, "x"), 0, 9},
		{"overlapping", interval(t, -4, 2, "x"), interval(t, 0, 3, "x"), -4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			j, err := Join(tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, IsLessOrEqual(tt.a, j))
			assert.True(t, IsLessOrEqual(tt.b, j))
			lo, hi := bounds(t, j, "x")
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestJoinReturnsArgument(t *testing.T) {
	t.Parallel()
	small, big := interval(t, 2, 3, "x"), interval(t, 0, 9, "x")

	j, err := Join(small, big)
	require.NoError(t, err)
	assert.Same(t, big, j)

	j, err = Join(big, small)
	require.NoError(t, err)
	assert.Same(t, big, j)

	// equal by value: the second argument wins
	twin := interval(t, 0, 9, "x")
	j, err = Join(twin, big)
	require.NoError(t, err)
	assert.Same(t, big, j)
}

func TestJoinCommonPrefix(t *testing.T) {
	t.Parallel()
	a := interval(t, 0, 1, "x", "y")
	b := interval(t, 4, 4, "x")
	j, err := Join(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, j.Variables())
	lo, hi := bounds(t, j, "x")
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 4.0, hi)
}

func TestJoinKeepsGeneration(t *testing.T) {
	t.Parallel()
	a := interval(t, 0, 1, "x").WithGeneration(1, 3).WithGeneration(2, 9)
	b := interval(t, 4, 4, "x").WithGeneration(1, 7)
	j, err := Join(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), j.Generation(1))
	assert.Equal(t, uint64(9), j.Generation(2))
}

func TestIsLessOrEqualReflexive(t *testing.T) {
	t.Parallel()
	for _, s := range []*state.State{
		state.Top(),
		interval(t, 0, 1, "x"),
		interval(t, -3, 8, "x", "y"),
	} {
		assert.True(t, IsLessOrEqual(s, s), s.String())
	}
}

// TestWideningStabilizes runs x := 0; for { x = x + 1 } with widening at
// the loop head.
func TestWideningStabilizes(t *testing.T) {
	t.Parallel()
	head := interval(t, 0, 0, "x").WithGeneration(0, 1)
	inc := coeff.NewSimple([]float64{1}, 1)
	m := Merger{Operator: MergeWidening, LoopHeadsOnly: true}

	stable := false
	for step := 0; step < 5; step++ {
		next := head.MakeAssignment("x", inc)
		if Stop(next, head) {
			stable = true
			break
		}
		merged, err := m.Merge(next, head, 0, true)
		require.NoError(t, err)
		head = merged
	}
	require.True(t, stable)
	lo, hi := bounds(t, head, "x")
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, math.Inf(1), hi)
}

func TestMerge(t *testing.T) {
	t.Parallel()
	reached := interval(t, 0, 1, "x").WithGeneration(1, 2)
	next := interval(t, 1, 2, "x").WithGeneration(1, 2)
	other := interval(t, 1, 2, "x").WithGeneration(1, 5)
	// a newer activation of an inner loop does not hide the outer one
	nested := next.WithGeneration(6, 8)

	tests := []struct {
		name     string
		merger   Merger
		next     *state.State
		loopHead bool
		lo, hi   float64
	}{
		{"sep", Merger{Operator: MergeSep}, next, true, 0, 1},
		{"join", Merger{Operator: MergeJoin}, next, false, 0, 2},
		{"only at loop heads", Merger{Operator: MergeJoin, LoopHeadsOnly: true}, next, false, 0, 1},
		{"widening in one activation", Merger{Operator: MergeWidening}, next, true, 0, math.Inf(1)},
		{"widening across activations joins", Merger{Operator: MergeWidening}, other, true, 0, 2},
		{"widening over an inner loop entry", Merger{Operator: MergeWidening}, nested, true, 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			merged, err := tt.merger.Merge(tt.next, reached, 1, tt.loopHead)
			require.NoError(t, err)
			lo, hi := bounds(t, merged, "x")
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestStop(t *testing.T) {
	t.Parallel()
	s := interval(t, 1, 2, "x")
	assert.True(t, Stop(s, interval(t, 5, 6, "x"), interval(t, 0, 3, "x")))
	assert.False(t, Stop(s, interval(t, 5, 6, "x")))
	assert.False(t, Stop(s))
}

func TestParseMergeOperator(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    MergeOperator
		wantErr bool
	}{
		{"sep", MergeSep, false},
		{"JOIN", MergeJoin, false},
		{" widening ", MergeWidening, false},
		{"meet", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMergeOperator(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, must(ParseMergeOperator(got.String())))
	}
}

func must(m MergeOperator, err error) MergeOperator {
	if err != nil {
		panic(err)
	}
	return m
}
