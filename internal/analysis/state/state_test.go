package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/octagon/internal/analysis/coeff"
)

func declare(t *testing.T, s *State, names ...string) *State {
	t.Helper()
	for _, name := range names {
		var err error
		s, err = s.DeclareVariable(name, IntVar)
		require.NoError(t, err)
	}
	return s
}

func pin(s *State, name string, k float64) *State {
	return s.MakeAssignment(name, coeff.Constant(k, s.Size()))
}

func assertBounds(t *testing.T, s *State, name string, lo, hi float64) {
	t.Helper()
	gotLo, gotHi, ok := s.VariableBounds(name)
	require.True(t, ok, "%s is not tracked", name)
	assert.Equal(t, lo, gotLo, "lower bound of %s", name)
	assert.Equal(t, hi, gotHi, "upper bound of %s", name)
}

func TestDeclareAndAssignConstant(t *testing.T) {
	t.Parallel()
	for _, k := range []float64{-3, 0, 42} {
		s := pin(declare(t, Top(), "main::v"), "main::v", k)
		assertBounds(t, s, "main::v", k, k)
	}
}

func TestDeclareTwiceFails(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::v")
	_, err := s.DeclareVariable("main::v", IntVar)
	assert.Error(t, err)
}

func TestImmutability(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::a")
	_ = pin(s, "main::a", 3)
	_ = declare(t, s, "main::b")
	assert.Equal(t, []string{"main::a"}, s.Variables())
	assertBounds(t, s, "main::a", math.Inf(-1), math.Inf(1))
}

func TestMakeAssignment(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::a", "main::b", "main::x")
	s = pin(pin(s, "main::a", 2), "main::b", 3)

	sum := coeff.Variable(0, 3).Add(coeff.Variable(1, 3))
	assertBounds(t, s.MakeAssignment("main::x", sum), "main::x", 5, 5)

	iv := coeff.IntervalConstant(-1, 4, 3)
	assertBounds(t, s.MakeAssignment("main::x", iv), "main::x", -1, 4)

	unknown := s.MakeAssignment("main::a", coeff.NewUnknown(3))
	assertBounds(t, unknown, "main::a", math.Inf(-1), math.Inf(1))

	untracked := s.MakeAssignment("main::zzz", coeff.Constant(1, 3))
	assert.Same(t, s, untracked)

	half := s.MakeAssignment("main::x", coeff.Constant(2.5, 3))
	lo, hi, _ := half.VariableBounds("main::x")
	assert.LessOrEqual(t, lo, 2.0)
	assert.GreaterOrEqual(t, hi, 3.0)
	assert.False(t, half.IsEmpty())

	assert.Panics(t, func() { s.MakeAssignment("main::x", coeff.Constant(1, 2)) })
}

func TestFloatVariable(t *testing.T) {
	t.Parallel()
	s, err := Top().DeclareVariable("main::f", FloatVar)
	require.NoError(t, err)
	s = s.MakeAssignment("main::f", coeff.Constant(2.5, 1))
	assertBounds(t, s, "main::f", 2.5, 2.5)

	// strict requests degrade to non-strict bounds on floats
	lt := s.AddSmallerConstraint("main::f", Literal(2.5))
	assert.False(t, lt.IsEmpty())
	typ, ok := s.Type("main::f")
	require.True(t, ok)
	assert.Equal(t, FloatVar, typ)
}

func TestConstraints(t *testing.T) {
	t.Parallel()
	base := declare(t, Top(), "main::x", "main::y")
	base = base.AddGreaterEqConstraint("main::y", Literal(0)).AddSmallerEqConstraint("main::y", Literal(10))

	tests := []struct {
		name   string
		apply  func(*State) *State
		lo, hi float64
	}{
		{"less literal", func(s *State) *State { return s.AddSmallerConstraint("main::x", Literal(5)) }, math.Inf(-1), 4},
		{"less eq literal", func(s *State) *State { return s.AddSmallerEqConstraint("main::x", Literal(5)) }, math.Inf(-1), 5},
		{"greater literal", func(s *State) *State { return s.AddGreaterConstraint("main::x", Literal(5)) }, 6, math.Inf(1)},
		{"greater eq literal", func(s *State) *State { return s.AddGreaterEqConstraint("main::x", Literal(5)) }, 5, math.Inf(1)},
		{"eq literal", func(s *State) *State { return s.AddEqConstraint("main::x", Literal(5)) }, 5, 5},
		{"less variable", func(s *State) *State { return s.AddSmallerConstraint("main::x", VariableOperand("main::y")) }, math.Inf(-1), 9},
		{"greater variable", func(s *State) *State { return s.AddGreaterConstraint("main::x", VariableOperand("main::y")) }, 1, math.Inf(1)},
		{"eq variable", func(s *State) *State { return s.AddEqConstraint("main::x", VariableOperand("main::y")) }, 0, 10},
		{"negated variable", func(s *State) *State {
			return s.AddGreaterEqConstraint("main::x", CoeffOperand(coeff.Variable(1, 2).Negate().Add(coeff.Constant(3, 2))))
		}, -7, math.Inf(1)},
		{"scaled variable", func(s *State) *State {
			return s.AddSmallerEqConstraint("main::x", CoeffOperand(coeff.Variable(1, 2).Mul(coeff.Constant(2, 2))))
		}, math.Inf(-1), 20},
		{"interval", func(s *State) *State {
			return s.AddGreaterConstraint("main::x", CoeffOperand(coeff.IntervalConstant(1, 2, 2)))
		}, 1, math.Inf(1)},
		{"unknown", func(s *State) *State { return s.AddSmallerConstraint("main::x", CoeffOperand(coeff.NewUnknown(2))) }, math.Inf(-1), math.Inf(1)},
		{"untracked rhs", func(s *State) *State { return s.AddSmallerConstraint("main::x", VariableOperand("main::z")) }, math.Inf(-1), math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.apply(base)
			require.False(t, got.IsEmpty())
			assertBounds(t, got, "main::x", tt.lo, tt.hi)
		})
	}
}

func TestSelfConstraints(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::x")
	self := coeff.Variable(0, 1)
	assert.False(t, s.AddSmallerEqConstraint("main::x", CoeffOperand(self)).IsEmpty())
	assert.True(t, s.AddSmallerConstraint("main::x", CoeffOperand(self)).IsEmpty())
	assert.True(t, s.AddGreaterConstraint("main::x", CoeffOperand(self.Add(coeff.Constant(1, 1)))).IsEmpty())

	// x <= -x + 4 means x <= 2
	neg := s.AddSmallerEqConstraint("main::x", CoeffOperand(self.Negate().Add(coeff.Constant(4, 1))))
	assertBounds(t, neg, "main::x", math.Inf(-1), 2)
}

func TestAddIneqConstraint(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::v")

	pinned := pin(s, "main::v", 7).AddIneqConstraint("main::v", Literal(7))
	require.Len(t, pinned, 2)
	assert.True(t, pinned[0].IsEmpty())
	assert.True(t, pinned[1].IsEmpty())

	free := s.AddIneqConstraint("main::v", Literal(7))
	require.Len(t, free, 2)
	assert.False(t, free[0].IsEmpty())
	assert.False(t, free[1].IsEmpty())
	_, hi0, _ := free[0].VariableBounds("main::v")
	lo1, _, _ := free[1].VariableBounds("main::v")
	assert.Less(t, hi0, lo1)
}

func TestIntersect(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::x")
	a := s.AddGreaterEqConstraint("main::x", Literal(0))
	b := s.AddSmallerEqConstraint("main::x", Literal(3))
	got, err := a.Intersect(b)
	require.NoError(t, err)
	assertBounds(t, got, "main::x", 0, 3)

	_, err = a.Intersect(declare(t, Top(), "main::y"))
	assert.Error(t, err)
}

func TestRemoveVariables(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "::g", "f::a", "f::__tmp0", "main::b", "f::__tmp1")
	s = pin(s, "main::b", 4)

	noTemps := s.RemoveTemporaries("f")
	assert.Equal(t, []string{"::g", "f::a", "main::b"}, noTemps.Variables())
	assertBounds(t, noTemps, "main::b", 4, 4)

	noLocals := s.RemoveLocals("f")
	assert.Equal(t, []string{"::g", "main::b"}, noLocals.Variables())
	idx, ok := noLocals.Index("main::b")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assertBounds(t, noLocals, "main::b", 4, 4)

	assert.Same(t, s, s.RemoveLocals("other"))
}

func TestRelationsSurviveRemoval(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::x", "main::t", "main::y")
	s = s.AddSmallerEqConstraint("main::x", VariableOperand("main::y"))
	s = s.RemoveVariables(func(name string) bool { return name == "main::t" })
	s = s.AddSmallerEqConstraint("main::y", Literal(1))
	assertBounds(t, s, "main::x", math.Inf(-1), 1)
}

func TestIsLessOrEqual(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::x")
	small := pin(s, "main::x", 1)
	big := s.AddGreaterEqConstraint("main::x", Literal(0)).AddSmallerEqConstraint("main::x", Literal(5))

	for _, st := range []*State{s, small, big} {
		assert.True(t, st.IsLessOrEqual(st))
	}
	assert.True(t, small.IsLessOrEqual(big))
	assert.False(t, big.IsLessOrEqual(small))

	// prefix-related states are compared on the common prefix
	longer := declare(t, small, "main::y")
	assert.True(t, longer.IsLessOrEqual(big))
	assert.True(t, small.IsLessOrEqual(declare(t, big, "main::y")))

	// unrelated variables are incomparable
	other := pin(declare(t, Top(), "main::z"), "main::z", 1)
	assert.False(t, small.IsLessOrEqual(other))
	assert.False(t, other.IsLessOrEqual(small))
}

func TestEqualAndHash(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::x", "main::y")
	a := pin(s, "main::x", 1).AddEqConstraint("main::y", VariableOperand("main::x"))
	b := pin(pin(s, "main::y", 1), "main::x", 1)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(s))
	assert.NotEqual(t, a.Hash(), s.Hash())

	tagged := a.WithGeneration(4, 3)
	assert.Equal(t, uint64(3), tagged.Generation(4))
	assert.Equal(t, uint64(0), tagged.Generation(9))
	assert.Equal(t, uint64(0), a.Generation(4))
	assert.True(t, tagged.Equal(a))
	assert.Equal(t, a.Hash(), tagged.Hash())

	nested := tagged.WithGeneration(9, 5)
	assert.Equal(t, uint64(3), nested.Generation(4))
	assert.Equal(t, uint64(5), nested.Generation(9))
	assert.Equal(t, uint64(0), tagged.Generation(9))
}

func TestShrinkAndCommonPrefix(t *testing.T) {
	t.Parallel()
	a := declare(t, Top(), "main::x", "main::y", "main::z")
	b := declare(t, Top(), "main::x", "main::y", "main::w")
	assert.Equal(t, 2, CommonPrefix(a, b))
	assert.Equal(t, 0, CommonPrefix(a, declare(t, Top(), "main::q")))
	shrunk := a.Shrink(2)
	assert.Equal(t, []string{"main::x", "main::y"}, shrunk.Variables())
	assert.False(t, shrunk.Contains("main::z"))
	assert.Same(t, a, a.Shrink(5))
}

func TestBoundsOf(t *testing.T) {
	t.Parallel()
	s := declare(t, Top(), "main::a", "main::b")
	s = s.AddGreaterEqConstraint("main::a", Literal(0)).AddSmallerEqConstraint("main::a", Literal(2))
	s = pin(s, "main::b", 1)
	lo, hi := s.BoundsOf(coeff.Variable(0, 2).Add(coeff.Variable(1, 2)))
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)
	lo, hi = s.BoundsOf(coeff.Variable(0, 2).Add(coeff.Constant(10, 2)))
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 12.0, hi)
}

func TestString(t *testing.T) {
	t.Parallel()
	s := pin(declare(t, Top(), "main::x"), "main::x", 3)
	assert.Contains(t, s.String(), "main::x ∈ [3, 3]")
}

func TestConstrain(t *testing.T) {
	t.Parallel()
	s := pin(declare(t, Top(), "main::x"), "main::x", 5)
	tests := []struct {
		op       coeff.CmpOp
		k        float64
		feasible int
	}{
		{coeff.Gt, 3, 1},
		{coeff.Le, 3, 0},
		{coeff.Eq, 5, 1},
		{coeff.Ne, 5, 0},
		{coeff.Ne, 4, 1},
		{coeff.Lt, 6, 1},
		{coeff.Ge, 6, 0},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			t.Parallel()
			n := 0
			for _, r := range s.Constrain("main::x", tt.op, Literal(tt.k)) {
				if !r.IsEmpty() {
					n++
					assertBounds(t, r, "main::x", 5, 5)
				}
			}
			assert.Equal(t, tt.feasible, n)
		})
	}
}
