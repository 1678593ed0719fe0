package types

import (
	"encoding/json"
	"go/token"
	"math"

	"github.com/gnolang/octagon/internal/analysis/octagon"
)

// Rules reported by the analyzer.
const (
	RuleAssertionViolation   = "assertion-violation"
	RuleUnsupportedConstruct = "unsupported-construct"
	RuleIterationLimit       = "iteration-limit"
)

// Issue represents a finding of the analysis in the code base.
type Issue struct {
	Rule     string
	Filename string
	Function string
	Message  string
	Start    token.Position
}

// Bound is one end of a variable interval. Infinite bounds are encoded as
// the strings "-oo" and "+oo" in JSON.
type Bound float64

func (b Bound) String() string { return octagon.FormatBound(float64(b)) }

func (b Bound) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(b), 0) {
		return json.Marshal(b.String())
	}
	return json.Marshal(float64(b))
}

func (b *Bound) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "+oo":
			*b = Bound(math.Inf(1))
		case "-oo":
			*b = Bound(math.Inf(-1))
		default:
			return &json.UnsupportedValueError{Str: s}
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*b = Bound(f)
	return nil
}

// VarBound is the interval of one variable.
type VarBound struct {
	Name  string
	Lower Bound
	Upper Bound
}

// LoopInvariant holds the constraints at a loop head, joined over every
// calling context.
type LoopInvariant struct {
	Line        int
	Bounds      []VarBound
	Constraints []string
}

// FunctionResult summarizes the analysis of one function.
type FunctionResult struct {
	Name string
	// Reached is false when no state reaches the exit of the function.
	Reached bool
	Exit    []VarBound
	Loops   []LoopInvariant
}

// Report is the analysis result of one file.
type Report struct {
	File       string
	Entry      string
	Iterations int
	States     int
	Functions  []FunctionResult
	Issues     []Issue
}
