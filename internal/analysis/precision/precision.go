// Package precision decides which program variables a numeric analysis
// tracks.
package precision

import (
	"slices"

	"github.com/gnolang/octagon/internal/analysis/cfa"
	"github.com/hashicorp/go-set/v3"
)

// Precision selects the tracked variables.
type Precision interface {
	// IsTracked reports whether the variable with the qualified name and
	// type is part of the abstract state.
	IsTracked(name string, t cfa.Type) bool
}

type all struct{}

// All tracks every variable of a numeric type.
func All() Precision { return all{} }

func (all) IsTracked(_ string, t cfa.Type) bool { return t.IsNumeric() }

// Refinable tracks only an explicit set of variables. Temporaries and
// return values introduced by the analysis itself are always tracked.
type Refinable struct {
	names *set.Set[string]
}

// NewRefinable tracks the given qualified names. A plain name without scope
// qualifier matches the variable of that name in every function.
func NewRefinable(names ...string) *Refinable {
	return &Refinable{names: set.From(names)}
}

func (r *Refinable) IsTracked(name string, t cfa.Type) bool {
	if !t.IsNumeric() {
		return false
	}
	if r.names.Contains(name) {
		return true
	}
	_, plain := cfa.SplitName(name)
	if r.names.Contains(plain) {
		return true
	}
	return plain == cfa.RetVal || cfa.IsTemporary(name)
}

// Refine returns a precision that additionally tracks names.
func (r *Refinable) Refine(names ...string) *Refinable {
	next := r.names.Copy()
	next.InsertSlice(names)
	return &Refinable{names: next}
}

// Names returns the tracked names in sorted order.
func (r *Refinable) Names() []string {
	out := r.names.Slice()
	slices.Sort(out)
	return out
}
