// Package fixpoint runs the worklist algorithm that computes the reached
// abstract states of a program.
//
// Each element of the reached set pairs a CFA node and a call stack with an
// abstract state. Successors are computed by the transfer relation, merged
// into the states already reached at the same node and stack, and added
// unless a reached state covers them. Return edges are only followed back
// to the call site on top of the stack, so a function called from several
// places is analyzed once per calling context.
package fixpoint

import (
	"context"
	"strconv"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gnolang/octagon/internal/analysis/cfa"
	"github.com/gnolang/octagon/internal/analysis/domain"
	"github.com/gnolang/octagon/internal/analysis/precision"
	"github.com/gnolang/octagon/internal/analysis/state"
	"github.com/gnolang/octagon/internal/analysis/transfer"
)

// ErrIterationLimit is returned when the configured number of iterations
// is exhausted before the fixpoint is reached.
var ErrIterationLimit = errors.New("fixpoint: iteration limit reached")

type Config struct {
	Merge domain.Merger
	// MaxIterations bounds the number of processed elements, zero for no
	// bound.
	MaxIterations int
}

// Analysis computes reached sets with one transfer relation.
type Analysis struct {
	config   Config
	relation *transfer.Relation
	logger   *zap.Logger
}

func New(config Config, relation *transfer.Relation, logger *zap.Logger) *Analysis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analysis{config: config, relation: relation, logger: logger}
}

// callstack is an immutable stack of call sites.
type callstack struct {
	site   *cfa.CallSite
	parent *callstack
	key    string
}

func (c *callstack) push(site *cfa.CallSite) *callstack {
	return &callstack{site: site, parent: c, key: c.id() + "/" + strconv.Itoa(site.Return.ID)}
}

func (c *callstack) top() *cfa.CallSite {
	if c == nil {
		return nil
	}
	return c.site
}

func (c *callstack) id() string {
	if c == nil {
		return ""
	}
	return c.key
}

type element struct {
	node  *cfa.Node
	stack *callstack
	state *state.State
}

func (e *element) location() string { return strconv.Itoa(e.node.ID) + "@" + e.stack.id() }

// Hash identifies elements with the same location and an equal state.
func (e *element) Hash() string { return e.location() + "|" + e.state.Hash() }

// Reached is the result of an analysis run.
type Reached struct {
	elements   *set.HashSet[*element, string]
	byLocation map[string][]*element
	byNode     map[int][]*element
	iterations int
}

func newReached() *Reached {
	return &Reached{
		elements:   set.NewHashSet[*element, string](64),
		byLocation: make(map[string][]*element),
		byNode:     make(map[int][]*element),
	}
}

func (r *Reached) add(e *element) bool {
	if !r.elements.Insert(e) {
		return false
	}
	loc := e.location()
	r.byLocation[loc] = append(r.byLocation[loc], e)
	r.byNode[e.node.ID] = append(r.byNode[e.node.ID], e)
	return true
}

func (r *Reached) remove(e *element) {
	r.elements.Remove(e)
	loc := e.location()
	r.byLocation[loc] = without(r.byLocation[loc], e)
	r.byNode[e.node.ID] = without(r.byNode[e.node.ID], e)
}

func without(elems []*element, e *element) []*element {
	out := elems[:0:0]
	for _, x := range elems {
		if x != e {
			out = append(out, x)
		}
	}
	return out
}

func (r *Reached) contains(e *element) bool {
	for _, x := range r.byLocation[e.location()] {
		if x == e {
			return true
		}
	}
	return false
}

// Size returns the number of reached elements.
func (r *Reached) Size() int { return r.elements.Size() }

// Iterations returns the number of elements processed by the run.
func (r *Reached) Iterations() int { return r.iterations }

// At returns the states reached at node in every calling context.
func (r *Reached) At(node *cfa.Node) []*state.State {
	elems := r.byNode[node.ID]
	out := make([]*state.State, len(elems))
	for i, e := range elems {
		out[i] = e.state
	}
	return out
}

// Reachable reports whether some state reached node.
func (r *Reached) Reachable(node *cfa.Node) bool { return len(r.byNode[node.ID]) > 0 }

// Join returns the join of the states reached at node. ok is false when
// node was not reached.
func (r *Reached) Join(node *cfa.Node) (joined *state.State, ok bool, err error) {
	for _, s := range r.At(node) {
		if joined == nil {
			joined = s
			continue
		}
		if joined, err = domain.Join(s, joined); err != nil {
			return nil, false, err
		}
	}
	return joined, joined != nil, nil
}

// Run computes the reached set of prog starting at the entry of its entry
// function with the empty state.
func (a *Analysis) Run(ctx context.Context, prog *cfa.Program, prec precision.Precision) (*Reached, error) {
	if prog.Entry == nil {
		return nil, errors.New("fixpoint: program has no entry function")
	}
	reached := newReached()
	initial := &element{node: prog.Entry.Entry, state: state.Top()}
	reached.add(initial)
	waitlist := []*element{initial}

	for len(waitlist) > 0 {
		if err := ctx.Err(); err != nil {
			return reached, err
		}
		if a.config.MaxIterations > 0 && reached.iterations >= a.config.MaxIterations {
			return reached, errors.Wrapf(ErrIterationLimit, "after %d iterations", reached.iterations)
		}
		e := waitlist[len(waitlist)-1]
		waitlist = waitlist[:len(waitlist)-1]
		if !reached.contains(e) {
			// replaced by a merge
			continue
		}
		reached.iterations++

		for _, edge := range e.node.Leaving {
			stack, ok := nextStack(edge, e.stack)
			if !ok {
				continue
			}
			succs, err := a.relation.Successors(edge, prec, e.state)
			if err != nil {
				return reached, err
			}
			loopHead := prog.Loops.IsLoopHead(edge.Successor())
			for _, s := range succs {
				next := &element{node: edge.Successor(), stack: stack, state: s}
				added, err := a.insert(reached, next, loopHead)
				if err != nil {
					return reached, errors.Wrapf(err, "merging at %s", edge.Successor())
				}
				waitlist = append(waitlist, added...)
			}
		}
	}
	a.logger.Debug("fixpoint reached",
		zap.Int("iterations", reached.iterations),
		zap.Int("states", reached.Size()),
	)
	return reached, nil
}

// nextStack returns the call stack after taking edge. Return edges are only
// taken back to the call site on top of the stack.
func nextStack(edge cfa.Edge, stack *callstack) (*callstack, bool) {
	switch e := edge.(type) {
	case *cfa.FunctionCallEdge:
		return stack.push(e.Site), true
	case *cfa.FunctionReturnEdge:
		if stack.top() != e.Site {
			return nil, false
		}
		return stack.parent, true
	default:
		return stack, true
	}
}

// insert merges next into the elements reached at its location and adds it
// unless it is covered. It returns the elements to process.
func (a *Analysis) insert(reached *Reached, next *element, loopHead bool) ([]*element, error) {
	var work []*element
	for _, r := range reached.byLocation[next.location()] {
		merged, err := a.config.Merge.Merge(next.state, r.state, next.node.ID, loopHead)
		if err != nil {
			return nil, err
		}
		if merged == r.state {
			continue
		}
		a.logger.Debug("merged state",
			zap.Stringer("node", next.node),
			zap.Stringer("operator", a.config.Merge.Operator),
		)
		reached.remove(r)
		replacement := &element{node: r.node, stack: r.stack, state: merged}
		if reached.add(replacement) {
			work = append(work, replacement)
		}
	}

	covering := make([]*state.State, 0, len(reached.byLocation[next.location()]))
	for _, r := range reached.byLocation[next.location()] {
		covering = append(covering, r.state)
	}
	if domain.Stop(next.state, covering...) {
		return work, nil
	}
	if reached.add(next) {
		work = append(work, next)
	}
	return work, nil
}
