// Package transfer computes the abstract successors of CFA edges.
package transfer

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gnolang/octagon/internal/analysis/cfa"
	"github.com/gnolang/octagon/internal/analysis/coeff"
	"github.com/gnolang/octagon/internal/analysis/eval"
	"github.com/gnolang/octagon/internal/analysis/precision"
	"github.com/gnolang/octagon/internal/analysis/state"
)

// ErrNoLoopStructure is returned by New without loop information.
var ErrNoLoopStructure = errors.New("transfer: loop structure is required")

// functions whose semantics the analysis cannot model
var disallowed = set.From([]string{
	"pthread_create",
	"pthread_join",
	"pthread_mutex_lock",
	"pthread_mutex_unlock",
	"fork",
})

// UnsupportedCodeError reports a construct the analysis refuses to
// approximate. It aborts the analysis of the program.
type UnsupportedCodeError struct {
	Edge   cfa.Edge
	Reason string
}

func (e *UnsupportedCodeError) Error() string {
	return fmt.Sprintf("%s: unsupported code: %s", cfa.Describe(e.Edge), e.Reason)
}

type Config struct {
	// Floats enables tracking of floating point values.
	Floats bool
}

// Relation is the transfer relation. It is safe for concurrent use.
type Relation struct {
	config     Config
	loops      *cfa.LoopStructure
	logger     *zap.Logger
	generation atomic.Uint64
}

func New(config Config, loops *cfa.LoopStructure, logger *zap.Logger) (*Relation, error) {
	if loops == nil {
		return nil, ErrNoLoopStructure
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relation{config: config, loops: loops, logger: logger}, nil
}

// Successors returns the states reachable from s by taking edge. An empty
// result means the edge is infeasible in s. A nil prec tracks every numeric
// variable.
func (r *Relation) Successors(edge cfa.Edge, prec precision.Precision, s *state.State) ([]*state.State, error) {
	if prec == nil {
		prec = precision.All()
	}
	succs, err := r.successors(edge, prec, s)
	if err != nil {
		return nil, err
	}
	if len(succs) > 0 && r.loops.IsLoopEntry(edge) {
		head, g := edge.Successor().ID, r.generation.Add(1)
		for i, st := range succs {
			succs[i] = st.WithGeneration(head, g)
		}
	}
	return succs, nil
}

func (r *Relation) successors(edge cfa.Edge, prec precision.Precision, s *state.State) ([]*state.State, error) {
	var (
		out []*state.State
		err error
	)
	if multi, ok := edge.(*cfa.MultiEdge); ok {
		out, err = r.multi(multi, prec, s)
	} else {
		out, err = r.apply(edge, prec, s)
	}
	if err != nil {
		return nil, err
	}
	return r.clean(edge, out), nil
}

// clean drops infeasible states and the temporaries of the functions the
// edge touches.
func (r *Relation) clean(edge cfa.Edge, states []*state.State) []*state.State {
	out := make([]*state.State, 0, len(states))
	for _, st := range states {
		if st.IsEmpty() {
			r.logger.Debug("pruned infeasible successor", zap.String("edge", cfa.Describe(edge)))
			continue
		}
		for _, fn := range cfa.Functions(edge) {
			st = st.RemoveTemporaries(fn)
		}
		out = append(out, st)
	}
	return out
}

func (r *Relation) multi(e *cfa.MultiEdge, prec precision.Precision, s *state.State) ([]*state.State, error) {
	states := []*state.State{s}
	for _, sub := range e.Edges {
		var next []*state.State
		for _, st := range states {
			succs, err := r.successors(sub, prec, st)
			if err != nil {
				return nil, err
			}
			next = append(next, succs...)
		}
		if len(next) == 0 {
			return nil, nil
		}
		states = next
	}
	return states, nil
}

func (r *Relation) apply(edge cfa.Edge, prec precision.Precision, s *state.State) ([]*state.State, error) {
	ev := &eval.Evaluator{
		Function:  cfa.FunctionOf(edge),
		Precision: prec,
		Floats:    r.config.Floats,
	}
	var (
		out []*state.State
		err error
	)
	switch e := edge.(type) {
	case *cfa.BlankEdge:
		return []*state.State{s}, nil
	case *cfa.AssumeEdge:
		if err := checkCalls(e, e.Cond); err != nil {
			return nil, err
		}
		out, err = r.assume(ev, e.Cond, e.Truth, s)
	case *cfa.DeclarationEdge:
		out, err = r.declaration(ev, e, s)
	case *cfa.StatementEdge:
		out, err = r.statement(ev, e, s)
	case *cfa.FunctionCallEdge:
		out, err = r.call(ev, e, s)
	case *cfa.FunctionReturnEdge:
		out = r.functionReturn(e, prec, s)
	case *cfa.ReturnStatementEdge:
		out, err = r.returnStatement(ev, e, s)
	default:
		return nil, errors.Errorf("unexpected edge %T", edge)
	}
	if err != nil {
		var unsupported *UnsupportedCodeError
		if errors.As(err, &unsupported) {
			return nil, err
		}
		return nil, errors.Wrap(err, cfa.Describe(edge))
	}
	return out, nil
}

func checkCalls(edge cfa.Edge, e cfa.Expr) error {
	if e == nil {
		return nil
	}
	for _, call := range cfa.Calls(e) {
		if disallowed.Contains(call.Func) {
			return &UnsupportedCodeError{Edge: edge, Reason: "call to " + call.Func}
		}
	}
	return nil
}

func keepIf(s *state.State, ok bool) []*state.State {
	if ok {
		return []*state.State{s}
	}
	return nil
}

// assume restricts s to the states where cond evaluates to truth.
func (r *Relation) assume(ev *eval.Evaluator, cond cfa.Expr, truth bool, s *state.State) ([]*state.State, error) {
	switch x := cond.(type) {
	case *cfa.IntLit:
		return keepIf(s, (x.Value != 0) == truth), nil
	case *cfa.CharLit:
		return keepIf(s, (x.Value != 0) == truth), nil
	case *cfa.FloatLit:
		return keepIf(s, (x.Value != 0) == truth), nil
	case *cfa.CastExpr:
		return r.assume(ev, x.X, truth, s)
	case *cfa.UnaryExpr:
		if x.Op == cfa.OpNeg {
			return r.assume(ev, x.X, truth, s)
		}
		return []*state.State{s}, nil
	case *cfa.BinaryExpr:
		switch {
		case x.Op.IsRelational():
			return r.compare(ev, x, truth, s)
		case x.Op.IsLinear():
			return r.nonZero(ev, x, truth, s)
		default:
			return []*state.State{s}, nil
		}
	case *cfa.IdExpr, *cfa.CallExpr, *cfa.OpaqueExpr:
		return r.nonZero(ev, x, truth, s)
	default:
		return nil, errors.Errorf("unexpected condition %T", cond)
	}
}

// nonZero restricts s to e != 0 when truth holds and to e == 0 otherwise.
func (r *Relation) nonZero(ev *eval.Evaluator, e cfa.Expr, truth bool, s *state.State) ([]*state.State, error) {
	pairs, err := ev.Evaluate(e, s)
	if err != nil {
		return nil, err
	}
	var out []*state.State
	for _, p := range pairs {
		if _, unknown := p.Coeff.(coeff.Unknown); unknown {
			out = append(out, p.State)
			continue
		}
		if v, ok := p.Coeff.(coeff.Simple); ok && v.HasOnlyConstantValue() {
			out = append(out, keepIf(p.State, (v.ConstantValue() != 0) == truth)...)
			continue
		}
		name, bound, err := ev.Bind(e, p.Coeff, p.State)
		if err != nil {
			return nil, err
		}
		op := coeff.Ne
		if !truth {
			op = coeff.Eq
		}
		out = append(out, bound.Constrain(name, op, state.Literal(0))...)
	}
	return out, nil
}

// compare applies the comparison x, negated when truth is false.
func (r *Relation) compare(ev *eval.Evaluator, x *cfa.BinaryExpr, truth bool, s *state.State) ([]*state.State, error) {
	op := eval.CmpOp(x.Op)
	if !truth {
		op = op.Negate()
	}
	left, err := ev.Evaluate(x.X, s)
	if err != nil {
		return nil, err
	}
	var out []*state.State
	for _, l := range left {
		right, err := ev.Evaluate(x.Y, l.State)
		if err != nil {
			return nil, err
		}
		for _, rp := range right {
			lc := l.Coeff.ExpandToSize(rp.State.Size())
			states, err := r.constrain(ev, x.X, op, lc, rp.Coeff, rp.State)
			if err != nil {
				return nil, err
			}
			out = append(out, states...)
		}
	}
	return out, nil
}

func (r *Relation) constrain(ev *eval.Evaluator, lhs cfa.Expr, op coeff.CmpOp, l, rc coeff.Coefficients, s *state.State) ([]*state.State, error) {
	if folded, ok := l.Compare(op, rc).(coeff.Simple); ok {
		return keepIf(s, folded.ConstantValue() != 0), nil
	}
	_, lu := l.(coeff.Unknown)
	_, ru := rc.(coeff.Unknown)
	if lu || ru {
		return []*state.State{s}, nil
	}
	name, bound, err := ev.Bind(lhs, l, s)
	if err != nil {
		return nil, err
	}
	return bound.Constrain(name, op, state.CoeffOperand(rc.ExpandToSize(bound.Size()))), nil
}

func (r *Relation) declaration(ev *eval.Evaluator, e *cfa.DeclarationEdge, s *state.State) ([]*state.State, error) {
	d := e.Decl
	if err := checkCalls(e, d.Init); err != nil {
		return nil, err
	}
	if !d.Type.IsNumeric() || !ev.Precision.IsTracked(d.Name, d.Type) {
		r.logger.Debug("declaration not tracked", zap.String("name", d.Name), zap.Stringer("type", d.Type))
		return []*state.State{s}, nil
	}
	var next *state.State
	switch {
	case s.Contains(d.Name) && d.Global:
		return []*state.State{s}, nil
	case s.Contains(d.Name):
		// a local declared again on a later loop iteration
		next = s.Forget(d.Name)
	default:
		var err error
		next, err = s.DeclareVariable(d.Name, state.TypeOf(d.Type))
		if err != nil {
			return nil, err
		}
	}
	switch {
	case d.Init != nil:
		return r.assign(ev, d.Name, d.Init, next)
	case d.Global:
		return []*state.State{next.MakeAssignment(d.Name, coeff.Constant(0, next.Size()))}, nil
	default:
		return []*state.State{next}, nil
	}
}

func (r *Relation) assign(ev *eval.Evaluator, name string, rhs cfa.Expr, s *state.State) ([]*state.State, error) {
	pairs, err := ev.Evaluate(rhs, s)
	if err != nil {
		return nil, err
	}
	out := make([]*state.State, len(pairs))
	for i, p := range pairs {
		out[i] = p.State.MakeAssignment(name, p.Coeff)
	}
	return out, nil
}

func (r *Relation) statement(ev *eval.Evaluator, e *cfa.StatementEdge, s *state.State) ([]*state.State, error) {
	switch st := e.Stmt.(type) {
	case *cfa.AssignStmt:
		if err := checkCalls(e, st.Rhs); err != nil {
			return nil, err
		}
		id, ok := st.Lhs.(*cfa.IdExpr)
		if !ok {
			r.logger.Debug("assignment target not tracked", zap.String("lhs", st.Lhs.String()))
			return []*state.State{s}, nil
		}
		if !id.T.IsNumeric() || !ev.Precision.IsTracked(id.Name, id.T) {
			return []*state.State{s}, nil
		}
		name, ok := ev.Resolve(id.Name, s)
		if !ok {
			return []*state.State{s}, nil
		}
		return r.assign(ev, name, st.Rhs, s)
	case *cfa.CallStmt:
		if err := checkCalls(e, st.Call); err != nil {
			return nil, err
		}
		return []*state.State{s}, nil
	case *cfa.ExprStmt:
		if err := checkCalls(e, st.X); err != nil {
			return nil, err
		}
		return []*state.State{s}, nil
	default:
		return nil, errors.Errorf("unexpected statement %T", e.Stmt)
	}
}

// call binds the formals of the callee to the actuals of the call site and
// declares the callee's return variable.
func (r *Relation) call(ev *eval.Evaluator, e *cfa.FunctionCallEdge, s *state.State) ([]*state.State, error) {
	site := e.Site
	callee := site.Callee
	if disallowed.Contains(callee.Name) {
		return nil, &UnsupportedCodeError{Edge: e, Reason: "call to " + callee.Name}
	}
	for _, arg := range site.Call.Args {
		if err := checkCalls(e, arg); err != nil {
			return nil, err
		}
	}

	states := []*state.State{s}
	ret := cfa.ReturnVariable(callee.Name)
	if callee.Result.IsNumeric() && ev.Precision.IsTracked(ret, callee.Result) {
		next, err := s.DeclareVariable(ret, state.TypeOf(callee.Result))
		if err != nil {
			return nil, err
		}
		states[0] = next
	}

	for i, param := range callee.Params {
		if i >= len(site.Call.Args) {
			break
		}
		if !param.Type.IsNumeric() || !ev.Precision.IsTracked(param.Name, param.Type) {
			continue
		}
		var next []*state.State
		for _, st := range states {
			pairs, err := ev.Evaluate(site.Call.Args[i], st)
			if err != nil {
				return nil, err
			}
			for _, p := range pairs {
				decl, err := p.State.DeclareVariable(param.Name, state.TypeOf(param.Type))
				if err != nil {
					return nil, err
				}
				next = append(next, decl.MakeAssignment(param.Name, p.Coeff.ExpandToSize(decl.Size())))
			}
		}
		states = next
	}
	return states, nil
}

// functionReturn copies the callee's return variable into the receiving
// variable of the call site and drops the callee's locals.
func (r *Relation) functionReturn(e *cfa.FunctionReturnEdge, prec precision.Precision, s *state.State) []*state.State {
	site := e.Site
	callee := site.Callee.Name
	next := s
	if lhs := site.Lhs; lhs != nil && lhs.T.IsNumeric() && prec.IsTracked(lhs.Name, lhs.T) {
		ev := &eval.Evaluator{Function: site.Caller, Precision: prec, Floats: r.config.Floats}
		if name, ok := ev.Resolve(lhs.Name, s); ok {
			if i, ok := s.Index(cfa.ReturnVariable(callee)); ok {
				next = s.MakeAssignment(name, coeff.Variable(i, s.Size()))
			} else {
				next = s.Forget(name)
			}
		}
	}
	return []*state.State{next.RemoveLocals(callee)}
}

func (r *Relation) returnStatement(ev *eval.Evaluator, e *cfa.ReturnStatementEdge, s *state.State) ([]*state.State, error) {
	if err := checkCalls(e, e.Expr); err != nil {
		return nil, err
	}
	ret := cfa.ReturnVariable(cfa.FunctionOf(e))
	if e.Expr == nil || !s.Contains(ret) {
		return []*state.State{s}, nil
	}
	return r.assign(ev, ret, e.Expr, s)
}
