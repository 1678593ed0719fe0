package internal

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/octagon/internal/analysis/cfa"
	"github.com/gnolang/octagon/internal/analysis/domain"
	"github.com/gnolang/octagon/internal/analysis/fixpoint"
	"github.com/gnolang/octagon/internal/analysis/precision"
	"github.com/gnolang/octagon/internal/analysis/state"
	"github.com/gnolang/octagon/internal/analysis/transfer"
	"github.com/gnolang/octagon/internal/frontend"
	"github.com/gnolang/octagon/internal/ignore"
	tt "github.com/gnolang/octagon/internal/types"
)

// Config controls one analysis run.
type Config struct {
	// Entry names the function the analysis starts in.
	Entry string
	Merge domain.Merger
	// Floats enables tracking of floating point variables.
	Floats bool
	// Refinement restricts tracking to Tracked instead of every numeric
	// variable.
	Refinement bool
	Tracked    []string
	// MaxIterations bounds the fixpoint computation, zero for no bound.
	MaxIterations int
	// MultiEdges compresses straight-line code into multi edges.
	MultiEdges bool
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Entry:         "main",
		Merge:         domain.Merger{Operator: domain.MergeWidening, LoopHeadsOnly: true},
		MaxIterations: 100000,
	}
}

// Engine analyzes Go files.
type Engine struct {
	config Config
	logger *zap.Logger
}

// NewEngine creates an analysis engine. A nil logger discards all output.
func NewEngine(config Config, logger *zap.Logger) (*Engine, error) {
	if config.Entry == "" {
		return nil, errors.New("entry function is required")
	}
	if config.MaxIterations < 0 {
		return nil, fmt.Errorf("invalid iteration bound %d", config.MaxIterations)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{config: config, logger: logger}, nil
}

// Config returns the configuration of the engine.
func (e *Engine) Config() Config { return e.config }

// Run analyzes the file at filename.
func (e *Engine) Run(ctx context.Context, filename string) (*tt.Report, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return e.RunSource(ctx, filename, source)
}

// RunSource analyzes source as if read from filename.
func (e *Engine) RunSource(ctx context.Context, filename string, source []byte) (*tt.Report, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("error parsing file: %w", err)
	}
	directives, errs := ignore.Parse(fset, file)
	for _, err := range errs {
		e.logger.Warn("Ignoring invalid directive", zap.String("file", filename), zap.Error(err))
	}

	report, err := e.analyze(ctx, fset, file, filename)
	if err != nil {
		return nil, err
	}
	report.Issues = filterIgnored(report.Issues, directives)
	return report, nil
}

func (e *Engine) precision() precision.Precision {
	if e.config.Refinement {
		return precision.NewRefinable(e.config.Tracked...)
	}
	return precision.All()
}

func (e *Engine) analyze(ctx context.Context, fset *token.FileSet, file *ast.File, filename string) (*tt.Report, error) {
	report := &tt.Report{File: filename, Entry: e.config.Entry}

	prog, err := frontend.Build(fset, file, e.config.Entry)
	var unsupported *frontend.UnsupportedError
	if errors.As(err, &unsupported) {
		report.Issues = append(report.Issues, tt.Issue{
			Rule:     tt.RuleUnsupportedConstruct,
			Filename: filename,
			Message:  "unsupported construct: " + unsupported.Construct,
			Start:    unsupported.Pos,
		})
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	if e.config.MultiEdges {
		prog.CompressMultiEdges()
	}

	relation, err := transfer.New(transfer.Config{Floats: e.config.Floats}, prog.Loops, e.logger)
	if err != nil {
		return nil, err
	}
	analysis := fixpoint.New(fixpoint.Config{
		Merge:         e.config.Merge,
		MaxIterations: e.config.MaxIterations,
	}, relation, e.logger)

	prec := e.precision()
	reached, err := analysis.Run(ctx, prog, prec)
	if reached != nil {
		report.Iterations = reached.Iterations()
		report.States = reached.Size()
	}

	var code *transfer.UnsupportedCodeError
	switch {
	case errors.As(err, &code):
		report.Issues = append(report.Issues, tt.Issue{
			Rule:     tt.RuleUnsupportedConstruct,
			Filename: filename,
			Function: cfa.FunctionOf(code.Edge),
			Message:  code.Reason,
			Start:    code.Edge.Position(),
		})
		return report, nil
	case errors.Is(err, fixpoint.ErrIterationLimit):
		report.Issues = append(report.Issues, tt.Issue{
			Rule:     tt.RuleIterationLimit,
			Filename: filename,
			Function: prog.Entry.Name,
			Message:  fmt.Sprintf("no fixpoint after %d iterations", reached.Iterations()),
			Start:    prog.Entry.Pos,
		})
		return report, nil
	case err != nil:
		return nil, err
	}

	for _, name := range prog.FunctionNames() {
		fn := prog.Functions[name]
		result, err := summarize(prog, fn, reached)
		if err != nil {
			return nil, fmt.Errorf("error summarizing %s: %w", name, err)
		}
		report.Functions = append(report.Functions, result)

		issues, err := violations(relation, prec, fn, reached, filename)
		if err != nil {
			return nil, err
		}
		report.Issues = append(report.Issues, issues...)
	}

	e.logger.Debug("Analyzed file",
		zap.String("file", filename),
		zap.Int("iterations", report.Iterations),
		zap.Int("states", report.States),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

// violations reports the edges into the error node of fn that some reached
// state can take.
func violations(
	relation *transfer.Relation,
	prec precision.Precision,
	fn *cfa.Function,
	reached *fixpoint.Reached,
	filename string,
) ([]tt.Issue, error) {
	if !reached.Reachable(fn.Error) {
		return nil, nil
	}
	var issues []tt.Issue
	for _, edge := range fn.Error.Entering {
		for _, s := range reached.At(edge.Predecessor()) {
			succs, err := relation.Successors(edge, prec, s)
			if err != nil {
				return nil, err
			}
			if len(succs) == 0 {
				continue
			}
			issues = append(issues, tt.Issue{
				Rule:     tt.RuleAssertionViolation,
				Filename: filename,
				Function: fn.Name,
				Message:  violationMessage(edge),
				Start:    edge.Position(),
			})
			break
		}
	}
	return issues, nil
}

func violationMessage(edge cfa.Edge) string {
	switch e := edge.(type) {
	case *cfa.AssumeEdge:
		return "assertion " + e.Cond.String() + " may fail"
	case *cfa.BlankEdge:
		return e.Label + " may be reached"
	default:
		return "error location may be reached"
	}
}

// summarize joins the states at the exit and the loop heads of fn.
func summarize(prog *cfa.Program, fn *cfa.Function, reached *fixpoint.Reached) (tt.FunctionResult, error) {
	result := tt.FunctionResult{Name: fn.Name}
	exit, ok, err := joinVisible(reached, fn.Exit, fn.Name)
	if err != nil {
		return result, err
	}
	if ok {
		result.Reached = true
		result.Exit = bounds(exit)
	}

	for _, loop := range prog.Loops.Loops() {
		if loop.Head.Function != fn.Name {
			continue
		}
		head, ok, err := joinVisible(reached, loop.Head, fn.Name)
		if err != nil {
			return result, err
		}
		if !ok {
			continue
		}
		inv := tt.LoopInvariant{
			Bounds:      bounds(head),
			Constraints: relations(head),
		}
		if len(loop.Entries) > 0 {
			inv.Line = loop.Entries[0].Position().Line
		}
		result.Loops = append(result.Loops, inv)
	}
	sort.SliceStable(result.Loops, func(i, j int) bool { return result.Loops[i].Line < result.Loops[j].Line })
	return result, nil
}

// joinVisible joins the states reached at node after projecting each onto
// the variables visible in fn. Calling contexts track different caller
// variables, so the projection comes first.
func joinVisible(reached *fixpoint.Reached, node *cfa.Node, fn string) (joined *state.State, ok bool, err error) {
	for _, s := range reached.At(node) {
		s = visible(s, fn)
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

// visible projects s onto the globals and the source-level locals of fn.
// The return value of fn is kept.
func visible(s *state.State, fn string) *state.State {
	return s.RemoveVariables(func(name string) bool {
		owner, plain := cfa.SplitName(name)
		if owner != "" && owner != fn {
			return true
		}
		return strings.HasPrefix(plain, "__") && plain != cfa.RetVal
	})
}

func displayName(name string) string {
	_, plain := cfa.SplitName(name)
	if plain == cfa.RetVal {
		return "result"
	}
	return plain
}

func bounds(s *state.State) []tt.VarBound {
	vars := s.Variables()
	out := make([]tt.VarBound, 0, len(vars))
	for _, name := range vars {
		lo, hi, _ := s.VariableBounds(name)
		out = append(out, tt.VarBound{Name: displayName(name), Lower: tt.Bound(lo), Upper: tt.Bound(hi)})
	}
	return out
}

// relations returns the constraints between two variables of s.
func relations(s *state.State) []string {
	vars := s.Variables()
	text := s.Octagon().Format(func(i int) string { return displayName(vars[i]) })
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "∈") || line == "⊤" || line == "⊥" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func filterIgnored(issues []tt.Issue, directives *ignore.Directives) []tt.Issue {
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		if !directives.Ignored(issue.Start, issue.Rule) {
			filtered = append(filtered, issue)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Start.Line < filtered[j].Start.Line })
	return filtered
}

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewSourceCode(content), nil
}

func NewSourceCode(content []byte) *SourceCode {
	return &SourceCode{Lines: strings.Split(string(content), "\n")}
}
