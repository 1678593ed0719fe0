package internal

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/octagon/internal/analysis/domain"
	tt "github.com/gnolang/octagon/internal/types"
)

const counterSrc = `package main

func main() {
	x := 0
	for x < 10 {
		x++
	}
	assert(x == 10)
}
`

const callsSrc = `package main

func inc(v int) int {
	return v + 1
}

func main() {
	a := inc(1)
	b := inc(10)
	assert(a < b)
}
`

// createTempDir creates a temporary directory and returns its path.
// It also registers a cleanup function to remove the directory after the test.
func createTempDir(t testing.TB, prefix string) string {
	tempDir, err := os.MkdirTemp("", prefix)
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return tempDir
}

func newEngine(t *testing.T, op domain.MergeOperator) *Engine {
	t.Helper()
	config := DefaultConfig()
	config.Merge.Operator = op
	engine, err := NewEngine(config, nil)
	require.NoError(t, err)
	return engine
}

func run(t *testing.T, engine *Engine, src string) *tt.Report {
	t.Helper()
	report, err := engine.RunSource(context.Background(), "test.go", []byte(src))
	require.NoError(t, err)
	return report
}

func function(t *testing.T, report *tt.Report, name string) tt.FunctionResult {
	t.Helper()
	for _, fn := range report.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no result for %s", name)
	return tt.FunctionResult{}
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "main", engine.Config().Entry)

	_, err = NewEngine(Config{}, nil)
	assert.Error(t, err)

	config := DefaultConfig()
	config.MaxIterations = -1
	_, err = NewEngine(config, nil)
	assert.Error(t, err)
}

func TestCountingLoop(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		op     domain.MergeOperator
		exit   tt.VarBound
		head   tt.VarBound
		issues int
	}{
		{
			name:   "join",
			op:     domain.MergeJoin,
			exit:   tt.VarBound{Name: "x", Lower: 10, Upper: 10},
			head:   tt.VarBound{Name: "x", Lower: 0, Upper: 10},
			issues: 0,
		},
		{
			name:   "widening",
			op:     domain.MergeWidening,
			exit:   tt.VarBound{Name: "x", Lower: 10, Upper: 10},
			head:   tt.VarBound{Name: "x", Lower: 0, Upper: tt.Bound(math.Inf(1))},
			issues: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			report := run(t, newEngine(t, tc.op), counterSrc)

			main := function(t, report, "main")
			require.True(t, main.Reached)
			assert.Equal(t, []tt.VarBound{tc.exit}, main.Exit)
			require.Len(t, main.Loops, 1)
			assert.Equal(t, 5, main.Loops[0].Line)
			assert.Equal(t, []tt.VarBound{tc.head}, main.Loops[0].Bounds)

			require.Len(t, report.Issues, tc.issues)
			if tc.issues > 0 {
				issue := report.Issues[0]
				assert.Equal(t, tt.RuleAssertionViolation, issue.Rule)
				assert.Equal(t, "main", issue.Function)
				assert.Equal(t, 8, issue.Start.Line)
				assert.Equal(t, "assertion (x == 10) may fail", issue.Message)
			}
		})
	}
}

func TestCallContexts(t *testing.T) {
	t.Parallel()
	report := run(t, newEngine(t, domain.MergeWidening), callsSrc)
	assert.Empty(t, report.Issues)
	assert.Equal(t, []tt.VarBound{
		{Name: "a", Lower: 2, Upper: 2},
		{Name: "b", Lower: 11, Upper: 11},
	}, function(t, report, "main").Exit)
	assert.Equal(t, []tt.VarBound{
		{Name: "result", Lower: 2, Upper: 11},
		{Name: "v", Lower: 1, Upper: 10},
	}, function(t, report, "inc").Exit)
}

func TestRelationalInvariant(t *testing.T) {
	t.Parallel()
	report := run(t, newEngine(t, domain.MergeWidening), `package main

func main(n int) {
	i := 0
	j := 0
	for i < n {
		i++
		j++
	}
	assert(i == j)
}
`)
	assert.Empty(t, report.Issues)
	main := function(t, report, "main")
	require.Len(t, main.Loops, 1)
	assert.Contains(t, main.Loops[0].Constraints, "i - j <= 0")
	assert.Contains(t, main.Loops[0].Constraints, "j - i <= 0")
}

func TestIssues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		src      string
		rule     string
		function string
	}{
		{
			name: "frontend",
			src:  "package main\n\nfunc main(x int) {\n\tswitch x {\n\t}\n}\n",
			rule: tt.RuleUnsupportedConstruct,
		},
		{
			name:     "disallowed call",
			src:      "package main\n\nfunc main() {\n\tfork()\n}\n",
			rule:     tt.RuleUnsupportedConstruct,
			function: "main",
		},
		{
			name:     "goroutine",
			src:      "package main\n\nfunc work() {}\n\nfunc main() {\n\tgo work()\n}\n",
			rule:     tt.RuleUnsupportedConstruct,
			function: "main",
		},
		{
			name:     "error function",
			src:      "package main\n\nfunc main(x int) {\n\tif x > 0 {\n\t\treach_error()\n\t}\n}\n",
			rule:     tt.RuleAssertionViolation,
			function: "main",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			report := run(t, newEngine(t, domain.MergeWidening), tc.src)
			require.Len(t, report.Issues, 1)
			assert.Equal(t, tc.rule, report.Issues[0].Rule)
			assert.Equal(t, tc.function, report.Issues[0].Function)
			assert.Equal(t, "test.go", report.Issues[0].Filename)
		})
	}
}

func TestDeviatingCalls(t *testing.T) {
	t.Parallel()
	report := run(t, newEngine(t, domain.MergeWidening), `package main

func main(x int) {
	if x < 0 {
		panic("negative")
	}
	assert(x >= 0)
}
`)
	assert.Empty(t, report.Issues)
	lower := function(t, report, "main").Exit[0].Lower
	assert.Equal(t, tt.Bound(0), lower)
}

func TestNestedLoops(t *testing.T) {
	t.Parallel()
	report := run(t, newEngine(t, domain.MergeWidening), `package main

func main(n int) {
	i := 0
	for i < n {
		j := 0
		for j < 3 {
			j++
		}
		i++
	}
	assert(i >= 0)
}
`)
	assert.Empty(t, report.Issues)
	main := function(t, report, "main")
	require.True(t, main.Reached)
	assert.Len(t, main.Loops, 2)
}

func TestExactDivision(t *testing.T) {
	t.Parallel()
	report := run(t, newEngine(t, domain.MergeWidening), `package main

func main() {
	a := 12
	b := 4
	c := a / b
	d := -7
	e := d / 2
	assert(c == 3)
	assert(e == -3)
}
`)
	assert.Empty(t, report.Issues)
	exit := function(t, report, "main").Exit
	assert.Contains(t, exit, tt.VarBound{Name: "c", Lower: 3, Upper: 3})
	assert.Contains(t, exit, tt.VarBound{Name: "e", Lower: -3, Upper: -3})
}

func TestIterationLimit(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	config.Merge = domain.Merger{Operator: domain.MergeSep}
	config.MaxIterations = 3
	engine, err := NewEngine(config, nil)
	require.NoError(t, err)

	report := run(t, engine, counterSrc)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, tt.RuleIterationLimit, report.Issues[0].Rule)
	assert.Empty(t, report.Functions)
}

func TestIgnoreDirective(t *testing.T) {
	t.Parallel()
	src := strings.Replace(counterSrc, "assert(x == 10)", "assert(x == 10) //octagon:ignore:assertion-violation", 1)
	report := run(t, newEngine(t, domain.MergeWidening), src)
	assert.Empty(t, report.Issues)
}

func TestRefinement(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	config.Refinement = true
	config.Tracked = []string{"main::x"}
	engine, err := NewEngine(config, nil)
	require.NoError(t, err)

	report := run(t, engine, "package main\n\nfunc main() {\n\tx := 1\n\ty := 2\n\t_ = y\n}\n")
	assert.Equal(t, []tt.VarBound{{Name: "x", Lower: 1, Upper: 1}}, function(t, report, "main").Exit)
}

func TestMultiEdges(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	config.MultiEdges = true
	engine, err := NewEngine(config, nil)
	require.NoError(t, err)

	report := run(t, engine, "package main\n\nfunc main() {\n\tx := 1\n\tx = x + 2\n\ty := x * 2\n\t_ = y\n}\n")
	assert.Equal(t, []tt.VarBound{
		{Name: "x", Lower: 3, Upper: 3},
		{Name: "y", Lower: 6, Upper: 6},
	}, function(t, report, "main").Exit)
}

func TestRunFile(t *testing.T) {
	t.Parallel()
	dir := createTempDir(t, "engine_test")
	path := filepath.Join(dir, "counter.go")
	require.NoError(t, os.WriteFile(path, []byte(counterSrc), 0o644))

	report, err := newEngine(t, domain.MergeJoin).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, report.File)
	assert.Empty(t, report.Issues)

	_, err = newEngine(t, domain.MergeJoin).Run(context.Background(), filepath.Join(dir, "missing.go"))
	assert.Error(t, err)

	_, err = newEngine(t, domain.MergeJoin).RunSource(context.Background(), "bad.go", []byte("package"))
	assert.Error(t, err)
}

func TestReportJSON(t *testing.T) {
	t.Parallel()
	report := run(t, newEngine(t, domain.MergeWidening), counterSrc)
	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Upper":"+oo"`)

	var decoded tt.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Functions, decoded.Functions)
}

func TestReadSourceCode(t *testing.T) {
	t.Parallel()
	tempDir := createTempDir(t, "source_code_test")

	testFile := filepath.Join(tempDir, "test.go")
	content := "package main\n\nfunc main() {\n\tprintln(\"Hello, World!\")\n}"
	err := os.WriteFile(testFile, []byte(content), 0o644)
	require.NoError(t, err)

	sourceCode, err := ReadSourceCode(testFile)
	assert.NoError(t, err)
	assert.NotNil(t, sourceCode)
	assert.Len(t, sourceCode.Lines, 5)
	assert.Equal(t, "package main", sourceCode.Lines[0])
}

func BenchmarkRunSource(b *testing.B) {
	engine, err := NewEngine(DefaultConfig(), nil)
	if err != nil {
		b.Fatalf("failed to create engine: %v", err)
	}
	for i := 0; i < b.N; i++ {
		if _, err := engine.RunSource(context.Background(), "bench.go", []byte(counterSrc)); err != nil {
			b.Fatalf("failed to run engine: %v", err)
		}
	}
}
