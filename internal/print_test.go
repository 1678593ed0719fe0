package internal

import (
	"go/token"
	"math"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	tt "github.com/gnolang/octagon/internal/types"
)

func init() {
	color.NoColor = true
}

func TestFormatReport(t *testing.T) {
	t.Parallel()
	report := &tt.Report{
		File:       "test.go",
		Entry:      "main",
		Iterations: 12,
		States:     9,
		Functions: []tt.FunctionResult{
			{
				Name:    "main",
				Reached: true,
				Exit: []tt.VarBound{
					{Name: "x", Lower: 10, Upper: 10},
					{Name: "count", Lower: 0, Upper: tt.Bound(math.Inf(1))},
				},
				Loops: []tt.LoopInvariant{{
					Line:        5,
					Bounds:      []tt.VarBound{{Name: "x", Lower: 0, Upper: 10}},
					Constraints: []string{"x - count <= 0"},
				}},
			},
			{Name: "dead"},
		},
		Issues: []tt.Issue{{
			Rule:     tt.RuleAssertionViolation,
			Filename: "test.go",
			Message:  "assertion (x == 10) may fail",
			Start:    token.Position{Filename: "test.go", Line: 2, Column: 2},
		}},
	}
	source := NewSourceCode([]byte("func main() {\n\tassert(x == 10)\n}\n"))

	expected := `test.go (entry main, 12 iterations, 9 states)
func main
  exit
    x     ∈ [10, 10]
    count ∈ [0, +oo]
  loop at line 5
    x ∈ [0, 10]
    x - count <= 0
func dead (exit unreachable)
error: assertion-violation
 --> test.go:2:2
  |
2 |         assert(x == 10)
  |         ^ assertion (x == 10) may fail

`
	assert.Equal(t, expected, FormatReport(report, source))
}

func TestFormatIssueWithoutSource(t *testing.T) {
	t.Parallel()
	issues := []tt.Issue{{
		Rule:     tt.RuleUnsupportedConstruct,
		Filename: "test.go",
		Message:  "unsupported construct: switch",
	}}
	assert.Equal(t,
		"error: unsupported-construct\n --> test.go\n  unsupported construct: switch\n\n",
		FormatIssuesWithArrows(issues, nil))
}

func TestVisualColumn(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line   string
		column int
		want   int
	}{
		{"x := 1", 1, 0},
		{"\tx := 1", 2, 8},
		{"\t\tif x", 4, 17},
		{"s := \"日本\" + y", 16, 13},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, calculateVisualColumn(tc.line, tc.column), tc.line)
	}
}
