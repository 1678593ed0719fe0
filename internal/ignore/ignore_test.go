package ignore

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const src = `package main

//octagon:ignore:assertion-violation
func f(x int) {
	assert(x > 0)
}

func main() {
	x := 1
	assert(x > 0) //octagon:ignore
	//octagon:ignore:unsupported-construct
	switch x {
	}
	assert(x > 1)
}
`

func parse(t *testing.T, src string) (*Directives, []error) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	require.NoError(t, err)
	return Parse(fset, f)
}

func TestIgnored(t *testing.T) {
	t.Parallel()
	d, errs := parse(t, src)
	require.Empty(t, errs)

	tests := []struct {
		name    string
		line    int
		rule    string
		ignored bool
	}{
		{"function scope", 5, "assertion-violation", true},
		{"function scope other rule", 5, "unsupported-construct", false},
		{"inline any rule", 10, "assertion-violation", true},
		{"next statement", 12, "unsupported-construct", true},
		{"next statement other rule", 12, "assertion-violation", false},
		{"uncovered", 14, "assertion-violation", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pos := token.Position{Filename: "test.go", Line: tt.line}
			assert.Equal(t, tt.ignored, d.Ignored(pos, tt.rule))
		})
	}
}

func TestFileScope(t *testing.T) {
	t.Parallel()
	d, errs := parse(t, "//octagon:ignore\n\npackage main\n\nfunc main() {\n}\n")
	require.Empty(t, errs)
	assert.True(t, d.Ignored(token.Position{Filename: "test.go", Line: 5}, "iteration-limit"))
	assert.False(t, d.Ignored(token.Position{Filename: "other.go", Line: 5}, "iteration-limit"))
}

func TestMalformed(t *testing.T) {
	t.Parallel()
	tests := []string{
		"//octagon:ignoreall",
		"//octagon:ignore:",
		"//octagon:ignore: , ",
	}
	for _, directive := range tests {
		t.Run(directive, func(t *testing.T) {
			t.Parallel()
			d, errs := parse(t, "package main\n\nfunc main() {\n\t"+directive+"\n\tprintln()\n}\n")
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), "test.go:4")
			assert.False(t, d.Ignored(token.Position{Filename: "test.go", Line: 5}, "assertion-violation"))
		})
	}
}

func TestNilDirectives(t *testing.T) {
	t.Parallel()
	var d *Directives
	assert.False(t, d.Ignored(token.Position{Filename: "test.go", Line: 1}, "assertion-violation"))
}
