// Package ignore parses //octagon:ignore directives that suppress issues.
//
// A directive without rules suppresses every rule; rules are listed after a
// colon:
//
//	//octagon:ignore
//	//octagon:ignore:assertion-violation,unsupported-construct
//
// A directive before the package clause covers the file. Directly above a
// function it covers the function. Otherwise it covers the statement on its
// own line, or on the next line when it stands alone.
package ignore

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
)

const prefix = "//octagon:ignore"

type scope struct {
	// rules is empty when every rule is suppressed
	rules    *set.Set[string]
	from, to int
}

// Directives are the ignore scopes of one file.
type Directives struct {
	filename string
	scopes   []scope
}

// Parse collects the directives of f. The file must have been parsed with
// comments. Malformed directives are returned as errors next to the valid
// ones.
func Parse(fset *token.FileSet, f *ast.File) (*Directives, []error) {
	d := &Directives{filename: fset.Position(f.Package).Filename}
	lines := statementLines(fset, f)
	pkg := fset.Position(f.Package).Line

	var errs []error
	for _, group := range f.Comments {
		for _, c := range group.List {
			if !strings.HasPrefix(c.Text, prefix) {
				continue
			}
			rules, err := parseRules(c.Text[len(prefix):])
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "%s", fset.Position(c.Slash)))
				continue
			}
			from, to := d.extent(fset, f, c, lines, pkg)
			d.scopes = append(d.scopes, scope{rules: rules, from: from, to: to})
		}
	}
	return d, errs
}

func parseRules(rest string) (*set.Set[string], error) {
	rules := set.New[string](0)
	if rest == "" {
		return rules, nil
	}
	list, ok := strings.CutPrefix(rest, ":")
	if !ok {
		return nil, errors.Errorf("malformed directive %q", prefix+rest)
	}
	for _, r := range strings.Split(list, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rules.Insert(r)
		}
	}
	if rules.Empty() {
		return nil, errors.New("no rules after colon")
	}
	return rules, nil
}

// extent returns the first and last line covered by the directive c.
func (d *Directives) extent(fset *token.FileSet, f *ast.File, c *ast.Comment, lines map[int]ast.Stmt, pkg int) (int, int) {
	pos := fset.Position(c.Slash)
	if pos.Line < pkg {
		return 1, fset.Position(f.End()).Line
	}
	if stmt, ok := lines[pos.Line]; ok && fset.Position(stmt.Pos()).Offset < pos.Offset {
		return fset.Position(stmt.Pos()).Line, fset.Position(stmt.End()).Line
	}
	for _, decl := range f.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fset.Position(fn.Pos()).Line == pos.Line+1 {
			return pos.Line, fset.Position(fn.End()).Line
		}
	}
	if stmt, ok := lines[pos.Line+1]; ok {
		return pos.Line, fset.Position(stmt.End()).Line
	}
	return pos.Line, pos.Line
}

// statementLines maps each line to the first statement starting on it.
func statementLines(fset *token.FileSet, f *ast.File) map[int]ast.Stmt {
	lines := make(map[int]ast.Stmt)
	ast.Inspect(f, func(n ast.Node) bool {
		if stmt, ok := n.(ast.Stmt); ok {
			line := fset.Position(stmt.Pos()).Line
			if _, seen := lines[line]; !seen {
				lines[line] = stmt
			}
		}
		return n != nil
	})
	return lines
}

// Ignored reports whether an issue of rule at pos is suppressed.
func (d *Directives) Ignored(pos token.Position, rule string) bool {
	if d == nil || pos.Filename != d.filename {
		return false
	}
	for _, s := range d.scopes {
		if pos.Line < s.from || pos.Line > s.to {
			continue
		}
		if s.rules.Empty() || s.rules.Contains(rule) {
			return true
		}
	}
	return false
}
