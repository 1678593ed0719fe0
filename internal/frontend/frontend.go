// Package frontend lowers a parsed Go file into the control-flow automata
// analyzed by the octagon domain.
//
// The frontend supports the imperative core of Go over numeric values:
// variable declarations, assignments, if and for statements, calls of the
// functions defined in the file and returns. Conditions using && || and !
// become short-circuit diamonds of assume edges. Values the domain cannot
// represent, such as fields, elements and strings, are lowered to opaque
// expressions the analysis treats as unknown.
//
// Calls of assert and __VERIFIER_assert branch to the error node of the
// enclosing function when their argument may be false; assume and
// __VERIFIER_assume restrict the paths to those where the argument holds.
package frontend

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"

	"github.com/gnolang/octagon/internal/analysis/cfa"
)

// UnsupportedError reports a Go construct the frontend cannot lower.
type UnsupportedError struct {
	Pos       token.Position
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported construct: %s", e.Pos, e.Construct)
}

const (
	callPrefix = "__call"
	condPrefix = "__cond"
)

var (
	assertFuncs = set.From([]string{"assert", "__VERIFIER_assert"})
	assumeFuncs = set.From([]string{"assume", "__VERIFIER_assume"})
	errorFuncs  = set.From([]string{"reach_error", "__VERIFIER_error"})
)

var opaqueType = cfa.Type{Kind: cfa.Struct, Name: "opaque"}

type builder struct {
	fset    *token.FileSet
	prog    *cfa.Program
	funcs   map[string]*funcBuilder
	order   []*funcBuilder
	globals map[string]*cfa.IdExpr
	specs   []*ast.GenDecl
	named   map[string]cfa.Type
}

// Build lowers every function of file that has a body. The function named
// entry becomes the program entry; its prologue declares the package level
// variables followed by its own parameters, which are left unconstrained.
func Build(fset *token.FileSet, file *ast.File, entry string) (*cfa.Program, error) {
	b := &builder{
		fset:    fset,
		prog:    cfa.NewProgram(),
		funcs:   make(map[string]*funcBuilder),
		globals: make(map[string]*cfa.IdExpr),
		named:   make(map[string]cfa.Type),
	}
	var decls []*ast.FuncDecl
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			b.collect(d)
		case *ast.FuncDecl:
			// methods are opaque to the analysis
			if d.Body != nil && d.Recv == nil {
				decls = append(decls, d)
			}
		}
	}
	if err := b.checkRecursion(decls); err != nil {
		return nil, err
	}
	for _, d := range decls {
		fb, err := b.newFuncBuilder(d)
		if err != nil {
			return nil, err
		}
		b.funcs[d.Name.Name] = fb
		b.order = append(b.order, fb)
	}
	main, ok := b.funcs[entry]
	if !ok {
		return nil, errors.Errorf("entry function %s not found", entry)
	}
	b.prog.Entry = main.fn

	// the entry function declares the globals, so it is lowered first
	if err := main.build(true); err != nil {
		return nil, err
	}
	for _, fb := range b.order {
		if fb == main {
			continue
		}
		if err := fb.build(false); err != nil {
			return nil, err
		}
	}
	return b.prog, nil
}

func (b *builder) collect(d *ast.GenDecl) {
	switch d.Tok {
	case token.VAR, token.CONST:
		b.specs = append(b.specs, d)
	case token.TYPE:
		for _, spec := range d.Specs {
			ts := spec.(*ast.TypeSpec)
			t := b.typeOf(ts.Type)
			t.Name = ts.Name.Name
			b.named[ts.Name.Name] = t
		}
	}
}

func (b *builder) position(p token.Pos) token.Position { return b.fset.Position(p) }

func (b *builder) unsupported(n ast.Node, construct string) error {
	return &UnsupportedError{Pos: b.position(n.Pos()), Construct: construct}
}

// checkRecursion rejects call cycles between the defined functions.
func (b *builder) checkRecursion(decls []*ast.FuncDecl) error {
	byName := make(map[string]*ast.FuncDecl, len(decls))
	for _, d := range decls {
		byName[d.Name.Name] = d
	}
	calls := make(map[string][]string, len(decls))
	for _, d := range decls {
		ast.Inspect(d.Body, func(n ast.Node) bool {
			if call, ok := n.(*ast.CallExpr); ok {
				if id, ok := call.Fun.(*ast.Ident); ok && byName[id.Name] != nil {
					calls[d.Name.Name] = append(calls[d.Name.Name], id.Name)
				}
			}
			return true
		})
	}

	const (
		unvisited = iota
		active
		done
	)
	color := make(map[string]int, len(decls))
	var visit func(name string) error
	visit = func(name string) error {
		color[name] = active
		for _, callee := range calls[name] {
			switch color[callee] {
			case active:
				return b.unsupported(byName[callee], "recursive function "+callee)
			case unvisited:
				if err := visit(callee); err != nil {
					return err
				}
			}
		}
		color[name] = done
		return nil
	}
	for _, d := range decls {
		if color[d.Name.Name] == unvisited {
			if err := visit(d.Name.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

var basicTypes = map[string]cfa.Type{
	"int":     cfa.IntType,
	"int8":    {Kind: cfa.Int, Bits: 8, Name: "int8"},
	"int16":   {Kind: cfa.Int, Bits: 16, Name: "int16"},
	"int32":   {Kind: cfa.Int, Bits: 32, Name: "int32"},
	"rune":    {Kind: cfa.Int, Bits: 32, Name: "rune"},
	"int64":   {Kind: cfa.Int, Bits: 64, Name: "int64"},
	"uint":    cfa.UintType,
	"uint8":   {Kind: cfa.Int, Bits: 8, Unsigned: true, Name: "uint8"},
	"byte":    {Kind: cfa.Int, Bits: 8, Unsigned: true, Name: "byte"},
	"uint16":  {Kind: cfa.Int, Bits: 16, Unsigned: true, Name: "uint16"},
	"uint32":  {Kind: cfa.Int, Bits: 32, Unsigned: true, Name: "uint32"},
	"uint64":  {Kind: cfa.Int, Bits: 64, Unsigned: true, Name: "uint64"},
	"uintptr": {Kind: cfa.Int, Bits: 64, Unsigned: true, Name: "uintptr"},
	"bool":    cfa.BoolType,
	"float32": {Kind: cfa.Float, Bits: 32, Name: "float32"},
	"float64": cfa.Float64Type,
}

// typeOf maps a type expression onto the CFA type model.
func (b *builder) typeOf(e ast.Expr) cfa.Type {
	switch x := e.(type) {
	case *ast.Ident:
		if t, ok := basicTypes[x.Name]; ok {
			return t
		}
		if t, ok := b.named[x.Name]; ok {
			return t
		}
		return cfa.Type{Kind: cfa.Struct, Name: x.Name}
	case *ast.ParenExpr:
		return b.typeOf(x.X)
	case *ast.StarExpr:
		return cfa.Type{Kind: cfa.Pointer, Name: types.ExprString(x)}
	case *ast.ArrayType, *ast.Ellipsis:
		return cfa.Type{Kind: cfa.Array, Name: types.ExprString(x)}
	default:
		return cfa.Type{Kind: cfa.Struct, Name: types.ExprString(e)}
	}
}

// isType reports whether e names a type, making a call of e a conversion.
func (b *builder) isType(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.Ident:
		_, basic := basicTypes[x.Name]
		_, named := b.named[x.Name]
		return basic || named
	case *ast.ParenExpr:
		return b.isType(x.X)
	case *ast.ArrayType, *ast.StarExpr:
		return true
	default:
		return false
	}
}

// nondetTypes maps the suffix of a __VERIFIER_nondet_ function onto its
// result type.
var nondetTypes = map[string]cfa.Type{
	"bool":   cfa.BoolType,
	"char":   {Kind: cfa.Int, Bits: 8, Name: "char"},
	"uchar":  {Kind: cfa.Int, Bits: 8, Unsigned: true, Name: "uchar"},
	"short":  {Kind: cfa.Int, Bits: 16, Name: "short"},
	"ushort": {Kind: cfa.Int, Bits: 16, Unsigned: true, Name: "ushort"},
	"int":    {Kind: cfa.Int, Bits: 32, Name: "int32"},
	"uint":   {Kind: cfa.Int, Bits: 32, Unsigned: true, Name: "uint32"},
	"long":   cfa.IntType,
	"ulong":  cfa.UintType,
	"float":  {Kind: cfa.Float, Bits: 32, Name: "float32"},
	"double": cfa.Float64Type,
}
