package frontend

import "go/ast"

type deviation int

const (
	// exits terminates the program
	exits deviation = iota + 1
	// panics unwinds the program
	panics
)

func (d deviation) String() string {
	switch d {
	case exits:
		return "exit"
	case panics:
		return "panic"
	default:
		return ""
	}
}

type callName struct {
	pkg  string
	name string
}

// deviatingFuncs lists the calls after which control never continues.
var deviatingFuncs = map[callName]deviation{
	{"os", "Exit"}:     exits,
	{"log", "Fatal"}:   exits,
	{"log", "Fatalf"}:  exits,
	{"log", "Fatalln"}: exits,
	{"", "abort"}:      exits,
	{"", "panic"}:      panics,
	{"log", "Panic"}:   panics,
	{"log", "Panicf"}:  panics,
	{"log", "Panicln"}: panics,
}

// deviates reports whether call never returns.
func deviates(call *ast.CallExpr) (deviation, bool) {
	var c callName
	switch v := call.Fun.(type) {
	case *ast.Ident:
		c = callName{name: v.Name}
	case *ast.SelectorExpr:
		ident, ok := v.X.(*ast.Ident)
		if !ok {
			return 0, false
		}
		c = callName{pkg: ident.Name, name: v.Sel.Name}
	default:
		return 0, false
	}
	d, ok := deviatingFuncs[c]
	return d, ok
}
