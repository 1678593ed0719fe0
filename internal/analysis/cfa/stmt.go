package cfa

// Stmt is a statement carried by a StatementEdge.
type Stmt interface {
	isStmt()
	String() string
}

// AssignStmt stores Rhs into Lhs. Rhs may be a call whose result is
// assigned.
type AssignStmt struct {
	Lhs Expr
	Rhs Expr
}

func (*AssignStmt) isStmt()          {}
func (s *AssignStmt) String() string { return s.Lhs.String() + " = " + s.Rhs.String() }

// CallStmt calls a function and discards its result.
type CallStmt struct {
	Call *CallExpr
}

func (*CallStmt) isStmt()          {}
func (s *CallStmt) String() string { return s.Call.String() }

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X Expr
}

func (*ExprStmt) isStmt()          {}
func (s *ExprStmt) String() string { return s.X.String() }

// Declaration introduces a variable.
type Declaration struct {
	// Name is the qualified name.
	Name string
	Type Type
	// Global marks a top-level variable.
	Global bool
	// Init is the initializer, nil when absent.
	Init Expr
}

func (d *Declaration) String() string {
	_, name := SplitName(d.Name)
	s := "var " + name + " " + d.Type.String()
	if d.Init != nil {
		s += " = " + d.Init.String()
	}
	return s
}
