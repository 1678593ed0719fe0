// # Description
//
// Package cfa models programs as control-flow automata (CFA), the input of the
// numeric analyses under internal/analysis.
//
// ## Control-Flow Automaton
//
// A CFA is a directed graph per function. In a CFA:
//
//   - Each node is a program location.
//   - Each edge carries one operation: an assumption, a declaration, a
//     statement, a call or return, or a sequence of those (MultiEdge).
//
// Expressions on edges are typed and reference variables by scope-qualified
// names ("fn::x" for locals, "::x" for globals), so that variables of
// different functions never clash inside one abstract state.
//
// ## Loops
//
// A LoopStructure lists the loop heads and the edges entering each loop from
// outside. Analyses use it to decide where to widen.
package cfa
