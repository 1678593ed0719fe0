package cfa

import (
	"fmt"
	"math"
	"strings"
)

// TypeKind classifies the types the analysis distinguishes.
type TypeKind int

const (
	Void TypeKind = iota
	Int
	Float
	Pointer
	Struct
	Array
)

func (k TypeKind) String() string {
	switch k {
	case Void:
		return "void"
	case Int:
		return "int"
	case Float:
		return "float"
	case Pointer:
		return "pointer"
	case Struct:
		return "struct"
	case Array:
		return "array"
	default:
		return "invalid"
	}
}

// Type is the static type of an expression or variable.
type Type struct {
	Kind     TypeKind
	Bits     int
	Unsigned bool
	// Name is the source spelling, kept for printing only.
	Name string
}

var (
	VoidType    = Type{Kind: Void, Name: "void"}
	IntType     = Type{Kind: Int, Bits: 64, Name: "int"}
	UintType    = Type{Kind: Int, Bits: 64, Unsigned: true, Name: "uint"}
	BoolType    = Type{Kind: Int, Bits: 1, Unsigned: true, Name: "bool"}
	Float64Type = Type{Kind: Float, Bits: 64, Name: "float64"}
)

// IsNumeric reports whether values of t can be tracked by a numeric domain.
func (t Type) IsNumeric() bool { return t.Kind == Int || t.Kind == Float }

// IsVoid reports whether t carries no value.
func (t Type) IsVoid() bool { return t.Kind == Void }

// Range returns the natural value range of an integer type.
func (t Type) Range() (lo, hi float64) {
	if t.Kind != Int || t.Bits <= 0 {
		return 0, 0
	}
	bits := float64(t.Bits)
	if t.Unsigned {
		return 0, math.Exp2(bits) - 1
	}
	return -math.Exp2(bits - 1), math.Exp2(bits-1) - 1
}

func (t Type) String() string {
	if t.Name != "" {
		return t.Name
	}
	switch t.Kind {
	case Int:
		if t.Unsigned {
			return fmt.Sprintf("uint%d", t.Bits)
		}
		return fmt.Sprintf("int%d", t.Bits)
	case Float:
		return fmt.Sprintf("float%d", t.Bits)
	default:
		return t.Kind.String()
	}
}

// QualifiedName returns the scope-qualified variable name: "fn::name" for
// locals and "::name" for globals (fn == "").
func QualifiedName(fn, name string) string {
	return fn + "::" + name
}

// SplitName splits a qualified name into function and plain name.
func SplitName(qualified string) (fn, name string) {
	i := strings.Index(qualified, "::")
	if i < 0 {
		return "", qualified
	}
	return qualified[:i], qualified[i+2:]
}

// IsGlobal reports whether the qualified name refers to a global.
func IsGlobal(qualified string) bool {
	return strings.HasPrefix(qualified, "::")
}

const (
	// RetVal is the plain name of a function's return-value temporary.
	RetVal = "__retval"
	// TempPrefix prefixes evaluator temporaries.
	TempPrefix = "__tmp"
)

// ReturnVariable is the qualified return-value temporary of fn.
func ReturnVariable(fn string) string { return QualifiedName(fn, RetVal) }

// TempVariable is the k-th evaluator temporary of fn.
func TempVariable(fn string, k int) string {
	return QualifiedName(fn, fmt.Sprintf("%s%d", TempPrefix, k))
}

// IsTemporary reports whether the qualified name is an evaluator temporary.
func IsTemporary(qualified string) bool {
	_, name := SplitName(qualified)
	return strings.HasPrefix(name, TempPrefix)
}
