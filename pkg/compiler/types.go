package compiler

import "fmt"

// Type is the semantic type of an IR expression.
type Type int

const (
	TypeString Type = iota
	TypeInt
	TypeBool
	// TypeValue is a dynamically typed value, as passed to functions.
	TypeValue
	// TypeData is a data node, possibly absent.
	TypeData
	// TypeVarName is a string known to denote an unresolved variable path.
	TypeVarName
	// TypeDataContext is the render context itself. It is never a cast
	// target.
	TypeDataContext
	// TypeMacro is a macro reference. It is never a cast target.
	TypeMacro
	TypeVoid
	TypeUnknown
)

var typeNames = [...]string{
	TypeString:      "STRING",
	TypeInt:         "INT",
	TypeBool:        "BOOLEAN",
	TypeValue:       "VALUE",
	TypeData:        "DATA",
	TypeVarName:     "VAR_NAME",
	TypeDataContext: "DATA_CONTEXT",
	TypeMacro:       "MACRO",
	TypeVoid:        "VOID",
	TypeUnknown:     "UNKNOWN",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Expr is a typed IR expression.
type Expr struct {
	Type Type
	Code Code
}

func (e Expr) String() string {
	return fmt.Sprintf("%s:%s", e.Type, e.Code)
}

func stringExpr(c Code) Expr  { return Expr{Type: TypeString, Code: c} }
func intExpr(c Code) Expr     { return Expr{Type: TypeInt, Code: c} }
func boolExpr(c Code) Expr    { return Expr{Type: TypeBool, Code: c} }
func valueExpr(c Code) Expr   { return Expr{Type: TypeValue, Code: c} }
func varNameExpr(c Code) Expr { return Expr{Type: TypeVarName, Code: c} }
