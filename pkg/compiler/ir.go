package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/convert"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/invariant"
	"github.com/CTAG07/Quicksilver/pkg/value"
)

// Code is an IR code fragment. String is its textual emission; eval is the
// interpreting backend. The Go type eval returns is fixed by the Type of the
// Expr holding the fragment: string for STRING and VAR_NAME, int for INT,
// bool for BOOLEAN, value.Value for VALUE, *data.Node for DATA.
type Code interface {
	fmt.Stringer
	eval(rc *renderContext) (any, error)
}

func evalString(rc *renderContext, c Code) (string, error) {
	v, err := c.eval(rc)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	invariant.Invariant(ok, "%s produced %T, want string", c, v)
	return s, nil
}

func evalInt(rc *renderContext, c Code) (int, error) {
	v, err := c.eval(rc)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	invariant.Invariant(ok, "%s produced %T, want int", c, v)
	return n, nil
}

func evalBool(rc *renderContext, c Code) (bool, error) {
	v, err := c.eval(rc)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	invariant.Invariant(ok, "%s produced %T, want bool", c, v)
	return b, nil
}

func evalValue(rc *renderContext, c Code) (value.Value, error) {
	v, err := c.eval(rc)
	if err != nil {
		return nil, err
	}
	val, ok := v.(value.Value)
	invariant.Invariant(ok, "%s produced %T, want value.Value", c, v)
	return val, nil
}

func evalNode(rc *renderContext, c Code) (*data.Node, error) {
	v, err := c.eval(rc)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*data.Node)
	invariant.Invariant(ok, "%s produced %T, want *data.Node", c, v)
	return n, nil
}

func evalMode(rc *renderContext, c Code) (escape.Mode, error) {
	v, err := c.eval(rc)
	if err != nil {
		return escape.ModeNone, err
	}
	m, ok := v.(escape.Mode)
	invariant.Invariant(ok, "%s produced %T, want escape.Mode", c, v)
	return m, nil
}

func joinCodes(codes []Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// -----------------------------------------------------------------------------
// Literals and strings

// StringLit is a constant string.
type StringLit struct {
	Value string
}

func (c *StringLit) String() string                   { return strconv.Quote(c.Value) }
func (c *StringLit) eval(*renderContext) (any, error) { return c.Value, nil }

// IntLit is a constant integer.
type IntLit struct {
	Value int
}

func (c *IntLit) String() string                   { return strconv.Itoa(c.Value) }
func (c *IntLit) eval(*renderContext) (any, error) { return c.Value, nil }

// BoolLit is a constant boolean.
type BoolLit struct {
	Value bool
}

func (c *BoolLit) String() string                   { return strconv.FormatBool(c.Value) }
func (c *BoolLit) eval(*renderContext) (any, error) { return c.Value, nil }

// Concat appends string parts left to right.
type Concat struct {
	Parts []Code
}

func (c *Concat) String() string {
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

func (c *Concat) eval(rc *renderContext) (any, error) {
	var b strings.Builder
	for _, p := range c.Parts {
		s, err := evalString(rc, p)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// -----------------------------------------------------------------------------
// Data access

// DataContext is the render context: local scopes over the data tree.
type DataContext struct{}

func (c *DataContext) String() string                      { return "ctx" }
func (c *DataContext) eval(rc *renderContext) (any, error) { return rc, nil }

// Resolve looks a variable name up through the local scopes and the data
// tree. With Create set, missing nodes are created; otherwise a missing node
// yields nil.
type Resolve struct {
	Name   Code
	Create bool
}

func (c *Resolve) String() string {
	if c.Create {
		return fmt.Sprintf("ctx.create(%s)", c.Name)
	}
	return fmt.Sprintf("ctx.resolve(%s)", c.Name)
}

func (c *Resolve) eval(rc *renderContext) (any, error) {
	name, err := evalString(rc, c.Name)
	if err != nil {
		return nil, err
	}
	if c.Create {
		return rc.Create(name), nil
	}
	return rc.Lookup(name), nil
}

// VarRef makes a live variable reference from a name.
type VarRef struct {
	Name Code
}

func (c *VarRef) String() string { return fmt.Sprintf("ctx.var(%s)", c.Name) }

func (c *VarRef) eval(rc *renderContext) (any, error) {
	name, err := evalString(rc, c.Name)
	if err != nil {
		return nil, err
	}
	return value.Value(value.Var(rc, name)), nil
}

// Exists probes whether a variable name resolves. It never fails on a
// missing node.
type Exists struct {
	Name Code
}

func (c *Exists) String() string { return fmt.Sprintf("ctx.exists(%s)", c.Name) }

func (c *Exists) eval(rc *renderContext) (any, error) {
	name, err := evalString(rc, c.Name)
	if err != nil {
		return nil, err
	}
	return rc.Lookup(name) != nil, nil
}

// -----------------------------------------------------------------------------
// Conversions

// Convert changes the representation of X between the STRING, INT, BOOLEAN,
// VALUE and DATA types.
type Convert struct {
	X    Code
	From Type
	To   Type
}

var convertNames = map[Type]string{
	TypeString: "string",
	TypeInt:    "int",
	TypeBool:   "bool",
	TypeValue:  "value",
}

func (c *Convert) String() string {
	return fmt.Sprintf("%s(%s)", convertNames[c.To], c.X)
}

func (c *Convert) eval(rc *renderContext) (any, error) {
	switch c.From {
	case TypeString:
		s, err := evalString(rc, c.X)
		if err != nil {
			return nil, err
		}
		return convertString(s, escape.ModeNone, c.To), nil

	case TypeInt:
		n, err := evalInt(rc, c.X)
		if err != nil {
			return nil, err
		}
		switch c.To {
		case TypeString:
			return strconv.Itoa(n), nil
		case TypeBool:
			return n != 0, nil
		case TypeValue:
			return value.Int(n), nil
		}

	case TypeBool:
		b, err := evalBool(rc, c.X)
		if err != nil {
			return nil, err
		}
		switch c.To {
		case TypeString:
			return convert.FromBool(b), nil
		case TypeInt:
			if b {
				return 1, nil
			}
			return 0, nil
		case TypeValue:
			return value.Bool(b), nil
		}

	case TypeValue:
		v, err := evalValue(rc, c.X)
		if err != nil {
			return nil, err
		}
		switch c.To {
		case TypeString:
			return v.String(), nil
		case TypeInt:
			return v.Int(), nil
		case TypeBool:
			return v.Bool(), nil
		}

	case TypeData:
		n, err := evalNode(rc, c.X)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return convertString("", escape.ModeNone, c.To), nil
		}
		return convertString(n.Value(), n.EscapeMode(), c.To), nil
	}
	invariant.Unreachable("no conversion from %s to %s", c.From, c.To)
	return nil, nil
}

func convertString(s string, mode escape.Mode, to Type) any {
	switch to {
	case TypeInt:
		return convert.ToInt(s)
	case TypeBool:
		return convert.ToBool(s)
	case TypeValue:
		return value.Literal(s, mode)
	}
	return s
}

// -----------------------------------------------------------------------------
// Operators

// Not is boolean negation.
type Not struct {
	X Code
}

func (c *Not) String() string { return fmt.Sprintf("!%s", c.X) }

func (c *Not) eval(rc *renderContext) (any, error) {
	b, err := evalBool(rc, c.X)
	if err != nil {
		return nil, err
	}
	return !b, nil
}

// Negate is integer negation.
type Negate struct {
	X Code
}

func (c *Negate) String() string { return fmt.Sprintf("-%s", c.X) }

func (c *Negate) eval(rc *renderContext) (any, error) {
	n, err := evalInt(rc, c.X)
	if err != nil {
		return nil, err
	}
	return -n, nil
}

func opSymbol(op ast.BinaryOp) string {
	switch op {
	case ast.NumAdd:
		return "+"
	case ast.NumEq:
		return "=="
	case ast.NumNe:
		return "!="
	}
	return op.String()
}

// Arith is integer arithmetic. Division and modulo by zero yield 0.
type Arith struct {
	Op   ast.BinaryOp
	X, Y Code
}

func (c *Arith) String() string { return fmt.Sprintf("(%s %s %s)", c.X, opSymbol(c.Op), c.Y) }

func (c *Arith) eval(rc *renderContext) (any, error) {
	x, err := evalInt(rc, c.X)
	if err != nil {
		return nil, err
	}
	y, err := evalInt(rc, c.Y)
	if err != nil {
		return nil, err
	}
	switch c.Op {
	case ast.NumAdd:
		return x + y, nil
	case ast.Sub:
		return x - y, nil
	case ast.Mul:
		return x * y, nil
	case ast.Div:
		if y == 0 {
			return 0, nil
		}
		return x / y, nil
	case ast.Mod:
		if y == 0 {
			return 0, nil
		}
		return x % y, nil
	}
	invariant.Unreachable("arith operator %s", c.Op)
	return nil, nil
}

// Compare is integer comparison.
type Compare struct {
	Op   ast.BinaryOp
	X, Y Code
}

func (c *Compare) String() string { return fmt.Sprintf("(%s %s %s)", c.X, opSymbol(c.Op), c.Y) }

func (c *Compare) eval(rc *renderContext) (any, error) {
	x, err := evalInt(rc, c.X)
	if err != nil {
		return nil, err
	}
	y, err := evalInt(rc, c.Y)
	if err != nil {
		return nil, err
	}
	switch c.Op {
	case ast.NumEq:
		return x == y, nil
	case ast.NumNe:
		return x != y, nil
	case ast.Lt:
		return x < y, nil
	case ast.Gt:
		return x > y, nil
	case ast.Le:
		return x <= y, nil
	case ast.Ge:
		return x >= y, nil
	}
	invariant.Unreachable("compare operator %s", c.Op)
	return nil, nil
}

// StringEquals compares two strings by value.
type StringEquals struct {
	X, Y   Code
	Negate bool
}

func (c *StringEquals) String() string {
	op := "=="
	if c.Negate {
		op = "!="
	}
	return fmt.Sprintf("(%s %s %s)", c.X, op, c.Y)
}

func (c *StringEquals) eval(rc *renderContext) (any, error) {
	x, err := evalString(rc, c.X)
	if err != nil {
		return nil, err
	}
	y, err := evalString(rc, c.Y)
	if err != nil {
		return nil, err
	}
	return (x == y) != c.Negate, nil
}

// Logical is short-circuit && or ||.
type Logical struct {
	Op   ast.BinaryOp
	X, Y Code
}

func (c *Logical) String() string { return fmt.Sprintf("(%s %s %s)", c.X, c.Op, c.Y) }

func (c *Logical) eval(rc *renderContext) (any, error) {
	x, err := evalBool(rc, c.X)
	if err != nil {
		return nil, err
	}
	if (c.Op == ast.Or && x) || (c.Op == ast.And && !x) {
		return x, nil
	}
	return evalBool(rc, c.Y)
}

// -----------------------------------------------------------------------------
// Functions and macros

// CallFunc calls a registered function by name.
type CallFunc struct {
	Name string
	Args []Code
}

func (c *CallFunc) String() string { return fmt.Sprintf("call(%q, [%s])", c.Name, joinCodes(c.Args)) }

func (c *CallFunc) eval(rc *renderContext) (any, error) {
	args := make([]value.Value, len(c.Args))
	for i, a := range c.Args {
		v, err := evalValue(rc, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return rc.callFunc(c.Name, args)
}

// IsEscapingFunc asks the function registry whether Name is an escaping
// function.
type IsEscapingFunc struct {
	Name string
}

func (c *IsEscapingFunc) String() string { return fmt.Sprintf("isEscaping(%q)", c.Name) }

func (c *IsEscapingFunc) eval(rc *renderContext) (any, error) {
	return rc.funcs.IsEscapingFunction(c.Name), nil
}

// MacroRef is a macro resolved at compile time.
type MacroRef struct {
	Macro *Macro
}

func (c *MacroRef) String() string                   { return c.Macro.symbol }
func (c *MacroRef) eval(*renderContext) (any, error) { return c.Macro, nil }

// MacroByName is a macro resolved by name at render time, among the macros of
// every template rendered so far.
type MacroByName struct {
	Name string
}

func (c *MacroByName) String() string { return fmt.Sprintf("ctx.macro(%q)", c.Name) }

func (c *MacroByName) eval(rc *renderContext) (any, error) {
	return rc.macro(c.Name)
}

// -----------------------------------------------------------------------------
// Escape states

// ModeLit is a constant escape state.
type ModeLit struct {
	Mode escape.Mode
}

func (c *ModeLit) String() string                   { return fmt.Sprintf("mode(%s)", c.Mode) }
func (c *ModeLit) eval(*renderContext) (any, error) { return c.Mode, nil }

// VarMode reads the escape state stored on a variable's node. Missing nodes
// are unescaped.
type VarMode struct {
	Name Code
}

func (c *VarMode) String() string { return fmt.Sprintf("ctx.mode(%s)", c.Name) }

func (c *VarMode) eval(rc *renderContext) (any, error) {
	name, err := evalString(rc, c.Name)
	if err != nil {
		return nil, err
	}
	if n := rc.Lookup(name); n != nil {
		return n.EscapeMode(), nil
	}
	return escape.ModeNone, nil
}

// FuncMode is the escape state of a function result: the function's own mode
// for an escaping function, else the combination of the argument states.
type FuncMode struct {
	Name string
	Args []Code
}

func (c *FuncMode) String() string { return fmt.Sprintf("funcMode(%q, [%s])", c.Name, joinCodes(c.Args)) }

func (c *FuncMode) eval(rc *renderContext) (any, error) {
	if m, ok := rc.funcs.EscapeMode(c.Name); ok {
		return m, nil
	}
	if len(c.Args) == 0 {
		return escape.ModeNone, nil
	}
	return combineEval(rc, c.Args)
}

// CombineModes is the escape.Combine of its parts.
type CombineModes struct {
	Parts []Code
}

func (c *CombineModes) String() string { return fmt.Sprintf("combine(%s)", joinCodes(c.Parts)) }

func (c *CombineModes) eval(rc *renderContext) (any, error) {
	return combineEval(rc, c.Parts)
}

func combineEval(rc *renderContext, parts []Code) (any, error) {
	modes := make([]escape.Mode, len(parts))
	for i, p := range parts {
		m, err := evalMode(rc, p)
		if err != nil {
			return nil, err
		}
		modes[i] = m
	}
	return escape.CombineAll(modes...), nil
}

// ModeEscaped is true when an escape state is anything but none.
type ModeEscaped struct {
	Mode Code
}

func (c *ModeEscaped) String() string { return fmt.Sprintf("escaped(%s)", c.Mode) }

func (c *ModeEscaped) eval(rc *renderContext) (any, error) {
	m, err := evalMode(rc, c.Mode)
	if err != nil {
		return nil, err
	}
	return m.IsEscaped(), nil
}
