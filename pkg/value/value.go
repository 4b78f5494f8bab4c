// Package value defines the runtime values passed to and returned from
// template functions.
package value

import (
	"strconv"

	"github.com/CTAG07/Quicksilver/pkg/convert"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
)

// Value is a dynamically typed template value.
type Value interface {
	String() string
	Int() int
	Bool() bool
	// Exists reports whether the value denotes something present. Only
	// variable references can be absent.
	Exists() bool
	IsEmpty() bool
	// EscapeMode is the escape state of the value's string form.
	EscapeMode() escape.Mode
}

// Resolver looks up local variables and data paths for variable references.
type Resolver interface {
	// Lookup resolves a dotted name without creating it, or returns nil.
	Lookup(name string) *data.Node
	// LoopState returns the first/last iteration flags of a loop variable.
	LoopState(name string) (first, last, ok bool)
}

type stringValue struct {
	s    string
	mode escape.Mode
}

// String returns a value holding s, in escape state none.
func String(s string) Value {
	return stringValue{s: s, mode: escape.ModeNone}
}

// Literal returns a value holding s in escape state mode. Template literals
// use escape.ModeConstant; escaping functions return their own mode.
func Literal(s string, mode escape.Mode) Value {
	return stringValue{s: s, mode: mode}
}

func (v stringValue) String() string          { return v.s }
func (v stringValue) Int() int                { return convert.ToInt(v.s) }
func (v stringValue) Bool() bool              { return convert.ToBool(v.s) }
func (v stringValue) Exists() bool            { return true }
func (v stringValue) IsEmpty() bool           { return v.s == "" }
func (v stringValue) EscapeMode() escape.Mode { return v.mode }

type intValue int

// Int returns a numeric value.
func Int(n int) Value {
	return intValue(n)
}

func (v intValue) String() string          { return strconv.Itoa(int(v)) }
func (v intValue) Int() int                { return int(v) }
func (v intValue) Bool() bool              { return v != 0 }
func (v intValue) Exists() bool            { return true }
func (v intValue) IsEmpty() bool           { return false }
func (v intValue) EscapeMode() escape.Mode { return escape.ModeConstant }

type boolValue bool

// Bool returns a boolean value. Its string form is "1" or "0".
func Bool(b bool) Value {
	return boolValue(b)
}

func (v boolValue) String() string          { return convert.FromBool(bool(v)) }
func (v boolValue) Int() int                { return v.intForm() }
func (v boolValue) Bool() bool              { return bool(v) }
func (v boolValue) Exists() bool            { return true }
func (v boolValue) IsEmpty() bool           { return false }
func (v boolValue) EscapeMode() escape.Mode { return escape.ModeConstant }

func (v boolValue) intForm() int {
	if v {
		return 1
	}
	return 0
}

// Variable is a live reference to a named variable. It is resolved every time
// it is read, so it observes assignments made after it was created.
type Variable struct {
	r    Resolver
	name string
}

// Var returns a live reference to name, resolved through r.
func Var(r Resolver, name string) *Variable {
	return &Variable{r: r, name: name}
}

// Name returns the referenced variable name.
func (v *Variable) Name() string {
	return v.name
}

// Node returns the node the name currently resolves to, or nil.
func (v *Variable) Node() *data.Node {
	return v.r.Lookup(v.name)
}

// LoopState returns the iteration flags bound to the referenced name.
func (v *Variable) LoopState() (first, last, ok bool) {
	return v.r.LoopState(v.name)
}

func (v *Variable) String() string {
	if n := v.Node(); n != nil {
		return n.Value()
	}
	return ""
}

func (v *Variable) Int() int {
	return convert.ToInt(v.String())
}

func (v *Variable) Bool() bool {
	return convert.ToBool(v.String())
}

func (v *Variable) Exists() bool {
	return v.Node() != nil
}

func (v *Variable) IsEmpty() bool {
	return v.String() == ""
}

func (v *Variable) EscapeMode() escape.Mode {
	if n := v.Node(); n != nil {
		return n.EscapeMode()
	}
	return escape.ModeNone
}
