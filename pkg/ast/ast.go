/*
Package ast declares the syntax tree of the template language.

A Template is a list of Commands. Commands hold expressions (Expr), and
expressions refer to data through variable paths (Path). Each of the three
node families is closed: every kind implements Accept for its visitor
interface, so a translator that does not handle a kind fails to compile.

Trees are immutable once built and may be shared between goroutines.
*/
package ast

import (
	"fmt"

	"github.com/CTAG07/Quicksilver/pkg/escape"
)

// Pos is a source position. Line and Col are 1-based; the zero Pos is
// unknown.
type Pos struct {
	Name string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.Line == 0 {
		if p.Name == "" {
			return "-"
		}
		return p.Name
	}
	if p.Name == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.Name, p.Line, p.Col)
}

// Template is a parsed template.
type Template struct {
	Name string
	Body []Command
}

// -----------------------------------------------------------------------------
// Variable paths

// Path is a variable reference: a name, a numeric index, a descent into a
// child, or a computed [expr] segment.
type Path interface {
	Pos() Pos
	Accept(v PathVisitor) error
}

// PathVisitor dispatches on the kind of a Path.
type PathVisitor interface {
	VisitNameSeg(*NameSeg) error
	VisitNumberSeg(*NumberSeg) error
	VisitDescendSeg(*DescendSeg) error
	VisitExpandSeg(*ExpandSeg) error
}

// NameSeg is a plain identifier segment.
type NameSeg struct {
	Loc  Pos
	Name string
}

// NumberSeg is a numeric segment, decimal or 0x hex, as written.
type NumberSeg struct {
	Loc  Pos
	Text string
}

// DescendSeg is Parent.Child.
type DescendSeg struct {
	Loc    Pos
	Parent Path
	Child  Path
}

// ExpandSeg is Parent[Index].
type ExpandSeg struct {
	Loc    Pos
	Parent Path
	Index  Expr
}

func (n *NameSeg) Pos() Pos    { return n.Loc }
func (n *NumberSeg) Pos() Pos  { return n.Loc }
func (n *DescendSeg) Pos() Pos { return n.Loc }
func (n *ExpandSeg) Pos() Pos  { return n.Loc }

func (n *NameSeg) Accept(v PathVisitor) error    { return v.VisitNameSeg(n) }
func (n *NumberSeg) Accept(v PathVisitor) error  { return v.VisitNumberSeg(n) }
func (n *DescendSeg) Accept(v PathVisitor) error { return v.VisitDescendSeg(n) }
func (n *ExpandSeg) Accept(v PathVisitor) error  { return v.VisitExpandSeg(n) }

// -----------------------------------------------------------------------------
// Expressions

// Expr is an expression node.
type Expr interface {
	Pos() Pos
	Accept(v ExprVisitor) error
}

// ExprVisitor dispatches on the kind of an Expr.
type ExprVisitor interface {
	VisitVarRef(*VarRef) error
	VisitStringLit(*StringLit) error
	VisitDecimalLit(*DecimalLit) error
	VisitHexLit(*HexLit) error
	VisitUnary(*Unary) error
	VisitBinary(*Binary) error
	VisitFuncCall(*FuncCall) error
	VisitExists(*Exists) error
}

// VarRef is a variable used as an expression.
type VarRef struct {
	Loc  Pos
	Path Path
}

// StringLit is a string literal; Value is already unquoted.
type StringLit struct {
	Loc   Pos
	Value string
}

// DecimalLit is a decimal number as written.
type DecimalLit struct {
	Loc  Pos
	Text string
}

// HexLit is a 0x number as written.
type HexLit struct {
	Loc  Pos
	Text string
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	// Not is logical negation (!x).
	Not UnaryOp = iota
	// Negate is numeric negation (-x).
	Negate
	// Numeric forces a numeric reading of its operand (#x).
	Numeric
)

var unaryNames = [...]string{Not: "!", Negate: "-", Numeric: "#"}

func (op UnaryOp) String() string { return unaryNames[op] }

// Unary is Op X.
type Unary struct {
	Loc Pos
	Op  UnaryOp
	X   Expr
}

// BinaryOp is a binary operator. The parser picks the numeric variants of
// + == != when either operand is numeric.
type BinaryOp int

const (
	Add BinaryOp = iota // string concatenation
	NumAdd
	Sub
	Mul
	Div
	Mod
	Eq // string equality
	Ne
	NumEq
	NumNe
	Lt
	Gt
	Le
	Ge
	And
	Or
)

var binaryNames = [...]string{
	Add: "+", NumAdd: "#+", Sub: "-", Mul: "*", Div: "/", Mod: "%",
	Eq: "==", Ne: "!=", NumEq: "#==", NumNe: "#!=",
	Lt: "<", Gt: ">", Le: "<=", Ge: ">=", And: "&&", Or: "||",
}

func (op BinaryOp) String() string { return binaryNames[op] }

// Binary is X Op Y.
type Binary struct {
	Loc Pos
	Op  BinaryOp
	X   Expr
	Y   Expr
}

// FuncCall is Name(Args...). Name is a path made only of name and number
// segments; its dotted form is the function name.
type FuncCall struct {
	Loc  Pos
	Name Path
	Args []Expr
}

// Exists is ?X, true when X is a variable that resolves.
type Exists struct {
	Loc Pos
	X   Expr
}

func (n *VarRef) Pos() Pos     { return n.Loc }
func (n *StringLit) Pos() Pos  { return n.Loc }
func (n *DecimalLit) Pos() Pos { return n.Loc }
func (n *HexLit) Pos() Pos     { return n.Loc }
func (n *Unary) Pos() Pos      { return n.Loc }
func (n *Binary) Pos() Pos     { return n.Loc }
func (n *FuncCall) Pos() Pos   { return n.Loc }
func (n *Exists) Pos() Pos     { return n.Loc }

func (n *VarRef) Accept(v ExprVisitor) error     { return v.VisitVarRef(n) }
func (n *StringLit) Accept(v ExprVisitor) error  { return v.VisitStringLit(n) }
func (n *DecimalLit) Accept(v ExprVisitor) error { return v.VisitDecimalLit(n) }
func (n *HexLit) Accept(v ExprVisitor) error     { return v.VisitHexLit(n) }
func (n *Unary) Accept(v ExprVisitor) error      { return v.VisitUnary(n) }
func (n *Binary) Accept(v ExprVisitor) error     { return v.VisitBinary(n) }
func (n *FuncCall) Accept(v ExprVisitor) error   { return v.VisitFuncCall(n) }
func (n *Exists) Accept(v ExprVisitor) error     { return v.VisitExists(n) }

// -----------------------------------------------------------------------------
// Commands

// Command is a template statement.
type Command interface {
	Pos() Pos
	Accept(v CommandVisitor) error
}

// CommandVisitor dispatches on the kind of a Command.
type CommandVisitor interface {
	VisitDataChunk(*DataChunk) error
	VisitVar(*Var) error
	VisitUVar(*UVar) error
	VisitSet(*Set) error
	VisitName(*Name) error
	VisitIf(*If) error
	VisitEach(*Each) error
	VisitLoop(*Loop) error
	VisitWith(*With) error
	VisitEscape(*Escape) error
	VisitAutoEscape(*AutoEscape) error
	VisitInclude(*Include) error
	VisitLVar(*LVar) error
	VisitEVar(*EVar) error
	VisitDef(*Def) error
	VisitCall(*Call) error
}

// DataChunk is literal template text.
type DataChunk struct {
	Loc  Pos
	Text string
}

// Var displays an expression, escaped unless the value is known safe.
type Var struct {
	Loc Pos
	X   Expr
}

// UVar displays an expression without escaping.
type UVar struct {
	Loc Pos
	X   Expr
}

// Set assigns Value to the Target path, creating it.
type Set struct {
	Loc    Pos
	Target Path
	Value  Expr
}

// Name displays the last segment of the node Target resolves to.
type Name struct {
	Loc    Pos
	Target Path
}

// If runs Then when Cond holds, else Else (nil when absent).
type If struct {
	Loc  Pos
	Cond Expr
	Then []Command
	Else []Command
}

// Each runs Body once per child of Over, with Alias bound to the child.
type Each struct {
	Loc   Pos
	Alias string
	Over  Expr
	Body  []Command
}

// Loop counts Alias from Start to End (inclusive) by Step. Start and Step
// are nil when omitted and default to 0 and 1.
type Loop struct {
	Loc   Pos
	Alias string
	Start Expr
	End   Expr
	Step  Expr
	Body  []Command
}

// With runs Body with Alias bound to Value.
type With struct {
	Loc   Pos
	Alias string
	Value Expr
	Body  []Command
}

// Escape runs Body with Mode as the default escaping.
type Escape struct {
	Loc  Pos
	Mode string
	Body []Command
}

// AutoEscape runs Cmd with output escaping chosen for Context. It is never
// written by template authors; the autoescape pass inserts it.
type AutoEscape struct {
	Loc     Pos
	Context escape.Context
	Cmd     Command
}

// Include renders the template named by Target. A Soft include (linclude)
// skips a missing template instead of failing.
type Include struct {
	Loc    Pos
	Target Expr
	Soft   bool
}

// LVar renders the value of X as template source.
type LVar struct {
	Loc Pos
	X   Expr
}

// EVar renders the value of X as template source. It behaves like LVar.
type EVar struct {
	Loc Pos
	X   Expr
}

// Def declares a macro.
type Def struct {
	Loc    Pos
	Name   string
	Params []string
	Body   []Command
}

// Call invokes a macro.
type Call struct {
	Loc  Pos
	Name string
	Args []Expr
}

func (n *DataChunk) Pos() Pos  { return n.Loc }
func (n *Var) Pos() Pos        { return n.Loc }
func (n *UVar) Pos() Pos       { return n.Loc }
func (n *Set) Pos() Pos        { return n.Loc }
func (n *Name) Pos() Pos       { return n.Loc }
func (n *If) Pos() Pos         { return n.Loc }
func (n *Each) Pos() Pos       { return n.Loc }
func (n *Loop) Pos() Pos       { return n.Loc }
func (n *With) Pos() Pos       { return n.Loc }
func (n *Escape) Pos() Pos     { return n.Loc }
func (n *AutoEscape) Pos() Pos { return n.Loc }
func (n *Include) Pos() Pos    { return n.Loc }
func (n *LVar) Pos() Pos       { return n.Loc }
func (n *EVar) Pos() Pos       { return n.Loc }
func (n *Def) Pos() Pos        { return n.Loc }
func (n *Call) Pos() Pos       { return n.Loc }

func (n *DataChunk) Accept(v CommandVisitor) error  { return v.VisitDataChunk(n) }
func (n *Var) Accept(v CommandVisitor) error        { return v.VisitVar(n) }
func (n *UVar) Accept(v CommandVisitor) error       { return v.VisitUVar(n) }
func (n *Set) Accept(v CommandVisitor) error        { return v.VisitSet(n) }
func (n *Name) Accept(v CommandVisitor) error       { return v.VisitName(n) }
func (n *If) Accept(v CommandVisitor) error         { return v.VisitIf(n) }
func (n *Each) Accept(v CommandVisitor) error       { return v.VisitEach(n) }
func (n *Loop) Accept(v CommandVisitor) error       { return v.VisitLoop(n) }
func (n *With) Accept(v CommandVisitor) error       { return v.VisitWith(n) }
func (n *Escape) Accept(v CommandVisitor) error     { return v.VisitEscape(n) }
func (n *AutoEscape) Accept(v CommandVisitor) error { return v.VisitAutoEscape(n) }
func (n *Include) Accept(v CommandVisitor) error    { return v.VisitInclude(n) }
func (n *LVar) Accept(v CommandVisitor) error       { return v.VisitLVar(n) }
func (n *EVar) Accept(v CommandVisitor) error       { return v.VisitEVar(n) }
func (n *Def) Accept(v CommandVisitor) error        { return v.VisitDef(n) }
func (n *Call) Accept(v CommandVisitor) error       { return v.VisitCall(n) }
