package compiler

import (
	"fmt"
	"strconv"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
)

// Stmt is a compiled template command.
type Stmt interface {
	exec(rc *renderContext) error
	dump(d *dumper)
}

// WriteText writes template text unchanged.
type WriteText struct {
	Text string
}

func (s *WriteText) exec(rc *renderContext) error { return rc.write(s.Text) }

func (s *WriteText) dump(d *dumper) { d.line("write %s", strconv.Quote(s.Text)) }

// WriteEscaped writes X through the current escaper.
type WriteEscaped struct {
	Pos ast.Pos
	X   Code
}

func (s *WriteEscaped) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	v, err := evalString(rc, s.X)
	if err != nil {
		return err
	}
	return rc.writeEscaped(v)
}

func (s *WriteEscaped) dump(d *dumper) { d.line("write escaped %s", s.X) }

// WriteUnescaped writes X as is.
type WriteUnescaped struct {
	Pos ast.Pos
	X   Code
}

func (s *WriteUnescaped) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	v, err := evalString(rc, s.X)
	if err != nil {
		return err
	}
	return rc.write(v)
}

func (s *WriteUnescaped) dump(d *dumper) { d.line("write %s", s.X) }

// WriteChoice writes X unescaped when Exempt holds at render time, escaped
// otherwise.
type WriteChoice struct {
	Pos    ast.Pos
	X      Code
	Exempt Code
}

func (s *WriteChoice) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	v, err := evalString(rc, s.X)
	if err != nil {
		return err
	}
	exempt, err := evalBool(rc, s.Exempt)
	if err != nil {
		return err
	}
	if exempt {
		return rc.write(v)
	}
	return rc.writeEscaped(v)
}

func (s *WriteChoice) dump(d *dumper) {
	d.line("if %s", s.Exempt)
	d.indent(func() { d.line("write %s", s.X) })
	d.line("else")
	d.indent(func() { d.line("write escaped %s", s.X) })
}

// SetVar assigns Value to the node named by Name, creating it. Mode, when
// set, is stored as the escape state of the value.
type SetVar struct {
	Pos   ast.Pos
	Name  Code
	Value Code
	Mode  Code
}

func (s *SetVar) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	name, err := evalString(rc, s.Name)
	if err != nil {
		return err
	}
	v, err := evalString(rc, s.Value)
	if err != nil {
		return err
	}
	mode := escape.ModeNone
	if s.Mode != nil {
		if mode, err = evalMode(rc, s.Mode); err != nil {
			return err
		}
	}
	n := rc.Create(name)
	n.SetValue(v)
	n.SetEscapeMode(mode)
	return nil
}

func (s *SetVar) dump(d *dumper) {
	d.line("ctx.create(%s).set(%s)", s.Name, s.Value)
	if s.Mode != nil {
		d.line("ctx.create(%s).setMode(%s)", s.Name, s.Mode)
	}
}

// WriteName writes the last path segment of a node, escaped.
type WriteName struct {
	Pos  ast.Pos
	Node Code
}

func (s *WriteName) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	n, err := evalNode(rc, s.Node)
	if err != nil || n == nil {
		return err
	}
	return rc.writeEscaped(n.Name())
}

func (s *WriteName) dump(d *dumper) { d.line("write escaped name(%s)", s.Node) }

// IfStmt branches on Cond.
type IfStmt struct {
	Pos  ast.Pos
	Cond Code
	Then []Stmt
	Else []Stmt
}

func (s *IfStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	cond, err := evalBool(rc, s.Cond)
	if err != nil {
		return err
	}
	if cond {
		return execBlock(rc, s.Then)
	}
	return execBlock(rc, s.Else)
}

func (s *IfStmt) dump(d *dumper) {
	d.line("if %s", s.Cond)
	d.block(s.Then)
	if s.Else != nil {
		d.line("else")
		d.block(s.Else)
	}
}

// EachStmt runs Body for every child of Over, in order, with Alias bound to
// the child. One scope spans the whole loop.
type EachStmt struct {
	Pos   ast.Pos
	Alias string
	Over  Code
	Body  []Stmt
}

func (s *EachStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	parent, err := evalNode(rc, s.Over)
	if err != nil || parent == nil {
		return err
	}
	children := parent.Children()
	rc.pushScope()
	defer rc.popScope()
	for i, child := range children {
		rc.bind(s.Alias, &binding{node: child, loop: true, first: i == 0, last: i == len(children)-1})
		if err := execBlock(rc, s.Body); err != nil {
			return err
		}
	}
	return nil
}

func (s *EachStmt) dump(d *dumper) {
	d.line("each %s in %s", s.Alias, s.Over)
	d.block(s.Body)
}

// LoopStmt counts Alias from Start to End inclusive by Step. The bounds are
// evaluated once; a zero step or a step pointing away from End runs nothing.
type LoopStmt struct {
	Pos   ast.Pos
	Alias string
	Start Code
	End   Code
	Step  Code
	Temps [3]string
	Body  []Stmt
}

func (s *LoopStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	start, err := evalInt(rc, s.Start)
	if err != nil {
		return err
	}
	end, err := evalInt(rc, s.End)
	if err != nil {
		return err
	}
	step, err := evalInt(rc, s.Step)
	if err != nil {
		return err
	}
	if step == 0 || (step > 0 && start > end) || (step < 0 && start < end) {
		return nil
	}

	rc.pushScope()
	defer rc.popScope()
	counter := data.NewLeaf(s.Alias, "")
	for i := start; ; i += step {
		counter.SetValue(strconv.Itoa(i))
		rc.bind(s.Alias, &binding{
			node:  counter,
			loop:  true,
			first: i == start,
			last:  i == end,
		})
		if err := execBlock(rc, s.Body); err != nil {
			return err
		}
		if stepPassesEnd(i, end, step) {
			return nil
		}
	}
}

// stepPassesEnd reports whether i+step lies beyond end. The distance is taken
// in unsigned arithmetic so bounds near the int limits cannot wrap.
func stepPassesEnd(i, end, step int) bool {
	if step > 0 {
		return uint(end)-uint(i) < uint(step)
	}
	return uint(i)-uint(end) < -uint(step)
}

func (s *LoopStmt) dump(d *dumper) {
	d.line("%s = %s; %s = %s; %s = %s", s.Temps[0], s.Start, s.Temps[1], s.End, s.Temps[2], s.Step)
	d.line("loop %s from %s to %s step %s", s.Alias, s.Temps[0], s.Temps[1], s.Temps[2])
	d.block(s.Body)
}

// WithStmt binds Alias for Body. With Path set, Value names a variable: the
// body runs only if it resolves, and Alias refers to its node. Otherwise
// Value is a string and Alias is bound to it.
type WithStmt struct {
	Pos   ast.Pos
	Alias string
	Path  bool
	Value Code
	Body  []Stmt
}

func (s *WithStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	v, err := evalString(rc, s.Value)
	if err != nil {
		return err
	}
	b := &binding{node: data.NewLeaf(s.Alias, v)}
	if s.Path {
		n := rc.Lookup(v)
		if n == nil {
			return nil
		}
		b = &binding{node: n}
	}
	rc.pushScope()
	defer rc.popScope()
	rc.bind(s.Alias, b)
	return execBlock(rc, s.Body)
}

func (s *WithStmt) dump(d *dumper) {
	if s.Path {
		d.line("with %s = ctx.resolve(%s) if exists", s.Alias, s.Value)
	} else {
		d.line("with %s = %s", s.Alias, s.Value)
	}
	d.block(s.Body)
}

// EscapeStmt runs Body with Mode as the default escaping.
type EscapeStmt struct {
	Pos  ast.Pos
	Mode escape.Mode
	Body []Stmt
}

func (s *EscapeStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	rc.pushEscaper(s.Mode.FunctionName())
	prevAuto := rc.autoActive
	rc.autoActive = false
	err := execBlock(rc, s.Body)
	rc.autoActive = prevAuto
	rc.popEscaper()
	return err
}

func (s *EscapeStmt) dump(d *dumper) {
	d.line("escape %s", s.Mode)
	d.block(s.Body)
}

// AutoEscapeStmt runs Body with the escaper of an HTML context computed by
// the autoescape pass.
type AutoEscapeStmt struct {
	Pos     ast.Pos
	Context escape.Context
	Body    []Stmt
}

func (s *AutoEscapeStmt) exec(rc *renderContext) error {
	rc.pushEscaper(s.Context.FunctionName())
	err := execBlock(rc, s.Body)
	rc.popEscaper()
	return err
}

func (s *AutoEscapeStmt) dump(d *dumper) {
	d.line("autoescape %s", s.Context)
	d.block(s.Body)
}

// IncludeStmt renders another template by name.
type IncludeStmt struct {
	Pos  ast.Pos
	Name Code
	Soft bool
}

func (s *IncludeStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	name, err := evalString(rc, s.Name)
	if err != nil {
		return err
	}
	return rc.include(name, s.Soft)
}

func (s *IncludeStmt) dump(d *dumper) {
	if s.Soft {
		d.line("include %s if present", s.Name)
	} else {
		d.line("include %s", s.Name)
	}
}

// InlineStmt renders the value of Source as a template.
type InlineStmt struct {
	Pos    ast.Pos
	Kind   string
	Source Code
}

func (s *InlineStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	src, err := evalString(rc, s.Source)
	if err != nil {
		return err
	}
	return rc.renderInline(fmt.Sprintf("%s@%s", s.Kind, s.Pos), src)
}

func (s *InlineStmt) dump(d *dumper) { d.line("%s %s", s.Kind, s.Source) }

// macroArg is a compiled call argument. Path arguments bind the parameter to
// the named variable; the others bind it to the string value.
type macroArg struct {
	Code Code
	Path bool
}

// CallMacroStmt calls a macro. Target yields the *Macro.
type CallMacroStmt struct {
	Pos    ast.Pos
	Target Code
	Args   []macroArg
}

func (s *CallMacroStmt) exec(rc *renderContext) error {
	rc.mark(s.Pos)
	target, err := s.Target.eval(rc)
	if err != nil {
		return err
	}
	m := target.(*Macro)
	if len(s.Args) != m.ArgumentCount() {
		return fmt.Errorf("macro %s takes %d argument(s), got %d", m.name, m.ArgumentCount(), len(s.Args))
	}

	// Arguments are evaluated before the callee scope exists.
	bindings := make([]*binding, len(s.Args))
	for i, a := range s.Args {
		v, err := evalString(rc, a.Code)
		if err != nil {
			return err
		}
		if a.Path {
			bindings[i] = rc.aliasFor(v)
			continue
		}
		param, err := m.ArgumentName(i)
		if err != nil {
			return err
		}
		bindings[i] = &binding{node: data.NewLeaf(param, v)}
	}
	return rc.invokeMacro(m, bindings)
}

func (s *CallMacroStmt) dump(d *dumper) {
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		if a.Path {
			args[i] = "alias " + a.Code.String()
		} else {
			args[i] = a.Code.String()
		}
	}
	d.line("call %s(%s)", s.Target, joinStrings(args))
}
