package compiler

import (
	"fmt"
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/ast"
)

// session is the mutable state of one compilation: the temporary counter and
// the macro registry with its deferred compilation queue. It is created per
// Compile call and dropped afterwards.
type session struct {
	opts   Options
	tmpl   *Template
	temps  int
	macros map[string]*Macro
	order  []*Macro
	queue  []*Macro
}

func newSession(t *Template) *session {
	return &session{
		opts:   t.opts,
		tmpl:   t,
		macros: make(map[string]*Macro),
	}
}

// temp returns a fresh temporary name.
func (s *session) temp(prefix string) string {
	s.temps++
	return fmt.Sprintf("_%s%d", prefix, s.temps)
}

// defineMacro registers def and queues its body for compilation.
func (s *session) defineMacro(def *ast.Def) error {
	if prev, ok := s.macros[def.Name]; ok {
		return &CompileError{Pos: def.Loc, Msg: fmt.Sprintf("macro %s already defined at %s", def.Name, prev.pos)}
	}
	seen := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		if seen[p] {
			return &CompileError{Pos: def.Loc, Msg: fmt.Sprintf("macro %s declares parameter %s twice", def.Name, p)}
		}
		seen[p] = true
	}
	m := &Macro{
		name:   def.Name,
		symbol: s.temp("macro_" + strings.ReplaceAll(def.Name, ".", "_") + "_"),
		params: def.Params,
		pos:    def.Loc,
		def:    def,
		owner:  s.tmpl,
	}
	s.macros[def.Name] = m
	s.order = append(s.order, m)
	s.queue = append(s.queue, m)
	return nil
}

// nextQueued pops the oldest macro awaiting compilation.
func (s *session) nextQueued() *Macro {
	if len(s.queue) == 0 {
		return nil
	}
	m := s.queue[0]
	s.queue = s.queue[1:]
	return m
}

func compileErr(pos ast.Pos, err error, format string, args ...any) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err}
}

// macroCollector registers every def in a command tree, nested ones
// included, so calls may precede the definition they use.
type macroCollector struct {
	sess *session
}

func (c *macroCollector) walk(cmds []ast.Command) error {
	for _, cmd := range cmds {
		if err := cmd.Accept(c); err != nil {
			return err
		}
	}
	return nil
}

func (c *macroCollector) VisitDataChunk(*ast.DataChunk) error { return nil }
func (c *macroCollector) VisitVar(*ast.Var) error             { return nil }
func (c *macroCollector) VisitUVar(*ast.UVar) error           { return nil }
func (c *macroCollector) VisitSet(*ast.Set) error             { return nil }
func (c *macroCollector) VisitName(*ast.Name) error           { return nil }
func (c *macroCollector) VisitInclude(*ast.Include) error     { return nil }
func (c *macroCollector) VisitLVar(*ast.LVar) error           { return nil }
func (c *macroCollector) VisitEVar(*ast.EVar) error           { return nil }
func (c *macroCollector) VisitCall(*ast.Call) error           { return nil }

func (c *macroCollector) VisitIf(n *ast.If) error {
	if err := c.walk(n.Then); err != nil {
		return err
	}
	return c.walk(n.Else)
}

func (c *macroCollector) VisitEach(n *ast.Each) error     { return c.walk(n.Body) }
func (c *macroCollector) VisitLoop(n *ast.Loop) error     { return c.walk(n.Body) }
func (c *macroCollector) VisitWith(n *ast.With) error     { return c.walk(n.Body) }
func (c *macroCollector) VisitEscape(n *ast.Escape) error { return c.walk(n.Body) }

func (c *macroCollector) VisitAutoEscape(n *ast.AutoEscape) error {
	return n.Cmd.Accept(c)
}

func (c *macroCollector) VisitDef(n *ast.Def) error {
	if err := c.sess.defineMacro(n); err != nil {
		return err
	}
	return c.walk(n.Body)
}
