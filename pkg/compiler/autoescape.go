package compiler

import (
	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/escape"
)

// InjectAutoEscape returns a copy of tmpl where every escaped output command
// outside escape blocks and macro bodies is wrapped in an ast.AutoEscape
// carrying the HTML context the surrounding template text puts it in.
//
// Contexts are computed from the literal text only. A branch continues with
// the state after its then arm; loop bodies are followed once. Macro bodies
// are left alone since their context depends on the call site; they escape
// from the live output at render time instead.
func InjectAutoEscape(tmpl *ast.Template) *ast.Template {
	a := &autoEscaper{tr: escape.NewTracker()}
	return &ast.Template{Name: tmpl.Name, Body: a.rewrite(tmpl.Body)}
}

type autoEscaper struct {
	tr     *escape.Tracker
	result ast.Command
}

func (a *autoEscaper) rewrite(cmds []ast.Command) []ast.Command {
	if cmds == nil {
		return nil
	}
	out := make([]ast.Command, 0, len(cmds))
	for _, c := range cmds {
		a.result = c
		_ = c.Accept(a)
		out = append(out, a.result)
	}
	return out
}

func (a *autoEscaper) wrap(c ast.Command) {
	a.result = &ast.AutoEscape{Loc: c.Pos(), Context: a.tr.Context(), Cmd: c}
}

func (a *autoEscaper) VisitDataChunk(n *ast.DataChunk) error {
	a.tr.Write(n.Text)
	return nil
}

func (a *autoEscaper) VisitVar(n *ast.Var) error   { a.wrap(n); return nil }
func (a *autoEscaper) VisitName(n *ast.Name) error { a.wrap(n); return nil }
func (a *autoEscaper) VisitLVar(n *ast.LVar) error { a.wrap(n); return nil }
func (a *autoEscaper) VisitEVar(n *ast.EVar) error { a.wrap(n); return nil }

func (a *autoEscaper) VisitUVar(*ast.UVar) error             { return nil }
func (a *autoEscaper) VisitSet(*ast.Set) error               { return nil }
func (a *autoEscaper) VisitInclude(*ast.Include) error       { return nil }
func (a *autoEscaper) VisitDef(*ast.Def) error               { return nil }
func (a *autoEscaper) VisitCall(*ast.Call) error             { return nil }
func (a *autoEscaper) VisitEscape(*ast.Escape) error         { return nil }
func (a *autoEscaper) VisitAutoEscape(*ast.AutoEscape) error { return nil }

func (a *autoEscaper) VisitIf(n *ast.If) error {
	start := a.tr
	c := *n
	a.tr = start.Clone()
	c.Then = a.rewrite(n.Then)
	after := a.tr
	a.tr = start.Clone()
	c.Else = a.rewrite(n.Else)
	a.tr = after
	a.result = &c
	return nil
}

func (a *autoEscaper) VisitEach(n *ast.Each) error {
	c := *n
	c.Body = a.rewrite(n.Body)
	a.result = &c
	return nil
}

func (a *autoEscaper) VisitLoop(n *ast.Loop) error {
	c := *n
	c.Body = a.rewrite(n.Body)
	a.result = &c
	return nil
}

func (a *autoEscaper) VisitWith(n *ast.With) error {
	c := *n
	c.Body = a.rewrite(n.Body)
	a.result = &c
	return nil
}
