package compiler

import (
	"fmt"
	"time"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/escape"
)

// Compile translates a parsed template into a Template. Macro bodies are
// compiled after the main body, in definition order, so a call may precede
// the def it refers to.
func Compile(tmpl *ast.Template, opts Options) (*Template, error) {
	start := time.Now()
	opts = opts.withDefaults(tmpl.Name)
	switch opts.EscapeMode {
	case escape.ModeNone, escape.ModeHTML, escape.ModeJS, escape.ModeURL, escape.ModeCSS:
	case escape.ModeAuto:
		tmpl = InjectAutoEscape(tmpl)
	default:
		return nil, fmt.Errorf("compile %s: invalid escape mode %s", opts.Name, opts.EscapeMode)
	}

	t := &Template{name: opts.Name, opts: opts}
	sess := newSession(t)
	if err := (&macroCollector{sess: sess}).walk(tmpl.Body); err != nil {
		return nil, err
	}

	tt := &templateTranslator{sess: sess}
	body, err := tt.block(tmpl.Body)
	if err != nil {
		return nil, err
	}
	t.body = body

	for m := sess.nextQueued(); m != nil; m = sess.nextQueued() {
		if m.body, err = tt.block(m.def.Body); err != nil {
			return nil, err
		}
	}
	t.macros = sess.order

	opts.Logger.Debug("compiled template",
		"template", t.name,
		"statements", len(t.body),
		"macros", len(t.macros),
		"elapsed", time.Since(start))
	return t, nil
}

// templateTranslator turns commands into statements. Each Visit method
// appends to out; block collects one nested command list.
type templateTranslator struct {
	sess *session
	out  []Stmt
}

func (tt *templateTranslator) block(cmds []ast.Command) ([]Stmt, error) {
	saved := tt.out
	tt.out = nil
	defer func() { tt.out = saved }()
	for _, c := range cmds {
		if err := c.Accept(tt); err != nil {
			return nil, err
		}
	}
	body := tt.out
	if body == nil && cmds != nil {
		body = []Stmt{}
	}
	return body, nil
}

func (tt *templateTranslator) emit(s Stmt) {
	tt.out = append(tt.out, s)
}

func (tt *templateTranslator) exprs() *exprTranslator {
	return newExprTranslator(tt.sess)
}

func (tt *templateTranslator) VisitDataChunk(n *ast.DataChunk) error {
	tt.emit(&WriteText{Text: n.Text})
	return nil
}

func (tt *templateTranslator) VisitVar(n *ast.Var) error {
	x, err := tt.exprs().toString(n.X)
	if err != nil {
		return err
	}
	exempt, err := newEscapingEvaluator(tt.sess).decide(n.X)
	if err != nil {
		return err
	}
	lit, static := exempt.(*BoolLit)
	switch {
	case static && lit.Value:
		tt.emit(&WriteUnescaped{Pos: n.Loc, X: x.Code})
	case static:
		tt.emit(&WriteEscaped{Pos: n.Loc, X: x.Code})
	default:
		tt.emit(&WriteChoice{Pos: n.Loc, X: x.Code, Exempt: exempt})
	}
	return nil
}

func (tt *templateTranslator) VisitUVar(n *ast.UVar) error {
	x, err := tt.exprs().toString(n.X)
	if err != nil {
		return err
	}
	tt.emit(&WriteUnescaped{Pos: n.Loc, X: x.Code})
	return nil
}

func (tt *templateTranslator) VisitSet(n *ast.Set) error {
	target, err := tt.sess.translatePath(n.Target)
	if err != nil {
		return err
	}
	v, err := tt.exprs().toString(n.Value)
	if err != nil {
		return err
	}
	s := &SetVar{Pos: n.Loc, Name: target.Code, Value: v.Code}
	if tt.sess.opts.PropagateEscapeStatus {
		if s.Mode, err = newEscapingEvaluator(tt.sess).escapeState(n.Value); err != nil {
			return err
		}
	}
	tt.emit(s)
	return nil
}

func (tt *templateTranslator) VisitName(n *ast.Name) error {
	target, err := tt.sess.translatePath(n.Target)
	if err != nil {
		return err
	}
	tt.emit(&WriteName{Pos: n.Loc, Node: &Resolve{Name: target.Code}})
	return nil
}

func (tt *templateTranslator) VisitIf(n *ast.If) error {
	cond, err := tt.exprs().toBool(n.Cond)
	if err != nil {
		return err
	}
	s := &IfStmt{Pos: n.Loc, Cond: cond.Code}
	if s.Then, err = tt.block(n.Then); err != nil {
		return err
	}
	if s.Else, err = tt.block(n.Else); err != nil {
		return err
	}
	tt.emit(s)
	return nil
}

func (tt *templateTranslator) VisitEach(n *ast.Each) error {
	over, err := tt.exprs().toData(n.Over)
	if err != nil {
		return err
	}
	body, err := tt.block(n.Body)
	if err != nil {
		return err
	}
	tt.emit(&EachStmt{Pos: n.Loc, Alias: n.Alias, Over: over.Code, Body: body})
	return nil
}

func (tt *templateTranslator) VisitLoop(n *ast.Loop) error {
	bound := func(e ast.Expr, def int) (Code, error) {
		if e == nil {
			return &IntLit{Value: def}, nil
		}
		x, err := tt.exprs().toInt(e)
		return x.Code, err
	}
	start, err := bound(n.Start, 0)
	if err != nil {
		return err
	}
	end, err := tt.exprs().toInt(n.End)
	if err != nil {
		return err
	}
	step, err := bound(n.Step, 1)
	if err != nil {
		return err
	}
	body, err := tt.block(n.Body)
	if err != nil {
		return err
	}
	tt.emit(&LoopStmt{
		Pos:   n.Loc,
		Alias: n.Alias,
		Start: start,
		End:   end.Code,
		Step:  step,
		Temps: [3]string{tt.sess.temp("start"), tt.sess.temp("end"), tt.sess.temp("step")},
		Body:  body,
	})
	return nil
}

func (tt *templateTranslator) VisitWith(n *ast.With) error {
	s := &WithStmt{Pos: n.Loc, Alias: n.Alias}
	if ref, ok := n.Value.(*ast.VarRef); ok {
		name, err := tt.sess.translatePath(ref.Path)
		if err != nil {
			return err
		}
		s.Path, s.Value = true, name.Code
	} else {
		v, err := tt.exprs().toString(n.Value)
		if err != nil {
			return err
		}
		s.Value = v.Code
	}
	var err error
	if s.Body, err = tt.block(n.Body); err != nil {
		return err
	}
	tt.emit(s)
	return nil
}

func (tt *templateTranslator) VisitEscape(n *ast.Escape) error {
	mode, err := escape.ParseMode(n.Mode)
	if err != nil {
		return compileErr(n.Loc, err, "invalid escape command")
	}
	if mode == escape.ModeAuto {
		return compileErr(n.Loc, nil, "escape mode auto is only valid for a whole template")
	}
	body, err := tt.block(n.Body)
	if err != nil {
		return err
	}
	tt.emit(&EscapeStmt{Pos: n.Loc, Mode: mode, Body: body})
	return nil
}

func (tt *templateTranslator) VisitAutoEscape(n *ast.AutoEscape) error {
	body, err := tt.block([]ast.Command{n.Cmd})
	if err != nil {
		return err
	}
	tt.emit(&AutoEscapeStmt{Pos: n.Loc, Context: n.Context, Body: body})
	return nil
}

func (tt *templateTranslator) VisitInclude(n *ast.Include) error {
	name, err := tt.exprs().toString(n.Target)
	if err != nil {
		return err
	}
	tt.emit(&IncludeStmt{Pos: n.Loc, Name: name.Code, Soft: n.Soft})
	return nil
}

func (tt *templateTranslator) VisitLVar(n *ast.LVar) error { return tt.inline(n.Loc, "lvar", n.X) }

func (tt *templateTranslator) VisitEVar(n *ast.EVar) error { return tt.inline(n.Loc, "evar", n.X) }

func (tt *templateTranslator) inline(pos ast.Pos, kind string, e ast.Expr) error {
	src, err := tt.exprs().toString(e)
	if err != nil {
		return err
	}
	tt.emit(&InlineStmt{Pos: pos, Kind: kind, Source: src.Code})
	return nil
}

// VisitDef emits nothing: the collector pass registered the macro and its
// body is compiled from the queue.
func (tt *templateTranslator) VisitDef(*ast.Def) error { return nil }

func (tt *templateTranslator) VisitCall(n *ast.Call) error {
	s := &CallMacroStmt{Pos: n.Loc, Target: &MacroByName{Name: n.Name}}
	if m, ok := tt.sess.macros[n.Name]; ok {
		if len(n.Args) != m.ArgumentCount() {
			return compileErr(n.Loc, nil, "macro %s takes %d argument(s), got %d", n.Name, m.ArgumentCount(), len(n.Args))
		}
		s.Target = &MacroRef{Macro: m}
	}
	for _, a := range n.Args {
		if ref, ok := a.(*ast.VarRef); ok {
			name, err := tt.sess.translatePath(ref.Path)
			if err != nil {
				return err
			}
			s.Args = append(s.Args, macroArg{Code: name.Code, Path: true})
			continue
		}
		v, err := tt.exprs().toString(a)
		if err != nil {
			return err
		}
		s.Args = append(s.Args, macroArg{Code: v.Code})
	}
	tt.emit(s)
	return nil
}
