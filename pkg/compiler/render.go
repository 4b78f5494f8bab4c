package compiler

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/funcs"
	"github.com/CTAG07/Quicksilver/pkg/invariant"
	"github.com/CTAG07/Quicksilver/pkg/value"
)

// binding is a local variable: a node plus a path below it, or a path below
// the data root when node is nil. Loop and each variables also carry their
// iteration flags.
type binding struct {
	node  *data.Node
	path  string
	loop  bool
	first bool
	last  bool
}

func (b *binding) base(root *data.Node) *data.Node {
	if b.node != nil {
		return b.node
	}
	return root
}

func (b *binding) get(root *data.Node, rest string) *data.Node {
	return b.base(root).Get(joinPath(b.path, rest))
}

func (b *binding) create(root *data.Node, rest string) *data.Node {
	return b.base(root).Create(joinPath(b.path, rest))
}

func joinPath(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "." + b
}

func splitFirst(name string) (first, rest string) {
	first, rest, _ = strings.Cut(name, ".")
	return first, rest
}

type scope map[string]*binding

// renderContext is the state of one render: local scopes, the escaper stack,
// the include stack, the macros seen so far and the last marked position. It
// is never shared between renders.
type renderContext struct {
	tmpl     *Template
	root     *data.Node
	w        io.Writer
	res      ResourceLoader
	funcs    *funcs.Registry
	loader   TemplateLoader
	scopes   []scope
	escapers []string
	includes []string
	macros   map[string]*Macro
	pos      ast.Pos

	// tracker follows the output when the template escapes automatically;
	// autoActive makes escaped writes use its context.
	tracker    *escape.Tracker
	autoActive bool
}

func newRenderContext(t *Template, root *data.Node, w io.Writer, res ResourceLoader) *renderContext {
	if root == nil {
		root = data.New()
	}
	rc := &renderContext{
		tmpl:     t,
		root:     root,
		w:        w,
		res:      res,
		funcs:    t.opts.Funcs,
		loader:   t.opts.Loader,
		escapers: []string{defaultEscaper(t.opts.EscapeMode)},
		includes: []string{t.name},
		macros:   make(map[string]*Macro),
	}
	if t.opts.EscapeMode == escape.ModeAuto {
		rc.tracker = escape.NewTracker()
	}
	return rc
}

// defaultEscaper names the escaping function for writes outside any escape
// command. Auto-escaped templates fall back to HTML escaping where the
// autoescape pass could not determine a context.
func defaultEscaper(mode escape.Mode) string {
	if mode == escape.ModeAuto {
		return escape.ModeHTML.FunctionName()
	}
	return mode.FunctionName()
}

func (rc *renderContext) mark(pos ast.Pos) {
	rc.pos = pos
}

// wrap attaches the current template and position to err, once.
func (rc *renderContext) wrap(err error) error {
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return &RenderError{Template: rc.tmpl.name, Pos: rc.pos, Err: err}
}

func (rc *renderContext) finish(err error) error {
	invariant.Invariant(len(rc.scopes) == 0 || err != nil, "%d scope(s) left open", len(rc.scopes))
	if err != nil {
		return rc.wrap(err)
	}
	return nil
}

func execBlock(rc *renderContext, stmts []Stmt) error {
	for _, s := range stmts {
		if err := s.exec(rc); err != nil {
			return rc.wrap(err)
		}
	}
	return nil
}

// renderTemplate renders t as the outermost template.
func (rc *renderContext) renderTemplate(t *Template) error {
	rc.registerMacros(t)
	return rc.finish(execBlock(rc, t.body))
}

// renderNested renders t into the current output and scopes.
func (rc *renderContext) renderNested(t *Template) error {
	rc.registerMacros(t)
	prev := rc.tmpl
	rc.tmpl = t
	err := execBlock(rc, t.body)
	rc.tmpl = prev
	return err
}

func (rc *renderContext) registerMacros(t *Template) {
	for _, m := range t.macros {
		rc.macros[m.name] = m
	}
}

// -----------------------------------------------------------------------------
// Output

func (rc *renderContext) write(s string) error {
	if rc.tracker != nil {
		rc.tracker.Write(s)
	}
	_, err := io.WriteString(rc.w, s)
	return err
}

func (rc *renderContext) writeEscaped(s string) error {
	fn := rc.escapers[len(rc.escapers)-1]
	if rc.autoActive && rc.tracker != nil {
		fn = rc.tracker.Context().FunctionName()
	}
	if fn == "" {
		return rc.write(s)
	}
	v, err := rc.funcs.Call(fn, value.String(s))
	if err != nil {
		return err
	}
	return rc.write(v.String())
}

func (rc *renderContext) pushEscaper(fn string) {
	rc.escapers = append(rc.escapers, fn)
}

func (rc *renderContext) popEscaper() {
	invariant.Invariant(len(rc.escapers) > 1, "escaper stack underflow")
	rc.escapers = rc.escapers[:len(rc.escapers)-1]
}

// -----------------------------------------------------------------------------
// Scopes and variables

func (rc *renderContext) pushScope() {
	rc.scopes = append(rc.scopes, scope{})
}

func (rc *renderContext) popScope() {
	invariant.Invariant(len(rc.scopes) > 0, "scope stack underflow")
	rc.scopes = rc.scopes[:len(rc.scopes)-1]
}

func (rc *renderContext) bind(name string, b *binding) {
	invariant.Invariant(len(rc.scopes) > 0, "bind %s outside any scope", name)
	rc.scopes[len(rc.scopes)-1][name] = b
}

func (rc *renderContext) binding(name string) *binding {
	for i := len(rc.scopes) - 1; i >= 0; i-- {
		if b, ok := rc.scopes[i][name]; ok {
			return b
		}
	}
	return nil
}

// Lookup resolves a variable name without creating anything.
func (rc *renderContext) Lookup(name string) *data.Node {
	first, rest := splitFirst(name)
	if b := rc.binding(first); b != nil {
		return b.get(rc.root, rest)
	}
	return rc.root.Get(name)
}

// Create resolves a variable name, creating missing nodes.
func (rc *renderContext) Create(name string) *data.Node {
	first, rest := splitFirst(name)
	if b := rc.binding(first); b != nil {
		return b.create(rc.root, rest)
	}
	return rc.root.Create(name)
}

// LoopState reports the iteration flags of a loop or each variable.
func (rc *renderContext) LoopState(name string) (first, last, ok bool) {
	if strings.Contains(name, ".") {
		return false, false, false
	}
	b := rc.binding(name)
	if b == nil || !b.loop {
		return false, false, false
	}
	return b.first, b.last, true
}

// aliasFor returns a binding that refers to whatever name refers to now,
// without creating it.
func (rc *renderContext) aliasFor(name string) *binding {
	first, rest := splitFirst(name)
	b := rc.binding(first)
	if b == nil {
		return &binding{path: name}
	}
	alias := &binding{node: b.node, path: joinPath(b.path, rest)}
	if rest == "" {
		alias.loop, alias.first, alias.last = b.loop, b.first, b.last
	}
	return alias
}

// -----------------------------------------------------------------------------
// Functions, includes and macros

func (rc *renderContext) callFunc(name string, args []value.Value) (value.Value, error) {
	return rc.funcs.Call(name, args...)
}

func (rc *renderContext) include(name string, soft bool) error {
	if slices.Contains(rc.includes, name) {
		return &IncludeCycleError{Stack: append(slices.Clone(rc.includes), name)}
	}
	t, err := rc.loader.Load(name, rc.res)
	if err != nil {
		if soft && errors.Is(err, ErrTemplateNotFound) {
			rc.tmpl.opts.Logger.Debug("skipping missing include", "template", rc.tmpl.name, "include", name)
			return nil
		}
		return fmt.Errorf("include %s: %w", name, err)
	}
	rc.includes = append(rc.includes, name)
	err = rc.renderNested(t)
	rc.includes = rc.includes[:len(rc.includes)-1]
	return err
}

func (rc *renderContext) renderInline(name, source string) error {
	t, err := rc.loader.LoadInline(name, source)
	if err != nil {
		return err
	}
	return rc.renderNested(t)
}

func (rc *renderContext) macro(name string) (*Macro, error) {
	if m, ok := rc.macros[name]; ok {
		return m, nil
	}
	names := make([]string, 0, len(rc.macros))
	for n := range rc.macros {
		names = append(names, n)
	}
	if s := funcs.Closest(name, names); s != "" {
		return nil, fmt.Errorf("%w %s (did you mean %s?)", ErrUndefinedMacro, name, s)
	}
	return nil, fmt.Errorf("%w %s", ErrUndefinedMacro, name)
}

// invokeMacro renders m with args bound to its parameters in a new scope.
// Runtime auto-escaping is switched on for the body when the macro's
// template escapes automatically, and restored afterwards.
func (rc *renderContext) invokeMacro(m *Macro, args []*binding) error {
	rc.pushScope()
	for i, b := range args {
		name, err := m.ArgumentName(i)
		if err != nil {
			rc.popScope()
			return err
		}
		rc.bind(name, b)
	}

	prevTmpl, prevAuto := rc.tmpl, rc.autoActive
	rc.tmpl = m.owner
	if m.owner.opts.EscapeMode == escape.ModeAuto {
		rc.autoActive = true
	}
	err := execBlock(rc, m.body)
	rc.tmpl, rc.autoActive = prevTmpl, prevAuto
	rc.popScope()
	return err
}
