package compiler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/funcs"
)

var (
	// ErrTemplateNotFound is returned by a TemplateLoader for unknown names.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrUndefinedMacro is returned when calling a macro no rendered template
	// defines.
	ErrUndefinedMacro = errors.New("undefined macro")
)

// CompileError is a fatal error found while compiling a template.
type CompileError struct {
	Pos ast.Pos
	Msg string
	Err error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *CompileError) Unwrap() error { return e.Err }

// RenderError is a fatal error raised while rendering. Pos is the last
// position marked before the failure.
type RenderError struct {
	Template string
	Pos      ast.Pos
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s at %s: %v", e.Template, e.Pos, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IncludeCycleError reports a template including itself, directly or not.
// Stack lists the include chain ending with the repeated name.
type IncludeCycleError struct {
	Stack []string
}

func (e *IncludeCycleError) Error() string {
	return "include cycle: " + strings.Join(e.Stack, " -> ")
}

// ResourceLoader opens template sources by name.
type ResourceLoader interface {
	Open(name string) (io.ReadCloser, error)
}

// TemplateLoader resolves template names for include and for the inline
// templates of lvar and evar.
type TemplateLoader interface {
	// Load returns the compiled template called name. A missing template
	// yields an error wrapping ErrTemplateNotFound.
	Load(name string, res ResourceLoader) (*Template, error)
	// LoadInline compiles source that has no backing resource.
	LoadInline(name, source string) (*Template, error)
}

// Options configures a compilation.
type Options struct {
	// Name of the template, used in positions and errors. Defaults to the
	// ast.Template name.
	Name string
	// EscapeMode is the default output escaping. ModeAuto picks the escaping
	// from the HTML context of each output.
	EscapeMode escape.Mode
	// PropagateEscapeStatus tracks the escape state of values through set
	// commands and function calls.
	PropagateEscapeStatus bool
	// Funcs is the function registry. Defaults to funcs.Default().
	Funcs *funcs.Registry
	// Loader resolves includes and inline templates. Defaults to a loader
	// that parses and compiles on every call with these same options.
	Loader TemplateLoader
	Logger *slog.Logger
}

func (o Options) withDefaults(name string) Options {
	if o.Name == "" {
		o.Name = name
	}
	if o.Funcs == nil {
		o.Funcs = funcs.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Loader == nil {
		o.Loader = NewLoader(o)
	}
	return o
}

// Template is a compiled template. It is immutable and safe for concurrent
// renders.
type Template struct {
	name   string
	body   []Stmt
	macros []*Macro
	opts   Options
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// EscapeMode returns the default escaping the template was compiled with.
func (t *Template) EscapeMode() escape.Mode { return t.opts.EscapeMode }

// Macros returns the macros the template defines, in definition order.
func (t *Template) Macros() []*Macro {
	out := make([]*Macro, len(t.macros))
	copy(out, t.macros)
	return out
}

// Macro returns the macro called name, or nil.
func (t *Template) Macro(name string) *Macro {
	for _, m := range t.macros {
		if m.name == name {
			return m
		}
	}
	return nil
}

// Render renders t against root, writing to w. res is handed to the template
// loader for includes.
func (t *Template) Render(root *data.Node, w io.Writer, res ResourceLoader) error {
	start := time.Now()
	rc := newRenderContext(t, root, w, res)
	err := rc.renderTemplate(t)
	if err != nil {
		t.opts.Logger.Debug("render failed", "template", t.name, "error", err)
		return err
	}
	t.opts.Logger.Debug("rendered template", "template", t.name, "elapsed", time.Since(start))
	return nil
}

// Macro is a compiled macro.
type Macro struct {
	name   string
	symbol string
	params []string
	pos    ast.Pos
	def    *ast.Def
	body   []Stmt
	owner  *Template
}

// Name returns the macro name.
func (m *Macro) Name() string { return m.name }

// ArgumentCount returns the number of declared parameters.
func (m *Macro) ArgumentCount() int { return len(m.params) }

// ArgumentName returns the name of parameter i.
func (m *Macro) ArgumentName(i int) (string, error) {
	if i < 0 || i >= len(m.params) {
		return "", fmt.Errorf("macro %s has %d parameter(s), no parameter %d", m.name, len(m.params), i)
	}
	return m.params[i], nil
}

// Render renders the macro body on its own, with no arguments bound.
func (m *Macro) Render(root *data.Node, w io.Writer, res ResourceLoader) error {
	rc := newRenderContext(m.owner, root, w, res)
	rc.registerMacros(m.owner)
	return rc.finish(rc.invokeMacro(m, nil))
}
