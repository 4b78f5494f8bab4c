// Package funcs is the function-execution registry templates call into.
//
// A Registry maps function names, which may be dotted ("string.slice"), to Go
// implementations. Some functions are registered as escaping functions: their
// output is already safe for a given escape mode, which the compiler's
// escaping analysis relies on to skip default output escaping.
package funcs

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/value"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrUnknownFunction is returned when calling a name that was never registered.
var ErrUnknownFunction = errors.New("unknown function")

// Func is the Go signature of a template function.
type Func func(args ...value.Value) (value.Value, error)

type entry struct {
	fn      Func
	escaper bool
	mode    escape.Mode
}

// Registry holds the functions available to templates. It is safe for
// concurrent use; registration normally happens before any render.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]entry)}
}

// Default returns a new registry holding the builtin functions.
func Default() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

// Register adds or replaces a plain function.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = entry{fn: fn, mode: escape.ModeNone}
}

// RegisterEscaper adds or replaces an escaping function whose output is safe
// under mode.
func (r *Registry) RegisterEscaper(name string, mode escape.Mode, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = entry{fn: fn, escaper: true, mode: mode}
}

// Call runs the function registered as name.
func (r *Registry) Call(name string, args ...value.Value) (value.Value, error) {
	r.mu.RLock()
	e, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown(name)
	}
	v, err := e.fn(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// IsEscapingFunction reports whether name is a registered escaping function.
func (r *Registry) IsEscapingFunction(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.funcs[name].escaper
}

// EscapeMode returns the mode an escaping function produces. ok is false for
// plain or unknown functions.
func (r *Registry) EscapeMode(name string) (mode escape.Mode, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.funcs[name]
	return e.mode, e.escaper
}

// Escape applies the builtin escaping function for mode to s. ModeNone and
// ModeConstant leave s unchanged.
func (r *Registry) Escape(mode escape.Mode, s string) (string, error) {
	name := mode.FunctionName()
	if name == "" {
		return s, nil
	}
	v, err := r.Call(name, value.String(s))
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suggest returns the registered name closest to name, or "".
func (r *Registry) Suggest(name string) string {
	return Closest(name, r.Names())
}

func (r *Registry) unknown(name string) error {
	if s := r.Suggest(name); s != "" {
		return fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownFunction, name, s)
	}
	return fmt.Errorf("%w %q", ErrUnknownFunction, name)
}

// Closest returns the candidate that best fuzzy-matches target, or "".
func Closest(target string, candidates []string) string {
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}
