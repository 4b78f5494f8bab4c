package funcs

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/value"
)

// nodeValue is implemented by values that reference a data node.
type nodeValue interface {
	Node() *data.Node
}

// loopValue is implemented by values that can report iteration flags.
type loopValue interface {
	LoopState() (first, last, ok bool)
}

func registerBuiltins(r *Registry) {
	r.RegisterEscaper("html_escape", escape.ModeHTML, escaper(escape.HTML, escape.ModeHTML))
	r.RegisterEscaper("js_escape", escape.ModeJS, escaper(escape.JS, escape.ModeJS))
	r.RegisterEscaper("url_escape", escape.ModeURL, escaper(escape.URL, escape.ModeURL))
	r.RegisterEscaper("css_escape", escape.ModeCSS, escaper(escape.CSS, escape.ModeCSS))
	r.RegisterEscaper("url_validate", escape.ModeHTML, escaper(escape.ValidateURL, escape.ModeHTML))
	r.RegisterEscaper("text_html", escape.ModeHTML, escaper(escape.TextToHTML, escape.ModeHTML))

	r.Register("html_strip", htmlStrip)
	r.Register("string.slice", stringSlice)
	r.Register("string.find", stringFind)
	r.Register("string.length", stringLength)
	r.Register("subcount", subcount)
	r.Register("len", subcount)
	r.Register("name", nodeName)
	r.Register("first", isFirst)
	r.Register("last", isLast)
	r.Register("abs", abs)
	r.Register("max", maxOf)
	r.Register("min", minOf)
}

func arity(args []value.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func escaper(fn func(string) string, mode escape.Mode) Func {
	return func(args ...value.Value) (value.Value, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		return value.Literal(fn(args[0].String()), mode), nil
	}
}

// htmlStrip removes tags and decodes entities. The result is plain text and
// still needs escaping.
func htmlStrip(args ...value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return value.String(escape.StripHTML(args[0].String())), nil
}

// stringSlice returns the characters of s in [start, end). Negative indices
// count from the end; out-of-range indices are clamped.
func stringSlice(args ...value.Value) (value.Value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	runes := []rune(args[0].String())
	n := len(runes)
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		return max(0, min(i, n))
	}
	start, end := clamp(args[1].Int()), clamp(args[2].Int())
	if start >= end {
		return value.String(""), nil
	}
	return value.String(string(runes[start:end])), nil
}

// stringFind returns the character index of the first occurrence of sub in
// s, or -1.
func stringFind(args ...value.Value) (value.Value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	s := args[0].String()
	i := strings.Index(s, args[1].String())
	if i < 0 {
		return value.Int(-1), nil
	}
	return value.Int(utf8.RuneCountInString(s[:i])), nil
}

func stringLength(args ...value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return value.Int(utf8.RuneCountInString(args[0].String())), nil
}

// subcount returns the number of children of a variable, 0 for anything else.
func subcount(args ...value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	if nv, ok := args[0].(nodeValue); ok {
		if n := nv.Node(); n != nil {
			return value.Int(n.ChildCount()), nil
		}
	}
	return value.Int(0), nil
}

// nodeName returns the last path segment of the node a variable resolves to.
func nodeName(args ...value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	if nv, ok := args[0].(nodeValue); ok {
		if n := nv.Node(); n != nil {
			return value.String(n.Name()), nil
		}
	}
	return value.String(""), nil
}

func isFirst(args ...value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	if lv, ok := args[0].(loopValue); ok {
		first, _, ok := lv.LoopState()
		return value.Bool(ok && first), nil
	}
	return value.Bool(false), nil
}

func isLast(args ...value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	if lv, ok := args[0].(loopValue); ok {
		_, last, ok := lv.LoopState()
		return value.Bool(ok && last), nil
	}
	return value.Bool(false), nil
}

func abs(args ...value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	n := args[0].Int()
	if n < 0 {
		n = -n
	}
	return value.Int(n), nil
}

func maxOf(args ...value.Value) (value.Value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	return value.Int(max(args[0].Int(), args[1].Int())), nil
}

func minOf(args ...value.Value) (value.Value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	return value.Int(min(args[0].Int(), args[1].Int())), nil
}
