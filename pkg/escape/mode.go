/*
Package escape defines escape states, the escaping primitives used by the
builtin escaping functions, and the HTML context tracker that drives
auto-escaping.

A Mode doubles as the compile-time default escaping strategy of a template
and as the run-time escape state recorded on data nodes and values.
*/
package escape

import (
	"fmt"
	"strings"
)

// Mode is an escape state.
type Mode int

const (
	// ModeNone marks content that has not been escaped.
	ModeNone Mode = iota
	// ModeHTML marks content escaped for HTML text and attributes.
	ModeHTML
	// ModeJS marks content escaped for a JavaScript string.
	ModeJS
	// ModeURL marks content escaped for a URL component.
	ModeURL
	// ModeCSS marks content escaped for a CSS value.
	ModeCSS
	// ModeConstant marks content that comes from the template itself.
	ModeConstant
	// ModeAuto selects context-sensitive escaping. Only valid as a strategy.
	ModeAuto
)

var modeNames = [...]string{
	ModeNone:     "none",
	ModeHTML:     "html",
	ModeJS:       "js",
	ModeURL:      "url",
	ModeCSS:      "css",
	ModeConstant: "constant",
	ModeAuto:     "auto",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode maps the name used by escape commands and configuration to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return ModeNone, nil
	case "html":
		return ModeHTML, nil
	case "js", "javascript":
		return ModeJS, nil
	case "url":
		return ModeURL, nil
	case "css":
		return ModeCSS, nil
	case "auto":
		return ModeAuto, nil
	}
	return ModeNone, fmt.Errorf("unknown escape mode %q", name)
}

// FunctionName returns the name of the builtin escaping function applying m,
// or "" when m does not transform output.
func (m Mode) FunctionName() string {
	switch m {
	case ModeHTML:
		return "html_escape"
	case ModeJS:
		return "js_escape"
	case ModeURL:
		return "url_escape"
	case ModeCSS:
		return "css_escape"
	}
	return ""
}

// IsEscaped reports whether m denotes content that is safe to write as is.
func (m Mode) IsEscaped() bool {
	return m != ModeNone
}

// Combine returns the escape state of content built from parts in states a
// and b. The states form a flat lattice none < {html, js, url, css} < constant
// and Combine is its meet: none absorbs everything, constant is the identity,
// and two different escaped states meet at none.
func Combine(a, b Mode) Mode {
	switch {
	case a == ModeNone || b == ModeNone:
		return ModeNone
	case a == ModeConstant:
		return b
	case b == ModeConstant:
		return a
	case a == b:
		return a
	}
	return ModeNone
}

// CombineAll folds Combine over modes. The empty fold is ModeConstant.
func CombineAll(modes ...Mode) Mode {
	result := ModeConstant
	for _, m := range modes {
		result = Combine(result, m)
	}
	return result
}
