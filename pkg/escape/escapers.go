package escape

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// HTML escapes s for HTML text and quoted attribute values.
func HTML(s string) string {
	return htmlReplacer.Replace(s)
}

// JS escapes s for inclusion inside a quoted JavaScript string literal. Every
// character that could end the string or the surrounding script element is
// written as a \xNN or \uNNNN escape.
func JS(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\' || r == '\'' || r == '"' || r == '<' || r == '>' ||
			r == '&' || r == '=' || r == '/' || r == '`':
			fmt.Fprintf(&b, "\\x%02X", r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\x%02X", r)
		case r == 0x2028 || r == 0x2029:
			fmt.Fprintf(&b, "\\u%04X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// URL escapes s as a URL query component.
func URL(s string) string {
	return url.QueryEscape(s)
}

// CSS escapes s for use inside a CSS value: every character outside
// [A-Za-z0-9 _-.,#%] is written as a hex escape followed by a space.
func CSS(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isCSSSafe(r) {
			b.WriteRune(r)
			continue
		}
		if r == utf8.RuneError {
			continue
		}
		fmt.Fprintf(&b, "\\%X ", r)
	}
	return b.String()
}

func isCSSSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(" _-.,#%", r)
}

var safeSchemes = map[string]bool{"http": true, "https": true, "mailto": true, "ftp": true}

// ValidateURL returns s HTML-escaped when it is a relative URL or uses a safe
// scheme, and "#" otherwise.
func ValidateURL(s string) string {
	trimmed := strings.TrimSpace(s)
	if i := strings.IndexAny(trimmed, ":/?#"); i >= 0 && trimmed[i] == ':' {
		if !safeSchemes[strings.ToLower(trimmed[:i])] {
			return "#"
		}
	}
	return HTML(s)
}

// StripHTML removes tags from s and decodes the basic entities.
func StripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '<':
			inTag = true
		case c == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteByte(c)
		}
	}
	return htmlUnescaper.Replace(b.String())
}

var htmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
	"&amp;", "&",
)

// TextToHTML escapes s and turns newlines into <br/> tags.
func TextToHTML(s string) string {
	escaped := HTML(strings.ReplaceAll(s, "\r\n", "\n"))
	return strings.ReplaceAll(escaped, "\n", "<br/>\n")
}

// Apply escapes s according to m. Modes that do not transform output return
// s unchanged.
func Apply(m Mode, s string) string {
	switch m {
	case ModeHTML:
		return HTML(s)
	case ModeJS:
		return JS(s)
	case ModeURL:
		return URL(s)
	case ModeCSS:
		return CSS(s)
	}
	return s
}
