package escape

import (
	"fmt"
	"strings"
)

// Context is the output position a dynamic value is written into.
type Context int

const (
	// ContextHTML is HTML text between tags.
	ContextHTML Context = iota
	// ContextAttr is an attribute value, or the inside of a tag.
	ContextAttr
	// ContextURL is the start of a URL-valued attribute.
	ContextURL
	// ContextURLPart is the middle of a URL-valued attribute.
	ContextURLPart
	// ContextJS is script content or an event-handler attribute.
	ContextJS
	// ContextCSS is style content or a style attribute.
	ContextCSS
)

var contextNames = [...]string{
	ContextHTML:    "html",
	ContextAttr:    "attr",
	ContextURL:     "url",
	ContextURLPart: "url-part",
	ContextJS:      "js",
	ContextCSS:     "css",
}

func (c Context) String() string {
	if c < 0 || int(c) >= len(contextNames) {
		return fmt.Sprintf("Context(%d)", int(c))
	}
	return contextNames[c]
}

// FunctionName returns the builtin escaping function used for values written
// in context c.
func (c Context) FunctionName() string {
	switch c {
	case ContextURL:
		return "url_validate"
	case ContextURLPart:
		return "url_escape"
	case ContextJS:
		return "js_escape"
	case ContextCSS:
		return "css_escape"
	}
	return "html_escape"
}

type trackerState int

const (
	stateText trackerState = iota
	stateTagName
	stateTag
	stateAttrName
	stateAfterAttrName
	stateBeforeValue
	stateValueDQ
	stateValueSQ
	stateValueUnquoted
	stateComment
	stateRawText
)

var urlAttrs = map[string]bool{
	"href": true, "src": true, "action": true, "formaction": true, "cite": true,
	"poster": true, "background": true, "longdesc": true, "codebase": true,
	"data": true, "manifest": true, "usemap": true,
}

// Tracker follows a stream of HTML output and reports the Context at its
// current end. It understands tags, quoted and unquoted attributes, comments,
// and script/style raw text; it does not validate the markup.
//
// A Tracker is a value: copying it snapshots the state.
type Tracker struct {
	state    trackerState
	tag      string
	closing  bool
	attr     string
	valueLen int
	rawTag   string
	tail     string
}

// NewTracker returns a tracker positioned in HTML text.
func NewTracker() *Tracker {
	return &Tracker{}
}

// NewTrackerAt returns a tracker whose initial position yields ctx.
func NewTrackerAt(ctx Context) *Tracker {
	switch ctx {
	case ContextAttr:
		return &Tracker{state: stateValueDQ, attr: "title"}
	case ContextURL:
		return &Tracker{state: stateValueDQ, attr: "href"}
	case ContextURLPart:
		return &Tracker{state: stateValueDQ, attr: "href", valueLen: 1}
	case ContextJS:
		return &Tracker{state: stateRawText, rawTag: "script"}
	case ContextCSS:
		return &Tracker{state: stateRawText, rawTag: "style"}
	}
	return NewTracker()
}

// Clone returns an independent copy of t.
func (t *Tracker) Clone() *Tracker {
	c := *t
	return &c
}

// Context reports the context a value written now would land in.
func (t *Tracker) Context() Context {
	switch t.state {
	case stateTag, stateTagName, stateAttrName, stateAfterAttrName:
		return ContextAttr
	case stateBeforeValue, stateValueDQ, stateValueSQ, stateValueUnquoted:
		return t.attrContext()
	case stateRawText:
		if t.rawTag == "style" {
			return ContextCSS
		}
		return ContextJS
	}
	return ContextHTML
}

func (t *Tracker) attrContext() Context {
	switch {
	case strings.HasPrefix(t.attr, "on"):
		return ContextJS
	case t.attr == "style":
		return ContextCSS
	case urlAttrs[t.attr]:
		if t.valueLen == 0 {
			return ContextURL
		}
		return ContextURLPart
	}
	return ContextAttr
}

// Write advances the tracker over s.
func (t *Tracker) Write(s string) {
	for i := 0; i < len(s); i++ {
		t.step(s[i])
	}
}

func (t *Tracker) step(c byte) {
	switch t.state {
	case stateText:
		if c == '<' {
			t.state = stateTagName
			t.tag = ""
			t.closing = false
		}

	case stateTagName:
		switch {
		case c == '/' && t.tag == "":
			t.closing = true
		case c == '!' && t.tag == "":
			t.tag = "!"
		case c == '>':
			t.endTag()
		case isSpace(c):
			if t.tag == "" {
				t.state = stateText
			} else {
				t.state = stateTag
			}
		case isNameByte(c) || (t.tag == "!" && c == '-'):
			t.tag += string(lower(c))
			if t.tag == "!--" {
				t.state = stateComment
				t.tail = ""
			}
		default:
			t.state = stateText
		}

	case stateTag:
		switch {
		case c == '>':
			t.endTag()
		case isSpace(c) || c == '/':
		default:
			t.attr = string(lower(c))
			t.state = stateAttrName
		}

	case stateAttrName:
		switch {
		case c == '=':
			t.state = stateBeforeValue
			t.valueLen = 0
		case c == '>':
			t.endTag()
		case isSpace(c):
			t.state = stateAfterAttrName
		default:
			t.attr += string(lower(c))
		}

	case stateAfterAttrName:
		switch {
		case c == '=':
			t.state = stateBeforeValue
			t.valueLen = 0
		case c == '>':
			t.endTag()
		case isSpace(c):
		default:
			t.attr = string(lower(c))
			t.state = stateAttrName
		}

	case stateBeforeValue:
		t.valueLen = 0
		switch {
		case c == '"':
			t.state = stateValueDQ
		case c == '\'':
			t.state = stateValueSQ
		case c == '>':
			t.endTag()
		case isSpace(c):
		default:
			t.state = stateValueUnquoted
			t.valueLen = 1
		}

	case stateValueDQ:
		if c == '"' {
			t.state = stateTag
		} else {
			t.valueLen++
		}

	case stateValueSQ:
		if c == '\'' {
			t.state = stateTag
		} else {
			t.valueLen++
		}

	case stateValueUnquoted:
		switch {
		case c == '>':
			t.endTag()
		case isSpace(c):
			t.state = stateTag
		default:
			t.valueLen++
		}

	case stateComment:
		t.pushTail(c, 3)
		if t.tail == "-->" {
			t.state = stateText
		}

	case stateRawText:
		closer := "</" + t.rawTag
		t.pushTail(lower(c), len(closer))
		if t.tail == closer {
			t.state = stateTagName
			t.tag = t.rawTag
			t.closing = true
			t.rawTag = ""
		}
	}
}

func (t *Tracker) endTag() {
	if !t.closing && (t.tag == "script" || t.tag == "style") {
		t.state = stateRawText
		t.rawTag = t.tag
		t.tail = ""
		return
	}
	t.state = stateText
}

func (t *Tracker) pushTail(c byte, n int) {
	t.tail += string(c)
	if len(t.tail) > n {
		t.tail = t.tail[len(t.tail)-n:]
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isNameByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == ':'
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
