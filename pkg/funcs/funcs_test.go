package funcs

import (
	"testing"

	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	root  *data.Node
	first map[string]bool
	last  map[string]bool
}

func (f fakeResolver) Lookup(name string) *data.Node { return f.root.Get(name) }

func (f fakeResolver) LoopState(name string) (bool, bool, bool) {
	first, ok := f.first[name]
	return first, f.last[name], ok
}

func call(t *testing.T, r *Registry, name string, args ...value.Value) value.Value {
	t.Helper()
	v, err := r.Call(name, args...)
	require.NoError(t, err, name)
	return v
}

func TestEscapingFunctions(t *testing.T) {
	r := Default()
	for name, mode := range map[string]escape.Mode{
		"html_escape":  escape.ModeHTML,
		"js_escape":    escape.ModeJS,
		"url_escape":   escape.ModeURL,
		"css_escape":   escape.ModeCSS,
		"url_validate": escape.ModeHTML,
		"text_html":    escape.ModeHTML,
	} {
		assert.True(t, r.IsEscapingFunction(name), name)
		got, ok := r.EscapeMode(name)
		assert.True(t, ok, name)
		assert.Equal(t, mode, got, name)
	}
	for _, name := range []string{"html_strip", "max", "nope"} {
		assert.False(t, r.IsEscapingFunction(name), name)
	}

	v := call(t, r, "html_escape", value.String("<b>"))
	assert.Equal(t, "&lt;b&gt;", v.String())
	assert.Equal(t, escape.ModeHTML, v.EscapeMode())

	out, err := r.Escape(escape.ModeJS, "'")
	require.NoError(t, err)
	assert.Equal(t, `\x27`, out)
	out, err = r.Escape(escape.ModeNone, "<x>")
	require.NoError(t, err)
	assert.Equal(t, "<x>", out)
}

func TestStringFunctions(t *testing.T) {
	r := Default()
	s := value.String("héllo world")
	assert.Equal(t, "héllo", call(t, r, "string.slice", s, value.Int(0), value.Int(5)).String())
	assert.Equal(t, "world", call(t, r, "string.slice", s, value.Int(-5), value.Int(100)).String())
	assert.Equal(t, "", call(t, r, "string.slice", s, value.Int(4), value.Int(2)).String())
	assert.Equal(t, 6, call(t, r, "string.find", s, value.String("world")).Int())
	assert.Equal(t, -1, call(t, r, "string.find", s, value.String("xyz")).Int())
	assert.Equal(t, 11, call(t, r, "string.length", s).Int())
	assert.Equal(t, "a & b", call(t, r, "html_strip", value.String("<i>a</i> &amp; b")).String())
}

func TestNodeFunctions(t *testing.T) {
	r := Default()
	root := data.New()
	root.Set("list.x", "1")
	root.Set("list.y", "2")
	res := fakeResolver{root: root, first: map[string]bool{"it": true}, last: map[string]bool{"it": false}}

	assert.Equal(t, 2, call(t, r, "subcount", value.Var(res, "list")).Int())
	assert.Equal(t, 0, call(t, r, "subcount", value.Var(res, "missing")).Int())
	assert.Equal(t, 0, call(t, r, "len", value.String("abc")).Int())
	assert.Equal(t, "y", call(t, r, "name", value.Var(res, "list.y")).String())
	assert.True(t, call(t, r, "first", value.Var(res, "it")).Bool())
	assert.False(t, call(t, r, "last", value.Var(res, "it")).Bool())
	assert.False(t, call(t, r, "first", value.Var(res, "list")).Bool())
}

func TestNumericFunctions(t *testing.T) {
	r := Default()
	assert.Equal(t, 4, call(t, r, "abs", value.Int(-4)).Int())
	assert.Equal(t, 9, call(t, r, "max", value.String("9"), value.Int(3)).Int())
	assert.Equal(t, 3, call(t, r, "min", value.String("9"), value.Int(3)).Int())
}

func TestUnknownFunctionSuggests(t *testing.T) {
	r := Default()
	_, err := r.Call("html_escpe", value.String("x"))
	require.ErrorIs(t, err, ErrUnknownFunction)
	assert.Contains(t, err.Error(), `did you mean "html_escape"`)

	_, err = r.Call("max", value.Int(1))
	assert.ErrorContains(t, err, "expected 2 argument(s)")
}

func TestRegisterOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register("shout", func(args ...value.Value) (value.Value, error) {
		return value.String(args[0].String() + "!"), nil
	})
	assert.Equal(t, "hi!", call(t, r, "shout", value.String("hi")).String())
	assert.Equal(t, []string{"shout"}, r.Names())

	r.RegisterEscaper("shout", escape.ModeHTML, func(args ...value.Value) (value.Value, error) {
		return value.Literal(args[0].String(), escape.ModeHTML), nil
	})
	assert.True(t, r.IsEscapingFunction("shout"))
}
