package data

import (
	"bytes"
	"strings"
	"testing"

	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func childNames(n *Node) []string {
	var names []string
	for _, c := range n.Children() {
		names = append(names, c.Name())
	}
	return names
}

func TestNodeSetGet(t *testing.T) {
	root := New()
	root.Set("page.title", "Hello")
	root.Set("page.items.0", "a")
	root.Set("page.items.1", "b")

	assert.Equal(t, "Hello", root.GetValue("page.title", ""))
	assert.Equal(t, "def", root.GetValue("page.missing", "def"))
	assert.Nil(t, root.Get("page.items.2"))
	assert.Equal(t, "page.items.1", root.Get("page.items.1").Path())
	assert.Equal(t, []string{"0", "1"}, childNames(root.Get("page.items")))
	assert.False(t, root.Get("page").HasValue())
	assert.Same(t, root, root.Get(""))
}

func TestNodeInsertionOrder(t *testing.T) {
	root := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		root.Set("list."+name, name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, childNames(root.Get("list")))

	require.True(t, root.Remove("list.alpha"))
	assert.False(t, root.Remove("list.alpha"))
	assert.Equal(t, []string{"zeta", "mid"}, childNames(root.Get("list")))
}

func TestNodeEscapeState(t *testing.T) {
	n := New().Set("x", "<b>")
	n.SetEscapeMode(escape.ModeHTML)
	assert.Equal(t, escape.ModeHTML, n.EscapeMode())
	n.SetValue("plain")
	assert.Equal(t, escape.ModeNone, n.EscapeMode())
}

func TestNodeCopyIsDeep(t *testing.T) {
	root := New()
	root.Set("a.b", "1")
	c := root.Get("a").Copy()
	c.Set("b", "2")
	assert.Equal(t, "1", root.GetValue("a.b", ""))
	assert.Equal(t, "2", c.GetValue("b", ""))
	assert.Nil(t, c.Parent())
}

func TestReadHDF(t *testing.T) {
	src := `
# site settings
site.name = Example
site {
  nav {
    0 = Home
    1 = About
  }
  alias := site.name
}
body << EOM
line one
line two
EOM
`
	root := New()
	require.NoError(t, ReadHDF(root, strings.NewReader(src)))
	assert.Equal(t, "Example", root.GetValue("site.name", ""))
	assert.Equal(t, "About", root.GetValue("site.nav.1", ""))
	assert.Equal(t, "Example", root.GetValue("site.alias", ""))
	assert.Equal(t, "line one\nline two", root.GetValue("body", ""))
}

func TestReadHDFErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unclosed block":  "a {\n b = 1\n",
		"stray brace":     "}\n",
		"missing eom":     "a << EOM\nx\n",
		"bare identifier": "just words\n",
	} {
		err := ReadHDF(New(), strings.NewReader(src))
		var perr *ParseError
		assert.ErrorAs(t, err, &perr, name)
	}
}

func TestWriteHDFRoundTrip(t *testing.T) {
	root := New()
	root.Set("a.b", "1")
	root.Set("a.c", "two\nlines")
	root.Set("d", "x")

	var buf bytes.Buffer
	require.NoError(t, WriteHDF(root, &buf))

	back := New()
	require.NoError(t, ReadHDF(back, &buf))
	assert.Equal(t, "1", back.GetValue("a.b", ""))
	assert.Equal(t, "two\nlines", back.GetValue("a.c", ""))
	assert.Equal(t, []string{"a", "d"}, childNames(back))
}

func TestReadJSONKeepsOrder(t *testing.T) {
	root := New()
	src := `{"z": "last?", "items": [{"name": "a"}, {"name": "b"}], "n": 10, "ok": true, "none": null}`
	require.NoError(t, ReadJSON(root, strings.NewReader(src)))

	assert.Equal(t, []string{"z", "items", "n", "ok", "none"}, childNames(root))
	assert.Equal(t, "b", root.GetValue("items.1.name", ""))
	assert.Equal(t, "10", root.GetValue("n", ""))
	assert.Equal(t, "1", root.GetValue("ok", ""))
	assert.False(t, root.Get("none").HasValue())

	assert.Error(t, ReadJSON(New(), strings.NewReader(`{"a": `)))
}

func TestReadYAML(t *testing.T) {
	src := `
title: Hello
flags:
  beta: false
list:
  - one
  - two
base: &b
  x: 1
copy: *b
`
	root := New()
	require.NoError(t, ReadYAML(root, strings.NewReader(src)))
	assert.Equal(t, []string{"title", "flags", "list", "base", "copy"}, childNames(root))
	assert.Equal(t, "0", root.GetValue("flags.beta", ""))
	assert.Equal(t, "two", root.GetValue("list.1", ""))
	assert.Equal(t, "1", root.GetValue("copy.x", ""))
}

func TestCBORSnapshot(t *testing.T) {
	root := New()
	root.Set("b", "2")
	root.Set("a.x", "<i>").SetEscapeMode(escape.ModeHTML)
	root.Create("empty")

	enc, err := EncodeCBOR(root)
	require.NoError(t, err)

	again, err := EncodeCBOR(root.Copy())
	require.NoError(t, err)
	assert.Equal(t, enc, again, "encoding should be deterministic")

	back, err := DecodeCBOR(enc)
	require.NoError(t, err)

	var want, got bytes.Buffer
	require.NoError(t, WriteHDF(root, &want))
	require.NoError(t, WriteHDF(back, &got))
	if diff := cmp.Diff(want.String(), got.String()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, escape.ModeHTML, back.Get("a.x").EscapeMode())
	assert.NotNil(t, back.Get("empty"))
	assert.False(t, back.Get("empty").HasValue())
}
