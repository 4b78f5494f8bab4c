package escape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{
		"":     ModeNone,
		"none": ModeNone,
		"HTML": ModeHTML,
		"js":   ModeJS,
		"url":  ModeURL,
		"css":  ModeCSS,
		"auto": ModeAuto,
	} {
		got, err := ParseMode(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseMode("latex")
	assert.Error(t, err)
}

func TestCombineIsMonotonicMeet(t *testing.T) {
	escaped := []Mode{ModeHTML, ModeJS, ModeURL, ModeCSS}
	all := append([]Mode{ModeNone, ModeConstant}, escaped...)

	for _, m := range all {
		assert.Equal(t, ModeNone, Combine(ModeNone, m), "none absorbs %v", m)
		assert.Equal(t, ModeNone, Combine(m, ModeNone), "none absorbs %v", m)
		assert.Equal(t, m, Combine(ModeConstant, m), "constant is the identity for %v", m)
		assert.Equal(t, m, Combine(m, m), "%v is idempotent", m)
		for _, n := range all {
			assert.Equal(t, Combine(m, n), Combine(n, m), "commutative for %v, %v", m, n)
		}
	}
	assert.Equal(t, ModeNone, Combine(ModeHTML, ModeJS))
	assert.Equal(t, ModeConstant, CombineAll())
	assert.Equal(t, ModeHTML, CombineAll(ModeConstant, ModeHTML, ModeHTML))
}

func TestEscapers(t *testing.T) {
	assert.Equal(t, "&lt;a href=&quot;x&quot;&gt;&amp;&#39;", HTML(`<a href="x">&'`))
	assert.Equal(t, `\x3Cscript\x3E alert(\x27x\x27)`, JS(`<script> alert('x')`))
	assert.Equal(t, "a+b%26c%3Dd", URL("a b&c=d"))
	assert.Equal(t, `red\3B  x`, CSS("red; x"))
	assert.Equal(t, "#", ValidateURL("javascript:alert(1)"))
	assert.Equal(t, "https://x.org/?a=1&amp;b=2", ValidateURL("https://x.org/?a=1&b=2"))
	assert.Equal(t, "/rel/path", ValidateURL("/rel/path"))
	assert.Equal(t, "bold & text", StripHTML("<b>bold</b> &amp; text"))
	assert.Equal(t, "a &amp; b<br/>\nc", TextToHTML("a & b\nc"))
	assert.Equal(t, "<x>", Apply(ModeNone, "<x>"))
	assert.Equal(t, "&lt;x&gt;", Apply(ModeHTML, "<x>"))
}

func TestTrackerContexts(t *testing.T) {
	tests := []struct {
		name string
		html string
		want Context
	}{
		{"text", "<p>hello ", ContextHTML},
		{"attr value", `<p title="`, ContextAttr},
		{"inside tag", `<p `, ContextAttr},
		{"url start", `<a href="`, ContextURL},
		{"url middle", `<a href="/search?q=`, ContextURLPart},
		{"unquoted url", `<img src=`, ContextURL},
		{"event handler", `<button onclick="`, ContextJS},
		{"style attr", `<div style="`, ContextCSS},
		{"script body", `<script type="text/javascript">var x = `, ContextJS},
		{"style body", `<style>body { color: `, ContextCSS},
		{"after script", `<script>x()</script><p>`, ContextHTML},
		{"after attr", `<a href="/x">`, ContextHTML},
		{"comment", `<!-- <a href="`, ContextHTML},
		{"after comment", `<!-- x --><a href="`, ContextURL},
		{"doctype", `<!DOCTYPE html><p>`, ContextHTML},
		{"less than in text", `a < b `, ContextHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			tr.Write(tt.html)
			assert.Equal(t, tt.want, tr.Context())
		})
	}
}

func TestTrackerCloneIsIndependent(t *testing.T) {
	tr := NewTracker()
	tr.Write(`<a href="`)
	c := tr.Clone()
	c.Write(`/x">`)
	assert.Equal(t, ContextURL, tr.Context())
	assert.Equal(t, ContextHTML, c.Context())
}

func TestNewTrackerAt(t *testing.T) {
	for _, ctx := range []Context{ContextHTML, ContextAttr, ContextURL, ContextURLPart, ContextJS, ContextCSS} {
		assert.Equal(t, ctx, NewTrackerAt(ctx).Context(), ctx.String())
	}
	assert.Equal(t, "url_validate", ContextURL.FunctionName())
	assert.Equal(t, "html_escape", ContextAttr.FunctionName())
}
