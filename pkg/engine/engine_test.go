package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/CTAG07/Quicksilver/pkg/compiler"
	"github.com/CTAG07/Quicksilver/pkg/data"
)

// setupTestEngine creates an Engine over a temp directory holding files.
func setupTestEngine(tb testing.TB, files map[string]string) (*Engine, string) {
	tb.Helper()

	dir := tb.TempDir()
	for name, src := range files {
		writeTemplate(tb, dir, name, src)
	}

	config := DefaultConfig()
	config.TemplateDir = dir
	e, err := NewDirEngine(nil, &config)
	if err != nil {
		tb.Fatalf("NewDirEngine failed: %v", err)
	}
	return e, dir
}

func writeTemplate(tb testing.TB, dir, name, src string) {
	tb.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		tb.Fatalf("failed to create template dir: %v", err)
	}
	if err := os.WriteFile(p, []byte(src), 0644); err != nil {
		tb.Fatalf("failed to write template %s: %v", name, err)
	}
}

func renderName(tb testing.TB, e *Engine, name string, root *data.Node) string {
	tb.Helper()
	var buf bytes.Buffer
	if err := e.Render(&buf, name, root); err != nil {
		tb.Fatalf("Render(%s) failed: %v", name, err)
	}
	return buf.String()
}

func TestNewDirEngine(t *testing.T) {
	e, _ := setupTestEngine(t, map[string]string{
		"page.cs":          `<h1><?cs var:title ?></h1>`,
		"parts/footer.cst": `footer`,
		"notes.txt":        `<?cs not a template`,
	})

	names := e.TemplateNames()
	want := []string{"page.cs", "parts/footer.cst"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("TemplateNames() = %v, want %v", names, want)
	}
	if len(e.cache) != 2 {
		t.Errorf("expected 2 precompiled templates, got %d", len(e.cache))
	}
}

func TestEngine_Render(t *testing.T) {
	e, _ := setupTestEngine(t, map[string]string{
		"page.cs":   `<?cs include:"header.cs" ?><p><?cs var:body ?></p>`,
		"header.cs": `<h1><?cs var:title ?></h1>`,
	})
	root := data.New()
	root.Set("title", "Hi & bye")
	root.Set("body", "<b>")

	got := renderName(t, e, "page.cs", root)
	want := "<h1>Hi &amp; bye</h1><p>&lt;b&gt;</p>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}

	var buf bytes.Buffer
	err := e.Render(&buf, "missing.cs", root)
	if !errors.Is(err, compiler.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}

	if err = e.Render(&buf, "", root); err != nil {
		t.Errorf("empty name should render nothing, got %v", err)
	}
}

func TestEngine_CacheKeyedBySource(t *testing.T) {
	e, dir := setupTestEngine(t, map[string]string{"a.cs": `one`})

	first, err := e.Load("a.cs", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := e.Load("a.cs", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first != second {
		t.Error("unchanged source should be served from the cache")
	}

	writeTemplate(t, dir, "a.cs", `two`)
	third, err := e.Load("a.cs", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if third == first {
		t.Error("changed source should be recompiled")
	}
	if got := renderName(t, e, "a.cs", nil); got != "two" {
		t.Errorf("Render after change = %q, want %q", got, "two")
	}
}

func TestEngine_CacheDisabled(t *testing.T) {
	e, _ := setupTestEngine(t, map[string]string{"a.cs": `one`})
	config := e.GetConfig()
	config.CacheEnabled = false
	if err := e.SetConfig(&config); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	first, _ := e.Load("a.cs", nil)
	second, _ := e.Load("a.cs", nil)
	if first == second {
		t.Error("disabled cache should compile on every load")
	}
	if len(e.cache) != 0 {
		t.Errorf("disabled cache should stay empty, has %d entries", len(e.cache))
	}
}

func TestEngine_SetConfig(t *testing.T) {
	e, _ := setupTestEngine(t, map[string]string{"a.cs": `<?cs var:x ?>`})
	root := data.New()
	root.Set("x", "<")

	if got := renderName(t, e, "a.cs", root); got != "&lt;" {
		t.Errorf("html mode rendered %q", got)
	}

	config := e.GetConfig()
	config.EscapeMode = "none"
	if err := e.SetConfig(&config); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if got := renderName(t, e, "a.cs", root); got != "<" {
		t.Errorf("none mode rendered %q", got)
	}

	config.EscapeMode = "bogus"
	if err := e.SetConfig(&config); err == nil {
		t.Error("SetConfig should reject an unknown escape mode")
	}
	if e.GetConfig().EscapeMode != "none" {
		t.Error("a rejected config must not be applied")
	}
}

func TestEngine_Refresh(t *testing.T) {
	e, dir := setupTestEngine(t, map[string]string{"a.cs": `a`})

	writeTemplate(t, dir, "b.cs", `b`)
	if err := e.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := len(e.TemplateNames()); got != 2 {
		t.Errorf("expected 2 templates after refresh, got %d", got)
	}

	writeTemplate(t, dir, "broken.cs", `<?cs if:x ?>`)
	err := e.Refresh()
	if err == nil {
		t.Fatal("Refresh should report the broken template")
	}
	if !strings.Contains(err.Error(), "broken.cs") {
		t.Errorf("error should name the broken template: %v", err)
	}
	if got := renderName(t, e, "a.cs", nil); got != "a" {
		t.Errorf("healthy templates should still render, got %q", got)
	}
}

func TestEngine_RenderString(t *testing.T) {
	e, _ := setupTestEngine(t, map[string]string{
		"macros.cs": `<?cs def:em(x) ?><em><?cs var:x ?></em><?cs /def ?>`,
	})
	var buf bytes.Buffer
	err := e.RenderString(&buf, `<?cs include:"macros.cs" ?><?cs call:em("a<b") ?>`, nil)
	if err != nil {
		t.Fatalf("RenderString failed: %v", err)
	}
	if buf.String() != "<em>a&lt;b</em>" {
		t.Errorf("RenderString = %q", buf.String())
	}

	if err = e.RenderString(&buf, `<?cs var: ?>`, nil); err == nil {
		t.Error("RenderString should fail on a syntax error")
	}
}

func TestEngine_InlineTemplatesShareCache(t *testing.T) {
	e, _ := setupTestEngine(t, map[string]string{"a.cs": `<?cs lvar:src ?>`})
	root := data.New()
	root.Set("src", `<?cs var:"x" ?>`)

	for i := 0; i < 2; i++ {
		if got := renderName(t, e, "a.cs", root); got != "x" {
			t.Fatalf("render %d = %q", i, got)
		}
	}
	inline := 0
	for name := range e.cache {
		if strings.HasPrefix(name, "lvar@") {
			inline++
		}
	}
	if inline != 1 {
		t.Errorf("expected one cached inline template, got %d", inline)
	}
}

func TestEngine_Funcs(t *testing.T) {
	e, _ := setupTestEngine(t, map[string]string{"a.cs": `<?cs var:string.length(x) ?>`})
	root := data.New()
	root.Set("x", "héllo")
	if got := renderName(t, e, "a.cs", root); got != "5" {
		t.Errorf("string.length rendered %q", got)
	}
	if !e.Funcs().IsEscapingFunction("html_escape") {
		t.Error("engine registry should hold the builtins")
	}
}

func TestFSAndMapLoaders(t *testing.T) {
	fsys := fstest.MapFS{
		"a.cs":       {Data: []byte(`A<?cs include:"sub/b.cs" ?>`)},
		"sub/b.cs":   {Data: []byte(`B`)},
		".git/x.cs":  {Data: []byte(`hidden`)},
		"readme.txt": {Data: []byte(`doc`)},
	}
	fl := &FSLoader{FS: fsys, Extensions: []string{".cs"}}
	names, err := fl.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if strings.Join(names, ",") != "a.cs,sub/b.cs" {
		t.Errorf("FSLoader.List() = %v", names)
	}
	if _, err = fl.Open("../etc/passwd"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("escaping paths should not exist, got %v", err)
	}

	e, err := New(nil, fl, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := renderName(t, e, "a.cs", nil); got != "AB" {
		t.Errorf("FSLoader render = %q", got)
	}

	ml := MapLoader{"x": `<?cs var:"m" ?>`}
	e, err = New(nil, ml, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := renderName(t, e, "x", nil); got != "m" {
		t.Errorf("MapLoader render = %q", got)
	}
}

func TestDigest(t *testing.T) {
	if Digest("a") == Digest("b") {
		t.Error("different sources should not share a digest")
	}
	if len(Digest("")) != 64 {
		t.Errorf("digest should be 32 hex encoded bytes, got %q", Digest(""))
	}
}

func TestEngine_Watch(t *testing.T) {
	e, dir := setupTestEngine(t, map[string]string{"a.cs": `a`})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch returned %v", err)
		}
	})

	// The watcher may not be registered yet; keep touching the file until
	// the refresh shows up.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		writeTemplate(t, dir, "new.cs", `new`)
		time.Sleep(50 * time.Millisecond)
		for _, name := range e.TemplateNames() {
			if name == "new.cs" {
				return
			}
		}
	}
	t.Fatal("watcher did not pick up new.cs")
}
