package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestApp writes templates and data files into a temp dir, points a
// fresh config at them and returns an app with its engine open.
func setupTestApp(tb testing.TB, templates, datasets map[string]string) *app {
	tb.Helper()
	dir := tb.TempDir()
	tmplDir := filepath.Join(dir, "templates")
	dataDir := filepath.Join(dir, "data")
	for sub, files := range map[string]map[string]string{tmplDir: templates, dataDir: datasets} {
		require.NoError(tb, os.MkdirAll(sub, 0755))
		for name, content := range files {
			require.NoError(tb, os.WriteFile(filepath.Join(sub, name), []byte(content), 0644))
		}
	}

	config := DefaultConfig()
	config.Engine.TemplateDir = tmplDir
	config.Server.DataDir = dataDir
	config.Store.DatabasePath = filepath.Join(dir, "test.db")
	configPath := filepath.Join(dir, "config.json")
	require.NoError(tb, SaveConfig(configPath, config))

	a, err := newApp(configPath, "error")
	require.NoError(tb, err)
	tb.Cleanup(a.Close)
	require.NoError(tb, a.openEngine())
	return a
}

func TestLoadConfig(t *testing.T) {
	t.Run("MissingFileWritesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultServerConfig().Addr, config.Server.Addr)
		_, err = os.Stat(path)
		assert.NoError(t, err, "defaults should be written to disk")

		again, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, config.Engine, again.Engine)
	})

	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"engine_config":{"escape_mode":"auto"}}`), 0644))
		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "auto", config.Engine.EscapeMode)
		assert.True(t, config.Engine.CacheEnabled)
		assert.Equal(t, "info", config.Server.LogLevel)
	})

	t.Run("SchemaViolations", func(t *testing.T) {
		for name, body := range map[string]string{
			"UnknownSection": `{"bogus":{}}`,
			"BadEscapeMode":  `{"engine_config":{"escape_mode":"shout"}}`,
			"BadLogLevel":    `{"server_config":{"log_level":"loud"}}`,
			"BadExtension":   `{"engine_config":{"extensions":["cs"]}}`,
			"WrongType":      `{"store_config":{"enabled":"yes"}}`,
		} {
			t.Run(name, func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "config.json")
				require.NoError(t, os.WriteFile(path, []byte(body), 0644))
				_, err := LoadConfig(path)
				assert.Error(t, err)
			})
		}
	})
}

func TestServerRender(t *testing.T) {
	a := setupTestApp(t,
		map[string]string{
			"page.cs": `<h1><?cs var:page.title ?></h1><?cs var:Query.q ?>`,
			"bad.cs":  `<?cs call:nope() ?>`,
		},
		map[string]string{
			"home.hdf": "page.title = Home & Away\n",
		},
	)
	srv := NewServer(a)

	tests := []struct {
		name   string
		method string
		target string
		code   int
		body   string
	}{
		{"WithDataset", http.MethodGet, "/render/page.cs?data=home&q=%3Cx%3E", http.StatusOK, "<h1>Home &amp; Away</h1>&lt;x&gt;"},
		{"NoDataset", http.MethodGet, "/render/page.cs", http.StatusOK, "<h1></h1>"},
		{"MissingTemplate", http.MethodGet, "/render/nope.cs", http.StatusNotFound, "not found"},
		{"MissingDataset", http.MethodGet, "/render/page.cs?data=nope", http.StatusNotFound, "not found"},
		{"DatasetEscape", http.MethodGet, "/render/page.cs?data=../home", http.StatusNotFound, "not found"},
		{"RenderError", http.MethodGet, "/render/bad.cs", http.StatusInternalServerError, "undefined macro"},
		{"WrongMethod", http.MethodPost, "/render/page.cs", http.StatusMethodNotAllowed, "Method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestServerAPI(t *testing.T) {
	a := setupTestApp(t, map[string]string{"a.cs": "a", "b.cs": "b"}, nil)
	srv := NewServer(a)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"a.cs", "b.cs"}, names)

	require.NoError(t, os.WriteFile(filepath.Join(a.config.Engine.TemplateDir, "c.cs"), []byte("c"), 0644))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, a.engine.TemplateNames(), 3)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.Templates)
}

func TestCheckTemplates(t *testing.T) {
	a := setupTestApp(t, map[string]string{
		"good.cs":   `<?cs var:x ?>`,
		"broken.cs": `<?cs if:x ?>`,
	}, nil)

	var out bytes.Buffer
	err := checkTemplates(&out, a.engine, []string{"good.cs", "broken.cs", "gone.cs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 templates failed")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "OK")
	assert.Contains(t, lines[1], "ERROR")
	assert.Contains(t, lines[2], "MISSING")
}

func TestReadDataFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"d.hdf":  "a.b = 1\n",
		"d.json": `{"a":{"b":"1"}}`,
		"d.yaml": "a:\n  b: \"1\"\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		root, err := readDataFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, "1", root.GetValue("a.b", ""), name)
	}

	_, err := readDataFile(filepath.Join(dir, "missing.hdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenderCommand(t *testing.T) {
	a := setupTestApp(t, map[string]string{"hi.cs": `Hi <?cs var:who ?>`}, map[string]string{"w.json": `{"who":"<you>"}`})
	configPath := filepath.Join(filepath.Dir(a.config.Engine.TemplateDir), "config.json")
	outPath := filepath.Join(t.TempDir(), "out.html")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"-c", configPath, "--log-level", "error", "render", "hi.cs", "-d", "w", "-o", outPath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "Hi &lt;you&gt;", string(got))

	var stdout bytes.Buffer
	cmd = newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"-c", configPath, "--log-level", "error", "render", "--inline", "--escape", "none", `<?cs var:who ?>`, "-d", "w"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "<you>", stdout.String())
}

func TestStoreCommands(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.Store.DatabasePath = filepath.Join(dir, "store.db")
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, SaveConfig(configPath, config))

	tmplPath := filepath.Join(dir, "page.cs")
	require.NoError(t, os.WriteFile(tmplPath, []byte(`<?cs var:title ?>`), 0644))
	dataPath := filepath.Join(dir, "home.hdf")
	require.NoError(t, os.WriteFile(dataPath, []byte("title = Stored\n"), 0644))
	exportPath := filepath.Join(dir, "export.json")

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"-c", configPath, "--log-level", "error"}, args...))
		require.NoError(t, cmd.ExecuteContext(context.Background()), args)
		return out.String()
	}

	run("store", "put", "page.cs", tmplPath)
	run("store", "data", "home", dataPath)
	assert.Contains(t, run("store", "ls"), "page.cs")
	run("store", "export", exportPath)

	exported, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(exported), `"page.cs"`)

	config.Store.Enabled = true
	require.NoError(t, SaveConfig(configPath, config))
	assert.Equal(t, "Stored", run("render", "page.cs", "-d", "home"))

	run("store", "rm", "page.cs")
	run("store", "import", exportPath)
	assert.Equal(t, "Stored", run("render", "page.cs", "-d", "home"))
}
