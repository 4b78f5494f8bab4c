package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/engine"
)

// setupTestStore opens a fresh database in a temp dir and returns a Store
// over it. Resources are released with t.Cleanup.
func setupTestStore(tb testing.TB) (*sql.DB, *Store) {
	tb.Helper()
	dbFile := filepath.Join(tb.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		tb.Fatalf("failed to set up schema: %v", err)
	}
	s, err := New(db)
	if err != nil {
		tb.Fatalf("New() error = %v", err)
	}
	tb.Cleanup(s.Close)
	return db, s
}

func TestSetupSchemaIsIdempotent(t *testing.T) {
	db, _ := setupTestStore(t)
	if err := SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema() error = %v", err)
	}
}

func TestTemplates(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTemplate(ctx, "b.cs", "bee"))
	require.NoError(t, s.PutTemplate(ctx, "a.cs", "one"))
	require.NoError(t, s.PutTemplate(ctx, "a.cs", "two"))

	got, err := s.GetTemplate(ctx, "a.cs")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Source)
	assert.False(t, got.Updated.IsZero())

	names, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cs", "b.cs"}, names)

	require.NoError(t, s.DeleteTemplate(ctx, "b.cs"))
	_, err = s.GetTemplate(ctx, "b.cs")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTemplate(ctx, "b.cs"), ErrNotFound)

	assert.Error(t, s.PutTemplate(ctx, " ", "x"))
}

func TestDatasets(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	root := data.New()
	root.Set("page.title", "Home")
	root.Set("items.0", "x")
	root.Set("items.1", "y")

	require.NoError(t, s.PutDataset(ctx, "home", root))
	got, err := s.GetDataset(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "Home", got.GetValue("page.title", ""))
	assert.Equal(t, 2, got.Get("items").ChildCount())

	names, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, names)

	require.NoError(t, s.DeleteDataset(ctx, "home"))
	_, err = s.GetDataset(ctx, "home")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportImport(t *testing.T) {
	_, src := setupTestStore(t)
	ctx := context.Background()

	root := data.New()
	root.Set("name", "world")
	require.NoError(t, src.PutTemplate(ctx, "hello.cs", `Hello <?cs var:name ?>`))
	require.NoError(t, src.PutDataset(ctx, "greeting", root))

	var buf bytes.Buffer
	require.NoError(t, src.Export(ctx, &buf))
	assert.Contains(t, buf.String(), `"hello.cs"`)

	_, dst := setupTestStore(t)
	require.NoError(t, dst.PutTemplate(ctx, "hello.cs", "stale"))
	require.NoError(t, dst.Import(ctx, &buf))

	tmpl, err := dst.GetTemplate(ctx, "hello.cs")
	require.NoError(t, err)
	assert.Equal(t, `Hello <?cs var:name ?>`, tmpl.Source)

	ds, err := dst.GetDataset(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "world", ds.GetValue("name", ""))
}

func TestImportIsAtomic(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	in := `{"templates":[{"name":"ok.cs","source":"ok"}],"datasets":[{"name":"bad","payload":"not base64!"}]}`
	err := s.Import(ctx, strings.NewReader(in))
	require.Error(t, err)

	_, err = s.GetTemplate(ctx, "ok.cs")
	assert.ErrorIs(t, err, ErrNotFound, "a failed import must not leave partial data")

	assert.Error(t, s.Import(ctx, strings.NewReader("{")))
}

func TestStoreAsResourceLoader(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTemplate(ctx, "page.cs", `<?cs include:"header.cs" ?><?cs var:body ?>`))
	require.NoError(t, s.PutTemplate(ctx, "header.cs", `<h1>hi</h1>`))

	r, err := s.Open("page.cs")
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), "include")

	_, err = s.Open("missing.cs")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "missing template should report fs.ErrNotExist, got %v", err)

	e, err := engine.New(nil, s, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"header.cs", "page.cs"}, e.TemplateNames())

	root := data.New()
	root.Set("body", "a&b")
	var out bytes.Buffer
	require.NoError(t, e.Render(&out, "page.cs", root))
	assert.Equal(t, "<h1>hi</h1>a&amp;b", out.String())
}
