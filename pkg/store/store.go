package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/CTAG07/Quicksilver/pkg/data"
)

// ErrNotFound is returned when a template or dataset does not exist.
var ErrNotFound = errors.New("not found")

// SetupSchema creates the store tables. It is idempotent and safe to call on
// an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaTemplates = `
CREATE TABLE IF NOT EXISTS qs_templates (
    template_id INTEGER PRIMARY KEY,
    template_name TEXT NOT NULL UNIQUE,
    source TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
		schemaDatasets = `
CREATE TABLE IF NOT EXISTS qs_datasets (
    dataset_id INTEGER PRIMARY KEY,
    dataset_name TEXT NOT NULL UNIQUE,
    payload BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("could not create templates schema: %w", err)
	}
	if _, err = tx.Exec(schemaDatasets); err != nil {
		return fmt.Errorf("could not create datasets schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Template is a stored template source.
type Template struct {
	Name    string
	Source  string
	Updated time.Time
}

// Store holds the database connection and the prepared statements used to
// read and write templates and datasets.
type Store struct {
	db                 *sql.DB
	stmtGetTemplate    *sql.Stmt
	stmtPutTemplate    *sql.Stmt
	stmtDeleteTemplate *sql.Stmt
	stmtListTemplates  *sql.Stmt
	stmtGetDataset     *sql.Stmt
	stmtPutDataset     *sql.Stmt
	stmtDeleteDataset  *sql.Stmt
	stmtListDatasets   *sql.Stmt
	logger             *slog.Logger
}

// New prepares every statement the Store needs. SetupSchema must have been
// run on db first.
func New(db *sql.DB) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtGetTemplate, `SELECT source, updated_at FROM qs_templates WHERE template_name = ?;`},
		{&s.stmtPutTemplate, `INSERT INTO qs_templates (template_name, source, updated_at) VALUES (?, ?, ?) ON CONFLICT(template_name) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at;`},
		{&s.stmtDeleteTemplate, `DELETE FROM qs_templates WHERE template_name = ?;`},
		{&s.stmtListTemplates, `SELECT template_name FROM qs_templates ORDER BY template_name;`},
		{&s.stmtGetDataset, `SELECT payload FROM qs_datasets WHERE dataset_name = ?;`},
		{&s.stmtPutDataset, `INSERT INTO qs_datasets (dataset_name, payload, updated_at) VALUES (?, ?, ?) ON CONFLICT(dataset_name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at;`},
		{&s.stmtDeleteDataset, `DELETE FROM qs_datasets WHERE dataset_name = ?;`},
		{&s.stmtListDatasets, `SELECT dataset_name FROM qs_datasets ORDER BY dataset_name;`},
	}
	for _, st := range stmts {
		stmt, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*st.dst = stmt
	}
	return s, nil
}

// Close releases the prepared statements. The database itself stays open.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtGetTemplate, s.stmtPutTemplate, s.stmtDeleteTemplate, s.stmtListTemplates,
		s.stmtGetDataset, s.stmtPutDataset, s.stmtDeleteDataset, s.stmtListDatasets,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// GetTemplate returns the template called name.
func (s *Store) GetTemplate(ctx context.Context, name string) (Template, error) {
	var (
		src     string
		updated int64
	)
	err := s.stmtGetTemplate.QueryRowContext(ctx, name).Scan(&src, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, fmt.Errorf("template %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Template{}, err
	}
	return Template{Name: name, Source: src, Updated: time.Unix(updated, 0)}, nil
}

// PutTemplate creates or replaces the template called name.
func (s *Store) PutTemplate(ctx context.Context, name, source string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("template name cannot be empty")
	}
	if _, err := s.stmtPutTemplate.ExecContext(ctx, name, source, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store template %q: %w", name, err)
	}
	s.logger.DebugContext(ctx, "Template stored", slog.String("template", name), slog.Int("bytes", len(source)))
	return nil
}

// DeleteTemplate removes the template called name.
func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	return s.delete(ctx, s.stmtDeleteTemplate, "template", name)
}

// ListTemplates returns every template name, sorted.
func (s *Store) ListTemplates(ctx context.Context) ([]string, error) {
	return s.names(ctx, s.stmtListTemplates)
}

// GetDataset returns a detached copy of the dataset called name.
func (s *Store) GetDataset(ctx context.Context, name string) (*data.Node, error) {
	var payload []byte
	err := s.stmtGetDataset.QueryRowContext(ctx, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	n, err := data.DecodeCBOR(payload)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	return n, nil
}

// PutDataset creates or replaces the dataset called name with the tree
// rooted at root.
func (s *Store) PutDataset(ctx context.Context, name string, root *data.Node) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("dataset name cannot be empty")
	}
	payload, err := data.EncodeCBOR(root)
	if err != nil {
		return err
	}
	if _, err = s.stmtPutDataset.ExecContext(ctx, name, payload, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store dataset %q: %w", name, err)
	}
	s.logger.DebugContext(ctx, "Dataset stored", slog.String("dataset", name), slog.Int("bytes", len(payload)))
	return nil
}

// DeleteDataset removes the dataset called name.
func (s *Store) DeleteDataset(ctx context.Context, name string) error {
	return s.delete(ctx, s.stmtDeleteDataset, "dataset", name)
}

// ListDatasets returns every dataset name, sorted.
func (s *Store) ListDatasets(ctx context.Context) ([]string, error) {
	return s.names(ctx, s.stmtListDatasets)
}

func (s *Store) delete(ctx context.Context, stmt *sql.Stmt, kind, name string) error {
	res, err := stmt.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to remove %s %q: %w", kind, name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}
	s.logger.InfoContext(ctx, "Removed "+kind, slog.String("name", name))
	return nil
}

func (s *Store) names(ctx context.Context, stmt *sql.Stmt) ([]string, error) {
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// Open returns the source of the template called name, making the Store a
// resource loader. A missing template reports fs.ErrNotExist.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	t, err := s.GetTemplate(context.Background(), name)
	if errors.Is(err, ErrNotFound) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(t.Source)), nil
}

// List returns every template name, sorted.
func (s *Store) List() ([]string, error) {
	return s.ListTemplates(context.Background())
}
