package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CTAG07/Quicksilver/pkg/data"
)

// Export is the serializable form of a whole store, used for JSON backups.
// Dataset payloads are the base64 of their CBOR snapshots.
type Export struct {
	Templates []ExportedTemplate `json:"templates"`
	Datasets  []ExportedDataset  `json:"datasets,omitempty"`
}

// ExportedTemplate is one template of an Export.
type ExportedTemplate struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// ExportedDataset is one dataset of an Export.
type ExportedDataset struct {
	Name    string `json:"name"`
	Payload string `json:"payload"`
}

// Export writes every template and dataset to w as indented JSON.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	var out Export

	rows, err := s.db.QueryContext(ctx, "SELECT template_name, source FROM qs_templates ORDER BY template_name")
	if err != nil {
		return fmt.Errorf("could not query templates for export: %w", err)
	}
	for rows.Next() {
		var t ExportedTemplate
		if err = rows.Scan(&t.Name, &t.Source); err != nil {
			_ = rows.Close()
			return err
		}
		out.Templates = append(out.Templates, t)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}

	dRows, err := s.db.QueryContext(ctx, "SELECT dataset_name, payload FROM qs_datasets ORDER BY dataset_name")
	if err != nil {
		return fmt.Errorf("could not query datasets for export: %w", err)
	}
	for dRows.Next() {
		var (
			name    string
			payload []byte
		)
		if err = dRows.Scan(&name, &payload); err != nil {
			_ = dRows.Close()
			return err
		}
		out.Datasets = append(out.Datasets, ExportedDataset{Name: name, Payload: base64.StdEncoding.EncodeToString(payload)})
	}
	_ = dRows.Close()
	if err = dRows.Err(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Store exported",
		slog.Int("templates_exported", len(out.Templates)),
		slog.Int("datasets_exported", len(out.Datasets)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// Import reads an Export from r and merges it into the store. Entries with
// an existing name are replaced. The whole import is one transaction.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	var in Export
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("failed to decode json export: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	now := time.Now().Unix()
	stmtPutTemplate := tx.StmtContext(ctx, s.stmtPutTemplate)
	for _, t := range in.Templates {
		if t.Name == "" {
			return fmt.Errorf("import contains a template without a name")
		}
		if _, err = stmtPutTemplate.ExecContext(ctx, t.Name, t.Source, now); err != nil {
			return fmt.Errorf("failed to import template %q: %w", t.Name, err)
		}
	}

	stmtPutDataset := tx.StmtContext(ctx, s.stmtPutDataset)
	for _, d := range in.Datasets {
		payload, err := base64.StdEncoding.DecodeString(d.Payload)
		if err != nil {
			return fmt.Errorf("dataset %q: bad payload: %w", d.Name, err)
		}
		// Reject payloads that would fail on every later read.
		if _, err = data.DecodeCBOR(payload); err != nil {
			return fmt.Errorf("dataset %q: %w", d.Name, err)
		}
		if _, err = stmtPutDataset.ExecContext(ctx, d.Name, payload, now); err != nil {
			return fmt.Errorf("failed to import dataset %q: %w", d.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Store imported",
		slog.Int("templates_merged", len(in.Templates)),
		slog.Int("datasets_merged", len(in.Datasets)),
	)
	return nil
}
