package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/compiler"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/engine"
	"github.com/CTAG07/Quicksilver/pkg/store"
)

// dataExtensions are tried in order when a dataset is looked up by name in
// the data directory.
var dataExtensions = []string{".hdf", ".json", ".yaml", ".yml", ".cbor"}

// app bundles what the commands share: the loaded config, the logger and,
// on demand, the store and the engine.
type app struct {
	config *Config
	logger *slog.Logger
	db     *sql.DB
	store  *store.Store
	engine *engine.Engine
}

func newApp(configPath, logLevel string) (*app, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel == "" {
		logLevel = config.Server.LogLevel
	}
	return &app{config: config, logger: newLogger(logLevel)}, nil
}

// openStore opens the database and prepares the store. It is a no-op when
// the store is already open.
func (a *app) openStore() error {
	if a.store != nil {
		return nil
	}
	db, err := initDB(a.config.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to setup store schema: %w", err)
	}
	s, err := store.New(db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create store: %w", err)
	}
	s.SetLogger(a.logger)
	a.db, a.store = db, s
	return nil
}

// openEngine builds the engine over the store when it is enabled and over
// the template directory otherwise.
func (a *app) openEngine() error {
	if a.engine != nil {
		return nil
	}
	var res compiler.ResourceLoader
	if a.config.Store.Enabled {
		if err := a.openStore(); err != nil {
			return err
		}
		res = a.store
	} else {
		res = engine.NewDirLoader(a.config.Engine.TemplateDir, a.config.Engine.Extensions...)
	}

	e, err := engine.New(a.logger, res, a.config.Engine)
	if err != nil {
		return fmt.Errorf("failed to create template engine: %w", err)
	}
	a.engine = e
	return nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
}

// loadDataset returns the dataset called name: from the store when it is
// enabled, otherwise from a file in the data directory. An empty name is an
// empty tree.
func (a *app) loadDataset(ctx context.Context, name string) (*data.Node, error) {
	if name == "" {
		return data.New(), nil
	}
	if a.config.Store.Enabled {
		if err := a.openStore(); err != nil {
			return nil, err
		}
		return a.store.GetDataset(ctx, name)
	}
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("dataset %q: %w", name, store.ErrNotFound)
	}
	base := filepath.Join(a.config.Server.DataDir, filepath.FromSlash(name))
	for _, ext := range dataExtensions {
		root, err := readDataFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return root, err
	}
	return nil, fmt.Errorf("dataset %q: %w", name, store.ErrNotFound)
}

// readDataFile loads a data tree from path. The format follows the file
// extension; anything unrecognised is read as HDF.
func readDataFile(path string) (*data.Node, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root := data.New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = data.ReadJSON(root, bytes.NewReader(b))
	case ".yaml", ".yml":
		err = data.ReadYAML(root, bytes.NewReader(b))
	case ".cbor":
		root, err = data.DecodeCBOR(b)
	default:
		err = data.ReadHDF(root, bytes.NewReader(b))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	return root, nil
}
