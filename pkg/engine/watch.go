package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch follows the template directory and refreshes the engine whenever a
// template file is written, created, removed or renamed. New subdirectories
// are followed too. It blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context) error {
	cfg := e.GetConfig()
	if cfg.TemplateDir == "" {
		return errors.New("engine: no template directory to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func(w *fsnotify.Watcher) {
		_ = w.Close()
	}(w)

	logger := e.log()
	if err = addTree(w, cfg.TemplateDir); err != nil {
		return err
	}
	logger.Info("Watching templates", "dir", cfg.TemplateDir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						logger.Error("failed to watch directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) ||
				!matchExtension(ev.Name, cfg.Extensions) {
				continue
			}
			logger.Info("Template changed, refreshing", "file", ev.Name, "op", ev.Op.String())
			if err := e.Refresh(); err != nil {
				logger.Error("refresh after change failed", "error", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("template watcher error", "error", err)
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
