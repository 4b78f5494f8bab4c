package engine

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/CTAG07/Quicksilver/pkg/compiler"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/funcs"
	"github.com/CTAG07/Quicksilver/pkg/parser"
)

type cacheEntry struct {
	sum  [blake2b.Size256]byte
	tmpl *compiler.Template
}

// Engine is the central controller for templates. It owns the resource
// loader, the function registry and the compiled-template cache, and it is
// the TemplateLoader its templates resolve includes through.
// All methods are concurrent-safe.
type Engine struct {
	logger *slog.Logger
	config *Config
	mode   escape.Mode
	funcs  *funcs.Registry
	res    compiler.ResourceLoader
	cache  map[string]cacheEntry
	gen    uint64
	names  []string
	mu     sync.RWMutex
}

// New creates an Engine reading templates through res and performs an
// initial Refresh. Refresh failures are logged, not returned, so one broken
// template does not keep the others from serving. A nil logger discards
// output.
func New(logger *slog.Logger, res compiler.ResourceLoader, config *Config) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	mode, err := config.Mode()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		logger: logger,
		config: config,
		mode:   mode,
		funcs:  funcs.Default(),
		res:    res,
		cache:  make(map[string]cacheEntry),
	}
	if err = e.Refresh(); err != nil {
		logger.Warn("Initial template refresh reported errors", "error", err)
	}
	logger.Info("Template engine initialized", "escape_mode", mode, "templates", len(e.names))
	return e, nil
}

// NewDirEngine creates an Engine over config.TemplateDir.
func NewDirEngine(logger *slog.Logger, config *Config) (*Engine, error) {
	return New(logger, NewDirLoader(config.TemplateDir, config.Extensions...), config)
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

func (e *Engine) log() *slog.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// SetConfig applies a new configuration and drops every compiled template,
// so the next render compiles with the new settings.
func (e *Engine) SetConfig(config *Config) error {
	mode, err := config.Mode()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = config
	e.mode = mode
	e.clearLocked()
	return nil
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.config
}

// Funcs returns the function registry templates call into. Functions may be
// registered on it at any time.
func (e *Engine) Funcs() *funcs.Registry {
	return e.funcs
}

// Resources returns the resource loader templates are read through.
func (e *Engine) Resources() compiler.ResourceLoader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.res
}

// TemplateNames returns the names found by the last Refresh.
func (e *Engine) TemplateNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.names)
}

func (e *Engine) clearLocked() {
	e.cache = make(map[string]cacheEntry)
	e.gen++
}

// Refresh drops the cache and, when the resource loader is a Lister,
// compiles every template it lists. Failures are logged and returned
// together; the templates that compiled stay usable.
func (e *Engine) Refresh() error {
	e.mu.Lock()
	e.clearLocked()
	res := e.res
	logger := e.logger
	e.mu.Unlock()

	lister, ok := res.(Lister)
	if !ok {
		logger.Info("Resource loader cannot list templates, compiling on demand")
		return nil
	}
	logger.Info("Loading templates...")
	names, err := lister.List()
	if err != nil {
		logger.Error("failed to list templates", "error", err)
		return err
	}

	var errs []error
	for _, name := range names {
		if _, err := e.Load(name, res); err != nil {
			logger.Error("failed to compile template", "template", name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(names) == 0 {
		logger.Warn("No templates found")
	}

	e.mu.Lock()
	e.names = names
	e.mu.Unlock()
	logger.Info("Loaded templates", "count", len(names)-len(errs), "failed", len(errs))
	return errors.Join(errs...)
}

// Load returns the compiled template called name, compiling it when the
// cache holds no entry for the current source. A nil res uses the engine's
// resource loader.
func (e *Engine) Load(name string, res compiler.ResourceLoader) (*compiler.Template, error) {
	if res == nil {
		res = e.Resources()
	}
	src, err := compiler.ReadSource(name, res)
	if err != nil {
		return nil, err
	}
	return e.compile(name, src)
}

// LoadInline compiles source under name. Inline templates share the cache,
// so an lvar rendering the same source twice compiles it once.
func (e *Engine) LoadInline(name, source string) (*compiler.Template, error) {
	return e.compile(name, source)
}

func (e *Engine) compile(name, src string) (*compiler.Template, error) {
	sum := blake2b.Sum256([]byte(src))

	e.mu.RLock()
	cached, hit := e.cache[name]
	useCache := e.config.CacheEnabled
	gen := e.gen
	opts := e.optionsLocked()
	e.mu.RUnlock()

	if useCache && hit && cached.sum == sum {
		opts.Logger.Debug("template cache hit", "template", name)
		return cached.tmpl, nil
	}

	tree, err := parser.Parse(name, src)
	if err != nil {
		return nil, err
	}
	t, err := compiler.Compile(tree, opts)
	if err != nil {
		return nil, err
	}

	if useCache {
		e.mu.Lock()
		if e.gen == gen {
			e.cache[name] = cacheEntry{sum: sum, tmpl: t}
		}
		e.mu.Unlock()
		opts.Logger.Debug("template cached", "template", name, "digest", hex.EncodeToString(sum[:8]))
	}
	return t, nil
}

func (e *Engine) optionsLocked() compiler.Options {
	return compiler.Options{
		EscapeMode:            e.mode,
		PropagateEscapeStatus: e.config.PropagateEscapeStatus,
		Funcs:                 e.funcs,
		Loader:                e,
		Logger:                e.logger,
	}
}

// Render renders the template called name against root, writing to w.
func (e *Engine) Render(w io.Writer, name string, root *data.Node) error {
	if name == "" {
		return nil
	}
	t, err := e.Load(name, nil)
	if err != nil {
		return err
	}
	return t.Render(root, w, e.Resources())
}

// RenderString parses and renders a raw template string. It bypasses the
// cache, which makes it suited to previews of unsaved templates.
func (e *Engine) RenderString(w io.Writer, content string, root *data.Node) error {
	tree, err := parser.Parse("string", content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}
	e.mu.RLock()
	opts := e.optionsLocked()
	e.mu.RUnlock()
	t, err := compiler.Compile(tree, opts)
	if err != nil {
		return fmt.Errorf("failed to compile string template: %w", err)
	}
	return t.Render(root, w, e.Resources())
}

// Digest returns the hex BLAKE2b-256 digest the cache keys src by.
func Digest(src string) string {
	sum := blake2b.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}
