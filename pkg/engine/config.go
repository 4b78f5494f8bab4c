package engine

import (
	"fmt"

	"github.com/CTAG07/Quicksilver/pkg/escape"
)

// Config holds all configuration options for the template engine.
type Config struct {
	// TemplateDir is the directory templates are read from when the engine
	// is built with NewDirEngine, and the directory Watch follows.
	TemplateDir string `json:"template_dir"`

	// Extensions lists the file suffixes that count as templates when
	// listing a directory. An empty list accepts every file.
	Extensions []string `json:"extensions"`

	// EscapeMode is the default output escaping: none, html, js, url, css or
	// auto.
	EscapeMode string `json:"escape_mode"`

	// PropagateEscapeStatus tracks the escape state of values through set
	// commands and function calls.
	PropagateEscapeStatus bool `json:"propagate_escape_status"`

	// CacheEnabled keeps compiled templates between renders.
	CacheEnabled bool `json:"cache_enabled"`

	// Watch refreshes the engine when files in TemplateDir change.
	Watch bool `json:"watch"`
}

// DefaultConfig returns a Config with safe default values: HTML escaping,
// caching on, and no directory watching.
func DefaultConfig() Config {
	return Config{
		TemplateDir:  "templates",
		Extensions:   []string{".cs", ".cst"},
		EscapeMode:   "html",
		CacheEnabled: true,
	}
}

// Mode returns the parsed EscapeMode.
func (c Config) Mode() (escape.Mode, error) {
	m, err := escape.ParseMode(c.EscapeMode)
	if err != nil {
		return escape.ModeNone, fmt.Errorf("engine config: %w", err)
	}
	return m, nil
}
