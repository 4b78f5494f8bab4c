package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/CTAG07/Quicksilver/pkg/engine"
)

//go:embed config.schema.json
var configSchema string

// ServerConfig holds the settings of the serve command and the CLI logger.
type ServerConfig struct {
	Addr               string            `json:"addr"`
	LogLevel           string            `json:"log_level"`
	DataDir            string            `json:"data_dir"`
	ShutdownTimeoutSec int               `json:"shutdown_timeout_sec"`
	Headers            map[string]string `json:"headers"`
}

// StoreConfig selects the SQLite template store.
type StoreConfig struct {
	// Enabled makes the store, instead of the template directory, the
	// source of templates and datasets.
	Enabled      bool   `json:"enabled"`
	DatabasePath string `json:"database_path"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig  `json:"server_config"`
	Engine *engine.Config `json:"engine_config"`
	Store  *StoreConfig   `json:"store_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:               ":7280",
		LogLevel:           "info",
		DataDir:            "./data",
		ShutdownTimeoutSec: 10,
		Headers: map[string]string{
			"Cache-Control": "no-cache",
			"Content-Type":  "text/html; charset=utf-8",
		},
	}
}

// DefaultStoreConfig creates a store configuration with default values.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Enabled:      false,
		DatabasePath: "./data/quicksilver.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

// DefaultConfig returns the configuration written when no file exists.
func DefaultConfig() *Config {
	ec := engine.DefaultConfig()
	return &Config{
		Server: DefaultServerConfig(),
		Engine: &ec,
		Store:  DefaultStoreConfig(),
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values. An existing
// file is checked against the embedded schema before it is decoded.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err = SaveConfig(path, config); err != nil {
				// The defaults still work without a file on disk.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = validateConfig(file); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	// Sections set to null fall back to their defaults.
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Engine == nil {
		ec := engine.DefaultConfig()
		config.Engine = &ec
	}
	if config.Store == nil {
		config.Store = DefaultStoreConfig()
	}
	if _, err = config.Engine.Mode(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes config to path atomically.
func SaveConfig(path string, config *Config) error {
	b, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "schema://config.json"
	if err := compiler.AddResource(url, strings.NewReader(configSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
})

func validateConfig(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	var v any
	if err = json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return schema.Validate(v)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
}
