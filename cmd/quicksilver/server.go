package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CTAG07/Quicksilver/pkg/compiler"
	"github.com/CTAG07/Quicksilver/pkg/store"
)

// queryName matches request parameters that are exposed to templates as
// Query.<name>.
var queryName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Server renders templates over HTTP and exposes a small management API.
type Server struct {
	app *app
	mux *http.ServeMux
}

// NewServer registers the routes for a. The engine must be open.
func NewServer(a *app) *Server {
	s := &Server{app: a, mux: http.NewServeMux()}
	s.mux.HandleFunc("/render/", s.handleRender)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/templates", s.handleList)
	s.mux.HandleFunc("/api/health", s.handleHealthCheck)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleRender renders /render/{name}. The data query parameter names the
// dataset, and every other simple parameter is set under Query.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := r.URL.Path[len("/render/"):]
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Template name is required")
		return
	}
	logger := s.app.logger

	root, err := s.app.loadDataset(r.Context(), r.URL.Query().Get("data"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Error("Failed to load dataset", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load dataset")
		return
	}
	for k, v := range r.URL.Query() {
		if k == "data" || len(v) == 0 || !queryName.MatchString(k) {
			continue
		}
		root.Set("Query."+k, v[0])
	}

	start := time.Now()
	var buf bytes.Buffer
	if err = s.app.engine.Render(&buf, name, root); err != nil {
		if errors.Is(err, compiler.ErrTemplateNotFound) {
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template %q not found", name))
			return
		}
		logger.Error("Failed to render template", "template", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Template render failed: %v", err))
		return
	}
	logger.Debug("Served template", "template", name, "bytes", buf.Len(), "elapsed", time.Since(start))

	for k, v := range s.app.config.Server.Headers {
		w.Header().Set(k, v)
	}
	_, _ = buf.WriteTo(w)
}

// handleRefresh drops the compiled templates and recompiles everything.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := s.app.engine.Refresh(); err != nil {
		s.app.logger.Error("API triggered refresh failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to refresh templates: %v", err))
		return
	}
	s.app.logger.Info("Templates refreshed via API")
	w.WriteHeader(http.StatusNoContent)
}

// handleList returns the names of all known templates.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, s.app.engine.TemplateNames())
}

// VersionInfo is the body of the health check.
type VersionInfo struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Templates int    `json:"templates"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.app.db != nil {
		if err := s.app.db.PingContext(r.Context()); err != nil {
			s.app.logger.Error("Health check database ping failed", "error", err)
			respondWithError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Status:    "ok",
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		Templates: len(s.app.engine.TemplateNames()),
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to encode JSON response", "error", err)
		}
	}
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered templates over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.logLevel)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.config.Server.Addr = addr
			}
			if err = a.openEngine(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Override the configured listen address")
	return cmd
}

// serve runs the HTTP server, and the template watcher when configured,
// until ctx is done, then shuts the server down gracefully.
func serve(ctx context.Context, a *app) error {
	logger := a.logger
	httpServer := &http.Server{
		Addr:              a.config.Server.Addr,
		Handler:           NewServer(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.config.Engine.Watch && !a.config.Store.Enabled {
		go func() {
			if err := a.engine.Watch(ctx); err != nil {
				logger.Error("Template watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting quicksilver server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Stopping server...")
	timeout := time.Duration(a.config.Server.ShutdownTimeoutSec) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("HTTP server stopped.")
	return nil
}
