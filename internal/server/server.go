// Package server serves live previews of built targets over HTTP.
//
// Pages are plain HTML with the BBCode shown verbatim; a small script keeps a
// WebSocket open and reloads the page after each rebuild of its target.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/logging"
	"github.com/conneroisu/bbcoder/internal/version"
	"github.com/conneroisu/bbcoder/internal/websocket"
)

// Options configure the HTTP listener.
type Options struct {
	Host string
	Port int
}

// Addr returns the host:port listen address.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// PreviewServer serves built targets with live reload.
type PreviewServer struct {
	opts         Options
	orchestrator *Orchestrator
	wsManager    *websocket.Manager
	logger       logging.Logger

	httpServer  *http.Server
	listener    net.Listener
	serverMutex sync.RWMutex
}

// New creates a preview server. wsManager may be nil, in which case pages do
// not reload.
func New(opts Options, orchestrator *Orchestrator, wsManager *websocket.Manager, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PreviewServer{
		opts:         opts,
		orchestrator: orchestrator,
		wsManager:    wsManager,
		logger:       logger.WithComponent("server"),
	}
}

// Handler returns the HTTP routes of the server.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /targets/{name}", s.handleTarget)
	mux.HandleFunc("GET /preview/{name}", s.handlePreview)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	if s.wsManager != nil {
		mux.Handle("GET /ws", s.wsManager)
	}
	return s.logRequests(securityHeaders(mux))
}

// Listen binds the listen address. It is separate from Serve so callers
// learn the address, including a system-assigned port, before serving.
func (s *PreviewServer) Listen() (net.Addr, error) {
	listener, err := net.Listen("tcp", s.opts.Addr())
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeOpenFile, fmt.Sprintf("Unable to listen on %s", s.opts.Addr()), err)
	}

	s.serverMutex.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Unlock()

	return listener.Addr(), nil
}

// Serve serves requests until Shutdown is called.
func (s *PreviewServer) Serve() error {
	s.serverMutex.RLock()
	server, listener := s.httpServer, s.listener
	s.serverMutex.RUnlock()
	if server == nil {
		return fmt.Errorf("server is not listening")
	}

	s.logger.Info(context.Background(), "Preview server listening", "addr", listener.Addr().String())
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes WebSocket clients.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	s.serverMutex.RLock()
	server := s.httpServer
	s.serverMutex.RUnlock()

	var errs []error
	if s.wsManager != nil {
		errs = append(errs, s.wsManager.Shutdown(ctx))
	}
	if server != nil {
		errs = append(errs, server.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, s.logger, r, http.StatusOK, indexPage(s.orchestrator))
}

func (s *PreviewServer) handleTarget(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.orchestrator.HasTarget(name) {
		http.NotFound(w, r)
		return
	}

	result, ok := s.orchestrator.Tracker().Result(name)
	switch {
	case !ok:
		http.Error(w, fmt.Sprintf("Target '%s' has not been built yet", name), http.StatusServiceUnavailable)
	case result.Error != nil:
		http.Error(w, result.Error.Error(), http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write(result.Output); err != nil {
			s.logger.Warn(r.Context(), err, "Failed to write response", "target", name)
		}
	}
}

func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.orchestrator.HasTarget(name) {
		http.NotFound(w, r)
		return
	}

	result, _ := s.orchestrator.Tracker().Result(name)
	writeHTML(w, s.logger, r, http.StatusOK, previewPage(name, result, s.wsManager != nil))
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, r, map[string]interface{}{
		"status":    "healthy",
		"version":   version.GetShortVersion(),
		"timestamp": time.Now(),
	})
}

// targetStatus is one entry of /api/status.
type targetStatus struct {
	Name       string   `json:"name"`
	Built      bool     `json:"built"`
	Error      string   `json:"error,omitempty"`
	OutputPath string   `json:"output_path,omitempty"`
	Bytes      int      `json:"bytes"`
	DurationMS int64    `json:"duration_ms"`
	Documents  []string `json:"documents,omitempty"`
}

func (s *PreviewServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	targets := s.orchestrator.Targets()
	statuses := make([]targetStatus, 0, len(targets))
	for _, name := range targets {
		status := targetStatus{Name: name}
		if result, ok := s.orchestrator.Tracker().Result(name); ok {
			status.Built = result.Error == nil
			status.OutputPath = result.OutputPath
			status.Bytes = len(result.Output)
			status.DurationMS = result.Duration.Milliseconds()
			status.Documents = result.Documents
			if result.Error != nil {
				status.Error = result.Error.Error()
			}
		}
		statuses = append(statuses, status)
	}

	metrics := s.orchestrator.Pipeline().Metrics().Snapshot()
	clients := 0
	if s.wsManager != nil {
		clients = s.wsManager.ConnectedClients()
	}

	writeJSON(w, s.logger, r, map[string]interface{}{
		"targets": statuses,
		"metrics": map[string]interface{}{
			"total_builds":        metrics.TotalBuilds,
			"successful_builds":   metrics.SuccessfulBuilds,
			"failed_builds":       metrics.FailedBuilds,
			"average_duration_ms": metrics.AverageDuration.Milliseconds(),
		},
		"clients": clients,
	})
}

func (s *PreviewServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String())
	})
}

// contentSecurityPolicy permits the inline reload script and style and the
// WebSocket back to the serving host.
const contentSecurityPolicy = "default-src 'none'; script-src 'unsafe-inline'; " +
	"style-src 'unsafe-inline'; connect-src 'self' ws: wss:; base-uri 'none'; frame-ancestors 'none'"

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func writeHTML(w http.ResponseWriter, logger logging.Logger, r *http.Request, status int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(page)); err != nil {
		logger.Warn(r.Context(), err, "Failed to write response", "path", r.URL.Path)
	}
}

func writeJSON(w http.ResponseWriter, logger logging.Logger, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn(r.Context(), err, "Failed to write response", "path", r.URL.Path)
	}
}
