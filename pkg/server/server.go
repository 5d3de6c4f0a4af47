// Package server exposes a thin HTTP wrapper around a Scheduler: a single
// POST /v1/url endpoint that streams every event Scheduler.Url emits back
// to the caller as newline-delimited JSON, grounded on the teacher's
// pkg/server/server.go (route registration, middleware chain, JSON
// response helpers) with pkg/health inlined into two handlers
// (handleHealth, handleLiveness) since this engine has no subsystem worth a
// standalone checker registry.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vectorflow/vectorflow/pkg/engine"
	"github.com/vectorflow/vectorflow/pkg/eventbus"
	"github.com/vectorflow/vectorflow/pkg/logging"
	"github.com/vectorflow/vectorflow/pkg/telemetry"
)

// Config holds server configuration.
type Config struct {
	Address            string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	EnableCORS         bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Address:            ":8080",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: 1 * 1024 * 1024,
		EnableCORS:         true,
	}
}

// Server is the HTTP API wrapper around a Scheduler.
type Server struct {
	config    Config
	scheduler *engine.Scheduler
	telemetry *telemetry.Provider

	httpServer *http.Server
	logger     *logging.Logger
	started    time.Time
}

// New creates a Server that drives scheduler. telemetryProvider may be nil
// to run without metrics/tracing.
func New(cfg Config, scheduler *engine.Scheduler, telemetryProvider *telemetry.Provider) (*Server, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("vectorflow/server: scheduler is required")
	}

	s := &Server{
		config:    cfg,
		scheduler: scheduler,
		telemetry: telemetryProvider,
		logger:    logging.New(logging.DefaultConfig()),
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.middlewareChain(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/url", s.handleURL)
}

func (s *Server) middlewareChain(h http.Handler) http.Handler {
	if s.config.EnableCORS {
		h = s.corsMiddleware(h)
	}
	h = s.loggingMiddleware(h)
	h = s.recoveryMiddleware(h)
	return h
}

// urlRequest is the POST /v1/url request body.
type urlRequest struct {
	Pattern string      `json:"pattern"`
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
}

// streamedEvent is one newline-delimited JSON line of the response.
type streamedEvent struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	GraphID  string      `json:"graphId,omitempty"`
	VectorID string      `json:"vectorId,omitempty"`
	Field    string      `json:"field,omitempty"`
	Value    interface{} `json:"value,omitempty"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
	Return   interface{} `json:"return,omitempty"`
}

var streamedEventNames = []eventbus.Name{
	eventbus.Begin, eventbus.End,
	eventbus.BeginEdge, eventbus.EndEdge,
	eventbus.BeginConnector, eventbus.EndConnector,
	eventbus.Set, eventbus.AfterSet,
	eventbus.Load, eventbus.Warning, eventbus.Error,
}

func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeErrorResponse(w, "failed to read request body", http.StatusBadRequest, err)
		return
	}

	var req urlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeErrorResponse(w, "failed to parse request", http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	enc := json.NewEncoder(w)

	listener := func(ev eventbus.Event) {
		line := streamedEvent{
			ID: ev.ID, Name: string(ev.Name),
			GraphID: ev.GraphID, VectorID: ev.VectorID, Field: ev.Field,
			Value: ev.Value, Message: ev.Message, Return: ev.Return,
		}
		if ev.Err != nil {
			line.Error = ev.Err.Error()
		}
		_ = enc.Encode(line)
		if canFlush {
			flusher.Flush()
		}
	}

	for _, name := range streamedEventNames {
		s.scheduler.AddEventListener(name, listener)
	}
	defer func() {
		for _, name := range streamedEventNames {
			s.scheduler.RemoveEventListener(name, listener)
		}
	}()

	if err := s.scheduler.Url(r.Context(), req.Pattern, req.Value, req.Field, nil); err != nil {
		s.logger.WithError(err).Error("url() returned an error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int, err error) {
	s.logger.WithError(err).WithField("status_code", statusCode).Error(message)
	s.writeJSONResponse(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
		"details": err.Error(),
	})
}

// Start begins serving until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("address", s.config.Address).Info("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("vectorflow/server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("vectorflow/server: shutdown: %w", err)
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			return fmt.Errorf("vectorflow/server: telemetry shutdown: %w", err)
		}
	}
	return nil
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status_code": rw.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("http request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithField("error", fmt.Sprintf("%v", err)).WithField("path", r.URL.Path).Error("panic recovered")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
