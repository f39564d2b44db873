// Package httpapi exposes the agent's manual trigger endpoint plus health
// and metrics.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civicworks/remedy/agent"
	"github.com/civicworks/remedy/executor"
	"github.com/civicworks/remedy/logger"
)

// Runner submits workflow runs; implemented by *executor.Pool.
type Runner interface {
	Submit(ctx context.Context, trigger string, req executor.Request, timeout time.Duration) (agent.State, error)
}

// Server represents the HTTP API server
type Server struct {
	addr          string
	apiKey        string
	runner        Runner
	manualTimeout time.Duration
	server        *http.Server
	tls           bool
	tlsCertFile   string
	tlsKeyFile    string
}

// ServerOptions holds configuration options for the HTTP API server
type ServerOptions struct {
	Addr          string
	APIKey        string
	ManualTimeout time.Duration
	TLS           bool
	TLSCertFile   string
	TLSKeyFile    string
}

// New creates a new HTTP API server
func New(runner Runner, options ServerOptions) (*Server, error) {
	if options.APIKey == "" {
		return nil, fmt.Errorf("API key is required for HTTP API server")
	}
	if options.TLS && (options.TLSCertFile == "" || options.TLSKeyFile == "") {
		return nil, fmt.Errorf("TLS certificate and key files are required when TLS is enabled")
	}

	return &Server{
		addr:          options.Addr,
		apiKey:        options.APIKey,
		runner:        runner,
		manualTimeout: options.ManualTimeout,
		tls:           options.TLS,
		tlsCertFile:   options.TLSCertFile,
		tlsKeyFile:    options.TLSKeyFile,
	}, nil
}

// Start runs the HTTP API server until the context is cancelled, reporting
// startup failures on errChan.
func Start(ctx context.Context, runner Runner, options ServerOptions, errChan chan error) {
	server, err := New(runner, options)
	if err != nil {
		errChan <- fmt.Errorf("failed to create HTTP API server: %w", err)
		return
	}

	protocol := "HTTP"
	if options.TLS {
		protocol = "HTTPS"
	}
	logger.Info("starting API server", "protocol", protocol, "addr", options.Addr)
	if err := server.start(ctx); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- fmt.Errorf("HTTP API server failed: %w", err)
	}
}

func (s *Server) start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.setupRoutes(),
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down HTTP API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down HTTP API server", "error", err)
		}
	}()

	if s.tls {
		return s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}
	return s.server.ListenAndServe()
}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	// Unauthenticated probes
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.authMiddleware)
	v1.HandleFunc("/trigger", s.handleTrigger).Methods("POST")

	return router
}

// Middleware functions

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("HTTP API request", "method", r.Method, "path", r.URL.Path,
			"remote", r.RemoteAddr, "duration", time.Since(start))
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			s.writeError(w, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.apiKey)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handlers

// TriggerRequest is the manual trigger payload
type TriggerRequest struct {
	Template string `json:"template"`
}

// TriggerResponse reports the outcome of a manual workflow run
type TriggerResponse struct {
	Status  string `json:"status"`
	Success bool   `json:"success"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, TriggerResponse{
			Status: "agent not initialized",
		})
		return
	}

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	state, err := s.runner.Submit(r.Context(), executor.TriggerManual,
		executor.Request{Template: req.Template}, s.manualTimeout)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, executor.ErrTimeout) {
			status = http.StatusGatewayTimeout
		} else if errors.Is(err, executor.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		s.writeJSON(w, status, TriggerResponse{
			Status: fmt.Sprintf("Error: %v", err),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, TriggerResponse{
		Status:  state.Status,
		Success: true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
