// Package server exposes the paper-trading engine over HTTP. The
// dashboard polls GET /api/paper-trading for the account snapshot and
// posts commands back to the same path.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"paper-trading-go/internal/config"
	"paper-trading-go/internal/papertrading"
	"paper-trading-go/internal/store"

	"go.uber.org/zap"
)

// Server is the backend HTTP API.
type Server struct {
	httpServer *http.Server
	engine     *papertrading.Engine
	store      *store.Store
	logger     *zap.Logger
}

// New wires the routes and prepares the listener.
func New(logger *zap.Logger, cfg *config.Config, engine *papertrading.Engine, st *store.Store) *Server {
	s := &Server{
		engine: engine,
		store:  st,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/paper-trading", s.paperTradingHandler)
	mux.HandleFunc("/api/exchange-configs", s.exchangeConfigsHandler)
	mux.HandleFunc("/api/health", s.healthHandler)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: s.logRequests(mux),
	}
	return s
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// envelope is the wire format shared by every endpoint.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any, message string) {
	s.writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data, Message: message})
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, envelope{Status: "error", Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w, map[string]string{"status": "ok"}, "")
}
