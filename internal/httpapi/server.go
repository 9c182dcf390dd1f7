// Package httpapi exposes the analysis core's health and metrics over a
// small local-only HTTP server, grounded on the teacher's
// internal/interfaces/http gorilla/mux server (trimmed to the read-only
// health/metrics surface the spec scopes in; a candidates/explain
// surface is outside this spec's scope).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/marketpulse/corelens/internal/types"
)

// HealthSource reports the supervisor's last-tick health summary.
type HealthSource interface {
	Health() HealthSnapshot
}

// HealthSnapshot is the supervisor's current health read.
type HealthSnapshot struct {
	LastTickAt     time.Time
	LastSignal     types.Direction
	TicksRun       int64
	TicksAborted   int64
	LastAbortCause string
}

// Server is the local-only health/metrics HTTP server.
type Server struct {
	router *mux.Router
	server *http.Server
	health HealthSource
}

// New builds a Server bound to addr (e.g. "127.0.0.1:9090").
func New(addr string, health HealthSource) *Server {
	router := mux.NewRouter()
	s := &Server{router: router, health: health}

	router.Use(s.loggingMiddleware)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("duration", time.Since(start)).Msg("httpapi request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.health.Health()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"last_tick_at":     snap.LastTickAt,
		"last_signal":      snap.LastSignal,
		"ticks_run":        snap.TicksRun,
		"ticks_aborted":    snap.TicksAborted,
		"last_abort_cause": snap.LastAbortCause,
	})
}

// Start runs the server until it errors or is shut down.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("httpapi server listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
