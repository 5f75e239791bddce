// Package health serves liveness, readiness and per-provider health.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fd1az/fee-advisor/internal/logger"
)

const checkTimeout = 5 * time.Second

// Status is the /health response body.
type Status struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Version   string           `json:"version,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Check is one named result.
type Check struct {
	Healthy bool `json:"healthy"`
}

// ReportFunc returns a health flag per name. One call yields many checks.
type ReportFunc func(ctx context.Context) map[string]bool

// Server exposes /health, /ready and /live.
type Server struct {
	port    int
	version string
	log     logger.LoggerInterface

	mu      sync.RWMutex
	reports []ReportFunc
	server  *http.Server
}

// NewServer creates a health server.
func NewServer(port int, version string, log logger.LoggerInterface) *Server {
	return &Server{port: port, version: version, log: log}
}

// RegisterReport adds a source of named checks.
func (s *Server) RegisterReport(fn ReportFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, fn)
}

// Handler returns the mux; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", s.handleLive)
	return mux
}

// Start listens in the background.
func (s *Server) Start(ctx context.Context) {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(ctx, "health server stopped", "error", err)
		}
	}()
	s.log.Info(ctx, "health server listening", "port", s.port)
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) collect(ctx context.Context) map[string]Check {
	s.mu.RLock()
	reports := append([]ReportFunc(nil), s.reports...)
	s.mu.RUnlock()

	checks := make(map[string]Check)
	for _, fn := range reports {
		for name, ok := range fn(ctx) {
			checks[name] = Check{Healthy: ok}
		}
	}
	return checks
}

// summarize returns "ok" when everything is healthy, "degraded" when some
// checks fail, "down" when all fail.
func summarize(checks map[string]Check) string {
	healthy := 0
	for _, c := range checks {
		if c.Healthy {
			healthy++
		}
	}
	switch {
	case healthy == len(checks):
		return "ok"
	case healthy == 0:
		return "down"
	default:
		return "degraded"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := s.collect(ctx)
	status := Status{
		Status:    summarize(checks),
		Checks:    checks,
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if status.Status != "ok" {
		failing := make([]string, 0)
		for name, c := range checks {
			if !c.Healthy {
				failing = append(failing, name)
			}
		}
		sort.Strings(failing)
		s.log.Warn(ctx, "health check failing", "providers", failing)
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Status == "down" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// handleReady is ready while at least one check passes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	if summarize(s.collect(ctx)) == "down" {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
