package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vietddude/teamsync/internal/syncing/engine"
)

// Flusher runs one sync cycle.
type Flusher interface {
	Flush(ctx context.Context) (*engine.Result, error)
}

// Server provides HTTP endpoints for status and manual flushes.
type Server struct {
	monitor      *Monitor
	flusher      Flusher
	flushTimeout time.Duration
	server       *http.Server
	log          *slog.Logger
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, flusher Flusher, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:      monitor,
		flusher:      flusher,
		flushTimeout: 5 * time.Minute,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: slog.Default().With("component", "health"),
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pending", s.handlePending)
	mux.HandleFunc("/flush", s.handleFlush)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	status := http.StatusOK
	if report.Status == StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	snap, err := s.monitor.pending.PendingCounts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	// The cycle outlives the request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.flushTimeout)
	defer cancel()

	res, err := s.flusher.Flush(ctx)
	if err != nil && !errors.Is(err, engine.ErrGuestImportPending) {
		s.log.Error("Manual flush failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusOK
	switch res.Skipped {
	case engine.SkipBusy, engine.SkipGuestImport:
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
