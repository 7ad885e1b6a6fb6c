// Package api exposes the liveness endpoint and the read-only triage
// surface over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/IntakeRelay/internal/ledger"
	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

const shutdownTimeout = 5 * time.Second

// Opts holds configuration options for the HTTP server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the HTTP server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the health check and the unprocessed-submissions view.
// An optional webhook handler (the Twilio inbound endpoint) can be
// mounted alongside them.
type Server struct {
	ledger  *ledger.Ledger
	httpSrv *http.Server
	mux     *http.ServeMux
}

// NewServer creates the HTTP server around the given ledger adapter.
func NewServer(lg *ledger.Ledger, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{ledger: lg, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/submissions/unprocessed", s.unprocessedHandler)
	s.httpSrv = &http.Server{Addr: cfg.Addr, Handler: s.mux}
	return s
}

// MountWebhook attaches an inbound transport webhook to the listener.
// Must be called before Start.
func (s *Server) MountWebhook(path string, handler http.HandlerFunc) {
	s.mux.HandleFunc(path, handler)
	slog.Debug("Server.MountWebhook: webhook mounted", "path", path)
}

// Handler returns the route multiplexer (for tests).
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	slog.Info("Server.Start: listening", "addr", s.httpSrv.Addr)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server.Start: listener failed", "error", err)
		}
	}()
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("Server.Stop: shutting down")
	return s.httpSrv.Shutdown(ctx)
}

// healthHandler is a plain liveness probe with no application semantics.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// unprocessedHandler returns the unprocessed submissions, oldest first.
func (s *Server) unprocessedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	subs, err := s.ledger.Unprocessed(r.Context())
	if err != nil {
		slog.Error("Server.unprocessedHandler: failed to read ledger", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch submissions"))
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(subs))
}
