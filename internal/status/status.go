// Package status adapts the teacher's net/http server skeleton into a
// read-only status endpoint exposing live office and journey state as
// JSON, for observing a running simulation. Single-host and read-only, so
// it does not carry the core across the "distribution across hosts"
// non-goal.
package status

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/anthropics/bureaucracy-sim/internal/domain"
)

// OfficeView is the on-the-wire shape of one office's live state.
type OfficeView struct {
	Name      string                    `json:"name"`
	State     domain.OfficeRuntimeState `json:"state"`
	QueueSize int                       `json:"queueSize"`
}

// JourneyView is the on-the-wire shape of one customer's live journey.
type JourneyView struct {
	CustomerID string   `json:"customerId"`
	Requested  []string `json:"requested"`
	Completed  []string `json:"completed"`
}

// Source supplies the live snapshot the handler serializes. Implemented by
// the simulation driver.
type Source interface {
	Offices() []OfficeView
	Journeys() []JourneyView
}

// Server wraps an HTTP server exposing GET /status.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server bound to listenAddr, reading its snapshot from
// source on every request.
func NewServer(source Source, listenAddr string) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		snapshot := struct {
			Offices  []OfficeView  `json:"offices"`
			Journeys []JourneyView `json:"journeys"`
		}{
			Offices:  source.Offices(),
			Journeys: source.Journeys(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshot)
	})

	return &Server{httpServer: &http.Server{Addr: listenAddr, Handler: mux}}
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
