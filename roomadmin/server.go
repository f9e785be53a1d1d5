// Package roomadmin is a small debug/admin HTTP surface over a room
// manager, grounded on the teacher's chi-based HTTP modules
// (modules/chimux, modules/httpserver). It carries no lifecycle
// authority: it only reads the manager's current status and exposes a
// liveness probe.
package roomadmin

import (
	"encoding/json"
	"net/http"

	"github.com/chatcore/roomkit/room"
	"github.com/go-chi/chi/v5"
)

// Server exposes room status and health over HTTP.
type Server struct {
	manager *room.Manager
	router  chi.Router
}

// New builds a Server for manager, wiring its routes.
func New(manager *room.Manager) *Server {
	s := &Server{manager: manager, router: chi.NewRouter()}
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusResponse struct {
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	current := s.manager.RoomStatus()
	resp := statusResponse{Status: current.Kind.String()}
	if current.Cause != nil {
		resp.Cause = current.Cause.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleHealth reports healthy unless the room has settled into failed
// or released; a transient status (attaching, suspended) is still
// reported healthy since the manager is actively working towards
// recovery.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	current := s.manager.RoomStatus()
	if current.Kind == room.RoomStatusFailed || current.Kind == room.RoomStatusReleased {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy: " + current.Kind.String()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
