package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/phi-mgus/mgus-server/lobby"
)

// Server is the operator read surface.
type Server struct {
	sessions *lobby.SessionRegistry
	rooms    *lobby.RoomRegistry
	router   *mux.Router
}

// NewServer creates the API server over the given registries.
func NewServer(sessions *lobby.SessionRegistry, rooms *lobby.RoomRegistry) *Server {
	s := &Server{
		sessions: sessions,
		rooms:    rooms,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router so the caller can mount additional
// endpoints (the websocket upgrade lives outside this package).
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.rooms.List())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"rooms":    s.rooms.Count(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
