package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"i4.energy/across/currentmon/session"
)

// StatusSource provides the session state reported by the server
type StatusSource interface {
	Snapshot() session.Status
}

// Server handles incoming HTTP requests for inspecting the running
// session. It never talks to the modem.
type Server struct {
	Logger  *zap.Logger
	Session StatusSource
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Debug("Failed to write response", zap.Error(err))
	}
}

// handleStatus reports the full session snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.Session.Snapshot(), http.StatusOK)
}

// handleHealth reports healthy once the modem has joined the network
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type HealthResponse struct {
		Status string        `json:"status"`
		State  session.State `json:"state"`
	}

	state := s.Session.Snapshot().State
	if !state.Operational() {
		s.sendJSON(w, HealthResponse{Status: "unavailable", State: state}, http.StatusServiceUnavailable)
		return
	}
	s.sendJSON(w, HealthResponse{Status: "ok", State: state}, http.StatusOK)
}
