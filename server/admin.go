package server

import (
	"context"
	"encoding/json"
	"net/http"

	"chatty-relay/protocol"
)

// Administrative surface: simple request/response, snapshot-at-call-time
// semantics, no ordering guarantees.

// handleClients returns the current registry (handle -> username).
func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.orch.Snapshot())
}

// handleMessages serves the backlog: read it, append to it, clear it.
func (s *Server) handleMessages(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			messages, err := s.orch.History()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			s.writeJSON(w, protocol.FromMessages(messages))

		case http.MethodPost:
			var wire protocol.WireMessage
			if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			m, err := protocol.ToMessage(wire)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			outcome := s.orch.Submit(ctx, "", m.ID, m.Sender, m.Content, m.Recipient)
			s.writeJSON(w, map[string]string{"outcome": outcome.String()})

		case http.MethodDelete:
			if err := s.orch.ClearHistory(); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleStats returns the monitoring snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.orch.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode admin response", "err", err)
	}
}
