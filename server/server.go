// Package server binds the relay to its duplex transport (WebSocket +
// JSON frames) and to the administrative HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatty-relay/runtime"
)

// Server owns the HTTP handler tree: the /chathub upgrade endpoint, the
// healthcheck used by client liveness banners, and the admin endpoints.
type Server struct {
	log        *slog.Logger
	orch       *runtime.Orchestrator
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, orch *runtime.Orchestrator, connectionBufferSize int) *Server {
	return &Server{
		log:        log,
		orch:       orch,
		bufferSize: connectionBufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay has no cross-origin policy of its own.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the full route table.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chathub", s.handleChatHub(ctx))
	mux.HandleFunc("/healthcheck", s.handleHealthcheck)
	mux.HandleFunc("/chathub/clients", s.handleClients)
	mux.HandleFunc("/chathub/message", s.handleMessages(ctx))
	mux.HandleFunc("/chathub/stats", s.handleStats)
	return mux
}

func (s *Server) handleChatHub(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		session := NewSession(conn, s.orch, s.bufferSize, s.log)
		session.Serve(ctx)
	}
}

// handleHealthcheck is the liveness banner endpoint, a path distinct
// from the main channel. It never reports on message delivery.
func (s *Server) handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Healthy"))
}

// ListenAndServe runs the HTTP server until ctx is canceled, then drains
// with a bounded shutdown.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting relay server", "address", address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
