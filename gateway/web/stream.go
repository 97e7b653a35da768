package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Keepalive interval for idle streaming connections.
	streamPingInterval = 30 * time.Second

	wsWriteTimeout = 10 * time.Second
)

// handleEvents streams update notifications over Server-Sent Events. An
// initial event is emitted immediately so a freshly connected client renders
// current state without waiting for the next snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	listener := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(listener)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.logger.Debug("sse client connected", "listener_id", listener.ID(), "remote", r.RemoteAddr)

	send := func(event string) bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", event); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send("update") {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "listener_id", listener.ID())
			return
		case <-listener.C():
			if !send("update") {
				return
			}
		case <-ping.C:
			// SSE comment line, ignored by EventSource
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleWebSocket streams update notifications over a WebSocket. Same
// contract as the SSE endpoint: a text frame "update" per coalesced change,
// one sent immediately on connect.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	listener := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(listener)

	s.logger.Debug("websocket client connected", "listener_id", listener.ID(), "remote", r.RemoteAddr)

	// Reader goroutine: we never expect client frames, but reading is
	// required to observe close frames and connection drops.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg string) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, []byte(msg)) == nil
	}

	if !send("update") {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			s.logger.Debug("websocket client disconnected", "listener_id", listener.ID())
			return
		case <-r.Context().Done():
			return
		case <-listener.C():
			if !send("update") {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
