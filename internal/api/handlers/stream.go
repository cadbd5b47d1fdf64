package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/proquant/screener/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard origins are not known in advance
	},
}

// StreamHandler pushes scan snapshots to websocket clients
// ⭐ SSOT: 스냅샷 스트리밍은 이 구조체에서만
type StreamHandler struct {
	engine   Snapshotter
	interval time.Duration
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(engine Snapshotter, interval time.Duration, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		engine:   engine,
		interval: interval,
		logger:   log,
	}
}

// Serve upgrades the connection and pushes the latest snapshot on a
// fixed interval until the client disconnects.
// GET /ws
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.WithField("remote", r.RemoteAddr).Info("Stream client connected")

	// The writer goroutine owns the connection; this read loop only
	// detects the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !h.push(r, conn) {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.WithField("remote", r.RemoteAddr).Info("Stream client disconnected")
			return
		case <-ticker.C:
			if !h.push(r, conn) {
				return
			}
		}
	}
}

// push sends the latest snapshot; returns false when the connection is gone
func (h *StreamHandler) push(r *http.Request, conn *websocket.Conn) bool {
	snap, err := h.engine.Latest(r.Context())
	if err != nil {
		// Transient data outage: keep the connection and retry on the
		// next tick.
		h.logger.WithError(err).Warn("Skipping stream push")
		return true
	}

	if err := conn.WriteJSON(snap); err != nil {
		h.logger.WithError(err).Debug("Stream write failed")
		return false
	}
	return true
}
