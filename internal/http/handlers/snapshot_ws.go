package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marianoklecha/turnos-core/internal/bus"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// SnapshotStreamHandler pushes a machine's snapshot over a WebSocket after
// every handled event. Lagging clients receive coalesced updates, never a
// backlog.
type SnapshotStreamHandler struct {
	registry *bus.Bus
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewSnapshotStreamHandler builds the stream handler. Origin checking is
// delegated to the CORS layer in front of the router.
func NewSnapshotStreamHandler(registry *bus.Bus, logger *logging.Logger) *SnapshotStreamHandler {
	if registry == nil {
		panic("handlers: bus required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SnapshotStreamHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Named("http.snapshot_ws"),
	}
}

// Stream handles GET /machines/{machineID}/ws.
func (h *SnapshotStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "machineID")
	m, ok := h.registry.Lookup(machineID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown machine")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "machine", machineID, "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	h.logger.Info("snapshot stream opened", "machine", machineID, "session_id", sessionID)
	defer h.logger.Info("snapshot stream closed", "machine", machineID, "session_id", sessionID)

	updates, unsubscribe := m.Subscribe()
	defer unsubscribe()

	// Drain client frames so pongs and close frames are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeSnapshot(conn, m); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-clientGone:
			return
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-updates:
			if err := h.writeSnapshot(conn, m); err != nil {
				return
			}
		}
	}
}

func (h *SnapshotStreamHandler) writeSnapshot(conn *websocket.Conn, m bus.Machine) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(m.Snapshot()); err != nil {
		h.logger.Debug("snapshot write failed", "machine", m.ID(), "error", err)
		return err
	}
	return nil
}
