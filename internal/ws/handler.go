package ws

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cellgate/cellgate/internal/monitor"
)

// StatusSource supplies the current gateway status for new connections.
type StatusSource interface {
	Status() monitor.Status
}

// Handler provides the WebSocket endpoint for live gateway status.
type Handler struct {
	hub    *Hub
	source StatusSource
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler fed by the given status source.
// Wire it to the monitor with OnChange(h.BroadcastStatus).
func NewHandler(source StatusSource, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    NewHub(logger),
		source: source,
		logger: logger,
	}
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/router/ws/health", h.handleHealthStream)
}

// BroadcastStatus pushes a status change to every connected dashboard.
func (h *Handler) BroadcastStatus(st monitor.Status) {
	h.hub.Broadcast(Message{
		Type:      MessageHealthChanged,
		Timestamp: time.Now(),
		Data:      HealthData{Status: st},
	})
}

// ClientCount returns the number of connected dashboards.
func (h *Handler) ClientCount() int {
	return h.hub.ClientCount()
}

// handleHealthStream upgrades the connection and streams status changes.
// The stream carries no credentials and no gateway data beyond
// reachability, so it is open like the health route itself.
func (h *Handler) handleHealthStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan Message, 16),
		logger: h.logger,
	}

	h.hub.Register(client)

	// New connections get the current status right away.
	client.send <- Message{
		Type:      MessageHealthSnapshot,
		Timestamp: time.Now(),
		Data:      HealthData{Status: h.source.Status()},
	}

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}
