package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pulsewire/pulse/internal/app/live"
	"github.com/pulsewire/pulse/internal/app/metrics"
	"github.com/pulsewire/pulse/internal/app/projects"
	"github.com/pulsewire/pulse/internal/app/tickets"
	"github.com/pulsewire/pulse/pkg/logger"
)

const (
	closeMissingTicket = 4001
	closeUnauthorized  = 4003
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsHandlers struct {
	hub      *live.Hub
	tickets  *tickets.Authenticator
	projects *projects.Service
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// wsSocket adapts a *websocket.Conn to live.Socket, serializing writes since
// gorilla/websocket forbids concurrent writers on one connection.
type wsSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSocket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// serve implements GET /ws/events/{project_id} (spec §4.6, §6).
func (h *wsHandlers) serve(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	ticket := r.URL.Query().Get("ticket")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if ticket == "" {
		closeWithCode(conn, closeMissingTicket, "missing ticket")
		return
	}
	userID, ok := h.tickets.Consume(r.Context(), ticket)
	if !ok {
		closeWithCode(conn, closeMissingTicket, "invalid ticket")
		return
	}
	if _, err := h.projects.Get(r.Context(), userID, projectID); err != nil {
		closeWithCode(conn, closeUnauthorized, "project not found")
		return
	}

	socket := &wsSocket{conn: conn}
	session := h.hub.Connect(r.Context(), projectID, socket)
	if h.metrics != nil {
		h.metrics.LiveConnectionsGauge.Inc()
	}
	defer func() {
		session.Disconnect()
		_ = conn.Close()
		if h.metrics != nil {
			h.metrics.LiveConnectionsGauge.Dec()
		}
	}()

	// Pump inbound frames (client keep-alives); any read error or close
	// frame ends the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWithCode(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
