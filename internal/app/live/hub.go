package live

import (
	"context"

	"github.com/pulsewire/pulse/pkg/logger"
)

// Hub wires the registry and the broker together for one API process: every
// connecting socket is registered locally and subscribed to its project's
// broker channel so events from any drain worker replica reach it.
type Hub struct {
	registry *Registry
	broker   *Broker
	log      *logger.Logger
}

func NewHub(broker *Broker, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("live")
	}
	return &Hub{registry: NewRegistry(), broker: broker, log: log}
}

// Session tracks one connected socket's subscription loop so it can be
// cancelled cooperatively on disconnect.
type Session struct {
	hub       *Hub
	projectID string
	socket    Socket
	sub       *Subscription
	cancel    context.CancelFunc
	done      chan struct{}
}

// Connect registers the socket and starts a subscription loop pumping the
// project's channel to it. Callers must call Disconnect when the socket
// closes, on any exit path.
func (h *Hub) Connect(ctx context.Context, projectID string, s Socket) *Session {
	h.registry.Add(projectID, s)

	subCtx, cancel := context.WithCancel(ctx)
	sess := &Session{
		hub:       h,
		projectID: projectID,
		socket:    s,
		sub:       h.broker.Subscribe(subCtx, projectID),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go sess.pump()
	return sess
}

func (s *Session) pump() {
	defer close(s.done)
	ch := s.sub.Channel()
	for msg := range ch {
		if err := s.socket.Send([]byte(msg.Payload)); err != nil {
			s.hub.log.Warnf("live push delivery failed for project %s: %v", s.projectID, err)
			return
		}
	}
}

// Disconnect cancels the subscription loop, unsubscribes (best-effort), and
// removes the socket from the registry. Safe to call multiple times.
func (s *Session) Disconnect() {
	s.cancel()
	s.sub.Close()
	<-s.done
	s.hub.registry.Remove(s.projectID, s.socket)
}

// Broadcast delivers a message to every local socket for a project without
// going through the broker.
func (h *Hub) Broadcast(projectID string, data []byte) {
	h.registry.Broadcast(projectID, data)
}

// ConnectionCount reports how many sockets are registered for a project.
func (h *Hub) ConnectionCount(projectID string) int {
	return h.registry.Count(projectID)
}
