package live

import "sync"

// Socket is the minimal send surface the registry needs; the websocket
// handler supplies the concrete implementation.
type Socket interface {
	// Send writes one message. A non-nil error marks the socket dead and
	// removes it from the registry on the next broadcast.
	Send(data []byte) error
}

// Registry is the per-process project_id → sockets map (spec §4.6 layer 1).
// It is mutated concurrently by connect, disconnect, and broadcast, so every
// access is guarded.
type Registry struct {
	mu      sync.Mutex
	sockets map[string]map[Socket]struct{}
}

func NewRegistry() *Registry {
	return &Registry{sockets: make(map[string]map[Socket]struct{})}
}

// Add registers a socket under a project.
func (r *Registry) Add(projectID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sockets[projectID]
	if !ok {
		set = make(map[Socket]struct{})
		r.sockets[projectID] = set
	}
	set[s] = struct{}{}
}

// Remove unregisters a socket; it is a no-op if the socket is already gone.
func (r *Registry) Remove(projectID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sockets[projectID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.sockets, projectID)
	}
}

// Broadcast sends data to every socket registered for a project. Sockets
// whose Send fails are removed; there are no retries (spec §4.6 layer 1).
func (r *Registry) Broadcast(projectID string, data []byte) {
	r.mu.Lock()
	set, ok := r.sockets[projectID]
	if !ok || len(set) == 0 {
		r.mu.Unlock()
		return
	}
	targets := make([]Socket, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	var dead []Socket
	for _, s := range targets {
		if err := s.Send(data); err != nil {
			dead = append(dead, s)
		}
	}
	if len(dead) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.sockets[projectID]; ok {
		for _, s := range dead {
			delete(set, s)
		}
		if len(set) == 0 {
			delete(r.sockets, projectID)
		}
	}
}

// Count returns the number of sockets registered for a project, for tests
// and diagnostics.
func (r *Registry) Count(projectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sockets[projectID])
}
