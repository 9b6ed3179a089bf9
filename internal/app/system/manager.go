package system

import (
	"context"
	"fmt"

	"github.com/pulsewire/pulse/pkg/logger"
)

// Manager starts registered services in registration order and stops them in
// reverse order, so a service started last (and therefore most likely to
// depend on ones before it) is the first asked to stop.
type Manager struct {
	log      *logger.Logger
	services []Service
	started  []Service
}

func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{log: log}
}

// Register adds a service to the manager. Order matters: Start runs services
// in registration order, Stop runs them in reverse.
func (m *Manager) Register(s Service) {
	m.services = append(m.services, s)
}

// Start starts every registered service in order. If one fails, already
// started services are stopped in reverse order before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	for _, s := range m.services {
		m.log.Infof("starting service %s", s.Name())
		if err := s.Start(ctx); err != nil {
			m.log.Errorf("service %s failed to start: %v", s.Name(), err)
			_ = m.Stop(context.Background())
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
		m.started = append(m.started, s)
	}
	return nil
}

// Stop stops every started service in reverse order, collecting (not
// short-circuiting on) errors so a single slow/failing service does not
// prevent the others from shutting down.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		m.log.Infof("stopping service %s", s.Name())
		if err := s.Stop(ctx); err != nil {
			m.log.Errorf("service %s failed to stop: %v", s.Name(), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", s.Name(), err)
			}
		}
	}
	m.started = nil
	return firstErr
}
