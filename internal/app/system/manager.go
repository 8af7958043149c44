package system

import (
	"context"
	"fmt"
	"sync"
)

// Manager starts registered services in registration order and stops them in
// reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	names    map[string]struct{}
	started  bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]struct{})}
}

// Register adds a service. Registration after Start or with a duplicate
// name is an error.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("manager already started")
	}
	name := svc.Name()
	if _, exists := m.names[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}
	m.names[name] = struct{}{}
	m.services = append(m.services, svc)
	return nil
}

// Start brings up all registered services. On failure the services already
// started are stopped in reverse order before returning the error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	m.started = true
	return nil
}

// Stop shuts down all services in reverse registration order, collecting the
// first error.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", m.services[i].Name(), err)
		}
	}
	m.started = false
	return firstErr
}

// NoopService is a placeholder for modules that need a lifecycle slot but no
// background work.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                   { return n.ServiceName }
func (n NoopService) Start(context.Context) error    { return nil }
func (n NoopService) Stop(ctx context.Context) error { return nil }
