package session

import (
	"context"
	"sync"

	"interviewlab/internal/models"
)

// Manager owns the live controllers, keyed by session id. Completed
// sessions stay resident until removed so their final state can be read.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Controller
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		sessions: map[string]*Controller{},
	}
}

// Create builds a controller for the configuration and starts it. The
// controller is registered under the persisted session id.
func (m *Manager) Create(ctx context.Context, cfg models.SessionConfig) (*Controller, error) {
	c := NewController(cfg, m.opts)
	if err := c.Start(ctx); err != nil {
		_ = c.End(ctx)
		return nil, err
	}

	m.mu.Lock()
	m.sessions[c.Session().ID] = c
	m.mu.Unlock()
	return c, nil
}

func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Remove ends the controller if it is still running and forgets it.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		_ = c.End(ctx)
	}
}

// Active returns the number of resident controllers.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
