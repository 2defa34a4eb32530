package mcp

import (
	"context"
	"fmt"
	"sync"

	"skycast/config"
	"skycast/model"
)

// Manager holds the sessions of every configured capability server and
// routes invocations by tool name. Tool names must be unique across servers.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	routes   map[string]string
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		routes:   make(map[string]string),
	}
}

// Connect opens a session for cfg and registers it.
func (m *Manager) Connect(ctx context.Context, cfg TransportConfig) (*Session, error) {
	s, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := m.Add(s); err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Add registers an open session. A tool name already served by another
// session is a *model.ProtocolError.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already registered", s.ID)
	}
	for _, t := range s.tools {
		if owner, taken := m.routes[t.Name]; taken {
			return &model.ProtocolError{Reason: fmt.Sprintf("tool %q served by both %s and %s", t.Name, owner, s.ID)}
		}
	}

	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	for _, t := range s.tools {
		m.routes[t.Name] = s.ID
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Manager: registered '%s' with %d tools", s.ID, len(s.tools))
	}
	return nil
}

// Tools returns the merged catalog in registration order.
func (m *Manager) Tools() []model.ToolDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []model.ToolDescriptor
	for _, id := range m.order {
		all = append(all, m.sessions[id].ListTools()...)
	}
	return all
}

func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Invoke routes to the session that announced name.
func (m *Manager) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	id, ok := m.routes[name]
	s := m.sessions[id]
	m.mu.RUnlock()

	if !ok || s == nil {
		return "", &model.ToolInvocationError{Tool: name, Message: fmt.Sprintf("unknown tool %q", name)}
	}
	return s.Invoke(ctx, name, args)
}

// Remove closes and unregisters one session.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, exists := m.sessions[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("session %s not found", id)
	}
	delete(m.sessions, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for name, owner := range m.routes {
		if owner == id {
			delete(m.routes, name)
		}
	}
	m.mu.Unlock()

	return s.Close(ctx)
}

// Shutdown closes every session in parallel.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Shutdown: Starting parallel shutdown of %d sessions", len(ids))
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(ids))

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.Remove(ctx, id); err != nil {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[MCP] Shutdown: Error stopping session '%s': %v", id, err)
				}
				errChan <- err
			}
		}(id)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	return nil
}
