// Package sessionmgr tracks the logical page sessions attached under a cdp
// root client, alongside their display metadata (URL, title) and which one
// is currently active for CLI/daemon commands.
package sessionmgr

import (
	"strings"
	"sync"

	"github.com/quietfjord/chromewire/internal/cdp"
	"github.com/quietfjord/chromewire/internal/ipc"
)

// entry holds internal per-session state, including the attached node.
type entry struct {
	sessionID string
	targetID  string
	url       string
	title     string
	node      *cdp.Node
}

// Manager tracks attached page sessions. Safe for concurrent use: the
// daemon's IPC command loop and the cdp pump's event listeners may touch
// it from different call sites even though each individually runs on one
// goroutine at a time.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	activeID string
	order    []string
}

// New creates an empty session manager.
func New() *Manager {
	return &Manager{sessions: make(map[string]*entry)}
}

// Add registers a newly attached session. The first session added becomes
// active.
func (m *Manager) Add(sessionID, targetID, url, title string, node *cdp.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = &entry{sessionID: sessionID, targetID: targetID, url: url, title: title, node: node}
	m.order = append(m.order, sessionID)
	if m.activeID == "" {
		m.activeID = sessionID
	}
}

// Remove drops a session. If it was active, the most recently attached
// remaining session becomes active. Reports the new active id and whether
// it changed.
func (m *Manager) Remove(sessionID string) (newActiveID string, activeChanged bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return m.activeID, false
	}
	delete(m.sessions, sessionID)

	for i, id := range m.order {
		if id == sessionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.activeID == sessionID {
		if len(m.order) > 0 {
			m.activeID = m.order[len(m.order)-1]
		} else {
			m.activeID = ""
		}
		return m.activeID, true
	}
	return m.activeID, false
}

// Clear drops all tracked sessions, leaving the manager empty with no
// active session.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*entry)
	m.order = nil
	m.activeID = ""
}

// Update sets a session's URL/title (empty strings leave the field
// unchanged), keyed by session id.
func (m *Manager) Update(sessionID, url, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok {
		if url != "" {
			e.url = url
		}
		if title != "" {
			e.title = title
		}
	}
}

// UpdateByTargetID is Update keyed by CDP target id instead of session id,
// for trackers that only observe Target.targetInfoChanged.
func (m *Manager) UpdateByTargetID(targetID, url, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.sessions {
		if e.targetID == targetID {
			if url != "" {
				e.url = url
			}
			if title != "" {
				e.title = title
			}
			return
		}
	}
}

// SetActive makes sessionID the active session. Reports false if it isn't
// tracked.
func (m *Manager) SetActive(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	m.activeID = sessionID
	return true
}

// ActiveID returns the active session id, or "" if none.
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Active returns the active session's IPC-facing view, or nil.
func (m *Manager) Active() *ipc.PageSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[m.activeID]
	if m.activeID == "" || !ok {
		return nil
	}
	return &ipc.PageSession{ID: e.sessionID, Title: e.title, URL: e.url, Active: true}
}

// ActiveNode returns the active session's client node, or nil.
func (m *Manager) ActiveNode() *cdp.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[m.activeID]
	if m.activeID == "" || !ok {
		return nil
	}
	return e.node
}

// Get returns a session's IPC-facing view by id, or nil.
func (m *Manager) Get(sessionID string) *ipc.PageSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	return &ipc.PageSession{ID: e.sessionID, Title: e.title, URL: e.url, Active: sessionID == m.activeID}
}

// NodeFor returns the client node for a session id.
func (m *Manager) NodeFor(sessionID string) (*cdp.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// All returns every tracked session's IPC-facing view.
func (m *Manager) All() []ipc.PageSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ipc.PageSession, 0, len(m.sessions))
	for _, e := range m.sessions {
		result = append(result, ipc.PageSession{ID: e.sessionID, Title: e.title, URL: e.url, Active: e.sessionID == m.activeID})
	}
	return result
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// FindByQuery matches sessions by session-id prefix first, falling back to
// a case-insensitive title substring match.
func (m *Manager) FindByQuery(query string) []ipc.PageSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if query == "" {
		return nil
	}

	var matches []ipc.PageSession
	for _, e := range m.sessions {
		if len(e.sessionID) >= len(query) && e.sessionID[:len(query)] == query {
			matches = append(matches, ipc.PageSession{ID: e.sessionID, Title: e.title, URL: e.url, Active: e.sessionID == m.activeID})
		}
	}
	if len(matches) > 0 {
		return matches
	}

	queryLower := strings.ToLower(query)
	for _, e := range m.sessions {
		if strings.Contains(strings.ToLower(e.title), queryLower) {
			matches = append(matches, ipc.PageSession{ID: e.sessionID, Title: e.title, URL: e.url, Active: e.sessionID == m.activeID})
		}
	}
	return matches
}
