package daemon

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ConnectionState represents the current state of the CDP connection.
type ConnectionState int

const (
	// StateConnected indicates an active, healthy CDP connection.
	StateConnected ConnectionState = iota
	// StateReconnecting indicates the daemon is attempting its single retry.
	StateReconnecting
	// StateDisconnected indicates the connection is lost and not recovering.
	StateDisconnected
)

// String returns a human-readable name for the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DisconnectReason describes why a disconnect occurred.
type DisconnectReason int

const (
	// ReasonUnknown is the default when reason cannot be determined.
	ReasonUnknown DisconnectReason = iota
	// ReasonGraceful indicates user-initiated close (codes 1000, 1001).
	ReasonGraceful
	// ReasonAbnormal indicates unexpected disconnect (code 1006, timeout).
	ReasonAbnormal
)

// String returns a human-readable name for the disconnect reason.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonGraceful:
		return "graceful"
	case ReasonAbnormal:
		return "abnormal"
	default:
		return "unknown"
	}
}

// ConnectionInfo holds connection health information for status reporting.
type ConnectionInfo struct {
	State         ConnectionState `json:"state"`
	StateString   string          `json:"stateString"`
	LastHeartbeat time.Time       `json:"lastHeartbeat,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
}

// connectionManager tracks CDP connection health for status reporting.
// Unlike the teacher's version, it has no backoff/retry schedule of its
// own: reconnection here is the single attempt heartbeat.go makes on a
// detected disconnect, not a policy engine.
type connectionManager struct {
	mu sync.RWMutex

	state         ConnectionState
	lastHeartbeat time.Time
	lastError     error
}

// newConnectionManager creates a new connection manager with default settings.
func newConnectionManager() *connectionManager {
	return &connectionManager{
		state:         StateConnected,
		lastHeartbeat: time.Now(),
	}
}

// State returns the current connection state.
func (m *connectionManager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Info returns connection health information for status reporting.
func (m *connectionManager) Info() ConnectionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := ConnectionInfo{
		State:         m.state,
		StateString:   m.state.String(),
		LastHeartbeat: m.lastHeartbeat,
	}
	if m.lastError != nil {
		info.LastError = m.lastError.Error()
	}
	return info
}

// SetConnected transitions to connected state and clears the last error.
func (m *connectionManager) SetConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected {
		m.logTransition(StateConnected)
	}
	m.state = StateConnected
	m.lastHeartbeat = time.Now()
	m.lastError = nil
}

// SetReconnecting transitions to reconnecting state for the single retry.
func (m *connectionManager) SetReconnecting(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = err
	if m.state != StateReconnecting {
		m.logTransition(StateReconnecting)
	}
	m.state = StateReconnecting
}

// SetDisconnected transitions to disconnected state.
func (m *connectionManager) SetDisconnected(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = err
	if m.state != StateDisconnected {
		m.logTransition(StateDisconnected)
	}
	m.state = StateDisconnected
}

// RecordHeartbeat records a successful heartbeat.
func (m *connectionManager) RecordHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeartbeat = time.Now()
}

// logTransition logs a state transition to stderr. Caller holds m.mu.
func (m *connectionManager) logTransition(newState ConnectionState) {
	var msg string
	switch newState {
	case StateConnected:
		msg = "Reconnected successfully"
	case StateReconnecting:
		msg = "Reconnecting..."
	case StateDisconnected:
		if m.lastError != nil {
			msg = fmt.Sprintf("Connection lost (%v)", m.lastError)
		} else {
			msg = "Connection lost"
		}
	}
	fmt.Fprintln(os.Stderr, msg)
}

// ClassifyCloseCode determines whether a disconnect is recoverable based on WebSocket close code.
// Returns the disconnect reason and whether the single reconnect attempt should be made.
func ClassifyCloseCode(err error) (reason DisconnectReason, shouldReconnect bool) {
	if err == nil {
		return ReasonUnknown, false
	}

	code := websocket.CloseStatus(err)
	switch code {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		// User-initiated close (browser closed normally)
		return ReasonGraceful, false
	case websocket.StatusAbnormalClosure:
		// No close frame received (crash, network issue)
		return ReasonAbnormal, true
	case -1:
		// Not a WebSocket close error (timeout, network error, etc.)
		return ReasonAbnormal, true
	default:
		// Other close codes - treat as abnormal
		return ReasonAbnormal, true
	}
}
