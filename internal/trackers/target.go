// Package trackers holds the per-feature cdp.Listener implementations that
// sit on top of the client tree: which targets are attached, what the
// console has logged, and what network traffic passed through a page.
package trackers

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/quietfjord/chromewire/internal/cdp"
	"github.com/quietfjord/chromewire/internal/sessionmgr"
)

// domainsToEnable are sent once per newly attached page session. Network is
// deliberately excluded here and enabled lazily by NetworkTracker's owner,
// since enabling it makes Chrome track network activity and can delay
// Runtime.evaluate until the page reaches networkIdle.
var domainsToEnable = []string{"Runtime.enable", "Page.enable", "DOM.enable"}

// TargetTracker watches Target.* events on the browser-wide root node,
// manually attaches to newly created page targets (flatten:true, per CDP's
// recommended multiplexing mode), and keeps a sessionmgr.Manager in sync.
// Registered on the "browser"-id root node.
type TargetTracker struct {
	cdp.BaseListener

	root     *cdp.Node
	sessions *sessionmgr.Manager

	// OnSessionAttached, if set, is called after a page session's child
	// node is attached and its domains enabled. The daemon uses this to
	// wire a ConsoleTracker/NetworkTracker onto each new session node.
	OnSessionAttached func(child *cdp.Node)

	mu       sync.Mutex
	attached map[string]bool // targetID -> attach attempted
}

// NewTargetTracker creates a tracker and registers it on root.
func NewTargetTracker(root *cdp.Node, sessions *sessionmgr.Manager) *TargetTracker {
	t := &TargetTracker{root: root, sessions: sessions, attached: make(map[string]bool)}
	root.AddListener(t)
	return t
}

type targetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// OnEvent implements cdp.Listener.
func (t *TargetTracker) OnEvent(node *cdp.Node, method string, params json.RawMessage) error {
	switch method {
	case "Target.targetCreated":
		t.handleTargetCreated(params)
	case "Target.attachedToTarget":
		t.handleTargetAttached(params)
	case "Target.detachedFromTarget":
		t.handleTargetDetached(params)
	case "Target.targetInfoChanged":
		t.handleTargetInfoChanged(params)
	}
	return nil
}

func (t *TargetTracker) handleTargetCreated(params json.RawMessage) {
	var p struct {
		TargetInfo targetInfo `json:"targetInfo"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.TargetInfo.Type != "page" {
		return
	}

	t.mu.Lock()
	if t.attached[p.TargetInfo.TargetID] {
		t.mu.Unlock()
		return
	}
	t.attached[p.TargetInfo.TargetID] = true
	t.mu.Unlock()

	// flatten:true is required: without it, responses for the new session
	// can be queued behind the target's own networkIdle state.
	if _, err := t.root.SendCommand("Target.attachToTarget", map[string]any{
		"targetId": p.TargetInfo.TargetID,
		"flatten":  true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to attach to target %q: %v\n", p.TargetInfo.TargetID, err)
		t.mu.Lock()
		delete(t.attached, p.TargetInfo.TargetID)
		t.mu.Unlock()
	}
}

func (t *TargetTracker) handleTargetAttached(params json.RawMessage) {
	var p struct {
		SessionID  string     `json:"sessionId"`
		TargetInfo targetInfo `json:"targetInfo"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.TargetInfo.Type != "page" {
		return
	}

	child := cdp.NewChildNode(p.TargetInfo.TargetID, p.SessionID)
	if err := child.Attach(t.root); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to attach session node %q: %v\n", p.SessionID, err)
		return
	}

	t.sessions.Add(p.SessionID, p.TargetInfo.TargetID, p.TargetInfo.URL, p.TargetInfo.Title, child)

	for _, method := range domainsToEnable {
		if _, err := child.SendCommand(method, nil); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to enable %s for session %q: %v\n", method, p.SessionID, err)
		}
	}
	if _, err := child.SendCommand("Page.setLifecycleEventsEnabled", map[string]any{"enabled": true}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to enable lifecycle events for session %q: %v\n", p.SessionID, err)
	}

	if t.OnSessionAttached != nil {
		t.OnSessionAttached(child)
	}
}

func (t *TargetTracker) handleTargetDetached(params json.RawMessage) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	t.sessions.Remove(p.SessionID)
	if child, ok := t.root.Child(p.SessionID); ok {
		child.SetDetached()
		child.Detach()
	}
}

func (t *TargetTracker) handleTargetInfoChanged(params json.RawMessage) {
	var p struct {
		TargetInfo targetInfo `json:"targetInfo"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.TargetInfo.Type != "page" {
		return
	}
	t.sessions.UpdateByTargetID(p.TargetInfo.TargetID, p.TargetInfo.URL, p.TargetInfo.Title)
}
