// Package dialogmgr tracks JavaScript dialogs (alert/confirm/prompt/
// beforeunload) opened by a page and lets a caller answer them, satisfying
// the cdp.DialogManager contract a client node's owner supplies.
package dialogmgr

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quietfjord/chromewire/internal/cdp"
)

// State describes an open dialog.
type State struct {
	Type          string
	Message       string
	DefaultPrompt string
}

// Manager listens for Page.javascriptDialogOpening/Closing on a node and
// answers open dialogs via Page.handleJavaScriptDialog.
type Manager struct {
	cdp.BaseListener

	node *cdp.Node
	open *State
}

// New attaches a dialog manager to node. The node must belong to the page
// (or page-like target) whose dialogs should be tracked.
func New(node *cdp.Node) *Manager {
	m := &Manager{node: node}
	node.AddListener(m)
	return m
}

// OnEvent implements cdp.Listener.
func (m *Manager) OnEvent(node *cdp.Node, method string, params json.RawMessage) error {
	switch method {
	case "Page.javascriptDialogOpening":
		var evt struct {
			Message       string `json:"message"`
			Type          string `json:"type"`
			DefaultPrompt string `json:"defaultPrompt"`
		}
		if err := json.Unmarshal(params, &evt); err != nil {
			return nil
		}
		m.open = &State{Type: evt.Type, Message: evt.Message, DefaultPrompt: evt.DefaultPrompt}
	case "Page.javascriptDialogClosing":
		m.open = nil
	}
	return nil
}

// IsDialogOpen reports whether a dialog is currently open.
func (m *Manager) IsDialogOpen() bool { return m.open != nil }

// GetDialogMessage implements cdp.DialogManager.
func (m *Manager) GetDialogMessage() (string, error) {
	if m.open == nil {
		return "", fmt.Errorf("no javascript dialog exists")
	}
	return m.open.Message, nil
}

// GetDialogType returns the open dialog's type ("alert", "confirm",
// "prompt", "beforeunload"), or an error if none is open.
func (m *Manager) GetDialogType() (string, error) {
	if m.open == nil {
		return "", fmt.Errorf("no javascript dialog exists")
	}
	return m.open.Type, nil
}

// HandleDialog accepts or dismisses the currently open dialog, optionally
// supplying prompt text. Blocks for the acknowledgement round trip.
func (m *Manager) HandleDialog(accept bool, promptText *string) error {
	if m.open == nil {
		return fmt.Errorf("no javascript dialog exists")
	}
	params := map[string]any{"accept": accept}
	if promptText != nil {
		params["promptText"] = *promptText
	}
	_, err := m.node.SendCommandWithTimeout("Page.handleJavaScriptDialog", params, 10*time.Second)
	if err != nil {
		return err
	}
	m.open = nil
	return nil
}
