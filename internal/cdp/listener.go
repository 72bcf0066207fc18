package cdp

import (
	"encoding/json"
	"time"
)

// Listener observes occurrences on a single client node: connection,
// events, and successful command responses. Implementations that don't
// care about a given occurrence simply implement it as a no-op; there is
// no inheritance hierarchy, only this one interface (spec.md §9).
type Listener interface {
	// ListensToConnections reports whether OnConnected should be queued for
	// this listener on (re)connect. Checked by ResetListeners, not by
	// AddListener.
	ListensToConnections() bool

	// OnConnected fires once the node has completed its connect/setup
	// sub-state-machine (spec.md §4.2).
	OnConnected(node *Node) error

	// OnEvent fires for every event delivered to this node, in arrival
	// order, before the pump examines special event methods.
	OnEvent(node *Node, method string, params json.RawMessage) error

	// OnCommandSuccess fires after a successful (non-error) command
	// response is recorded, in listener-insertion order.
	OnCommandSuccess(node *Node, method string, result json.RawMessage, timeout time.Duration) error
}

// BaseListener implements Listener with no-op bodies so embedders only
// override what they need.
type BaseListener struct{}

func (BaseListener) ListensToConnections() bool { return false }
func (BaseListener) OnConnected(*Node) error     { return nil }
func (BaseListener) OnEvent(*Node, string, json.RawMessage) error {
	return nil
}
func (BaseListener) OnCommandSuccess(*Node, string, json.RawMessage, time.Duration) error {
	return nil
}

// listenerQueues holds the three per-node "pending work to notify listener
// L of occurrence X" queues described in spec.md §4.4. They are distinct
// from the listener list itself.
type listenerQueues struct {
	connect []Listener

	event       []Listener
	eventMethod string
	eventParams json.RawMessage

	cmdResponse       []Listener
	cmdResponseMethod string
	cmdResponseResult json.RawMessage
	cmdResponseTO     time.Duration
}

func (q *listenerQueues) drainConnect(node *Node) error {
	for len(q.connect) > 0 {
		l := q.connect[0]
		q.connect = q.connect[1:]
		if err := l.OnConnected(node); err != nil {
			return err
		}
	}
	return nil
}

func (q *listenerQueues) drainEvent(node *Node) error {
	for len(q.event) > 0 {
		l := q.event[0]
		q.event = q.event[1:]
		if err := l.OnEvent(node, q.eventMethod, q.eventParams); err != nil {
			// Stop notifying the rest of this occurrence's listeners.
			q.event = nil
			return err
		}
	}
	return nil
}

func (q *listenerQueues) drainCmdResponse(node *Node) error {
	for len(q.cmdResponse) > 0 {
		l := q.cmdResponse[0]
		q.cmdResponse = q.cmdResponse[1:]
		if err := l.OnCommandSuccess(node, q.cmdResponseMethod, q.cmdResponseResult, q.cmdResponseTO); err != nil {
			q.cmdResponse = nil
			return err
		}
	}
	return nil
}
