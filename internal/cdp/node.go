// Package cdp implements the multiplexing Chrome DevTools Protocol client
// core: a tree of logical sessions sharing one transport, with blocking
// request/response correlation, ordered event dispatch to listeners, and
// handling of dialogs, crashes, and detachment.
package cdp

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// BrowserWideID is the reserved root id for the browser-wide client. Nodes
// with this id skip automation-prelude injection during set-up (spec.md
// §6, "Identifier reservations").
const BrowserWideID = "browser"

// DefaultCommandTimeout is the ceiling applied to a blocking send_command
// when the caller does not supply one (spec.md §4.3 step 5).
const DefaultCommandTimeout = 10 * time.Minute

// pumpInnerSlice bounds how long a single ReceiveNext call inside
// HandleEventsUntil may block, so a predicate can be re-evaluated even
// while no messages arrive (spec.md §5, "Cancellation and timeouts").
const pumpInnerSlice = 500 * time.Millisecond

type responseState int

const (
	stateWaiting responseState = iota
	stateBlocked
	stateIgnored
	stateReceived
)

// responseInfo is the per-pending-command record described in spec.md §3.
type responseInfo struct {
	state     responseState
	method    string
	result    json.RawMessage
	errorJSON json.RawMessage
	timeout   time.Duration
	hasTimeout bool
}

var nodeSeq int64

func nextAnonymousID() string {
	return fmt.Sprintf("node-%d", atomic.AddInt64(&nodeSeq, 1))
}

// Node is the client node described in spec.md §3: either the root (holding
// the transport and URL) or a child (holding a session id and a back
// reference to its parent). Depth is bounded to 2: only the root may have
// children.
type Node struct {
	id        string
	sessionID string

	parent   *Node
	children map[string]*Node
	owner    Owner

	url       string    // root only
	transport Transport // root only

	crashed          bool
	detached         bool
	isMainPage       bool
	remoteConfigured bool

	listeners []Listener
	queues    listenerQueues

	responses map[int64]*responseInfo

	stackDepth    int
	nextCommandID int64 // root only, 1-based

	frontendCloser func() error                                                // root only
	parserFunc     func(string) (*InspectorEvent, *InspectorResponse, error) // root only

	verbose bool
	logSink func(string)
}

// NewRootNode constructs the root of a client tree. The transport is not
// yet connected; call ConnectIfNecessary to dial it.
func NewRootNode(id, url string, transport Transport) *Node {
	if id == "" {
		id = nextAnonymousID()
	}
	return &Node{
		id:             id,
		children:       make(map[string]*Node),
		responses:      make(map[int64]*responseInfo),
		url:            url,
		transport:      transport,
		nextCommandID:  1,
		frontendCloser: func() error { return nil },
		parserFunc:     ParseInspectorMessage,
	}
}

// NewChildNode constructs an unattached (null) child node for the given
// session id. Call Attach to place it under a root.
func NewChildNode(id, sessionID string) *Node {
	if id == "" {
		id = nextAnonymousID()
	}
	return &Node{
		id:        id,
		sessionID: sessionID,
		children:  make(map[string]*Node),
		responses: make(map[int64]*responseInfo),
	}
}

// ID returns the node's opaque identifier.
func (n *Node) ID() string { return n.id }

// SessionID returns the CDP session id, empty for the root.
func (n *Node) SessionID() string { return n.sessionID }

// WasCrashed reports whether Inspector.targetCrashed has been observed.
func (n *Node) WasCrashed() bool { return n.crashed }

// IsDetached reports whether SetDetached has been called.
func (n *Node) IsDetached() bool { return n.detached }

// IsNull reports whether the node has neither a parent nor a transport: a
// freshly allocated node awaiting Attach (child) or a construction bug
// (root, which always carries a transport).
func (n *Node) IsNull() bool {
	return n.parent == nil && n.transport == nil
}

// IsConnected reports whether the root's transport is connected.
func (n *Node) IsConnected() bool {
	if n.parent != nil {
		return n.parent.IsConnected()
	}
	return n.transport != nil && n.transport.IsConnected()
}

// SetFrontendCloser overrides the one-shot retry hook used by
// ConnectIfNecessary on initial connection refusal. Root only.
func (n *Node) SetFrontendCloser(fn func() error) { n.frontendCloser = fn }

// SetParserFunc overrides the message parser, for testing. Root only.
func (n *Node) SetParserFunc(fn func(string) (*InspectorEvent, *InspectorResponse, error)) {
	n.parserFunc = fn
}

// SetVerbose enables level-1 command/event/response logging (spec.md §4.4,
// "Emit a log line at verbosity level 1").
func (n *Node) SetVerbose(v bool) { n.verbose = v }

// SetLogSink overrides where verbose log lines are written; nil discards
// them. Defaults to nil (silent) so library consumers opt in.
func (n *Node) SetLogSink(fn func(string)) { n.logSink = fn }

func (n *Node) logf(format string, args ...any) {
	if !n.verbose {
		return
	}
	sink := n.logSink
	if sink == nil {
		root := n.GetRoot()
		sink = root.logSink
	}
	if sink == nil {
		return
	}
	sink(fmt.Sprintf(format, args...))
}

// SetDetached marks the node as unilaterally detached from its target.
// Subsequent pump activity on this node returns TargetDetached.
func (n *Node) SetDetached() { n.detached = true }

// SetOwner sets the higher-level object this node serves. The core only
// ever asks it for a DialogManager.
func (n *Node) SetOwner(owner Owner) { n.owner = owner }

// Owner returns the node's owner, or nil.
func (n *Node) Owner() Owner { return n.owner }

// GetRoot walks up to the tree's root.
func (n *Node) GetRoot() *Node {
	if n.parent != nil {
		return n.parent.GetRoot()
	}
	return n
}

// GetParent returns the node's parent, or nil for the root.
func (n *Node) GetParent() *Node { return n.parent }

// IsMainPage reports whether this node was designated the tree's main page.
func (n *Node) IsMainPage() bool { return n.isMainPage }

// SetMainPage designates this node as the tree's main page. Must not be
// called while connected.
func (n *Node) SetMainPage(v bool) { n.isMainPage = v }

// Child returns the child node for a session id, if attached.
func (n *Node) Child(sessionID string) (*Node, bool) {
	c, ok := n.children[sessionID]
	return c, ok
}

// Children returns a snapshot of the attached child nodes.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out
}

// serviceWorkerOwner is implemented by an Owner that hosts a service
// worker, exempting its node from automation-prelude injection.
type serviceWorkerOwner interface {
	IsServiceWorker() bool
}

func (n *Node) ownerIsServiceWorker() bool {
	if n.owner == nil {
		return false
	}
	sw, ok := n.owner.(serviceWorkerOwner)
	return ok && sw.IsServiceWorker()
}

// Attach places a null child node under parent, which must be the root.
// If the root is already connected, the child's connect/setup sub-state
// machine runs immediately (spec.md §4.1 "attach").
func (n *Node) Attach(parent *Node) error {
	if !n.IsNull() {
		return &Error{Kind: KindUnknownError, Message: "attaching a non-null client to a new parent is prohibited"}
	}
	if parent.parent != nil {
		return &Error{Kind: KindUnknownError, Message: "a client can be attached only to the root client"}
	}
	if _, exists := parent.children[n.sessionID]; exists {
		return &Error{Kind: KindUnknownError, Message: fmt.Sprintf("session id %q is already attached", n.sessionID)}
	}

	if parent.IsConnected() {
		n.resetListeners()
		n.parent = parent
		parent.children[n.sessionID] = n
		if err := n.onConnected(); err != nil {
			return err
		}
		return nil
	}

	n.parent = parent
	parent.children[n.sessionID] = n
	return nil
}

// Detach removes the node from its parent's child map without marking it
// detached at the protocol level; callers that also want SetDetached
// semantics should call both.
func (n *Node) Detach() {
	if n.parent != nil {
		delete(n.parent.children, n.sessionID)
		n.parent = nil
	}
}

// ConnectIfNecessary connects the transport if not already connected.
// Non-root nodes delegate to their parent. Forbidden while a pump frame is
// active on this node (spec.md §4.1).
func (n *Node) ConnectIfNecessary() error {
	if n.stackDepth > 0 {
		return &Error{Kind: KindUnknownError, Message: "cannot connect when nested"}
	}
	if n.IsNull() {
		return &Error{Kind: KindUnknownError, Message: "cannot connect without a transport"}
	}
	if n.parent != nil {
		return n.parent.ConnectIfNecessary()
	}

	if n.transport.IsConnected() {
		return nil
	}

	n.resetListeners()

	ok, err := n.transport.Connect(n.url)
	if err != nil {
		return err
	}
	if !ok {
		if cerr := n.frontendCloser(); cerr != nil {
			return cerr
		}
		ok, err = n.transport.Connect(n.url)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Kind: KindDisconnected, Message: "unable to connect to renderer"}
		}
	}

	return n.onConnected()
}

// resetListeners clears pending notification queues and the response table
// for this node and, recursively, its children. Only listeners whose
// ListensToConnections is true are re-queued for a connect notification
// (spec.md §9, "reconfiguration after reconnect" — preserved as-is).
func (n *Node) resetListeners() {
	n.remoteConfigured = false

	n.queues.connect = nil
	for _, l := range n.listeners {
		if l.ListensToConnections() {
			n.queues.connect = append(n.queues.connect, l)
		}
	}
	n.queues.event = nil
	n.queues.cmdResponse = nil
	n.responses = make(map[int64]*responseInfo)

	for _, c := range n.children {
		c.resetListeners()
	}
}

// onConnected runs the connect/setup sub-state-machine (spec.md §4.2).
func (n *Node) onConnected() error {
	if err := n.setUpDevTools(); err != nil {
		return err
	}
	if err := n.queues.drainConnect(n); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := c.onConnected(); err != nil {
			return err
		}
	}
	return nil
}

// automationPrelude rebinds Array/Promise/Symbol to internal names so
// automation-detection probes see chromewire's presence (spec.md §4.2).
const automationPrelude = `(function () {` +
	`window.cdc_adoQpoasnfa76pfcZLmcfl_Array = window.Array;` +
	`window.cdc_adoQpoasnfa76pfcZLmcfl_Promise = window.Promise;` +
	`window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol = window.Symbol;` +
	`})();`

func (n *Node) setUpDevTools() error {
	if n.remoteConfigured {
		return nil
	}
	if n.id != BrowserWideID && !n.ownerIsServiceWorker() {
		if _, err := n.SendCommandAndIgnoreResponse("Page.addScriptToEvaluateOnNewDocument", map[string]any{
			"source": automationPrelude,
		}); err != nil {
			return err
		}
		if _, err := n.SendCommandAndIgnoreResponse("Runtime.evaluate", map[string]any{
			"expression": automationPrelude,
		}); err != nil {
			return err
		}
	}
	n.remoteConfigured = true
	return nil
}

// AddListener registers an observer. Callers must not add a
// connect-interested listener after the node has already connected — it
// will never see the missed connect notification (spec.md §4.1).
func (n *Node) AddListener(l Listener) {
	if n.IsConnected() && l.ListensToConnections() {
		n.logf("listener registered on an already-connected node will not observe a connect notification")
	}
	n.listeners = append(n.listeners, l)
}

func (n *Node) advanceNextCommandID() int64 {
	root := n.GetRoot()
	id := root.nextCommandID
	root.nextCommandID++
	return id
}

// NextCommandID returns the id that will be drawn by the next send on this
// tree, without consuming it.
func (n *Node) NextCommandID() int64 {
	return n.GetRoot().nextCommandID
}
