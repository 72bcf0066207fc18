package cdp

import (
	"time"
)

// HandleReceivedEvents drains whatever is already buffered on the
// transport without blocking for anything new (spec.md §4.4).
func (n *Node) HandleReceivedEvents() error {
	return n.HandleEventsUntil(func() (bool, error) { return true, nil }, 0)
}

// HandleEventsUntil pumps messages until conditional reports true, an
// error occurs, or timeout elapses (0 means "don't wait for new data").
// Each inner receive is capped at pumpInnerSlice so conditional is
// re-evaluated periodically even with nothing arriving (spec.md §4.4,
// §5 "Cancellation and timeouts").
func (n *Node) HandleEventsUntil(conditional func() (bool, error), timeout time.Duration) error {
	root := n.GetRoot()
	if !root.transport.IsConnected() {
		return newError(KindDisconnected, "not connected to DevTools")
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	} else {
		deadline = time.Now()
	}

	for {
		if !root.transport.HasNext() {
			met, err := conditional()
			if err != nil {
				return err
			}
			if met {
				return nil
			}
		}

		inner := time.Now().Add(pumpInnerSlice)
		if timeout == 0 || deadline.Before(inner) {
			inner = deadline
		}

		err := n.processNextMessage(-1, false, inner, n)
		if err == nil {
			continue
		}
		if IsKind(err, KindTimeout) {
			if timeout > 0 && !time.Now().Before(deadline) {
				n.logf("timed out receiving message from renderer after %s", timeout)
				return newError(KindTimeout, "timed out receiving message from renderer: %.3fs", timeout.Seconds())
			}
			if timeout == 0 {
				return nil
			}
			continue
		}
		return err
	}
}

// processNextMessage is the core pump primitive (spec.md §4.4). It is
// re-entrant: a listener invoked from inside one frame may itself call
// SendCommand, recursing into a nested frame.
//
// expectedID, when not -1, lets the caller bail out early once the
// response table entry it's waiting on has left the Waiting state,
// without having to actually receive a new transport message.
func (n *Node) processNextMessage(expectedID int64, logTimeout bool, deadline time.Time, caller *Node) error {
	n.stackDepth++
	defer func() { n.stackDepth-- }()

	if err := n.queues.drainConnect(n); err != nil {
		return err
	}
	if err := n.queues.drainEvent(n); err != nil {
		return err
	}
	if err := n.queues.drainCmdResponse(n); err != nil {
		return err
	}

	if expectedID != -1 {
		if info, ok := n.responses[expectedID]; !ok || info.state != stateWaiting {
			return nil
		}
	}

	if n.crashed {
		return newError(KindTabCrashed, "")
	}
	if n.detached {
		return newError(KindTargetDetached, "")
	}

	if n.parent != nil {
		return n.parent.processNextMessage(-1, logTimeout, deadline, caller)
	}

	text, status := n.transport.ReceiveNext(deadline)
	switch status {
	case StatusDisconnected:
		return newError(KindDisconnected, "unable to receive message from renderer")
	case StatusTimeout:
		if logTimeout {
			n.logf("timed out receiving message from renderer")
		}
		return newError(KindTimeout, "timed out receiving message from renderer")
	}

	return n.handleMessage(text, caller)
}

// handleMessage parses one raw frame, routes it to the owning session node
// by sessionId, and dispatches it as either an event or a command
// response. A message for an unrecognized session id is silently dropped
// (spec.md §4.4, "session routing").
//
// n is always the root here: only the root reads from the transport, every
// other node delegates up to it first. The resulting error is handed back
// to caller only when target is the session caller itself invoked this pump
// for, or when target is the root's own session; an error on any other
// (foreign) session is swallowed so the rest of the tree keeps making
// progress (spec.md §4.4, "error-propagation policy").
func (n *Node) handleMessage(text string, caller *Node) error {
	parse := n.parserFunc
	if parse == nil {
		parse = ParseInspectorMessage
	}
	event, resp, err := parse(text)
	if err != nil {
		return newError(KindUnknownError, "bad inspector message: %v", err)
	}

	var sessionID string
	if event != nil {
		sessionID = event.SessionID
	} else {
		sessionID = resp.SessionID
	}

	target := n
	if sessionID != n.sessionID {
		child, ok := n.children[sessionID]
		if !ok {
			return nil
		}
		target = child
	}

	var dispatchErr error
	if event != nil {
		dispatchErr = target.processEvent(event)
	} else {
		dispatchErr = target.processCommandResponse(resp)
	}
	if dispatchErr == nil {
		return nil
	}
	if target == caller || target == n {
		return dispatchErr
	}
	return nil
}

// processCommandResponse resolves a pending response table entry, per the
// Waiting/Blocked/Ignored/Received lifecycle in spec.md §3.
func (n *Node) processCommandResponse(resp *InspectorResponse) error {
	info, ok := n.responses[resp.ID]
	if !ok {
		if n.parent == nil && len(resp.Error) > 0 && ClassifyInspectorError(resp.Error).Kind == KindNoSuchFrame {
			// A frame-scoped command raced a navigation; harmless.
			return nil
		}
		return newError(KindUnknownError, "unexpected command response with id %d", resp.ID)
	}
	delete(n.responses, resp.ID)

	wasIgnored := info.state == stateIgnored
	if !wasIgnored {
		info.state = stateReceived
		info.result = resp.Result
		info.errorJSON = resp.Error
	}

	if !wasIgnored && len(resp.Result) > 0 {
		n.queues.cmdResponse = append([]Listener(nil), n.listeners...)
		n.queues.cmdResponseMethod = info.method
		n.queues.cmdResponseResult = resp.Result
		n.queues.cmdResponseTO = info.timeout
		if err := n.queues.drainCmdResponse(n); err != nil {
			return err
		}
	}
	return nil
}

// processEvent notifies listeners and then applies the special-event
// handling in spec.md §4.4: Inspector.detached and Inspector.targetCrashed
// end the session's usability, and Page.javascriptDialogOpening blocks
// every command still Waiting at or before this point.
func (n *Node) processEvent(event *InspectorEvent) error {
	n.logf("Event: %s (session=%q)", event.Method, n.sessionID)

	n.queues.event = append([]Listener(nil), n.listeners...)
	n.queues.eventMethod = event.Method
	n.queues.eventParams = event.Params
	if err := n.queues.drainEvent(n); err != nil {
		return err
	}

	switch event.Method {
	case "Inspector.detached":
		return newError(KindDisconnected, "received Inspector.detached event")
	case "Inspector.targetCrashed":
		n.crashed = true
		return newError(KindTabCrashed, "")
	case "Page.javascriptDialogOpening":
		n.blockPendingResponses()
	}
	return nil
}

// blockPendingResponses does a round trip with a simple command to find out
// whether a still-in-flight command's real response is about to arrive
// independently of the dialog. DevTools commands are processed
// sequentially, so any response that was already on its way back arrives
// and resolves normally during this round trip; only what is still Waiting
// once it returns gets swept to Blocked. Errors from the probe itself are
// not propagated: the blocked commands resolve to UnexpectedAlertOpen
// regardless.
func (n *Node) blockPendingResponses() {
	maxID := n.GetRoot().nextCommandID
	_, _ = n.SendCommand("Inspector.enable", map[string]any{"purpose": "detect if alert blocked any cmds"})
	for id, info := range n.responses {
		if id < maxID && info.state == stateWaiting {
			info.state = stateBlocked
		}
	}
}
