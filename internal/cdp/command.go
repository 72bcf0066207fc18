package cdp

import (
	"encoding/json"
	"time"
)

// SendCommand sends method with params, blocks for a response using
// DefaultCommandTimeout, and returns its result (spec.md §4.3).
func (n *Node) SendCommand(method string, params any) (json.RawMessage, error) {
	return n.sendCommandInternal(method, params, true, true, 0, 0, false)
}

// SendCommandWithTimeout is SendCommand with an explicit blocking ceiling.
func (n *Node) SendCommandWithTimeout(method string, params any, timeout time.Duration) (json.RawMessage, error) {
	return n.sendCommandInternal(method, params, true, true, 0, timeout, true)
}

// SendCommandAndIgnoreResponse sends method and returns as soon as the
// frame is written, without waiting for a response. The command is still
// registered in the response table, so its response is consumed by a later
// pump when it arrives. Used internally for fire-and-forget setup commands
// (spec.md §4.2).
func (n *Node) SendCommandAndIgnoreResponse(method string, params any) (json.RawMessage, error) {
	return n.sendCommandInternal(method, params, true, false, 0, 0, false)
}

// SendAsyncCommand sends method without even registering for correlation:
// the eventual response, if any, finds no response table entry and the pump
// that receives it reports an UnknownError "unexpected command response"
// (unless it is a NoSuchFrame error at the root), under the usual
// error-propagation policy (spec.md §4.1, "fire and forget").
func (n *Node) SendAsyncCommand(method string, params any) error {
	_, err := n.sendCommandInternal(method, params, false, false, 0, 0, false)
	return err
}

// SendCommandWithID sends method under a caller-supplied id instead of the
// tree's monotonic counter, for callers that tunnel their own
// request/response correlation (e.g. a WebSocket passthrough) through this
// node. The response, when it arrives, is not matched against any table
// entry here (spec.md §6, external id use). Keeping externalID unique is
// the caller's responsibility: it is not checked against drawn ids.
func (n *Node) SendCommandWithID(method string, params any, externalID int64) error {
	_, err := n.sendCommandInternal(method, params, false, false, externalID, 0, false)
	return err
}

// PostBidiCommand wraps command as a WebDriver BiDi tunnel message and
// sends it via Runtime.evaluate, ignoring the synthetic response (the real
// BiDi response arrives later as a Runtime.bindingCalled event; spec.md
// §4.6).
func (n *Node) PostBidiCommand(command map[string]any) error {
	expr, err := encodeBidiCommand(command)
	if err != nil {
		return newError(KindInvalidArgument, "%v", err)
	}
	_, err = n.SendCommandAndIgnoreResponse("Runtime.evaluate", map[string]any{"expression": expr})
	return err
}

func (n *Node) sendCommandInternal(
	method string,
	params any,
	expectResponse bool,
	waitForResponse bool,
	externalID int64,
	timeout time.Duration,
	hasTimeout bool,
) (json.RawMessage, error) {
	if !n.IsConnected() {
		return nil, newError(KindDisconnected, "not connected to DevTools")
	}

	commandID := externalID
	if commandID == 0 {
		commandID = n.advanceNextCommandID()
	}

	frame := requestFrame{ID: commandID, Method: method, Params: params}
	if n.sessionID != "" {
		frame.SessionID = n.sessionID
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, newError(KindUnknownError, "unable to encode command: %v", err)
	}

	n.logf("Command: %s (id=%d, session=%q)", method, commandID, n.sessionID)

	root := n.GetRoot()
	if err := root.transport.Send(string(data)); err != nil {
		return nil, newError(KindDisconnected, "unable to send message to renderer")
	}

	if !expectResponse {
		return json.RawMessage(`{}`), nil
	}

	info := &responseInfo{state: stateWaiting, method: method, hasTimeout: hasTimeout, timeout: timeout}
	n.responses[commandID] = info

	if !waitForResponse {
		return json.RawMessage(`{}`), nil
	}

	effectiveTimeout := DefaultCommandTimeout
	if hasTimeout {
		effectiveTimeout = timeout
	}
	deadline := time.Now().Add(effectiveTimeout)

	for info.state == stateWaiting {
		if err := n.processNextMessage(commandID, true, deadline, n); err != nil {
			delete(n.responses, commandID)
			return nil, err
		}
	}

	switch info.state {
	case stateBlocked:
		info.state = stateIgnored
		delete(n.responses, commandID)
		alertErr := &Error{Kind: KindUnexpectedAlertOpen}
		if n.owner != nil {
			if dm := n.owner.JavaScriptDialogManager(); dm != nil {
				if text, derr := dm.GetDialogMessage(); derr == nil {
					alertErr.AlertText = text
				}
			}
		}
		return nil, alertErr
	case stateReceived:
		if len(info.errorJSON) > 0 {
			return nil, ClassifyInspectorError(info.errorJSON)
		}
		return info.result, nil
	default:
		return nil, newError(KindUnknownError, "unexpected response state for command %d", commandID)
	}
}
