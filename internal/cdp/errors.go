package cdp

import (
	"encoding/json"
	"fmt"
)

// Kind is the domain error taxonomy a command send can resolve to.
type Kind int

const (
	KindOk Kind = iota
	KindUnknownError
	KindUnknownCommand
	KindInvalidArgument
	KindDisconnected
	KindTimeout
	KindTabCrashed
	KindTargetDetached
	KindNoSuchFrame
	KindNoSuchWindow
	KindUnexpectedAlertOpen
	KindSessionNotCreated
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "Ok"
	case KindUnknownError:
		return "UnknownError"
	case KindUnknownCommand:
		return "UnknownCommand"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindDisconnected:
		return "Disconnected"
	case KindTimeout:
		return "Timeout"
	case KindTabCrashed:
		return "TabCrashed"
	case KindTargetDetached:
		return "TargetDetached"
	case KindNoSuchFrame:
		return "NoSuchFrame"
	case KindNoSuchWindow:
		return "NoSuchWindow"
	case KindUnexpectedAlertOpen:
		return "UnexpectedAlertOpen"
	case KindSessionNotCreated:
		return "SessionNotCreated"
	default:
		return "Unknown"
	}
}

// Error is the error type every core operation returns. AlertText is only
// populated for KindUnexpectedAlertOpen when the dialog's text was
// obtainable.
type Error struct {
	Kind      Kind
	Message   string
	AlertText string
}

func (e *Error) Error() string {
	if e.Kind == KindUnexpectedAlertOpen && e.AlertText != "" {
		return fmt.Sprintf("%s: {Alert text : %s}", e.Kind, e.AlertText)
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *cdp.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	cdpErr, ok := err.(*Error)
	return ok && cdpErr.Kind == kind
}

const (
	codeUnknownCommand = -32601
	codeSessionMissing = -32001
	codeInvalidParams  = -32602
)

const (
	msgDefaultContext  = "Cannot find default execution context"
	msgContextByID     = "Cannot find context with specified id"
	msgInvalidURL      = "Cannot navigate to invalid URL"
	msgInsecureContext = "Permission can't be granted in current context."
	msgPushPermission  = "Push Permission without userVisibleOnly:true isn't supported"
	msgOpaqueOrigins   = "Permission can't be granted to opaque origins."
	msgNoSuchFrame     = "Frame with the given id was not found."
	msgNoTargetWithID  = "No target with given id found"
)

// ClassifyInspectorError maps a raw CDP error object (as it appears under
// the response's "error" key) to a domain error kind, per spec.md §4.5.
func ClassifyInspectorError(errorJSON json.RawMessage) *Error {
	var parsed struct {
		Code    *int    `json:"code"`
		Message *string `json:"message"`
	}
	if len(errorJSON) == 0 || json.Unmarshal(errorJSON, &parsed) != nil {
		return newError(KindUnknownError, "inspector error with no error message")
	}
	if parsed.Code == nil && parsed.Message == nil {
		return newError(KindUnknownError, "inspector error with no error message")
	}

	msg := ""
	if parsed.Message != nil {
		msg = *parsed.Message
	}

	if parsed.Code != nil {
		switch *parsed.Code {
		case codeUnknownCommand:
			return newError(KindUnknownCommand, "%s", msg)
		case codeSessionMissing:
			return newError(KindNoSuchFrame, "%s", msg)
		}
	}

	switch msg {
	case msgDefaultContext, msgContextByID:
		return newError(KindNoSuchWindow, "%s", msg)
	case msgInvalidURL:
		return newError(KindInvalidArgument, "%s", msg)
	case msgInsecureContext:
		return newError(KindInvalidArgument, "feature cannot be used in insecure context")
	case msgPushPermission, msgOpaqueOrigins:
		return newError(KindInvalidArgument, "%s", msg)
	case msgNoSuchFrame:
		return newError(KindNoSuchFrame, "%s", msg)
	}

	if parsed.Code != nil && *parsed.Code == codeInvalidParams {
		if msg == msgNoTargetWithID {
			return newError(KindNoSuchWindow, "%s", msg)
		}
		return newError(KindInvalidArgument, "%s", msg)
	}

	return newError(KindUnknownError, "unhandled inspector error: %s", string(errorJSON))
}
