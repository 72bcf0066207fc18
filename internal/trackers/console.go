package trackers

import (
	"encoding/json"

	"github.com/quietfjord/chromewire/internal/cdp"
	"github.com/quietfjord/chromewire/internal/eventlog"
	"github.com/quietfjord/chromewire/internal/ipc"
)

// ConsoleTracker records Runtime.consoleAPICalled and Runtime.exceptionThrown
// events for a page session into a shared ring buffer. Registered on each
// attached child node so entries are naturally tagged with that node's
// session id.
type ConsoleTracker struct {
	cdp.BaseListener

	buf *eventlog.RingBuffer[ipc.ConsoleEntry]
}

// NewConsoleTracker creates a tracker backed by buf and registers it on node.
func NewConsoleTracker(node *cdp.Node, buf *eventlog.RingBuffer[ipc.ConsoleEntry]) *ConsoleTracker {
	t := &ConsoleTracker{buf: buf}
	node.AddListener(t)
	return t
}

// OnEvent implements cdp.Listener.
func (t *ConsoleTracker) OnEvent(node *cdp.Node, method string, params json.RawMessage) error {
	switch method {
	case "Runtime.consoleAPICalled":
		if entry, ok := parseConsoleEvent(params); ok {
			entry.SessionID = node.SessionID()
			t.buf.Push(entry)
		}
	case "Runtime.exceptionThrown":
		if entry, ok := parseExceptionEvent(params); ok {
			entry.SessionID = node.SessionID()
			t.buf.Push(entry)
		}
	}
	return nil
}

func parseConsoleEvent(params json.RawMessage) (ipc.ConsoleEntry, bool) {
	var p struct {
		Type      string  `json:"type"`
		Timestamp float64 `json:"timestamp"`
		Args      []struct {
			Type  string `json:"type"`
			Value any    `json:"value"`
		} `json:"args"`
		StackTrace *struct {
			CallFrames []struct {
				URL          string `json:"url"`
				LineNumber   int    `json:"lineNumber"`
				ColumnNumber int    `json:"columnNumber"`
			} `json:"callFrames"`
		} `json:"stackTrace"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ipc.ConsoleEntry{}, false
	}

	entry := ipc.ConsoleEntry{Type: p.Type, Timestamp: int64(p.Timestamp)}

	var args []string
	for _, arg := range p.Args {
		if s, ok := arg.Value.(string); ok {
			args = append(args, s)
		} else {
			data, _ := json.Marshal(arg.Value)
			args = append(args, string(data))
		}
	}
	if len(args) > 0 {
		entry.Text = args[0]
		entry.Args = args
	}

	if p.StackTrace != nil && len(p.StackTrace.CallFrames) > 0 {
		frame := p.StackTrace.CallFrames[0]
		entry.URL = frame.URL
		entry.Line = frame.LineNumber
		entry.Column = frame.ColumnNumber
	}

	return entry, true
}

func parseExceptionEvent(params json.RawMessage) (ipc.ConsoleEntry, bool) {
	var p struct {
		Timestamp        float64 `json:"timestamp"`
		ExceptionDetails struct {
			Text      string `json:"text"`
			URL       string `json:"url"`
			Line      int    `json:"lineNumber"`
			Column    int    `json:"columnNumber"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ipc.ConsoleEntry{}, false
	}

	text := p.ExceptionDetails.Text
	if p.ExceptionDetails.Exception != nil && p.ExceptionDetails.Exception.Description != "" {
		text = p.ExceptionDetails.Exception.Description
	}

	return ipc.ConsoleEntry{
		Type:      "error",
		Text:      text,
		Timestamp: int64(p.Timestamp),
		URL:       p.ExceptionDetails.URL,
		Line:      p.ExceptionDetails.Line,
		Column:    p.ExceptionDetails.Column,
	}, true
}
