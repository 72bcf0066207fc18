package trackers

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/quietfjord/chromewire/internal/cdp"
	"github.com/quietfjord/chromewire/internal/eventlog"
	"github.com/quietfjord/chromewire/internal/ipc"
)

// maxCapturedBodySize caps how much of a text response body is kept in
// memory; anything longer is truncated and flagged.
const maxCapturedBodySize = 64 * 1024

// NetworkTracker records Network.* request lifecycle events for a page
// session into a shared ring buffer, fetching text response bodies once a
// request finishes loading. Registered on each attached child node.
//
// Response body fetches are issued synchronously from OnEvent: the client
// tree's pump is single-threaded and cooperative (spec.md §4.4), and a
// SendCommand issued from inside an event handler re-enters the same pump
// rather than blocking a separate reader, so there is no goroutine needed
// to avoid deadlock here.
type NetworkTracker struct {
	cdp.BaseListener

	buf *eventlog.RingBuffer[ipc.NetworkEntry]
}

// NewNetworkTracker creates a tracker backed by buf and registers it on node.
// The caller is responsible for having enabled the Network domain on node.
func NewNetworkTracker(node *cdp.Node, buf *eventlog.RingBuffer[ipc.NetworkEntry]) *NetworkTracker {
	t := &NetworkTracker{buf: buf}
	node.AddListener(t)
	return t
}

// OnEvent implements cdp.Listener.
func (t *NetworkTracker) OnEvent(node *cdp.Node, method string, params json.RawMessage) error {
	switch method {
	case "Network.requestWillBeSent":
		if entry, ok := parseRequestEvent(params); ok {
			entry.SessionID = node.SessionID()
			t.buf.Push(entry)
		}
	case "Network.responseReceived":
		t.updateResponseEvent(params)
	case "Network.loadingFinished":
		t.handleLoadingFinished(node, params)
	case "Network.loadingFailed":
		t.handleLoadingFailed(params)
	}
	return nil
}

func parseRequestEvent(params json.RawMessage) (ipc.NetworkEntry, bool) {
	var p struct {
		RequestID string  `json:"requestId"`
		WallTime  float64 `json:"wallTime"`
		Request   struct {
			URL     string            `json:"url"`
			Method  string            `json:"method"`
			Headers map[string]string `json:"headers"`
		} `json:"request"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ipc.NetworkEntry{}, false
	}
	return ipc.NetworkEntry{
		RequestID:      p.RequestID,
		URL:            p.Request.URL,
		Method:         p.Request.Method,
		Type:           p.Type,
		RequestTime:    int64(p.WallTime * 1000),
		RequestHeaders: p.Request.Headers,
	}, true
}

func (t *NetworkTracker) updateResponseEvent(params json.RawMessage) {
	var p struct {
		RequestID string `json:"requestId"`
		Response  struct {
			Status     int               `json:"status"`
			StatusText string            `json:"statusText"`
			MimeType   string            `json:"mimeType"`
			Headers    map[string]string `json:"headers"`
		} `json:"response"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}

	responseTime := time.Now().UnixMilli()
	t.buf.Update(func(entry *ipc.NetworkEntry) bool {
		if entry.RequestID != p.RequestID {
			return false
		}
		entry.Status = p.Response.Status
		entry.StatusText = p.Response.StatusText
		entry.MimeType = p.Response.MimeType
		entry.ResponseHeaders = p.Response.Headers
		entry.ResponseTime = responseTime
		if entry.RequestTime > 0 {
			entry.Duration = float64(entry.ResponseTime-entry.RequestTime) / 1000.0
		}
		return true
	})
}

func (t *NetworkTracker) handleLoadingFinished(node *cdp.Node, params json.RawMessage) {
	var p struct {
		RequestID         string `json:"requestId"`
		EncodedDataLength int64  `json:"encodedDataLength"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}

	var mimeType string
	t.buf.Update(func(entry *ipc.NetworkEntry) bool {
		if entry.RequestID != p.RequestID {
			return false
		}
		mimeType = entry.MimeType
		entry.Size = p.EncodedDataLength
		return true
	})

	if isBinaryMimeType(mimeType) {
		t.buf.Update(func(entry *ipc.NetworkEntry) bool {
			if entry.RequestID != p.RequestID {
				return false
			}
			entry.BodyTruncated = true
			return true
		})
		return
	}

	result, err := node.SendCommandWithTimeout("Network.getResponseBody", map[string]any{
		"requestId": p.RequestID,
	}, 10*time.Second)
	if err != nil {
		return // body may be unavailable, e.g. redirects, cached responses
	}

	var body struct {
		Body          string `json:"body"`
		Base64Encoded bool   `json:"base64Encoded"`
	}
	if err := json.Unmarshal(result, &body); err != nil {
		return
	}

	text := body.Body
	if body.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			return
		}
		text = string(decoded)
	}

	truncated := false
	if len(text) > maxCapturedBodySize {
		text = text[:maxCapturedBodySize]
		truncated = true
	}

	t.buf.Update(func(entry *ipc.NetworkEntry) bool {
		if entry.RequestID != p.RequestID {
			return false
		}
		entry.Body = text
		entry.BodyTruncated = truncated
		return true
	})
}

func (t *NetworkTracker) handleLoadingFailed(params json.RawMessage) {
	var p struct {
		RequestID string `json:"requestId"`
		ErrorText string `json:"errorText"`
		Canceled  bool   `json:"canceled"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}

	failTime := time.Now().UnixMilli()
	t.buf.Update(func(entry *ipc.NetworkEntry) bool {
		if entry.RequestID != p.RequestID {
			return false
		}
		entry.Failed = true
		if p.Canceled {
			entry.Error = "canceled"
		} else {
			entry.Error = p.ErrorText
		}
		entry.ResponseTime = failTime
		if entry.RequestTime > 0 {
			entry.Duration = float64(entry.ResponseTime-entry.RequestTime) / 1000.0
		}
		return true
	})
}

// isBinaryMimeType reports whether a MIME type's body should be skipped
// rather than captured as text.
func isBinaryMimeType(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return false
	case strings.Contains(mimeType, "json"):
		return false
	case strings.Contains(mimeType, "javascript"):
		return false
	case strings.Contains(mimeType, "xml"):
		return false
	case strings.Contains(mimeType, "svg"):
		return false
	default:
		return true
	}
}
