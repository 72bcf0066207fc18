package trackers

import (
	"strconv"
	"time"

	"github.com/quietfjord/chromewire/internal/cdp"
)

// mockTransport is a synchronous, queue-backed cdp.Transport double, mirroring
// the one internal/cdp's own tests use: push frames ahead of time, and
// ReceiveNext/HasNext drain them without ever actually blocking.
type mockTransport struct {
	connected bool
	sent      []string
	queue     []string
}

func newMockTransport() *mockTransport {
	return &mockTransport{connected: true}
}

func (m *mockTransport) Connect(string) (bool, error) { m.connected = true; return true, nil }
func (m *mockTransport) Send(text string) error       { m.sent = append(m.sent, text); return nil }

func (m *mockTransport) push(frame string) { m.queue = append(m.queue, frame) }

func (m *mockTransport) ReceiveNext(time.Time) (string, cdp.StatusCode) {
	if !m.connected {
		return "", cdp.StatusDisconnected
	}
	if len(m.queue) == 0 {
		return "", cdp.StatusTimeout
	}
	frame := m.queue[0]
	m.queue = m.queue[1:]
	return frame, cdp.StatusOk
}

func (m *mockTransport) HasNext() bool                    { return len(m.queue) > 0 }
func (m *mockTransport) IsConnected() bool                { return m.connected }
func (m *mockTransport) SetNotificationCallback(func()) {}
func (m *mockTransport) Close() error                     { m.connected = false; return nil }

// connectedRoot builds a browser-wide root node over a mock transport,
// already connected (which skips automation-prelude setup commands).
func connectedRoot(transport *mockTransport) *cdp.Node {
	root := cdp.NewRootNode(cdp.BrowserWideID, "ws://mock", transport)
	if err := root.ConnectIfNecessary(); err != nil {
		panic(err)
	}
	return root
}

// respond pre-queues a synthetic command response for the given wire id on
// the root session (no sessionId), used to make a synchronous SendCommand
// call inside an OnEvent handler return immediately instead of hanging.
func respond(transport *mockTransport, id int64, result string) {
	transport.push(`{"id":` + strconv.FormatInt(id, 10) + `,"result":` + result + `}`)
}

// respondSession is respond for a command sent on a child node, whose
// response frames carry the child's sessionId.
func respondSession(transport *mockTransport, id int64, sessionID, result string) {
	transport.push(`{"id":` + strconv.FormatInt(id, 10) + `,"sessionId":"` + sessionID + `","result":` + result + `}`)
}
