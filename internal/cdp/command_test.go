package cdp

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func connectedRoot(t *testing.T, transport *mockTransport) *Node {
	t.Helper()
	root := NewRootNode(BrowserWideID, "ws://example", transport)
	if err := root.ConnectIfNecessary(); err != nil {
		t.Fatalf("ConnectIfNecessary: %v", err)
	}
	return root
}

func TestSendCommandRoundTrip(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(t, transport)

	id := root.NextCommandID()
	transport.push(`{"id":` + strconv.FormatInt(id, 10) + `,"result":{"value":42}}`)

	result, err := root.SendCommand("Runtime.evaluate", map[string]any{"expression": "1+1"})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if string(result) != `{"value":42}` {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestSendCommandReturnsClassifiedError(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(t, transport)

	id := root.NextCommandID()
	transport.push(`{"id":` + strconv.FormatInt(id, 10) + `,"error":{"code":-32601,"message":"'Foo.bar' wasn't found"}}`)

	_, err := root.SendCommand("Foo.bar", nil)
	if !IsKind(err, KindUnknownCommand) {
		t.Fatalf("expected KindUnknownCommand, got %v", err)
	}
}

func TestSendCommandWithTimeoutExpires(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(t, transport)

	// No response ever arrives; the mock's ReceiveNext reports StatusTimeout
	// immediately on an empty queue, every call, so this resolves fast.
	_, err := root.SendCommandWithTimeout("Debugger.enable", nil, 20*time.Millisecond)
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected KindTimeout, got %v", err)
	}
}

func TestSendCommandWhenDisconnected(t *testing.T) {
	root := NewRootNode("page1", "ws://example", newMockTransport())
	_, err := root.SendCommand("Page.navigate", nil)
	if !IsKind(err, KindDisconnected) {
		t.Fatalf("expected KindDisconnected, got %v", err)
	}
}

func TestSendCommandAndIgnoreResponseDoesNotBlock(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(t, transport)
	// No frame queued; if this blocked waiting for a response it would
	// return a timeout instead of succeeding immediately.
	result, err := root.SendCommandAndIgnoreResponse("Page.enable", nil)
	if err != nil {
		t.Fatalf("SendCommandAndIgnoreResponse: %v", err)
	}
	if string(result) != "{}" {
		t.Fatalf("expected empty object placeholder, got %s", result)
	}
}

func TestSendCommandWithIDUsesExternalID(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(t, transport)
	before := root.NextCommandID()
	if err := root.SendCommandWithID("Network.enable", nil, 9999); err != nil {
		t.Fatalf("SendCommandWithID: %v", err)
	}
	if root.NextCommandID() != before {
		t.Fatalf("external id should not consume the monotonic counter")
	}
}

func TestPostBidiCommandWrapsExpression(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(t, transport)
	err := root.PostBidiCommand(map[string]any{"id": int64(1), "method": "session.status", "params": map[string]any{}})
	if err != nil {
		t.Fatalf("PostBidiCommand: %v", err)
	}
	if len(transport.sent) == 0 {
		t.Fatalf("expected a frame to be sent")
	}
	last := transport.sent[len(transport.sent)-1]
	if !strings.Contains(last, "onBidiMessage(") {
		t.Fatalf("expected BiDi tunnel wrapper, got %s", last)
	}
}


