package trackers

import (
	"testing"

	"github.com/quietfjord/chromewire/internal/eventlog"
	"github.com/quietfjord/chromewire/internal/ipc"
)

func TestNetworkTrackerRecordsRequestAndResponse(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	child := childForSession(root, "S1")

	buf := eventlog.NewRingBuffer[ipc.NetworkEntry](10)
	NewNetworkTracker(child, buf)

	transport.push(`{"sessionId":"S1","method":"Network.requestWillBeSent","params":{"requestId":"R1","wallTime":1000,"type":"XHR","request":{"url":"https://api.example.com","method":"GET"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transport.push(`{"sessionId":"S1","method":"Network.responseReceived","params":{"requestId":"R1","response":{"status":200,"statusText":"OK","mimeType":"application/json"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := buf.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Status != 200 || entries[0].MimeType != "application/json" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestNetworkTrackerFetchesTextBodyOnLoadingFinished(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	child := childForSession(root, "S1")

	buf := eventlog.NewRingBuffer[ipc.NetworkEntry](10)
	NewNetworkTracker(child, buf)

	transport.push(`{"sessionId":"S1","method":"Network.requestWillBeSent","params":{"requestId":"R1","wallTime":1000,"type":"XHR","request":{"url":"https://api.example.com","method":"GET"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport.push(`{"sessionId":"S1","method":"Network.responseReceived","params":{"requestId":"R1","response":{"status":200,"mimeType":"application/json"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := child.GetRoot().NextCommandID()
	transport.push(`{"sessionId":"S1","method":"Network.loadingFinished","params":{"requestId":"R1","encodedDataLength":42}}`)
	respondSession(transport, base, "S1", `{"body":"{\"ok\":true}","base64Encoded":false}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := buf.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Body != `{"ok":true}` || entries[0].Size != 42 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestNetworkTrackerSkipsBinaryBody(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	child := childForSession(root, "S1")

	buf := eventlog.NewRingBuffer[ipc.NetworkEntry](10)
	NewNetworkTracker(child, buf)

	transport.push(`{"sessionId":"S1","method":"Network.requestWillBeSent","params":{"requestId":"R1","wallTime":1000,"type":"Image","request":{"url":"https://example.com/a.png","method":"GET"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport.push(`{"sessionId":"S1","method":"Network.responseReceived","params":{"requestId":"R1","response":{"status":200,"mimeType":"image/png"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Attaching S1 already sent its prelude frames; only count what follows.
	sentBefore := len(transport.sent)
	transport.push(`{"sessionId":"S1","method":"Network.loadingFinished","params":{"requestId":"R1","encodedDataLength":9999}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(transport.sent) != sentBefore {
		t.Errorf("expected no Network.getResponseBody call for a binary mime type, sent=%v", transport.sent[sentBefore:])
	}
	entries := buf.All()
	if len(entries) != 1 || !entries[0].BodyTruncated {
		t.Errorf("expected entry marked truncated, got %+v", entries)
	}
}

func TestNetworkTrackerRecordsLoadingFailed(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	child := childForSession(root, "S1")

	buf := eventlog.NewRingBuffer[ipc.NetworkEntry](10)
	NewNetworkTracker(child, buf)

	transport.push(`{"sessionId":"S1","method":"Network.requestWillBeSent","params":{"requestId":"R1","wallTime":1000,"type":"XHR","request":{"url":"https://api.example.com","method":"GET"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transport.push(`{"sessionId":"S1","method":"Network.loadingFailed","params":{"requestId":"R1","errorText":"net::ERR_FAILED"}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := buf.All()
	if len(entries) != 1 || !entries[0].Failed || entries[0].Error != "net::ERR_FAILED" {
		t.Errorf("unexpected entry: %+v", entries)
	}
}

func TestIsBinaryMimeType(t *testing.T) {
	cases := map[string]bool{
		"text/html":                 false,
		"application/json":          false,
		"application/javascript":    false,
		"image/svg+xml":             false,
		"application/xml":           false,
		"image/png":                 true,
		"application/octet-stream":  true,
		"":                          false,
	}
	for mime, want := range cases {
		if got := isBinaryMimeType(mime); got != want {
			t.Errorf("isBinaryMimeType(%q) = %v, want %v", mime, got, want)
		}
	}
}
