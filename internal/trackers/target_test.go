package trackers

import (
	"testing"

	"github.com/quietfjord/chromewire/internal/sessionmgr"
)

func TestTargetCreatedAttachesFlattened(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	sessions := sessionmgr.New()
	tr := NewTargetTracker(root, sessions)

	base := root.NextCommandID()
	transport.push(`{"method":"Target.targetCreated","params":{"targetInfo":{"targetId":"T1","type":"page","url":"about:blank"}}}`)
	respond(transport, base, `{"sessionId":"S1"}`)

	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(transport.sent) != 1 {
		t.Fatalf("expected 1 command sent, got %d: %v", len(transport.sent), transport.sent)
	}
	if !tr.attached["T1"] {
		t.Error("expected T1 to be marked attached")
	}
}

func TestTargetCreatedIgnoresNonPageTargets(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	sessions := sessionmgr.New()
	tr := NewTargetTracker(root, sessions)

	transport.push(`{"method":"Target.targetCreated","params":{"targetInfo":{"targetId":"W1","type":"worker","url":"about:blank"}}}`)

	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transport.sent) != 0 {
		t.Errorf("expected no attach attempt for a worker target, sent=%v", transport.sent)
	}
	if tr.attached["W1"] {
		t.Error("worker target should not be tracked as attached")
	}
}

func TestTargetAttachedRegistersSessionAndEnablesDomains(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	sessions := sessionmgr.New()
	NewTargetTracker(root, sessions)

	base := root.NextCommandID()
	transport.push(`{"method":"Target.attachedToTarget","params":{"sessionId":"S1","targetInfo":{"targetId":"T1","type":"page","url":"https://example.com","title":"Example"}}}`)
	// base, base+1: prelude injection (fire-and-forget, no responses needed)
	// base+2..base+4: Runtime.enable, Page.enable, DOM.enable
	// base+5: Page.setLifecycleEventsEnabled
	respondSession(transport, base+2, "S1", `{}`)
	respondSession(transport, base+3, "S1", `{}`)
	respondSession(transport, base+4, "S1", `{}`)
	respondSession(transport, base+5, "S1", `{}`)

	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := root.Child("S1"); !ok {
		t.Fatal("expected child node S1 to be attached")
	}
	sess := sessions.Get("S1")
	if sess == nil {
		t.Fatal("expected session S1 to be registered")
	}
	if sess.URL != "https://example.com" || sess.Title != "Example" {
		t.Errorf("unexpected session metadata: %+v", sess)
	}
}

func TestTargetDetachedRemovesSessionAndDetachesNode(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	sessions := sessionmgr.New()
	NewTargetTracker(root, sessions)

	base := root.NextCommandID()
	transport.push(`{"method":"Target.attachedToTarget","params":{"sessionId":"S1","targetInfo":{"targetId":"T1","type":"page","url":"https://example.com","title":"Example"}}}`)
	respondSession(transport, base+2, "S1", `{}`)
	respondSession(transport, base+3, "S1", `{}`)
	respondSession(transport, base+4, "S1", `{}`)
	respondSession(transport, base+5, "S1", `{}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("attach phase failed: %v", err)
	}

	transport.push(`{"method":"Target.detachedFromTarget","params":{"sessionId":"S1"}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("detach phase failed: %v", err)
	}

	if sessions.Get("S1") != nil {
		t.Error("expected session S1 to be removed")
	}
	if _, ok := root.Child("S1"); ok {
		t.Error("expected child node S1 to be detached from the tree")
	}
}

func TestTargetInfoChangedUpdatesSession(t *testing.T) {
	transport := newMockTransport()
	root := connectedRoot(transport)
	sessions := sessionmgr.New()
	NewTargetTracker(root, sessions)

	base := root.NextCommandID()
	transport.push(`{"method":"Target.attachedToTarget","params":{"sessionId":"S1","targetInfo":{"targetId":"T1","type":"page","url":"https://example.com","title":"Example"}}}`)
	respondSession(transport, base+2, "S1", `{}`)
	respondSession(transport, base+3, "S1", `{}`)
	respondSession(transport, base+4, "S1", `{}`)
	respondSession(transport, base+5, "S1", `{}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("attach phase failed: %v", err)
	}

	transport.push(`{"method":"Target.targetInfoChanged","params":{"targetInfo":{"targetId":"T1","type":"page","url":"https://example.com/other","title":"Other"}}}`)
	if err := root.HandleReceivedEvents(); err != nil {
		t.Fatalf("info-changed phase failed: %v", err)
	}

	sess := sessions.Get("S1")
	if sess == nil || sess.URL != "https://example.com/other" || sess.Title != "Other" {
		t.Errorf("unexpected session after targetInfoChanged: %+v", sess)
	}
}
