package daemon

import (
	"encoding/json"
	"testing"

	"github.com/quietfjord/chromewire/internal/eventlog"
	"github.com/quietfjord/chromewire/internal/ipc"
	"github.com/quietfjord/chromewire/internal/sessionmgr"
)

func newTestDaemon() *Daemon {
	return &Daemon{
		sessions:   sessionmgr.New(),
		consoleBuf: eventlog.NewRingBuffer[ipc.ConsoleEntry](16),
		networkBuf: eventlog.NewRingBuffer[ipc.NetworkEntry](16),
		connMgr:    newConnectionManager(),
		shutdown:   make(chan struct{}),
	}
}

func TestNew_DefaultsBufferSize(t *testing.T) {
	d := New(Config{})
	if d.consoleBuf.Cap() != DefaultBufferSize {
		t.Errorf("consoleBuf cap = %d, want %d", d.consoleBuf.Cap(), DefaultBufferSize)
	}
	if d.networkBuf.Cap() != DefaultBufferSize {
		t.Errorf("networkBuf cap = %d, want %d", d.networkBuf.Cap(), DefaultBufferSize)
	}
}

func TestDaemon_Handler(t *testing.T) {
	d := newTestDaemon()
	handler := d.Handler()

	resp := handler(ipc.Request{Cmd: "status"})
	if !resp.OK {
		t.Fatalf("status response not OK: %+v", resp)
	}

	var status ipc.StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("failed to unmarshal status: %v", err)
	}
	if !status.Running {
		t.Error("expected Running = true")
	}
}

func TestHandleRequest_UnknownCommand(t *testing.T) {
	d := newTestDaemon()
	resp := d.handleRequest(ipc.Request{Cmd: "nonexistent"})
	if resp.OK {
		t.Fatal("expected error response for unknown command")
	}
}

func TestHandleRequest_Clear(t *testing.T) {
	d := newTestDaemon()
	d.consoleBuf.Push(ipc.ConsoleEntry{Text: "hello"})
	d.networkBuf.Push(ipc.NetworkEntry{RequestID: "1"})

	resp := d.handleRequest(ipc.Request{Cmd: "clear", Target: "console"})
	if !resp.OK {
		t.Fatalf("clear response not OK: %+v", resp)
	}
	if d.consoleBuf.Len() != 0 {
		t.Error("expected console buffer to be cleared")
	}
	if d.networkBuf.Len() != 1 {
		t.Error("expected network buffer to be untouched")
	}
}

func TestHandleRequest_ClearAll(t *testing.T) {
	d := newTestDaemon()
	d.consoleBuf.Push(ipc.ConsoleEntry{Text: "hello"})
	d.networkBuf.Push(ipc.NetworkEntry{RequestID: "1"})

	resp := d.handleRequest(ipc.Request{Cmd: "clear"})
	if !resp.OK {
		t.Fatalf("clear response not OK: %+v", resp)
	}
	if d.consoleBuf.Len() != 0 || d.networkBuf.Len() != 0 {
		t.Error("expected both buffers to be cleared")
	}
}

func TestHandleRequest_ClearUnknownTarget(t *testing.T) {
	d := newTestDaemon()
	resp := d.handleRequest(ipc.Request{Cmd: "clear", Target: "bogus"})
	if resp.OK {
		t.Fatal("expected error for unknown clear target")
	}
}

func TestHandleRequest_ConsoleAndNetwork(t *testing.T) {
	d := newTestDaemon()
	d.consoleBuf.Push(ipc.ConsoleEntry{Text: "log line"})
	d.networkBuf.Push(ipc.NetworkEntry{RequestID: "1", URL: "https://example.com"})

	consoleResp := d.handleRequest(ipc.Request{Cmd: "console"})
	var consoleData ipc.ConsoleData
	if err := json.Unmarshal(consoleResp.Data, &consoleData); err != nil {
		t.Fatalf("failed to unmarshal console data: %v", err)
	}
	if consoleData.Count != 1 {
		t.Errorf("console count = %d, want 1", consoleData.Count)
	}

	networkResp := d.handleRequest(ipc.Request{Cmd: "network"})
	var networkData ipc.NetworkData
	if err := json.Unmarshal(networkResp.Data, &networkData); err != nil {
		t.Fatalf("failed to unmarshal network data: %v", err)
	}
	if networkData.Count != 1 {
		t.Errorf("network count = %d, want 1", networkData.Count)
	}
}

func TestHandleRequest_TargetNoSessions(t *testing.T) {
	d := newTestDaemon()
	resp := d.handleRequest(ipc.Request{Cmd: "target"})
	if !resp.OK {
		t.Fatalf("target response not OK: %+v", resp)
	}

	var data ipc.TargetData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal target data: %v", err)
	}
	if len(data.Sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(data.Sessions))
	}
}

func TestHandleRequest_NavigateWithoutSession(t *testing.T) {
	d := newTestDaemon()
	params, _ := json.Marshal(ipc.NavigateParams{URL: "https://example.com"})
	resp := d.handleRequest(ipc.Request{Cmd: "navigate", Params: params})
	if resp.OK {
		t.Fatal("expected error when no active session")
	}
}

func TestHandleRequest_NavigateMissingURL(t *testing.T) {
	d := newTestDaemon()
	params, _ := json.Marshal(ipc.NavigateParams{})
	resp := d.handleRequest(ipc.Request{Cmd: "navigate", Params: params})
	if resp.OK {
		t.Fatal("expected error for missing url")
	}
}

func TestHandleRequest_EvalWithoutSession(t *testing.T) {
	d := newTestDaemon()
	params, _ := json.Marshal(ipc.EvalParams{Expression: "1+1"})
	resp := d.handleRequest(ipc.Request{Cmd: "eval", Params: params})
	if resp.OK {
		t.Fatal("expected error when no active session")
	}
}

func TestHandleRequest_Shutdown(t *testing.T) {
	d := newTestDaemon()
	resp := d.handleRequest(ipc.Request{Cmd: "shutdown"})
	if !resp.OK {
		t.Fatalf("shutdown response not OK: %+v", resp)
	}
}
