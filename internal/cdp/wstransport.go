package cdp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// WSTransport is the concrete Transport used in production: a single
// WebSocket connection with a background reader goroutine feeding a
// buffered channel, so ReceiveNext can block with a deadline without
// blocking the underlying read.
type WSTransport struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	frames  chan string
	closed  chan struct{}
	notify  func()
	connCtx context.Context
	cancel  context.CancelFunc
}

// NewWSTransport constructs an unconnected transport.
func NewWSTransport() *WSTransport {
	return &WSTransport{}
}

func (t *WSTransport) Connect(url string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return false, nil
	}
	conn.SetReadLimit(-1)

	runCtx, runCancel := context.WithCancel(context.Background())
	t.conn = conn
	t.connCtx = runCtx
	t.cancel = runCancel
	t.frames = make(chan string, 256)
	t.closed = make(chan struct{})

	go t.readLoop(conn, runCtx, t.frames, t.closed)

	return true, nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn, ctx context.Context, frames chan<- string, closed chan struct{}) {
	defer close(closed)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		select {
		case frames <- string(data):
			t.mu.Lock()
			cb := t.notify
			t.mu.Unlock()
			if cb != nil {
				cb()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (t *WSTransport) Send(text string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("cdp: transport not connected")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (t *WSTransport) ReceiveNext(deadline time.Time) (string, StatusCode) {
	t.mu.Lock()
	frames := t.frames
	closed := t.closed
	t.mu.Unlock()
	if frames == nil {
		return "", StatusDisconnected
	}

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			select {
			case text := <-frames:
				return text, StatusOk
			default:
				return "", StatusTimeout
			}
		}
		timer = time.NewTimer(d)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case text, ok := <-frames:
		if !ok {
			return "", StatusDisconnected
		}
		return text, StatusOk
	case <-closed:
		// Drain anything still buffered before reporting disconnection.
		select {
		case text := <-frames:
			return text, StatusOk
		default:
			return "", StatusDisconnected
		}
	case <-timeoutCh:
		return "", StatusTimeout
	}
}

func (t *WSTransport) HasNext() bool {
	t.mu.Lock()
	frames := t.frames
	t.mu.Unlock()
	if frames == nil {
		return false
	}
	return len(frames) > 0
}

func (t *WSTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return false
	}
	select {
	case <-t.closed:
		return false
	default:
		return true
	}
}

func (t *WSTransport) SetNotificationCallback(cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = cb
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	cancel := t.cancel
	t.conn = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "")
}
