package cdp

import "time"

// StatusCode is the outcome of a Transport.ReceiveNext call.
type StatusCode int

const (
	// StatusOk indicates a message was received.
	StatusOk StatusCode = iota
	// StatusTimeout indicates the deadline elapsed with nothing received.
	StatusTimeout
	// StatusDisconnected indicates the connection is gone.
	StatusDisconnected
)

// Transport is the blocking, single-connection message channel the core
// multiplexes over. Implementations are expected to be safe for concurrent
// use by exactly one reader (ReceiveNext) and one writer (Send) at a time;
// the core itself never calls either concurrently with itself, but a
// transport's own background delivery thread may invoke the notification
// callback at any time.
type Transport interface {
	// Connect dials the given URL. Returns false (not an error) on refusal
	// so the caller can retry after running its frontend-closer hook.
	Connect(url string) (bool, error)

	// Send transmits a single text frame.
	Send(text string) error

	// ReceiveNext blocks until a frame arrives, the deadline passes, or the
	// connection is lost.
	ReceiveNext(deadline time.Time) (text string, status StatusCode)

	// HasNext reports whether a frame is already buffered and would not
	// block ReceiveNext.
	HasNext() bool

	// IsConnected reports the current connection state.
	IsConnected() bool

	// SetNotificationCallback registers a callback invoked (from the
	// transport's own delivery thread) whenever a new frame becomes
	// available. The core uses this to opportunistically drain events
	// between blocking calls.
	SetNotificationCallback(func())

	// Close releases the underlying connection.
	Close() error
}
