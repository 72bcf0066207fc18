// Package executor abstracts how a CLI command reaches the daemon's IPC
// handler: over the Unix socket for a standalone `chromewire` invocation, or
// directly in-process when the caller already holds the daemon's handler.
package executor

import "github.com/quietfjord/chromewire/internal/ipc"

// Executor executes commands and returns responses.
// Implementations handle the transport mechanism (IPC or direct call).
type Executor interface {
	Execute(req ipc.Request) (ipc.Response, error)
	Close() error
}
