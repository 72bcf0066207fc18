package cli

import (
	"github.com/quietfjord/chromewire/internal/executor"
	"github.com/quietfjord/chromewire/internal/ipc"
)

// ExecutorFactory creates executors and checks daemon status.
type ExecutorFactory interface {
	NewExecutor() (executor.Executor, error)
	IsDaemonRunning() bool
}

// defaultFactory uses IPC executor.
type defaultFactory struct{}

func (f defaultFactory) NewExecutor() (executor.Executor, error) {
	return executor.NewIPCExecutor()
}

func (f defaultFactory) IsDaemonRunning() bool {
	return ipc.IsDaemonRunning()
}

// execFactory is the package-level factory, replaceable for testing.
var execFactory ExecutorFactory = defaultFactory{}

// SetExecutorFactory sets the executor factory (for testing).
func SetExecutorFactory(f ExecutorFactory) {
	execFactory = f
}

// ResetExecutorFactory resets to the default factory.
func ResetExecutorFactory() {
	execFactory = defaultFactory{}
}

// directExecutorFactory wraps an in-process handler, skipping the IPC socket
// entirely. The REPL does not use it: its commands run through ExecuteArgs
// and the package-level execFactory.
type directExecutorFactory struct {
	handler ipc.Handler
}

// NewDirectExecutorFactory creates a factory that executes commands directly
// against handler instead of dialing the daemon's Unix socket.
func NewDirectExecutorFactory(handler ipc.Handler) ExecutorFactory {
	return directExecutorFactory{handler: handler}
}

func (f directExecutorFactory) NewExecutor() (executor.Executor, error) {
	return executor.NewDirectExecutor(f.handler), nil
}

// IsDaemonRunning always returns true: a direct factory only exists because
// the daemon's handler is already live in this process.
func (f directExecutorFactory) IsDaemonRunning() bool {
	return true
}
