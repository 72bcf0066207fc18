package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/quietfjord/chromewire/internal/browser"
	"github.com/quietfjord/chromewire/internal/cdp"
	"github.com/quietfjord/chromewire/internal/dialogmgr"
	"github.com/quietfjord/chromewire/internal/eventlog"
	"github.com/quietfjord/chromewire/internal/ipc"
	"github.com/quietfjord/chromewire/internal/sessionmgr"
	"github.com/quietfjord/chromewire/internal/trackers"
)

// DefaultBufferSize is the default capacity for the console/network ring buffers.
const DefaultBufferSize = 10000

// pumpSlice bounds how long a single pump iteration blocks before the
// daemon's command mutex is released back to a waiting IPC handler.
const pumpSlice = 200 * time.Millisecond

// Config holds daemon configuration.
type Config struct {
	Headless   bool
	Port       int
	SocketPath string
	PIDPath    string
	BufferSize int
	Debug      bool
	// CommandExecutor is called by REPL for CLI command execution with flags.
	// If nil, REPL falls back to basic IPC-only execution.
	CommandExecutor ipc.CommandExecutor
}

// DefaultConfig returns the default daemon configuration.
func DefaultConfig() Config {
	return Config{
		Headless:   false,
		Port:       9222,
		SocketPath: ipc.DefaultSocketPath(),
		PIDPath:    ipc.DefaultPIDPath(),
		BufferSize: DefaultBufferSize,
	}
}

// Daemon is the persistent chromewire daemon process. It owns the browser
// process and the root of the cdp.Node tree, plus every collaborator wired
// to it: the session manager, the console/network event buffers, the
// dialog manager, and the IPC server.
type Daemon struct {
	config Config

	browser *browser.Browser

	// cmdMu serializes everything that touches the client tree: the event
	// pump and IPC command handlers take turns rather than run concurrently,
	// matching the single-threaded cooperative model the core assumes.
	cmdMu sync.Mutex
	root  *cdp.Node

	sessions   *sessionmgr.Manager
	dialogs    *dialogmgr.Manager
	consoleBuf *eventlog.RingBuffer[ipc.ConsoleEntry]
	networkBuf *eventlog.RingBuffer[ipc.NetworkEntry]

	connMgr *connectionManager

	server       *ipc.Server
	shutdown     chan struct{}
	shutdownOnce sync.Once
	debug        bool
}

// JavaScriptDialogManager implements cdp.Owner so the core can query the
// dialog manager when a command's response is blocked by an open dialog.
func (d *Daemon) JavaScriptDialogManager() cdp.DialogManager {
	return d.dialogs
}

// debugf logs a debug message if debug mode is enabled.
func (d *Daemon) debugf(format string, args ...any) {
	if !d.debug {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(os.Stderr, "[DEBUG] [%s] "+format+"\n", append([]any{timestamp}, args...)...)
}

// New creates a new daemon with the given configuration.
func New(cfg Config) *Daemon {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	return &Daemon{
		config:     cfg,
		sessions:   sessionmgr.New(),
		consoleBuf: eventlog.NewRingBuffer[ipc.ConsoleEntry](cfg.BufferSize),
		networkBuf: eventlog.NewRingBuffer[ipc.NetworkEntry](cfg.BufferSize),
		connMgr:    newConnectionManager(),
		shutdown:   make(chan struct{}),
		debug:      cfg.Debug,
	}
}

// Handler returns the IPC request handler function.
// Run does not use it for the REPL, which is given d.handleRequest and
// Config.CommandExecutor directly.
func (d *Daemon) Handler() ipc.Handler {
	return d.handleRequest
}

// Run starts the daemon and blocks until shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer d.removePIDFile()

	b, err := browser.Start(browser.LaunchOptions{
		Port:     d.config.Port,
		Headless: d.config.Headless,
	})
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	d.browser = b
	defer d.browser.Close()

	d.config.Port = b.Port()

	if err := d.connectCDP(ctx); err != nil {
		return err
	}

	server, err := ipc.NewServer(d.config.SocketPath, d.handleRequest)
	if err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	d.server = server
	defer d.server.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Serve(ctx)
	}()

	pumpCtx, pumpCancel := context.WithCancel(ctx)
	defer pumpCancel()
	disconnectCh := d.startPump(pumpCtx)
	heartbeatCh := d.startHeartbeat(pumpCtx)

	replDone := make(chan struct{})
	if IsStdinTTY() {
		repl := NewREPL(d.handleRequest, d.config.CommandExecutor, func() { d.triggerShutdown() })
		repl.SetSessionProvider(func() (*ipc.PageSession, int) {
			return d.sessions.Active(), d.sessions.Count()
		})
		go func() {
			defer close(replDone)
			repl.Run()
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sigCh:
			return nil
		case <-d.shutdown:
			return nil
		case err := <-errCh:
			return err
		case <-replDone:
			return nil
		case err := <-disconnectCh:
			if d.handleDisconnectAndRecover(ctx, err) {
				disconnectCh = d.startPump(pumpCtx)
				continue
			}
			return err
		case err := <-heartbeatCh:
			if d.handleDisconnectAndRecover(ctx, err) {
				heartbeatCh = d.startHeartbeat(pumpCtx)
				continue
			}
			return err
		}
	}
}

// connectCDP dials the browser-wide CDP websocket, wires the dialog
// manager and target tracker onto the root node, and enables target
// discovery for every existing page target.
func (d *Daemon) connectCDP(ctx context.Context) error {
	version, err := d.browser.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get browser version: %w", err)
	}
	d.debugf("connecting to browser-wide CDP endpoint: %s", version.WebSocketURL)

	root := cdp.NewRootNode(cdp.BrowserWideID, version.WebSocketURL, cdp.NewWSTransport())
	if err := root.ConnectIfNecessary(); err != nil {
		return fmt.Errorf("failed to connect to CDP: %w", err)
	}
	root.SetOwner(d)

	d.dialogs = dialogmgr.New(root)

	tracker := trackers.NewTargetTracker(root, d.sessions)
	tracker.OnSessionAttached = func(child *cdp.Node) {
		trackers.NewConsoleTracker(child, d.consoleBuf)
		if _, err := child.SendCommand("Network.enable", nil); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to enable network domain for session %q: %v\n", child.SessionID(), err)
			return
		}
		trackers.NewNetworkTracker(child, d.networkBuf)
	}

	d.root = root
	if err := d.enableTargetDiscovery(); err != nil {
		return fmt.Errorf("failed to enable target discovery: %w", err)
	}
	d.connMgr.SetConnected()
	return nil
}

// enableTargetDiscovery turns on Target.setDiscoverTargets and manually
// attaches to every page target that already existed before discovery was
// enabled (newly created ones arrive as Target.targetCreated events, which
// trackers.TargetTracker handles itself).
func (d *Daemon) enableTargetDiscovery() error {
	if _, err := d.root.SendCommand("Target.setDiscoverTargets", map[string]any{"discover": true}); err != nil {
		return fmt.Errorf("failed to set discover targets: %w", err)
	}

	result, err := d.root.SendCommand("Target.getTargets", nil)
	if err != nil {
		return fmt.Errorf("failed to get existing targets: %w", err)
	}

	var targetsResult struct {
		TargetInfos []struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
		} `json:"targetInfos"`
	}
	if err := json.Unmarshal(result, &targetsResult); err != nil {
		return fmt.Errorf("failed to parse targets: %w", err)
	}

	for _, t := range targetsResult.TargetInfos {
		if t.Type != "page" {
			continue
		}
		if _, err := d.root.SendCommand("Target.attachToTarget", map[string]any{
			"targetId": t.TargetID,
			"flatten":  true,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to attach to existing target %q: %v\n", t.TargetID, err)
		}
	}

	return nil
}

// startPump runs the event-pump goroutine, cooperatively yielding the
// command mutex every pumpSlice so IPC handlers get a turn to send
// commands (spec.md §5's single-threaded cooperative model, realized here
// as short timed slices rather than one unbounded blocking call). It
// returns a channel that receives the pump's terminal error, if any.
func (d *Daemon) startPump(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			d.cmdMu.Lock()
			err := d.root.HandleEventsUntil(func() (bool, error) { return false, nil }, pumpSlice)
			d.cmdMu.Unlock()

			if err != nil {
				if cdp.IsKind(err, cdp.KindDisconnected) {
					errCh <- err
					return
				}
				d.debugf("pump error: %v", err)
			}
		}
	}()
	return errCh
}

// handleRequest processes an IPC request and returns a response. Every
// case that touches the client tree takes cmdMu, serializing it against
// the pump goroutine.
func (d *Daemon) handleRequest(req ipc.Request) ipc.Response {
	switch req.Cmd {
	case "status":
		return d.handleStatus()
	case "console":
		return d.handleConsole()
	case "network":
		return d.handleNetwork()
	case "target":
		return d.handleTarget(req.Target)
	case "clear":
		return d.handleClear(req.Target)
	case "navigate":
		return d.handleNavigate(req)
	case "eval":
		return d.handleEval(req)
	case "shutdown":
		return d.handleShutdown()
	default:
		return ipc.ErrorResponse(fmt.Sprintf("unknown command: %s", req.Cmd))
	}
}

// handleShutdown signals the daemon to shut down.
func (d *Daemon) handleShutdown() ipc.Response {
	go d.triggerShutdown()
	return ipc.SuccessResponse(map[string]string{
		"message": "shutting down",
	})
}

// triggerShutdown closes the shutdown channel exactly once.
func (d *Daemon) triggerShutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)
	})
}

// writePIDFile writes the daemon PID to a file.
func (d *Daemon) writePIDFile() error {
	dir := filepath.Dir(d.config.PIDPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	pid := strconv.Itoa(os.Getpid())
	return os.WriteFile(d.config.PIDPath, []byte(pid), 0600)
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() {
	os.Remove(d.config.PIDPath)
}
