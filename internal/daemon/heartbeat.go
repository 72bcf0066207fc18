package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/quietfjord/chromewire/internal/cdp"
	"github.com/quietfjord/chromewire/internal/dialogmgr"
	"github.com/quietfjord/chromewire/internal/trackers"
)

const (
	// HeartbeatInterval is the time between heartbeat checks.
	HeartbeatInterval = 5 * time.Second
	// HeartbeatTimeout is the maximum time to wait for a heartbeat response.
	HeartbeatTimeout = 5 * time.Second
)

// startHeartbeat starts the heartbeat goroutine that periodically probes
// connection health with Browser.getVersion. It runs until the context is
// cancelled or a disconnect is detected, and returns a channel that
// receives the first detected disconnect error.
func (d *Daemon) startHeartbeat(ctx context.Context) <-chan error {
	disconnectCh := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.shutdown:
				return
			case <-ticker.C:
				if err := d.performHeartbeat(); err != nil {
					d.debugf("heartbeat failed: %v", err)
					select {
					case disconnectCh <- err:
					default:
					}
					return
				}
			}
		}
	}()

	return disconnectCh
}

// performHeartbeat sends Browser.getVersion to verify the connection is alive.
func (d *Daemon) performHeartbeat() error {
	if d.connMgr.State() == StateDisconnected {
		return errors.New("already disconnected")
	}

	d.cmdMu.Lock()
	_, err := d.root.SendCommandWithTimeout("Browser.getVersion", nil, HeartbeatTimeout)
	d.cmdMu.Unlock()

	if err != nil {
		reason, shouldReconnect := ClassifyCloseCode(err)
		d.debugf("heartbeat error: %v (reason=%s, shouldReconnect=%t)", err, reason, shouldReconnect)
		if !shouldReconnect {
			d.connMgr.SetDisconnected(err)
		}
		return err
	}

	d.connMgr.RecordHeartbeat()
	return nil
}

// handleDisconnectAndRecover processes a detected disconnect and makes the
// single reconnect attempt the daemon allows. Returns true if recovery
// succeeded, false if the daemon should shut down.
func (d *Daemon) handleDisconnectAndRecover(ctx context.Context, err error) bool {
	d.debugf("handling disconnect: %v", err)

	d.sessions.Clear()

	reason, shouldReconnect := ClassifyCloseCode(err)
	d.debugf("disconnect classified: reason=%s, shouldReconnect=%t", reason, shouldReconnect)

	if !shouldReconnect {
		d.connMgr.SetDisconnected(err)
		d.triggerShutdown()
		return false
	}

	d.connMgr.SetReconnecting(err)

	if recErr := d.attemptReconnect(ctx); recErr != nil {
		fmt.Fprintf(os.Stderr, "Error: reconnection failed: %v\n", recErr)
		d.connMgr.SetDisconnected(recErr)
		d.triggerShutdown()
		return false
	}

	d.connMgr.SetConnected()
	return true
}

// attemptReconnect makes the daemon's one reconnection attempt: re-dial the
// browser-wide CDP endpoint and rewire the dialog manager and target
// tracker onto the fresh root node. Sessions are rediscovered from scratch
// through Target.targetCreated/attachedToTarget events rather than
// restored, since the old session nodes died with the old connection.
func (d *Daemon) attemptReconnect(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, HeartbeatTimeout)
	defer cancel()

	version, err := d.browser.Version(checkCtx)
	if err != nil {
		return fmt.Errorf("browser not responding: %w", err)
	}

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

	d.cmdMu.Lock()
	d.root = root
	d.cmdMu.Unlock()

	if err := d.enableTargetDiscovery(); err != nil {
		return fmt.Errorf("failed to enable target discovery: %w", err)
	}

	return nil
}
