package daemon

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quietfjord/chromewire/internal/ipc"
)

// handleStatus reports daemon and session state.
func (d *Daemon) handleStatus() ipc.Response {
	data := ipc.StatusData{
		Running:       true,
		PID:           os.Getpid(),
		ActiveSession: d.sessions.Active(),
		Sessions:      d.sessions.All(),
	}
	if data.ActiveSession != nil {
		data.URL = data.ActiveSession.URL
		data.Title = data.ActiveSession.Title
	}
	return ipc.SuccessResponse(data)
}

// handleConsole returns every buffered console entry, oldest first.
func (d *Daemon) handleConsole() ipc.Response {
	entries := d.consoleBuf.All()
	return ipc.SuccessResponse(ipc.ConsoleData{
		Entries: entries,
		Count:   len(entries),
	})
}

// handleNetwork returns every buffered network entry, oldest first.
func (d *Daemon) handleNetwork() ipc.Response {
	entries := d.networkBuf.All()
	return ipc.SuccessResponse(ipc.NetworkData{
		Entries: entries,
		Count:   len(entries),
	})
}

// handleTarget lists sessions, or switches the active session when query
// matches exactly one.
func (d *Daemon) handleTarget(query string) ipc.Response {
	if query == "" {
		return ipc.SuccessResponse(ipc.TargetData{
			ActiveSession: d.sessions.ActiveID(),
			Sessions:      d.sessions.All(),
		})
	}

	matches := d.sessions.FindByQuery(query)
	switch len(matches) {
	case 0:
		return ipc.ErrorResponse(fmt.Sprintf("no session matching %q", query))
	case 1:
		d.sessions.SetActive(matches[0].ID)
		return ipc.SuccessResponse(ipc.TargetData{
			ActiveSession: matches[0].ID,
			Sessions:      d.sessions.All(),
		})
	default:
		return ipc.SuccessResponse(ipc.TargetData{
			ActiveSession: d.sessions.ActiveID(),
			Sessions:      matches,
		})
	}
}

// handleClear clears the console buffer, network buffer, or both when
// target is empty.
func (d *Daemon) handleClear(target string) ipc.Response {
	switch target {
	case "console":
		d.consoleBuf.Clear()
	case "network":
		d.networkBuf.Clear()
	case "":
		d.consoleBuf.Clear()
		d.networkBuf.Clear()
	default:
		return ipc.ErrorResponse(fmt.Sprintf("unknown clear target: %q", target))
	}
	return ipc.SuccessResponse(map[string]string{"cleared": target})
}

// noActiveSessionError builds an error response listing known sessions, so
// the CLI can prompt the user to pick one with `target`.
func (d *Daemon) noActiveSessionError() ipc.Response {
	sessions := d.sessions.All()
	data, _ := json.Marshal(ipc.TargetData{Sessions: sessions})
	resp := ipc.ErrorResponse("no active session; use 'target' to select one")
	resp.Data = data
	return resp
}

// handleNavigate navigates the active session to a URL. It returns
// immediately after issuing Page.navigate rather than waiting for
// frameNavigated: Chrome's internal navigation lifecycle can itself block on
// domain events we do not want to couple this response to.
func (d *Daemon) handleNavigate(req ipc.Request) ipc.Response {
	var params ipc.NavigateParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("invalid params: %v", err))
	}
	if params.URL == "" {
		return ipc.ErrorResponse("url is required")
	}

	node := d.sessions.ActiveNode()
	if node == nil {
		return d.noActiveSessionError()
	}

	d.cmdMu.Lock()
	_, err := node.SendCommand("Page.navigate", map[string]any{"url": params.URL})
	d.cmdMu.Unlock()
	if err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("navigate failed: %v", err))
	}

	active := d.sessions.Active()
	data := ipc.NavigateData{URL: params.URL}
	if active != nil {
		data.Title = active.Title
	}
	return ipc.SuccessResponse(data)
}

// handleEval evaluates a JavaScript expression in the active session.
func (d *Daemon) handleEval(req ipc.Request) ipc.Response {
	var params ipc.EvalParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("invalid params: %v", err))
	}
	if params.Expression == "" {
		return ipc.ErrorResponse("expression is required")
	}

	node := d.sessions.ActiveNode()
	if node == nil {
		return d.noActiveSessionError()
	}

	d.cmdMu.Lock()
	result, err := node.SendCommand("Runtime.evaluate", map[string]any{
		"expression":    params.Expression,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	d.cmdMu.Unlock()
	if err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("eval failed: %v", err))
	}

	var evalResult struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &evalResult); err != nil {
		return ipc.ErrorResponse(fmt.Sprintf("failed to parse eval result: %v", err))
	}
	if evalResult.ExceptionDetails != nil {
		msg := evalResult.ExceptionDetails.Text
		if evalResult.ExceptionDetails.Exception != nil && evalResult.ExceptionDetails.Exception.Description != "" {
			msg = evalResult.ExceptionDetails.Exception.Description
		}
		return ipc.ErrorResponse(fmt.Sprintf("evaluation threw: %s", msg))
	}

	return ipc.SuccessResponse(ipc.EvalData{Result: evalResult.Result.Value})
}
