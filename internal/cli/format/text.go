// Package format renders IPC response data as human-readable text.
// JSON output bypasses this package entirely; these functions back the
// default (non --json) CLI output mode.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/quietfjord/chromewire/internal/ipc"
)

func colorFprint(w io.Writer, c color.Attribute, s string) {
	color.New(c).Fprint(w, s)
}

func colorFprintf(w io.Writer, c color.Attribute, format string, args ...interface{}) {
	color.New(c).Fprintf(w, format, args...)
}

// OutputOptions controls text formatting behavior.
type OutputOptions struct {
	UseColor bool
}

// NewOutputOptions returns output options based on flags and environment.
// Priority: jsonOutput > noColorFlag > NO_COLOR env > TTY detection.
func NewOutputOptions(jsonOutput bool, noColorFlag bool) OutputOptions {
	if jsonOutput || noColorFlag || os.Getenv("NO_COLOR") != "" {
		return OutputOptions{UseColor: false}
	}
	return OutputOptions{UseColor: term.IsTerminal(int(os.Stdout.Fd()))}
}

// DefaultOptions returns output options based on TTY detection alone.
func DefaultOptions() OutputOptions {
	return OutputOptions{UseColor: term.IsTerminal(int(os.Stdout.Fd()))}
}

// Console outputs console entries in text format.
func Console(w io.Writer, entries []ipc.ConsoleEntry, opts OutputOptions) error {
	for _, e := range entries {
		ts := time.UnixMilli(e.Timestamp).Local()
		timestamp := ts.Format("15:04:05")
		level := strings.ToUpper(e.Type)

		if opts.UseColor {
			fmt.Fprint(w, "[")
			colorFprint(w, color.Faint, timestamp)
			fmt.Fprint(w, "] ")
			switch strings.ToLower(e.Type) {
			case "error":
				colorFprint(w, color.FgRed, level)
			case "warning", "warn":
				colorFprint(w, color.FgYellow, level)
			case "info":
				colorFprint(w, color.FgCyan, level)
			default:
				fmt.Fprint(w, level)
			}
			fmt.Fprintf(w, " %s\n", e.Text)
		} else {
			fmt.Fprintf(w, "[%s] %s %s\n", timestamp, level, e.Text)
		}

		if e.URL != "" {
			if e.Line > 0 {
				fmt.Fprintf(w, "  %s:%d\n", e.URL, e.Line)
			} else {
				fmt.Fprintf(w, "  %s\n", e.URL)
			}
		}
	}
	return nil
}

// Network outputs network entries in text format.
func Network(w io.Writer, entries []ipc.NetworkEntry, opts OutputOptions) error {
	for _, e := range entries {
		durationMs := int(e.Duration * 1000)

		if opts.UseColor {
			switch e.Method {
			case "GET":
				colorFprint(w, color.FgGreen, e.Method)
			case "POST":
				colorFprint(w, color.FgBlue, e.Method)
			case "PUT", "PATCH":
				colorFprint(w, color.FgYellow, e.Method)
			case "DELETE":
				colorFprint(w, color.FgRed, e.Method)
			default:
				fmt.Fprint(w, e.Method)
			}

			fmt.Fprintf(w, " %s ", e.URL)

			switch {
			case e.Failed:
				colorFprint(w, color.FgRed, "ERR")
			case e.Status >= 200 && e.Status < 300:
				colorFprintf(w, color.FgGreen, "%d", e.Status)
			case e.Status >= 300 && e.Status < 400:
				colorFprintf(w, color.FgCyan, "%d", e.Status)
			case e.Status >= 400 && e.Status < 500:
				colorFprintf(w, color.FgYellow, "%d", e.Status)
			case e.Status >= 500:
				colorFprintf(w, color.FgRed, "%d", e.Status)
			default:
				fmt.Fprint(w, "---")
			}

			fmt.Fprintf(w, " %dms\n", durationMs)
		} else {
			status := "---"
			if e.Failed {
				status = "ERR"
			} else if e.Status > 0 {
				status = fmt.Sprintf("%d", e.Status)
			}
			fmt.Fprintf(w, "%s %s %s %dms\n", e.Method, e.URL, status, durationMs)
		}

		if e.Failed && e.Error != "" {
			fmt.Fprintf(w, "  %s\n", e.Error)
		}
	}
	return nil
}
