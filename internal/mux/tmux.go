package mux

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Tmux implements the Multiplexer interface for tmux.
type Tmux struct{}

// NewTmux creates a new tmux multiplexer.
func NewTmux() *Tmux {
	return &Tmux{}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

const paneFormat = "#{pane_id} #{window_id} #{pane_left} #{pane_top} #{pane_width} #{pane_height} #{pane_active}"

// ListPanes returns pane rectangles for the current window, or across all
// sessions when all is true.
func (t *Tmux) ListPanes(ctx context.Context, all bool) ([]Pane, error) {
	args := []string{"list-panes"}
	if all {
		args = append(args, "-a")
	}
	args = append(args, "-F", paneFormat)

	out, err := t.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}
	return ParsePanes(out), nil
}

// ParsePanes parses "pane_id window_id left top width height active" lines.
// Malformed lines are skipped — tmux format output is line oriented and a
// single bad line should not discard the rest.
func ParsePanes(out string) []Pane {
	var panes []Pane
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 7 {
			continue
		}

		x, err1 := strconv.ParseUint(parts[2], 10, 32)
		y, err2 := strconv.ParseUint(parts[3], 10, 32)
		w, err3 := strconv.ParseUint(parts[4], 10, 32)
		h, err4 := strconv.ParseUint(parts[5], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}

		panes = append(panes, Pane{
			ID:       parts[0],
			WindowID: parts[1],
			X:        uint32(x),
			Y:        uint32(y),
			Width:    uint32(w),
			Height:   uint32(h),
			Active:   parts[6] == "1",
		})
	}
	return panes
}

// ListClients returns the attached tmux clients.
func (t *Tmux) ListClients(ctx context.Context) ([]Client, error) {
	out, err := t.run(ctx, "list-clients", "-F", "#{client_pid} #{session_id}")
	if err != nil {
		return nil, fmt.Errorf("tmux list-clients: %w", err)
	}
	return ParseClients(out), nil
}

// ParseClients parses "client_pid session_id" lines.
func ParseClients(out string) []Client {
	var clients []Client
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		pid, err := strconv.Atoi(parts[0])
		if err != nil || pid <= 0 {
			continue
		}
		clients = append(clients, Client{PID: pid, Session: parts[1]})
	}
	return clients
}

// RunShell executes a shell command inside the tmux server.
func (t *Tmux) RunShell(ctx context.Context, command string) error {
	if _, err := t.run(ctx, "run-shell", command); err != nil {
		return fmt.Errorf("tmux run-shell: %w", err)
	}
	return nil
}

// SetHook registers a global tmux hook.
func (t *Tmux) SetHook(ctx context.Context, hook, command string) error {
	if _, err := t.run(ctx, "set-hook", "-g", hook, command); err != nil {
		return fmt.Errorf("tmux set-hook %s: %w", hook, err)
	}
	return nil
}

// InSession reports whether a tmux session is reachable from this process.
func (t *Tmux) InSession(ctx context.Context) bool {
	_, err := t.run(ctx, "display-message", "-p", "#{session_name}")
	return err == nil
}

// run executes a tmux command and returns its stdout.
func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
