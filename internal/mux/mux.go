// Package mux provides an abstraction over terminal multiplexers (tmux,
// zellij).
//
// This package is pure transport: it queries session topology and relays
// commands without interpreting any of it. Endpoint discovery and dispatch
// decisions live in internal/endpoint.
package mux

import (
	"context"
)

// Pane is one pane rectangle in the multiplexer's character grid.
type Pane struct {
	// ID is the pane identifier (e.g. "%3" for tmux).
	ID string
	// WindowID is the identifier of the window containing the pane.
	WindowID string
	// X and Y are the pane's top-left corner in cells.
	X uint32
	Y uint32
	// Width and Height are the pane's size in cells.
	Width  uint32
	Height uint32
	// Active marks the focused pane.
	Active bool
}

// Client is one attached multiplexer client.
type Client struct {
	// PID is the client process ID.
	PID int
	// Session identifies the session the client is attached to.
	Session string
}

// Multiplexer abstracts terminal multiplexer operations.
// Implementations exist for tmux and (future) zellij.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g. "tmux").
	Name() string

	// ListPanes returns pane rectangles for the current window, or for
	// every session when all is true.
	ListPanes(ctx context.Context, all bool) ([]Pane, error)

	// ListClients returns the attached clients with their process IDs
	// and session identifiers.
	ListClients(ctx context.Context) ([]Client, error)

	// RunShell executes a shell command inside the multiplexer server.
	// Used to relay escape sequences through the multiplexer's tty.
	RunShell(ctx context.Context, command string) error

	// SetHook registers a global hook that runs a command on the named
	// multiplexer event.
	SetHook(ctx context.Context, hook, command string) error

	// InSession reports whether a live session is reachable.
	InSession(ctx context.Context) bool
}
