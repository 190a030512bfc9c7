// Package endpoint locates a running kitty's remote-control socket from
// inside a terminal multiplexer, validates it, caches it, and dispatches
// remote-control commands to it with a layered fallback chain.
//
// Discovery runs ordered strategies (environment hint, multiplexer client
// ancestry, global process scan) and validates every candidate before
// accepting it. The dispatcher recovers from stale endpoints with a single
// re-discovery, then falls back to escape-sequence transports for the
// commands that have a pre-agreed encoding.
package endpoint

import (
	"errors"
	"fmt"
	"time"
)

// Endpoint is a validated (process ID, socket address) pair for reaching
// kitty's remote-control interface. It is a value type: discovery produces
// a new Endpoint, never mutates an old one.
type Endpoint struct {
	// PID is the kitty process ID the socket belongs to.
	PID int
	// SocketPath is the scheme-prefixed socket address,
	// e.g. "unix:/tmp/kitty-1234".
	SocketPath string
	// ValidatedAt is when the endpoint last passed validation.
	ValidatedAt time.Time
}

// DefaultSocketTemplate derives the remote-control socket address from
// the kitty PID, matching kitty's "listen_on unix:/tmp/kitty" convention.
const DefaultSocketTemplate = "unix:/tmp/kitty-%d"

// SocketPathFor formats the socket address for a PID.
func SocketPathFor(template string, pid int) string {
	if template == "" {
		template = DefaultSocketTemplate
	}
	return fmt.Sprintf(template, pid)
}

// ErrNoEndpoint is returned when every discovery strategy has been
// exhausted without a validated candidate. Many operations degrade
// gracefully without a live endpoint, so callers decide whether this is
// fatal.
var ErrNoEndpoint = errors.New("no kitty remote-control endpoint found")

// TransportError reports a failed delivery attempt over a concrete
// transport, with the transport's diagnostic output attached.
type TransportError struct {
	Kind   TransportKind
	Stderr string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s transport: %v: %s", e.Kind, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s transport: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
