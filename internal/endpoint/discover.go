package endpoint

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kittybg/kittybg/internal/mux"
	telem "github.com/kittybg/kittybg/internal/otel"
	"github.com/kittybg/kittybg/internal/procfs"
)

var tracer = otel.Tracer("kittybg/endpoint")

// Inspector is the process-metadata view discovery needs. Satisfied by
// *procfs.Inspector; tests substitute a fake process tree.
type Inspector interface {
	MatchesTarget(pid int) bool
	MatchesCommand(cmd string) bool
	ParentPID(pid int) (int, bool)
}

// Discoverer proposes endpoint candidates through ordered strategies and
// validates each one before accepting it:
//
//  1. KITTY_PID environment hint, confirmed against process metadata.
//  2. When inside the multiplexer: resolve the attached client, then walk
//     its process ancestry for a kitty process.
//  3. Global process scan for kitty processes that plausibly own this
//     session (at least one live child).
//
// The first candidate that passes validation (signature match plus socket
// file existence) wins. Exhaustion yields ErrNoEndpoint.
type Discoverer struct {
	Inspector Inspector

	// Mux is used to resolve the attached client for strategy 2.
	// May be nil when no multiplexer is available.
	Mux mux.Multiplexer

	// SocketTemplate formats the socket address from a PID.
	// Empty means DefaultSocketTemplate.
	SocketTemplate string

	// MaxHops bounds the ancestry walk. 0 means procfs.DefaultMaxHops.
	MaxHops int

	// LookupEnv, SocketExists and Snapshot are seams for tests.
	// Nil means os.Getenv, an os.Stat check, and procfs.Snapshot.
	LookupEnv    func(string) string
	SocketExists func(path string) bool
	Snapshot     func(ctx context.Context) ([]procfs.Process, error)

	Metrics *telem.Metrics
}

// Environment variables consumed by discovery.
const (
	envPIDHint = "KITTY_PID"
	envMux     = "TMUX"
)

func (d *Discoverer) lookupEnv(key string) string {
	if d.LookupEnv != nil {
		return d.LookupEnv(key)
	}
	return os.Getenv(key)
}

func (d *Discoverer) socketExists(path string) bool {
	if d.SocketExists != nil {
		return d.SocketExists(path)
	}
	_, err := os.Stat(strings.TrimPrefix(path, "unix:"))
	return err == nil
}

func (d *Discoverer) snapshot(ctx context.Context) ([]procfs.Process, error) {
	if d.Snapshot != nil {
		return d.Snapshot(ctx)
	}
	return procfs.Snapshot(ctx)
}

// Discover runs the strategies in order and returns the first validated
// endpoint. A candidate that fails validation is discarded and the next
// strategy runs.
func (d *Discoverer) Discover(ctx context.Context) (Endpoint, error) {
	ctx, span := tracer.Start(ctx, "discover")
	defer span.End()

	strategies := []struct {
		name string
		fn   func(context.Context) (int, bool)
	}{
		{"env_hint", d.fromEnvHint},
		{"mux_ancestry", d.fromMuxAncestry},
		{"process_scan", d.fromScan},
	}

	for _, s := range strategies {
		pid, ok := s.fn(ctx)
		if !ok {
			d.Metrics.RecordDiscovery(ctx, s.name, "no_candidate")
			continue
		}

		ep := Endpoint{PID: pid, SocketPath: SocketPathFor(d.SocketTemplate, pid)}
		if !d.Validate(ctx, ep) {
			d.Metrics.RecordDiscovery(ctx, s.name, "invalid")
			fmt.Fprintf(os.Stderr, "warning: %s candidate pid %d failed validation, trying next strategy\n", s.name, pid)
			continue
		}

		d.Metrics.RecordDiscovery(ctx, s.name, "found")
		span.SetAttributes(
			attribute.String("discovery.strategy", s.name),
			attribute.Int("endpoint.pid", ep.PID),
		)
		return ep, nil
	}

	span.SetAttributes(attribute.String("discovery.strategy", "exhausted"))
	return Endpoint{}, ErrNoEndpoint
}

// Validate confirms the endpoint's process still matches the kitty
// signature and its socket file still exists.
func (d *Discoverer) Validate(ctx context.Context, ep Endpoint) bool {
	if !d.Inspector.MatchesTarget(ep.PID) {
		return false
	}
	return d.socketExists(ep.SocketPath)
}

// fromEnvHint accepts an externally supplied PID only when process
// metadata confirms it is actually kitty. PIDs are reused after process
// exit, so the hint is never trusted blindly.
func (d *Discoverer) fromEnvHint(context.Context) (int, bool) {
	hint := d.lookupEnv(envPIDHint)
	if hint == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(hint))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !d.Inspector.MatchesTarget(pid) {
		fmt.Fprintf(os.Stderr, "warning: %s=%d does not point at a kitty process\n", envPIDHint, pid)
		return 0, false
	}
	return pid, true
}

// fromMuxAncestry resolves the multiplexer client attached to this
// session and climbs its ancestry looking for kitty.
func (d *Discoverer) fromMuxAncestry(ctx context.Context) (int, bool) {
	descriptor := d.lookupEnv(envMux)
	if descriptor == "" || d.Mux == nil {
		return 0, false
	}

	client, ok := d.resolveClient(ctx, descriptor)
	if !ok {
		return 0, false
	}
	return procfs.FindAncestor(d.Inspector, client, d.MaxHops)
}

// resolveClient maps the session descriptor to the PID of the client
// attached to it. With multiple clients, exact session attribution is
// best-effort: when no session token matches, any listed client is used.
func (d *Discoverer) resolveClient(ctx context.Context, descriptor string) (int, bool) {
	clients, err := d.Mux.ListClients(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not list %s clients: %v\n", d.Mux.Name(), err)
		return 0, false
	}
	if len(clients) == 0 {
		return 0, false
	}

	token := SessionToken(descriptor)
	for _, c := range clients {
		if sessionMatches(c.Session, token) {
			return c.PID, true
		}
	}
	return clients[0].PID, true
}

// SessionToken extracts the session identifier from the multiplexer's
// session descriptor ($TMUX: "socket_path,server_pid,session_id").
// Returns "" if the descriptor carries no session field.
func SessionToken(descriptor string) string {
	parts := strings.Split(descriptor, ",")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-1])
}

// sessionMatches compares a client's session identifier against a token.
// tmux reports session IDs as "$N"; the descriptor carries the bare index.
func sessionMatches(session, token string) bool {
	if token == "" {
		return false
	}
	return session == token || strings.TrimPrefix(session, "$") == token
}

// fromScan enumerates the whole process table and returns the first kitty
// process that looks like a plausible controlling terminal. The heuristic:
// a terminal emulator hosting this session has at least one live child
// (its shell); an unrelated kitty with no children is unlikely to be ours.
func (d *Discoverer) fromScan(ctx context.Context) (int, bool) {
	procs, err := d.snapshot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: process scan failed: %v\n", err)
		return 0, false
	}

	for _, p := range procs {
		if !d.Inspector.MatchesCommand(p.Args) {
			continue
		}
		if !procfs.HasChildren(procs, p.PID) {
			continue
		}
		return p.PID, true
	}
	return 0, false
}
