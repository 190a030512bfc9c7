package endpoint

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kittybg/kittybg/internal/mux"
	telem "github.com/kittybg/kittybg/internal/otel"
)

// Dispatcher sends remote-control commands to the discovered endpoint.
//
// Per call: cached endpoint (or fresh discovery) -> primary socket
// transport -> on failure, invalidate and re-discover exactly once ->
// one retry -> escape-sequence fallbacks, but only for the background
// set/clear command. The sequence is strictly ordered; transports are
// never raced.
type Dispatcher struct {
	Cache      *Cache
	Discoverer *Discoverer

	// Mux relays the pass-through fallback. May be nil outside a
	// multiplexer.
	Mux mux.Multiplexer

	// Runner issues primary-transport commands. Nil means KittenRunner.
	Runner Runner

	// LookupEnv, ReadFile and TTY are seams for tests. Nil means
	// os.Getenv, os.ReadFile, and /dev/tty opened per write.
	LookupEnv func(string) string
	ReadFile  func(string) ([]byte, error)
	TTY       io.Writer

	Metrics *telem.Metrics
}

func (d *Dispatcher) runner() Runner {
	if d.Runner != nil {
		return d.Runner
	}
	return KittenRunner
}

func (d *Dispatcher) lookupEnv(key string) string {
	if d.LookupEnv != nil {
		return d.LookupEnv(key)
	}
	return os.Getenv(key)
}

func (d *Dispatcher) readFile(path string) ([]byte, error) {
	if d.ReadFile != nil {
		return d.ReadFile(path)
	}
	return os.ReadFile(path)
}

// Dispatch sends a command and returns its raw stdout.
//
// Failure modes: ErrNoEndpoint when discovery is exhausted and the
// command has no fallback encoding; a *TransportError when every
// applicable transport failed, carrying the last transport's diagnostics.
func (d *Dispatcher) Dispatch(ctx context.Context, args ...string) ([]byte, error) {
	verb := ""
	if len(args) > 0 {
		verb = args[0]
	}
	ctx, span := tracer.Start(ctx, "dispatch",
		trace.WithAttributes(attribute.String("dispatch.verb", verb)))
	defer span.End()

	ep, ok := d.Cache.Get(ctx)
	if ok {
		d.Metrics.RecordCacheHit(ctx)
	} else {
		d.Metrics.RecordCacheMiss(ctx)
		if fresh, err := d.discover(ctx); err == nil {
			d.Cache.Set(fresh)
			ep, ok = fresh, true
		}
	}

	var primaryErr error
	if ok {
		out, err := d.primary(ctx, ep, args)
		if err == nil {
			return out, nil
		}
		primaryErr = err

		// The endpoint went stale under us. Invalidate, re-discover
		// exactly once, retry once with the new endpoint.
		d.Cache.Invalidate()
		d.Metrics.RecordCacheInvalidation(ctx)
		if fresh, derr := d.discover(ctx); derr == nil {
			d.Cache.Set(fresh)
			out, err = d.primary(ctx, fresh, args)
			if err == nil {
				return out, nil
			}
			primaryErr = err
			d.Cache.Invalidate()
			d.Metrics.RecordCacheInvalidation(ctx)
		}
	}

	return d.fallback(ctx, args, primaryErr)
}

// discover runs endpoint discovery. A nil Discoverer means the caller
// pinned the socket address; nothing is discovered, so a failed pinned
// endpoint is never silently replaced by a discovered one.
func (d *Dispatcher) discover(ctx context.Context) (Endpoint, error) {
	if d.Discoverer == nil {
		return Endpoint{}, ErrNoEndpoint
	}
	return d.Discoverer.Discover(ctx)
}

// primary issues the command over the control socket.
func (d *Dispatcher) primary(ctx context.Context, ep Endpoint, args []string) ([]byte, error) {
	out, err := d.runner()(ctx, ep.SocketPath, args)
	if err != nil {
		d.Metrics.RecordDispatch(ctx, PrimarySocket.String(), "error")
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("dispatch.transport", PrimarySocket.String()))
	d.Metrics.RecordDispatch(ctx, PrimarySocket.String(), "ok")
	return out, nil
}

// fallback attempts the escape-sequence transports for fallback-capable
// commands, otherwise surfaces the primary failure.
func (d *Dispatcher) fallback(ctx context.Context, args []string, primaryErr error) ([]byte, error) {
	encoded, capable, err := backgroundPayload(args, d.readFile)
	if !capable {
		if primaryErr != nil {
			return nil, primaryErr
		}
		return nil, fmt.Errorf("cannot run %q: %w", args, ErrNoEndpoint)
	}
	if err != nil {
		return nil, err
	}

	if primaryErr != nil {
		fmt.Fprintf(os.Stderr, "warning: control socket unavailable (%v), using escape-sequence fallback\n", primaryErr)
	}

	if d.lookupEnv(envMux) != "" && d.Mux != nil {
		return nil, d.viaPassthrough(ctx, encoded)
	}
	return nil, d.viaDirectEscape(ctx, encoded)
}

// viaPassthrough relays the sequence through the multiplexer so it
// reaches the hosting terminal's tty rather than the pane's.
func (d *Dispatcher) viaPassthrough(ctx context.Context, encoded string) error {
	command := fmt.Sprintf("printf '%s'", passthroughSequence(encoded))
	if err := d.Mux.RunShell(ctx, command); err != nil {
		d.Metrics.RecordDispatch(ctx, MuxPassthrough.String(), "error")
		return &TransportError{Kind: MuxPassthrough, Err: err}
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("dispatch.transport", MuxPassthrough.String()))
	d.Metrics.RecordDispatch(ctx, MuxPassthrough.String(), "ok")
	return nil
}

// viaDirectEscape writes the sequence to the controlling terminal.
func (d *Dispatcher) viaDirectEscape(ctx context.Context, encoded string) error {
	seq := directSequence(encoded)

	w := d.TTY
	if w == nil {
		tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			d.Metrics.RecordDispatch(ctx, DirectEscape.String(), "error")
			return &TransportError{Kind: DirectEscape, Err: err}
		}
		defer tty.Close()
		w = tty
	}

	if _, err := w.Write(seq); err != nil {
		d.Metrics.RecordDispatch(ctx, DirectEscape.String(), "error")
		return &TransportError{Kind: DirectEscape, Err: err}
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("dispatch.transport", DirectEscape.String()))
	d.Metrics.RecordDispatch(ctx, DirectEscape.String(), "ok")
	return nil
}
