package endpoint

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kittybg/kittybg/internal/procfs"
)

// testDispatcher wires a Dispatcher over fakes: a scripted runner, a
// discoverer whose only strategy is the env hint, and an in-memory tty.
type testDispatcher struct {
	*Dispatcher
	runs       *int
	discovered *int
	tty        *bytes.Buffer
	mux        *recordingMux
}

type recordingMux struct {
	fakeMux
	shellCommands []string
}

func (r *recordingMux) RunShell(ctx context.Context, command string) error {
	r.shellCommands = append(r.shellCommands, command)
	return nil
}

func newTestDispatcher(t *testing.T, runner Runner, envVars map[string]string) *testDispatcher {
	t.Helper()
	runs := 0
	discovered := 0
	discoverer := &Discoverer{
		Inspector:    &fakeInspector{cmdlines: map[int]string{1234: "/usr/bin/kitty"}},
		LookupEnv:    env(envVars),
		SocketExists: func(string) bool { discovered++; return true },
		Snapshot: func(ctx context.Context) ([]procfs.Process, error) {
			return nil, nil
		},
	}
	tty := &bytes.Buffer{}
	rmux := &recordingMux{}
	disp := &Dispatcher{
		Cache:      NewCache(5*time.Minute, nil),
		Discoverer: discoverer,
		Mux:        rmux,
		Runner: func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
			runs++
			return runner(ctx, socketPath, args)
		},
		LookupEnv: env(envVars),
		ReadFile:  func(string) ([]byte, error) { return []byte("png-bytes"), nil },
		TTY:       tty,
	}
	return &testDispatcher{Dispatcher: disp, runs: &runs, discovered: &discovered, tty: tty, mux: rmux}
}

func TestDispatcher_PrimarySuccess(t *testing.T) {
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		if socketPath != "unix:/tmp/kitty-1234" {
			t.Errorf("socket: got %q", socketPath)
		}
		return []byte("listing"), nil
	}, map[string]string{"KITTY_PID": "1234"})

	out, err := td.Dispatch(context.Background(), "ls")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(out) != "listing" {
		t.Errorf("output: got %q", out)
	}
	if *td.runs != 1 {
		t.Errorf("runner calls: got %d, want 1", *td.runs)
	}
}

func TestDispatcher_CachesEndpoint(t *testing.T) {
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		return nil, nil
	}, map[string]string{"KITTY_PID": "1234"})

	ctx := context.Background()
	if _, err := td.Dispatch(ctx, "ls"); err != nil {
		t.Fatal(err)
	}
	if _, err := td.Dispatch(ctx, "ls"); err != nil {
		t.Fatal(err)
	}
	// Second call hits the cache: exactly one discovery overall
	if *td.discovered != 1 {
		t.Errorf("discoveries: got %d, want 1", *td.discovered)
	}
}

func TestDispatcher_RetriesExactlyOnce(t *testing.T) {
	// Primary always fails; the dispatcher must invalidate, re-discover
	// once, retry once, then give up.
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		return nil, &TransportError{Kind: PrimarySocket, Err: errors.New("connection refused")}
	}, map[string]string{"KITTY_PID": "1234"})

	_, err := td.Dispatch(context.Background(), "ls")
	if err == nil {
		t.Fatal("expected error when every transport fails")
	}
	if *td.runs != 2 {
		t.Errorf("runner calls: got %d, want 2 (initial + one retry)", *td.runs)
	}
	if *td.discovered != 2 {
		t.Errorf("discoveries: got %d, want 2 (initial + one re-discovery)", *td.discovered)
	}
	// Cache must be left clean for the next invocation
	if _, ok := td.Cache.Get(context.Background()); ok {
		t.Error("expected cache invalidated after final failure")
	}
}

func TestDispatcher_StaleEndpointRecovery(t *testing.T) {
	// First primary attempt fails, the retry succeeds.
	attempt := 0
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		attempt++
		if attempt == 1 {
			return nil, &TransportError{Kind: PrimarySocket, Err: errors.New("stale socket")}
		}
		return []byte("ok"), nil
	}, map[string]string{"KITTY_PID": "1234"})

	out, err := td.Dispatch(context.Background(), "ls")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(out) != "ok" {
		t.Errorf("output: got %q", out)
	}
	if *td.runs != 2 {
		t.Errorf("runner calls: got %d, want 2", *td.runs)
	}
}

func TestDispatcher_NoFallbackForArbitraryVerbs(t *testing.T) {
	// No endpoint anywhere, and "ls" has no escape-sequence encoding.
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		t.Fatal("runner must not be called without an endpoint")
		return nil, nil
	}, nil)

	_, err := td.Dispatch(context.Background(), "ls")
	if !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("expected ErrNoEndpoint, got %v", err)
	}
	if td.tty.Len() != 0 || len(td.mux.shellCommands) != 0 {
		t.Error("no fallback transport may fire for a non-background verb")
	}
}

func TestDispatcher_BackgroundFallsBackToDirectEscape(t *testing.T) {
	// No endpoint, not inside tmux: the background verb goes to the tty.
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		t.Fatal("runner must not be called without an endpoint")
		return nil, nil
	}, nil)

	_, err := td.Dispatch(context.Background(), BackgroundVerb, "/tmp/bg.png")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := "\x1b]20;" + base64.StdEncoding.EncodeToString([]byte("png-bytes")) + "\x1b\\"
	if td.tty.String() != want {
		t.Errorf("tty sequence: got %q, want %q", td.tty.String(), want)
	}
}

func TestDispatcher_BackgroundFallsBackToPassthrough(t *testing.T) {
	// No endpoint, inside tmux: the sequence is relayed via run-shell
	// wrapped in the tmux passthrough envelope.
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		t.Fatal("runner must not be called without an endpoint")
		return nil, nil
	}, map[string]string{"TMUX": "/tmp/tmux-1000/default,1,0"})

	_, err := td.Dispatch(context.Background(), BackgroundVerb, "none")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(td.mux.shellCommands) != 1 {
		t.Fatalf("run-shell calls: got %d, want 1", len(td.mux.shellCommands))
	}
	cmd := td.mux.shellCommands[0]
	if !strings.HasPrefix(cmd, "printf '") {
		t.Errorf("expected printf relay, got %q", cmd)
	}
	if !strings.Contains(cmd, `\ePtmux;`) || !strings.Contains(cmd, `]20;`) {
		t.Errorf("expected tmux passthrough envelope around OSC 20, got %q", cmd)
	}
	if td.tty.Len() != 0 {
		t.Error("direct escape must not fire when passthrough applies")
	}
}

func TestDispatcher_PrimaryFailureThenFallback(t *testing.T) {
	// Endpoint exists but the socket transport fails twice; background
	// verb still reaches the terminal via fallback.
	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		return nil, &TransportError{Kind: PrimarySocket, Err: errors.New("refused")}
	}, map[string]string{"KITTY_PID": "1234"})

	_, err := td.Dispatch(context.Background(), BackgroundVerb, "/tmp/bg.png")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if *td.runs != 2 {
		t.Errorf("runner calls: got %d, want 2 before fallback", *td.runs)
	}
	if td.tty.Len() == 0 {
		t.Error("expected direct escape fallback after primary failures")
	}
}

func TestDispatcher_PinnedSocketSkipsDiscovery(t *testing.T) {
	// A pinned socket (nil Discoverer) must never be replaced by a
	// discovered endpoint after a transient failure.
	runs := 0
	cache := NewCache(5*time.Minute, nil)
	cache.Set(Endpoint{SocketPath: "unix:/tmp/pinned"})
	d := &Dispatcher{
		Cache: cache,
		Runner: func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
			runs++
			if socketPath != "unix:/tmp/pinned" {
				t.Errorf("socket: got %q, want the pinned address", socketPath)
			}
			return nil, &TransportError{Kind: PrimarySocket, Err: errors.New("refused")}
		},
		LookupEnv: env(nil),
	}

	_, err := d.Dispatch(context.Background(), "ls")
	if err == nil {
		t.Fatal("expected error when the pinned socket fails")
	}
	if runs != 1 {
		t.Errorf("runner calls: got %d, want 1 (no re-discovery retry without a discoverer)", runs)
	}
}

func TestDispatcher_EmitsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	td := newTestDispatcher(t, func(ctx context.Context, socketPath string, args []string) ([]byte, error) {
		return []byte("ok"), nil
	}, map[string]string{"KITTY_PID": "1234"})

	if _, err := td.Dispatch(context.Background(), "ls"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var discover, dispatch sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		switch s.Name() {
		case "discover":
			discover = s
		case "dispatch":
			dispatch = s
		}
	}

	if discover == nil {
		t.Fatalf("no discover span recorded, got %d spans", len(sr.Ended()))
	}
	if !hasAttribute(discover, "discovery.strategy", "env_hint") {
		t.Errorf("discover span attributes: %v, want discovery.strategy=env_hint", discover.Attributes())
	}

	if dispatch == nil {
		t.Fatal("no dispatch span recorded")
	}
	if !hasAttribute(dispatch, "dispatch.verb", "ls") {
		t.Errorf("dispatch span attributes: %v, want dispatch.verb=ls", dispatch.Attributes())
	}
	if !hasAttribute(dispatch, "dispatch.transport", "socket") {
		t.Errorf("dispatch span attributes: %v, want dispatch.transport=socket", dispatch.Attributes())
	}
}

func hasAttribute(span sdktrace.ReadOnlySpan, key, value string) bool {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key && kv.Value.AsString() == value {
			return true
		}
	}
	return false
}

func TestBackgroundPayload(t *testing.T) {
	readFile := func(path string) ([]byte, error) {
		if path != "/tmp/bg.png" {
			return nil, errors.New("unexpected path")
		}
		return []byte{1, 2, 3}, nil
	}

	encoded, ok, err := backgroundPayload([]string{BackgroundVerb, "/tmp/bg.png"}, readFile)
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	if encoded != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Errorf("encoded: got %q", encoded)
	}

	// Clearing encodes as an empty payload
	encoded, ok, err = backgroundPayload([]string{BackgroundVerb, "none"}, readFile)
	if err != nil || !ok || encoded != "" {
		t.Errorf("clear: got (%q, %v, %v)", encoded, ok, err)
	}

	// Other verbs are not fallback capable
	if _, ok, _ := backgroundPayload([]string{"ls"}, readFile); ok {
		t.Error("ls must not be fallback capable")
	}
	if _, ok, _ := backgroundPayload([]string{BackgroundVerb}, readFile); ok {
		t.Error("background verb without a path must not be fallback capable")
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &TransportError{Kind: MuxPassthrough, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected Unwrap to expose the inner error")
	}
	if !strings.Contains(err.Error(), "mux_passthrough") {
		t.Errorf("expected transport name in message, got %q", err.Error())
	}
}
