package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittybg/kittybg/internal/config"
	"github.com/kittybg/kittybg/internal/endpoint"
	"github.com/kittybg/kittybg/internal/mux"
	telem "github.com/kittybg/kittybg/internal/otel"
	"github.com/kittybg/kittybg/internal/procfs"
	"github.com/kittybg/kittybg/internal/window"
)

var (
	// Global flags.
	flagMux    string
	flagSocket string
)

var rootCmd = &cobra.Command{
	Use:   "kittybg",
	Short: "Tint kitty's background with the tmux pane layout",
	Long: `kittybg renders the current tmux pane layout as an image and sets it
as the kitty terminal's background, giving every pane a stable color tint.

It locates kitty's remote-control socket from inside the tmux session
(environment hint, client process ancestry, then a process scan), caches
the validated endpoint, and falls back to terminal escape sequences when
the control socket is unreachable.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", envOrDefault("KITTYBG_MUX", ""), "terminal multiplexer: tmux, zellij (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagSocket, "to", "", "control socket address, bypassing discovery (e.g. unix:/tmp/kitty-1234)")
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer() (mux.Multiplexer, error) {
	if flagMux != "" {
		return mux.FromName(flagMux)
	}
	return mux.Detect()
}

// runtime bundles the plumbing every command shares: config, telemetry,
// the multiplexer, and the discovery/dispatch engine.
type runtime struct {
	cfg        *config.Config
	tel        *telem.Telemetry
	mux        mux.Multiplexer // nil when no multiplexer is reachable
	discoverer *endpoint.Discoverer
	dispatcher *endpoint.Dispatcher
	prober     *window.Prober
}

// buildRuntime wires the shared components. The returned cleanup flushes
// telemetry and must run before exit.
func buildRuntime(ctx context.Context) (*runtime, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "config: loaded %s\n", cfg.ConfigFile)
	}

	// Wire build version into OTEL service metadata.
	telem.Version = Version
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
	}

	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
	}

	// A missing multiplexer is not fatal here: clear and check still
	// work outside tmux. Commands that need pane geometry check later.
	m, muxErr := getMultiplexer()
	if muxErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", muxErr)
		m = nil
	}

	inspector := &procfs.Inspector{
		Signature: cfg.Signature,
		SelfName:  cfg.SelfName,
	}
	discoverer := &endpoint.Discoverer{
		Inspector:      inspector,
		Mux:            m,
		SocketTemplate: cfg.SocketTemplate,
		MaxHops:        cfg.WalkDepth,
		Metrics:        metrics,
	}
	cache := endpoint.NewCache(cfg.CacheTTLDuration, func(ctx context.Context, ep endpoint.Endpoint) bool {
		return discoverer.Validate(ctx, ep)
	})
	dispatcher := &endpoint.Dispatcher{
		Cache:      cache,
		Discoverer: discoverer,
		Mux:        m,
		Metrics:    metrics,
	}

	// --to pins the socket address and skips discovery entirely, even
	// after a transport failure: a failed pinned socket is an error, not
	// a reason to substitute a discovered endpoint.
	if flagSocket != "" {
		dispatcher.Discoverer = nil
		dispatcher.Cache = endpoint.NewCache(cfg.CacheTTLDuration, nil)
		dispatcher.Cache.Set(endpoint.Endpoint{SocketPath: flagSocket})
	}

	rt := &runtime{
		cfg:        cfg,
		tel:        tel,
		mux:        m,
		discoverer: discoverer,
		dispatcher: dispatcher,
		prober:     &window.Prober{Dispatch: dispatcher.Dispatch},
	}
	cleanup := func() {
		if tel != nil {
			tel.Shutdown(ctx)
		}
	}
	return rt, cleanup, nil
}

// requireSession ensures pane geometry is available.
func (rt *runtime) requireSession(ctx context.Context) error {
	if rt.mux == nil || !rt.mux.InSession(ctx) {
		return fmt.Errorf("not running in a tmux session, start tmux first")
	}
	return nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
