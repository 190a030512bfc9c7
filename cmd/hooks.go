package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// layoutHooks are the tmux events after which the background should be
// regenerated: anything that creates, destroys, moves, or refocuses a
// pane.
var layoutHooks = []string{
	// Pane lifecycle
	"after-split-window",
	"pane-exited",
	"after-resize-pane",
	// Layout and window events
	"window-layout-changed",
	"after-select-window",
	"after-new-window",
	"after-kill-window",
	// Session events
	"after-new-session",
	"session-window-changed",
	"client-session-changed",
	// Pane focus
	"after-select-pane",
}

var installHooksCmd = &cobra.Command{
	Use:   "install-hooks",
	Short: "Install tmux hooks that refresh the background automatically",
	Long: `Register global tmux hooks that re-run "kittybg set-background"
whenever the pane layout changes: splits, pane exits, resizes, window
and session switches, and pane focus changes.

Hook output is discarded so a discovery hiccup never interrupts the
session. Individual hook failures are reported and skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if rt.mux == nil {
			return fmt.Errorf("no terminal multiplexer available to install hooks into")
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving executable path: %w", err)
		}
		hookCommand := fmt.Sprintf("run-shell '%s set-background >/dev/null 2>&1'", exe)

		installed, failed := 0, 0
		for _, hook := range layoutHooks {
			if err := rt.mux.SetHook(ctx, hook, hookCommand); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not set hook %s: %v\n", hook, err)
				failed++
				continue
			}
			fmt.Printf("installed hook: %s\n", hook)
			installed++
		}

		fmt.Printf("\nhooks installed: %d", installed)
		if failed > 0 {
			fmt.Printf(" (failed: %d)", failed)
		}
		fmt.Println()
		fmt.Println("the background now refreshes on pane, window, and session changes")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installHooksCmd)
}
