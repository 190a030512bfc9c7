package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7fd88f"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5a742"))
	styleTitle = lipgloss.NewStyle().Bold(true)
)

func printOK(format string, args ...any) {
	fmt.Println(styleOK.Render("ok") + "   " + fmt.Sprintf(format, args...))
}

func printWarn(format string, args ...any) {
	fmt.Println(styleWarn.Render("warn") + " " + fmt.Sprintf(format, args...))
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Diagnose the tmux and kitty environment",
	Long: `Check whether the environment supports background generation:
tmux session reachability, kitty endpoint discovery, remote-control
responsiveness, and which fallback transports apply.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Println(styleTitle.Render("environment"))
		inTmux := os.Getenv("TMUX") != ""
		if rt.mux != nil && rt.mux.InSession(ctx) {
			printOK("%s session reachable", rt.mux.Name())
		} else {
			printWarn("no multiplexer session (pane layout unavailable)")
		}
		if os.Getenv("KITTY_WINDOW_ID") != "" {
			printOK("running inside kitty")
		} else {
			printWarn("not running inside kitty, some features may degrade")
		}
		if pid := os.Getenv("KITTY_PID"); pid != "" {
			printOK("KITTY_PID hint present (%s)", pid)
		} else {
			printWarn("no KITTY_PID hint, discovery will walk the process tree")
		}

		fmt.Println()
		fmt.Println(styleTitle.Render("endpoint discovery"))
		if ep, err := rt.discoverer.Discover(ctx); err == nil {
			printOK("kitty pid %d, socket %s", ep.PID, ep.SocketPath)
		} else {
			printWarn("%v", err)
			printWarn("enable remote control in kitty.conf: allow_remote_control yes, listen_on unix:/tmp/kitty")
		}

		fmt.Println()
		fmt.Println(styleTitle.Render("remote control"))
		if dims, err := rt.prober.Probe(ctx); err == nil {
			printOK("window %dx%d px (cell %.1fx%.1f)", dims.Width, dims.Height, dims.CellWidth, dims.CellHeight)
		} else {
			printWarn("window probe failed: %v", err)
		}

		if rt.mux != nil && rt.mux.InSession(ctx) {
			if panes, err := rt.mux.ListPanes(ctx, false); err == nil {
				printOK("%d pane(s) in current window", len(panes))
			} else {
				printWarn("pane listing failed: %v", err)
			}
		}

		fmt.Println()
		fmt.Println(styleTitle.Render("background transports"))
		printOK("control socket (all commands)")
		if inTmux {
			printOK("tmux passthrough (background set/clear)")
		} else {
			printWarn("tmux passthrough unavailable outside tmux")
		}
		printOK("direct escape sequence (background set/clear)")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
