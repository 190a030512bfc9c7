package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kittybg/kittybg/internal/endpoint"
	"github.com/kittybg/kittybg/internal/render"
)

var (
	flagBGAllPanes bool
	flagKeepFile   bool
)

var setBackgroundCmd = &cobra.Command{
	Use:     "set-background",
	Aliases: []string{"auto"},
	Short:   "Render the pane layout and set it as the kitty background",
	Long: `Render the current tmux pane layout and set the result as the kitty
window's background image.

The image is written to a temporary file, dispatched to kitty over the
remote-control socket (with escape-sequence fallbacks when the socket is
unreachable), and deleted afterwards unless --keep-file is given.

A failure to set the background is reported but does not fail the
command when the image itself was generated — tmux hooks fire this on
every layout change and must never wedge the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := rt.requireSession(ctx); err != nil {
			return err
		}

		output := render.UniqueFilename(filepath.Join(os.TempDir(), "kittybg-temp.png"))
		if err := renderLayout(ctx, rt, flagBGAllPanes, output); err != nil {
			return err
		}

		if _, err := rt.dispatcher.Dispatch(ctx, endpoint.BackgroundVerb, output); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not set kitty background: %v\n", err)
			fmt.Fprintf(os.Stderr, "the image was still generated at %s\n", output)
			flagKeepFile = true
		} else {
			fmt.Fprintln(os.Stderr, "background set")
		}

		if flagKeepFile {
			fmt.Fprintf(os.Stderr, "keeping generated file: %s\n", output)
			return nil
		}
		if err := os.Remove(output); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not remove temp file %s: %v\n", output, err)
		}
		return nil
	},
}

func init() {
	setBackgroundCmd.Flags().BoolVarP(&flagBGAllPanes, "all-panes", "a", false, "include panes from all sessions (default: current window)")
	setBackgroundCmd.Flags().BoolVar(&flagKeepFile, "keep-file", false, "keep the generated image file")
	rootCmd.AddCommand(setBackgroundCmd)
}
