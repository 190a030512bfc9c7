package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittybg/kittybg/internal/colorcache"
	"github.com/kittybg/kittybg/internal/render"
)

var (
	flagOutput   string
	flagAllPanes bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render the pane layout to an image file",
	Long: `Render the current tmux pane layout as a PNG.

Each pane is drawn as a colored rectangle at its on-screen position,
scaled to the kitty window's pixel dimensions. Pane colors are stable
across runs (cached on disk). Use --all-panes to include panes from
every session instead of only the current window.`,
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
		return renderLayout(ctx, rt, flagAllPanes, flagOutput)
	},
}

// renderLayout probes the window, enumerates panes, and writes the
// rendered image. Shared by generate and set-background.
func renderLayout(ctx context.Context, rt *runtime, allPanes bool, output string) error {
	dims, err := rt.prober.Probe(ctx)
	if err != nil {
		return fmt.Errorf("window dimensions: %w", err)
	}
	fmt.Fprintf(os.Stderr, "window: %dx%d px (cell %.1fx%.1f)\n",
		dims.Width, dims.Height, dims.CellWidth, dims.CellHeight)

	panes, err := rt.mux.ListPanes(ctx, allPanes)
	if err != nil {
		return fmt.Errorf("listing panes: %w", err)
	}
	fmt.Fprintf(os.Stderr, "panes: %d\n", len(panes))
	if len(panes) == 0 {
		fmt.Fprintln(os.Stderr, "no panes found, rendering a solid background")
	}

	colors, err := colorcache.Load()
	if err != nil {
		return fmt.Errorf("color cache: %w", err)
	}

	// Drop colors of panes that no longer exist so their hues free up.
	keys := make([]string, 0, len(panes))
	for _, p := range panes {
		keys = append(keys, render.PaneKey(p))
	}
	colors.Prune(keys)

	background, err := render.BackgroundFromHex(rt.cfg.BackgroundColor)
	if err != nil {
		return err
	}

	r := &render.Renderer{Background: background, Colors: colors}
	img, err := r.PaneImage(dims, panes)
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	if err := colors.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save color cache: %v\n", err)
	}

	if err := render.WritePNG(img, output); err != nil {
		return err
	}
	if rt.tel != nil {
		rt.tel.Metrics.RecordImageRendered(ctx)
	}
	return nil
}

func init() {
	generateCmd.Flags().StringVarP(&flagOutput, "output", "o", "pane_bg.png", "output image path")
	generateCmd.Flags().BoolVarP(&flagAllPanes, "all-panes", "a", false, "include panes from all sessions (default: current window)")
	rootCmd.AddCommand(generateCmd)
}
