package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittybg/kittybg/internal/endpoint"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the kitty background image",
	Long: `Remove the kitty window's background image.

Uses the remote-control socket when reachable, otherwise the same
escape-sequence fallbacks as set-background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if _, err := rt.dispatcher.Dispatch(ctx, endpoint.BackgroundVerb, "none"); err != nil {
			return fmt.Errorf("clearing background: %w", err)
		}
		fmt.Println("background cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
