package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kittybg/kittybg/internal/colorcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the pane color cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List cached pane colors",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := colorcache.Load()
		if err != nil {
			return fmt.Errorf("load color cache: %w", err)
		}
		keys := store.Keys()
		if len(keys) == 0 {
			fmt.Println("color cache is empty")
			return nil
		}
		sort.Strings(keys)
		fmt.Printf("%s\n\n", store.FilePath())
		for _, key := range keys {
			c, _ := store.Lookup(key)
			hex := c.Hex()
			fmt.Printf("%s %-24s %s\n", paneSwatch(hex), key, hex)
		}
		return nil
	},
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "remove <pane-key>",
	Short: "Drop a single pane from the color cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := colorcache.Load()
		if err != nil {
			return fmt.Errorf("load color cache: %w", err)
		}
		if !store.Remove(args[0]) {
			fmt.Printf("no cached color for %q\n", args[0])
			return nil
		}
		if err := store.Save(); err != nil {
			return fmt.Errorf("save color cache: %w", err)
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the color cache so new hues are assigned",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := colorcache.Load()
		if err != nil {
			return fmt.Errorf("load color cache: %w", err)
		}
		path := store.FilePath()
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				fmt.Println("color cache is empty")
				return nil
			}
			return fmt.Errorf("remove %s: %w", path, err)
		}
		fmt.Printf("removed %s\n", path)
		return nil
	},
}

func paneSwatch(hex string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("  ")
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheRemoveCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
