// Package render rasterizes a pane layout into a background image.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/kittybg/kittybg/internal/colorcache"
	"github.com/kittybg/kittybg/internal/mux"
	"github.com/kittybg/kittybg/internal/window"
)

// Sanity limits. A kitty window larger than this, or a layout with more
// panes, points at corrupted input rather than a real terminal.
const (
	maxDimension = 32768
	maxPanes     = 1000
)

// Renderer draws pane rectangles onto a solid canvas. Each pane is
// filled with its cached color so the tint stays stable across redraws.
type Renderer struct {
	// Background is the canvas fill color.
	Background color.RGBA
	// Colors assigns per-pane tints.
	Colors *colorcache.Store
}

// BackgroundFromHex parses a "#rrggbb" canvas color.
func BackgroundFromHex(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid background color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// PaneKey derives the color-cache key for a pane. IDs are sanitized so a
// hostile window name cannot smuggle structure into the key.
func PaneKey(p mux.Pane) string {
	return sanitizeID(p.WindowID) + ":" + sanitizeID(p.ID)
}

// sanitizeID strips everything but the characters tmux identifiers use,
// capped at 50 runes.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if b.Len() >= 50 {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '%' || r == '@' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PaneImage renders the layout onto a fresh canvas. Panes that fall
// outside the canvas are skipped, not errors — tmux windows can be wider
// than the kitty window during a resize.
func (r *Renderer) PaneImage(dims window.Dimensions, panes []mux.Pane) (*image.RGBA, error) {
	if dims.Width == 0 || dims.Height == 0 {
		return nil, fmt.Errorf("invalid window dimensions %dx%d", dims.Width, dims.Height)
	}
	if dims.Width > maxDimension || dims.Height > maxDimension {
		return nil, fmt.Errorf("window dimensions too large: %dx%d", dims.Width, dims.Height)
	}
	if len(panes) > maxPanes {
		return nil, fmt.Errorf("too many panes: %d", len(panes))
	}

	img := image.NewRGBA(image.Rect(0, 0, int(dims.Width), int(dims.Height)))
	fill(img, img.Bounds(), r.Background)

	for _, pane := range panes {
		if pane.Width == 0 || pane.Height == 0 {
			continue
		}

		x0 := dims.PixelX(pane.X)
		y0 := dims.PixelY(pane.Y)
		x1 := min(x0+dims.PixelX(pane.Width), dims.Width)
		y1 := min(y0+dims.PixelY(pane.Height), dims.Height)
		if x0 >= dims.Width || y0 >= dims.Height || x1 <= x0 || y1 <= y0 {
			continue
		}

		c := r.Colors.ColorFor(PaneKey(pane))
		cr, cg, cb := c.RGB255()
		fill(img, image.Rect(int(x0), int(y0), int(x1), int(y1)),
			color.RGBA{R: cr, G: cg, B: cb, A: 255})
	}

	return img, nil
}

func fill(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// WritePNG encodes the image to path, writing through a temp file and
// renaming so a crashed write never leaves a truncated image for kitty
// to load.
func WritePNG(img *image.RGBA, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing image file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming image file: %w", err)
	}
	return nil
}

// UniqueFilename derives a collision-free variant of base by appending
// the PID and a nanosecond timestamp before the extension. Concurrent
// hook firings must not overwrite each other's temp images.
func UniqueFilename(base string) string {
	dir := filepath.Dir(base)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(filepath.Base(base), ext)
	return filepath.Join(dir, fmt.Sprintf("%s-%d-%d%s", stem, os.Getpid(), time.Now().UnixNano(), ext))
}
