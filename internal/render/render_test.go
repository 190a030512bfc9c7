package render

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kittybg/kittybg/internal/colorcache"
	"github.com/kittybg/kittybg/internal/mux"
	"github.com/kittybg/kittybg/internal/window"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	colors, err := colorcache.LoadFrom(filepath.Join(t.TempDir(), "colors.json"))
	if err != nil {
		t.Fatal(err)
	}
	return &Renderer{
		Background: color.RGBA{R: 0x14, G: 0x14, B: 0x14, A: 255},
		Colors:     colors,
	}
}

func TestBackgroundFromHex(t *testing.T) {
	c, err := BackgroundFromHex("#141414")
	if err != nil {
		t.Fatalf("BackgroundFromHex: %v", err)
	}
	if c.R != 0x14 || c.G != 0x14 || c.B != 0x14 || c.A != 255 {
		t.Errorf("got %v", c)
	}

	if _, err := BackgroundFromHex("nothex"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestRenderer_PaneImage(t *testing.T) {
	r := testRenderer(t)
	dims := window.Dimensions{Width: 100, Height: 80, CellWidth: 10, CellHeight: 20}
	panes := []mux.Pane{
		{ID: "%0", WindowID: "@1", X: 0, Y: 0, Width: 5, Height: 2},
		{ID: "%1", WindowID: "@1", X: 5, Y: 0, Width: 5, Height: 2},
	}

	img, err := r.PaneImage(dims, panes)
	if err != nil {
		t.Fatalf("PaneImage: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Errorf("canvas: got %v", img.Bounds())
	}

	// Inside pane %0 (cells 0-5 x 0-2 -> pixels 0-50 x 0-40)
	left := img.RGBAAt(25, 20)
	// Inside pane %1 (pixels 50-100 x 0-40)
	right := img.RGBAAt(75, 20)
	// Below both panes: canvas background
	below := img.RGBAAt(50, 60)

	if left == r.Background {
		t.Error("pane %0 area kept the background color")
	}
	if right == r.Background {
		t.Error("pane %1 area kept the background color")
	}
	if left == right {
		t.Error("adjacent panes share a color")
	}
	if below != r.Background {
		t.Errorf("uncovered area: got %v, want background", below)
	}
}

func TestRenderer_PaneImage_ClampsOversizedPanes(t *testing.T) {
	r := testRenderer(t)
	dims := window.Dimensions{Width: 100, Height: 80, CellWidth: 10, CellHeight: 20}
	panes := []mux.Pane{
		// Extends past the right edge mid-resize
		{ID: "%0", WindowID: "@1", X: 5, Y: 0, Width: 50, Height: 2},
	}

	img, err := r.PaneImage(dims, panes)
	if err != nil {
		t.Fatalf("PaneImage: %v", err)
	}
	if got := img.RGBAAt(99, 10); got == r.Background {
		t.Error("clamped pane should still cover the right edge")
	}
}

func TestRenderer_PaneImage_SkipsOffCanvasPanes(t *testing.T) {
	r := testRenderer(t)
	dims := window.Dimensions{Width: 100, Height: 80, CellWidth: 10, CellHeight: 20}
	panes := []mux.Pane{
		{ID: "%0", WindowID: "@1", X: 50, Y: 50, Width: 10, Height: 10},
		{ID: "%1", WindowID: "@1", X: 0, Y: 0, Width: 0, Height: 0},
	}

	if _, err := r.PaneImage(dims, panes); err != nil {
		t.Fatalf("off-canvas panes must be skipped, not errors: %v", err)
	}
}

func TestRenderer_PaneImage_Limits(t *testing.T) {
	r := testRenderer(t)

	if _, err := r.PaneImage(window.Dimensions{Width: 0, Height: 80}, nil); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := r.PaneImage(window.Dimensions{Width: 100000, Height: 80}, nil); err == nil {
		t.Error("expected error for oversized canvas")
	}

	panes := make([]mux.Pane, maxPanes+1)
	if _, err := r.PaneImage(window.Dimensions{Width: 100, Height: 80}, panes); err == nil {
		t.Error("expected error for too many panes")
	}
}

func TestPaneKey_Sanitizes(t *testing.T) {
	p := mux.Pane{WindowID: "@1", ID: "%0"}
	if got := PaneKey(p); got != "@1:%0" {
		t.Errorf("PaneKey: got %q", got)
	}

	hostile := mux.Pane{WindowID: "@1;rm -rf /", ID: "%0\n$(evil)"}
	key := PaneKey(hostile)
	if strings.ContainsAny(key, ";$()\n /") {
		t.Errorf("key kept hostile characters: %q", key)
	}

	long := mux.Pane{WindowID: strings.Repeat("a", 200), ID: "%0"}
	if got := PaneKey(long); len(got) > 104 {
		t.Errorf("key not capped: %d chars", len(got))
	}
}

func TestWritePNG(t *testing.T) {
	r := testRenderer(t)
	dims := window.Dimensions{Width: 10, Height: 10, CellWidth: 1, CellHeight: 1}
	img, err := r.PaneImage(dims, nil)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "bg.png")
	if err := WritePNG(img, path); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 10 {
		t.Errorf("decoded bounds: %v", decoded.Bounds())
	}

	// No temp file left behind
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestUniqueFilename(t *testing.T) {
	a := UniqueFilename("/tmp/kittybg-temp.png")
	b := UniqueFilename("/tmp/kittybg-temp.png")
	if a == b {
		t.Error("expected distinct filenames")
	}
	if filepath.Ext(a) != ".png" {
		t.Errorf("extension lost: %q", a)
	}
	if !strings.HasPrefix(filepath.Base(a), "kittybg-temp-") {
		t.Errorf("stem lost: %q", a)
	}
}
