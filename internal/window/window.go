// Package window determines the pixel dimensions of the hosting kitty
// window.
//
// The primary source is the remote-control "ls" listing, which carries
// the cell grid and pixel geometry. Without a reachable endpoint the
// probe degrades to the terminal's reported character size (stty, then
// tput) scaled by typical monospace cell dimensions.
package window

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Dimensions is the pixel size of the kitty window plus the cell size
// used to convert multiplexer cell coordinates to pixels.
type Dimensions struct {
	Width  uint32
	Height uint32

	CellWidth  float32
	CellHeight float32
}

// PixelX converts a cell column to a pixel offset.
func (d Dimensions) PixelX(cells uint32) uint32 {
	return uint32(float32(cells) * d.CellWidth)
}

// PixelY converts a cell row to a pixel offset.
func (d Dimensions) PixelY(cells uint32) uint32 {
	return uint32(float32(cells) * d.CellHeight)
}

// Defaults when the terminal reports nothing usable.
const (
	defaultCellWidth  = 10.0
	defaultCellHeight = 20.0
	defaultColumns    = 80
	defaultRows       = 24
)

// ErrMalformedResponse means the remote endpoint answered but its output
// could not be parsed into the expected structure. This is a hard
// failure: the call already succeeded on the remote side, so it is not
// retried.
var ErrMalformedResponse = errors.New("malformed kitty window listing")

// Prober resolves window dimensions.
type Prober struct {
	// Dispatch issues a remote-control command (endpoint.Dispatcher.Dispatch).
	Dispatch func(ctx context.Context, args ...string) ([]byte, error)

	// Exec runs a terminal-size helper (stty, tput). Nil means a real
	// subprocess; tests substitute canned output.
	Exec func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (p *Prober) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	if p.Exec != nil {
		return p.Exec(ctx, name, args...)
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// Probe returns the window dimensions, preferring remote control and
// degrading to terminal-size heuristics when no endpoint is reachable.
func (p *Prober) Probe(ctx context.Context) (Dimensions, error) {
	out, err := p.Dispatch(ctx, "ls")
	if err == nil {
		dims, perr := ParseListing(out)
		if perr == nil {
			return dims, nil
		}
		return Dimensions{}, perr
	}

	fmt.Fprintf(os.Stderr, "warning: kitty remote control unavailable (%v), estimating from terminal size\n", err)
	return p.fallback(ctx), nil
}

// listing mirrors the subset of "kitten @ ls" output we consume:
// OS windows contain tabs, tabs contain kitty windows with a cell grid.
type listing []struct {
	ID   int `json:"id"`
	Tabs []struct {
		ID      int    `json:"id"`
		Title   string `json:"title"`
		Windows []struct {
			ID      int    `json:"id"`
			Columns uint32 `json:"columns"`
			Lines   uint32 `json:"lines"`
		} `json:"windows"`
	} `json:"tabs"`
}

// ParseListing extracts window dimensions from raw "ls" output.
func ParseListing(out []byte) (Dimensions, error) {
	var ls listing
	if err := json.Unmarshal(out, &ls); err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(ls) == 0 || len(ls[0].Tabs) == 0 || len(ls[0].Tabs[0].Windows) == 0 {
		return Dimensions{}, fmt.Errorf("%w: empty window tree", ErrMalformedResponse)
	}

	win := ls[0].Tabs[0].Windows[0]
	if win.Columns == 0 || win.Lines == 0 {
		return Dimensions{}, fmt.Errorf("%w: zero cell grid", ErrMalformedResponse)
	}

	cw, ch, ok := CellSize(out)
	if !ok {
		cw, ch = defaultCellWidth, defaultCellHeight
	}

	return Dimensions{
		Width:      uint32(float32(win.Columns) * cw),
		Height:     uint32(float32(win.Lines) * ch),
		CellWidth:  cw,
		CellHeight: ch,
	}, nil
}

// CellSize probes the listing for per-cell pixel dimensions. kitty only
// reports pixel geometry on some platforms and versions, so this walks
// the structure loosely instead of binding it to a schema, and rejects
// implausible values (a monospace cell is well under 50px each way).
func CellSize(out []byte) (w, h float32, ok bool) {
	root := gjson.ParseBytes(out)
	for _, osWin := range root.Array() {
		for _, tab := range osWin.Get("tabs").Array() {
			for _, win := range tab.Get("windows").Array() {
				cols := win.Get("columns").Float()
				rows := win.Get("lines").Float()
				px := win.Get("geometry.width").Float()
				py := win.Get("geometry.height").Float()
				if cols <= 0 || rows <= 0 || px <= 0 || py <= 0 {
					continue
				}
				cw := float32(px / cols)
				ch := float32(py / rows)
				if cw > 0 && ch > 0 && cw < 50 && ch < 50 {
					return cw, ch, true
				}
			}
		}
	}
	return 0, 0, false
}

// fallback estimates the window size from the terminal's character grid.
func (p *Prober) fallback(ctx context.Context) Dimensions {
	cols, rows := p.terminalSize(ctx)
	return Dimensions{
		Width:      uint32(float32(cols) * defaultCellWidth),
		Height:     uint32(float32(rows) * defaultCellHeight),
		CellWidth:  defaultCellWidth,
		CellHeight: defaultCellHeight,
	}
}

// terminalSize asks stty first, then tput, then gives up with 80x24.
func (p *Prober) terminalSize(ctx context.Context) (cols, rows uint32) {
	if out, err := p.exec(ctx, "stty", "size"); err == nil {
		if c, r, ok := parseSttySize(string(out)); ok {
			return c, r
		}
	}

	colsOut, colsErr := p.exec(ctx, "tput", "cols")
	rowsOut, rowsErr := p.exec(ctx, "tput", "lines")
	if colsErr == nil && rowsErr == nil {
		c, err1 := strconv.ParseUint(strings.TrimSpace(string(colsOut)), 10, 32)
		r, err2 := strconv.ParseUint(strings.TrimSpace(string(rowsOut)), 10, 32)
		if err1 == nil && err2 == nil && c > 0 && r > 0 {
			return uint32(c), uint32(r)
		}
	}

	fmt.Fprintln(os.Stderr, "warning: could not determine terminal size, using 80x24")
	return defaultColumns, defaultRows
}

// parseSttySize parses "rows cols" output from stty size.
func parseSttySize(out string) (cols, rows uint32, ok bool) {
	parts := strings.Fields(strings.TrimSpace(out))
	if len(parts) != 2 {
		return 0, 0, false
	}
	r, err1 := strconv.ParseUint(parts[0], 10, 32)
	c, err2 := strconv.ParseUint(parts[1], 10, 32)
	if err1 != nil || err2 != nil || r == 0 || c == 0 {
		return 0, 0, false
	}
	return uint32(c), uint32(r), true
}
