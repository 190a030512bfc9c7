// Package colorcache assigns each pane a stable, visually distinct tint.
//
// Colors are keyed by "<window>:<pane>" and persisted as JSON under the
// user cache directory, so a pane keeps its color across invocations and
// tmux hook firings. New colors are picked by hue, keeping at least 30
// degrees of separation from every hue already in use.
package colorcache

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// minHueDistance is the smallest acceptable separation between two pane
// hues, in degrees on the color wheel.
const minHueDistance = 30.0

// CachedColor is one persisted pane color.
type CachedColor struct {
	RGB       [3]uint8 `json:"rgb"`
	Hue       float64  `json:"hue"`
	CreatedAt int64    `json:"created_at"`
}

// Store maps pane keys to colors and persists itself to disk.
type Store struct {
	Colors      map[string]CachedColor `json:"colors"`
	StartupSeed uint64                 `json:"startup_seed"`

	usedHues []float64
	path     string
}

// Path returns the on-disk location of the color cache, creating the
// containing directory if needed.
func Path() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "kittybg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	return filepath.Join(dir, "pane_colors.json"), nil
}

// Load reads the cache from its default path, returning a fresh store if
// no cache exists yet.
func Load() (*Store, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the cache from an explicit path.
func LoadFrom(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newStore(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading color cache: %w", err)
	}

	s := newStore(path)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing color cache: %w", err)
	}

	// usedHues is derived state, rebuilt on every load.
	s.usedHues = s.usedHues[:0]
	for _, c := range s.Colors {
		s.usedHues = append(s.usedHues, c.Hue)
	}
	return s, nil
}

func newStore(path string) *Store {
	return &Store{
		Colors:      make(map[string]CachedColor),
		StartupSeed: rand.Uint64(),
		path:        path,
	}
}

// Save writes the cache back to disk.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing color cache: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing color cache: %w", err)
	}
	return nil
}

// ColorFor returns the cached color for a key, generating and recording
// a new distinct one on first sight.
func (s *Store) ColorFor(key string) colorful.Color {
	if c, ok := s.Colors[key]; ok {
		return colorful.Color{
			R: float64(c.RGB[0]) / 255.0,
			G: float64(c.RGB[1]) / 255.0,
			B: float64(c.RGB[2]) / 255.0,
		}
	}

	col, hue := s.generateDistinct(key)
	r, g, b := col.RGB255()
	s.Colors[key] = CachedColor{
		RGB:       [3]uint8{r, g, b},
		Hue:       hue,
		CreatedAt: time.Now().Unix(),
	}
	s.usedHues = append(s.usedHues, hue)
	return col
}

// Lookup returns the persisted record for a key without generating one.
func (s *Store) Lookup(key string) (CachedColor, bool) {
	c, ok := s.Colors[key]
	return c, ok
}

// FilePath returns where this store persists itself.
func (s *Store) FilePath() string {
	return s.path
}

// Hex renders the color as "#rrggbb".
func (c CachedColor) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.RGB[0], c.RGB[1], c.RGB[2])
}

// Remove deletes a single key, freeing its hue for reuse.
func (s *Store) Remove(key string) bool {
	c, ok := s.Colors[key]
	if !ok {
		return false
	}
	delete(s.Colors, key)
	s.usedHues = withoutHue(s.usedHues, c.Hue)
	return true
}

// Prune drops colors for keys no longer present.
func (s *Store) Prune(existing []string) {
	keep := make(map[string]bool, len(existing))
	for _, k := range existing {
		keep[k] = true
	}
	for key, c := range s.Colors {
		if keep[key] {
			continue
		}
		delete(s.Colors, key)
		s.usedHues = withoutHue(s.usedHues, c.Hue)
	}
}

// Keys returns all cached pane keys.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.Colors))
	for k := range s.Colors {
		keys = append(keys, k)
	}
	return keys
}

// generateDistinct derives a bright pastel color for a key. The hash of
// seed+key picks a candidate hue, then the hue is pushed away from the
// ones already in use; saturation and value stay in a narrow pastel band
// so only hue distinguishes panes.
func (s *Store) generateDistinct(key string) (colorful.Color, float64) {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d/%s", s.StartupSeed, key)
	hash := h.Sum64()

	hue := s.distinctHue(float64(hash % 360))
	sat := 0.70 + float64((hash>>8)%11)/100.0  // 70-80%
	val := 0.75 + float64((hash>>16)%11)/100.0 // 75-85%

	return colorful.Hsv(hue, sat, val), hue
}

// distinctHue returns the preferred hue if it is far enough from every
// used hue, otherwise the candidate (on a 10 degree grid from the
// preference) with the largest minimum distance to all used hues.
func (s *Store) distinctHue(preferred float64) float64 {
	if len(s.usedHues) == 0 || s.isDistinct(preferred) {
		return preferred
	}

	best := preferred
	bestMin := 0.0
	for step := 0; step < 36; step++ {
		candidate := float64(int(preferred+float64(step)*10) % 360)
		minDist := 360.0
		for _, used := range s.usedHues {
			if d := hueDistance(candidate, used); d < minDist {
				minDist = d
			}
		}
		if minDist > bestMin {
			bestMin = minDist
			best = candidate
		}
	}
	return best
}

func (s *Store) isDistinct(hue float64) bool {
	for _, used := range s.usedHues {
		if hueDistance(hue, used) < minHueDistance {
			return false
		}
	}
	return true
}

// hueDistance is the shorter arc between two hues on the color wheel.
func hueDistance(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// withoutHue removes one hue (within a degree of tolerance) from a slice.
func withoutHue(hues []float64, hue float64) []float64 {
	out := hues[:0]
	for _, h := range hues {
		diff := h - hue
		if diff < 0 {
			diff = -diff
		}
		if diff > 1.0 {
			out = append(out, h)
		}
	}
	return out
}
