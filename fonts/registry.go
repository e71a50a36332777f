// Package fonts resolves CSS-style font family lists and weight tokens to gg
// font sources, and measures multi-line text blocks.
//
// The measuring functions in this package are the single source of truth for
// text geometry: the renderer uses them to place glyphs and size selection
// overlays, and the hit-tester uses them to build text bounding boxes, so the
// two can never disagree.
package fonts

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/cases"
)

// Built-in family names.
const (
	FamilySans = "go"
	FamilyMono = "go mono"
)

// Standard weights.
const (
	WeightLight    = 300
	WeightNormal   = 400
	WeightMedium   = 500
	WeightSemibold = 600
	WeightBold     = 700
	WeightBlack    = 900
)

// ErrUnknownWeight is returned by ParseWeight for unrecognised tokens.
var ErrUnknownWeight = errors.New("fonts: unknown font weight")

// Registry maps family names and weights to font sources.
// A Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	families map[string]map[int]*text.FontSource
	aliases  map[string]string
	fallback string
}

// NewRegistry returns an empty registry. Fallback names the family used when
// no entry of a family list resolves.
func NewRegistry(fallback string) *Registry {
	return &Registry{
		families: make(map[string]map[int]*text.FontSource),
		aliases:  make(map[string]string),
		fallback: fold(fallback),
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns a registry backed by the Go font family. Common web
// families and the CSS generic names are aliased onto it so documents
// written for a browser still resolve. The registry is built once.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		r := NewRegistry(FamilySans)
		for _, f := range []struct {
			family string
			weight int
			data   []byte
		}{
			{FamilySans, WeightNormal, goregular.TTF},
			{FamilySans, WeightMedium, gomedium.TTF},
			{FamilySans, WeightBold, gobold.TTF},
			{FamilyMono, WeightNormal, gomono.TTF},
			{FamilyMono, WeightBold, gomonobold.TTF},
		} {
			if err := r.RegisterBytes(f.family, f.weight, f.data); err != nil {
				defaultErr = err
				return
			}
		}
		for _, a := range []string{
			"arial", "helvetica", "verdana", "trebuchet ms", "impact",
			"comic sans ms", "georgia", "times", "times new roman",
			"sans-serif", "serif", "cursive", "fantasy", "system-ui",
		} {
			r.Alias(a, FamilySans)
		}
		for _, a := range []string{"courier", "courier new", "monospace"} {
			r.Alias(a, FamilyMono)
		}
		defaultReg = r
	})
	return defaultReg, defaultErr
}

// Register adds src under family at the given numeric weight, replacing any
// previous entry.
func (r *Registry) Register(family string, weight int, src *text.FontSource) {
	key := r.key(family)
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.families[key]
	if !ok {
		w = make(map[int]*text.FontSource)
		r.families[key] = w
	}
	w[weight] = src
}

// RegisterBytes parses TTF/OTF data and registers it.
func (r *Registry) RegisterBytes(family string, weight int, data []byte) error {
	src, err := text.NewFontSource(data)
	if err != nil {
		return fmt.Errorf("fonts: register %q %d: %w", family, weight, err)
	}
	r.Register(family, weight, src)
	return nil
}

// RegisterFile loads a font file and registers it.
func (r *Registry) RegisterFile(family string, weight int, path string) error {
	src, err := text.NewFontSourceFromFile(path)
	if err != nil {
		return fmt.Errorf("fonts: register %q %d: %w", family, weight, err)
	}
	r.Register(family, weight, src)
	return nil
}

// Clone returns an independent copy of r. Font sources are shared.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{
		families: make(map[string]map[int]*text.FontSource, len(r.families)),
		aliases:  maps.Clone(r.aliases),
		fallback: r.fallback,
	}
	for k, w := range r.families {
		c.families[k] = maps.Clone(w)
	}
	return c
}

// Alias makes name resolve to family.
func (r *Registry) Alias(name, family string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[fold(name)] = fold(family)
}

// Families returns the registered family names, sorted.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.families))
	for name := range r.families {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Source resolves a CSS font-family list (for example
// "Comic Sans MS, cursive") and a weight token to a font source. The first
// family in the list that resolves wins; otherwise the fallback family is
// used. Within a family the registered weight closest to the request is
// chosen; ties go to the heavier face for bold-ish requests. Source returns nil only when the registry is empty.
func (r *Registry) Source(familyList, weight string) *text.FontSource {
	w, err := ParseWeight(weight)
	if err != nil {
		w = WeightNormal
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range splitFamilies(familyList) {
		if src := r.lookupLocked(fold(name), w); src != nil {
			return src
		}
	}
	if src := r.lookupLocked(r.fallback, w); src != nil {
		return src
	}
	for _, name := range slices.Sorted(maps.Keys(r.families)) {
		if src := r.lookupLocked(name, w); src != nil {
			return src
		}
	}
	return nil
}

// Face resolves a font source and returns a face at size pixels.
func (r *Registry) Face(familyList, weight string, size float64) text.Face {
	src := r.Source(familyList, weight)
	if src == nil {
		return nil
	}
	return src.Face(size)
}

func (r *Registry) lookupLocked(name string, weight int) *text.FontSource {
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	weights, ok := r.families[name]
	if !ok || len(weights) == 0 {
		return nil
	}
	best, bestDist := 0, -1
	for w := range weights {
		d := w - weight
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist || (d == bestDist && (weight > WeightNormal) == (w > best)) {
			best, bestDist = w, d
		}
	}
	return weights[best]
}

func (r *Registry) key(family string) string {
	return fold(family)
}

// fold normalises a family name for caseless matching. A cases.Caser keeps
// state, so a fresh one is used per call.
func fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// splitFamilies splits a CSS font-family list, trimming whitespace and
// quotes.
func splitFamilies(list string) []string {
	parts := strings.Split(list, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseWeight accepts numeric CSS weights ("100".."900") and the keywords
// normal, bold, light, medium, semibold and black.
func ParseWeight(token string) (int, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	switch token {
	case "", "normal", "regular":
		return WeightNormal, nil
	case "light":
		return WeightLight, nil
	case "medium":
		return WeightMedium, nil
	case "semibold":
		return WeightSemibold, nil
	case "bold":
		return WeightBold, nil
	case "black", "heavy":
		return WeightBlack, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 1 || n > 1000 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeight, token)
	}
	return n, nil
}
