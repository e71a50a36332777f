package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/draw"

	"github.com/gogpu/behind/fonts"
	"github.com/gogpu/behind/internal/cache"
	"github.com/gogpu/behind/internal/logx"
	"github.com/gogpu/behind/scene"
)

// Mode selects between the interactive preview and the export pass.
type Mode int

const (
	// Interactive draws selection overlays and resamples images with a
	// fast bilinear filter.
	Interactive Mode = iota
	// Export omits overlays and resamples with Catmull-Rom.
	Export
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Interactive:
		return "interactive"
	case Export:
		return "export"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) interpolator() draw.Interpolator {
	if m == Export {
		return draw.CatmullRom
	}
	return draw.ApproxBiLinear
}

func (m Mode) overlays() bool { return m == Interactive }

// Stats summarises one render.
type Stats struct {
	Images int // image layers drawn
	Texts  int // text layers drawn
	Absent int // image layers skipped because their image is not decoded
	Failed []*LayerError
}

// Err joins the per-layer failures, or returns nil.
func (s Stats) Err() error {
	errs := make([]error, len(s.Failed))
	for i, e := range s.Failed {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Renderer draws scenes. A Renderer holds no per-frame state and may be
// used from several goroutines at once.
type Renderer struct {
	fonts    *fonts.Registry
	outlines *cache.Cache[outlineKey, *text.GlyphOutline]
}

// New returns a renderer that resolves text layer fonts in reg. A nil reg
// selects fonts.Default.
func New(reg *fonts.Registry) *Renderer {
	if reg == nil {
		var err error
		if reg, err = fonts.Default(); err != nil {
			logx.Get().Error("render: default fonts unavailable", "err", err)
		}
	}
	return &Renderer{
		fonts:    reg,
		outlines: cache.New[outlineKey, *text.GlyphOutline](outlineCacheSize),
	}
}

// Fonts returns the registry used for text layers.
func (r *Renderer) Fonts() *fonts.Registry { return r.fonts }

// Render clears dst and paints sc onto it: the original image scaled to the
// surface, every decoded image layer, every text layer, then the foreground
// cutout scaled to the surface. The scene is only read.
//
// A missing base image is fatal. A layer that fails to draw is skipped and
// reported in Stats.Failed; image layers whose image is not yet decoded are
// skipped silently.
func (r *Renderer) Render(dst *Surface, sc *scene.Scene, mode Mode) (Stats, error) {
	var stats Stats
	if dst == nil || dst.Released() {
		return stats, ErrReleasedSurface
	}
	if sc == nil || sc.Original == nil || sc.Foreground == nil {
		return stats, ErrMissingBaseImage
	}
	start := time.Now()
	interp := mode.interpolator()

	dst.Clear(color.Transparent)
	drawBase(dst, sc.Original, interp)

	for _, l := range sc.Images {
		var drawn bool
		err := guard(func() (err error) {
			drawn, err = drawImageLayer(dst, l, sc.Store, interp)
			return err
		})
		switch {
		case err != nil:
			stats.fail(KindImage, l.ID, err)
			continue
		case drawn:
			stats.Images++
		default:
			stats.Absent++
			continue
		}
		if drawn && mode.overlays() && sc.Selection.ImageID == l.ID {
			if err := strokeSelection(dst, l.Frame().Corners(selectionPad)); err != nil {
				logx.Get().Debug("render: image selection overlay failed", "layer", l.ID, "err", err)
			}
		}
	}

	for _, t := range sc.Texts {
		var block fonts.Block
		err := guard(func() (err error) {
			block, err = r.drawTextLayer(dst, t)
			return err
		})
		if err != nil {
			stats.fail(KindText, t.ID, err)
			continue
		}
		stats.Texts++
		if mode.overlays() && sc.Selection.TextID == t.ID {
			if err := strokeSelection(dst, rectCorners(t.Bounds(block).Inset(selectionPad))); err != nil {
				logx.Get().Debug("render: text selection overlay failed", "layer", t.ID, "err", err)
			}
		}
	}

	drawBase(dst, sc.Foreground, interp)

	logx.Get().Debug("render: frame done",
		"mode", mode,
		"size", dst.Bounds().Size(),
		"images", stats.Images,
		"texts", stats.Texts,
		"absent", stats.Absent,
		"failed", len(stats.Failed),
		"outlines", r.outlines.Len(),
		"elapsed", time.Since(start))
	return stats, nil
}

func (s *Stats) fail(kind LayerKind, id scene.ID, err error) {
	le := &LayerError{Kind: kind, ID: id, Err: err}
	s.Failed = append(s.Failed, le)
	logx.Get().Warn("render: layer skipped", "kind", kind, "layer", id, "err", err)
}

// guard runs fn and converts a panic into an error, so one corrupt layer
// cannot take down the frame.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

// drawBase scales img over the whole surface.
func drawBase(dst *Surface, img image.Image, interp draw.Interpolator) {
	interp.Scale(dst.img, dst.img.Bounds(), img, img.Bounds(), draw.Over, nil)
}
