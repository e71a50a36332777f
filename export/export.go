// Package export produces the final high-resolution composite.
//
// An export waits (bounded) for image layers that are still decoding,
// re-renders the scene at twice the interactive resolution without
// selection overlays, and encodes it as PNG. Progress is reported at fixed
// milestones:
//
//	0   work started
//	30  asset waits resolved
//	50  pre-export render issued
//	80  final draw complete
//	90  encoding complete
//	100 done
//
// A fatal failure resets progress to 0. Layers that fail to decode, time
// out, or fail to draw are left out of the composite and never abort it.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/behind/internal/logx"
	"github.com/gogpu/behind/render"
	"github.com/gogpu/behind/scene"
)

// Progress milestones.
const (
	ProgressStarted  = 0
	ProgressAssets   = 30
	ProgressPreview  = 50
	ProgressDrawn    = 80
	ProgressEncoded  = 90
	ProgressFinished = 100
)

// Defaults.
const (
	DefaultScale        = 2
	DefaultPerImageWait = 5 * time.Second
	DefaultOverallWait  = 10 * time.Second
	FilePrefix          = "text-behind-image-"
	FileExt             = ".png"
	timestampLayout     = "2006-01-02T15-04-05"
)

// ErrInProgress is returned when an export is requested while another one
// is still running.
var ErrInProgress = errors.New("export: an export is already in progress")

// Exports trade encode time for smaller files.
var pngEncoder = png.Encoder{CompressionLevel: png.BestCompression}

// Artifact is an encoded composite ready to be saved or downloaded.
type Artifact struct {
	Name   string // text-behind-image-<timestamp>.png
	Data   []byte // PNG
	Width  int    // pixels
	Height int    // pixels
	Stats  render.Stats
}

// Exporter runs exports one at a time. It is safe for concurrent use.
type Exporter struct {
	renderer  *render.Renderer
	scale     float64
	perImage  time.Duration
	overall   time.Duration
	onChange  func(int)
	now       func() time.Time
	preRender func(context.Context) error

	busy     atomic.Bool
	progress atomic.Int32
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithScale sets the linear scale of the export surface relative to the
// scene's logical size.
func WithScale(s float64) Option {
	return func(e *Exporter) {
		if s > 0 {
			e.scale = s
		}
	}
}

// WithPerImageTimeout bounds the wait for each decoding image layer.
func WithPerImageTimeout(d time.Duration) Option {
	return func(e *Exporter) { e.perImage = d }
}

// WithOverallTimeout bounds the wait for all decoding image layers.
func WithOverallTimeout(d time.Duration) Option {
	return func(e *Exporter) { e.overall = d }
}

// WithProgress registers fn to receive every progress change.
func WithProgress(fn func(percent int)) Option {
	return func(e *Exporter) { e.onChange = fn }
}

// WithClock sets the time source used to name artifacts.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithPreRender registers a hook run after the asset wait, before the
// export render. Hosts use it to refresh the interactive view with the
// newly decoded images. An error from fn is logged and ignored.
func WithPreRender(fn func(context.Context) error) Option {
	return func(e *Exporter) { e.preRender = fn }
}

// New returns an exporter drawing with r.
func New(r *render.Renderer, opts ...Option) *Exporter {
	e := &Exporter{
		renderer: r,
		scale:    DefaultScale,
		perImage: DefaultPerImageWait,
		overall:  DefaultOverallWait,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.renderer == nil {
		e.renderer = render.New(nil)
	}
	return e
}

// Busy reports whether an export is running.
func (e *Exporter) Busy() bool { return e.busy.Load() }

// Progress returns the last reported progress.
func (e *Exporter) Progress() int { return int(e.progress.Load()) }

// Export renders sc and encodes it. sc must not be mutated while Export
// runs; callers pass a snapshot. A concurrent call returns ErrInProgress
// without side effects. The scene is never modified, so a failed export can
// simply be retried.
func (e *Exporter) Export(ctx context.Context, sc *scene.Scene) (*Artifact, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer e.busy.Store(false)

	start := time.Now()
	e.report(ProgressStarted)
	logx.Get().Info("export: started", "texts", len(sc.Texts), "images", len(sc.Images))

	e.waitAssets(ctx, sc)
	e.report(ProgressAssets)

	if e.preRender != nil {
		if err := e.preRender(ctx); err != nil {
			logx.Get().Warn("export: pre-render hook failed", "err", err)
		}
	}
	e.report(ProgressPreview)

	surface := render.NewSurface(sc.Width, sc.Height, e.scale)
	defer surface.Release()

	stats, err := e.renderer.Render(surface, sc, render.Export)
	if err != nil {
		return nil, e.fail(fmt.Errorf("export: render: %w", err))
	}
	e.report(ProgressDrawn)

	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, surface.Image()); err != nil {
		return nil, e.fail(fmt.Errorf("export: encode: %w", err))
	}
	e.report(ProgressEncoded)

	b := surface.Bounds()
	a := &Artifact{
		Name:   FileName(e.now()),
		Data:   buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
		Stats:  stats,
	}
	e.report(ProgressFinished)
	logx.Get().Info("export: finished",
		"name", a.Name,
		"size", len(a.Data),
		"width", a.Width,
		"height", a.Height,
		"skipped", len(stats.Failed),
		"absent", stats.Absent,
		"elapsed", time.Since(start))
	return a, nil
}

// waitAssets waits for every image layer whose image is still decoding.
// Each wait is bounded by the per-image timeout and all of them together by
// the overall timeout. Failures only mean the layer is drawn as absent.
func (e *Exporter) waitAssets(ctx context.Context, sc *scene.Scene) {
	if sc.Store == nil || len(sc.Images) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.overall)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range sc.Images {
		res, ok := sc.Store.Get(l.ID)
		if !ok {
			continue
		}
		select {
		case <-res.Done():
			continue
		default:
		}
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(gctx, e.perImage)
			defer cancel()
			if _, err := res.Wait(wctx); err != nil {
				logx.Get().Warn("export: image layer left out", "layer", l.ID, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Exporter) report(p int) {
	e.progress.Store(int32(p))
	if e.onChange != nil {
		e.onChange(p)
	}
}

func (e *Exporter) fail(err error) error {
	logx.Get().Error("export: failed", "err", err)
	e.report(ProgressStarted)
	return err
}

// FileName returns the artifact name for an export made at t, using the
// UTC timestamp with ':' and '.' replaced so it is safe on every file
// system: text-behind-image-2024-01-02T03-04-05.png.
func FileName(t time.Time) string {
	return FilePrefix + t.UTC().Format(timestampLayout) + FileExt
}
