package behind

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gg"

	"github.com/gogpu/behind/export"
	"github.com/gogpu/behind/fonts"
	"github.com/gogpu/behind/hittest"
	"github.com/gogpu/behind/interact"
	"github.com/gogpu/behind/internal/logx"
	"github.com/gogpu/behind/render"
	"github.com/gogpu/behind/scene"
	"github.com/gogpu/behind/segment"
)

// Editor owns a scene and serialises every change to it.
type Editor struct {
	mu       sync.Mutex
	scene    *scene.Scene
	ctrl     *interact.Controller
	renderer *render.Renderer
	exporter *export.Exporter
	redraw   func()
}

// New returns an editor compositing text and images between original and
// its foreground cutout. The canvas is original fitted into 800x600 unless
// WithMaxCanvas says otherwise.
func New(original, foreground image.Image, opts ...Option) (*Editor, error) {
	if original == nil {
		return nil, ErrNoOriginal
	}
	if foreground == nil {
		return nil, ErrNoForeground
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.fonts == nil {
		reg, err := fonts.Default()
		if err != nil {
			return nil, fmt.Errorf("behind: load fonts: %w", err)
		}
		o.fonts = reg
	}

	e := &Editor{
		scene:    scene.NewWithLimits(original, foreground, o.maxW, o.maxH),
		renderer: render.New(o.fonts),
		redraw:   o.redraw,
	}
	e.ctrl = interact.New(e.scene, o.fonts)
	e.scene.Store.SetOnReady(func(id scene.ID, err error) {
		logx.Get().Debug("behind: layer image resolved", "layer", id, "err", err)
		e.requestRedraw()
	})

	exportOpts := append([]export.Option{
		export.WithPreRender(func(context.Context) error {
			e.requestRedraw()
			return nil
		}),
	}, o.exportOpts...)
	e.exporter = export.New(e.renderer, exportOpts...)

	logx.Get().Debug("behind: editor created", "width", e.scene.Width, "height", e.scene.Height)
	return e, nil
}

// NewFromPhoto segments photo with seg and returns an editor using photo as
// the original image and the segmenter's output as the foreground cutout.
func NewFromPhoto(ctx context.Context, photo image.Image, seg segment.Segmenter, opts ...Option) (*Editor, error) {
	if photo == nil {
		return nil, ErrNoOriginal
	}
	if seg == nil {
		return nil, ErrNoSegmenter
	}
	res := <-segment.Async(ctx, seg, photo)
	if res.Err != nil {
		return nil, fmt.Errorf("behind: segment photo: %w", res.Err)
	}
	return New(photo, res.Cutout, opts...)
}

// mutate runs fn under the lock and requests a redraw afterwards if fn
// reports a change.
func (e *Editor) mutate(fn func() bool) bool {
	e.mu.Lock()
	changed := fn()
	e.mu.Unlock()
	if changed {
		e.requestRedraw()
	}
	return changed
}

func (e *Editor) requestRedraw() {
	if e.redraw != nil {
		e.redraw()
	}
}

// Size returns the logical canvas size.
func (e *Editor) Size() (width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene.Width, e.scene.Height
}

// Fonts returns the font registry shared by rendering and hit-testing.
func (e *Editor) Fonts() *fonts.Registry { return e.renderer.Fonts() }

// Snapshot returns a copy of the scene that later edits do not affect.
func (e *Editor) Snapshot() *scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene.Snapshot()
}

// AddText adds a text layer with the default properties, selects it and
// opens the text editor.
func (e *Editor) AddText() scene.ID {
	var id scene.ID
	e.mutate(func() bool {
		id = e.scene.AddText().ID
		return true
	})
	return id
}

// Text returns a copy of a text layer.
func (e *Editor) Text(id scene.ID) (scene.TextLayer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.scene.Text(id); ok {
		return *t, true
	}
	return scene.TextLayer{}, false
}

// Texts returns copies of the text layers, bottom first.
func (e *Editor) Texts() []scene.TextLayer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]scene.TextLayer, len(e.scene.Texts))
	for i, t := range e.scene.Texts {
		out[i] = *t
	}
	return out
}

// UpdateText applies a partial update to a text layer.
func (e *Editor) UpdateText(id scene.ID, p scene.TextPatch) error {
	var err error
	e.mutate(func() bool {
		err = e.scene.UpdateText(id, p)
		return err == nil
	})
	return err
}

// DeleteText removes a text layer.
func (e *Editor) DeleteText(id scene.ID) error {
	var err error
	e.mutate(func() bool {
		err = e.scene.DeleteText(id)
		return err == nil
	})
	return err
}

// AddBackgroundImage validates an uploaded file and adds it as an image
// layer. The file decodes in the background; a redraw is requested when it
// is ready.
func (e *Editor) AddBackgroundImage(data []byte) (scene.ID, error) {
	var (
		id  scene.ID
		err error
	)
	e.mutate(func() bool {
		var l *scene.ImageLayer
		if l, err = e.scene.AddImage(data); err != nil {
			return false
		}
		id = l.ID
		return true
	})
	if err != nil {
		logx.Get().Warn("behind: upload rejected", "size", len(data), "err", err)
	}
	return id, err
}

// AddBackgroundResource adds an image layer backed by res.
func (e *Editor) AddBackgroundResource(res *scene.Resource) scene.ID {
	var id scene.ID
	e.mutate(func() bool {
		id = e.scene.AddImageResource(res).ID
		return true
	})
	return id
}

// BackgroundImage returns a copy of an image layer.
func (e *Editor) BackgroundImage(id scene.ID) (scene.ImageLayer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.scene.Image(id); ok {
		return *l, true
	}
	return scene.ImageLayer{}, false
}

// BackgroundImages returns copies of the image layers, bottom first.
func (e *Editor) BackgroundImages() []scene.ImageLayer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]scene.ImageLayer, len(e.scene.Images))
	for i, l := range e.scene.Images {
		out[i] = *l
	}
	return out
}

// UpdateBackgroundImage applies a partial update to an image layer.
func (e *Editor) UpdateBackgroundImage(id scene.ID, p scene.ImagePatch) error {
	var err error
	e.mutate(func() bool {
		err = e.scene.UpdateImage(id, p)
		return err == nil
	})
	return err
}

// DeleteBackgroundImage removes an image layer and releases its image.
func (e *Editor) DeleteBackgroundImage(id scene.ID) error {
	var err error
	e.mutate(func() bool {
		err = e.scene.DeleteImage(id)
		return err == nil
	})
	return err
}

// Selection returns the current selection and editor panel state.
func (e *Editor) Selection() scene.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene.Selection
}

// SelectText selects a text layer. It reports false for unknown IDs.
func (e *Editor) SelectText(id scene.ID) bool {
	return e.mutate(func() bool {
		if _, ok := e.scene.Text(id); !ok {
			return false
		}
		e.scene.SelectText(id)
		return true
	})
}

// SelectBackgroundImage selects an image layer. It reports false for
// unknown IDs.
func (e *Editor) SelectBackgroundImage(id scene.ID) bool {
	return e.mutate(func() bool {
		if _, ok := e.scene.Image(id); !ok {
			return false
		}
		e.scene.SelectImage(id)
		return true
	})
}

// ClearSelection deselects everything and closes both editors.
func (e *Editor) ClearSelection() {
	e.mutate(func() bool {
		e.scene.ClearSelection()
		return true
	})
}

// OpenTextEditor opens the text property editor for the selected text
// layer. It reports false when no text layer is selected.
func (e *Editor) OpenTextEditor() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene.OpenTextEditor()
}

// CloseTextEditor closes the text property editor.
func (e *Editor) CloseTextEditor() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene.CloseTextEditor()
}

// OpenImageEditor opens the image property editor for the selected image
// layer. It reports false when no image layer is selected.
func (e *Editor) OpenImageEditor() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene.OpenImageEditor()
}

// CloseImageEditor closes the image property editor.
func (e *Editor) CloseImageEditor() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene.CloseImageEditor()
}

// PointerDown handles a press at canvas coordinates (x, y).
func (e *Editor) PointerDown(x, y float64) hittest.Hit {
	var hit hittest.Hit
	e.mutate(func() bool {
		hit = e.ctrl.PointerDown(gg.Pt(x, y))
		return true
	})
	return hit
}

// PointerMove handles pointer motion and returns the cursor to display.
func (e *Editor) PointerMove(x, y float64) interact.Cursor {
	var cur interact.Cursor
	e.mutate(func() bool {
		changed := e.ctrl.PointerMove(gg.Pt(x, y))
		cur = e.ctrl.Cursor()
		return changed
	})
	return cur
}

// PointerUp ends a drag.
func (e *Editor) PointerUp(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctrl.PointerUp(gg.Pt(x, y))
}

// PointerLeave ends a drag when the pointer leaves the canvas.
func (e *Editor) PointerLeave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctrl.PointerLeave()
}

// Cursor returns the cursor for the last pointer position.
func (e *Editor) Cursor() interact.Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctrl.Cursor()
}

// DragState returns the interaction state.
func (e *Editor) DragState() interact.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctrl.State()
}

// KeyDown handles a key press and reports whether the scene changed.
func (e *Editor) KeyDown(k interact.Key) bool {
	return e.mutate(func() bool { return e.ctrl.KeyDown(k) })
}

// DeleteSelected removes the selected layer, text or image.
func (e *Editor) DeleteSelected() bool {
	return e.mutate(e.ctrl.Delete)
}

// Render draws the interactive view into dst.
func (e *Editor) Render(dst *render.Surface) (render.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderer.Render(dst, e.scene, render.Interactive)
}

// Preview renders the interactive view into a new image at the given scale
// of the logical canvas.
func (e *Editor) Preview(scale float64) (*image.RGBA, render.Stats, error) {
	w, h := e.Size()
	s := render.NewSurface(w, h, scale)
	stats, err := e.Render(s)
	if err != nil {
		return nil, stats, err
	}
	return s.Image(), stats, nil
}

// Export renders a high-resolution PNG of the scene as it is now. It
// returns export.ErrInProgress while another export runs.
func (e *Editor) Export(ctx context.Context) (*export.Artifact, error) {
	snap := e.Snapshot()
	return e.exporter.Export(ctx, snap)
}

// Exporting reports whether an export is running.
func (e *Editor) Exporting() bool { return e.exporter.Busy() }

// ExportProgress returns the progress of the current or last export.
func (e *Editor) ExportProgress() int { return e.exporter.Progress() }
