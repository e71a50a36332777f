package behind

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gg"

	"github.com/gogpu/behind/export"
	"github.com/gogpu/behind/hittest"
	"github.com/gogpu/behind/interact"
	"github.com/gogpu/behind/render"
	"github.com/gogpu/behind/scene"
	"github.com/gogpu/behind/segment"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	ed, err := New(solid(400, 300, color.Black), image.NewRGBA(image.Rect(0, 0, 400, 300)), opts...)
	require.NoError(t, err)
	return ed
}

func TestNewRequiresBaseImages(t *testing.T) {
	_, err := New(nil, solid(1, 1, color.White))
	assert.ErrorIs(t, err, ErrNoOriginal)
	_, err = New(solid(1, 1, color.White), nil)
	assert.ErrorIs(t, err, ErrNoForeground)
}

func TestCanvasFit(t *testing.T) {
	ed, err := New(solid(1600, 900, color.Black), solid(1600, 900, color.Transparent))
	require.NoError(t, err)
	w, h := ed.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 450, h)

	ed, err = New(solid(1600, 900, color.Black), solid(1600, 900, color.Transparent), WithMaxCanvas(0, 0))
	require.NoError(t, err)
	w, h = ed.Size()
	assert.Equal(t, 1600, w)
	assert.Equal(t, 900, h)
}

func TestRedrawAfterMutation(t *testing.T) {
	var redraws atomic.Int32
	var ed *Editor
	ed = newEditor(t, WithRedraw(func() {
		// The lock is released before the callback runs.
		_ = ed.Selection()
		redraws.Add(1)
	}))

	id := ed.AddText()
	assert.EqualValues(t, 1, redraws.Load())

	require.NoError(t, ed.UpdateText(id, scene.TextPatch{Content: scene.Ptr("HELLO")}))
	assert.EqualValues(t, 2, redraws.Load())

	err := ed.UpdateText(id, scene.TextPatch{Color: scene.Ptr("red")})
	assert.ErrorIs(t, err, scene.ErrInvalidColor)
	assert.EqualValues(t, 2, redraws.Load(), "rejected updates do not redraw")

	txt, ok := ed.Text(id)
	require.True(t, ok)
	assert.Equal(t, "HELLO", txt.Content)
	assert.Equal(t, "#ffffff", txt.Color)
}

func TestTextLifecycle(t *testing.T) {
	ed := newEditor(t)
	id := ed.AddText()
	sel := ed.Selection()
	assert.Equal(t, id, sel.TextID)
	assert.True(t, sel.TextEditorOpen)

	ed.CloseTextEditor()
	assert.False(t, ed.Selection().TextEditorOpen)
	assert.True(t, ed.OpenTextEditor())

	require.NoError(t, ed.DeleteText(id))
	assert.Empty(t, ed.Texts())
	assert.Equal(t, scene.Selection{}, ed.Selection())
	assert.ErrorIs(t, ed.DeleteText(id), scene.ErrNotFound)
	assert.False(t, ed.SelectText(id))
}

func TestBackgroundImageDecodeRedraws(t *testing.T) {
	ready := make(chan struct{}, 4)
	ed := newEditor(t, WithRedraw(func() { ready <- struct{}{} }))

	_, err := ed.AddBackgroundImage([]byte("not an image at all"))
	assert.ErrorIs(t, err, scene.ErrNotImage)
	assert.Empty(t, ed.BackgroundImages())

	id, err := ed.AddBackgroundImage(pngBytes(t, solid(8, 8, color.RGBA{R: 255, A: 255})))
	require.NoError(t, err)
	<-ready // mutation

	select {
	case <-ready: // decode
	case <-time.After(5 * time.Second):
		t.Fatal("no redraw after decode")
	}

	img, stats, err := ed.Preview(1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Images)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(100, 100))

	require.NoError(t, ed.UpdateBackgroundImage(id, scene.ImagePatch{Opacity: scene.Ptr(2.0)}))
	l, ok := ed.BackgroundImage(id)
	require.True(t, ok)
	assert.Equal(t, 1.0, l.Opacity)

	require.NoError(t, ed.DeleteBackgroundImage(id))
	assert.Empty(t, ed.BackgroundImages())
	assert.False(t, ed.Selection().ImageEditorOpen)
}

func TestPointerDrag(t *testing.T) {
	ed := newEditor(t)
	id := ed.AddText()
	txt, _ := ed.Text(id)

	hit := ed.PointerDown(txt.X+2, txt.Y-2)
	assert.Equal(t, hittest.Hit{Kind: hittest.Text, ID: id}, hit)
	assert.Equal(t, interact.DraggingText, ed.DragState())

	assert.Equal(t, interact.CursorGrabbing, ed.PointerMove(txt.X+12, txt.Y+8))
	ed.PointerUp(0, 0)
	moved, _ := ed.Text(id)
	assert.Equal(t, txt.X+10, moved.X)
	assert.Equal(t, txt.Y+10, moved.Y)
	assert.Equal(t, interact.Idle, ed.DragState())

	assert.Equal(t, interact.CursorCrosshair, ed.PointerMove(1, 299))
	ed.PointerDown(1, 299)
	assert.True(t, ed.Selection().None())
	ed.PointerLeave()
	assert.Equal(t, interact.CursorCrosshair, ed.Cursor())
}

func TestRedrawCallbackMayRenderOnAttach(t *testing.T) {
	var ed *Editor
	var redraws atomic.Int32
	ed = newEditor(t, WithRedraw(func() {
		_, _, err := ed.Preview(1)
		assert.NoError(t, err)
		redraws.Add(1)
	}))

	done := make(chan scene.ID, 1)
	go func() { done <- ed.AddBackgroundResource(scene.Loaded(solid(4, 4, color.White))) }()
	select {
	case id := <-done:
		_, ok := ed.BackgroundImage(id)
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("adding a decoded image blocked in the redraw callback")
	}
	assert.EqualValues(t, 1, redraws.Load())

	_, stats, err := ed.Preview(1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Images)
}

func TestDeleteKeyAndSelected(t *testing.T) {
	ed := newEditor(t)
	ed.AddText()
	assert.False(t, ed.KeyDown(interact.KeyDelete))
	ed.CloseTextEditor()
	assert.True(t, ed.KeyDown(interact.KeyDelete))
	assert.Empty(t, ed.Texts())

	res := scene.NewResource()
	id := ed.AddBackgroundResource(res)
	assert.True(t, ed.SelectBackgroundImage(id))
	assert.True(t, ed.OpenImageEditor())
	assert.True(t, ed.DeleteSelected())
	assert.Empty(t, ed.BackgroundImages())
	assert.False(t, ed.DeleteSelected())
}

func TestExportTriggersRedrawAndProgress(t *testing.T) {
	var mu sync.Mutex
	var steps []int
	var redraws atomic.Int32
	ed := newEditor(t,
		WithRedraw(func() { redraws.Add(1) }),
		WithExportOptions(export.WithProgress(func(p int) {
			mu.Lock()
			steps = append(steps, p)
			mu.Unlock()
		})),
	)
	ed.AddText()
	before := redraws.Load()

	art, err := ed.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 800, art.Width)
	assert.Equal(t, 600, art.Height)
	assert.Equal(t, before+1, redraws.Load(), "the pre-export render refreshes the view")
	assert.Equal(t, []int{0, 30, 50, 80, 90, 100}, steps)
	assert.Equal(t, 100, ed.ExportProgress())
	assert.False(t, ed.Exporting())

	decoded, err := png.Decode(bytes.NewReader(art.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), decoded.Bounds())
}

func TestExportUsesSnapshot(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	ed := newEditor(t, WithExportOptions(export.WithPreRender(func(context.Context) error {
		close(entered)
		<-release
		return nil
	})))
	id := ed.AddText()

	done := make(chan *export.Artifact, 1)
	go func() {
		art, err := ed.Export(context.Background())
		assert.NoError(t, err)
		done <- art
	}()
	<-entered

	// Editing is not blocked by the running export.
	require.NoError(t, ed.UpdateText(id, scene.TextPatch{X: scene.Ptr(-500.0)}))
	_, err := ed.Export(context.Background())
	assert.ErrorIs(t, err, export.ErrInProgress)
	close(release)

	art := <-done
	require.NotNil(t, art)
	assert.Equal(t, 1, art.Stats.Texts)
}

func TestPreviewOverlayOnlyWhenSelected(t *testing.T) {
	ed := newEditor(t)
	ed.AddText()
	withOverlay, _, err := ed.Preview(1)
	require.NoError(t, err)
	ed.ClearSelection()
	plain, _, err := ed.Preview(1)
	require.NoError(t, err)
	assert.NotEqual(t, withOverlay.Pix, plain.Pix)

	s := render.NewSurface(400, 300, 1)
	s.Release()
	_, err = ed.Render(s)
	assert.ErrorIs(t, err, render.ErrReleasedSurface)
}

func TestNewFromPhoto(t *testing.T) {
	photo := solid(40, 30, color.Black)
	for y := 10; y < 20; y++ {
		for x := 10; x < 30; x++ {
			photo.Set(x, y, color.White)
		}
	}
	ed, err := NewFromPhoto(context.Background(), photo, segment.Threshold{Level: 128})
	require.NoError(t, err)
	w, h := ed.Size()
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)
	fg := ed.Snapshot().Foreground
	assert.EqualValues(t, 0xffff, alphaOf(fg.At(15, 15)))
	assert.EqualValues(t, 0, alphaOf(fg.At(2, 2)))

	failing := segment.Func(func(context.Context, image.Image) (image.Image, error) {
		return nil, errors.New("model unavailable")
	})
	_, err = NewFromPhoto(context.Background(), photo, failing)
	assert.ErrorContains(t, err, "model unavailable")
	_, err = NewFromPhoto(context.Background(), photo, nil)
	assert.ErrorIs(t, err, ErrNoSegmenter)
}

func alphaOf(c color.Color) uint32 {
	_, _, _, a := c.RGBA()
	return a
}

func TestSetLogger(t *testing.T) {
	assert.NotNil(t, Logger())

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(l)
	assert.Same(t, l, Logger())
	assert.Same(t, l, gg.Logger(), "drawing logs go to the same logger")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(context.Background(), 0))
	assert.False(t, gg.Logger().Enabled(context.Background(), slog.LevelError))
}
