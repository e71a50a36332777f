package scene

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func newScene() *Scene {
	return New(solid(1600, 900, color.White), solid(1600, 900, color.Transparent))
}

func TestNewFitsCanvas(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{1600, 900, 800, 450},
		{600, 1200, 300, 600},
		{400, 300, 400, 300},
	}
	for _, tt := range tests {
		s := New(solid(tt.w, tt.h, color.White), nil)
		if s.Width != tt.wantW || s.Height != tt.wantH {
			t.Errorf("New(%dx%d) canvas = %dx%d, want %dx%d",
				tt.w, tt.h, s.Width, s.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestAddTextDefaults(t *testing.T) {
	s := newScene()
	tl := s.AddText()

	assert.Equal(t, "pov", tl.Content)
	assert.Equal(t, 400.0, tl.X)
	assert.Equal(t, 60.0, tl.Y)
	assert.Equal(t, 48.0, tl.FontSize)
	assert.Equal(t, "Arial, sans-serif", tl.FontFamily)
	assert.Equal(t, "400", tl.FontWeight)
	assert.Equal(t, "#ffffff", tl.Color)
	assert.Equal(t, 1.0, tl.Opacity)
	assert.Zero(t, tl.LetterSpacing)
	assert.Zero(t, tl.StrokeWidth)
	assert.Equal(t, "#000000", tl.StrokeColor)

	assert.Equal(t, tl.ID, s.Selection.TextID)
	assert.True(t, s.Selection.TextEditorOpen)
	assert.Empty(t, s.Selection.ImageID)
}

func TestTextIDsUnique(t *testing.T) {
	s := newScene()
	seen := make(map[ID]bool)
	for range 50 {
		id := s.AddText().ID
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, s.Texts, 50)
}

func TestUpdateText(t *testing.T) {
	s := newScene()
	tl := s.AddText()

	require.NoError(t, s.UpdateText(tl.ID, TextPatch{
		FontSize: Ptr(72.0),
		Color:    Ptr("#ff0000"),
		Opacity:  Ptr(1.5),
	}))
	assert.Equal(t, 72.0, tl.FontSize)
	assert.Equal(t, "#ff0000", tl.Color)
	assert.Equal(t, 1.0, tl.Opacity, "opacity is clamped")
	assert.Equal(t, "pov", tl.Content, "unset fields are kept")

	err := s.UpdateText(tl.ID, TextPatch{FontSize: Ptr(0.0), Content: Ptr("changed")})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, "pov", tl.Content, "a rejected patch writes nothing")

	assert.ErrorIs(t, s.UpdateText(tl.ID, TextPatch{Color: Ptr("red")}), ErrInvalidColor)
	assert.ErrorIs(t, s.UpdateText(tl.ID, TextPatch{FontWeight: Ptr("wide")}), ErrInvalidValue)
	assert.ErrorIs(t, s.UpdateText(tl.ID, TextPatch{X: Ptr(math.NaN())}), ErrInvalidValue)
	assert.ErrorIs(t, s.UpdateText("missing", TextPatch{}), ErrNotFound)
}

func TestDeleteTextClearsSelection(t *testing.T) {
	s := newScene()
	a := s.AddText()
	b := s.AddText()
	require.True(t, s.Selection.TextEditorOpen)

	require.NoError(t, s.DeleteText(b.ID))
	assert.Len(t, s.Texts, 1)
	assert.Equal(t, a.ID, s.Texts[0].ID)
	assert.True(t, s.Selection.None())
	assert.False(t, s.Selection.TextEditorOpen)

	assert.ErrorIs(t, s.DeleteText(b.ID), ErrNotFound)
}

func TestSelectionExclusive(t *testing.T) {
	s := newScene()
	tl := s.AddText()
	res := s.AddImageResource(Loaded(solid(4, 4, color.Black)))

	assert.Equal(t, res.ID, s.Selection.ImageID)
	assert.Empty(t, s.Selection.TextID)
	assert.False(t, s.Selection.TextEditorOpen)

	require.True(t, s.OpenImageEditor())
	s.SelectText(tl.ID)
	assert.Equal(t, tl.ID, s.Selection.TextID)
	assert.Empty(t, s.Selection.ImageID)
	assert.False(t, s.Selection.ImageEditorOpen)

	require.True(t, s.OpenTextEditor())
	s.SelectText(tl.ID)
	assert.True(t, s.Selection.TextEditorOpen, "reselecting the same layer keeps its editor")

	other := s.AddText()
	s.CloseTextEditor()
	s.SelectText(tl.ID)
	require.True(t, s.OpenTextEditor())
	s.SelectText(other.ID)
	assert.False(t, s.Selection.TextEditorOpen, "switching layers closes the editor")

	s.ClearSelection()
	assert.Equal(t, Selection{}, s.Selection)
	assert.False(t, s.OpenTextEditor())
	assert.False(t, s.OpenImageEditor())
}

func TestMoveUnclamped(t *testing.T) {
	s := newScene()
	tl := s.AddText()
	require.True(t, s.MoveText(tl.ID, -500, 5000))
	assert.Equal(t, -500.0, tl.X)
	assert.Equal(t, 5000.0, tl.Y)
	assert.False(t, s.MoveText("missing", 0, 0))

	l := s.AddImageResource(Loaded(solid(2, 2, color.Black)))
	require.True(t, s.MoveImage(l.ID, -1000, -1000))
	x, y := l.Position()
	assert.Equal(t, -1000.0, x)
	assert.Equal(t, -1000.0, y)
}

func TestAddImageDecodes(t *testing.T) {
	s := newScene()
	var (
		mu    sync.Mutex
		ready []ID
	)
	s.Store.SetOnReady(func(id ID, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.NoError(t, err)
		ready = append(ready, id)
	})

	l, err := s.AddImage(pngBytes(t, solid(10, 20, color.RGBA{R: 255, A: 255})))
	require.NoError(t, err)
	assert.Equal(t, 200.0, l.Width)
	assert.Equal(t, 200.0, l.Height)
	assert.Equal(t, 1.0, l.Opacity)
	assert.Zero(t, l.Rotation)
	assert.Equal(t, l.ID, s.Selection.ImageID)

	res, ok := s.Store.Get(l.ID)
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	img, err := res.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(10, 20), img.Bounds().Size())
	assert.True(t, res.Ready())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ID{l.ID}, ready)
}

func TestAddImageRejects(t *testing.T) {
	s := newScene()

	_, err := s.AddImage(nil)
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = s.AddImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrNotImage)

	big := make([]byte, MaxUploadBytes+1)
	copy(big, pngBytes(t, solid(1, 1, color.Black)))
	_, err = s.AddImage(big)
	assert.ErrorIs(t, err, ErrTooLarge)

	assert.Empty(t, s.Images)
	assert.Zero(t, s.Store.Len())
}

func TestDeleteImageReleases(t *testing.T) {
	s := newScene()
	l := s.AddImageResource(Loaded(solid(2, 2, color.Black)))
	require.True(t, s.OpenImageEditor())

	require.NoError(t, s.DeleteImage(l.ID))
	assert.Empty(t, s.Images)
	_, ok := s.Store.Get(l.ID)
	assert.False(t, ok)
	assert.True(t, s.Selection.None())
	assert.False(t, s.Selection.ImageEditorOpen)
}

func TestUpdateImage(t *testing.T) {
	s := newScene()
	l := s.AddImageResource(Loaded(solid(2, 2, color.Black)))

	require.NoError(t, s.UpdateImage(l.ID, ImagePatch{Rotation: Ptr(90.0), Opacity: Ptr(-1.0)}))
	assert.Equal(t, 90.0, l.Rotation)
	assert.Zero(t, l.Opacity)

	assert.ErrorIs(t, s.UpdateImage(l.ID, ImagePatch{Width: Ptr(-3.0)}), ErrInvalidValue)
	assert.Equal(t, 200.0, l.Width)
}

func TestResourceResolvesOnce(t *testing.T) {
	r := NewResource()
	assert.False(t, r.Ready())
	assert.Nil(t, r.Image())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	boom := errors.New("boom")
	r.Resolve(nil, boom)
	r.Resolve(solid(1, 1, color.Black), nil)
	assert.ErrorIs(t, r.Err(), boom)
	assert.Nil(t, r.Image())
	assert.False(t, r.Ready())
}

func TestReleasedResourceDoesNotNotify(t *testing.T) {
	st := NewStore()
	called := false
	st.SetOnReady(func(ID, error) { called = true })

	r := NewResource()
	st.Attach("a", r)
	st.Release("a")
	r.Resolve(solid(1, 1, color.Black), nil)
	assert.False(t, called)
}

func TestAttachResolvedDoesNotNotify(t *testing.T) {
	st := NewStore()
	called := 0
	st.SetOnReady(func(ID, error) { called++ })

	st.Attach("a", Loaded(solid(1, 1, color.Black)))
	assert.Zero(t, called, "resolved resources are ready on attach")

	pending := NewResource()
	st.Attach("b", pending)
	pending.Resolve(solid(1, 1, color.Black), nil)
	assert.Equal(t, 1, called)
}

func TestSnapshotIsolated(t *testing.T) {
	s := newScene()
	tl := s.AddText()
	snap := s.Snapshot()

	require.NoError(t, s.UpdateText(tl.ID, TextPatch{Content: Ptr("changed")}))
	s.AddText()

	require.Len(t, snap.Texts, 1)
	assert.Equal(t, "pov", snap.Texts[0].Content)
	assert.Same(t, s.Store, snap.Store)
}

func TestValidColor(t *testing.T) {
	for _, c := range []string{"#fff", "#ffff", "#a1B2c3", "#00000080"} {
		assert.True(t, ValidColor(c), c)
	}
	for _, c := range []string{"", "#", "fff", "#ff", "#ggg", "#12345"} {
		assert.False(t, ValidColor(c), c)
	}
}
