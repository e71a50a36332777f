package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/behind/render"
	"github.com/gogpu/behind/scene"
)

var (
	black = color.RGBA{A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
)

func fill(img *image.RGBA, r image.Rectangle, c color.Color) *image.RGBA {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func newScene(w, h int) *scene.Scene {
	bg := fill(image.NewRGBA(image.Rect(0, 0, w, h)), image.Rect(0, 0, w, h), black)
	return scene.New(bg, image.NewRGBA(image.Rect(0, 0, w, h)))
}

func decode(t *testing.T, a *Artifact) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(a.Data))
	require.NoError(t, err)
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

type recorder struct {
	mu    sync.Mutex
	steps []int
}

func (r *recorder) record(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, p)
}

func (r *recorder) get() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.steps...)
}

func TestExportDeterministic(t *testing.T) {
	sc := newScene(300, 200)
	sc.AddText()
	e := New(nil)

	a, err := e.Export(context.Background(), sc.Snapshot())
	require.NoError(t, err)
	b, err := e.Export(context.Background(), sc.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, 600, a.Width)
	assert.Equal(t, 400, a.Height)
	assert.Equal(t, a.Width, b.Width)
	assert.Equal(t, a.Height, b.Height)
	assert.Equal(t, image.Rect(0, 0, 600, 400), decode(t, a).Bounds())
	assert.True(t, bytes.Equal(a.Data, b.Data))
}

func TestProgressMilestones(t *testing.T) {
	var rec recorder
	hooked := false
	e := New(nil,
		WithProgress(rec.record),
		WithPreRender(func(context.Context) error {
			hooked = true
			assert.Equal(t, []int{0, 30}, rec.get())
			return errors.New("preview unavailable")
		}),
	)

	_, err := e.Export(context.Background(), newScene(50, 50))
	require.NoError(t, err, "a failing pre-render hook is not fatal")
	assert.True(t, hooked)
	assert.Equal(t, []int{0, 30, 50, 80, 90, 100}, rec.get())
	assert.Equal(t, 100, e.Progress())
	assert.False(t, e.Busy())
}

func TestMissingBaseImageIsFatal(t *testing.T) {
	var rec recorder
	e := New(nil, WithProgress(rec.record))

	sc := newScene(40, 40)
	sc.Foreground = nil
	a, err := e.Export(context.Background(), sc)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, render.ErrMissingBaseImage)
	assert.Equal(t, []int{0, 30, 50, 0}, rec.get())
	assert.Equal(t, 0, e.Progress())

	// The scene is untouched and the export can be retried.
	sc.Foreground = image.NewRGBA(image.Rect(0, 0, 40, 40))
	_, err = e.Export(context.Background(), sc)
	assert.NoError(t, err)
}

func TestSingleInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e := New(nil, WithPreRender(func(context.Context) error {
		close(entered)
		<-release
		return nil
	}))

	sc := newScene(20, 20)
	done := make(chan error, 1)
	go func() {
		_, err := e.Export(context.Background(), sc)
		done <- err
	}()

	<-entered
	assert.True(t, e.Busy())
	_, err := e.Export(context.Background(), sc)
	assert.ErrorIs(t, err, ErrInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.Busy())
}

func TestTimeoutTolerance(t *testing.T) {
	sc := newScene(100, 100)

	sc.AddImageResource(scene.NewResource()) // never resolves
	failing := scene.NewResource()
	sc.AddImageResource(failing)
	go failing.Resolve(nil, errors.New("corrupt"))

	late := scene.NewResource()
	lateLayer := sc.AddImageResource(late)
	require.NoError(t, sc.UpdateImage(lateLayer.ID, scene.ImagePatch{
		X: scene.Ptr(0.0), Y: scene.Ptr(0.0), Width: scene.Ptr(50.0), Height: scene.Ptr(100.0),
	}))
	go func() {
		time.Sleep(10 * time.Millisecond)
		late.Resolve(fill(image.NewRGBA(image.Rect(0, 0, 4, 4)), image.Rect(0, 0, 4, 4), red), nil)
	}()

	e := New(nil,
		WithPerImageTimeout(200*time.Millisecond),
		WithOverallTimeout(400*time.Millisecond),
	)
	start := time.Now()
	a, err := e.Export(context.Background(), sc.Snapshot())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	img := decode(t, a)
	assert.Equal(t, red, rgbaAt(img, 20, 100), "ready layers are drawn")
	assert.Equal(t, black, rgbaAt(img, 150, 100))
	assert.Equal(t, 1, a.Stats.Images)
	assert.Equal(t, 2, a.Stats.Absent)
}

func TestOverallTimeoutBoundsWaits(t *testing.T) {
	sc := newScene(10, 10)
	for range 3 {
		sc.AddImageResource(scene.NewResource())
	}
	e := New(nil,
		WithPerImageTimeout(time.Hour),
		WithOverallTimeout(100*time.Millisecond),
	)

	start := time.Now()
	_, err := e.Export(context.Background(), sc)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

// The foreground subject covers the left part of the canvas; enlarged text
// straddling its edge must be hidden on the subject and visible beside it.
func TestTextBehindSubject(t *testing.T) {
	const w, h = 400, 200
	fg := fill(image.NewRGBA(image.Rect(0, 0, w, h)), image.Rect(0, 0, 250, h), blue)
	bg := fill(image.NewRGBA(image.Rect(0, 0, w, h)), image.Rect(0, 0, w, h), black)
	sc := scene.New(bg, fg)

	tl := sc.AddText()
	sc.SelectText(tl.ID)
	require.NoError(t, sc.UpdateText(tl.ID, scene.TextPatch{FontSize: scene.Ptr(72.0)}))

	a, err := New(nil).Export(context.Background(), sc.Snapshot())
	require.NoError(t, err)
	img := decode(t, a)

	// Text rows at 2x: baseline 60 -> 120, glyphs above it.
	visible := 0
	for y := 20; y < 150; y++ {
		for x := 0; x < 490; x++ {
			require.Equal(t, blue, rgbaAt(img, x, y), "subject is opaque over the text at (%d,%d)", x, y)
		}
		for x := 500; x < 800; x++ {
			c := rgbaAt(img, x, y)
			if c.R > 200 && c.G > 200 && c.B > 200 {
				visible++
			}
		}
	}
	assert.Positive(t, visible, "text is visible beside the subject")
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.FixedZone("X", 3600))
	assert.Equal(t, "text-behind-image-2024-03-09T13-05-07.png", FileName(ts))

	e := New(nil, WithClock(func() time.Time { return ts }))
	a, err := e.Export(context.Background(), newScene(4, 4))
	require.NoError(t, err)
	assert.Equal(t, "text-behind-image-2024-03-09T13-05-07.png", a.Name)
}

func TestWithScale(t *testing.T) {
	e := New(nil, WithScale(1), WithScale(-3))
	a, err := e.Export(context.Background(), newScene(30, 20))
	require.NoError(t, err)
	assert.Equal(t, 30, a.Width)
	assert.Equal(t, 20, a.Height)
}

func TestArtifactBestCompression(t *testing.T) {
	assert.Equal(t, png.BestCompression, pngEncoder.CompressionLevel)

	a, err := New(nil).Export(context.Background(), newScene(120, 80))
	require.NoError(t, err)
	img := decode(t, a)
	assert.Equal(t, image.Rect(0, 0, 240, 160), img.Bounds())

	var fast bytes.Buffer
	require.NoError(t, (&png.Encoder{CompressionLevel: png.BestSpeed}).Encode(&fast, img))
	assert.LessOrEqual(t, len(a.Data), fast.Len())
}
