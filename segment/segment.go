// Package segment is the boundary to the subject segmentation step that
// turns a photo into a foreground cutout with a transparent background.
//
// Real segmentation models live outside this module; a host plugs one in
// through the Segmenter interface. Two simple implementations are provided:
// Mask applies a precomputed matte, and Threshold derives one from image
// luminance, which is enough for studio shots on a plain backdrop and for
// tests.
package segment

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"

	"github.com/gogpu/behind/internal/logx"
)

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("segment: empty image")

// Segmenter produces a foreground cutout of img. The returned image has the
// same bounds as img and is transparent wherever the background was.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (image.Image, error)
}

// Func adapts a function to a Segmenter.
type Func func(ctx context.Context, img image.Image) (image.Image, error)

// Segment calls f.
func (f Func) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

// Result is the outcome of an asynchronous segmentation.
type Result struct {
	Cutout image.Image
	Err    error
}

// Async runs s on its own goroutine. The returned channel receives exactly
// one Result and is then closed. If ctx ends first, the Result carries
// ctx.Err() and the segmenter's late answer is dropped.
func Async(ctx context.Context, s Segmenter, img image.Image) <-chan Result {
	out := make(chan Result, 1)
	done := make(chan Result, 1)
	go func() {
		cut, err := s.Segment(ctx, img)
		done <- Result{Cutout: cut, Err: err}
	}()
	go func() {
		defer close(out)
		select {
		case r := <-done:
			out <- r
		case <-ctx.Done():
			logx.Get().Warn("segment: cancelled", "err", ctx.Err())
			out <- Result{Err: ctx.Err()}
		}
	}()
	return out
}

// Mask is a Segmenter that applies a fixed matte. Where the matte is opaque
// its luminance becomes the cutout's alpha; elsewhere its own alpha does. A
// matte of a different size is stretched to the photo.
type Mask struct {
	Matte image.Image
}

// Segment applies m.Matte to img.
func (m Mask) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ApplyMatte(img, m.Matte)
}

// Threshold is a Segmenter that keeps pixels whose luminance is at least
// Level, or below it when Invert is set. Feather blurs the matte edge by the
// given radius in pixels.
type Threshold struct {
	Level   uint8
	Invert  bool
	Feather float64
}

// Segment derives a matte from img and applies it.
func (t Threshold) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	gray := segment.Threshold(img, t.Level)
	if t.Invert {
		for i, v := range gray.Pix {
			gray.Pix[i] = 255 - v
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matte image.Image = gray
	if t.Feather > 0 {
		matte = blur.Gaussian(gray, t.Feather)
	}
	return ApplyMatte(img, matte)
}

// ApplyMatte returns a copy of img whose alpha is multiplied by the matte's
// coverage.
func ApplyMatte(img, matte image.Image) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Empty() || matte == nil || matte.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if matte.Bounds().Size() != b.Size() {
		matte = transform.Resize(matte, b.Dx(), b.Dy(), transform.Linear)
	}
	mb := matte.Bounds()

	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			cov := coverage(matte.At(mb.Min.X+x, mb.Min.Y+y))
			i := out.PixOffset(x, y) + 3
			out.Pix[i] = uint8(uint32(out.Pix[i]) * cov / 0xffff)
		}
	}
	return out, nil
}

// coverage reads a matte sample: luminance for gray images and opaque
// pixels, alpha otherwise.
func coverage(c color.Color) uint32 {
	switch v := c.(type) {
	case color.Gray:
		return uint32(v.Y) * 0x101
	case color.Gray16:
		return uint32(v.Y)
	}
	r, g, b, a := c.RGBA()
	if a == 0xffff {
		return (19595*r + 38470*g + 7471*b + 1<<15) >> 16
	}
	return a
}
