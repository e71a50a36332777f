package render

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/behind/scene"
)

var errEmptyImage = errors.New("decoded image is empty")

// drawImageLayer draws l's decoded image rotated about the layer center and
// stretched to the layer size. It reports false when the image is not ready.
func drawImageLayer(dst *Surface, l *scene.ImageLayer, store *scene.Store, interp draw.Interpolator) (bool, error) {
	if store == nil {
		return false, nil
	}
	res, ok := store.Get(l.ID)
	if !ok {
		return false, nil
	}
	img := res.Image()
	if img == nil {
		return false, nil
	}
	sr := img.Bounds()
	if sr.Empty() {
		return false, errEmptyImage
	}
	if l.Opacity <= 0 || l.Width == 0 || l.Height == 0 {
		return true, nil
	}

	m := imageMatrix(dst.Scale(), l, sr)
	s2d := f64.Aff3{m.A, m.B, m.C, m.D, m.E, m.F}

	var opts *draw.Options
	if l.Opacity < 1 {
		opts = &draw.Options{
			SrcMask: image.NewUniform(color.Alpha16{A: uint16(math.Round(l.Opacity * 0xffff))}),
		}
	}
	interp.Transform(dst.img, s2d, img, sr, draw.Over, opts)
	return true, nil
}

// imageMatrix maps source pixel coordinates of an image with bounds sr to
// device coordinates: stretch to the layer size, center on the origin,
// rotate, move to the layer center, then apply the surface scale.
func imageMatrix(scale float64, l *scene.ImageLayer, sr image.Rectangle) gg.Matrix {
	sw, sh := float64(sr.Dx()), float64(sr.Dy())
	return gg.Scale(scale, scale).
		Multiply(l.Frame().LocalToWorld()).
		Multiply(gg.Translate(-l.Width/2, -l.Height/2)).
		Multiply(gg.Scale(l.Width/sw, l.Height/sh)).
		Multiply(gg.Translate(-float64(sr.Min.X), -float64(sr.Min.Y)))
}
