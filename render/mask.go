package render

import (
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/gogpu/behind/geom"
)

// Selection overlay appearance, in logical pixels.
const (
	selectionPad       = 5
	selectionLineWidth = 2
	selectionDash      = 5
)

// selectionColor is #3b82f6 at 30% opacity.
var selectionColor = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 77}

// coverage rasterises with gg into an alpha mask over the device rectangle
// r. paint draws in opaque white with (0, 0) at r.Min. Only the alpha channel
// is read back.
func coverage(r image.Rectangle, paint func(dc *gg.Context) error) (*image.Alpha, error) {
	w, h := r.Dx(), r.Dy()
	pm := gg.NewPixmap(w, h)
	dc := gg.NewContext(w, h, gg.WithPixmap(pm))
	defer func() { _ = dc.Close() }()

	dc.SetRGBA(1, 1, 1, 1)
	if err := paint(dc); err != nil {
		return nil, err
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, err
	}

	mask := image.NewAlpha(r)
	data := pm.Data()
	for i := range mask.Pix {
		mask.Pix[i] = data[i*4+3]
	}
	return mask, nil
}

// composite paints c through mask onto dst.
func composite(dst *image.RGBA, mask *image.Alpha, c color.Color) {
	draw.DrawMask(dst, mask.Rect, image.NewUniform(c), image.Point{}, mask, mask.Rect.Min, draw.Over)
}

// deviceBounds returns the integer device rectangle covering pts grown by
// pad, clipped to clip.
func deviceBounds(pts []gg.Point, pad float64, clip image.Rectangle) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	r := image.Rect(
		int(math.Floor(minX-pad)), int(math.Floor(minY-pad)),
		int(math.Ceil(maxX+pad)), int(math.Ceil(maxY+pad)),
	)
	return r.Intersect(clip)
}

// strokeSelection draws the dashed selection outline through the logical
// points pts, closing the polygon.
func strokeSelection(dst *Surface, pts [4]gg.Point) error {
	s := dst.Scale()
	dev := make([]gg.Point, len(pts))
	for i, p := range pts {
		dev[i] = gg.Pt(p.X*s, p.Y*s)
	}
	lw := selectionLineWidth * s
	r := deviceBounds(dev, lw+1, dst.Bounds())
	if r.Empty() {
		return nil
	}
	off := gg.Pt(float64(r.Min.X), float64(r.Min.Y))
	mask, err := coverage(r, func(dc *gg.Context) error {
		dc.SetLineWidth(lw)
		dc.SetDash(selectionDash*s, selectionDash*s)
		for i, p := range dev {
			p = p.Sub(off)
			if i == 0 {
				dc.MoveTo(p.X, p.Y)
			} else {
				dc.LineTo(p.X, p.Y)
			}
		}
		dc.ClosePath()
		return dc.Stroke()
	})
	if err != nil {
		return err
	}
	composite(dst.img, mask, selectionColor)
	return nil
}

func rectCorners(r geom.Rect) [4]gg.Point {
	return [4]gg.Point{
		gg.Pt(r.X, r.Y),
		gg.Pt(r.X+r.W, r.Y),
		gg.Pt(r.X+r.W, r.Y+r.H),
		gg.Pt(r.X, r.Y+r.H),
	}
}

// layerColor parses a hex color and multiplies its alpha by opacity.
func layerColor(hex string, opacity float64) color.NRGBA {
	c := gg.Hex(hex)
	a := c.A * math.Max(0, math.Min(1, opacity))
	return color.NRGBA{
		R: uint8(math.Round(c.R * 255)),
		G: uint8(math.Round(c.G * 255)),
		B: uint8(math.Round(c.B * 255)),
		A: uint8(math.Round(a * 255)),
	}
}
