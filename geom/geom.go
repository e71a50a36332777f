// Package geom provides the small amount of 2D geometry the compositor needs:
// axis-aligned and rotated rectangles in surface coordinates, point
// transforms between a layer's local frame and the surface, and canvas
// fitting.
//
// Coordinates follow the gg convention: origin at the top-left, X to the
// right, Y down. Rotations are given in degrees and are clockwise-positive on
// screen, which is what gg.Rotate produces in a Y-down space.
package geom

import (
	"math"

	"github.com/gogpu/gg"
)

// Epsilon is the tolerance used by containment tests so that points on an
// edge survive floating-point noise from sin/cos.
const Epsilon = 1e-9

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Rect is an axis-aligned rectangle with its top-left corner at (X, Y).
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p gg.Point) bool {
	return p.X >= r.X-Epsilon && p.X <= r.X+r.W+Epsilon &&
		p.Y >= r.Y-Epsilon && p.Y <= r.Y+r.H+Epsilon
}

// Inset returns r grown by d on every side (shrunk for negative d).
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, W: r.W + 2*d, H: r.H + 2*d}
}

// Center returns the center point of r.
func (r Rect) Center() gg.Point {
	return gg.Pt(r.X+r.W/2, r.Y+r.H/2)
}

// RotatedRect is a rectangle rotated about its own center. Rect holds the
// pre-rotation placement.
type RotatedRect struct {
	Rect
	Rotation float64 // degrees, clockwise
}

// LocalToWorld returns the matrix that maps the rectangle's centered local
// frame (origin at the center, axes aligned with the unrotated edges) to
// surface coordinates.
func (r RotatedRect) LocalToWorld() gg.Matrix {
	c := r.Center()
	return gg.Translate(c.X, c.Y).Multiply(gg.Rotate(Radians(r.Rotation)))
}

// ToLocal maps a surface point into the centered, unrotated local frame.
func (r RotatedRect) ToLocal(p gg.Point) gg.Point {
	return p.Sub(r.Center()).Rotate(-Radians(r.Rotation))
}

// Contains reports whether p lies inside the rotated rectangle. The point is
// moved into the local frame and tested against the half extents.
func (r RotatedRect) Contains(p gg.Point) bool {
	l := r.ToLocal(p)
	hw, hh := math.Abs(r.W)/2, math.Abs(r.H)/2
	return l.X >= -hw-Epsilon && l.X <= hw+Epsilon &&
		l.Y >= -hh-Epsilon && l.Y <= hh+Epsilon
}

// Corners returns the four corners of r grown by pad, in surface coordinates,
// in clockwise order starting from the local top-left.
func (r RotatedRect) Corners(pad float64) [4]gg.Point {
	m := r.LocalToWorld()
	hw, hh := r.W/2+pad, r.H/2+pad
	return [4]gg.Point{
		m.TransformPoint(gg.Pt(-hw, -hh)),
		m.TransformPoint(gg.Pt(hw, -hh)),
		m.TransformPoint(gg.Pt(hw, hh)),
		m.TransformPoint(gg.Pt(-hw, hh)),
	}
}

// FitWithin scales (w, h) down, preserving aspect ratio, until it fits inside
// (maxW, maxH). Sizes that already fit are returned unchanged. Results are
// rounded to whole pixels and never drop below 1.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	fw, fh := float64(w), float64(h)
	aspect := fw / fh
	if maxW > 0 && fw > float64(maxW) {
		fw = float64(maxW)
		fh = fw / aspect
	}
	if maxH > 0 && fh > float64(maxH) {
		fh = float64(maxH)
		fw = fh * aspect
	}
	return max(1, int(math.Round(fw))), max(1, int(math.Round(fh)))
}
