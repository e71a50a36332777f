package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"

	"github.com/gogpu/behind/fonts"
	"github.com/gogpu/behind/scene"
)

// outlineCacheSize bounds the scaled glyph outlines kept per renderer.
const outlineCacheSize = 4096

// outlineKey identifies a glyph outline scaled to a pixel size.
type outlineKey struct {
	src  *text.FontSource
	gid  text.GlyphID
	size float64
}

// outline returns the outline of gid at size px, extracting it on a miss.
// Cached outlines are shared and must not be modified.
func (r *Renderer) outline(src *text.FontSource, ex *text.OutlineExtractor, gid text.GlyphID, size float64) (*text.GlyphOutline, error) {
	return r.outlines.GetOrCreate(outlineKey{src, gid, size}, func() (*text.GlyphOutline, error) {
		return ex.ExtractOutline(src.Parsed(), gid, size)
	})
}

// glyphSeg is one outline segment in device coordinates.
type glyphSeg struct {
	op  text.OutlineOp
	pts [3]gg.Point
}

// glyphPath is the outline of a laid-out line of text.
type glyphPath struct {
	segs []glyphSeg
	pts  []gg.Point // every point, for bounds
}

func (p *glyphPath) add(op text.OutlineOp, pts ...gg.Point) {
	var s glyphSeg
	s.op = op
	copy(s.pts[:], pts)
	p.segs = append(p.segs, s)
	p.pts = append(p.pts, pts...)
}

// replay emits the path into dc shifted by -off. Glyph contours are closed.
func (p *glyphPath) replay(dc *gg.Context, off gg.Point) {
	open := false
	for _, s := range p.segs {
		a, b, c := s.pts[0].Sub(off), s.pts[1].Sub(off), s.pts[2].Sub(off)
		switch s.op {
		case text.OutlineOpMoveTo:
			if open {
				dc.ClosePath()
			}
			dc.MoveTo(a.X, a.Y)
			open = true
		case text.OutlineOpLineTo:
			dc.LineTo(a.X, a.Y)
		case text.OutlineOpQuadTo:
			dc.QuadraticTo(a.X, a.Y, b.X, b.Y)
		case text.OutlineOpCubicTo:
			dc.CubicTo(a.X, a.Y, b.X, b.Y, c.X, c.Y)
		}
	}
	if open {
		dc.ClosePath()
	}
}

// drawTextLayer paints t line by line, stroke first then fill, and returns
// the measured block used for its selection overlay.
func (r *Renderer) drawTextLayer(dst *Surface, t *scene.TextLayer) (fonts.Block, error) {
	if r.fonts == nil {
		return fonts.Block{}, ErrNoFont
	}
	if !(t.FontSize > 0) {
		return fonts.Block{}, fmt.Errorf("%w: font size %v", scene.ErrInvalidValue, t.FontSize)
	}
	for _, c := range []string{t.Color, t.StrokeColor} {
		if !scene.ValidColor(c) {
			return fonts.Block{}, fmt.Errorf("%w: %q", scene.ErrInvalidColor, c)
		}
	}
	src := r.fonts.Source(t.FontFamily, t.FontWeight)
	if src == nil {
		return fonts.Block{}, ErrNoFont
	}

	block := r.fonts.MeasureText(t.Content, t.Style())
	fill := layerColor(t.Color, t.Opacity)
	stroke := layerColor(t.StrokeColor, t.Opacity)
	withStroke := t.StrokeWidth > 0

	s := dst.Scale()
	ex := text.NewOutlineExtractor()

	for i, line := range block.Lines {
		if len(line.Glyphs) == 0 {
			continue
		}
		baseline := t.Y + float64(i)*block.LineHeight
		var path glyphPath
		for _, g := range line.Glyphs {
			o, err := r.outline(src, ex, g.GID, t.FontSize*s)
			if err != nil {
				return block, fmt.Errorf("glyph %q: %w", g.Rune, err)
			}
			if o == nil {
				continue
			}
			origin := gg.Pt((t.X+g.X)*s, baseline*s)
			for _, seg := range o.Segments {
				switch seg.Op {
				case text.OutlineOpMoveTo, text.OutlineOpLineTo:
					path.add(seg.Op, origin.Add(outlinePt(seg.Points[0])))
				case text.OutlineOpQuadTo:
					path.add(seg.Op, origin.Add(outlinePt(seg.Points[0])), origin.Add(outlinePt(seg.Points[1])))
				case text.OutlineOpCubicTo:
					path.add(seg.Op, origin.Add(outlinePt(seg.Points[0])),
						origin.Add(outlinePt(seg.Points[1])), origin.Add(outlinePt(seg.Points[2])))
				}
			}
		}
		if len(path.segs) == 0 {
			continue
		}

		pad := 2.0
		if withStroke {
			pad += t.StrokeWidth * s
		}
		area := deviceBounds(path.pts, pad, dst.Bounds())
		if area.Empty() {
			continue
		}
		if withStroke {
			if err := paintPath(dst, area, &path, stroke, t.StrokeWidth*s); err != nil {
				return block, err
			}
		}
		if err := paintPath(dst, area, &path, fill, 0); err != nil {
			return block, err
		}
	}
	return block, nil
}

// paintPath fills path, or strokes it when width > 0, and composites the
// result in col.
func paintPath(dst *Surface, area image.Rectangle, path *glyphPath, col color.NRGBA, width float64) error {
	if col.A == 0 {
		return nil
	}
	off := gg.Pt(float64(area.Min.X), float64(area.Min.Y))
	mask, err := coverage(area, func(dc *gg.Context) error {
		path.replay(dc, off)
		if width > 0 {
			dc.SetLineWidth(width)
			dc.SetLineJoin(gg.LineJoinRound)
			return dc.Stroke()
		}
		dc.SetFillRule(gg.FillRuleNonZero)
		return dc.Fill()
	})
	if err != nil {
		return err
	}
	composite(dst.img, mask, col)
	return nil
}

func outlinePt(p text.OutlinePoint) gg.Point {
	return gg.Pt(float64(p.X), float64(p.Y))
}
