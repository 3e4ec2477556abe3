// Package replay turns stored design elements into absolute canvas geometry.
//
// Replay is the single function every rendering surface calls: the editor's
// live overlay, the preview widget and the export flattening pass. Surfaces
// differ only in the canvas dimensions they pass in.
//
// Positions are canvas fractions and are mapped with the raw fraction, while
// sizes are reference-frame pixels and are multiplied by the uniform
// reference-to-canvas scale. Elements are anchored at their center and rotate
// around it.
package replay

import (
	"math"

	"golang.org/x/image/math/f64"

	"github.com/menta2k/printzone/pkg/transform"
	"github.com/menta2k/printzone/pkg/types"
)

// Replay computes the absolute geometry of el on a canvas
func Replay(el types.DesignElement, canvas types.Dimensions, ref types.ReferenceFrame) types.AbsoluteGeometry {
	scale := transform.UniformScale(canvas, ref)
	x, y := transform.PositionToAbsolute(el.X, el.Y, canvas)
	w, h := transform.SizeToAbsolute(el.Width, el.Height, canvas, ref)

	g := types.AbsoluteGeometry{
		X:        x,
		Y:        y,
		Width:    w,
		Height:   h,
		Rotation: el.Rotation,
		Scale:    scale,
	}
	if el.Type == types.ElementText {
		g.FontSize = el.FontSize * scale
	}
	return g
}

// Normalize is the inverse of Replay: it stores absolute canvas geometry as a
// design element. Type-specific fields are copied from tmpl.
func Normalize(g types.AbsoluteGeometry, canvas types.Dimensions, ref types.ReferenceFrame, tmpl types.DesignElement) types.DesignElement {
	el := tmpl
	el.X, el.Y = transform.PositionToNormalized(g.X, g.Y, canvas)
	el.Width, el.Height = transform.SizeToReference(g.Width, g.Height, canvas, ref)
	el.Rotation = g.Rotation
	if el.Type == types.ElementText {
		if s := transform.UniformScale(canvas, ref); s > 0 {
			el.FontSize = g.FontSize / s
		}
	}
	return el
}

// FromPlacement builds an element centered on a real-space placement. The
// canvas is the base image at native resolution.
func FromPlacement(p types.RealDesignPlacement, rotation float64, canvas types.Dimensions, ref types.ReferenceFrame, tmpl types.DesignElement) types.DesignElement {
	return Normalize(types.AbsoluteGeometry{
		X:        p.CenterX,
		Y:        p.CenterY,
		Width:    p.Width(),
		Height:   p.Height(),
		Rotation: rotation,
	}, canvas, ref, tmpl)
}

// Point is a canvas coordinate
type Point struct {
	X float64
	Y float64
}

// Corners returns the rotated corners of g, clockwise from top-left
func Corners(g types.AbsoluteGeometry) [4]Point {
	sin, cos := math.Sincos(g.Rotation * math.Pi / 180)
	hw, hh := g.Width/2, g.Height/2
	local := [4]Point{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}

	var out [4]Point
	for i, p := range local {
		out[i] = Point{
			X: g.X + p.X*cos - p.Y*sin,
			Y: g.Y + p.X*sin + p.Y*cos,
		}
	}
	return out
}

// BoundingBox returns the axis-aligned box around the rotated element
func BoundingBox(g types.AbsoluteGeometry) types.Rect {
	c := Corners(g)
	minX, minY := c[0].X, c[0].Y
	maxX, maxY := minX, minY
	for _, p := range c[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return types.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Transform returns the source-to-canvas matrix for drawing a source raster of
// srcW x srcH pixels at g: scale to size, translate by -50%, rotate, then move
// to the element center.
func Transform(g types.AbsoluteGeometry, srcW, srcH float64) f64.Aff3 {
	sx, sy := 1.0, 1.0
	if srcW > 0 {
		sx = g.Width / srcW
	}
	if srcH > 0 {
		sy = g.Height / srcH
	}
	sin, cos := math.Sincos(g.Rotation * math.Pi / 180)
	hw, hh := g.Width/2, g.Height/2

	return f64.Aff3{
		cos * sx, -sin * sy, g.X - cos*hw + sin*hh,
		sin * sx, cos * sy, g.Y - sin*hw - cos*hh,
	}
}
