package delimitation

import (
	"github.com/menta2k/printzone/pkg/types"
)

// EventKind names a shape interaction
type EventKind string

const (
	EventMoving   EventKind = "moving"
	EventScaling  EventKind = "scaling"
	EventRotating EventKind = "rotating"
	EventModified EventKind = "modified"
)

// ShapeGeometry is the display-space state of a manipulable rectangle.
// Width and Height are the base size; ScaleX and ScaleY stretch it.
type ShapeGeometry struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
	ScaleX float64
	ScaleY float64
	Angle  float64
}

// Rect returns the base rectangle without the interaction scale
func (g ShapeGeometry) Rect() types.Rect {
	return types.Rect{X: g.Left, Y: g.Top, Width: g.Width, Height: g.Height}
}

// Shape is a manipulable rectangle owned by some retained-mode canvas, an SVG
// editor or a headless harness. The controller only reads and writes its
// geometry, toggles its lock and listens for modifications.
type Shape interface {
	Geometry() ShapeGeometry
	SetGeometry(ShapeGeometry)
	SetLocked(bool)
	OnModify(func(EventKind))
	Remove()
}

// ShapeFactory creates a shape for a display rectangle
type ShapeFactory func(types.Rect) Shape

// HeadlessRect is a Shape without a canvas
type HeadlessRect struct {
	geom     ShapeGeometry
	locked   bool
	removed  bool
	handlers []func(EventKind)
}

// NewHeadlessRect creates a headless shape at r
func NewHeadlessRect(r types.Rect) Shape {
	return &HeadlessRect{geom: ShapeGeometry{Left: r.X, Top: r.Y, Width: r.Width, Height: r.Height, ScaleX: 1, ScaleY: 1}}
}

func (h *HeadlessRect) Geometry() ShapeGeometry     { return h.geom }
func (h *HeadlessRect) SetGeometry(g ShapeGeometry) { h.geom = g }
func (h *HeadlessRect) SetLocked(locked bool)       { h.locked = locked }
func (h *HeadlessRect) OnModify(fn func(EventKind)) { h.handlers = append(h.handlers, fn) }
func (h *HeadlessRect) Remove()                     { h.removed = true; h.handlers = nil }

// Locked reports whether interactions are disabled
func (h *HeadlessRect) Locked() bool { return h.locked }

// Removed reports whether the shape was taken off its canvas
func (h *HeadlessRect) Removed() bool { return h.removed }

// Move drags the shape by (dx, dy). Locked shapes ignore it.
func (h *HeadlessRect) Move(dx, dy float64) {
	if h.locked || h.removed {
		return
	}
	h.geom.Left += dx
	h.geom.Top += dy
	h.fire(EventMoving)
	h.fire(EventModified)
}

// Scale stretches the shape by (sx, sy) around its top-left corner
func (h *HeadlessRect) Scale(sx, sy float64) {
	if h.locked || h.removed {
		return
	}
	h.geom.ScaleX *= sx
	h.geom.ScaleY *= sy
	h.fire(EventScaling)
	h.fire(EventModified)
}

// Rotate sets the shape angle in degrees
func (h *HeadlessRect) Rotate(angle float64) {
	if h.locked || h.removed {
		return
	}
	h.geom.Angle = angle
	h.fire(EventRotating)
	h.fire(EventModified)
}

func (h *HeadlessRect) fire(kind EventKind) {
	for _, fn := range h.handlers {
		fn(kind)
	}
}
