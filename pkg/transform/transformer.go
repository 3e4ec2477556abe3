// Package transform converts geometry between the three coordinate spaces of
// the placement engine.
//
// Real image space is the native pixel grid of the base image. Display space
// is the editing viewport, related to real space by ImageMetrics (scale plus
// centering offset). Normalized space expresses positions as fractions of a
// consuming canvas and sizes against a ReferenceFrame.
//
// The Real/Display pair needs ImageMetrics and is owned by a Transformer. The
// Normalized/Absolute pair is pure and needs only a canvas size and a frame.
// The two pairs are never mixed.
package transform

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/printzone/pkg/types"
)

// Transformer maps between real image pixels and display pixels.
// Until metrics are set every conversion returns its input unchanged.
type Transformer struct {
	metrics *types.ImageMetrics
	log     zerolog.Logger
}

// New creates a Transformer without metrics
func New() *Transformer {
	return &Transformer{log: log.With().Str("module", "transform").Logger()}
}

// NewWithMetrics creates a Transformer bound to m
func NewWithMetrics(m types.ImageMetrics) *Transformer {
	t := New()
	t.SetMetrics(m)
	return t
}

// SetMetrics binds the transformer to a loaded image layout
func (t *Transformer) SetMetrics(m types.ImageMetrics) {
	t.metrics = &m
}

// ClearMetrics drops the current layout, e.g. while a new base image decodes
func (t *Transformer) ClearMetrics() {
	t.metrics = nil
}

// Metrics returns the current layout and whether one is available
func (t *Transformer) Metrics() (types.ImageMetrics, bool) {
	if t.metrics == nil || t.metrics.DisplayScale <= 0 {
		return types.ImageMetrics{}, false
	}
	return *t.metrics, true
}

// Ready reports whether conversions are active
func (t *Transformer) Ready() bool {
	_, ok := t.Metrics()
	return ok
}

// PointToDisplay maps a real-space point to display space
func (t *Transformer) PointToDisplay(x, y float64) (float64, float64) {
	m, ok := t.Metrics()
	if !ok {
		t.warnPassthrough("point to display")
		return x, y
	}
	return x*m.DisplayScale + m.DisplayOffsetX, y*m.DisplayScale + m.DisplayOffsetY
}

// PointToReal maps a display-space point to real space
func (t *Transformer) PointToReal(x, y float64) (float64, float64) {
	m, ok := t.Metrics()
	if !ok {
		t.warnPassthrough("point to real")
		return x, y
	}
	return (x - m.DisplayOffsetX) / m.DisplayScale, (y - m.DisplayOffsetY) / m.DisplayScale
}

// ToDisplay maps a real-space rectangle to display space
func (t *Transformer) ToDisplay(r types.Rect) types.Rect {
	return t.ToDisplayScaled(r, 1, 1)
}

// ToDisplayScaled maps a real-space rectangle to display space, multiplying the
// size by an extra per-object scale applied by an interaction.
func (t *Transformer) ToDisplayScaled(r types.Rect, scaleX, scaleY float64) types.Rect {
	m, ok := t.Metrics()
	if !ok {
		t.warnPassthrough("rect to display")
		return r
	}
	return types.Rect{
		X:      r.X*m.DisplayScale + m.DisplayOffsetX,
		Y:      r.Y*m.DisplayScale + m.DisplayOffsetY,
		Width:  r.Width * m.DisplayScale * orOne(scaleX),
		Height: r.Height * m.DisplayScale * orOne(scaleY),
	}
}

// ToReal maps a display-space rectangle to real space
func (t *Transformer) ToReal(r types.Rect) types.Rect {
	return t.ToRealScaled(r, 1, 1)
}

// ToRealScaled maps a display-space rectangle whose base size is stretched by
// an interaction scale to real space. The returned size includes the scale.
func (t *Transformer) ToRealScaled(r types.Rect, scaleX, scaleY float64) types.Rect {
	m, ok := t.Metrics()
	if !ok {
		t.warnPassthrough("rect to real")
		return types.Rect{X: r.X, Y: r.Y, Width: r.Width * orOne(scaleX), Height: r.Height * orOne(scaleY)}
	}
	return types.Rect{
		X:      (r.X - m.DisplayOffsetX) / m.DisplayScale,
		Y:      (r.Y - m.DisplayOffsetY) / m.DisplayScale,
		Width:  r.Width * orOne(scaleX) / m.DisplayScale,
		Height: r.Height * orOne(scaleY) / m.DisplayScale,
	}
}

// ZoneToDisplay returns the display rectangle of a stored zone
func (t *Transformer) ZoneToDisplay(z types.Delimitation) types.Rect {
	return t.ToDisplay(z.Rect())
}

func (t *Transformer) warnPassthrough(op string) {
	t.log.Warn().Str("op", op).Msg("image metrics unavailable, returning input unchanged")
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
