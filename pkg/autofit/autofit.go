package autofit

import (
	"math"

	"github.com/menta2k/printzone/pkg/types"
)

// DefaultPaddingFactor keeps a 5% margin on the limiting axis
const DefaultPaddingFactor = 0.95

// Fitter centers designs inside zones
type Fitter struct {
	config Config
}

// Config holds configuration for auto-fit
type Config struct {
	PaddingFactor  float64
	AllowUpscaling bool
}

// Placement is a design's display-space transform: a uniform scale applied to
// the design's natural size and the top-left corner of the scaled box.
type Placement struct {
	Scale  float64 `json:"scale"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the placed box
func (p Placement) Rect() types.Rect {
	return types.Rect{X: p.Left, Y: p.Top, Width: p.Width, Height: p.Height}
}

// New creates a new Fitter with default configuration
func New() *Fitter {
	return &Fitter{
		config: Config{
			PaddingFactor:  DefaultPaddingFactor,
			AllowUpscaling: true,
		},
	}
}

// NewWithConfig creates a new Fitter with custom configuration
func NewWithConfig(config Config) *Fitter {
	if config.PaddingFactor <= 0 || config.PaddingFactor > 1 {
		config.PaddingFactor = DefaultPaddingFactor
	}
	return &Fitter{config: config}
}

// PaddingFactor returns the configured padding factor
func (f *Fitter) PaddingFactor() float64 {
	return f.config.PaddingFactor
}

// Scale returns min(zoneW/designW, zoneH/designH) * paddingFactor.
// A design without area yields 0.
func (f *Fitter) Scale(zone types.Rect, design types.Dimensions) float64 {
	if !design.Valid() || zone.Width <= 0 || zone.Height <= 0 {
		return 0
	}
	scale := math.Min(zone.Width/design.Width, zone.Height/design.Height) * f.config.PaddingFactor
	if !f.config.AllowUpscaling && scale > 1 {
		scale = 1
	}
	return scale
}

// Fit centers a design of natural size inside a display-space zone
func (f *Fitter) Fit(zone types.Rect, design types.Dimensions) Placement {
	scale := f.Scale(zone, design)
	w := design.Width * scale
	h := design.Height * scale
	return Placement{
		Scale:  scale,
		Left:   zone.X + (zone.Width-w)/2,
		Top:    zone.Y + (zone.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// FitEstimate places a design whose natural size is not known yet. The design
// is assumed to share the zone's aspect ratio, so it fills the padded zone.
func (f *Fitter) FitEstimate(zone types.Rect) Placement {
	return f.Fit(zone, types.Dimensions{Width: zone.Width, Height: zone.Height})
}

// Precise centers an explicit target pixel size inside a zone's real
// coordinates. The target is reproduced exactly regardless of display zoom.
func (f *Fitter) Precise(zone types.Delimitation, target types.Dimensions) types.RealDesignPlacement {
	return Center(zone.Rect(), target)
}

// PreciseFit scales a design's true pixel size with the auto-fit rule against
// the zone's real size and centers the result in real coordinates.
func (f *Fitter) PreciseFit(zone types.Delimitation, natural types.Dimensions) (types.RealDesignPlacement, float64) {
	scale := f.Scale(zone.Rect(), natural)
	target := types.Dimensions{Width: natural.Width * scale, Height: natural.Height * scale}
	return Center(zone.Rect(), target), scale
}

// Center centers size inside rect
func Center(rect types.Rect, size types.Dimensions) types.RealDesignPlacement {
	cx, cy := rect.Center()
	left := cx - size.Width/2
	top := cy - size.Height/2
	return types.RealDesignPlacement{
		CenterX: cx,
		CenterY: cy,
		Left:    left,
		Top:     top,
		Right:   left + size.Width,
		Bottom:  top + size.Height,
	}
}
