package transform

import (
	"math"

	"github.com/menta2k/printzone/pkg/types"
)

// UniformScale is the reference-to-canvas ratio applied to element sizes.
// It is uniform so elements never distort.
func UniformScale(canvas types.Dimensions, ref types.ReferenceFrame) float64 {
	ref = ref.OrDefault()
	return math.Min(canvas.Width/ref.ReferenceWidth, canvas.Height/ref.ReferenceHeight)
}

// PositionToAbsolute maps canvas fractions to canvas pixels. Positions are not
// multiplied by UniformScale: the fraction already encodes canvas placement.
func PositionToAbsolute(fx, fy float64, canvas types.Dimensions) (float64, float64) {
	return fx * canvas.Width, fy * canvas.Height
}

// PositionToNormalized maps canvas pixels to canvas fractions
func PositionToNormalized(x, y float64, canvas types.Dimensions) (float64, float64) {
	if !canvas.Valid() {
		return 0, 0
	}
	return x / canvas.Width, y / canvas.Height
}

// SizeToAbsolute maps reference-frame pixels to canvas pixels
func SizeToAbsolute(w, h float64, canvas types.Dimensions, ref types.ReferenceFrame) (float64, float64) {
	s := UniformScale(canvas, ref)
	return w * s, h * s
}

// SizeToReference maps canvas pixels back to reference-frame pixels
func SizeToReference(w, h float64, canvas types.Dimensions, ref types.ReferenceFrame) (float64, float64) {
	s := UniformScale(canvas, ref)
	if s == 0 {
		return 0, 0
	}
	return w / s, h / s
}
