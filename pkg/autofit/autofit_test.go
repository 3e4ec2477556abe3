package autofit

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/menta2k/printzone/pkg/types"
)

const eps = 1e-9

func TestNew(t *testing.T) {
	f := New()
	if f == nil {
		t.Fatal("New() returned nil")
	}
	if f.PaddingFactor() != DefaultPaddingFactor {
		t.Errorf("Expected padding %f, got %f", DefaultPaddingFactor, f.PaddingFactor())
	}
	if !f.config.AllowUpscaling {
		t.Error("Expected AllowUpscaling to be true by default")
	}
}

func TestNewWithConfigRejectsBadPadding(t *testing.T) {
	f := NewWithConfig(Config{PaddingFactor: 1.5})
	if f.PaddingFactor() != DefaultPaddingFactor {
		t.Errorf("Expected out-of-range padding to fall back, got %f", f.PaddingFactor())
	}
}

func TestFitCentersDesign(t *testing.T) {
	f := New()
	p := f.Fit(types.Rect{X: 100, Y: 50, Width: 300, Height: 300}, types.Dimensions{Width: 150, Height: 80})

	if !scalar.EqualWithinAbs(p.Scale, 1.9, eps) {
		t.Errorf("Expected scale 1.9, got %f", p.Scale)
	}
	if !scalar.EqualWithinAbs(p.Left, 107.5, eps) || !scalar.EqualWithinAbs(p.Top, 124, eps) {
		t.Errorf("Expected top-left (107.5,124), got (%f,%f)", p.Left, p.Top)
	}
	if !scalar.EqualWithinAbs(p.Width, 285, eps) || !scalar.EqualWithinAbs(p.Height, 152, eps) {
		t.Errorf("Expected 285x152, got %fx%f", p.Width, p.Height)
	}
}

func TestFitContainment(t *testing.T) {
	f := New()
	zones := []types.Rect{
		{X: 0, Y: 0, Width: 300, Height: 300},
		{X: 10, Y: 20, Width: 50, Height: 400},
		{X: -30, Y: 5, Width: 1000, Height: 12},
	}
	designs := []types.Dimensions{
		{Width: 150, Height: 80},
		{Width: 1, Height: 1000},
		{Width: 4000, Height: 4000},
		{Width: 33, Height: 7},
	}

	for _, z := range zones {
		cx, cy := z.Center()
		padded := types.Rect{
			X:      cx - z.Width*f.PaddingFactor()/2,
			Y:      cy - z.Height*f.PaddingFactor()/2,
			Width:  z.Width * f.PaddingFactor(),
			Height: z.Height * f.PaddingFactor(),
		}
		for _, d := range designs {
			p := f.Fit(z, d).Rect()
			if p.X < padded.X-eps || p.Y < padded.Y-eps || p.Right() > padded.Right()+eps || p.Bottom() > padded.Bottom()+eps {
				t.Errorf("placement %+v escapes padded zone %+v for design %+v", p, padded, d)
			}
		}
	}
}

func TestFitScaleMonotonicInWidth(t *testing.T) {
	f := New()
	design := types.Dimensions{Width: 200, Height: 120}
	prev := 0.0
	for w := 10.0; w <= 2000; w += 37 {
		s := f.Fit(types.Rect{Width: w, Height: 300}, design).Scale
		if s < prev {
			t.Fatalf("scale decreased from %f to %f at width %f", prev, s, w)
		}
		prev = s
	}
}

func TestFitDegenerateDesign(t *testing.T) {
	f := New()
	p := f.Fit(types.Rect{X: 0, Y: 0, Width: 100, Height: 100}, types.Dimensions{})
	if p.Scale != 0 || p.Width != 0 {
		t.Errorf("Expected zero placement, got %+v", p)
	}
	if p.Left != 50 || p.Top != 50 {
		t.Errorf("Expected degenerate placement at zone center, got (%f,%f)", p.Left, p.Top)
	}
}

func TestFitWithoutUpscaling(t *testing.T) {
	f := NewWithConfig(Config{PaddingFactor: 0.95, AllowUpscaling: false})
	p := f.Fit(types.Rect{Width: 1000, Height: 1000}, types.Dimensions{Width: 10, Height: 10})
	if p.Scale != 1 {
		t.Errorf("Expected scale capped at 1, got %f", p.Scale)
	}
}

func TestFitEstimate(t *testing.T) {
	f := New()
	p := f.FitEstimate(types.Rect{X: 0, Y: 0, Width: 200, Height: 100})
	if !scalar.EqualWithinAbs(p.Width, 190, eps) || !scalar.EqualWithinAbs(p.Height, 95, eps) {
		t.Errorf("Expected 190x95 estimate, got %fx%f", p.Width, p.Height)
	}
}

func TestPreciseKeepsTargetSize(t *testing.T) {
	f := New()
	zone := types.Delimitation{X: 0, Y: 0, Width: 300, Height: 300}
	p := f.Precise(zone, types.Dimensions{Width: 150, Height: 80})

	if p.CenterX != 150 || p.CenterY != 150 {
		t.Errorf("Expected center (150,150), got (%f,%f)", p.CenterX, p.CenterY)
	}
	if p.Left != 75 || p.Top != 110 || p.Right != 225 || p.Bottom != 190 {
		t.Errorf("Unexpected placement %+v", p)
	}
	if p.Width() != 150 || p.Height() != 80 {
		t.Errorf("Expected exact 150x80, got %fx%f", p.Width(), p.Height())
	}
}

func TestPreciseFitScenario(t *testing.T) {
	f := New()
	zone := types.Delimitation{X: 0, Y: 0, Width: 300, Height: 300}
	p, scale := f.PreciseFit(zone, types.Dimensions{Width: 150, Height: 80})

	if !scalar.EqualWithinAbs(scale, 1.9, eps) {
		t.Errorf("Expected scale 1.9, got %f", scale)
	}
	if !scalar.EqualWithinAbs(p.Left, 7.5, eps) || !scalar.EqualWithinAbs(p.Top, 74, eps) {
		t.Errorf("Expected top-left (7.5,74), got (%f,%f)", p.Left, p.Top)
	}
	if !scalar.EqualWithinAbs(p.Width(), 285, eps) || !scalar.EqualWithinAbs(p.Height(), 152, eps) {
		t.Errorf("Expected 285x152, got %fx%f", p.Width(), p.Height())
	}
}

func BenchmarkFit(b *testing.B) {
	f := New()
	zone := types.Rect{X: 10, Y: 10, Width: 640, Height: 480}
	design := types.Dimensions{Width: 1920, Height: 1080}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(zone, design)
	}
}
