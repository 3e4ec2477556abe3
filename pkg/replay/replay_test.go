package replay

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/menta2k/printzone/pkg/types"
)

const eps = 1e-9

func TestReplayFormula(t *testing.T) {
	el := types.DesignElement{Type: types.ElementImage, X: 0.5, Y: 0.25, Width: 200, Height: 100, Rotation: 30}
	ref := types.ReferenceFrame{ReferenceWidth: 400, ReferenceHeight: 400}

	g := Replay(el, types.Dimensions{Width: 800, Height: 1200}, ref)

	// scale = min(800/400, 1200/400) = 2; position is not scaled
	if g.Scale != 2 {
		t.Errorf("Expected scale 2, got %f", g.Scale)
	}
	if g.X != 400 || g.Y != 300 {
		t.Errorf("Expected center (400,300), got (%f,%f)", g.X, g.Y)
	}
	if g.Width != 400 || g.Height != 200 {
		t.Errorf("Expected 400x200, got %fx%f", g.Width, g.Height)
	}
	if g.Rotation != 30 {
		t.Errorf("Expected rotation 30, got %f", g.Rotation)
	}
	if g.FontSize != 0 {
		t.Errorf("Image elements must not carry a font size, got %f", g.FontSize)
	}
}

func TestReplayTextFontSize(t *testing.T) {
	el := types.DesignElement{Type: types.ElementText, X: 0.1, Y: 0.1, Width: 100, Height: 20, FontSize: 24}
	g := Replay(el, types.Dimensions{Width: 400, Height: 400}, types.ReferenceFrame{})

	// default frame 800x800 -> scale 0.5
	if g.FontSize != 12 {
		t.Errorf("Expected font size 12, got %f", g.FontSize)
	}
}

func TestReplayInvariance(t *testing.T) {
	el := types.DesignElement{Type: types.ElementImage, X: 0.3, Y: 0.6, Width: 321, Height: 123, Rotation: -47}
	ref := types.ReferenceFrame{ReferenceWidth: 600, ReferenceHeight: 450}
	canvases := []types.Dimensions{
		{Width: 600, Height: 450},
		{Width: 1920, Height: 1080},
		{Width: 150, Height: 800},
		{Width: 4000, Height: 4000},
	}

	base := Replay(el, canvases[0], ref)
	for _, c := range canvases[1:] {
		g := Replay(el, c, ref)
		if !scalar.EqualWithinAbs(g.Width/g.Height, base.Width/base.Height, eps) {
			t.Errorf("aspect drifted on %+v: %f vs %f", c, g.Width/g.Height, base.Width/base.Height)
		}
		if g.Rotation != base.Rotation {
			t.Errorf("rotation drifted on %+v", c)
		}
		// scaled back to the reference frame the size must agree
		if !scalar.EqualWithinAbs(g.Width/g.Scale, base.Width/base.Scale, 1e-6) {
			t.Errorf("reference width drifted on %+v", c)
		}
	}
}

func TestNormalizeInvertsReplay(t *testing.T) {
	canvas := types.Dimensions{Width: 1000, Height: 700}
	ref := types.ReferenceFrame{ReferenceWidth: 300, ReferenceHeight: 300}
	el := types.DesignElement{ID: "t1", Type: types.ElementText, Text: "hi", X: 0.42, Y: 0.17, Width: 90, Height: 40, Rotation: 12, FontSize: 18}

	back := Normalize(Replay(el, canvas, ref), canvas, ref, el)
	if !scalar.EqualWithinAbs(back.X, el.X, eps) || !scalar.EqualWithinAbs(back.Y, el.Y, eps) {
		t.Errorf("position drifted: %+v", back)
	}
	if !scalar.EqualWithinAbs(back.Width, el.Width, eps) || !scalar.EqualWithinAbs(back.Height, el.Height, eps) {
		t.Errorf("size drifted: %+v", back)
	}
	if !scalar.EqualWithinAbs(back.FontSize, el.FontSize, eps) {
		t.Errorf("font size drifted: %f", back.FontSize)
	}
	if back.Text != "hi" || back.ID != "t1" {
		t.Errorf("template fields lost: %+v", back)
	}
}

func TestFromPlacementReplaysAtNativeSize(t *testing.T) {
	canvas := types.Dimensions{Width: 1000, Height: 1000}
	ref := types.ReferenceFrame{ReferenceWidth: 300, ReferenceHeight: 300}
	p := types.RealDesignPlacement{CenterX: 150, CenterY: 150, Left: 7.5, Top: 74, Right: 292.5, Bottom: 226}

	el := FromPlacement(p, 0, canvas, ref, types.DesignElement{Type: types.ElementImage})
	g := Replay(el, canvas, ref)

	box := g.Bounds()
	if !scalar.EqualWithinAbs(box.X, 7.5, eps) || !scalar.EqualWithinAbs(box.Y, 74, eps) {
		t.Errorf("Expected top-left (7.5,74), got (%f,%f)", box.X, box.Y)
	}
	if !scalar.EqualWithinAbs(box.Width, 285, eps) || !scalar.EqualWithinAbs(box.Height, 152, eps) {
		t.Errorf("Expected 285x152, got %fx%f", box.Width, box.Height)
	}
}

func TestBoundingBoxRotated(t *testing.T) {
	g := types.AbsoluteGeometry{X: 100, Y: 100, Width: 40, Height: 20, Rotation: 90}
	b := BoundingBox(g)
	if !scalar.EqualWithinAbs(b.Width, 20, eps) || !scalar.EqualWithinAbs(b.Height, 40, eps) {
		t.Errorf("Expected 20x40 box after 90deg, got %fx%f", b.Width, b.Height)
	}
	if !scalar.EqualWithinAbs(b.X, 90, eps) || !scalar.EqualWithinAbs(b.Y, 80, eps) {
		t.Errorf("Expected origin (90,80), got (%f,%f)", b.X, b.Y)
	}
}

func TestTransformMatchesCorners(t *testing.T) {
	g := types.AbsoluteGeometry{X: 250, Y: 140, Width: 120, Height: 60, Rotation: 33}
	m := Transform(g, 240, 30)
	corners := Corners(g)
	src := [4]Point{{0, 0}, {240, 0}, {240, 30}, {0, 30}}

	for i, p := range src {
		x := m[0]*p.X + m[1]*p.Y + m[2]
		y := m[3]*p.X + m[4]*p.Y + m[5]
		if !scalar.EqualWithinAbs(x, corners[i].X, 1e-6) || !scalar.EqualWithinAbs(y, corners[i].Y, 1e-6) {
			t.Errorf("corner %d: matrix gives (%f,%f), corners give (%f,%f)", i, x, y, corners[i].X, corners[i].Y)
		}
	}
}

func BenchmarkReplay(b *testing.B) {
	el := types.DesignElement{Type: types.ElementText, X: 0.5, Y: 0.5, Width: 200, Height: 50, FontSize: 32}
	canvas := types.Dimensions{Width: 1920, Height: 1080}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Replay(el, canvas, types.DefaultReferenceFrame)
	}
}
