package printzone

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/menta2k/printzone/internal/config"
	"github.com/menta2k/printzone/pkg/delimitation"
	"github.com/menta2k/printzone/pkg/imagemetrics"
	"github.com/menta2k/printzone/pkg/persistence"
	"github.com/menta2k/printzone/pkg/processing"
	"github.com/menta2k/printzone/pkg/types"
)

const eps = 1e-6

// createTestImage creates a solid image
func createTestImage(width, height int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	eng, err := New(context.Background(), nil, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 60 && b>>8 < 60
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Quality = 0
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestNewVisionBackends(t *testing.T) {
	for _, backend := range []string{"local", "ollama", "llamacpp"} {
		cfg := config.Default()
		cfg.Vision.Backend = backend
		cfg.Vision.URL = "http://localhost:8080"
		eng, err := New(context.Background(), cfg)
		if err != nil {
			t.Errorf("%s: New failed: %v", backend, err)
			continue
		}
		eng.Close()
	}
}

func TestLoadBaseImage(t *testing.T) {
	eng := newTestEngine(t)
	path := writePNG(t, t.TempDir(), "base.png", createTestImage(1000, 500, color.White))

	m, err := eng.LoadBaseImage(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadBaseImage failed: %v", err)
	}
	// min(800/1000, 600/500) * 0.9
	if !scalar.EqualWithinAbs(m.DisplayScale, 0.72, eps) {
		t.Errorf("Expected scale 0.72, got %f", m.DisplayScale)
	}
	if !scalar.EqualWithinAbs(m.DisplayOffsetX, 40, eps) || !scalar.EqualWithinAbs(m.DisplayOffsetY, 120, eps) {
		t.Errorf("Expected offset (40, 120), got (%f, %f)", m.DisplayOffsetX, m.DisplayOffsetY)
	}
}

func TestLoadBaseImageDecodeFailureKeepsState(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	good := writePNG(t, dir, "base.png", createTestImage(400, 400, color.White))
	before, err := eng.LoadBaseImage(context.Background(), good)
	if err != nil {
		t.Fatal(err)
	}

	bad := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.LoadBaseImage(context.Background(), bad); !errors.Is(err, processing.ErrDecode) {
		t.Fatalf("Expected ErrDecode, got %v", err)
	}

	after, ok := eng.Metrics()
	if !ok || after != before {
		t.Errorf("Expected previous metrics to be kept, got %+v", after)
	}
	if eng.BaseImage().Bounds().Dx() != 400 {
		t.Error("Expected previous base image to be kept")
	}
}

func TestLoadBaseImageTooSmall(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.SetBaseImage(createTestImage(20, 20, color.White)); err == nil {
		t.Error("Expected error for tiny base image")
	}
	if eng.BaseImage() != nil {
		t.Error("Expected no base image after rejection")
	}
}

func TestAttachDesignPlacesAndLocks(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.SetBaseImage(createTestImage(1000, 1000, color.White)); err != nil {
		t.Fatal(err)
	}
	zone, err := eng.PlaceZone(types.Delimitation{X: 100, Y: 100, Width: 300, Height: 300})
	if err != nil {
		t.Fatalf("PlaceZone failed: %v", err)
	}
	if zone.X != 100 || zone.Width != 300 {
		t.Fatalf("Expected exact real geometry, got %+v", zone)
	}

	el, placement, err := eng.AttachDesignImage(zone.ID, types.DesignRef{ID: "d1"}, createTestImage(150, 80, color.Black))
	if err != nil {
		t.Fatalf("AttachDesignImage failed: %v", err)
	}

	// real placement: min(300/150, 300/80) * 0.95 = 1.9 -> 285x152 centered at (250, 250)
	if !scalar.EqualWithinAbs(el.X, 0.25, eps) || !scalar.EqualWithinAbs(el.Y, 0.25, eps) {
		t.Errorf("Expected element center at (0.25, 0.25), got (%f, %f)", el.X, el.Y)
	}
	// reference 800x800 on a 1000x1000 canvas scales by 1.25
	if !scalar.EqualWithinAbs(el.Width, 228, eps) || !scalar.EqualWithinAbs(el.Height, 121.6, eps) {
		t.Errorf("Expected reference size 228x121.6, got %fx%f", el.Width, el.Height)
	}

	// display zone: scale 0.54, 162x162 -> min(162/150, 162/80) * 0.95
	if !scalar.EqualWithinAbs(placement.Scale, 1.026, eps) {
		t.Errorf("Expected display scale 1.026, got %f", placement.Scale)
	}

	if !eng.Controller().Locked() {
		t.Error("Expected zone to be locked")
	}
	x := 10.0
	if _, err := eng.UpdateZone(zone.ID, delimitation.Patch{X: &x}); !errors.Is(err, delimitation.ErrZoneLocked) {
		t.Errorf("Expected ErrZoneLocked, got %v", err)
	}
	if _, _, err := eng.AttachDesignImage(zone.ID, types.DesignRef{}, createTestImage(10, 10, color.Black)); !errors.Is(err, delimitation.ErrZoneLocked) {
		t.Errorf("Expected ErrZoneLocked for second design, got %v", err)
	}

	if err := eng.DetachDesign(zone.ID); err != nil {
		t.Fatalf("DetachDesign failed: %v", err)
	}
	if eng.Controller().Locked() || len(eng.Elements()) != 0 {
		t.Error("Expected unlocked zone without elements after detach")
	}
}

func TestAttachDesignErrors(t *testing.T) {
	eng := newTestEngine(t)
	design := createTestImage(10, 10, color.Black)

	if _, _, err := eng.AttachDesignImage("zone", types.DesignRef{}, design); !errors.Is(err, ErrNoBaseImage) {
		t.Errorf("Expected ErrNoBaseImage, got %v", err)
	}

	eng.SetBaseImage(createTestImage(200, 200, color.White))
	if _, _, err := eng.AttachDesignImage("zone", types.DesignRef{}, design); !errors.Is(err, delimitation.ErrNoZone) {
		t.Errorf("Expected ErrNoZone, got %v", err)
	}

	zone, _ := eng.PlaceZone(types.Delimitation{X: 10, Y: 10, Width: 50, Height: 50})
	if _, _, err := eng.AttachDesignImage("other", types.DesignRef{}, design); !errors.Is(err, delimitation.ErrUnknownZone) {
		t.Errorf("Expected ErrUnknownZone, got %v", err)
	}

	_, _, err := eng.AttachDesign(context.Background(), zone.ID, types.DesignRef{ID: "x", Source: filepath.Join(t.TempDir(), "missing.png")})
	if err == nil {
		t.Fatal("Expected error for missing design file")
	}
	if eng.Controller().Locked() || len(eng.Elements()) != 0 {
		t.Error("Expected failed load to leave the zone untouched")
	}
}

func TestDeleteAndReplaceZoneDropDesigns(t *testing.T) {
	eng := newTestEngine(t)
	eng.SetBaseImage(createTestImage(400, 400, color.White))

	zone, _ := eng.PlaceZone(types.Delimitation{X: 50, Y: 50, Width: 100, Height: 100})
	eng.AttachDesignImage(zone.ID, types.DesignRef{}, createTestImage(20, 20, color.Black))
	if len(eng.Elements()) != 1 {
		t.Fatal("Expected one element")
	}

	if _, err := eng.CreateZone(types.Rect{X: 200, Y: 200, Width: 60, Height: 60}); err != nil {
		t.Fatal(err)
	}
	if len(eng.Elements()) != 0 {
		t.Error("Expected replaced zone to drop its designs")
	}

	next, _ := eng.Zone()
	eng.AddText(next.ID, "hello", 20, "#000")
	if err := eng.DeleteZone(next.ID); err != nil {
		t.Fatalf("DeleteZone failed: %v", err)
	}
	if _, ok := eng.Zone(); ok || len(eng.Elements()) != 0 {
		t.Error("Expected no zone and no elements after delete")
	}
}

func TestComputePlacementScenario(t *testing.T) {
	eng := newTestEngine(t)
	p := eng.ComputePlacement(types.Delimitation{Width: 300, Height: 300}, types.Dimensions{Width: 150, Height: 80})
	if p.Left != 75 || p.Top != 110 || p.CenterX != 150 || p.CenterY != 150 {
		t.Errorf("Unexpected placement %+v", p)
	}
	if p.Width() != 150 || p.Height() != 80 {
		t.Errorf("Expected explicit size to be kept, got %fx%f", p.Width(), p.Height())
	}
}

func TestValidateAndScore(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Score(types.Delimitation{}); !errors.Is(err, ErrNoBaseImage) {
		t.Errorf("Expected ErrNoBaseImage, got %v", err)
	}

	eng.SetBaseImage(createTestImage(1000, 1000, color.White))

	fb, err := eng.Score(types.Delimitation{X: 400, Y: 400, Width: 200, Height: 200})
	if err != nil {
		t.Fatal(err)
	}
	if fb.Score > 80 {
		t.Errorf("Expected score <= 80 for a 4%% zone, got %d", fb.Score)
	}

	fb, _ = eng.Score(types.Delimitation{X: 0, Y: 500, Width: 100, Height: 501})
	if fb.Status != types.StatusError || fb.Score != 0 {
		t.Errorf("Expected error status with score 0, got %+v", fb)
	}

	report, _ := eng.Validate(types.Delimitation{X: 0, Y: 500, Width: 100, Height: 501})
	if report.Valid() {
		t.Error("Expected out-of-bounds zone to be invalid")
	}
}

func TestSetViewportRebindsZone(t *testing.T) {
	eng := newTestEngine(t)
	eng.SetBaseImage(createTestImage(1000, 1000, color.White))
	eng.PlaceZone(types.Delimitation{X: 100, Y: 100, Width: 300, Height: 300})

	if err := eng.SetViewport(400, 300); err != nil {
		t.Fatalf("SetViewport failed: %v", err)
	}
	// scale min(0.4, 0.3) * 0.9 = 0.27, offset (65, 15)
	d, ok := eng.Controller().DisplayRect()
	if !ok {
		t.Fatal("Expected a display rect")
	}
	if !scalar.EqualWithinAbs(d.X, 92, eps) || !scalar.EqualWithinAbs(d.Y, 42, eps) || !scalar.EqualWithinAbs(d.Width, 81, eps) {
		t.Errorf("Unexpected display rect %+v", d)
	}

	zone, _ := eng.Zone()
	if zone.X != 100 || zone.Width != 300 {
		t.Errorf("Expected real geometry unchanged, got %+v", zone)
	}

	if err := eng.SetViewport(0, 300); err == nil {
		t.Error("Expected error for empty viewport")
	}
}

func TestExportPreviewAndOverlay(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	if _, err := eng.Export(ctx); !errors.Is(err, ErrNoBaseImage) {
		t.Errorf("Expected ErrNoBaseImage, got %v", err)
	}

	eng.SetBaseImage(createTestImage(200, 100, color.White))
	zone, _ := eng.PlaceZone(types.Delimitation{X: 50, Y: 25, Width: 100, Height: 50})
	if _, _, err := eng.AttachDesignImage(zone.ID, types.DesignRef{ID: "red"}, createTestImage(100, 50, color.NRGBA{255, 0, 0, 255})); err != nil {
		t.Fatal(err)
	}

	out, err := eng.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 100 {
		t.Errorf("Expected native 200x100 export, got %v", out.Bounds())
	}
	if !isRed(out.At(100, 50)) {
		t.Errorf("Expected red at zone center, got %v", out.At(100, 50))
	}
	if isRed(out.At(10, 10)) {
		t.Error("Expected base image outside the zone")
	}

	prev, err := eng.Preview(ctx, types.Dimensions{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if prev.Bounds().Dx() != 100 || prev.Bounds().Dy() != 100 {
		t.Errorf("Expected 100x100 preview, got %v", prev.Bounds())
	}
	if !isRed(prev.At(50, 50)) {
		t.Errorf("Expected red at preview center, got %v", prev.At(50, 50))
	}

	placed, err := eng.EditorOverlay()
	if err != nil {
		t.Fatal(err)
	}
	d, _ := eng.Controller().DisplayRect()
	cx, cy := d.Center()
	if len(placed) != 1 || !scalar.EqualWithinAbs(placed[0].Geometry.X, cx, eps) || !scalar.EqualWithinAbs(placed[0].Geometry.Y, cy, eps) {
		t.Errorf("Expected overlay centered on the display zone (%f, %f), got %+v", cx, cy, placed)
	}

	overlay, err := eng.DebugOverlay()
	if err != nil {
		t.Fatal(err)
	}
	if overlay.Bounds() != out.Bounds() {
		t.Errorf("Expected overlay at native size, got %v", overlay.Bounds())
	}
}

func TestExportToFile(t *testing.T) {
	eng := newTestEngine(t)
	eng.SetBaseImage(createTestImage(120, 80, color.White))
	zone, _ := eng.PlaceZone(types.Delimitation{X: 20, Y: 20, Width: 80, Height: 40})
	if _, err := eng.AddText(zone.ID, "Hi", 16, "#112233"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "final.png")
	if err := eng.ExportToFile(context.Background(), path); err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	img, _, err := processing.NewProcessor().LoadImage(path)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("Unexpected export size %v", img.Bounds())
	}
}

func TestExportToFileWithoutExtension(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"png", "png"},
		{"jpg", "jpeg"},
		{"webp", "webp"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := config.Default()
			cfg.Export.Format = tt.format
			eng, err := New(context.Background(), cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer eng.Close()
			eng.SetBaseImage(createTestImage(120, 80, color.White))
			eng.PlaceZone(types.Delimitation{X: 20, Y: 20, Width: 80, Height: 40})

			path := filepath.Join(t.TempDir(), "flattened")
			if err := eng.ExportToFile(context.Background(), path); err != nil {
				t.Fatalf("ExportToFile failed: %v", err)
			}
			img, format, err := processing.NewProcessor().LoadImage(path)
			if err != nil {
				t.Fatalf("Failed to read export: %v", err)
			}
			if format != tt.want {
				t.Errorf("Expected %s content, got %q", tt.want, format)
			}
			if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
				t.Errorf("Unexpected export size %v", img.Bounds())
			}
		})
	}
}

func TestLoadBaseImageUnsupportedFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Viewport.Formats = []string{"jpeg"}
	eng, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	path := writePNG(t, t.TempDir(), "base.png", createTestImage(400, 400, color.White))
	if _, err := eng.LoadBaseImage(context.Background(), path); !errors.Is(err, imagemetrics.ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if eng.BaseImage() != nil {
		t.Error("Expected no base image after a rejected format")
	}
	if _, ok := eng.Metrics(); ok {
		t.Error("Expected no metrics after a rejected format")
	}
}

func TestEstimatePlacement(t *testing.T) {
	eng := newTestEngine(t)
	eng.SetBaseImage(createTestImage(1000, 1000, color.White))
	zone, _ := eng.PlaceZone(types.Delimitation{X: 100, Y: 100, Width: 300, Height: 150})

	// scale 0.54, offset (130, 30): display zone is 162x81 at (184, 84)
	p, err := eng.EstimatePlacement(zone.ID, types.DesignRef{ID: "logo", Source: "logo.png"})
	if err != nil {
		t.Fatalf("EstimatePlacement failed: %v", err)
	}
	if !scalar.EqualWithinAbs(p.Width, 153.9, eps) || !scalar.EqualWithinAbs(p.Height, 76.95, eps) {
		t.Errorf("Expected padded zone size 153.9x76.95, got %fx%f", p.Width, p.Height)
	}
	if !scalar.EqualWithinAbs(p.Left, 188.05, eps) {
		t.Errorf("Expected left 188.05, got %f", p.Left)
	}

	sized, err := eng.EstimatePlacement(zone.ID, types.DesignRef{ID: "logo", Size: types.Dimensions{Width: 100, Height: 100}})
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(sized.Width, 76.95, eps) || !scalar.EqualWithinAbs(sized.Height, 76.95, eps) {
		t.Errorf("Expected 76.95 square for a known size, got %fx%f", sized.Width, sized.Height)
	}

	if _, err := eng.EstimatePlacement("other", types.DesignRef{}); !errors.Is(err, delimitation.ErrUnknownZone) {
		t.Errorf("Expected ErrUnknownZone, got %v", err)
	}
}

func TestApplyConfig(t *testing.T) {
	eng := newTestEngine(t)
	eng.SetBaseImage(createTestImage(1000, 1000, color.White))
	zone, _ := eng.PlaceZone(types.Delimitation{X: 100, Y: 100, Width: 300, Height: 300})

	report, _ := eng.Validate(zone)
	if len(report.Warnings) != 0 {
		t.Fatalf("Expected no warnings with defaults, got %v", report.Warnings)
	}

	next := config.Default()
	next.Viewport.Width = 400
	next.Viewport.Height = 300
	next.Validation.MaxAreaPercent = 5
	if err := eng.ApplyConfig(next); err != nil {
		t.Fatalf("ApplyConfig failed: %v", err)
	}

	d, _ := eng.Controller().DisplayRect()
	if !scalar.EqualWithinAbs(d.X, 92, eps) || !scalar.EqualWithinAbs(d.Width, 81, eps) {
		t.Errorf("Expected zone re-laid out for the new viewport, got %+v", d)
	}
	report, _ = eng.Validate(zone)
	if len(report.Warnings) != 1 {
		t.Errorf("Expected the area warning from the new threshold, got %v", report.Warnings)
	}

	bad := config.Default()
	bad.Export.Quality = 0
	if err := eng.ApplyConfig(bad); err == nil {
		t.Error("Expected error for invalid config")
	}
	if m, _ := eng.Metrics(); !scalar.EqualWithinAbs(m.DisplayScale, 0.27, eps) {
		t.Errorf("Expected layout kept after a rejected config, got scale %f", m.DisplayScale)
	}
}

func TestAddText(t *testing.T) {
	eng := newTestEngine(t)
	eng.SetBaseImage(createTestImage(1000, 1000, color.White))
	zone, _ := eng.PlaceZone(types.Delimitation{X: 0, Y: 0, Width: 400, Height: 200})

	el, err := eng.AddText(zone.ID, "SALE", 50, "#ff0000")
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	if el.Type != types.ElementText || el.Text != "SALE" {
		t.Errorf("Unexpected element %+v", el)
	}
	// 50px on a 1000px canvas is 40px against the 800px reference
	if !scalar.EqualWithinAbs(el.FontSize, 40, eps) {
		t.Errorf("Expected reference font size 40, got %f", el.FontSize)
	}
	if !scalar.EqualWithinAbs(el.X, 0.2, eps) || !scalar.EqualWithinAbs(el.Y, 0.1, eps) {
		t.Errorf("Expected element centered in zone, got (%f, %f)", el.X, el.Y)
	}
	if eng.Controller().Locked() {
		t.Error("Text should not lock the zone")
	}

	if _, err := eng.AddText(zone.ID, "", 10, ""); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestDraftAutosaveAndRestore(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryStore(time.Now)
	dir := t.TempDir()
	designPath := writePNG(t, dir, "design.png", createTestImage(60, 30, color.Black))
	base := createTestImage(400, 300, color.White)

	eng := newTestEngine(t, WithRepository(repo))
	eng.SetBaseImage(base)
	eng.OpenDraft("draft_v_p_d")

	zone, _ := eng.PlaceZone(types.Delimitation{X: 40, Y: 50, Width: 200, Height: 100, Rotation: 10})
	if _, _, err := eng.AttachDesign(ctx, zone.ID, types.DesignRef{ID: "logo", Source: designPath}); err != nil {
		t.Fatalf("AttachDesign failed: %v", err)
	}

	// changes alone never persist
	eng.FlushDraft()
	if _, err := repo.Load(ctx, "draft_v_p_d"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected no draft before commit, got %v", err)
	}

	if _, err := eng.CommitZone(); err != nil {
		t.Fatal(err)
	}
	eng.FlushDraft()

	saved, err := repo.Load(ctx, "draft_v_p_d")
	if err != nil {
		t.Fatalf("Expected saved draft: %v", err)
	}
	if saved.Zone.X != 40 || saved.Zone.Rotation != 10 || len(saved.Elements) != 1 {
		t.Errorf("Unexpected draft %+v", saved)
	}

	restored := newTestEngine(t, WithRepository(repo))
	restored.SetBaseImage(base)
	if _, err := restored.RestoreDraft(ctx, "draft_v_p_d"); err != nil {
		t.Fatalf("RestoreDraft failed: %v", err)
	}
	z, ok := restored.Zone()
	if !ok || z.X != 40 || z.Y != 50 || z.Width != 200 || z.Height != 100 || z.Rotation != 10 {
		t.Errorf("Unexpected restored zone %+v", z)
	}
	if !restored.Controller().Locked() {
		t.Error("Expected restored zone with a design to be locked")
	}
	if els := restored.Elements(); len(els) != 1 || els[0] != saved.Elements[0] {
		t.Errorf("Expected restored elements to match, got %+v", els)
	}
	if layers := restored.Layers(); layers[0].Source == nil {
		t.Error("Expected design source to be reloaded")
	}

	drafts, err := restored.ListDrafts(ctx)
	if err != nil || len(drafts) != 1 {
		t.Errorf("Expected one draft, got %d (%v)", len(drafts), err)
	}
	if n, err := restored.PurgeDrafts(ctx); err != nil || n != 0 {
		t.Errorf("Expected fresh draft to survive purge, got %d (%v)", n, err)
	}
}

func TestDeleteZoneRemovesDraft(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryStore(time.Now)
	eng := newTestEngine(t, WithRepository(repo))
	eng.SetBaseImage(createTestImage(200, 200, color.White))
	eng.OpenDraft("k")

	zone, _ := eng.PlaceZone(types.Delimitation{X: 10, Y: 10, Width: 50, Height: 50})
	eng.CommitZone()
	eng.FlushDraft()
	if _, err := repo.Load(ctx, "k"); err != nil {
		t.Fatal(err)
	}

	eng.DeleteZone(zone.ID)
	if _, err := repo.Load(ctx, "k"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected draft to be removed, got %v", err)
	}
}

type fakeVision struct{ answer string }

func (f fakeVision) Query(context.Context, string, string, string) (string, error) {
	return f.answer, nil
}

func TestSuggestZone(t *testing.T) {
	eng := newTestEngine(t, WithVisionClient(fakeVision{answer: `{"label":"shirt","confidence":0.9,"box":{"x":0.25,"y":0.2,"w":0.5,"h":0.4}}`}))
	if _, _, err := eng.SuggestZone(context.Background()); !errors.Is(err, ErrNoBaseImage) {
		t.Errorf("Expected ErrNoBaseImage, got %v", err)
	}

	eng.SetBaseImage(createTestImage(400, 200, color.White))
	res, report, err := eng.SuggestZone(context.Background())
	if err != nil {
		t.Fatalf("SuggestZone failed: %v", err)
	}
	if res.Fallback {
		t.Error("Expected model answer to be used")
	}
	if res.Zone.X != 100 || res.Zone.Y != 40 || res.Zone.Width != 200 || res.Zone.Height != 80 {
		t.Errorf("Unexpected zone %+v", res.Zone)
	}
	if !report.Valid() {
		t.Errorf("Expected suggested zone to be valid, got %+v", report)
	}

	placed, err := eng.PlaceZone(res.Zone)
	if err != nil || placed.Width != 200 {
		t.Errorf("Expected suggestion to be placeable, got %+v (%v)", placed, err)
	}
}

func TestSuggestZoneLocal(t *testing.T) {
	eng := newTestEngine(t)
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			if x >= 50 && x < 150 && y >= 50 && y < 150 {
				img.Set(x, y, color.NRGBA{0, 0, 200, 255})
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	eng.SetBaseImage(img)

	res, report, err := eng.SuggestZone(context.Background())
	if err != nil {
		t.Fatalf("SuggestZone failed: %v", err)
	}
	if res.Fallback {
		t.Error("Expected the local detector to find the square")
	}
	if res.Zone.X < 50 || res.Zone.X+res.Zone.Width > 150 {
		t.Errorf("Expected zone inside the square, got %+v", res.Zone)
	}
	if !report.Valid() {
		t.Errorf("Expected valid zone, got %+v", report)
	}
}

func BenchmarkExport(b *testing.B) {
	eng, err := New(context.Background(), nil)
	if err != nil {
		b.Fatal(err)
	}
	eng.SetBaseImage(createTestImage(1200, 1200, color.White))
	zone, _ := eng.PlaceZone(types.Delimitation{X: 300, Y: 300, Width: 600, Height: 600, Rotation: 15})
	eng.AttachDesignImage(zone.ID, types.DesignRef{}, createTestImage(500, 300, color.Black))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.Export(context.Background())
	}
}
