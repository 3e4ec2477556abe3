// Package render hosts the three consumers of replayed geometry: the editor
// overlay layout, the preview widget raster and the export flatten pass.
// All of them go through replay.Replay and differ only in the canvas size.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/printzone/pkg/replay"
	"github.com/menta2k/printzone/pkg/types"
)

// Layer is a design element together with what is needed to draw it
type Layer struct {
	Element   types.DesignElement
	Reference types.ReferenceFrame
	// Source is the decoded design for image elements
	Source image.Image
}

// Placed is a layer replayed against a canvas
type Placed struct {
	Layer    Layer
	Geometry types.AbsoluteGeometry
	// Bounds is the axis-aligned box around the rotated element
	Bounds types.Rect
}

// ExportRequest describes a flatten at the base image's native resolution
type ExportRequest struct {
	Base   image.Image
	Layers []Layer
}

// Renderer draws layers onto rasters
type Renderer struct {
	font   *opentype.Font
	interp draw.Transformer
	log    zerolog.Logger
}

// New creates a Renderer using the Go Regular face for text elements
func New() (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Renderer{
		font:   f,
		interp: draw.BiLinear,
		log:    log.With().Str("module", "render").Logger(),
	}, nil
}

// Layout replays layers against a canvas in ascending zIndex order. Layers
// with equal zIndex keep their input order.
func Layout(layers []Layer, canvas types.Dimensions) []Placed {
	out := make([]Placed, 0, len(layers))
	for _, l := range layers {
		g := replay.Replay(l.Element, canvas, l.Reference.OrDefault())
		out = append(out, Placed{Layer: l, Geometry: g, Bounds: replay.BoundingBox(g)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Layer.Element.ZIndex < out[j].Layer.Element.ZIndex
	})
	return out
}

// EditorLayout places layers over the base image as shown in the editing
// viewport. The canvas is the displayed image, shifted by the display offset.
func EditorLayout(layers []Layer, m types.ImageMetrics) []Placed {
	placed := Layout(layers, types.Dimensions{Width: m.DisplayWidth, Height: m.DisplayHeight})
	for i := range placed {
		placed[i].Geometry.X += m.DisplayOffsetX
		placed[i].Geometry.Y += m.DisplayOffsetY
		placed[i].Bounds.X += m.DisplayOffsetX
		placed[i].Bounds.Y += m.DisplayOffsetY
	}
	return placed
}

// Compose draws layers onto dst, using dst's size as the canvas. Pixels
// falling outside dst are clipped.
func (r *Renderer) Compose(ctx context.Context, dst draw.Image, layers []Layer) error {
	b := dst.Bounds()
	canvas := types.Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}

	for _, p := range Layout(layers, canvas) {
		if err := ctx.Err(); err != nil {
			return err
		}
		g := p.Geometry
		g.X += float64(b.Min.X)
		g.Y += float64(b.Min.Y)

		switch p.Layer.Element.Type {
		case types.ElementText:
			if err := r.drawText(dst, p.Layer.Element, g); err != nil {
				return fmt.Errorf("element %s: %w", p.Layer.Element.ID, err)
			}
		default:
			if p.Layer.Source == nil {
				return fmt.Errorf("element %s: no source image", p.Layer.Element.ID)
			}
			r.drawImage(dst, p.Layer.Source, g)
		}
	}
	return nil
}

// Export flattens the layers onto a copy of the base image at its native size
func (r *Renderer) Export(ctx context.Context, req ExportRequest) (image.Image, error) {
	if req.Base == nil {
		return nil, fmt.Errorf("export: no base image")
	}
	out := imaging.Clone(req.Base)
	if err := r.Compose(ctx, out, req.Layers); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	r.log.Debug().
		Int("width", out.Bounds().Dx()).
		Int("height", out.Bounds().Dy()).
		Int("layers", len(req.Layers)).
		Msg("export flattened")
	return out, nil
}

// Preview fits the base image into a widget of the given size, centered over
// background, and replays the layers against the fitted image.
func (r *Renderer) Preview(ctx context.Context, base image.Image, layers []Layer, size types.Dimensions, background color.Color) (image.Image, error) {
	if base == nil {
		return nil, fmt.Errorf("preview: no base image")
	}
	if !size.Valid() {
		return nil, fmt.Errorf("preview: invalid size %gx%g", size.Width, size.Height)
	}

	bb := base.Bounds()
	scale := math.Min(size.Width/float64(bb.Dx()), size.Height/float64(bb.Dy()))
	// widget and fitted image round the same way so the fit never overflows
	w := max(1, int(math.Round(size.Width)))
	h := max(1, int(math.Round(size.Height)))
	fw := min(w, max(1, int(math.Round(float64(bb.Dx())*scale))))
	fh := min(h, max(1, int(math.Round(float64(bb.Dy())*scale))))

	fitted := imaging.Resize(base, fw, fh, imaging.Lanczos)
	if err := r.Compose(ctx, fitted, layers); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}

	widget := imaging.New(w, h, background)
	return imaging.Paste(widget, fitted, image.Pt((w-fw)/2, (h-fh)/2)), nil
}

func (r *Renderer) drawImage(dst draw.Image, src image.Image, g types.AbsoluteGeometry) {
	if g.Width < 1 || g.Height < 1 {
		return
	}
	sb := src.Bounds()
	// downscale with Lanczos before the affine pass
	if g.Width < float64(sb.Dx()) || g.Height < float64(sb.Dy()) {
		src = imaging.Resize(src, int(math.Ceil(g.Width)), int(math.Ceil(g.Height)), imaging.Lanczos)
		sb = src.Bounds()
	}
	m := atOrigin(replay.Transform(g, float64(sb.Dx()), float64(sb.Dy())), sb.Min)
	r.interp.Transform(dst, m, src, sb, draw.Over, nil)
}

func (r *Renderer) drawText(dst draw.Image, el types.DesignElement, g types.AbsoluteGeometry) error {
	if el.Text == "" || g.FontSize <= 0 {
		return nil
	}
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    g.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create face: %w", err)
	}
	defer face.Close()

	metrics := face.Metrics()
	w := font.MeasureString(face, el.Text).Ceil()
	h := (metrics.Ascent + metrics.Descent).Ceil()
	if w <= 0 || h <= 0 {
		return nil
	}

	raster := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  raster,
		Src:  image.NewUniform(ParseColor(el.Color)),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(el.Text)

	// text keeps its natural extent, centered on the element
	g.Width, g.Height = float64(w), float64(h)
	r.interp.Transform(dst, replay.Transform(g, float64(w), float64(h)), raster, raster.Bounds(), draw.Over, nil)
	return nil
}

// atOrigin adjusts m for a source whose bounds do not start at (0,0)
func atOrigin(m f64.Aff3, origin image.Point) f64.Aff3 {
	if origin == (image.Point{}) {
		return m
	}
	x, y := float64(origin.X), float64(origin.Y)
	m[2] -= m[0]*x + m[1]*y
	m[5] -= m[3]*x + m[4]*y
	return m
}

// ParseColor reads #rgb or #rrggbb, falling back to opaque black
func ParseColor(s string) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{A: 255}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
