// Package printzone places designs inside a printable zone on a product photo
// and renders them with the same geometry in the editor, the preview widget
// and the export pass.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/printzone"
//		"github.com/menta2k/printzone/pkg/types"
//	)
//
//	func main() {
//		ctx := context.Background()
//		eng, err := printzone.New(ctx, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer eng.Close()
//
//		// Load the product photo and lay it out in the viewport
//		if _, err := eng.LoadBaseImage(ctx, "shirt.jpg"); err != nil {
//			log.Fatal(err)
//		}
//
//		// Draw a zone in display pixels; it is stored in real image pixels
//		zone, err := eng.CreateZone(types.Rect{X: 300, Y: 200, Width: 200, Height: 240})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Attach a design; it is auto-fitted and the zone locks
//		if _, _, err := eng.AttachDesign(ctx, zone.ID, types.DesignRef{ID: "logo", Source: "logo.png"}); err != nil {
//			log.Fatal(err)
//		}
//
//		// Flatten at the photo's native resolution
//		if err := eng.ExportToFile(ctx, "shirt_final.png"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The engine is composed of:
//
//  1. Image metrics (pkg/imagemetrics): display scale and offset of the base image
//  2. Transformer (pkg/transform): real, display and normalized coordinates
//  3. Delimitation controller (pkg/delimitation): zone life-cycle and lock
//  4. Auto-fit (pkg/autofit): centered, padded design placement
//  5. Replay (pkg/replay): the geometry every renderer draws from
//  6. Validation (pkg/validation): bounds checks and quality score
//  7. Render (pkg/render): editor layout, preview and export rasters
//  8. Persistence (pkg/persistence): debounced draft autosave
//  9. Suggest (pkg/suggest): printable area proposals from a vision model
package printzone

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/printzone/internal/config"
	"github.com/menta2k/printzone/internal/utils"
	"github.com/menta2k/printzone/pkg/autofit"
	"github.com/menta2k/printzone/pkg/client"
	"github.com/menta2k/printzone/pkg/delimitation"
	"github.com/menta2k/printzone/pkg/imagemetrics"
	"github.com/menta2k/printzone/pkg/llamacpp"
	"github.com/menta2k/printzone/pkg/ollama"
	"github.com/menta2k/printzone/pkg/persistence"
	"github.com/menta2k/printzone/pkg/processing"
	"github.com/menta2k/printzone/pkg/render"
	"github.com/menta2k/printzone/pkg/replay"
	"github.com/menta2k/printzone/pkg/suggest"
	"github.com/menta2k/printzone/pkg/transform"
	"github.com/menta2k/printzone/pkg/types"
	"github.com/menta2k/printzone/pkg/validation"
	"github.com/menta2k/printzone/pkg/vision"
)

// Version of the printzone library
const Version = "1.0.0"

// ErrNoBaseImage is returned by operations that need a loaded base image
var ErrNoBaseImage = errors.New("no base image loaded")

type design struct {
	zoneID    string
	element   types.DesignElement
	reference types.ReferenceFrame
	source    image.Image
}

// Engine is one editing session: a base image, at most one zone and the
// designs placed in it. It is not safe for concurrent use.
type Engine struct {
	cfg         *config.Config
	processor   *processing.Processor
	resolver    *imagemetrics.Resolver
	transformer *transform.Transformer
	controller  *delimitation.Controller
	fitter      *autofit.Fitter
	validator   *validation.Validator
	renderer    *render.Renderer
	suggester   *suggest.Suggester
	repo        persistence.Repository
	autosaver   *persistence.Autosaver

	reference types.ReferenceFrame
	viewport  types.Dimensions
	base      image.Image
	designs   []design
	newID     func() string
	log       zerolog.Logger
}

type options struct {
	client     client.VisionClient
	repo       persistence.Repository
	shapes     delimitation.ShapeFactory
	httpClient *http.Client
	newID      func() string
}

// Option configures an Engine
type Option func(*options)

// WithVisionClient uses c for zone suggestions instead of the configured backend
func WithVisionClient(c client.VisionClient) Option {
	return func(o *options) { o.client = c }
}

// WithRepository uses repo for drafts instead of the configured backend
func WithRepository(repo persistence.Repository) Option {
	return func(o *options) { o.repo = repo }
}

// WithShapeFactory sets the canvas used for zone shapes
func WithShapeFactory(f delimitation.ShapeFactory) Option {
	return func(o *options) { o.shapes = f }
}

// WithHTTPClient sets the client used to fetch images by URL
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithIDGenerator replaces the uuid generator for zones and elements
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// New creates an Engine. A nil cfg uses config.Default().
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	e := &Engine{
		processor:   processing.NewProcessor(),
		transformer: transform.New(),
		reference: types.ReferenceFrame{
			ReferenceWidth:  cfg.Reference.Width,
			ReferenceHeight: cfg.Reference.Height,
		},
		viewport: types.Dimensions{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height},
		newID:    o.newID,
		log:      log.With().Str("module", "engine").Logger(),
	}
	if o.httpClient != nil {
		e.processor = processing.NewProcessorWithClient(o.httpClient)
	}

	e.configure(cfg)
	e.controller = delimitation.New(e.transformer,
		delimitation.WithMinDrawSize(cfg.Zone.MinDrawSize),
		delimitation.WithShapeFactory(o.shapes),
		delimitation.WithIDGenerator(o.newID),
		delimitation.WithListener(delimitation.ListenerFuncs{
			Committed: e.onCommitted,
			Deleted:   e.onZoneDeleted,
		}),
	)

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	e.renderer = renderer

	sc := suggest.Config{
		Model:       cfg.Vision.Model,
		SendSize:    cfg.Vision.SendSize,
		SendQuality: cfg.Vision.SendQuality,
	}
	if o.client != nil {
		e.suggester = suggest.NewWithConfig(o.client, sc)
	} else {
		e.suggester, err = newSuggester(cfg.Vision, sc)
		if err != nil {
			return nil, err
		}
	}

	e.repo = o.repo
	if e.repo == nil {
		e.repo, err = persistence.Open(ctx, cfg.Persistence.Backend, cfg.Persistence.Dir, cfg.Persistence.DSN, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open draft store: %w", err)
		}
	}

	return e, nil
}

func newSuggester(vc config.VisionConfig, sc suggest.Config) (*suggest.Suggester, error) {
	httpClient := &http.Client{Timeout: vc.Timeout}
	switch vc.Backend {
	case "ollama":
		c, err := ollama.NewClientWithHTTP(vc.URL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return suggest.NewWithConfig(c, sc), nil
	case "llamacpp":
		c, err := llamacpp.NewClientWithHTTP(vc.URL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return suggest.NewWithConfig(c, sc), nil
	default:
		return suggest.NewLocal(vision.New()), nil
	}
}

// configure builds the config-derived components
func (e *Engine) configure(cfg *config.Config) {
	e.cfg = cfg
	e.resolver = imagemetrics.NewWithConfig(imagemetrics.Config{
		FitFactor:        cfg.Viewport.FitFactor,
		SupportedFormats: cfg.Viewport.Formats,
		MinImageSize:     cfg.Viewport.MinImageSize,
	})
	e.fitter = autofit.NewWithConfig(autofit.Config{
		PaddingFactor:  cfg.Zone.PaddingFactor,
		AllowUpscaling: true,
	})
	e.validator = validation.NewWithThresholds(thresholds(cfg.Validation))
}

func thresholds(vc config.ValidationConfig) validation.Thresholds {
	t := validation.DefaultThresholds()
	t.MinDimension = vc.MinDimension
	t.MaxAreaPercent = vc.MaxAreaPercent
	t.MinAspectRatio = vc.MinAspectRatio
	t.MaxAspectRatio = vc.MaxAspectRatio
	t.TooSmallPercent = vc.TooSmallPercent
	t.TooLargePercent = vc.TooLargePercent
	t.OptimalMinPct = vc.OptimalMinPercent
	t.OptimalMaxPct = vc.OptimalMaxPercent
	return t
}

// Controller exposes the zone controller for pointer input
func (e *Engine) Controller() *delimitation.Controller {
	return e.controller
}

// Metrics returns the current layout of the base image
func (e *Engine) Metrics() (types.ImageMetrics, bool) {
	return e.transformer.Metrics()
}

// BaseImage returns the loaded base image or nil
func (e *Engine) BaseImage() image.Image {
	return e.base
}

// Zone returns the active zone
func (e *Engine) Zone() (types.Delimitation, bool) {
	return e.controller.Zone()
}

// LoadBaseImage loads a product photo from a path or URL. On failure the
// previous image and layout are kept.
func (e *Engine) LoadBaseImage(ctx context.Context, source string) (types.ImageMetrics, error) {
	img, format, err := e.processor.LoadImageSmart(ctx, source)
	if err != nil {
		return types.ImageMetrics{}, fmt.Errorf("failed to load base image: %w", err)
	}
	if err := e.resolver.CheckFormat(format); err != nil {
		return types.ImageMetrics{}, fmt.Errorf("failed to load base image %s: %w", source, err)
	}
	m, err := e.SetBaseImage(img)
	if err != nil {
		return types.ImageMetrics{}, err
	}
	e.log.Info().
		Str("source", source).
		Float64("width", m.OriginalWidth).
		Float64("height", m.OriginalHeight).
		Float64("scale", m.DisplayScale).
		Msg("base image loaded")
	return m, nil
}

// SetBaseImage uses an already decoded image as the base image
func (e *Engine) SetBaseImage(img image.Image) (types.ImageMetrics, error) {
	if err := e.resolver.ValidateImage(img); err != nil {
		return types.ImageMetrics{}, err
	}
	m, err := e.resolver.ResolveImage(img, e.viewport)
	if err != nil {
		return types.ImageMetrics{}, err
	}
	e.base = img
	e.transformer.SetMetrics(m)
	e.controller.Rebind()
	return m, nil
}

// SetViewport resizes the editing viewport and re-lays out the zone
func (e *Engine) SetViewport(width, height float64) error {
	v := types.Dimensions{Width: width, Height: height}
	if !v.Valid() {
		return fmt.Errorf("viewport %gx%g: %w", width, height, imagemetrics.ErrInvalidDimensions)
	}
	e.viewport = v
	if e.base == nil {
		return nil
	}
	m, err := e.resolver.ResolveImage(e.base, v)
	if err != nil {
		return err
	}
	e.transformer.SetMetrics(m)
	e.controller.Rebind()
	return nil
}

// CreateZone adds a zone from a display rectangle, replacing any existing one
// together with its designs.
func (e *Engine) CreateZone(display types.Rect) (types.Delimitation, error) {
	return e.controller.CreateZone(display)
}

// PlaceZone creates a zone with exact real-pixel geometry
func (e *Engine) PlaceZone(zone types.Delimitation) (types.Delimitation, error) {
	created, err := e.controller.CreateZone(e.transformer.ToDisplay(zone.Rect()))
	if err != nil {
		return types.Delimitation{}, err
	}
	return e.controller.UpdateZone(created.ID, delimitation.Patch{
		X:        &zone.X,
		Y:        &zone.Y,
		Width:    &zone.Width,
		Height:   &zone.Height,
		Rotation: &zone.Rotation,
	})
}

// UpdateZone applies a real-space patch to the zone
func (e *Engine) UpdateZone(id string, patch delimitation.Patch) (types.Delimitation, error) {
	return e.controller.UpdateZone(id, patch)
}

// DeleteZone removes the zone and its designs
func (e *Engine) DeleteZone(id string) error {
	return e.controller.DeleteZone(id)
}

// CommitZone persists the zone through the open draft, if any
func (e *Engine) CommitZone() (types.Delimitation, error) {
	return e.controller.Commit()
}

// AttachDesign loads the design, fits it into the zone and locks the zone.
// It returns the stored element and the display-space placement for the
// editor. A design that fails to load leaves the session unchanged.
func (e *Engine) AttachDesign(ctx context.Context, zoneID string, ref types.DesignRef) (types.DesignElement, autofit.Placement, error) {
	if ref.Source == "" {
		return types.DesignElement{}, autofit.Placement{}, fmt.Errorf("design %s has no source", ref.ID)
	}
	if err := e.checkZone(zoneID); err != nil {
		return types.DesignElement{}, autofit.Placement{}, err
	}
	img, _, err := e.processor.LoadImageSmart(ctx, ref.Source)
	if err != nil {
		return types.DesignElement{}, autofit.Placement{}, fmt.Errorf("failed to load design %s: %w", ref.ID, err)
	}
	return e.AttachDesignImage(zoneID, ref, img)
}

// EstimatePlacement returns the display-space placement the editor can show
// while a design is still loading. Without ref.Size the design is assumed to
// share the zone's aspect ratio.
func (e *Engine) EstimatePlacement(zoneID string, ref types.DesignRef) (autofit.Placement, error) {
	if err := e.checkZone(zoneID); err != nil {
		return autofit.Placement{}, err
	}
	display, _ := e.controller.DisplayRect()
	if ref.Size.Valid() {
		return e.fitter.Fit(display, ref.Size), nil
	}
	return e.fitter.FitEstimate(display), nil
}

// AttachDesignImage is AttachDesign for an already decoded design. ref.Size
// overrides the image's own size when set.
func (e *Engine) AttachDesignImage(zoneID string, ref types.DesignRef, img image.Image) (types.DesignElement, autofit.Placement, error) {
	if e.base == nil {
		return types.DesignElement{}, autofit.Placement{}, ErrNoBaseImage
	}
	if err := e.checkZone(zoneID); err != nil {
		return types.DesignElement{}, autofit.Placement{}, err
	}
	if e.controller.Locked() {
		return types.DesignElement{}, autofit.Placement{}, delimitation.ErrZoneLocked
	}

	natural := ref.Size
	if !natural.Valid() {
		b := img.Bounds()
		natural = types.Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}
	}
	if !natural.Valid() {
		return types.DesignElement{}, autofit.Placement{}, fmt.Errorf("design %s: %w", ref.ID, imagemetrics.ErrInvalidDimensions)
	}

	if err := e.controller.AttachDesign(zoneID, ref); err != nil {
		return types.DesignElement{}, autofit.Placement{}, err
	}
	zone, _ := e.controller.Zone()
	display, _ := e.controller.DisplayRect()
	placement := e.fitter.Fit(display, natural)
	realPlacement, scale := e.fitter.PreciseFit(zone, natural)

	id := ref.ID
	if id == "" {
		id = e.newID()
	}
	el := replay.FromPlacement(realPlacement, zone.Rotation, e.baseDims(), e.reference, types.DesignElement{
		ID:     id,
		Type:   types.ElementImage,
		Source: ref.Source,
		ZIndex: e.nextZ(),
	})
	e.designs = append(e.designs, design{zoneID: zoneID, element: el, reference: e.reference, source: img})

	e.log.Debug().
		Str("zone", zoneID).
		Str("design", id).
		Float64("scale", scale).
		Msg("design attached")
	return el, placement, nil
}

// DetachDesign removes the zone's image designs and unlocks it
func (e *Engine) DetachDesign(zoneID string) error {
	if err := e.controller.DetachDesign(zoneID); err != nil {
		return err
	}
	kept := e.designs[:0]
	for _, d := range e.designs {
		if d.zoneID == zoneID && d.element.Type == types.ElementImage {
			continue
		}
		kept = append(kept, d)
	}
	e.designs = kept
	return nil
}

// AddText centers a text element in the zone. fontSize is in base image pixels.
func (e *Engine) AddText(zoneID, text string, fontSize float64, color string) (types.DesignElement, error) {
	if e.base == nil {
		return types.DesignElement{}, ErrNoBaseImage
	}
	if err := e.checkZone(zoneID); err != nil {
		return types.DesignElement{}, err
	}
	if text == "" || fontSize <= 0 {
		return types.DesignElement{}, fmt.Errorf("text element needs text and a positive font size")
	}

	zone, _ := e.controller.Zone()
	cx, cy := zone.Rect().Center()
	g := types.AbsoluteGeometry{
		X:        cx,
		Y:        cy,
		Width:    zone.Width * e.fitter.PaddingFactor(),
		Height:   fontSize * 1.25,
		Rotation: zone.Rotation,
		FontSize: fontSize,
	}
	el := replay.Normalize(g, e.baseDims(), e.reference, types.DesignElement{
		ID:     e.newID(),
		Type:   types.ElementText,
		Text:   text,
		Color:  color,
		ZIndex: e.nextZ(),
	})
	e.designs = append(e.designs, design{zoneID: zoneID, element: el, reference: e.reference})
	return el, nil
}

// Elements returns the placed design elements in insertion order
func (e *Engine) Elements() []types.DesignElement {
	out := make([]types.DesignElement, 0, len(e.designs))
	for _, d := range e.designs {
		out = append(out, d.element)
	}
	return out
}

// Layers returns the design elements ready for rendering
func (e *Engine) Layers() []render.Layer {
	out := make([]render.Layer, 0, len(e.designs))
	for _, d := range e.designs {
		out = append(out, render.Layer{Element: d.element, Reference: d.reference, Source: d.source})
	}
	return out
}

// ComputePlacement centers a design of the given pixel size inside the zone's
// real coordinates.
func (e *Engine) ComputePlacement(zone types.Delimitation, size types.Dimensions) types.RealDesignPlacement {
	return e.fitter.Precise(zone, size)
}

// Validate checks zone against the base image bounds
func (e *Engine) Validate(zone types.Delimitation) (validation.Report, error) {
	if e.base == nil {
		return validation.Report{}, ErrNoBaseImage
	}
	return e.validator.Validate(zone, e.baseDims()), nil
}

// Score rates zone against the base image
func (e *Engine) Score(zone types.Delimitation) (types.QualityFeedback, error) {
	if e.base == nil {
		return types.QualityFeedback{}, ErrNoBaseImage
	}
	return e.validator.Score(zone, e.baseDims()), nil
}

// EditorOverlay lays the elements out in viewport coordinates
func (e *Engine) EditorOverlay() ([]render.Placed, error) {
	m, ok := e.transformer.Metrics()
	if !ok {
		return nil, ErrNoBaseImage
	}
	return render.EditorLayout(e.Layers(), m), nil
}

// Preview renders the base image and designs fitted into a widget of size
func (e *Engine) Preview(ctx context.Context, size types.Dimensions) (image.Image, error) {
	if e.base == nil {
		return nil, ErrNoBaseImage
	}
	return e.renderer.Preview(ctx, e.base, e.Layers(), size, render.ParseColor(e.cfg.Export.Background))
}

// Export flattens the designs onto the base image at native resolution
func (e *Engine) Export(ctx context.Context) (image.Image, error) {
	if e.base == nil {
		return nil, ErrNoBaseImage
	}
	return e.renderer.Export(ctx, render.ExportRequest{Base: e.base, Layers: e.Layers()})
}

// ExportToFile exports and encodes to path. The format follows the file
// extension, or the configured format when the path has none.
func (e *Engine) ExportToFile(ctx context.Context, path string) error {
	img, err := e.Export(ctx)
	if err != nil {
		return err
	}
	format := e.cfg.Export.Format
	if filepath.Ext(path) != "" {
		format = processing.FormatFromPath(path)
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return e.processor.SaveImage(img, path, format, e.cfg.Export.Quality, e.cfg.Export.Lossless)
}

// DebugOverlay draws the zone and the replayed element outlines on the base image
func (e *Engine) DebugOverlay() (image.Image, error) {
	if e.base == nil {
		return nil, ErrNoBaseImage
	}
	zone, ok := e.controller.Zone()
	if !ok {
		return nil, delimitation.ErrNoZone
	}
	dims := e.baseDims()
	geoms := make([]types.AbsoluteGeometry, 0, len(e.designs))
	for _, d := range e.designs {
		geoms = append(geoms, replay.Replay(d.element, dims, d.reference))
	}
	return e.processor.CreateDebugOverlay(e.base, zone.Rect(), geoms), nil
}

// SuggestZone proposes a printable zone for the base image and validates it.
// The zone is not created; pass it to PlaceZone to use it.
func (e *Engine) SuggestZone(ctx context.Context) (suggest.Result, validation.Report, error) {
	if e.base == nil {
		return suggest.Result{}, validation.Report{}, ErrNoBaseImage
	}
	res, err := e.suggester.Suggest(ctx, e.base)
	if err != nil {
		return suggest.Result{}, validation.Report{}, err
	}
	return res, e.validator.Validate(res.Zone, e.baseDims()), nil
}

// OpenDraft starts autosaving committed zones under key
func (e *Engine) OpenDraft(key string) {
	if e.autosaver != nil {
		e.autosaver.Close()
	}
	e.autosaver = persistence.NewAutosaver(e.repo, key,
		persistence.WithDebounce(e.cfg.Persistence.Debounce),
		persistence.WithElements(e.Elements),
		persistence.WithReference(e.reference),
	)
}

// FlushDraft writes a pending draft immediately
func (e *Engine) FlushDraft() {
	if e.autosaver != nil {
		e.autosaver.Flush()
	}
}

// RestoreDraft recreates the zone and designs saved under key and resumes
// autosaving there. Image designs are reloaded from their source.
func (e *Engine) RestoreDraft(ctx context.Context, key string) (persistence.Draft, error) {
	d, err := e.repo.Load(ctx, key)
	if err != nil {
		return persistence.Draft{}, err
	}

	sources := make(map[string]image.Image)
	for _, el := range d.Elements {
		if el.Type != types.ElementImage {
			continue
		}
		img, _, err := e.processor.LoadImageSmart(ctx, el.Source)
		if err != nil {
			return persistence.Draft{}, fmt.Errorf("failed to load design %s: %w", el.ID, err)
		}
		sources[el.ID] = img
	}

	if e.autosaver != nil {
		e.autosaver.Close()
		e.autosaver = nil
	}
	zone, err := e.PlaceZone(d.Zone)
	if err != nil {
		return persistence.Draft{}, err
	}

	ref := d.Reference.OrDefault()
	for _, el := range d.Elements {
		e.designs = append(e.designs, design{zoneID: zone.ID, element: el, reference: ref, source: sources[el.ID]})
		if el.Type == types.ElementImage && !e.controller.Locked() {
			if err := e.controller.AttachDesign(zone.ID, types.DesignRef{ID: el.ID, Source: el.Source}); err != nil {
				return persistence.Draft{}, err
			}
		}
	}

	e.OpenDraft(key)
	e.log.Info().Str("key", key).Int("elements", len(d.Elements)).Msg("draft restored")
	return d, nil
}

// ApplyConfig swaps in a reloaded configuration. Layout, fit, validation and
// export settings take effect immediately and the zone is re-laid out. The
// reference frame, draft store and vision backend keep their startup values.
func (e *Engine) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	e.configure(cfg)
	e.log.Info().Msg("configuration applied")
	return e.SetViewport(cfg.Viewport.Width, cfg.Viewport.Height)
}

// ListDrafts returns every stored draft
func (e *Engine) ListDrafts(ctx context.Context) ([]persistence.Draft, error) {
	return e.repo.ListAll(ctx)
}

// PurgeDrafts removes drafts older than the configured max age
func (e *Engine) PurgeDrafts(ctx context.Context) (int, error) {
	return e.repo.PurgeOlderThan(ctx, e.cfg.Persistence.MaxAge)
}

// Close cancels pending draft writes and releases the draft store
func (e *Engine) Close() error {
	if e.autosaver != nil {
		e.autosaver.Close()
	}
	if c, ok := e.repo.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Engine) onCommitted(zone types.Delimitation) {
	if e.autosaver != nil {
		e.autosaver.OnGeometryCommitted(zone)
	}
}

func (e *Engine) onZoneDeleted(id string) {
	kept := e.designs[:0]
	for _, d := range e.designs {
		if d.zoneID != id {
			kept = append(kept, d)
		}
	}
	e.designs = kept
	if e.autosaver != nil {
		e.autosaver.OnZoneDeleted(id)
	}
}

func (e *Engine) checkZone(id string) error {
	zone, ok := e.controller.Zone()
	if !ok {
		return delimitation.ErrNoZone
	}
	if zone.ID != id {
		return fmt.Errorf("%w: %s", delimitation.ErrUnknownZone, id)
	}
	return nil
}

func (e *Engine) baseDims() types.Dimensions {
	b := e.base.Bounds()
	return types.Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

func (e *Engine) nextZ() int {
	z := 0
	for _, d := range e.designs {
		z = max(z, d.element.ZIndex+1)
	}
	return z
}
