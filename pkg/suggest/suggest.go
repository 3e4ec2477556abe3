// Package suggest asks a vision model where the printable surface of a
// product photo is and turns the answer into a zone in real image pixels.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/printzone/pkg/client"
	"github.com/menta2k/printzone/pkg/processing"
	"github.com/menta2k/printzone/pkg/types"
)

// DefaultPrompt asks for one normalized box around the printable surface
const DefaultPrompt = `You are locating the printable area on a product photo (t-shirt chest, mug side, poster sheet, tote bag panel...).

Return JSON only:
{
  "label": "product name",
  "confidence": 0.0,
  "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
  "surface": "flat|curved|fabric",
  "reason": "short neutral sentence (<= 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), x/y is the top-left corner.
- The box must lie fully on the product surface, away from seams, handles, folds and edges.
- Prefer the largest flat, front-facing region.
- If no product is visible, return:
  {"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5},"surface":"flat","reason":"no product found"}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// FallbackBox is the centered box used when the model answer is unusable
var FallbackBox = types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// Config holds model and request settings
type Config struct {
	Model       string
	Prompt      string
	SendSize    int
	SendQuality int
}

// DefaultConfig returns the standard settings
func DefaultConfig() Config {
	return Config{
		Model:       "qwen2.5vl:7b",
		Prompt:      DefaultPrompt,
		SendSize:    1024,
		SendQuality: 85,
	}
}

// Result is a suggestion and the zone derived from it
type Result struct {
	Suggestion types.ZoneSuggestion `json:"suggestion"`
	Zone       types.Delimitation   `json:"zone"`
	// Fallback is set when the model answer could not be used
	Fallback bool `json:"fallback"`
}

// Locator finds a printable box without a model
type Locator interface {
	Locate(img image.Image) (types.ZoneSuggestion, bool)
}

// Suggester proposes zones
type Suggester struct {
	client    client.VisionClient
	locator   Locator
	processor *processing.Processor
	config    Config
	newID     func() string
	log       zerolog.Logger
}

// New creates a Suggester with default settings
func New(c client.VisionClient) *Suggester {
	return NewWithConfig(c, DefaultConfig())
}

// NewWithConfig creates a Suggester with custom settings
func NewWithConfig(c client.VisionClient, cfg Config) *Suggester {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Prompt == "" {
		cfg.Prompt = def.Prompt
	}
	if cfg.SendSize <= 0 {
		cfg.SendSize = def.SendSize
	}
	if cfg.SendQuality <= 0 || cfg.SendQuality > 100 {
		cfg.SendQuality = def.SendQuality
	}
	return &Suggester{
		client:    c,
		processor: processing.NewProcessor(),
		config:    cfg,
		newID:     uuid.NewString,
		log:       log.With().Str("module", "suggest").Logger(),
	}
}

// NewLocal creates a Suggester that uses l instead of a vision model
func NewLocal(l Locator) *Suggester {
	s := NewWithConfig(nil, DefaultConfig())
	s.locator = l
	return s
}

// Suggest asks the model for the printable area of img. A transport error is
// returned; an unusable answer yields the centered fallback zone.
func (s *Suggester) Suggest(ctx context.Context, img image.Image) (Result, error) {
	b := img.Bounds()
	dims := types.Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}
	if !dims.Valid() {
		return Result{}, fmt.Errorf("image has no pixels")
	}

	if s.locator != nil {
		return s.suggestLocal(img, dims), nil
	}

	imgB64, err := s.processor.PrepareImageForModel(img, "jpg", s.config.SendSize, s.config.SendQuality)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode image for model: %w", err)
	}

	raw, err := s.client.Query(ctx, s.config.Model, s.config.Prompt, imgB64)
	if err != nil {
		return Result{}, fmt.Errorf("vision query failed: %w", err)
	}

	sug, ok := Parse(raw)
	if !ok {
		s.log.Warn().Str("model", s.config.Model).Msg("unusable model answer, using centered fallback")
	}
	sug.Box = NormalizeBox(sug.Box, dims)

	zone := ToZone(sug.Box, dims)
	zone.ID = s.newID()

	s.log.Debug().
		Str("label", sug.Label).
		Float64("confidence", sug.Confidence).
		Float64("x", zone.X).Float64("y", zone.Y).
		Float64("w", zone.Width).Float64("h", zone.Height).
		Msg("zone suggested")

	return Result{Suggestion: sug, Zone: zone, Fallback: !ok}, nil
}

func (s *Suggester) suggestLocal(img image.Image, dims types.Dimensions) Result {
	sug, ok := s.locator.Locate(img)
	if !ok {
		sug = fallback("no subject found")
		s.log.Warn().Msg("no salient subject, using centered fallback")
	}
	sug.Box = NormalizeBox(sug.Box, dims)

	zone := ToZone(sug.Box, dims)
	zone.ID = s.newID()
	return Result{Suggestion: sug, Zone: zone, Fallback: !ok}
}

// Parse reads a model answer. It reports false and returns the fallback
// suggestion when no usable box can be extracted.
func Parse(raw string) (types.ZoneSuggestion, bool) {
	cleaned := sanitizeModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return fallback("model returned non-JSON response"), false
	}

	var sug types.ZoneSuggestion
	if err := json.Unmarshal([]byte(cleaned), &sug); err != nil {
		return fallback("failed to parse model response"), false
	}
	if strings.EqualFold(sug.Label, "none") {
		return fallback("no product found"), false
	}
	if sug.Box.W <= 0 || sug.Box.H <= 0 {
		return fallback("model returned an empty box"), false
	}
	return sug, true
}

func fallback(reason string) types.ZoneSuggestion {
	return types.ZoneSuggestion{
		Label:      "none",
		Confidence: 0,
		Box:        FallbackBox,
		Surface:    "flat",
		Reason:     reason,
	}
}

// NormalizeBox clamps a box into [0,1]. Boxes with any coordinate above 1 are
// taken to be in pixels of dims and converted first.
func NormalizeBox(b types.Box, dims types.Dimensions) types.Box {
	if (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) && dims.Valid() {
		b = types.Box{
			X: b.X / dims.Width,
			Y: b.Y / dims.Height,
			W: b.W / dims.Width,
			H: b.H / dims.Height,
		}
	}
	b.X = clamp(b.X, 0, 1)
	b.Y = clamp(b.Y, 0, 1)
	b.W = clamp(b.W, 0, 1-b.X)
	b.H = clamp(b.H, 0, 1-b.Y)
	return b
}

// ToZone converts a normalized box to a zone in real image pixels
func ToZone(b types.Box, dims types.Dimensions) types.Delimitation {
	return types.Delimitation{
		X:      b.X * dims.Width,
		Y:      b.Y * dims.Height,
		Width:  b.W * dims.Width,
		Height: b.H * dims.Height,
		Type:   types.ZoneRectangle,
	}
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments and trailing commas and
// keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
