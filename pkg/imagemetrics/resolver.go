package imagemetrics

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/menta2k/printzone/pkg/types"
)

// ErrInvalidDimensions is returned when an image or viewport has a non-positive side
var ErrInvalidDimensions = errors.New("invalid dimensions")

// ErrUnsupportedFormat is returned for base images in a format the editor does not accept
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DefaultFormats are the decoder format names accepted for base images
var DefaultFormats = []string{"jpeg", "png", "webp", "gif"}

// DefaultFitFactor leaves a 10% margin around the image inside the viewport
const DefaultFitFactor = 0.9

// Resolver computes display layout for base images
type Resolver struct {
	config Config
}

// Config holds configuration for the resolver
type Config struct {
	FitFactor        float64
	SupportedFormats []string
	MinImageSize     int
}

// New creates a new Resolver with default configuration
func New() *Resolver {
	return &Resolver{
		config: Config{
			FitFactor:        DefaultFitFactor,
			SupportedFormats: DefaultFormats,
			MinImageSize:     50,
		},
	}
}

// NewWithConfig creates a new Resolver with custom configuration
func NewWithConfig(config Config) *Resolver {
	if config.FitFactor <= 0 {
		config.FitFactor = DefaultFitFactor
	}
	if len(config.SupportedFormats) == 0 {
		config.SupportedFormats = DefaultFormats
	}
	return &Resolver{config: config}
}

// FitFactor returns the configured fit factor
func (r *Resolver) FitFactor() float64 {
	return r.config.FitFactor
}

// Resolve lays out an image of the given size centered in a viewport
func (r *Resolver) Resolve(original, viewport types.Dimensions) (types.ImageMetrics, error) {
	return Resolve(original, viewport, r.config.FitFactor)
}

// ResolveImage is Resolve for a decoded image
func (r *Resolver) ResolveImage(img image.Image, viewport types.Dimensions) (types.ImageMetrics, error) {
	b := img.Bounds()
	return r.Resolve(types.Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}, viewport)
}

// Resolve computes display scale and centering offsets.
// displayScale = min(viewportW/originalW, viewportH/originalH) * fitFactor
func Resolve(original, viewport types.Dimensions, fitFactor float64) (types.ImageMetrics, error) {
	if !original.Valid() {
		return types.ImageMetrics{}, fmt.Errorf("image %gx%g: %w", original.Width, original.Height, ErrInvalidDimensions)
	}
	if !viewport.Valid() {
		return types.ImageMetrics{}, fmt.Errorf("viewport %gx%g: %w", viewport.Width, viewport.Height, ErrInvalidDimensions)
	}

	scale := math.Min(viewport.Width/original.Width, viewport.Height/original.Height) * fitFactor
	dw := original.Width * scale
	dh := original.Height * scale

	return types.ImageMetrics{
		OriginalWidth:  original.Width,
		OriginalHeight: original.Height,
		DisplayScale:   scale,
		DisplayOffsetX: (viewport.Width - dw) / 2,
		DisplayOffsetY: (viewport.Height - dh) / 2,
		DisplayWidth:   dw,
		DisplayHeight:  dh,
	}, nil
}

// ValidateImage checks if a base image meets minimum requirements
func (r *Resolver) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < r.config.MinImageSize || bounds.Dy() < r.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), r.config.MinImageSize)
	}
	return nil
}

// IsFormatSupported reports whether a decoder format name is accepted
func (r *Resolver) IsFormatSupported(format string) bool {
	for _, supported := range r.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// CheckFormat returns ErrUnsupportedFormat unless format is accepted
func (r *Resolver) CheckFormat(format string) error {
	if !r.IsFormatSupported(format) {
		return fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
	return nil
}
