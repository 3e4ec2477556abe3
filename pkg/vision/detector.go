// Package vision locates the product in a photo without a model. It is the
// offline backend for zone suggestions.
package vision

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/printzone/pkg/types"
)

// SubjectDetector finds the salient region of an image
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	// MaxSide bounds the working resolution
	MaxSide int
	// ContrastWeight scales local edge strength
	ContrastWeight float64
	// ColorWeight scales distance from the estimated background color
	ColorWeight float64
	// Sigma sets the saliency threshold at mean + Sigma*stddev
	Sigma float64
	// Inset shrinks the subject box on each side, as a fraction of its size
	Inset float64
	// MinSubjectRatio is the smallest subject area accepted, relative to the image
	MinSubjectRatio float64
}

// DefaultConfig returns the standard detection settings
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		MaxSide:         256,
		ContrastWeight:  0.7,
		ColorWeight:     0.3,
		Sigma:           0.5,
		Inset:           0.2,
		MinSubjectRatio: 0.05,
	}
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	def := DefaultConfig()
	if config.MaxSide <= 0 {
		config.MaxSide = def.MaxSide
	}
	if config.ContrastWeight == 0 && config.ColorWeight == 0 {
		config.ContrastWeight = def.ContrastWeight
		config.ColorWeight = def.ColorWeight
	}
	if config.Inset < 0 || config.Inset >= 0.5 {
		config.Inset = def.Inset
	}
	return &SubjectDetector{config: config}
}

// Region is a pixel rectangle with a saliency score
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Locate proposes a printable area on the subject of img as a normalized box.
// It reports false when no subject stands out from the background.
func (d *SubjectDetector) Locate(img image.Image) (types.ZoneSuggestion, bool) {
	work := d.workingImage(img)
	b := work.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return types.ZoneSuggestion{}, false
	}

	saliency := d.saliencyMap(work)
	region, ok := d.subjectRegion(saliency, w, h)
	if !ok {
		return types.ZoneSuggestion{}, false
	}

	insetX := float64(region.Width) * d.config.Inset
	insetY := float64(region.Height) * d.config.Inset
	box := types.Box{
		X: (float64(region.X) + insetX) / float64(w),
		Y: (float64(region.Y) + insetY) / float64(h),
		W: (float64(region.Width) - 2*insetX) / float64(w),
		H: (float64(region.Height) - 2*insetY) / float64(h),
	}

	return types.ZoneSuggestion{
		Label:      "subject",
		Confidence: region.Score,
		Box:        box,
		Surface:    "flat",
		Reason:     "salient region inset from its edges",
	}, true
}

func (d *SubjectDetector) workingImage(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() > d.config.MaxSide || b.Dy() > d.config.MaxSide {
		return imaging.Fit(img, d.config.MaxSide, d.config.MaxSide, imaging.Box)
	}
	return imaging.Clone(img)
}

// saliencyMap combines edge strength with distance from the border color
func (d *SubjectDetector) saliencyMap(img *image.NRGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	bgR, bgG, bgB := borderColor(img)

	px := func(x, y int) (float64, float64, float64) {
		i := y*img.Stride + x*4
		return float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
	}

	maxDist := math.Sqrt(3) * 255
	sal := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r1, g1, b1 := px(x, y)

			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						r2, g2, b2 := px(x+dx, y+dy)
						edge += math.Sqrt((r1-r2)*(r1-r2) + (g1-g2)*(g1-g2) + (b1-b2)*(b1-b2))
					}
				}
				edge /= 8 * maxDist
			}

			dist := math.Sqrt((r1-bgR)*(r1-bgR)+(g1-bgG)*(g1-bgG)+(b1-bgB)*(b1-bgB)) / maxDist
			sal[y*w+x] = d.config.ContrastWeight*edge + d.config.ColorWeight*dist
		}
	}
	return sal
}

// subjectRegion bounds the pixels above the saliency threshold
func (d *SubjectDetector) subjectRegion(sal []float64, w, h int) (Region, bool) {
	mean, std := stat.MeanStdDev(sal, nil)
	if std < 1e-6 || math.IsNaN(std) {
		return Region{}, false
	}
	threshold := mean + d.config.Sigma*std

	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if sal[y*w+x] <= threshold {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < 0 {
		return Region{}, false
	}

	region := Region{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
	if float64(region.Area()) < d.config.MinSubjectRatio*float64(w*h) {
		return Region{}, false
	}

	// density of salient pixels inside the box
	var hits int
	for y := region.Y; y < region.Y+region.Height; y++ {
		for x := region.X; x < region.X+region.Width; x++ {
			if sal[y*w+x] > threshold {
				hits++
			}
		}
	}
	region.Score = float64(hits) / float64(region.Area())
	return region, true
}

// borderColor averages the outermost ring of pixels
func borderColor(img *image.NRGBA) (float64, float64, float64) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	var r, g, b, n float64
	add := func(x, y int) {
		i := y*img.Stride + x*4
		r += float64(img.Pix[i])
		g += float64(img.Pix[i+1])
		b += float64(img.Pix[i+2])
		n++
	}
	for x := 0; x < w; x++ {
		add(x, 0)
		add(x, h-1)
	}
	for y := 1; y < h-1; y++ {
		add(0, y)
		add(w-1, y)
	}
	return r / n, g / n, b / n
}
