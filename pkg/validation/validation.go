package validation

import (
	"fmt"
	"math"

	"github.com/menta2k/printzone/pkg/types"
)

// Thresholds holds the limits used by Validate and Score
type Thresholds struct {
	// warnings
	MinDimension   float64
	MaxAreaPercent float64
	MinAspectRatio float64
	MaxAspectRatio float64

	// score penalties, area in percent of the image
	TooSmallPercent float64
	TooLargePercent float64
	OptimalMinPct   float64
	OptimalMaxPct   float64
	WarningPenalty  int
	TooSmallPenalty int
	TooLargePenalty int
}

// DefaultThresholds returns the standard limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDimension:    10,
		MaxAreaPercent:  50,
		MinAspectRatio:  0.2,
		MaxAspectRatio:  5,
		TooSmallPercent: 5,
		TooLargePercent: 60,
		OptimalMinPct:   15,
		OptimalMaxPct:   35,
		WarningPenalty:  20,
		TooSmallPenalty: 30,
		TooLargePenalty: 20,
	}
}

// Report is the outcome of bounds validation. Suggestions pair 1:1 with Warnings.
type Report struct {
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// Valid reports whether the zone has no blocking errors
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Report) warn(warning, suggestion string) {
	r.Warnings = append(r.Warnings, warning)
	r.Suggestions = append(r.Suggestions, suggestion)
}

// Validator checks zones against their base image
type Validator struct {
	thresholds Thresholds
}

// New creates a Validator with default thresholds
func New() *Validator {
	return &Validator{thresholds: DefaultThresholds()}
}

// NewWithThresholds creates a Validator with custom thresholds
func NewWithThresholds(t Thresholds) *Validator {
	return &Validator{thresholds: t}
}

// Validate is shorthand for New().Validate
func Validate(zone types.Delimitation, image types.Dimensions) Report {
	return New().Validate(zone, image)
}

// Score is shorthand for New().Score
func Score(zone types.Delimitation, image types.Dimensions) types.QualityFeedback {
	return New().Score(zone, image)
}

// Validate requires the zone to lie fully inside the image and collects
// non-blocking warnings about its shape.
func (v *Validator) Validate(zone types.Delimitation, image types.Dimensions) Report {
	var r Report
	t := v.thresholds

	if zone.X < 0 || zone.Y < 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("zone origin (%.0f, %.0f) is outside the image", zone.X, zone.Y))
	}
	if zone.X+zone.Width > image.Width {
		r.Errors = append(r.Errors, fmt.Sprintf("zone right edge %.0f exceeds image width %.0f", zone.X+zone.Width, image.Width))
	}
	if zone.Y+zone.Height > image.Height {
		r.Errors = append(r.Errors, fmt.Sprintf("zone bottom edge %.0f exceeds image height %.0f", zone.Y+zone.Height, image.Height))
	}

	if math.Min(zone.Width, zone.Height) < t.MinDimension {
		r.warn(
			fmt.Sprintf("zone is very narrow (%.0fx%.0f px)", zone.Width, zone.Height),
			fmt.Sprintf("make both sides at least %.0f px", t.MinDimension),
		)
	}
	if pct := AreaPercent(zone, image); pct > t.MaxAreaPercent {
		r.warn(
			fmt.Sprintf("zone covers %.1f%% of the image", pct),
			"shrink the zone to the printable surface of the product",
		)
	}
	if zone.Height > 0 {
		ratio := zone.Width / zone.Height
		if ratio < t.MinAspectRatio || ratio > t.MaxAspectRatio {
			r.warn(
				fmt.Sprintf("unusual aspect ratio %.2f", ratio),
				fmt.Sprintf("keep the width/height ratio between %.1f and %.0f", t.MinAspectRatio, t.MaxAspectRatio),
			)
		}
	}

	return r
}

// Score rates a zone from 0 to 100. It is advisory: callers may still commit
// a zone with status error.
func (v *Validator) Score(zone types.Delimitation, image types.Dimensions) types.QualityFeedback {
	t := v.thresholds
	report := v.Validate(zone, image)

	if !report.Valid() {
		return types.QualityFeedback{
			Status:      types.StatusError,
			Score:       0,
			Message:     "zone exceeds the image bounds: " + report.Errors[0],
			Warnings:    append(report.Errors, report.Warnings...),
			Suggestions: append([]string{"move or resize the zone so it lies inside the image"}, report.Suggestions...),
		}
	}

	score := 100 - t.WarningPenalty*len(report.Warnings)
	warnings := report.Warnings
	suggestions := report.Suggestions

	pct := AreaPercent(zone, image)
	switch {
	case pct < t.TooSmallPercent:
		score -= t.TooSmallPenalty
		warnings = append(warnings, fmt.Sprintf("zone is too small (%.1f%% of the image)", pct))
		suggestions = append(suggestions, fmt.Sprintf("enlarge the zone to %.0f-%.0f%% of the image", t.OptimalMinPct, t.OptimalMaxPct))
	case pct > t.TooLargePercent:
		score -= t.TooLargePenalty
		warnings = append(warnings, fmt.Sprintf("zone is too large (%.1f%% of the image)", pct))
		suggestions = append(suggestions, fmt.Sprintf("reduce the zone to %.0f-%.0f%% of the image", t.OptimalMinPct, t.OptimalMaxPct))
	}
	score = clampScore(score)

	fb := types.QualityFeedback{
		Score:       score,
		Warnings:    warnings,
		Suggestions: suggestions,
	}

	switch len(warnings) {
	case 0:
		fb.Status = types.StatusExcellent
	case 1:
		fb.Status = types.StatusGood
	default:
		fb.Status = types.StatusWarning
	}

	if pct >= t.OptimalMinPct && pct <= t.OptimalMaxPct {
		fb.Message = fmt.Sprintf("optimal zone size (%.1f%% of the image)", pct)
	} else {
		fb.Message = fmt.Sprintf("zone covers %.1f%% of the image", pct)
	}
	if len(warnings) > 0 {
		fb.Message += fmt.Sprintf(", %d warning(s)", len(warnings))
	}

	return fb
}

// AreaPercent returns the zone area as a percentage of the image area
func AreaPercent(zone types.Delimitation, image types.Dimensions) float64 {
	if image.Area() <= 0 {
		return 0
	}
	return zone.Width * zone.Height / image.Area() * 100
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
