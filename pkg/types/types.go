package types

// Dimensions is a width/height pair in pixels
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns width*height
func (d Dimensions) Area() float64 {
	return d.Width * d.Height
}

// Valid reports whether both sides are strictly positive
func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// Rect is an axis-aligned rectangle anchored at its top-left corner
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the center point of the rectangle
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains reports whether o lies fully inside r
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// ImageMetrics describes how a base image is laid out inside an editing viewport.
// It is derived once per loaded image and viewport size.
type ImageMetrics struct {
	OriginalWidth  float64 `json:"original_width"`
	OriginalHeight float64 `json:"original_height"`
	DisplayScale   float64 `json:"display_scale"`
	DisplayOffsetX float64 `json:"display_offset_x"`
	DisplayOffsetY float64 `json:"display_offset_y"`
	DisplayWidth   float64 `json:"display_width"`
	DisplayHeight  float64 `json:"display_height"`
}

// Original returns the native dimensions of the base image
func (m ImageMetrics) Original() Dimensions {
	return Dimensions{Width: m.OriginalWidth, Height: m.OriginalHeight}
}

// ZoneType classifies a delimitation
type ZoneType string

const (
	ZoneRectangle ZoneType = "rectangle"
)

// Delimitation is the printable zone. Geometry is stored in real image pixels.
type Delimitation struct {
	ID       string   `json:"id"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Rotation float64  `json:"rotation"`
	Type     ZoneType `json:"type"`
}

// Rect returns the zone's unrotated rectangle
func (d Delimitation) Rect() Rect {
	return Rect{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height}
}

// ElementType is the kind of a design element
type ElementType string

const (
	ElementImage ElementType = "image"
	ElementText  ElementType = "text"
)

// DesignElement is a design placed on a rendering canvas. X and Y are fractions
// of the canvas (0-1) locating the element center; Width and Height are pixels
// against the element's ReferenceFrame.
type DesignElement struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Rotation float64     `json:"rotation"`
	ZIndex   int         `json:"z_index"`

	// image elements
	Source string `json:"source,omitempty"`

	// text elements
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// ReferenceFrame is the nominal size element pixel magnitudes are authored against
type ReferenceFrame struct {
	ReferenceWidth  float64 `json:"reference_width"`
	ReferenceHeight float64 `json:"reference_height"`
}

// DefaultReferenceFrame is used when an element carries no frame of its own
var DefaultReferenceFrame = ReferenceFrame{ReferenceWidth: 800, ReferenceHeight: 800}

// OrDefault returns f, or DefaultReferenceFrame when f has a non-positive side
func (f ReferenceFrame) OrDefault() ReferenceFrame {
	if f.ReferenceWidth <= 0 || f.ReferenceHeight <= 0 {
		return DefaultReferenceFrame
	}
	return f
}

// AbsoluteGeometry is a replayed element in canvas pixels. X and Y locate the
// element center.
type AbsoluteGeometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	FontSize float64 `json:"font_size,omitempty"`
	Scale    float64 `json:"scale"`
}

// Bounds returns the unrotated box after anchoring at the center
func (g AbsoluteGeometry) Bounds() Rect {
	return Rect{X: g.X - g.Width/2, Y: g.Y - g.Height/2, Width: g.Width, Height: g.Height}
}

// RealDesignPlacement is a design's box inside a zone, in real image pixels
type RealDesignPlacement struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Right   float64 `json:"right"`
	Bottom  float64 `json:"bottom"`
}

// Width returns the horizontal extent of the placement
func (p RealDesignPlacement) Width() float64 { return p.Right - p.Left }

// Height returns the vertical extent of the placement
func (p RealDesignPlacement) Height() float64 { return p.Bottom - p.Top }

// QualityStatus buckets a quality score
type QualityStatus string

const (
	StatusExcellent QualityStatus = "excellent"
	StatusGood      QualityStatus = "good"
	StatusWarning   QualityStatus = "warning"
	StatusError     QualityStatus = "error"
)

// QualityFeedback is advisory feedback about a zone
type QualityFeedback struct {
	Status      QualityStatus `json:"status"`
	Score       int           `json:"score"`
	Message     string        `json:"message"`
	Warnings    []string      `json:"warnings"`
	Suggestions []string      `json:"suggestions"`
}

// DesignRef identifies a design attached to a zone
type DesignRef struct {
	ID     string     `json:"id"`
	Source string     `json:"source"`
	Size   Dimensions `json:"size"`
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ZoneSuggestion is a vision model's proposal for the printable area of a product photo
type ZoneSuggestion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Surface    string  `json:"surface"`
	Reason     string  `json:"reason"`
}
