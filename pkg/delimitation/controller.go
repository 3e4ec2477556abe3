package delimitation

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/printzone/pkg/transform"
	"github.com/menta2k/printzone/pkg/types"
)

// DefaultMinDrawSize is the smallest drag, in display pixels, that creates a zone
const DefaultMinDrawSize = 20

var (
	ErrNoZone      = errors.New("no active zone")
	ErrUnknownZone = errors.New("unknown zone")
	ErrZoneLocked  = errors.New("zone is locked by an attached design")
)

// Mode is the editor tool mode
type Mode string

const (
	// ModeSelect allows moving, scaling and rotating the zone shape
	ModeSelect Mode = "select"
	// ModeDraw creates a zone by dragging; the existing shape does not react
	ModeDraw Mode = "draw"
	// ModeMove only translates the zone; size and rotation are kept
	ModeMove Mode = "move"
)

// Listener observes zone geometry. OnGeometryChanged fires on every
// interaction frame and must stay cheap; OnGeometryCommitted fires only on an
// explicit Commit and is where persistence belongs.
type Listener interface {
	OnGeometryChanged(zone types.Delimitation)
	OnGeometryCommitted(zone types.Delimitation)
	OnZoneDeleted(id string)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Changed   func(types.Delimitation)
	Committed func(types.Delimitation)
	Deleted   func(string)
}

func (l ListenerFuncs) OnGeometryChanged(z types.Delimitation) {
	if l.Changed != nil {
		l.Changed(z)
	}
}

func (l ListenerFuncs) OnGeometryCommitted(z types.Delimitation) {
	if l.Committed != nil {
		l.Committed(z)
	}
}

func (l ListenerFuncs) OnZoneDeleted(id string) {
	if l.Deleted != nil {
		l.Deleted(id)
	}
}

// Patch is a partial real-space geometry update. Nil fields are left as is.
type Patch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

type activeZone struct {
	geom   types.Delimitation
	shape  Shape
	locked bool
	design *types.DesignRef
}

type dragState struct {
	originX float64
	originY float64
	rect    types.Rect
}

// Controller owns the single active zone of an editing session. It is not
// safe for concurrent use; all calls come from the UI event loop.
type Controller struct {
	transformer *transform.Transformer
	factory     ShapeFactory
	listeners   []Listener
	minDrawSize float64
	newID       func() string

	mode Mode
	zone *activeZone
	drag *dragState
	log  zerolog.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithMinDrawSize overrides the drag-to-create threshold
func WithMinDrawSize(px float64) Option {
	return func(c *Controller) {
		if px > 0 {
			c.minDrawSize = px
		}
	}
}

// WithShapeFactory sets the canvas used for zone shapes
func WithShapeFactory(f ShapeFactory) Option {
	return func(c *Controller) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithListener registers a listener
func WithListener(l Listener) Option {
	return func(c *Controller) {
		c.AddListener(l)
	}
}

// New creates a Controller in select mode with no zone
func New(t *transform.Transformer, opts ...Option) *Controller {
	c := &Controller{
		transformer: t,
		factory:     NewHeadlessRect,
		minDrawSize: DefaultMinDrawSize,
		newID:       uuid.NewString,
		mode:        ModeSelect,
		log:         log.With().Str("module", "delimitation").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddListener registers l for geometry notifications
func (c *Controller) AddListener(l Listener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

// Mode returns the current tool mode
func (c *Controller) Mode() Mode {
	return c.mode
}

// SetMode switches tool mode and drops any unfinished drag
func (c *Controller) SetMode(m Mode) {
	c.mode = m
	c.drag = nil
}

// Zone returns the active zone in real image pixels
func (c *Controller) Zone() (types.Delimitation, bool) {
	if c.zone == nil {
		return types.Delimitation{}, false
	}
	return c.zone.geom, true
}

// DisplayRect returns the active zone in display pixels
func (c *Controller) DisplayRect() (types.Rect, bool) {
	if c.zone == nil {
		return types.Rect{}, false
	}
	return c.transformer.ZoneToDisplay(c.zone.geom), true
}

// Shape returns the canvas shape of the active zone
func (c *Controller) Shape() (Shape, bool) {
	if c.zone == nil {
		return nil, false
	}
	return c.zone.shape, true
}

// Locked reports whether the active zone is locked by a design
func (c *Controller) Locked() bool {
	return c.zone != nil && c.zone.locked
}

// Design returns the design attached to the active zone
func (c *Controller) Design() (types.DesignRef, bool) {
	if c.zone == nil || c.zone.design == nil {
		return types.DesignRef{}, false
	}
	return *c.zone.design, true
}

// PointerDown starts a drag in draw mode
func (c *Controller) PointerDown(x, y float64) bool {
	if c.mode != ModeDraw {
		return false
	}
	c.drag = &dragState{originX: x, originY: y, rect: types.Rect{X: x, Y: y}}
	return true
}

// PointerMove grows the drag rectangle from its origin to the cursor and
// returns the display-space preview.
func (c *Controller) PointerMove(x, y float64) (types.Rect, bool) {
	if c.mode != ModeDraw || c.drag == nil {
		return types.Rect{}, false
	}
	c.drag.rect = types.Rect{
		X:      math.Min(c.drag.originX, x),
		Y:      math.Min(c.drag.originY, y),
		Width:  math.Abs(x - c.drag.originX),
		Height: math.Abs(y - c.drag.originY),
	}
	return c.drag.rect, true
}

// PointerUp finishes a drag. A rectangle of at least the minimum draw size in
// both axes becomes the new zone and the editor returns to select mode.
// Smaller drags are discarded.
func (c *Controller) PointerUp(x, y float64) (types.Delimitation, bool) {
	rect, ok := c.PointerMove(x, y)
	c.drag = nil
	if !ok {
		return types.Delimitation{}, false
	}
	if rect.Width < c.minDrawSize || rect.Height < c.minDrawSize {
		c.log.Debug().
			Float64("width", rect.Width).
			Float64("height", rect.Height).
			Msg("drag below minimum size, discarded")
		return types.Delimitation{}, false
	}

	zone := c.create(rect)
	c.mode = ModeSelect
	return zone, true
}

// CreateZone adds a zone from a display rectangle, replacing any existing one
func (c *Controller) CreateZone(display types.Rect) (types.Delimitation, error) {
	if display.Width <= 0 || display.Height <= 0 {
		return types.Delimitation{}, fmt.Errorf("zone size %gx%g must be positive", display.Width, display.Height)
	}
	return c.create(display), nil
}

func (c *Controller) create(display types.Rect) types.Delimitation {
	if c.zone != nil {
		replaced := c.zone.geom.ID
		c.discard()
		for _, l := range c.listeners {
			l.OnZoneDeleted(replaced)
		}
	}

	realRect := c.transformer.ToReal(display)
	geom := types.Delimitation{
		ID:     c.newID(),
		X:      realRect.X,
		Y:      realRect.Y,
		Width:  realRect.Width,
		Height: realRect.Height,
		Type:   types.ZoneRectangle,
	}

	shape := c.factory(display)
	c.zone = &activeZone{geom: geom, shape: shape}
	id := geom.ID
	shape.OnModify(func(kind EventKind) { c.handleShapeEvent(id, kind) })

	c.log.Debug().Str("zone", id).Msg("zone created")
	c.notifyChanged()
	return geom
}

// UpdateZone applies a real-space patch to the active zone
func (c *Controller) UpdateZone(id string, p Patch) (types.Delimitation, error) {
	if err := c.check(id); err != nil {
		return types.Delimitation{}, err
	}
	if c.zone.locked {
		return c.zone.geom, ErrZoneLocked
	}

	g := c.zone.geom
	if p.X != nil {
		g.X = *p.X
	}
	if p.Y != nil {
		g.Y = *p.Y
	}
	if p.Width != nil {
		g.Width = *p.Width
	}
	if p.Height != nil {
		g.Height = *p.Height
	}
	if p.Rotation != nil {
		g.Rotation = *p.Rotation
	}
	if g.Width <= 0 || g.Height <= 0 {
		return c.zone.geom, fmt.Errorf("zone size %gx%g must be positive", g.Width, g.Height)
	}

	c.zone.geom = g
	c.syncShape()
	c.notifyChanged()
	return g, nil
}

// DeleteZone removes the zone and any design association. Valid in any state.
func (c *Controller) DeleteZone(id string) error {
	if err := c.check(id); err != nil {
		return err
	}
	c.discard()
	for _, l := range c.listeners {
		l.OnZoneDeleted(id)
	}
	return nil
}

// Commit hands the current zone to committed listeners
func (c *Controller) Commit() (types.Delimitation, error) {
	if c.zone == nil {
		return types.Delimitation{}, ErrNoZone
	}
	for _, l := range c.listeners {
		l.OnGeometryCommitted(c.zone.geom)
	}
	return c.zone.geom, nil
}

// AttachDesign locks the zone: its shape stops reacting to interactions
// until the design is detached.
func (c *Controller) AttachDesign(zoneID string, ref types.DesignRef) error {
	if err := c.check(zoneID); err != nil {
		return err
	}
	d := ref
	c.zone.design = &d
	c.zone.locked = true
	c.zone.shape.SetLocked(true)
	c.log.Debug().Str("zone", zoneID).Str("design", ref.ID).Msg("design attached, zone locked")
	return nil
}

// DetachDesign unlocks the zone
func (c *Controller) DetachDesign(zoneID string) error {
	if err := c.check(zoneID); err != nil {
		return err
	}
	c.zone.design = nil
	c.zone.locked = false
	c.zone.shape.SetLocked(false)
	return nil
}

// Rebind recomputes the shape from the stored real geometry, e.g. after the
// viewport or base image layout changed.
func (c *Controller) Rebind() {
	if c.zone == nil {
		return
	}
	c.syncShape()
}

func (c *Controller) handleShapeEvent(id string, kind EventKind) {
	if c.zone == nil || c.zone.geom.ID != id {
		return
	}
	if c.zone.locked || c.mode == ModeDraw {
		// snap back; locked shapes and the draw tool do not move the zone
		c.syncShape()
		return
	}

	sg := c.zone.shape.Geometry()
	realRect := c.transformer.ToRealScaled(sg.Rect(), sg.ScaleX, sg.ScaleY)

	g := c.zone.geom
	g.X, g.Y = realRect.X, realRect.Y
	if c.mode == ModeMove {
		c.zone.geom = g
		c.syncShape()
	} else {
		g.Width, g.Height = realRect.Width, realRect.Height
		g.Rotation = sg.Angle
		c.zone.geom = g
	}

	c.log.Trace().Str("zone", id).Str("event", string(kind)).Msg("geometry recomputed")
	c.notifyChanged()
}

func (c *Controller) syncShape() {
	d := c.transformer.ZoneToDisplay(c.zone.geom)
	c.zone.shape.SetGeometry(ShapeGeometry{
		Left:   d.X,
		Top:    d.Y,
		Width:  d.Width,
		Height: d.Height,
		ScaleX: 1,
		ScaleY: 1,
		Angle:  c.zone.geom.Rotation,
	})
}

func (c *Controller) discard() {
	c.zone.shape.Remove()
	c.zone = nil
}

func (c *Controller) check(id string) error {
	if c.zone == nil {
		return ErrNoZone
	}
	if c.zone.geom.ID != id {
		return fmt.Errorf("%w: %s", ErrUnknownZone, id)
	}
	return nil
}

func (c *Controller) notifyChanged() {
	for _, l := range c.listeners {
		l.OnGeometryChanged(c.zone.geom)
	}
}
