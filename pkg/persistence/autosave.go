package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/printzone/pkg/types"
)

// DefaultDebounce is the quiet period before a committed zone is written
const DefaultDebounce = 300 * time.Millisecond

const writeTimeout = 5 * time.Second

// Autosaver writes committed zone geometry to a Repository. It implements
// delimitation.Listener: intermediate geometry changes are ignored, commits
// are debounced, and deleting the zone drops the draft.
type Autosaver struct {
	repo      Repository
	key       string
	reference types.ReferenceFrame
	debounce  *Debouncer
	elements  func() []types.DesignElement
	log       zerolog.Logger

	mu     sync.Mutex
	closed bool

	// wmu serializes Save and Delete. epoch is bumped by every delete under
	// both mu and wmu; a write scheduled in an older epoch is dropped.
	wmu   sync.Mutex
	epoch uint64
}

// AutosaverOption configures an Autosaver
type AutosaverOption func(*Autosaver)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) AutosaverOption {
	return func(a *Autosaver) {
		if d > 0 {
			a.debounce = NewDebouncer(d)
		}
	}
}

// WithElements snapshots the session's design elements into each draft
func WithElements(fn func() []types.DesignElement) AutosaverOption {
	return func(a *Autosaver) {
		a.elements = fn
	}
}

// WithReference records the reference frame elements were authored against
func WithReference(ref types.ReferenceFrame) AutosaverOption {
	return func(a *Autosaver) {
		a.reference = ref
	}
}

// NewAutosaver creates an Autosaver writing under key
func NewAutosaver(repo Repository, key string, opts ...AutosaverOption) *Autosaver {
	a := &Autosaver{
		repo:      repo,
		key:       key,
		reference: types.DefaultReferenceFrame,
		debounce:  NewDebouncer(DefaultDebounce),
		log:       log.With().Str("module", "persistence").Str("key", key).Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnGeometryChanged is a no-op; only commits are persisted
func (a *Autosaver) OnGeometryChanged(types.Delimitation) {}

// OnGeometryCommitted schedules a write of zone, superseding any pending one
func (a *Autosaver) OnGeometryCommitted(zone types.Delimitation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	d := Draft{Key: a.key, Zone: zone, Reference: a.reference}
	if a.elements != nil {
		d.Elements = a.elements()
	}
	epoch := a.epoch
	a.debounce.Trigger(func() { a.write(d, epoch) })
}

// OnZoneDeleted cancels any pending write and removes the draft. A write
// already in flight finishes before the delete; one that has fired but not
// started is dropped.
func (a *Autosaver) OnZoneDeleted(string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.debounce.Cancel()

	a.wmu.Lock()
	defer a.wmu.Unlock()
	a.epoch++

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.repo.Delete(ctx, a.key); err != nil {
		a.log.Error().Err(err).Msg("failed to delete draft")
	}
}

// Flush writes the pending draft immediately
func (a *Autosaver) Flush() {
	a.debounce.Flush()
}

// Close cancels pending writes. Later commits are ignored.
func (a *Autosaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.debounce.Cancel()
}

func (a *Autosaver) write(d Draft, epoch uint64) {
	a.wmu.Lock()
	defer a.wmu.Unlock()
	if epoch != a.epoch {
		a.log.Debug().Str("zone", d.Zone.ID).Msg("stale draft write dropped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.repo.Save(ctx, d); err != nil {
		a.log.Error().Err(err).Msg("failed to save draft")
		return
	}
	a.log.Debug().Str("zone", d.Zone.ID).Msg("draft saved")
}
