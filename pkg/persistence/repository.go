// Package persistence stores zone drafts behind an opaque key-value contract.
//
// The placement engine never inspects storage internals: it hands a Draft to a
// Repository and asks for it back by key. Three backends are provided (memory,
// a JSON file directory and MySQL) plus an Autosaver that debounces committed
// geometry into any of them.
package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/menta2k/printzone/internal/utils"
	"github.com/menta2k/printzone/pkg/types"
)

// ErrNotFound is returned by Load when no draft exists for a key
var ErrNotFound = errors.New("draft not found")

// Draft is the persisted state of one editing session
type Draft struct {
	Key       string                `json:"key"`
	Zone      types.Delimitation    `json:"zone"`
	Elements  []types.DesignElement `json:"elements,omitempty"`
	Reference types.ReferenceFrame  `json:"reference"`
	SavedAt   time.Time             `json:"saved_at"`
}

// Repository is the draft storage contract
type Repository interface {
	// Save inserts or replaces the draft under d.Key. A zero SavedAt is
	// stamped with the store's clock.
	Save(ctx context.Context, d Draft) error
	Load(ctx context.Context, key string) (Draft, error)
	// Delete is a no-op for unknown keys
	Delete(ctx context.Context, key string) error
	ListAll(ctx context.Context) ([]Draft, error)
	// PurgeOlderThan removes drafts saved before now-maxAge and returns how many
	PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}

// Clock returns the current time
type Clock func() time.Time

// DraftKey builds the composite key for a vendor/product/design triple.
// Empty parts become "_" so keys never collapse into each other.
func DraftKey(vendorID, productID, designID string) string {
	parts := []string{vendorID, productID, designID}
	for i, p := range parts {
		p = utils.SanitizeFilename(p)
		if p == "" {
			p = "_"
		}
		parts[i] = p
	}
	return "draft_" + strings.Join(parts, "_")
}

func stamp(d Draft, now Clock) Draft {
	if d.SavedAt.IsZero() {
		d.SavedAt = now()
	}
	return d
}
