// Package store persists run summaries, cached geocode results and the
// postal code table.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/postal"
	"github.com/goto-eat-map/csv2geojson/pkg/geocode"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the normalizer.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, counts model.RunCounts, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Geocode cache
	GetCachedGeocode(ctx context.Context, key string) (*geocode.Result, bool, error)
	SetCachedGeocode(ctx context.Context, key string, result *geocode.Result, ttl time.Duration) error
	DeleteExpiredGeocodes(ctx context.Context) (int, error)

	// Postal codes
	ImportPostalCodes(ctx context.Context, entries []postal.Entry, replace bool) (int, error)
	RegionForZip(ctx context.Context, zip string) (string, bool, error)
	CountPostalCodes(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GeocodeCache adapts a Store's geocode table to geocode.Cache with a fixed TTL.
func GeocodeCache(s Store, ttl time.Duration) geocode.Cache {
	return &storeCache{store: s, ttl: ttl}
}

type storeCache struct {
	store Store
	ttl   time.Duration
}

func (c *storeCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	return c.store.GetCachedGeocode(ctx, key)
}

func (c *storeCache) Set(ctx context.Context, key string, result *geocode.Result) error {
	return c.store.SetCachedGeocode(ctx, key, result, c.ttl)
}

// PostalLookup adapts a Store's postal table to postal.Lookup.
func PostalLookup(s Store) postal.Lookup {
	return s
}
