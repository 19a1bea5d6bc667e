package postal

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type memoEntry struct {
	region string
	found  bool
}

// Memo caches the answers of another Lookup. Concurrent lookups of the same
// code share a single call to the underlying Lookup. Errors are not cached.
type Memo struct {
	next  Lookup
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]memoEntry
}

// NewMemo wraps next with a concurrency-safe cache.
func NewMemo(next Lookup) *Memo {
	return &Memo{next: next, cache: make(map[string]memoEntry)}
}

// RegionForZip implements Lookup.
func (m *Memo) RegionForZip(ctx context.Context, zip string) (string, bool, error) {
	key := NormalizeZip(zip)

	m.mu.RLock()
	e, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return e.region, e.found, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		region, found, err := m.next.RegionForZip(ctx, key)
		if err != nil {
			return nil, err
		}
		e := memoEntry{region: region, found: found}
		m.mu.Lock()
		m.cache[key] = e
		m.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return "", false, err
	}
	e = v.(memoEntry)
	return e.region, e.found, nil
}

// Len returns the number of cached postal codes.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}
