package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Cache stores geocode results by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Set(ctx context.Context, key string, result *Result) error
}

// CacheKey returns the SHA-256 hex of the width-folded address.
func CacheKey(address string) string {
	h := sha256.Sum256([]byte(norm.NFKC.String(strings.TrimSpace(address))))
	return hex.EncodeToString(h[:])
}

// CachedClient serves repeated addresses from a Cache. Only successful
// results are stored, so a failed address is retried on the next run.
// Cache failures are logged and never fail a lookup.
type CachedClient struct {
	next  Client
	cache Cache
}

// NewCachedClient wraps next with cache.
func NewCachedClient(next Client, cache Cache) *CachedClient {
	return &CachedClient{next: next, cache: cache}
}

// Geocode implements Client.
func (c *CachedClient) Geocode(ctx context.Context, address string) (*Result, error) {
	key := CacheKey(address)

	cached, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		zap.L().Warn("geocode: cache read failed", zap.String("key", key[:12]), zap.Error(err))
	case ok:
		zap.L().Debug("geocode cache hit", zap.String("key", key[:12]), zap.String("source", cached.Source))
		return cached, nil
	}

	result, err := c.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, result); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.String("key", key[:12]), zap.Error(err))
	}
	return result, nil
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	results map[string]Result
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{results: make(map[string]Result)}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string) (*Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, key string, result *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[key] = *result
	return nil
}
