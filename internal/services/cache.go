package services

import (
	"context"
	"sync"
	"time"

	"kzs-map/internal/models"
)

// CacheService keeps served documents in memory for a fixed TTL.
type CacheService struct {
	cache           map[string]*models.CacheEntry
	mu              sync.RWMutex
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// NewCacheService starts a cleanup goroutine that runs until ctx is canceled.
func NewCacheService(ctx context.Context, ttl, cleanupInterval time.Duration) *CacheService {
	cs := &CacheService{
		cache:           make(map[string]*models.CacheEntry),
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
	}

	go cs.cleanupExpired(ctx)

	return cs
}

// Retrieves a cache entry by key, returning false if not found or expired.
func (cs *CacheService) Get(key string) (*models.CacheEntry, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, ok := cs.cache[key]
	if !ok {
		return nil, false
	}

	if entry.Expires.Before(cs.now()) {
		return nil, false
	}

	return entry, true
}

// Stores data under key; it expires after the configured TTL.
func (cs *CacheService) Set(key string, data []byte, contentType string, modTime time.Time) *models.CacheEntry {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry := &models.CacheEntry{
		Data:        data,
		ContentType: contentType,
		ModTime:     modTime,
		Expires:     cs.now().Add(cs.ttl),
	}
	cs.cache[key] = entry
	return entry
}

func (cs *CacheService) Invalidate(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.cache, key)
}

func (cs *CacheService) removeExpired() {
	now := cs.now()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range cs.cache {
		if v.Expires.Before(now) {
			delete(cs.cache, k)
		}
	}
}

func (cs *CacheService) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(cs.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.removeExpired()
		}
	}
}
