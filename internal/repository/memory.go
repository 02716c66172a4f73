package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryStateRepository is the in-process fallback state store. Entries
// expire lazily on read.
type MemoryStateRepository struct {
	states     sync.Map
	rateLimits sync.Map
}

type stateEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{}
}

func (r *MemoryStateRepository) Get(ctx context.Context, key string) (string, error) {
	val, ok := r.states.Load(key)
	if !ok {
		return "", nil
	}
	entry := val.(*stateEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		r.states.Delete(key)
		return "", nil
	}
	return entry.value, nil
}

func (r *MemoryStateRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := &stateEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	r.states.Store(key, entry)
	return nil
}

func (r *MemoryStateRepository) Delete(ctx context.Context, key string) error {
	r.states.Delete(key)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
