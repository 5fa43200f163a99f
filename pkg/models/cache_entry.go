package models

import (
	"encoding/json"
	"time"
)

// CacheEntry represents a cached response payload
type CacheEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	TTL       time.Duration   `json:"ttl"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewCacheEntry creates a new cache entry expiring ttl after now
func NewCacheEntry(key string, value []byte, ttl time.Duration, now time.Time) *CacheEntry {
	return &CacheEntry{
		Key:       key,
		Value:     json.RawMessage(value),
		TTL:       ttl,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the entry must no longer be served at now
func (ce *CacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(ce.ExpiresAt)
}

// RemainingTTL returns the remaining time until expiration
func (ce *CacheEntry) RemainingTTL(now time.Time) time.Duration {
	if ce.IsExpired(now) {
		return 0
	}
	return ce.ExpiresAt.Sub(now)
}
