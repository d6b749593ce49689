// Package cache provides a read-through value cache for stores backed by
// slow flash. It holds decoded values in memory so repeated reads of hot
// keys skip the device entirely.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Values is a fixed-capacity LRU cache mapping keys to value bytes.
// Slices are copied on the way in and out, so callers may reuse buffers.
type Values struct {
	entries *lru.Cache[string, []byte]
}

// New creates a cache holding up to size values. Size must be positive.
func New(size int) (*Values, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Values{entries: entries}, nil
}

// Get returns a copy of the cached value for key.
func (v *Values) Get(key string) ([]byte, bool) {
	cached, ok := v.entries.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(cached))
	copy(out, cached)
	return out, true
}

// Put stores a copy of value under key, evicting the least recently used
// entry if the cache is full.
func (v *Values) Put(key string, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)
	v.entries.Add(key, stored)
}

// Invalidate drops key from the cache. Dropping an absent key is a no-op.
func (v *Values) Invalidate(key string) {
	v.entries.Remove(key)
}

// Purge drops every cached value.
func (v *Values) Purge() {
	v.entries.Purge()
}

// Len returns the number of values currently cached.
func (v *Values) Len() int {
	return v.entries.Len()
}
