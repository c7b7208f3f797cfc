package metadata

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNotCached is returned by Update when no entry exists for the address.
var ErrNotCached = errors.New("resource metadata not cached")

// Store is a keyed store of resource metadata. Implementations must make
// operations on the same address linearizable.
type Store interface {
	Get(address string) (ResourceMetadata, bool)
	Insert(md ResourceMetadata) error
	Update(md ResourceMetadata) error
	Delete(address string)
}

// MemoryStore is a process-local Store. A single RWMutex guards the map,
// which makes every operation linearizable; GetOrCreate additionally
// collapses concurrent misses for one address into a single build.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]ResourceMetadata
	fill    singleflight.Group
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]ResourceMetadata)}
}

// Get returns the metadata cached for address.
func (s *MemoryStore) Get(address string) (ResourceMetadata, bool) {
	s.mu.RLock()
	md, ok := s.entries[address]
	s.mu.RUnlock()
	if ok {
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}
	return md, ok
}

// Insert stores md, replacing any entry for the same address.
func (s *MemoryStore) Insert(md ResourceMetadata) error {
	if md.IsZero() {
		return fmt.Errorf("%w: zero value", ErrInvalidMetadata)
	}
	s.mu.Lock()
	if _, exists := s.entries[md.address]; !exists {
		cacheEntries.Inc()
	}
	s.entries[md.address] = md
	s.mu.Unlock()
	cacheWrites.WithLabelValues("insert").Inc()
	return nil
}

// Update refreshes an existing entry. It returns ErrNotCached when the
// address has no entry, leaving the store unchanged.
func (s *MemoryStore) Update(md ResourceMetadata) error {
	if md.IsZero() {
		return fmt.Errorf("%w: zero value", ErrInvalidMetadata)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[md.address]; !ok {
		return fmt.Errorf("%w: %s", ErrNotCached, md.address)
	}
	s.entries[md.address] = md
	cacheWrites.WithLabelValues("update").Inc()
	return nil
}

// Delete removes the entry for address if there is one.
func (s *MemoryStore) Delete(address string) {
	s.mu.Lock()
	if _, ok := s.entries[address]; ok {
		delete(s.entries, address)
		cacheEntries.Dec()
	}
	s.mu.Unlock()
	cacheWrites.WithLabelValues("delete").Inc()
}

// GetOrCreate returns the cached entry for address or builds, inserts and
// returns a new one. Concurrent callers missing on the same address share
// one build call.
func (s *MemoryStore) GetOrCreate(address string, build func() (ResourceMetadata, error)) (ResourceMetadata, error) {
	if md, ok := s.Get(address); ok {
		return md, nil
	}
	v, err, _ := s.fill.Do(address, func() (any, error) {
		s.mu.RLock()
		md, ok := s.entries[address]
		s.mu.RUnlock()
		if ok {
			return md, nil
		}
		md, err := build()
		if err != nil {
			return ResourceMetadata{}, err
		}
		if md.Address() != address {
			return ResourceMetadata{}, fmt.Errorf("%w: built for %q, want %q", ErrInvalidMetadata, md.Address(), address)
		}
		if err := s.Insert(md); err != nil {
			return ResourceMetadata{}, err
		}
		return md, nil
	})
	if err != nil {
		return ResourceMetadata{}, err
	}
	return v.(ResourceMetadata), nil
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
