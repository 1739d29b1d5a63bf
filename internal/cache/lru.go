// Package cache provides a bounded in-process LRU store with hit/miss
// accounting, plus deterministic key derivation for query and card-pair
// lookups.
package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is used when a Store is constructed with a non-positive
// capacity.
const DefaultCapacity = 128

// Store is a bounded least-recently-used cache. A Get on an existing key
// refreshes its recency; a Set past capacity evicts the least-recently-used
// entry. Safe for concurrent use.
type Store[V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	hits     uint64
	misses   uint64
}

type entry[V any] struct {
	key   string
	value V
}

// Stats is a point-in-time snapshot of cache accounting.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// New creates a Store holding at most capacity entries.
func New[V any](capacity int) *Store[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store[V]{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached value for key. A hit moves the entry to
// most-recently-used; a miss records nothing beyond the miss count.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.misses++
		var zero V
		return zero, false
	}

	s.hits++
	s.order.MoveToFront(el)
	return el.Value.(*entry[V]).value, true
}

// Set stores value under key. An existing key is replaced and refreshed;
// inserting beyond capacity evicts the least-recently-used entry first.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		el.Value.(*entry[V]).value = value
		s.order.MoveToFront(el)
		return
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(*entry[V]).key)
		}
	}

	s.entries[key] = s.order.PushFront(&entry[V]{key: key, value: value})
}

// Clear drops all entries and resets accounting.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Init()
	s.entries = make(map[string]*list.Element, s.capacity)
	s.hits = 0
	s.misses = 0
}

// Len returns the current entry count.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Stats returns a snapshot of hit/miss accounting.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Hits:     s.hits,
		Misses:   s.misses,
		Size:     s.order.Len(),
		Capacity: s.capacity,
	}
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}
