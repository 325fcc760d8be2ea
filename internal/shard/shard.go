// Package shard provides a concurrent map with per-shard locking and an
// explicit three-way access outcome. Callers on the tick goroutine and on
// transport goroutines share these maps; an entry that is absent or whose
// shard is momentarily held must be skipped, never blocked on, so one slow
// caller cannot stall a tick.
package shard

import (
	"hash/maphash"
	"sync"
)

// Outcome reports how an entry access resolved.
type Outcome int

const (
	// Present means the entry existed and the callback ran under the
	// shard lock.
	Present Outcome = iota
	// Absent means the entry does not exist.
	Absent
	// Locked means the shard was held by someone else; the caller should
	// log, skip, and retry opportunistically next tick.
	Locked
)

func (o Outcome) String() string {
	switch o {
	case Present:
		return "present"
	case Absent:
		return "absent"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

const shardCount = 32

type mapShard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

// Map is a sharded map keyed by K. All mutation of a value must happen
// inside the callbacks, which run while the owning shard is held.
type Map[K comparable, V any] struct {
	seed   maphash.Seed
	shards [shardCount]mapShard[K, V]
}

// NewMap returns an empty sharded map.
func NewMap[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].entries = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *mapShard[K, V] {
	h := maphash.Comparable(m.seed, key)
	return &m.shards[h%shardCount]
}

// Store sets key to value, waiting for the shard if needed. Use from
// setup paths where blocking is acceptable.
func (m *Map[K, V]) Store(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// Delete removes key, waiting for the shard if needed.
func (m *Map[K, V]) Delete(key K) {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len counts entries across all shards.
func (m *Map[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// TryWith runs fn on the entry for key while its shard is held. It never
// blocks: a contended shard yields Locked and fn does not run.
func (m *Map[K, V]) TryWith(key K, fn func(value V)) Outcome {
	s := m.shardFor(key)
	if !s.mu.TryLock() {
		return Locked
	}
	defer s.mu.Unlock()
	value, ok := s.entries[key]
	if !ok {
		return Absent
	}
	fn(value)
	return Present
}

// With runs fn on the entry for key, waiting for the shard. It still
// reports Absent for a missing entry.
func (m *Map[K, V]) With(key K, fn func(value V)) Outcome {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.entries[key]
	if !ok {
		return Absent
	}
	fn(value)
	return Present
}

// Range runs fn on every entry, shard by shard, while each shard is held.
// fn returning false stops the walk.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.entries {
			if !fn(k, v) {
				s.mu.Unlock()
				return
			}
		}
		s.mu.Unlock()
	}
}

// Keys snapshots all keys. The result is not consistent across shards
// under concurrent mutation; callers must still handle Absent afterwards.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
