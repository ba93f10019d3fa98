// Package blackboard provides the shared key-value store that gates read
// conditions from and write side effects to.
//
// Gates depend only on the Store interface. Blackboard is the in-process
// implementation; a Store is always injected at construction, never looked up
// from package state, so independent trees (and tests) never interfere.
package blackboard

import (
	"sync"
)

// Store is the key-value contract consumed by gates.
//
// Implementations must make each Get/Set/Exists call atomic per key. No
// cross-key transactions are assumed: trees are ticked from a single goroutine
// and rely on that for race-freedom across keys.
type Store interface {
	// Get returns the value for key, and whether the key exists.
	Get(key string) (any, bool)
	// Set stores value under key, creating or overwriting it.
	Set(key string, value any)
	// Exists reports whether key is present.
	Exists(key string) bool
}

// Snapshotter is implemented by stores able to copy their full contents,
// which expression-based gates need to build an evaluation environment.
type Snapshotter interface {
	Store
	Snapshot() map[string]any
}

// Blackboard is a thread-safe in-memory Store.
//
// Usage: Create with new(Blackboard). The internal map is lazily initialized
// on the first write operation.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
}

var _ Snapshotter = (*Blackboard)(nil)

// init initializes the blackboard's internal map if needed.
// Called automatically on write operations, with mu held.
func (b *Blackboard) init() {
	if b.data == nil {
		b.data = make(map[string]any)
	}
}

// Get retrieves a value from the blackboard.
func (b *Blackboard) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// Set stores a value in the blackboard.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

// Exists returns true if the key exists in the blackboard. A key explicitly
// set to nil exists.
func (b *Blackboard) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

// Delete removes a key from the blackboard.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Keys returns all keys in the blackboard, in no particular order.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of keys in the blackboard.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the blackboard data. It never returns
// nil, so the result is always usable as an expression environment.
//
// WARNING: This is a SHALLOW copy. Mutable values (slices, maps, pointers)
// are shared with the blackboard.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string]any, len(b.data))
	for k, v := range b.data {
		result[k] = v
	}
	return result
}
