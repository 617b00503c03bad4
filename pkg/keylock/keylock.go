// Package keylock provides sharded per-key mutual exclusion.
// It serializes critical sections for the same string key while letting
// unrelated keys proceed in parallel.
package keylock

import (
	"hash/fnv"
	"sync"
)

// DefaultShards is the default number of mutex shards.
const DefaultShards = 256

// KeyLock maps string keys onto a fixed set of mutex shards. Two distinct
// keys may occasionally share a shard; that only serializes them, it never
// violates exclusion for a single key.
type KeyLock struct {
	shards []sync.Mutex
}

// New creates a KeyLock with the given number of shards.
// Non-positive values fall back to DefaultShards.
func New(shards int) *KeyLock {
	if shards <= 0 {
		shards = DefaultShards
	}
	return &KeyLock{shards: make([]sync.Mutex, shards)}
}

// Lock acquires the mutex shard for key.
func (l *KeyLock) Lock(key string) {
	l.shards[l.index(key)].Lock()
}

// Unlock releases the mutex shard for key.
func (l *KeyLock) Unlock(key string) {
	l.shards[l.index(key)].Unlock()
}

// WithLock runs fn while holding the shard for key.
func (l *KeyLock) WithLock(key string, fn func()) {
	i := l.index(key)
	l.shards[i].Lock()
	defer l.shards[i].Unlock()
	fn()
}

func (l *KeyLock) index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.shards)))
}
