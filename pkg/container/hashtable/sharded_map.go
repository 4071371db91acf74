// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

import (
	"math/bits"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
)

type shard[K any, V any] struct {
	sync.RWMutex
	m *Map[K, V]
	_ cpu.CacheLinePad
}

// ShardedMap spreads keys over a power-of-two number of independently
// locked Maps. The shard is chosen by the top bits of the key hash and the
// slot inside the shard by the low bits, so the two never correlate.
// All methods are safe for concurrent use.
type ShardedMap[K any, V any] struct {
	hasher Hasher[K]
	logger *zap.Logger
	shift  uint
	shards []shard[K, V]
	pool   *ants.Pool
}

// NewShardedMap creates a table of shards Maps, rounded up to a power of two,
// that together start with initialCapacity slots. Every option applies to
// each shard, WithMaxCapacity included.
func NewShardedMap[K any, V any](hasher Hasher[K], shards int, initialCapacity int, maxLoadFactor float64, opts ...Option) (*ShardedMap[K, V], error) {
	if hasher == nil {
		return nil, moerr.NewInvalidConfigurationNoCtx("hasher is nil")
	}
	if shards <= 0 || shards > kMaxShards {
		return nil, moerr.NewInvalidConfigurationNoCtx("shard count %d must be in [1, %d]", shards, kMaxShards)
	}
	if initialCapacity <= 0 {
		return nil, moerr.NewInvalidConfigurationNoCtx("initial capacity %d must be positive", initialCapacity)
	}
	n := nextPowerOfTwo(uint64(shards))
	perShard := initialCapacity / int(n)
	if perShard == 0 {
		perShard = 1
	}
	o, err := buildOptions(perShard, maxLoadFactor, opts)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}

	sm := &ShardedMap[K, V]{
		hasher: hasher,
		logger: o.logger,
		shift:  uint(64 - (bits.Len64(n) - 1)),
		shards: make([]shard[K, V], n),
		pool:   pool,
	}
	for i := range sm.shards {
		sm.shards[i].m = newMap[K, V](hasher, o)
	}
	sm.logger.Debug("sharded hashtable created",
		zap.Int("shards", len(sm.shards)),
		zap.Uint64("shard-capacity", o.initialCapacity),
		zap.Int("workers", o.workers))
	return sm, nil
}

func (sm *ShardedMap[K, V]) shardOf(hash uint64) int {
	return int(hash >> sm.shift)
}

func (sm *ShardedMap[K, V]) Insert(key K, value V) (old V, replaced bool, err error) {
	hash := sm.hasher.Hash(key)
	s := &sm.shards[sm.shardOf(hash)]
	s.Lock()
	defer s.Unlock()
	return s.m.insert(hash, key, value)
}

func (sm *ShardedMap[K, V]) Lookup(key K) (value V, ok bool) {
	hash := sm.hasher.Hash(key)
	s := &sm.shards[sm.shardOf(hash)]
	s.RLock()
	defer s.RUnlock()
	return s.m.lookup(hash, key)
}

func (sm *ShardedMap[K, V]) Remove(key K) (value V, ok bool) {
	hash := sm.hasher.Hash(key)
	s := &sm.shards[sm.shardOf(hash)]
	s.Lock()
	defer s.Unlock()
	return s.m.remove(hash, key)
}

// InsertBatch inserts keys[i] -> values[i] for every i, loading the shards
// in parallel on the worker pool. Within a shard the pairs are applied in
// order. It returns the first error met in shard order; pairs routed to
// other shards are still applied.
func (sm *ShardedMap[K, V]) InsertBatch(keys []K, values []V) error {
	if len(keys) != len(values) {
		return moerr.NewInvalidInputNoCtx("batch has %d keys and %d values", len(keys), len(values))
	}
	groups := make([][]int, len(sm.shards))
	hashes := make([]uint64, len(keys))
	for i := range keys {
		hashes[i] = sm.hasher.Hash(keys[i])
		idx := sm.shardOf(hashes[i])
		groups[idx] = append(groups[idx], i)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(sm.shards))
	for idx := range groups {
		if len(groups[idx]) == 0 {
			continue
		}
		idx := idx
		wg.Add(1)
		err := sm.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[idx] = moerr.ConvertPanicError(moerr.Context(), r)
				}
			}()
			s := &sm.shards[idx]
			s.Lock()
			defer s.Unlock()
			// growth is left to insert: a group may repeat keys or hold keys
			// the shard already has, so its length says nothing about the size.
			for _, i := range groups[idx] {
				if _, _, err := s.m.insert(hashes[i], keys[i], values[i]); err != nil {
					errs[idx] = err
					return
				}
			}
		})
		if err != nil {
			wg.Done()
			errs[idx] = moerr.ConvertGoError(moerr.Context(), err)
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (sm *ShardedMap[K, V]) Size() int {
	n := 0
	for i := range sm.shards {
		s := &sm.shards[i]
		s.RLock()
		n += s.m.Size()
		s.RUnlock()
	}
	return n
}

func (sm *ShardedMap[K, V]) Capacity() uint64 {
	var c uint64
	for i := range sm.shards {
		s := &sm.shards[i]
		s.RLock()
		c += s.m.Capacity()
		s.RUnlock()
	}
	return c
}

func (sm *ShardedMap[K, V]) ShardCount() int {
	return len(sm.shards)
}

// Range visits every entry shard by shard, holding one shard's read lock at
// a time. fn must not call back into the ShardedMap.
func (sm *ShardedMap[K, V]) Range(fn func(key K, value V) bool) {
	for i := range sm.shards {
		s := &sm.shards[i]
		stop := false
		s.RLock()
		s.m.Range(func(key K, value V) bool {
			if !fn(key, value) {
				stop = true
				return false
			}
			return true
		})
		s.RUnlock()
		if stop {
			return
		}
	}
}

// Stats merges the statistics of all shards.
func (sm *ShardedMap[K, V]) Stats() Stats {
	var total Stats
	for i := range sm.shards {
		s := &sm.shards[i]
		s.RLock()
		st := s.m.Stats()
		s.RUnlock()
		total.merge(st)
	}
	return total
}

// Close releases the worker pool. The table stays readable and writable
// but InsertBatch fails afterwards.
func (sm *ShardedMap[K, V]) Close() {
	sm.pool.Release()
}
