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
	"go.uber.org/zap"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
)

type entry[K any, V any] struct {
	key   K
	value V
	hash  uint64
	// distance from the slot hash&mask, meaningful only when used.
	dist uint32
	used bool
}

// Map is an open-addressing hash table using Robin Hood displacement and
// backward-shift deletion. The capacity is always a power of two and the
// number of entries never exceeds floor(capacity * maxLoadFactor).
//
// A Map is not safe for concurrent use. Use ShardedMap, or guard it with
// a lock, when several goroutines share one table.
type Map[K any, V any] struct {
	hasher Hasher[K]
	logger *zap.Logger

	capacity uint64
	mask     uint64
	count    uint64
	growAt   uint64
	shrinkAt uint64

	maxLoadFactor    float64
	shrinkLoadFactor float64
	minCapacity      uint64
	maxCapacity      uint64

	// bumped by every structural change, checked by iterators.
	version uint64
	grows   uint64
	shrinks uint64

	slots []entry[K, V]
}

// NewMap creates an empty table. initialCapacity is rounded up to a power of
// two and maxLoadFactor must lie strictly between 0 and 1.
func NewMap[K any, V any](hasher Hasher[K], initialCapacity int, maxLoadFactor float64, opts ...Option) (*Map[K, V], error) {
	if hasher == nil {
		return nil, moerr.NewInvalidConfigurationNoCtx("hasher is nil")
	}
	o, err := buildOptions(initialCapacity, maxLoadFactor, opts)
	if err != nil {
		return nil, err
	}
	return newMap[K, V](hasher, o), nil
}

// NewDefaultMap creates a table with capacity 16 and load factor 0.9.
func NewDefaultMap[K any, V any](hasher Hasher[K], opts ...Option) (*Map[K, V], error) {
	return NewMap[K, V](hasher, kDefaultCapacity, kDefaultMaxLoadFactor, opts...)
}

func newMap[K any, V any](hasher Hasher[K], o options) *Map[K, V] {
	m := &Map[K, V]{
		hasher:           hasher,
		logger:           o.logger,
		maxLoadFactor:    o.maxLoadFactor,
		shrinkLoadFactor: o.shrinkLoadFactor,
		minCapacity:      o.minCapacity,
		maxCapacity:      o.maxCapacity,
	}
	m.setSlots(make([]entry[K, V], o.initialCapacity))
	return m
}

func (m *Map[K, V]) setSlots(slots []entry[K, V]) {
	m.slots = slots
	m.capacity = uint64(len(slots))
	m.mask = m.capacity - 1
	m.growAt = maxElemCnt(m.capacity, m.maxLoadFactor)
	m.shrinkAt = maxElemCnt(m.capacity, m.shrinkLoadFactor)
}

// Insert associates value with key. When the key is already present its
// value is overwritten in place, the previous value is returned and replaced
// is true; an overwrite never resizes. When a new key would push the table
// past its max capacity the table is left untouched and an
// ErrCapacityOverflow error is returned.
func (m *Map[K, V]) Insert(key K, value V) (old V, replaced bool, err error) {
	return m.insert(m.hasher.Hash(key), key, value)
}

func (m *Map[K, V]) insert(hash uint64, key K, value V) (old V, replaced bool, err error) {
	if idx, ok := m.find(hash, key); ok {
		e := &m.slots[idx]
		old, e.value = e.value, value
		return old, true, nil
	}
	if err = m.resizeOnDemand(m.count + 1); err != nil {
		return old, false, err
	}
	m.place(entry[K, V]{key: key, value: value, hash: hash, used: true})
	m.count++
	m.version++
	return old, false, nil
}

// place runs the Robin Hood probe: the incoming entry takes the slot of any
// resident that is closer to its own ideal slot, and the resident carries on.
// The caller guarantees a free slot exists and the key is absent.
func (m *Map[K, V]) place(e entry[K, V]) {
	e.dist = 0
	for idx := e.hash & m.mask; ; idx = (idx + 1) & m.mask {
		cell := &m.slots[idx]
		if !cell.used {
			*cell = e
			return
		}
		if cell.dist < e.dist {
			*cell, e = e, *cell
		}
		e.dist++
	}
}

// find walks the probe sequence of hash. It stops at an empty slot or at a
// resident poorer than the probe so far, since Robin Hood order guarantees
// the key would have displaced that resident.
func (m *Map[K, V]) find(hash uint64, key K) (uint64, bool) {
	idx := hash & m.mask
	for steps := uint32(0); ; steps++ {
		cell := &m.slots[idx]
		if !cell.used || cell.dist < steps {
			return 0, false
		}
		if cell.hash == hash && m.hasher.Equal(cell.key, key) {
			return idx, true
		}
		idx = (idx + 1) & m.mask
	}
}

// Lookup returns the value stored under key. A missing key is reported by
// ok == false, never by an error.
func (m *Map[K, V]) Lookup(key K) (value V, ok bool) {
	return m.lookup(m.hasher.Hash(key), key)
}

func (m *Map[K, V]) lookup(hash uint64, key K) (value V, ok bool) {
	if idx, found := m.find(hash, key); found {
		return m.slots[idx].value, true
	}
	return value, false
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.find(m.hasher.Hash(key), key)
	return ok
}

// Remove deletes key and returns its value. Removing an absent key is a
// no-op that returns ok == false.
func (m *Map[K, V]) Remove(key K) (value V, ok bool) {
	return m.remove(m.hasher.Hash(key), key)
}

func (m *Map[K, V]) remove(hash uint64, key K) (value V, ok bool) {
	idx, found := m.find(hash, key)
	if !found {
		return value, false
	}
	value = m.slots[idx].value

	// backward shift: pull each displaced successor one slot closer to home
	// until an empty slot or an entry already at home ends the cluster.
	for {
		next := (idx + 1) & m.mask
		cell := &m.slots[next]
		if !cell.used || cell.dist == 0 {
			break
		}
		m.slots[idx] = *cell
		m.slots[idx].dist--
		idx = next
	}
	m.slots[idx] = entry[K, V]{}

	m.count--
	m.version++
	m.shrinkOnDemand()
	return value, true
}

// resizeOnDemand grows the table until target entries fit under the load
// factor. It fails without side effects when that needs more than
// maxCapacity slots.
func (m *Map[K, V]) resizeOnDemand(target uint64) error {
	if target <= m.growAt {
		return nil
	}
	newCap := m.capacity
	for target > maxElemCnt(newCap, m.maxLoadFactor) {
		if newCap >= m.maxCapacity {
			m.logger.Warn("hashtable capacity overflow",
				zap.Uint64("size", m.count),
				zap.Uint64("capacity", m.capacity),
				zap.Uint64("max-capacity", m.maxCapacity))
			return moerr.NewCapacityOverflowNoCtx(target, m.maxCapacity)
		}
		newCap <<= 1
	}
	m.grows++
	m.resize(newCap)
	return nil
}

func (m *Map[K, V]) shrinkOnDemand() {
	if m.count >= m.shrinkAt || m.capacity <= m.minCapacity {
		return
	}
	m.shrinks++
	m.resize(m.capacity >> 1)
}

// resize rehashes every entry into a fresh slot array of newCap slots,
// reusing the cached hashes.
func (m *Map[K, V]) resize(newCap uint64) {
	from := m.capacity
	old := m.slots
	m.setSlots(make([]entry[K, V], newCap))
	for i := range old {
		if old[i].used {
			m.place(old[i])
		}
	}
	m.version++
	m.logger.Debug("hashtable resize",
		zap.Uint64("from", from),
		zap.Uint64("to", newCap),
		zap.Uint64("size", m.count))
}

// Reserve grows the table so that n entries fit without further resizing.
func (m *Map[K, V]) Reserve(n int) error {
	if n < 0 {
		return moerr.NewInvalidInputNoCtx("reserve %d entries", n)
	}
	return m.resizeOnDemand(uint64(n))
}

// Clear removes every entry and keeps the current capacity.
func (m *Map[K, V]) Clear() {
	for i := range m.slots {
		m.slots[i] = entry[K, V]{}
	}
	m.count = 0
	m.version++
}

func (m *Map[K, V]) Size() int {
	return int(m.count)
}

func (m *Map[K, V]) Capacity() uint64 {
	return m.capacity
}

func (m *Map[K, V]) LoadFactor() float64 {
	return float64(m.count) / float64(m.capacity)
}

// Range calls fn for every entry in slot order until fn returns false.
// fn must not modify the table.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.slots {
		if e := &m.slots[i]; e.used {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}
