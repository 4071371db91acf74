// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/config"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/container/hashtable"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/logutil"
)

const batchSize = 4096

// table is the surface shared by Map and ShardedMap.
type table interface {
	Insert(key, value uint32) (uint32, bool, error)
	Lookup(key uint32) (uint32, bool)
	Remove(key uint32) (uint32, bool)
	Size() int
	Capacity() uint64
	Range(fn func(key, value uint32) bool)
	Stats() hashtable.Stats
}

type result struct {
	kind         string
	ops          int
	elapsed      time.Duration
	peakCapacity uint64
	stats        hashtable.Stats
}

type operation struct {
	key    uint32
	remove bool
}

type workload struct {
	cfg     WorkloadConfig
	params  *config.HashTableParameters
	sharded *hashtable.ShardedMap[uint32, uint32]
	table   table
}

func runWorkload(ctx context.Context, cfg WorkloadConfig) (result, error) {
	pu := config.GetParameterUnit(ctx)
	w := &workload{cfg: cfg, params: pu.SV}
	switch cfg.Kind {
	case sequentialWorkload:
		return w.sequential()
	case churnWorkload:
		return w.churn()
	case randomWorkload:
		return w.random()
	}
	return result{}, moerr.NewBadConfigNoCtx("unknown workload kind %q", cfg.Kind)
}

// open creates the table under test, pre-sized from keys when presizing is on.
func (w *workload) open(keys func(add func(uint32))) error {
	capacity := w.params.InitialCapacity
	if w.cfg.Presize && keys != nil {
		est := hashtable.NewCapacityEstimator[uint32](hashtable.IntegerHasher[uint32]())
		keys(est.Add)
		if c := est.Capacity(w.params.MaxLoadFactor); c > capacity {
			capacity = c
		}
		if limit := hashtable.FloorCapacity(w.params.MaxCapacity); uint64(capacity) > limit {
			capacity = int(limit)
		}
		logutil.Info("presized table",
			zap.Uint64("estimated-keys", est.Estimate()),
			zap.Int("capacity", capacity))
	}

	hasher := hashtable.IntegerHasher[uint32]()
	if w.cfg.Sharded {
		sm, err := hashtable.NewShardedMap[uint32, uint32](hasher, w.params.Shards, capacity, w.params.MaxLoadFactor, w.params.Options()...)
		if err != nil {
			return err
		}
		w.sharded, w.table = sm, sm
		return nil
	}
	m, err := hashtable.NewMap[uint32, uint32](hasher, capacity, w.params.MaxLoadFactor, w.params.Options()...)
	if err != nil {
		return err
	}
	w.table = m
	return nil
}

func (w *workload) close() {
	if w.sharded != nil {
		w.sharded.Close()
	}
}

func (w *workload) finish(start time.Time, ops int, peak uint64) result {
	st := w.table.Stats()
	if st.Capacity > peak {
		peak = st.Capacity
	}
	return result{
		kind:         w.cfg.Kind,
		ops:          ops,
		elapsed:      time.Since(start),
		peakCapacity: peak,
		stats:        st,
	}
}

// sequential inserts keys 0..n-1 and looks every one of them up.
func (w *workload) sequential() (result, error) {
	n := uint32(w.cfg.Keys)
	err := w.open(func(add func(uint32)) {
		for k := uint32(0); k < n; k++ {
			add(k)
		}
	})
	if err != nil {
		return result{}, err
	}
	defer w.close()

	start := time.Now()
	if w.sharded != nil {
		keys := make([]uint32, 0, batchSize)
		for k := uint32(0); k < n; k++ {
			keys = append(keys, k)
			if len(keys) == batchSize || k == n-1 {
				if err = w.sharded.InsertBatch(keys, keys); err != nil {
					return result{}, err
				}
				keys = keys[:0]
			}
		}
	} else {
		for k := uint32(0); k < n; k++ {
			if _, _, err = w.table.Insert(k, k); err != nil {
				return result{}, err
			}
		}
	}
	for k := uint32(0); k < n; k++ {
		v, ok := w.table.Lookup(k)
		if !ok || v != k {
			return result{}, moerr.NewInvalidStateNoCtx("key %d lost after sequential load", k)
		}
	}
	if w.table.Size() != int(n) {
		return result{}, moerr.NewInvalidStateNoCtx("size %d after loading %d keys", w.table.Size(), n)
	}
	return w.finish(start, 2*int(n), 0), nil
}

// churn inserts and removes a single key over and over. The table must not
// grow past its initial capacity.
func (w *workload) churn() (result, error) {
	if err := w.open(nil); err != nil {
		return result{}, err
	}
	defer w.close()

	initial := w.table.Capacity()
	peak := initial
	start := time.Now()
	for i := 0; i < w.cfg.Iterations; i++ {
		k := uint32(i)
		if _, _, err := w.table.Insert(k, k); err != nil {
			return result{}, err
		}
		if c := w.table.Capacity(); c > peak {
			peak = c
		}
		if _, ok := w.table.Remove(k); !ok {
			return result{}, moerr.NewInvalidStateNoCtx("key %d missing right after insert", k)
		}
	}
	if peak > initial {
		return result{}, moerr.NewInvalidStateNoCtx("churn grew the table from %d to %d slots", initial, peak)
	}
	if w.table.Size() != 0 {
		return result{}, moerr.NewInvalidStateNoCtx("size %d after churn", w.table.Size())
	}
	return w.finish(start, 2*w.cfg.Iterations, peak), nil
}

// random applies a seeded mix of inserts and removes and checks the table
// against a bitmap of the keys that should be present.
func (w *workload) random() (result, error) {
	rnd := rand.New(rand.NewSource(w.cfg.Seed))
	keySpace := int32(2 * w.cfg.Keys)
	if keySpace <= 0 {
		keySpace = 1
	}
	ops := make([]operation, w.cfg.Iterations)
	for i := range ops {
		ops[i] = operation{key: uint32(rnd.Int31n(keySpace)), remove: rnd.Intn(3) == 0}
	}
	err := w.open(func(add func(uint32)) {
		for _, op := range ops {
			if !op.remove {
				add(op.key)
			}
		}
	})
	if err != nil {
		return result{}, err
	}
	defer w.close()

	oracle := roaring.New()
	var peak uint64
	start := time.Now()
	for _, op := range ops {
		if op.remove {
			_, ok := w.table.Remove(op.key)
			if ok != oracle.Contains(op.key) {
				return result{}, moerr.NewInvalidStateNoCtx("remove %d reported %v", op.key, ok)
			}
			oracle.Remove(op.key)
			continue
		}
		_, replaced, err := w.table.Insert(op.key, op.key)
		if err != nil {
			return result{}, err
		}
		if replaced != oracle.Contains(op.key) {
			return result{}, moerr.NewInvalidStateNoCtx("insert %d reported replaced=%v", op.key, replaced)
		}
		oracle.Add(op.key)
		if c := w.table.Capacity(); c > peak {
			peak = c
		}
	}
	if err = w.verify(oracle); err != nil {
		return result{}, err
	}
	return w.finish(start, len(ops), peak), nil
}

func (w *workload) verify(oracle *roaring.Bitmap) error {
	if uint64(w.table.Size()) != oracle.GetCardinality() {
		return moerr.NewInvalidStateNoCtx("size %d, expected %d", w.table.Size(), oracle.GetCardinality())
	}
	it := oracle.Iterator()
	for it.HasNext() {
		k := it.Next()
		if v, ok := w.table.Lookup(k); !ok || v != k {
			return moerr.NewInvalidStateNoCtx("key %d missing", k)
		}
	}
	seen := roaring.New()
	w.table.Range(func(k, _ uint32) bool {
		seen.Add(k)
		return true
	})
	if !seen.Equals(oracle) {
		return moerr.NewInvalidStateNoCtx("iteration visited %d keys, expected %d", seen.GetCardinality(), oracle.GetCardinality())
	}
	return nil
}
