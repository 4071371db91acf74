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
	"sync"
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/require"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
)

func newShardedIntMap(t *testing.T, shards int, opts ...Option) *ShardedMap[int, int] {
	sm, err := NewShardedMap[int, int](IntegerHasher[int](), shards, 64, 0.9, opts...)
	require.NoError(t, err)
	t.Cleanup(sm.Close)
	return sm
}

func TestNewShardedMap(t *testing.T) {
	sm := newShardedIntMap(t, 5, WithWorkers(2))
	require.Equal(t, 8, sm.ShardCount())
	require.Equal(t, uint(61), sm.shift)
	require.Equal(t, uint64(64), sm.Capacity())

	one := newShardedIntMap(t, 1)
	require.Equal(t, 1, one.ShardCount())
	require.Equal(t, 0, one.shardOf(^uint64(0)))

	for _, shards := range []int{0, -1, kMaxShards + 1} {
		_, err := NewShardedMap[int, int](IntegerHasher[int](), shards, 64, 0.9)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidConfiguration))
	}
	_, err := NewShardedMap[int, int](nil, 4, 64, 0.9)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidConfiguration))
	_, err = NewShardedMap[int, int](IntegerHasher[int](), 4, 0, 0.9)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidConfiguration))
	_, err = NewShardedMap[int, int](IntegerHasher[int](), 4, 64, 1.5)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidConfiguration))
}

func TestShardedMapBasic(t *testing.T) {
	sm := newShardedIntMap(t, 4)
	for i := 0; i < 1000; i++ {
		_, replaced, err := sm.Insert(i, i)
		require.NoError(t, err)
		require.False(t, replaced)
	}
	require.Equal(t, 1000, sm.Size())
	old, replaced, err := sm.Insert(5, 50)
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, 5, old)

	v, ok := sm.Lookup(5)
	require.True(t, ok)
	require.Equal(t, 50, v)
	v, ok = sm.Remove(5)
	require.True(t, ok)
	require.Equal(t, 50, v)
	_, ok = sm.Lookup(5)
	require.False(t, ok)
	require.Equal(t, 999, sm.Size())

	n := 0
	sm.Range(func(k, v int) bool {
		n++
		return true
	})
	require.Equal(t, 999, n)
	n = 0
	sm.Range(func(k, v int) bool {
		n++
		return n < 10
	})
	require.Equal(t, 10, n)

	st := sm.Stats()
	require.Equal(t, uint64(999), st.Size)
	require.Equal(t, sm.Capacity(), st.Capacity)
	for i := range sm.shards {
		require.Greater(t, sm.shards[i].m.Size(), 0, "shard %d is empty", i)
		checkInvariants(t, sm.shards[i].m)
	}
}

func TestShardedMapConcurrent(t *testing.T) {
	sm := newShardedIntMap(t, 16)
	const writers = 8
	const perWriter = 5000
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				k := base*perWriter + i
				if _, _, err := sm.Insert(k, k); err != nil {
					t.Error(err)
					return
				}
				if v, ok := sm.Lookup(k); !ok || v != k {
					t.Errorf("lookup %d = %d, %v", k, v, ok)
					return
				}
				if i%2 == 1 {
					sm.Remove(k)
				}
			}
		}(w)
	}
	wg.Wait()
	require.Equal(t, writers*perWriter/2, sm.Size())
	for i := range sm.shards {
		checkInvariants(t, sm.shards[i].m)
	}
}

func TestShardedMapInsertBatch(t *testing.T) {
	sm := newShardedIntMap(t, 8, WithWorkers(4))
	keys := make([]int, 20000)
	values := make([]int, len(keys))
	for i := range keys {
		keys[i] = i % 15000
		values[i] = i
	}
	require.NoError(t, sm.InsertBatch(keys, values))
	require.Equal(t, 15000, sm.Size())
	// later pairs win for duplicated keys
	v, ok := sm.Lookup(10)
	require.True(t, ok)
	require.Equal(t, 15010, v)
	v, ok = sm.Lookup(14999)
	require.True(t, ok)
	require.Equal(t, 14999, v)
	for i := range sm.shards {
		checkInvariants(t, sm.shards[i].m)
	}

	err := sm.InsertBatch([]int{1, 2}, []int{1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	require.NoError(t, sm.InsertBatch(nil, nil))
}

func TestShardedMapInsertBatchDuplicates(t *testing.T) {
	sm := newShardedIntMap(t, 2, WithWorkers(2))
	before := sm.Capacity()
	keys := make([]int, 10000)
	values := make([]int, len(keys))
	for i := range values {
		values[i] = i
	}
	require.NoError(t, sm.InsertBatch(keys, values))
	require.Equal(t, 1, sm.Size())
	require.Equal(t, before, sm.Capacity())
	v, ok := sm.Lookup(0)
	require.True(t, ok)
	require.Equal(t, 9999, v)
}

func TestShardedMapInsertBatchOverflow(t *testing.T) {
	sm := newShardedIntMap(t, 2, WithMaxCapacity(32))
	keys := make([]int, 200)
	for i := range keys {
		keys[i] = i
	}
	err := sm.InsertBatch(keys, keys)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCapacityOverflow), "got %v", err)
	require.LessOrEqual(t, sm.Size(), 2*28)
	for i := range sm.shards {
		require.LessOrEqual(t, sm.shards[i].m.Capacity(), uint64(32))
		checkInvariants(t, sm.shards[i].m)
	}
}

func TestShardedMapClosed(t *testing.T) {
	defer leaktest.AfterTest(t)()
	sm, err := NewShardedMap[int, int](IntegerHasher[int](), 4, 64, 0.9, WithWorkers(2))
	require.NoError(t, err)
	require.NoError(t, sm.InsertBatch([]int{7, 8, 9}, []int{7, 8, 9}))
	sm.Close()
	err = sm.InsertBatch([]int{1}, []int{1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal), "got %v", err)
	_, _, err = sm.Insert(1, 1)
	require.NoError(t, err)
	require.Equal(t, 4, sm.Size())
}
