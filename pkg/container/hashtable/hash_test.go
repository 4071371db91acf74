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
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"
)

func TestIntegerHasher(t *testing.T) {
	h := IntegerHasher[int64]()
	require.Equal(t, h.Hash(12345), h.Hash(12345))
	require.NotEqual(t, h.Hash(1), h.Hash(2))
	require.True(t, h.Equal(3, 3))
	require.False(t, h.Equal(3, 4))

	// narrower integer types hash through the same widening
	require.Equal(t, IntegerHasher[uint8]().Hash(200), IntegerHasher[uint64]().Hash(200))
}

func TestIntegerHasherSeed(t *testing.T) {
	h := IntegerHasher[uint64]()
	// the integer mix only reads hashkey[0] ^ hashkey[1]

	stubs := gostub.Stub(&hashkey, [4]uint64{1, 2, 3, 4})
	a := h.Hash(42)
	stubs.Reset()

	stubs = gostub.Stub(&hashkey, [4]uint64{1, 2, 3, 4})
	b := h.Hash(42)
	stubs.Reset()

	stubs = gostub.Stub(&hashkey, [4]uint64{1, 6, 3, 4})
	c := h.Hash(42)
	stubs.Reset()

	stubs = gostub.Stub(&hashkey, [4]uint64{5, 6, 7, 8})
	d := h.Hash(42)
	stubs.Reset()

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, a, d)
}

func TestStringHasher(t *testing.T) {
	h := StringHasher()
	require.Equal(t, uint64(0xef46db3751d8e999), h.Hash(""))
	require.Equal(t, h.Hash("matrix"), h.Hash("matrix"))
	require.NotEqual(t, h.Hash("matrix"), h.Hash("origin"))
	require.True(t, h.Equal("a", "a"))
	require.False(t, h.Equal("a", "b"))
}

func TestBytesHasher(t *testing.T) {
	h := BytesHasher()
	require.Equal(t, StringHasher().Hash("robin hood"), h.Hash([]byte("robin hood")))
	require.True(t, h.Equal([]byte("ab"), []byte("ab")))
	require.True(t, h.Equal(nil, []byte{}))
	require.False(t, h.Equal([]byte("ab"), []byte("abc")))
}

func TestNewHasher(t *testing.T) {
	type point struct{ x, y int32 }
	h := NewHasher(func(p point) uint64 { return uint64(uint32(p.x))<<32 | uint64(uint32(p.y)) })
	require.Equal(t, uint64(1<<32|2), h.Hash(point{1, 2}))
	require.True(t, h.Equal(point{1, 2}, point{1, 2}))
	require.False(t, h.Equal(point{1, 2}, point{2, 1}))
}

func TestIntegerHasherDistribution(t *testing.T) {
	const buckets = 256
	const n = 1 << 16
	h := IntegerHasher[uint32]()
	var counts [buckets]int
	for i := uint32(0); i < n; i++ {
		counts[h.Hash(i)&(buckets-1)]++
	}
	for b, c := range counts {
		require.Greater(t, c, n/buckets/2, "bucket %d underfull", b)
		require.Less(t, c, n/buckets*3/2, "bucket %d overfull", b)
	}
}

func TestPowerOfTwoHelpers(t *testing.T) {
	for _, c := range []struct{ in, next, prev uint64 }{
		{1, 1, 1}, {2, 2, 2}, {3, 4, 2}, {5, 8, 4}, {1024, 1024, 1024}, {1025, 2048, 1024},
	} {
		require.Equal(t, c.next, nextPowerOfTwo(c.in), "next(%d)", c.in)
		require.Equal(t, c.prev, prevPowerOfTwo(c.in), "prev(%d)", c.in)
	}
	require.Equal(t, uint64(1), nextPowerOfTwo(0))
}

func TestCapacityFor(t *testing.T) {
	require.Equal(t, uint64(1), CapacityFor(0, 0.9))
	require.Equal(t, uint64(16), CapacityFor(14, 0.9))
	require.Equal(t, uint64(32), CapacityFor(15, 0.9))
	require.Equal(t, uint64(2048), CapacityFor(1000, 0.9))
	require.Equal(t, uint64(4), CapacityFor(2, 0.5))
	// out of range factors fall back to the default
	require.Equal(t, CapacityFor(1000, 0.9), CapacityFor(1000, 2))
}
