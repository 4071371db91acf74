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
	"bytes"
	"math/bits"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

var hashkey [4]uint64

func init() {
	hashkey[0] = rand.Uint64()
	hashkey[1] = rand.Uint64()
	hashkey[2] = rand.Uint64()
	hashkey[3] = rand.Uint64()
}

const (
	m1 = 0xa0761d6478bd642f
	m2 = 0xe7037ed1a0b428db
	m5 = 0x1d8e4e27c47d124f
)

func mix(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return hi ^ lo
}

func wyhash64(x uint64) uint64 {
	return mix(m5^8, mix(x^m2, x^hashkey[1]^hashkey[0]^m1))
}

// Hasher is the key capability a table needs: a deterministic,
// well-distributed hash and an equality test that agrees with it
// (Equal(a, b) implies Hash(a) == Hash(b)). Hash must not fail.
type Hasher[K any] interface {
	Hash(key K) uint64
	Equal(a, b K) bool
}

type funcHasher[K comparable] struct {
	fn func(K) uint64
}

// NewHasher wraps a caller supplied hash function; keys are compared with ==.
func NewHasher[K comparable](fn func(K) uint64) Hasher[K] {
	return funcHasher[K]{fn: fn}
}

func (h funcHasher[K]) Hash(key K) uint64 {
	return h.fn(key)
}

func (funcHasher[K]) Equal(a, b K) bool {
	return a == b
}

type integerHasher[K constraints.Integer] struct{}

// IntegerHasher hashes any integer type with a seeded wyhash mix. The seed
// is drawn once per process, so hashes are stable for the process lifetime
// and differ between runs.
func IntegerHasher[K constraints.Integer]() Hasher[K] {
	return integerHasher[K]{}
}

func (integerHasher[K]) Hash(key K) uint64 {
	return wyhash64(uint64(key))
}

func (integerHasher[K]) Equal(a, b K) bool {
	return a == b
}

type stringHasher struct{}

// StringHasher hashes strings with xxhash64.
func StringHasher() Hasher[string] {
	return stringHasher{}
}

func (stringHasher) Hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func (stringHasher) Equal(a, b string) bool {
	return a == b
}

type bytesHasher struct{}

// BytesHasher hashes byte slices by content with xxhash64. The table keeps
// the slice it was given, so callers must not modify a key after inserting it.
func BytesHasher() Hasher[[]byte] {
	return bytesHasher{}
}

func (bytesHasher) Hash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

func (bytesHasher) Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
