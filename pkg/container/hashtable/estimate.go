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
	"encoding/binary"

	hll "github.com/axiomhq/hyperloglog"
)

// CapacityEstimator counts the distinct keys of a stream with a HyperLogLog
// sketch so a table can be sized before the keys are inserted. The estimate
// carries the sketch's error of about two percent.
type CapacityEstimator[K any] struct {
	hasher Hasher[K]
	sketch *hll.Sketch
	buf    [8]byte
}

func NewCapacityEstimator[K any](hasher Hasher[K]) *CapacityEstimator[K] {
	return &CapacityEstimator[K]{
		hasher: hasher,
		sketch: hll.New(),
	}
}

func (e *CapacityEstimator[K]) Add(key K) {
	binary.LittleEndian.PutUint64(e.buf[:], e.hasher.Hash(key))
	e.sketch.Insert(e.buf[:])
}

// Estimate returns the approximate number of distinct keys added so far.
func (e *CapacityEstimator[K]) Estimate() uint64 {
	return e.sketch.Estimate()
}

// Capacity returns the initial capacity for a table that should hold the
// estimated keys under maxLoadFactor without growing.
func (e *CapacityEstimator[K]) Capacity(maxLoadFactor float64) int {
	return int(CapacityFor(e.Estimate(), maxLoadFactor))
}
