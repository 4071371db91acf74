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
	"math"
	"math/bits"
	"runtime"

	"go.uber.org/zap"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/logutil"
)

const (
	kDefaultCapacity         = 16
	kDefaultMaxLoadFactor    = 0.9
	kDefaultShrinkLoadFactor = 0.25

	// probe distances are stored as uint32, so a table never has more slots
	// than this.
	kMaxCapacityLimit uint64 = 1 << 32
	kMaxShards               = 1 << 16
)

type options struct {
	initialCapacity  uint64
	maxLoadFactor    float64
	shrinkLoadFactor float64
	shrinkSet        bool
	minCapacity      uint64
	maxCapacity      uint64
	workers          int
	logger           *zap.Logger
}

// Option configures a Map, a Set or a ShardedMap.
type Option func(*options)

// WithMaxCapacity bounds growth. It is rounded down to a power of two and
// capped at 1<<32. An insert that needs more slots fails with
// ErrCapacityOverflow.
func WithMaxCapacity(n uint64) Option {
	return func(o *options) {
		o.maxCapacity = n
	}
}

// WithMinCapacity is the floor below which removes never shrink the table.
// It defaults to the initial capacity.
func WithMinCapacity(n uint64) Option {
	return func(o *options) {
		o.minCapacity = n
	}
}

// WithShrinkLoadFactor sets the load factor under which a remove halves the
// table. Zero disables shrinking. It must be below half the max load factor
// so that a shrink never lands above the grow threshold. Without it the
// factor is 0.25, or a quarter of the max load factor when 0.25 is too high.
func WithShrinkLoadFactor(f float64) Option {
	return func(o *options) {
		o.shrinkLoadFactor = f
		o.shrinkSet = true
	}
}

// WithWorkers sets the size of the worker pool a ShardedMap uses for batch
// loads. Plain maps ignore it.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger replaces the logger used for resize events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(initialCapacity int, maxLoadFactor float64, opts []Option) (options, error) {
	o := options{
		maxCapacity: kMaxCapacityLimit,
		workers:     runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !(maxLoadFactor > 0 && maxLoadFactor < 1) {
		return o, moerr.NewInvalidConfigurationNoCtx("max load factor %v must be in (0, 1)", maxLoadFactor)
	}
	if !o.shrinkSet {
		o.shrinkLoadFactor = DefaultShrinkLoadFactor(maxLoadFactor)
	}
	if !(o.shrinkLoadFactor >= 0 && o.shrinkLoadFactor < maxLoadFactor/2) {
		return o, moerr.NewInvalidConfigurationNoCtx("shrink load factor %v must be in [0, %v)", o.shrinkLoadFactor, maxLoadFactor/2)
	}
	if o.maxCapacity == 0 {
		return o, moerr.NewInvalidConfigurationNoCtx("max capacity must be positive")
	}
	o.maxCapacity = FloorCapacity(o.maxCapacity)

	if initialCapacity <= 0 {
		return o, moerr.NewInvalidConfigurationNoCtx("initial capacity %d must be positive", initialCapacity)
	}
	if uint64(initialCapacity) > o.maxCapacity {
		return o, moerr.NewInvalidConfigurationNoCtx("initial capacity %d exceeds max capacity %d", initialCapacity, o.maxCapacity)
	}
	o.initialCapacity = nextPowerOfTwo(uint64(initialCapacity))

	if o.minCapacity == 0 {
		o.minCapacity = o.initialCapacity
	} else {
		if o.minCapacity > o.maxCapacity {
			return o, moerr.NewInvalidConfigurationNoCtx("min capacity %d exceeds max capacity %d", o.minCapacity, o.maxCapacity)
		}
		o.minCapacity = nextPowerOfTwo(o.minCapacity)
	}

	if o.workers <= 0 {
		return o, moerr.NewInvalidConfigurationNoCtx("workers %d must be positive", o.workers)
	}
	o.maxLoadFactor = maxLoadFactor
	if o.logger == nil {
		o.logger = logutil.GetGlobalLogger().Named("hashtable")
	}
	return o, nil
}

// DefaultShrinkLoadFactor is the shrink factor used for maxLoadFactor when
// none is given: 0.25, lowered to maxLoadFactor/4 for factors of 0.5 and
// below.
func DefaultShrinkLoadFactor(maxLoadFactor float64) float64 {
	if kDefaultShrinkLoadFactor < maxLoadFactor/2 {
		return kDefaultShrinkLoadFactor
	}
	return maxLoadFactor / 4
}

func nextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}

// FloorCapacity rounds n down to a power of two and caps it at 1<<32, the
// way WithMaxCapacity is applied. n must be positive.
func FloorCapacity(n uint64) uint64 {
	if n > kMaxCapacityLimit {
		n = kMaxCapacityLimit
	}
	return prevPowerOfTwo(n)
}

func prevPowerOfTwo(n uint64) uint64 {
	return 1 << (bits.Len64(n) - 1)
}

// CapacityFor returns the smallest power-of-two capacity that holds n
// entries without exceeding maxLoadFactor, capped at 1<<32.
func CapacityFor(n uint64, maxLoadFactor float64) uint64 {
	if !(maxLoadFactor > 0 && maxLoadFactor < 1) {
		maxLoadFactor = kDefaultMaxLoadFactor
	}
	c := uint64(1)
	for maxElemCnt(c, maxLoadFactor) < n && c < kMaxCapacityLimit {
		c <<= 1
	}
	return c
}

// maxElemCnt is floor(capacity * loadFactor). Capacity is a power of two,
// so the product is exact and stays below capacity for a factor below one.
func maxElemCnt(capacity uint64, loadFactor float64) uint64 {
	return uint64(math.Floor(float64(capacity) * loadFactor))
}
