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

package config

import (
	"context"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/container/hashtable"
)

type ConfigurationKeyType int

const (
	ParameterUnitKey ConfigurationKeyType = 1
)

const (
	defaultInitialCapacity  = 16
	defaultMaxLoadFactor    = 0.9
	defaultMaxCapacity      = 1 << 32
	defaultShards           = 16
)

// HashTableParameters of the hash tables
type HashTableParameters struct {
	//default is 16. rounded up to a power of two
	InitialCapacity int `toml:"initial-capacity"`

	//default is 0.9. a table grows once it holds more than capacity * max-load-factor entries
	MaxLoadFactor float64 `toml:"max-load-factor"`

	//default is 0.25, or max-load-factor / 4 when max-load-factor <= 0.5. a remove halves the table below capacity * shrink-load-factor entries
	ShrinkLoadFactor float64 `toml:"shrink-load-factor"`

	//default is false. true keeps the capacity after removes
	DisableShrink bool `toml:"disable-shrink"`

	//default is initial-capacity. removes never shrink the table below it
	MinCapacity uint64 `toml:"min-capacity"`

	//default is 1 << 32. inserts needing more slots fail with a capacity overflow
	MaxCapacity uint64 `toml:"max-capacity"`

	//default is 16. the number of shards of a sharded table
	Shards int `toml:"shards"`

	//default is the number of cpus. the size of the batch insert worker pool
	Workers int `toml:"workers"`
}

// Adjust fills the zero fields with defaults.
func (p *HashTableParameters) Adjust() {
	if p.InitialCapacity == 0 {
		p.InitialCapacity = defaultInitialCapacity
	}
	if p.MaxLoadFactor == 0 {
		p.MaxLoadFactor = defaultMaxLoadFactor
	}
	if p.ShrinkLoadFactor == 0 && !p.DisableShrink {
		p.ShrinkLoadFactor = hashtable.DefaultShrinkLoadFactor(p.MaxLoadFactor)
	}
	if p.DisableShrink {
		p.ShrinkLoadFactor = 0
	}
	if p.MaxCapacity == 0 {
		p.MaxCapacity = defaultMaxCapacity
	}
	if p.Shards == 0 {
		p.Shards = defaultShards
	}
	if p.Workers == 0 {
		p.Workers = runtime.NumCPU()
	}
}

// Options converts the parameters to table options. The initial capacity
// and load factor are passed to the constructors directly.
func (p *HashTableParameters) Options() []hashtable.Option {
	opts := []hashtable.Option{
		hashtable.WithShrinkLoadFactor(p.ShrinkLoadFactor),
		hashtable.WithMaxCapacity(p.MaxCapacity),
		hashtable.WithWorkers(p.Workers),
	}
	if p.MinCapacity != 0 {
		opts = append(opts, hashtable.WithMinCapacity(p.MinCapacity))
	}
	return opts
}

// LoadFile decodes the toml file at path into v. Keys that match no field
// are reported as a bad configuration instead of being ignored.
func LoadFile(path string, v any) error {
	md, err := toml.DecodeFile(path, v)
	if err != nil {
		return moerr.NewBadConfigNoCtx("decode %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return moerr.NewBadConfigNoCtx("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

type ParameterUnit struct {
	SV *HashTableParameters
}

func NewParameterUnit(sv *HashTableParameters) *ParameterUnit {
	return &ParameterUnit{
		SV: sv,
	}
}

// GetParameterUnit gets the configuration from the context.
func GetParameterUnit(ctx context.Context) *ParameterUnit {
	pu, _ := ctx.Value(ParameterUnitKey).(*ParameterUnit)
	if pu == nil {
		panic("parameter unit is invalid")
	}
	return pu
}
