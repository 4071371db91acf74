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
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/config"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/logutil"
)

const (
	sequentialWorkload = "sequential"
	churnWorkload      = "churn"
	randomWorkload     = "random"

	defaultKeys       = 100000
	defaultIterations = 100000
	defaultSeed       = 1
)

// Config is the rhbench toml configuration.
type Config struct {
	Log       logutil.LogConfig          `toml:"log"`
	HashTable config.HashTableParameters `toml:"hashtable"`
	Workload  WorkloadConfig             `toml:"workload"`
}

// WorkloadConfig selects what the driver does to the table.
type WorkloadConfig struct {
	// Kind is one of sequential, churn and random.
	Kind       string `toml:"kind"`
	Keys       int    `toml:"keys"`
	Iterations int    `toml:"iterations"`
	Seed       int64  `toml:"seed"`
	// Presize sizes the table from a HyperLogLog estimate of the keys.
	Presize bool `toml:"presize"`
	// Sharded runs against a ShardedMap, loading through InsertBatch.
	Sharded bool `toml:"sharded"`
}

func (c *Config) validate() error {
	c.Log.Adjust()
	c.HashTable.Adjust()
	if c.Workload.Kind == "" {
		c.Workload.Kind = sequentialWorkload
	}
	if c.Workload.Keys == 0 {
		c.Workload.Keys = defaultKeys
	}
	if c.Workload.Iterations == 0 {
		c.Workload.Iterations = defaultIterations
	}
	if c.Workload.Seed == 0 {
		c.Workload.Seed = defaultSeed
	}
	switch c.Workload.Kind {
	case sequentialWorkload, churnWorkload, randomWorkload:
	default:
		return moerr.NewBadConfigNoCtx("unknown workload kind %q", c.Workload.Kind)
	}
	if c.Workload.Keys < 0 || c.Workload.Iterations < 0 {
		return moerr.NewBadConfigNoCtx("keys %d and iterations %d must not be negative",
			c.Workload.Keys, c.Workload.Iterations)
	}
	return nil
}

func parseConfigFromFile(file string) (*Config, error) {
	cfg := &Config{}
	if file != "" {
		if err := config.LoadFile(file, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
