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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/config"
)

func testContext(t *testing.T, sv config.HashTableParameters) context.Context {
	sv.Adjust()
	sv.Workers = 2
	return context.WithValue(context.Background(), config.ParameterUnitKey, config.NewParameterUnit(&sv))
}

func TestRunWorkload(t *testing.T) {
	for _, kind := range []string{sequentialWorkload, churnWorkload, randomWorkload} {
		for _, sharded := range []bool{false, true} {
			for _, presize := range []bool{false, true} {
				cfg := WorkloadConfig{
					Kind:       kind,
					Keys:       5000,
					Iterations: 20000,
					Seed:       7,
					Presize:    presize,
					Sharded:    sharded,
				}
				t.Run(kind, func(t *testing.T) {
					res, err := runWorkload(testContext(t, config.HashTableParameters{Shards: 4}), cfg)
					require.NoError(t, err, "sharded=%v presize=%v", sharded, presize)
					require.Equal(t, kind, res.kind)
					require.Greater(t, res.ops, 0)
					require.GreaterOrEqual(t, res.peakCapacity, res.stats.Capacity)
				})
			}
		}
	}
}

func TestSequentialPresizeAvoidsGrowth(t *testing.T) {
	cfg := WorkloadConfig{Kind: sequentialWorkload, Keys: 10000, Presize: true}
	res, err := runWorkload(testContext(t, config.HashTableParameters{}), cfg)
	require.NoError(t, err)
	require.Zero(t, res.stats.Grows)
	require.Equal(t, uint64(10000), res.stats.Size)

	cfg.Presize = false
	res, err = runWorkload(testContext(t, config.HashTableParameters{}), cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(10), res.stats.Grows)
}

func TestChurnStaysSmall(t *testing.T) {
	cfg := WorkloadConfig{Kind: churnWorkload, Iterations: 10000}
	res, err := runWorkload(testContext(t, config.HashTableParameters{}), cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(16), res.peakCapacity)
	require.Zero(t, res.stats.Size)
}

func TestWorkloadCapacityOverflow(t *testing.T) {
	cfg := WorkloadConfig{Kind: sequentialWorkload, Keys: 100}
	_, err := runWorkload(testContext(t, config.HashTableParameters{MaxCapacity: 64}), cfg)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCapacityOverflow), "got %v", err)
}

func TestPresizeClampedToMaxCapacity(t *testing.T) {
	cfg := WorkloadConfig{Kind: sequentialWorkload, Keys: 50, Presize: true}
	res, err := runWorkload(testContext(t, config.HashTableParameters{MaxCapacity: 100}), cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(64), res.stats.Capacity)

	// 200 keys presize to 256 slots; the table opens at 64 and overflows
	cfg.Keys = 200
	_, err = runWorkload(testContext(t, config.HashTableParameters{MaxCapacity: 100}), cfg)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCapacityOverflow), "got %v", err)
}

func TestParseConfigFromFile(t *testing.T) {
	cfg, err := parseConfigFromFile("")
	require.NoError(t, err)
	require.Equal(t, sequentialWorkload, cfg.Workload.Kind)
	require.Equal(t, defaultKeys, cfg.Workload.Keys)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 16, cfg.HashTable.Shards)

	path := filepath.Join(t.TempDir(), "rhbench.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "debug"
format = "json"

[hashtable]
initial-capacity = 64
max-load-factor = 0.8
shards = 8

[workload]
kind = "random"
keys = 2000
iterations = 8000
seed = 42
sharded = true
`), 0o644))
	cfg, err = parseConfigFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 64, cfg.HashTable.InitialCapacity)
	require.Equal(t, 0.8, cfg.HashTable.MaxLoadFactor)
	require.Equal(t, randomWorkload, cfg.Workload.Kind)
	require.Equal(t, int64(42), cfg.Workload.Seed)
	require.True(t, cfg.Workload.Sharded)

	require.NoError(t, os.WriteFile(path, []byte("[workload]\nkind = \"zipf\"\n"), 0o644))
	_, err = parseConfigFromFile(path)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	require.NoError(t, os.WriteFile(path, []byte("[workload]\nthreads = 4\n"), 0o644))
	_, err = parseConfigFromFile(path)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}
