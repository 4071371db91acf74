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
	"flag"
	"fmt"
	"os"
	"runtime/pprof"

	"go.uber.org/zap"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/config"
	"github.com/AiLang-Author/AiLang-Public-Library/pkg/logutil"
)

var (
	configFile         = flag.String("cfg", "", "toml configuration used to run rhbench, empty for defaults")
	cpuProfilePathFlag = flag.String("cpu-profile", "", "write cpu profile to the specified file")
)

func main() {
	flag.Parse()

	cfg, err := parseConfigFromFile(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	logutil.SetupLogger(&cfg.Log)
	if err = run(cfg); err != nil {
		logutil.Error("workload failed", zap.String("kind", cfg.Workload.Kind), zap.Error(err))
		_ = logutil.LogClose()
		os.Exit(1)
	}
	_ = logutil.LogClose()
}

func run(cfg *Config) error {
	if *cpuProfilePathFlag != "" {
		stop := startCPUProfile(*cpuProfilePathFlag)
		defer stop()
	}

	ctx := context.WithValue(context.Background(), config.ParameterUnitKey, config.NewParameterUnit(&cfg.HashTable))
	res, err := runWorkload(ctx, cfg.Workload)
	if err != nil {
		return err
	}
	logutil.Info("workload done",
		zap.String("kind", res.kind),
		zap.Bool("sharded", cfg.Workload.Sharded),
		zap.Int("ops", res.ops),
		zap.Duration("elapsed", res.elapsed),
		zap.Uint64("peak-capacity", res.peakCapacity),
		zap.Object("stats", res.stats))
	return nil
}

func startCPUProfile(path string) func() {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		panic(err)
	}
	logutil.Infof("CPU profiling enabled, writing to %s", path)
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}
}
