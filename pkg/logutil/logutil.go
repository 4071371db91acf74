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

package logutil

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AiLang-Author/AiLang-Public-Library/pkg/common/moerr"
)

const (
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultLogMaxSize      = 512
	defaultStacktraceLevel = "panic"
)

// LogConfig log config
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Filename   string `toml:"filename"`
	MaxSize    int    `toml:"max-size"`
	MaxDays    int    `toml:"max-days"`
	MaxBackups int    `toml:"max-backups"`
	// StacktraceLevel records a stack trace for all messages at or above this level.
	StacktraceLevel string `toml:"stacktrace-level"`
}

// ZapSink pairs an encoder with the syncer it writes to.
type ZapSink struct {
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

var _globalLogger atomic.Value

var consoleSyncer = zapcore.Lock(os.Stdout)

func init() {
	conf := &LogConfig{}
	conf.Adjust()
	replaceGlobalLogger(initLogger(conf))
}

// Adjust fills the unset fields with defaults.
func (cfg *LogConfig) Adjust() {
	if cfg.Level == "" {
		cfg.Level = defaultLogLevel
	}
	if cfg.Format == "" {
		cfg.Format = defaultLogFormat
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultLogMaxSize
	}
	if cfg.StacktraceLevel == "" {
		cfg.StacktraceLevel = defaultStacktraceLevel
	}
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		panic(moerr.NewInternalErrorNoCtx("unsupported log level: %s", cfg.Level))
	}
	return level
}

func (cfg *LogConfig) getStacktraceLevel() zapcore.Level {
	level := zapcore.PanicLevel
	if cfg.StacktraceLevel == "" {
		return level
	}
	if err := level.UnmarshalText([]byte(cfg.StacktraceLevel)); err != nil {
		panic(moerr.NewInternalErrorNoCtx("unsupported stacktrace level: %s", cfg.StacktraceLevel))
	}
	return level
}

func (cfg *LogConfig) getOptions() []zap.Option {
	return []zap.Option{zap.AddStacktrace(cfg.getStacktraceLevel()), zap.AddCaller()}
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename == "" {
		return getConsoleSyncer()
	}
	if stat, err := os.Stat(cfg.Filename); err == nil && stat.IsDir() {
		panic("log file can't be a directory")
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	})
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

func (cfg *LogConfig) getSinks() []ZapSink {
	return []ZapSink{{cfg.getEncoder(), cfg.getSyncer()}}
}

func getConsoleSyncer() zapcore.WriteSyncer {
	return consoleSyncer
}

func getLoggerEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		TimeKey:          "time",
		NameKey:          "name",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       timeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}

	switch strings.ToLower(format) {
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default:
		panic(moerr.NewInternalErrorNoCtx("unsupported log format: %s", format))
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006/01/02 15:04:05.000000 -0700"))
}

func initLogger(conf *LogConfig) *zap.Logger {
	level := conf.getLevel()
	sinks := conf.getSinks()
	cores := make([]zapcore.Core, 0, len(sinks))
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(sink.enc, sink.out, level))
	}
	return zap.New(zapcore.NewTee(cores...), conf.getOptions()...)
}

// SetupLogger builds a logger from conf and installs it as the global logger.
func SetupLogger(conf *LogConfig) {
	logger := initLogger(conf)
	replaceGlobalLogger(logger)
	Debugf("logger setup, level %s, format %s, file %q", conf.Level, conf.Format, conf.Filename)
}

func replaceGlobalLogger(logger *zap.Logger) {
	_globalLogger.Store(logger)
}

// GetGlobalLogger returns the logger installed by SetupLogger.
func GetGlobalLogger() *zap.Logger {
	return _globalLogger.Load().(*zap.Logger)
}

// LogClose flushes buffered entries of the global logger.
func LogClose() error {
	return GetGlobalLogger().Sync()
}
