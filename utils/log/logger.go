/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package log

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logPath = "/var/log/stratuslab/pdisk-backend.log"

	DirectionConsole = "console"
	DirectionSyslog  = "syslog"
	DirectionFile    = "file"
)

var sugareLogger *zap.SugaredLogger

// Options selects where log lines go.
// Direction console/syslog/file
// File is only used by the file direction, defaults to logPath
// Level debug/info/warn/error, the DEBUG env var forces debug
type Options struct {
	Direction string
	File      string
	Level     string
	Tag       string
}

func init() {
	// stdout carries command results, keep it clean until Setup is called
	sugareLogger = newLogger(zapcore.AddSync(os.Stderr), zap.InfoLevel)
}

// Setup replaces the package logger. It is called once the configuration is loaded.
func Setup(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}

	var syncer zapcore.WriteSyncer
	switch strings.ToLower(opts.Direction) {
	case "", DirectionConsole:
		syncer = zapcore.AddSync(os.Stderr)
	case DirectionSyslog:
		tag := opts.Tag
		if tag == "" {
			tag = "pdisk-backend"
		}
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
		if err != nil {
			return fmt.Errorf("failed to connect to syslog: %w", err)
		}
		syncer = zapcore.AddSync(w)
	case DirectionFile:
		filename := opts.File
		if filename == "" {
			filename = logPath
		}
		hook := lumberjack.Logger{
			Filename:   filename,
			MaxSize:    30, // megabytes
			MaxBackups: 3,
			MaxAge:     1,
			Compress:   false,
		}
		syncer = zapcore.AddSync(&hook)
	default:
		return fmt.Errorf("unknown log direction %q, expected one of %s, %s, %s",
			opts.Direction, DirectionConsole, DirectionSyslog, DirectionFile)
	}

	sugareLogger = newLogger(syncer, level)
	return nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if os.Getenv("DEBUG") != "" {
		return zap.DebugLevel, nil
	}
	if s == "" {
		return zap.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func newLogger(syncer zapcore.WriteSyncer, level zapcore.Level) *zap.SugaredLogger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "line",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	if os.Getenv("DEBUG") != "" {
		level = zap.DebugLevel
	}
	core := zapcore.NewCore(
		encoder,
		syncer,
		level,
	)

	log := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return log.Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = sugareLogger.Sync()
}

func Debug(args ...interface{}) {
	sugareLogger.Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	sugareLogger.Debugf(template, args...)
}

func Info(args ...interface{}) {
	sugareLogger.Info(args...)
}

func Infof(template string, args ...interface{}) {
	sugareLogger.Infof(template, args...)
}

func Warn(args ...interface{}) {
	sugareLogger.Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	sugareLogger.Warnf(template, args...)
}

func Error(args ...interface{}) {
	sugareLogger.Error(args...)
}

func Errorf(template string, args ...interface{}) {
	sugareLogger.Errorf(template, args...)
}

func Fatal(args ...interface{}) {
	sugareLogger.Fatal(args...)
}

func Fatalf(template string, args ...interface{}) {
	sugareLogger.Fatalf(template, args...)
}
