// Package logx provides the CLI's verbosity-gated diagnostic output:
// a single process-wide level, set with SetVerbosity, gating
// error/warn/info/debug writes to standard error. The level starts at 0,
// at which nothing is written.
package logx

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is a verbosity threshold. Higher values emit more.
type Level int32

const (
	LevelError Level = 1
	LevelWarn  Level = 2
	LevelInfo  Level = 3
	LevelDebug Level = 4
)

var verbosity atomic.Int32

var std = log.New(os.Stderr, "", 0)

// SetVerbosity sets the process-wide verbosity level.
func SetVerbosity(v Level) { verbosity.Store(int32(v)) }

// Verbosity returns the current process-wide verbosity level.
func Verbosity() Level { return Level(verbosity.Load()) }

func emit(level Level, format string, args ...any) {
	if Verbosity() >= level {
		std.Output(3, fmt.Sprintf(format, args...))
	}
}

// Errorf logs at LevelError.
func Errorf(format string, args ...any) { emit(LevelError, format, args...) }

// Warnf logs at LevelWarn.
func Warnf(format string, args ...any) { emit(LevelWarn, format, args...) }

// Infof logs at LevelInfo.
func Infof(format string, args ...any) { emit(LevelInfo, format, args...) }

// Debugf logs at LevelDebug.
func Debugf(format string, args ...any) { emit(LevelDebug, format, args...) }
