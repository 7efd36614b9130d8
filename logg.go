//  Copyright 2026-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package cushion

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

type LogLevel uint32

const (
	// LevelNone disables all logging
	LevelNone LogLevel = iota
	// LevelError enables only error logging.
	LevelError
	// LevelWarn enables warn and error logging.
	LevelWarn
	// LevelInfo enables info, warn, and error logging.
	LevelInfo
	// LevelDebug enables debug, info, warn, and error logging.
	LevelDebug
)

var logLevelNames = []string{"none", "error", "warn", "info", "debug"}

var logLevelNamesPrint = []string{"Cushion: [NON] ", "Cushion: [ERR] ", "Cushion: [WRN] ", "Cushion: [INF] ", "Cushion: [DBG] "}

func (l LogLevel) String() string {
	if int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return fmt.Sprintf("LogLevel(%d)", uint32(l))
}

// Parses a level name ("none", "error", "warn", "info", "debug"); case-insensitive.
func ParseLogLevel(name string) (LogLevel, error) {
	for i, candidate := range logLevelNames {
		if strings.EqualFold(name, candidate) {
			return LogLevel(i), nil
		}
	}
	return LevelNone, fmt.Errorf("unknown log level %q", name)
}

// Current log level, 0 == none. Accessed atomically.
var logging = uint32(LevelNone)

// Set this callback to redirect logging elsewhere. Default value writes to Go `log.Printf`
var LoggingCallback = func(ctx context.Context, level LogLevel, fmt string, args ...any) {
	log.Printf(logLevelNamesPrint[level]+fmt, args...)
}

func SetLogLevel(level LogLevel) {
	atomic.StoreUint32(&logging, uint32(level))
}

func GetLogLevel() LogLevel {
	return LogLevel(atomic.LoadUint32(&logging))
}

// SetLogging turns logging on at info level, or off entirely.
func SetLogging(setLogging bool) {
	if setLogging {
		SetLogLevel(LevelInfo)
	} else {
		SetLogLevel(LevelNone)
	}
}

func logAt(ctx context.Context, level LogLevel, fmt string, args ...any) {
	if GetLogLevel() >= level {
		LoggingCallback(ctx, level, fmt, args...)
	}
}

func warn(ctx context.Context, fmt string, args ...any) {
	logAt(ctx, LevelWarn, fmt, args...)
}

func info(ctx context.Context, fmt string, args ...any) {
	logAt(ctx, LevelInfo, fmt, args...)
}

func debug(ctx context.Context, fmt string, args ...any) {
	logAt(ctx, LevelDebug, fmt, args...)
}
