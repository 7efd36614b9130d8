// Copyright 2026-Present Couchbase, Inc.
//
// Use of this software is governed by the Business Source License included
// in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
// in that file, in accordance with the Business Source License, use of this
// software will be governed by the Apache License, Version 2.0, included in
// the file licenses/APL2.txt.

package cushion

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls how design documents run their JavaScript locally and how
// chatty the package is.
type Config struct {
	// Maximum time a single map/check call may run. Zero means no timeout.
	JSTimeout time.Duration `env:"CUSHION_JS_TIMEOUT" envDefault:"5s"`
	// Number of compiled JS tasks kept per function.
	JSMaxTasks int `env:"CUSHION_JS_MAX_TASKS" envDefault:"4"`
	// Parallel map workers for RunView. Zero means GOMAXPROCS.
	MapParallelism int    `env:"CUSHION_MAP_PARALLELISM" envDefault:"0"`
	LogLevel       string `env:"CUSHION_LOG_LEVEL" envDefault:"none"`
}

func DefaultConfig() Config {
	return Config{
		JSTimeout:  5 * time.Second,
		JSMaxTasks: kTaskCacheSize,
		LogLevel:   LevelNone.String(),
	}
}

// LoadConfig reads a Config from CUSHION_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JSMaxTasks <= 0 {
		return Config{}, fmt.Errorf("CUSHION_JS_MAX_TASKS must be positive, got %d", cfg.JSMaxTasks)
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Apply installs the configured log level globally.
func (cfg Config) Apply() error {
	level, err := ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	SetLogLevel(level)
	return nil
}
