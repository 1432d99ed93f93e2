// Package config loads the engine's runtime knobs (spec §6) from an
// optional TOML file, applying the teacher's own style of small structs
// with explicit post-decode defaulting.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/vaultforge/distengine/pipeline"
)

// Config carries the knobs spec §6 names as consumed by the core, plus
// the log level for the engine's ConsoleHandler.
type Config struct {
	MaxDownloadWorkers int    `toml:"max_download_workers"`
	MaxMemoryUsage     int64  `toml:"max_memory_usage"`
	SkipVerify         bool   `toml:"skip_verify"`
	InfoOnly           bool   `toml:"info_only"`
	LogLevel           string `toml:"log_level"`
}

// Default returns a Config with the reference defaults: the teacher's
// own worker/memory defaults (now homed in pipeline), verification on,
// info-only mode off, log level info.
func Default() Config {
	return Config{
		MaxDownloadWorkers: pipeline.DefaultMaxDownloadWorkers,
		MaxMemoryUsage:     pipeline.DefaultMaxMemoryUsage,
		SkipVerify:         false,
		InfoOnly:           false,
		LogLevel:           "info",
	}
}

// Load reads a TOML config file at path, applying Default() for any
// field the file leaves unset (zero-valued). A missing file is not an
// error — it simply yields Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}

	// Decode into a fresh struct so zero-valued fields in the file don't
	// clobber defaults: e.g. a file specifying only skip_verify=true
	// should keep the default worker count and memory cap.
	var parsed Config
	if _, err := toml.Decode(string(data), &parsed); err != nil {
		return Config{}, err
	}

	if parsed.MaxDownloadWorkers > 0 {
		cfg.MaxDownloadWorkers = parsed.MaxDownloadWorkers
	}
	if parsed.MaxMemoryUsage > 0 {
		cfg.MaxMemoryUsage = parsed.MaxMemoryUsage
	}
	if parsed.LogLevel != "" {
		cfg.LogLevel = parsed.LogLevel
	}
	cfg.SkipVerify = parsed.SkipVerify
	cfg.InfoOnly = parsed.InfoOnly

	return cfg, nil
}

// PipelineOptions projects the subset of Config the build pipeline consumes.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		MaxDownloadWorkers: c.MaxDownloadWorkers,
		MaxMemoryUsage:     c.MaxMemoryUsage,
		SkipVerify:         c.SkipVerify,
	}
}
