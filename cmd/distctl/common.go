package main

import "github.com/vaultforge/distengine/pipeline"

// pipelineOptions merges CLI flag overrides (0 meaning "unset") onto
// the loaded config's pipeline options.
func pipelineOptions(workers int, maxMemory int64, skipVerify bool) pipeline.Options {
	opts := cfg.PipelineOptions()
	if workers > 0 {
		opts.MaxDownloadWorkers = workers
	}
	if maxMemory > 0 {
		opts.MaxMemoryUsage = maxMemory
	}
	if skipVerify {
		opts.SkipVerify = true
	}
	return opts
}
