package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vaultforge/distengine/api"
	"github.com/vaultforge/distengine/hashutil"
	"github.com/vaultforge/distengine/layout"
	"github.com/vaultforge/distengine/manifest"
	"github.com/vaultforge/distengine/progress"
)

// Build runs the full concurrent chunked build described in spec §4.F:
// it downloads, verifies, and writes every chunk in chunks, honoring
// opts' parallelism and memory caps, then (when plan carries a detected
// macOS bundle) finalizes the bundle's primary executable once the
// writer has fully drained.
//
// Build returns true on successful completion of the write loop,
// matching the reference behavior: a chunk that fails download or
// verification is logged and abandoned rather than failing the whole
// build (spec §9's flagged open question, resolved in DESIGN.md).
func Build(ctx context.Context, log *slog.Logger, client api.Client, build api.BuildDescriptor, installPath string, chunks []manifest.ChunkRecord, plan *layout.Plan, opts Options, prog *progress.Meters) (bool, error) {
	log = nonNilLogger(log)
	if opts.MaxDownloadWorkers < 1 {
		opts.MaxDownloadWorkers = DefaultMaxDownloadWorkers
	}
	if opts.MaxMemoryUsage < 1 {
		opts.MaxMemoryUsage = DefaultMaxMemoryUsage
	}

	queue := buildQueue(chunks, plan.ExpectedChunks)
	hostPath := func(fileName string) string { return layout.HostPath(installPath, fileName) }

	memLimiter := NewLimiter(opts.maxChunksInMemory())
	dlLimiter := NewLimiter(opts.MaxDownloadWorkers)

	msgs := make(chan writeMsg, opts.maxChunksInMemory())

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- runWriter(log, installPath, queue, msgs, memLimiter, prog, hostPath)
	}()

	var wg sync.WaitGroup
	for _, chunk := range chunks {
		permit, ok := memLimiter.Acquire(ctx)
		if !ok {
			break
		}

		wg.Add(1)
		go downloadChunk(ctx, log, client, build, chunk, opts, dlLimiter, memLimiter, permit, msgs, &wg, prog)
	}

	go func() {
		wg.Wait()
		close(msgs)
	}()

	if err := <-writerDone; err != nil {
		return false, err
	}

	if plan.InfoPlistPath != "" {
		if err := layout.FinalizeMacBundle(plan.InfoPlistPath); err != nil {
			return false, err
		}
	}

	return true, nil
}

// downloadChunk is the per-chunk download task of spec §4.F: acquire a
// download permit, fetch the bytes, release the permit, update the
// download meter, verify unless skipped, and hand the bytes to the
// writer along with the memory permit that must travel with them.
func downloadChunk(ctx context.Context, log *slog.Logger, client api.Client, build api.BuildDescriptor, chunk manifest.ChunkRecord, opts Options, dlLimiter, memLimiter *Limiter, memPermit Permit, out chan<- writeMsg, wg *sync.WaitGroup, prog *progress.Meters) {
	defer wg.Done()

	dlPermit, ok := dlLimiter.Acquire(ctx)
	if !ok {
		memLimiter.Release(memPermit)
		return
	}

	data, err := client.DownloadChunk(ctx, build, chunk.SHA)
	dlLimiter.Release(dlPermit)

	if err != nil {
		log.Warn("chunk download failed, abandoning", "sha", chunk.SHA, "file_path", chunk.FilePath, "error", err)
		memLimiter.Release(memPermit)
		return
	}

	prog.AddDownloaded(int64(len(data)))

	if !opts.SkipVerify {
		expected, ok := manifest.SplitVerificationSHA(chunk.SHA)
		if !ok {
			log.Warn("chunk sha carries no verification token, skipping verification", "sha", chunk.SHA)
		} else if actual := hashutil.HashBytes(data); actual != expected {
			log.Warn("chunk failed verification, abandoning", "sha", chunk.SHA, "file_path", chunk.FilePath, "expected", expected, "actual", actual)
			memLimiter.Release(memPermit)
			return
		}
	}

	select {
	case out <- writeMsg{chunk: chunk, data: data, permit: memPermit}:
	case <-ctx.Done():
		memLimiter.Release(memPermit)
	}
}

func nonNilLogger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
