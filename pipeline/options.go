// Package pipeline implements the concurrent chunked build: a bounded,
// backpressured download -> verify -> ordered-write pipeline that
// reconstructs files from fixed-size chunks while respecting memory and
// parallelism caps.
package pipeline

import "runtime"

// MaxChunkSize is the fixed size of a single chunk (1 MiB), matching the
// vendor's chunking scheme. The memory permit pool's capacity is derived
// from it.
const MaxChunkSize = 1 << 20

// DefaultMaxDownloadWorkers mirrors the teacher's own default: twice the
// CPU count, capped at 16 concurrent downloads.
var DefaultMaxDownloadWorkers = min(runtime.NumCPU()*2, 16)

// DefaultMaxMemoryUsage caps resident chunk buffers at 1 GiB by default.
var DefaultMaxMemoryUsage = int64(MaxChunkSize * 1024)

// Options configures one Build invocation.
type Options struct {
	MaxDownloadWorkers int
	MaxMemoryUsage     int64
	SkipVerify         bool
}

// maxChunksInMemory derives the in-memory chunk cap from MaxMemoryUsage,
// per spec §4.F: floor(max_memory_usage / MAX_CHUNK_SIZE), never less
// than one slot.
func (o Options) maxChunksInMemory() int {
	n := int(o.MaxMemoryUsage / MaxChunkSize)
	if n < 1 {
		n = 1
	}
	return n
}
