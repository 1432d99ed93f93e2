package pipeline

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vaultforge/distengine/manifest"
	"github.com/vaultforge/distengine/progress"
)

// ChunkKey identifies one downloaded chunk by both its index and its
// manifest SHA, per spec §4.F: a file's chunk SHA can repeat across its
// own ids, so keying by SHA alone would silently drop duplicates.
func ChunkKey(id int, sha string) string {
	return fmt.Sprintf("%d,%s", id, sha)
}

// queueEntry is one entry of the expected-order queue: the canonical
// ordering of chunk writes, derived from the chunk manifest before any
// download begins.
type queueEntry struct {
	id       int
	sha      string
	fileName string
	isLast   bool
}

// buildQueue derives the expected-order queue from the chunk manifest in
// manifest order, marking the final chunk of each file using the
// expected-chunk counts the layout planner recorded.
func buildQueue(chunks []manifest.ChunkRecord, expectedChunks map[string]int) []queueEntry {
	queue := make([]queueEntry, 0, len(chunks))
	for _, c := range chunks {
		isLast := c.ID+1 == expectedChunks[c.FilePath]
		queue = append(queue, queueEntry{id: c.ID, sha: c.SHA, fileName: c.FilePath, isLast: isLast})
	}
	return queue
}

// writeMsg is what a download task hands off to the writer: the chunk
// record, its verified bytes, and the memory permit that must travel
// with the data until the writer commits it to disk.
type writeMsg struct {
	chunk  manifest.ChunkRecord
	data   []byte
	permit Permit
}

// runWriter is the pipeline's single logical consumer. It owns every
// open file handle, which is what lets it append bytes in strict
// ascending id order per file without any per-file locking: nothing else
// ever touches these handles.
//
// The expected-order queue is the oracle for "what to flush next". A
// chunk is appended iff it is at the current head of the queue; earlier
// arrivals sit in inBuffer, bounded by the memory permit pool.
func runWriter(log *slog.Logger, installPath string, queue []queueEntry, msgs <-chan writeMsg, mem *Limiter, prog *progress.Meters, hostPath func(string) string) error {
	inBuffer := make(map[string]writeMsg)
	openFiles := make(map[string]*os.File)
	defer func() {
		for _, f := range openFiles {
			f.Close()
		}
	}()

	qi := 0
	for qi < len(queue) {
		msg, ok := <-msgs
		if !ok {
			// The channel only closes once every download task has sent
			// or abandoned its chunk. A non-empty remainder here means
			// one or more chunks failed verification/download and were
			// abandoned (spec §4.F, §9): those files never finish, but
			// the build itself still reports completion of everything
			// it could write.
			log.Warn("build pipeline channel closed with chunks still pending",
				"remaining", len(queue)-qi)
			return nil
		}

		inBuffer[ChunkKey(msg.chunk.ID, msg.chunk.SHA)] = msg

		for qi < len(queue) {
			head := queue[qi]
			buffered, ok := inBuffer[ChunkKey(head.id, head.sha)]
			if !ok {
				break
			}
			delete(inBuffer, ChunkKey(head.id, head.sha))

			f, ok := openFiles[head.fileName]
			if !ok {
				var err error
				f, err = os.OpenFile(hostPath(head.fileName), os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("pipeline: open %s: %w", head.fileName, err)
				}
				openFiles[head.fileName] = f
			}

			n := len(buffered.data)
			if _, err := f.Write(buffered.data); err != nil {
				return fmt.Errorf("pipeline: write %s: %w", head.fileName, err)
			}
			prog.AddWritten(int64(n))
			mem.Release(buffered.permit)

			if head.isLast {
				f.Close()
				delete(openFiles, head.fileName)
			}

			qi++
		}
	}

	return nil
}
