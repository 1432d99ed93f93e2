// Package delta synthesizes the file-level and chunk-level diff between
// two builds of a product.
package delta

import (
	"fmt"
	"log/slog"

	"github.com/vaultforge/distengine/manifest"
	"github.com/vaultforge/distengine/store"
)

// BuildFileDelta returns the tagged delta manifest between oldManifest
// and newManifest, reusing a previously persisted copy when one already
// exists under manifest_delta for (productSlug, oldVersion, newVersion).
//
// Emission order is fixed and load-bearing: every Added/Modified record
// (in new-manifest order) precedes every Removed record (in
// old-manifest order). BuildChunkDelta's cursor pass depends on it.
func BuildFileDelta(log *slog.Logger, productSlug, oldVersion, newVersion string, oldManifest, newManifest []manifest.FileRecord) ([]manifest.FileRecord, error) {
	log = nonNilLogger(log)
	buildKey := store.DeltaBuildKey(oldVersion, newVersion)

	if store.Exists(productSlug, buildKey, store.KindManifestDelta) {
		existing, err := store.LoadFileManifest(productSlug, buildKey, store.KindManifestDelta)
		if err == nil {
			return existing, nil
		}
		log.Warn("stored file delta unreadable, regenerating", "product", productSlug, "error", err)
	}

	oldByName := make(map[string]manifest.FileRecord, len(oldManifest))
	for _, rec := range oldManifest {
		oldByName[rec.FileName] = rec
	}
	newNames := make(map[string]struct{}, len(newManifest))
	for _, rec := range newManifest {
		newNames[rec.FileName] = struct{}{}
	}

	var result []manifest.FileRecord

	for _, rec := range newManifest {
		if _, ok := oldByName[rec.FileName]; !ok {
			rec.Tag = manifest.TagAdded
			result = append(result, rec)
		}
	}
	for _, rec := range newManifest {
		if old, ok := oldByName[rec.FileName]; ok && old.SHA != rec.SHA {
			rec.Tag = manifest.TagModified
			result = append(result, rec)
		}
	}
	for _, rec := range oldManifest {
		if _, ok := newNames[rec.FileName]; !ok {
			rec.Tag = manifest.TagRemoved
			result = append(result, rec)
		}
	}

	if err := store.SaveFileManifest(productSlug, buildKey, store.KindManifestDelta, result); err != nil {
		return nil, fmt.Errorf("delta: persist file delta: %w", err)
	}

	return result, nil
}

// BuildChunkDelta derives the delta chunk manifest from the delta file
// manifest and the new build's full chunk manifest in a single forward
// pass. A cursor walks the delta file records; chunks are emitted only
// while they match the cursor's current file, and the whole pass
// terminates the moment the cursor reaches a Removed entry (nothing
// after Removed is ever emitted, since Removed files have no chunks to
// fetch and the synthesizer guarantees they sort last).
func BuildChunkDelta(log *slog.Logger, productSlug, oldVersion, newVersion string, deltaFileManifest []manifest.FileRecord, newChunkManifest []manifest.ChunkRecord) ([]manifest.ChunkRecord, error) {
	log = nonNilLogger(log)
	buildKey := store.DeltaBuildKey(oldVersion, newVersion)

	if store.Exists(productSlug, buildKey, store.KindManifestDeltaChunks) {
		existing, err := store.LoadChunkManifest(productSlug, buildKey, store.KindManifestDeltaChunks)
		if err == nil {
			return existing, nil
		}
		log.Warn("stored chunk delta unreadable, regenerating", "product", productSlug, "error", err)
	}

	cur := newCursor(log, deltaFileManifest)

	var result []manifest.ChunkRecord
	for _, chunk := range newChunkManifest {
		if cur.done() {
			break
		}
		if cur.tag() == manifest.TagRemoved {
			break
		}
		if chunk.FilePath != cur.fileName() {
			continue
		}

		result = append(result, chunk)

		if chunk.ID+1 == cur.chunks() {
			cur.advance()
		}
	}

	if err := store.SaveChunkManifest(productSlug, buildKey, store.KindManifestDeltaChunks, result); err != nil {
		return nil, fmt.Errorf("delta: persist chunk delta: %w", err)
	}

	return result, nil
}

// cursor walks a delta file manifest, skipping directory and empty
// entries up front (and whenever it advances), logging each skip.
type cursor struct {
	log     *slog.Logger
	records []manifest.FileRecord
	pos     int
}

func newCursor(log *slog.Logger, records []manifest.FileRecord) *cursor {
	c := &cursor{log: log, records: records}
	c.skipUneligible()
	return c
}

func (c *cursor) skipUneligible() {
	for c.pos < len(c.records) {
		rec := c.records[c.pos]
		if rec.IsDirectory() || rec.Chunks == 0 {
			c.log.Debug("delta cursor skipping directory/empty entry", "file_name", rec.FileName)
			c.pos++
			continue
		}
		break
	}
}

func (c *cursor) done() bool {
	return c.pos >= len(c.records)
}

func (c *cursor) fileName() string {
	return c.records[c.pos].FileName
}

func (c *cursor) chunks() int {
	return c.records[c.pos].Chunks
}

func (c *cursor) tag() manifest.Tag {
	return c.records[c.pos].Tag
}

func (c *cursor) advance() {
	c.pos++
	c.skipUneligible()
}

func nonNilLogger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
