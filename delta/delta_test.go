package delta

import (
	"testing"

	"github.com/vaultforge/distengine/manifest"
	"github.com/vaultforge/distengine/store"
)

func setup(t *testing.T) {
	t.Helper()
	store.SetTestConfigDir(t.TempDir())
	t.Cleanup(func() { store.SetTestConfigDir("") })
}

func TestBuildFileDeltaOrdering(t *testing.T) {
	setup(t)

	oldManifest := []manifest.FileRecord{
		{FileName: "a.txt", SHA: "s1", Chunks: 1, SizeInBytes: 1},
		{FileName: "b.txt", SHA: "s2", Chunks: 1, SizeInBytes: 1},
	}
	newManifest := []manifest.FileRecord{
		{FileName: "a.txt", SHA: "s1-new", Chunks: 1, SizeInBytes: 1},
		{FileName: "c.txt", SHA: "s3", Chunks: 1, SizeInBytes: 1},
	}

	result, err := BuildFileDelta(nil, "slug", "1.0", "2.0", oldManifest, newManifest)
	if err != nil {
		t.Fatalf("BuildFileDelta failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("expected 3 records, got %d", len(result))
	}
	if result[0].FileName != "c.txt" || result[0].Tag != manifest.TagAdded {
		t.Errorf("result[0] = %+v, expected Added c.txt", result[0])
	}
	if result[1].FileName != "a.txt" || result[1].Tag != manifest.TagModified {
		t.Errorf("result[1] = %+v, expected Modified a.txt", result[1])
	}
	if result[2].FileName != "b.txt" || result[2].Tag != manifest.TagRemoved {
		t.Errorf("result[2] = %+v, expected Removed b.txt", result[2])
	}
}

func TestBuildFileDeltaReusesStored(t *testing.T) {
	setup(t)

	oldManifest := []manifest.FileRecord{{FileName: "a.txt", SHA: "s1", Chunks: 1, SizeInBytes: 1}}
	newManifest := []manifest.FileRecord{{FileName: "a.txt", SHA: "s2", Chunks: 1, SizeInBytes: 1}}

	first, err := BuildFileDelta(nil, "slug", "1.0", "2.0", oldManifest, newManifest)
	if err != nil {
		t.Fatalf("BuildFileDelta failed: %v", err)
	}

	// Even with manifests that would produce a different result, the
	// persisted delta must be returned unchanged.
	second, err := BuildFileDelta(nil, "slug", "1.0", "2.0", nil, nil)
	if err != nil {
		t.Fatalf("BuildFileDelta (reuse) failed: %v", err)
	}
	if len(second) != len(first) || second[0].FileName != first[0].FileName {
		t.Errorf("expected reused delta %+v, got %+v", first, second)
	}
}

func TestBuildChunkDeltaTerminatesOnRemoved(t *testing.T) {
	setup(t)

	deltaFiles := []manifest.FileRecord{
		{FileName: "new.txt", Chunks: 1, Tag: manifest.TagAdded},
		{FileName: "old.txt", Chunks: 1, Tag: manifest.TagRemoved},
	}
	chunks := []manifest.ChunkRecord{
		{FilePath: "new.txt", ID: 0, SHA: "pfx_0_aaa"},
		{FilePath: "unrelated.txt", ID: 0, SHA: "pfx_0_bbb"},
		{FilePath: "old.txt", ID: 0, SHA: "pfx_0_ccc"},
	}

	result, err := BuildChunkDelta(nil, "slug", "1.0", "2.0", deltaFiles, chunks)
	if err != nil {
		t.Fatalf("BuildChunkDelta failed: %v", err)
	}
	if len(result) != 1 || result[0].FilePath != "new.txt" {
		t.Fatalf("expected only new.txt's chunk, got %+v", result)
	}
}

func TestBuildChunkDeltaSkipsDirectoriesAndMismatches(t *testing.T) {
	setup(t)

	deltaFiles := []manifest.FileRecord{
		{FileName: "dir", Flags: manifest.DirectoryFlag, Tag: manifest.TagAdded},
		{FileName: "a.bin", Chunks: 2, Tag: manifest.TagAdded},
	}
	chunks := []manifest.ChunkRecord{
		{FilePath: "other.bin", ID: 0, SHA: "pfx_0_ccc"},
		{FilePath: "a.bin", ID: 0, SHA: "pfx_0_aaa"},
		{FilePath: "a.bin", ID: 1, SHA: "pfx_1_bbb"},
	}

	result, err := BuildChunkDelta(nil, "slug2", "1.0", "2.0", deltaFiles, chunks)
	if err != nil {
		t.Fatalf("BuildChunkDelta failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(result))
	}
}
