package engine

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/vaultforge/distengine/api"
	"github.com/vaultforge/distengine/hashutil"
	"github.com/vaultforge/distengine/manifest"
	"github.com/vaultforge/distengine/store"
)

// fakeClient serves manifest/chunk bytes from in-memory builds keyed by version.
type fakeClient struct {
	manifests map[string][]byte
	chunkMans map[string][]byte
	chunks    map[string][]byte
}

func (f *fakeClient) BuildManifest(ctx context.Context, b api.BuildDescriptor) ([]byte, error) {
	return f.manifests[b.Version], nil
}

func (f *fakeClient) BuildManifestChunks(ctx context.Context, b api.BuildDescriptor) ([]byte, error) {
	return f.chunkMans[b.Version], nil
}

func (f *fakeClient) DownloadChunk(ctx context.Context, b api.BuildDescriptor, sha string) ([]byte, error) {
	return f.chunks[sha], nil
}

func chunkSHA(prefix string, data []byte) string {
	return prefix + "_" + hashutil.HashBytes(data)
}

func encodeFileManifest(t *testing.T, records []manifest.FileRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := manifest.EncodeFileRecords(&buf, records); err != nil {
		t.Fatalf("encode file manifest: %v", err)
	}
	return buf.Bytes()
}

func encodeChunkManifest(t *testing.T, records []manifest.ChunkRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := manifest.EncodeChunkRecords(&buf, records); err != nil {
		t.Fatalf("encode chunk manifest: %v", err)
	}
	return buf.Bytes()
}

func TestInstallWritesFileTree(t *testing.T) {
	store.SetTestConfigDir(t.TempDir())
	defer store.SetTestConfigDir("")

	data := []byte("abcd")
	sha := chunkSHA("p", data)

	records := []manifest.FileRecord{
		{FileName: "a.bin", SHA: hashutil.HashBytes(data), Chunks: 1, SizeInBytes: int64(len(data))},
	}
	chunks := []manifest.ChunkRecord{{SHA: sha, FilePath: "a.bin", ID: 0}}

	client := &fakeClient{
		manifests: map[string][]byte{"1.0": encodeFileManifest(t, records)},
		chunkMans: map[string][]byte{"1.0": encodeChunkManifest(t, chunks)},
		chunks:    map[string][]byte{sha: data},
	}

	e := New(client, nil)
	build := api.BuildDescriptor{ProductSlug: "game", Version: "1.0", OS: "win"}
	installPath := t.TempDir()

	_, result, err := e.Install(context.Background(), build, installPath, Options{ProgressOutput: io.Discard})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if result.InstallPath != installPath {
		t.Errorf("InstallPath = %q, want %q", result.InstallPath, installPath)
	}

	got, err := os.ReadFile(filepath.Join(installPath, "a.bin"))
	if err != nil {
		t.Fatalf("read installed file: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("file content = %q, want %q", got, data)
	}

	info, err := store.GetInstallInfo("game")
	if err != nil {
		t.Fatalf("GetInstallInfo: %v", err)
	}
	if info == nil || info.Version != "1.0" {
		t.Errorf("install info not saved correctly: %+v", info)
	}
}

func TestInstallInfoOnlySkipsDownload(t *testing.T) {
	store.SetTestConfigDir(t.TempDir())
	defer store.SetTestConfigDir("")

	records := []manifest.FileRecord{
		{FileName: "a.bin", SHA: "x", Chunks: 1, SizeInBytes: 100},
		{FileName: "b.bin", SHA: "y", Chunks: 1, SizeInBytes: 50},
	}
	client := &fakeClient{
		manifests: map[string][]byte{"1.0": encodeFileManifest(t, records)},
		chunkMans: map[string][]byte{"1.0": []byte("sha,file_path,id\n")},
	}

	e := New(client, nil)
	build := api.BuildDescriptor{ProductSlug: "game2", Version: "1.0", OS: "win"}

	estimate, result, err := e.Install(context.Background(), build, t.TempDir(), Options{InfoOnly: true})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result for info-only install")
	}
	if estimate.DownloadBytes != 150 {
		t.Errorf("DownloadBytes = %d, want 150", estimate.DownloadBytes)
	}
}

func TestUpdateAppliesDelta(t *testing.T) {
	store.SetTestConfigDir(t.TempDir())
	defer store.SetTestConfigDir("")

	slug := "game3"

	oldRecords := []manifest.FileRecord{
		{FileName: "a.txt", SHA: hashutil.HashBytes([]byte("old")), Chunks: 1, SizeInBytes: 3},
	}
	if err := store.SaveFileManifest(slug, "1.0", store.KindManifest, oldRecords); err != nil {
		t.Fatalf("seed old manifest: %v", err)
	}

	newData := []byte("newcontent")
	newSHA := hashutil.HashBytes(newData)
	chunkSha := chunkSHA("p", newData)

	newRecords := []manifest.FileRecord{
		{FileName: "a.txt", SHA: newSHA, Chunks: 1, SizeInBytes: int64(len(newData))},
	}
	chunks := []manifest.ChunkRecord{{SHA: chunkSha, FilePath: "a.txt", ID: 0}}

	client := &fakeClient{
		manifests: map[string][]byte{"2.0": encodeFileManifest(t, newRecords)},
		chunkMans: map[string][]byte{"2.0": encodeChunkManifest(t, chunks)},
		chunks:    map[string][]byte{chunkSha: newData},
	}

	e := New(client, nil)
	build := api.BuildDescriptor{ProductSlug: slug, Version: "2.0", OS: "win"}
	installPath := t.TempDir()
	if err := os.WriteFile(filepath.Join(installPath, "a.txt"), []byte("old"), 0o644); err != nil {
		t.Fatalf("seed installed file: %v", err)
	}

	_, _, err := e.Update(context.Background(), build, "1.0", installPath, Options{ProgressOutput: io.Discard})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(installPath, "a.txt"))
	if err != nil {
		t.Fatalf("read updated file: %v", err)
	}
	if string(got) != string(newData) {
		t.Errorf("file content = %q, want %q", got, newData)
	}
}

func TestUpdateMissingOldManifestFails(t *testing.T) {
	store.SetTestConfigDir(t.TempDir())
	defer store.SetTestConfigDir("")

	client := &fakeClient{}
	e := New(client, nil)
	build := api.BuildDescriptor{ProductSlug: "game4", Version: "2.0", OS: "win"}

	_, _, err := e.Update(context.Background(), build, "1.0", t.TempDir(), Options{})
	if err == nil {
		t.Fatal("expected error for missing old manifest")
	}
}

func TestVerifyAfterInstall(t *testing.T) {
	store.SetTestConfigDir(t.TempDir())
	defer store.SetTestConfigDir("")

	slug := "game5"
	content := []byte("verify me")
	records := []manifest.FileRecord{
		{FileName: "v.txt", SHA: hashutil.HashBytes(content), SizeInBytes: int64(len(content))},
	}
	if err := store.SaveFileManifest(slug, "1.0", store.KindManifest, records); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	installPath := t.TempDir()
	if err := os.WriteFile(filepath.Join(installPath, "v.txt"), content, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	e := New(&fakeClient{}, nil)
	valid, results, err := e.Verify(context.Background(), slug, "1.0", installPath)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !valid {
		t.Errorf("expected valid, results: %+v", results)
	}
}
