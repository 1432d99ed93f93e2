package store

import (
	"testing"

	"github.com/vaultforge/distengine/manifest"
)

func TestManifestSaveLoadRoundTrip(t *testing.T) {
	SetTestConfigDir(t.TempDir())
	defer SetTestConfigDir("")

	records := []manifest.FileRecord{
		{SHA: "abc123", FileName: "a/b.bin", Chunks: 1, Flags: 0, SizeInBytes: 4},
	}

	if err := SaveFileManifest("product-slug", "1.0.0", KindManifest, records); err != nil {
		t.Fatalf("SaveFileManifest failed: %v", err)
	}

	loaded, err := LoadFileManifest("product-slug", "1.0.0", KindManifest)
	if err != nil {
		t.Fatalf("LoadFileManifest failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != records[0] {
		t.Errorf("loaded = %+v, expected %+v", loaded, records)
	}
}

func TestLoadManifestNotFound(t *testing.T) {
	SetTestConfigDir(t.TempDir())
	defer SetTestConfigDir("")

	_, err := LoadFileManifest("missing-slug", "1.0.0", KindManifest)
	if err == nil {
		t.Fatal("expected an error for a manifest that was never stored")
	}
}

func TestDeltaBuildKey(t *testing.T) {
	got := DeltaBuildKey("1.0.0", "1.1.0")
	if got != "1.0.0_1.1.0" {
		t.Errorf("DeltaBuildKey = %q, expected %q", got, "1.0.0_1.1.0")
	}
}

func TestInstallInfoSaveAndLoad(t *testing.T) {
	SetTestConfigDir(t.TempDir())
	defer SetTestConfigDir("")

	info := &InstallInfo{InstallPath: "/games/foo", Version: "1.0.0", OS: "linux"}
	if err := SaveInstallInfo("foo", info); err != nil {
		t.Fatalf("SaveInstallInfo failed: %v", err)
	}

	loaded, err := GetInstallInfo("foo")
	if err != nil {
		t.Fatalf("GetInstallInfo failed: %v", err)
	}
	if loaded == nil || *loaded != *info {
		t.Errorf("loaded = %+v, expected %+v", loaded, info)
	}

	if err := RemoveInstallInfo("foo"); err != nil {
		t.Fatalf("RemoveInstallInfo failed: %v", err)
	}
	loaded, err = GetInstallInfo("foo")
	if err != nil {
		t.Fatalf("GetInstallInfo failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil after removal, got %+v", loaded)
	}
}
