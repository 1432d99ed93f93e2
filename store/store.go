// Package store persists manifests and install records under the
// user's per-application configuration directory.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vaultforge/distengine/manifest"
)

// ErrNotFound is returned when a requested manifest has never been
// stored (a missing install record is reported by GetInstallInfo as nil). The delta synthesizer treats this as "regenerate".
var ErrNotFound = errors.New("store: not found")

// Kind names one of the four manifest flavors persisted per build.
type Kind string

const (
	KindManifest             Kind = "manifest"
	KindManifestChunks       Kind = "manifest_chunks"
	KindManifestDelta        Kind = "manifest_delta"
	KindManifestDeltaChunks  Kind = "manifest_delta_chunks"
)

// appDirName is the product-neutral directory under the user's config
// root that holds all of this engine's persisted state.
const appDirName = "distengine"

// testConfigDir overrides the config root in tests.
var testConfigDir string

// SetTestConfigDir overrides the configuration root directory; pass ""
// to restore the default os.UserConfigDir()-derived path.
func SetTestConfigDir(dir string) {
	testConfigDir = dir
}

func configDir() (string, error) {
	if testConfigDir != "" {
		return testConfigDir, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName), nil
}

func manifestsDir(productSlug string) (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "manifests", productSlug), nil
}

// manifestPath returns <user-config-dir>/manifests/<product_slug>/<build_key>_<kind>.csv
func manifestPath(productSlug, buildKey string, kind Kind) (string, error) {
	dir, err := manifestsDir(productSlug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", buildKey, kind)), nil
}

// DeltaBuildKey forms the build_key used for delta manifest kinds.
func DeltaBuildKey(oldVersion, newVersion string) string {
	return oldVersion + "_" + newVersion
}

// SaveFileManifestBytes writes a file manifest's raw CSV bytes, creating
// parent directories idempotently.
func SaveFileManifestBytes(productSlug, buildKey string, kind Kind, data []byte) error {
	path, err := manifestPath(productSlug, buildKey, kind)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadManifestBytes reads a stored manifest's raw CSV bytes.
func LoadManifestBytes(productSlug, buildKey string, kind Kind) ([]byte, error) {
	path, err := manifestPath(productSlug, buildKey, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

// Exists reports whether a manifest of the given kind is already stored.
func Exists(productSlug, buildKey string, kind Kind) bool {
	path, err := manifestPath(productSlug, buildKey, kind)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// SaveFileManifest encodes records with manifest.EncodeFileRecords and
// persists the result, creating parent directories idempotently. Raw
// fetched bytes are stored verbatim through SaveFileManifestBytes instead.
func SaveFileManifest(productSlug, buildKey string, kind Kind, records []manifest.FileRecord) error {
	path, err := manifestPath(productSlug, buildKey, kind)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return manifest.EncodeFileRecords(f, records)
}

// LoadFileManifest reads and decodes a stored file manifest.
func LoadFileManifest(productSlug, buildKey string, kind Kind) ([]manifest.FileRecord, error) {
	data, err := LoadManifestBytes(productSlug, buildKey, kind)
	if err != nil {
		return nil, err
	}
	return manifest.DecodeFileRecords(bytes.NewReader(data))
}

// SaveChunkManifest persists a chunk manifest.
func SaveChunkManifest(productSlug, buildKey string, kind Kind, records []manifest.ChunkRecord) error {
	path, err := manifestPath(productSlug, buildKey, kind)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return manifest.EncodeChunkRecords(f, records)
}

// LoadChunkManifest reads and decodes a stored chunk manifest.
func LoadChunkManifest(productSlug, buildKey string, kind Kind) ([]manifest.ChunkRecord, error) {
	data, err := LoadManifestBytes(productSlug, buildKey, kind)
	if err != nil {
		return nil, err
	}
	return manifest.DecodeChunkRecords(bytes.NewReader(data))
}
