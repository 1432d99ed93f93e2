// Package layout materializes and tears down the on-disk file tree
// described by a (full or delta) file manifest: directory/file
// preparation, stale-entry removal, and platform-specific finalization
// hints such as a macOS bundle's Info.plist location.
package layout

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vaultforge/distengine/manifest"
)

// HostPath translates a manifest FileName (backslash separated, as
// delivered by the vendor) into a path using the host's separator,
// joined under installPath.
func HostPath(installPath, fileName string) string {
	return filepath.Join(installPath, filepath.FromSlash(toSlash(fileName)))
}

// toSlash normalizes a manifest FileName's vendor-supplied backslash
// separators to forward slashes, the common form both HostPath and the
// bundle-detection pass key off before applying host-specific or
// forward-slash-specific logic.
func toSlash(fileName string) string {
	return strings.ReplaceAll(fileName, "\\", "/")
}

// Plan is the result of walking a file manifest: the per-file expected
// chunk counts the build pipeline uses to mark each file's last chunk,
// the total byte count of everything that still needs downloading (which
// the progress meters are sized to), and the detected macOS bundle
// Info.plist path (if any).
type Plan struct {
	ExpectedChunks map[string]int
	TotalBytes     int64
	InfoPlistPath  string // host path, empty if none detected
}

// Prepare walks records in manifest order, removing stale entries,
// creating directories, and truncating regular files to empty ahead of
// the build pipeline's downloads. isMacBuild gates the Info.plist
// bundle-detection pass, which only applies when targeting macOS.
func Prepare(log *slog.Logger, installPath string, records []manifest.FileRecord, isMacBuild bool) (*Plan, error) {
	if log == nil {
		log = slog.Default()
	}

	plan := &Plan{ExpectedChunks: make(map[string]int)}

	for _, rec := range records {
		target := HostPath(installPath, rec.FileName)

		if rec.Tag == manifest.TagModified || rec.Tag == manifest.TagRemoved {
			if err := removeExisting(target, rec.IsDirectory()); err != nil {
				return nil, fmt.Errorf("layout: remove %s: %w", rec.FileName, err)
			}
			if rec.Tag == manifest.TagRemoved {
				log.Debug("layout removed stale entry", "file_name", rec.FileName)
				continue
			}
		}

		if err := prepareFile(target, rec.IsDirectory()); err != nil {
			return nil, fmt.Errorf("layout: prepare %s: %w", rec.FileName, err)
		}

		if isMacBuild && plan.InfoPlistPath == "" && isBundleInfoPlist(rec.FileName) {
			plan.InfoPlistPath = target
		}

		if !rec.IsDirectory() {
			plan.ExpectedChunks[rec.FileName] = rec.Chunks
			plan.TotalBytes += rec.SizeInBytes
		}
	}

	return plan, nil
}

func removeExisting(target string, isDir bool) error {
	var err error
	if isDir {
		err = os.RemoveAll(target)
	} else {
		err = os.Remove(target)
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func prepareFile(target string, isDir bool) error {
	if isDir {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	return f.Close()
}

// isBundleInfoPlist reports whether fileName (vendor backslash
// separated) matches "*.app/Contents/*.plist" — any .plist file whose
// parent directory is literally named Contents, whose own parent ends
// in ".app". The base name is not required to be Info.plist.
func isBundleInfoPlist(fileName string) bool {
	parts := strings.Split(toSlash(fileName), "/")
	n := len(parts)
	if n < 3 {
		return false
	}
	if !strings.HasSuffix(parts[n-1], ".plist") {
		return false
	}
	if parts[n-2] != "Contents" {
		return false
	}
	return strings.HasSuffix(parts[n-3], ".app")
}
