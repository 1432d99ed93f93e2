// Package verify re-hashes every installed regular file against its
// manifest SHA, the post-hoc integrity check of spec §4.G.
package verify

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/vaultforge/distengine/hashutil"
	"github.com/vaultforge/distengine/layout"
	"github.com/vaultforge/distengine/manifest"
)

// Result is the outcome of verifying one file.
type Result struct {
	FileName string
	Expected string
	Actual   string
	Valid    bool
	Error    error
}

// Options configures the worker pool.
type Options struct {
	MaxWorkers int
}

// Installation verifies every non-directory record in records against
// the file tree rooted at installPath. It returns true iff every file
// passes; a single missing or mismatched file is sufficient for false.
func Installation(installPath string, records []manifest.FileRecord, opts Options) (bool, []Result, error) {
	var files []manifest.FileRecord
	for _, rec := range records {
		if !rec.IsDirectory() {
			files = append(files, rec)
		}
	}

	if len(files) == 0 {
		return true, nil, nil
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan manifest.FileRecord, len(files))
	results := make(chan Result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				results <- verifyFile(installPath, rec)
			}
		}()
	}

	for _, rec := range files {
		jobs <- rec
	}
	close(jobs)

	wg.Wait()
	close(results)

	out := make([]Result, 0, len(files))
	allValid := true
	for r := range results {
		out = append(out, r)
		if !r.Valid {
			allValid = false
		}
	}

	return allValid, out, nil
}

func verifyFile(installPath string, rec manifest.FileRecord) Result {
	target := layout.HostPath(installPath, rec.FileName)
	result := Result{FileName: rec.FileName, Expected: rec.SHA}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		result.Error = fmt.Errorf("verify: %s: missing", rec.FileName)
		return result
	}
	if err != nil {
		result.Error = fmt.Errorf("verify: %s: stat: %w", rec.FileName, err)
		return result
	}
	if info.IsDir() {
		result.Error = fmt.Errorf("verify: %s: expected file, found directory", rec.FileName)
		return result
	}
	if info.Size() != rec.SizeInBytes {
		result.Error = fmt.Errorf("verify: %s: size mismatch: expected %d, got %d", rec.FileName, rec.SizeInBytes, info.Size())
		return result
	}

	hash, err := hashutil.HashFile(target)
	if err != nil {
		result.Error = fmt.Errorf("verify: %s: hash: %w", rec.FileName, err)
		return result
	}

	result.Actual = hash
	result.Valid = hash == rec.SHA
	if !result.Valid {
		result.Error = fmt.Errorf("verify: %s: hash mismatch", rec.FileName)
	}
	return result
}
