// Package engine is the orchestrator of spec §4.H: it assembles the
// manifest codec, store, delta synthesizer, layout planner, build
// pipeline and verifier into the three top-level operations a caller
// actually wants — install, update, verify — so the CLI layer stays thin.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vaultforge/distengine/api"
	"github.com/vaultforge/distengine/delta"
	"github.com/vaultforge/distengine/engineerr"
	"github.com/vaultforge/distengine/layout"
	"github.com/vaultforge/distengine/manifest"
	"github.com/vaultforge/distengine/pipeline"
	"github.com/vaultforge/distengine/progress"
	"github.com/vaultforge/distengine/store"
	"github.com/vaultforge/distengine/verify"
)

// Engine ties the external API collaborator to the on-disk pipeline.
type Engine struct {
	Client api.Client
	Log    *slog.Logger
}

// New constructs an Engine. A nil logger falls back to slog.Default().
func New(client api.Client, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Client: client, Log: log}
}

// Options configures one install/update run.
type Options struct {
	Pipeline pipeline.Options
	InfoOnly bool
	// ProgressOutput receives the progress bars' rendered output; nil
	// selects mpb's default (stdout). Pass io.Discard in tests.
	ProgressOutput io.Writer
}

// SizeEstimate is returned by the info-only path: the download size
// implied by the manifest(s) and the disk-usage delta an update would
// leave behind, signed so a shrinking install reports negative.
type SizeEstimate struct {
	DownloadBytes int64
	DiskDelta     int64
}

// Result is returned once the on-disk build actually runs.
type Result struct {
	InstallPath string
	Records     []manifest.FileRecord
}

func isMacBuild(build api.BuildDescriptor) bool {
	return build.OS == "mac"
}

// Install fetches a build's manifests, stores them, and — unless
// opts.InfoOnly — runs the Layout Planner and Build Pipeline over the
// full file tree.
func (e *Engine) Install(ctx context.Context, build api.BuildDescriptor, installPath string, opts Options) (*SizeEstimate, *Result, error) {
	records, chunkData, err := e.fetchAndStoreManifests(ctx, build)
	if err != nil {
		return nil, nil, err
	}

	if opts.InfoOnly {
		return &SizeEstimate{DownloadBytes: sumSizeExcludingRemoved(records)}, nil, nil
	}

	chunks, err := manifest.DecodeChunkRecords(bytes.NewReader(chunkData))
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.ManifestParseError, "decode chunk manifest", err)
	}

	if err := e.build(ctx, build, installPath, records, chunks, opts); err != nil {
		return nil, nil, err
	}

	if err := store.SaveInstallInfo(build.ProductSlug, &store.InstallInfo{
		InstallPath: installPath,
		Version:     build.Version,
		OS:          build.OS,
	}); err != nil {
		e.Log.Warn("failed to save install info", "slug", build.ProductSlug, "error", err)
	}

	return nil, &Result{InstallPath: installPath, Records: records}, nil
}

// Update requires a previously stored file manifest for oldVersion,
// fetches and stores the new build's manifests, synthesizes the file
// and chunk deltas, then runs Layout Planner + Build Pipeline over
// just the delta.
func (e *Engine) Update(ctx context.Context, build api.BuildDescriptor, oldVersion string, installPath string, opts Options) (*SizeEstimate, *Result, error) {
	oldRecords, err := store.LoadFileManifest(build.ProductSlug, oldVersion, store.KindManifest)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.NoSuchVersion, fmt.Sprintf("no stored manifest for %s %s", build.ProductSlug, oldVersion), err)
	}

	newRecords, chunkData, err := e.fetchAndStoreManifests(ctx, build)
	if err != nil {
		return nil, nil, err
	}

	deltaRecords, err := delta.BuildFileDelta(e.Log, build.ProductSlug, oldVersion, build.Version, oldRecords, newRecords)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.IOError, "build file delta", err)
	}

	if opts.InfoOnly {
		return &SizeEstimate{
			DownloadBytes: sumSizeExcludingRemoved(deltaRecords),
			DiskDelta:     sumSizeExcludingRemoved(newRecords) - sumSizeExcludingRemoved(oldRecords),
		}, nil, nil
	}

	newChunks, err := manifest.DecodeChunkRecords(bytes.NewReader(chunkData))
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.ManifestParseError, "decode chunk manifest", err)
	}

	deltaChunks, err := delta.BuildChunkDelta(e.Log, build.ProductSlug, oldVersion, build.Version, deltaRecords, newChunks)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.IOError, "build chunk delta", err)
	}

	if err := e.build(ctx, build, installPath, deltaRecords, deltaChunks, opts); err != nil {
		return nil, nil, err
	}

	if err := store.SaveInstallInfo(build.ProductSlug, &store.InstallInfo{
		InstallPath: installPath,
		Version:     build.Version,
		OS:          build.OS,
	}); err != nil {
		e.Log.Warn("failed to save install info", "slug", build.ProductSlug, "error", err)
	}

	return nil, &Result{InstallPath: installPath, Records: newRecords}, nil
}

// Verify reads the stored manifest for (slug, version) and re-hashes
// every installed file against it.
func (e *Engine) Verify(ctx context.Context, productSlug, version, installPath string) (bool, []verify.Result, error) {
	records, err := store.LoadFileManifest(productSlug, version, store.KindManifest)
	if err != nil {
		return false, nil, engineerr.Wrap(engineerr.NoSuchVersion, fmt.Sprintf("no stored manifest for %s %s", productSlug, version), err)
	}

	valid, results, err := verify.Installation(installPath, records, verify.Options{})
	if err != nil {
		return false, nil, engineerr.Wrap(engineerr.IOError, "verify installation", err)
	}
	return valid, results, nil
}

// fetchAndStoreManifests retrieves the file and chunk manifest for
// build, persists both verbatim, and decodes the file manifest for the
// caller (the chunk manifest is returned as raw bytes since callers
// that only need the size estimate never decode it).
func (e *Engine) fetchAndStoreManifests(ctx context.Context, build api.BuildDescriptor) ([]manifest.FileRecord, []byte, error) {
	manifestData, err := e.Client.BuildManifest(ctx, build)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.ManifestFetchFailed, "fetch file manifest", err)
	}
	chunkData, err := e.Client.BuildManifestChunks(ctx, build)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.ManifestFetchFailed, "fetch chunk manifest", err)
	}

	if err := store.SaveFileManifestBytes(build.ProductSlug, build.Version, store.KindManifest, manifestData); err != nil {
		return nil, nil, engineerr.Wrap(engineerr.IOError, "persist file manifest", err)
	}
	if err := store.SaveFileManifestBytes(build.ProductSlug, build.Version, store.KindManifestChunks, chunkData); err != nil {
		return nil, nil, engineerr.Wrap(engineerr.IOError, "persist chunk manifest", err)
	}

	records, err := manifest.DecodeFileRecords(bytes.NewReader(manifestData))
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.ManifestParseError, "decode file manifest", err)
	}

	return records, chunkData, nil
}

// build runs the Layout Planner followed by the Build Pipeline over
// records/chunks, wiring fresh progress meters sized to the plan.
func (e *Engine) build(ctx context.Context, build api.BuildDescriptor, installPath string, records []manifest.FileRecord, chunks []manifest.ChunkRecord, opts Options) error {
	plan, err := layout.Prepare(e.Log, installPath, records, isMacBuild(build))
	if err != nil {
		return engineerr.Wrap(engineerr.IOError, "prepare layout", err)
	}

	prog := progress.New(plan.TotalBytes, opts.ProgressOutput)
	ok, err := pipeline.Build(ctx, e.Log, e.Client, build, installPath, chunks, plan, opts.Pipeline, prog)
	prog.Wait()
	if err != nil {
		return engineerr.Wrap(engineerr.ChunkFetchFailed, "build pipeline", err)
	}
	if !ok {
		return engineerr.New(engineerr.IOError, "build pipeline did not complete")
	}

	return nil
}

// sumSizeExcludingRemoved adds size_in_bytes across every record whose
// tag is not Removed — true of every record in a non-delta manifest,
// since those never carry a tag at all.
func sumSizeExcludingRemoved(records []manifest.FileRecord) int64 {
	var total int64
	for _, rec := range records {
		if rec.Tag == manifest.TagRemoved {
			continue
		}
		total += rec.SizeInBytes
	}
	return total
}
