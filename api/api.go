// Package api defines the external collaborator contract the engine
// core consumes — product metadata, manifest fetches and chunk
// downloads — and ships a default HTTP-backed implementation with
// retry/backoff for transient transport failures.
package api

import "context"

// BuildDescriptor identifies one concrete installable: a product at a
// specific version for a specific OS.
type BuildDescriptor struct {
	ProductSlug string
	Version     string
	OS          string
}

// Client is the external API collaborator contract. Implementations
// must be safe for concurrent use — the build pipeline calls
// DownloadChunk from many goroutines at once.
type Client interface {
	// BuildManifest returns the raw file manifest CSV for a build.
	BuildManifest(ctx context.Context, build BuildDescriptor) ([]byte, error)
	// BuildManifestChunks returns the raw chunk manifest CSV for a build.
	BuildManifestChunks(ctx context.Context, build BuildDescriptor) ([]byte, error)
	// DownloadChunk returns one chunk's raw bytes, addressed by its
	// manifest-encoded chunk identifier.
	DownloadChunk(ctx context.Context, build BuildDescriptor, chunkSHA string) ([]byte, error)
}
