package api

import "fmt"

// CDNURLBuilder is the default URLBuilder: a single CDN root plus the
// <slug>/<os>/<file> layout the teacher's vendor CDN uses, generalized
// from product namespace/key fields (out of scope for this core, see
// DESIGN.md) down to the slug already carried by BuildDescriptor.
type CDNURLBuilder struct {
	BaseURL string
}

func (b CDNURLBuilder) ManifestURL(build BuildDescriptor) string {
	return fmt.Sprintf("%s/%s/%s/%s_manifest.csv", b.BaseURL, build.ProductSlug, build.OS, build.Version)
}

func (b CDNURLBuilder) ManifestChunksURL(build BuildDescriptor) string {
	return fmt.Sprintf("%s/%s/%s/%s_manifest_chunks.csv", b.BaseURL, build.ProductSlug, build.OS, build.Version)
}

func (b CDNURLBuilder) ChunkURL(build BuildDescriptor, chunkSHA string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.BaseURL, build.ProductSlug, build.OS, chunkSHA)
}
