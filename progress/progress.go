// Package progress renders the build pipeline's download and write byte
// meters using mpb, one bar per phase.
package progress

import (
	"fmt"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Meters tracks the two byte counters the build pipeline reports
// through: bytes downloaded from the chunk endpoint, and bytes appended
// to disk by the writer. Both share one total so the two bars stay
// visually aligned even though they progress at different rates.
type Meters struct {
	progress *mpb.Progress
	download *mpb.Bar
	write    *mpb.Bar
}

// New creates a pair of byte-count bars sized to totalBytes. A non-nil
// silentOutput receives the rendered bars instead of mpb's default
// (stdout); passing io.Discard suppresses rendering, which tests and
// non-interactive callers use to avoid writing to stdout.
func New(totalBytes int64, silentOutput io.Writer) *Meters {
	opts := []mpb.ContainerOption{mpb.WithWidth(48)}
	if silentOutput != nil {
		opts = append(opts, mpb.WithOutput(silentOutput))
	}
	p := mpb.New(opts...)

	download := p.AddBar(totalBytes,
		mpb.PrependDecorators(decor.Name("download", decor.WC{W: 10})),
		mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f")),
	)
	write := p.AddBar(totalBytes,
		mpb.PrependDecorators(decor.Name("write", decor.WC{W: 10})),
		mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f")),
	)

	return &Meters{progress: p, download: download, write: write}
}

// AddDownloaded records n bytes as fetched from the chunk endpoint.
func (m *Meters) AddDownloaded(n int64) {
	if m == nil {
		return
	}
	m.download.IncrInt64(n)
}

// AddWritten records n bytes as appended to disk.
func (m *Meters) AddWritten(n int64) {
	if m == nil {
		return
	}
	m.write.IncrInt64(n)
}

// Wait marks both bars complete at their current counts (a build that
// abandoned chunks never reaches the total) and blocks until they have
// rendered their final frame. Callers invoke this once the build
// pipeline's writer goroutine has returned.
func (m *Meters) Wait() {
	if m == nil {
		return
	}
	m.download.SetTotal(-1, true)
	m.write.SetTotal(-1, true)
	m.progress.Wait()
}

// FormatBytes renders n in human-readable binary units, used by the
// engine's info-only size-estimate output.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
