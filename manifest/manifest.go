// Package manifest implements the file and chunk manifest codec: the
// tabular record streams that describe a build's file tree and the
// chunks that reconstruct it.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// DirectoryFlag is the Flags value that marks a FileRecord as a directory.
const DirectoryFlag = 40

// Tag marks a FileRecord's role in a delta manifest. The zero value
// means the record carries no tag (a non-delta manifest).
type Tag string

const (
	TagAdded    Tag = "Added"
	TagModified Tag = "Modified"
	TagRemoved  Tag = "Removed"
)

// FileRecord is one row of a file manifest: a file-tree entry for one
// build. FileName uses backslash separators on the wire, as delivered
// by the vendor; callers that touch the filesystem are responsible for
// translating to the host separator (see layout.HostPath).
type FileRecord struct {
	SHA         string
	FileName    string
	Chunks      int
	Flags       int
	SizeInBytes int64
	Tag         Tag
}

// IsDirectory reports whether this record represents a directory.
func (r FileRecord) IsDirectory() bool {
	return r.Flags == DirectoryFlag
}

// IsEmpty reports whether the file carries no content (no chunks to fetch).
func (r FileRecord) IsEmpty() bool {
	return r.SizeInBytes == 0
}

// ChunkRecord is one row of a chunk manifest: a single fixed-size chunk
// belonging to a file, addressable by its own SHA-derived identifier.
type ChunkRecord struct {
	SHA      string
	FilePath string
	ID       int
}

// SplitVerificationSHA extracts the trailing underscore-separated token
// of a chunk identifier, which the vendor encodes as the chunk's own
// SHA-256. It reports ok=false when the identifier carries no
// underscore at all, signaling the caller should skip verification.
func SplitVerificationSHA(chunkSHA string) (sha string, ok bool) {
	idx := -1
	for i := len(chunkSHA) - 1; i >= 0; i-- {
		if chunkSHA[i] == '_' {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", false
	}
	return chunkSHA[idx+1:], true
}

var fileManifestHeader = []string{"sha", "file_name", "chunks", "flags", "size_in_bytes", "tag"}

var chunkManifestHeader = []string{"sha", "file_path", "id"}

// DecodeFileRecords parses a file manifest CSV. A row with only the
// first five columns is valid; the missing tag field is treated as
// present-but-empty so every row deserializes through the same path.
func DecodeFileRecords(r io.Reader) ([]FileRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("manifest: read header: %w", err)
	}
	colIndex := indexHeader(header)

	var records []FileRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: read row: %w", err)
		}
		row = padRow(row, len(header))

		rec := FileRecord{}
		if i, ok := colIndex["sha"]; ok {
			rec.SHA = row[i]
		}
		if i, ok := colIndex["file_name"]; ok {
			rec.FileName = row[i]
		}
		if i, ok := colIndex["chunks"]; ok {
			rec.Chunks, err = atoi(row[i])
			if err != nil {
				return nil, fmt.Errorf("manifest: chunks column: %w", err)
			}
		}
		if i, ok := colIndex["flags"]; ok {
			rec.Flags, err = atoi(row[i])
			if err != nil {
				return nil, fmt.Errorf("manifest: flags column: %w", err)
			}
		}
		if i, ok := colIndex["size_in_bytes"]; ok {
			n, err := strconv.ParseInt(row[i], 10, 64)
			if err != nil && row[i] != "" {
				return nil, fmt.Errorf("manifest: size_in_bytes column: %w", err)
			}
			rec.SizeInBytes = n
		}
		if i, ok := colIndex["tag"]; ok {
			rec.Tag = Tag(row[i])
		}

		records = append(records, rec)
	}

	return records, nil
}

// EncodeFileRecords writes records back out in the canonical column
// order. Encoding what DecodeFileRecords produced round-trips losslessly.
func EncodeFileRecords(w io.Writer, records []FileRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(fileManifestHeader); err != nil {
		return fmt.Errorf("manifest: write header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.SHA,
			rec.FileName,
			strconv.Itoa(rec.Chunks),
			strconv.Itoa(rec.Flags),
			strconv.FormatInt(rec.SizeInBytes, 10),
			string(rec.Tag),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("manifest: write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// DecodeChunkRecords parses a chunk manifest CSV.
func DecodeChunkRecords(r io.Reader) ([]ChunkRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("manifest: read header: %w", err)
	}
	colIndex := indexHeader(header)

	var records []ChunkRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: read row: %w", err)
		}
		row = padRow(row, len(header))

		rec := ChunkRecord{}
		if i, ok := colIndex["sha"]; ok {
			rec.SHA = row[i]
		}
		if i, ok := colIndex["file_path"]; ok {
			rec.FilePath = row[i]
		}
		if i, ok := colIndex["id"]; ok {
			rec.ID, err = atoi(row[i])
			if err != nil {
				return nil, fmt.Errorf("manifest: id column: %w", err)
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// EncodeChunkRecords writes chunk records back out in canonical order.
func EncodeChunkRecords(w io.Writer, records []ChunkRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(chunkManifestHeader); err != nil {
		return fmt.Errorf("manifest: write header: %w", err)
	}

	for _, rec := range records {
		row := []string{rec.SHA, rec.FilePath, strconv.Itoa(rec.ID)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("manifest: write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	return idx
}

// padRow appends empty fields so row has exactly n columns, giving the
// optional trailing tag column a stable place to deserialize from even
// when the source CSV omitted it entirely.
func padRow(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
